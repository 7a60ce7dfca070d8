// Package dialogue answers chat turns.
//
// A turn passes through these stages in order: the length guard,
// confirmation of a pending suggestion, follow-up detection, the greeting
// check, typo detection, article retrieval (or conversation context for
// follow-ups), generation and persistence. The greeting and typo stages can
// end the turn early. Callers always get a user-facing reply; internal errors
// are logged and replaced by fixed messages.
package dialogue

import (
	"context"
	"strings"

	"github.com/entrhq/medisimple/pkg/classify"
	"github.com/entrhq/medisimple/pkg/history"
	"github.com/entrhq/medisimple/pkg/llm"
	"github.com/entrhq/medisimple/pkg/prompts"
	"github.com/entrhq/medisimple/pkg/retrieval"
	"github.com/entrhq/medisimple/pkg/tokens"
	"github.com/entrhq/medisimple/pkg/types"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Fixed replies.
const (
	MsgQueryRequired = "Query is required"
	MsgTooLong       = "Your question is a bit long. Could you shorten it so I can help better?"
	MsgUnreachable   = "I had trouble reaching Wikipedia. Please try again in a moment."
	MsgNotFound      = "I couldn't find reliable information on that topic. Could you rephrase your question?"
	MsgFailure       = "Something went wrong on my end. Please try again."
)

var (
	// ErrEmptyQuery is recorded for blank queries.
	ErrEmptyQuery = errors.New("query is required")

	// ErrInputRejected is recorded when a query exceeds the length limit.
	ErrInputRejected = errors.New("query too long")

	// ErrRetrievalEmpty is recorded when the article was missing or too short.
	ErrRetrievalEmpty = errors.New("retrieved content too short")
)

// Path names how a turn was handled.
type Path string

const (
	PathRejected    Path = "rejected"
	PathGreeting    Path = "greeting"
	PathTypo        Path = "typo"
	PathUnreachable Path = "unreachable"
	PathNotFound    Path = "not_found"
	PathArticle     Path = "article"
	PathFollowUp    Path = "follow_up"
	PathFailed      Path = "failed"
)

// Reply is the outcome of one turn. Err holds the internal cause for
// rejected and failed turns; it is never shown to the user.
type Reply struct {
	Text string
	Path Path
	Err  error

	// Query is the query the answer was produced for, which differs from the
	// input after a confirmed suggestion.
	Query string
}

// Limits bounds the dialogue pipeline.
type Limits struct {
	MaxQueryLength   int
	ArticleCharCap   int
	MinContentLength int
	HistoryWindow    int
	FollowUpWindow   int
}

// DefaultLimits returns the production limits.
func DefaultLimits() Limits {
	return Limits{
		MaxQueryLength:   500,
		ArticleCharCap:   2500,
		MinContentLength: 100,
		HistoryWindow:    6,
		FollowUpWindow:   4,
	}
}

// Source fetches the reference article for a topic.
type Source interface {
	Fetch(ctx context.Context, topic string) (string, error)
}

// Controller runs the dialogue pipeline for one turn at a time. Concurrent
// calls are allowed; turns of the same session are not ordered against each
// other.
type Controller struct {
	store     history.Store
	provider  llm.Provider
	prompts   *prompts.Registry
	stages    *classify.Classifier
	source    Source
	tokenizer *tokens.Tokenizer
	limits    Limits
	log       zerolog.Logger
}

// Option configures a Controller.
type Option func(*Controller)

// WithLimits replaces the default limits. Non-positive fields keep their
// defaults.
func WithLimits(l Limits) Option {
	return func(c *Controller) {
		set := func(dst *int, v int) {
			if v > 0 {
				*dst = v
			}
		}
		set(&c.limits.MaxQueryLength, l.MaxQueryLength)
		set(&c.limits.ArticleCharCap, l.ArticleCharCap)
		set(&c.limits.MinContentLength, l.MinContentLength)
		set(&c.limits.HistoryWindow, l.HistoryWindow)
		set(&c.limits.FollowUpWindow, l.FollowUpWindow)
	}
}

// WithTokenizer sets the tokenizer used to log prompt sizes.
func WithTokenizer(t *tokens.Tokenizer) Option {
	return func(c *Controller) {
		c.tokenizer = t
	}
}

// New returns a controller.
func New(store history.Store, provider llm.Provider, registry *prompts.Registry, source Source, log zerolog.Logger, opts ...Option) *Controller {
	c := &Controller{
		store:    store,
		provider: provider,
		prompts:  registry,
		stages:   classify.New(provider, registry, log),
		source:   source,
		limits:   DefaultLimits(),
		log:      log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Limits returns the limits in effect.
func (c *Controller) Limits() Limits {
	return c.limits
}

// Respond answers query for the session.
func (c *Controller) Respond(ctx context.Context, sessionID, query string) (reply Reply) {
	query = strings.TrimSpace(query)
	if query == "" {
		return Reply{Text: MsgQueryRequired, Path: PathRejected, Err: ErrEmptyQuery}
	}
	if retrieval.RuneLen(query) > c.limits.MaxQueryLength {
		c.log.Info().Str("session", sessionID).Int("length", retrieval.RuneLen(query)).Msg("query rejected")
		return Reply{Text: MsgTooLong, Path: PathRejected, Err: ErrInputRejected, Query: query}
	}

	defer func() {
		if p := recover(); p != nil {
			reply = c.fail(sessionID, errors.Errorf("panic: %v", p))
		}
	}()

	r, err := c.respond(ctx, sessionID, query)
	if err != nil {
		return c.fail(sessionID, err)
	}
	c.log.Info().Str("session", sessionID).Str("path", string(r.Path)).Msg("turn answered")
	return r
}

func (c *Controller) fail(sessionID string, err error) Reply {
	c.log.Error().Err(err).Str("session", sessionID).Msg("chat error")
	return Reply{Text: MsgFailure, Path: PathFailed, Err: err}
}

func (c *Controller) respond(ctx context.Context, sessionID, query string) (Reply, error) {
	recent, err := c.store.RecentWindow(ctx, sessionID, c.limits.HistoryWindow)
	if err != nil {
		return Reply{}, err
	}

	justConfirmed := false
	if suggestion, ok := classify.PendingSuggestion(recent); ok {
		term, confirmed, err := c.stages.Confirmation(ctx, suggestion.Content, query)
		if err != nil {
			return Reply{}, err
		}
		if confirmed {
			c.log.Info().Str("term", term).Msg("confirmed term")
			if err := c.store.Append(ctx, sessionID, types.RoleUser, query); err != nil {
				return Reply{}, err
			}
			query = term
			justConfirmed = true
		}
	}

	isFollowUp := false
	if len(recent) > 0 && !justConfirmed {
		isFollowUp, err = c.stages.FollowUp(ctx, types.Tail(recent, c.limits.FollowUpWindow), query)
		if err != nil {
			return Reply{}, err
		}
	}

	if classify.IsGreeting(query) {
		return c.persist(ctx, sessionID, query, classify.GreetingReply, PathGreeting)
	}

	if !isFollowUp && !justConfirmed {
		clarification, isTypo, err := c.stages.Typo(ctx, query)
		if err != nil {
			return Reply{}, err
		}
		if isTypo {
			c.log.Info().Str("clarification", clarification).Msg("typo flagged")
			return c.persist(ctx, sessionID, query, clarification, PathTypo)
		}
	}

	var (
		groundContext string
		path          Path
	)
	if isFollowUp {
		groundContext = retrieval.ConversationContext(types.Tail(recent, c.limits.FollowUpWindow))
		path = PathFollowUp
	} else {
		content, err := c.source.Fetch(ctx, query)
		if errors.Is(err, retrieval.ErrUnreachable) {
			c.log.Error().Err(err).Msg("retrieval failed")
			return Reply{Text: MsgUnreachable, Path: PathUnreachable, Err: err, Query: query}, nil
		}
		if err != nil {
			return Reply{}, err
		}
		if retrieval.RuneLen(content) < c.limits.MinContentLength {
			return Reply{Text: MsgNotFound, Path: PathNotFound, Err: ErrRetrievalEmpty, Query: query}, nil
		}
		groundContext = retrieval.ArticleContext(content, c.limits.ArticleCharCap)
		path = PathArticle
	}

	messages := make([]*types.Message, 0, c.limits.HistoryWindow+1)
	for _, t := range types.Tail(recent, c.limits.HistoryWindow) {
		messages = append(messages, t.Message())
	}
	messages = append(messages, types.NewUserMessage(c.prompts.Get(prompts.Simplification, prompts.Vars{
		"context": groundContext,
		"query":   query,
	})))

	c.log.Debug().
		Int("messages", len(messages)).
		Int("tokens", c.tokenizer.CountMessagesTokens(messages)).
		Bool("estimated", c.tokenizer.Estimated()).
		Msg("generating response")

	answer, err := c.provider.Complete(ctx, messages)
	if err != nil {
		return Reply{}, errors.Wrap(err, "generate")
	}

	return c.persist(ctx, sessionID, query, answer.Content, path)
}

// persist appends the user turn and then the assistant turn.
func (c *Controller) persist(ctx context.Context, sessionID, query, text string, path Path) (Reply, error) {
	if err := c.store.Append(ctx, sessionID, types.RoleUser, query); err != nil {
		return Reply{}, errors.Wrap(err, "persist user turn")
	}
	if err := c.store.Append(ctx, sessionID, types.RoleAssistant, text); err != nil {
		return Reply{}, errors.Wrap(err, "persist assistant turn")
	}
	return Reply{Text: text, Path: path, Query: query}, nil
}
