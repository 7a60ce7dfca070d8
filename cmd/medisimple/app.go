package main

import (
	"github.com/entrhq/medisimple/pkg/browser"
	"github.com/entrhq/medisimple/pkg/config"
	"github.com/entrhq/medisimple/pkg/dialogue"
	"github.com/entrhq/medisimple/pkg/history"
	"github.com/entrhq/medisimple/pkg/llm/openai"
	"github.com/entrhq/medisimple/pkg/logging"
	"github.com/entrhq/medisimple/pkg/plan"
	"github.com/entrhq/medisimple/pkg/prompts"
	"github.com/entrhq/medisimple/pkg/retrieval"
	"github.com/entrhq/medisimple/pkg/server"
	"github.com/entrhq/medisimple/pkg/tasks"
	"github.com/entrhq/medisimple/pkg/tokens"
	"github.com/pkg/errors"
)

// app holds the wired components shared by the subcommands.
type app struct {
	cfg *config.Config

	store      history.Store
	provider   *openai.Provider
	prompts    *prompts.Registry
	pages      *browser.PageManager
	hosts      *browser.HostMatcher
	chat       *dialogue.Controller
	planner    *plan.Planner
	executor   *plan.Executor
	simplifier *dialogue.Simplifier
	tasks      *tasks.Store
	runner     *tasks.Runner
}

// newApp wires every component. With ephemeral set the history lives in
// memory instead of the database.
func newApp(cfg *config.Config, ephemeral bool) (*app, error) {
	log := logging.New("app")

	registry, err := prompts.Load(cfg.Prompts.File, logging.New("prompts"))
	if err != nil {
		return nil, err
	}

	providerOpts := []openai.ProviderOption{
		openai.WithModel(cfg.LLM.Model),
		openai.WithBaseURL(cfg.LLM.BaseURL),
	}
	if cfg.LLM.Temperature != nil {
		providerOpts = append(providerOpts, openai.WithTemperature(*cfg.LLM.Temperature))
	}
	provider, err := openai.NewProvider(cfg.LLM.APIKey, providerOpts...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create LLM provider")
	}

	var store history.Store
	if ephemeral {
		store = history.NewMemoryStore()
	} else {
		sqlStore, err := history.NewSQLiteStore(cfg.Storage.Path)
		if err != nil {
			return nil, err
		}
		store = sqlStore
	}

	hosts, err := browser.NewHostMatcher(cfg.Browser.AllowedHosts)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	tokenizer, err := tokens.New()
	if err != nil {
		log.Warn().Err(err).Msg("tokenizer unavailable, estimating token counts")
	}

	pages := browser.NewPageManager(browser.PlaywrightLauncher(browser.PlaywrightOptions{
		Headless: cfg.Browser.Headless,
	}), logging.New("browser"))

	source := retrieval.New(pages, logging.New("retrieval"),
		retrieval.WithSearchURL(cfg.Browser.SearchURL),
		retrieval.WithNavigationTimeout(cfg.Browser.NavigationTimeout),
	)

	chat := dialogue.New(store, provider, registry, source, logging.New("dialogue"),
		dialogue.WithTokenizer(tokenizer),
		dialogue.WithLimits(dialogue.Limits{
			MaxQueryLength:   cfg.Dialogue.MaxQueryLength,
			ArticleCharCap:   cfg.Dialogue.ArticleCharCap,
			MinContentLength: cfg.Dialogue.MinContentLength,
			HistoryWindow:    cfg.Dialogue.HistoryWindow,
			FollowUpWindow:   cfg.Dialogue.FollowUpWindow,
		}),
	)

	executor := plan.NewExecutor(pages, logging.New("executor"), plan.WithStepTimeout(cfg.Browser.StepTimeout))
	taskStore := tasks.NewStore(cfg.Tasks.File)

	return &app{
		cfg:        cfg,
		store:      store,
		provider:   provider,
		prompts:    registry,
		pages:      pages,
		hosts:      hosts,
		chat:       chat,
		planner:    plan.NewPlanner(provider, registry, logging.New("planner")),
		executor:   executor,
		simplifier: dialogue.NewSimplifier(pages, provider, registry, cfg.Dialogue.SimplifyCharCap, logging.New("simplify")),
		tasks:      taskStore,
		runner:     tasks.NewRunner(taskStore, pages, executor, hosts, cfg.Browser.NavigationTimeout, logging.New("tasks")),
	}, nil
}

func (a *app) server() *server.Server {
	return server.New(server.Options{
		Addr:            a.cfg.Server.Addr,
		AllowedOrigins:  a.cfg.Server.AllowedOrigins,
		ShutdownTimeout: a.cfg.Server.ShutdownTimeout,
		ConnectTimeout:  a.cfg.Browser.NavigationTimeout,
		HistoryLimit:    a.cfg.Dialogue.HistoryPageLimit,
	}, server.Deps{
		Pages:      a.pages,
		Hosts:      a.hosts,
		Chat:       a.chat,
		History:    a.store,
		Planner:    a.planner,
		Executor:   a.executor,
		Simplifier: a.simplifier,
		Tasks:      a.tasks,
		Runner:     a.runner,
		Model:      a.provider.GetModel(),
	}, logging.New("server"))
}

// close releases the browser and the database.
func (a *app) close() error {
	browserErr := a.pages.Shutdown()
	if err := a.store.Close(); err != nil {
		return err
	}
	return browserErr
}
