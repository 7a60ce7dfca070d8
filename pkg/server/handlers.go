package server

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/entrhq/medisimple/pkg/browser"
	"github.com/entrhq/medisimple/pkg/dialogue"
	"github.com/entrhq/medisimple/pkg/plan"
	"github.com/entrhq/medisimple/pkg/tasks"
	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
)

// Client-facing error texts.
const (
	errURLRequired      = "URL is required"
	errPageLoadTimeout  = "Page load timed out. Please check the URL and try again."
	errNotConnected     = "No browser connected. Call /connect first."
	errNotConnectedBare = "No browser connected."
	errNoArticle        = "Could not extract meaningful article content from this page."
	errInvalidBody      = "invalid JSON body"

	errSearchTermRequired = "search_term is required"
)

// defaultSession is used when a chat request names no session.
const defaultSession = "default"

type connectRequest struct {
	URL string `json:"url"`
}

type planRequest struct {
	Instruction string `json:"instruction"`
	DOM         string `json:"dom"`
}

type executeRequest struct {
	Actions string `json:"actions"`
	URL     string `json:"url"`
}

type clickBestRequest struct {
	SearchTerm string `json:"search_term"`
}

type chatRequest struct {
	Query     string `json:"query"`
	SessionID string `json:"session_id"`
}

type historyMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeOK(w http.ResponseWriter, v interface{}) {
	writeJSON(w, http.StatusOK, v)
}

func writeError(w http.ResponseWriter, msg string) {
	writeOK(w, map[string]string{"error": msg})
}

// decode reads a JSON body into v. An empty body leaves v untouched.
func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": errInvalidBody})
	return false
}

func stepLines(results []plan.StepResult) []string {
	lines := make([]string, len(results))
	for i, r := range results {
		lines[i] = r.String()
	}
	return lines
}

func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	var req connectRequest
	if !decode(w, r, &req) {
		return
	}
	url := strings.TrimSpace(req.URL)
	if url == "" {
		writeError(w, errURLRequired)
		return
	}
	if err := s.deps.Hosts.Check(url); err != nil {
		s.log.Warn().Str("url", url).Msg("connect refused")
		writeError(w, "Host not allowed: "+url)
		return
	}

	s.log.Info().Str("url", url).Msg("navigating")
	page, err := s.deps.Pages.Open(url, s.opts.ConnectTimeout)
	if err != nil {
		if browser.IsTimeout(err) {
			s.log.Error().Str("url", url).Msg("page load timed out")
			writeError(w, errPageLoadTimeout)
			return
		}
		s.log.Error().Err(err).Msg("connection error")
		writeError(w, err.Error())
		return
	}

	dom, err := browser.VisibleElements(page)
	if err != nil {
		s.log.Error().Err(err).Msg("dom extraction failed")
		writeError(w, err.Error())
		return
	}
	s.log.Info().Int("elements", len(dom)).Msg("extracted visible elements")
	writeOK(w, map[string]interface{}{"status": "connected", "dom": dom})
}

func (s *Server) handlePlan(w http.ResponseWriter, r *http.Request) {
	var req planRequest
	if !decode(w, r, &req) {
		return
	}
	text, err := s.deps.Planner.Plan(r.Context(), req.DOM, req.Instruction)
	if err != nil {
		s.log.Error().Err(err).Msg("planning error")
		writeError(w, err.Error())
		return
	}
	writeOK(w, map[string]string{"plan": text})
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	var req executeRequest
	if !decode(w, r, &req) {
		return
	}

	results, err := s.deps.Executor.Execute(r.Context(), req.Actions)
	var malformed *plan.MalformedPlanError
	switch {
	case err == nil:
		writeOK(w, map[string]interface{}{
			"status":  "success",
			"results": stepLines(results),
			"steps":   results,
		})
	case errors.Is(err, plan.ErrNoActivePage):
		writeError(w, errNotConnected)
	case errors.Is(err, plan.ErrNoPlanFound):
		writeOK(w, map[string]string{"status": "error", "message": "No JSON array found in actions"})
	case errors.As(err, &malformed):
		writeOK(w, map[string]string{"status": "error", "message": "Invalid action JSON: " + malformed.Err.Error()})
	default:
		s.log.Error().Err(err).Msg("execution error")
		writeOK(w, map[string]string{"status": "error", "message": err.Error()})
	}
}

func (s *Server) handleSimplify(w http.ResponseWriter, r *http.Request) {
	text, err := s.deps.Simplifier.Simplify(r.Context())
	switch {
	case err == nil:
		writeOK(w, map[string]string{"simplified": text})
	case errors.Is(err, plan.ErrNoActivePage):
		writeError(w, errNotConnectedBare)
	case errors.Is(err, dialogue.ErrNoArticle):
		writeError(w, errNoArticle)
	default:
		s.log.Error().Err(err).Msg("simplification error")
		writeError(w, err.Error())
	}
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	page, ok := s.deps.Pages.Current()
	if !ok {
		writeError(w, errNotConnectedBare)
		return
	}
	analysis, err := browser.AnalyzeSearch(page)
	if err != nil {
		s.log.Error().Err(err).Msg("page analysis error")
		writeError(w, err.Error())
		return
	}
	s.log.Info().Bool("search_page", analysis.IsSearchPage).Int("results", analysis.ResultCount).Msg("page analyzed")
	writeOK(w, analysis)
}

func (s *Server) handleClickBest(w http.ResponseWriter, r *http.Request) {
	var req clickBestRequest
	if !decode(w, r, &req) {
		return
	}
	term := strings.TrimSpace(req.SearchTerm)
	if term == "" {
		writeError(w, errSearchTermRequired)
		return
	}
	page, ok := s.deps.Pages.Current()
	if !ok {
		writeError(w, errNotConnectedBare)
		return
	}

	best, err := browser.OpenBestResult(page, term, s.opts.ConnectTimeout)
	switch {
	case err == nil:
		s.log.Info().Str("url", best.URL).Msg("opened best result")
		writeOK(w, map[string]interface{}{
			"status": "clicked",
			"result": "Clicked: " + best.Title,
			"title":  best.Title,
			"url":    best.URL,
		})
	case errors.Is(err, browser.ErrNotSearchPage):
		writeError(w, "Not a search results page")
	case errors.Is(err, browser.ErrNoResults):
		writeError(w, "No results found")
	case errors.Is(err, browser.ErrNoRelevantResult):
		writeError(w, "No relevant result found")
	case browser.IsTimeout(err):
		writeError(w, errPageLoadTimeout)
	default:
		s.log.Error().Err(err).Msg("click best result error")
		writeError(w, err.Error())
	}
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if !decode(w, r, &req) {
		return
	}
	session := req.SessionID
	if session == "" {
		session = defaultSession
	}

	reply := s.deps.Chat.Respond(r.Context(), session, req.Query)
	if errors.Is(reply.Err, dialogue.ErrEmptyQuery) {
		writeError(w, dialogue.MsgQueryRequired)
		return
	}
	writeOK(w, map[string]string{"response": reply.Text})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	session := chi.URLParam(r, "session_id")
	turns, err := s.deps.History.RecentWindow(r.Context(), session, s.opts.HistoryLimit)
	if err != nil {
		s.log.Error().Err(err).Str("session", session).Msg("history fetch error")
		writeOK(w, map[string]interface{}{"messages": []historyMessage{}})
		return
	}

	messages := make([]historyMessage, len(turns))
	for i, t := range turns {
		messages[i] = historyMessage{Role: string(t.Role), Content: t.Content}
	}
	writeOK(w, map[string]interface{}{"messages": messages})
}

func (s *Server) handleClearHistory(w http.ResponseWriter, r *http.Request) {
	session := chi.URLParam(r, "session_id")
	if err := s.deps.History.Clear(r.Context(), session); err != nil {
		s.log.Error().Err(err).Str("session", session).Msg("clear history error")
		writeError(w, err.Error())
		return
	}
	writeOK(w, map[string]string{"status": "cleared"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeOK(w, map[string]interface{}{
		"status":            "ok",
		"browser_connected": s.deps.Pages != nil && s.deps.Pages.HasPage(),
		"model":             s.deps.Model,
	})
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	list, err := s.deps.Tasks.List()
	if err != nil {
		s.log.Error().Err(err).Msg("list tasks error")
		writeError(w, err.Error())
		return
	}
	writeOK(w, map[string]interface{}{"tasks": list})
}

func (s *Server) handleSaveTask(w http.ResponseWriter, r *http.Request) {
	var t tasks.Task
	if !decode(w, r, &t) {
		return
	}
	if err := s.deps.Tasks.Save(t); err != nil {
		writeError(w, err.Error())
		return
	}
	s.log.Info().Str("task", t.Name).Msg("task saved")
	writeOK(w, map[string]string{"status": "saved", "name": t.Name})
}

func (s *Server) handleRunTask(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	results, err := s.deps.Runner.Run(r.Context(), name)
	switch {
	case err == nil:
		writeOK(w, map[string]interface{}{
			"status":  "success",
			"results": stepLines(results),
			"steps":   results,
		})
	case errors.Is(err, tasks.ErrTaskNotFound):
		writeError(w, "Task "+name+" not found")
	case browser.IsTimeout(err):
		writeError(w, errPageLoadTimeout)
	default:
		s.log.Error().Err(err).Str("task", name).Msg("task run error")
		writeError(w, err.Error())
	}
}
