package lectern

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// defaultSystemPrompt instructs the generator on tool use and answer shape.
const defaultSystemPrompt = `You are an assistant for questions about course materials.

You have one tool, search_course_content, which searches indexed course
material. Use it when the question is about specific course content or
lesson details. Answer general knowledge questions directly, without
searching. Use one search at most per question.

Answer from the search results when you searched. If the results do not
cover the question, say so. Be concise and do not mention the search
process in your answer.`

// Answer is the result of one question: the generated text plus the source
// labels of the material it drew on, empty when no retrieval happened.
type Answer struct {
	SessionID string
	Content   string
	Sources   []string
	Usage     Usage
}

type appConfig struct {
	provider   Provider
	tools      []Tool
	index      Index
	prompt     string
	maxHistory int
	logger     *slog.Logger
}

// AppOption configures an App.
type AppOption func(*appConfig)

// WithTools adds tools the generator may call.
func WithTools(tools ...Tool) AppOption {
	return func(c *appConfig) { c.tools = append(c.tools, tools...) }
}

// WithIndex attaches the index so the App can serve the course listing.
func WithIndex(index Index) AppOption {
	return func(c *appConfig) { c.index = index }
}

// WithPrompt replaces the default system prompt.
func WithPrompt(s string) AppOption {
	return func(c *appConfig) { c.prompt = s }
}

// WithMaxHistory sets the number of retained exchanges per session.
func WithMaxHistory(n int) AppOption {
	return func(c *appConfig) { c.maxHistory = n }
}

// WithLogger sets the logger. Defaults to a discarding logger.
func WithLogger(l *slog.Logger) AppOption {
	return func(c *appConfig) { c.logger = l }
}

// nopLogger discards all output. Used when WithLogger is not set.
var nopLogger = slog.New(slog.DiscardHandler)

// App ties the generator, tool registry, and session history into the
// question-answering front end.
type App struct {
	provider Provider
	registry *ToolRegistry
	sessions *SessionHistory
	index    Index
	prompt   string
	logger   *slog.Logger
}

// NewApp creates an App around the given generation provider.
func NewApp(provider Provider, opts ...AppOption) (*App, error) {
	if provider == nil {
		return nil, fmt.Errorf("lectern: provider is required")
	}
	c := appConfig{prompt: defaultSystemPrompt, maxHistory: defaultMaxHistory}
	for _, opt := range opts {
		opt(&c)
	}
	if c.logger == nil {
		c.logger = nopLogger
	}

	registry := NewToolRegistry()
	for _, t := range c.tools {
		registry.Add(t)
	}

	return &App{
		provider: provider,
		registry: registry,
		sessions: NewSessionHistory(c.maxHistory),
		index:    c.index,
		prompt:   c.prompt,
		logger:   c.logger,
	}, nil
}

// ListCourses returns the titles and lesson counts of all indexed courses,
// in ingestion order. Requires WithIndex.
func (a *App) ListCourses(ctx context.Context) ([]CourseStat, error) {
	if a.index == nil {
		return nil, fmt.Errorf("lectern: no index configured")
	}
	return a.index.ListCourses(ctx)
}

// Query answers one question. An empty sessionID starts a fresh session;
// the assigned ID is returned in the Answer so callers can continue it.
// The completed exchange is recorded in session history, and sources
// collected during the turn's retrievals are drained into the Answer.
func (a *App) Query(ctx context.Context, sessionID, question string) (Answer, error) {
	if sessionID == "" {
		sessionID = NewID()
	}

	messages := make([]ChatMessage, 0, 2+2*defaultMaxHistory)
	messages = append(messages, SystemMessage(a.prompt))
	messages = append(messages, a.sessions.Messages(sessionID)...)
	messages = append(messages, UserMessage(question))

	start := time.Now()
	result, err := runTurn(ctx, a.provider, a.registry, messages, a.logger)
	if err != nil {
		// Drop sources from the failed turn so they cannot leak into the
		// next answer.
		a.registry.DrainSources()
		return Answer{SessionID: sessionID}, fmt.Errorf("query: %w", err)
	}

	sources := a.registry.DrainSources()
	a.sessions.Add(sessionID, question, result.Content)

	a.logger.Info("query answered",
		"session", sessionID,
		"sources", len(sources),
		"input_tokens", result.Usage.InputTokens,
		"output_tokens", result.Usage.OutputTokens,
		"duration", time.Since(start))

	return Answer{
		SessionID: sessionID,
		Content:   result.Content,
		Sources:   sources,
		Usage:     result.Usage,
	}, nil
}

// ClearSession discards a session's history.
func (a *App) ClearSession(sessionID string) {
	a.sessions.Clear(sessionID)
}
