package lectern

import "sync"

// defaultMaxHistory is the number of retained exchanges per session.
const defaultMaxHistory = 2

// Exchange is one completed user/assistant turn.
type Exchange struct {
	User      string
	Assistant string
}

// SessionHistory keeps bounded per-session conversation memory. Each session
// retains at most maxExchanges full exchanges; older ones are evicted whole,
// oldest first, so history never holds a user message without its answer.
// Safe for concurrent use.
type SessionHistory struct {
	mu           sync.Mutex
	maxExchanges int
	sessions     map[string][]Exchange
}

// NewSessionHistory creates a history retaining maxExchanges exchanges per
// session. maxExchanges <= 0 falls back to the default.
func NewSessionHistory(maxExchanges int) *SessionHistory {
	if maxExchanges <= 0 {
		maxExchanges = defaultMaxHistory
	}
	return &SessionHistory{
		maxExchanges: maxExchanges,
		sessions:     make(map[string][]Exchange),
	}
}

// Add records a completed exchange, evicting the oldest when the session is
// at capacity. An unknown session ID starts a new session.
func (h *SessionHistory) Add(sessionID, user, assistant string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	exchanges := append(h.sessions[sessionID], Exchange{User: user, Assistant: assistant})
	if over := len(exchanges) - h.maxExchanges; over > 0 {
		exchanges = exchanges[over:]
	}
	h.sessions[sessionID] = exchanges
}

// Messages returns the session's retained exchanges flattened into chat
// messages in chronological order. An unknown session yields nil.
func (h *SessionHistory) Messages(sessionID string) []ChatMessage {
	h.mu.Lock()
	defer h.mu.Unlock()

	exchanges := h.sessions[sessionID]
	if len(exchanges) == 0 {
		return nil
	}
	msgs := make([]ChatMessage, 0, len(exchanges)*2)
	for _, ex := range exchanges {
		msgs = append(msgs, UserMessage(ex.User), AssistantMessage(ex.Assistant))
	}
	return msgs
}

// Clear discards a session's history. Clearing an unknown session is a no-op.
func (h *SessionHistory) Clear(sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.sessions, sessionID)
}
