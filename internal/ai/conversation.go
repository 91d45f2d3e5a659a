package ai

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	maxMessages  = 20
	keepMessages = 15
	maxEdits     = 10
	keepEdits    = 8

	// clear-old keeps only the most recent context
	clearOldMessages = 5
	clearOldEdits    = 3

	// DefaultSessionID is used when a request carries no session header
	DefaultSessionID = "default"
)

// ConversationMessage is a stored chat turn
type ConversationMessage struct {
	ID        string         `json:"id"`
	Role      string         `json:"role"`
	Content   string         `json:"content"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// ConversationEdit records a code edit requested during the conversation
type ConversationEdit struct {
	ID          string    `json:"id"`
	Prompt      string    `json:"userRequest"`
	EditType    string    `json:"editType"`
	TargetFiles []string  `json:"targetFiles"`
	Outcome     string    `json:"outcome"`
	Timestamp   time.Time `json:"timestamp"`
}

// MajorChange is a milestone in the project's evolution
type MajorChange struct {
	Description string    `json:"description"`
	Files       []string  `json:"filesAffected"`
	Timestamp   time.Time `json:"timestamp"`
}

// ProjectEvolution summarizes how the generated app changed over time
type ProjectEvolution struct {
	InitialState string        `json:"initialState,omitempty"`
	MajorChanges []MajorChange `json:"majorChanges"`
}

// ConversationSnapshot is the JSON view of a ConversationState
type ConversationSnapshot struct {
	ID               string                `json:"conversationId"`
	StartedAt        time.Time             `json:"startedAt"`
	LastUpdated      time.Time             `json:"lastUpdated"`
	Messages         []ConversationMessage `json:"messages"`
	Edits            []ConversationEdit    `json:"edits"`
	ProjectEvolution ProjectEvolution      `json:"projectEvolution"`
	UserPreferences  map[string]any        `json:"userPreferences"`
}

// ConversationState is the bounded chat and edit history of one session
type ConversationState struct {
	mu    sync.Mutex
	state ConversationSnapshot
	now   func() time.Time
}

// NewConversationState creates an empty conversation
func NewConversationState() *ConversationState {
	return newConversationState(time.Now)
}

func newConversationState(now func() time.Time) *ConversationState {
	ts := now()
	return &ConversationState{
		now: now,
		state: ConversationSnapshot{
			ID:              "conv-" + uuid.NewString(),
			StartedAt:       ts,
			LastUpdated:     ts,
			Messages:        []ConversationMessage{},
			Edits:           []ConversationEdit{},
			UserPreferences: map[string]any{},
			ProjectEvolution: ProjectEvolution{
				MajorChanges: []MajorChange{},
			},
		},
	}
}

// AddMessage appends a message; past maxMessages only the newest keepMessages remain
func (c *ConversationState) AddMessage(role, content string, metadata map[string]any) ConversationMessage {
	c.mu.Lock()
	defer c.mu.Unlock()

	msg := ConversationMessage{
		ID:        "msg-" + uuid.NewString(),
		Role:      role,
		Content:   content,
		Timestamp: c.now(),
		Metadata:  metadata,
	}
	c.state.Messages = append(c.state.Messages, msg)
	if len(c.state.Messages) > maxMessages {
		c.state.Messages = tail(c.state.Messages, keepMessages)
	}
	c.state.LastUpdated = msg.Timestamp
	return msg
}

// AddEdit appends an edit; past maxEdits only the newest keepEdits remain
func (c *ConversationState) AddEdit(prompt, editType string, targetFiles []string, outcome string) ConversationEdit {
	c.mu.Lock()
	defer c.mu.Unlock()

	edit := ConversationEdit{
		ID:          "edit-" + uuid.NewString(),
		Prompt:      prompt,
		EditType:    editType,
		TargetFiles: targetFiles,
		Outcome:     outcome,
		Timestamp:   c.now(),
	}
	c.state.Edits = append(c.state.Edits, edit)
	if len(c.state.Edits) > maxEdits {
		c.state.Edits = tail(c.state.Edits, keepEdits)
	}
	c.state.LastUpdated = edit.Timestamp
	return edit
}

// AddMajorChange records a project milestone
func (c *ConversationState) AddMajorChange(description string, files []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ts := c.now()
	c.state.ProjectEvolution.MajorChanges = append(c.state.ProjectEvolution.MajorChanges, MajorChange{
		Description: description,
		Files:       files,
		Timestamp:   ts,
	})
	c.state.LastUpdated = ts
}

// Update merges user preferences and the initial project state
func (c *ConversationState) Update(preferences map[string]any, initialState string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, v := range preferences {
		c.state.UserPreferences[k] = v
	}
	if initialState != "" {
		c.state.ProjectEvolution.InitialState = initialState
	}
	c.state.LastUpdated = c.now()
}

// ClearOld drops all but the most recent messages and edits
func (c *ConversationState) ClearOld() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Messages = tail(c.state.Messages, clearOldMessages)
	c.state.Edits = tail(c.state.Edits, clearOldEdits)
	c.state.LastUpdated = c.now()
}

// RecentMessages returns up to n of the newest messages
func (c *ConversationState) RecentMessages(n int) []ConversationMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return tail(c.state.Messages, n)
}

// Snapshot returns a copy safe to serialize while the state keeps changing
func (c *ConversationState) Snapshot() ConversationSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := c.state
	snap.Messages = append([]ConversationMessage(nil), c.state.Messages...)
	snap.Edits = append([]ConversationEdit(nil), c.state.Edits...)
	snap.ProjectEvolution.MajorChanges = append([]MajorChange(nil), c.state.ProjectEvolution.MajorChanges...)
	snap.UserPreferences = make(map[string]any, len(c.state.UserPreferences))
	for k, v := range c.state.UserPreferences {
		snap.UserPreferences[k] = v
	}
	return snap
}

// tail returns a fresh slice holding the last n elements of s
func tail[T any](s []T, n int) []T {
	if len(s) > n {
		s = s[len(s)-n:]
	}
	return append(make([]T, 0, len(s)), s...)
}

// SessionStore holds one ConversationState per session id
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]*ConversationState
	now      func() time.Time
}

// NewSessionStore creates an empty store
func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*ConversationState),
		now:      time.Now,
	}
}

// Get returns the session's conversation, creating it on first use
func (s *SessionStore) Get(id string) *ConversationState {
	if id == "" {
		id = DefaultSessionID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.sessions[id]
	if !ok {
		state = newConversationState(s.now)
		s.sessions[id] = state
	}
	return state
}

// Lookup returns the session's conversation without creating it
func (s *SessionStore) Lookup(id string) (*ConversationState, bool) {
	if id == "" {
		id = DefaultSessionID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.sessions[id]
	return state, ok
}

// Reset replaces the session's conversation with a fresh one
func (s *SessionStore) Reset(id string) *ConversationState {
	if id == "" {
		id = DefaultSessionID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	state := newConversationState(s.now)
	s.sessions[id] = state
	return state
}

// Len returns the number of tracked sessions
func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
