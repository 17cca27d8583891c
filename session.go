package jiramcp

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/koveh/jira-mcp/jira"
)

// ToolServer is implemented by domain servers exposing operations as tools on
// the agent-protocol surface.
type ToolServer interface {
	// ListTools returns the fixed catalog of available tools.
	ListTools(ctx context.Context) (ListToolsResult, error)

	// CallTool executes a specific tool with the given arguments.
	// Returns error if the tool is not found, arguments are invalid,
	// execution fails, or the context is cancelled.
	CallTool(ctx context.Context, params CallToolParams) (CallToolResult, error)
}

// ToolServerFactory builds the ToolServer bound to a session's upstream
// client.
type ToolServerFactory func(client *jira.Client) ToolServer

// Registry is the process-wide mapping from opaque session identifiers to
// live sessions. All map access happens under a single lock, per-session
// message queues are synchronized independently.
//
// Sessions are created either explicitly through Create or implicitly when a
// decodable credential token is used as a lookup key in Resolve. They live
// until Close is called or, when an idle timeout is configured, until the
// sweeper evicts them.
//
// Instances should be created using NewRegistry.
type Registry struct {
	tools       ToolServerFactory
	logger      *slog.Logger
	idleTimeout time.Duration
	newClient   func(jira.Config) *jira.Client

	mu       sync.Mutex
	sessions map[string]*Session
	byToken  map[string]string
}

// RegistryOption represents the options for the Registry.
type RegistryOption func(*Registry)

// Session binds a caller to a set of upstream credentials and a pending
// outbound message queue. Front-ends hold session identifiers only, the
// Registry owns the session records.
type Session struct {
	id      string
	client  *jira.Client
	tools   ToolServer
	queue   *messageQueue
	created time.Time

	mu         sync.Mutex
	lastActive time.Time
}

// NewRegistry creates a session registry whose sessions serve tools built by
// the given factory.
func NewRegistry(tools ToolServerFactory, options ...RegistryOption) *Registry {
	r := &Registry{
		tools:     tools,
		logger:    slog.Default(),
		newClient: func(cfg jira.Config) *jira.Client { return jira.NewClient(cfg) },
		sessions:  make(map[string]*Session),
		byToken:   make(map[string]string),
	}
	for _, opt := range options {
		opt(r)
	}
	return r
}

// WithRegistryLogger sets the logger used by the registry.
func WithRegistryLogger(logger *slog.Logger) RegistryOption {
	return func(r *Registry) {
		r.logger = logger
	}
}

// WithIdleTimeout evicts sessions that have not been touched for the given
// duration. Eviction runs lazily on registry access, a zero value disables it.
func WithIdleTimeout(d time.Duration) RegistryOption {
	return func(r *Registry) {
		r.idleTimeout = d
	}
}

// WithClientFactory overrides how upstream clients are built from
// credentials. Used by tests to point sessions at fake upstreams.
func WithClientFactory(f func(jira.Config) *jira.Client) RegistryOption {
	return func(r *Registry) {
		r.newClient = f
	}
}

// Create validates the given credentials with one live current-user call and,
// on success, allocates a session with a freshly generated identifier and an
// empty outbound queue. On validation failure nothing is created.
func (r *Registry) Create(ctx context.Context, cfg jira.Config) (*Session, error) {
	client := r.newClient(cfg)
	if _, err := client.CurrentUser(ctx); err != nil {
		return nil, fmt.Errorf("failed to validate credentials: %w", err)
	}

	sess := &Session{
		id:         uuid.New().String(),
		client:     client,
		tools:      r.tools(client),
		queue:      newMessageQueue(),
		created:    time.Now(),
		lastActive: time.Now(),
	}

	r.mu.Lock()
	r.sessions[sess.id] = sess
	r.mu.Unlock()

	r.logger.Info("session created", slog.String("sessionID", sess.id))
	return sess, nil
}

// Lookup returns the session with the given identifier, if it exists.
func (r *Registry) Lookup(sessionID string) (*Session, bool) {
	r.sweep()

	r.mu.Lock()
	sess, ok := r.sessions[sessionID]
	r.mu.Unlock()

	if ok {
		sess.touch()
	}
	return sess, ok
}

// Resolve turns a path-embedded token into a session. The token is tried as a
// session identifier first; failing that it is decoded as a credential token,
// reusing the session it minted before or transparently creating a new one.
func (r *Registry) Resolve(ctx context.Context, token string) (*Session, error) {
	if sess, ok := r.Lookup(token); ok {
		return sess, nil
	}

	r.mu.Lock()
	sessID, ok := r.byToken[token]
	r.mu.Unlock()
	if ok {
		if sess, found := r.Lookup(sessID); found {
			return sess, nil
		}
	}

	cfg, err := DecodeToken(token)
	if err != nil {
		return nil, fmt.Errorf("unknown session and undecodable token: %w", err)
	}

	sess, err := r.Create(ctx, cfg)
	if err != nil {
		return nil, err
	}

	// Index by token so a streaming GET and message POSTs carrying the same
	// token land on the same session and queue.
	r.mu.Lock()
	r.byToken[token] = sess.id
	r.mu.Unlock()

	return sess, nil
}

// Enqueue appends a message to a session's outbound queue. The message is
// silently dropped if the session no longer exists; delivery is at-most-once.
func (r *Registry) Enqueue(sessionID string, msg JSONRPCMessage) {
	sess, ok := r.Lookup(sessionID)
	if !ok {
		r.logger.Warn("dropping message for unknown session", slog.String("sessionID", sessionID))
		return
	}
	sess.queue.push(msg)
}

// Close removes a session from the registry. Messages still queued are
// discarded with it.
func (r *Registry) Close(sessionID string) {
	r.mu.Lock()
	delete(r.sessions, sessionID)
	for token, id := range r.byToken {
		if id == sessionID {
			delete(r.byToken, token)
		}
	}
	r.mu.Unlock()
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

func (r *Registry) sweep() {
	if r.idleTimeout == 0 {
		return
	}

	cutoff := time.Now().Add(-r.idleTimeout)

	r.mu.Lock()
	defer r.mu.Unlock()
	for id, sess := range r.sessions {
		sess.mu.Lock()
		idle := sess.lastActive.Before(cutoff)
		sess.mu.Unlock()
		if !idle {
			continue
		}
		delete(r.sessions, id)
		for token, sid := range r.byToken {
			if sid == id {
				delete(r.byToken, token)
			}
		}
		r.logger.Info("session evicted after idle timeout", slog.String("sessionID", id))
	}
}

// ID returns the unique identifier of this session.
func (s *Session) ID() string { return s.id }

// Client returns the upstream client bound to this session.
func (s *Session) Client() *jira.Client { return s.client }

// Tools returns the tool server bound to this session.
func (s *Session) Tools() ToolServer { return s.tools }

// CreatedAt returns the session creation time.
func (s *Session) CreatedAt() time.Time { return s.created }

// Enqueue appends a message to the session's outbound queue.
func (s *Session) Enqueue(msg JSONRPCMessage) {
	s.touch()
	s.queue.push(msg)
}

// NextMessage waits up to the given duration for a queued outbound message.
// The boolean result is false when the wait timed out or the context was
// cancelled before a message arrived.
func (s *Session) NextMessage(ctx context.Context, wait time.Duration) (JSONRPCMessage, bool) {
	return s.queue.next(ctx, wait)
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastActive = time.Now()
	s.mu.Unlock()
}

// messageQueue is an unbounded FIFO safe for concurrent producers and a
// single streaming consumer. The wake channel carries at most one pending
// signal, consumers re-check the slice after draining it.
type messageQueue struct {
	mu   sync.Mutex
	msgs []JSONRPCMessage
	wake chan struct{}
}

func newMessageQueue() *messageQueue {
	return &messageQueue{
		wake: make(chan struct{}, 1),
	}
}

func (q *messageQueue) push(msg JSONRPCMessage) {
	q.mu.Lock()
	q.msgs = append(q.msgs, msg)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *messageQueue) pop() (JSONRPCMessage, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.msgs) == 0 {
		return JSONRPCMessage{}, false
	}
	msg := q.msgs[0]
	q.msgs = q.msgs[1:]
	return msg, true
}

func (q *messageQueue) next(ctx context.Context, wait time.Duration) (JSONRPCMessage, bool) {
	timer := time.NewTimer(wait)
	defer timer.Stop()

	for {
		if msg, ok := q.pop(); ok {
			return msg, true
		}
		select {
		case <-ctx.Done():
			return JSONRPCMessage{}, false
		case <-timer.C:
			return JSONRPCMessage{}, false
		case <-q.wake:
		}
	}
}
