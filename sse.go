package jiramcp

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/tmaxmax/go-sse"

	"github.com/koveh/jira-mcp/jira"
)

// SSEServer exposes the agent protocol over HTTP with Server-Sent Events. A
// GET on the stream endpoint opens a long-lived event stream for a session,
// POSTs on the same path deliver inbound JSON-RPC messages. Responses are
// pushed onto the session's queue for delivery over the stream and echoed in
// the POST response body for clients that do not consume the stream.
//
// The handlers are framework-agnostic http.Handlers and can be mounted on any
// router.
//
// Instances should be created using NewSSEServer.
type SSEServer struct {
	registry  *Registry
	processor Processor
	basePath  string
	publicURL string
	heartbeat time.Duration
	logger    *slog.Logger
}

// SSEServerOption represents the options for the SSEServer.
type SSEServerOption func(*SSEServer)

type createSessionRequest struct {
	BaseURL  string `json:"base_url"`
	Email    string `json:"email"`
	APIToken string `json:"api_token"`
}

type createSessionResponse struct {
	SessionID string `json:"session_id"`
	Token     string `json:"token"`
	MCPURL    string `json:"mcp_url"`
}

var defaultHeartbeatInterval = 30 * time.Second

// NewSSEServer creates an SSE server serving sessions from the given registry.
// basePath is the path prefix under which the stream and message endpoints
// are mounted, e.g. "/mcp".
func NewSSEServer(registry *Registry, processor Processor, basePath string, options ...SSEServerOption) *SSEServer {
	s := &SSEServer{
		registry:  registry,
		processor: processor,
		basePath:  strings.TrimSuffix(basePath, "/"),
		heartbeat: defaultHeartbeatInterval,
		logger:    slog.Default(),
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

// WithSSEServerLogger sets the logger used by the SSE server.
func WithSSEServerLogger(logger *slog.Logger) SSEServerOption {
	return func(s *SSEServer) {
		s.logger = logger
	}
}

// WithHeartbeatInterval sets how long the stream waits for a queued message
// before emitting a keep-alive comment frame.
func WithHeartbeatInterval(d time.Duration) SSEServerOption {
	return func(s *SSEServer) {
		s.heartbeat = d
	}
}

// WithPublicURL sets the externally visible base URL used when advertising
// connect URLs in session-creation responses.
func WithPublicURL(u string) SSEServerOption {
	return func(s *SSEServer) {
		s.publicURL = strings.TrimSuffix(u, "/")
	}
}

// HandleSSE returns the http.Handler for the GET stream endpoint. It resolves
// the session from the last path segment, emits one handshake event carrying
// the message endpoint path, then forwards queued messages as "message"
// events, interleaved with keep-alive comments while the queue is idle. The
// stream only ends when the peer disconnects.
func (s *SSEServer) HandleSSE() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := s.tokenFromPath(r.URL.Path)
		sess, err := s.registry.Resolve(r.Context(), token)
		if err != nil {
			s.logger.Warn("failed to resolve session", slog.String("err", err.Error()))
			writeJSONError(w, http.StatusUnauthorized, "Invalid session")
			return
		}

		stream, err := sse.Upgrade(w, r)
		if err != nil {
			s.logger.Error("failed to upgrade session", slog.String("err", err.Error()))
			http.Error(w, "failed to upgrade session", http.StatusInternalServerError)
			return
		}

		// Handshake: tell the peer where to POST subsequent messages.
		endpoint := &sse.Message{Type: sse.Type("endpoint")}
		endpoint.AppendData(s.basePath + "/" + token)
		if err := stream.Send(endpoint); err != nil {
			s.logger.Error("failed to write handshake event", slog.String("err", err.Error()))
			return
		}
		if err := stream.Flush(); err != nil {
			s.logger.Error("failed to flush handshake event", slog.String("err", err.Error()))
			return
		}

		s.logger.Info("stream opened", slog.String("sessionID", sess.ID()))
		s.stream(r.Context(), stream, sess)
		s.logger.Info("stream closed", slog.String("sessionID", sess.ID()))
	})
}

func (s *SSEServer) stream(ctx context.Context, stream *sse.Session, sess *Session) {
	for {
		msg, ok := sess.NextMessage(ctx, s.heartbeat)
		if !ok {
			if ctx.Err() != nil {
				return
			}
			// Idle: emit a comment frame so intermediaries keep the
			// connection open.
			keepalive := &sse.Message{}
			keepalive.AppendComment("keepalive")
			if err := stream.Send(keepalive); err != nil {
				return
			}
			if err := stream.Flush(); err != nil {
				return
			}
			continue
		}

		bs, err := json.Marshal(msg)
		if err != nil {
			s.logger.Error("failed to marshal queued message", slog.String("err", err.Error()))
			continue
		}
		event := &sse.Message{Type: sse.Type("message")}
		event.AppendData(string(bs))
		if err := stream.Send(event); err != nil {
			return
		}
		if err := stream.Flush(); err != nil {
			return
		}
	}
}

// HandleMessage returns the http.Handler for POSTs on the stream path. The
// inbound JSON-RPC message is processed synchronously, the response is queued
// on the session for stream delivery and also returned in the POST body.
// Notifications are acknowledged with 202 and produce nothing.
func (s *SSEServer) HandleMessage() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := s.tokenFromPath(r.URL.Path)
		sess, err := s.registry.Resolve(r.Context(), token)
		if err != nil {
			s.logger.Warn("failed to resolve session", slog.String("err", err.Error()))
			writeJSONError(w, http.StatusUnauthorized, "Invalid session")
			return
		}

		var msg JSONRPCMessage
		if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
			s.logger.Warn("failed to decode message", slog.String("err", err.Error()))
			writeJSONError(w, http.StatusBadRequest, "Malformed message")
			return
		}

		resp, ok := s.processor.Process(r.Context(), sess.Tools(), msg)
		if !ok {
			w.WriteHeader(http.StatusAccepted)
			return
		}

		s.registry.Enqueue(sess.ID(), resp)

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			s.logger.Warn("failed to write response", slog.String("err", err.Error()))
		}
	})
}

// HandleCreateSession returns the http.Handler for explicit session creation.
// It validates the posted credentials, allocates a session and returns its
// identifier together with a credential token usable directly as a stream
// path segment.
func (s *SSEServer) HandleCreateSession() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req createSessionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, http.StatusBadRequest, "Malformed request body")
			return
		}
		if req.BaseURL == "" || req.Email == "" || req.APIToken == "" {
			writeJSONError(w, http.StatusBadRequest, "base_url, email, api_token required")
			return
		}

		cfg := jira.Config{BaseURL: req.BaseURL, Email: req.Email, APIToken: req.APIToken}
		sess, err := s.registry.Create(r.Context(), cfg)
		if err != nil {
			s.logger.Warn("failed to create session", slog.String("err", err.Error()))
			writeJSONError(w, http.StatusUnauthorized, "Authentication failed")
			return
		}

		token, err := EncodeToken(cfg)
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, "Failed to encode token")
			return
		}

		resp := createSessionResponse{
			SessionID: sess.ID(),
			Token:     token,
			MCPURL:    s.publicURL + s.basePath + "/" + token,
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			s.logger.Warn("failed to write response", slog.String("err", err.Error()))
		}
	})
}

func (s *SSEServer) tokenFromPath(path string) string {
	trimmed := strings.TrimPrefix(path, s.basePath)
	return strings.Trim(trimmed, "/")
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
