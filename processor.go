package jiramcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
)

// Processor translates agent-protocol requests into tool server calls. It is
// stateless per call: no handshake ordering is tracked, any message is
// accepted at any time.
//
// Every request carrying an id produces exactly one response with the same
// id, notifications produce none. Failures are returned as structured
// JSON-RPC error objects so the transport can always emit a well-formed
// reply.
type Processor struct {
	info   Info
	logger *slog.Logger
}

// ProcessorOption represents the options for the Processor.
type ProcessorOption func(*Processor)

// NewProcessor creates a request processor that reports the given server info
// during initialization.
func NewProcessor(info Info, options ...ProcessorOption) Processor {
	p := Processor{
		info:   info,
		logger: slog.Default(),
	}
	for _, opt := range options {
		opt(&p)
	}
	return p
}

// WithProcessorLogger sets the logger used by the processor.
func WithProcessorLogger(logger *slog.Logger) ProcessorOption {
	return func(p *Processor) {
		p.logger = logger
	}
}

// Process handles a single inbound message against the given tool server.
// The boolean result is false when the message is a notification and no
// response must be sent.
func (p Processor) Process(ctx context.Context, tools ToolServer, msg JSONRPCMessage) (JSONRPCMessage, bool) {
	if msg.ID == "" {
		// Notification. The only one this server understands is
		// notifications/initialized, and it requires no action either way.
		if msg.Method != methodNotificationsInitialized {
			p.logger.Debug("ignoring notification", slog.String("method", msg.Method))
		}
		return JSONRPCMessage{}, false
	}

	switch msg.Method {
	case methodInitialize:
		return p.result(msg.ID, initializeResult{
			ProtocolVersion: protocolVersion,
			Capabilities:    ServerCapabilities{Tools: &ToolsCapability{}},
			ServerInfo:      p.info,
		})
	case methodPing:
		return p.result(msg.ID, struct{}{})
	case MethodToolsList:
		result, err := tools.ListTools(ctx)
		if err != nil {
			return p.error(msg.ID, jsonRPCInternalErrorCode, err.Error()), true
		}
		return p.result(msg.ID, result)
	case MethodToolsCall:
		var params CallToolParams
		if err := json.Unmarshal(msg.Params, &params); err != nil {
			return p.error(msg.ID, jsonRPCInvalidParamsCode, fmt.Sprintf("failed to unmarshal params: %v", err)), true
		}
		result, err := tools.CallTool(ctx, params)
		if err != nil {
			return p.error(msg.ID, jsonRPCInternalErrorCode, err.Error()), true
		}
		return p.result(msg.ID, result)
	default:
		return p.error(msg.ID, jsonRPCMethodNotFoundCode, fmt.Sprintf("Unknown method: %s", msg.Method)), true
	}
}

func (p Processor) result(id MustString, result any) (JSONRPCMessage, bool) {
	bs, err := json.Marshal(result)
	if err != nil {
		return p.error(id, jsonRPCInternalErrorCode, fmt.Sprintf("failed to marshal result: %v", err)), true
	}
	return JSONRPCMessage{
		JSONRPC: JSONRPCVersion,
		ID:      id,
		Result:  bs,
	}, true
}

func (p Processor) error(id MustString, code int, message string) JSONRPCMessage {
	return JSONRPCMessage{
		JSONRPC: JSONRPCVersion,
		ID:      id,
		Error: &JSONRPCError{
			Code:    code,
			Message: message,
		},
	}
}
