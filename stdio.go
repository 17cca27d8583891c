package jiramcp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
)

// StdIOServer serves the agent protocol over newline-delimited JSON-RPC
// messages on an io.Reader/io.Writer pair, typically stdin/stdout. It hosts a
// single implicit session whose upstream credentials are fixed at
// construction time.
//
// Instances should be created using NewStdIOServer.
type StdIOServer struct {
	reader    io.Reader
	writer    io.Writer
	processor Processor
	tools     ToolServer
	logger    *slog.Logger

	writeMu sync.Mutex
}

// StdIOServerOption represents the options for the StdIOServer.
type StdIOServerOption func(*StdIOServer)

// NewStdIOServer creates a StdIOServer reading requests from reader and
// writing responses to writer, dispatching tool calls to the given tool
// server.
func NewStdIOServer(reader io.Reader, writer io.Writer, processor Processor, tools ToolServer, options ...StdIOServerOption) *StdIOServer {
	s := &StdIOServer{
		reader:    reader,
		writer:    writer,
		processor: processor,
		tools:     tools,
		logger:    slog.Default(),
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

// WithStdIOServerLogger sets the logger used by the server.
func WithStdIOServerLogger(logger *slog.Logger) StdIOServerOption {
	return func(s *StdIOServer) {
		s.logger = logger
	}
}

// Serve processes messages until the reader is exhausted or the context is
// cancelled. Malformed lines are logged and skipped, the loop never dies on a
// single bad message.
func (s *StdIOServer) Serve(ctx context.Context) error {
	// Use bufio.Reader instead of bufio.Scanner to avoid max token size errors.
	reader := bufio.NewReader(s.reader)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		line, err := reader.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				if strings.TrimSpace(line) != "" {
					s.handleLine(ctx, line)
				}
				return nil
			}
			return err
		}

		line = strings.TrimSuffix(line, "\n")
		if line == "" {
			continue
		}
		s.handleLine(ctx, line)
	}
}

func (s *StdIOServer) handleLine(ctx context.Context, line string) {
	var msg JSONRPCMessage
	if err := json.Unmarshal([]byte(line), &msg); err != nil {
		s.logger.Error("failed to unmarshal message", "err", err)
		return
	}

	resp, ok := s.processor.Process(ctx, s.tools, msg)
	if !ok {
		return
	}

	if err := s.write(resp); err != nil {
		s.logger.Error("failed to write response", "err", err)
	}
}

func (s *StdIOServer) write(msg JSONRPCMessage) error {
	bs, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	// Append newline to maintain message framing protocol
	bs = append(bs, '\n')

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_, err = s.writer.Write(bs)
	return err
}
