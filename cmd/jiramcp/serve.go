package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/spf13/cobra"

	jiramcp "github.com/koveh/jira-mcp"
	"github.com/koveh/jira-mcp/httpapi"
	"github.com/koveh/jira-mcp/jira"
	jiraserver "github.com/koveh/jira-mcp/servers/jira"
)

const serverVersion = "1.0.0"

func serverInfo() jiramcp.Info {
	return jiramcp.Info{Name: "jira-mcp", Version: serverVersion}
}

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run one of the server front-ends",
	}
	cmd.AddCommand(newServeHTTPCmd(), newServeSSECmd(), newServeStdioCmd())
	return cmd
}

func newServeHTTPCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "http",
		Short: "Serve the public REST API and dashboard",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := newLogger()
			server := httpapi.NewServer(httpapi.WithLogger(logger))

			logger.Info("serving REST API", slog.String("addr", addr))
			return http.ListenAndServe(addr, server.Handler())
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":4200", "Listen address")
	return cmd
}

func newServeSSECmd() *cobra.Command {
	var (
		addr        string
		publicURL   string
		heartbeat   time.Duration
		idleTimeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "sse",
		Short: "Serve the remote agent protocol over SSE",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := newLogger()

			registry := jiramcp.NewRegistry(
				func(client *jira.Client) jiramcp.ToolServer {
					return jiraserver.NewServer(client)
				},
				jiramcp.WithRegistryLogger(logger),
				jiramcp.WithIdleTimeout(idleTimeout),
			)
			processor := jiramcp.NewProcessor(serverInfo(), jiramcp.WithProcessorLogger(logger))

			opts := []jiramcp.SSEServerOption{
				jiramcp.WithSSEServerLogger(logger),
				jiramcp.WithHeartbeatInterval(heartbeat),
			}
			if publicURL != "" {
				opts = append(opts, jiramcp.WithPublicURL(publicURL))
			}
			sseServer := jiramcp.NewSSEServer(registry, processor, "/mcp", opts...)

			r := chi.NewRouter()
			r.Use(cors.Handler(cors.Options{
				AllowedOrigins: []string{"*"},
				AllowedMethods: []string{"GET", "POST", "OPTIONS"},
				AllowedHeaders: []string{"*"},
			}))
			r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				fmt.Fprintln(w, `{"status":"ok","service":"jira-mcp-sse"}`)
			})
			r.Post("/api/session", sseServer.HandleCreateSession().ServeHTTP)
			r.Get("/mcp/{token}", sseServer.HandleSSE().ServeHTTP)
			r.Post("/mcp/{token}", sseServer.HandleMessage().ServeHTTP)

			logger.Info("serving agent protocol over SSE", slog.String("addr", addr))
			return http.ListenAndServe(addr, r)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":4201", "Listen address")
	cmd.Flags().StringVar(&publicURL, "public-url", "", "Externally visible base URL advertised to clients")
	cmd.Flags().DurationVar(&heartbeat, "heartbeat", 30*time.Second, "Keep-alive interval for idle streams")
	cmd.Flags().DurationVar(&idleTimeout, "idle-timeout", 0, "Evict sessions idle for this long (0 disables)")
	return cmd
}

func newServeStdioCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stdio",
		Short: "Serve the agent protocol on stdin/stdout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// Logs must stay off stdout, the protocol owns it.
			logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

			client, err := clientFromEnv()
			if err != nil {
				return err
			}

			processor := jiramcp.NewProcessor(serverInfo(), jiramcp.WithProcessorLogger(logger))
			server := jiramcp.NewStdIOServer(
				os.Stdin, os.Stdout,
				processor,
				jiraserver.NewServer(client),
				jiramcp.WithStdIOServerLogger(logger),
			)
			return server.Serve(cmd.Context())
		},
	}
}

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, nil))
}
