package mcpserver

import (
	"context"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/nerrad567/cadbridge/internal/envelope"
)

// Bridge is the daemon surface the tools need.
type Bridge interface {
	CallEnvelope(ctx context.Context, method string, params ...any) (envelope.Envelope, error)
	Screenshot(ctx context.Context, view string, width, height int) ([]byte, bool, error)
}

// Logger receives tool failures.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any) {}
func (noopLogger) Warn(string, ...any) {}

// Options configures a Server.
type Options struct {
	// TextOnly suppresses screenshots after object-level tools.
	TextOnly bool
	Version  string
	Logger   Logger
}

// Server is an MCP server backed by a Bridge.
type Server struct {
	mcpServer *mcp.Server
	bridge    Bridge
	textOnly  bool
	logger    Logger
}

// New creates a server with every tool and prompt registered.
func New(bridge Bridge, opts Options) (*Server, error) {
	if bridge == nil {
		return nil, errors.New("mcpserver: bridge is required")
	}
	if opts.Version == "" {
		opts.Version = "dev"
	}
	if opts.Logger == nil {
		opts.Logger = noopLogger{}
	}

	s := &Server{
		mcpServer: mcp.NewServer(&mcp.Implementation{Name: "cadbridge", Version: opts.Version}, nil),
		bridge:    bridge,
		textOnly:  opts.TextOnly,
		logger:    opts.Logger,
	}
	s.registerTools()
	s.mcpServer.AddPrompt(assetCreationPrompt(), assetCreationPromptHandler)
	return s, nil
}

// Run serves MCP over transport until ctx is cancelled or the client
// disconnects.
func (s *Server) Run(ctx context.Context, transport mcp.Transport) error {
	s.logger.Info("mcp server starting")
	err := s.mcpServer.Run(ctx, transport)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("mcp server: %w", err)
	}
	return nil
}

// RunStdio serves MCP over the process's stdin and stdout.
func (s *Server) RunStdio(ctx context.Context) error {
	return s.Run(ctx, &mcp.StdioTransport{})
}
