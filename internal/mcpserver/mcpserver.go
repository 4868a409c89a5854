// Package mcpserver exposes the AnyList services as MCP tools.
package mcpserver

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/mwopitz/anylist-daemon/internal/rpc"
	"github.com/mwopitz/anylist-daemon/internal/services"
)

// ServiceCaller calls the services of a running AnyList Daemon.
type ServiceCaller interface {
	CallService(ctx context.Context, service string, data map[string]any, returnResponse bool) (*rpc.ServiceResponse, error)
}

// Server serves the services over the MCP protocol.
type Server struct {
	logger *slog.Logger
	caller ServiceCaller
	server *mcp.Server
}

// New creates a server with one tool per service.
func New(caller ServiceCaller, name, version string, logger *slog.Logger) (*Server, error) {
	s := &Server{
		logger: cmp.Or(logger, slog.Default()),
		caller: caller,
		server: mcp.NewServer(&mcp.Implementation{
			Name:    name,
			Version: version,
		}, nil),
	}
	for _, def := range services.Definitions() {
		schema, err := inputSchema(def.Fields)
		if err != nil {
			return nil, fmt.Errorf("cannot describe %s: %w", def.Name, err)
		}
		s.server.AddTool(&mcp.Tool{
			Name:        def.Name,
			Description: def.Description,
			InputSchema: schema,
		}, s.handler(def.Name))
	}
	return s, nil
}

// Serve reads requests from in and writes responses to out. It blocks until
// ctx is cancelled or the transport closes.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	transport := &mcp.IOTransport{
		Reader: io.NopCloser(in),
		Writer: nopWriteCloser{out},
	}
	return s.run(ctx, transport)
}

func (s *Server) run(ctx context.Context, transport mcp.Transport) error {
	return s.server.Run(ctx, transport)
}

// handler calls the named service. Tools always ask for a response, so the
// result text is the JSON service response.
func (s *Server) handler(service string) mcp.ToolHandler {
	return func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		data := map[string]any{}
		if args := req.Params.Arguments; len(args) > 0 {
			if err := json.Unmarshal(args, &data); err != nil {
				return errorResult(fmt.Errorf("invalid arguments: %w", err)), nil
			}
		}
		resp, err := s.caller.CallService(ctx, service, data, true)
		if err != nil {
			s.logger.WarnContext(ctx, "tool call failed", "tool", service, "cause", err)
			return errorResult(err), nil
		}
		text, err := json.Marshal(resp)
		if err != nil {
			return errorResult(err), nil
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: string(text)}},
		}, nil
	}
}

func errorResult(err error) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: err.Error()}},
		IsError: true,
	}
}

type schemaProperty struct {
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
}

type objectSchema struct {
	Type       string                    `json:"type"`
	Properties map[string]schemaProperty `json:"properties"`
	Required   []string                  `json:"required,omitempty"`
}

// inputSchema builds the JSON schema of the service fields. All fields are
// strings.
func inputSchema(fields []services.Field) (json.RawMessage, error) {
	schema := objectSchema{
		Type:       "object",
		Properties: make(map[string]schemaProperty, len(fields)),
	}
	for _, f := range fields {
		schema.Properties[f.Name] = schemaProperty{Type: "string", Description: f.Description}
		if f.Required {
			schema.Required = append(schema.Required, f.Name)
		}
	}
	return json.Marshal(schema)
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }
