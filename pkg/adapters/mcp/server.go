// Package mcp exposes insurai sessions as Model Context Protocol tools, so an
// assistant can drive a flow on behalf of a customer.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/insurai"
	"github.com/aretw0/insurai/internal/logging"
	presentation "github.com/aretw0/insurai/internal/presentation/graph"
	"github.com/aretw0/insurai/pkg/domain"
	"github.com/aretw0/insurai/pkg/graph"
	"github.com/aretw0/insurai/pkg/runner"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Engine defines what the MCP server needs from insurai.Engine.
type Engine interface {
	Flows() []string
	Flow(name string) (*graph.Graph, bool)
	StartSession(ctx context.Context, flow string, inputs ...domain.Input) (insurai.Result, error)
	Advance(ctx context.Context, sessionID string, inputs ...domain.Input) (insurai.Result, error)
	Session(ctx context.Context, sessionID string) (*domain.SessionRecord, error)
	EndSession(ctx context.Context, sessionID string) (*domain.State, error)
}

// Server wraps the engine and exposes it as an MCP Server.
type Server struct {
	engine    Engine
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// NewServer creates a new MCP Server instance.
func NewServer(engine Engine, logger *slog.Logger) *Server {
	if logger == nil {
		logger = logging.NewNop()
	}
	s := &Server{
		engine:    engine,
		logger:    logger,
		mcpServer: server.NewMCPServer("insurai-mcp", strings.TrimSpace(insurai.Version)),
	}
	s.registerTools()
	s.registerResources()
	return s
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves the MCP endpoints on addr until ctx is done.
func (s *Server) ServeSSE(ctx context.Context, addr string) error {
	host := addr
	if strings.HasPrefix(host, ":") {
		host = "localhost" + host
	}
	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL("http://"+host))

	mux := http.NewServeMux()
	mux.Handle("/sse", sseServer.SSEHandler())
	mux.Handle("/message", sseServer.MessageHandler())
	httpServer := &http.Server{Addr: addr, Handler: mux}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("list_flows",
		mcp.WithDescription("List the conversation flows that can be started."),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return mcp.NewToolResultText(strings.Join(s.engine.Flows(), "\n")), nil
	})

	s.mcpServer.AddTool(mcp.NewTool("start_session",
		mcp.WithDescription("Start a conversation of a flow. Returns the session id and the first prompt."),
		mcp.WithString("flow", mcp.Required(), mcp.Description("Flow name: claims, onboarding or support")),
		mcp.WithString("inputs", mcp.Description(`JSON object of answers given up front, e.g. {"insurance_type":"health"}`)),
		mcp.WithOutputSchema[insurai.Result](),
	), mcp.NewStructuredToolHandler(s.handleStart))

	s.mcpServer.AddTool(mcp.NewTool("advance",
		mcp.WithDescription("Answer the prompt a session is waiting on."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session id returned by start_session")),
		mcp.WithString("text", mcp.Required(), mcp.Description("The customer's answer")),
		mcp.WithOutputSchema[insurai.Result](),
	), mcp.NewStructuredToolHandler(s.handleAdvance))

	s.mcpServer.AddTool(mcp.NewTool("end_session",
		mcp.WithDescription("End a session and return its final state."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session id")),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id := request.GetString("session_id", "")
		state, err := s.engine.EndSession(ctx, id)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("end failed: %v", err)), nil
		}
		b, _ := json.Marshal(state)
		return mcp.NewToolResultText(string(b)), nil
	})

	s.mcpServer.AddTool(mcp.NewTool("get_graph",
		mcp.WithDescription("Get the Mermaid diagram of a flow."),
		mcp.WithString("flow", mcp.Required(), mcp.Description("Flow name")),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		name := request.GetString("flow", "")
		g, ok := s.engine.Flow(name)
		if !ok {
			return mcp.NewToolResultError(fmt.Sprintf("%v: %q", domain.ErrUnknownFlow, name)), nil
		}
		return mcp.NewToolResultText(presentation.GenerateMermaid(g, nil)), nil
	})
}

func (s *Server) handleStart(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (insurai.Result, error) {
	flow, _ := args["flow"].(string)

	var inputs []domain.Input
	if raw, ok := args["inputs"].(string); ok && raw != "" {
		var answers map[string]any
		if err := json.Unmarshal([]byte(raw), &answers); err != nil {
			return insurai.Result{}, fmt.Errorf("inputs must be a JSON object: %w", err)
		}
		for name, value := range answers {
			if text, ok := value.(string); ok {
				clean, err := runner.SanitizeInput(text)
				if err != nil {
					return insurai.Result{}, fmt.Errorf("input %q rejected: %w", name, err)
				}
				value = clean
			}
			inputs = append(inputs, domain.Input{Name: name, Value: value})
		}
	}

	res, err := s.engine.StartSession(ctx, flow, inputs...)
	if err != nil {
		return insurai.Result{}, fmt.Errorf("start failed: %w", err)
	}
	return res, nil
}

func (s *Server) handleAdvance(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (insurai.Result, error) {
	id, _ := args["session_id"].(string)
	text, _ := args["text"].(string)

	clean, err := runner.SanitizeInput(text)
	if err != nil {
		s.logger.Warn("MCP advance: input rejected", "error", err, "size", len(text))
		return insurai.Result{}, fmt.Errorf("input rejected: %w", err)
	}

	rec, err := s.engine.Session(ctx, id)
	if err != nil {
		return insurai.Result{}, fmt.Errorf("advance failed: %w", err)
	}
	if rec.Awaiting == "" {
		return insurai.Result{}, errors.New("advance failed: the session is not waiting for input")
	}

	res, err := s.engine.Advance(ctx, id, domain.Input{Name: rec.Awaiting, Value: clean})
	if err != nil {
		return insurai.Result{}, fmt.Errorf("advance failed: %w", err)
	}
	return res, nil
}

func (s *Server) registerResources() {
	for _, name := range s.engine.Flows() {
		g, ok := s.engine.Flow(name)
		if !ok {
			continue
		}
		uri := "insurai://flows/" + name + "/graph"
		s.mcpServer.AddResource(mcp.NewResource(uri, "Flow "+name,
			mcp.WithMIMEType("text/vnd.mermaid"),
		), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
			return []mcp.ResourceContents{
				mcp.TextResourceContents{
					URI:      uri,
					MIMEType: "text/vnd.mermaid",
					Text:     presentation.GenerateMermaid(g, nil),
				},
			}, nil
		})
	}
}
