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

	"github.com/aretw0/beamline"
	"github.com/aretw0/beamline/internal/logging"
	"github.com/aretw0/beamline/pkg/domain"
	"github.com/aretw0/beamline/pkg/plan"
	"github.com/aretw0/beamline/pkg/ports"
	"github.com/aretw0/beamline/pkg/registry"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"golang.org/x/sync/errgroup"
)

const (
	devicesURI = "beamline://devices"
	plansURI   = "beamline://plans"
)

// RunResponse is the structured result of the run tools.
type RunResponse struct {
	Result *domain.RunResult `json:"result,omitempty" jsonschema_description:"Summary of the run"`
	Error  string            `json:"error,omitempty" jsonschema_description:"Why the run did not complete, if it did not"`
}

// ReadResponse holds the readings of one device.
type ReadResponse struct {
	Device   string                    `json:"device" jsonschema_description:"The device name"`
	Readings map[string]domain.Reading `json:"readings" jsonschema_description:"Readings keyed by field"`
}

// Engine is the part of the beamline engine exposed to MCP clients.
type Engine interface {
	PlanNames() []string
	Devices() *registry.Registry
	Abort(reason string) bool
	Busy() (string, bool)
}

// Runner executes plans on behalf of the server.
type Runner interface {
	RunNamed(ctx context.Context, name string, overrides map[string]any) (*domain.RunResult, error)
	RunSpec(ctx context.Context, spec plan.Spec) (*domain.RunResult, error)
}

// Server exposes a beamline as an MCP Server.
type Server struct {
	engine    Engine
	runner    Runner
	store     ports.DocumentStore
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// Option configures the Server.
type Option func(*Server)

// WithStore enables the get_run tool.
func WithStore(store ports.DocumentStore) Option {
	return func(s *Server) {
		s.store = store
	}
}

// WithLogger sets the server logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer creates a new MCP Server instance.
func NewServer(engine Engine, runner Runner, opts ...Option) *Server {
	s := &Server{
		engine:    engine,
		runner:    runner,
		logger:    logging.NewNop(),
		mcpServer: server.NewMCPServer("beamline-mcp", strings.TrimSpace(beamline.Version)),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerTools()
	s.registerResources()
	return s
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves MCP over SSE on addr until ctx is done.
func (s *Server) ServeSSE(ctx context.Context, addr, baseURL string) error {
	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("MCP Server listening (SSE)", "address", addr)
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	})
	return g.Wait()
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("list_devices",
		mcp.WithDescription("List the beamline devices and what each can do (read, set, trigger, settle)."),
	), s.handleListDevices)

	s.mcpServer.AddTool(mcp.NewTool("read_device",
		mcp.WithDescription("Read the current values of a device."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Device name")),
		mcp.WithOutputSchema[ReadResponse](),
	), mcp.NewStructuredToolHandler(s.handleReadDevice))

	s.mcpServer.AddTool(mcp.NewTool("run_plan",
		mcp.WithDescription("Run one of the experiment's named plans and wait for it to finish."),
		mcp.WithString("plan", mcp.Required(), mcp.Description("Plan name")),
		mcp.WithString("overrides", mcp.Description("JSON object of parameters for this run only (optional)")),
		mcp.WithOutputSchema[RunResponse](),
	), mcp.NewStructuredToolHandler(s.handleRunPlan))

	s.mcpServer.AddTool(mcp.NewTool("run_spec",
		mcp.WithDescription("Build an ad-hoc plan from a kind and its parameters, run it and wait for it to finish."),
		mcp.WithString("kind", mcp.Required(), mcp.Description("Plan kind, e.g. scan, count, adaptive")),
		mcp.WithString("detectors", mcp.Description("JSON array of detector names")),
		mcp.WithString("args", mcp.Description("JSON object of plan parameters, including motor or axes")),
		mcp.WithOutputSchema[RunResponse](),
	), mcp.NewStructuredToolHandler(s.handleRunSpec))

	s.mcpServer.AddTool(mcp.NewTool("abort_run",
		mcp.WithDescription("Abort the active run. Its cleanup still executes."),
		mcp.WithString("reason", mcp.Description("Recorded in the stop document")),
	), s.handleAbort)

	if s.store != nil {
		s.mcpServer.AddTool(mcp.NewTool("get_run",
			mcp.WithDescription("Return the recorded documents of a run."),
			mcp.WithString("uid", mcp.Required(), mcp.Description("Run UID")),
		), s.handleGetRun)
	}
}

func (s *Server) handleListDevices(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.engine.Devices().Describe())
}

func (s *Server) handleReadDevice(ctx context.Context, request mcp.CallToolRequest, args map[string]any) (ReadResponse, error) {
	name, _ := args["name"].(string)
	dev, err := s.engine.Devices().Readable(name)
	if err != nil {
		return ReadResponse{}, err
	}
	readings, err := dev.Read(ctx)
	if err != nil {
		return ReadResponse{}, fmt.Errorf("read failed: %w", err)
	}
	return ReadResponse{Device: name, Readings: readings}, nil
}

func (s *Server) handleRunPlan(ctx context.Context, request mcp.CallToolRequest, args map[string]any) (RunResponse, error) {
	name, _ := args["plan"].(string)
	var overrides map[string]any
	if raw, ok := args["overrides"].(string); ok && raw != "" {
		if err := json.Unmarshal([]byte(raw), &overrides); err != nil {
			return RunResponse{}, fmt.Errorf("invalid overrides: %w", err)
		}
	}
	return s.respond(s.runner.RunNamed(context.WithoutCancel(ctx), name, overrides))
}

func (s *Server) handleRunSpec(ctx context.Context, request mcp.CallToolRequest, args map[string]any) (RunResponse, error) {
	spec := plan.Spec{}
	spec.Kind, _ = args["kind"].(string)
	if raw, ok := args["detectors"].(string); ok && raw != "" {
		if err := json.Unmarshal([]byte(raw), &spec.Detectors); err != nil {
			return RunResponse{}, fmt.Errorf("invalid detectors: %w", err)
		}
	}
	if raw, ok := args["args"].(string); ok && raw != "" {
		if err := json.Unmarshal([]byte(raw), &spec.Args); err != nil {
			return RunResponse{}, fmt.Errorf("invalid args: %w", err)
		}
	}
	return s.respond(s.runner.RunSpec(context.WithoutCancel(ctx), spec))
}

func (s *Server) respond(res *domain.RunResult, err error) (RunResponse, error) {
	if res == nil {
		return RunResponse{}, err
	}
	resp := RunResponse{Result: res}
	if err != nil {
		s.logger.Warn("MCP run did not complete", "run_uid", res.UID, "status", res.Status, "error", err)
		resp.Error = err.Error()
	}
	return resp, nil
}

func (s *Server) handleAbort(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	reason := request.GetString("reason", "aborted over mcp")
	uid, busy := s.engine.Busy()
	if !busy || !s.engine.Abort(reason) {
		return mcp.NewToolResultText("no run in progress"), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("abort requested for run %s", uid)), nil
}

func (s *Server) handleGetRun(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	uid, err := request.RequireString("uid")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	records, err := s.store.Load(ctx, uid)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("load failed: %v", err)), nil
	}
	return jsonResult(records)
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(devicesURI, "Beamline Devices",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		return jsonResource(devicesURI, s.engine.Devices().Describe())
	})

	s.mcpServer.AddResource(mcp.NewResource(plansURI, "Experiment Plans",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		return jsonResource(plansURI, map[string][]string{
			"plans": s.engine.PlanNames(),
			"kinds": plan.Kinds(),
		})
	})
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encode failed: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func jsonResource(uri string, v any) ([]mcp.ResourceContents, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", uri, err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}
