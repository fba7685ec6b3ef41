// Command engine is the executable entry point for the workflow runtime:
// it loads configuration, wires the credential/resource/sandbox/action
// subsystems into an enginecore.Engine, registers a couple of demo action
// handlers (including one scripted via goja), executes a sample workflow
// graph, and reports the outcome via its exit code.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/flowforge/runtime/internal/action"
	"github.com/flowforge/runtime/internal/credential"
	"github.com/flowforge/runtime/internal/enginecore"
	"github.com/flowforge/runtime/internal/resilience"
	"github.com/flowforge/runtime/internal/resource"
	"github.com/flowforge/runtime/internal/sandbox"
	"github.com/flowforge/runtime/internal/value"
	"github.com/flowforge/runtime/pkg/config"
	"github.com/flowforge/runtime/pkg/errors"
	"github.com/flowforge/runtime/pkg/logging"
	"github.com/flowforge/runtime/pkg/metrics"
)

// Exit codes per the workflow execution contract: 0 success, 1 fatal
// configuration, 2 partial workflow failure, 3 budget exceeded,
// 4 cancelled, >=64 unexpected.
const (
	exitSuccess            = 0
	exitFatalConfiguration = 1
	exitPartialFailure     = 2
	exitBudgetExceeded     = 3
	exitCancelled          = 4
	exitUnexpected         = 64
)

func main() {
	addr := flag.String("addr", "", "health/metrics HTTP listen address (defaults to config)")
	configPath := flag.String("config", "", "path to a YAML configuration file")
	flag.Parse()

	if trimmed := *configPath; trimmed != "" {
		os.Setenv("CONFIG_FILE", trimmed)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger := logging.New("engine", cfg.Logging.Level, cfg.Logging.Format)

	eng, registry := buildEngine(cfg)

	listenAddr := *addr
	if listenAddr == "" {
		listenAddr = fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	}
	srv := startHealthServer(listenAddr)
	defer shutdownHealthServer(srv)

	registerDemoActions(registry)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	graph := demoGraph()
	budget := enginecore.ExecutionBudget{
		MaxWallClock:   cfg.Budget.MaxWallClock,
		MaxInvocations: cfg.Budget.MaxInvocations,
		MaxBytes:       cfg.Budget.MaxBytes,
	}

	start := time.Now()
	result, err := eng.ExecuteWorkflow(ctx, "demo-exec-1", "demo-workflow", graph, value.Integer(1), budget)
	duration := time.Since(start)

	if err != nil {
		logger.WithFields(map[string]interface{}{"error": err.Error()}).Error("workflow execution rejected")
		os.Exit(exitCodeForError(err))
	}

	outcome := "completed"
	switch {
	case result.BudgetExceeded:
		outcome = "budget_exceeded"
	case !result.Completed:
		outcome = "failed"
	}
	metrics.RecordWorkflowExecution("demo-workflow", outcome, duration)

	for nodeID, nodeErr := range result.Errors {
		logger.WithFields(map[string]interface{}{"node_id": nodeID, "error": nodeErr.Error()}).Warn("node failed")
	}
	for nodeID, out := range result.Outputs {
		logger.WithFields(map[string]interface{}{"node_id": nodeID, "output": out}).Info("node completed")
	}

	switch {
	case result.BudgetExceeded:
		os.Exit(exitBudgetExceeded)
	case ctx.Err() != nil:
		os.Exit(exitCancelled)
	case !result.Completed:
		os.Exit(exitPartialFailure)
	default:
		os.Exit(exitSuccess)
	}
}

func exitCodeForError(err error) int {
	switch errors.KindOf(err) {
	case errors.KindValidation:
		return exitFatalConfiguration
	case errors.KindCancelled:
		return exitCancelled
	default:
		return exitUnexpected
	}
}

// buildEngine wires the credential manager, resource manager, sandbox
// runner, action registry and runner, and bus into an enginecore.Engine.
func buildEngine(cfg *config.EngineConfig) (*enginecore.Engine, *action.Registry) {
	masterKey := cfg.Credential.EncryptionKey
	if masterKey == "" {
		masterKey = "dev-only-insecure-key-change-me!"
	}
	encryptor := credential.NewEncryptor(value.NewSecret([]byte(masterKey)))
	tokenCache := credential.NewTokenCache(cfg.Credential.TokenCacheSize)
	credManager := credential.NewManager(
		credential.NewMemoryStateStore(),
		tokenCache,
		credential.NewLocalLock(),
		credential.NewRegistry(),
		encryptor,
	)

	resourceManager := resource.NewManager(resource.Hierarchical)

	defaultPolicy := resilience.NewPolicyBuilder("default").
		WithTimeout(cfg.Resilience.TimeoutDefault, false).
		WithRetry(resilience.RetryConfig{
			MaxAttempts: cfg.Resilience.RetryMaxAttempts,
			Kind:        resilience.BackoffExponential,
			Base:        cfg.Resilience.RetryBase,
			Multiplier:  2.0,
			Cap:         cfg.Resilience.RetryCap,
			Jitter:      resilience.JitterFull,
		}).
		WithBulkhead(cfg.Resilience.BulkheadCapacity, cfg.Resilience.BulkheadAcquireWait).
		Build()

	bus := action.NewBus()
	registry := action.NewRegistry()
	runner := action.NewRunner(action.RunnerConfig{
		Registry:           registry,
		SandboxRunner:      sandbox.NewInProcessRunner(),
		Bus:                bus,
		ResourceProvider:   enginecore.NewResourceProvider(resourceManager),
		CredentialProvider: enginecore.NewCredentialProvider(credManager),
		Policies:           map[string]*resilience.Policy{"demo-service": defaultPolicy},
	})

	eng := enginecore.New(enginecore.Config{
		Actions:     registry,
		Runner:      runner,
		Resources:   resourceManager,
		Credentials: credManager,
		Sandbox:     sandbox.NewInProcessRunner(),
		Bus:         bus,
	})

	return eng, registry
}

func registerDemoActions(registry *action.Registry) {
	registry.Register(incrementAction{})
	registry.Register(action.NewScriptAction(scriptDoubleMetadata(), sandbox.ScriptHandler{
		EntryPoint: "handle",
		Script: `
			function handle(input) {
				console.log("doubling", input);
				return input * 2;
			}
		`,
	}))
}

// incrementAction is a plain compiled handler requiring no capabilities;
// it demonstrates an IsolationNone action.
type incrementAction struct{}

func (incrementAction) Metadata() action.Metadata {
	return action.Metadata{
		Key:            "demo.increment",
		Name:           "Increment",
		Classification: action.Process,
		Isolation:      sandbox.IsolationNone,
		TargetService:  "demo-service",
	}
}

func (incrementAction) Execute(ctx context.Context, actx action.ActionContext, input value.Value) (value.Value, error) {
	n, _ := input.AsInteger()
	return value.Integer(n + 1), nil
}

func scriptDoubleMetadata() action.Metadata {
	return action.Metadata{
		Key:            "demo.double",
		Name:           "Double (scripted)",
		Classification: action.Process,
		Isolation:      sandbox.IsolationInProcess,
		MaxOutputBytes: 4096,
	}
}

func demoGraph() enginecore.Graph {
	return enginecore.Graph{
		Nodes: map[string]enginecore.Node{
			"incr": {ID: "incr", ActionKey: "demo.increment"},
			"sum":  {ID: "sum", ActionKey: "demo.double", Disposition: enginecore.Continue},
		},
		Edges: []enginecore.Edge{{From: "incr", To: "sum"}},
	}
}

func startHealthServer(addr string) *healthServer {
	return newHealthServer(addr)
}

func shutdownHealthServer(s *healthServer) {
	if s == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.Shutdown(ctx)
}
