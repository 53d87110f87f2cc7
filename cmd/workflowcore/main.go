// Command workflowcore is the execution-core CLI: it loads a workflow
// definition (YAML or JSON), wires up in-memory or configured adapters,
// drives one execution to completion, and prints the resulting execution
// record — a thin harness for exercising dagengine/statemachine without a
// server process, adapted from cmd/agentflow's serve/version/help command
// dispatch, trimmed of the HTTP server, migrations, and API-key database.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/agentflow-runtime/workflowcore/adapters/agent/llmagent"
	"github.com/agentflow-runtime/workflowcore/adapters/eventbus/memorybus"
	"github.com/agentflow-runtime/workflowcore/adapters/tool"
	"github.com/agentflow-runtime/workflowcore/compensation"
	"github.com/agentflow-runtime/workflowcore/config"
	"github.com/agentflow-runtime/workflowcore/dagengine"
	"github.com/agentflow-runtime/workflowcore/domain"
	"github.com/agentflow-runtime/workflowcore/errorhandler"
	"github.com/agentflow-runtime/workflowcore/events"
	"github.com/agentflow-runtime/workflowcore/parser"
	"github.com/agentflow-runtime/workflowcore/scheduler"
	"github.com/agentflow-runtime/workflowcore/statemachine"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "run":
		runWorkflow(os.Args[2:])
	case "validate":
		runValidate(os.Args[2:])
	case "version":
		printVersion()
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func runWorkflow(args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	workflowPath := fs.String("workflow", "", "Path to workflow definition (YAML or JSON)")
	inputPath := fs.String("input", "", "Path to a JSON file of initial input (optional)")
	configPath := fs.String("config", "", "Path to config file")
	fs.Parse(args)

	if *workflowPath == "" {
		fmt.Fprintln(os.Stderr, "run: --workflow is required")
		os.Exit(1)
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := initLogger(cfg.Log)
	defer logger.Sync()

	wf, verrs := parser.ParseFile(*workflowPath)
	if len(verrs) > 0 {
		fmt.Fprintf(os.Stderr, "Invalid workflow definition:\n")
		for _, e := range verrs {
			fmt.Fprintf(os.Stderr, "  %s\n", e)
		}
		os.Exit(1)
	}

	input, err := loadInput(*inputPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load input: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	switch wf.Kind {
	case domain.KindStateMachine:
		inst, err := runStateMachine(ctx, cfg, wf, input, logger)
		if err != nil {
			logger.Error("workflow run failed", zap.Error(err))
			os.Exit(1)
		}
		printJSON(inst)
	default:
		result, err := runDAG(ctx, cfg, wf, input, logger)
		if err != nil {
			logger.Error("workflow run failed", zap.Error(err))
			os.Exit(1)
		}
		printJSON(result.Execution)
	}
}

func runDAG(ctx context.Context, cfg *config.Config, wf *domain.Workflow, input map[string]any, logger *zap.Logger) (*dagengine.RunResult, error) {
	agents, tools := newInvokers(logger)
	sched := scheduler.New(toSchedulerLimits(cfg.Scheduler), logger)
	breakers := errorhandler.NewRegistry(toBreakerConfig(cfg.CircuitBreaker), nil, logger)
	emitter := events.NewEmitter(logger)
	wireEventBus(cfg, emitter)

	registry := dagengine.NewRegistry(agents, tools)
	compensator := compensation.NewManager(compensation.NewLog(), toolCompensationInvoker{tools}, emitter, logger)
	engine := dagengine.New(registry, sched, breakers, emitter, logger).WithCompensator(compensator)

	return engine.Run(ctx, wf, input)
}

// toolCompensationInvoker runs a compensating action through the same tool
// registry ordinary tool nodes dispatch through, so a node's
// compensation_ref names a registered tool like any other.
type toolCompensationInvoker struct {
	tools *tool.Registry
}

func (t toolCompensationInvoker) InvokeCompensation(ctx context.Context, actionRef string, input map[string]any) (any, error) {
	return t.tools.InvokeTool(ctx, actionRef, input)
}

func runStateMachine(ctx context.Context, cfg *config.Config, wf *domain.Workflow, input map[string]any, logger *zap.Logger) (*domain.StateMachineInstance, error) {
	agents, tools := newInvokers(logger)
	emitter := events.NewEmitter(logger)
	wireEventBus(cfg, emitter)

	registry := statemachine.NewRegistry(agents, tools, emitter, logger)
	machine := statemachine.NewMachine(registry, emitter, logger)

	return machine.NewInstance(ctx, wf, input)
}

// newInvokers wires the reference in-memory collaborators: an empty tool
// registry (callers register their own tools before invoking nodes that
// need them) and an llmagent.Router with the Anthropic/OpenAI providers
// registered for whichever API keys are set in the environment. No agent
// ID is bound to a provider here, so agent nodes fail loudly rather than
// silently no-op.
func newInvokers(logger *zap.Logger) (*llmagent.Router, *tool.Registry) {
	router := llmagent.NewRouter(logger)
	if apiKey := os.Getenv("ANTHROPIC_API_KEY"); apiKey != "" {
		router.RegisterProvider(llmagent.NewAnthropicProvider(apiKey))
	}
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		router.RegisterProvider(llmagent.NewOpenAIProvider(apiKey))
	}
	return router, tool.NewRegistry(logger)
}

func wireEventBus(cfg *config.Config, emitter *events.Emitter) {
	if cfg.EventBus.Backend != "ws" {
		bus := memorybus.New()
		emitter.Subscribe(bus)
	}
}

func toSchedulerLimits(c config.SchedulerConfig) scheduler.Limits {
	return scheduler.Limits{
		GlobalConcurrency:   c.GlobalConcurrency,
		PerKindConcurrency:  c.PerKindConcurrency,
		PerAgentConcurrency: c.PerAgentConcurrency,
		RatePerSecond:       c.RatePerSecond,
		Burst:               c.Burst,
	}
}

func toBreakerConfig(c config.CircuitBreakerConfig) errorhandler.CircuitBreakerConfig {
	return errorhandler.CircuitBreakerConfig{
		FailureThreshold:           c.FailureThreshold,
		RecoveryTimeout:            c.RecoveryTimeout,
		HalfOpenMaxProbes:          c.HalfOpenMaxProbes,
		SuccessThresholdInHalfOpen: c.SuccessThresholdInHalfOpen,
	}
}

func runValidate(args []string) {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	workflowPath := fs.String("workflow", "", "Path to workflow definition (YAML or JSON)")
	fs.Parse(args)

	if *workflowPath == "" {
		fmt.Fprintln(os.Stderr, "validate: --workflow is required")
		os.Exit(1)
	}

	wf, verrs := parser.ParseFile(*workflowPath)
	if len(verrs) > 0 {
		fmt.Fprintln(os.Stderr, "Invalid workflow definition:")
		for _, e := range verrs {
			fmt.Fprintf(os.Stderr, "  %s\n", e)
		}
		os.Exit(1)
	}

	fmt.Printf("OK: %s v%s (%s, %d nodes)\n", wf.Name, wf.Version, wf.Kind, len(wf.Nodes))
}

func loadConfig(path string) (*config.Config, error) {
	loader := config.NewLoader()
	if path != "" {
		loader = loader.WithConfigPath(path)
	}
	cfg, err := loader.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadInput(path string) (map[string]any, error) {
	if path == "" {
		return map[string]any{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read input file: %w", err)
	}
	var input map[string]any
	if err := json.Unmarshal(data, &input); err != nil {
		return nil, fmt.Errorf("parse input JSON: %w", err)
	}
	return input, nil
}

func printJSON(v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to marshal result: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(data))
}

func printVersion() {
	fmt.Printf("workflowcore %s\n", Version)
	fmt.Printf("  Build Time: %s\n", BuildTime)
	fmt.Printf("  Git Commit: %s\n", GitCommit)
}

func printUsage() {
	fmt.Println(`workflowcore - workflow execution core CLI

Usage:
  workflowcore <command> [options]

Commands:
  run       Execute a workflow definition to completion
  validate  Parse and validate a workflow definition
  version   Show version information
  help      Show this help message

Options for 'run':
  --workflow <path>  Path to workflow definition (YAML or JSON)
  --input <path>     Path to a JSON file of initial input
  --config <path>    Path to configuration file (YAML)

Options for 'validate':
  --workflow <path>  Path to workflow definition (YAML or JSON)

Examples:
  workflowcore run --workflow examples/approval.yaml --input examples/input.json
  workflowcore validate --workflow examples/approval.yaml
  workflowcore version`)
}

func initLogger(cfg config.LogConfig) *zap.Logger {
	var level zapcore.Level
	switch cfg.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	var encoderConfig zapcore.EncoderConfig
	if cfg.Format == "console" {
		encoderConfig = zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		encoderConfig = zap.NewProductionEncoderConfig()
		encoderConfig.TimeKey = "timestamp"
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	zapConfig := zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Development:      cfg.Format == "console",
		Encoding:         cfg.Format,
		EncoderConfig:    encoderConfig,
		OutputPaths:      cfg.OutputPaths,
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := zapConfig.Build(zap.AddCaller())
	if err != nil {
		logger, _ = zap.NewProduction()
	}
	return logger
}
