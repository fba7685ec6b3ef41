package action

import (
	"context"
	"time"

	"github.com/flowforge/runtime/internal/resilience"
	"github.com/flowforge/runtime/internal/sandbox"
	"github.com/flowforge/runtime/internal/value"
	"github.com/flowforge/runtime/pkg/errors"
)

// Evaluator resolves a node's parameter expressions against its input and
// the execution's variable bindings. It lives outside this package by
// design — expression evaluation is configured per workflow engine
// deployment and this package only consumes the result.
type Evaluator interface {
	Evaluate(expr string, input value.Value, vars map[string]value.Value) (value.Value, error)
}

// IdentityEvaluator is a minimal Evaluator for handlers whose params are
// already fully resolved values rather than expressions, and for tests
// that don't exercise expression evaluation: an expression that names an
// entry of vars resolves to that variable's value, and any other
// expression resolves to the node input unchanged.
type IdentityEvaluator struct{}

func (IdentityEvaluator) Evaluate(expr string, input value.Value, vars map[string]value.Value) (value.Value, error) {
	if v, ok := vars[expr]; ok {
		return v, nil
	}
	return input, nil
}

// NodeRequest is everything the execution step needs to dispatch one
// workflow node.
type NodeRequest struct {
	ExecutionID string
	WorkflowID  string
	NodeID      string
	ActionKey   string
	ParamExprs  map[string]string
	Input       value.Value
	Variables   map[string]value.Value
	Granted     sandbox.CapabilitySet
}

// Runner executes the per-node dispatch contract: lookup, parameter
// evaluation, context construction, sandboxing, resilience-wrapped
// dispatch, event publication.
type Runner struct {
	registry   *Registry
	sandboxRun sandbox.SandboxRunner
	bus        *Bus
	evaluator  Evaluator
	policies   map[string]*resilience.Policy

	resourceProvider   ResourceProvider
	credentialProvider CredentialProvider
}

// RunnerConfig wires a Runner's collaborators.
type RunnerConfig struct {
	Registry           *Registry
	SandboxRunner      sandbox.SandboxRunner
	Bus                *Bus
	Evaluator          Evaluator
	Policies           map[string]*resilience.Policy
	ResourceProvider   ResourceProvider
	CredentialProvider CredentialProvider
}

func NewRunner(cfg RunnerConfig) *Runner {
	if cfg.Evaluator == nil {
		cfg.Evaluator = IdentityEvaluator{}
	}
	if cfg.SandboxRunner == nil {
		cfg.SandboxRunner = sandbox.NewInProcessRunner()
	}
	if cfg.Bus == nil {
		cfg.Bus = NewBus()
	}
	if cfg.Policies == nil {
		cfg.Policies = make(map[string]*resilience.Policy)
	}
	return &Runner{
		registry:           cfg.Registry,
		sandboxRun:         cfg.SandboxRunner,
		bus:                cfg.Bus,
		evaluator:          cfg.Evaluator,
		policies:           cfg.Policies,
		resourceProvider:   cfg.ResourceProvider,
		credentialProvider: cfg.CredentialProvider,
	}
}

// Execute runs the full execution step for one node and returns its
// output value, publishing NodeStarted/NodeCompleted/NodeFailed with
// req's correlation ids along the way.
func (r *Runner) Execute(ctx context.Context, req NodeRequest) (value.Value, error) {
	start := time.Now()
	r.bus.Publish(ctx, Event{
		Kind:        NodeStarted,
		ExecutionID: req.ExecutionID,
		WorkflowID:  req.WorkflowID,
		NodeID:      req.NodeID,
		ActionKey:   req.ActionKey,
	})

	out, err := r.dispatch(ctx, req)

	evt := Event{
		ExecutionID: req.ExecutionID,
		WorkflowID:  req.WorkflowID,
		NodeID:      req.NodeID,
		ActionKey:   req.ActionKey,
		Duration:    time.Since(start),
	}
	if err != nil {
		evt.Kind = NodeFailed
		evt.Err = err
	} else {
		evt.Kind = NodeCompleted
	}
	r.bus.Publish(ctx, evt)

	return out, err
}

func (r *Runner) dispatch(ctx context.Context, req NodeRequest) (value.Value, error) {
	handler, err := r.registry.Lookup(req.ActionKey)
	if err != nil {
		return value.Null(), err
	}
	meta := handler.Metadata()

	params, err := r.evaluateParams(req, meta)
	if err != nil {
		return value.Null(), err
	}

	run := func(runCtx context.Context) (value.Value, error) {
		return r.invoke(runCtx, handler, meta, req, params)
	}

	if policy, ok := r.policies[meta.TargetService]; ok && meta.TargetService != "" {
		var result value.Value
		execErr := policy.Execute(ctx, func(policyCtx context.Context) error {
			var innerErr error
			result, innerErr = run(policyCtx)
			return innerErr
		})
		return result, execErr
	}
	return run(ctx)
}

func (r *Runner) evaluateParams(req NodeRequest, meta Metadata) (value.Value, error) {
	if len(req.ParamExprs) == 0 {
		return req.Input, nil
	}
	fields := make(map[string]value.Value, len(req.ParamExprs))
	for _, name := range meta.ParamNames {
		expr, ok := req.ParamExprs[name]
		if !ok {
			continue
		}
		v, err := r.evaluator.Evaluate(expr, req.Input, req.Variables)
		if err != nil {
			return value.Null(), errors.Validation(name, err.Error())
		}
		fields[name] = v
	}
	return value.Object(fields), nil
}

func (r *Runner) invoke(ctx context.Context, handler Handler, meta Metadata, req NodeRequest, input value.Value) (value.Value, error) {
	if meta.Isolation == sandbox.IsolationNone {
		actx := ActionContext{
			ExecutionID:        req.ExecutionID,
			NodeID:             req.NodeID,
			WorkflowID:         req.WorkflowID,
			ResourceProvider:   r.resourceProvider,
			CredentialProvider: r.credentialProvider,
		}
		return handler.Execute(ctx, actx, input)
	}

	handlerFn := func(sctx *sandbox.SandboxedContext, input value.Value) (value.Value, error) {
		actx := ActionContext{
			ExecutionID:        req.ExecutionID,
			NodeID:             req.NodeID,
			WorkflowID:         req.WorkflowID,
			Sandbox:            sctx,
			ResourceProvider:   r.resourceProvider,
			CredentialProvider: r.credentialProvider,
		}
		return handler.Execute(sctx.Ctx, actx, input)
	}

	actionMeta := sandbox.ActionMetadata{
		Required:       meta.Required,
		Isolation:      meta.Isolation,
		MaxOutputBytes: meta.MaxOutputBytes,
	}
	return r.sandboxRun.Execute(ctx, req.NodeID, actionMeta, req.Granted, input, handlerFn)
}
