package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/platinummonkey/hatch/pkg/audit"
	"github.com/platinummonkey/hatch/pkg/lifecycle"
	"github.com/platinummonkey/hatch/pkg/observability"
	"github.com/platinummonkey/hatch/pkg/plugins"
	"github.com/platinummonkey/hatch/pkg/reports"
	"github.com/platinummonkey/hatch/pkg/runner"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// BackendFactory returns the backend for a kind
type BackendFactory func(kind runner.Kind) (runner.Backend, error)

// Options configures an Orchestrator
type Options struct {
	Catalog   *plugins.Catalog // Required
	ReportDir string

	// Backends selects the execution backend. When nil, runner.New is used
	// with Runner and Engine.
	Backends BackendFactory
	Runner   runner.Config
	Engine   string

	Writer  *reports.Writer
	Metrics *observability.Metrics // Optional
	Audit   audit.Logger           // Optional; records every run decision
	Logger  *logrus.Logger
}

// Orchestrator runs one plugin end to end: lookup, policy gate, phase
// dispatch, execution and report
type Orchestrator struct {
	catalog    *plugins.Catalog
	dispatcher *lifecycle.Dispatcher
	backends   BackendFactory
	writer     *reports.Writer
	reportDir  string
	metrics    *observability.Metrics
	audit      audit.Logger
	tracer     trace.Tracer
	log        *logrus.Logger
}

// New creates an orchestrator
func New(opts Options) (*Orchestrator, error) {
	if opts.Catalog == nil {
		return nil, fmt.Errorf("plugin catalog is required")
	}

	log := opts.Logger
	if log == nil {
		log = logrus.New()
	}

	backends := opts.Backends
	if backends == nil {
		cfg, engine := opts.Runner, opts.Engine
		backends = func(kind runner.Kind) (runner.Backend, error) {
			return runner.New(kind, engine, cfg, log)
		}
	}

	writer := opts.Writer
	if writer == nil {
		writer = reports.NewWriter(log)
	}

	reportDir := opts.ReportDir
	if reportDir == "" {
		reportDir = DefaultReportDir
	}

	auditLog := opts.Audit
	if auditLog == nil {
		auditLog = audit.NopLogger{}
	}

	return &Orchestrator{
		catalog:    opts.Catalog,
		dispatcher: lifecycle.NewDispatcher(log),
		backends:   backends,
		writer:     writer,
		reportDir:  reportDir,
		metrics:    opts.Metrics,
		audit:      auditLog,
		tracer:     observability.Tracer(),
		log:        log,
	}, nil
}

// Run executes the plugin named in req. Every rejection happens before any
// process is spawned and is reported with a sentinel error. Once the plugin
// has run, the only failure is ErrReportWrite, returned together with the
// partial outcome so the caller still sees the plugin output.
func (o *Orchestrator) Run(ctx context.Context, req *RunRequest) (*RunOutcome, error) {
	if req == nil || req.PluginName == "" {
		return nil, fmt.Errorf("%w: no plugin name given", ErrPluginNotFound)
	}

	kind := req.Kind
	if kind == "" {
		kind = runner.KindDirect
	}

	ctx, span := o.tracer.Start(ctx, "hatch.run", trace.WithAttributes(
		attribute.String("hatch.plugin", req.PluginName),
		attribute.String("hatch.runner", string(kind)),
	))
	defer span.End()

	log := observability.WithTraceContext(ctx, o.log).WithFields(logrus.Fields{
		"plugin": req.PluginName,
		"runner": kind,
	})

	record, err := o.lookup(ctx, req.PluginName)
	if err != nil {
		o.record(ctx, log, refusal(ctx, req.PluginName, kind, err))
		return nil, o.fail(span, err)
	}

	if err := o.checkPolicy(ctx, record); err != nil {
		o.metrics.ObserveRejection(string(kind))
		log.WithField("network_policy", record.Manifest.NetworkPolicy()).Warn("Plugin refused by network policy")
		o.record(ctx, log, refusal(ctx, record.Name, kind, err))
		return nil, o.fail(span, err)
	}

	plan := o.dispatcher.BuildArgs(req.Phases)
	span.SetAttributes(attribute.StringSlice("hatch.phases", plan.Phases))

	result, err := o.execute(ctx, kind, &runner.ExecutionRequest{
		Entrypoint: record.Entrypoint,
		Args:       plan.Args,
		Timeout:    req.Timeout,
		Env:        req.Env,
	})
	if err != nil {
		o.metrics.ObserveError(string(kind))
		event := audit.NewEvent(ctx, audit.EventTypeRunError, audit.EventStatusFailure, record.Name)
		event.Runner = string(kind)
		event.Phases = plan.Phases
		event.Message = err.Error()
		o.record(ctx, log, event)
		return nil, o.fail(span, err)
	}

	o.metrics.ObserveRun(string(kind), outcomeOf(result), result.DurationSec)
	span.SetAttributes(
		attribute.Int("hatch.returncode", result.ReturnCode),
		attribute.Bool("hatch.timed_out", result.TimedOut),
	)
	log.WithFields(logrus.Fields{
		"phases":     plan.Phases,
		"returncode": result.ReturnCode,
		"timed_out":  result.TimedOut,
		"duration":   result.DurationSec,
	}).Info("Plugin finished")

	outcome := &RunOutcome{
		Plugin:   record,
		Plan:     plan,
		Result:   result,
		ExitCode: result.ReturnCode,
	}

	reportDir := req.ReportDir
	if reportDir == "" {
		reportDir = o.reportDir
	}

	// The report is written even when the run was interrupted by ctx
	written, err := o.writeReport(context.WithoutCancel(ctx), reports.WriteRequest{
		Dir:        reportDir,
		PluginName: record.Name,
		Manifest:   record.Manifest,
		Phases:     plan.Phases,
		Result:     result,
		Runner:     string(kind),
	})
	o.metrics.ObserveReport(err)
	o.record(ctx, log, completion(ctx, outcome, string(kind), written, err))
	if err != nil {
		return outcome, o.fail(span, err)
	}
	outcome.Report = written

	if result.ReturnCode != 0 {
		span.SetStatus(codes.Error, fmt.Sprintf("plugin exited %d", result.ReturnCode))
	}
	return outcome, nil
}

func (o *Orchestrator) lookup(ctx context.Context, name string) (*plugins.PluginRecord, error) {
	ctx, span := o.tracer.Start(ctx, "plugins.find")
	defer span.End()

	record, err := o.catalog.Find(ctx, name)
	if err != nil {
		return nil, err
	}
	if !record.Runnable {
		return nil, fmt.Errorf("%w: %s has no entrypoint at %s", ErrPluginNotRunnable, record.Name, record.Entrypoint)
	}
	return record, nil
}

func (o *Orchestrator) checkPolicy(ctx context.Context, record *plugins.PluginRecord) error {
	_, span := o.tracer.Start(ctx, "policy.check")
	defer span.End()

	if err := plugins.CheckPolicy(record.Manifest); err != nil {
		return fmt.Errorf("%s: %w", record.Name, err)
	}
	return nil
}

func (o *Orchestrator) execute(ctx context.Context, kind runner.Kind, req *runner.ExecutionRequest) (*runner.ExecutionResult, error) {
	ctx, span := o.tracer.Start(ctx, "runner.execute", trace.WithAttributes(
		attribute.StringSlice("hatch.args", req.Args),
	))
	defer span.End()

	backend, err := o.backends(kind)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExecutionSetup, err)
	}
	if closer, ok := backend.(io.Closer); ok {
		defer closer.Close()
	}
	span.SetAttributes(attribute.String("hatch.mode", backend.Mode()))

	result, err := backend.Execute(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExecutionSetup, err)
	}
	return result, nil
}

func (o *Orchestrator) writeReport(ctx context.Context, req reports.WriteRequest) (*reports.WriteResult, error) {
	ctx, span := o.tracer.Start(ctx, "reports.write")
	defer span.End()

	written, err := o.writer.Write(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrReportWrite, err)
	}
	span.SetAttributes(attribute.String("hatch.report", written.JSONPath))
	return written, nil
}

// record appends event to the audit log. Audit failures never fail a run.
func (o *Orchestrator) record(ctx context.Context, log *logrus.Entry, event *audit.Event) {
	if err := o.audit.Log(context.WithoutCancel(ctx), event); err != nil {
		log.WithError(err).Warn("Failed to write audit event")
	}
}

func refusal(ctx context.Context, plugin string, kind runner.Kind, err error) *audit.Event {
	event := audit.NewEvent(ctx, audit.EventTypeRunRefused, audit.EventStatusDenied, plugin)
	event.Runner = string(kind)
	event.Message = err.Error()
	return event
}

func completion(ctx context.Context, outcome *RunOutcome, kind string, written *reports.WriteResult, reportErr error) *audit.Event {
	result := outcome.Result
	status := audit.EventStatusSuccess
	if !result.Succeeded() {
		status = audit.EventStatusFailure
	}

	event := audit.NewEvent(ctx, audit.EventTypeRunCompleted, status, outcome.Plugin.Name)
	event.Runner = kind
	event.Phases = outcome.Plan.Phases
	code := result.ReturnCode
	event.ReturnCode = &code
	event.TimedOut = result.TimedOut
	if written != nil {
		event.ID = written.Report.RunID
		event.Report = written.JSONPath
	}
	if reportErr != nil {
		event.Message = reportErr.Error()
	}
	return event
}

func (o *Orchestrator) fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

func outcomeOf(result *runner.ExecutionResult) string {
	switch {
	case result.TimedOut:
		return observability.OutcomeTimeout
	case result.ReturnCode == 0:
		return observability.OutcomeSuccess
	default:
		return observability.OutcomeFailure
	}
}

// IsRejection reports whether err stopped a run before anything was spawned
func IsRejection(err error) bool {
	return errors.Is(err, ErrPluginNotFound) ||
		errors.Is(err, ErrPluginNotRunnable) ||
		errors.Is(err, ErrPolicyRejected)
}
