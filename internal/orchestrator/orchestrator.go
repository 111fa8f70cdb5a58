// Package orchestrator runs the resumable batch analysis of a directory.
//
// A run moves through INIT (load saved state), RESUME or FRESH, RUNNING (one
// file at a time, context threaded from each response into the next request,
// state saved after every step) and INTERACTIVE (questions against the final
// context) before it terminates.
package orchestrator

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/lucasnoah/bistr/internal/analysis"
	"github.com/lucasnoah/bistr/internal/db"
	"github.com/lucasnoah/bistr/internal/eta"
	"github.com/lucasnoah/bistr/internal/metrics"
	"github.com/lucasnoah/bistr/internal/pipeline"
	"github.com/lucasnoah/bistr/internal/report"
	"github.com/lucasnoah/bistr/internal/scan"
)

var (
	// ErrModelMismatch is returned when a saved batch is resumed with another model.
	ErrModelMismatch = errors.New("saved model does not match requested model")
	// ErrUnparseable marks a file whose structured response never parsed.
	ErrUnparseable = errors.New("structured response could not be parsed")
)

// ResumeMode decides what happens when saved state exists for the target.
type ResumeMode int

const (
	// ResumeAsk prompts on the input reader; an empty answer resumes.
	ResumeAsk ResumeMode = iota
	// ResumeAlways continues the saved batch without asking.
	ResumeAlways
	// ResumeNever discards the saved batch and starts fresh.
	ResumeNever
)

// Options holds the parameters of one run.
type Options struct {
	Target string
	Model  string
	Scan   scan.Options
	// Question switches the batch to structured mode.
	Question string
	Resume   ResumeMode
	// MaxParseAttempts caps calls per file in structured mode; 0 is unbounded.
	MaxParseAttempts int
	SkipInteractive  bool
}

// Structured reports whether responses must parse as records.
func (o Options) Structured() bool {
	return o.Question != ""
}

// EventLog records runs and steps. *db.DB satisfies it.
type EventLog interface {
	StartRun(r db.Run) error
	FinishRun(id, status string) error
	LogAnalysisEvent(e db.AnalysisEvent) error
}

// Deps are the collaborators of an Orchestrator. Store and Client are
// required; the rest may be left zero.
type Deps struct {
	Store       *pipeline.Store
	Client      analysis.Client
	Sink        report.Sink
	Events      EventLog
	Metrics     *metrics.Recorder
	MetricsFile string
	Logger      *zap.Logger
	In          io.Reader
	Out         io.Writer
}

// Result describes a finished run.
type Result struct {
	RunID     string
	Target    string
	Resumed   bool
	Total     int
	Completed int
	Records   []report.AnalysisRecord
	Skipped   []report.SkippedFile
}

// Orchestrator drives a single run. It is not safe for concurrent use.
type Orchestrator struct {
	store       *pipeline.Store
	client      analysis.Client
	sink        report.Sink
	events      EventLog
	metrics     *metrics.Recorder
	metricsFile string
	log         *zap.Logger
	in          *bufio.Reader
	out         io.Writer
	now         func() time.Time

	templates *cache.Cache
	eta       *eta.Estimator
	runID     string
	records   []report.AnalysisRecord
	skipped   []report.SkippedFile
}

// New creates an Orchestrator.
func New(d Deps) *Orchestrator {
	o := &Orchestrator{
		store:       d.Store,
		client:      d.Client,
		sink:        d.Sink,
		events:      d.Events,
		metrics:     d.Metrics,
		metricsFile: d.MetricsFile,
		log:         d.Logger,
		out:         d.Out,
		now:         time.Now,
		templates:   cache.New(cache.NoExpiration, 0),
	}
	if o.sink == nil {
		o.sink = report.Nop{}
	}
	if o.log == nil {
		o.log = zap.NewNop()
	}
	if o.out == nil {
		o.out = io.Discard
	}
	in := d.In
	if in == nil {
		in = os.Stdin
	}
	o.in = bufio.NewReader(in)
	return o
}

var (
	headerColor = color.New(color.FgCyan, color.Bold)
	fileColor   = color.New(color.FgYellow)
	warnColor   = color.New(color.FgRed)
	etaColor    = color.New(color.FgGreen)
)

// logf prints a formatted message to the progress writer.
func (o *Orchestrator) logf(format string, args ...any) {
	fmt.Fprintf(o.out, format+"\n", args...)
}

// Run executes the state machine for opts.Target.
func (o *Orchestrator) Run(ctx context.Context, opts Options) (res *Result, err error) {
	if opts.Model == "" {
		return nil, errors.New("model is required")
	}
	info, err := os.Stat(opts.Target)
	if err != nil {
		return nil, fmt.Errorf("target directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("target %s is not a directory", opts.Target)
	}

	// INIT
	key, err := pipeline.CanonicalKey(opts.Target)
	if err != nil {
		return nil, err
	}
	state, err := o.store.Load(key)
	if err != nil {
		return nil, fmt.Errorf("load state: %w", err)
	}

	// RESUME / FRESH
	resumed := false
	if state != nil {
		resumed, err = o.shouldResume(key, state, opts.Resume)
		if err != nil {
			return nil, err
		}
	}
	if resumed {
		if state.Model != opts.Model {
			return nil, fmt.Errorf("%w: saved %q, requested %q", ErrModelMismatch, state.Model, opts.Model)
		}
		headerColor.Fprintf(o.out, "Resuming analysis for %d files in %s\n", len(state.PendingFiles), key)
	} else {
		files, err := scan.Files(key, opts.Scan)
		if err != nil {
			return nil, err
		}
		state = pipeline.NewState(files, opts.Model)
		if err := o.store.Save(key, state); err != nil {
			return nil, fmt.Errorf("save state: %w", err)
		}
		if err := report.Reset(o.sink); err != nil {
			return nil, fmt.Errorf("reset reports: %w", err)
		}
		headerColor.Fprintf(o.out, "Starting new analysis of %d files in %s\n", len(files), key)
	}

	o.runID = uuid.NewString()
	o.eta = eta.New()
	o.records = nil
	o.skipped = nil
	o.templates.Flush()

	res = &Result{RunID: o.runID, Target: key, Resumed: resumed, Total: len(state.PendingFiles)}
	o.log.Info("run started",
		zap.String("run_id", o.runID),
		zap.String("target", key),
		zap.String("model", opts.Model),
		zap.Bool("resumed", resumed),
		zap.Bool("structured", opts.Structured()),
		zap.Int("pending", res.Total))

	mode := db.ModeNarrative
	if opts.Structured() {
		mode = db.ModeStructured
	}
	o.recordEvent("start run", o.eventsStartRun(db.Run{
		ID: o.runID, Target: key, Model: opts.Model, Mode: mode, Resumed: resumed, TotalFiles: res.Total,
	}))

	defer func() {
		status := db.StatusCompleted
		if err != nil {
			status = db.StatusFailed
			o.log.Error("run failed", zap.String("run_id", o.runID), zap.Error(err))
		}
		o.recordEvent("finish run", o.eventsFinishRun(status))
		if res != nil {
			res.Records = o.records
			res.Skipped = o.skipped
		}
	}()

	// RUNNING
	next, err := o.runBatch(ctx, key, state, opts, res)
	if err != nil {
		return res, err
	}

	// INTERACTIVE
	if opts.SkipInteractive {
		return res, nil
	}
	if err := o.interactive(ctx, key, opts.Model, next); err != nil {
		return res, err
	}
	return res, nil
}

// shouldResume applies mode to an existing saved state.
func (o *Orchestrator) shouldResume(key string, state *pipeline.PipelineState, mode ResumeMode) (bool, error) {
	switch mode {
	case ResumeAlways:
		return true, nil
	case ResumeNever:
		return false, nil
	}

	fmt.Fprintf(o.out, "A previous analysis state was found for %s (%d files pending, model %s).\n",
		key, len(state.PendingFiles), state.Model)
	for {
		fmt.Fprint(o.out, "Do you want to resume? (yes/no) [yes]: ")
		line, eof, err := o.readLine()
		if err != nil {
			return false, err
		}
		switch normalizeAnswer(line) {
		case "", "y", "yes":
			return true, nil
		case "n", "no":
			return false, nil
		}
		if eof {
			return true, nil
		}
		fmt.Fprintln(o.out, "Please answer yes or no.")
	}
}

// runBatch analyzes every pending file in stored order and returns the
// context the interactive phase continues from.
func (o *Orchestrator) runBatch(ctx context.Context, key string, state *pipeline.PipelineState, opts Options, res *Result) (analysis.Context, error) {
	total := len(state.PendingFiles)
	for !state.Done() {
		if err := ctx.Err(); err != nil {
			return state.Context, err
		}
		file := state.PendingFiles[0]
		rel := displayPath(key, file)

		fmt.Fprintln(o.out)
		fileColor.Fprintf(o.out, "Analyzing: %s\n", rel)

		started := o.now()
		step, err := o.analyzeFile(ctx, key, file, state.Context, opts)
		if err != nil {
			return state.Context, err
		}

		if err := state.Complete(file, step.next); err != nil {
			return state.Context, err
		}
		if err := o.store.Save(key, state); err != nil {
			return state.Context, fmt.Errorf("save state: %w", err)
		}

		elapsed := o.now().Sub(started)
		o.eta.Add(elapsed)
		res.Completed++

		if err := o.report(file, step, opts); err != nil {
			return state.Context, err
		}

		o.afterStep(key, file, opts.Model, step, elapsed, len(state.PendingFiles))
		o.printProgress(rel, step, elapsed, res.Completed, total, len(state.PendingFiles))
	}

	o.log.Info("batch complete",
		zap.String("run_id", o.runID),
		zap.Int("completed", res.Completed),
		zap.Int("records", len(o.records)),
		zap.Int("skipped", len(o.skipped)))
	return state.Context, nil
}

// stepResult is the outcome of one file.
type stepResult struct {
	outcome  string
	attempts int
	text     string
	next     analysis.Context
	record   *report.AnalysisRecord
}

// analyzeFile sends the file's prompt until it yields an accepted response.
// In narrative mode the first response is accepted. In structured mode the
// same prompt and context are resent until the response parses or the
// attempt cap is reached; a capped file keeps the incoming context.
func (o *Orchestrator) analyzeFile(ctx context.Context, key, file string, current analysis.Context, opts Options) (*stepResult, error) {
	text, err := o.promptFor(key, file, opts)
	if err != nil {
		return nil, err
	}

	req := analysis.Request{Model: opts.Model, Prompt: text, Context: current}
	if opts.Structured() {
		req.Format = analysis.FormatJSON
	}

	for attempt := 1; ; attempt++ {
		resp, err := o.generate(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("analyze %s: %w", file, err)
		}
		if !opts.Structured() {
			return &stepResult{outcome: db.OutcomeAnalyzed, attempts: attempt, text: resp.Text, next: resp.Context}, nil
		}

		rec, perr := report.ParseRecord(file, resp.Text)
		if perr == nil {
			return &stepResult{outcome: db.OutcomeAnalyzed, attempts: attempt, text: resp.Text, next: resp.Context, record: &rec}, nil
		}

		o.log.Warn("unparseable structured response",
			zap.String("file", file),
			zap.Int("attempt", attempt),
			zap.Error(perr))

		if opts.MaxParseAttempts > 0 && attempt >= opts.MaxParseAttempts {
			warnColor.Fprintf(o.out, "Giving up on %s after %d attempts: %v\n", displayPath(key, file), attempt, ErrUnparseable)
			return &stepResult{outcome: db.OutcomeUnparseable, attempts: attempt, text: resp.Text, next: current}, nil
		}
		warnColor.Fprintf(o.out, "Response was not a valid record (attempt %d), retrying\n", attempt)
	}
}

func (o *Orchestrator) generate(ctx context.Context, req analysis.Request) (*analysis.Response, error) {
	o.metrics.ObserveCall(req.Model)
	return o.client.Generate(ctx, req)
}

// report hands an accepted step to the sink.
func (o *Orchestrator) report(file string, step *stepResult, opts Options) error {
	if step.outcome == db.OutcomeAnalyzed {
		if err := o.sink.FileAnalyzed(file, step.text); err != nil {
			return fmt.Errorf("write report for %s: %w", file, err)
		}
	}
	if !opts.Structured() {
		return nil
	}

	if step.record != nil {
		o.records = append(o.records, *step.record)
	} else {
		o.skipped = append(o.skipped, report.SkippedFile{File: file, Attempts: step.attempts, LastResponse: step.text})
	}
	if err := o.sink.Summarize(o.records, o.skipped); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}
	return nil
}

// afterStep writes the event log and metrics. Failures here are only logged.
func (o *Orchestrator) afterStep(key, file, model string, step *stepResult, elapsed time.Duration, pending int) {
	ev := db.AnalysisEvent{
		RunID:      o.runID,
		Target:     key,
		File:       file,
		Model:      model,
		Outcome:    step.outcome,
		Attempts:   step.attempts,
		DurationMs: elapsed.Milliseconds(),
	}
	if step.record != nil {
		relevance := step.record.Relevance
		ev.Relevance = &relevance
	}
	o.recordEvent("log analysis event", o.eventsLog(ev))

	o.metrics.ObserveStep(model, step.outcome, elapsed)
	o.metrics.SetPending(key, pending)
	if err := o.metrics.WriteTextfile(o.metricsFile); err != nil {
		o.log.Warn("metrics write failed", zap.Error(err))
	}

	o.log.Info("file analyzed",
		zap.String("run_id", o.runID),
		zap.String("file", file),
		zap.String("outcome", step.outcome),
		zap.Int("attempts", step.attempts),
		zap.Duration("elapsed", elapsed),
		zap.Int("pending", pending))
}

func (o *Orchestrator) printProgress(rel string, step *stepResult, elapsed time.Duration, completed, total, remaining int) {
	switch {
	case step.record != nil:
		o.logf("Relevance of %s: %s (%s)", rel, formatScore(step.record.Relevance), step.record.Reason)
	case step.outcome == db.OutcomeAnalyzed:
		o.logf("Analysis for %s:", rel)
		o.logf("%s", step.text)
	}
	o.logf("Time taken: %s", eta.FormatDuration(elapsed))
	o.logf("Progress: %d%% (%d/%d)", progressPercent(completed, total), completed, total)
	etaColor.Fprintln(o.out, o.eta.Describe(remaining))
}

// interactive answers questions against the batch context until the user
// types bye or input ends. Exchanges are not persisted.
func (o *Orchestrator) interactive(ctx context.Context, key, model string, current analysis.Context) error {
	fmt.Fprintln(o.out)
	headerColor.Fprintln(o.out, "You can ask questions about the codebase. Type 'bye' to finish.")
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		fmt.Fprint(o.out, "Enter your question (or 'bye' to finish): ")
		line, eof, err := o.readLine()
		if err != nil {
			return err
		}
		question := trimLine(line)
		if isBye(question) {
			return nil
		}
		if question == "" {
			if eof {
				fmt.Fprintln(o.out)
				return nil
			}
			continue
		}

		started := o.now()
		resp, err := o.generate(ctx, analysis.Request{Model: model, Prompt: question, Context: current})
		if err != nil {
			return fmt.Errorf("answer question: %w", err)
		}
		current = resp.Context

		o.logf("Response:")
		o.logf("%s", resp.Text)
		o.recordEvent("log question", o.eventsLog(db.AnalysisEvent{
			RunID:      o.runID,
			Target:     key,
			Model:      model,
			Outcome:    db.OutcomeQuestion,
			Attempts:   1,
			DurationMs: o.now().Sub(started).Milliseconds(),
		}))
		if eof {
			return nil
		}
	}
}

// readLine returns the next input line without its terminator. eof is true
// when the input has no further lines.
func (o *Orchestrator) readLine() (line string, eof bool, err error) {
	s, err := o.in.ReadString('\n')
	if errors.Is(err, io.EOF) {
		return s, true, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read input: %w", err)
	}
	return s, false, nil
}

func (o *Orchestrator) recordEvent(what string, err error) {
	if err != nil {
		o.log.Warn("event log write failed", zap.String("op", what), zap.Error(err))
	}
}

func (o *Orchestrator) eventsStartRun(r db.Run) error {
	if o.events == nil {
		return nil
	}
	return o.events.StartRun(r)
}

func (o *Orchestrator) eventsFinishRun(status string) error {
	if o.events == nil {
		return nil
	}
	return o.events.FinishRun(o.runID, status)
}

func (o *Orchestrator) eventsLog(e db.AnalysisEvent) error {
	if o.events == nil {
		return nil
	}
	return o.events.LogAnalysisEvent(e)
}

func progressPercent(completed, total int) int {
	if total == 0 {
		return 100
	}
	return int(math.Round(float64(completed) / float64(total) * 100))
}

func displayPath(root, file string) string {
	if rel, err := filepath.Rel(root, file); err == nil {
		return filepath.ToSlash(rel)
	}
	return file
}
