// Package report renders analysis results into HTML documents. Every write
// regenerates the complete document from the current snapshot.
package report

import "errors"

// Sink receives results after each completed file step.
type Sink interface {
	// FileAnalyzed is called with the raw response for a file.
	FileAnalyzed(file, response string) error
	// Summarize is called with the full record collection so far.
	Summarize(records []AnalysisRecord, skipped []SkippedFile) error
}

// Resetter is implemented by sinks that keep output across processes and
// must drop it when a new batch starts.
type Resetter interface {
	Reset() error
}

// Reset calls Reset on s when it implements Resetter.
func Reset(s Sink) error {
	if r, ok := s.(Resetter); ok {
		return r.Reset()
	}
	return nil
}

// Multi fans out to several sinks.
type Multi []Sink

// FileAnalyzed implements Sink.
func (m Multi) FileAnalyzed(file, response string) error {
	var errs []error
	for _, s := range m {
		errs = append(errs, s.FileAnalyzed(file, response))
	}
	return errors.Join(errs...)
}

// Summarize implements Sink.
func (m Multi) Summarize(records []AnalysisRecord, skipped []SkippedFile) error {
	var errs []error
	for _, s := range m {
		errs = append(errs, s.Summarize(records, skipped))
	}
	return errors.Join(errs...)
}

// Reset implements Resetter for every member that supports it.
func (m Multi) Reset() error {
	var errs []error
	for _, s := range m {
		errs = append(errs, Reset(s))
	}
	return errors.Join(errs...)
}

// Nop discards everything.
type Nop struct{}

// FileAnalyzed implements Sink.
func (Nop) FileAnalyzed(string, string) error { return nil }

// Summarize implements Sink.
func (Nop) Summarize([]AnalysisRecord, []SkippedFile) error { return nil }
