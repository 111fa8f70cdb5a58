package pipeline

import (
	"fmt"

	"github.com/lucasnoah/bistr/internal/analysis"
)

// PipelineState is the persisted progress for a single target directory.
type PipelineState struct {
	PendingFiles []string         `json:"pending_files"`
	Context      analysis.Context `json:"context"`
	Model        string           `json:"model"`
	UpdatedAt    string           `json:"updated_at,omitempty"`
}

// NewState creates the state of a fresh batch: every file pending, empty context.
func NewState(files []string, model string) *PipelineState {
	pending := make([]string, len(files))
	copy(pending, files)
	return &PipelineState{
		PendingFiles: pending,
		Context:      analysis.Context{},
		Model:        model,
	}
}

// Done reports whether no files remain.
func (ps *PipelineState) Done() bool {
	return len(ps.PendingFiles) == 0
}

// Complete drops file from the head of the pending list and installs next as
// the context. Files are only ever completed in stored order.
func (ps *PipelineState) Complete(file string, next analysis.Context) error {
	if len(ps.PendingFiles) == 0 {
		return fmt.Errorf("complete %s: no pending files", file)
	}
	if ps.PendingFiles[0] != file {
		return fmt.Errorf("complete %s: next pending file is %s", file, ps.PendingFiles[0])
	}
	ps.PendingFiles = ps.PendingFiles[1:]
	ps.Context = next
	return nil
}

// Entry pairs a state with the directory key it is stored under.
type Entry struct {
	Key   string
	State PipelineState
}
