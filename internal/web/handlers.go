package web

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/lucasnoah/bistr/internal/db"
	"github.com/lucasnoah/bistr/internal/pipeline"
)

// ---- view models ----

type DashboardData struct {
	States     []StateRow
	Runs       []db.Run
	HasHistory bool
	HasReports bool
}

type StateRow struct {
	Target     string
	Model      string
	Pending    int
	Done       bool
	Tokens     int
	UpdatedAgo string
	NextFile   string

	updatedAt string
}

type RunData struct {
	Run    db.Run
	Events []db.AnalysisEvent
}

func relTime(ts string) string {
	formats := []string{
		time.RFC3339,
		"2006-01-02T15:04:05Z",
		"2006-01-02 15:04:05",
	}
	var t time.Time
	for _, f := range formats {
		if parsed, err := time.Parse(f, ts); err == nil {
			t = parsed
			break
		}
	}
	if t.IsZero() {
		return ts
	}
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}

func (s *Server) execTemplate(w http.ResponseWriter, tmpl interface {
	ExecuteTemplate(w io.Writer, name string, data any) error
}, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tmpl.ExecuteTemplate(w, "base", data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func stateRows(entries []pipeline.Entry) []StateRow {
	rows := make([]StateRow, 0, len(entries))
	for _, e := range entries {
		row := StateRow{
			Target:     e.Key,
			Model:      e.State.Model,
			Pending:    len(e.State.PendingFiles),
			Done:       e.State.Done(),
			Tokens:     e.State.Context.Len(),
			UpdatedAgo: relTime(e.State.UpdatedAt),
			updatedAt:  e.State.UpdatedAt,
		}
		if !row.Done {
			row.NextFile = e.State.PendingFiles[0]
		}
		rows = append(rows, row)
	}
	// Most recently saved first; RFC3339 UTC strings sort chronologically.
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].updatedAt > rows[j].updatedAt
	})
	return rows
}

// ---- Dashboard ----

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	entries, err := s.store.List()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	data := DashboardData{
		States:     stateRows(entries),
		HasHistory: s.db != nil,
		HasReports: s.reportsDir != "",
	}
	if s.db != nil {
		runs, err := s.db.RecentRuns(20)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		data.Runs = runs
	}
	s.execTemplate(w, s.dashboardTmpl, data)
}

// ---- Run detail ----

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		http.NotFound(w, r)
		return
	}
	id := r.PathValue("id")
	run, err := s.db.GetRun(id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if run == nil {
		http.NotFound(w, r)
		return
	}
	events, err := s.db.GetRunEvents(id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.execTemplate(w, s.runTmpl, RunData{Run: *run, Events: events})
}

// ---- JSON ----

func (s *Server) handleStatusJSON(w http.ResponseWriter, r *http.Request) {
	entries, err := s.store.List()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(stateRows(entries)); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
