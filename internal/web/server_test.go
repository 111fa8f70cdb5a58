package web

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/lucasnoah/bistr/internal/analysis"
	"github.com/lucasnoah/bistr/internal/db"
	"github.com/lucasnoah/bistr/internal/pipeline"
)

func testStore(t *testing.T) *pipeline.Store {
	t.Helper()
	store := pipeline.NewStore(filepath.Join(t.TempDir(), "state.json"))

	inProgress := pipeline.NewState([]string{"/src/app/b.py", "/src/app/c.py"}, "llama3")
	inProgress.Context = analysis.NewContext([]int{1, 2, 3})
	if err := store.Save("/src/app", inProgress); err != nil {
		t.Fatal(err)
	}
	if err := store.Save("/src/lib", pipeline.NewState(nil, "mistral")); err != nil {
		t.Fatal(err)
	}
	return store
}

func testDB(t *testing.T) *db.DB {
	t.Helper()
	d, err := db.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := d.Migrate(); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	return d
}

func get(t *testing.T, h http.Handler, path string) (int, string) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	body, _ := io.ReadAll(rec.Result().Body)
	return rec.Code, string(body)
}

func TestDashboard_ListsStatesAndRuns(t *testing.T) {
	d := testDB(t)
	if err := d.StartRun(db.Run{ID: "0123456789abcdef", Target: "/src/app", Model: "llama3", Mode: db.ModeNarrative, TotalFiles: 3}); err != nil {
		t.Fatal(err)
	}

	s := NewServer(testStore(t), d, "", ":0", nil)
	code, body := get(t, s.Handler(), "/")
	if code != http.StatusOK {
		t.Fatalf("status = %d, body: %s", code, body)
	}
	for _, want := range []string{"/src/app/b.py", "3 tokens", "/src/lib", "done", "01234567", "running"} {
		if !strings.Contains(body, want) {
			t.Errorf("dashboard missing %q", want)
		}
	}
}

func TestDashboard_WithoutHistory(t *testing.T) {
	s := NewServer(testStore(t), nil, "", ":0", nil)
	code, body := get(t, s.Handler(), "/")
	if code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if !strings.Contains(body, "No run history database") {
		t.Error("expected missing history notice")
	}
}

func TestRunDetail(t *testing.T) {
	d := testDB(t)
	if err := d.StartRun(db.Run{ID: "run-1", Target: "/src/app", Model: "llama3", Mode: db.ModeStructured, TotalFiles: 2}); err != nil {
		t.Fatal(err)
	}
	score := 75.0
	if err := d.LogAnalysisEvent(db.AnalysisEvent{RunID: "run-1", Target: "/src/app", File: "/src/app/a.py", Model: "llama3", Outcome: db.OutcomeAnalyzed, DurationMs: 1500, Relevance: &score}); err != nil {
		t.Fatal(err)
	}

	s := NewServer(testStore(t), d, "", ":0", nil)
	code, body := get(t, s.Handler(), "/runs/run-1")
	if code != http.StatusOK {
		t.Fatalf("status = %d, body: %s", code, body)
	}
	for _, want := range []string{"/src/app/a.py", "analyzed", "1.5s", "75"} {
		if !strings.Contains(body, want) {
			t.Errorf("run page missing %q", want)
		}
	}

	if code, _ := get(t, s.Handler(), "/runs/missing"); code != http.StatusNotFound {
		t.Errorf("missing run status = %d, want 404", code)
	}
}

func TestStatusJSON(t *testing.T) {
	s := NewServer(testStore(t), nil, "", ":0", nil)
	code, body := get(t, s.Handler(), "/api/status")
	if code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	var rows []StateRow
	if err := json.Unmarshal([]byte(body), &rows); err != nil {
		t.Fatalf("decode: %v\n%s", err, body)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}
	byTarget := map[string]StateRow{}
	for _, r := range rows {
		byTarget[r.Target] = r
	}
	if app := byTarget["/src/app"]; app.Pending != 2 || app.NextFile != "/src/app/b.py" || app.Tokens != 3 {
		t.Errorf("app row = %+v", app)
	}
	if !byTarget["/src/lib"].Done {
		t.Error("lib should be done")
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s := NewServer(testStore(t), nil, "", ":0", nil)
	code, body := get(t, s.Handler(), "/metrics")
	if code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if !strings.Contains(body, `bistr_pending_files{target="/src/app"} 2`) {
		t.Errorf("metrics missing pending gauge:\n%s", body)
	}
}

func TestReportsAreServed(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "index.html"), []byte("<h1>report index</h1>"), 0o644); err != nil {
		t.Fatal(err)
	}
	s := NewServer(testStore(t), nil, dir, ":0", nil)
	code, body := get(t, s.Handler(), "/reports/")
	if code != http.StatusOK || !strings.Contains(body, "report index") {
		t.Errorf("reports root = %d %q", code, body)
	}
}

func TestRelTime(t *testing.T) {
	if got := relTime("not a time"); got != "not a time" {
		t.Errorf("relTime passthrough = %q", got)
	}
	if got := relTime("2000-01-01 00:00:00"); !strings.HasSuffix(got, "d ago") {
		t.Errorf("relTime old = %q", got)
	}
}
