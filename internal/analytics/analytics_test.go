package analytics

import (
	"database/sql"
	"testing"

	"github.com/lucasnoah/bistr/internal/db"
)

func testDB(t *testing.T) *db.DB {
	t.Helper()
	d, err := db.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := d.Migrate(); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	if err := d.StartRun(db.Run{ID: "r1", Target: "/src", Model: "llama3", Mode: db.ModeStructured, TotalFiles: 10}); err != nil {
		t.Fatalf("start run: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	return d
}

func exec(t *testing.T, conn *sql.DB, query string, args ...interface{}) {
	t.Helper()
	if _, err := conn.Exec(query, args...); err != nil {
		t.Fatalf("exec %q: %v", query, err)
	}
}

func addEvent(t *testing.T, c *sql.DB, model, outcome string, attempts int, ms int64, ts string) {
	t.Helper()
	exec(t, c, `INSERT INTO analysis_events (run_id, target, file, model, outcome, attempts, duration_ms, timestamp)
		VALUES ('r1', '/src', 'f', ?, ?, ?, ?, ?)`, model, outcome, attempts, ms, ts)
}

// --- QueryModelDurations ---

func TestQueryModelDurations(t *testing.T) {
	d := testDB(t)
	c := d.Conn()

	addEvent(t, c, "llama3", "analyzed", 1, 10000, "2024-06-01 10:00:00")
	addEvent(t, c, "llama3", "analyzed", 1, 20000, "2024-06-01 10:01:00")
	addEvent(t, c, "llama3", "unparseable", 5, 30000, "2024-06-01 10:02:00")
	addEvent(t, c, "mistral", "analyzed", 1, 4000, "2024-06-01 10:03:00")
	// Interactive questions do not count.
	addEvent(t, c, "llama3", "question", 1, 999000, "2024-06-01 10:04:00")

	results, err := QueryModelDurations(d, "")
	if err != nil {
		t.Fatalf("QueryModelDurations: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 models, got %d", len(results))
	}

	llama := results[0]
	if llama.Model != "llama3" {
		t.Errorf("model = %q, want llama3", llama.Model)
	}
	if llama.Count != 3 {
		t.Errorf("count = %d, want 3", llama.Count)
	}
	if llama.Avg != 20.0 {
		t.Errorf("avg = %v, want 20.0", llama.Avg)
	}
	if llama.P50 != 20.0 {
		t.Errorf("p50 = %v, want 20.0", llama.P50)
	}
	// rank = 0.95 * 2 = 1.9 -> 20 + 0.9*10 = 29
	if llama.P95 != 29.0 {
		t.Errorf("p95 = %v, want 29.0", llama.P95)
	}

	if results[1].Model != "mistral" || results[1].Avg != 4.0 {
		t.Errorf("mistral = %+v", results[1])
	}
}

func TestQueryModelDurations_Since(t *testing.T) {
	d := testDB(t)
	c := d.Conn()

	addEvent(t, c, "llama3", "analyzed", 1, 10000, "2024-01-01 10:00:00")
	addEvent(t, c, "llama3", "analyzed", 1, 20000, "2024-06-01 10:00:00")

	results, err := QueryModelDurations(d, "2024-03-01")
	if err != nil {
		t.Fatalf("QueryModelDurations: %v", err)
	}
	if len(results) != 1 || results[0].Count != 1 {
		t.Fatalf("expected 1 recent event, got %+v", results)
	}
	if results[0].Avg != 20.0 {
		t.Errorf("avg = %v, want 20.0", results[0].Avg)
	}
}

func TestQueryModelDurations_Empty(t *testing.T) {
	d := testDB(t)
	results, err := QueryModelDurations(d, "")
	if err != nil {
		t.Fatalf("QueryModelDurations: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected no results, got %d", len(results))
	}
}

// --- QueryOutcomeRates ---

func TestQueryOutcomeRates(t *testing.T) {
	d := testDB(t)
	c := d.Conn()

	addEvent(t, c, "llama3", "analyzed", 1, 1000, "2024-06-01 10:00:00")
	addEvent(t, c, "llama3", "analyzed", 2, 1000, "2024-06-01 10:00:00")
	addEvent(t, c, "llama3", "analyzed", 1, 1000, "2024-06-01 10:00:00")
	addEvent(t, c, "llama3", "unparseable", 5, 1000, "2024-06-01 10:00:00")
	addEvent(t, c, "llama3", "question", 1, 1000, "2024-06-01 10:00:00")

	results, err := QueryOutcomeRates(d, "")
	if err != nil {
		t.Fatalf("QueryOutcomeRates: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 model, got %d", len(results))
	}
	r := results[0]
	if r.Total != 4 {
		t.Errorf("total = %d, want 4", r.Total)
	}
	if r.Analyzed != 75.0 {
		t.Errorf("analyzed = %v, want 75.0", r.Analyzed)
	}
	if r.Unparseable != 25.0 {
		t.Errorf("unparseable = %v, want 25.0", r.Unparseable)
	}
	// (1+2+1+5)/4 = 2.25 -> 2.3
	if r.AvgAttempts != 2.3 {
		t.Errorf("avg attempts = %v, want 2.3", r.AvgAttempts)
	}
}

// --- helpers ---

func TestPercentile(t *testing.T) {
	tests := []struct {
		values []float64
		p      int
		want   float64
	}{
		{nil, 50, 0},
		{[]float64{5}, 95, 5},
		{[]float64{1, 2, 3, 4}, 50, 2.5},
		{[]float64{1, 2, 3, 4}, 100, 4},
	}
	for _, tt := range tests {
		if got := percentile(tt.values, tt.p); got != tt.want {
			t.Errorf("percentile(%v, %d) = %v, want %v", tt.values, tt.p, got, tt.want)
		}
	}
}

func TestPct(t *testing.T) {
	if got := pct(1, 3); got != 33.3 {
		t.Errorf("pct(1, 3) = %v, want 33.3", got)
	}
	if got := pct(1, 0); got != 0 {
		t.Errorf("pct(1, 0) = %v, want 0", got)
	}
}
