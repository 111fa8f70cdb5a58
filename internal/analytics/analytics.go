// Package analytics summarizes the event log.
package analytics

import (
	"database/sql"
	"fmt"
	"math"
	"sort"
)

// DB is the interface for database queries used by analytics.
type DB interface {
	Conn() *sql.DB
}

// ModelDuration holds per-step wall time stats for a model, in seconds.
type ModelDuration struct {
	Model string  `json:"model"`
	Count int     `json:"count"`
	Avg   float64 `json:"avg_seconds"`
	P50   float64 `json:"p50_seconds"`
	P95   float64 `json:"p95_seconds"`
}

// QueryModelDurations returns average and percentile step durations per
// model. Interactive questions are excluded; only batch steps count.
func QueryModelDurations(database DB, since string) ([]ModelDuration, error) {
	query := `
		SELECT model, duration_ms FROM analysis_events
		WHERE outcome IN ('analyzed', 'unparseable')`

	args := []interface{}{}
	if since != "" {
		query += ` AND timestamp >= ?`
		args = append(args, since)
	}

	rows, err := database.Conn().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query model durations: %w", err)
	}
	defer rows.Close()

	durations := make(map[string][]float64)
	for rows.Next() {
		var model string
		var ms int64
		if err := rows.Scan(&model, &ms); err != nil {
			return nil, fmt.Errorf("scan model duration: %w", err)
		}
		durations[model] = append(durations[model], float64(ms)/1000)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var results []ModelDuration
	for model, ds := range durations {
		sort.Float64s(ds)
		results = append(results, ModelDuration{
			Model: model,
			Count: len(ds),
			Avg:   avg(ds),
			P50:   percentile(ds, 50),
			P95:   percentile(ds, 95),
		})
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Model < results[j].Model
	})
	return results, nil
}

// OutcomeRate holds how often structured steps parsed for a model.
type OutcomeRate struct {
	Model       string  `json:"model"`
	Total       int     `json:"total"`
	Analyzed    float64 `json:"analyzed_pct"`
	Unparseable float64 `json:"unparseable_pct"`
	AvgAttempts float64 `json:"avg_attempts"`
}

// QueryOutcomeRates returns step outcome percentages and mean attempts per model.
func QueryOutcomeRates(database DB, since string) ([]OutcomeRate, error) {
	query := `
		SELECT model,
			COUNT(*) as total,
			SUM(CASE WHEN outcome = 'analyzed' THEN 1 ELSE 0 END) as analyzed,
			SUM(CASE WHEN outcome = 'unparseable' THEN 1 ELSE 0 END) as unparseable,
			SUM(attempts) as attempts
		FROM analysis_events
		WHERE outcome IN ('analyzed', 'unparseable')`

	args := []interface{}{}
	if since != "" {
		query += ` AND timestamp >= ?`
		args = append(args, since)
	}
	query += ` GROUP BY model ORDER BY model`

	rows, err := database.Conn().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query outcome rates: %w", err)
	}
	defer rows.Close()

	var results []OutcomeRate
	for rows.Next() {
		var model string
		var total, analyzed, unparseable, attempts int
		if err := rows.Scan(&model, &total, &analyzed, &unparseable, &attempts); err != nil {
			return nil, fmt.Errorf("scan outcome rate: %w", err)
		}
		r := OutcomeRate{
			Model:       model,
			Total:       total,
			Analyzed:    pct(analyzed, total),
			Unparseable: pct(unparseable, total),
		}
		if total > 0 {
			r.AvgAttempts = math.Round(float64(attempts)/float64(total)*10) / 10
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// --- helpers ---

func avg(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return math.Round(sum/float64(len(values))*10) / 10
}

// percentile interpolates linearly between the closest ranks of sorted.
func percentile(sorted []float64, p int) float64 {
	if len(sorted) == 0 {
		return 0
	}
	rank := float64(p) / 100.0 * float64(len(sorted)-1)
	lower := int(math.Floor(rank))
	upper := int(math.Ceil(rank))
	if lower == upper || upper >= len(sorted) {
		return math.Round(sorted[lower]*10) / 10
	}
	weight := rank - float64(lower)
	return math.Round((sorted[lower]*(1-weight)+sorted[upper]*weight)*10) / 10
}

func pct(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(n)/float64(total)*1000) / 10
}
