package report

import (
	"bytes"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/lucasnoah/bistr/internal/pipeline"
)

// SummaryWriter renders the structured research summary as an HTML table,
// with a sibling bar chart page of relevance per file.
type SummaryWriter struct {
	path     string
	question string
	root     string
}

// NewSummaryWriter writes the summary for question to path. File names are
// shown relative to root.
func NewSummaryWriter(path, question, root string) *SummaryWriter {
	return &SummaryWriter{path: path, question: question, root: root}
}

// Path returns the summary document path.
func (s *SummaryWriter) Path() string {
	return s.path
}

// ChartPath returns the path of the relevance chart page.
func (s *SummaryWriter) ChartPath() string {
	ext := filepath.Ext(s.path)
	return strings.TrimSuffix(s.path, ext) + ".chart.html"
}

// FileAnalyzed implements Sink; the summary only changes on Summarize.
func (s *SummaryWriter) FileAnalyzed(string, string) error {
	return nil
}

func (s *SummaryWriter) display(file string) string {
	if s.root == "" {
		return file
	}
	rel, err := filepath.Rel(s.root, file)
	if err != nil || strings.HasPrefix(rel, "..") {
		return file
	}
	return filepath.ToSlash(rel)
}

// Summarize rebuilds the summary and chart from the full record collection.
// Records are ordered by relevance, highest first; ties keep arrival order.
func (s *SummaryWriter) Summarize(records []AnalysisRecord, skipped []SkippedFile) error {
	rows := make([]AnalysisRecord, len(records))
	for i, r := range records {
		r.File = s.display(r.File)
		rows[i] = r
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Relevance > rows[j].Relevance })

	skippedRows := make([]SkippedFile, len(skipped))
	for i, sk := range skipped {
		sk.File = s.display(sk.File)
		skippedRows[i] = sk
	}

	var buf bytes.Buffer
	err := pages.ExecuteTemplate(&buf, "summary.html", map[string]any{
		"Question":  s.question,
		"Records":   rows,
		"Skipped":   skippedRows,
		"ChartHref": filepath.Base(s.ChartPath()),
	})
	if err != nil {
		return fmt.Errorf("render summary: %w", err)
	}
	if err := pipeline.WriteAtomic(s.path, buf.Bytes()); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}

	return s.writeChart(rows)
}

func (s *SummaryWriter) writeChart(rows []AnalysisRecord) error {
	labels := make([]string, len(rows))
	data := make([]opts.BarData, len(rows))
	for i, r := range rows {
		labels[i] = r.File
		data[i] = opts.BarData{Value: r.Relevance}
	}

	title := "Relevance by file"
	if s.question != "" {
		title = s.question
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Relevance chart", Width: "100%", Height: "600px"}),
		charts.WithTitleOpts(opts.Title{Title: title}),
		charts.WithYAxisOpts(opts.YAxis{Name: "relevance", Min: 0, Max: 100}),
	)
	bar.SetXAxis(labels)
	bar.AddSeries("relevance", data)

	var buf bytes.Buffer
	if err := bar.Render(&buf); err != nil {
		return fmt.Errorf("render chart: %w", err)
	}
	if err := pipeline.WriteAtomic(s.ChartPath(), buf.Bytes()); err != nil {
		return fmt.Errorf("write chart: %w", err)
	}
	return nil
}
