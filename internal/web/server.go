// Package web serves a read-only dashboard of saved progress and run history.
package web

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/lucasnoah/bistr/internal/db"
	"github.com/lucasnoah/bistr/internal/metrics"
	"github.com/lucasnoah/bistr/internal/pipeline"
)

//go:embed templates
var templateFS embed.FS

var funcMap = template.FuncMap{
	"relTime": relTime,
	"badgeClass": func(status string) string {
		return "badge badge-" + status
	},
	"shortID": func(id string) string {
		if len(id) > 8 {
			return id[:8]
		}
		return id
	},
	"seconds": func(ms int64) string {
		return fmt.Sprintf("%.1fs", float64(ms)/1000)
	},
}

// Server is the read-only web UI server.
type Server struct {
	store      *pipeline.Store
	db         *db.DB
	reportsDir string
	addr       string
	log        *zap.Logger

	dashboardTmpl *template.Template
	runTmpl       *template.Template
}

// NewServer creates a Server with parsed templates. database may be nil when
// no run history exists; reportsDir may be empty.
func NewServer(store *pipeline.Store, database *db.DB, reportsDir, addr string, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		store:         store,
		db:            database,
		reportsDir:    reportsDir,
		addr:          addr,
		log:           logger,
		dashboardTmpl: mustParseTmpl("base.html", "dashboard.html"),
		runTmpl:       mustParseTmpl("base.html", "run.html"),
	}
}

func mustParseTmpl(names ...string) *template.Template {
	patterns := make([]string, len(names))
	for i, n := range names {
		patterns[i] = "templates/" + n
	}
	return template.Must(template.New("").Funcs(funcMap).ParseFS(templateFS, patterns...))
}

// Handler returns the routes of the dashboard.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleDashboard)
	mux.HandleFunc("GET /runs/{id}", s.handleRun)
	mux.HandleFunc("GET /api/status", s.handleStatusJSON)
	mux.HandleFunc("GET /metrics", s.handleMetrics)
	if s.reportsDir != "" {
		mux.Handle("GET /reports/", http.StripPrefix("/reports/", http.FileServer(http.Dir(s.reportsDir))))
	}
	return mux
}

// Start serves until ctx is canceled.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("dashboard listening", zap.String("addr", s.addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// handleMetrics exposes pending-file gauges computed from the state file at
// scrape time.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	entries, err := s.store.List()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	rec := metrics.New()
	for _, e := range entries {
		rec.SetPending(e.Key, len(e.State.PendingFiles))
	}
	promhttp.HandlerFor(rec.Registry(), promhttp.HandlerOpts{}).ServeHTTP(w, r)
}
