// Package webui serves the cleaned table read-only over HTTP.
//
// Routes:
//
//	GET /                 → summary page with stats and a preview
//	GET /healthz          → liveness
//	GET /api/dataset      → JSON rows, paged with ?limit=&offset=
//	GET /api/dataset.csv  → the whole table as CSV
//	GET /api/stats        → run statistics as JSON
package webui

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"html/template"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"socioprep/internal/output"
	"socioprep/internal/pipeline"
	"socioprep/pkg/records"
)

// Page size limits for /api/dataset.
const (
	DefaultLimit = 100
	MaxLimit     = 1000
)

// Config controls server startup.
type Config struct {
	Addr string
	// PreviewRows is the number of rows on the index page.
	PreviewRows int
	// RateLimit is the allowed requests per second across all clients;
	// zero or less disables limiting.
	RateLimit float64
	Burst     int
}

// Server serves one pipeline result.
type Server struct {
	cfg     Config
	res     *pipeline.Result
	log     logrus.FieldLogger
	router  chi.Router
	tmpl    *template.Template
	limiter *rate.Limiter
}

// NewServer builds the router for res.
func NewServer(cfg Config, res *pipeline.Result, log logrus.FieldLogger) *Server {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if cfg.PreviewRows <= 0 {
		cfg.PreviewRows = 20
	}
	s := &Server{
		cfg:  cfg,
		res:  res,
		log:  log,
		tmpl: template.Must(template.New("index").Parse(indexHTML)),
	}
	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	s.routes()
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	s.log.WithField("addr", s.cfg.Addr).Info("web ui listening")

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

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)
	if s.limiter != nil {
		r.Use(s.limit)
	}

	r.Get("/", s.handleIndex)
	r.Get("/healthz", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Get("/dataset", s.handleDataset)
		r.Get("/dataset.csv", s.handleDatasetCSV)
		r.Get("/stats", s.handleStats)
	})
	s.router = r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.WithFields(logrus.Fields{
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     ww.Status(),
			"took":       time.Since(start).Round(time.Microsecond),
			"request_id": middleware.GetReqID(r.Context()),
		}).Debug("http request")
	})
}

func (s *Server) limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow() {
			s.log.WithFields(logrus.Fields{
				"path":        r.URL.Path,
				"remote_addr": r.RemoteAddr,
			}).Warn("rate limit exceeded")
			w.Header().Set("Retry-After", "1")
			s.fail(w, r, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, status int, msg string) {
	render.Status(r, status)
	render.JSON(w, r, errorResponse{Error: msg})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]string{"status": "ok"})
}

// DatasetPage is the /api/dataset response.
type DatasetPage struct {
	Columns []string         `json:"columns"`
	Rows    []map[string]any `json:"rows"`
	Total   int              `json:"total"`
	Limit   int              `json:"limit"`
	Offset  int              `json:"offset"`
}

func intParam(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer", name)
	}
	return n, nil
}

func (s *Server) handleDataset(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit", DefaultLimit)
	if err != nil {
		s.fail(w, r, http.StatusBadRequest, err.Error())
		return
	}
	offset, err := intParam(r, "offset", 0)
	if err != nil {
		s.fail(w, r, http.StatusBadRequest, err.Error())
		return
	}
	limit = min(limit, MaxLimit)

	t := s.res.Table
	start := min(offset, t.Len())
	end := min(start+limit, t.Len())
	page := DatasetPage{
		Columns: t.Columns,
		Rows:    make([]map[string]any, 0, end-start),
		Total:   t.Len(),
		Limit:   limit,
		Offset:  offset,
	}
	for _, row := range t.Rows[start:end] {
		page.Rows = append(page.Rows, jsonRow(t.Columns, row))
	}
	render.JSON(w, r, page)
}

// jsonRow maps missing and non-finite cells to null and dates to ISO text.
func jsonRow(cols []string, r records.Record) map[string]any {
	out := make(map[string]any, len(cols))
	for _, c := range cols {
		switch v := r[c]; {
		case records.IsMissing(v), isInf(v):
			out[c] = nil
		case isTime(v):
			out[c] = records.String(v)
		default:
			out[c] = v
		}
	}
	return out
}

func isInf(v any) bool {
	f, ok := v.(float64)
	return ok && math.IsInf(f, 0)
}

func isTime(v any) bool {
	_, ok := v.(time.Time)
	return ok
}

func (s *Server) handleDatasetCSV(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="dataset.csv"`)
	if err := output.WriteCSV(w, s.res.Table); err != nil {
		s.log.WithError(err).Error("write csv response")
	}
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, s.res.Stats)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	t := s.res.Table.Head(s.cfg.PreviewRows)
	rows := make([][]string, len(t.Rows))
	for i, row := range t.Rows {
		cells := make([]string, len(t.Columns))
		for j, c := range t.Columns {
			cells[j] = records.String(row[c])
		}
		rows[i] = cells
	}
	data := struct {
		Stats   pipeline.Stats
		Columns []string
		Rows    [][]string
		Total   int
	}{s.res.Stats, t.Columns, rows, s.res.Table.Len()}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.tmpl.Execute(w, data); err != nil {
		s.log.WithError(err).Error("template error")
	}
}

//go:embed index.tmpl.html
var indexHTML string
