package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/banshee-data/offaxis/internal/config"
	"github.com/banshee-data/offaxis/internal/db"
	"github.com/banshee-data/offaxis/internal/httputil"
	"github.com/banshee-data/offaxis/internal/offaxis"
	"github.com/banshee-data/offaxis/internal/scene"
	"github.com/banshee-data/offaxis/internal/version"
)

// ANSI escape codes for cyan and reset
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// maxBodyBytes bounds request bodies; rig files are the largest payload.
const maxBodyBytes = 16 << 20

type Server struct {
	db  *db.DB
	cfg *config.TuningConfig
}

// NewServer creates an API server. database may be nil, in which case
// solves are not recorded and the run endpoints report 503.
func NewServer(database *db.DB, cfg *config.TuningConfig) *Server {
	if cfg == nil {
		cfg = config.EmptyTuningConfig()
	}
	return &Server{
		db:  database,
		cfg: cfg,
	}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		log.Printf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/solve", s.handleSolve)
	mux.HandleFunc("/api/rig", s.handleRig)
	mux.HandleFunc("/api/runs", s.listRuns)
	mux.HandleFunc("/api/runs/", s.handleRun)
	mux.HandleFunc("/api/config", s.showConfig)
	if s.db != nil {
		s.db.AttachAdminRoutes(mux)
	}
	return mux
}

// statusForError maps solve failures onto HTTP statuses: geometry
// rejections are 422, unknown objects 404 and anything else is bad input.
func statusForError(err error) int {
	var gerr *offaxis.GeometryError
	switch {
	case errors.As(err, &gerr):
		return http.StatusUnprocessableEntity
	case errors.Is(err, scene.ErrNotFound), errors.Is(err, db.ErrRunNotFound):
		return http.StatusNotFound
	default:
		return http.StatusBadRequest
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	return dec.Decode(v)
}

func (s *Server) showConfig(w http.ResponseWriter, r *http.Request) {
	if !httputil.RequireMethod(w, r, http.MethodGet) {
		return
	}

	httputil.WriteJSONOK(w, map[string]interface{}{
		"solver":      s.cfg.SolverOptions(),
		"workers":     s.cfg.GetWorkers(),
		"rig_timeout": s.cfg.GetRigTimeout().String(),
		"persistence": s.db != nil,
		"version":     version.String(),
	})
}
