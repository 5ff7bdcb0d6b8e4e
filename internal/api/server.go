// Package api is the HTTP control surface of the wedge: it reports session
// status and scan history, and stands in for the device buttons.
package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/banshee-data/scanwedge/internal/db"
	"github.com/banshee-data/scanwedge/internal/httputil"
	"github.com/banshee-data/scanwedge/internal/monitoring"
	"github.com/banshee-data/scanwedge/internal/session"
	"github.com/banshee-data/scanwedge/internal/version"
)

// ANSI escape codes for cyan and reset
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

const (
	defaultScanLimit = 50
	maxScanLimit     = 1000
)

// StatusSource reports the live session state.
type StatusSource interface {
	Status() session.Status
}

// ScanHistory lists stored scans. *db.DB implements it.
type ScanHistory interface {
	RecentScans(limit int) ([]db.Scan, error)
}

// Modes is the requested mode state. The session applies it on its next poll,
// so it can lead Status by one poll interval.
type Modes struct {
	Scanning  bool `json:"scanning"`
	Debug     bool `json:"debug"`
	BaudIndex int  `json:"baud_index"`
	BaudRate  int  `json:"baud_rate"`
}

// StatusResponse is the body of GET /api/status.
type StatusResponse struct {
	Version string         `json:"version"`
	GitSHA  string         `json:"git_sha"`
	Modes   Modes          `json:"modes"`
	Session session.Status `json:"session"`
}

type Server struct {
	modes   *session.Modes
	status  StatusSource
	history ScanHistory
}

// NewServer returns a server. history may be nil when scan history is
// disabled.
func NewServer(modes *session.Modes, status StatusSource, history ScanHistory) *Server {
	return &Server{
		modes:   modes,
		status:  status,
		history: history,
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
		monitoring.Logf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	s.AttachRoutes(mux)
	return mux
}

// AttachRoutes registers the /api/ endpoints on mux.
func (s *Server) AttachRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/scans", s.handleScans)
	mux.HandleFunc("/api/scan", s.handleScanning)
	mux.HandleFunc("/api/debug", s.handleDebug)
	mux.HandleFunc("/api/baud", s.handleBaud)
}

func (s *Server) currentModes() Modes {
	cfg := s.modes.Snapshot()
	return Modes{
		Scanning:  cfg.Scanning,
		Debug:     cfg.Debug,
		BaudIndex: cfg.BaudIndex,
		BaudRate:  cfg.BaudRate(),
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if !httputil.AllowMethods(w, r, http.MethodGet) {
		return
	}
	httputil.WriteJSONOK(w, StatusResponse{
		Version: version.Version,
		GitSHA:  version.GitSHA,
		Modes:   s.currentModes(),
		Session: s.status.Status(),
	})
}

func (s *Server) handleScans(w http.ResponseWriter, r *http.Request) {
	if !httputil.AllowMethods(w, r, http.MethodGet) {
		return
	}
	if s.history == nil {
		httputil.ServiceUnavailable(w, "scan history is disabled")
		return
	}

	limit := defaultScanLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > maxScanLimit {
			httputil.BadRequest(w, "limit must be between 1 and 1000")
			return
		}
		limit = n
	}

	scans, err := s.history.RecentScans(limit)
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	if scans == nil {
		scans = []db.Scan{}
	}
	httputil.WriteJSONOK(w, scans)
}

// parseEnabled reads the optional enabled form value. ok is false when the
// value is present but not a boolean.
func parseEnabled(r *http.Request) (v *bool, ok bool) {
	raw := r.FormValue("enabled")
	if raw == "" {
		return nil, true
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, false
	}
	return &b, true
}

// handleScanning is the short button press: toggle, or set with enabled=.
func (s *Server) handleScanning(w http.ResponseWriter, r *http.Request) {
	if !httputil.AllowMethods(w, r, http.MethodPost) {
		return
	}
	enabled, ok := parseEnabled(r)
	if !ok {
		httputil.BadRequest(w, "enabled must be a boolean")
		return
	}
	if enabled == nil {
		s.modes.ToggleScanning()
	} else {
		s.modes.SetScanning(*enabled)
	}
	httputil.WriteJSONOK(w, s.currentModes())
}

// handleDebug is the long button press.
func (s *Server) handleDebug(w http.ResponseWriter, r *http.Request) {
	if !httputil.AllowMethods(w, r, http.MethodPost) {
		return
	}
	enabled, ok := parseEnabled(r)
	if !ok {
		httputil.BadRequest(w, "enabled must be a boolean")
		return
	}
	if enabled == nil {
		s.modes.ToggleDebug()
	} else {
		s.modes.SetDebug(*enabled)
	}
	httputil.WriteJSONOK(w, s.currentModes())
}

// handleBaud is the very long button press: next candidate, or index=.
func (s *Server) handleBaud(w http.ResponseWriter, r *http.Request) {
	if !httputil.AllowMethods(w, r, http.MethodPost) {
		return
	}
	if raw := r.FormValue("index"); raw != "" {
		i, err := strconv.Atoi(raw)
		if err != nil {
			httputil.BadRequest(w, "index must be an integer")
			return
		}
		if err := s.modes.SetBaudIndex(i); err != nil {
			httputil.BadRequest(w, err.Error())
			return
		}
	} else {
		s.modes.CycleBaud()
	}
	httputil.WriteJSONOK(w, s.currentModes())
}
