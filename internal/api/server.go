package api

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"followers-monitor/internal/database/models"
	"followers-monitor/internal/diff"
	"followers-monitor/internal/monitoring"
	"followers-monitor/internal/storage"
	"followers-monitor/pkg/types"
)

// Archive is the optional database backing for the stats and events
// endpoints.
type Archive interface {
	Ping(ctx context.Context) error
	GetStats(ctx context.Context, account string) (map[string]interface{}, error)
	GetSnapshots(ctx context.Context, account string, limit int) ([]*models.SnapshotRow, error)
	GetFollowEvents(ctx context.Context, account string, limit int) ([]*models.FollowEvent, error)
}

type Server struct {
	store      *storage.Store
	archive    Archive
	monitor    *monitoring.Monitor
	account    string
	staleAfter time.Duration
	logger     *logrus.Logger
	port       string
	router     chi.Router
}

type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Count   int         `json:"count,omitempty"`
}

type SnapshotInfo struct {
	File       string    `json:"file"`
	TakenAt    time.Time `json:"taken_at"`
	Checkpoint bool      `json:"checkpoint"`
}

type DiffResponse struct {
	Account   string           `json:"account"`
	From      *types.Timestamp `json:"from,omitempty"`
	To        types.Timestamp  `json:"to"`
	Diff      *types.Diff      `json:"diff"`
	Renamed   []diff.Rename    `json:"renamed"`
	NetChange int              `json:"net_change"`
}

type Options struct {
	Account    string
	Port       string
	StaleAfter time.Duration
	// Archive and Monitor may be nil.
	Archive Archive
	Monitor *monitoring.Monitor
}

func NewServer(store *storage.Store, opts Options, logger *logrus.Logger) *Server {
	s := &Server{
		store:      store,
		archive:    opts.Archive,
		monitor:    opts.Monitor,
		account:    opts.Account,
		staleAfter: opts.StaleAfter,
		logger:     logger,
		port:       opts.Port,
	}
	s.router = s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              ":" + s.port,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Infof("Starting API server on port %s", s.port)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.logger.Info("Shutting down API server...")
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)
	r.Use(corsMiddleware)

	r.Get("/", s.handleRoot)
	r.Get("/dashboard", s.handleDashboard)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/snapshots", s.handleSnapshots)
		r.Get("/snapshots/latest", s.handleLatest)
		r.Get("/snapshots/{file}", s.handleSnapshot)
		r.Get("/diff", s.handleDiff)
		r.Get("/followers", s.handleFollowers)
		r.Get("/followers/export/csv", s.handleExportCSV)
		r.Get("/stats", s.handleStats)
		r.Get("/events", s.handleEvents)
		r.Get("/archive/snapshots", s.handleArchiveSnapshots)
	})

	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.WithFields(logrus.Fields{
			"request_id": middleware.GetReqID(r.Context()),
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     ww.Status(),
			"bytes":      ww.BytesWritten(),
			"duration":   time.Since(start).Round(time.Millisecond),
		}).Debug("API request")
	})
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, APIResponse{
		Success: true,
		Data: map[string]string{
			"message":   "Followers Monitor API",
			"account":   s.account,
			"endpoints": "/api/health, /api/snapshots, /api/snapshots/latest, /api/diff, /api/followers, /api/followers/export/csv, /api/stats, /api/events, /dashboard",
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	data := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	if s.monitor != nil {
		for k, v := range s.monitor.GetHealthStatus(s.staleAfter) {
			data[k] = v
		}
	}

	if s.archive != nil {
		if err := s.archive.Ping(r.Context()); err != nil {
			s.writeError(w, "Database connection failed", http.StatusServiceUnavailable)
			return
		}
		data["database"] = "connected"
	}

	s.writeJSON(w, APIResponse{Success: true, Data: data})
}

func (s *Server) handleSnapshots(w http.ResponseWriter, r *http.Request) {
	history, err := s.store.History()
	if err != nil {
		s.writeError(w, fmt.Sprintf("Failed to list snapshots: %v", err), http.StatusInternalServerError)
		return
	}

	infos := make([]SnapshotInfo, 0, len(history))
	for i := len(history) - 1; i >= 0; i-- {
		infos = append(infos, SnapshotInfo{
			File:       filepath.Base(history[i].Path),
			TakenAt:    history[i].TakenAt,
			Checkpoint: history[i].Checkpoint,
		})
	}

	s.writeJSON(w, APIResponse{Success: true, Data: infos, Count: len(infos)})
}

func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.latest(w)
	if !ok {
		return
	}
	s.writeJSON(w, APIResponse{Success: true, Data: snap, Count: snap.TotalFollowers})
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	file := chi.URLParam(r, "file")
	if file != filepath.Base(file) || !strings.HasSuffix(file, ".json") {
		s.writeError(w, "Invalid snapshot name", http.StatusBadRequest)
		return
	}

	history, err := s.store.History()
	if err != nil {
		s.writeError(w, fmt.Sprintf("Failed to list snapshots: %v", err), http.StatusInternalServerError)
		return
	}
	for _, entry := range history {
		if filepath.Base(entry.Path) != file {
			continue
		}
		snap, err := s.store.Load(entry.Path)
		if err != nil {
			s.writeError(w, fmt.Sprintf("Failed to load snapshot: %v", err), http.StatusInternalServerError)
			return
		}
		s.writeJSON(w, APIResponse{Success: true, Data: snap, Count: snap.TotalFollowers})
		return
	}

	s.writeError(w, "Snapshot not found", http.StatusNotFound)
}

func (s *Server) handleDiff(w http.ResponseWriter, r *http.Request) {
	current, ok := s.latest(w)
	if !ok {
		return
	}

	previous, err := s.store.Previous()
	if err != nil {
		s.writeError(w, fmt.Sprintf("Failed to load previous snapshot: %v", err), http.StatusInternalServerError)
		return
	}

	resp := DiffResponse{
		Account: current.Username,
		To:      current.Timestamp,
		Diff:    diff.Compare(previous, current),
		Renamed: diff.Renamed(previous, current),
	}
	if previous != nil {
		resp.From = &previous.Timestamp
		resp.NetChange = resp.Diff.NetChange()
	}

	s.writeJSON(w, APIResponse{Success: true, Data: resp})
}

func (s *Server) handleFollowers(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.latest(w)
	if !ok {
		return
	}

	query := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("q")))
	followers := make([]types.FollowerRecord, 0, len(snap.Followers))
	for _, f := range snap.Followers {
		if query == "" ||
			strings.Contains(strings.ToLower(f.Username), query) ||
			strings.Contains(strings.ToLower(f.Name), query) {
			followers = append(followers, f)
		}
	}

	s.writeJSON(w, APIResponse{Success: true, Data: followers, Count: len(followers)})
}

func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.latest(w)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=followers_%s_%s.csv",
		snap.Username, snap.Timestamp.Format("2006-01-02")))

	cw := csv.NewWriter(w)
	cw.Write([]string{"Name", "Username", "Profile URL"})
	for _, f := range snap.Followers {
		cw.Write([]string{f.Name, f.Username, f.ProfileURL})
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		s.logger.Errorf("Failed to write CSV export: %v", err)
	}
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if s.archive == nil {
		s.writeError(w, "Database archive is not enabled", http.StatusServiceUnavailable)
		return
	}

	stats, err := s.archive.GetStats(r.Context(), s.account)
	if err != nil {
		s.writeError(w, fmt.Sprintf("Failed to fetch stats: %v", err), http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, APIResponse{Success: true, Data: stats})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.archive == nil {
		s.writeError(w, "Database archive is not enabled", http.StatusServiceUnavailable)
		return
	}

	events, err := s.archive.GetFollowEvents(r.Context(), s.account, queryLimit(r))
	if err != nil {
		s.writeError(w, fmt.Sprintf("Failed to fetch follow events: %v", err), http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, APIResponse{Success: true, Data: events, Count: len(events)})
}

func (s *Server) handleArchiveSnapshots(w http.ResponseWriter, r *http.Request) {
	if s.archive == nil {
		s.writeError(w, "Database archive is not enabled", http.StatusServiceUnavailable)
		return
	}

	snapshots, err := s.archive.GetSnapshots(r.Context(), s.account, queryLimit(r))
	if err != nil {
		s.writeError(w, fmt.Sprintf("Failed to fetch archived snapshots: %v", err), http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, APIResponse{Success: true, Data: snapshots, Count: len(snapshots)})
}

// queryLimit reads ?limit=, defaulting to 100 and capped at 500.
func queryLimit(r *http.Request) int {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit < 1 || limit > 500 {
		limit = 100
	}
	return limit
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(dashboardHTML))
}

// latest loads the baseline snapshot, writing an error response when there
// is none.
func (s *Server) latest(w http.ResponseWriter) (*types.Snapshot, bool) {
	snap, err := s.store.Latest()
	if err != nil {
		s.writeError(w, fmt.Sprintf("Failed to load latest snapshot: %v", err), http.StatusInternalServerError)
		return nil, false
	}
	if snap == nil {
		s.writeError(w, "No snapshots recorded yet", http.StatusNotFound)
		return nil, false
	}
	return snap, true
}

func (s *Server) writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Errorf("Failed to encode JSON response: %v", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(APIResponse{Success: false, Error: message})
}

const dashboardHTML = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <title>Followers Monitor</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; background: #f5f5f5; margin: 0; }
        .container { max-width: 960px; margin: 0 auto; padding: 20px; }
        .card { background: white; padding: 20px; border-radius: 8px; margin-bottom: 20px; box-shadow: 0 2px 4px rgba(0,0,0,0.1); }
        .added { color: #2ecc71; }
        .removed { color: #e74c3c; }
        li { padding: 2px 0; }
    </style>
</head>
<body>
    <div class="container">
        <div class="card"><h1>Followers Monitor</h1><p id="summary">Loading...</p></div>
        <div class="card"><h2 class="removed">Unfollowed</h2><ul id="removed"></ul></div>
        <div class="card"><h2 class="added">New Followers</h2><ul id="added"></ul></div>
        <div class="card"><a href="/api/followers/export/csv">Export CSV</a></div>
    </div>
    <script>
        function fill(id, users) {
            const list = document.getElementById(id);
            list.innerHTML = '';
            (users || []).forEach(u => {
                const li = document.createElement('li');
                li.textContent = u.name + ' (@' + u.username + ')';
                list.appendChild(li);
            });
        }
        fetch('/api/diff').then(r => r.json()).then(data => {
            if (!data.success) { throw new Error(data.error); }
            const d = data.data;
            const summary = document.getElementById('summary');
            if (!d.diff) {
                summary.textContent = '@' + d.account + ': first snapshot, nothing to compare yet.';
                return;
            }
            summary.textContent = '@' + d.account + ': +' + d.diff.added_count + ' / -' + d.diff.removed_count + ' (net ' + d.net_change + ')';
            fill('removed', d.diff.removed);
            fill('added', d.diff.added);
        }).catch(err => {
            document.getElementById('summary').textContent = 'Error: ' + err.message;
        });
    </script>
</body>
</html>`
