// Package admin serves the operator HTTP API: health and inspection or
// removal of the online game records.
package admin

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/klauspost/compress/gzhttp"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/cory-johannsen/tenthousand/internal/config"
	"github.com/cory-johannsen/tenthousand/internal/remote"
)

// CheckFunc reports whether a dependency is healthy.
type CheckFunc func(ctx context.Context) error

// RoomSummary is the listing form of one game record.
type RoomSummary struct {
	Code               string    `json:"code"`
	Players            []string  `json:"players"`
	Scores             []int64   `json:"scores"`
	CurrentPlayer      int64     `json:"currentPlayer"`
	Phase              string    `json:"phase"`
	QualificationScore int64     `json:"qualificationScore"`
	WaitingForPlayer2  bool      `json:"waitingForPlayer2"`
	GameOver           bool      `json:"gameOver"`
	UpdatedAt          time.Time `json:"updatedAt,omitempty"`
}

// Summarize extracts a RoomSummary from a stored record.
func Summarize(code string, doc []byte) RoomSummary {
	res := gjson.GetManyBytes(doc,
		"players.#.name", "players.#.totalScore", "currentPlayer", "gamePhase",
		"qualificationScore", "waitingForPlayer2", "isGameOver", "updatedAt")
	s := RoomSummary{
		Code:               code,
		Players:            []string{},
		Scores:             []int64{},
		CurrentPlayer:      res[2].Int(),
		Phase:              res[3].String(),
		QualificationScore: res[4].Int(),
		WaitingForPlayer2:  res[5].Bool(),
		GameOver:           res[6].Bool(),
		UpdatedAt:          res[7].Time(),
	}
	for _, n := range res[0].Array() {
		s.Players = append(s.Players, n.String())
	}
	for _, v := range res[1].Array() {
		s.Scores = append(s.Scores, v.Int())
	}
	return s
}

// Server is the admin HTTP API.
type Server struct {
	store  remote.Store
	check  CheckFunc
	logger *zap.Logger
	now    func() time.Time

	router chi.Router
	srv    *http.Server
}

// NewServer builds the admin API over store. check may be nil.
//
// Precondition: store and logger must be non-nil.
func NewServer(cfg config.AdminConfig, store remote.Store, check CheckFunc, logger *zap.Logger) *Server {
	s := &Server{store: store, check: check, logger: logger, now: time.Now}
	s.router = s.routes()
	s.srv = &http.Server{
		Addr:         cfg.Addr(),
		Handler:      s.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	return s
}

// Handler returns the routed API.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.accessLog)
	r.Use(middleware.Recoverer)
	r.Use(func(next http.Handler) http.Handler { return gzhttp.GzipHandler(next) })

	r.Get("/healthz", s.health)
	r.Route("/rooms", func(r chi.Router) {
		r.Get("/", s.listRooms)
		r.Post("/prune", s.prune)
		r.Get("/{code}", s.getRoom)
		r.Delete("/{code}", s.deleteRoom)
	})
	return r
}

// Start serves until Stop is called.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return err
	}
	s.logger.Info("admin API listening", zap.String("addr", ln.Addr().String()))
	if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop shuts the server down, letting in-flight requests finish.
func (s *Server) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.srv.Shutdown(ctx); err != nil {
		s.logger.Warn("admin API shutdown", zap.Error(err))
	}
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		level := zap.DebugLevel
		if ww.Status() >= http.StatusInternalServerError {
			level = zap.WarnLevel
		}
		s.logger.Check(level, "http.access").Write(
			zap.Int("status", ww.Status()),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Duration("latency", time.Since(start)),
		)
	})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	if s.check != nil {
		if err := s.check(r.Context()); err != nil {
			s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
			return
		}
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) listRooms(w http.ResponseWriter, r *http.Request) {
	codes, err := s.store.List(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	sort.Strings(codes)
	rooms := make([]RoomSummary, 0, len(codes))
	for _, code := range codes {
		doc, err := s.store.Get(r.Context(), code)
		if errors.Is(err, remote.ErrNotFound) {
			continue
		}
		if err != nil {
			s.fail(w, r, err)
			return
		}
		rooms = append(rooms, Summarize(code, doc))
	}
	s.writeJSON(w, http.StatusOK, rooms)
}

func (s *Server) getRoom(w http.ResponseWriter, r *http.Request) {
	doc, err := s.store.Get(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(doc)
}

func (s *Server) deleteRoom(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	if _, err := s.store.Get(r.Context(), code); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.store.Delete(r.Context(), code); err != nil {
		s.fail(w, r, err)
		return
	}
	s.logger.Info("room deleted by operator", zap.String("code", code))
	w.WriteHeader(http.StatusNoContent)
}

// prune deletes records idle for longer than the older_than duration
// (default 24h).
func (s *Server) prune(w http.ResponseWriter, r *http.Request) {
	age := 24 * time.Hour
	if v := r.URL.Query().Get("older_than"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "older_than must be a positive duration"})
			return
		}
		age = d
	}
	n, err := remote.PruneStale(r.Context(), s.store, s.now().Add(-age))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.logger.Info("pruned rooms", zap.Int64("deleted", n), zap.Duration("older_than", age))
	s.writeJSON(w, http.StatusOK, map[string]int64{"deleted": n})
}

func statusCode(err error) int {
	switch {
	case errors.Is(err, remote.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusCode(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("admin request failed", zap.String("path", r.URL.Path), zap.Error(err))
	}
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Debug("writing response", zap.Error(err))
	}
}
