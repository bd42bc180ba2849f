package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/relaymetrics/relay-monitor/pkg/config"
	"github.com/relaymetrics/relay-monitor/pkg/leaderboard"
	"github.com/relaymetrics/relay-monitor/pkg/store"
	"go.uber.org/zap"
)

const (
	PathReport       = "/api/v1/report"
	PathMetrics      = "/api/v1/metrics"
	PathLeaderboards = "/api/v1/leaderboards"
	PathLeaderboard  = "/api/v1/leaderboards/{category}"
	PathPrometheus   = "/metrics"

	defaultPageSize = 25
)

// Server serves the latest published report as JSON.
type Server struct {
	config *config.APIConfig
	logger *zap.Logger
	store  store.Storer
	Srv    *http.Server
}

func New(config *config.APIConfig, logger *zap.Logger, store store.Storer) *Server {
	s := &Server{
		config: config,
		logger: logger,
		store:  store,
	}
	s.Srv = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", config.Host, config.Port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 2 * time.Second,
		WriteTimeout:      10 * time.Second,
	}
	return s
}

// Register adds the API routes to r.
func (s *Server) Register(r *mux.Router) {
	r.HandleFunc(PathReport, s.handleReport).Methods(http.MethodGet)
	r.HandleFunc(PathMetrics, s.handleMetrics).Methods(http.MethodGet)
	r.HandleFunc(PathLeaderboards, s.handleCategories).Methods(http.MethodGet)
	r.HandleFunc(PathLeaderboard, s.handleLeaderboard).Methods(http.MethodGet)
	r.Handle(PathPrometheus, promhttp.Handler()).Methods(http.MethodGet)
}

func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	s.Register(r)
	return handlers.CORS(handlers.AllowedMethods([]string{http.MethodGet}))(
		handlers.RecoveryHandler(handlers.PrintRecoveryStack(false))(r),
	)
}

func (s *Server) Run(ctx context.Context) error {
	logger := s.logger.Sugar()
	logger.Infof("API server listening on %s", s.Srv.Addr)

	go func() {
		<-ctx.Done()
		_ = s.Shutdown()
	}()

	err := s.Srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.Srv.Shutdown(ctx)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	latest, err := s.store.GetLatestReport(r.Context())
	if err != nil {
		s.respondStoreError(w, err)
		return
	}
	s.respondOK(w, latest)
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	latest, err := s.store.GetLatestReport(r.Context())
	if err != nil {
		s.respondStoreError(w, err)
		return
	}
	s.respondOK(w, latest.Metrics)
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	response := &CategoriesResponse{}
	for _, definition := range leaderboard.Definitions() {
		response.Categories = append(response.Categories, &CategoryResponse{
			Category: definition.Category,
			Family:   definition.Family,
			Title:    definition.Title,
		})
	}
	if latest, err := s.store.GetLatestReport(r.Context()); err == nil {
		response.ReportID = latest.ID
	}
	s.respondOK(w, response)
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	category := leaderboard.Category(mux.Vars(r)["category"])

	offset, err := queryInt(r, "offset", 0)
	if err != nil || offset < 0 {
		s.respondError(w, http.StatusBadRequest, "invalid offset")
		return
	}
	limit, err := queryInt(r, "limit", defaultPageSize)
	if err != nil || limit <= 0 {
		s.respondError(w, http.StatusBadRequest, "invalid limit")
		return
	}
	if s.config.MaxPageSize > 0 && limit > s.config.MaxPageSize {
		limit = s.config.MaxPageSize
	}

	page, err := s.store.GetLeaderboard(r.Context(), category, offset, limit)
	if err != nil {
		s.respondStoreError(w, err)
		return
	}
	s.respondOK(w, page)
}

func queryInt(r *http.Request, key string, fallback int) (int, error) {
	value := r.URL.Query().Get(key)
	if value == "" {
		return fallback, nil
	}
	return strconv.Atoi(value)
}

func (s *Server) respondStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNoReport), errors.Is(err, store.ErrUnknownCategory):
		s.respondError(w, http.StatusNotFound, err.Error())
	default:
		s.logger.Sugar().Warnw("could not read from store", "error", err)
		s.respondError(w, http.StatusInternalServerError, "internal error")
	}
}

func (s *Server) respondError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	resp := ErrorResponse{Code: code, Message: message}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Sugar().Errorw("could not write error response", "error", err)
	}
}

func (s *Server) respondOK(w http.ResponseWriter, response any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		s.logger.Sugar().Errorw("could not write OK response", "error", err)
	}
}
