// Package server exposes clips over a JSON HTTP API and streams coordinator
// events to websocket clients.
package server

import (
	"bufio"
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/Skryldev/voiceclip/application/usecase"
	"github.com/Skryldev/voiceclip/domain/model"
	"github.com/Skryldev/voiceclip/pkg/logger"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// Clips is the part of the clip service the API needs.
type Clips interface {
	Create(ctx context.Context, title string) (*usecase.ClipManager, error)
	Open(ctx context.Context, id string) (*usecase.ClipManager, error)
	List(ctx context.Context) ([]model.AudioItem, error)
	Delete(ctx context.Context, id string) error
}

type Server struct {
	clips  Clips
	log    *logger.Logger
	router *mux.Router
}

func New(clips Clips, log *logger.Logger) *Server {
	s := &Server{
		clips: clips,
		log:   logger.OrNop(log).Named("http"),
	}
	s.router = s.routes()
	return s
}

func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.logRequests)

	r.HandleFunc("/clips", s.handleList).Methods(http.MethodGet)
	r.HandleFunc("/clips", s.handleCreate).Methods(http.MethodPost)
	r.HandleFunc("/clips/{id}", s.handleGet).Methods(http.MethodGet)
	r.HandleFunc("/clips/{id}", s.handleDelete).Methods(http.MethodDelete)

	r.HandleFunc("/clips/{id}/play", s.handlePlay).Methods(http.MethodPost)
	r.HandleFunc("/clips/{id}/pause", s.handlePause).Methods(http.MethodPost)
	r.HandleFunc("/clips/{id}/stop", s.handleStop).Methods(http.MethodPost)
	r.HandleFunc("/clips/{id}/seek", s.handleSeek).Methods(http.MethodPost)
	r.HandleFunc("/clips/{id}/rate", s.handleRate).Methods(http.MethodPost)

	r.HandleFunc("/clips/{id}/record/start", s.handleRecordStart).Methods(http.MethodPost)
	r.HandleFunc("/clips/{id}/record/stop", s.handleRecordStop).Methods(http.MethodPost)

	r.HandleFunc("/clips/{id}/crop", s.handleCrop).Methods(http.MethodPost)
	r.HandleFunc("/clips/{id}/cut", s.handleCut).Methods(http.MethodPost)
	r.HandleFunc("/clips/{id}/insert", s.handleInsert).Methods(http.MethodPost)
	r.HandleFunc("/clips/{id}/apply", s.handleApply).Methods(http.MethodPost)
	r.HandleFunc("/clips/{id}/cancel", s.handleCancel).Methods(http.MethodPost)

	r.HandleFunc("/clips/{id}/events", s.handleEvents).Methods(http.MethodGet)
	return r
}

// ListenAndServe serves on addr until ctx is canceled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("server starting", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }

// Hijack is needed by the websocket upgrade.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	return h.Hijack()
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		reqLog := s.log.With(zap.String("method", r.Method), zap.String("path", r.URL.Path))
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r.WithContext(logger.WithContext(r.Context(), reqLog)))

		reqLog.Debug("request",
			zap.Int("status", rec.status),
			zap.Duration("elapsed", time.Since(start)),
		)
	})
}
