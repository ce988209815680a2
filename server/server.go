// Package server exposes the pricer and the bootstrapper as a stateless
// HTTP API. Every request is answered from its own inputs only.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/golang/glog"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/joshi-prasad/quant/config"
)

const (
	kRequestIDHeader = "X-Request-ID"
	kApiPrefix       = "/api"
)

type requestIDKey struct{}

// Server routes API, chart and plot requests.
type Server struct {
	cfg    *config.Config
	router *mux.Router
}

func New(cfg *config.Config) *Server {
	s := &Server{
		cfg:    cfg,
		router: mux.NewRouter(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.Use(requestIDMiddleware, loggingMiddleware)

	// Registered on the root router so a method mismatch is a 405.
	s.router.HandleFunc(kApiPrefix+"/healthz", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc(kApiPrefix+"/price", s.handlePrice).Methods(http.MethodPost)
	s.router.HandleFunc(kApiPrefix+"/price/curve", s.handlePriceCurve).Methods(http.MethodPost)
	s.router.HandleFunc(kApiPrefix+"/implied-vol", s.handleImpliedVol).Methods(http.MethodPost)
	s.router.HandleFunc(kApiPrefix+"/bootstrap", s.handleBootstrap).Methods(http.MethodPost)

	s.router.HandleFunc("/chart/bootstrap", s.handleBootstrapChart).Methods(http.MethodPost)
	s.router.HandleFunc("/chart/price", s.handlePriceChart).Methods(http.MethodGet)
	s.router.HandleFunc("/plot/bootstrap", s.handleBootstrapPlot).Methods(http.MethodPost)
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Server.Address,
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		glog.Infof("Listening on %s", s.cfg.Server.Address)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		glog.Info("Shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(kRequestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set(kRequestIDHeader, id)
		ctx := context.WithValue(r.Context(), requestIDKey{}, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		glog.V(2).Infof("request_id=%s %s %s took=%s",
			requestID(r), r.Method, r.URL.Path, time.Since(start))
	})
}

func requestID(r *http.Request) string {
	id, _ := r.Context().Value(requestIDKey{}).(string)
	return id
}
