// Package server exposes a sealer.Engine over HTTP for a local front end.
//
// Commands are JSON requests under /api; they block until the job finishes. Progress events of the running job are
// streamed as JSON text messages to every websocket connected to /ws/events.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/nguyengg/sealer"
	"github.com/nguyengg/sealer/progress"
	"github.com/sirupsen/logrus"
)

// Options customises New.
type Options struct {
	// Logger receives request logs.
	//
	// Default to logrus.StandardLogger.
	Logger logrus.FieldLogger

	// EngineOptions are passed to sealer.New. The engine's progress sink is chained with the websocket hub.
	EngineOptions []func(*sealer.Options)

	// DefaultMethod is the encryption method used when a request does not name one.
	//
	// Default to sealer.StrongZip.
	DefaultMethod sealer.EncryptionMethod
}

// Server handles the HTTP and websocket connections.
type Server struct {
	engine *sealer.Engine
	hub    *hub
	logger logrus.FieldLogger
	method sealer.EncryptionMethod
	router *mux.Router
}

// New creates a new Server with its own sealer.Engine.
func New(optFns ...func(*Options)) *Server {
	opts := &Options{
		Logger:        logrus.StandardLogger(),
		DefaultMethod: sealer.StrongZip,
	}
	for _, fn := range optFns {
		fn(opts)
	}

	h := newHub(opts.Logger)
	engineOpts := append([]func(*sealer.Options){sealer.WithLogger(opts.Logger)}, opts.EngineOptions...)
	engineOpts = append(engineOpts, func(o *sealer.Options) {
		o.Sink = progress.Multi(o.Sink, h.publish)
	})

	s := &Server{
		engine: sealer.New(engineOpts...),
		hub:    h,
		logger: opts.Logger,
		method: opts.DefaultMethod,
		router: mux.NewRouter(),
	}

	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/password", s.handlePassword).Methods(http.MethodGet)
	api.HandleFunc("/metadata", s.handleMetadata).Methods(http.MethodPost)
	api.HandleFunc("/encrypt", s.handleEncrypt).Methods(http.MethodPost)
	api.HandleFunc("/decrypt", s.handleDecrypt).Methods(http.MethodPost)
	api.HandleFunc("/cancel", s.handleCancel).Methods(http.MethodPost)
	api.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)

	s.router.HandleFunc("/ws/events", h.serveWs)
	s.router.Use(s.logMiddleware)

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe listens on addr until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	s.logger.WithField("addr", addr).Info("listening")

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.engine.Cancel()
	s.hub.closeAll()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

func (s *Server) logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.WithFields(logrus.Fields{
			"method":  r.Method,
			"path":    r.URL.Path,
			"elapsed": time.Since(start).Round(time.Millisecond),
		}).Debug("request")
	})
}
