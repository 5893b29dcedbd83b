// Package emulator is a local stand-in for the hosted document API. It serves
// the same wire protocol the reststore adapter speaks, backed by the memory or
// sqlite docstore, so the full SDK stack runs with no cloud project.
package emulator

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/famgate/famgate/internal/config"
	"github.com/famgate/famgate/internal/docstore"
	"github.com/famgate/famgate/internal/docstore/memstore"
	"github.com/famgate/famgate/internal/docstore/sqlitestore"
	"github.com/famgate/famgate/internal/logger"
)

// NewRouter wires the document API routes over st.
func NewRouter(st docstore.Store, log zerolog.Logger) *mux.Router {
	root := mux.NewRouter()
	root.Use(recoverMiddleware(log))

	h := newDocHandler(st)
	root.HandleFunc("/v0/health", h.CheckHealth).Methods("GET")
	root.HandleFunc("/v0/collections/{collection}/docs", h.CreateDoc).Methods("POST")
	root.HandleFunc("/v0/collections/{collection}/docs/{id}", h.GetDoc).Methods("GET")
	root.HandleFunc("/v0/collections/{collection}/docs/{id}", h.UpdateDoc).Methods("PUT")
	root.HandleFunc("/v0/collections/{collection}/docs/{id}", h.DeleteDoc).Methods("DELETE")
	root.HandleFunc("/v0/collections/{collection}/query", h.QueryDocs).Methods("POST")
	return root
}

// recoverMiddleware intercepts panics from downstream handlers, logs details,
// and returns HTTP 500.
func recoverMiddleware(log zerolog.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					log.Error().
						Interface("panic", rec).
						Str("method", r.Method).
						Str("url", r.URL.String()).
						Str("remote", r.RemoteAddr).
						Bytes("stack", debug.Stack()).
						Msg("panic recovered")
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_, _ = w.Write([]byte(`{"error":"Internal Server Error","code":500}`))
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// Run starts the emulator HTTP server and blocks until shutdown or error.
func Run() error {
	log := logger.New("famgate-emulator")

	cfg, err := config.New()
	if err != nil {
		log.Error().Err(err).Msg("Failed to load configuration")
		return err
	}

	log.Info().
		Str("project_id", cfg.ProjectID).
		Int("http_port", cfg.HTTPPort).
		Str("sqlite_path", cfg.SQLitePath).
		Msg("Emulator starting")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := newBackingStore(cfg)
	if err != nil {
		log.Error().Err(err).Msg("Backing store unavailable")
		return err
	}
	defer func() { _ = st.Close() }()

	router := NewRouter(st, log)
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Int("port", cfg.HTTPPort).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("Shutting down emulator")
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(ctxShutdown); err != nil {
			log.Error().Err(err).Msg("Server forced to shutdown")
			return err
		}
		log.Info().Msg("Emulator exited")
		return nil
	case err := <-errCh:
		log.Error().Err(err).Msg("HTTP server failed")
		return err
	}
}

// newBackingStore picks the emulator's own persistence. The rest driver is not
// valid here: the emulator is the other end of that protocol.
func newBackingStore(cfg *config.Config) (docstore.Store, error) {
	if cfg.SQLitePath != "" {
		return sqlitestore.Open(cfg.SQLitePath)
	}
	return memstore.New(), nil
}
