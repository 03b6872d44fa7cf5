package routing

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"sessionstore/pkg/handlers"
	"sessionstore/pkg/session"
)

func InitRoutes(api *mux.Router, store session.Store, logger *slog.Logger) {
	sessionHandler := handlers.NewSessionHandler(logger)
	sweepHandler := handlers.NewSweepHandler(store, logger)

	sessionRouter := api.PathPrefix("/session").Subrouter()

	sessionRouter.HandleFunc("", sessionHandler.Get).Methods("GET").Name("session")
	sessionRouter.HandleFunc("", sessionHandler.Destroy).Methods("DELETE")
	sessionRouter.HandleFunc("/{key:[a-zA-Z0-9_.-]+}", sessionHandler.SetValue).Methods("PUT")
	sessionRouter.HandleFunc("/{key:[a-zA-Z0-9_.-]+}", sessionHandler.RemoveValue).Methods("DELETE")

	// The sweep endpoint has no access control of its own. Expose it only
	// on an internal listener or behind a proxy that blocks it publicly.
	api.HandleFunc("/sessions/sweep", sweepHandler.Sweep).Methods("POST").Name("sweep")
}

func ServeFallback(r *mux.Router, logger *slog.Logger) {
	r.PathPrefix("/").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		if _, err := w.Write([]byte(`{"message":"not found"}`)); err != nil {
			logger.Error("failed to write fallback JSON", slog.String("path", r.URL.Path), slog.Any("error", err))
		}
	})
}

// StartSweeper calls DeleteExpired every interval until ctx is done.
// A zero interval disables it.
func StartSweeper(ctx context.Context, store session.Store, interval time.Duration, logger *slog.Logger) {
	if interval <= 0 {
		logger.Info("expiry sweeper disabled")
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case t := <-ticker.C:
				if err := store.DeleteExpired(t.Unix()); err != nil {
					logger.Error("expiry sweep", "error", err)
				}
			}
		}
	}()
}

func StartServer(ctx context.Context, r *mux.Router, addr string, logger *slog.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown", "error", err)
		}
	}()

	logger.Info("server is running", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
