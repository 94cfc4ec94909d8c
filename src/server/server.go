package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	logger "github.com/sirupsen/logrus"

	"papertrader/src/auth"
	"papertrader/src/handler"
	"papertrader/src/metrics"
)

// Routes groups the handlers mounted by NewRouter.
type Routes struct {
	Trading     http.HandlerFunc
	GetSettings http.HandlerFunc
	PutSettings http.HandlerFunc
	Trades      http.HandlerFunc
	Metrics     *metrics.Registry
}

func NewRouter(routes Routes) http.Handler {
	r := chi.NewRouter()
	// === Global Middleware ===
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	// Public routes
	r.Get("/healthcheck", func(w http.ResponseWriter, r *http.Request) {
		if _, err := w.Write([]byte("OK")); err != nil {
			logger.WithError(err).Error(" \"/health error")
		}
	})
	if routes.Metrics != nil {
		r.Get("/metrics", handler.MetricsHandler(routes.Metrics))
	}

	// User routes, identity set by the auth gateway
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireUser)
		r.Post("/trading", routes.Trading)
		r.Get("/settings", routes.GetSettings)
		r.Put("/settings", routes.PutSettings)
		r.Get("/trades", routes.Trades)
	})

	return r
}

// StartServer serves h on port until SIGINT or SIGTERM.
func StartServer(port string, h http.Handler) {
	addr := ":" + port
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Infof("Listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("Server crashed")
		}
	}()

	// Shutdown on SIGINT or SIGTERM
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("Shutting down gracefully...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("Shutdown error")
	}
}
