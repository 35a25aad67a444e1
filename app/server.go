package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"peerlearn_server/auth"
	"peerlearn_server/controllers"
	"peerlearn_server/metrics"
	"peerlearn_server/routes"
	"peerlearn_server/socket"
)

// Router builds the HTTP handler. realtime is mounted on /socket.io/ when set.
func (a *App) Router(realtime http.Handler) http.Handler {
	r := mux.NewRouter()
	r.Use(a.requestLogger)

	authn := auth.Middleware(a.Tokens, a.Log.Named("auth"))

	routes.RegisterRoutes(r)
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")
	routes.RegisterChatRoutes(r, controllers.NewChatController(a.Chat, a.Conversations, a.Matches), authn)
	routes.RegisterCommunityRoutes(r, controllers.NewCommunityController(a.Community, a.Matches), authn)
	routes.RegisterDashboardRoutes(r, controllers.NewDashboardController(a.Dashboard), authn)
	routes.RegisterAdminRoutes(r, controllers.NewAdminController(a.Matches, a.Community), authn, auth.RequireAdmin)
	routes.RegisterS3Routes(r, controllers.NewS3Controller(a.Media), authn)
	if realtime != nil {
		r.PathPrefix("/socket.io/").Handler(realtime)
	}

	// Add CORS middleware
	return cors.New(cors.Options{
		AllowedOrigins:   a.Config.CORS.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	}).Handler(r)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (a *App) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// socket.io transports need the raw writer for upgrades.
		if strings.HasPrefix(r.URL.Path, "/socket.io/") {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := r.URL.Path
		if current := mux.CurrentRoute(r); current != nil {
			if tpl, err := current.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		elapsed := time.Since(start)
		metrics.RecordRequest(r.Method, route, rec.status, elapsed)
		a.Log.Info("http request",
			zap.String("method", r.Method),
			zap.String("route", route),
			zap.Int("status", rec.status),
			zap.Duration("duration", elapsed))
	})
}

// Run serves HTTP and socket.io until ctx is cancelled, then shuts down.
func (a *App) Run(ctx context.Context) error {
	realtime := socket.NewSocketServer(a.Bridge, a.Log.Named("socket"))
	go func() {
		if err := realtime.Serve(); err != nil {
			a.Log.Debug("socket server stopped", zap.Error(err))
		}
	}()

	srv := &http.Server{
		Addr:         a.Config.HTTP.Addr,
		Handler:      a.Router(realtime),
		ReadTimeout:  a.Config.HTTP.ReadTimeout,
		WriteTimeout: a.Config.HTTP.WriteTimeout,
		IdleTimeout:  a.Config.HTTP.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.Log.Info("Starting server", zap.String("addr", srv.Addr), zap.String("storage", a.Config.Storage.Driver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.Config.HTTP.ShutdownTimeout)
		defer cancel()

		a.Log.Info("Shutting down server")
		if err := realtime.Close(); err != nil {
			a.Log.Warn("socket server close", zap.Error(err))
		}
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
