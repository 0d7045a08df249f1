// Package server собирает HTTP-роутер сервиса из модулей.
//
// Здесь только связывание: роуты и логика живут в internal/tasks и
// internal/auth, общесервисные middleware в internal/middleware.
package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"taskboard/internal/auth"
	appMiddleware "taskboard/internal/middleware"
	"taskboard/internal/tasks"
)

// Deps — зависимости роутера.
type Deps struct {
	Tasks          *tasks.Service
	Auth           *auth.Service
	Metrics        *appMiddleware.Metrics
	Log            logrus.FieldLogger
	RequestTimeout time.Duration
}

// NewRouter монтирует /api/v1/auth, /api/v1/tasks, /healthz и /metrics.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.Recoverer)
	r.Use(appMiddleware.LoggingMiddleware(d.Log))
	if d.Metrics != nil {
		r.Use(d.Metrics.Middleware)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})
	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", d.Metrics.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		if d.RequestTimeout > 0 {
			r.Use(appMiddleware.RequestTimeoutMiddleware(d.RequestTimeout, d.Log))
		}
		r.Use(appMiddleware.Authenticate(d.Auth))

		r.Mount("/auth", auth.NewHandler(d.Auth, d.Log).Router())
		r.Mount("/tasks", tasks.NewHandler(d.Tasks, d.Log).Router())
	})

	return r
}
