package middleware

import (
	"context"
	"errors"
	"net/http"
	"time"

	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
)

// RequestTimeoutMiddleware ограничивает обработку запроса сроком d.
//
// Таймаут сработает только если нижние слои проверяют ctx.Done()/ctx.Err():
// сервис задач и gorm делают это на каждом обращении к хранилищу.
// Запросы, упёршиеся в срок, попадают в лог с request_id.
func RequestTimeoutMiddleware(d time.Duration, log logrus.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), d)
			defer cancel()

			next.ServeHTTP(w, r.WithContext(ctx))

			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				log.WithFields(logrus.Fields{
					"request_id": chiMiddleware.GetReqID(r.Context()),
					"method":     r.Method,
					"path":       r.URL.Path,
					"timeout_ms": d.Milliseconds(),
				}).Warn("request deadline exceeded")
			}
		})
	}
}
