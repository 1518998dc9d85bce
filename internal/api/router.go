// Package api はオペレーター向けと顧客向けのHTTPエンドポイントを提供します
package api

import (
	"net/http"
	"time"

	"github.com/aws/aws-xray-sdk-go/xray"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// RouterConfig はルーターの設定です
type RouterConfig struct {
	AllowedOrigins []string
	JWTSecret      string
	InternalAPIKey string
	// Limiter は公開の確認リンクに対するレート制限です。nilの場合は制限しません
	Limiter       RateLimiter
	EnableTracing bool
}

// NewRouter はchiのルーターを作成してエンドポイントを登録します
func NewRouter(h *Handler, cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// オリジンの指定がなければ全許可とし、認証情報付きのリクエストは受け付けない
	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Internal-API-Key"},
		ExposedHeaders:   []string{"Retry-After"},
		AllowCredentials: !allowsAnyOrigin(origins),
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("Bungalow reservation service is healthy"))
	})

	// 顧客向けの確認リンク
	r.Route("/confirm/{code}", func(r chi.Router) {
		r.Use(RateLimitMiddleware(cfg.Limiter, "confirm"))
		r.Get("/", h.handleGetConfirmation)
		r.Post("/", h.handleConfirm)
	})

	r.Route("/internal/reservations", func(r chi.Router) {
		r.Use(InternalAuthMiddleware(cfg.InternalAPIKey))
		r.Post("/sweep", h.handleSweepExpired)
	})

	r.Group(func(r chi.Router) {
		r.Use(OperatorAuthMiddleware(cfg.JWTSecret))

		r.Get("/units", h.handleListUnits)
		r.Get("/units/{unitID}", h.handleGetUnit)
		r.Get("/units/{unitID}/availability", h.handleAvailability)
		r.Get("/units/{unitID}/calendar", h.handleCalendar)

		r.Post("/quotes", h.handleQuote)

		r.Get("/reservations", h.handleListReservations)
		r.Post("/reservations", h.handleCreateReservation)
		r.Get("/reservations/{reservationID}", h.handleGetReservation)
		r.Post("/reservations/{reservationID}/cancel", h.handleCancelReservation)
		r.Post("/reservations/{reservationID}/check-in", h.handleCheckIn)
		r.Post("/reservations/{reservationID}/check-out", h.handleCheckOut)
		r.Post("/reservations/{reservationID}/payments", h.handleRecordPayment)
		r.Post("/reservations/{reservationID}/confirmation", h.handleIssueConfirmation)

		r.Get("/customers/{customerID}/notifications", h.handleListNotifications)
	})

	if cfg.EnableTracing {
		return xray.Handler(xray.NewFixedSegmentNamer("sbcntr-bungalow-api"), r)
	}
	return r
}

func allowsAnyOrigin(origins []string) bool {
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}
