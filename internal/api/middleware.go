package api

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/uma-arai/sbcntr-bungalow/internal/common/ratelimit"
)

type contextKey string

// OperatorIDContextKey はリクエストのcontextにオペレーターIDを格納するキーです
const OperatorIDContextKey = contextKey("operatorID")

// RateLimiter はscopeとsubjectの組ごとに呼び出し回数を制限します
type RateLimiter interface {
	Allow(ctx context.Context, scope, subject string) (ratelimit.Result, error)
}

// OperatorAuthMiddleware はHS256で署名されたJWTを検証し、オペレーターIDをcontextに格納します
func OperatorAuthMiddleware(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret == "" {
				respondWithMessage(w, http.StatusUnauthorized, "operator authentication is not configured")
				return
			}

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				respondWithMessage(w, http.StatusUnauthorized, "Authorization header required")
				return
			}

			tokenString := strings.TrimPrefix(authHeader, "Bearer ")
			if tokenString == authHeader {
				respondWithMessage(w, http.StatusUnauthorized, "Invalid Authorization header format")
				return
			}

			token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
				return []byte(secret), nil
			}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
			if err != nil || !token.Valid {
				respondWithMessage(w, http.StatusUnauthorized, fmt.Sprintf("Invalid token: %v", err))
				return
			}

			operatorID, err := token.Claims.GetSubject()
			if err != nil || operatorID == "" {
				respondWithMessage(w, http.StatusUnauthorized, "Operator ID not found in token")
				return
			}

			ctx := context.WithValue(r.Context(), OperatorIDContextKey, operatorID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// InternalAuthMiddleware はサーバー間呼び出し用のAPIキーを検証します
// キーが設定されていない場合は検証しません
func InternalAuthMiddleware(requiredKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if requiredKey == "" {
				next.ServeHTTP(w, r)
				return
			}

			provided := r.Header.Get("X-Internal-API-Key")
			if provided == "" || provided != requiredKey {
				respondWithMessage(w, http.StatusUnauthorized, "Unauthorized")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RateLimitMiddleware はクライアントのIPアドレスごとに呼び出し回数を制限します
// 制限の判定に失敗した場合はリクエストを通します
func RateLimitMiddleware(limiter RateLimiter, scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if limiter == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			result, err := limiter.Allow(r.Context(), scope, clientIP(r))
			if err != nil {
				log.Printf("Failed to check rate limit for %s: %v", scope, err)
				next.ServeHTTP(w, r)
				return
			}
			if !result.Allowed {
				w.Header().Set("Retry-After", strconv.Itoa(result.RetryAfterSeconds))
				respondWithMessage(w, http.StatusTooManyRequests, "Too many requests")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// OperatorFromContext はcontextからオペレーターIDを取得します
func OperatorFromContext(ctx context.Context) (string, bool) {
	operatorID, ok := ctx.Value(OperatorIDContextKey).(string)
	return operatorID, ok
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
