package http

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/Folau1/WebApp/internal/auth"
	"github.com/Folau1/WebApp/internal/entity"
	"github.com/Folau1/WebApp/internal/repository"
	"github.com/Folau1/WebApp/internal/telemetry"
)

const initDataHeader = "X-Telegram-Init-Data"

type ctxKey int

const (
	userKey ctxKey = iota
	adminKey
)

// UserFrom returns the authenticated storefront user, if any.
func UserFrom(ctx context.Context) (*entity.User, bool) {
	u, ok := ctx.Value(userKey).(*entity.User)
	return u, ok
}

// AdminFrom returns the authenticated administrator's email, if any.
func AdminFrom(ctx context.Context) (string, bool) {
	email, ok := ctx.Value(adminKey).(string)
	return email, ok
}

// Authenticator resolves Telegram Mini App users and admin bearer tokens.
type Authenticator struct {
	telegram *auth.TelegramValidator
	users    repository.UserRepository
	jwt      *auth.JWTManager
}

func NewAuthenticator(telegram *auth.TelegramValidator, users repository.UserRepository, jwt *auth.JWTManager) *Authenticator {
	return &Authenticator{telegram: telegram, users: users, jwt: jwt}
}

func (a *Authenticator) resolveUser(r *http.Request) (*entity.User, error) {
	tg, err := a.telegram.Validate(r.Header.Get(initDataHeader))
	if err != nil {
		return nil, err
	}
	return a.users.FindOrCreateByTelegramID(r.Context(), entity.User{
		TelegramID: strconv.FormatInt(tg.ID, 10),
		FirstName:  tg.FirstName,
		LastName:   tg.LastName,
		Username:   tg.Username,
	})
}

// RequireTelegram rejects requests without valid Mini App init data.
func (a *Authenticator) RequireTelegram(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, err := a.resolveUser(r)
		if err != nil {
			slog.Warn("Telegram auth failed", "path", r.URL.Path, "err", err)
			writeJSONError(w, http.StatusUnauthorized, "invalid telegram data")
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), userKey, u)))
	}
}

// OptionalTelegram attaches the user when init data is present and lets guests through.
func (a *Authenticator) OptionalTelegram(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(initDataHeader) == "" {
			next(w, r)
			return
		}
		a.RequireTelegram(next)(w, r)
	}
}

// RequireAdmin checks the bearer token issued by the admin login.
func (a *Authenticator) RequireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || token == "" {
			writeJSONError(w, http.StatusUnauthorized, "no token provided")
			return
		}
		claims, err := a.jwt.ParseAdmin(token)
		if err != nil {
			writeJSONError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), adminKey, claims.Email)))
	}
}

// RateLimiter keeps one token bucket per client IP.
type RateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	rps      rate.Limit
	burst    int
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter creates a limiter whose idle entries are dropped until ctx ends.
func NewRateLimiter(ctx context.Context, rps float64, burst int) *RateLimiter {
	rl := &RateLimiter{
		visitors: make(map[string]*visitor),
		rps:      rate.Limit(rps),
		burst:    burst,
	}
	go rl.cleanup(ctx)
	return rl
}

func (rl *RateLimiter) limiter(ip string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	v, ok := rl.visitors[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rl.rps, rl.burst)}
		rl.visitors[ip] = v
	}
	v.lastSeen = time.Now()
	return v.limiter
}

func (rl *RateLimiter) cleanup(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.mu.Lock()
			for ip, v := range rl.visitors {
				if time.Since(v.lastSeen) > 3*time.Minute {
					delete(rl.visitors, ip)
				}
			}
			rl.mu.Unlock()
		}
	}
}

// Middleware answers 429 once a client exceeds its bucket.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.limiter(clientIP(r)).Allow() {
			w.Header().Set("Retry-After", "1")
			writeJSONError(w, http.StatusTooManyRequests, "too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return strings.Trim(r.RemoteAddr, "[]")
	}
	return ip
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// Instrument records request counts and latencies per route pattern.
func Instrument(metrics *telemetry.Metrics, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		metrics.HTTPRequest(r.Context(), route, rec.status, time.Since(start))
	})
}

// EnableCORS is a middleware to allow the Mini App and admin frontends to connect.
func EnableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, "+initDataHeader)

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
