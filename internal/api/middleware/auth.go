package middleware

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"os"
	"strings"

	"condor/pkg/crypto"
)

// debugUsername и debugPassword для защиты debug endpoints.
// Загружаются из переменных окружения DEBUG_USERNAME и DEBUG_PASSWORD
// (или DEBUG_PASSWORD_HASH с bcrypt хешем вместо открытого пароля).
// Если не установлены, debug endpoints будут недоступны в production.
var (
	debugUsername     = os.Getenv("DEBUG_USERNAME")
	debugPassword     = os.Getenv("DEBUG_PASSWORD")
	debugPasswordHash = os.Getenv("DEBUG_PASSWORD_HASH")
)

// Auth - middleware для аутентификации операторского API
//
// Назначение:
// Защищает API endpoints от неавторизованного доступа.
// Бот управляет реальными средствами на бирже, поэтому все операторские
// endpoints (включая read-only) требуют токен.
//
// Схема:
// Один статический bearer токен (API_TOKEN из конфигурации).
// Клиент передает его в заголовке Authorization: Bearer <token>.
// Сравнение constant-time для предотвращения timing attacks.
//
// HTTP коды:
// - 401 Unauthorized: токен отсутствует или не совпадает
//
// Использование:
//
//	api := router.PathPrefix("/api/v1").Subrouter()
//	api.Use(middleware.Auth(cfg.Security.APIToken))
func Auth(token string) func(http.Handler) http.Handler {
	expected := []byte(token)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Если токен не сконфигурирован, доступ закрыт полностью.
			// Конфигурация валидирует API_TOKEN при старте, сюда попадаем
			// только при ручном создании router без конфига.
			if len(expected) == 0 {
				respondUnauthorized(w, "API token is not configured")
				return
			}

			header := r.Header.Get("Authorization")
			if header == "" {
				respondUnauthorized(w, "missing Authorization header")
				return
			}

			const prefix = "Bearer "
			if !strings.HasPrefix(header, prefix) {
				respondUnauthorized(w, "invalid Authorization header format, expected: Bearer <token>")
				return
			}

			provided := []byte(strings.TrimSpace(header[len(prefix):]))
			if subtle.ConstantTimeCompare(provided, expected) != 1 {
				respondUnauthorized(w, "invalid API token")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// respondUnauthorized отправляет 401 в JSON формате API
func respondUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// DebugAuth - middleware для защиты debug/pprof endpoints
//
// Назначение:
// Защищает debug endpoints (/debug/pprof/*) от неавторизованного доступа.
// Использует HTTP Basic Authentication для простоты.
//
// Конфигурация:
// - DEBUG_USERNAME: имя пользователя для доступа к debug endpoints
// - DEBUG_PASSWORD_HASH: bcrypt хеш пароля (предпочтительно)
// - DEBUG_PASSWORD: пароль открытым текстом (fallback)
// - Если переменные не установлены, доступ запрещен (403)
//
// Безопасность:
// - Использует constant-time сравнение для предотвращения timing attacks
// - В production ОБЯЗАТЕЛЬНО установить DEBUG_USERNAME и DEBUG_PASSWORD_HASH
func DebugAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Если credentials не настроены, запрещаем доступ в production
		if debugUsername == "" || (debugPassword == "" && debugPasswordHash == "") {
			// В development (если явно не настроено) разрешаем доступ
			if os.Getenv("ENV") == "development" || os.Getenv("ENV") == "" {
				next.ServeHTTP(w, r)
				return
			}
			http.Error(w, "Debug endpoints disabled. Set DEBUG_USERNAME and DEBUG_PASSWORD.", http.StatusForbidden)
			return
		}

		user, pass, ok := r.BasicAuth()
		if !ok {
			w.Header().Set("WWW-Authenticate", `Basic realm="Debug endpoints"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		// Constant-time сравнение для предотвращения timing attacks
		userMatch := subtle.ConstantTimeCompare([]byte(user), []byte(debugUsername)) == 1

		var passMatch bool
		if debugPasswordHash != "" {
			passMatch = crypto.VerifyPassword(pass, debugPasswordHash) == nil
		} else {
			passMatch = subtle.ConstantTimeCompare([]byte(pass), []byte(debugPassword)) == 1
		}

		if !userMatch || !passMatch {
			w.Header().Set("WWW-Authenticate", `Basic realm="Debug endpoints"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}
