package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/boddenberg/wallet-reports-go/internal/domain"
	"github.com/boddenberg/wallet-reports-go/internal/infra/jobtoken"

	"go.uber.org/zap"
)

var (
	errMissingToken = errors.New("missing job token")
	errBadHeader    = errors.New("invalid authorization header")
)

// bearerToken extracts the token of an "Authorization: Bearer <token>" header.
func bearerToken(r *http.Request) (string, error) {
	h := r.Header.Get("Authorization")
	if h == "" {
		return "", errMissingToken
	}
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", errBadHeader
	}
	return strings.TrimSpace(token), nil
}

// JobTokenMiddleware requires a valid HS256 job token on the routes it
// wraps. With an empty secret it lets every request through.
func JobTokenMiddleware(secret string, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if secret == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := bearerToken(r)
			if err == nil {
				var subject string
				if subject, err = jobtoken.Verify(secret, token); err == nil {
					logger.Debug("job token accepted", zap.String("subject", subject), zap.String("path", r.URL.Path))
					next.ServeHTTP(w, r)
					return
				}
			}

			logger.Debug("job token rejected",
				zap.String("path", r.URL.Path),
				zap.String("remote_addr", r.RemoteAddr),
				zap.Error(err),
			)
			msg := "invalid or expired job token"
			if errors.Is(err, errMissingToken) || errors.Is(err, errBadHeader) {
				msg = err.Error()
			}
			handleServiceError(w, &domain.ErrUnauthorized{Message: msg}, logger)
		})
	}
}
