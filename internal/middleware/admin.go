package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/hitoshi/jusmemoriza/internal/model"
)

// AdminChecker は管理者判定のインターフェース。
type AdminChecker interface {
	IsAdmin(ctx context.Context, userID string) (bool, error)
}

// NewRequireAdminMiddleware は管理者以外を403で拒否するミドルウェアを返す。
// SessionMiddlewareの後に配置する。
func NewRequireAdminMiddleware(checker AdminChecker) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := UserIDFromContext(r.Context())
			if err != nil {
				WriteUnauthorized(w)
				return
			}

			ok, err := checker.IsAdmin(r.Context(), userID)
			if err != nil {
				slog.Error("failed to check admin",
					slog.String("user_id", userID),
					slog.String("error", err.Error()),
				)
				WriteInternalServerError(w)
				return
			}
			if !ok {
				slog.Warn("admin route denied",
					slog.String("user_id", userID),
					slog.String("path", r.URL.Path),
				)
				WriteErrorResponse(w, http.StatusForbidden, model.NewForbiddenError())
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
