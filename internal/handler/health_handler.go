package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/korvad/korvadweb/internal/middleware"
)

// HealthChecker はデータベースの疎通確認を行う。*sql.DBが実装する。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// HealthHandler はヘルスチェックエンドポイントを提供する。
type HealthHandler struct {
	checker HealthChecker
	timeout time.Duration
}

// NewHealthHandler はHealthHandlerを生成する。
func NewHealthHandler(checker HealthChecker) *HealthHandler {
	return &HealthHandler{checker: checker, timeout: 2 * time.Second}
}

// Health はDBに到達できれば200、できなければ503を返す。
// GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := h.checker.PingContext(ctx); err != nil {
		slog.Warn("health check failed", slog.String("error", err.Error()))
		middleware.WriteText(w, http.StatusServiceUnavailable, "unavailable")
		return
	}
	middleware.WriteText(w, http.StatusOK, "ok")
}
