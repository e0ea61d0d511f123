package api

import (
	"github.com/labstack/echo/v4"
)

// RegisterRoutes API 서비스의 라우트를 등록합니다.
//
//   - GET /healthz       : 서버/의존 서비스 헬스체크 (모니터링용)
//   - GET /api/v1/status : 감시 서비스의 운영 상태 스냅샷
func RegisterRoutes(e *echo.Echo, h *Handler) {
	e.GET("/healthz", h.HealthCheckHandler)

	v1 := e.Group("/api/v1")
	v1.GET("/status", h.StatusHandler)
}
