package api

import (
	"net/http"
	"time"

	"github.com/darkkaiser/bundle-watcher/internal/pkg/version"
	"github.com/darkkaiser/bundle-watcher/internal/service/contract"
	applog "github.com/darkkaiser/bundle-watcher/pkg/log"
	"github.com/labstack/echo/v4"
)

const (
	healthStatusHealthy   = "healthy"
	healthStatusUnhealthy = "unhealthy"

	// dependencyNotification 헬스체크 응답에서 알림 서비스를 가리키는 의존성 이름
	dependencyNotification = "notification_service"

	// dependencyWatcher 헬스체크 응답에서 감시 서비스를 가리키는 의존성 이름
	dependencyWatcher = "watcher_service"
)

// dependencyStatus 외부 의존성 하나의 상태입니다.
type dependencyStatus struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// healthResponse 헬스체크 엔드포인트의 응답입니다.
type healthResponse struct {
	Status       string                      `json:"status"`
	Uptime       int64                       `json:"uptime"`
	Dependencies map[string]dependencyStatus `json:"dependencies"`
}

// statusResponse 운영 상태 엔드포인트의 응답입니다.
type statusResponse struct {
	Bootstrapped  bool   `json:"bootstrapped"`
	SeenCount     int    `json:"seen_count"`
	NotifiedTotal int64  `json:"notified_total"`
	LastTickTime  string `json:"last_tick_time,omitempty"`
	LastTickError string `json:"last_tick_error,omitempty"`
	Uptime        int64  `json:"uptime"`
	Version       string `json:"version"`
}

// Handler 시스템 엔드포인트 핸들러 (헬스체크, 운영 상태)
type Handler struct {
	healthChecker  contract.NotificationHealthChecker
	statusProvider contract.WatcherStatusProvider

	buildInfo version.Info

	serverStartTime time.Time
}

// NewHandler Handler 인스턴스를 생성합니다.
func NewHandler(healthChecker contract.NotificationHealthChecker, statusProvider contract.WatcherStatusProvider, buildInfo version.Info) *Handler {
	if healthChecker == nil {
		panic("NotificationHealthChecker 객체는 필수입니다")
	}
	if statusProvider == nil {
		panic("WatcherStatusProvider 객체는 필수입니다")
	}

	return &Handler{
		healthChecker:  healthChecker,
		statusProvider: statusProvider,

		buildInfo: buildInfo,

		serverStartTime: time.Now(),
	}
}

// HealthCheckHandler 서버와 의존 서비스들의 상태를 확인합니다.
// 인증 없이 호출 가능하며, 모니터링 시스템에서 사용됩니다.
func (h *Handler) HealthCheckHandler(c echo.Context) error {
	applog.WithComponentAndFields(component, applog.Fields{
		"endpoint":  c.Path(),
		"remote_ip": c.RealIP(),
	}).Debug("헬스체크 요청")

	deps := make(map[string]dependencyStatus)

	// 알림 서비스 상태 확인
	if err := h.healthChecker.Health(); err != nil {
		deps[dependencyNotification] = dependencyStatus{
			Status:  healthStatusUnhealthy,
			Message: err.Error(),
		}
	} else {
		deps[dependencyNotification] = dependencyStatus{
			Status: healthStatusHealthy,
		}
	}

	// 감시 서비스 상태 확인: 마지막 감시 주기가 실패했다면 unhealthy로 보고합니다.
	watcherStatus := h.statusProvider.Status()
	if watcherStatus.LastTickError != "" {
		deps[dependencyWatcher] = dependencyStatus{
			Status:  healthStatusUnhealthy,
			Message: watcherStatus.LastTickError,
		}
	} else {
		deps[dependencyWatcher] = dependencyStatus{
			Status: healthStatusHealthy,
		}
	}

	// 하나라도 unhealthy면 전체 상태를 unhealthy로 설정합니다.
	serverStatus := healthStatusHealthy
	for _, dep := range deps {
		if dep.Status != healthStatusHealthy {
			serverStatus = healthStatusUnhealthy
			break
		}
	}

	return c.JSON(http.StatusOK, healthResponse{
		Status:       serverStatus,
		Uptime:       h.uptime(),
		Dependencies: deps,
	})
}

// StatusHandler 감시 서비스의 운영 상태 스냅샷을 반환합니다.
func (h *Handler) StatusHandler(c echo.Context) error {
	applog.WithComponentAndFields(component, applog.Fields{
		"endpoint":  c.Path(),
		"remote_ip": c.RealIP(),
	}).Debug("운영 상태 조회 요청")

	watcherStatus := h.statusProvider.Status()

	response := statusResponse{
		Bootstrapped:  watcherStatus.Bootstrapped,
		SeenCount:     watcherStatus.SeenCount,
		NotifiedTotal: watcherStatus.NotifiedTotal,
		LastTickError: watcherStatus.LastTickError,
		Uptime:        h.uptime(),
		Version:       h.buildInfo.Version,
	}
	if !watcherStatus.LastTickTime.IsZero() {
		response.LastTickTime = watcherStatus.LastTickTime.Format(time.RFC3339)
	}

	return c.JSON(http.StatusOK, response)
}

// uptime 서버 가동 시간(초)을 반환합니다.
func (h *Handler) uptime() int64 {
	return int64(time.Since(h.serverStartTime).Seconds())
}
