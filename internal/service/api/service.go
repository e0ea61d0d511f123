// Package api 운영용 HTTP API 서버(헬스체크, 상태 조회)의 생명주기를 관리합니다.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/darkkaiser/bundle-watcher/internal/config"
	"github.com/darkkaiser/bundle-watcher/internal/pkg/version"
	"github.com/darkkaiser/bundle-watcher/internal/service"
	"github.com/darkkaiser/bundle-watcher/internal/service/contract"
	applog "github.com/darkkaiser/bundle-watcher/pkg/log"
	"github.com/labstack/echo/v4"
)

const component = "api.service"

// shutdownTimeout Graceful Shutdown 시 최대 대기 시간
const shutdownTimeout = 5 * time.Second

// Service 운영용 HTTP API 서버의 생명주기를 관리하는 서비스입니다.
//
// Echo 기반 HTTP 서버를 별도 고루틴에서 구동하며, 종료 컨텍스트가 취소되면
// Graceful Shutdown(5초 타임아웃)을 수행합니다. 서버가 예기치 않게 종료되면
// 오류 알림을 발송합니다.
type Service struct {
	appConfig *config.AppConfig

	sender         contract.NotificationSender
	healthChecker  contract.NotificationHealthChecker
	statusProvider contract.WatcherStatusProvider

	buildInfo version.Info

	running   bool
	runningMu sync.Mutex
}

var _ service.Service = (*Service)(nil)

// NewService 새로운 API 서비스 객체를 생성합니다.
func NewService(appConfig *config.AppConfig, sender contract.NotificationSender, healthChecker contract.NotificationHealthChecker, statusProvider contract.WatcherStatusProvider, buildInfo version.Info) *Service {
	if appConfig == nil {
		panic("AppConfig 객체는 필수입니다")
	}
	if sender == nil {
		panic("NotificationSender 객체는 필수입니다")
	}
	if healthChecker == nil {
		panic("NotificationHealthChecker 객체는 필수입니다")
	}
	if statusProvider == nil {
		panic("WatcherStatusProvider 객체는 필수입니다")
	}

	return &Service{
		appConfig: appConfig,

		sender:         sender,
		healthChecker:  healthChecker,
		statusProvider: statusProvider,

		buildInfo: buildInfo,

		running:   false,
		runningMu: sync.Mutex{},
	}
}

// Start API 서비스를 시작합니다.
// 이 함수는 즉시 반환되며, 실제 서버는 고루틴에서 실행됩니다.
func (s *Service) Start(serviceStopCtx context.Context, serviceStopWG *sync.WaitGroup) error {
	s.runningMu.Lock()
	defer s.runningMu.Unlock()

	applog.WithComponent(component).Info("API 서비스 시작중...")

	if s.running {
		defer serviceStopWG.Done()
		applog.WithComponent(component).Warn("API 서비스가 이미 시작됨!!!")
		return nil
	}

	s.running = true

	go s.runServiceLoop(serviceStopCtx, serviceStopWG)

	applog.WithComponent(component).Info("API 서비스 시작됨")

	return nil
}

// runServiceLoop 서비스의 메인 실행 루프입니다.
// 서버 설정, HTTP 서버 시작, Shutdown 대기를 순차적으로 수행합니다.
func (s *Service) runServiceLoop(serviceStopCtx context.Context, serviceStopWG *sync.WaitGroup) {
	defer serviceStopWG.Done()

	e := s.setupServer()

	httpServerDone := make(chan struct{})
	go s.startHTTPServer(e, httpServerDone)

	s.waitForShutdown(serviceStopCtx, e, httpServerDone)
}

// setupServer Echo 서버 인스턴스를 생성하고 라우트를 등록합니다.
func (s *Service) setupServer() *echo.Echo {
	handler := NewHandler(s.healthChecker, s.statusProvider, s.buildInfo)

	e := NewHTTPServer(HTTPServerConfig{
		Debug: s.appConfig.Debug,
	})

	RegisterRoutes(e, handler)

	return e
}

// startHTTPServer HTTP 서버를 시작합니다.
// 이 함수는 블로킹되며, 서버가 종료되면 done 채널을 닫아 신호를 보냅니다.
func (s *Service) startHTTPServer(e *echo.Echo, done chan struct{}) {
	defer close(done)

	port := s.appConfig.API.ListenPort
	applog.WithComponentAndFields(component, applog.Fields{
		"port": port,
	}).Debug("HTTP 서버 시작중...")

	s.handleServerError(e.Start(fmt.Sprintf(":%d", port)))
}

// handleServerError HTTP 서버 종료 시 반환된 에러를 처리합니다.
//
//   - nil: 처리하지 않음
//   - http.ErrServerClosed: Graceful Shutdown 완료 (Info 로깅)
//   - 그 외: 예상치 못한 에러 (Error 로깅 + 오류 알림 발송)
func (s *Service) handleServerError(err error) {
	if err == nil {
		return
	}

	if errors.Is(err, http.ErrServerClosed) {
		applog.WithComponent(component).Info("HTTP 서버 중지됨")
		return
	}

	const message = "HTTP 서버가 치명적인 에러로 중지되었습니다"
	applog.WithComponentAndFields(component, applog.Fields{
		"port":  s.appConfig.API.ListenPort,
		"error": err,
	}).Error(message)

	if notifyErr := s.sender.NotifyError(fmt.Sprintf("%s\n\n원인: %s", message, err)); notifyErr != nil {
		applog.WithComponentAndFields(component, applog.Fields{
			"error": notifyErr.Error(),
		}).Warn("HTTP 서버 에러에 대한 오류 알림 발송 실패")
	}
}

// waitForShutdown 종료 신호를 대기하고 Graceful Shutdown을 수행합니다.
func (s *Service) waitForShutdown(serviceStopCtx context.Context, e *echo.Echo, httpServerDone chan struct{}) {
	select {
	case <-serviceStopCtx.Done():
		applog.WithComponent(component).Info("API 서비스 중지중...")

	case <-httpServerDone:
		// HTTP 서버가 예기치 않게 종료됨 (포트 바인딩 실패 등)
		// 이미 종료되었으므로 Shutdown 호출 없이 상태만 정리합니다.
		applog.WithComponent(component).Error("HTTP 서버가 예기치 않게 종료됨")

		s.cleanup()

		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := e.Shutdown(ctx); err != nil {
		applog.WithComponentAndFields(component, applog.Fields{
			"error": err,
		}).Error("HTTP 서버 Shutdown 중 에러 발생")
	}

	<-httpServerDone

	s.cleanup()
}

// cleanup 서비스 종료 후 상태를 정리합니다.
func (s *Service) cleanup() {
	s.runningMu.Lock()
	s.running = false
	s.runningMu.Unlock()

	applog.WithComponent(component).Info("API 서비스 중지됨")
}
