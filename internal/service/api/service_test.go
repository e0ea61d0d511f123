package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/darkkaiser/bundle-watcher/internal/config"
	"github.com/darkkaiser/bundle-watcher/internal/pkg/version"
	"github.com/darkkaiser/bundle-watcher/internal/service/contract"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAPISender contract.NotificationSender의 테스트용 구현체입니다.
type fakeAPISender struct {
	mu       sync.Mutex
	errorMsg []string
}

func (s *fakeAPISender) Notify(_ context.Context, _ contract.Notification) error { return nil }

func (s *fakeAPISender) NotifyError(message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errorMsg = append(s.errorMsg, message)
	return nil
}

func (s *fakeAPISender) SupportsHTML() bool { return true }

func newTestAPIService(listenPort int) *Service {
	appConfig := &config.AppConfig{}
	appConfig.API.ListenPort = listenPort

	return NewService(appConfig, &fakeAPISender{}, &fakeHealthChecker{}, &fakeStatusProvider{}, version.Get())
}

func TestSetupServer(t *testing.T) {
	t.Run("등록된 라우트가 요청을 처리한다", func(t *testing.T) {
		s := newTestAPIService(0)
		e := s.setupServer()

		cases := []struct {
			path string
		}{
			{path: "/healthz"},
			{path: "/api/v1/status"},
		}

		for _, c := range cases {
			req := httptest.NewRequest(http.MethodGet, c.path, nil)
			rec := httptest.NewRecorder()

			e.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusOK, rec.Code, c.path)
		}
	})

	t.Run("등록되지 않은 경로는 404를 반환한다", func(t *testing.T) {
		s := newTestAPIService(0)
		e := s.setupServer()

		req := httptest.NewRequest(http.MethodGet, "/unknown", nil)
		rec := httptest.NewRecorder()

		e.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestAPIServiceLifecycle(t *testing.T) {
	t.Run("종료 컨텍스트가 취소되면 Graceful Shutdown이 수행된다", func(t *testing.T) {
		// 포트 0을 지정하면 OS가 임의의 빈 포트를 할당합니다.
		s := newTestAPIService(0)

		ctx, cancel := context.WithCancel(context.Background())
		wg := &sync.WaitGroup{}
		wg.Add(1)

		require.NoError(t, s.Start(ctx, wg))

		cancel()
		wg.Wait()

		s.runningMu.Lock()
		running := s.running
		s.runningMu.Unlock()
		assert.False(t, running)
	})

	t.Run("중복 시작은 에러 없이 무시된다", func(t *testing.T) {
		s := newTestAPIService(0)

		ctx, cancel := context.WithCancel(context.Background())
		wg := &sync.WaitGroup{}
		wg.Add(2)

		require.NoError(t, s.Start(ctx, wg))
		require.NoError(t, s.Start(ctx, wg))

		cancel()
		wg.Wait()
	})
}
