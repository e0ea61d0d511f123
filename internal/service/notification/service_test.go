package notification

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/darkkaiser/bundle-watcher/internal/config"
	apperrors "github.com/darkkaiser/bundle-watcher/internal/pkg/errors"
	"github.com/darkkaiser/bundle-watcher/internal/service/contract"
	"github.com/darkkaiser/bundle-watcher/internal/service/notification/notifier"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Fakes
// =============================================================================

// fakeNotifier notifier.Notifier의 테스트용 구현체입니다.
type fakeNotifier struct {
	mu sync.Mutex

	sent     []contract.Notification
	trySent  []contract.Notification
	runCalls int
}

var _ notifier.Notifier = (*fakeNotifier)(nil)

func (f *fakeNotifier) ID() notifier.ID { return "fake" }

func (f *fakeNotifier) Run(serviceStopCtx context.Context) {
	f.mu.Lock()
	f.runCalls++
	f.mu.Unlock()

	<-serviceStopCtx.Done()
}

func (f *fakeNotifier) Send(_ context.Context, notification contract.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, notification)
	return nil
}

func (f *fakeNotifier) TrySend(_ context.Context, notification contract.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.trySent = append(f.trySent, notification)
	return nil
}

func (f *fakeNotifier) SupportsHTML() bool { return true }

// fakeResolver contract.BundleResolver의 테스트용 구현체입니다.
type fakeResolver struct{}

func (fakeResolver) Resolve(_ context.Context, _ int64) (contract.Notification, error) {
	return contract.NewNotification("테스트 번들"), nil
}

func newTestService(fake *fakeNotifier) *Service {
	s := NewService(&config.AppConfig{}, fakeResolver{})
	s.newNotifier = func(_ *config.AppConfig, _ contract.BundleResolver) (notifier.Notifier, error) {
		return fake, nil
	}
	return s
}

// =============================================================================
// Tests
// =============================================================================

func TestServiceStart(t *testing.T) {
	t.Run("시작하면 Notifier가 실행되고 알림을 발송할 수 있다", func(t *testing.T) {
		fake := &fakeNotifier{}
		s := newTestService(fake)

		ctx, cancel := context.WithCancel(context.Background())
		wg := &sync.WaitGroup{}
		wg.Add(1)

		require.NoError(t, s.Start(ctx, wg))

		require.NoError(t, s.Notify(context.Background(), contract.NewNotification("알림")))
		assert.Len(t, fake.sent, 1)
		assert.True(t, s.SupportsHTML())
		assert.NoError(t, s.Health())

		cancel()
		wg.Wait()
	})

	t.Run("중복 시작은 에러 없이 무시된다", func(t *testing.T) {
		fake := &fakeNotifier{}
		s := newTestService(fake)

		ctx, cancel := context.WithCancel(context.Background())
		wg := &sync.WaitGroup{}
		wg.Add(2)

		require.NoError(t, s.Start(ctx, wg))
		require.NoError(t, s.Start(ctx, wg))

		assert.Equal(t, 1, fake.runCalls)

		cancel()
		wg.Wait()
	})

	t.Run("Notifier 초기화 실패 시 에러를 반환한다", func(t *testing.T) {
		s := NewService(&config.AppConfig{}, fakeResolver{})
		s.newNotifier = func(_ *config.AppConfig, _ contract.BundleResolver) (notifier.Notifier, error) {
			return nil, apperrors.New(apperrors.InvalidInput, "BotToken이 올바르지 않습니다")
		}

		wg := &sync.WaitGroup{}
		wg.Add(1)

		err := s.Start(context.Background(), wg)
		require.Error(t, err)
		assert.True(t, apperrors.Is(err, apperrors.Internal))

		wg.Wait()
	})
}

func TestServiceNotify(t *testing.T) {
	t.Run("시작 전에는 Unavailable 에러를 반환한다", func(t *testing.T) {
		s := newTestService(&fakeNotifier{})

		err := s.Notify(context.Background(), contract.NewNotification("알림"))
		require.Error(t, err)
		assert.True(t, apperrors.Is(err, apperrors.Unavailable))
		assert.Error(t, s.Health())
		assert.False(t, s.SupportsHTML())
	})

	t.Run("오류 알림은 ErrorOccurred가 설정되어 발송된다", func(t *testing.T) {
		fake := &fakeNotifier{}
		s := newTestService(fake)

		ctx, cancel := context.WithCancel(context.Background())
		wg := &sync.WaitGroup{}
		wg.Add(1)

		require.NoError(t, s.Start(ctx, wg))
		require.NoError(t, s.NotifyError("감시 작업 실패"))

		require.Len(t, fake.trySent, 1)
		assert.True(t, fake.trySent[0].ErrorOccurred)
		assert.Equal(t, "감시 작업 실패", fake.trySent[0].Message)

		cancel()
		wg.Wait()
	})
}

func TestServiceShutdown(t *testing.T) {
	t.Run("종료 컨텍스트가 취소되면 서비스가 중지된다", func(t *testing.T) {
		fake := &fakeNotifier{}
		s := newTestService(fake)

		ctx, cancel := context.WithCancel(context.Background())
		wg := &sync.WaitGroup{}
		wg.Add(1)

		require.NoError(t, s.Start(ctx, wg))

		cancel()
		wg.Wait()

		// 중지 후에는 발송이 거부됩니다.
		assert.Eventually(t, func() bool {
			return s.Health() != nil
		}, time.Second, 10*time.Millisecond)
	})
}
