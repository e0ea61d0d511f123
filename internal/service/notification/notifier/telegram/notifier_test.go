package telegram

import (
	"context"
	"testing"
	"time"

	"github.com/darkkaiser/bundle-watcher/internal/service/contract"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// startTestRun Run 메서드를 별도 고루틴으로 실행하고 종료 감지 채널을 반환합니다.
func startTestRun(ctx context.Context, n *telegramNotifier, mockBot *MockTelegramBot, updateC chan tgbotapi.Update) <-chan struct{} {
	mockBot.On("GetUpdatesChan", mock.Anything).Return(updateC)
	mockBot.On("GetSelf").Return(tgbotapi.User{UserName: "bundle_watcher_bot"})
	mockBot.On("StopReceivingUpdates").Return()

	runDone := make(chan struct{})
	go func() {
		defer close(runDone)
		n.Run(ctx)
	}()

	return runDone
}

func TestRun(t *testing.T) {
	t.Run("서비스 종료 컨텍스트가 취소되면 정상 종료된다", func(t *testing.T) {
		n, mockBot, _ := newTestNotifier(t)

		ctx, cancel := context.WithCancel(context.Background())
		updateC := make(chan tgbotapi.Update)

		runDone := startTestRun(ctx, n, mockBot, updateC)

		cancel()

		select {
		case <-runDone:
		case <-time.After(3 * time.Second):
			t.Fatal("종료 컨텍스트 취소 후에도 Run이 종료되지 않았습니다")
		}

		mockBot.AssertCalled(t, "StopReceivingUpdates")
	})

	t.Run("업데이트 채널이 닫히면 정상 종료된다", func(t *testing.T) {
		n, mockBot, _ := newTestNotifier(t)

		updateC := make(chan tgbotapi.Update)
		runDone := startTestRun(context.Background(), n, mockBot, updateC)

		close(updateC)

		select {
		case <-runDone:
		case <-time.After(3 * time.Second):
			t.Fatal("업데이트 채널이 닫힌 후에도 Run이 종료되지 않았습니다")
		}
	})

	t.Run("허용되지 않은 채팅방의 명령어는 무시된다", func(t *testing.T) {
		n, mockBot, mockResolver := newTestNotifier(t)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		updateC := make(chan tgbotapi.Update, 1)
		runDone := startTestRun(ctx, n, mockBot, updateC)

		// 설정된 chatID와 다른 채팅방에서 온 명령어
		updateC <- tgbotapi.Update{
			Message: &tgbotapi.Message{
				Text: "/bundle 1",
				Chat: &tgbotapi.Chat{ID: testChatID + 1},
			},
		}

		time.Sleep(100 * time.Millisecond)
		cancel()
		<-runDone

		mockResolver.AssertNotCalled(t, "Resolve", mock.Anything, mock.Anything)
	})

	t.Run("허용된 채팅방의 명령어는 처리되어 회신된다", func(t *testing.T) {
		n, mockBot, mockResolver := newTestNotifier(t)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		resolved := contract.Notification{
			Title:   "Test Bundle",
			Message: "번들 정보",
		}
		mockResolver.On("Resolve", mock.Anything, int64(42)).Return(resolved, nil).Once()

		// 회신 메시지가 요청자 채팅방으로 발송되는지 검증합니다.
		sendDone := make(chan struct{})
		mockBot.On("Send", mock.MatchedBy(func(c tgbotapi.MessageConfig) bool {
			return c.ChatID == testChatID
		})).Run(func(args mock.Arguments) {
			close(sendDone)
		}).Return(tgbotapi.Message{MessageID: 1}, nil).Once()

		updateC := make(chan tgbotapi.Update, 1)
		runDone := startTestRun(ctx, n, mockBot, updateC)

		updateC <- tgbotapi.Update{
			Message: &tgbotapi.Message{
				Text: "/bundle 42",
				Chat: &tgbotapi.Chat{ID: testChatID},
			},
		}

		select {
		case <-sendDone:
		case <-time.After(3 * time.Second):
			t.Fatal("명령어 회신 메시지가 발송되지 않았습니다")
		}

		cancel()
		<-runDone

		mockResolver.AssertExpectations(t)
	})

	t.Run("대기열에 등록된 알림이 텔레그램 API로 발송된다", func(t *testing.T) {
		n, mockBot, _ := newTestNotifier(t)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		sendDone := make(chan struct{})
		mockBot.On("Send", mock.MatchedBy(func(c tgbotapi.MessageConfig) bool {
			return c.ChatID == testChatID && c.Text == "신규 번들 알림"
		})).Run(func(args mock.Arguments) {
			close(sendDone)
		}).Return(tgbotapi.Message{MessageID: 1}, nil).Once()

		updateC := make(chan tgbotapi.Update)
		runDone := startTestRun(ctx, n, mockBot, updateC)

		require.NoError(t, n.Send(ctx, contract.NewNotification("신규 번들 알림")))

		select {
		case <-sendDone:
		case <-time.After(3 * time.Second):
			t.Fatal("대기열에 등록된 알림이 발송되지 않았습니다")
		}

		cancel()
		<-runDone
	})
}

func TestNewNotifierWithClient(t *testing.T) {
	t.Run("설정 값이 Notifier에 반영된다", func(t *testing.T) {
		n, _, _ := newTestNotifier(t)

		assert.Equal(t, notifierID, n.ID())
		assert.Equal(t, testChatID, n.chatID)
		assert.Equal(t, testDefaultBundleID, n.defaultBundleID)
		assert.True(t, n.SupportsHTML())
		assert.NotNil(t, n.rateLimiter)
	})
}
