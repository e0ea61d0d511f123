package telegram

import (
	"context"
	"fmt"
	"testing"

	"github.com/darkkaiser/bundle-watcher/internal/config"
	"github.com/darkkaiser/bundle-watcher/internal/service/contract"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/mock"
)

// =============================================================================
// Telegram Bot Mock
// =============================================================================

// 컴파일 타임에 client 인터페이스 구현 여부를 검증합니다.
var _ client = (*MockTelegramBot)(nil)

// MockTelegramBot Telegram Bot API(client)의 Mock 구현체입니다.
// stretchr/testify/mock을 사용하여 동작을 모의(Mocking)하고 호출을 검증(Assertion)합니다.
type MockTelegramBot struct {
	mock.Mock
}

// NewMockTelegramBot 새로운 MockTelegramBot 인스턴스를 생성합니다.
func NewMockTelegramBot(t *testing.T) *MockTelegramBot {
	m := &MockTelegramBot{}
	m.Test(t)
	return m
}

// GetUpdatesChan 업데이트 수신 채널을 반환합니다.
//
// Mock 설정 예시:
//
//	updates := make(chan tgbotapi.Update, 100)
//	mockBot.On("GetUpdatesChan", mock.Anything).Return(updates)
func (m *MockTelegramBot) GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	args := m.Called(config)
	return getUpdatesChannel(args.Get(0))
}

// Send 메시지를 전송합니다.
func (m *MockTelegramBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	args := m.Called(c)

	var msg tgbotapi.Message
	if args.Get(0) != nil {
		msg = args.Get(0).(tgbotapi.Message)
	}

	return msg, args.Error(1)
}

// StopReceivingUpdates 업데이트 수신 중지를 요청합니다.
func (m *MockTelegramBot) StopReceivingUpdates() {
	m.Called()
}

// GetSelf 봇 자신의 정보를 반환합니다.
func (m *MockTelegramBot) GetSelf() tgbotapi.User {
	args := m.Called()

	if args.Get(0) != nil {
		return args.Get(0).(tgbotapi.User)
	}
	return tgbotapi.User{}
}

// getUpdatesChannel Mock 리턴값을 tgbotapi.UpdatesChannel로 안전하게 변환합니다.
func getUpdatesChannel(ret interface{}) tgbotapi.UpdatesChannel {
	if ret == nil {
		return nil
	}

	if ch, ok := ret.(tgbotapi.UpdatesChannel); ok {
		return ch
	}

	// 테스트 코드에서 주로 생성하는 양방향 채널(chan tgbotapi.Update)인 경우
	// interface{}에서 `.(<-chan T)` 어설션은 실패하므로 `chan T`로 꺼낸 뒤
	// 리턴 시점의 묵시적 변환을 이용합니다.
	if ch, ok := ret.(chan tgbotapi.Update); ok {
		return ch
	}

	panic(fmt.Sprintf("MockTelegramBot.GetUpdatesChan: unexpected return type: %T. Expected 'chan tgbotapi.Update' or 'tgbotapi.UpdatesChannel'", ret))
}

// =============================================================================
// Bundle Resolver Mock
// =============================================================================

var _ contract.BundleResolver = (*MockBundleResolver)(nil)

// MockBundleResolver contract.BundleResolver의 Mock 구현체입니다.
type MockBundleResolver struct {
	mock.Mock
}

func NewMockBundleResolver(t *testing.T) *MockBundleResolver {
	m := &MockBundleResolver{}
	m.Test(t)
	return m
}

func (m *MockBundleResolver) Resolve(ctx context.Context, bundleID int64) (contract.Notification, error) {
	args := m.Called(ctx, bundleID)

	var notification contract.Notification
	if args.Get(0) != nil {
		notification = args.Get(0).(contract.Notification)
	}

	return notification, args.Error(1)
}

// =============================================================================
// Test Helpers
// =============================================================================

const (
	testChatID          int64 = 111222333
	testDefaultBundleID int64 = 9001
)

// newTestConfig 테스트용 AppConfig를 생성합니다.
func newTestConfig() *config.AppConfig {
	return &config.AppConfig{
		HTTPRetry: config.HTTPRetryConfig{
			MaxRetries: 3,
			RetryDelay: "1ms", // 테스트 지연 최소화
		},
		Watcher: config.WatcherConfig{
			PollInterval:    "60s",
			DefaultBundleID: testDefaultBundleID,
		},
		Notifier: config.NotifierConfig{
			Telegram: config.TelegramConfig{
				BotToken: "123456:test-bot-token",
				ChatID:   testChatID,
			},
		},
	}
}

// newTestNotifier Mock 클라이언트와 Mock Resolver가 주입된 테스트용 Notifier를 생성합니다.
func newTestNotifier(t *testing.T) (*telegramNotifier, *MockTelegramBot, *MockBundleResolver) {
	mockBot := NewMockTelegramBot(t)
	mockResolver := NewMockBundleResolver(t)
	n := newNotifierWithClient(mockBot, newTestConfig(), mockResolver)
	return n, mockBot, mockResolver
}
