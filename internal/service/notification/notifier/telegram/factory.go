package telegram

import (
	"net/http"
	"time"

	"github.com/darkkaiser/bundle-watcher/internal/config"
	apperrors "github.com/darkkaiser/bundle-watcher/internal/pkg/errors"
	"github.com/darkkaiser/bundle-watcher/internal/service/contract"
	"github.com/darkkaiser/bundle-watcher/internal/service/notification/notifier"

	applog "github.com/darkkaiser/bundle-watcher/pkg/log"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/time/rate"
)

// New 텔레그램 봇 API 클라이언트를 초기화하여 Notifier 인스턴스를 생성합니다.
func New(appConfig *config.AppConfig, resolver contract.BundleResolver) (notifier.Notifier, error) {
	if appConfig == nil {
		panic("AppConfig 객체는 필수입니다")
	}
	if resolver == nil {
		panic("BundleResolver 객체는 필수입니다")
	}

	applog.WithComponentAndFields(component, applog.Fields{
		"notifier_id": notifierID,
		"chat_id":     appConfig.Notifier.Telegram.ChatID,
	}).Debug("텔레그램 봇 API 클라이언트 초기화 시작")

	// 1. 텔레그램 봇 API 통신을 위한 커스텀 HTTP 클라이언트를 생성합니다.
	// Go의 기본 http.DefaultClient는 타임아웃이 설정되어 있지 않아, 네트워크 장애 발생 시
	// 요청이 무한히 대기하는(Hang) 심각한 리소스 누수(Goroutine Leak)가 발생할 수 있습니다.
	// 이를 방지하기 위해 반드시 명시적인 타임아웃을 설정해야 합니다.
	httpClient := &http.Client{
		Timeout: httpClientTimeout,
	}

	// 2. 봇 API 클라이언트 인스턴스를 초기화합니다.
	botAPI, err := tgbotapi.NewBotAPIWithClient(appConfig.Notifier.Telegram.BotToken, tgbotapi.APIEndpoint, httpClient)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.InvalidInput, "텔레그램 봇 API 클라이언트 초기화에 실패했습니다. BotToken이 올바른지 확인해주세요.")
	}

	// 3. 디버그 모드 설정
	// 앱 설정에 따라 봇 API의 상세 로그 출력 여부를 결정합니다.
	botAPI.Debug = appConfig.Debug

	return newNotifierWithClient(&tgClient{BotAPI: botAPI}, appConfig, resolver), nil
}

// newNotifierWithClient 외부에서 주입된 텔레그램 봇 API 클라이언트를 사용하여 Notifier 인스턴스를 생성합니다.
// 테스트 시 Mock 클라이언트를 주입하기 위한 분리 지점입니다.
func newNotifierWithClient(c client, appConfig *config.AppConfig, resolver contract.BundleResolver) *telegramNotifier {
	n := &telegramNotifier{
		Base: notifier.NewBase(notifierID, true, notificationBufferSize, enqueueTimeout),

		chatID: appConfig.Notifier.Telegram.ChatID,

		client: c,

		// 재시도 정책(Retry Policy): API 호출 실패 시 즉시 재시도하지 않고 일정 시간 대기합니다.
		// 이를 통해 일시적인 네트워크 장애나 서버 부하 상황에서 불필요한 요청 폭주를 막습니다.
		retryDelay: appConfig.HTTPRetry.RetryDelayDuration(),

		// 속도 제한(Rate Limiting): 텔레그램 API 정책(채팅방당 초당 1회)을 준수하기 위해 발송 속도를 제어합니다.
		rateLimiter: rate.NewLimiter(rate.Every(time.Second), 1),

		resolver: resolver,

		defaultBundleID: appConfig.Watcher.DefaultBundleID,

		// 명령어 처리 동시성 제한
		// 과도한 요청으로 인한 리소스 고갈을 방지하기 위해 버퍼 채널을 사용합니다.
		commandSemaphore: make(chan struct{}, commandExecutionLimit),
	}

	n.registerBotCommands()

	return n
}
