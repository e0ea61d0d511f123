package telegram

import (
	"time"

	"golang.org/x/time/rate"

	"github.com/darkkaiser/bundle-watcher/internal/service/contract"
	"github.com/darkkaiser/bundle-watcher/internal/service/notification/notifier"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// component Notification 서비스의 텔레그램 Notifier 로깅용 컴포넌트 이름
const component = "notification.notifier.telegram"

// notifierID 텔레그램 Notifier 인스턴스의 고유 식별자입니다.
const notifierID notifier.ID = "telegram"

const (
	// messageMaxLength 텔레그램 메시지 전송 시 허용되는 최대 문자 길이입니다.
	//
	// 텔레그램 Bot API 공식 제한은 4096자이지만, HTML 태그 및 메타데이터 오버헤드를 고려하여
	// 안전 마진을 두고 3900자로 설정했습니다. 이를 초과하는 메시지는 자동으로 분할 전송됩니다.
	messageMaxLength = 3900

	// photoCaptionMaxLength 사진 메시지에 함께 첨부할 수 있는 캡션의 최대 문자 길이입니다.
	//
	// 텔레그램 Bot API 공식 제한은 1024자이며, 안전 마진을 두고 1000자로 설정했습니다.
	// 본문이 이 길이를 초과하는 경우 사진과 본문을 분리하여 발송합니다.
	photoCaptionMaxLength = 1000

	// shutdownTimeout 텔레그램 Notifier 종료 시 큐에 남은 메시지를 처리하기 위해 대기하는 최대 시간입니다.
	//
	// 이 시간 동안 Drain 로직이 실행되어 버퍼에 쌓인 미전송 메시지를 최대한 처리합니다.
	// 타임아웃이 경과하면 남은 메시지는 손실될 수 있으므로, 버퍼 크기와 전송 속도를 고려하여
	// 충분히 여유있게 설정해야 합니다 (권장: 버퍼크기 / 초당전송속도 * 2 이상).
	shutdownTimeout = 60 * time.Second

	// commandTimeout 봇 명령어 하나를 처리할 때 허용되는 최대 실행 시간입니다.
	// 업스트림 API 지연 등 외부 요인으로 인해 명령어 처리 고루틴이 무한 대기하는 것을 방지합니다.
	commandTimeout = 30 * time.Second

	// notificationBufferSize 알림 발송 대기열(Queue)의 버퍼 크기입니다.
	notificationBufferSize = 100

	// enqueueTimeout 발송 대기열이 가득 찼을 때 빈 공간이 생기기를 기다려줄 최대 시간입니다.
	enqueueTimeout = 5 * time.Second

	// commandExecutionLimit 동시에 처리할 수 있는 봇 명령어의 최대 수입니다. (세마포어 용량)
	commandExecutionLimit = 5

	// httpClientTimeout 텔레그램 봇 API 호출에 사용하는 HTTP 클라이언트의 타임아웃입니다.
	httpClientTimeout = 30 * time.Second

	// longPollTimeout 텔레그램 Long Polling 대기 시간(초)입니다. (Telegram API 권장값)
	longPollTimeout = 60
)

// client 텔레그램 봇 API와의 통신을 추상화한 인터페이스입니다.
type client interface {
	// 봇 정보 조회
	GetSelf() tgbotapi.User

	// 메시지 송수신
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)

	// 리소스 정리
	StopReceivingUpdates()
}

// tgClient tgbotapi.BotAPI를 래핑하여 client 인터페이스를 구현하는 구조체입니다.
//
// 이 구조체는 임베딩(Embedding)을 통해 tgbotapi.BotAPI의 모든 메서드를 상속받으며,
// client 인터페이스에 정의되지 않은 추가 메서드(예: GetSelf)를 구현합니다.
type tgClient struct {
	*tgbotapi.BotAPI
}

// GetSelf 현재 봇의 사용자 정보를 반환합니다.
func (c *tgClient) GetSelf() tgbotapi.User {
	return c.Self
}

// telegramNotifier 텔레그램을 통한 신규 번들 알림 발송 및 봇 명령어 처리를 담당하는 Notifier 구현체입니다.
type telegramNotifier struct {
	*notifier.Base

	// === 메시지 전송 관련 ===

	// chatID 브로드캐스트 알림을 전송할 텔레그램 채팅방의 고유 식별자입니다.
	// 알림에 수신 대상(ChatID)이 지정되지 않은 경우 이 채팅방으로 발송됩니다.
	chatID int64

	// client 텔레그램 봇 API와의 통신을 담당하는 클라이언트입니다.
	client client

	// retryDelay API 호출 실패 시 재시도 전에 대기하는 시간입니다.
	// 일시적인 네트워크 장애나 서버 부하 상황에서 즉시 재시도하지 않고 백오프(Backoff)를 적용합니다.
	retryDelay time.Duration

	// rateLimiter 텔레그램 API 호출 속도를 제어하는 Rate Limiter입니다.
	// API 정책(채팅방당 초당 1회)을 준수하여 봇이 차단되는 것을 방지합니다.
	rateLimiter *rate.Limiter

	// === 명령어 처리 관련 ===

	// resolver 봇 명령어로 요청된 번들 정보를 조회하여 알림 메시지로 구성하는 역할을 담당합니다.
	resolver contract.BundleResolver

	// defaultBundleID /bundle 명령어에서 번들 ID가 생략된 경우 사용할 기본값입니다.
	defaultBundleID int64

	// commandSemaphore 봇 명령어를 처리하는 고루틴의 동시 실행 수를 제한하는 세마포어입니다.
	// 과도한 명령어 요청으로 인한 리소스 고갈(Goroutine Leak)을 방지합니다.
	commandSemaphore chan struct{}

	// botCommands 등록된 모든 봇 명령어 목록입니다.
	// 도움말(/help) 표시 시 등록 순서대로 사용됩니다.
	botCommands []botCommand

	// botCommandsByName 명령어 이름(문자열)을 키로 하여 명령어를 빠르게 조회하는 인덱스입니다.
	botCommandsByName map[string]botCommand
}

// 인터페이스 준수 확인
var _ notifier.Notifier = (*telegramNotifier)(nil)
