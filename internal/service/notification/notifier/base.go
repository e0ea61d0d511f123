package notifier

import (
	"context"
	"sync"
	"time"

	"github.com/darkkaiser/bundle-watcher/internal/service/contract"

	applog "github.com/darkkaiser/bundle-watcher/pkg/log"
)

// notificationRequest 발송 대기열을 통해 Sender 고루틴에게 전달되는 내부 요청 단위입니다.
//
// Go 관례상 context.Context를 구조체에 저장하는 것은 지양되지만,
// 채널을 통해 Context를 함께 전달하기 위해 내부적으로만 사용하는 래퍼입니다.
type notificationRequest struct {
	Ctx          context.Context
	Notification contract.Notification
}

// Base 모든 Notifier 구현체가 임베딩하여 사용하는 공통 기반 구조체입니다.
//
// "알림을 큐에 넣고 관리하는 책임"을 Base가 담당하므로, 구체 구현체(예: telegramNotifier)는
// "실제로 외부 API를 호출하는 책임"에만 집중할 수 있습니다.
type Base struct {
	id ID

	supportsHTML bool

	// enqueueTimeout 대기열(notificationC)이 가득 찼을 때 빈 공간이 생기기를 기다려줄 최대 시간입니다.
	// 이 시간 동안에도 공간이 생기지 않으면 해당 요청은 드롭됩니다. (Backpressure)
	enqueueTimeout time.Duration

	// notificationC 알림 발송 요청들을 버퍼링하는 내부 대기열 채널입니다.
	// 요청자는 즉시 리턴받고, Sender는 자신의 속도에 맞춰 메시지를 꺼내갑니다.
	notificationC chan *notificationRequest

	// mu 내부 상태(closed, done, notificationC) 접근 시의 경쟁 상태를 방지합니다.
	mu sync.RWMutex

	// closed Close()가 호출되어 Notifier가 영구적으로 종료되었는지를 나타내는 플래그입니다.
	closed bool

	// done 종료 이벤트를 대기 중인 모든 고루틴에게 전파하기 위한 신호 채널입니다.
	// 채널이 닫히는 것 자체가 신호이며, 별도의 데이터는 전달하지 않습니다.
	done chan struct{}

	// pendingSendsWG Send/TrySend를 통해 현재 채널 전송을 시도 중인 고루틴들을 추적합니다.
	//
	// Graceful Shutdown 시 메시지 유실을 방지하기 위한 동기화 장치로, Close() 호출 시점에
	// 이미 전송 경로에 진입한 고루틴들이 채널에 메시지를 넣을 기회를 보장합니다.
	// 워커(Consumer)는 종료 전 WaitForPendingSends()를 호출하여 카운터가 0이 될 때까지 대기합니다.
	pendingSendsWG sync.WaitGroup
}

// NewBase 새로운 Base Notifier 인스턴스를 생성하고 초기화합니다.
func NewBase(id ID, supportsHTML bool, bufferSize int, enqueueTimeout time.Duration) *Base {
	return &Base{
		id: id,

		supportsHTML: supportsHTML,

		enqueueTimeout: enqueueTimeout,

		notificationC: make(chan *notificationRequest, bufferSize),

		done: make(chan struct{}),
	}
}

// ID Notifier 인스턴스의 고유 식별자를 반환합니다.
func (b *Base) ID() ID {
	return b.id
}

// Send 알림 발송 요청을 대기열에 등록합니다.
//
// 실제 발송은 수행하지 않고 요청을 메모리 큐에 넣는 역할만 하므로 빠르게 리턴됩니다.
// 큐가 가득 찬 경우 enqueueTimeout만큼 대기하며, 그 안에 공간이 생기지 않으면
// ErrQueueFull을 반환합니다.
func (b *Base) Send(ctx context.Context, notification contract.Notification) (err error) {
	req, notificationC, done, enqueueTimeout, cleanup, prepareErr := b.prepareSend(ctx, notification)
	if prepareErr != nil {
		return prepareErr
	}
	defer cleanup(&err)

	timer := time.NewTimer(enqueueTimeout)
	defer func() {
		// Stop()이 false를 반환하면 이미 만료되어 값이 채널에 남아있을 수 있으므로 비워줍니다.
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
	}()

	select {
	case notificationC <- req:
		return nil

	case <-done:
		// 대기 중에 Notifier가 종료됨 (Graceful Shutdown)
		return ErrClosed

	case <-ctx.Done():
		// 요청자의 작업이 취소됨
		return ctx.Err()

	case <-timer.C:
		// 타임아웃 발생: 큐가 계속 가득 차 있으므로 시스템 보호를 위해 드롭합니다.
		b.logQueueFull(notification)
		return ErrQueueFull
	}
}

// TrySend 알림 발송 요청을 대기열에 등록 시도합니다.
//
// Send와 달리 큐가 가득 찼을 때 대기하지 않고 즉시 ErrQueueFull을 반환합니다.
// 빠른 응답이 중요하거나 알림 유실이 허용되는 경우(예: 오류 상황 안내)에 사용합니다.
func (b *Base) TrySend(ctx context.Context, notification contract.Notification) (err error) {
	req, notificationC, done, _, cleanup, prepareErr := b.prepareSend(ctx, notification)
	if prepareErr != nil {
		return prepareErr
	}
	defer cleanup(&err)

	select {
	case notificationC <- req:
		return nil

	case <-done:
		return ErrClosed

	case <-ctx.Done():
		return ctx.Err()

	default:
		b.logQueueFull(notification)
		return ErrQueueFull
	}
}

// prepareSend Send/TrySend가 공통으로 수행하는 사전 검증과 리소스 확보를 담당합니다.
//
// 반환값:
//   - req: 큐에 전송할 알림 요청 객체
//   - notificationC, done: 락 없이 사용할 수 있도록 복사한 채널 참조
//   - enqueueTimeout: 블로킹 전송 시 사용할 타임아웃 값
//   - cleanup: 반드시 defer로 호출해야 하는 정리 함수 (WG.Done + 패닉 복구)
//   - err: 준비 과정에서 발생한 에러 (ErrClosed, context.Canceled 등)
func (b *Base) prepareSend(ctx context.Context, notification contract.Notification) (
	req *notificationRequest,
	notificationC chan *notificationRequest,
	done chan struct{},
	enqueueTimeout time.Duration,
	cleanup func(*error),
	err error,
) {
	if ctx == nil {
		ctx = context.Background()
	}

	// 전송 전 반드시 유효성 검사를 수행하여 데이터 정합성을 보장합니다.
	if err := notification.Validate(); err != nil {
		return nil, nil, nil, 0, nil, err
	}

	// 이미 취소된 컨텍스트인 경우 락 획득 비용을 아끼고 즉시 종료합니다.
	if err := ctx.Err(); err != nil {
		return nil, nil, nil, 0, nil, err
	}

	b.mu.RLock()

	if b.closed || b.notificationC == nil {
		b.mu.RUnlock()
		return nil, nil, nil, 0, nil, ErrClosed
	}

	b.pendingSendsWG.Add(1)

	// 채널 전송은 블로킹될 수 있으므로, 락을 잡은 상태에서 수행하지 않도록
	// 필요한 멤버만 로컬 변수로 복사한 뒤 락을 즉시 해제합니다.
	done = b.done
	notificationC = b.notificationC
	enqueueTimeout = b.enqueueTimeout

	b.mu.RUnlock()

	cleanup = func(errPtr *error) {
		b.pendingSendsWG.Done()

		// 내부 로직 오류로 패닉이 발생해도 서비스 전체가 죽지 않도록 방어합니다.
		if r := recover(); r != nil {
			applog.WithComponentAndFields(component, applog.Fields{
				"notifier_id": b.ID(),
				"title":       notification.Title,
				"panic":       r,
			}).Error("Notifier 패닉 복구: 알림 등록 중 예기치 않은 오류가 발생했습니다 (서비스 유지됨)")

			if errPtr != nil {
				*errPtr = ErrPanicRecovered
			}
		}
	}

	req = &notificationRequest{
		Ctx:          ctx,
		Notification: notification,
	}

	return req, notificationC, done, enqueueTimeout, cleanup, nil
}

// logQueueFull 발송 대기열이 가득 차서 알림 요청이 거부되었을 때 경고 로그를 남깁니다.
func (b *Base) logQueueFull(notification contract.Notification) {
	applog.WithComponentAndFields(component, applog.Fields{
		"notifier_id": b.ID(),
		"title":       notification.Title,
		"queue_depth": len(b.notificationC),
	}).Warn("알림 요청 거부: 발송 대기열 용량 초과 (Queue Full)")
}

// Close Notifier의 운영을 중단하고 종료 신호를 전파합니다.
//
// 내부 메시지 채널(notificationC)은 명시적으로 닫지 않습니다. 다중 프로듀서 환경에서
// 닫힌 채널에 전송할 때 발생하는 패닉을 방지하기 위함이며, 남은 메시지는
// Sender의 Drain 로직에 의해 처리되거나 GC에 의해 수거됩니다.
func (b *Base) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.closed {
		b.closed = true

		if b.done != nil {
			close(b.done)
		}
	}
}

// Done Notifier의 종료 상태를 감지할 수 있는 읽기 전용 채널을 반환합니다.
// 반환된 채널이 닫혔다면 Close() 호출에 의해 종료되었음을 의미합니다.
func (b *Base) Done() <-chan struct{} {
	return b.done
}

// WaitForPendingSends 현재 진행 중인 모든 Send/TrySend 요청이 완료될 때까지 대기합니다.
//
// Graceful Shutdown 시 "채널 확인(Empty) → 종료 → Send(Push)" 순서로 발생하는
// 경쟁 상태에 의한 메시지 유실을 방지하기 위해, 워커(Consumer)가 Drain 직전에 호출합니다.
func (b *Base) WaitForPendingSends() {
	b.pendingSendsWG.Wait()
}

// NotificationC Sender가 메시지를 꺼내어 처리하기 위한 읽기 전용 대기열 채널을 반환합니다.
func (b *Base) NotificationC() <-chan *notificationRequest {
	return b.notificationC
}

// SupportsHTML 알림 채널이 HTML 스타일의 메시지 포맷팅을 지원하는지 여부를 반환합니다.
func (b *Base) SupportsHTML() bool {
	return b.supportsHTML
}
