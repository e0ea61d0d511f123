// Package notifier 알림 채널 구현체들의 공통 기반(큐 관리, 종료 전파)을 제공합니다.
package notifier

import (
	"context"

	"github.com/darkkaiser/bundle-watcher/internal/service/contract"
)

const component = "notification.notifier"

// ID 알림 채널의 고유 식별자 타입입니다.
type ID string

// Notifier 알림 채널(예: 텔레그램)을 추상화한 인터페이스입니다.
type Notifier interface {
	// ID Notifier 인스턴스의 고유 식별자를 반환합니다.
	ID() ID

	// Run 알림 발송을 처리하는 백그라운드 워커를 실행합니다.
	// 이 메서드는 블로킹되며, serviceStopCtx가 취소될 때까지 실행됩니다.
	Run(serviceStopCtx context.Context)

	// Send 알림 발송 요청을 내부 버퍼(Queue)에 등록합니다.
	// 큐가 가득 찬 경우 설정된 타임아웃만큼 대기한 후 실패를 반환합니다.
	Send(ctx context.Context, notification contract.Notification) error

	// TrySend Send와 동일하지만 큐가 가득 찬 경우 대기 없이 즉시 실패를 반환합니다.
	TrySend(ctx context.Context, notification contract.Notification) error

	// SupportsHTML 알림 채널이 HTML 메시지 포맷팅을 지원하는지 여부를 반환합니다.
	SupportsHTML() bool
}
