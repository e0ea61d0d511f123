package contract

import "context"

// NotificationSender 알림 발송 기능을 제공하는 인터페이스입니다.
// Watcher, API와 같은 클라이언트는 이 인터페이스를 통해 알림 서비스를 사용합니다.
type NotificationSender interface {
	// Notify 알림 메시지를 발송 대기열에 등록합니다.
	//
	// 반환값:
	//   - error: 발송 요청이 정상적으로 큐에 등록(실제 전송 결과와는 무관)되면 nil, 실패 시 에러 반환
	Notify(ctx context.Context, notification Notification) error

	// NotifyError 기본 채팅방으로 "오류" 성격의 알림 메시지를 발송합니다.
	// 감시 작업 실패 등 관리자의 주의가 필요한 상황 알림에 적합합니다.
	//
	// 반환값:
	//   - error: 발송 요청이 정상적으로 큐에 등록되면 nil, 실패 시 에러 반환
	NotifyError(message string) error

	// SupportsHTML 알림 채널이 HTML 형식의 메시지 포맷팅을 지원하는지 여부를 반환합니다.
	SupportsHTML() bool
}

// NotificationHealthChecker Notification 서비스의 상태를 확인하는 인터페이스입니다.
type NotificationHealthChecker interface {
	// Health 서비스가 정상적으로 실행 중이면 nil, 그렇지 않으면 에러를 반환합니다.
	Health() error
}
