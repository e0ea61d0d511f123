package contract

import (
	"context"
	"time"
)

// BundleResolver 번들 ID로 번들 정보를 조회하여 알림 메시지로 구성하는 인터페이스입니다.
// 텔레그램 봇의 /bundle 명령어 처리에 사용됩니다.
type BundleResolver interface {
	// Resolve 지정된 번들의 상세 정보를 조회하여 알림으로 구성합니다.
	//
	// 반환값:
	//   - Notification: 번들 정보가 담긴 알림 (수신 대상 미지정 상태)
	//   - error: 번들이 존재하지 않으면 NotFound 타입의 에러, 그 외 조회 실패 시 해당 에러 반환
	Resolve(ctx context.Context, bundleID int64) (Notification, error)
}

// WatcherStatus Watcher 서비스의 현재 운영 상태 스냅샷입니다.
type WatcherStatus struct {
	// Bootstrapped 최초 목록 수집(부트스트랩)이 완료되었는지 여부
	Bootstrapped bool

	// SeenCount 현재까지 관측한 번들의 수
	SeenCount int

	// NotifiedTotal 기동 이후 발송한 신규 번들 알림의 누적 수
	NotifiedTotal int64

	// LastTickTime 마지막 감시 주기가 수행된 시각 (수행 전이면 제로값)
	LastTickTime time.Time

	// LastTickError 마지막 감시 주기에서 발생한 에러 메시지 (정상이면 빈 문자열)
	LastTickError string
}

// WatcherStatusProvider Watcher 서비스의 운영 상태를 조회하는 인터페이스입니다.
// 운영용 API 서버의 상태 엔드포인트에서 사용됩니다.
type WatcherStatusProvider interface {
	Status() WatcherStatus
}
