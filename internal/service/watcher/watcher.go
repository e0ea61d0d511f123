package watcher

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/darkkaiser/bundle-watcher/internal/config"
	"github.com/darkkaiser/bundle-watcher/internal/pkg/mark"
	"github.com/darkkaiser/bundle-watcher/internal/service"
	"github.com/darkkaiser/bundle-watcher/internal/service/catalog"
	"github.com/darkkaiser/bundle-watcher/internal/service/contract"
	applog "github.com/darkkaiser/bundle-watcher/pkg/log"
)

const component = "watcher.service"

// Service 카탈로그 번들 목록을 주기적으로 감시하여 신규 번들을 알림으로 발송하는 서비스입니다.
//
// 동작은 두 단계로 나뉩니다.
//   - 부트스트랩: 기동 후 첫 번째로 성공한 비어있지 않은 목록을 알림 없이 관측 목록에 등록합니다.
//     기존에 판매 중이던 번들들이 기동 직후 한꺼번에 알림으로 쏟아지는 것을 방지합니다.
//   - 정상 감시: 이후 매 주기마다 목록을 수집하여 관측 목록에 없는 번들만 목록 순서대로 알림 발송합니다.
type Service struct {
	appConfig *config.AppConfig

	gateway catalog.Gateway
	sender  contract.NotificationSender

	pollInterval time.Duration
	storeBaseURL string

	// now 현재 시각 조회 함수 (테스트 시 교체 지점)
	now func() time.Time

	// pollLoopStopWG 감시 루프 고루틴의 종료를 대기하는 WaitGroup
	pollLoopStopWG *sync.WaitGroup

	running   bool
	runningMu sync.Mutex

	// 감시 상태 필드들입니다.
	//
	// seen(관측 목록)에 대한 쓰기는 감시 루프 고루틴만 수행합니다.
	// statusMu는 Status() 등 외부 조회와의 동시 접근을 보호합니다.
	statusMu      sync.RWMutex
	bootstrapped  bool
	seen          map[int64]struct{}
	notifiedTotal int64
	lastTickTime  time.Time
	lastTickError string
}

// 인터페이스 준수 확인
var (
	_ service.Service                = (*Service)(nil)
	_ contract.WatcherStatusProvider = (*Service)(nil)
)

// NewService 새로운 Watcher 서비스 객체를 생성합니다.
func NewService(appConfig *config.AppConfig, gateway catalog.Gateway, sender contract.NotificationSender) *Service {
	if appConfig == nil {
		panic("AppConfig 객체는 필수입니다")
	}
	if gateway == nil {
		panic("Gateway 객체는 필수입니다")
	}
	if sender == nil {
		panic("NotificationSender 객체는 필수입니다")
	}

	return &Service{
		appConfig: appConfig,

		gateway: gateway,
		sender:  sender,

		pollInterval: appConfig.Watcher.PollIntervalDuration(),
		storeBaseURL: appConfig.Catalog.StoreBaseURL,

		now: time.Now,

		pollLoopStopWG: &sync.WaitGroup{},

		running:   false,
		runningMu: sync.Mutex{},

		seen: make(map[int64]struct{}),
	}
}

// Start Watcher 서비스를 시작하여 감시 루프를 구동합니다.
func (s *Service) Start(serviceStopCtx context.Context, serviceStopWG *sync.WaitGroup) error {
	s.runningMu.Lock()
	defer s.runningMu.Unlock()

	applog.WithComponent(component).Info("Watcher 서비스 시작중...")

	if s.running {
		defer serviceStopWG.Done()
		applog.WithComponent(component).Warn("Watcher 서비스가 이미 시작됨!!!")
		return nil
	}

	// 1. 감시 루프 실행
	s.pollLoopStopWG.Add(1)
	go func() {
		defer s.pollLoopStopWG.Done()
		s.pollLoop(serviceStopCtx)
	}()

	// 2. 서비스 종료 감시 루틴 실행
	go s.waitForShutdown(serviceStopCtx, serviceStopWG)

	s.running = true

	applog.WithComponent(component).Info("Watcher 서비스 시작됨")

	return nil
}

// waitForShutdown 서비스의 종료 신호를 감지하고 리소스를 안전하게 정리합니다.
func (s *Service) waitForShutdown(serviceStopCtx context.Context, serviceStopWG *sync.WaitGroup) {
	defer serviceStopWG.Done()

	<-serviceStopCtx.Done()

	applog.WithComponent(component).Info("Watcher 서비스 중지중...")

	// 감시 루프 고루틴이 완전히 종료될 때까지 대기합니다.
	s.pollLoopStopWG.Wait()

	s.runningMu.Lock()
	s.running = false
	s.runningMu.Unlock()

	applog.WithComponent(component).Info("Watcher 서비스 중지됨")
}

// Status 현재 감시 상태의 스냅샷을 반환합니다.
func (s *Service) Status() contract.WatcherStatus {
	s.statusMu.RLock()
	defer s.statusMu.RUnlock()

	return contract.WatcherStatus{
		Bootstrapped:  s.bootstrapped,
		SeenCount:     len(s.seen),
		NotifiedTotal: s.notifiedTotal,
		LastTickTime:  s.lastTickTime,
		LastTickError: s.lastTickError,
	}
}

// pollLoop 주기적으로 번들 목록을 수집하는 감시 루프입니다.
//
// 감시 주기는 고정 간격(Ticker)이 아니라 직전 감시가 끝난 시점부터 다시 계산되므로,
// 감시 한 번이 주기보다 오래 걸리더라도 다음 감시와 겹쳐 실행되지 않습니다.
func (s *Service) pollLoop(serviceStopCtx context.Context) {
	applog.WithComponentAndFields(component, applog.Fields{
		"poll_interval": s.pollInterval.String(),
	}).Info("번들 감시 루프 시작됨")

	// 기동 직후 바로 첫 번째 감시가 수행되도록 타이머를 0으로 초기화합니다.
	pollTimer := time.NewTimer(0)
	defer pollTimer.Stop()

	for {
		select {
		case <-serviceStopCtx.Done():
			applog.WithComponent(component).Info("번들 감시 루프 종료됨")
			return

		case <-pollTimer.C:
		}

		s.runTick(serviceStopCtx)

		// 타이머를 재사용(Reset)하기 전에 Stop()이 false를 반환하면
		// 이미 만료되었을 수 있으므로 채널을 비워 안전하게 재설정합니다.
		if !pollTimer.Stop() {
			select {
			case <-pollTimer.C:
			default:
			}
		}
		pollTimer.Reset(s.pollInterval)
	}
}

// runTick 감시 한 주기를 수행합니다.
func (s *Service) runTick(ctx context.Context) {
	tickTime := s.now()

	records, err := s.gateway.ListRecent(ctx)
	if err != nil {
		s.handleTickFailure(tickTime, err)
		return
	}

	if !s.isBootstrapped() {
		s.bootstrap(tickTime, records)
		return
	}

	s.detectAndNotify(ctx, tickTime, records)
}

// handleTickFailure 번들 목록 수집 실패를 처리합니다.
//
// 수집에 실패한 주기는 관측 목록을 일절 변경하지 않고 종료됩니다.
// 부트스트랩 이전의 실패는 기동 직후의 일시적인 문제일 가능성이 높으므로 로그만 남기고,
// 부트스트랩 이후의 실패는 관리자가 인지할 수 있도록 오류 알림을 발송합니다.
func (s *Service) handleTickFailure(tickTime time.Time, err error) {
	bootstrapped := s.isBootstrapped()

	applog.WithComponentAndFields(component, applog.Fields{
		"bootstrapped": bootstrapped,
		"error":        err.Error(),
	}).Error("번들 목록 수집 실패")

	if bootstrapped {
		alert := fmt.Sprintf("%s 번들 목록 수집에 실패했습니다.\n\n원인: %s", mark.Alert, err.Error())
		if notifyErr := s.sender.NotifyError(alert); notifyErr != nil {
			applog.WithComponentAndFields(component, applog.Fields{
				"error": notifyErr.Error(),
			}).Warn("번들 목록 수집 실패에 대한 오류 알림 발송 실패")
		}
	}

	s.recordTick(tickTime, err)
}

// bootstrap 첫 번째로 성공한 목록 수집 결과를 알림 없이 관측 목록에 등록합니다.
func (s *Service) bootstrap(tickTime time.Time, records []*catalog.BundleRecord) {
	// 빈 목록으로는 부트스트랩을 완료하지 않습니다.
	// 업스트림의 일시적인 오동작으로 빈 목록이 내려온 경우, 이를 기준 상태로 삼으면
	// 다음 주기에 전체 목록이 모두 신규 번들로 오인되어 알림이 쏟아지게 됩니다.
	if len(records) == 0 {
		applog.WithComponent(component).Warn("부트스트랩 보류: 수집된 번들 목록이 비어있음")
		s.recordTick(tickTime, nil)
		return
	}

	s.statusMu.Lock()
	for _, record := range records {
		s.seen[record.ID] = struct{}{}
	}
	s.bootstrapped = true
	s.lastTickTime = tickTime
	s.lastTickError = ""
	seenCount := len(s.seen)
	s.statusMu.Unlock()

	applog.WithComponentAndFields(component, applog.Fields{
		"seen_count": seenCount,
	}).Info("부트스트랩 완료: 기존 번들 목록을 알림 없이 등록함")
}

// detectAndNotify 수집된 목록에서 신규 번들을 추려내어 알림을 발송합니다.
func (s *Service) detectAndNotify(ctx context.Context, tickTime time.Time, records []*catalog.BundleRecord) {
	// 목록 순서를 보존하며 관측 목록에 없는 신규 번들만 추려냅니다.
	var newRecords []*catalog.BundleRecord

	s.statusMu.RLock()
	for _, record := range records {
		if _, ok := s.seen[record.ID]; !ok {
			newRecords = append(newRecords, record)
		}
	}
	s.statusMu.RUnlock()

	if len(newRecords) == 0 {
		applog.WithComponentAndFields(component, applog.Fields{
			"listed_count": len(records),
		}).Debug("신규 번들 없음")

		s.recordTick(tickTime, nil)
		return
	}

	// 신규 번들 전체에 대해 썸네일을 한 번의 호출로 일괄 조회합니다.
	thumbnails := s.fetchThumbnails(ctx, newRecords)

	notifiedCount := 0
	for _, record := range newRecords {
		// 알림 발송 전에 관측 목록에 먼저 등록합니다.
		// 발송에 실패하더라도 등록을 되돌리지 않으므로, 같은 번들에 대한 알림은 최대 한 번입니다.
		s.markSeen(record.ID)

		notification := BuildBundleNotification(s.storeBaseURL, record, thumbnails[record.ID], tickTime)
		notification.Title += mark.New.WithSpace()

		// 개별 번들의 발송 실패는 해당 번들에서 격리하고 나머지 번들의 발송을 계속합니다.
		if err := s.sender.Notify(ctx, notification); err != nil {
			applog.WithComponentAndFields(component, applog.Fields{
				"bundle_id": record.ID,
				"error":     err.Error(),
			}).Warn("신규 번들 알림 발송 실패")
			continue
		}

		notifiedCount++
	}

	s.statusMu.Lock()
	s.notifiedTotal += int64(notifiedCount)
	s.lastTickTime = tickTime
	s.lastTickError = ""
	s.statusMu.Unlock()

	applog.WithComponentAndFields(component, applog.Fields{
		"new_count":      len(newRecords),
		"notified_count": notifiedCount,
	}).Info("신규 번들 알림 발송 완료")
}

// fetchThumbnails 신규 번들들의 썸네일 URL을 일괄 조회합니다.
// 썸네일은 부가 정보이므로 조회에 실패하면 빈 맵을 반환하고 알림 발송을 계속합니다.
func (s *Service) fetchThumbnails(ctx context.Context, records []*catalog.BundleRecord) map[int64]string {
	ids := make([]int64, 0, len(records))
	for _, record := range records {
		ids = append(ids, record.ID)
	}

	thumbnails, err := s.gateway.GetThumbnails(ctx, ids)
	if err != nil {
		applog.WithComponentAndFields(component, applog.Fields{
			"bundle_count": len(ids),
			"error":        err.Error(),
		}).Warn("번들 썸네일 일괄 조회에 실패하여 이미지 없이 알림을 발송합니다")

		return map[int64]string{}
	}

	return thumbnails
}

// markSeen 번들을 관측 목록에 등록합니다.
func (s *Service) markSeen(bundleID int64) {
	s.statusMu.Lock()
	s.seen[bundleID] = struct{}{}
	s.statusMu.Unlock()
}

// recordTick 감시 주기의 수행 시각과 결과를 기록합니다.
func (s *Service) recordTick(tickTime time.Time, err error) {
	s.statusMu.Lock()
	defer s.statusMu.Unlock()

	s.lastTickTime = tickTime
	if err != nil {
		s.lastTickError = err.Error()
	} else {
		s.lastTickError = ""
	}
}

// isBootstrapped 부트스트랩 완료 여부를 반환합니다.
func (s *Service) isBootstrapped() bool {
	s.statusMu.RLock()
	defer s.statusMu.RUnlock()

	return s.bootstrapped
}
