// Package notification 알림 채널(Notifier)의 생명주기를 관리하고 알림 발송 창구를 제공합니다.
package notification

import (
	"context"
	"sync"

	"github.com/darkkaiser/bundle-watcher/internal/config"
	apperrors "github.com/darkkaiser/bundle-watcher/internal/pkg/errors"
	"github.com/darkkaiser/bundle-watcher/internal/service"
	"github.com/darkkaiser/bundle-watcher/internal/service/contract"
	"github.com/darkkaiser/bundle-watcher/internal/service/notification/notifier"
	"github.com/darkkaiser/bundle-watcher/internal/service/notification/notifier/telegram"
	applog "github.com/darkkaiser/bundle-watcher/pkg/log"
)

const component = "notification.service"

// notifierFactory 알림 채널 인스턴스를 생성하는 팩토리 함수 타입입니다.
// 테스트 시 Mock Notifier를 주입하기 위한 분리 지점입니다.
type notifierFactory func(appConfig *config.AppConfig, resolver contract.BundleResolver) (notifier.Notifier, error)

// Service 알림 채널을 구동하고 알림 발송 요청을 중계하는 서비스입니다.
//
// 다른 서비스(Watcher 등)는 contract.NotificationSender 인터페이스를 통해서만
// 이 서비스에 접근하며, 구체적인 알림 채널(텔레그램)의 존재를 알지 못합니다.
type Service struct {
	appConfig *config.AppConfig

	// resolver 텔레그램 봇 명령어(/bundle) 처리에 사용할 번들 조회기입니다.
	resolver contract.BundleResolver

	notifier notifier.Notifier

	newNotifier notifierFactory

	// notifierStopWG 알림 채널 고루틴의 종료를 대기하는 WaitGroup
	notifierStopWG *sync.WaitGroup

	running   bool
	runningMu sync.Mutex
}

// 인터페이스 준수 확인
var (
	_ service.Service                    = (*Service)(nil)
	_ contract.NotificationSender        = (*Service)(nil)
	_ contract.NotificationHealthChecker = (*Service)(nil)
)

// NewService 새로운 Notification 서비스 객체를 생성합니다.
func NewService(appConfig *config.AppConfig, resolver contract.BundleResolver) *Service {
	if appConfig == nil {
		panic("AppConfig 객체는 필수입니다")
	}
	if resolver == nil {
		panic("BundleResolver 객체는 필수입니다")
	}

	return &Service{
		appConfig: appConfig,

		resolver: resolver,

		newNotifier: telegram.New,

		notifierStopWG: &sync.WaitGroup{},

		running:   false,
		runningMu: sync.Mutex{},
	}
}

// Start 알림 서비스를 시작하여 알림 채널을 활성화합니다.
func (s *Service) Start(serviceStopCtx context.Context, serviceStopWG *sync.WaitGroup) error {
	s.runningMu.Lock()
	defer s.runningMu.Unlock()

	applog.WithComponent(component).Info("Notification 서비스 시작중...")

	if s.running {
		defer serviceStopWG.Done()
		applog.WithComponent(component).Warn("Notification 서비스가 이미 시작됨!!!")
		return nil
	}

	// 1. 알림 채널 초기화 및 실행
	n, err := s.newNotifier(s.appConfig, s.resolver)
	if err != nil {
		defer serviceStopWG.Done()
		return apperrors.Wrap(err, apperrors.Internal, "Notifier 초기화 중 에러가 발생했습니다")
	}
	s.notifier = n

	s.notifierStopWG.Add(1)
	go func() {
		defer s.notifierStopWG.Done()
		n.Run(serviceStopCtx)
	}()

	applog.WithComponentAndFields(component, applog.Fields{
		"notifier_id": n.ID(),
	}).Debug("Notifier가 Notification 서비스에 등록됨")

	// 2. 서비스 종료 감시 루틴 실행
	go s.waitForShutdown(serviceStopCtx, serviceStopWG)

	s.running = true

	applog.WithComponent(component).Info("Notification 서비스 시작됨")

	return nil
}

// waitForShutdown 서비스의 종료 신호를 감지하고 리소스를 안전하게 정리합니다.
func (s *Service) waitForShutdown(serviceStopCtx context.Context, serviceStopWG *sync.WaitGroup) {
	defer serviceStopWG.Done()

	<-serviceStopCtx.Done()

	applog.WithComponent(component).Info("Notification 서비스 중지중...")

	// 알림 채널 고루틴의 작업이 완료(종료)될 때까지 대기합니다.
	// Notifier의 Run 메서드가 Drain을 마치고 리턴하면 대기가 풀립니다.
	s.notifierStopWG.Wait()

	s.runningMu.Lock()
	s.running = false
	s.notifier = nil
	s.runningMu.Unlock()

	applog.WithComponent(component).Info("Notification 서비스 중지됨")
}

// Notify 알림 발송 요청을 알림 채널의 대기열에 등록합니다.
//
// 수신 대상(ChatID)이 지정되지 않은 알림은 기본(브로드캐스트) 채팅방으로 발송됩니다.
// 반환되는 에러는 대기열 등록 실패를 의미하며, 실제 전송 성공 여부는 아닙니다.
func (s *Service) Notify(ctx context.Context, notification contract.Notification) error {
	n, err := s.activeNotifier()
	if err != nil {
		return err
	}

	return n.Send(ctx, notification)
}

// NotifyError 오류 알림 메시지를 기본 채팅방으로 발송 요청합니다.
//
// 시스템 오류, 감시 작업 실패 등 관리자의 주의가 필요한 상황에서 사용합니다.
// 오류 알림은 유실이 허용되는 부가 정보이므로, 대기열이 가득 찬 경우 대기하지 않고
// 즉시 포기(TrySend)합니다.
func (s *Service) NotifyError(message string) error {
	n, err := s.activeNotifier()
	if err != nil {
		return err
	}

	return n.TrySend(context.Background(), contract.NewErrorNotification(message))
}

// SupportsHTML 알림 채널이 HTML 메시지 포맷팅을 지원하는지 여부를 반환합니다.
func (s *Service) SupportsHTML() bool {
	n, err := s.activeNotifier()
	if err != nil {
		return false
	}

	return n.SupportsHTML()
}

// Health 알림 서비스가 발송 가능한 상태인지 확인합니다.
func (s *Service) Health() error {
	_, err := s.activeNotifier()
	return err
}

// activeNotifier 현재 실행 중인 알림 채널을 반환합니다.
// 서비스가 실행 중이 아니면 Unavailable 타입의 에러를 반환합니다.
func (s *Service) activeNotifier() (notifier.Notifier, error) {
	s.runningMu.Lock()
	defer s.runningMu.Unlock()

	if !s.running || s.notifier == nil {
		applog.WithComponent(component).Warn("Notification 서비스가 실행 중이 아니어서 메시지를 전송할 수 없습니다")
		return nil, apperrors.New(apperrors.Unavailable, "Notification 서비스가 실행 중이 아닙니다")
	}

	return s.notifier, nil
}
