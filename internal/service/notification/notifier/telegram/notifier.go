// Package telegram 텔레그램 봇을 통한 알림 발송과 봇 명령어 처리를 담당하는 Notifier 구현을 제공합니다.
package telegram

import (
	"context"
	"sync"
	"time"

	applog "github.com/darkkaiser/bundle-watcher/pkg/log"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Run 텔레그램 봇의 메인 실행 루프를 시작합니다.
//
// 이 메서드는 Sender/Receiver 패턴을 사용하여 두 가지 핵심 작업을 병렬로 수행합니다:
//
//  1. Receiver (메인 고루틴):
//     - 텔레그램 서버로부터 봇 명령어를 Long Polling 방식으로 수신합니다
//     - 수신한 명령어를 별도 고루틴으로 디스패치하여 Non-blocking 처리합니다
//     - 세마포어로 동시 실행 수를 제한하여 과부하를 방지합니다 (Backpressure)
//
//  2. Sender (별도 고루틴):
//     - 내부 시스템으로부터 알림 발송 요청을 채널로 수신합니다
//     - 텔레그램 API를 호출하여 실제 메시지를 전송합니다
//     - Rate Limit, 재시도, HTML 파싱 오류 등을 처리합니다
//
// Receiver와 Sender를 분리하여 알림 발송이 느려지거나 Rate Limit에 걸려도
// 봇 명령어 수신에는 영향을 주지 않습니다.
//
// 종료 처리 (Graceful Shutdown):
//   - serviceStopCtx 취소 또는 updateC 채널 닫힘 시 정상 종료됩니다
//   - defer cleanup()을 통해 모든 고루틴이 안전하게 종료될 때까지 대기합니다
//   - Sender는 종료 시 큐에 남은 메시지를 최대 60초간 처리합니다 (Drain)
func (n *telegramNotifier) Run(serviceStopCtx context.Context) {
	// Long Polling 설정: 서버에 연결을 열어두고 새로운 메시지가 도착할 때까지 대기합니다.
	// Short Polling 대비 네트워크 대역폭과 API 호출 횟수를 크게 줄일 수 있습니다.
	config := tgbotapi.NewUpdate(0)
	config.Timeout = longPollTimeout

	// 업데이트 수신 채널 획득
	// 주의: GetUpdatesChan()은 내부적으로 별도 고루틴을 생성하여 지속적으로 업데이트를 가져옵니다.
	updateC := n.client.GetUpdatesChan(config)

	applog.WithComponentAndFields(component, applog.Fields{
		"notifier_id":  n.ID(),
		"bot_username": n.client.GetSelf().UserName,
		"chat_id":      n.chatID,
	}).Debug("텔레그램 봇 서비스 시작됨: Long Polling 활성화, Sender/Receiver 고루틴 실행 중")

	// WaitGroup을 사용하여 Sender 고루틴과 명령어 처리 고루틴들의 종료를 추적합니다.
	// cleanup()에서 모든 고루틴이 안전하게 종료될 때까지 대기하여 리소스 누수를 방지합니다.
	var wg sync.WaitGroup

	// Sender 고루틴 시작 (알림 발송 전담 워커)
	wg.Add(1)
	go func() {
		defer wg.Done()
		n.sendNotifications(serviceStopCtx)
	}()

	defer n.cleanup(&wg)

	// 메인 루프 시작 (Receiver - 봇 명령어 수신 및 처리)
	n.receiveAndDispatchCommands(serviceStopCtx, updateC, &wg)
}

// cleanup Run 메서드 종료 시 모든 리소스를 안전하게 정리합니다.
//
// Graceful Shutdown을 보장하기 위해 다음 순서를 엄격히 준수해야 합니다.
// 순서가 바뀌면 리소스 누수나 좀비 고루틴이 발생할 수 있습니다.
//
//  1. 신규 메시지 수신 중단 (StopReceivingUpdates)
//  2. Notifier 내부 상태 종료 (Close) → Sender 고루틴의 Drain 프로세스 시작
//  3. 활성 고루틴 종료 대기 (waitForGoroutines, 타임아웃 적용)
//  4. 리소스 해제 (client = nil)
func (n *telegramNotifier) cleanup(wg *sync.WaitGroup) {
	// A. 신규 메시지 수신 중단
	// 텔레그램 서버로부터 더 이상 새로운 업데이트를 받지 않도록 Long Polling을 중단합니다.
	if n.client != nil {
		n.client.StopReceivingUpdates()
	}

	// B. Notifier 내부 상태 종료
	// Done 채널을 닫아 Sender 고루틴에게 종료 신호를 보냅니다.
	// Sender는 이 신호를 받으면 큐에 남은 메시지를 처리(Drain)한 후 종료합니다.
	n.Close()

	// C. 활성 고루틴 종료 대기
	n.waitForGoroutines(wg)

	// D. 리소스 해제
	n.client = nil

	applog.WithComponentAndFields(component, applog.Fields{
		"notifier_id": n.ID(),
		"chat_id":     n.chatID,
	}).Debug("텔레그램 봇 서비스 종료됨: 모든 고루틴 정리 완료")
}

// waitForGoroutines 모든 활성 고루틴이 종료될 때까지 대기합니다.
//
// Sender는 종료 시그널을 받으면 큐에 남은 메시지를 최대 shutdownTimeout(60초)간 처리하므로,
// 여유분(5초)을 더한 시간까지 대기합니다. 타임아웃을 두지 않으면 네트워크 문제나 버그로 인해
// 서비스 종료가 영원히 블로킹될 수 있습니다.
func (n *telegramNotifier) waitForGoroutines(wg *sync.WaitGroup) {
	goroutinesDone := make(chan struct{})
	go func() {
		wg.Wait()
		close(goroutinesDone)
	}()

	shutdownWaitTimeout := shutdownTimeout + (5 * time.Second)
	select {
	case <-goroutinesDone:
		applog.WithComponentAndFields(component, applog.Fields{
			"notifier_id": n.ID(),
			"chat_id":     n.chatID,
		}).Debug("Graceful Shutdown 완료: 모든 고루틴 정상 종료됨")

	case <-time.After(shutdownWaitTimeout):
		// 일부 고루틴이 아직 실행 중일 수 있지만, 무한 대기를 방지하기 위해
		// 서비스 종료를 강제로 진행합니다. 남은 고루틴은 프로세스 종료 시 OS가 정리합니다.
		applog.WithComponentAndFields(component, applog.Fields{
			"notifier_id": n.ID(),
			"chat_id":     n.chatID,
			"timeout":     shutdownWaitTimeout,
		}).Error("Graceful Shutdown 타임아웃: 일부 고루틴 강제 종료됨, 좀비 고루틴 발생 가능")
	}
}

// isClosed 텔레그램 Notifier가 현재 종료된 상태인지 확인합니다.
func (n *telegramNotifier) isClosed() bool {
	select {
	case <-n.Done():
		return true
	default:
		return false
	}
}
