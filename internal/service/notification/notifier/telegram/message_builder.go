package telegram

import (
	"fmt"
	"html"

	"github.com/darkkaiser/bundle-watcher/internal/service/contract"
	"github.com/darkkaiser/bundle-watcher/pkg/strutil"
)

const (
	// maxTitleLength 제목의 최대 길이 제한
	// 너무 긴 제목으로 인해 HTML 태그가 닫히지 않은 채 메시지가 분할되는 문제를 방지합니다.
	maxTitleLength = 200

	// titleFormat 제목이 포함된 메시지 포맷
	// 형식: "<b>【 제목 】</b>\n\n원본메시지"
	// 제목을 굵은 글씨로 강조하고 원본 메시지와 구분하기 위해 빈 줄을 추가합니다.
	titleFormat = "<b>【 %s 】</b>\n\n%s"

	// errorFormat 에러 발생 시 메시지 포맷
	// 형식: "원본메시지\n\n*** 오류가 발생하였습니다. ***"
	// 메시지 하단에 에러 경고 문구를 추가하여 사용자의 주의를 환기시킵니다.
	errorFormat = "%s\n\n*** 오류가 발생하였습니다. ***"
)

// buildEnrichMessage 원본 알림 메시지에 메타데이터를 추가하여 사용자에게 더 풍부한 정보를 제공합니다.
func (n *telegramNotifier) buildEnrichMessage(notification *contract.Notification) string {
	message := notification.Message

	// 1단계: 제목 추가
	message = n.withTitle(notification, message)

	// 2단계: 오류 발생 시 강조 표시 추가
	// 오류 상황에 대한 알림인 경우(ErrorOccurred=true),
	// 메시지 하단에 경고 문구를 추가하여 사용자의 주의를 환기시킵니다.
	if notification.ErrorOccurred {
		message = fmt.Sprintf(errorFormat, message)
	}

	return message
}

// withTitle 메시지에 제목을 포함시킵니다.
//
// 알림 메시지 상단에 제목을 굵은 글씨로 표시하여 사용자가 어떤 번들에 대한
// 알림인지 즉시 파악할 수 있도록 합니다. 제목이 없으면 원본 메시지를 그대로 반환합니다.
func (n *telegramNotifier) withTitle(notification *contract.Notification, message string) string {
	title := notification.Title
	if len(title) == 0 {
		// 제목 없는 단순 알림은 정상적인 시나리오입니다. (오류 알림, 명령어 안내 등)
		return message
	}

	// HTML 안전성 처리: 제목을 안전하게 변환하는 2단계 프로세스
	//
	// 1단계: 길이 제한
	//   - 너무 긴 제목으로 인해 HTML 태그가 닫히지 않은 채 메시지가 분할되는 문제 방지
	//
	// 2단계: HTML 이스케이프
	//   - 업스트림 데이터에 포함된 HTML 특수문자(<, >, &)를 안전하게 변환
	//
	// 중요: 반드시 Truncate → Escape 순서로 처리해야 합니다!
	//   - 잘못된 순서(Escape → Truncate)는 이스케이프된 엔티티를 자를 수 있습니다.
	//   - 예: "&lt;" (4바이트)가 "&l" (2바이트)로 잘리면 HTML 파싱 에러 발생
	sanitizedTitle := html.EscapeString(strutil.Truncate(title, maxTitleLength))

	return fmt.Sprintf(titleFormat, sanitizedTitle, message)
}
