// Package contract 서비스 간에 공유되는 데이터 타입과 인터페이스를 정의합니다.
//
// Watcher, Notification, API 서비스는 서로를 직접 참조하지 않고
// 이 패키지의 인터페이스를 통해서만 협력합니다. (순환 참조 방지)
package contract

import (
	"fmt"
	"strings"
)

// Notification 알림 채널로 발송할 단일 알림 메시지입니다.
type Notification struct {
	// ChatID 알림을 수신할 대상 채팅방의 식별자입니다.
	// 0이면 시스템에 설정된 기본(브로드캐스트) 채팅방으로 발송됩니다.
	// 봇 명령어에 대한 응답처럼 요청자에게만 회신해야 하는 경우 명시적으로 지정합니다.
	ChatID int64

	// Title 알림 메시지의 제목입니다. 비어있으면 제목 없이 본문만 발송됩니다.
	Title string

	// Message 전송할 메시지 본문입니다. HTML 지원 채널에서는 태그가 그대로 해석됩니다.
	Message string

	// PhotoURL 메시지와 함께 표시할 이미지(번들 썸네일)의 URL입니다.
	// 비어있으면 일반 텍스트 메시지로 발송됩니다.
	PhotoURL string

	// ErrorOccurred 오류 상황에 대한 알림인지 여부입니다.
	// true이면 수신 측에서 경고 문구를 추가하는 등 시각적으로 구분하여 표시합니다.
	ErrorOccurred bool
}

// NewNotification 기본 채팅방으로 발송되는 일반 알림을 생성합니다.
func NewNotification(message string) Notification {
	return Notification{
		Message: message,
	}
}

// NewErrorNotification 기본 채팅방으로 발송되는 오류 알림을 생성합니다.
func NewErrorNotification(message string) Notification {
	return Notification{
		Message:       message,
		ErrorOccurred: true,
	}
}

// WithChatID 알림의 수신 대상 채팅방을 지정한 새 알림을 반환합니다.
func (n Notification) WithChatID(chatID int64) Notification {
	n.ChatID = chatID
	return n
}

// Validate 알림이 발송 가능한 상태인지 검증합니다.
func (n Notification) Validate() error {
	if strings.TrimSpace(n.Message) == "" {
		return ErrMessageRequired
	}
	return nil
}

// String 로깅용 요약 문자열을 반환합니다. 메시지 본문은 길이만 노출합니다.
func (n Notification) String() string {
	return fmt.Sprintf("Notification{ChatID:%d, Title:%q, MessageLength:%d, Photo:%t, Error:%t}",
		n.ChatID, n.Title, len(n.Message), n.PhotoURL != "", n.ErrorOccurred)
}
