package telegram

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/darkkaiser/bundle-watcher/internal/service/contract"
	applog "github.com/darkkaiser/bundle-watcher/pkg/log"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// sendNotification 원본 알림 메시지에 메타데이터를 추가한 후, 텔레그램으로 메시지를 전송합니다.
//
// 알림 전송 파이프라인의 핵심 진입점으로, 다음 단계로 구성됩니다:
//  1. 수신 대상 결정: 알림에 채팅방이 지정되지 않은 경우 기본(브로드캐스트) 채팅방으로 발송
//  2. 메시지 강화(enrichment): 원본 알림 메시지에 제목, 에러 상태 등의 메타데이터를 추가
//  3. 썸네일(PhotoURL)이 있는 경우 사진 메시지로 우선 발송, 실패 시 텍스트로 대체
//  4. 텔레그램 API를 통한 실제 메시지 전송 (4096자 초과 시 자동 분할)
//
// 중요: 텔레그램 Notifier는 HTML 서식을 지원(SupportsHTML=true)하므로,
// 호출 측이 제공한 메시지 본문의 HTML 태그를 이스케이프하지 않고 그대로 허용합니다.
func (n *telegramNotifier) sendNotification(ctx context.Context, notification *contract.Notification) {
	// 1단계: 수신 대상 결정
	// ChatID가 0이면 브로드캐스트 알림이므로 설정된 기본 채팅방으로 발송합니다.
	targetChatID := notification.ChatID
	if targetChatID == 0 {
		targetChatID = n.chatID
	}

	// 2단계: 메시지 강화
	message := n.buildEnrichMessage(notification)

	// 3단계: 썸네일 사진 발송
	if notification.PhotoURL != "" {
		if len(message) <= photoCaptionMaxLength {
			// 본문이 캡션 제한 이내인 경우: 사진에 본문을 캡션으로 첨부하여 한 번에 발송합니다.
			if err := n.sendPhoto(ctx, targetChatID, notification.PhotoURL, message); err == nil {
				return
			}

			// 사진 발송 실패: 알림 자체가 유실되지 않도록 텍스트 메시지로 대체 발송합니다.
			applog.WithComponentAndFields(component, applog.Fields{
				"notifier_id": n.ID(),
				"chat_id":     targetChatID,
				"photo_url":   notification.PhotoURL,
			}).Warn("사진 메시지 발송 실패: 텍스트 메시지로 대체 발송합니다 (Fallback)")
		} else {
			// 본문이 캡션 제한을 초과하는 경우: 사진을 캡션 없이 먼저 발송하고 본문은 별도 전송합니다.
			if err := n.sendPhoto(ctx, targetChatID, notification.PhotoURL, ""); err != nil {
				applog.WithComponentAndFields(component, applog.Fields{
					"notifier_id": n.ID(),
					"chat_id":     targetChatID,
					"photo_url":   notification.PhotoURL,
				}).Warn("사진 메시지 발송 실패: 본문 텍스트만 발송합니다")
			}
		}
	}

	// 4단계: 최종 메시지 전송
	// 메시지가 최대 길이를 초과하는 경우 자동으로 분할하여 전송됩니다.
	n.sendMessage(ctx, targetChatID, message)
}

// sendPhoto 썸네일 이미지를 사진 메시지로 전송합니다.
//
// 이미지 데이터를 직접 업로드하지 않고 URL(FileURL)을 전달하여
// 텔레그램 서버가 원본을 가져가도록 합니다. caption이 비어있으면 사진만 전송됩니다.
func (n *telegramNotifier) sendPhoto(ctx context.Context, chatID int64, photoURL, caption string) error {
	return n.attemptSendWithRetry(ctx, func(useHTML bool) tgbotapi.Chattable {
		photoConfig := tgbotapi.NewPhoto(chatID, tgbotapi.FileURL(photoURL))
		photoConfig.Caption = caption
		if useHTML {
			photoConfig.ParseMode = tgbotapi.ModeHTML
		}
		return photoConfig
	}, chatID, len(caption), true)
}

// sendMessage 긴 메시지를 텔레그램 API 제한에 맞춰 분할하여 전송합니다.
//
// 텔레그램 Bot API는 단일 메시지의 최대 길이를 4096 바이트로 제한하므로,
// 이를 초과하는 메시지는 다음 3단계 전략으로 분할합니다:
//
//  1. 논리적 분할 (Line-based Chunking):
//     가능한 한 줄바꿈(\n) 단위로 메시지를 나누어 문장이 중간에 잘리지 않도록 합니다.
//
//  2. 강제 분할 (Safe Split):
//     한 줄 자체가 제한을 초과하는 경우에만 강제로 자르되,
//     UTF-8 문자 경계를 존중하여 멀티바이트 문자가 깨지지 않도록 합니다.
//
//  3. 순차 전송 및 조기 중단:
//     분할된 청크들은 원래 순서대로 하나씩 전송되며, 중간에 전송 실패가 발생하면
//     즉시 중단하여 불필요한 API 호출을 방지합니다.
func (n *telegramNotifier) sendMessage(ctx context.Context, chatID int64, message string) {
	// 짧은 메시지는 즉시 전송
	if len(message) <= messageMaxLength {
		_ = n.sendChunk(ctx, chatID, message)
		return
	}

	var sb strings.Builder
	sb.Grow(messageMaxLength)

	lines := strings.SplitSeq(message, "\n")
	for line := range lines {
		// 긴 메시지를 처리하는 중에도 취소 시그널에 빠르게 반응하기 위해 매 루프마다 확인합니다.
		if ctx.Err() != nil {
			return
		}

		// 현재 라인을 추가할 공간 계산
		// 청크에 이미 내용이 있다면 줄바꿈 문자(\n) 1바이트가 추가로 필요합니다.
		neededSpace := len(line)
		if sb.Len() > 0 {
			neededSpace += 1
		}

		if sb.Len()+neededSpace > messageMaxLength {
			// 지금까지 모은 청크가 있다면 먼저 전송하고 비웁니다.
			if sb.Len() > 0 {
				if err := n.sendChunk(ctx, chatID, sb.String()); err != nil {
					return
				}
				sb.Reset()
			}

			// 현재 라인 자체가 최대 길이를 초과하는 경우 (예: 4096자 이상의 한 줄짜리 로그)
			// 줄바꿈으로는 분할할 수 없으므로 강제로 잘라야 합니다.
			if len(line) > messageMaxLength {
				currentLine := line

				for len(currentLine) > messageMaxLength {
					if ctx.Err() != nil {
						return
					}

					chunk, remainder := safeSplit(currentLine, messageMaxLength)
					if err := n.sendChunk(ctx, chatID, chunk); err != nil {
						return
					}
					currentLine = remainder
				}

				// 자르고 남은 마지막 조각을 새로운 청크의 시작으로 설정합니다.
				// 이 조각은 다음 라인들과 합쳐질 수 있습니다.
				sb.WriteString(currentLine)
			} else {
				sb.WriteString(line)
			}
		} else {
			if sb.Len() > 0 {
				sb.WriteByte('\n')
			}
			sb.WriteString(line)
		}
	}

	// 루프가 끝났지만 아직 전송하지 않은 마지막 청크가 남아있을 수 있습니다.
	if sb.Len() > 0 {
		_ = n.sendChunk(ctx, chatID, sb.String())
	}
}

// sendChunk 단일 메시지 청크를 텔레그램 API로 전송합니다.
// HTML 파싱 모드를 활성화하여 전송하며, 실패 시 자동으로 재시도 로직이 적용됩니다.
func (n *telegramNotifier) sendChunk(ctx context.Context, chatID int64, message string) error {
	return n.attemptSendWithRetry(ctx, func(useHTML bool) tgbotapi.Chattable {
		messageConfig := tgbotapi.NewMessage(chatID, message)
		if useHTML {
			messageConfig.ParseMode = tgbotapi.ModeHTML
		}
		return messageConfig
	}, chatID, len(message), true)
}

// attemptSendWithRetry 텔레그램 전송을 시도하며, 실패 시 자동으로 재시도합니다.
//
// 텔레그램 전송의 복원력(resilience)을 담당하는 핵심 엔진으로, 다음 기능을 제공합니다:
//
//  1. Rate Limiting: 텔레그램 API의 전송 횟수 제한을 자동으로 준수합니다.
//
//  2. 지능형 재시도: 일시적 오류 발생 시 최대 3회까지 자동으로 재시도하며,
//     재시도 가능한 에러(5xx, 429)와 불가능한 에러(4xx)를 구분하여 처리합니다.
//
//  3. 적응형 대기: 429 Rate Limit 에러 시 서버가 요청한 시간(Retry-After)만큼 대기하고,
//     일반 에러는 기본 대기 시간(retryDelay)을 사용합니다.
//
//  4. HTML Fallback: HTML 파싱 실패(400 에러) 시 자동으로 PlainText 모드로 전환하여
//     재시도합니다. 재귀 호출로 구현되어 Fallback 후에도 모든 재시도 로직이 동일하게 적용됩니다.
//
//  5. 컨텍스트 인식: 취소 시그널이나 타임아웃을 재시도 대기 중에도 즉시 감지하여 반응합니다.
//
// 파라미터:
//   - build: 파싱 모드(useHTML)에 따라 전송할 Chattable(텍스트/사진)을 구성하는 함수
//   - chatID: 전송 대상 채팅방 식별자 (로깅용)
//   - contentLength: 전송하는 본문의 길이 (로깅용)
//   - useHTML: true면 HTML 파싱 모드, false면 PlainText 모드
func (n *telegramNotifier) attemptSendWithRetry(ctx context.Context, build func(useHTML bool) tgbotapi.Chattable, chatID int64, contentLength int, useHTML bool) error {
	chattable := build(useHTML)

	// Rate Limiting 적용
	// 토큰 버킷(Token Bucket) 알고리즘으로 텔레그램 API 호출 속도를 제어합니다.
	// 토큰이 없으면 재충전될 때까지 대기하며, 컨텍스트 취소 시 즉시 에러를 반환합니다.
	if n.rateLimiter != nil {
		if err := n.rateLimiter.Wait(ctx); err != nil {
			applog.WithComponentAndFields(component, applog.Fields{
				"notifier_id": n.ID(),
				"error":       err,
				"limit":       n.rateLimiter.Limit(),
				"burst":       n.rateLimiter.Burst(),
			}).Debug("작업 중단: RateLimiter 대기 중 컨텍스트가 취소되었습니다")

			return err
		}
	}

	const maxRetries = 3
	var lastErr error

	for attempt := 1; attempt <= maxRetries; attempt++ {
		// 전송 전 컨텍스트 확인
		// 취소되었다면 즉시 에러를 반환하여 불필요한 API 호출을 방지합니다.
		select {
		case <-ctx.Done():
			// 타임아웃 에러는 특별히 로그를 남깁니다 (운영 모니터링에 중요).
			if ctx.Err() == context.DeadlineExceeded {
				applog.WithComponentAndFields(component, applog.Fields{
					"notifier_id": n.ID(),
					"error":       ctx.Err(),
					"attempt":     attempt,
				}).Error("작업 중단: 발송 제한 시간(Timeout)을 초과하였습니다")
			}
			return ctx.Err()

		default:
		}

		// 텔레그램 API 호출
		_, err := n.client.Send(chattable)
		if err == nil {
			applog.WithComponentAndFields(component, applog.Fields{
				"notifier_id":    n.ID(),
				"chat_id":        chatID,
				"attempt":        attempt,
				"mode":           formatSendMode(useHTML),
				"content_length": contentLength,
			}).Info("발송 성공: 텔레그램 API로 메시지가 정상 전송되었습니다")

			return nil
		}

		lastErr = err
		applog.WithComponentAndFields(component, applog.Fields{
			"notifier_id":    n.ID(),
			"chat_id":        chatID,
			"attempt":        attempt,
			"error":          err,
			"mode":           formatSendMode(useHTML),
			"content_length": contentLength,
		}).Warn("발송 실패: 텔레그램 API 호출에서 오류가 발생했습니다 (재시도 예정)")

		// 텔레그램 API 에러에서 HTTP 상태 코드와 Retry-After 값을 추출합니다.
		errCode, retryAfter := parseTelegramError(err)

		// HTML Fallback 메커니즘
		// 400 Bad Request 에러는 대부분 HTML 파싱 실패를 의미합니다. (닫히지 않은 태그 등)
		// 이 경우 HTML 모드를 끄고 PlainText 모드로 재귀 호출합니다.
		// 내용은 그대로 유지하고, 파싱 모드만 변경합니다.
		if useHTML && errCode == 400 {
			applog.WithComponentAndFields(component, applog.Fields{
				"notifier_id":    n.ID(),
				"error":          err,
				"attempt":        attempt,
				"content_length": contentLength,
			}).Warn("HTML 파싱 오류(400): PlainText 모드로 자동 전환하여 재시도합니다 (Fallback)")

			return n.attemptSendWithRetry(ctx, build, chatID, contentLength, false)
		}

		if !shouldRetry(errCode) {
			applog.WithComponentAndFields(component, applog.Fields{
				"notifier_id": n.ID(),
				"chat_id":     chatID,
				"error":       err,
				"code":        errCode,
				"attempt":     attempt,
			}).Error("작업 중단: 재시도 불가능한 API 오류가 발생했습니다 (4xx Fatal Error)")

			return err
		}

		// 마지막 시도였다면 루프를 빠져나가 최종 실패 처리로 이동합니다.
		if attempt >= maxRetries {
			break
		}

		// 429 Rate Limit 에러 시 텔레그램 서버가 Retry-After로 대기 시간을 명시할 수 있으며,
		// 이 경우 서버가 요청한 시간만큼 정확히 대기해야 합니다.
		if errCode == 429 && retryAfter > 0 {
			applog.WithComponentAndFields(component, applog.Fields{
				"notifier_id": n.ID(),
				"retry_after": retryAfter,
				"attempt":     attempt,
				"limit":       n.rateLimiter.Limit(),
				"burst":       n.rateLimiter.Burst(),
			}).Warn("재시도 대기: 429 Rate Limit 감지 (Retry-After 준수)")
		}

		backoff := n.delayForRetry(retryAfter)
		select {
		case <-ctx.Done():
			// 대기 중 컨텍스트가 취소되면 즉시 반환합니다.
			if ctx.Err() == context.DeadlineExceeded {
				applog.WithComponentAndFields(component, applog.Fields{
					"notifier_id": n.ID(),
					"error":       ctx.Err(),
					"backoff":     backoff,
					"attempt":     attempt,
				}).Error("재시도 중단: 대기 중 작업 제한 시간(Timeout)을 초과하였습니다")
			}
			return ctx.Err()

		case <-time.After(backoff):
		}
	}

	// 모든 재시도가 실패한 경우 여기에 도달합니다.
	applog.WithComponentAndFields(component, applog.Fields{
		"notifier_id":    n.ID(),
		"chat_id":        chatID,
		"error":          lastErr,
		"max_retries":    maxRetries,
		"content_length": contentLength,
		"use_html":       useHTML,
	}).Error("전송 최종 실패: 최대 재시도 횟수를 초과하였습니다")

	return lastErr
}

// shouldRetry 주어진 HTTP 상태 코드를 기반으로 메시지 전송 재시도 가능 여부를 판단합니다.
//
// HTTP 상태 코드 분류:
//   - 4xx (Client Error): 클라이언트 측 문제 → 재시도 불가능
//   - 429 (Too Many Requests): Rate Limit → 재시도 가능 (예외)
//   - 5xx (Server Error): 서버 측 일시적 문제 → 재시도 가능
func shouldRetry(statusCode int) bool {
	if statusCode >= 400 && statusCode < 500 {
		// 예외: 429 Too Many Requests는 Rate Limit이므로 재시도 가능
		return statusCode == 429
	}

	// 5xx 서버 에러 및 기타 모든 에러는 재시도 가능 (네트워크 에러 등 errCode=0인 경우도 포함)
	return true
}

// delayForRetry 메시지 전송 실패 시, 다음 재시도까지의 대기 시간을 계산합니다.
//
// 텔레그램 API는 429 에러 발생 시 Retry-After 헤더로 대기 시간을 지정할 수 있습니다.
// 이 값을 우선 사용하고, 없으면 기본 대기 시간(retryDelay)을 사용합니다.
func (n *telegramNotifier) delayForRetry(retryAfter int) time.Duration {
	if retryAfter > 0 {
		return time.Duration(retryAfter) * time.Second
	}
	return n.retryDelay
}

// formatSendMode 메시지 파싱 모드를 로깅용 문자열로 변환합니다.
func formatSendMode(useHTML bool) string {
	if useHTML {
		return "HTML"
	}
	return "PlainText"
}

// parseTelegramError 텔레그램 API 에러에서 에러 코드와 Retry-After 값을 추출합니다.
//
// 반환값:
//   - code: HTTP 상태 코드 (예: 400, 401, 429, 500 등), 텔레그램 에러가 아니면 0
//   - retryAfter: 429 에러 시 서버가 요청한 대기 시간(초), 없으면 0
func parseTelegramError(err error) (code int, retryAfter int) {
	// 값 타입으로 어설션 시도
	if apiErr, ok := err.(tgbotapi.Error); ok {
		return apiErr.Code, apiErr.ResponseParameters.RetryAfter
	}

	// 포인터 타입으로 어설션 시도
	if apiErrPtr, ok := err.(*tgbotapi.Error); ok {
		return apiErrPtr.Code, apiErrPtr.ResponseParameters.RetryAfter
	}

	// 텔레그램 에러가 아닌 경우 (일반 네트워크 에러 등)
	return 0, 0
}

// safeSplit UTF-8 문자열을 지정된 바이트 길이(limit) 내에서 안전하게 분할합니다.
//
// 텔레그램 API의 메시지 길이 제한(바이트 단위)을 준수하면서
// 멀티바이트 문자(한글, 이모지 등)가 바이트 경계에서 깨지지 않도록 보장합니다.
//
// 반환값:
//   - chunk: limit 이내의 안전하게 잘린 첫 번째 부분
//   - remainder: 나머지 부분 (빈 문자열일 수 있음)
func safeSplit(s string, limit int) (chunk, remainder string) {
	if len(s) <= limit {
		return s, ""
	}

	// limit 위치가 멀티바이트 문자의 중간일 수 있으므로,
	// 뒤로 이동하며 가장 가까운 룬 시작 위치를 찾습니다.
	splitIndex := limit
	for splitIndex > 0 && !utf8.RuneStart(s[splitIndex]) {
		splitIndex--
	}

	// splitIndex가 0까지 후퇴한 경우는 limit 이전에 유효한 룬 시작점이 없다는 의미입니다.
	// 이 경우 강제로 limit에서 자르되, 깨진 문자는 감수합니다.
	if splitIndex == 0 {
		return s[:limit], s[limit:]
	}

	return s[:splitIndex], s[splitIndex:]
}
