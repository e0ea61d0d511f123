package telegram

import (
	"strings"
	"testing"

	"github.com/darkkaiser/bundle-watcher/internal/service/contract"
	"github.com/stretchr/testify/assert"
)

func TestBuildEnrichMessage(t *testing.T) {
	n, _, _ := newTestNotifier(t)

	t.Run("제목이 없으면 본문만 반환한다", func(t *testing.T) {
		notification := contract.NewNotification("새로운 번들이 출시되었습니다")

		message := n.buildEnrichMessage(&notification)

		assert.Equal(t, "새로운 번들이 출시되었습니다", message)
	})

	t.Run("제목이 있으면 굵은 글씨 헤더가 추가된다", func(t *testing.T) {
		notification := contract.Notification{
			Title:   "Awesome Bundle",
			Message: "본문",
		}

		message := n.buildEnrichMessage(&notification)

		assert.Equal(t, "<b>【 Awesome Bundle 】</b>\n\n본문", message)
	})

	t.Run("제목의 HTML 특수문자는 이스케이프된다", func(t *testing.T) {
		notification := contract.Notification{
			Title:   "<script>alert(1)</script>",
			Message: "본문",
		}

		message := n.buildEnrichMessage(&notification)

		assert.NotContains(t, message, "<script>")
		assert.Contains(t, message, "&lt;script&gt;")
	})

	t.Run("지나치게 긴 제목은 잘린 후 이스케이프된다", func(t *testing.T) {
		notification := contract.Notification{
			Title:   strings.Repeat("가", 200), // 600 바이트
			Message: "본문",
		}

		message := n.buildEnrichMessage(&notification)

		// maxTitleLength(200바이트) 제한: 한글 66자(198바이트)까지만 남습니다.
		assert.Contains(t, message, strings.Repeat("가", 66))
		assert.NotContains(t, message, strings.Repeat("가", 67))
	})

	t.Run("오류 알림에는 경고 문구가 추가된다", func(t *testing.T) {
		notification := contract.NewErrorNotification("카탈로그 조회 실패")

		message := n.buildEnrichMessage(&notification)

		assert.Equal(t, "카탈로그 조회 실패\n\n*** 오류가 발생하였습니다. ***", message)
	})

	t.Run("제목과 오류 표시가 함께 적용된다", func(t *testing.T) {
		notification := contract.Notification{
			Title:         "감시 작업",
			Message:       "본문",
			ErrorOccurred: true,
		}

		message := n.buildEnrichMessage(&notification)

		assert.True(t, strings.HasPrefix(message, "<b>【 감시 작업 】</b>"))
		assert.True(t, strings.HasSuffix(message, "*** 오류가 발생하였습니다. ***"))
	})
}
