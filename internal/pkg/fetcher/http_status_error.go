package fetcher

import (
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strings"
)

// HTTPStatusError HTTP 요청 실패 시 상태 코드와 응답 정보를 포함하는 구조화된 에러입니다.
//
// 호출자는 errors.As를 통해 상태 코드, 응답 헤더(Retry-After 등)에 접근할 수 있으며,
// Cause에 래핑된 AppError를 통해 에러 타입 분류가 유지됩니다.
type HTTPStatusError struct {
	StatusCode int         // 서버가 반환한 HTTP 상태 코드
	Status     string      // 상태 코드에 대응하는 텍스트 (예: "404 Not Found")
	URL        string      // 요청 대상 URL (민감 정보 마스킹됨)
	Header     http.Header // 서버가 반환한 응답 헤더
	Cause      error       // 에러 타입 분류를 위한 내부 도메인 에러
}

// Error 표준 error 인터페이스를 구현합니다.
func (e *HTTPStatusError) Error() string {
	msg := fmt.Sprintf("HTTP %d (%s)", e.StatusCode, e.Status)
	if e.URL != "" {
		msg += fmt.Sprintf(" URL: %s", e.URL)
	}
	if e.Cause != nil {
		msg += fmt.Sprintf(": %v", e.Cause)
	}
	return msg
}

// Unwrap 표준 errors.Unwrap 인터페이스를 구현합니다.
func (e *HTTPStatusError) Unwrap() error {
	return e.Cause
}

var (
	// 전체 문자열이 정확히 일치해야 마스킹되는 쿼리 파라미터 키워드 목록
	sensitiveExactKeys = []string{
		"token", "auth", "key", "secret", "pass", "credential", "signature", "password",
		"access_token", "api_key", "client_secret", "refresh_token",
	}

	// 특정 접미사로 끝나면 마스킹되는 쿼리 파라미터 키워드 목록
	sensitiveSuffixes = []string{
		"_token", "_secret", "_key", "_password",
	}
)

// redactURL URL에서 민감한 정보(인증 정보, 토큰성 쿼리 파라미터)를 마스킹하여 반환합니다.
// 원본 URL 객체는 변경되지 않습니다.
func redactURL(u *url.URL) string {
	if u == nil {
		return ""
	}

	ru := *u

	if u.User != nil {
		if _, has := u.User.Password(); has {
			ru.User = url.UserPassword(u.User.Username(), "xxxxx")
		} else if u.User.Username() != "" {
			ru.User = url.User("xxxxx")
		}
	}

	if u.RawQuery != "" {
		query := ru.Query()
		for key := range query {
			if isSensitiveKey(key) {
				query.Set(key, "xxxxx")
			}
		}
		ru.RawQuery = query.Encode()
	}

	return ru.String()
}

func isSensitiveKey(key string) bool {
	lowerKey := strings.ToLower(key)

	if slices.Contains(sensitiveExactKeys, lowerKey) {
		return true
	}

	for _, suffix := range sensitiveSuffixes {
		if strings.HasSuffix(lowerKey, suffix) {
			return true
		}
	}

	return false
}
