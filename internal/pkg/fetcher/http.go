package fetcher

import (
	"net/http"
	"time"
)

// defaultTimeout HTTP 요청 전체(전송 ~ 응답 본문 읽기)에 대한 기본 제한 시간입니다.
const defaultTimeout = 30 * time.Second

// HTTPFetcher 기본 타임아웃(30초) 및 User-Agent 자동 추가 기능이 내장된 HTTP 클라이언트 구현체입니다.
type HTTPFetcher struct {
	client *http.Client
}

// 컴파일 타임에 인터페이스 구현 여부를 검증합니다.
var _ Fetcher = (*HTTPFetcher)(nil)

// NewHTTPFetcher 기본 타임아웃 설정이 포함된 새로운 HTTPFetcher 인스턴스를 생성합니다.
func NewHTTPFetcher() *HTTPFetcher {
	return &HTTPFetcher{
		client: &http.Client{
			Timeout: defaultTimeout,
		},
	}
}

// NewHTTPFetcherWithTimeout 지정된 타임아웃 설정이 포함된 HTTPFetcher 인스턴스를 생성합니다.
// timeout이 0 이하인 경우 기본값(30초)으로 보정됩니다.
func NewHTTPFetcherWithTimeout(timeout time.Duration) *HTTPFetcher {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &HTTPFetcher{
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// Do 커스텀 HTTP 요청을 실행합니다.
// 요청 헤더에 User-Agent가 없는 경우, 기본값(Chrome)을 자동으로 추가하여 봇 차단을 방지합니다.
func (h *HTTPFetcher) Do(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36")
	}
	return h.client.Do(req)
}

// Close 유휴 상태의 커넥션을 정리합니다.
func (h *HTTPFetcher) Close() error {
	h.client.CloseIdleConnections()
	return nil
}
