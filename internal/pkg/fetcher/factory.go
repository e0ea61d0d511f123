package fetcher

import (
	"time"
)

// Config Fetcher 체인을 구성하기 위한 설정입니다.
type Config struct {
	// Timeout HTTP 요청 전체에 대한 제한 시간 (0 이하: 기본값 30초)
	Timeout time.Duration

	// MaxRetries 최대 재시도 횟수 (0: 재시도 안 함)
	MaxRetries int

	// MinRetryDelay 지수 백오프의 시작 대기 시간
	MinRetryDelay time.Duration

	// MaxRetryDelay 지수 백오프의 상한 대기 시간
	MaxRetryDelay time.Duration
}

// NewDefault 기본 구성의 Fetcher 체인(HTTPFetcher → RetryFetcher)을 생성합니다.
func NewDefault(cfg Config) Fetcher {
	var f Fetcher = NewHTTPFetcherWithTimeout(cfg.Timeout)

	if cfg.MaxRetries > 0 {
		f = NewRetryFetcher(f, cfg.MaxRetries, cfg.MinRetryDelay, cfg.MaxRetryDelay)
	}

	return f
}
