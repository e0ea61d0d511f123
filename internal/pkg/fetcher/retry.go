package fetcher

import (
	"context"
	"crypto/x509"
	"errors"
	"fmt"
	"math/rand/v2"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	apperrors "github.com/darkkaiser/bundle-watcher/internal/pkg/errors"
	applog "github.com/darkkaiser/bundle-watcher/pkg/log"
)

const (
	// minAllowedRetries 허용 가능한 최소 재시도 횟수입니다. (0: 재시도 안 함)
	minAllowedRetries = 0

	// maxAllowedRetries 허용 가능한 최대 재시도 횟수입니다.
	maxAllowedRetries = 10

	// defaultMaxRetryDelay 재시도 대기 시간의 최대값이 지정되지 않았을 때 사용되는 기본값입니다.
	defaultMaxRetryDelay = 30 * time.Second
)

// ErrMaxRetriesExceeded 최대 재시도 횟수를 초과했을 때 반환됩니다.
var ErrMaxRetriesExceeded = apperrors.New(apperrors.Unavailable, "최대 재시도 횟수를 초과하였습니다")

// RetryFetcher HTTP 요청 실패 시 자동으로 재시도를 수행하는 미들웨어입니다.
//
// 주요 특징:
//   - 지수 백오프(Exponential Backoff): 재시도 간격을 지수적으로 증가시켜 서버 부하를 분산
//   - Jitter: 무작위 지연을 추가하여 동시 다발적인 재시도로 인한 "Thundering Herd" 문제 방지
//   - Retry-After 헤더 지원: 서버가 명시한 재시도 시간을 우선적으로 준수
//   - 멱등성 검증: POST 등 비멱등 메서드는 재시도에서 제외
//   - 컨텍스트 취소 감지: 요청 취소 시 즉시 재시도 중단
type RetryFetcher struct {
	delegate Fetcher

	// maxRetries 최대 재시도 횟수 (0 ~ 10으로 정규화됨)
	maxRetries int

	// minRetryDelay 재시도 대기 시간의 최소값 (지수 백오프의 시작점, 1초 이상으로 보정됨)
	minRetryDelay time.Duration

	// maxRetryDelay 재시도 대기 시간의 최대값 (지수 백오프 증가 시 상한선)
	maxRetryDelay time.Duration
}

// 컴파일 타임에 인터페이스 구현 여부를 검증합니다.
var _ Fetcher = (*RetryFetcher)(nil)

// NewRetryFetcher 새로운 RetryFetcher 인스턴스를 생성합니다.
func NewRetryFetcher(delegate Fetcher, maxRetries int, minRetryDelay, maxRetryDelay time.Duration) *RetryFetcher {
	maxRetries = normalizeMaxRetries(maxRetries)
	minRetryDelay, maxRetryDelay = normalizeRetryDelays(minRetryDelay, maxRetryDelay)

	return &RetryFetcher{
		delegate:      delegate,
		maxRetries:    maxRetries,
		minRetryDelay: minRetryDelay,
		maxRetryDelay: maxRetryDelay,
	}
}

// Do HTTP 요청을 수행하며, 실패 시 설정된 정책에 따라 자동으로 재시도합니다.
//
// 재시도 대상:
//   - 네트워크 오류 (타임아웃, 연결 실패 등)
//   - 5xx 서버 에러 (단, 501/505/511 제외)
//   - 429 Too Many Requests, 408 Request Timeout
//
// 재시도 제외:
//   - 컨텍스트 취소 (context.Canceled)
//   - 4xx 클라이언트 에러, SSL/TLS 인증서 오류, URL 형식 오류
//   - 비멱등 메서드(POST, PATCH)의 요청
func (f *RetryFetcher) Do(req *http.Request) (*http.Response, error) {
	effectiveMaxRetries := f.maxRetries

	// 비멱등 메서드(POST, PATCH)는 재시도 시 데이터 중복 생성/수정 위험이 있으므로 재시도 비활성화
	if !isIdempotentMethod(req.Method) {
		effectiveMaxRetries = 0
	}

	// 재시도 시 요청 본문을 다시 읽어야 하므로, GetBody가 없으면 재시도를 비활성화합니다.
	if req.Body != nil && req.GetBody == nil && effectiveMaxRetries > 0 {
		applog.WithComponentAndFields(component, applog.Fields{
			"url":         redactURL(req.URL),
			"method":      req.Method,
			"max_retries": f.maxRetries,
		}).Warn("재시도 비활성화: 요청 본문 재생성 불가 (GetBody nil)")

		effectiveMaxRetries = 0
	}

	var lastErr error
	var lastResp *http.Response

	// 첫 번째 시도와 재시도를 포함하여 최대 effectiveMaxRetries+1회 반복합니다.
	for i := 0; i <= effectiveMaxRetries; i++ {
		if i > 0 {
			// 지수 백오프: delay = minRetryDelay * 2^(retry-1), maxRetryDelay를 상한으로 제한
			delay := f.minRetryDelay * time.Duration(1<<(i-1))
			if delay > f.maxRetryDelay {
				delay = f.maxRetryDelay
			}

			// Full Jitter: 0 ~ delay 사이의 무작위 값 선택
			if delay > 0 {
				delay = time.Duration(rand.Int64N(int64(delay) + 1))
			}

			// 서버가 Retry-After 헤더로 재시도 시점을 명시한 경우 해당 값을 우선 적용합니다.
			// 단, maxRetryDelay를 초과하는 요구는 재시도를 포기하고 즉시 에러를 반환합니다.
			var retryAfter string
			var explicitDelayFound bool

			if lastResp != nil {
				retryAfter = lastResp.Header.Get("Retry-After")
			} else if lastErr != nil {
				var statusErr *HTTPStatusError
				if errors.As(lastErr, &statusErr) {
					retryAfter = statusErr.Header.Get("Retry-After")
				}
			}

			if retryAfter != "" {
				if retryAfterDelay, ok := parseRetryAfter(retryAfter); ok {
					if retryAfterDelay > f.maxRetryDelay {
						if lastResp != nil {
							drainAndCloseBody(lastResp.Body)
						}

						return nil, apperrors.Newf(apperrors.Unavailable,
							"서버가 요구한 재시도 대기 시간(%s)이 최대 허용치(%s)를 초과하여 재시도를 중단합니다",
							retryAfterDelay, f.maxRetryDelay)
					}

					delay = retryAfterDelay
					explicitDelayFound = true
				}
			}

			// 지터 적용 후 대기 시간이 너무 짧으면 최소값으로 보정하여 과도하게 빠른 재시도를 방지합니다.
			if !explicitDelayFound && delay < time.Millisecond {
				delay = f.minRetryDelay
			}

			fields := applog.Fields{
				"url":               redactURL(req.URL),
				"retry":             i,
				"max_retries":       f.maxRetries,
				"remaining_retries": effectiveMaxRetries - i,
				"delay":             delay.String(),
			}
			if lastErr != nil {
				fields["error"] = lastErr.Error()
			}
			if lastResp != nil {
				fields["status_code"] = lastResp.StatusCode
			}
			applog.WithComponentAndFields(component, fields).
				Warn("재시도 대기 중: 일시적 오류로 인해 요청 재시도를 준비합니다")

			// 계산된 시간만큼 대기하되, 요청이 취소되면 즉시 중단합니다.
			timer := time.NewTimer(delay)

			select {
			case <-req.Context().Done():
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}

				if lastResp != nil && lastResp.Body != nil {
					// 취소된 요청은 빠른 반환을 위해 drain 과정을 생략하고 즉시 닫습니다.
					lastResp.Body.Close()
				}

				return nil, req.Context().Err()

			case <-timer.C:
			}
		}

		// 이전 시도에서 소진된 요청 본문을 GetBody를 통해 복구합니다.
		// 원본 요청 객체를 변경하지 않기 위해 복제본을 사용합니다.
		if i > 0 && req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				if lastResp != nil {
					drainAndCloseBody(lastResp.Body)
				}

				return nil, apperrors.Wrap(err, apperrors.Internal, "재시도를 위한 요청 본문 재생성에 실패하였습니다")
			}

			req = req.Clone(req.Context())
			req.Body = body
		}

		resp, err := f.delegate.Do(req)
		lastResp = resp

		// 응답 상태 코드 기반의 재시도 여부 판단
		shouldRetry := false
		if resp != nil {
			if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusRequestTimeout {
				shouldRetry = true
			} else if resp.StatusCode >= 500 {
				// 501/505/511은 영구적인 문제이므로 재시도해도 성공할 가능성이 낮습니다.
				switch resp.StatusCode {
				case http.StatusNotImplemented, http.StatusHTTPVersionNotSupported, http.StatusNetworkAuthenticationRequired:
					shouldRetry = false
				default:
					shouldRetry = true
				}
			}
		}

		if err != nil {
			// 전체 요청 제한 시간이 초과된 경우, 재시도해도 성공할 수 없으므로 즉시 중단합니다.
			if errors.Is(err, context.DeadlineExceeded) && req.Context().Err() != nil {
				if resp != nil && resp.Body != nil {
					resp.Body.Close()
				}

				return nil, err
			}

			if !isRetriable(err) {
				if resp != nil && resp.Body != nil {
					if errors.Is(err, context.Canceled) {
						resp.Body.Close()
					} else {
						drainAndCloseBody(resp.Body)
					}
				}

				return nil, err
			}
		} else if !shouldRetry {
			// 성공(2xx 등) 또는 재시도가 무의미한 영구적 오류이므로 결과를 그대로 반환합니다.
			return resp, nil
		}

		lastErr = err
		if resp != nil {
			if i == effectiveMaxRetries {
				// 모든 재시도 횟수를 소진하였습니다.
				finalErr := lastErr
				if finalErr == nil {
					// 네트워크 오류는 없었으나 서버가 재시도 대상 상태 코드를 지속적으로 반환한 경우입니다.
					finalErr = &HTTPStatusError{
						StatusCode: resp.StatusCode,
						Status:     resp.Status,
						URL:        redactURL(req.URL),
						Header:     resp.Header.Clone(),
						Cause:      ErrMaxRetriesExceeded,
					}
				} else {
					finalErr = apperrors.Wrap(finalErr, apperrors.Unavailable, "최대 재시도 횟수를 초과하였습니다")
				}

				drainAndCloseBody(resp.Body)

				return nil, finalErr
			}

			drainAndCloseBody(resp.Body)
		}
	}

	// 모든 재시도 횟수를 소진했으나 서버로부터 응답을 받지 못한 경우입니다.
	return nil, apperrors.Wrap(lastErr, apperrors.Unavailable, "최대 재시도 횟수를 초과하였습니다")
}

// Close 위임 대상 Fetcher의 리소스를 해제합니다.
func (f *RetryFetcher) Close() error {
	return f.delegate.Close()
}

// normalizeMaxRetries 최대 재시도 횟수를 허용 범위(0~10) 내로 정규화합니다.
func normalizeMaxRetries(maxRetries int) int {
	if maxRetries < minAllowedRetries {
		return minAllowedRetries
	}
	if maxRetries > maxAllowedRetries {
		return maxAllowedRetries
	}
	return maxRetries
}

// normalizeRetryDelays 재시도 대기 시간의 최소값과 최대값을 정규화합니다.
//   - minRetryDelay 1초 미만: 1초로 보정
//   - maxRetryDelay 0: 기본값(30초)으로 보정
//   - maxRetryDelay < minRetryDelay: minRetryDelay로 보정
func normalizeRetryDelays(minRetryDelay, maxRetryDelay time.Duration) (time.Duration, time.Duration) {
	if minRetryDelay < time.Second {
		minRetryDelay = 1 * time.Second
	}

	if maxRetryDelay == 0 {
		maxRetryDelay = defaultMaxRetryDelay
	}

	if maxRetryDelay < minRetryDelay {
		maxRetryDelay = minRetryDelay
	}

	return minRetryDelay, maxRetryDelay
}

// isRetriable 발생한 에러가 재시도 가능한 일시적인 오류인지 판단합니다.
func isRetriable(err error) bool {
	if err == nil {
		return false
	}

	// 사용자가 명시적으로 요청을 취소한 경우 재시도하지 않습니다.
	if errors.Is(err, context.Canceled) {
		return false
	}

	// 재시도해도 해결되지 않는 URL 관련 오류는 즉시 중단합니다.
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		switch urlErr.Err.Error() {
		case "stopped after 10 redirects", "invalid control character in URL":
			return false
		}

		if strings.Contains(urlErr.Error(), "unsupported protocol scheme") {
			return false
		}
	}

	// 인증서 에러(만료, 신뢰할 수 없는 CA 등)는 영구적인 문제로 간주합니다.
	var x509HostnameErr x509.HostnameError
	var x509UnknownAuthorityErr x509.UnknownAuthorityError
	var x509CertificateInvalidErr x509.CertificateInvalidError
	if errors.As(err, &x509HostnameErr) || errors.As(err, &x509UnknownAuthorityErr) || errors.As(err, &x509CertificateInvalidErr) {
		return false
	}

	// 타임아웃은 일시적인 네트워크 지연으로 간주하여 재시도합니다.
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	// 서버가 일시적으로 요청을 처리할 수 없는 상태(5xx, 429 등)는 재시도합니다.
	// 단, 501/505/511은 영구적인 설정 문제이므로 제외합니다.
	if apperrors.Is(err, apperrors.Unavailable) {
		var statusErr *HTTPStatusError
		if errors.As(err, &statusErr) {
			switch statusErr.StatusCode {
			case http.StatusNotImplemented, http.StatusHTTPVersionNotSupported, http.StatusNetworkAuthenticationRequired:
				return false
			}
		}

		return true
	}

	// 명확한 비즈니스 로직 에러는 재시도해도 동일한 결과가 나오므로 제외합니다.
	if apperrors.Is(err, apperrors.ExecutionFailed) ||
		apperrors.Is(err, apperrors.InvalidInput) ||
		apperrors.Is(err, apperrors.NotFound) {
		return false
	}

	// 명확한 실패 사유가 없다면 일시적 오류(DNS 실패, 연결 거부 등)로 간주하고 재시도합니다.
	return true
}

// isIdempotentMethod 지정된 HTTP 메서드가 멱등한지(재시도가 안전한지) 여부를 반환합니다.
// 참고: RFC 7231 Section 4.2.2 (Idempotent Methods)
func isIdempotentMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace, http.MethodPut, http.MethodDelete:
		return true
	default:
		return false
	}
}

// parseRetryAfter Retry-After 헤더 값을 파싱하여 대기해야 할 시간을 반환합니다.
//
// 지원 형식 (RFC 7231 Section 7.1.3):
//  1. 초 단위 정수: "120" → 120초 후 재시도
//  2. HTTP-date 형식: "Wed, 21 Oct 2015 07:28:00 GMT" → 해당 시각까지 대기
func parseRetryAfter(value string) (time.Duration, bool) {
	if value == "" {
		return 0, false
	}

	var seconds int
	if _, err := fmt.Sscanf(value, "%d", &seconds); err == nil && seconds >= 0 {
		return time.Duration(seconds) * time.Second, true
	}

	if date, err := http.ParseTime(value); err == nil {
		duration := time.Until(date)
		if duration < 0 {
			// 서버 시간과 클라이언트 시간 차이로 과거 시각이 올 수 있으므로 즉시 재시도합니다.
			duration = 0
		}

		return duration, true
	}

	return 0, false
}
