// Package fetcher HTTP 요청 처리를 위한 미들웨어 체인을 제공합니다.
//
// HTTPFetcher(실제 전송)를 RetryFetcher(재시도)가 감싸는 구조로,
// 각 구현체는 Fetcher 인터페이스를 통해 자유롭게 조합할 수 있습니다.
package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	apperrors "github.com/darkkaiser/bundle-watcher/internal/pkg/errors"
)

const component = "fetcher"

// Fetcher HTTP 요청을 수행하는 인터페이스
type Fetcher interface {
	Do(req *http.Request) (*http.Response, error)
	Close() error
}

// Get 지정된 URL로 HTTP GET 요청을 전송합니다.
// Fetcher 인터페이스의 구현체가 공통으로 사용할 수 있는 헬퍼 함수입니다.
func Get(ctx context.Context, f Fetcher, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	return f.Do(req)
}

// FetchJSON HTTP 요청을 수행하고 응답 본문(JSON)을 지정된 구조체(v)로 디코딩합니다.
func FetchJSON(ctx context.Context, f Fetcher, method, url string, header map[string]string, body io.Reader, v any) error {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return apperrors.Wrap(err, apperrors.Internal, fmt.Sprintf("JSON 요청 생성에 실패했습니다. (URL: %s)", url))
	}
	for key, value := range header {
		req.Header.Set(key, value)
	}

	resp, err := f.Do(req)
	if err != nil {
		return apperrors.Wrap(err, apperrors.Unavailable, fmt.Sprintf("JSON API(%s) 요청 전송 중 에러가 발생했습니다.", url))
	}
	defer resp.Body.Close() // 응답을 받은 즉시 defer 설정하여 메모리 누수 방지

	if err := CheckResponseStatus(resp); err != nil {
		return err
	}

	// json.Decoder를 사용하여 스트림 방식으로 JSON 파싱 (메모리 효율적)
	if err = json.NewDecoder(resp.Body).Decode(v); err != nil {
		return apperrors.Wrap(err, apperrors.ParsingFailed, fmt.Sprintf("불러온 페이지(%s) 데이터의 JSON 변환이 실패하였습니다.", url))
	}

	return nil
}

// CheckResponseStatus HTTP 응답 상태 코드를 분석하여 도메인 에러로 변환합니다.
// 200 OK가 아닌 경우 상태 코드에 따라 적절한 에러 타입을 반환합니다.
func CheckResponseStatus(resp *http.Response) error {
	if resp.StatusCode == http.StatusOK {
		return nil
	}

	errType := apperrors.ExecutionFailed
	switch {
	// 5xx (Server Error) or 429 (Too Many Requests) -> Unavailable
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		errType = apperrors.Unavailable

	case resp.StatusCode == http.StatusNotFound:
		errType = apperrors.NotFound
	}

	var requestURL string
	if resp.Request != nil {
		requestURL = redactURL(resp.Request.URL)
	}

	return &HTTPStatusError{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		URL:        requestURL,
		Header:     resp.Header.Clone(),
		Cause:      apperrors.New(errType, fmt.Sprintf("HTTP 요청이 실패했습니다. 상태 코드: %s", resp.Status)),
	}
}

// drainAndCloseBody 응답 본문을 비우고 닫습니다.
// 본문을 끝까지 읽어야 HTTP 커넥션이 재사용될 수 있습니다.
func drainAndCloseBody(body io.ReadCloser) {
	if body == nil {
		return
	}

	// 과도한 읽기를 방지하기 위해 최대 4KB까지만 비웁니다.
	_, _ = io.Copy(io.Discard, io.LimitReader(body, 4096))
	_ = body.Close()
}
