// Package catalog 아바타 상점 카탈로그 API와의 통신을 담당하는 게이트웨이를 제공합니다.
//
// 목록 조회(ListRecent), 상세 조회(GetDetail), 썸네일 조회(GetThumbnails)의
// 세 가지 업스트림 호출을 추상화하며, HTTP 상태/본문 오류를 타입이 지정된
// AppError로 분류하여 반환합니다. 재시도는 이 계층에서 수행하지 않고
// 주입된 Fetcher 체인(RetryFetcher)에 위임합니다.
package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/darkkaiser/bundle-watcher/internal/config"
	"github.com/darkkaiser/bundle-watcher/internal/pkg/fetcher"
	applog "github.com/darkkaiser/bundle-watcher/pkg/log"

	apperrors "github.com/darkkaiser/bundle-watcher/internal/pkg/errors"
)

const component = "catalog.gateway"

const (
	// bundleItemType 카탈로그 상세 조회 시 사용하는 항목 타입 값
	bundleItemType = "Bundle"

	// thumbnailSize 썸네일 조회 시 요청하는 이미지 크기
	thumbnailSize = "420x420"

	// thumbnailFormat 썸네일 조회 시 요청하는 이미지 포맷
	thumbnailFormat = "Png"

	// thumbnailStateCompleted 썸네일이 생성 완료되어 imageUrl이 유효한 상태 값
	thumbnailStateCompleted = "Completed"

	// thumbnailResponseMaxSize 썸네일 응답 본문을 읽어들이는 최대 크기 (1MB)
	thumbnailResponseMaxSize = 1 << 20
)

// Gateway 카탈로그 API 호출을 추상화한 인터페이스입니다.
type Gateway interface {
	// ListRecent 최신순으로 정렬된 번들 목록을 조회합니다.
	// 반환 순서는 업스트림 응답 순서를 그대로 보존합니다.
	ListRecent(ctx context.Context) ([]*BundleRecord, error)

	// GetDetail 지정된 번들의 상세 정보를 조회합니다.
	// 번들이 존재하지 않으면 NotFound 타입의 에러를 반환합니다.
	GetDetail(ctx context.Context, bundleID int64) (*BundleRecord, error)

	// GetThumbnails 여러 번들의 썸네일 URL을 한 번의 호출로 조회합니다.
	// 생성이 완료되지 않았거나 조회에 실패한 번들은 결과 맵에서 조용히 제외됩니다.
	GetThumbnails(ctx context.Context, bundleIDs []int64) (map[int64]string, error)
}

// gateway Gateway 인터페이스의 HTTP 구현체입니다.
type gateway struct {
	fetcher fetcher.Fetcher

	catalogBaseURL   string
	thumbnailBaseURL string

	category int
	sortType int
	limit    int
}

var _ Gateway = (*gateway)(nil)

// NewGateway 설정과 Fetcher를 받아 새로운 카탈로그 게이트웨이를 생성합니다.
func NewGateway(cfg *config.CatalogConfig, f fetcher.Fetcher) Gateway {
	if cfg == nil {
		panic("CatalogConfig는 필수입니다")
	}
	if f == nil {
		panic("Fetcher는 필수입니다")
	}

	return &gateway{
		fetcher: f,

		catalogBaseURL:   strings.TrimRight(cfg.CatalogBaseURL, "/"),
		thumbnailBaseURL: strings.TrimRight(cfg.ThumbnailBaseURL, "/"),

		category: cfg.Category,
		sortType: cfg.SortType,
		limit:    cfg.Limit,
	}
}

// ListRecent 최신순으로 정렬된 번들 목록을 조회합니다.
func (g *gateway) ListRecent(ctx context.Context) ([]*BundleRecord, error) {
	url := fmt.Sprintf("%s/v1/search/items/details?category=%d&sortType=%d&limit=%d",
		g.catalogBaseURL, g.category, g.sortType, g.limit)

	var response bundleListResponse
	if err := fetcher.FetchJSON(ctx, g.fetcher, http.MethodGet, url, nil, nil, &response); err != nil {
		return nil, err
	}

	records := make([]*BundleRecord, 0, len(response.Data))
	for i := range response.Data {
		records = append(records, response.Data[i].toRecord())
	}

	applog.WithComponentAndFields(component, applog.Fields{
		"count": len(records),
	}).Debug("번들 목록 조회 완료")

	return records, nil
}

// GetDetail 지정된 번들의 상세 정보를 조회합니다.
func (g *gateway) GetDetail(ctx context.Context, bundleID int64) (*BundleRecord, error) {
	url := g.catalogBaseURL + "/v1/catalog/items/details"

	requestBody, err := json.Marshal(bundleDetailsRequest{
		Items: []bundleItemPayload{{ItemType: bundleItemType, ID: bundleID}},
	})
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.Internal, "번들 상세 조회 요청 본문 생성에 실패했습니다")
	}

	header := map[string]string{
		"Content-Type": "application/json",
	}

	var response bundleListResponse
	if err := fetcher.FetchJSON(ctx, g.fetcher, http.MethodPost, url, header, bytes.NewReader(requestBody), &response); err != nil {
		return nil, err
	}

	// 업스트림은 존재하지 않는 번들에 대해 404 대신 빈 data 배열을 반환할 수 있습니다.
	// 두 경우 모두 동일하게 NotFound로 분류합니다.
	if len(response.Data) == 0 {
		return nil, NewErrBundleNotFound(bundleID)
	}

	return response.Data[0].toRecord(), nil
}

// GetThumbnails 여러 번들의 썸네일 URL을 한 번의 호출로 조회합니다.
//
// 응답의 data 배열은 항목별로 생성 상태(state)가 다를 수 있는 느슨한 구조이므로
// gjson으로 순회하며, 생성 완료(Completed) 상태이면서 imageUrl이 유효한 항목만
// 결과 맵에 포함시킵니다.
func (g *gateway) GetThumbnails(ctx context.Context, bundleIDs []int64) (map[int64]string, error) {
	thumbnails := make(map[int64]string, len(bundleIDs))
	if len(bundleIDs) == 0 {
		return thumbnails, nil
	}

	ids := make([]string, 0, len(bundleIDs))
	for _, id := range bundleIDs {
		ids = append(ids, strconv.FormatInt(id, 10))
	}

	url := fmt.Sprintf("%s/v1/bundles/thumbnails?bundleIds=%s&size=%s&format=%s",
		g.thumbnailBaseURL, strings.Join(ids, ","), thumbnailSize, thumbnailFormat)

	resp, err := fetcher.Get(ctx, g.fetcher, url)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.Unavailable, "썸네일 API 요청 전송 중 에러가 발생했습니다")
	}
	defer resp.Body.Close()

	if err := fetcher.CheckResponseStatus(resp); err != nil {
		return nil, err
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, thumbnailResponseMaxSize))
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.Unavailable, "썸네일 API 응답 본문을 읽는 중 에러가 발생했습니다")
	}

	if !gjson.ValidBytes(body) {
		return nil, apperrors.New(apperrors.ParsingFailed, "썸네일 API 응답이 유효한 JSON 형식이 아닙니다")
	}

	gjson.GetBytes(body, "data").ForEach(func(_, entry gjson.Result) bool {
		targetID := entry.Get("targetId").Int()
		state := entry.Get("state").String()
		imageURL := entry.Get("imageUrl").String()

		if targetID > 0 && state == thumbnailStateCompleted && imageURL != "" {
			thumbnails[targetID] = imageURL
		}
		return true
	})

	applog.WithComponentAndFields(component, applog.Fields{
		"requested": len(bundleIDs),
		"resolved":  len(thumbnails),
	}).Debug("번들 썸네일 조회 완료")

	return thumbnails, nil
}
