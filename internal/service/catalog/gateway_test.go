package catalog_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/darkkaiser/bundle-watcher/internal/config"
	"github.com/darkkaiser/bundle-watcher/internal/pkg/fetcher"
	"github.com/darkkaiser/bundle-watcher/internal/service/catalog"

	apperrors "github.com/darkkaiser/bundle-watcher/internal/pkg/errors"
)

// newTestGateway 테스트 서버를 업스트림으로 사용하는 게이트웨이를 생성합니다.
func newTestGateway(t *testing.T, server *httptest.Server) catalog.Gateway {
	t.Helper()

	f := fetcher.NewHTTPFetcher()
	t.Cleanup(func() { _ = f.Close() })

	return catalog.NewGateway(&config.CatalogConfig{
		CatalogBaseURL:   server.URL,
		ThumbnailBaseURL: server.URL,
		Category:         12,
		SortType:         3,
		Limit:            30,
	}, f)
}

func TestListRecent(t *testing.T) {
	t.Run("목록을 응답 순서 그대로 반환한다", func(t *testing.T) {
		var receivedQuery string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			receivedQuery = r.URL.RawQuery
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"data":[
				{"id":301,"itemType":"Bundle","name":"Knight Set","bundleType":"BodyParts","price":250,"priceStatus":"OnSale"},
				{"id":17,"itemType":"Bundle","name":"Free Walk","bundleType":"AvatarAnimations","priceStatus":"Free"}
			]}`))
		}))
		defer server.Close()

		g := newTestGateway(t, server)

		records, err := g.ListRecent(context.Background())
		require.NoError(t, err)
		require.Len(t, records, 2)

		assert.Equal(t, "category=12&sortType=3&limit=30", receivedQuery)

		assert.Equal(t, int64(301), records[0].ID)
		assert.Equal(t, "Knight Set", records[0].Name)
		require.NotNil(t, records[0].Price)
		assert.Equal(t, int64(250), *records[0].Price)
		assert.Nil(t, records[0].Updated)

		assert.Equal(t, int64(17), records[1].ID)
		assert.True(t, records[1].IsFree())
	})

	t.Run("빈 목록 응답은 빈 슬라이스를 반환한다", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"data":[]}`))
		}))
		defer server.Close()

		g := newTestGateway(t, server)

		records, err := g.ListRecent(context.Background())
		require.NoError(t, err)
		assert.Empty(t, records)
	})

	t.Run("서버 에러는 Unavailable 에러를 반환한다", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer server.Close()

		g := newTestGateway(t, server)

		_, err := g.ListRecent(context.Background())
		require.Error(t, err)
		assert.True(t, apperrors.Is(err, apperrors.Unavailable))
	})

	t.Run("잘못된 JSON 본문은 ParsingFailed 에러를 반환한다", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{broken`))
		}))
		defer server.Close()

		g := newTestGateway(t, server)

		_, err := g.ListRecent(context.Background())
		require.Error(t, err)
		assert.True(t, apperrors.Is(err, apperrors.ParsingFailed))
	})
}

func TestGetDetail(t *testing.T) {
	t.Run("상세 정보를 조회하고 갱신 시각을 파싱한다", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/v1/catalog/items/details", r.URL.Path)
			w.Write([]byte(`{"data":[
				{"id":587,"itemType":"Bundle","name":"Korblox Deathspeaker","description":"...","bundleType":"BodyParts","price":17000,"priceStatus":"OnSale","updated":"2026-08-01T09:30:00Z"}
			]}`))
		}))
		defer server.Close()

		g := newTestGateway(t, server)

		record, err := g.GetDetail(context.Background(), 587)
		require.NoError(t, err)

		assert.Equal(t, int64(587), record.ID)
		assert.Equal(t, "Korblox Deathspeaker", record.Name)
		require.NotNil(t, record.Updated)
		assert.Equal(t, time.Date(2026, 8, 1, 9, 30, 0, 0, time.UTC), record.Updated.UTC())
	})

	t.Run("빈 data 배열은 NotFound 에러를 반환한다", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"data":[]}`))
		}))
		defer server.Close()

		g := newTestGateway(t, server)

		_, err := g.GetDetail(context.Background(), 99999)
		require.Error(t, err)
		assert.True(t, apperrors.Is(err, apperrors.NotFound))
	})

	t.Run("404 응답도 NotFound 에러로 분류한다", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))
		defer server.Close()

		g := newTestGateway(t, server)

		_, err := g.GetDetail(context.Background(), 99999)
		require.Error(t, err)
		assert.True(t, apperrors.Is(err, apperrors.NotFound))
	})
}

func TestGetThumbnails(t *testing.T) {
	t.Run("생성 완료된 썸네일만 결과 맵에 포함한다", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/v1/bundles/thumbnails", r.URL.Path)
			assert.Equal(t, "301,17,42", r.URL.Query().Get("bundleIds"))
			w.Write([]byte(`{"data":[
				{"targetId":301,"state":"Completed","imageUrl":"https://cdn.example.com/301.png"},
				{"targetId":17,"state":"Pending","imageUrl":""},
				{"targetId":42,"state":"Completed","imageUrl":"https://cdn.example.com/42.png"}
			]}`))
		}))
		defer server.Close()

		g := newTestGateway(t, server)

		thumbnails, err := g.GetThumbnails(context.Background(), []int64{301, 17, 42})
		require.NoError(t, err)

		assert.Len(t, thumbnails, 2)
		assert.Equal(t, "https://cdn.example.com/301.png", thumbnails[301])
		assert.Equal(t, "https://cdn.example.com/42.png", thumbnails[42])
		assert.NotContains(t, thumbnails, int64(17))
	})

	t.Run("빈 ID 목록은 업스트림 호출 없이 빈 맵을 반환한다", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Error("업스트림이 호출되어서는 안 됩니다")
		}))
		defer server.Close()

		g := newTestGateway(t, server)

		thumbnails, err := g.GetThumbnails(context.Background(), nil)
		require.NoError(t, err)
		assert.Empty(t, thumbnails)
	})

	t.Run("잘못된 JSON 본문은 ParsingFailed 에러를 반환한다", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`not-json`))
		}))
		defer server.Close()

		g := newTestGateway(t, server)

		_, err := g.GetThumbnails(context.Background(), []int64{1})
		require.Error(t, err)
		assert.True(t, apperrors.Is(err, apperrors.ParsingFailed))
	})
}
