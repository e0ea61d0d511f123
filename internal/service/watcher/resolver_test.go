package watcher

import (
	"context"
	"sync"
	"testing"
	"time"

	apperrors "github.com/darkkaiser/bundle-watcher/internal/pkg/errors"
	"github.com/darkkaiser/bundle-watcher/internal/service/catalog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// resolverFakeGateway 상세 조회 경로를 제어할 수 있는 catalog.Gateway 테스트 구현체입니다.
type resolverFakeGateway struct {
	mu sync.Mutex

	detail    *catalog.BundleRecord
	detailErr error

	thumbnails   map[int64]string
	thumbnailErr error

	detailCalls    []int64
	thumbnailCalls [][]int64
}

var _ catalog.Gateway = (*resolverFakeGateway)(nil)

func (g *resolverFakeGateway) ListRecent(_ context.Context) ([]*catalog.BundleRecord, error) {
	return nil, nil
}

func (g *resolverFakeGateway) GetDetail(_ context.Context, bundleID int64) (*catalog.BundleRecord, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.detailCalls = append(g.detailCalls, bundleID)

	if g.detailErr != nil {
		return nil, g.detailErr
	}
	return g.detail, nil
}

func (g *resolverFakeGateway) GetThumbnails(_ context.Context, bundleIDs []int64) (map[int64]string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.thumbnailCalls = append(g.thumbnailCalls, bundleIDs)

	if g.thumbnailErr != nil {
		return nil, g.thumbnailErr
	}
	return g.thumbnails, nil
}

func newTestResolver(gateway *resolverFakeGateway) *Resolver {
	r := NewResolver(newWatcherTestConfig(), gateway)
	r.now = func() time.Time {
		return time.Date(2026, 8, 24, 10, 30, 0, 0, time.UTC)
	}
	return r
}

func TestResolve(t *testing.T) {
	t.Run("상세 정보와 썸네일을 조회하여 알림으로 구성한다", func(t *testing.T) {
		updated := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		gateway := &resolverFakeGateway{
			detail: &catalog.BundleRecord{
				ID:          42,
				Name:        "Spring Bundle",
				Description: "봄 번들",
				Updated:     &updated,
			},
			thumbnails: map[int64]string{42: "https://cdn.example.com/42.png"},
		}
		r := newTestResolver(gateway)

		n, err := r.Resolve(context.Background(), 42)
		require.NoError(t, err)

		assert.Equal(t, "Spring Bundle", n.Title)
		assert.Equal(t, "https://cdn.example.com/42.png", n.PhotoURL)
		assert.Contains(t, n.Message, "2026-03-01 12:00:00")
		assert.Zero(t, n.ChatID)

		assert.Equal(t, []int64{42}, gateway.detailCalls)
		require.Len(t, gateway.thumbnailCalls, 1)
		assert.Equal(t, []int64{42}, gateway.thumbnailCalls[0])
	})

	t.Run("존재하지 않는 번들은 NotFound 에러를 그대로 반환한다", func(t *testing.T) {
		gateway := &resolverFakeGateway{
			detailErr: catalog.NewErrBundleNotFound(404),
		}
		r := newTestResolver(gateway)

		_, err := r.Resolve(context.Background(), 404)
		require.Error(t, err)
		assert.True(t, apperrors.Is(err, apperrors.NotFound))

		// 상세 조회가 실패하면 썸네일 조회는 수행되지 않습니다.
		assert.Empty(t, gateway.thumbnailCalls)
	})

	t.Run("썸네일 조회에 실패해도 이미지 없이 알림을 구성한다", func(t *testing.T) {
		gateway := &resolverFakeGateway{
			detail:       &catalog.BundleRecord{ID: 42, Name: "Spring Bundle"},
			thumbnailErr: apperrors.New(apperrors.Unavailable, "썸네일 API 서버에 연결할 수 없습니다"),
		}
		r := newTestResolver(gateway)

		n, err := r.Resolve(context.Background(), 42)
		require.NoError(t, err)
		assert.Empty(t, n.PhotoURL)
		assert.Equal(t, "Spring Bundle", n.Title)
	})
}
