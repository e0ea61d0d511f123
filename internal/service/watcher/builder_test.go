package watcher

import (
	"testing"
	"time"

	"github.com/darkkaiser/bundle-watcher/internal/service/catalog"
	"github.com/stretchr/testify/assert"
)

const testStoreBaseURL = "https://www.example-store.com"

func int64Ptr(v int64) *int64 { return &v }

func TestBuildBundleNotification(t *testing.T) {
	now := time.Date(2026, 8, 24, 10, 30, 0, 0, time.UTC)

	t.Run("번들 정보가 제목/본문/썸네일로 구성된다", func(t *testing.T) {
		record := &catalog.BundleRecord{
			ID:          100,
			Name:        "Winter Knight",
			Description: "겨울 기사 번들",
			BundleType:  "BodyParts",
			Price:       int64Ptr(1250),
		}

		n := BuildBundleNotification(testStoreBaseURL, record, "https://cdn.example.com/thumb.png", now)

		assert.Equal(t, "Winter Knight", n.Title)
		assert.Equal(t, "https://cdn.example.com/thumb.png", n.PhotoURL)
		assert.Contains(t, n.Message, "• 종류 : BodyParts")
		assert.Contains(t, n.Message, "• 가격 : 1,250 Robux")
		assert.Contains(t, n.Message, "겨울 기사 번들")
		assert.Contains(t, n.Message, `<a href="https://www.example-store.com/bundles/100/winter-knight">`)
		assert.Zero(t, n.ChatID)
		assert.False(t, n.ErrorOccurred)
	})

	t.Run("이름과 설명이 없으면 대체 문구를 사용한다", func(t *testing.T) {
		record := &catalog.BundleRecord{ID: 200}

		n := BuildBundleNotification(testStoreBaseURL, record, "", now)

		assert.Equal(t, unknownBundleName, n.Title)
		assert.Contains(t, n.Message, noDescription)
		assert.Contains(t, n.Message, "/bundles/200/-")
	})

	t.Run("갱신 시각이 있으면 현재 시각보다 우선한다", func(t *testing.T) {
		updated := time.Date(2026, 1, 15, 8, 0, 0, 0, time.UTC)
		record := &catalog.BundleRecord{ID: 300, Name: "Bundle", Updated: &updated}

		n := BuildBundleNotification(testStoreBaseURL, record, "", now)

		assert.Contains(t, n.Message, "• 시각 : 2026-01-15 08:00:00")
		assert.NotContains(t, n.Message, "2026-08-24")
	})

	t.Run("갱신 시각이 없으면 현재 시각을 사용한다", func(t *testing.T) {
		record := &catalog.BundleRecord{ID: 300, Name: "Bundle"}

		n := BuildBundleNotification(testStoreBaseURL, record, "", now)

		assert.Contains(t, n.Message, "• 시각 : 2026-08-24 10:30:00")
	})

	t.Run("설명의 HTML 특수문자는 이스케이프된다", func(t *testing.T) {
		record := &catalog.BundleRecord{
			ID:          400,
			Name:        "Bundle",
			Description: "<b>bold</b> & more",
		}

		n := BuildBundleNotification(testStoreBaseURL, record, "", now)

		assert.NotContains(t, n.Message, "<b>bold</b>")
		assert.Contains(t, n.Message, "&lt;b&gt;bold&lt;/b&gt; &amp; more")
	})
}

func TestPriceLabel(t *testing.T) {
	cases := []struct {
		name     string
		record   *catalog.BundleRecord
		expected string
	}{
		{
			name:     "무료 번들은 Free로 표시",
			record:   &catalog.BundleRecord{PriceStatus: "Free"},
			expected: "Free",
		},
		{
			name:     "판매 중지 번들은 Off-Sale로 표시",
			record:   &catalog.BundleRecord{PriceStatus: "Off Sale"},
			expected: "Off-Sale",
		},
		{
			name:     "가격이 있으면 콤마 포맷으로 표시",
			record:   &catalog.BundleRecord{Price: int64Ptr(1234567)},
			expected: "1,234,567 Robux",
		},
		{
			name:     "무료 상태는 가격보다 우선",
			record:   &catalog.BundleRecord{PriceStatus: "Free", Price: int64Ptr(100)},
			expected: "Free",
		},
		{
			name:     "판매 중지 상태는 가격보다 우선",
			record:   &catalog.BundleRecord{PriceStatus: "Off Sale", Price: int64Ptr(100)},
			expected: "Off-Sale",
		},
		{
			name:     "가격 정보가 없으면 N/A로 표시",
			record:   &catalog.BundleRecord{},
			expected: "N/A",
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.expected, priceLabel(c.record))
		})
	}
}

func TestCanonicalLink(t *testing.T) {
	cases := []struct {
		name     string
		bundleID int64
		itemName string
		expected string
	}{
		{
			name:     "일반 이름은 슬러그로 변환",
			bundleID: 1,
			itemName: "My Awesome Bundle!",
			expected: testStoreBaseURL + "/bundles/1/my-awesome-bundle",
		},
		{
			name:     "빈 이름은 대체 경로 사용",
			bundleID: 2,
			itemName: "",
			expected: testStoreBaseURL + "/bundles/2/-",
		},
		{
			name:     "특수문자만 있는 이름은 대체 경로 사용",
			bundleID: 3,
			itemName: "!!!",
			expected: testStoreBaseURL + "/bundles/3/-",
		},
		{
			name:     "한글 이름은 슬러그화되지 않아 대체 경로 사용",
			bundleID: 4,
			itemName: "겨울 번들",
			expected: testStoreBaseURL + "/bundles/4/-",
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.expected, canonicalLink(testStoreBaseURL, c.bundleID, c.itemName))
		})
	}

	t.Run("기본 URL 끝의 슬래시는 중복되지 않는다", func(t *testing.T) {
		link := canonicalLink(testStoreBaseURL+"/", 5, "bundle")
		assert.Equal(t, testStoreBaseURL+"/bundles/5/bundle", link)
	})
}
