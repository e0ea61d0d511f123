// Package watcher 카탈로그 번들 목록을 주기적으로 감시하여 신규 번들을 탐지하고
// 알림 메시지를 구성/발송하는 서비스를 제공합니다.
package watcher

import (
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/darkkaiser/bundle-watcher/internal/service/catalog"
	"github.com/darkkaiser/bundle-watcher/internal/service/contract"
	"github.com/darkkaiser/bundle-watcher/pkg/strutil"
)

const (
	// unknownBundleName 업스트림이 번들 이름을 내려주지 않은 경우 사용하는 대체 이름
	unknownBundleName = "Unknown Bundle"

	// noDescription 업스트림이 번들 설명을 내려주지 않은 경우 사용하는 대체 문구
	noDescription = "등록된 설명이 없습니다."

	// fallbackSlug 번들 이름에서 유효한 슬러그를 만들 수 없는 경우 사용하는 경로 대체값
	fallbackSlug = "-"

	// timestampFormat 알림 메시지에 표시되는 시각 포맷
	timestampFormat = "2006-01-02 15:04:05"

	// estimatedBundleMsgSize 단일 번들 알림 본문의 예상 버퍼 크기(Byte)
	estimatedBundleMsgSize = 512
)

// BuildBundleNotification 번들 정보를 알림 메시지로 구성합니다.
//
// 순수 함수이며 I/O를 수행하지 않습니다. 업스트림에서 받은 이름/설명 문자열은
// HTML 태그로 해석되지 않도록 이스케이프 처리됩니다.
//
// 매개변수:
//   - storeBaseURL: 상점 페이지의 기본 URL (번들 상세 링크 구성에 사용)
//   - record: 알림으로 구성할 번들 정보
//   - thumbnailURL: 번들 썸네일 이미지 URL (없으면 빈 문자열)
//   - now: 목록 경로에서 사용할 현재 시각.
//     상세 조회 경로처럼 record.Updated가 채워진 경우에는 해당 갱신 시각을 우선합니다.
func BuildBundleNotification(storeBaseURL string, record *catalog.BundleRecord, thumbnailURL string, now time.Time) contract.Notification {
	name := record.Name
	if name == "" {
		name = unknownBundleName
	}

	description := record.Description
	if description == "" {
		description = noDescription
	}

	observedAt := now
	if record.Updated != nil {
		observedAt = *record.Updated
	}

	var sb strings.Builder
	sb.Grow(estimatedBundleMsgSize)

	const bodyFormat = `• 종류 : %s
• 가격 : %s
• 시각 : %s

%s

☞ <a href="%s">상점에서 보기</a>`

	fmt.Fprintf(&sb,
		bodyFormat,
		template.HTMLEscapeString(bundleTypeLabel(record)),
		priceLabel(record),
		observedAt.Format(timestampFormat),
		template.HTMLEscapeString(description),
		canonicalLink(storeBaseURL, record.ID, record.Name),
	)

	return contract.Notification{
		Title:    name,
		Message:  sb.String(),
		PhotoURL: thumbnailURL,
	}
}

// canonicalLink 번들 상세 페이지의 정식 URL을 생성합니다.
// 이름이 비어있거나 슬러그화 결과가 빈 문자열이면 경로 대체값("-")을 사용합니다.
func canonicalLink(storeBaseURL string, bundleID int64, name string) string {
	slug := strutil.Slugify(name)
	if slug == "" {
		slug = fallbackSlug
	}

	return fmt.Sprintf("%s/bundles/%d/%s", strings.TrimRight(storeBaseURL, "/"), bundleID, slug)
}

// priceLabel 번들의 판매 상태와 가격을 표시용 문자열로 변환합니다.
//
// 우선순위: 무료 → "Free", 판매 중지 → "Off-Sale", 가격 존재 → 콤마 포맷 가격,
// 그 외(가격 정보 없음) → "N/A"
func priceLabel(record *catalog.BundleRecord) string {
	switch {
	case record.IsFree():
		return "Free"
	case record.IsOffSale():
		return "Off-Sale"
	case record.Price != nil:
		return strutil.FormatCommas(*record.Price) + " Robux"
	default:
		return "N/A"
	}
}

// bundleTypeLabel 번들 종류를 표시용 문자열로 변환합니다.
func bundleTypeLabel(record *catalog.BundleRecord) string {
	if record.BundleType == "" {
		return "N/A"
	}
	return record.BundleType
}
