package watcher

import (
	"context"
	"time"

	"github.com/darkkaiser/bundle-watcher/internal/config"
	"github.com/darkkaiser/bundle-watcher/internal/service/catalog"
	"github.com/darkkaiser/bundle-watcher/internal/service/contract"
	applog "github.com/darkkaiser/bundle-watcher/pkg/log"
)

const resolverComponent = "watcher.resolver"

// Resolver 번들 ID로 상세 정보를 조회하여 알림 메시지로 구성합니다.
//
// 텔레그램 봇의 /bundle 명령어 처리에 사용되는 온디맨드 조회 경로이며,
// 감시 루프가 관리하는 관측 목록(seen)에는 일절 관여하지 않습니다.
type Resolver struct {
	gateway catalog.Gateway

	storeBaseURL string

	// now 현재 시각 조회 함수 (테스트 시 교체 지점)
	now func() time.Time
}

var _ contract.BundleResolver = (*Resolver)(nil)

// NewResolver 새로운 Resolver 객체를 생성합니다.
func NewResolver(appConfig *config.AppConfig, gateway catalog.Gateway) *Resolver {
	if appConfig == nil {
		panic("AppConfig 객체는 필수입니다")
	}
	if gateway == nil {
		panic("Gateway 객체는 필수입니다")
	}

	return &Resolver{
		gateway: gateway,

		storeBaseURL: appConfig.Catalog.StoreBaseURL,

		now: time.Now,
	}
}

// Resolve 지정된 번들의 상세 정보를 조회하여 알림으로 구성합니다.
// 번들이 존재하지 않으면 NotFound 타입의 에러를 반환합니다.
func (r *Resolver) Resolve(ctx context.Context, bundleID int64) (contract.Notification, error) {
	record, err := r.gateway.GetDetail(ctx, bundleID)
	if err != nil {
		return contract.Notification{}, err
	}

	// 썸네일은 부가 정보이므로 조회에 실패하더라도 이미지 없이 알림 구성을 계속합니다.
	thumbnailURL := ""
	thumbnails, err := r.gateway.GetThumbnails(ctx, []int64{bundleID})
	if err != nil {
		applog.WithComponentAndFields(resolverComponent, applog.Fields{
			"bundle_id": bundleID,
			"error":     err.Error(),
		}).Warn("번들 썸네일 조회에 실패하여 이미지 없이 알림을 구성합니다")
	} else {
		thumbnailURL = thumbnails[bundleID]
	}

	return BuildBundleNotification(r.storeBaseURL, record, thumbnailURL, r.now()), nil
}
