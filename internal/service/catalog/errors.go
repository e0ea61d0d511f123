package catalog

import (
	"fmt"

	apperrors "github.com/darkkaiser/bundle-watcher/internal/pkg/errors"
)

// NewErrBundleNotFound 지정된 번들이 업스트림에 존재하지 않을 때 반환하는 에러를 생성합니다.
func NewErrBundleNotFound(bundleID int64) error {
	return apperrors.New(apperrors.NotFound, fmt.Sprintf("번들(ID: %d)을 찾을 수 없습니다", bundleID))
}
