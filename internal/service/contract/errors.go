package contract

import (
	apperrors "github.com/darkkaiser/bundle-watcher/internal/pkg/errors"
)

var (
	// ErrMessageRequired 알림 메시지 본문이 비어있을 때 반환하는 에러입니다.
	ErrMessageRequired = apperrors.New(apperrors.InvalidInput, "알림 메시지 본문이 비어있습니다")
)
