package notifier

import (
	apperrors "github.com/darkkaiser/bundle-watcher/internal/pkg/errors"
)

var (
	// ErrClosed Notifier가 이미 종료되어 새로운 알림 요청을 수락할 수 없을 때 반환하는 에러입니다.
	ErrClosed = apperrors.New(apperrors.Unavailable, "Notifier가 종료되어 알림 요청을 처리할 수 없습니다")

	// ErrQueueFull 발송 대기열이 가득 차서 알림 요청이 거부되었을 때 반환하는 에러입니다.
	ErrQueueFull = apperrors.New(apperrors.ExecutionFailed, "발송 대기열이 가득 차서 알림 요청이 거부되었습니다")

	// ErrPanicRecovered 알림 등록 과정에서 패닉이 복구되었을 때 반환하는 에러입니다.
	ErrPanicRecovered = apperrors.New(apperrors.Internal, "알림 등록 처리 중 예기치 않은 오류가 복구되었습니다")
)
