package log

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptionsValidate(t *testing.T) {
	tests := []struct {
		name    string
		opts    Options
		wantErr bool
	}{
		{
			name:    "이름이 설정된 기본 옵션은 유효하다",
			opts:    Options{Name: "bundle-watcher"},
			wantErr: false,
		},
		{
			name:    "애플리케이션 식별자가 없으면 실패한다",
			opts:    Options{},
			wantErr: true,
		},
		{
			name:    "MaxAge가 음수이면 실패한다",
			opts:    Options{Name: "bundle-watcher", MaxAge: -1},
			wantErr: true,
		},
		{
			name:    "MaxSizeMB가 음수이면 실패한다",
			opts:    Options{Name: "bundle-watcher", MaxSizeMB: -1},
			wantErr: true,
		},
		{
			name:    "MaxBackups가 음수이면 실패한다",
			opts:    Options{Name: "bundle-watcher", MaxBackups: -1},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.opts.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestHookRouting(t *testing.T) {
	newEntry := func(level logrus.Level, msg string) *logrus.Entry {
		entry := logrus.NewEntry(logrus.New())
		entry.Level = level
		entry.Message = msg
		return entry
	}

	t.Run("Error 레벨은 Critical과 Main에 모두 기록된다", func(t *testing.T) {
		var main, critical, verbose bytes.Buffer
		h := &hook{
			mainWriter:     &main,
			criticalWriter: &critical,
			verboseWriter:  &verbose,
			formatter:      &logrus.TextFormatter{DisableTimestamp: true},
		}

		require.NoError(t, h.Fire(newEntry(logrus.ErrorLevel, "boom")))
		assert.Contains(t, main.String(), "boom")
		assert.Contains(t, critical.String(), "boom")
		assert.Empty(t, verbose.String())
	})

	t.Run("Info 레벨은 Main에만 기록된다", func(t *testing.T) {
		var main, critical, verbose bytes.Buffer
		h := &hook{
			mainWriter:     &main,
			criticalWriter: &critical,
			verboseWriter:  &verbose,
			formatter:      &logrus.TextFormatter{DisableTimestamp: true},
		}

		require.NoError(t, h.Fire(newEntry(logrus.InfoLevel, "started")))
		assert.Contains(t, main.String(), "started")
		assert.Empty(t, critical.String())
		assert.Empty(t, verbose.String())
	})

	t.Run("Debug 레벨은 Verbose에만 기록되고 Main을 오염시키지 않는다", func(t *testing.T) {
		var main, verbose bytes.Buffer
		h := &hook{
			mainWriter:    &main,
			verboseWriter: &verbose,
			formatter:     &logrus.TextFormatter{DisableTimestamp: true},
		}

		require.NoError(t, h.Fire(newEntry(logrus.DebugLevel, "detail")))
		assert.Contains(t, verbose.String(), "detail")
		assert.Empty(t, main.String())
	})

	t.Run("닫힌 Hook은 로그 기록을 무시한다", func(t *testing.T) {
		var main bytes.Buffer
		h := &hook{
			mainWriter: &main,
			formatter:  &logrus.TextFormatter{DisableTimestamp: true},
		}
		require.NoError(t, h.Close())

		require.NoError(t, h.Fire(newEntry(logrus.InfoLevel, "ignored")))
		assert.Empty(t, main.String())
	})
}

type failingCloser struct {
	err    error
	called bool
}

func (f *failingCloser) Close() error {
	f.called = true
	return f.err
}

func TestCloser(t *testing.T) {
	t.Run("일부가 실패해도 모든 Closer를 닫는다", func(t *testing.T) {
		first := &failingCloser{err: errors.New("first")}
		second := &failingCloser{}

		c := &closer{closers: []io.Closer{first, second}}

		err := c.Close()
		assert.Error(t, err)
		assert.True(t, first.called)
		assert.True(t, second.called)
	})

	t.Run("두 번째 Close 호출은 즉시 nil을 반환한다", func(t *testing.T) {
		first := &failingCloser{err: errors.New("first")}
		c := &closer{closers: []io.Closer{first}}

		assert.Error(t, c.Close())
		assert.NoError(t, c.Close())
	})
}

func TestMaskSensitiveData(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "빈 문자열은 그대로 반환한다", input: "", expected: ""},
		{name: "3자 이하는 전체 마스킹한다", input: "abc", expected: "***"},
		{name: "12자 이하는 앞 4자만 노출한다", input: "abcdefgh", expected: "abcd***"},
		{name: "긴 토큰은 앞뒤 4자만 노출한다", input: "1234567890:ABCDEF", expected: "1234***CDEF"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, MaskSensitiveData(tt.input))
		})
	}
}

func TestWithComponent(t *testing.T) {
	entry := WithComponent("watcher")
	assert.Equal(t, "watcher", entry.Data["component"])

	entry = WithComponentAndFields("watcher", Fields{"bundle_id": int64(42)})
	assert.Equal(t, "watcher", entry.Data["component"])
	assert.Equal(t, int64(42), entry.Data["bundle_id"])
}
