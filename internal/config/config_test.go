package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/darkkaiser/bundle-watcher/internal/pkg/errors"
)

const validBotToken = "123456789:ABCDEFabcdef1234567890_-ABCDEFabcd"

// writeConfigFile 테스트용 설정 파일을 임시 디렉토리에 생성합니다.
func writeConfigFile(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), DefaultFilename)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadWithFile(t *testing.T) {
	t.Run("유효한 설정 파일을 로드한다", func(t *testing.T) {
		path := writeConfigFile(t, `{
			"debug": true,
			"watcher": {
				"default_bundle_id": 587
			},
			"notifier": {
				"telegram": {
					"bot_token": "`+validBotToken+`",
					"chat_id": -1001234567890
				}
			}
		}`)

		cfg, err := LoadWithFile(path)
		require.NoError(t, err)

		assert.True(t, cfg.Debug)
		assert.Equal(t, int64(587), cfg.Watcher.DefaultBundleID)
		assert.Equal(t, validBotToken, cfg.Notifier.Telegram.BotToken)
		assert.Equal(t, int64(-1001234567890), cfg.Notifier.Telegram.ChatID)
	})

	t.Run("기본값이 적용된다", func(t *testing.T) {
		path := writeConfigFile(t, `{
			"watcher": {
				"default_bundle_id": 587
			},
			"notifier": {
				"telegram": {
					"bot_token": "`+validBotToken+`",
					"chat_id": 100
				}
			}
		}`)

		cfg, err := LoadWithFile(path)
		require.NoError(t, err)

		assert.Equal(t, DefaultMaxRetries, cfg.HTTPRetry.MaxRetries)
		assert.Equal(t, 2*time.Second, cfg.HTTPRetry.RetryDelayDuration())
		assert.Equal(t, 60*time.Second, cfg.Watcher.PollIntervalDuration())
		assert.Equal(t, DefaultCatalogBaseURL, cfg.Catalog.CatalogBaseURL)
		assert.Equal(t, DefaultThumbnailBaseURL, cfg.Catalog.ThumbnailBaseURL)
		assert.Equal(t, DefaultStoreBaseURL, cfg.Catalog.StoreBaseURL)
		assert.Equal(t, 30, cfg.Catalog.Limit)
		assert.Equal(t, 8080, cfg.API.ListenPort)
	})

	t.Run("환경 변수가 설정 파일보다 우선한다", func(t *testing.T) {
		path := writeConfigFile(t, `{
			"watcher": {
				"poll_interval": "60s",
				"default_bundle_id": 587
			},
			"notifier": {
				"telegram": {
					"bot_token": "`+validBotToken+`",
					"chat_id": 100
				}
			}
		}`)

		t.Setenv("BUNDLE_WATCHER__POLL_INTERVAL", "5m")

		cfg, err := LoadWithFile(path)
		require.NoError(t, err)

		assert.Equal(t, 5*time.Minute, cfg.Watcher.PollIntervalDuration())
	})

	t.Run("설정 파일이 존재하지 않으면 System 에러를 반환한다", func(t *testing.T) {
		_, err := LoadWithFile(filepath.Join(t.TempDir(), "not-exists.json"))
		require.Error(t, err)
		assert.True(t, apperrors.Is(err, apperrors.System))
	})

	t.Run("구조체에 없는 필드가 존재하면 실패한다", func(t *testing.T) {
		path := writeConfigFile(t, `{
			"unknown_field": true,
			"watcher": {
				"default_bundle_id": 587
			},
			"notifier": {
				"telegram": {
					"bot_token": "`+validBotToken+`",
					"chat_id": 100
				}
			}
		}`)

		_, err := LoadWithFile(path)
		require.Error(t, err)
	})
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name    string
		content string
		errMsg  string
	}{
		{
			name: "봇 토큰이 없으면 실패한다",
			content: `{
				"watcher": {"default_bundle_id": 587},
				"notifier": {"telegram": {"chat_id": 100}}
			}`,
			errMsg: "bot_token",
		},
		{
			name: "봇 토큰 형식이 잘못되면 실패한다",
			content: `{
				"watcher": {"default_bundle_id": 587},
				"notifier": {"telegram": {"bot_token": "invalid-token", "chat_id": 100}}
			}`,
			errMsg: "bot_token",
		},
		{
			name: "채팅 ID가 없으면 실패한다",
			content: `{
				"watcher": {"default_bundle_id": 587},
				"notifier": {"telegram": {"bot_token": "` + validBotToken + `"}}
			}`,
			errMsg: "chat_id",
		},
		{
			name: "기본 번들 ID가 없으면 실패한다",
			content: `{
				"notifier": {"telegram": {"bot_token": "` + validBotToken + `", "chat_id": 100}}
			}`,
			errMsg: "default_bundle_id",
		},
		{
			name: "감시 주기 형식이 잘못되면 실패한다",
			content: `{
				"watcher": {"poll_interval": "1x", "default_bundle_id": 587},
				"notifier": {"telegram": {"bot_token": "` + validBotToken + `", "chat_id": 100}}
			}`,
			errMsg: "poll_interval",
		},
		{
			name: "재시도 대기 시간 형식이 잘못되면 실패한다",
			content: `{
				"http_retry": {"retry_delay": "abc"},
				"watcher": {"default_bundle_id": 587},
				"notifier": {"telegram": {"bot_token": "` + validBotToken + `", "chat_id": 100}}
			}`,
			errMsg: "retry_delay",
		},
		{
			name: "운영 API 포트 범위가 잘못되면 실패한다",
			content: `{
				"api": {"listen_port": 70000},
				"watcher": {"default_bundle_id": 587},
				"notifier": {"telegram": {"bot_token": "` + validBotToken + `", "chat_id": 100}}
			}`,
			errMsg: "listen_port",
		},
		{
			name: "카탈로그 URL 형식이 잘못되면 실패한다",
			content: `{
				"catalog": {"catalog_base_url": "not-a-url"},
				"watcher": {"default_bundle_id": 587},
				"notifier": {"telegram": {"bot_token": "` + validBotToken + `", "chat_id": 100}}
			}`,
			errMsg: "catalog",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfigFile(t, tt.content)

			_, err := LoadWithFile(path)
			require.Error(t, err)
			assert.True(t, apperrors.Is(err, apperrors.InvalidInput))
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestVerifyRecommendations(t *testing.T) {
	t.Run("예약 포트와 짧은 감시 주기에 대해 경고한다", func(t *testing.T) {
		path := writeConfigFile(t, `{
			"api": {"listen_port": 80},
			"watcher": {"poll_interval": "5s", "default_bundle_id": 587},
			"notifier": {"telegram": {"bot_token": "`+validBotToken+`", "chat_id": 100}}
		}`)

		cfg, err := LoadWithFile(path)
		require.NoError(t, err)

		warnings := cfg.VerifyRecommendations()
		assert.Len(t, warnings, 2)
	})

	t.Run("권장 설정을 준수하면 경고가 없다", func(t *testing.T) {
		path := writeConfigFile(t, `{
			"watcher": {"default_bundle_id": 587},
			"notifier": {"telegram": {"bot_token": "`+validBotToken+`", "chat_id": 100}}
		}`)

		cfg, err := LoadWithFile(path)
		require.NoError(t, err)

		assert.Empty(t, cfg.VerifyRecommendations())
	})
}
