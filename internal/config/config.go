// Package config 애플리케이션 설정의 로드와 유효성 검증을 담당합니다.
//
// 설정은 다음 순서(낮은 우선순위 → 높은 우선순위)로 병합됩니다.
//  1. 기본값 (confmap)
//  2. JSON 설정 파일
//  3. 환경 변수 (BUNDLE_ 접두사)
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	apperrors "github.com/darkkaiser/bundle-watcher/internal/pkg/errors"
)

const (
	// AppName 애플리케이션의 전역 고유 식별자입니다.
	AppName string = "bundle-watcher"

	// DefaultFilename 애플리케이션 초기화 시 참조하는 기본 설정 파일명입니다.
	// 실행 인자를 통해 명시적인 경로가 제공되지 않을 경우, 시스템은 이 파일을 탐색하여 구성을 로드합니다.
	DefaultFilename = AppName + ".json"

	// ------------------------------------------------------------------------------------------------
	// 기본값
	// ------------------------------------------------------------------------------------------------

	// DefaultMaxRetries HTTP 요청 실패 시 최대 재시도 횟수 기본값
	DefaultMaxRetries = 3

	// DefaultRetryDelay 재시도 사이의 대기 시간 기본값
	DefaultRetryDelay = "2s"

	// DefaultPollInterval 카탈로그 감시 주기 기본값
	DefaultPollInterval = "60s"

	// DefaultCatalogBaseURL 카탈로그 API 기본 URL
	DefaultCatalogBaseURL = "https://catalog.roblox.com"

	// DefaultThumbnailBaseURL 썸네일 API 기본 URL
	DefaultThumbnailBaseURL = "https://thumbnails.roblox.com"

	// DefaultStoreBaseURL 알림 메시지에 포함되는 상점 페이지 기본 URL
	DefaultStoreBaseURL = "https://www.roblox.com"
)

// AppConfig 애플리케이션의 모든 설정을 관장하는 최상위 루트 구조체
type AppConfig struct {
	Debug     bool            `json:"debug"`
	HTTPRetry HTTPRetryConfig `json:"http_retry"`
	Catalog   CatalogConfig   `json:"catalog"`
	Watcher   WatcherConfig   `json:"watcher"`
	Notifier  NotifierConfig  `json:"notifier"`
	API       APIConfig       `json:"api"`
}

// validate 설정 파일 로드 직후, 각 설정 항목의 정합성과 필수 값의 유효성을 검증합니다.
func (c *AppConfig) validate() error {
	if err := c.HTTPRetry.validate(); err != nil {
		return err
	}
	if err := c.Catalog.validate(); err != nil {
		return err
	}
	if err := c.Watcher.validate(); err != nil {
		return err
	}
	if err := c.Notifier.validate(); err != nil {
		return err
	}
	if err := c.API.validate(); err != nil {
		return err
	}
	return nil
}

// VerifyRecommendations 서비스 운영의 안정성을 위해 권장되는 설정 준수 여부를 진단합니다.
// 강제적인 에러를 발생시키지는 않으나, 잠재적 위험 요소에 대한 경고 메시지를 반환합니다.
func (c *AppConfig) VerifyRecommendations() []string {
	var warnings []string

	// 시스템 예약 포트(1024 미만) 사용 경고
	if c.API.ListenPort < 1024 {
		warnings = append(warnings, fmt.Sprintf("시스템 예약 포트(1-1023)를 사용하도록 설정되었습니다(port: %d). 이 경우 서버 구동 시 관리자 권한이 필요할 수 있습니다", c.API.ListenPort))
	}

	// 지나치게 짧은 감시 주기 경고 (업스트림 요청 제한 위험)
	if interval := c.Watcher.PollIntervalDuration(); interval < 10*time.Second {
		warnings = append(warnings, fmt.Sprintf("카탈로그 감시 주기(poll_interval)가 너무 짧습니다(%s). 업스트림 API의 요청 제한에 걸릴 수 있습니다", interval))
	}

	return warnings
}

// HTTPRetryConfig HTTP 요청 실패 시 재시도 횟수와 대기 시간을 정의하는 설정 구조체
type HTTPRetryConfig struct {
	MaxRetries int    `json:"max_retries" validate:"min=0,max=10"`
	RetryDelay string `json:"retry_delay"`
}

func (c *HTTPRetryConfig) validate() error {
	if err := checkStruct(validate, c, "HTTP 재시도 정책"); err != nil {
		return err
	}

	if _, err := time.ParseDuration(c.RetryDelay); err != nil {
		return apperrors.Wrap(err, apperrors.InvalidInput, fmt.Sprintf("HTTP 재시도 대기 시간(retry_delay) 설정이 올바르지 않습니다: '%s' (예: 1s, 500ms)", c.RetryDelay))
	}
	return nil
}

// RetryDelayDuration 재시도 대기 시간을 time.Duration으로 반환합니다.
// validate()를 통과한 설정에서만 호출되어야 합니다.
func (c *HTTPRetryConfig) RetryDelayDuration() time.Duration {
	d, _ := time.ParseDuration(c.RetryDelay)
	return d
}

// CatalogConfig 카탈로그 API의 접속 정보와 목록 조회 파라미터를 정의하는 설정 구조체
type CatalogConfig struct {
	CatalogBaseURL   string `json:"catalog_base_url" validate:"required,url"`
	ThumbnailBaseURL string `json:"thumbnail_base_url" validate:"required,url"`
	StoreBaseURL     string `json:"store_base_url" validate:"required,url"`

	// Category 목록 조회 시 사용할 카탈로그 카테고리 값
	Category int `json:"category" validate:"min=1"`

	// SortType 목록 조회 시 사용할 정렬 방식 값 (최신순)
	SortType int `json:"sort_type" validate:"min=1"`

	// Limit 목록 조회 시 한 번에 가져올 항목 수
	Limit int `json:"limit" validate:"min=1,max=120"`
}

func (c *CatalogConfig) validate() error {
	if err := checkStruct(validate, c, "카탈로그 API"); err != nil {
		return err
	}
	return nil
}

// WatcherConfig 신규 번들 감시 동작을 정의하는 설정 구조체
type WatcherConfig struct {
	// PollInterval 카탈로그 목록 감시 주기 (예: "60s", "5m")
	PollInterval string `json:"poll_interval"`

	// DefaultBundleID /bundle 명령어에서 번들 ID가 생략된 경우 사용할 기본값
	DefaultBundleID int64 `json:"default_bundle_id" validate:"required,min=1"`
}

func (c *WatcherConfig) validate() error {
	if _, err := time.ParseDuration(c.PollInterval); err != nil {
		return apperrors.Wrap(err, apperrors.InvalidInput, fmt.Sprintf("카탈로그 감시 주기(poll_interval) 설정이 올바르지 않습니다: '%s' (예: 60s, 5m)", c.PollInterval))
	}

	if err := checkStruct(validate, c, "감시 작업"); err != nil {
		return err
	}
	return nil
}

// PollIntervalDuration 감시 주기를 time.Duration으로 반환합니다.
// validate()를 통과한 설정에서만 호출되어야 합니다.
func (c *WatcherConfig) PollIntervalDuration() time.Duration {
	d, _ := time.ParseDuration(c.PollInterval)
	return d
}

// NotifierConfig 알림 채널을 정의하는 설정 구조체
type NotifierConfig struct {
	Telegram TelegramConfig `json:"telegram"`
}

func (c *NotifierConfig) validate() error {
	return c.Telegram.validate()
}

// TelegramConfig 텔레그램 봇 토큰 및 채팅 ID 정보를 담는 설정 구조체
type TelegramConfig struct {
	BotToken string `json:"bot_token" validate:"required,telegram_bot_token"`
	ChatID   int64  `json:"chat_id" validate:"required"`
}

func (c *TelegramConfig) validate() error {
	if err := validate.Struct(c); err != nil {
		return translateTelegramError(err)
	}
	return nil
}

// APIConfig 운영용 HTTP API 서버 설정 구조체
type APIConfig struct {
	ListenPort int `json:"listen_port" validate:"min=1,max=65535"`
}

func (c *APIConfig) validate() error {
	if err := validate.Struct(c); err != nil {
		return apperrors.New(apperrors.InvalidInput, "운영 API 서버 포트(listen_port)는 1에서 65535 사이의 값이어야 합니다")
	}
	return nil
}

// Load 기본 설정 파일을 읽어 애플리케이션 설정을 로드합니다.
func Load() (*AppConfig, error) {
	return LoadWithFile(DefaultFilename)
}

// LoadWithFile 지정된 경로의 설정 파일을 읽어 AppConfig 객체를 생성합니다.
func LoadWithFile(filename string) (*AppConfig, error) {
	k := koanf.New(".")

	// 1. 기본값 로드 (가장 낮은 우선순위)
	err := k.Load(confmap.Provider(map[string]interface{}{
		"http_retry.max_retries":     DefaultMaxRetries,
		"http_retry.retry_delay":     DefaultRetryDelay,
		"watcher.poll_interval":      DefaultPollInterval,
		"catalog.catalog_base_url":   DefaultCatalogBaseURL,
		"catalog.thumbnail_base_url": DefaultThumbnailBaseURL,
		"catalog.store_base_url":     DefaultStoreBaseURL,
		"catalog.category":           12,
		"catalog.sort_type":          3,
		"catalog.limit":              30,
		"api.listen_port":            8080,
	}, "."), nil)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.System, "애플리케이션 기본 설정 로드에 실패했습니다")
	}

	// 2. JSON 설정 파일 로드 (기본값 덮어쓰기)
	if err := k.Load(file.Provider(filename), json.Parser()); err != nil {
		if os.IsNotExist(err) {
			return nil, apperrors.Wrap(err, apperrors.System, fmt.Sprintf("설정 파일을 찾을 수 없습니다: '%s'", filename))
		}
		return nil, apperrors.Wrap(err, apperrors.InvalidInput, fmt.Sprintf("설정 파일 로드 중 오류가 발생했습니다: '%s'", filename))
	}

	// 3. 환경 변수 로드 (최우선 순위, JSON 설정 덮어쓰기)
	// 접두사: BUNDLE_
	// 구분자: 이중 언더스코어(__)를 점(.)으로 변환 (계층 구조 표현)
	// 예: BUNDLE_NOTIFIER__TELEGRAM__BOT_TOKEN -> notifier.telegram.bot_token
	if err := k.Load(env.Provider("BUNDLE_", ".", func(s string) string {
		s = strings.TrimPrefix(s, "BUNDLE_")
		s = strings.ToLower(s)
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, apperrors.Wrap(err, apperrors.System, "환경 변수 로드에 실패했습니다")
	}

	// 4. 구조체 언마샬링 (Strict Validation 적용)
	unmarshalConf := koanf.UnmarshalConf{
		Tag: "json",
		DecoderConfig: &mapstructure.DecoderConfig{
			ErrorUnused:      true, // 파일에 존재하지만 구조체에 없는 필드가 있을 경우 에러를 발생시킴
			WeaklyTypedInput: true,
		},
	}
	var appConfig AppConfig
	if err := k.UnmarshalWithConf("", &appConfig, unmarshalConf); err != nil {
		return nil, apperrors.Wrap(err, apperrors.System, "설정 데이터를 애플리케이션 구조체로 변환하는데 실패했습니다")
	}

	// 5. 유효성 검사 수행 (정합성 체크)
	if err := appConfig.validate(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.InvalidInput, fmt.Sprintf("설정 파일('%s')의 유효성 검증에 실패했습니다", filename))
	}

	return &appConfig, nil
}
