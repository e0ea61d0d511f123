// Package strutil은 문자열 처리를 위한 다양한 유틸리티 함수들을 제공합니다.
package strutil

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	// Slugify에서 사용하는 정규식
	whitespaceRunRegexp = regexp.MustCompile(`\s+`)
	slugInvalidRegexp   = regexp.MustCompile(`[^a-z0-9_-]`)
	hyphenRunRegexp     = regexp.MustCompile(`-+`)
)

// Slugify 문자열을 URL 경로에 사용할 수 있는 슬러그로 변환합니다.
//
// 변환 규칙 (순서 보장):
//  1. 소문자로 변환
//  2. 연속된 공백을 하나의 하이픈(-)으로 치환
//  3. 영문 소문자/숫자/밑줄/하이픈 이외의 문자를 제거
//  4. 연속된 하이픈을 하나로 축약
//  5. 앞뒤의 하이픈을 제거
//
// 예: "My Awesome Bundle!" -> "my-awesome-bundle"
func Slugify(s string) string {
	slug := strings.ToLower(s)
	slug = whitespaceRunRegexp.ReplaceAllString(slug, "-")
	slug = slugInvalidRegexp.ReplaceAllString(slug, "")
	slug = hyphenRunRegexp.ReplaceAllString(slug, "-")
	return strings.Trim(slug, "-")
}

// NormalizeSpaces 문자열의 앞뒤 공백을 제거하고 연속된 공백을 하나로 축약합니다.
// 예: "  hello   world  " -> "hello world"
func NormalizeSpaces(s string) string {
	return strings.Join(strings.Fields(strings.TrimSpace(s)), " ")
}

// Truncate 문자열을 지정된 바이트 길이 이내로 자릅니다.
//
// UTF-8 문자 경계를 존중하여 멀티바이트 문자(한글, 이모지 등)가
// 중간에서 깨지지 않도록 보장합니다.
func Truncate(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	if len(s) <= limit {
		return s
	}

	// limit 위치가 멀티바이트 문자의 중간일 수 있으므로,
	// 뒤로 이동하며 가장 가까운 룬 시작 위치를 찾습니다.
	splitIndex := limit
	for splitIndex > 0 && !utf8.RuneStart(s[splitIndex]) {
		splitIndex--
	}

	return s[:splitIndex]
}

// Integer 모든 정수 타입을 포괄하는 제네릭 인터페이스
type Integer interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 | ~uintptr
}

// FormatCommas 숫자를 천 단위 구분 기호(,)가 포함된 문자열로 변환합니다.
// 예: 1234567 -> "1,234,567"
func FormatCommas[T Integer](num T) string {
	str := fmt.Sprintf("%d", num)

	// 음수 처리 (문자열 기반으로 판단)
	startOffset := 0
	if strings.HasPrefix(str, "-") {
		startOffset = 1
	}

	// 콤마가 필요 없는 경우 (3자리 이하)
	if len(str)-startOffset <= 3 {
		return str
	}

	var builder strings.Builder

	// 예상 크기 미리 할당: 원래 길이 + 콤마 개수
	commaCount := (len(str) - startOffset - 1) / 3
	builder.Grow(len(str) + commaCount)

	if startOffset == 1 {
		builder.WriteByte('-')
		str = str[1:]
	}

	// 첫 번째 그룹 (1~3자리)
	firstGroupLen := len(str) % 3
	if firstGroupLen == 0 {
		firstGroupLen = 3
	}

	builder.WriteString(str[:firstGroupLen])

	// 나머지 그룹들 (3자리씩)
	for i := firstGroupLen; i < len(str); i += 3 {
		builder.WriteByte(',')
		builder.WriteString(str[i : i+3])
	}

	return builder.String()
}
