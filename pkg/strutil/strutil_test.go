package strutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// =============================================================================
// Slug Tests
// =============================================================================

// TestSlugify는 Slugify 함수의 URL 슬러그 변환 동작을 검증합니다.
//
// 검증 항목:
//   - 빈 문자열 처리
//   - 공백의 하이픈 치환
//   - 허용되지 않은 문자 제거
//   - 연속된 하이픈 축약 및 앞뒤 하이픈 제거
func TestSlugify(t *testing.T) {
	cases := []struct {
		name     string
		str      string
		expected string
	}{
		{name: "Empty string", str: "", expected: ""},
		{name: "Simple name", str: "My Awesome Bundle!", expected: "my-awesome-bundle"},
		{name: "Already slug", str: "my-awesome-bundle", expected: "my-awesome-bundle"},
		{name: "Leading and trailing hyphens", str: "--A--", expected: "a"},
		{name: "Whitespace runs", str: "a \t\n b", expected: "a-b"},
		{name: "Special characters only", str: "!@#$%", expected: ""},
		{name: "Underscore preserved", str: "snake_case name", expected: "snake_case-name"},
		{name: "Digits preserved", str: "Bundle 2024", expected: "bundle-2024"},
		{name: "Hyphen runs collapsed", str: "a -- b - - c", expected: "a-b-c"},
		{name: "Korean characters removed", str: "한글 Bundle", expected: "bundle"},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.expected, Slugify(c.str))
		})
	}
}

// =============================================================================
// Space Normalization Tests
// =============================================================================

func TestNormalizeSpaces(t *testing.T) {
	cases := []struct {
		name     string
		str      string
		expected string
	}{
		{name: "Empty string", str: "", expected: ""},
		{name: "No change", str: "hello world", expected: "hello world"},
		{name: "Leading and trailing spaces", str: "  hello   world  ", expected: "hello world"},
		{name: "Tabs and newlines", str: "hello\t\nworld", expected: "hello world"},
		{name: "Korean text", str: "  안녕   하세요 ", expected: "안녕 하세요"},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.expected, NormalizeSpaces(c.str))
		})
	}
}

// =============================================================================
// Truncation Tests
// =============================================================================

func TestTruncate(t *testing.T) {
	cases := []struct {
		name     string
		str      string
		limit    int
		expected string
	}{
		{name: "Empty string", str: "", limit: 10, expected: ""},
		{name: "Shorter than limit", str: "hello", limit: 10, expected: "hello"},
		{name: "Exact limit", str: "hello", limit: 5, expected: "hello"},
		{name: "ASCII truncation", str: "hello world", limit: 5, expected: "hello"},
		{name: "Zero limit", str: "hello", limit: 0, expected: ""},
		// 한글은 글자당 3바이트이므로 4바이트 제한에서는 1글자만 남습니다.
		{name: "Multibyte boundary respected", str: "한글테스트", limit: 4, expected: "한"},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.expected, Truncate(c.str, c.limit))
		})
	}
}

// =============================================================================
// Number Formatting Tests
// =============================================================================

func TestFormatCommas(t *testing.T) {
	cases := []struct {
		name     string
		num      int64
		expected string
	}{
		{name: "Zero", num: 0, expected: "0"},
		{name: "Three digits", num: 999, expected: "999"},
		{name: "Four digits", num: 1000, expected: "1,000"},
		{name: "Seven digits", num: 1234567, expected: "1,234,567"},
		{name: "Negative", num: -1234567, expected: "-1,234,567"},
		{name: "Negative three digits", num: -999, expected: "-999"},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.expected, FormatCommas(c.num))
		})
	}

	t.Run("Unsigned type", func(t *testing.T) {
		assert.Equal(t, "4,294,967,295", FormatCommas(uint32(4294967295)))
	})
}
