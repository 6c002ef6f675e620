package header

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewBrowserRejectsInvertedVersionRange(t *testing.T) {
	_, err := NewBrowser("chrome", 100, 50, "2")
	assert.Error(t, err)
}

func TestNewBrowserAcceptsUnboundedRange(t *testing.T) {
	b, err := NewBrowser("chrome", 0, 0, "2")
	assert.NoError(t, err)
	assert.Equal(t, "chrome", b.Name)
}

func TestParseHTTPBrowserObjectExtractsMajorVersion(t *testing.T) {
	obj := parseHTTPBrowserObject("chrome/119.0.6045|2")
	assert.Equal(t, "chrome", obj.name)
	assert.Equal(t, "2", obj.httpVersion)
	assert.Equal(t, 119, obj.majorVersion())
}

func TestParseHTTPBrowserObjectHandlesMissingValue(t *testing.T) {
	obj := parseHTTPBrowserObject(missingValueToken + "|1")
	assert.Equal(t, "", obj.name)
	assert.Equal(t, "1", obj.httpVersion)
	assert.Equal(t, 0, obj.majorVersion())
}

func TestGetBrowserPrefersEdgeOverChromeSubstring(t *testing.T) {
	ua := "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
		"(KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36 Edg/119.0.0.0"
	got, ok := GetBrowser(ua)
	assert.True(t, ok)
	assert.Equal(t, "edge", got)
}

func TestGetBrowserDetectsFirefoxOnIOSOverSafari(t *testing.T) {
	ua := "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) " +
		"AppleWebKit/605.1.15 (KHTML, like Gecko) FxiOS/118.0 Mobile/15E148 Safari/605.1.15"
	got, ok := GetBrowser(ua)
	assert.True(t, ok)
	assert.Equal(t, "firefox", got)
}

func TestGetBrowserFallsBackToSafari(t *testing.T) {
	ua := "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 " +
		"(KHTML, like Gecko) Version/17.0 Safari/605.1.15"
	got, ok := GetBrowser(ua)
	assert.True(t, ok)
	assert.Equal(t, "safari", got)
}

func TestGetUserAgentChecksBothSpellings(t *testing.T) {
	headers := Set{{Name: "user-agent", Value: "test-ua"}}
	ua, ok := GetUserAgent(headers)
	assert.True(t, ok)
	assert.Equal(t, "test-ua", ua)
}
