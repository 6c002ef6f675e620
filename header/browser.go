package header

import (
	"strconv"
	"strings"

	"idsynth/internal/xerrors"
)

// Browser restricts the browser family and version band a generated
// identity may use.
type Browser struct {
	Name        string
	MinVersion  int // 0 means unbounded
	MaxVersion  int // 0 means unbounded
	HTTPVersion string
}

// NewBrowser validates a Browser specification at construction time,
// so an inverted version range surfaces as a caller mistake instead of
// being buried in a sampling failure later.
func NewBrowser(name string, minVersion, maxVersion int, httpVersion string) (Browser, error) {
	if minVersion != 0 && maxVersion != 0 && minVersion > maxVersion {
		return Browser{}, xerrors.NewValidation(
			"browser %q: min version (%d) cannot exceed max version (%d)", name, minVersion, maxVersion)
	}
	return Browser{Name: name, MinVersion: minVersion, MaxVersion: maxVersion, HTTPVersion: httpVersion}, nil
}

// httpBrowserObject is the decoded form of a "*BROWSER_HTTP" training
// token: "name/major.minor.patch|httpVersion".
type httpBrowserObject struct {
	name           string
	version        []int
	completeString string
	httpVersion    string
}

func parseHTTPBrowserObject(s string) httpBrowserObject {
	parts := strings.SplitN(s, "|", 2)
	browserPart := parts[0]
	httpVersion := ""
	if len(parts) > 1 {
		httpVersion = parts[1]
	}

	if browserPart == missingValueToken {
		return httpBrowserObject{completeString: s, httpVersion: httpVersion}
	}

	nameVersion := strings.SplitN(browserPart, "/", 2)
	name := nameVersion[0]
	var version []int
	if len(nameVersion) > 1 {
		for _, part := range strings.Split(nameVersion[1], ".") {
			n, _ := strconv.Atoi(part)
			version = append(version, n)
		}
	}
	return httpBrowserObject{name: name, version: version, completeString: s, httpVersion: httpVersion}
}

func (b httpBrowserObject) majorVersion() int {
	if len(b.version) == 0 {
		return 0
	}
	return b.version[0]
}

// GetUserAgent looks up the User-Agent header under either HTTP/1 or
// HTTP/2 spelling.
func GetUserAgent(headers Set) (string, bool) {
	if v, ok := headers.Get("User-Agent"); ok {
		return v, true
	}
	return headers.Get("user-agent")
}

// GetBrowser maps a User-Agent string to one of the supported browser
// families by substring test. Firefox and Chrome are
// tested before Safari because Safari's substring also appears in their
// iOS UAs (FxiOS, CriOS); Edge aliases (Edg, EdgA, EdgiOS) are tested
// first of all since they also contain "Chrome".
func GetBrowser(userAgent string) (string, bool) {
	ua := strings.ToLower(userAgent)
	switch {
	case strings.Contains(ua, "edgios"), strings.Contains(ua, "edga/"), strings.Contains(ua, "edg/"):
		return "edge", true
	case strings.Contains(ua, "fxios"), strings.Contains(ua, "firefox"):
		return "firefox", true
	case strings.Contains(ua, "crios"), strings.Contains(ua, "chrome"):
		return "chrome", true
	case strings.Contains(ua, "safari"):
		return "safari", true
	}
	return "", false
}
