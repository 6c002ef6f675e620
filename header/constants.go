package header

import "idsynth/internal/loader"

// Supported enumerations.
var (
	SupportedBrowsers         = []string{"chrome", "firefox", "safari", "edge"}
	SupportedOperatingSystems = []string{"windows", "macos", "linux", "android", "ios"}
	SupportedDevices          = []string{"desktop", "mobile"}
	SupportedHTTPVersions     = []string{"1", "2"}
)

// Synthetic aggregate node names: internal-only channels between
// constraint inputs and the sampler, never part of an output header set.
const (
	browserHTTPNode     = "*BROWSER_HTTP"
	browserNode         = "*BROWSER"
	operatingSystemNode = "*OPERATING_SYSTEM"
	deviceNode          = "*DEVICE"
)

const missingValueToken = loader.MissingValueToken

// relaxationOrder is the fixed sequence along which the header generator
// drops constraints under non-strict fallback.
var relaxationOrder = []string{"locales", "devices", "operatingSystems", "browsers"}

// Sec-Fetch header sets. Values are fixed constants, applied
// verbatim regardless of browser; only whether to add them depends on the
// sampled browser/version. Kept as ordered slices so their insertion order
// in the output is stable.
var (
	http1SecFetch = Set{
		{Name: "Sec-Fetch-Mode", Value: "same-site"},
		{Name: "Sec-Fetch-Dest", Value: "navigate"},
		{Name: "Sec-Fetch-Site", Value: "?1"},
		{Name: "Sec-Fetch-User", Value: "document"},
	}
	http2SecFetch = Set{
		{Name: "sec-fetch-mode", Value: "same-site"},
		{Name: "sec-fetch-dest", Value: "navigate"},
		{Name: "sec-fetch-site", Value: "?1"},
		{Name: "sec-fetch-user", Value: "document"},
	}
)
