// Package header implements the header generator: it wraps an
// input network and a header network, resolves browser/OS/device/locale/
// HTTP-version/User-Agent constraints into sampler inputs, and
// post-processes the raw sample into a realistic, ordered HTTP header set.
package header

import (
	"fmt"
	"math/rand"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"idsynth/internal/bayesian"
	"idsynth/internal/loader"
	"idsynth/internal/xerrors"
)

// Options is the generator's configuration surface.
type Options struct {
	Browsers                []Browser
	OperatingSystems        []string
	Devices                 []string
	Locales                 []string
	HTTPVersion             string
	UserAgent               []string
	Strict                  bool
	RequestDependentHeaders map[string]string
}

// DefaultOptions returns the generator's default configuration: every
// supported browser, OS and the desktop device, locale en-US, HTTP/2.
// Browser entries carry no HTTP version of their own, so a per-call
// HTTPVersion override flows into the candidate enumeration.
func DefaultOptions() Options {
	return Options{
		Browsers:         browsersFromNames(SupportedBrowsers, ""),
		OperatingSystems: append([]string{}, SupportedOperatingSystems...),
		Devices:          []string{"desktop"},
		Locales:          []string{"en-US"},
		HTTPVersion:      "2",
	}
}

func browsersFromNames(names []string, httpVersion string) []Browser {
	out := make([]Browser, len(names))
	for i, n := range names {
		out[i] = Browser{Name: n, HTTPVersion: httpVersion}
	}
	return out
}

// Data bundles the loaded, immutable inputs a Generator samples from.
// Networks are constructed once at process start and shared freely across
// concurrent Generate calls: nothing here is mutated after
// construction.
type Data struct {
	InputNetwork   *bayesian.Network
	HeaderNetwork  *bayesian.Network
	UniqueBrowsers []string
	HeadersOrder   map[string][]string
}

// Generator generates HTTP header sets.
type Generator struct {
	data           Data
	uniqueBrowsers []httpBrowserObject
	defaults       Options
	log            *zap.Logger
}

// NewGenerator builds a Generator from already-loaded network data.
func NewGenerator(data Data, defaults Options, log *zap.Logger) *Generator {
	if log == nil {
		log = zap.NewNop()
	}
	var uniqueBrowsers []httpBrowserObject
	for _, s := range data.UniqueBrowsers {
		if s == missingValueToken {
			continue
		}
		uniqueBrowsers = append(uniqueBrowsers, parseHTTPBrowserObject(s))
	}
	return &Generator{data: data, uniqueBrowsers: uniqueBrowsers, defaults: defaults, log: log}
}

// LoadGenerator loads a Generator's data files from dataDir
// (input-network-definition.zip, header-network-definition.zip,
// browser-helper-file.json, headers-order.json) and constructs a
// Generator with the given defaults.
func LoadGenerator(dataDir string, defaults Options, log *zap.Logger) (*Generator, error) {
	inputDefs, err := loader.LoadFile(dataDir + "/input-network-definition.zip")
	if err != nil {
		return nil, err
	}
	headerDefs, err := loader.LoadFile(dataDir + "/header-network-definition.zip")
	if err != nil {
		return nil, err
	}
	browserStrings, err := loader.LoadBrowserHelperFile(dataDir + "/browser-helper-file.json")
	if err != nil {
		return nil, err
	}
	headersOrder, err := loader.LoadHeadersOrder(dataDir + "/headers-order.json")
	if err != nil {
		return nil, err
	}

	data := Data{
		InputNetwork:   bayesian.NewNetworkFromDefinitions("input", inputDefs),
		HeaderNetwork:  bayesian.NewNetworkFromDefinitions("header", headerDefs),
		UniqueBrowsers: browserStrings,
		HeadersOrder:   headersOrder,
	}
	if err := data.InputNetwork.Validate(); err != nil {
		return nil, err
	}
	if err := data.HeaderNetwork.Validate(); err != nil {
		return nil, err
	}
	return NewGenerator(data, defaults, log), nil
}

// Generate produces one header set, merging opts onto the Generator's
// stored defaults, using rng as the sole source of randomness
// (caller-seeded, so a fixed seed reproduces the call). On the HTTP/2
// path the final header names are pascalized; the HTTP/1 path
// emits title-cased names from the network directly.
func (g *Generator) Generate(rng *rand.Rand, opts Options) (Set, error) {
	merged := mergeOptions(g.defaults, opts)
	headers, err := g.getHeaders(rng, merged, 0)
	if err != nil {
		return nil, err
	}
	if merged.HTTPVersion == "2" {
		return pascalize(headers), nil
	}
	return headers, nil
}

// mergeOptions overlays override's non-zero fields onto defaults. A field
// left at its Go zero value (nil slice, empty string, nil map) falls back
// to the generator's stored default for that field.
func mergeOptions(defaults, override Options) Options {
	merged := defaults
	if override.Browsers != nil {
		merged.Browsers = override.Browsers
	}
	if override.OperatingSystems != nil {
		merged.OperatingSystems = override.OperatingSystems
	}
	if override.Devices != nil {
		merged.Devices = override.Devices
	}
	if override.Locales != nil {
		merged.Locales = override.Locales
	}
	if override.HTTPVersion != "" {
		merged.HTTPVersion = override.HTTPVersion
	}
	if override.UserAgent != nil {
		merged.UserAgent = override.UserAgent
	}
	if override.RequestDependentHeaders != nil {
		merged.RequestDependentHeaders = override.RequestDependentHeaders
	}
	merged.Strict = defaults.Strict || override.Strict
	if merged.HTTPVersion == "" {
		merged.HTTPVersion = "2"
	}
	if len(merged.Locales) == 0 {
		merged.Locales = []string{"en-US"}
	}
	return merged
}

func (g *Generator) getHeaders(rng *rand.Rand, opts Options, relaxDepth int) (Set, error) {
	if err := validateOptions(opts); err != nil {
		return nil, err
	}

	possible := g.possibleAttributeValues(opts)

	var http1Values, http2Values map[string][]string
	if len(opts.UserAgent) > 0 {
		var err error
		http1Values, err = bayesian.ConstraintClosure(g.data.HeaderNetwork, map[string][]string{"User-Agent": opts.UserAgent})
		if err != nil && !xerrors.IsTooRestrictive(err) {
			return nil, err
		}
		http2Values, err = bayesian.ConstraintClosure(g.data.HeaderNetwork, map[string][]string{"user-agent": opts.UserAgent})
		if err != nil && !xerrors.IsTooRestrictive(err) {
			return nil, err
		}
	}

	constraints := g.prepareConstraints(possible, http1Values, http2Values)

	inputSample, ok := g.data.InputNetwork.GenerateConsistentSample(rng, constraints)
	if !ok {
		return g.fallback(rng, opts, relaxDepth)
	}

	if len(opts.UserAgent) > 0 {
		g.commitUserAgent(rng, inputSample, opts.UserAgent)
	}

	sample := g.data.HeaderNetwork.GenerateSample(rng, inputSample)
	return g.postProcess(sample, opts)
}

func validateOptions(opts Options) error {
	if opts.Browsers != nil && len(opts.Browsers) == 0 {
		return xerrors.NewValidation("no browsers specified")
	}
	for _, b := range opts.Browsers {
		if b.MinVersion != 0 && b.MaxVersion != 0 && b.MinVersion > b.MaxVersion {
			return xerrors.NewValidation(
				"browser %q: min version (%d) cannot exceed max version (%d)", b.Name, b.MinVersion, b.MaxVersion)
		}
	}
	if opts.HTTPVersion != "1" && opts.HTTPVersion != "2" {
		return xerrors.NewValidation("unsupported http version %q", opts.HTTPVersion)
	}
	if len(opts.Locales) > 10 {
		return xerrors.NewValidation("at most 10 locales are supported, got %d", len(opts.Locales))
	}
	return nil
}

// commitUserAgent fixes the User-Agent node of the header network to one of
// the requested values before ancestral sampling, so a caller-supplied UA
// comes back verbatim while the sampler constrains the rest around it.
// The spelling follows the sampled HTTP version. Preference is
// given to a value consistent with the input sample's conditional
// distribution; when none is, the first requested value is forced as-is.
func (g *Generator) commitUserAgent(rng *rand.Rand, inputSample bayesian.Assignment, userAgents []string) {
	uaNode := "User-Agent"
	if parseHTTPBrowserObject(inputSample[browserHTTPNode]).httpVersion == "2" {
		uaNode = "user-agent"
	}
	node, ok := g.data.HeaderNetwork.NodesByName[uaNode]
	if !ok {
		return
	}
	if v, ok := node.SampleConstrained(rng.Float64(), inputSample, userAgents, nil); ok {
		inputSample[uaNode] = v
		return
	}
	inputSample[uaNode] = userAgents[0]
}

// fallback recovers from an unsatisfiable input sample:
// HTTP/1 requests are retried at HTTP/2 and re-pascalized; otherwise
// constraints are relaxed one at a time in relaxationOrder, each reset to
// the generator's default for that field, until a sample exists or the
// order is exhausted.
func (g *Generator) fallback(rng *rand.Rand, opts Options, relaxDepth int) (Set, error) {
	if opts.HTTPVersion == "1" {
		g.log.Debug("no input sample at http/1, retrying at http/2", zap.Any("browsers", opts.Browsers))
		opts2 := opts
		opts2.HTTPVersion = "2"
		headers, err := g.getHeaders(rng, opts2, relaxDepth)
		if err != nil {
			return nil, err
		}
		pascalized := pascalize(headers)
		return reorder(pascalized, g.headersOrderFor(pascalized)), nil
	}

	if opts.Strict {
		return nil, &xerrors.NoSolution{}
	}
	for depth := relaxDepth; depth < len(relaxationOrder); depth++ {
		field := relaxationOrder[depth]
		relaxed, changed := g.relaxField(opts, field)
		if !changed {
			continue
		}
		g.log.Debug("relaxing constraint", zap.String("field", field))
		return g.getHeaders(rng, relaxed, depth+1)
	}
	return nil, &xerrors.NoSolution{}
}

// relaxField resets one constraint field to the generator's default value,
// reporting whether that actually changed anything (a field already at its
// default has nothing left to relax).
func (g *Generator) relaxField(opts Options, field string) (Options, bool) {
	relaxed := opts
	switch field {
	case "locales":
		if stringsEqual(opts.Locales, g.defaults.Locales) {
			return opts, false
		}
		relaxed.Locales = g.defaults.Locales
	case "devices":
		if stringsEqual(opts.Devices, g.defaults.Devices) {
			return opts, false
		}
		relaxed.Devices = g.defaults.Devices
	case "operatingSystems":
		if stringsEqual(opts.OperatingSystems, g.defaults.OperatingSystems) {
			return opts, false
		}
		relaxed.OperatingSystems = g.defaults.OperatingSystems
	case "browsers":
		if browsersEqual(opts.Browsers, g.defaults.Browsers) {
			return opts, false
		}
		relaxed.Browsers = g.defaults.Browsers
	}
	return relaxed, true
}

func stringsEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func browsersEqual(a, b []Browser) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func (g *Generator) possibleAttributeValues(opts Options) map[string][]string {
	browsers := opts.Browsers
	if len(browsers) == 0 {
		browsers = browsersFromNames(SupportedBrowsers, "")
	}
	operatingSystems := opts.OperatingSystems
	if len(operatingSystems) == 0 {
		operatingSystems = SupportedOperatingSystems
	}

	values := map[string][]string{
		browserHTTPNode:     g.browserHTTPOptions(browsers, opts.HTTPVersion),
		operatingSystemNode: operatingSystems,
	}
	if len(opts.Devices) > 0 {
		values[deviceNode] = opts.Devices
	}
	return values
}

// browserHTTPOptions enumerates the *BROWSER_HTTP candidates for browsers,
// each inheriting defaultHTTPVersion when its own HTTPVersion is unset
//.
func (g *Generator) browserHTTPOptions(browsers []Browser, defaultHTTPVersion string) []string {
	var out []string
	for _, b := range browsers {
		httpVersion := b.HTTPVersion
		if httpVersion == "" {
			httpVersion = defaultHTTPVersion
		}
		for _, candidate := range g.uniqueBrowsers {
			if b.Name != candidate.name {
				continue
			}
			major := candidate.majorVersion()
			if b.MinVersion != 0 && b.MinVersion > major {
				continue
			}
			if b.MaxVersion != 0 && b.MaxVersion < major {
				continue
			}
			if httpVersion != "" && httpVersion != candidate.httpVersion {
				continue
			}
			out = append(out, candidate.completeString)
		}
	}
	return out
}

func (g *Generator) prepareConstraints(possible, http1Values, http2Values map[string][]string) map[string][]string {
	out := make(map[string][]string, len(possible))
	for key, values := range possible {
		filtered := make([]string, 0, len(values))
		for _, v := range values {
			if key == browserHTTPNode {
				if browserHTTPPasses(v, http1Values, http2Values) {
					filtered = append(filtered, v)
				}
				continue
			}
			if len(http1Values) == 0 && len(http2Values) == 0 {
				filtered = append(filtered, v)
				continue
			}
			if contains(http1Values[key], v) || contains(http2Values[key], v) {
				filtered = append(filtered, v)
			}
		}
		out[key] = filtered
	}
	return out
}

// browserHTTPPasses keeps a "name/version|httpVersion" candidate when the
// induced *BROWSER set for its protocol admits the browser.
// The *BROWSER node's values carry the version ("chrome/112.0.0.0"),
// so the full prefix before "|" is what gets matched.
func browserHTTPPasses(value string, http1Values, http2Values map[string][]string) bool {
	parts := strings.SplitN(value, "|", 2)
	prefix := parts[0]
	httpVersion := ""
	if len(parts) > 1 {
		httpVersion = parts[1]
	}
	if httpVersion == "1" {
		return len(http1Values) == 0 || contains(http1Values[browserNode], prefix)
	}
	return len(http2Values) == 0 || contains(http2Values[browserNode], prefix)
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

// postProcess turns a raw network sample into a header Set:
// it synthesizes Accept-Language, conditionally adds the
// Sec-Fetch set, strips synthetic and sentinel entries, merges
// request-dependent overrides, and reorders per the sampled browser's
// declared header order. Headers are emitted in the header network's node
// order so the output is reproducible under a fixed seed.
func (g *Generator) postProcess(sample bayesian.Assignment, opts Options) (Set, error) {
	browserHTTP := parseHTTPBrowserObject(sample[browserHTTPNode])

	acceptLanguageName := "Accept-Language"
	secFetch := http1SecFetch
	if browserHTTP.httpVersion == "2" {
		acceptLanguageName = "accept-language"
		secFetch = http2SecFetch
	}

	overrides := Set{{Name: acceptLanguageName, Value: acceptLanguageHeader(opts.Locales)}}
	if shouldAddSecFetch(browserHTTP) {
		overrides = append(overrides, secFetch...)
	}

	headers := make(Set, 0, len(sample)+len(overrides))
	consumed := make(map[string]struct{}, len(overrides))
	for _, node := range g.data.HeaderNetwork.NodesInSamplingOrder {
		value, ok := sample[node.Name]
		if !ok {
			continue
		}
		for _, h := range overrides {
			if h.Name == node.Name {
				value = h.Value
				consumed[node.Name] = struct{}{}
				break
			}
		}
		if !keepHeader(node.Name, value) {
			continue
		}
		headers = append(headers, Header{Name: node.Name, Value: value})
	}
	for _, h := range overrides {
		if _, ok := consumed[h.Name]; ok {
			continue
		}
		headers = append(headers, h)
	}
	for _, name := range sortedKeys(opts.RequestDependentHeaders) {
		headers = setHeader(headers, name, opts.RequestDependentHeaders[name])
	}

	if _, ok := GetUserAgent(headers); !ok {
		return nil, &xerrors.MissingUserAgent{}
	}
	return reorder(headers, g.headersOrderFor(headers)), nil
}

// keepHeader filters a sampled entry out of the final set when it is a
// synthetic node, an absent sentinel, or a Connection: close pair.
func keepHeader(name, value string) bool {
	if strings.HasPrefix(name, "*") {
		return false
	}
	if value == missingValueToken {
		return false
	}
	if strings.EqualFold(name, "connection") && value == "close" {
		return false
	}
	return true
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func setHeader(headers Set, name, value string) Set {
	for i, h := range headers {
		if strings.EqualFold(h.Name, name) {
			headers[i].Value = value
			return headers
		}
	}
	return append(headers, Header{Name: name, Value: value})
}

// acceptLanguageHeader synthesizes the Accept-Language value: locales
// joined with descending quality weights, ;q=(1.0 - i*0.1) for index i,
// formatted to one decimal.
func acceptLanguageHeader(locales []string) string {
	parts := make([]string, len(locales))
	for i, locale := range locales {
		q := 1.0 - float64(i)*0.1
		parts[i] = fmt.Sprintf("%s;q=%s", locale, strconv.FormatFloat(q, 'f', 1, 64))
	}
	return strings.Join(parts, ", ")
}

// shouldAddSecFetch reports whether Sec-Fetch headers belong on this
// sample: chrome>=76, firefox>=90, edge>=79.
func shouldAddSecFetch(b httpBrowserObject) bool {
	major := b.majorVersion()
	switch b.name {
	case "chrome":
		return major >= 76
	case "firefox":
		return major >= 90
	case "edge":
		return major >= 79
	}
	return false
}

func (g *Generator) headersOrderFor(headers Set) []string {
	ua, ok := GetUserAgent(headers)
	if !ok {
		return nil
	}
	browser, ok := GetBrowser(ua)
	if !ok {
		return nil
	}
	return g.data.HeadersOrder[browser]
}
