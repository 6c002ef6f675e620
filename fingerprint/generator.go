package fingerprint

import (
	"encoding/json"
	"math/rand"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"idsynth/header"
	"idsynth/internal/bayesian"
	"idsynth/internal/loader"
	"idsynth/internal/xerrors"
)

// Screen constrains the screen dimensions of the generated fingerprint
//. A zero value constrains nothing.
type Screen struct {
	MinWidth, MaxWidth   int
	MinHeight, MaxHeight int
}

// IsSet reports whether any bound was given.
func (s Screen) IsSet() bool {
	return s.MinWidth != 0 || s.MaxWidth != 0 || s.MinHeight != 0 || s.MaxHeight != 0
}

func (s Screen) validate() error {
	if s.MinWidth != 0 && s.MaxWidth != 0 && s.MinWidth > s.MaxWidth {
		return xerrors.NewValidation("screen: min width (%d) cannot exceed max width (%d)", s.MinWidth, s.MaxWidth)
	}
	if s.MinHeight != 0 && s.MaxHeight != 0 && s.MinHeight > s.MaxHeight {
		return xerrors.NewValidation("screen: min height (%d) cannot exceed max height (%d)", s.MinHeight, s.MaxHeight)
	}
	return nil
}

func (s Screen) within(width, height float64) bool {
	minW, maxW, minH, maxH := 0.0, 1e5, 0.0, 1e5
	if s.MinWidth != 0 {
		minW = float64(s.MinWidth)
	}
	if s.MaxWidth != 0 {
		maxW = float64(s.MaxWidth)
	}
	if s.MinHeight != 0 {
		minH = float64(s.MinHeight)
	}
	if s.MaxHeight != 0 {
		maxH = float64(s.MaxHeight)
	}
	return width >= minW && width <= maxW && height >= minH && height <= maxH
}

// Options bundles a fingerprint request: header options plus a screen
// constraint and a strictness flag.
type Options struct {
	Header     header.Options
	Screen     Screen
	Strict     bool
	MockWebRTC bool
	Slim       bool
}

// Generator generates fingerprints consistent with a generated header set.
type Generator struct {
	headers *header.Generator
	network *bayesian.Network
	log     *zap.Logger
}

// NewGenerator builds a Generator from a header Generator and the already
// loaded fingerprint network.
func NewGenerator(headers *header.Generator, network *bayesian.Network, log *zap.Logger) *Generator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Generator{headers: headers, network: network, log: log}
}

// LoadGenerator loads the fingerprint network from dataDir and wraps the
// given header Generator.
func LoadGenerator(headers *header.Generator, dataDir string, log *zap.Logger) (*Generator, error) {
	defs, err := loader.LoadFile(dataDir + "/fingerprint-network-definition.zip")
	if err != nil {
		return nil, err
	}
	network := bayesian.NewNetworkFromDefinitions("fingerprint", defs)
	if err := network.Validate(); err != nil {
		return nil, err
	}
	return NewGenerator(headers, network, log), nil
}

// Generate produces one fingerprint and its consistent header set.
// rng is the sole source of randomness for both the header and
// fingerprint samples, so a seeded rng makes the whole call reproducible.
func (g *Generator) Generate(rng *rand.Rand, opts Options, requestDependentHeaders map[string]string) (*BrowserFingerprintWithHeaders, error) {
	if err := opts.Screen.validate(); err != nil {
		return nil, err
	}

	screenValues, uaCandidates, err := g.screenConstraints(opts)
	if err != nil {
		return nil, err
	}

	headerOpts := opts.Header
	headerOpts.RequestDependentHeaders = requestDependentHeaders
	if len(uaCandidates) > 0 {
		headerOpts.UserAgent = uaCandidates
	}

	headers, err := g.headers.Generate(rng, headerOpts)
	if err != nil {
		return nil, err
	}

	userAgent, ok := header.GetUserAgent(headers)
	if !ok {
		return nil, &xerrors.MissingUserAgent{}
	}

	constraints := map[string][]string{"userAgent": {userAgent}}
	if screenValues != nil {
		constraints["screen"] = screenValues
	}

	sample, ok := g.network.GenerateConsistentSample(rng, constraints)
	if !ok {
		if opts.Strict {
			return nil, &xerrors.NoSolution{}
		}
		// Some screen/OS combinations are genuinely inconsistent in the
		// training data (observed for certain Mac and Linux samples);
		// retrying once without the screen constraint recovers in those
		// cases without looping indefinitely.
		g.log.Debug("fingerprint sample failed under screen constraint, retrying unconstrained")
		sample, ok = g.network.GenerateConsistentSample(rng, map[string][]string{"userAgent": {userAgent}})
		if !ok {
			return nil, &xerrors.NoSolution{}
		}
	}

	raw := make(map[string]string, len(sample))
	for k, v := range sample {
		if strings.HasPrefix(k, "*") {
			continue
		}
		raw[k] = v
	}
	unpacked := unpackSample(raw)
	unpacked["languages"] = acceptedLanguages(headers)

	fp, err := decode(unpacked)
	if err != nil {
		return nil, err
	}
	fp.MockWebRTC = opts.MockWebRTC
	fp.Slim = opts.Slim

	return &BrowserFingerprintWithHeaders{
		Headers:     headers.Map(),
		Fingerprint: fp,
	}, nil
}

// screenConstraints restricts the fingerprint network's screen node to the
// values inside the requested bounds and runs constraint closure over that
// restriction to learn which User-Agents remain reachable.
// The raw candidate list is what later constrains the sampler;
// the closure is consulted only for its induced userAgent set. A closure
// failure propagates when strict, otherwise the screen restriction is
// dropped entirely.
func (g *Generator) screenConstraints(opts Options) ([]string, []string, error) {
	if !opts.Screen.IsSet() {
		return nil, nil, nil
	}
	node, ok := g.network.NodesByName["screen"]
	if !ok {
		return nil, nil, nil
	}

	var candidates []string
	for _, screenString := range node.PossibleValues {
		if !strings.HasPrefix(screenString, loader.StringifiedPrefix) {
			continue
		}
		var dims struct {
			Width  float64 `json:"width"`
			Height float64 `json:"height"`
		}
		payload := screenString[len(loader.StringifiedPrefix):]
		if err := json.Unmarshal([]byte(payload), &dims); err != nil {
			continue
		}
		if opts.Screen.within(dims.Width, dims.Height) {
			candidates = append(candidates, screenString)
		}
	}

	closure, err := bayesian.ConstraintClosure(g.network, map[string][]string{"screen": candidates})
	if err != nil {
		if opts.Strict {
			return nil, nil, err
		}
		g.log.Debug("screen constraint too restrictive, dropping it", zap.Error(err))
		return nil, nil, nil
	}
	return candidates, closure["userAgent"], nil
}

// acceptedLanguages extracts the bare locale tags from the generated
// Accept-Language header, dropping the ";q=" weights.
func acceptedLanguages(headers header.Set) []string {
	value, _ := headers.Get("Accept-Language")
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		locale := strings.SplitN(strings.TrimSpace(p), ";", 2)[0]
		if locale != "" {
			out = append(out, locale)
		}
	}
	return out
}

func decode(raw map[string]any) (Fingerprint, error) {
	var fp Fingerprint

	if err := unmarshalField(raw["screen"], &fp.Screen); err != nil {
		return fp, err
	}
	if err := unmarshalField(raw["videoCodecs"], &fp.VideoCodecs); err != nil {
		return fp, err
	}
	if err := unmarshalField(raw["audioCodecs"], &fp.AudioCodecs); err != nil {
		return fp, err
	}
	if err := unmarshalField(raw["pluginsData"], &fp.PluginsData); err != nil {
		return fp, err
	}
	if battery, ok := raw["battery"].(map[string]any); ok {
		var b map[string]string
		if err := unmarshalField(battery, &b); err != nil {
			return fp, err
		}
		fp.Battery = b
	}
	if card, ok := raw["videoCard"].(map[string]any); ok {
		var vc VideoCard
		if err := unmarshalField(card, &vc); err != nil {
			return fp, err
		}
		fp.VideoCard = &vc
	}
	if err := unmarshalField(raw["multimediaDevices"], &fp.MultimediaDevices); err != nil {
		return fp, err
	}
	if err := unmarshalField(raw["fonts"], &fp.Fonts); err != nil {
		return fp, err
	}

	nav := NavigatorFingerprint{
		UserAgent:   stringField(raw, "userAgent"),
		Platform:    stringField(raw, "platform"),
		Product:     stringField(raw, "product"),
		ProductSub:  stringField(raw, "productSub"),
		Vendor:      stringField(raw, "vendor"),
		VendorSub:   stringField(raw, "vendorSub"),
		DoNotTrack:  stringField(raw, "doNotTrack"),
		AppCodeName: stringField(raw, "appCodeName"),
		AppName:     stringField(raw, "appName"),
		AppVersion:  stringField(raw, "appVersion"),
		Oscpu:       stringField(raw, "oscpu"),
		Webdriver:   stringField(raw, "webdriver"),
	}
	if err := unmarshalField(raw["userAgentData"], &nav.UserAgentData); err != nil {
		return fp, err
	}
	if err := unmarshalField(raw["extraProperties"], &nav.ExtraProperties); err != nil {
		return fp, err
	}
	nav.DeviceMemory = float64Field(raw, "deviceMemory")
	nav.HardwareConcurrency = intField(raw, "hardwareConcurrency")
	nav.MaxTouchPoints = intField(raw, "maxTouchPoints")
	if languages, ok := raw["languages"].([]string); ok {
		nav.Languages = languages
		if len(languages) > 0 {
			nav.Language = languages[0]
		}
	}

	fp.Navigator = nav
	return fp, nil
}

// unmarshalField reshapes an unpacked value into its typed destination via
// a JSON round-trip. Plain strings (including the "absent" sentinel
// replacement) are skipped: they cannot populate a struct, map, or slice
// target and simply leave the destination at its zero value.
func unmarshalField(v any, out any) error {
	if v == nil {
		return nil
	}
	if _, isString := v.(string); isString {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

func stringField(raw map[string]any, key string) string {
	if s, ok := raw[key].(string); ok {
		return s
	}
	return ""
}

func float64Field(raw map[string]any, key string) *float64 {
	switch v := raw[key].(type) {
	case float64:
		return &v
	case string:
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return &f
		}
	}
	return nil
}

func intField(raw map[string]any, key string) int {
	switch v := raw[key].(type) {
	case float64:
		return int(v)
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return 0
}
