// Package rewrite implements the shared rewrite policy used by both the
// claim factory and the container's static forwarding proxy: a dial target
// plus a path-rewrite rule and a header-override map, applied to a parsed
// httpframe.Request before it is relayed upstream. Grounded in
// rust-shared/src/socket_gateway/simple_gateway.rs's PathOverride /
// HttpProxyConfig::modify_request.
package rewrite

import (
	"strings"

	"github.com/tzafon/waypoint/internal/httpframe"
)

// pathOverrideKind distinguishes the three PathOverride variants without
// runtime reflection.
type pathOverrideKind int

const (
	kindReplace pathOverrideKind = iota
	kindPrefix
	kindAppend
)

// PathOverride is a closed sum type with three constructors: Replace,
// Prefix, Append. Construct via the package-level functions below; the
// zero value is not meaningful.
type PathOverride struct {
	kind  pathOverrideKind
	value string
}

// Replace emits p verbatim, regardless of the input path.
func Replace(p string) PathOverride { return PathOverride{kind: kindReplace, value: p} }

// Prefix emits p verbatim when the input path is "/"; otherwise emits p
// concatenated with the input path.
func Prefix(p string) PathOverride { return PathOverride{kind: kindPrefix, value: p} }

// Append emits p verbatim when the input path is "/"; otherwise emits the
// input path concatenated with p, with p's leading "/" dropped ("/a" under
// Append("/X") becomes "/aX").
func Append(p string) PathOverride { return PathOverride{kind: kindAppend, value: p} }

func (po PathOverride) apply(inputPath string) string {
	switch po.kind {
	case kindReplace:
		return po.value
	case kindPrefix:
		if inputPath == "/" {
			return po.value
		}
		return po.value + inputPath
	case kindAppend:
		if inputPath == "/" {
			return po.value
		}
		return inputPath + strings.TrimPrefix(po.value, "/")
	default:
		return inputPath
	}
}

// Config carries the dial target, path rewrite rule, and header overrides
// for one proxied connection.
type Config struct {
	ServerAddr      string // "host:port", also the default Host override
	PathOverride    PathOverride
	OverrideHeaders map[string]string
}

// NewConfig returns a Config defaulting to Prefix("/"), matching the
// original's HttpProxyConfig::new. Under that default a "/" path stays "/",
// and any other path gets a second leading "/" ("/a" becomes "//a").
func NewConfig(serverAddr string) Config {
	return Config{
		ServerAddr:      serverAddr,
		PathOverride:    Prefix("/"),
		OverrideHeaders: map[string]string{},
	}
}

// WithPathOverride returns a copy of cfg with the given path rewrite rule.
func (cfg Config) WithPathOverride(po PathOverride) Config {
	cfg.PathOverride = po
	return cfg
}

// WithHeaderOverride returns a copy of cfg with one additional (or
// replaced) header override.
func (cfg Config) WithHeaderOverride(key, value string) Config {
	overrides := make(map[string]string, len(cfg.OverrideHeaders)+1)
	for k, v := range cfg.OverrideHeaders {
		overrides[k] = v
	}
	overrides[key] = value
	cfg.OverrideHeaders = overrides
	return cfg
}

// Apply rewrites req's path per PathOverride, then removes any existing
// header whose key is present in OverrideHeaders and appends all override
// entries. Header order of non-overridden entries is preserved; the
// relative order of appended override entries to removed positions is not
// guaranteed, matching Design Note 9(c) - an accepted, specified quirk.
func (cfg Config) Apply(req *httpframe.Request) *httpframe.Request {
	out := &httpframe.Request{
		Method:  req.Method,
		Path:    cfg.PathOverride.apply(req.Path),
		Version: req.Version,
	}

	for _, h := range req.Headers {
		if _, overridden := cfg.OverrideHeaders[h.Key]; overridden {
			continue
		}
		out.Headers = append(out.Headers, h)
	}
	for k, v := range cfg.OverrideHeaders {
		out.Headers = append(out.Headers, httpframe.HeaderField{Key: k, Value: v})
	}

	return out
}
