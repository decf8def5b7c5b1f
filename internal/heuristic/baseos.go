package heuristic

import (
	"regexp"
	"strings"
)

// baseOSNames are minimal OS base images that all collapse onto
// chainguard-base.
var baseOSNames = map[string]struct{}{
	"ubi": {}, "ubi-minimal": {}, "ubi-micro": {}, "ubi-init": {},
	"alpine":  {},
	"debian":  {}, "debian-slim": {},
	"ubuntu":  {}, "ubuntu-minimal": {},
	"centos":  {}, "rockylinux": {}, "almalinux": {},
	"amazonlinux": {}, "al2023": {},
	"distroless": {}, "distroless-base": {}, "static-debian": {}, "base-debian": {},
	"scratch": {},
	"busybox": {},
	"fedora":  {}, "fedora-minimal": {},
	"opensuse": {}, "leap": {}, "tumbleweed": {},
	"wolfi": {}, "wolfi-base": {},
	"chainguard-base": {},
	"base":            {},
}

var osVersionStrips = []struct {
	re   *regexp.Regexp
	repl string
}{
	{regexp.MustCompile(`^(ubi|alpine|centos|rockylinux|almalinux)\d+`), "$1"},
	{regexp.MustCompile(`^(debian|ubuntu)[-_]\d+(?:\.\d+)?`), "$1"},
	{regexp.MustCompile(`^fedora[-_]?\d+`), "fedora"},
}

var osAliases = map[string]string{
	"al":     "amazonlinux",
	"al2":    "amazonlinux",
	"al2023": "amazonlinux",
	"al2022": "amazonlinux",
}

var osPrefixNormalizations = []struct{ prefix, target string }{
	{"distroless", "distroless"},
	{"leap", "leap"},
	{"tumbleweed", "tumbleweed"},
}

// normalizeOSName strips versions and modifiers so ubi9, alpine3 and
// debian-12-slim reduce to their family names.
func normalizeOSName(baseName string) string {
	name := strings.ToLower(baseName)
	name = StripVersionSuffix(name)

	if strings.HasSuffix(name, "-base") && name != "base" {
		name = strings.Replace(name, "-base", "", 1)
	}
	name = fipsSuffix.ReplaceAllString(name, "")

	for _, s := range osVersionStrips {
		name = s.re.ReplaceAllString(name, s.repl)
	}
	if alias, ok := osAliases[name]; ok {
		name = alias
	}
	for _, n := range osPrefixNormalizations {
		if strings.HasPrefix(name, n.prefix) {
			name = n.target
			break
		}
	}
	return name
}

// baseOSCandidates maps recognized base OS images to chainguard-base.
func baseOSCandidates(base, _ string, hasFIPS bool) []string {
	normalized := normalizeOSName(base)
	if normalized == "" {
		return nil
	}
	if _, ok := baseOSNames[normalized]; !ok {
		return nil
	}
	var out []string
	if hasFIPS {
		out = append(out, "chainguard-base-fips:latest")
	}
	return append(out, "chainguard-base:latest")
}
