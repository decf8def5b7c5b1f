// Package upstream discovers public upstream equivalents for images parked
// behind private registries, so the matching cascade can work with the name
// the rest of the world knows the software by.
package upstream

import (
	"context"
	"regexp"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/wharflab/gauge/internal/imageref"
	"github.com/wharflab/gauge/internal/mappings"
	"github.com/wharflab/gauge/internal/registry"
)

// Method identifies the discovery strategy that produced a result.
type Method string

const (
	MethodManual                  Method = "manual"
	MethodRegistryStrip           Method = "registry_strip"
	MethodRegistryStripUnverified Method = "registry_strip_unverified"
	MethodCommonRegistry          Method = "common_registry"
	MethodBaseExtract             Method = "base_extract"
	MethodNone                    Method = "none"
)

// Result is the outcome of upstream discovery.
//
// Invariant: Image == "" iff Confidence == 0 iff Method == MethodNone.
type Result struct {
	Image      string
	Confidence float64
	Method     Method
}

// Found reports whether discovery produced an upstream reference.
func (r Result) Found() bool { return r.Image != "" }

func noResult() Result { return Result{Method: MethodNone} }

// commonRegistries are probed in order by the common-registry strategy.
var commonRegistries = []string{
	"docker.io/library",
	"docker.io",
	"quay.io",
	"ghcr.io",
}

// privateRegistryPatterns recognize registry shapes that normally front
// mirrored copies of public images.
var privateRegistryPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^[a-z0-9.-]+\.(io|com|net|org|dev)/`), // company.io/image, multi-level domains
	regexp.MustCompile(`^gcr\.io/[a-z0-9-]+/`),                // gcr.io/project/image
	regexp.MustCompile(`^[a-z0-9-]+\.gcr\.io/`),               // project.gcr.io/image
	regexp.MustCompile(`^[0-9]+\.dkr\.ecr\.`),                 // AWS ECR
	regexp.MustCompile(`^[^/]*\.azurecr\.io/`),                // Azure ACR
}

// commonBases are well-known open source images the base-extraction
// strategy looks for inside internal names.
var commonBases = []string{
	"python", "node", "nginx", "postgres", "postgresql", "mysql", "mariadb",
	"redis", "mongo", "mongodb", "golang", "go", "java", "openjdk",
	"ruby", "php", "perl", "alpine", "ubuntu", "debian", "centos",
	"httpd", "apache", "tomcat", "rabbitmq", "kafka", "elasticsearch",
}

// Options configures a Finder.
type Options struct {
	// MinConfidence is the bar each strategy's result must clear to be
	// returned; below it the cascade continues. Default 0.7.
	MinConfidence float64

	// AllowUnverified enables the best-guess registry-strip fallback
	// (confidence 0.70) when no stripped candidate verifies. Callers that
	// later attempt blind pulls opt in; everyone else gets a clean miss.
	AllowUnverified bool
}

// Finder discovers public upstream equivalents.
//
// Strategies, in order of confidence: manual mapping (1.0), registry strip
// (0.90, 0.85 for the leaf-name fallback), common registries (0.80), base
// name extraction (0.70). Verification goes through the checker; the
// checker's own contract makes failed checks read as "does not exist".
type Finder struct {
	manual  *mappings.Table
	checker registry.Checker
	opts    Options
}

// NewFinder creates a Finder. manual may be nil when no override table is
// configured.
func NewFinder(manual *mappings.Table, checker registry.Checker, opts Options) *Finder {
	if opts.MinConfidence <= 0 {
		opts.MinConfidence = 0.7
	}
	if manual == nil {
		manual = mappings.NewTable(nil)
	}
	return &Finder{manual: manual, checker: checker, opts: opts}
}

// FindUpstream locates the public upstream equivalent of altImage. Each
// strategy's result is returned only when its confidence clears
// MinConfidence; otherwise the next strategy runs.
func (f *Finder) FindUpstream(ctx context.Context, altImage string) Result {
	if target, ok := f.manual.Lookup(altImage); ok {
		log.WithField("image", altImage).WithField("upstream", target).Debug("manual upstream mapping")
		return f.gate(Result{Image: target, Confidence: 1.0, Method: MethodManual})
	}

	if res := f.tryStripRegistry(ctx, altImage); res.Found() {
		if res = f.gate(res); res.Found() {
			return res
		}
	}

	if res := f.tryCommonRegistries(ctx, altImage); res.Found() {
		if res = f.gate(res); res.Found() {
			return res
		}
	}

	if res := f.tryBaseExtraction(ctx, altImage); res.Found() {
		if res = f.gate(res); res.Found() {
			return res
		}
	}

	log.WithField("image", altImage).Debug("no upstream found")
	return noResult()
}

// gate drops results below the configured confidence floor.
func (f *Finder) gate(res Result) Result {
	if res.Confidence < f.opts.MinConfidence {
		return noResult()
	}
	return res
}

func isPrivateRegistry(image string) bool {
	for _, p := range privateRegistryPatterns {
		if p.MatchString(image) {
			return true
		}
	}
	return false
}

// tryStripRegistry removes a private registry prefix and checks the
// remaining path under docker.io, then the bare leaf name. When nothing
// verifies and AllowUnverified is set, the stripped path is returned as a
// 0.70-confidence best guess for blind pull attempts.
func (f *Finder) tryStripRegistry(ctx context.Context, image string) Result {
	if !isPrivateRegistry(image) {
		return noResult()
	}

	parts := strings.SplitN(image, "/", 2)
	if len(parts) < 2 {
		return noResult()
	}
	stripped := parts[1]

	if f.checker.Exists(ctx, "docker.io/"+stripped) {
		return Result{Image: stripped, Confidence: 0.90, Method: MethodRegistryStrip}
	}

	// Single-segment names may live under the Docker Hub library org.
	if !strings.Contains(strings.SplitN(stripped, ":", 2)[0], "/") {
		if f.checker.Exists(ctx, "docker.io/library/"+stripped) {
			return Result{Image: stripped, Confidence: 0.90, Method: MethodRegistryStrip}
		}
	}

	// Fall back to the leaf path segment (eks/coredns -> coredns).
	leaf := stripped[strings.LastIndex(stripped, "/")+1:]
	if leaf != stripped {
		if f.checker.Exists(ctx, "docker.io/"+leaf) {
			return Result{Image: leaf, Confidence: 0.85, Method: MethodRegistryStrip}
		}
		if f.checker.Exists(ctx, "docker.io/library/"+leaf) {
			return Result{Image: leaf, Confidence: 0.85, Method: MethodRegistryStrip}
		}
	}

	if f.opts.AllowUnverified {
		log.WithField("image", image).WithField("guess", stripped).
			Debug("registry strip unverified, returning best guess")
		return Result{Image: stripped, Confidence: 0.70, Method: MethodRegistryStripUnverified}
	}
	return noResult()
}

// tryCommonRegistries probes the base name under well-known public
// registries, first verified hit wins.
func (f *Finder) tryCommonRegistries(ctx context.Context, image string) Result {
	base := imageref.BaseName(image)
	for _, reg := range commonRegistries {
		candidate := reg + "/" + base
		if f.checker.Exists(ctx, candidate) {
			return Result{Image: candidate, Confidence: 0.80, Method: MethodCommonRegistry}
		}
	}
	return noResult()
}

// tryBaseExtraction scans internal-style names for a well-known base image
// (internal-python-app -> python) and verifies it on Docker Hub.
func (f *Finder) tryBaseExtraction(ctx context.Context, image string) Result {
	base := imageref.BaseName(image)
	for _, known := range commonBases {
		if !strings.Contains(base, known) {
			continue
		}
		if f.checker.Exists(ctx, "docker.io/library/"+known+":latest") ||
			f.checker.Exists(ctx, "docker.io/"+known+":latest") {
			return Result{Image: known + ":latest", Confidence: 0.70, Method: MethodBaseExtract}
		}
	}
	return noResult()
}
