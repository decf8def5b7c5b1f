// Package imageref parses container image references into their components.
//
// Unlike distribution/reference, parsing here never fails: arbitrary customer
// inventory lists contain refs that are not valid per the OCI grammar
// (uppercase names, bare words, internal shorthand), and the matching
// pipeline still wants to work with them. Malformed input degrades to
// treating the whole string as the image name.
package imageref

import "strings"

// Ref is a parsed container image reference. Immutable once constructed.
type Ref struct {
	// Registry is the registry host, possibly with a port (e.g. "gcr.io",
	// "localhost:5000"). Empty when the reference has no explicit registry.
	Registry string

	// Organization is the path between registry and leaf name
	// (e.g. "library", "my-project/team"). Empty for bare names.
	Organization string

	// Name is the lowercased leaf image name.
	Name string

	// Tag is the image tag, empty when not present.
	Tag string

	// Digest is the content digest (e.g. "sha256:abc..."), empty when absent.
	Digest string
}

// Parse parses a raw image string into its components. It never fails.
//
// The digest (after the last '@') is stripped first, then the tag: text
// after the last ':' that occurs after the last '/', so a registry port
// ("localhost:5000/app") is never mistaken for a tag. The first path
// segment is a registry when it contains '.' or ':' or equals "localhost".
func Parse(raw string) Ref {
	var ref Ref

	rest := strings.TrimSpace(raw)

	if i := strings.LastIndex(rest, "@"); i >= 0 {
		ref.Digest = rest[i+1:]
		rest = rest[:i]
	}

	lastSlash := strings.LastIndex(rest, "/")
	if i := strings.LastIndex(rest, ":"); i > lastSlash {
		ref.Tag = rest[i+1:]
		rest = rest[:i]
	}

	parts := strings.Split(rest, "/")
	switch {
	case len(parts) == 1:
		ref.Name = parts[0]
	case isRegistry(parts[0]):
		ref.Registry = parts[0]
		ref.Organization = strings.Join(parts[1:len(parts)-1], "/")
		ref.Name = parts[len(parts)-1]
	default:
		ref.Organization = strings.Join(parts[:len(parts)-1], "/")
		ref.Name = parts[len(parts)-1]
	}

	ref.Name = strings.ToLower(ref.Name)
	return ref
}

// isRegistry reports whether a path segment looks like a registry hostname.
func isRegistry(part string) bool {
	return strings.Contains(part, ".") || strings.Contains(part, ":") || part == "localhost"
}

// String reconstructs the full reference: registry/org/name[:tag|@digest].
// A digest takes precedence over a tag, mirroring how registries address
// content.
func (r Ref) String() string {
	var sb strings.Builder
	if r.Registry != "" {
		sb.WriteString(r.Registry)
		sb.WriteByte('/')
	}
	if r.Organization != "" {
		sb.WriteString(r.Organization)
		sb.WriteByte('/')
	}
	sb.WriteString(r.Name)
	switch {
	case r.Digest != "":
		sb.WriteByte('@')
		sb.WriteString(r.Digest)
	case r.Tag != "":
		sb.WriteByte(':')
		sb.WriteString(r.Tag)
	}
	return sb.String()
}

// NameWithOrg returns "org/name" when an organization is present,
// otherwise just the name.
func (r Ref) NameWithOrg() string {
	if r.Organization != "" {
		return r.Organization + "/" + r.Name
	}
	return r.Name
}

// TagOr returns the tag, or def when the reference carries none.
func (r Ref) TagOr(def string) string {
	if r.Tag != "" {
		return r.Tag
	}
	return def
}

// RegistryOr returns the registry host, or def when none is present.
func (r Ref) RegistryOr(def string) string {
	if r.Registry != "" {
		return r.Registry
	}
	return def
}

// BaseName extracts the lowercased leaf image name from a raw reference.
func BaseName(image string) string {
	return Parse(image).Name
}

// StripTagAndDigest removes the tag and digest from a raw reference,
// preserving registry and path.
func StripTagAndDigest(image string) string {
	ref := Parse(image)
	ref.Tag = ""
	ref.Digest = ""
	return ref.String()
}

// HasExplicitRegistry reports whether the reference names a registry host.
func HasExplicitRegistry(image string) bool {
	return Parse(image).Registry != ""
}
