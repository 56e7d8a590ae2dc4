package model

import (
	"errors"
	"fmt"
	"strings"
)

var ErrMalformedReference = errors.New("malformed image reference")

// Reference points at an image in a registry, e.g. quay.io/prometheus/node-exporter:v1.5.0.
type Reference struct {
	Domain string // Registry host serving the /v2/ API, must contain a dot.
	Path   string // Repository path, e.g. prometheus/node-exporter.
	Tag    string // "latest" when neither tag nor digest was given, empty when only a digest was.
	Digest string // Empty when absent. Takes precedence over Tag when addressing the registry.
}

// ParseReference splits domain/path[:tag][@digest].
// The path ends at the first ':' or '@', the tag at the first '@' after it.
func ParseReference(s string) (*Reference, error) {
	domain, rest, ok := strings.Cut(s, "/")
	if !ok {
		return nil, fmt.Errorf("%w %q: no '/' between domain and path", ErrMalformedReference, s)
	}
	if !strings.Contains(domain, ".") {
		return nil, fmt.Errorf("%w %q: domain %q does not look like a host", ErrMalformedReference, s, domain)
	}

	ref := &Reference{Domain: domain}

	end := strings.IndexAny(rest, ":@")
	if end < 0 {
		end = len(rest)
	}
	ref.Path, rest = rest[:end], rest[end:]
	if ref.Path == "" {
		return nil, fmt.Errorf("%w %q: empty repository path", ErrMalformedReference, s)
	}

	switch {
	case strings.HasPrefix(rest, ":"):
		ref.Tag, ref.Digest, _ = strings.Cut(rest[1:], "@")
	case strings.HasPrefix(rest, "@"):
		ref.Digest = rest[1:]
	}

	if ref.Tag == "" && ref.Digest == "" {
		ref.Tag = "latest"
	}
	return ref, nil
}

// Identifier is what the registry is asked for: the digest when present, otherwise the tag.
func (r *Reference) Identifier() string {
	if r.Digest != "" {
		return r.Digest
	}
	return r.Tag
}

// URL returns the registry API location of the referenced object.
func (r *Reference) URL(resource ResourceType) string {
	return fmt.Sprintf("https://%s/v2/%s/%s/%s", r.Domain, r.Path, resource, r.Identifier())
}

func (r *Reference) String() string {
	var b strings.Builder
	b.WriteString(r.Domain)
	b.WriteByte('/')
	b.WriteString(r.Path)
	if r.Tag != "" {
		b.WriteByte(':')
		b.WriteString(r.Tag)
	}
	if r.Digest != "" {
		b.WriteByte('@')
		b.WriteString(r.Digest)
	}
	return b.String()
}
