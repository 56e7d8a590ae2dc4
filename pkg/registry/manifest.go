package registry

import (
	"github.com/opencontainers/go-digest"
	"github.com/opencontainers/image-spec/specs-go"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/pkg/errors"
)

const (
	MediaTypeDockerManifest     = "application/vnd.docker.distribution.manifest.v2+json"
	MediaTypeDockerManifestList = "application/vnd.docker.distribution.manifest.list.v2+json"
)

// ManifestMediaTypes is sent as Accept, most preferred first.
var ManifestMediaTypes = []string{
	ocispec.MediaTypeImageManifest,
	ocispec.MediaTypeImageIndex,
	MediaTypeDockerManifest,
	MediaTypeDockerManifestList,
}

// Manifest covers image manifests and indexes of both OCI and Docker flavours.
// Only JSON shape is checked; digests are taken as the registry sent them.
type Manifest struct {
	specs.Versioned
	MediaType   string               `json:"mediaType,omitempty"`
	Config      *ocispec.Descriptor  `json:"config,omitempty"`
	Layers      []ocispec.Descriptor `json:"layers,omitempty"`
	Manifests   []ocispec.Descriptor `json:"manifests,omitempty"`
	Annotations map[string]string    `json:"annotations,omitempty"`
}

// ResolveLayer returns the digest of layer index. Negative indexes count from the end.
func ResolveLayer(m *Manifest, index int) (digest.Digest, error) {
	n := len(m.Layers)
	if n == 0 {
		return "", errors.Wrapf(ErrLayerIndexOutOfRange, "manifest %q has no layers", m.MediaType)
	}
	i := index
	if i < 0 {
		i += n
	}
	if i < 0 || i >= n {
		return "", errors.Wrapf(ErrLayerIndexOutOfRange, "layer %d of %d", index, n)
	}
	return m.Layers[i].Digest, nil
}
