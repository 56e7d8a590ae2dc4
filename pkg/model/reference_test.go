package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseReference(t *testing.T) {
	testCases := []struct {
		in     string
		expect Reference
	}{
		{
			in:     "registry.example.com/lib/app:v1",
			expect: Reference{Domain: "registry.example.com", Path: "lib/app", Tag: "v1"},
		},
		{
			in:     "registry.example.com/lib/app",
			expect: Reference{Domain: "registry.example.com", Path: "lib/app", Tag: "latest"},
		},
		{
			in:     "registry.example.com/lib/app@sha256:abcd",
			expect: Reference{Domain: "registry.example.com", Path: "lib/app", Digest: "sha256:abcd"},
		},
		{
			in:     "registry.example.com/lib/app:v1@sha256:abcd",
			expect: Reference{Domain: "registry.example.com", Path: "lib/app", Tag: "v1", Digest: "sha256:abcd"},
		},
		{
			in:     "localhost.localdomain:5000/app:1.0",
			expect: Reference{Domain: "localhost.localdomain:5000", Path: "app", Tag: "1.0"},
		},
		{
			in:     "ghcr.io/a/b/c/d:tag-with.dots",
			expect: Reference{Domain: "ghcr.io", Path: "a/b/c/d", Tag: "tag-with.dots"},
		},
		{
			in:     "quay.io/app:",
			expect: Reference{Domain: "quay.io", Path: "app", Tag: "latest"},
		},
	}

	for _, tC := range testCases {
		t.Run(tC.in, func(t *testing.T) {
			ref, err := ParseReference(tC.in)
			require.NoError(t, err)
			assert.Equal(t, tC.expect, *ref)
		})
	}
}

func TestParseReferenceMalformed(t *testing.T) {
	for _, in := range []string{
		"",
		"registry.example.com",
		"library/alpine",
		"localhost:5000/app",
		"registry.example.com/",
		"registry.example.com/:v1",
	} {
		t.Run(in, func(t *testing.T) {
			_, err := ParseReference(in)
			assert.ErrorIs(t, err, ErrMalformedReference)
		})
	}
}

func TestReferenceURL(t *testing.T) {
	ref, err := ParseReference("registry.example.com/lib/app:v1")
	require.NoError(t, err)
	assert.Equal(t, "https://registry.example.com/v2/lib/app/manifests/v1", ref.URL(ResourceManifests))

	ref, err = ParseReference("registry.example.com/lib/app@sha256:abcd")
	require.NoError(t, err)
	assert.Equal(t, "", ref.Tag)
	assert.Equal(t, "https://registry.example.com/v2/lib/app/blobs/sha256:abcd", ref.URL(ResourceBlobs))

	// digest wins over tag once a layer has been resolved
	ref, err = ParseReference("registry.example.com/lib/app:v1")
	require.NoError(t, err)
	ref.Digest = "sha256:bbb"
	assert.Equal(t, "https://registry.example.com/v2/lib/app/blobs/sha256:bbb", ref.URL(ResourceBlobs))
	assert.Equal(t, "registry.example.com/lib/app:v1@sha256:bbb", ref.String())
}

func TestReferenceRoundTrip(t *testing.T) {
	for _, in := range []string{
		"registry.example.com/lib/app",
		"registry.example.com/lib/app:v1",
		"registry.example.com/lib/app@sha256:abcd",
		"registry.example.com/lib/app:v1@sha256:abcd",
		"docker.io/library/alpine:3.20",
		"quay.io/app:",
	} {
		t.Run(in, func(t *testing.T) {
			ref, err := ParseReference(in)
			require.NoError(t, err)

			again, err := ParseReference(ref.String())
			require.NoError(t, err)
			assert.Equal(t, ref, again)
		})
	}

	constructed := &Reference{Domain: "registry.example.com", Path: "lib/app", Digest: "sha256:abcd"}
	assert.Equal(t, "registry.example.com/lib/app@sha256:abcd", constructed.String())
	again, err := ParseReference(constructed.String())
	require.NoError(t, err)
	assert.Equal(t, constructed, again)
}
