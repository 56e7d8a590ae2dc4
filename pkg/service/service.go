package service

import (
	"context"
	"io"
	"net/http"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/sepich/layerproxy/pkg/model"
	"github.com/sepich/layerproxy/pkg/registry"
)

type Service interface {
	GetBlob(ctx context.Context, ref *model.Reference, headers http.Header, w http.ResponseWriter) (int, error)
	ResolveManifest(ctx context.Context, ref *model.Reference, layer int) error
}

// forwardedHeaders are copied from the inbound request to blob fetches.
var forwardedHeaders = []string{model.HeaderRange}

type ProxyService struct {
	Client *registry.Client
}

var _ Service = &ProxyService{}

// GetBlob relays the registry blob response as is. Upstream redirects, usually to
// blob storage, are passed to the caller instead of being followed here.
// The returned status is what was written to w; an error means nothing was.
func (s *ProxyService) GetBlob(ctx context.Context, ref *model.Reference, headers http.Header, w http.ResponseWriter) (int, error) {
	opts := &registry.RequestOptions{Header: http.Header{}, ManualRedirect: true}
	for _, h := range forwardedHeaders {
		if v := headers.Values(h); len(v) > 0 {
			opts.Header[h] = v
		}
	}

	upstreamResp, err := s.Client.Request(ctx, ref, model.ResourceBlobs, opts)
	if err != nil {
		return 0, err
	}
	defer upstreamResp.Body.Close()

	zap.L().Debug("GetBlob",
		zap.Stringer("reference", ref),
		zap.Int("status", upstreamResp.StatusCode),
		zap.String("location", upstreamResp.Header.Get(model.HeaderLocation)))

	copyHeaders(w.Header(), upstreamResp.Header)
	w.WriteHeader(upstreamResp.StatusCode)
	// HEAD responses refuse a body with http.ErrBodyNotAllowed.
	if _, err := io.Copy(w, upstreamResp.Body); err != nil && ctx.Err() == nil && !errors.Is(err, http.ErrBodyNotAllowed) {
		zap.L().Warn("Blob body copy interrupted", zap.Stringer("reference", ref), zap.Error(err))
	}
	return upstreamResp.StatusCode, nil
}

// ResolveManifest points ref at the digest of the requested layer of its manifest.
func (s *ProxyService) ResolveManifest(ctx context.Context, ref *model.Reference, layer int) error {
	manifest, err := s.Client.FetchManifest(ctx, ref, nil)
	if err != nil {
		return err
	}

	dgst, err := registry.ResolveLayer(manifest, layer)
	if err != nil {
		return err
	}

	zap.L().Debug("ResolveManifest",
		zap.Stringer("reference", ref),
		zap.Int("layer", layer),
		zap.String("digest", dgst.String()))

	ref.Digest = dgst.String()
	return nil
}

func copyHeaders(dst, src http.Header) {
	for k, vv := range src {
		for _, v := range vv {
			dst.Add(k, v)
		}
	}
}
