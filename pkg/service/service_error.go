package service

import (
	"net/http"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/sepich/layerproxy/pkg/model"
	"github.com/sepich/layerproxy/pkg/registry"
)

var ErrInvalidLayer = errors.New("invalid layer index")

// StatusCode maps a failure to the status the proxy answers with.
func StatusCode(err error) int {
	var upstream *registry.UpstreamError
	switch {
	case errors.As(err, &upstream):
		return upstream.StatusCode
	case errors.Is(err, model.ErrMalformedReference), errors.Is(err, ErrInvalidLayer):
		return http.StatusBadRequest
	case errors.Is(err, registry.ErrLayerIndexOutOfRange):
		return http.StatusNotFound
	}
	// Auth, token endpoint, manifest decoding and transport failures all sit upstream.
	return http.StatusBadGateway
}

// WriteError answers with err and returns the status written.
// Registry error responses are relayed unmodified.
func WriteError(w http.ResponseWriter, err error) int {
	var upstream *registry.UpstreamError
	if errors.As(err, &upstream) {
		copyHeaders(w.Header(), upstream.Header)
		w.WriteHeader(upstream.StatusCode)
		w.Write(upstream.Body)
		return upstream.StatusCode
	}

	code := StatusCode(err)
	if code >= 500 {
		zap.L().Error("Request failed", zap.Int("status", code), zap.Error(err))
	}
	http.Error(w, err.Error(), code)
	return code
}
