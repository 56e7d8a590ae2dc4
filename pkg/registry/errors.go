package registry

import (
	"fmt"
	"net/http"

	"github.com/pkg/errors"
)

var (
	ErrAuthChallengeMissing = errors.New("no bearer challenge in registry response")
	ErrTokenEndpoint        = errors.New("token endpoint failure")
	ErrInvalidManifest      = errors.New("invalid manifest")
	ErrLayerIndexOutOfRange = errors.New("layer index out of range")
)

// UpstreamError is a non-2xx registry response, kept whole so it can be relayed as is.
type UpstreamError struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("registry responded %d %s", e.StatusCode, http.StatusText(e.StatusCode))
}
