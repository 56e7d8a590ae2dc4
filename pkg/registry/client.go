package registry

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/common/version"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/sepich/layerproxy/pkg/metrics"
	"github.com/sepich/layerproxy/pkg/model"
)

// Client talks to registries on behalf of all proxied requests.
//
// It holds a single credential: empty after NewClient, set by the first
// successful token exchange and replaced by every later one. It is never
// cleared; a credential stays in use until some registry answers 401 again.
type Client struct {
	// Username and Password, when set, are sent as Basic auth to token endpoints.
	Username string
	Password string

	UserAgent string
	// TokenTimeout bounds a token exchange, which outlives the request that started it.
	TokenTimeout time.Duration

	httpClient *http.Client
	noRedirect *http.Client

	mu         sync.RWMutex
	credential string
	auth       singleflight.Group
}

// RequestOptions tune a single upstream request.
type RequestOptions struct {
	// Header is merged over the credential, so an Authorization here wins.
	Header http.Header
	// ManualRedirect hands upstream redirects back instead of following them.
	ManualRedirect bool
}

type tokenResponse struct {
	Token       string `json:"token"`
	AccessToken string `json:"access_token"`
}

// NewHTTPClient returns a client for registry traffic. timeout bounds connecting
// and waiting for response headers only, so long blob bodies are never cut short.
func NewHTTPClient(timeout time.Duration) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = timeout
	transport.TLSHandshakeTimeout = min(timeout, 10*time.Second)
	transport.DialContext = (&net.Dialer{
		Timeout:   min(timeout, 30*time.Second),
		KeepAlive: 30 * time.Second,
	}).DialContext
	return &http.Client{Transport: transport}
}

func NewClient(httpClient *http.Client, username, password string) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	noRedirect := *httpClient
	noRedirect.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}

	return &Client{
		Username:   username,
		Password:     password,
		UserAgent:    "layerproxy/" + version.Version,
		TokenTimeout: time.Minute,
		httpClient:   httpClient,
		noRedirect:   &noRedirect,
	}
}

// Credential returns the Authorization value currently in use, empty if none was obtained yet.
func (c *Client) Credential() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.credential
}

func (c *Client) setCredential(credential string) {
	c.mu.Lock()
	c.credential = credential
	c.mu.Unlock()
}

// Authenticate answers the bearer challenge in resp with a token from the challenge realm.
// Basic auth is only sent when username is not empty.
func (c *Client) Authenticate(ctx context.Context, resp *http.Response, username, password string) (string, error) {
	bearer, ok := ParseChallenge(resp.Header.Get(model.HeaderWWWAuthenticate))["bearer"]
	if !ok || bearer["realm"] == "" {
		return "", errors.Wrapf(ErrAuthChallengeMissing, "status %d, %s: %q", resp.StatusCode, model.HeaderWWWAuthenticate, resp.Header.Get(model.HeaderWWWAuthenticate))
	}

	realm, err := url.Parse(bearer["realm"])
	if err != nil {
		return "", errors.Wrapf(ErrTokenEndpoint, "bad realm %q: %v", bearer["realm"], err)
	}
	q := realm.Query()
	for _, k := range []string{"scope", "service"} {
		if v := bearer[k]; v != "" {
			q.Set(k, v)
		}
	}
	realm.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, realm.String(), nil)
	if err != nil {
		return "", errors.Wrap(err, "failed to create token request")
	}
	req.Header.Set(model.HeaderUserAgent, c.UserAgent)
	if username != "" {
		req.SetBasicAuth(username, password)
	}

	zap.L().Debug("Requesting registry token",
		zap.String("realm", realm.Host+realm.Path),
		zap.String("scope", bearer["scope"]),
		zap.String("service", bearer["service"]),
		zap.Bool("basic", username != ""))

	tokenResp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.TokenExchanges.WithLabelValues("error").Inc()
		return "", errors.Wrapf(ErrTokenEndpoint, "token request failed: %v", err)
	}
	defer tokenResp.Body.Close()

	if tokenResp.StatusCode < 200 || tokenResp.StatusCode > 299 {
		metrics.TokenExchanges.WithLabelValues("error").Inc()
		return "", errors.Wrapf(ErrTokenEndpoint, "token request failed with status: %d", tokenResp.StatusCode)
	}

	var token tokenResponse
	if err := json.NewDecoder(tokenResp.Body).Decode(&token); err != nil {
		metrics.TokenExchanges.WithLabelValues("error").Inc()
		return "", errors.Wrapf(ErrTokenEndpoint, "failed to parse token response: %v", err)
	}

	value := token.AccessToken
	if value == "" {
		value = token.Token
	}
	if value == "" {
		metrics.TokenExchanges.WithLabelValues("error").Inc()
		return "", errors.Wrap(ErrTokenEndpoint, "token response has neither access_token nor token")
	}

	metrics.TokenExchanges.WithLabelValues("ok").Inc()
	return "Bearer " + value, nil
}

// Request fetches resource for ref with the client credential. A 401 triggers exactly
// one token exchange with the client's own Username and Password, the new token
// replaces the client credential and the request is sent once more. Whatever that
// second attempt returns, another 401 included, is handed back.
func (c *Client) Request(ctx context.Context, ref *model.Reference, resource model.ResourceType, opts *RequestOptions) (*http.Response, error) {
	resp, err := c.send(ctx, ref, resource, opts, c.Credential())
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}

	credential, err := c.reauthenticate(ctx, resp)
	if err != nil {
		return nil, err
	}
	return c.send(ctx, ref, resource, opts, credential)
}

// RequestWithCredential sends a single request with credential and never re-authenticates.
func (c *Client) RequestWithCredential(ctx context.Context, ref *model.Reference, resource model.ResourceType, opts *RequestOptions, credential string) (*http.Response, error) {
	return c.send(ctx, ref, resource, opts, credential)
}

// FetchManifest fetches and decodes the manifest ref points at.
// Non-2xx responses come back as *UpstreamError.
func (c *Client) FetchManifest(ctx context.Context, ref *model.Reference, opts *RequestOptions) (*Manifest, error) {
	merged := &RequestOptions{Header: http.Header{}}
	merged.Header.Set(model.HeaderAccept, strings.Join(ManifestMediaTypes, ", "))
	if opts != nil {
		merged.ManualRedirect = opts.ManualRedirect
		for k, vv := range opts.Header {
			merged.Header[http.CanonicalHeaderKey(k)] = vv
		}
	}

	resp, err := c.Request(ctx, ref, model.ResourceManifests, merged)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, errors.Wrap(err, "failed to read registry error response")
		}
		return nil, &UpstreamError{StatusCode: resp.StatusCode, Header: resp.Header, Body: body}
	}

	manifest := &Manifest{}
	if err := json.NewDecoder(resp.Body).Decode(manifest); err != nil {
		return nil, errors.Wrapf(ErrInvalidManifest, "%s: %v", ref, err)
	}
	return manifest, nil
}

// reauthenticate consumes the 401 response. Concurrent callers facing the same
// challenge share one token exchange; it runs detached from any single caller so
// one client going away does not fail the others, each of which waits on its own ctx.
func (c *Client) reauthenticate(ctx context.Context, resp *http.Response) (string, error) {
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	key := resp.Header.Get(model.HeaderWWWAuthenticate)
	ch := c.auth.DoChan(key, func() (interface{}, error) {
		authCtx := context.WithoutCancel(ctx)
		if c.TokenTimeout > 0 {
			var cancel context.CancelFunc
			authCtx, cancel = context.WithTimeout(authCtx, c.TokenTimeout)
			defer cancel()
		}
		credential, err := c.Authenticate(authCtx, resp, c.Username, c.Password)
		if err != nil {
			return "", err
		}
		c.setCredential(credential)
		return credential, nil
	})

	select {
	case <-ctx.Done():
		return "", errors.Wrap(ctx.Err(), "waiting for registry token")
	case res := <-ch:
		if res.Err != nil {
			zap.L().Warn("Registry authentication failed", zap.String("url", resp.Request.URL.String()), zap.Error(res.Err))
			return "", res.Err
		}
		zap.L().Debug("Registry authentication succeeded", zap.String("url", resp.Request.URL.String()), zap.Bool("shared", res.Shared))
		return res.Val.(string), nil
	}
}

func (c *Client) send(ctx context.Context, ref *model.Reference, resource model.ResourceType, opts *RequestOptions, credential string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref.URL(resource), nil)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create request for %s", ref)
	}
	req.Header.Set(model.HeaderUserAgent, c.UserAgent)
	if credential != "" {
		req.Header.Set(model.HeaderAuthorization, credential)
	}

	httpClient := c.httpClient
	if opts != nil {
		for k, vv := range opts.Header {
			req.Header[http.CanonicalHeaderKey(k)] = vv
		}
		if opts.ManualRedirect {
			httpClient = c.noRedirect
		}
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		metrics.UpstreamRequests.WithLabelValues(string(resource), "error").Inc()
		return nil, errors.Wrapf(err, "request to %s failed", req.URL.Host)
	}
	metrics.UpstreamRequests.WithLabelValues(string(resource), metrics.Code(resp.StatusCode)).Inc()
	zap.L().Debug("Registry responded",
		zap.String("url", req.URL.String()),
		zap.Int("status", resp.StatusCode),
		zap.Bool("authorized", credential != ""))
	return resp, nil
}
