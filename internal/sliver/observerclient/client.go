// Package observerclient talks to the Observer over HTTP: fetching the
// slice secret, the volume list, and individual volume records. Every
// request carries an explicit timeout rather than relying on an
// unbounded default client.
package observerclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// EnsureGatewayExists asks the Observer to create a gateway record for
// a volume that doesn't have one yet, so a follow-up spawn has
// something to attach to. The Observer's exact record-creation contract isn't specified,
// so this posts the kind as a form value to a conventional sub-path and
// treats any 2xx as success.
func (c *Client) EnsureGatewayExists(ctx context.Context, kind, volumeName string) error {
	target := c.path(url.PathEscape(c.SliceName), url.PathEscape(volumeName), "ensure")
	form := url.Values{"kind": {kind}}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("observerclient: build ensure request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("observerclient: ensure %s/%s: %w", volumeName, kind, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: ensure %s/%s returned %d", ErrBadStatus, volumeName, kind, resp.StatusCode)
	}
	return nil
}

// DefaultTimeout bounds every request this client makes.
const DefaultTimeout = 30 * time.Second

// Client fetches slice data from the Observer.
type Client struct {
	BaseURL   string
	SliceName string
	HTTP      *http.Client
}

// New builds a Client grounded on the Observer's base URL and slice
// name. A *http.Client with DefaultTimeout is created if httpClient is
// nil.
func New(baseURL, sliceName string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	return &Client{
		BaseURL:   strings.TrimRight(baseURL, "/"),
		SliceName: sliceName,
		HTTP:      httpClient,
	}
}

// FetchSliceSecret retrieves the raw slice secret. The response body is
// returned verbatim; ErrEmptyResponse is returned for a 200 with no
// body so the caller never caches an empty secret.
func (c *Client) FetchSliceSecret(ctx context.Context) ([]byte, error) {
	body, err := c.get(ctx, c.path(url.PathEscape(c.SliceName), "SYNDICATE_SLICE_SECRET"))
	if err != nil {
		return nil, err
	}
	if len(body) == 0 {
		return nil, ErrEmptyResponse
	}
	return body, nil
}

// FetchVolumeListEnvelope retrieves the signed, sealed envelope listing
// every volume this slice wants on this host.
func (c *Client) FetchVolumeListEnvelope(ctx context.Context) ([]byte, error) {
	return c.get(ctx, c.path(url.PathEscape(c.SliceName)))
}

// FetchVolumeRecordEnvelope retrieves the signed, sealed envelope for a
// single volume's record.
func (c *Client) FetchVolumeRecordEnvelope(ctx context.Context, volumeName string) ([]byte, error) {
	return c.get(ctx, c.path(url.PathEscape(c.SliceName), url.PathEscape(volumeName)))
}

func (c *Client) path(segments ...string) string {
	return c.BaseURL + "/" + strings.Join(segments, "/")
}

func (c *Client) get(ctx context.Context, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("observerclient: build request: %w", err)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("observerclient: %s: %w", target, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("observerclient: read body from %s: %w", target, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s returned %d", ErrBadStatus, target, resp.StatusCode)
	}
	return body, nil
}
