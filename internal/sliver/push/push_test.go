package push

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/syndicate/sliverd/internal/sliver/credential"
	"github.com/syndicate/sliverd/internal/sliver/probe"
	"github.com/syndicate/sliverd/internal/sliver/reconcile"
	"github.com/syndicate/sliverd/internal/sliver/secret"
)

type fakeLister struct{}

func (fakeLister) ListProcesses(ctx context.Context) ([]probe.ProcessInfo, error) {
	return nil, nil
}

type countingSpawner struct {
	mu    sync.Mutex
	calls int
}

func (c *countingSpawner) Spawn(watchdogBinary string, attrs map[string]string, gatewayArgv []string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return c.calls, nil
}

func (c *countingSpawner) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func newTestServer(t *testing.T, priv *rsa.PrivateKey, sliceSecret []byte) (*Server, *countingSpawner) {
	t.Helper()
	spawner := &countingSpawner{}
	lister := fakeLister{}
	r := reconcile.New(reconcile.Options{
		LocalHostname:    "host1",
		MountpointRoot:   t.TempDir(),
		UGWatchdogBinary: "syndicate-ug-watchdog",
		RGWatchdogBinary: "syndicate-rg-watchdog",
		UGGatewayBinary:  "syndicate-ug-server",
		RGGatewayBinary:  "syndicate-rg-server",
		Registry:         probe.NewRegistry(lister),
		Lister:           lister,
		Spawner:          spawner,
	})

	secrets := secret.NewStore(sliceSecret)
	srv := NewServer(credential.NewPipeline(&priv.PublicKey), secrets, r, nil)
	return srv, spawner
}

func TestPush_UnconfiguredServerReturns500(t *testing.T) {
	srv := &Server{}

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(""))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	require.Equal(t, http.StatusInternalServerError, w.Code)
	require.Equal(t, "Server is not configured\n", w.Body.String())
}

func TestPush_MissingFieldReturns400(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	srv, _ := newTestServer(t, priv, []byte("secret"))

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(""))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "Missing data\n", w.Body.String())
}

func TestPush_InvalidSignatureReturns400(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	other, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	srv, spawner := newTestServer(t, priv, []byte("secret"))

	env, err := credential.SignJSON(other, []byte("payload"))
	require.NoError(t, err)

	form := url.Values{"observer_message": {string(env)}}
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "Invalid request\n", w.Body.String())
	require.Zero(t, spawner.count())
}

func TestPush_ValidEnvelopeReturns200AndReconciles(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	sliceSecret := []byte("slice-secret")
	srv, spawner := newTestServer(t, priv, sliceSecret)

	record, err := json.Marshal(map[string]string{
		"OPENCLOUD_VOLUME_NAME":        "v1",
		"OPENCLOUD_VOLUME_OWNER_ID":    "owner@example.com",
		"OPENCLOUD_SYNDICATE_URL":      "https://syndicate.test",
		"OPENCLOUD_SLICE_UG_PORT":      "32100",
		"OPENCLOUD_PRINCIPAL_PKEY_PEM": "-----BEGIN KEY-----\nabc\n-----END KEY-----",
	})
	require.NoError(t, err)

	var nonce [24]byte
	_, err = rand.Read(nonce[:])
	require.NoError(t, err)
	sealed := credential.Seal(sliceSecret, record, nonce)
	env, err := credential.SignJSON(priv, sealed)
	require.NoError(t, err)

	form := url.Values{"observer_message": {string(env)}}
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "OK", w.Body.String())

	require.Eventually(t, func() bool {
		return spawner.count() == 2
	}, time.Second, 10*time.Millisecond)
}
