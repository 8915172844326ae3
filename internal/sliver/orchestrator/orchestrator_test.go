package orchestrator

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/syndicate/sliverd/internal/sliver/config"
)

func writeTestPublicKey(t *testing.T, priv *rsa.PrivateKey) string {
	t.Helper()
	der, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	require.NoError(t, err)
	block := &pem.Block{Type: "PUBLIC KEY", Bytes: der}

	path := filepath.Join(t.TempDir(), "observer.pub")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, pem.Encode(f, block))
	return path
}

func TestNew_WiresAgentFromConfig(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	keyPath := writeTestPublicKey(t, priv)

	cfg := config.Config{
		PublicKey:        keyPath,
		ObserverURL:      "https://observer.test",
		SliceName:        "s1",
		MountpointDir:    t.TempDir(),
		PollInterval:     60,
		Port:             5553,
		HexSecret:        true,
		UGWatchdogBinary: "syndicate-ug-watchdog",
		RGWatchdogBinary: "syndicate-rg-watchdog",
		UGGatewayBinary:  "syndicate-ug-server",
		RGGatewayBinary:  "syndicate-rg-server",
	}

	agent, err := New(cfg, nil)
	require.NoError(t, err)
	require.NotNil(t, agent.Reconciler)
	require.NotNil(t, agent.PollLoop)
	require.NotNil(t, agent.PushServer)
	require.NotNil(t, agent.Reaper)
}

func TestNew_MissingPublicKeyFails(t *testing.T) {
	cfg := config.Config{
		PublicKey:   filepath.Join(t.TempDir(), "missing.pub"),
		ObserverURL: "https://observer.test",
	}
	_, err := New(cfg, nil)
	require.Error(t, err)
}

func TestAgent_RunOnce(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	keyPath := writeTestPublicKey(t, priv)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("00"))
	}))
	defer srv.Close()

	cfg := config.Config{
		PublicKey:        keyPath,
		ObserverURL:      srv.URL,
		SliceName:        "s1",
		MountpointDir:    t.TempDir(),
		PollInterval:     60,
		Port:             5553,
		HexSecret:        true,
		UGWatchdogBinary: "syndicate-ug-watchdog",
		RGWatchdogBinary: "syndicate-rg-watchdog",
		UGGatewayBinary:  "syndicate-ug-server",
		RGGatewayBinary:  "syndicate-rg-server",
	}

	agent, err := New(cfg, nil)
	require.NoError(t, err)

	require.NoError(t, agent.RunOnce(context.Background()))
}
