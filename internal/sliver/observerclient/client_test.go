package observerclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFetchSliceSecret(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/my-slice/SYNDICATE_SLICE_SECRET", r.URL.Path)
		w.Write([]byte("the-secret"))
	}))
	defer srv.Close()

	c := New(srv.URL, "my-slice", nil)
	secret, err := c.FetchSliceSecret(context.Background())
	require.NoError(t, err)
	require.Equal(t, "the-secret", string(secret))
}

func TestFetchSliceSecret_EmptyBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(srv.URL, "my-slice", nil)
	_, err := c.FetchSliceSecret(context.Background())
	require.ErrorIs(t, err, ErrEmptyResponse)
}

func TestFetchVolumeListEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/my-slice", r.URL.Path)
		w.Write([]byte(`{"payload_b64":"x","signature_b64":"y"}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "my-slice", nil)
	body, err := c.FetchVolumeListEnvelope(context.Background())
	require.NoError(t, err)
	require.Contains(t, string(body), "payload_b64")
}

func TestFetchVolumeRecordEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/my-slice/lab%2Fproject", r.URL.EscapedPath())
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "my-slice", nil)
	_, err := c.FetchVolumeRecordEnvelope(context.Background(), "lab/project")
	require.NoError(t, err)
}

func TestGet_BadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(srv.URL, "my-slice", nil)
	_, err := c.FetchVolumeListEnvelope(context.Background())
	require.ErrorIs(t, err, ErrBadStatus)
}
