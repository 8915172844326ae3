package credential

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func testKeypair(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return priv
}

func sealFor(t *testing.T, priv *rsa.PrivateKey, sliceSecret, plaintext []byte) []byte {
	t.Helper()
	var nonce [nonceSize]byte
	_, err := rand.Read(nonce[:])
	require.NoError(t, err)
	sealed := Seal(sliceSecret, plaintext, nonce)
	envJSON, err := SignJSON(priv, sealed)
	require.NoError(t, err)
	return envJSON
}

func TestVerifyJSON_RoundTrip(t *testing.T) {
	priv := testKeypair(t)
	payload := []byte("hello observer")
	envJSON, err := SignJSON(priv, payload)
	require.NoError(t, err)

	got, err := VerifyJSON(&priv.PublicKey, envJSON)
	require.NoError(t, err)
	require.Equal(t, payload, got)
}

func TestVerifyJSON_RejectsTamperedPayload(t *testing.T) {
	priv := testKeypair(t)
	envJSON, err := SignJSON(priv, []byte("original"))
	require.NoError(t, err)

	var env envelope
	require.NoError(t, json.Unmarshal(envJSON, &env))
	env.PayloadB64 = "dGFtcGVyZWQ=" // "tampered", still valid base64
	tampered, err := json.Marshal(env)
	require.NoError(t, err)

	_, err = VerifyJSON(&priv.PublicKey, tampered)
	require.ErrorIs(t, err, ErrBadSignature)
}

func TestVerifyJSON_RejectsWrongKey(t *testing.T) {
	priv := testKeypair(t)
	other := testKeypair(t)
	envJSON, err := SignJSON(priv, []byte("data"))
	require.NoError(t, err)

	_, err = VerifyJSON(&other.PublicKey, envJSON)
	require.ErrorIs(t, err, ErrBadSignature)
}

func TestVerifyJSON_RejectsMalformedEnvelope(t *testing.T) {
	priv := testKeypair(t)
	_, err := VerifyJSON(&priv.PublicKey, []byte("not json"))
	require.ErrorIs(t, err, ErrMalformedEnvelope)

	_, err = VerifyJSON(&priv.PublicKey, []byte(`{"payload_b64":""}`))
	require.ErrorIs(t, err, ErrMalformedEnvelope)
}

func TestUnseal_RoundTrip(t *testing.T) {
	secret := []byte("slice-secret-value")
	plaintext := []byte(`["vol-a","vol-b"]`)
	var nonce [nonceSize]byte
	sealed := Seal(secret, plaintext, nonce)

	got, err := Unseal(secret, sealed)
	require.NoError(t, err)
	require.Equal(t, plaintext, got)
}

func TestUnseal_WrongSecretFails(t *testing.T) {
	var nonce [nonceSize]byte
	sealed := Seal([]byte("secret-a"), []byte("payload"), nonce)

	_, err := Unseal([]byte("secret-b"), sealed)
	require.ErrorIs(t, err, ErrDecryptFailed)
}

func TestUnseal_TruncatedBlob(t *testing.T) {
	_, err := Unseal([]byte("secret"), []byte("short"))
	require.ErrorIs(t, err, ErrTruncated)
}

func TestPipeline_VolumeList(t *testing.T) {
	priv := testKeypair(t)
	secret := []byte("slice-secret")
	envJSON := sealFor(t, priv, secret, []byte(`["lab/project", "  ", "other"]`))

	p := NewPipeline(&priv.PublicKey)
	names, err := p.VolumeList(secret, envJSON)
	require.NoError(t, err)
	require.Equal(t, []string{"lab/project", "other"}, names)
}

func TestPipeline_VolumeRecord(t *testing.T) {
	priv := testKeypair(t)
	secret := []byte("slice-secret")
	record := map[string]string{
		keyVolumeName:    "lab/project",
		keyVolumeOwnerID: "owner-1",
		keySyndicateURL:  "https://observer.example",
		keySliceUGPort:   "31111",
		keyPrincipalPKey: "-----BEGIN PUBLIC KEY-----\nabc\n-----END PUBLIC KEY-----",
	}
	raw, err := json.Marshal(record)
	require.NoError(t, err)
	envJSON := sealFor(t, priv, secret, raw)

	p := NewPipeline(&priv.PublicKey)
	desc, err := p.VolumeRecord(secret, envJSON)
	require.NoError(t, err)
	require.Equal(t, "lab/project", desc.VolumeName)
	require.Equal(t, "lab.project", desc.MountSuffix())
	require.Equal(t, "owner-1", desc.VolumeOwnerID)
}

func TestParseVolumeRecord_MissingKey(t *testing.T) {
	raw, err := json.Marshal(map[string]string{
		keyVolumeName: "lab/project",
	})
	require.NoError(t, err)

	_, err = ParseVolumeRecord(raw)
	require.ErrorIs(t, err, ErrMalformedData)
}
