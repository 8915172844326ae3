package credential

import "crypto/rsa"

// Pipeline bundles the Observer's public key with the operations that
// consume it, so callers don't have to thread pub around individually.
type Pipeline struct {
	pub *rsa.PublicKey
}

// NewPipeline wraps an already-loaded public key.
func NewPipeline(pub *rsa.PublicKey) *Pipeline {
	return &Pipeline{pub: pub}
}

// PublicKey returns the Observer public key the pipeline verifies
// envelopes against.
func (p *Pipeline) PublicKey() *rsa.PublicKey {
	return p.pub
}

// Verify checks envelopeJSON's signature and returns the still-sealed
// payload, without attempting decryption. PushEndpoint uses this to
// validate a push synchronously before responding, deferring the
// secret-dependent unseal step to the asynchronous reconcile path.
func (p *Pipeline) Verify(envelopeJSON []byte) ([]byte, error) {
	return VerifyJSON(p.pub, envelopeJSON)
}

// VerifyAndUnseal runs the full two-stage decode: signature verification
// against the Observer's public key, then symmetric decryption under the
// slice secret. Both the volume list and individual volume record
// endpoints are sealed this way; the Observer signs and seals every
// response uniformly and never ships volume data as bare plaintext, even
// when the content itself isn't secret.
func (p *Pipeline) VerifyAndUnseal(sliceSecret, envelopeJSON []byte) ([]byte, error) {
	sealed, err := VerifyJSON(p.pub, envelopeJSON)
	if err != nil {
		return nil, err
	}
	return Unseal(sliceSecret, sealed)
}

// VolumeList runs VerifyAndUnseal followed by ParseVolumeList.
func (p *Pipeline) VolumeList(sliceSecret, envelopeJSON []byte) ([]string, error) {
	plaintext, err := p.VerifyAndUnseal(sliceSecret, envelopeJSON)
	if err != nil {
		return nil, err
	}
	return ParseVolumeList(plaintext)
}

// VolumeRecord runs VerifyAndUnseal followed by ParseVolumeRecord.
func (p *Pipeline) VolumeRecord(sliceSecret, envelopeJSON []byte) (VolumeDescriptor, error) {
	plaintext, err := p.VerifyAndUnseal(sliceSecret, envelopeJSON)
	if err != nil {
		return VolumeDescriptor{}, err
	}
	return ParseVolumeRecord(plaintext)
}
