package credential

import (
	"crypto/sha256"

	"golang.org/x/crypto/nacl/secretbox"
)

// Sealed blobs are nonce || box, the layout golang.org/x/crypto/nacl's own
// examples use when the nonce isn't carried out-of-band.
const nonceSize = 24

// Unseal decrypts a sealed blob under sliceSecret. The slice secret is an
// opaque byte string of whatever length the Observer handed out, so it is
// hashed down to a secretbox key rather than used directly.
func Unseal(sliceSecret, sealedBlob []byte) ([]byte, error) {
	if len(sealedBlob) < nonceSize+secretbox.Overhead {
		return nil, ErrTruncated
	}

	key := sha256.Sum256(sliceSecret)

	var nonce [nonceSize]byte
	copy(nonce[:], sealedBlob[:nonceSize])

	plaintext, ok := secretbox.Open(nil, sealedBlob[nonceSize:], &nonce, &key)
	if !ok {
		return nil, ErrDecryptFailed
	}
	return plaintext, nil
}

// Seal is Unseal's inverse, used by tests to produce sealed blobs this
// agent can decrypt.
func Seal(sliceSecret, plaintext []byte, nonce [nonceSize]byte) []byte {
	key := sha256.Sum256(sliceSecret)
	out := make([]byte, 0, nonceSize+len(plaintext)+secretbox.Overhead)
	out = append(out, nonce[:]...)
	return secretbox.Seal(out, plaintext, &nonce, &key)
}
