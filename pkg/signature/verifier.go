// Package signature implements Ed25519 detached verification over the
// canonical form of a device payload: canonicalize, then SHA-256, then
// verify. There is no additional domain-separation tag, because the
// device firmware this gateway talks to does not add one; an
// implementation that added a tag would never see a device signature
// verify.
package signature

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/json"

	"github.com/walmagochi/gateway/pkg/canonical"
)

// Verify reports whether signature is a valid Ed25519 signature, by
// publicKey, over SHA-256(canonical(raw)). It never panics or returns
// an error: any internal failure (malformed payload, wrong key/
// signature length) is reported as a false result.
func Verify(raw json.RawMessage, sig, publicKey []byte) bool {
	if len(publicKey) != ed25519.PublicKeySize || len(sig) != ed25519.SignatureSize {
		return false
	}

	canonicalBytes, err := canonical.Canonicalize(raw)
	if err != nil {
		return false
	}

	hash := sha256.Sum256(canonicalBytes)
	return ed25519.Verify(publicKey, hash[:], sig)
}

// Sign is provided for tests that need to act as a device: it computes
// the same canonical-hash-then-sign pipeline Verify checks against.
func Sign(raw json.RawMessage, privateKey ed25519.PrivateKey) ([]byte, error) {
	canonicalBytes, err := canonical.Canonicalize(raw)
	if err != nil {
		return nil, err
	}
	hash := sha256.Sum256(canonicalBytes)
	return ed25519.Sign(privateKey, hash[:]), nil
}
