package signature

import (
	"crypto/ed25519"
	"encoding/json"
	"testing"
)

func samplePayload(stepCount int) json.RawMessage {
	raw, _ := json.Marshal(map[string]any{
		"deviceId":        "d1",
		"stepCount":       stepCount,
		"timestamp":       1700000000000,
		"firmwareVersion": 100,
		"batteryPercent":  85,
		"rawAccSamples":   [][]float64{{1.0, 2.0, 3.0}},
	})
	return raw
}

func TestVerify_RoundTrip(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	payload := samplePayload(100)
	sig, err := Sign(payload, priv)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if !Verify(payload, sig, pub) {
		t.Fatal("expected valid signature to verify")
	}
}

func TestVerify_TamperedPayloadRejected(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	payload := samplePayload(100)
	sig, err := Sign(payload, priv)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	tampered := samplePayload(101)
	if Verify(tampered, sig, pub) {
		t.Fatal("expected tampered payload to fail verification")
	}
}

func TestVerify_TamperedSignatureRejected(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	payload := samplePayload(100)
	sig, err := Sign(payload, priv)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	sig[0] ^= 0xFF

	if Verify(payload, sig, pub) {
		t.Fatal("expected mutated signature to fail verification")
	}
}

func TestVerify_WrongKeyRejected(t *testing.T) {
	_, priv, _ := ed25519.GenerateKey(nil)
	otherPub, _, _ := ed25519.GenerateKey(nil)

	payload := samplePayload(100)
	sig, err := Sign(payload, priv)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if Verify(payload, sig, otherPub) {
		t.Fatal("expected signature under a different key to fail verification")
	}
}

func TestVerify_MalformedInputsNeverPanic(t *testing.T) {
	cases := []struct {
		name string
		raw  json.RawMessage
		sig  []byte
		pub  []byte
	}{
		{"empty raw", json.RawMessage(`{}`), make([]byte, ed25519.SignatureSize), make([]byte, ed25519.PublicKeySize)},
		{"not json", json.RawMessage(`not json`), make([]byte, ed25519.SignatureSize), make([]byte, ed25519.PublicKeySize)},
		{"short sig", samplePayload(1), make([]byte, 4), make([]byte, ed25519.PublicKeySize)},
		{"short key", samplePayload(1), make([]byte, ed25519.SignatureSize), make([]byte, 4)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if Verify(tc.raw, tc.sig, tc.pub) {
				t.Fatalf("expected malformed input to verify false")
			}
		})
	}
}

func TestCanonicalDeterminism_KeyOrderIndependent(t *testing.T) {
	a, _ := json.Marshal(map[string]any{
		"deviceId": "d1", "stepCount": 5, "timestamp": 1, "firmwareVersion": 1,
		"batteryPercent": 1, "rawAccSamples": [][]float64{{1, 2, 3}},
	})
	b, _ := json.Marshal(map[string]any{
		"timestamp": 1, "batteryPercent": 1, "stepCount": 5, "rawAccSamples": [][]float64{{1, 2, 3}},
		"deviceId": "d1", "firmwareVersion": 1,
	})

	pub, priv, _ := ed25519.GenerateKey(nil)
	sigA, _ := Sign(a, priv)
	sigB, _ := Sign(b, priv)
	if string(sigA) != string(sigB) {
		t.Fatal("expected canonical form to be independent of input key order")
	}
	if !Verify(b, sigA, pub) {
		t.Fatal("expected signature from a to verify against b with different key order")
	}
}
