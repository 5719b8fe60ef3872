// Package canonical produces the deterministic byte form of a device
// payload that the signature verifier hashes and checks against the
// device's Ed25519 signature.
//
// This canonicalizer does not reconstruct floats from decoded Go
// values. It re-derives the canonical form from the raw bytes of the
// inbound frame's signed sub-object, decoding each field only as far
// as needed to sort keys and compact whitespace, and otherwise copying
// the device's own byte representation of every scalar and array
// verbatim. This keeps the verifier from ever disagreeing with the
// device about how a float should have been formatted.
package canonical

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// SignedFields lists the keys of the object a device signs, sorted in
// ascending lexicographic byte order of the key name.
var SignedFields = []string{
	"batteryPercent",
	"deviceId",
	"firmwareVersion",
	"rawAccSamples",
	"stepCount",
	"timestamp",
}

// Canonicalize extracts SignedFields from raw (the full inbound frame,
// or any JSON object superset of the signed fields) and returns the
// compact, key-sorted, UTF-8 byte sequence that was signed.
//
// Each field's value is carried through as the exact raw bytes the
// device sent (via json.RawMessage), so no float is ever re-formatted
// by this process — only whitespace between tokens is removed.
func Canonicalize(raw json.RawMessage) ([]byte, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, fmt.Errorf("canonicalize: payload is not a JSON object: %w", err)
	}

	keys := make([]string, 0, len(SignedFields))
	for _, k := range SignedFields {
		if _, ok := obj[k]; !ok {
			return nil, fmt.Errorf("canonicalize: missing signed field %q", k)
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		keyBytes, err := json.Marshal(k)
		if err != nil {
			return nil, fmt.Errorf("canonicalize: marshal key %q: %w", k, err)
		}
		buf.Write(keyBytes)
		buf.WriteByte(':')
		compact, err := compactJSON(obj[k])
		if err != nil {
			return nil, fmt.Errorf("canonicalize: compact field %q: %w", k, err)
		}
		buf.Write(compact)
	}
	buf.WriteByte('}')

	return buf.Bytes(), nil
}

// compactJSON removes insignificant whitespace from a JSON value
// without altering number formatting, by round-tripping through
// json.Compact rather than through a decode/re-encode cycle.
func compactJSON(raw json.RawMessage) ([]byte, error) {
	var out bytes.Buffer
	if err := json.Compact(&out, raw); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}
