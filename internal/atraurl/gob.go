package atraurl

import (
	"bytes"
	"encoding/gob"
	"fmt"
)

// gobPayload mirrors URL's private fields so gob (which skips unexported
// fields) has something it can actually serialize. Used by Entry
// persistence in internal/queue.
type gobPayload struct {
	Norm  string
	Depth Depth
}

// GobEncode implements gob.GobEncoder.
func (u URL) GobEncode() ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(gobPayload{Norm: u.norm, Depth: u.depth}); err != nil {
		return nil, fmt.Errorf("context: encoding url: %w", err)
	}
	return buf.Bytes(), nil
}

// GobDecode implements gob.GobDecoder.
func (u *URL) GobDecode(data []byte) error {
	var payload gobPayload
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&payload); err != nil {
		return fmt.Errorf("context: decoding url: %w", err)
	}
	parsed, err := New(payload.Norm, payload.Depth)
	if err != nil {
		return fmt.Errorf("context: reconstructing url %q: %w", payload.Norm, err)
	}
	*u = parsed
	return nil
}
