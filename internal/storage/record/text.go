package record

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// TextCodec is the legacy JSON encoding: an object keyed by the decimal user
// id, each value {"name": string, "size": int16, "last": int64}.
type TextCodec struct{}

type textRecord struct {
	Name *string `json:"name"`
	Size *int16  `json:"size"`
	Last *int64  `json:"last"`
}

// Encode implements Codec.
func (TextCodec) Encode(s Scope) ([]byte, error) {
	out := make(map[string]PlayerRecord, len(s))
	for id, rec := range s {
		out[strconv.FormatInt(id, 10)] = rec
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding text scope: %w", err)
	}
	return data, nil
}

// Decode implements Codec.
func (TextCodec) Decode(data []byte) (Scope, error) {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil, fmt.Errorf("%w: top-level value is null", ErrStorageCorrupt)
	}

	var raw map[string]textRecord
	if err := json.Unmarshal(data, &raw); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return nil, fmt.Errorf("%w: %w", ErrStorageCorrupt, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrParse, err)
	}

	s := make(Scope, len(raw))
	for key, tr := range raw {
		id, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: user id %q is not an integer", ErrStorageCorrupt, key)
		}
		// "042" and "+42" would collide with "42".
		if strconv.FormatInt(id, 10) != key {
			return nil, fmt.Errorf("%w: user id %q is not in canonical form", ErrStorageCorrupt, key)
		}
		if tr.Name == nil || tr.Size == nil || tr.Last == nil {
			return nil, fmt.Errorf("%w: user %d is missing a required field", ErrStorageCorrupt, id)
		}
		s[id] = PlayerRecord{Name: *tr.Name, Score: *tr.Size, LastAttempt: *tr.Last}
	}
	return s, nil
}
