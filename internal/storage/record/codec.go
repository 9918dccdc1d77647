package record

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Format identifies an at-rest encoding of a Scope.
type Format int

const (
	// FormatBinary is the compact protobuf-wire encoding stored as ".dat".
	FormatBinary Format = iota
	// FormatText is the legacy JSON encoding stored as ".json".
	FormatText
	// FormatBincode is the ".dat" encoding of earlier releases. It is read
	// when a ".dat" file does not decode as FormatBinary.
	FormatBincode
)

// Codec converts a Scope to and from its at-rest bytes.
type Codec interface {
	// Encode serializes the full scope.
	Encode(s Scope) ([]byte, error)
	// Decode parses data. Malformed bytes yield ErrParse; well-formed bytes
	// that violate the record schema yield ErrStorageCorrupt.
	Decode(data []byte) (Scope, error)
}

// ParseFormat maps a configuration name to a Format.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(name) {
	case "binary", "dat":
		return FormatBinary, nil
	case "text", "json":
		return FormatText, nil
	}
	return 0, fmt.Errorf("unknown storage format %q", name)
}

// FormatForPath returns the Format implied by the extension of path.
func FormatForPath(path string) (Format, bool) {
	switch filepath.Ext(path) {
	case ".dat":
		return FormatBinary, true
	case ".json":
		return FormatText, true
	}
	return 0, false
}

// Ext returns the file extension including the leading dot.
func (f Format) Ext() string {
	if f == FormatText {
		return ".json"
	}
	return ".dat"
}

// Codec returns the Codec implementing f.
func (f Format) Codec() Codec {
	switch f {
	case FormatText:
		return TextCodec{}
	case FormatBincode:
		return BincodeCodec{}
	}
	return BinaryCodec{}
}

// Fallback returns the format to try when data stored under f's extension
// does not decode as f.
func (f Format) Fallback() (Format, bool) {
	if f == FormatBinary {
		return FormatBincode, true
	}
	return 0, false
}

// Other returns the alternate format.
func (f Format) Other() Format {
	if f == FormatText {
		return FormatBinary
	}
	return FormatText
}

func (f Format) String() string {
	switch f {
	case FormatText:
		return "text"
	case FormatBincode:
		return "bincode"
	}
	return "binary"
}
