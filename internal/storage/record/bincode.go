package record

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sort"
	"unicode/utf8"
)

// Markers that introduce a little-endian integer wider than one byte in a
// bincode varint. Smaller values are stored as the byte itself.
const (
	bincodeU16       = 0xfb
	bincodeU32       = 0xfc
	bincodeU64       = 0xfd
	bincodeSingleMax = 250
)

// BincodeCodec reads and writes the ".dat" layout of earlier releases: a
// bincode map from user id to record, using bincode's varint integers and
// zigzag signed values.
//
//	map    = len:varint { key:zigzag(i64) name:len+bytes size:zigzag(i16) last:zigzag(i64) }
//
// The store writes BinaryCodec; BincodeCodec exists so those files still load.
type BincodeCodec struct{}

// Encode implements Codec. Entries are written in ascending user id order.
func (BincodeCodec) Encode(s Scope) ([]byte, error) {
	ids := make([]int64, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	b := appendBincodeUint(nil, uint64(len(ids)))
	for _, id := range ids {
		rec := s[id]
		if !utf8.ValidString(rec.Name) {
			return nil, fmt.Errorf("encoding user %d: name is not valid UTF-8", id)
		}
		b = appendBincodeInt(b, id)
		b = appendBincodeUint(b, uint64(len(rec.Name)))
		b = append(b, rec.Name...)
		b = appendBincodeInt(b, int64(rec.Score))
		b = appendBincodeInt(b, rec.LastAttempt)
	}
	return b, nil
}

// Decode implements Codec. Trailing bytes after the map are rejected.
func (BincodeCodec) Decode(data []byte) (Scope, error) {
	r := bincodeReader{data: data}
	n, err := r.uint()
	if err != nil {
		return nil, fmt.Errorf("%w: map length: %w", ErrParse, err)
	}
	// Every entry takes at least four bytes.
	if n > uint64(len(r.data))/4 {
		return nil, fmt.Errorf("%w: map length %d exceeds input", ErrParse, n)
	}

	s := make(Scope, n)
	for i := uint64(0); i < n; i++ {
		id, err := r.int()
		if err != nil {
			return nil, fmt.Errorf("%w: entry %d key: %w", ErrParse, i, err)
		}
		name, err := r.bytes()
		if err != nil {
			return nil, fmt.Errorf("%w: user %d name: %w", ErrParse, id, err)
		}
		if !utf8.Valid(name) {
			return nil, fmt.Errorf("%w: user %d name is not valid UTF-8", ErrStorageCorrupt, id)
		}
		size, err := r.int()
		if err != nil {
			return nil, fmt.Errorf("%w: user %d size: %w", ErrParse, id, err)
		}
		if size < math.MinInt16 || size > math.MaxInt16 {
			return nil, fmt.Errorf("%w: user %d score %d out of range", ErrStorageCorrupt, id, size)
		}
		last, err := r.int()
		if err != nil {
			return nil, fmt.Errorf("%w: user %d last: %w", ErrParse, id, err)
		}
		if _, dup := s[id]; dup {
			return nil, fmt.Errorf("%w: duplicate user id %d", ErrStorageCorrupt, id)
		}
		s[id] = PlayerRecord{Name: string(name), Score: int16(size), LastAttempt: last}
	}
	if len(r.data) > 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrParse, len(r.data))
	}
	return s, nil
}

func appendBincodeUint(b []byte, v uint64) []byte {
	switch {
	case v <= bincodeSingleMax:
		return append(b, byte(v))
	case v <= math.MaxUint16:
		return binary.LittleEndian.AppendUint16(append(b, bincodeU16), uint16(v))
	case v <= math.MaxUint32:
		return binary.LittleEndian.AppendUint32(append(b, bincodeU32), uint32(v))
	}
	return binary.LittleEndian.AppendUint64(append(b, bincodeU64), v)
}

func appendBincodeInt(b []byte, v int64) []byte {
	return appendBincodeUint(b, uint64(v<<1)^uint64(v>>63))
}

type bincodeReader struct {
	data []byte
}

var errBincodeShort = errors.New("unexpected end of input")

func (r *bincodeReader) take(n int) ([]byte, error) {
	if len(r.data) < n {
		return nil, errBincodeShort
	}
	out := r.data[:n]
	r.data = r.data[n:]
	return out, nil
}

func (r *bincodeReader) uint() (uint64, error) {
	head, err := r.take(1)
	if err != nil {
		return 0, err
	}
	switch head[0] {
	case bincodeU16:
		b, err := r.take(2)
		if err != nil {
			return 0, err
		}
		return uint64(binary.LittleEndian.Uint16(b)), nil
	case bincodeU32:
		b, err := r.take(4)
		if err != nil {
			return 0, err
		}
		return uint64(binary.LittleEndian.Uint32(b)), nil
	case bincodeU64:
		b, err := r.take(8)
		if err != nil {
			return 0, err
		}
		return binary.LittleEndian.Uint64(b), nil
	}
	if head[0] > bincodeSingleMax {
		return 0, fmt.Errorf("invalid varint marker %#x", head[0])
	}
	return uint64(head[0]), nil
}

func (r *bincodeReader) int() (int64, error) {
	v, err := r.uint()
	if err != nil {
		return 0, err
	}
	return int64(v>>1) ^ -int64(v&1), nil
}

func (r *bincodeReader) bytes() ([]byte, error) {
	n, err := r.uint()
	if err != nil {
		return nil, err
	}
	if n > uint64(len(r.data)) {
		return nil, errBincodeShort
	}
	return r.take(int(n))
}
