package record

import (
	"fmt"
	"math"
	"sort"
	"unicode/utf8"

	"google.golang.org/protobuf/encoding/protowire"
)

// binaryVersion is written as field 1 of every binary scope.
const binaryVersion = 1

// Field numbers of the binary scope message.
const (
	scopeFieldVersion protowire.Number = 1
	scopeFieldEntry   protowire.Number = 2
)

// Field numbers of one binary entry message.
const (
	entryFieldUserID protowire.Number = 1
	entryFieldName   protowire.Number = 2
	entryFieldScore  protowire.Number = 3
	entryFieldLast   protowire.Number = 4
)

// BinaryCodec encodes a Scope in protobuf wire format:
//
//	scope { uint32 version = 1; repeated entry entries = 2; }
//	entry { int64 user_id = 1; string name = 2; sint32 score = 3; int64 last = 4; }
//
// Entries are written in ascending user id order so equal scopes encode to
// equal bytes. Unknown fields are skipped on decode.
type BinaryCodec struct{}

// Encode implements Codec.
func (BinaryCodec) Encode(s Scope) ([]byte, error) {
	ids := make([]int64, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var b []byte
	b = protowire.AppendTag(b, scopeFieldVersion, protowire.VarintType)
	b = protowire.AppendVarint(b, binaryVersion)
	for _, id := range ids {
		rec := s[id]
		if !utf8.ValidString(rec.Name) {
			return nil, fmt.Errorf("encoding user %d: name is not valid UTF-8", id)
		}
		b = protowire.AppendTag(b, scopeFieldEntry, protowire.BytesType)
		b = protowire.AppendBytes(b, appendEntry(nil, id, rec))
	}
	return b, nil
}

func appendEntry(b []byte, id int64, rec PlayerRecord) []byte {
	b = protowire.AppendTag(b, entryFieldUserID, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(id))
	b = protowire.AppendTag(b, entryFieldName, protowire.BytesType)
	b = protowire.AppendString(b, rec.Name)
	b = protowire.AppendTag(b, entryFieldScore, protowire.VarintType)
	b = protowire.AppendVarint(b, protowire.EncodeZigZag(int64(rec.Score)))
	b = protowire.AppendTag(b, entryFieldLast, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(rec.LastAttempt))
	return b
}

// Decode implements Codec.
func (BinaryCodec) Decode(data []byte) (Scope, error) {
	s := make(Scope)
	version := uint64(0)
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, fmt.Errorf("%w: scope tag: %w", ErrParse, protowire.ParseError(n))
		}
		data = data[n:]

		switch {
		case num == scopeFieldVersion && typ == protowire.VarintType:
			v, m := protowire.ConsumeVarint(data)
			if m < 0 {
				return nil, fmt.Errorf("%w: version: %w", ErrParse, protowire.ParseError(m))
			}
			version = v
			data = data[m:]
		case num == scopeFieldEntry && typ == protowire.BytesType:
			raw, m := protowire.ConsumeBytes(data)
			if m < 0 {
				return nil, fmt.Errorf("%w: entry: %w", ErrParse, protowire.ParseError(m))
			}
			id, rec, err := decodeEntry(raw)
			if err != nil {
				return nil, err
			}
			if _, dup := s[id]; dup {
				return nil, fmt.Errorf("%w: duplicate user id %d", ErrStorageCorrupt, id)
			}
			s[id] = rec
			data = data[m:]
		case num == scopeFieldVersion || num == scopeFieldEntry:
			return nil, fmt.Errorf("%w: field %d has wire type %d", ErrStorageCorrupt, num, typ)
		default:
			m := protowire.ConsumeFieldValue(num, typ, data)
			if m < 0 {
				return nil, fmt.Errorf("%w: field %d: %w", ErrParse, num, protowire.ParseError(m))
			}
			data = data[m:]
		}
	}

	if version != binaryVersion {
		return nil, fmt.Errorf("%w: unsupported format version %d", ErrStorageCorrupt, version)
	}
	return s, nil
}

func decodeEntry(data []byte) (int64, PlayerRecord, error) {
	var (
		id                                int64
		rec                               PlayerRecord
		hasID, hasName, hasScore, hasLast bool
	)
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return 0, PlayerRecord{}, fmt.Errorf("%w: entry tag: %w", ErrParse, protowire.ParseError(n))
		}
		data = data[n:]

		want, known := entryWireTypes[num]
		if known && typ != want {
			return 0, PlayerRecord{}, fmt.Errorf("%w: entry field %d has wire type %d", ErrStorageCorrupt, num, typ)
		}
		if !known {
			m := protowire.ConsumeFieldValue(num, typ, data)
			if m < 0 {
				return 0, PlayerRecord{}, fmt.Errorf("%w: entry field %d: %w", ErrParse, num, protowire.ParseError(m))
			}
			data = data[m:]
			continue
		}

		if typ == protowire.BytesType {
			v, m := protowire.ConsumeBytes(data)
			if m < 0 {
				return 0, PlayerRecord{}, fmt.Errorf("%w: name: %w", ErrParse, protowire.ParseError(m))
			}
			if !utf8.Valid(v) {
				return 0, PlayerRecord{}, fmt.Errorf("%w: name is not valid UTF-8", ErrStorageCorrupt)
			}
			rec.Name = string(v)
			hasName = true
			data = data[m:]
			continue
		}

		v, m := protowire.ConsumeVarint(data)
		if m < 0 {
			return 0, PlayerRecord{}, fmt.Errorf("%w: entry field %d: %w", ErrParse, num, protowire.ParseError(m))
		}
		data = data[m:]
		switch num {
		case entryFieldUserID:
			id, hasID = int64(v), true
		case entryFieldScore:
			sc := protowire.DecodeZigZag(v)
			if sc < math.MinInt16 || sc > math.MaxInt16 {
				return 0, PlayerRecord{}, fmt.Errorf("%w: score %d out of range", ErrStorageCorrupt, sc)
			}
			rec.Score, hasScore = int16(sc), true
		case entryFieldLast:
			rec.LastAttempt, hasLast = int64(v), true
		}
	}

	if !hasID || !hasName || !hasScore || !hasLast {
		return 0, PlayerRecord{}, fmt.Errorf("%w: entry is missing a required field", ErrStorageCorrupt)
	}
	return id, rec, nil
}

var entryWireTypes = map[protowire.Number]protowire.Type{
	entryFieldUserID: protowire.VarintType,
	entryFieldName:   protowire.BytesType,
	entryFieldScore:  protowire.VarintType,
	entryFieldLast:   protowire.VarintType,
}
