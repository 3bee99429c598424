// Package socket implements Ethos's length-prefixed binary control
// protocol: each message is a 4-byte little-endian length followed by a
// named-field binary map payload. No MessagePack, CBOR, or protobuf
// dependency exists anywhere in the reference corpus this module was
// grounded on (see DESIGN.md), so the payload codec is a small
// hand-rolled format in the same spirit as the teacher's own length-
// prefixed framing conventions.
package socket

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

const maxFrameSize = 16 << 20 // 16 MiB

// fieldType tags a value's wire representation.
type fieldType byte

const (
	typeString fieldType = 1
	typeInt64  fieldType = 2
	typeFloat64 fieldType = 3
	typeBool   fieldType = 4
	typeBytes  fieldType = 5
	typeMap    fieldType = 6
	typeArray  fieldType = 7
)

// Map is a named-field payload: string keys to string/int64/float64/
// bool/[]byte values, nested Maps (or map[string]any) and []any arrays.
type Map map[string]any

// ReadFrame reads one length-prefixed frame from r and decodes its
// payload into a Map. Big-endian or over-sized frames are protocol
// errors, per the spec's framing contract.
func ReadFrame(r io.Reader) (Map, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	n := binary.LittleEndian.Uint32(lenBuf[:])
	if n > maxFrameSize {
		return nil, fmt.Errorf("socket: frame size %d exceeds limit", n)
	}
	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, err
	}
	m, _, err := decodeMapAt(payload, 0)
	return m, err
}

// WriteFrame encodes m and writes it to w as one length-prefixed frame.
func WriteFrame(w io.Writer, m Map) error {
	payload := encodeMap(m)
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}

func encodeMap(m Map) []byte {
	buf := make([]byte, 0, 256)
	var countBuf [4]byte
	binary.LittleEndian.PutUint32(countBuf[:], uint32(len(m)))
	buf = append(buf, countBuf[:]...)

	for k, v := range m {
		buf = appendString(buf, k)
		buf = appendValue(buf, v)
	}
	return buf
}

func appendString(buf []byte, s string) []byte {
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(s)))
	buf = append(buf, lenBuf[:]...)
	return append(buf, s...)
}

func appendValue(buf []byte, v any) []byte {
	switch val := v.(type) {
	case string:
		buf = append(buf, byte(typeString))
		return appendString(buf, val)
	case int:
		return appendInt64(buf, int64(val))
	case int64:
		return appendInt64(buf, val)
	case float64:
		buf = append(buf, byte(typeFloat64))
		var b [8]byte
		binary.LittleEndian.PutUint64(b[:], math.Float64bits(val))
		return append(buf, b[:]...)
	case bool:
		buf = append(buf, byte(typeBool))
		if val {
			return append(buf, 1)
		}
		return append(buf, 0)
	case []byte:
		buf = append(buf, byte(typeBytes))
		return appendBytes(buf, val)
	case Map:
		buf = append(buf, byte(typeMap))
		return append(buf, encodeMap(val)...)
	case map[string]any:
		buf = append(buf, byte(typeMap))
		return append(buf, encodeMap(Map(val))...)
	case []any:
		buf = append(buf, byte(typeArray))
		var countBuf [4]byte
		binary.LittleEndian.PutUint32(countBuf[:], uint32(len(val)))
		buf = append(buf, countBuf[:]...)
		for _, item := range val {
			buf = appendValue(buf, item)
		}
		return buf
	default:
		// Any other type (including nil and typed slices) is sent as its
		// %v string form.
		buf = append(buf, byte(typeString))
		return appendString(buf, fmt.Sprintf("%v", val))
	}
}

func appendInt64(buf []byte, v int64) []byte {
	buf = append(buf, byte(typeInt64))
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], uint64(v))
	return append(buf, b[:]...)
}

func appendBytes(buf []byte, v []byte) []byte {
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(v)))
	buf = append(buf, lenBuf[:]...)
	return append(buf, v...)
}

func decodeMapAt(payload []byte, pos int) (Map, int, error) {
	if pos+4 > len(payload) {
		return nil, pos, fmt.Errorf("socket: payload too short")
	}
	count := binary.LittleEndian.Uint32(payload[pos : pos+4])
	pos += 4
	m := make(Map, count)

	for i := uint32(0); i < count; i++ {
		key, next, err := readString(payload, pos)
		if err != nil {
			return nil, pos, err
		}
		pos = next

		val, next, err := decodeValueAt(payload, pos)
		if err != nil {
			return nil, pos, err
		}
		pos = next
		m[key] = val
	}
	return m, pos, nil
}

func decodeArrayAt(payload []byte, pos int) ([]any, int, error) {
	if pos+4 > len(payload) {
		return nil, pos, fmt.Errorf("socket: truncated array length")
	}
	count := binary.LittleEndian.Uint32(payload[pos : pos+4])
	pos += 4
	arr := make([]any, 0, count)

	for i := uint32(0); i < count; i++ {
		val, next, err := decodeValueAt(payload, pos)
		if err != nil {
			return nil, pos, err
		}
		pos = next
		arr = append(arr, val)
	}
	return arr, pos, nil
}

func decodeValueAt(payload []byte, pos int) (any, int, error) {
	if pos >= len(payload) {
		return nil, pos, fmt.Errorf("socket: truncated payload")
	}
	t := fieldType(payload[pos])
	pos++

	switch t {
	case typeString:
		s, next, err := readString(payload, pos)
		return s, next, err
	case typeInt64:
		if pos+8 > len(payload) {
			return nil, pos, fmt.Errorf("socket: truncated int64")
		}
		return int64(binary.LittleEndian.Uint64(payload[pos : pos+8])), pos + 8, nil
	case typeFloat64:
		if pos+8 > len(payload) {
			return nil, pos, fmt.Errorf("socket: truncated float64")
		}
		return math.Float64frombits(binary.LittleEndian.Uint64(payload[pos : pos+8])), pos + 8, nil
	case typeBool:
		if pos >= len(payload) {
			return nil, pos, fmt.Errorf("socket: truncated bool")
		}
		return payload[pos] == 1, pos + 1, nil
	case typeBytes:
		b, next, err := readBytes(payload, pos)
		return b, next, err
	case typeMap:
		return decodeMapAt(payload, pos)
	case typeArray:
		return decodeArrayAt(payload, pos)
	default:
		return nil, pos, fmt.Errorf("socket: unknown field type %d", t)
	}
}

func readString(payload []byte, pos int) (string, int, error) {
	if pos+4 > len(payload) {
		return "", pos, fmt.Errorf("socket: truncated string length")
	}
	n := int(binary.LittleEndian.Uint32(payload[pos : pos+4]))
	pos += 4
	if pos+n > len(payload) {
		return "", pos, fmt.Errorf("socket: truncated string")
	}
	return string(payload[pos : pos+n]), pos + n, nil
}

func readBytes(payload []byte, pos int) ([]byte, int, error) {
	if pos+4 > len(payload) {
		return nil, pos, fmt.Errorf("socket: truncated bytes length")
	}
	n := int(binary.LittleEndian.Uint32(payload[pos : pos+4]))
	pos += 4
	if pos+n > len(payload) {
		return nil, pos, fmt.Errorf("socket: truncated bytes")
	}
	return payload[pos : pos+n], pos + n, nil
}
