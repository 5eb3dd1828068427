package datom

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// Type tags prefix the canonical encoding so that values of different kinds
// never share a key (Int(5), Ref(5) and String("5") are three values).
const (
	tagString  byte = 's'
	tagInt     byte = 'i'
	tagBool    byte = 'b'
	tagRef     byte = 'r'
	tagArray   byte = 'a'
	tagObject  byte = 'o'
	tagProblem byte = 'p'
)

// MarshalCanonical produces the canonical byte encoding of a value.
// This is the ONLY encoding used for value identity (set membership in the
// index, uniqueness, pattern hashing).
//
// Differences from MarshalValue:
//  1. A one-byte type tag precedes the payload
//  2. Object keys sorted by UTF-16 code units
//  3. No HTML escaping, strings are NFC normalized
func MarshalCanonical(v Value) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeCanonical(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// CheckValue reports a configuration error for a value that has no
// canonical encoding, such as an array holding nil.
func CheckValue(v Value) error {
	if _, err := MarshalCanonical(v); err != nil {
		return NewConfigurationError("invalid value: %v", err)
	}
	return nil
}

// ValueKey returns the canonical encoding as a string, for use as a map key.
// Panics on values outside the sealed set, which cannot be constructed
// outside this package.
func ValueKey(v Value) string {
	b, err := MarshalCanonical(v)
	if err != nil {
		panic(fmt.Sprintf("datom: %v", err))
	}
	return string(b)
}

func writeCanonical(buf *bytes.Buffer, v Value) error {
	switch val := v.(type) {
	case nil:
		return fmt.Errorf("null is forbidden in canonical encoding")
	case String:
		buf.WriteByte(tagString)
		return writeCanonicalString(buf, string(val))
	case Int:
		buf.WriteByte(tagInt)
		buf.WriteString(strconv.FormatInt(int64(val), 10))
	case Bool:
		buf.WriteByte(tagBool)
		if val {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case Ref:
		buf.WriteByte(tagRef)
		buf.WriteString(strconv.FormatInt(int64(val), 10))
	case Problem:
		buf.WriteByte(tagProblem)
		for i, s := range []string{string(val.Kind), val.Message, val.Original} {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeCanonicalString(buf, s); err != nil {
				return err
			}
		}
	case Array:
		buf.WriteByte(tagArray)
		buf.WriteByte('[')
		for i, elem := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeCanonical(buf, elem); err != nil {
				return fmt.Errorf("array[%d]: %w", i, err)
			}
		}
		buf.WriteByte(']')
	case Object:
		buf.WriteByte(tagObject)
		buf.WriteByte('{')
		for i, k := range val.SortedKeys() {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeCanonicalString(buf, k); err != nil {
				return fmt.Errorf("key %q: %w", k, err)
			}
			buf.WriteByte(':')
			if err := writeCanonical(buf, val[k]); err != nil {
				return fmt.Errorf("value for key %q: %w", k, err)
			}
		}
		buf.WriteByte('}')
	default:
		return fmt.Errorf("unsupported type for canonical encoding: %T", v)
	}
	return nil
}

// writeCanonicalString writes a JSON string with NFC normalization.
// Only control characters, backslash and quote are escaped; <, >, & and
// U+2028/U+2029 are written literally. Bytes that are not valid UTF-8 are
// written as \xNN, which no valid string encodes to, so distinct invalid
// strings keep distinct keys.
func writeCanonicalString(buf *bytes.Buffer, s string) error {
	if utf8.ValidString(s) {
		out, err := encodeString(s)
		if err != nil {
			return err
		}
		buf.Write(out)
		return nil
	}

	buf.WriteByte('"')
	for len(s) > 0 {
		n := validPrefix(s)
		if n == 0 {
			fmt.Fprintf(buf, `\x%02x`, s[0])
			s = s[1:]
			continue
		}
		out, err := encodeString(s[:n])
		if err != nil {
			return err
		}
		buf.Write(out[1 : len(out)-1])
		s = s[n:]
	}
	buf.WriteByte('"')
	return nil
}

// encodeString returns the quoted JSON form of the NFC normalization of s.
func encodeString(s string) ([]byte, error) {
	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(norm.NFC.String(s)); err != nil {
		return nil, err
	}

	// json.Encoder adds a trailing newline.
	return unescapeLineSeparators(bytes.TrimSuffix(tmp.Bytes(), []byte{'\n'})), nil
}

// validPrefix returns the length of the longest valid UTF-8 prefix of s.
func validPrefix(s string) int {
	n := 0
	for n < len(s) {
		r, size := utf8.DecodeRuneInString(s[n:])
		if r == utf8.RuneError && size == 1 {
			break
		}
		n += size
	}
	return n
}

// unescapeLineSeparators turns \u2028 and \u2029 escapes back into literal
// characters, leaving \\u2028 (an escaped backslash followed by text) alone.
func unescapeLineSeparators(data []byte) []byte {
	if !bytes.Contains(data, []byte(`\u202`)) {
		return data
	}

	result := make([]byte, 0, len(data))
	for i := 0; i < len(data); i++ {
		if data[i] == '\\' && i+5 < len(data) && data[i+1] == 'u' &&
			data[i+2] == '2' && data[i+3] == '0' && data[i+4] == '2' &&
			(data[i+5] == '8' || data[i+5] == '9') {
			backslashes := 0
			for j := len(result) - 1; j >= 0 && result[j] == '\\'; j-- {
				backslashes++
			}
			if backslashes%2 == 0 {
				if data[i+5] == '8' {
					result = append(result, "\u2028"...)
				} else {
					result = append(result, "\u2029"...)
				}
				i += 5
				continue
			}
		}
		result = append(result, data[i])
	}
	return result
}
