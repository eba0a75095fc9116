// Package anvl implements the line-oriented "key: value" record language
// the EZID registry speaks. A record is one field per line; a line starting
// with "::" carries the record's identifier; records in a multi-record body
// are separated by a blank line.
package anvl

import (
	"fmt"
	"os"
	"strings"
)

// IdentifierKey is the reserved key under which the ":: <ark>" line is stored.
const IdentifierKey = "::"

const identifierMarker = "::"

// MalformedRecordError reports a record line that has no colon and is not an
// identifier line.
type MalformedRecordError struct {
	Line string
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("anvl: malformed line (no colon): %q", e.Line)
}

// Record is an ordered field mapping. Field order matters to the registry's
// human-readable display, so Record preserves insertion order on encode.
type Record struct {
	keys   []string
	values map[string]string
}

func NewRecord() *Record {
	return &Record{values: make(map[string]string)}
}

// Set adds or overwrites a field. A new key keeps its insertion position.
func (r *Record) Set(key, value string) {
	if _, ok := r.values[key]; !ok {
		r.keys = append(r.keys, key)
	}
	r.values[key] = value
}

// Get returns the value for key, or "" if the field is absent.
func (r *Record) Get(key string) string {
	return r.values[key]
}

// Lookup returns the value for key and whether the field is present. An empty
// value is legal and distinct from an absent field.
func (r *Record) Lookup(key string) (string, bool) {
	v, ok := r.values[key]
	return v, ok
}

// Keys returns the field names in insertion order.
func (r *Record) Keys() []string {
	out := make([]string, len(r.keys))
	copy(out, r.keys)
	return out
}

func (r *Record) Len() int {
	return len(r.keys)
}

// Identifier returns the value of the reserved ":: " field, or "".
func (r *Record) Identifier() string {
	return r.values[IdentifierKey]
}

func (r *Record) SetIdentifier(ark string) {
	r.Set(IdentifierKey, ark)
}

// Fields returns the record as a plain map, excluding the identifier field.
// Used for partial cache updates, which merge by field name.
func (r *Record) Fields() map[string]string {
	out := make(map[string]string, len(r.keys))
	for _, k := range r.keys {
		if k == IdentifierKey {
			continue
		}
		out[k] = r.values[k]
	}
	return out
}

// Encode renders the record in wire format, one "key: value" line per field
// in insertion order. The identifier field is rendered as ":: <value>".
// Values are written as-is; callers must not pass values containing newlines.
func (r *Record) Encode() string {
	var b strings.Builder
	for _, k := range r.keys {
		if k == IdentifierKey {
			b.WriteString(":: ")
		} else {
			b.WriteString(k)
			b.WriteString(": ")
		}
		b.WriteString(r.values[k])
		b.WriteString("\n")
	}
	return b.String()
}

// Decode parses a single-record body. Keys and values are trimmed; values are
// split at the first colon only, so URLs with ports survive intact. Blank
// lines are ignored. A non-blank line without a colon (other than the "::"
// identifier line) is a MalformedRecordError.
func Decode(text string) (*Record, error) {
	rec := NewRecord()
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		if strings.HasPrefix(line, identifierMarker) {
			rec.Set(IdentifierKey, strings.TrimSpace(line[len(identifierMarker):]))
			continue
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			return nil, &MalformedRecordError{Line: line}
		}
		rec.Set(strings.TrimSpace(key), strings.TrimSpace(value))
	}
	return rec, nil
}

// Split breaks a multi-record body into per-record chunks, dropping empty
// chunks produced by trailing blank lines. Callers that need per-record
// failure isolation decode each chunk themselves.
func Split(text string) []string {
	var out []string
	for _, chunk := range strings.Split(text, "\n\n") {
		if strings.TrimSpace(chunk) == "" {
			continue
		}
		out = append(out, chunk)
	}
	return out
}

// DecodeAll parses a multi-record body separated by blank lines. It tolerates
// trailing blank lines and a final record without a trailing separator.
func DecodeAll(text string) ([]*Record, error) {
	var recs []*Record
	for _, chunk := range Split(text) {
		rec, err := Decode(chunk)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

// LoadFile reads an ANVL file (such as a bulk-export result) into records.
func LoadFile(path string) ([]*Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return DecodeAll(string(data))
}

// WriteFile writes records to path in wire format, blank-line separated.
func WriteFile(path string, recs []*Record) error {
	var b strings.Builder
	for _, rec := range recs {
		b.WriteString(rec.Encode())
		b.WriteString("\n")
	}
	return os.WriteFile(path, []byte(b.String()), 0644)
}
