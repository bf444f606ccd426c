// internal/snapshot/marker.go
package snapshot

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// DefaultMarkerPrefix is the comment prefix the tracking tool writes in front
// of the metadata object on the marker line.
const DefaultMarkerPrefix = "-- sqlcl_snapshot"

const sxmlField = "sxml"

var (
	ErrMalformedInput = errors.New("marker payload is not a valid metadata object")
	ErrMissingField   = errors.New("marker payload has no sxml field")
)

// member is one top-level key of the metadata object, value kept as raw
// bytes. Members the reconciler does not understand pass through byte-exact.
type member struct {
	key string
	raw json.RawMessage
}

// Marker is the parsed metadata object of one snapshot file, preserving the
// original member order.
type Marker struct {
	prefix  string
	members []member
}

// ParseMarker parses one marker line. The line must start with the given
// prefix (after leading whitespace) and carry a single top-level object.
func ParseMarker(line, prefix string) (*Marker, error) {
	if prefix == "" {
		prefix = DefaultMarkerPrefix
	}
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, prefix) {
		return nil, fmt.Errorf("%w: line does not start with %q", ErrMalformedInput, prefix)
	}
	payload := strings.TrimSpace(strings.TrimPrefix(trimmed, prefix))

	dec := json.NewDecoder(strings.NewReader(payload))
	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("%w: top-level value is not an object", ErrMalformedInput)
	}

	m := &Marker{prefix: prefix}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("%w: non-string object key", ErrMalformedInput)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("%w: value of %q: %v", ErrMalformedInput, key, err)
		}
		m.members = append(m.members, member{key: key, raw: raw})
	}
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}

	if _, err := m.SXML(); err != nil {
		return nil, err
	}
	return m, nil
}

// SXML returns the metadata markup carried in the sxml member.
func (m *Marker) SXML() (string, error) {
	for _, mem := range m.members {
		if mem.key != sxmlField {
			continue
		}
		var s string
		if err := json.Unmarshal(mem.raw, &s); err != nil {
			return "", fmt.Errorf("%w: sxml is not a string: %v", ErrMalformedInput, err)
		}
		return s, nil
	}
	return "", ErrMissingField
}

// SetSXML replaces the sxml member's value, leaving every other member and
// the member order untouched. HTML escaping is off: the tracking tool writes
// the markup's angle brackets literally, and the rewritten line must match
// its format.
func (m *Marker) SetSXML(markup string) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(markup); err != nil {
		return err
	}
	encoded := json.RawMessage(bytes.TrimSuffix(buf.Bytes(), []byte("\n")))
	for i, mem := range m.members {
		if mem.key == sxmlField {
			m.members[i].raw = encoded
			return nil
		}
	}
	return ErrMissingField
}

// Render writes the marker line back out: prefix, one space, compact object
// with members in original order. Untouched member values are compacted but
// otherwise byte-identical to the input.
func (m *Marker) Render() (string, error) {
	var buf bytes.Buffer
	buf.WriteString(m.prefix)
	buf.WriteString(" {")
	for i, mem := range m.members {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(mem.key)
		if err != nil {
			return "", err
		}
		buf.Write(key)
		buf.WriteByte(':')
		var compact bytes.Buffer
		if err := json.Compact(&compact, mem.raw); err != nil {
			return "", err
		}
		buf.Write(compact.Bytes())
	}
	buf.WriteByte('}')
	return buf.String(), nil
}

// IsMarker reports whether the line is a marker line for the given prefix.
func IsMarker(line, prefix string) bool {
	if prefix == "" {
		prefix = DefaultMarkerPrefix
	}
	return strings.HasPrefix(strings.TrimSpace(line), prefix)
}

// FindMarker scans the file content for the first marker line. It returns
// the zero-based line index and the line itself; index is -1 when no marker
// line exists.
func FindMarker(content, prefix string) (int, string) {
	for i, line := range strings.Split(content, "\n") {
		if IsMarker(line, prefix) {
			return i, line
		}
	}
	return -1, ""
}
