// Package contentfile reads and writes the flat text format that backs
// every page, file and user in the content tree: "Key: value" records
// separated by lines of four or more dashes. Keys are case-insensitive
// and order-preserving; values may span multiple lines.
package contentfile

import (
	"bufio"
	"bytes"
	"regexp"
	"strings"

	"github.com/keithlinneman/quarry/internal/xerrors"
)

// A separator line is four or more dashes, optionally with trailing
// whitespace. Values may not contain one; Set rejects them so that
// Marshal output always parses back to the same content.
var separatorRe = regexp.MustCompile(`^-{4,}\s*$`)

const separator = "----"

// Content is an ordered, case-insensitive field map.
type Content struct {
	keys   []string
	values map[string]string
}

func New() *Content {
	return &Content{values: make(map[string]string)}
}

// Unmarshal parses content-file bytes. An empty input yields empty
// content. Duplicate keys keep the last value.
func Unmarshal(data []byte) (*Content, error) {
	c := New()

	var key string
	var val strings.Builder
	flush := func() {
		if key == "" {
			return
		}
		c.set(key, strings.TrimSpace(val.String()))
		key = ""
		val.Reset()
	}

	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for sc.Scan() {
		line := sc.Text()
		if separatorRe.MatchString(line) {
			flush()
			continue
		}
		if key == "" {
			trimmed := strings.TrimSpace(line)
			if trimmed == "" {
				continue
			}
			k, v, ok := strings.Cut(trimmed, ":")
			if !ok {
				return nil, xerrors.Newf("line %q: expected \"Key: value\"", trimmed)
			}
			key = strings.TrimSpace(k)
			if key == "" {
				return nil, xerrors.Newf("line %q: empty key", trimmed)
			}
			val.WriteString(strings.TrimLeft(v, " \t"))
			continue
		}
		// continuation of a multiline value
		val.WriteString("\n")
		val.WriteString(line)
	}
	if err := sc.Err(); err != nil {
		return nil, xerrors.Wrap(err, "scan content file")
	}
	flush()
	return c, nil
}

func normalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}

func (c *Content) set(key, value string) {
	k := normalizeKey(key)
	if _, exists := c.values[k]; !exists {
		c.keys = append(c.keys, k)
	}
	c.values[k] = value
}

// Set stores a field value. It rejects keys containing a colon and
// values containing a separator line, both of which would break the
// round-trip through Marshal.
func (c *Content) Set(key, value string) error {
	k := normalizeKey(key)
	if k == "" {
		return xerrors.New("empty field key")
	}
	if strings.Contains(k, ":") {
		return xerrors.Newf("field key %q must not contain a colon", key)
	}
	for _, line := range strings.Split(value, "\n") {
		if separatorRe.MatchString(line) {
			return xerrors.Newf("field %q: value contains a separator line", key)
		}
	}
	c.set(k, strings.TrimSpace(value))
	return nil
}

// Get returns the field for key. A missing key yields an empty field,
// never an error; emptiness is checked with Field.IsEmpty.
func (c *Content) Get(key string) Field {
	k := normalizeKey(key)
	v, ok := c.values[k]
	return Field{Key: k, Value: v, exists: ok}
}

func (c *Content) Has(key string) bool {
	_, ok := c.values[normalizeKey(key)]
	return ok
}

func (c *Content) Remove(key string) {
	k := normalizeKey(key)
	if _, ok := c.values[k]; !ok {
		return
	}
	delete(c.values, k)
	for i, e := range c.keys {
		if e == k {
			c.keys = append(c.keys[:i], c.keys[i+1:]...)
			break
		}
	}
}

// Keys returns field keys in insertion order.
func (c *Content) Keys() []string {
	out := make([]string, len(c.keys))
	copy(out, c.keys)
	return out
}

func (c *Content) Len() int { return len(c.keys) }

func (c *Content) Clone() *Content {
	out := New()
	for _, k := range c.keys {
		out.set(k, c.values[k])
	}
	return out
}

// Map returns the fields as a plain map, for JSON responses.
func (c *Content) Map() map[string]string {
	out := make(map[string]string, len(c.keys))
	for k, v := range c.values {
		out[k] = v
	}
	return out
}

// Marshal renders the content in the flat text format. Keys are written
// with an uppercased first letter; output is stable for a given content.
func (c *Content) Marshal() []byte {
	var b bytes.Buffer
	for i, k := range c.keys {
		if i > 0 {
			b.WriteString("\n" + separator + "\n\n")
		}
		b.WriteString(displayKey(k))
		b.WriteString(": ")
		b.WriteString(c.values[k])
		b.WriteString("\n")
	}
	return b.Bytes()
}

func displayKey(k string) string {
	if k == "" {
		return k
	}
	return strings.ToUpper(k[:1]) + k[1:]
}
