package contentfile

import (
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/keithlinneman/quarry/internal/xerrors"
)

// Field is a single content value with typed accessors. Fields are
// plain values; converting never mutates the underlying content.
type Field struct {
	Key    string
	Value  string
	exists bool
}

// Exists reports whether the field was present in the content,
// as opposed to a zero field returned for a missing key.
func (f Field) Exists() bool { return f.exists }

func (f Field) IsEmpty() bool { return strings.TrimSpace(f.Value) == "" }

func (f Field) String() string { return f.Value }

// Or returns f unless it is empty, in which case it returns a field
// carrying the fallback value.
func (f Field) Or(fallback string) Field {
	if f.IsEmpty() {
		return Field{Key: f.Key, Value: fallback}
	}
	return f
}

func (f Field) Int() (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(f.Value))
	if err != nil {
		return 0, xerrors.Wrapf(err, "field %q", f.Key)
	}
	return n, nil
}

func (f Field) IntOr(def int) int {
	if n, err := f.Int(); err == nil {
		return n
	}
	return def
}

func (f Field) Float() (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(f.Value), 64)
	if err != nil {
		return 0, xerrors.Wrapf(err, "field %q", f.Key)
	}
	return v, nil
}

// Bool accepts true/false, yes/no, on/off, 1/0. Empty is false.
func (f Field) Bool() bool {
	switch strings.ToLower(strings.TrimSpace(f.Value)) {
	case "true", "yes", "on", "1":
		return true
	}
	return false
}

// dateLayouts in order of preference. Content authors mostly write
// plain dates; RFC3339 covers machine-written timestamps.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

func (f Field) Date() (time.Time, error) {
	v := strings.TrimSpace(f.Value)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t, nil
		}
	}
	return time.Time{}, xerrors.Newf("field %q: cannot parse date %q", f.Key, v)
}

// Split splits on sep (default comma), trimming whitespace and dropping
// empty items.
func (f Field) Split(sep string) []string {
	if sep == "" {
		sep = ","
	}
	parts := strings.Split(f.Value, sep)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// Lines returns non-empty trimmed lines of a multiline value.
func (f Field) Lines() []string {
	return f.Split("\n")
}

// YAML decodes a structured value (list or map written inline in the
// content file) into dst.
func (f Field) YAML(dst any) error {
	if err := yaml.Unmarshal([]byte(f.Value), dst); err != nil {
		return xerrors.Wrapf(err, "field %q: decode yaml", f.Key)
	}
	return nil
}
