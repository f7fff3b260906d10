// Package pathutil validates the path-like identifiers the CMS derives
// from directory and file names before they are used to touch disk.
package pathutil

import (
	"strings"

	"github.com/keithlinneman/quarry/internal/xerrors"
)

// HasDotSegments reports whether any path segment is "." or "..".
func HasDotSegments(p string) bool {
	for _, seg := range strings.Split(p, "/") {
		if seg == "." || seg == ".." {
			return true
		}
	}
	return false
}

// ValidSlug reports whether s is a safe page slug: non-empty, lowercase
// letters, digits and dashes, no leading/trailing dash.
func ValidSlug(s string) bool {
	if s == "" || strings.HasPrefix(s, "-") || strings.HasSuffix(s, "-") {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= '0' && r <= '9':
		case r == '-':
		default:
			return false
		}
	}
	return true
}

// CheckID validates a slash-separated page or file id. Every segment must
// be a valid slug, except a final file segment which may carry a dot.
func CheckID(id string) error {
	if id == "" {
		return xerrors.New("empty id")
	}
	if strings.Contains(id, "\\") || strings.Contains(id, "\x00") {
		return xerrors.Newf("invalid id %q", id)
	}
	if strings.HasPrefix(id, "/") || strings.HasSuffix(id, "/") {
		return xerrors.Newf("invalid id %q (leading or trailing slash)", id)
	}
	if HasDotSegments(id) {
		return xerrors.Newf("invalid id %q (dot segments)", id)
	}
	segs := strings.Split(id, "/")
	for i, seg := range segs {
		if i == len(segs)-1 && strings.Contains(seg, ".") {
			if err := CheckFilename(seg); err != nil {
				return err
			}
			continue
		}
		if !ValidSlug(seg) {
			return xerrors.Newf("invalid id segment %q", seg)
		}
	}
	return nil
}

// CheckFilename validates a single asset filename: no separators, no dot
// segments, at most one extension-bearing dot chain of safe characters.
func CheckFilename(name string) error {
	if name == "" {
		return xerrors.New("empty filename")
	}
	if strings.ContainsAny(name, "/\\\x00") {
		return xerrors.Newf("invalid filename %q", name)
	}
	if name == "." || name == ".." || strings.HasPrefix(name, ".") {
		return xerrors.Newf("invalid filename %q", name)
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '-' || r == '_' || r == '.' || r == '@':
		default:
			return xerrors.Newf("invalid character %q in filename %q", r, name)
		}
	}
	return nil
}
