package model

import (
	"fmt"
	"strconv"
	"strings"
)

// Status describes where a page sits in the publishing lifecycle.
// It is derived entirely from the page's position on disk: a numeric
// dirname prefix means listed, a plain dirname means unlisted, and
// anything under a _drafts directory is a draft.
type Status string

const (
	StatusListed   Status = "listed"
	StatusUnlisted Status = "unlisted"
	StatusDraft    Status = "draft"
)

func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusListed, StatusUnlisted, StatusDraft:
		return Status(s), nil
	}
	return "", fmt.Errorf("unknown status %q", s)
}

// DraftsDirname is the directory that holds draft pages inside a parent.
const DraftsDirname = "_drafts"

// SplitDirname separates a numeric sorting prefix from the slug.
// "2_about" → (2, "about"); "error" → (nil, "error").
func SplitDirname(dirname string) (num *int, slug string) {
	idx := strings.Index(dirname, "_")
	if idx <= 0 {
		return nil, dirname
	}
	n, err := strconv.Atoi(dirname[:idx])
	if err != nil || n < 0 {
		return nil, dirname
	}
	return &n, dirname[idx+1:]
}

// JoinDirname renders a dirname from a sorting number and slug.
func JoinDirname(num *int, slug string) string {
	if num == nil {
		return slug
	}
	return strconv.Itoa(*num) + "_" + slug
}
