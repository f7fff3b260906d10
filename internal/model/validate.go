package model

import (
	"fmt"
	"strings"

	"github.com/keithlinneman/quarry/internal/pathutil"
	"github.com/keithlinneman/quarry/internal/xerrors"
)

// ValidationError collects everything wrong with a snapshot so a
// rejected reload reports all problems at once.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("snapshot validation failed: %s", strings.Join(e.Problems, "; "))
}

// ValidateOptions tune snapshot validation.
type ValidateOptions struct {
	// RequireUsers rejects snapshots with no panel accounts. Enabled
	// when the panel is served, so a bad deploy cannot lock everyone
	// out silently.
	RequireUsers bool
}

// Validate checks a freshly-loaded snapshot before it is allowed to
// replace the active one.
func Validate(snap *Snapshot, opts ValidateOptions) error {
	if snap == nil {
		return xerrors.New("nil snapshot")
	}
	var problems []string

	seen := map[string]string{}
	for _, p := range snap.Site.Index() {
		if !pathutil.ValidSlug(p.slug) {
			problems = append(problems, fmt.Sprintf("page %s: invalid slug %q", p.relDir, p.slug))
		}
		id := p.Id()
		if prev, dup := seen[id]; dup {
			problems = append(problems, fmt.Sprintf("duplicate page id %q (%s and %s)", id, prev, p.relDir))
		} else {
			seen[id] = p.relDir
		}
	}

	emails := map[string]string{}
	for _, u := range snap.Users {
		email := u.Email()
		if email == "" {
			problems = append(problems, fmt.Sprintf("user %s: missing email", u.id))
			continue
		}
		if prev, dup := emails[email]; dup {
			problems = append(problems, fmt.Sprintf("duplicate user email %q (%s and %s)", email, prev, u.id))
		} else {
			emails[email] = u.id
		}
	}
	if opts.RequireUsers && len(snap.Users) == 0 {
		problems = append(problems, "no panel accounts defined")
	}

	if len(problems) > 0 {
		return xerrors.WithStack(&ValidationError{Problems: problems})
	}
	return nil
}
