package model

import (
	"time"

	"github.com/keithlinneman/quarry/internal/blueprint"
)

// Meta describes where a snapshot came from and how to tell whether a
// newer one exists.
type Meta struct {
	// Source is "disk" for local project directories or "bundle" for
	// published bundles pulled from object storage.
	Source string
	// Hash fingerprints the loaded content. For disk loads it covers
	// every file's path, size and mtime; for bundles it is the bundle
	// hash from the manifest.
	Hash string
	// Version is the content version string, when the source carries
	// one.
	Version string
}

// Snapshot is one fully-loaded, immutable view of a project: the
// content tree, the panel accounts and the blueprints. The manager
// swaps whole snapshots atomically; nothing inside one is ever
// mutated.
type Snapshot struct {
	Site       *Site
	Users      []*User
	Blueprints *blueprint.Registry

	Meta     Meta
	LoadedAt time.Time
}

// FindPage resolves a page id anywhere in the tree, or nil.
func (s *Snapshot) FindPage(id string) *Page { return s.Site.Find(id) }

// FindFile resolves a file id, or nil.
func (s *Snapshot) FindFile(id string) *File { return s.Site.File(id) }

// User returns the account with the given id, or nil.
func (s *Snapshot) User(id string) *User {
	for _, u := range s.Users {
		if u.id == id {
			return u
		}
	}
	return nil
}

// UserByEmail returns the account with the given email (compared
// case-insensitively), or nil.
func (s *Snapshot) UserByEmail(email string) *User {
	email = normalizeEmail(email)
	if email == "" {
		return nil
	}
	for _, u := range s.Users {
		if u.Email() == email {
			return u
		}
	}
	return nil
}

// PageCount counts every page in the tree, drafts included.
func (s *Snapshot) PageCount() int { return len(s.Site.Index()) }
