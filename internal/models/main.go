// Package models defines the core data structures for shares, permissions and users.
package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ShareType identifies who a share grants access to. The numeric values are
// the ones used on the wire by the sharing API.
type ShareType int

const (
	// ShareTypeUser shares with a single user account.
	ShareTypeUser ShareType = 0
	// ShareTypeGroup shares with every member of a group.
	ShareTypeGroup ShareType = 1
	// ShareTypePublicLink exposes the item through a tokenized URL.
	ShareTypePublicLink ShareType = 3
)

// Valid reports whether t is one of the supported share types.
func (t ShareType) Valid() bool {
	switch t {
	case ShareTypeUser, ShareTypeGroup, ShareTypePublicLink:
		return true
	}
	return false
}

// RequiresSubject reports whether shares of this type name a user or group.
func (t ShareType) RequiresSubject() bool {
	return t == ShareTypeUser || t == ShareTypeGroup
}

func (t ShareType) String() string {
	switch t {
	case ShareTypeUser:
		return "user"
	case ShareTypeGroup:
		return "group"
	case ShareTypePublicLink:
		return "public"
	default:
		return "unknown(" + strconv.Itoa(int(t)) + ")"
	}
}

// ParseShareType accepts either a type name ("user", "group", "public", "link")
// or its numeric wire value.
func ParseShareType(s string) (ShareType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "user", "0":
		return ShareTypeUser, nil
	case "group", "1":
		return ShareTypeGroup, nil
	case "public", "link", "public-link", "3":
		return ShareTypePublicLink, nil
	}
	return 0, fmt.Errorf("unknown share type %q", s)
}

// Permission is a bitmask of capability flags granted by a share.
type Permission int

const (
	PermissionRead   Permission = 1
	PermissionUpdate Permission = 2
	PermissionCreate Permission = 4
	PermissionDelete Permission = 8
	PermissionShare  Permission = 16

	// PermissionAll is every capability flag combined.
	PermissionAll = PermissionRead | PermissionUpdate | PermissionCreate | PermissionDelete | PermissionShare
)

// Has reports whether every bit of flag is set in p.
func (p Permission) Has(flag Permission) bool {
	return p&flag == flag
}

// Valid reports whether p only contains known flags.
func (p Permission) Valid() bool {
	return p >= 0 && p&^PermissionAll == 0
}

func (p Permission) String() string {
	if p == 0 {
		return "none"
	}
	var names []string
	for _, f := range []struct {
		flag Permission
		name string
	}{
		{PermissionRead, "read"},
		{PermissionUpdate, "update"},
		{PermissionCreate, "create"},
		{PermissionDelete, "delete"},
		{PermissionShare, "share"},
	} {
		if p.Has(f.flag) {
			names = append(names, f.name)
		}
	}
	if rest := p &^ PermissionAll; rest != 0 {
		names = append(names, strconv.Itoa(int(rest)))
	}
	return strings.Join(names, "|")
}

// User represents an account of the reference share server.
type User struct {
	// Login is the name used for basic authentication.
	Login string
	// PasswordHash is the bcrypt hash of the user's password.
	PasswordHash []byte
}

// Share is a share as stored by the reference share server.
type Share struct {
	// ID is assigned by the store on creation.
	ID int64
	// Owner is the login of the user who created the share.
	Owner string
	// ShareType says who the share is for.
	ShareType ShareType
	// ShareWith names the user or group; empty for public links.
	ShareWith string
	// Path is the cloud-relative path of the shared item.
	Path string
	// ItemType is "file" or "folder".
	ItemType string
	// Permissions is the granted capability mask.
	Permissions Permission
	// Token is the public-link token; empty for user and group shares.
	Token string
	// PasswordHash protects a public link when non-empty.
	PasswordHash string
	// Expiration is the last day the share is valid, if any.
	Expiration *time.Time
	// CreatedAt is when the share was stored.
	CreatedAt time.Time
}

// ShareFilter narrows a share listing.
type ShareFilter struct {
	// Owner restricts results to shares created by this login.
	// Ignored when Reshares is set and Path is non-empty.
	Owner string
	// Path restricts results to shares of this item. Empty means all.
	Path string
	// Subfiles returns shares of items inside Path instead of Path itself.
	Subfiles bool
	// Reshares includes shares of Path created by other users.
	Reshares bool
}
