// Package permission computes share permission masks from allow and deny
// requests.
package permission

import (
	"fmt"
	"strings"

	"github.com/Azelphur/ownCloud-share-tools/internal/models"
)

// Flags lists every capability flag in the order they are presented to users.
var Flags = []models.Permission{
	models.PermissionRead,
	models.PermissionUpdate,
	models.PermissionCreate,
	models.PermissionDelete,
	models.PermissionShare,
}

// FlagName returns the short name of a single flag ("read", "update", ...).
func FlagName(flag models.Permission) string {
	switch flag {
	case models.PermissionRead:
		return "read"
	case models.PermissionUpdate:
		return "update"
	case models.PermissionCreate:
		return "create"
	case models.PermissionDelete:
		return "delete"
	case models.PermissionShare:
		return "share"
	}
	return ""
}

// ParseFlag maps a flag name to its bit. "edit" is accepted for update.
func ParseFlag(name string) (models.Permission, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "read":
		return models.PermissionRead, nil
	case "update", "edit":
		return models.PermissionUpdate, nil
	case "create":
		return models.PermissionCreate, nil
	case "delete":
		return models.PermissionDelete, nil
	case "share", "reshare":
		return models.PermissionShare, nil
	}
	return 0, fmt.Errorf("unknown permission %q", name)
}

// Default is the mask used when a share is created without explicit permissions:
// read-only for public links, everything for user and group shares.
func Default(t models.ShareType) models.Permission {
	if t == models.ShareTypePublicLink {
		return models.PermissionRead
	}
	return models.PermissionAll
}

// Compute ORs every allow flag onto base, then clears every deny flag.
// Allows are always applied before denies, so a flag that is both allowed
// and denied ends up cleared.
func Compute(base models.Permission, allow, deny []models.Permission) models.Permission {
	mask := base
	for _, f := range allow {
		mask |= f
	}
	for _, f := range deny {
		mask &^= f
	}
	return mask
}

// Request collects allow and deny flags before they are applied against a
// base mask. The zero value is an empty request.
type Request struct {
	base  *models.Permission
	allow []models.Permission
	deny  []models.Permission
}

// SetBase sets an explicit base mask, overriding the type-derived default.
func (r *Request) SetBase(base models.Permission) {
	r.base = &base
}

// Allow records a flag to grant.
func (r *Request) Allow(flag models.Permission) {
	r.allow = append(r.allow, flag)
}

// Deny records a flag to revoke.
func (r *Request) Deny(flag models.Permission) {
	r.deny = append(r.deny, flag)
}

// Empty reports whether neither a base nor any flag was requested.
func (r *Request) Empty() bool {
	return r.base == nil && len(r.allow) == 0 && len(r.deny) == 0
}

// Resolve applies the request to the explicit base, or to the default for t
// when no base was set. ok is false for an empty request, in which case the
// returned mask is the default and callers should not send permissions at all.
func (r *Request) Resolve(t models.ShareType) (mask models.Permission, ok bool) {
	return r.ResolveFrom(Default(t))
}

// ResolveFrom is like Resolve but falls back to fallback instead of a
// type-derived default. Updates use it with the share's current mask.
func (r *Request) ResolveFrom(fallback models.Permission) (mask models.Permission, ok bool) {
	base := fallback
	if r.base != nil {
		base = *r.base
	}
	if r.Empty() {
		return base, false
	}
	return Compute(base, r.allow, r.deny), true
}

// SetPermission turns a single flag of a share on or off.
type SetPermission struct {
	ShareID int
	Flag    models.Permission
	Enabled bool
}

// Apply returns current with the command's flag set or cleared.
func (c SetPermission) Apply(current models.Permission) models.Permission {
	if c.Enabled {
		return Compute(current, []models.Permission{c.Flag}, nil)
	}
	return Compute(current, nil, []models.Permission{c.Flag})
}

func (c SetPermission) String() string {
	verb := "deny"
	if c.Enabled {
		verb = "allow"
	}
	return fmt.Sprintf("%s %s on share #%d", verb, FlagName(c.Flag), c.ShareID)
}
