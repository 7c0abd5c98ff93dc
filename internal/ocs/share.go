package ocs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Azelphur/ownCloud-share-tools/internal/models"
	"github.com/Azelphur/ownCloud-share-tools/internal/permission"
	"github.com/Azelphur/ownCloud-share-tools/internal/protocol"
)

// Share is a share as reported by the server, bound to the client that fetched it.
type Share struct {
	ID          int
	Type        models.ShareType
	Path        string
	Permissions models.Permission
	// ShareWith is the recipient user or group. Always empty for public links.
	ShareWith            string
	ShareWithDisplayName string
	// Token identifies a public link. Empty for user and group shares.
	Token      string
	Expiration *time.Time
	// PasswordProtected is set for public links that require a password.
	PasswordProtected bool
	// PublicUpload is set for public links that accept uploads.
	PublicUpload bool
	ItemType     string
	FileTarget   string
	Owner        string
	CreatedAt    time.Time

	client  *Client
	deleted bool
}

func (c *Client) newShare(el protocol.ShareElement) (*Share, error) {
	if el.ID <= 0 {
		return nil, errors.New("share element without id")
	}
	s := &Share{
		ID:                   int(el.ID),
		Type:                 models.ShareType(el.ShareType),
		Path:                 el.Path,
		Permissions:          models.Permission(el.Permissions),
		ShareWithDisplayName: protocol.Deref(el.ShareWithDisplayName),
		Token:                protocol.Deref(el.Token),
		ItemType:             el.ItemType,
		FileTarget:           el.FileTarget,
		Owner:                el.UIDOwner,
		client:               c,
	}
	if el.STime > 0 {
		s.CreatedAt = time.Unix(int64(el.STime), 0).UTC()
	}
	if exp := protocol.Deref(el.Expiration); exp != "" {
		if t, err := protocol.ParseExpiration(exp); err == nil {
			s.Expiration = &t
		}
	}

	// For public links the server reports a password hash in share_with.
	if s.Type == models.ShareTypePublicLink {
		s.PasswordProtected = protocol.Deref(el.ShareWith) != ""
		s.PublicUpload = s.Permissions.Has(models.PermissionCreate)
		s.ShareWithDisplayName = ""
	} else {
		s.ShareWith = protocol.Deref(el.ShareWith)
	}
	return s, nil
}

// URL returns the public access URL of a link share, or "" for other shares.
func (s *Share) URL() string {
	if s.Type != models.ShareTypePublicLink || s.client == nil {
		return ""
	}
	return s.client.PublicURL(s.Token)
}

// Deleted reports whether Delete succeeded on this share.
func (s *Share) Deleted() bool {
	return s.deleted
}

func (s *Share) String() string {
	return fmt.Sprintf("share #%d", s.ID)
}

// Update sends opts to the server. On success only the fields that were sent
// are changed on s; the rest keep their last known value.
func (s *Share) Update(ctx context.Context, opts UpdateOptions) error {
	if s.deleted {
		return ErrShareDeleted
	}
	if err := s.client.UpdateShare(ctx, s.ID, opts); err != nil {
		return err
	}

	if opts.Permissions != nil {
		s.Permissions = *opts.Permissions
	}
	if opts.Password != nil {
		s.PasswordProtected = *opts.Password != ""
	}
	if opts.PublicUpload != nil {
		s.PublicUpload = *opts.PublicUpload
	}
	if opts.Expiration != nil {
		if opts.Expiration.IsZero() {
			s.Expiration = nil
		} else {
			exp := *opts.Expiration
			s.Expiration = &exp
		}
	}
	return nil
}

// Apply sets or clears one permission flag according to cmd.
func (s *Share) Apply(ctx context.Context, cmd permission.SetPermission) error {
	if cmd.ShareID != s.ID {
		return &ValidationError{Field: "id", Reason: fmt.Sprintf("%s does not target %s", cmd, s)}
	}
	mask := cmd.Apply(s.Permissions)
	return s.Update(ctx, UpdateOptions{Permissions: &mask})
}

// Delete removes the share. Every later operation on s returns ErrShareDeleted.
func (s *Share) Delete(ctx context.Context) error {
	if s.deleted {
		return ErrShareDeleted
	}
	if err := s.client.DeleteShare(ctx, s.ID); err != nil {
		return err
	}
	s.deleted = true
	return nil
}

// Refresh reloads every field from the server.
func (s *Share) Refresh(ctx context.Context) error {
	if s.deleted {
		return ErrShareDeleted
	}
	fresh, err := s.client.GetShare(ctx, s.ID)
	if err != nil {
		return err
	}
	*s = *fresh
	return nil
}
