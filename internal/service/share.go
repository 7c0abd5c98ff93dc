package service

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/Azelphur/ownCloud-share-tools/internal/db"
	"github.com/Azelphur/ownCloud-share-tools/internal/models"
	"github.com/Azelphur/ownCloud-share-tools/internal/permission"
	"github.com/Azelphur/ownCloud-share-tools/internal/protocol"
	"github.com/Azelphur/ownCloud-share-tools/internal/repository"
)

// ErrForbidden is returned when the caller may not perform the operation.
var ErrForbidden = errors.New("forbidden")

var errUploadOnFile = fmt.Errorf("%w: public upload is only possible for folders", ErrForbidden)

// InvalidArgumentError reports a request parameter the service rejects.
type InvalidArgumentError struct {
	Msg string
}

func (e *InvalidArgumentError) Error() string {
	return e.Msg
}

func invalid(format string, args ...any) error {
	return &InvalidArgumentError{Msg: fmt.Sprintf(format, args...)}
}

// ShareRepository defines the persistence operations needed by the ShareService.
type ShareRepository interface {
	CreateShare(ctx context.Context, s *models.Share) error
	GetShare(ctx context.Context, id int64) (*models.Share, error)
	ListShares(ctx context.Context, f models.ShareFilter) ([]models.Share, error)
	UpdateShare(ctx context.Context, s *models.Share) error
	DeleteShare(ctx context.Context, id int64) error
}

// UserLookup is the part of the user store the share service needs.
type UserLookup interface {
	UserExists(ctx context.Context, login string) (bool, error)
}

// CreateShareInput holds the parameters of a create request.
type CreateShareInput struct {
	Path         string
	ShareType    models.ShareType
	ShareWith    string
	PublicUpload bool
	Password     string
	// Permissions is nil when the request did not carry a mask.
	Permissions *models.Permission
}

// UpdateShareInput holds the parameters of an update request. Nil fields are
// left unchanged. An empty Password clears it; an empty ExpireDate removes the
// expiration.
type UpdateShareInput struct {
	Permissions  *models.Permission
	Password     *string
	PublicUpload *bool
	ExpireDate   *string
}

func (in UpdateShareInput) empty() bool {
	return in.Permissions == nil && in.Password == nil && in.PublicUpload == nil && in.ExpireDate == nil
}

// ShareService implements the share lifecycle for authenticated owners.
type ShareService struct {
	shares ShareRepository
	users  UserLookup
	log    *zap.Logger
	now    func() time.Time
}

// NewShareService constructs a ShareService. A nil logger discards output.
func NewShareService(shares ShareRepository, users UserLookup, log *zap.Logger) *ShareService {
	if log == nil {
		log = zap.NewNop()
	}
	return &ShareService{shares: shares, users: users, log: log, now: time.Now}
}

// Create validates in and stores a new share owned by owner.
func (s *ShareService) Create(ctx context.Context, owner string, in CreateShareInput) (*models.Share, error) {
	if strings.TrimSpace(in.Path) == "" {
		return nil, invalid("please specify a file or folder path")
	}
	if !in.ShareType.Valid() {
		return nil, invalid("unknown share type")
	}

	sh := &models.Share{
		Owner:     owner,
		ShareType: in.ShareType,
		Path:      cleanPath(in.Path),
		ItemType:  itemType(in.Path),
	}

	switch in.ShareType {
	case models.ShareTypeUser:
		if in.ShareWith == "" {
			return nil, invalid("please specify a valid user")
		}
		if in.ShareWith == owner {
			return nil, invalid("you can not share with yourself")
		}
		ok, err := s.users.UserExists(ctx, in.ShareWith)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, invalid("please specify a valid user")
		}
		sh.ShareWith = in.ShareWith
	case models.ShareTypeGroup:
		if in.ShareWith == "" {
			return nil, invalid("please specify a valid group")
		}
		sh.ShareWith = in.ShareWith
	case models.ShareTypePublicLink:
		if in.ShareWith != "" {
			return nil, invalid("public links can not be shared with a user or group")
		}
		sh.Token = newToken()
	}

	if in.Password != "" && in.ShareType != models.ShareTypePublicLink {
		return nil, invalid("passwords are only supported on public links")
	}
	if in.PublicUpload && in.ShareType != models.ShareTypePublicLink {
		return nil, invalid("public upload is only supported on public links")
	}

	perms := permission.Default(in.ShareType)
	if in.Permissions != nil {
		perms = *in.Permissions
	}
	if in.PublicUpload {
		if sh.ItemType == "file" {
			return nil, errUploadOnFile
		}
		perms |= models.PermissionCreate | models.PermissionUpdate
	}
	if err := checkPermissions(perms); err != nil {
		return nil, err
	}
	sh.Permissions = perms

	if in.Password != "" {
		hash, err := hashPassword(in.Password)
		if err != nil {
			return nil, err
		}
		sh.PasswordHash = hash
	}

	if err := s.shares.CreateShare(ctx, sh); err != nil {
		return nil, err
	}
	s.log.Info("share created",
		zap.Int64("id", sh.ID),
		zap.String("owner", owner),
		zap.Stringer("type", sh.ShareType),
		zap.String("path", sh.Path),
	)
	return sh, nil
}

// Get returns one of owner's shares.
func (s *ShareService) Get(ctx context.Context, owner string, id int64) (*models.Share, error) {
	sh, err := s.shares.GetShare(ctx, id)
	if err != nil {
		return nil, err
	}
	if sh.Owner != owner {
		return nil, repository.ErrShareNotFound
	}
	return sh, nil
}

// List returns the shares visible to owner under f. f.Owner is overwritten.
func (s *ShareService) List(ctx context.Context, owner string, f models.ShareFilter) ([]models.Share, error) {
	f.Owner = owner
	if f.Path != "" {
		f.Path = cleanPath(f.Path)
	}
	if f.Subfiles && f.Path == "" {
		return nil, invalid("subfiles requires a path")
	}
	return s.shares.ListShares(ctx, f)
}

// Update applies every set field of in to one of owner's shares.
func (s *ShareService) Update(ctx context.Context, owner string, id int64, in UpdateShareInput) (*models.Share, error) {
	if in.empty() {
		return nil, invalid("wrong or no update parameter given")
	}
	sh, err := s.Get(ctx, owner, id)
	if err != nil {
		return nil, err
	}
	public := sh.ShareType == models.ShareTypePublicLink

	if in.Permissions != nil {
		if err := checkPermissions(*in.Permissions); err != nil {
			return nil, err
		}
		sh.Permissions = *in.Permissions
	}
	if in.PublicUpload != nil {
		if !public {
			return nil, invalid("public upload is only supported on public links")
		}
		if *in.PublicUpload {
			if sh.ItemType == "file" {
				return nil, errUploadOnFile
			}
			sh.Permissions |= models.PermissionCreate | models.PermissionUpdate
		} else {
			sh.Permissions &^= models.PermissionCreate | models.PermissionUpdate | models.PermissionDelete
		}
	}
	if in.Password != nil {
		if !public {
			return nil, invalid("passwords are only supported on public links")
		}
		sh.PasswordHash = ""
		if *in.Password != "" {
			hash, err := hashPassword(*in.Password)
			if err != nil {
				return nil, err
			}
			sh.PasswordHash = hash
		}
	}
	if in.ExpireDate != nil {
		if *in.ExpireDate == "" {
			sh.Expiration = nil
		} else {
			d, err := protocol.ParseDate(*in.ExpireDate)
			if err != nil {
				return nil, invalid("invalid date, date format must be DD-MM-YYYY")
			}
			if d.Before(db.StartOfDay(s.now())) {
				return nil, invalid("expiration date is in the past")
			}
			sh.Expiration = &d
		}
	}

	if err := s.shares.UpdateShare(ctx, sh); err != nil {
		return nil, err
	}
	s.log.Info("share updated", zap.Int64("id", sh.ID), zap.Stringer("permissions", sh.Permissions))
	return sh, nil
}

// Delete removes one of owner's shares.
func (s *ShareService) Delete(ctx context.Context, owner string, id int64) (*models.Share, error) {
	sh, err := s.Get(ctx, owner, id)
	if err != nil {
		return nil, err
	}
	if err := s.shares.DeleteShare(ctx, id); err != nil {
		return nil, err
	}
	s.log.Info("share deleted", zap.Int64("id", id), zap.String("owner", owner))
	return sh, nil
}

func checkPermissions(p models.Permission) error {
	if !p.Valid() || p == 0 {
		return invalid("invalid permissions")
	}
	if !p.Has(models.PermissionRead) {
		return invalid("shares must at least grant read permission")
	}
	return nil
}

func hashPassword(pw string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

func newToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

func cleanPath(p string) string {
	return path.Clean("/" + strings.TrimSpace(p))
}

// itemType guesses the kind of item from its name; the server keeps no file tree.
func itemType(p string) string {
	if path.Ext(strings.TrimRight(p, "/")) != "" && !strings.HasSuffix(p, "/") {
		return "file"
	}
	return "folder"
}
