package http

import (
	"context"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/Azelphur/ownCloud-share-tools/internal/metrics"
	"github.com/Azelphur/ownCloud-share-tools/internal/middleware"
	"github.com/Azelphur/ownCloud-share-tools/internal/models"
	"github.com/Azelphur/ownCloud-share-tools/internal/protocol"
	"github.com/Azelphur/ownCloud-share-tools/internal/service"
)

// passwordPlaceholder stands in for the password of a protected public link.
// Clients only test whether share_with is set.
const passwordPlaceholder = "***"

// ShareService defines the share operations required by the ShareHandler.
type ShareService interface {
	Create(ctx context.Context, owner string, in service.CreateShareInput) (*models.Share, error)
	Get(ctx context.Context, owner string, id int64) (*models.Share, error)
	List(ctx context.Context, owner string, f models.ShareFilter) ([]models.Share, error)
	Update(ctx context.Context, owner string, id int64, in service.UpdateShareInput) (*models.Share, error)
	Delete(ctx context.Context, owner string, id int64) (*models.Share, error)
}

// ShareHandler serves the OCS share endpoints.
type ShareHandler struct {
	Shares ShareService
	// PublicURL is the externally visible base URL used in link URLs.
	// When empty it is derived from the request.
	PublicURL string
	Logger    *zap.Logger
}

func (h *ShareHandler) log() *zap.Logger {
	if h.Logger == nil {
		return zap.NewNop()
	}
	return h.Logger
}

// List handles GET /shares. Optional query parameters: path, reshares, subfiles.
func (h *ShareHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := models.ShareFilter{
		Path:     q.Get(protocol.FieldPath),
		Reshares: isTrue(q.Get("reshares")),
		Subfiles: isTrue(q.Get("subfiles")),
	}
	shares, err := h.Shares.List(r.Context(), middleware.GetUserIDFromContext(r.Context()), f)
	if err != nil {
		writeError(w, h.log(), err)
		return
	}
	base := h.baseURL(r)
	elements := make([]protocol.ShareElement, 0, len(shares))
	for i := range shares {
		elements = append(elements, toElement(&shares[i], base))
	}
	writeOCS(w, h.log(), protocol.StatusOK, "", elements)
}

// Get handles GET /shares/{id}.
func (h *ShareHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := shareID(r)
	if !ok {
		writeOCS(w, h.log(), protocol.StatusNotFound, msgShareNotFound, nil)
		return
	}
	sh, err := h.Shares.Get(r.Context(), middleware.GetUserIDFromContext(r.Context()), id)
	if err != nil {
		writeError(w, h.log(), err)
		return
	}
	writeOCS(w, h.log(), protocol.StatusOK, "", protocol.ElementData{Element: toElement(sh, h.baseURL(r))})
}

// Create handles POST /shares with a form body.
func (h *ShareHandler) Create(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeOCS(w, h.log(), protocol.StatusBadRequest, "invalid form body", nil)
		return
	}
	in := service.CreateShareInput{
		Path:      r.PostForm.Get(protocol.FieldPath),
		ShareWith: r.PostForm.Get(protocol.FieldShareWith),
		Password:  r.PostForm.Get(protocol.FieldPassword),
	}

	st, err := strconv.Atoi(r.PostForm.Get(protocol.FieldShareType))
	if err != nil {
		writeOCS(w, h.log(), protocol.StatusBadRequest, "unknown share type", nil)
		return
	}
	in.ShareType = models.ShareType(st)

	if v := r.PostForm.Get(protocol.FieldPublicUpload); v != "" {
		b, ok := parseBool(v)
		if !ok {
			writeOCS(w, h.log(), protocol.StatusBadRequest, "invalid publicUpload value", nil)
			return
		}
		in.PublicUpload = b
	}
	if _, set := r.PostForm[protocol.FieldPermissions]; set {
		p, ok := parsePermissions(r.PostForm.Get(protocol.FieldPermissions))
		if !ok {
			writeOCS(w, h.log(), protocol.StatusBadRequest, "invalid permissions", nil)
			return
		}
		in.Permissions = &p
	}

	sh, err := h.Shares.Create(r.Context(), middleware.GetUserIDFromContext(r.Context()), in)
	if err != nil {
		writeError(w, h.log(), err)
		return
	}
	metrics.RecordShareCreated(sh.ShareType.String())

	data := protocol.CreatedData{ID: protocol.Int(sh.ID)}
	if sh.ShareType == models.ShareTypePublicLink {
		data.Token = sh.Token
		data.URL = h.baseURL(r) + protocol.PublicSharePath + sh.Token
	}
	writeOCS(w, h.log(), protocol.StatusOK, "", data)
}

// Update handles PUT /shares/{id}. Only fields present in the form body are
// changed; every present field is applied.
func (h *ShareHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := shareID(r)
	if !ok {
		writeOCS(w, h.log(), protocol.StatusNotFound, msgShareNotFound, nil)
		return
	}
	if err := r.ParseForm(); err != nil {
		writeOCS(w, h.log(), protocol.StatusBadRequest, "invalid form body", nil)
		return
	}

	var in service.UpdateShareInput
	if vs, set := r.PostForm[protocol.FieldPermissions]; set {
		p, ok := parsePermissions(first(vs))
		if !ok {
			writeOCS(w, h.log(), protocol.StatusBadRequest, "invalid permissions", nil)
			return
		}
		in.Permissions = &p
	}
	if vs, set := r.PostForm[protocol.FieldPublicUpload]; set {
		b, ok := parseBool(first(vs))
		if !ok {
			writeOCS(w, h.log(), protocol.StatusBadRequest, "invalid publicUpload value", nil)
			return
		}
		in.PublicUpload = &b
	}
	if vs, set := r.PostForm[protocol.FieldPassword]; set {
		pw := first(vs)
		in.Password = &pw
	}
	if vs, set := r.PostForm[protocol.FieldExpireDate]; set {
		d := first(vs)
		in.ExpireDate = &d
	}

	if _, err := h.Shares.Update(r.Context(), middleware.GetUserIDFromContext(r.Context()), id, in); err != nil {
		writeError(w, h.log(), err)
		return
	}
	writeOCS(w, h.log(), protocol.StatusOK, "", nil)
}

// Delete handles DELETE /shares/{id}.
func (h *ShareHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := shareID(r)
	if !ok {
		writeOCS(w, h.log(), protocol.StatusNotFound, msgShareNotFound, nil)
		return
	}
	sh, err := h.Shares.Delete(r.Context(), middleware.GetUserIDFromContext(r.Context()), id)
	if err != nil {
		writeError(w, h.log(), err)
		return
	}
	metrics.RecordShareDeleted(sh.ShareType.String())
	writeOCS(w, h.log(), protocol.StatusOK, "", nil)
}

func (h *ShareHandler) baseURL(r *http.Request) string {
	if h.PublicURL != "" {
		return strings.TrimRight(h.PublicURL, "/")
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if p := r.Header.Get("X-Forwarded-Proto"); p != "" {
		scheme = p
	}
	return scheme + "://" + r.Host
}

func toElement(s *models.Share, baseURL string) protocol.ShareElement {
	el := protocol.ShareElement{
		ID:               protocol.Int(s.ID),
		ShareType:        protocol.Int(s.ShareType),
		UIDOwner:         s.Owner,
		DisplayNameOwner: s.Owner,
		Permissions:      protocol.Int(s.Permissions),
		STime:            protocol.Int(s.CreatedAt.Unix()),
		Path:             s.Path,
		ItemType:         s.ItemType,
		FileTarget:       "/" + path.Base(s.Path),
	}
	if s.Expiration != nil {
		el.Expiration = protocol.StringPtr(protocol.FormatExpiration(*s.Expiration))
	}
	if s.ShareType == models.ShareTypePublicLink {
		el.Token = protocol.StringPtr(s.Token)
		el.URL = baseURL + protocol.PublicSharePath + s.Token
		if s.PasswordHash != "" {
			el.ShareWith = protocol.StringPtr(passwordPlaceholder)
			el.ShareWithDisplayName = protocol.StringPtr(passwordPlaceholder)
		}
		return el
	}
	el.ShareWith = protocol.StringPtr(s.ShareWith)
	el.ShareWithDisplayName = protocol.StringPtr(s.ShareWith)
	return el
}

func shareID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func parsePermissions(s string) (models.Permission, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, false
	}
	return models.Permission(n), true
}

// parseBool accepts the 0/1 form sent on create and the true/false form sent on update.
func parseBool(s string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true":
		return true, true
	case "0", "false":
		return false, true
	}
	return false, false
}

func isTrue(s string) bool {
	b, _ := parseBool(s)
	return b
}

func first(vs []string) string {
	if len(vs) == 0 {
		return ""
	}
	return vs[0]
}
