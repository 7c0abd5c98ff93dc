// Package ocs is a client for the OCS file sharing API.
package ocs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Azelphur/ownCloud-share-tools/internal/models"
	"github.com/Azelphur/ownCloud-share-tools/internal/protocol"
)

// Config holds client configuration.
type Config struct {
	// BaseURL is the instance root, e.g. https://example.com/owncloud.
	BaseURL  string
	Username string
	Password string
	// HTTPClient defaults to NewHTTPClient("", 0).
	HTTPClient *http.Client
	// Logger defaults to a no-op logger.
	Logger *zap.Logger
}

// Client issues share requests against a single account. It keeps no state
// between calls.
type Client struct {
	baseURL    string
	username   string
	password   string
	httpClient *http.Client
	log        *zap.Logger
}

// New creates a new client.
func New(cfg Config) *Client {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient, _ = NewHTTPClient("", 0)
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		username:   cfg.Username,
		password:   cfg.Password,
		httpClient: cfg.HTTPClient,
		log:        cfg.Logger,
	}
}

// BaseURL returns the instance root without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// PublicURL builds the public access URL for a link token.
func (c *Client) PublicURL(token string) string {
	if token == "" {
		return ""
	}
	return c.baseURL + protocol.PublicSharePath + token
}

// ListOptions filters ListShares.
type ListOptions struct {
	// Path restricts the listing to one file or folder. Empty lists every
	// share visible to the account.
	Path string
	// Reshares includes shares of Path made by other users.
	Reshares bool
	// Subfiles lists the shares of the items inside the folder Path.
	Subfiles bool
}

// ListShares returns the shares matching opts.
func (c *Client) ListShares(ctx context.Context, opts ListOptions) ([]*Share, error) {
	q := url.Values{}
	if opts.Path != "" {
		q.Set("path", opts.Path)
	}
	if opts.Reshares {
		q.Set("reshares", "true")
	}
	if opts.Subfiles {
		q.Set("subfiles", "true")
	}

	var elements []protocol.ShareElement
	err := c.do(ctx, http.MethodGet, protocol.SharesPath, q, nil, func(data json.RawMessage) error {
		if isEmptyData(data) {
			return nil
		}
		return json.Unmarshal(data, &elements)
	})
	if err != nil {
		return nil, err
	}

	shares := make([]*Share, 0, len(elements))
	for _, el := range elements {
		s, err := c.newShare(el)
		if err != nil {
			return nil, err
		}
		shares = append(shares, s)
	}
	return shares, nil
}

// GetShare fetches a single share. A missing share yields *NotFoundError.
func (c *Client) GetShare(ctx context.Context, id int) (*Share, error) {
	if id <= 0 {
		return nil, &ValidationError{Field: "id", Reason: "must be a positive integer"}
	}

	var el protocol.ShareElement
	err := c.do(ctx, http.MethodGet, sharePath(id), nil, nil, func(data json.RawMessage) error {
		return decodeElement(data, &el)
	})
	if err != nil {
		if ae, ok := AsAPIError(err); ok && ae.StatusCode == protocol.StatusNotFound {
			return nil, &NotFoundError{ID: id, Err: ae}
		}
		return nil, err
	}
	return c.newShare(el)
}

// CreateOptions describes a new share.
type CreateOptions struct {
	Path      string
	ShareType models.ShareType
	// ShareWith is the user or group name. It must be empty for public links.
	ShareWith string
	// PublicUpload allows uploads into a publicly linked folder.
	PublicUpload bool
	// Password protects a public link. Empty means no password.
	Password string
	// Permissions is sent only when non-nil; the server applies its default otherwise.
	Permissions *models.Permission
}

func (o CreateOptions) validate() error {
	if o.Path == "" {
		return &ValidationError{Field: "path", Reason: "is required"}
	}
	if !o.ShareType.Valid() {
		return &ValidationError{Field: "shareType", Reason: fmt.Sprintf("unsupported share type %d", int(o.ShareType))}
	}
	if o.ShareType.RequiresSubject() && o.ShareWith == "" {
		return &ValidationError{Field: "shareWith", Reason: "is required for " + o.ShareType.String() + " shares"}
	}
	if o.ShareType == models.ShareTypePublicLink && o.ShareWith != "" {
		return &ValidationError{Field: "shareWith", Reason: "must be empty for public links"}
	}
	if o.ShareType != models.ShareTypePublicLink {
		if o.Password != "" {
			return &ValidationError{Field: "password", Reason: "only public links can be password protected"}
		}
		if o.PublicUpload {
			return &ValidationError{Field: "publicUpload", Reason: "only applies to public links"}
		}
	}
	if o.Permissions != nil && !o.Permissions.Valid() {
		return &ValidationError{Field: "permissions", Reason: fmt.Sprintf("%d is not a valid mask", int(*o.Permissions))}
	}
	return nil
}

func (o CreateOptions) form() url.Values {
	f := url.Values{}
	f.Set(protocol.FieldPath, o.Path)
	f.Set(protocol.FieldShareType, strconv.Itoa(int(o.ShareType)))
	f.Set(protocol.FieldPublicUpload, boolDigit(o.PublicUpload))
	if o.ShareWith != "" {
		f.Set(protocol.FieldShareWith, o.ShareWith)
	}
	if o.Password != "" {
		f.Set(protocol.FieldPassword, o.Password)
	}
	if o.Permissions != nil {
		f.Set(protocol.FieldPermissions, strconv.Itoa(int(*o.Permissions)))
	}
	return f
}

// CreateShare creates a share and returns it as stored by the server. The
// create response only carries the new id, so the share is fetched again.
func (c *Client) CreateShare(ctx context.Context, opts CreateOptions) (*Share, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	var created protocol.CreatedData
	err := c.do(ctx, http.MethodPost, protocol.SharesPath, nil, opts.form(), func(data json.RawMessage) error {
		if err := json.Unmarshal(data, &created); err != nil {
			return err
		}
		if created.ID <= 0 {
			return errors.New("create response carries no share id")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.log.Info("share created",
		zap.Int64("id", int64(created.ID)),
		zap.String("path", opts.Path),
		zap.Stringer("type", opts.ShareType))
	return c.GetShare(ctx, int(created.ID))
}

// UpdateOptions lists the fields to change. Nil fields are not sent and stay
// as they are on the server.
type UpdateOptions struct {
	Permissions *models.Permission
	// Password: empty string removes the password, anything else sets it.
	Password *string
	// PublicUpload toggles uploads into a publicly linked folder.
	PublicUpload *bool
	// Expiration: the zero time removes the expiration date, anything else sets it.
	Expiration *time.Time
}

func (o UpdateOptions) empty() bool {
	return o.Permissions == nil && o.Password == nil && o.PublicUpload == nil && o.Expiration == nil
}

func (o UpdateOptions) form() url.Values {
	f := url.Values{}
	if o.Permissions != nil {
		f.Set(protocol.FieldPermissions, strconv.Itoa(int(*o.Permissions)))
	}
	if o.Password != nil {
		f.Set(protocol.FieldPassword, *o.Password)
	}
	if o.PublicUpload != nil {
		f.Set(protocol.FieldPublicUpload, strconv.FormatBool(*o.PublicUpload))
	}
	if o.Expiration != nil {
		if o.Expiration.IsZero() {
			f.Set(protocol.FieldExpireDate, "")
		} else {
			f.Set(protocol.FieldExpireDate, protocol.FormatDate(*o.Expiration))
		}
	}
	return f
}

// UpdateShare changes the fields set in opts.
func (c *Client) UpdateShare(ctx context.Context, id int, opts UpdateOptions) error {
	if id <= 0 {
		return &ValidationError{Field: "id", Reason: "must be a positive integer"}
	}
	if opts.empty() {
		return &ValidationError{Field: "update", Reason: "no field to change"}
	}
	if opts.Permissions != nil && !opts.Permissions.Valid() {
		return &ValidationError{Field: "permissions", Reason: fmt.Sprintf("%d is not a valid mask", int(*opts.Permissions))}
	}
	return c.do(ctx, http.MethodPut, sharePath(id), nil, opts.form(), nil)
}

// DeleteShare removes a share. Deleting twice fails with a not-found APIError.
func (c *Client) DeleteShare(ctx context.Context, id int) error {
	if id <= 0 {
		return &ValidationError{Field: "id", Reason: "must be a positive integer"}
	}
	return c.do(ctx, http.MethodDelete, sharePath(id), nil, nil, nil)
}

// do performs one API call. A nil decode discards the payload.
func (c *Client) do(ctx context.Context, method, path string, query, form url.Values, decode func(json.RawMessage) error) error {
	if query == nil {
		query = url.Values{}
	}
	query.Set("format", "json")
	endpoint := c.baseURL + path + "?" + query.Encode()

	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return &TransportError{Method: method, URL: endpoint, Err: err}
	}
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("OCS-APIRequest", "true")
	req.SetBasicAuth(c.username, c.password)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &TransportError{Method: method, URL: endpoint, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &TransportError{
			Method:     method,
			URL:        endpoint,
			StatusCode: resp.StatusCode,
			Err:        errors.New(http.StatusText(resp.StatusCode)),
		}
	}

	var env protocol.Envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return &TransportError{
			Method:     method,
			URL:        endpoint,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("invalid response: %w", err),
		}
	}

	meta := env.OCS.Meta
	c.log.Debug("ocs request",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("http_status", resp.StatusCode),
		zap.Int("ocs_status", meta.StatusCode))

	if !meta.OK() {
		return newAPIError(meta)
	}
	if decode == nil {
		return nil
	}
	if err := decode(env.OCS.Data); err != nil {
		return &TransportError{
			Method:     method,
			URL:        endpoint,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("invalid payload: %w", err),
		}
	}
	return nil
}

func sharePath(id int) string {
	return protocol.SharesPath + "/" + strconv.Itoa(id)
}

func boolDigit(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func isEmptyData(data json.RawMessage) bool {
	s := strings.TrimSpace(string(data))
	return s == "" || s == "null" || s == "{}" || s == "[]"
}

// decodeElement accepts both {"element": {...}} and the [{...}] shape some
// server versions return for single-share lookups.
func decodeElement(data json.RawMessage, el *protocol.ShareElement) error {
	s := strings.TrimSpace(string(data))
	if strings.HasPrefix(s, "[") {
		var list []protocol.ShareElement
		if err := json.Unmarshal(data, &list); err != nil {
			return err
		}
		if len(list) == 0 {
			return errors.New("empty share payload")
		}
		*el = list[0]
		return nil
	}
	var wrapped protocol.ElementData
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return err
	}
	*el = wrapped.Element
	return nil
}
