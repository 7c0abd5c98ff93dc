// Package protocol defines the OCS sharing API wire types shared by the
// client and the reference server.
package protocol

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	// APIPath is the sharing API prefix, relative to the instance base URL.
	APIPath = "/ocs/v1.php/apps/files_sharing/api/v1"
	// SharesPath is the share collection endpoint.
	SharesPath = APIPath + "/shares"
	// PublicSharePath is appended to the base URL, followed by a token,
	// to build the public access URL of a link share.
	PublicSharePath = "/public.php?service=files&t="
)

// OCS meta status codes. HTTP 200 does not imply success: only StatusOK does.
const (
	StatusOK           = 100
	StatusBadRequest   = 400
	StatusForbidden    = 403
	StatusNotFound     = 404
	StatusServerError  = 996
	StatusUnauthorized = 997
)

// Form field names of the create and update requests.
const (
	FieldPath         = "path"
	FieldShareType    = "shareType"
	FieldShareWith    = "shareWith"
	FieldPublicUpload = "publicUpload"
	FieldPassword     = "password"
	FieldPermissions  = "permissions"
	FieldExpireDate   = "expireDate"
)

// Envelope is the outer object of every OCS response.
type Envelope struct {
	OCS Body `json:"ocs"`
}

// Body holds the response metadata and its payload.
type Body struct {
	Meta Meta            `json:"meta"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Meta carries the OCS-level outcome of a request.
type Meta struct {
	Status     string `json:"status"`
	StatusCode int    `json:"statuscode"`
	Message    string `json:"message"`
}

// OK reports whether the meta block signals success.
func (m Meta) OK() bool {
	return m.StatusCode == StatusOK
}

// NewEnvelope builds an envelope around data. A nil data produces an empty array,
// which is what the API returns for operations without a payload.
func NewEnvelope(statusCode int, message string, data any) (*Envelope, error) {
	status := "ok"
	if statusCode != StatusOK {
		status = "failure"
	}
	if data == nil {
		data = []any{}
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshal data: %w", err)
	}
	return &Envelope{OCS: Body{
		Meta: Meta{Status: status, StatusCode: statusCode, Message: message},
		Data: raw,
	}}, nil
}

// ShareElement is a single share as serialized by the API. Only the fields
// listed here are read; anything else in the payload is ignored.
type ShareElement struct {
	ID                   Int     `json:"id"`
	ShareType            Int     `json:"share_type"`
	UIDOwner             string  `json:"uid_owner"`
	DisplayNameOwner     string  `json:"displayname_owner"`
	Permissions          Int     `json:"permissions"`
	STime                Int     `json:"stime"`
	Expiration           *string `json:"expiration"`
	Token                *string `json:"token"`
	Path                 string  `json:"path"`
	ItemType             string  `json:"item_type"`
	FileTarget           string  `json:"file_target"`
	ShareWith            *string `json:"share_with"`
	ShareWithDisplayName *string `json:"share_with_displayname"`
	URL                  string  `json:"url,omitempty"`
}

// ElementData wraps a single share in GET /shares/{id} responses.
type ElementData struct {
	Element ShareElement `json:"element"`
}

// CreatedData is the payload of a successful create. Only the id is relied upon.
type CreatedData struct {
	ID    Int    `json:"id"`
	URL   string `json:"url,omitempty"`
	Token string `json:"token,omitempty"`
}

// Int decodes integers that servers send either as JSON numbers or as strings.
type Int int64

// UnmarshalJSON implements json.Unmarshaler.
func (i *Int) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if s == "" || s == "null" {
		*i = 0
		return nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("protocol: invalid integer %s", b)
	}
	*i = Int(n)
	return nil
}

// StringPtr returns nil for the empty string, so the field encodes as null.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Deref returns the pointed-to string, or "" for nil.
func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

const (
	// DateLayout is the format of the expireDate request field (DD-MM-YYYY).
	DateLayout = "02-01-2006"
	// ExpirationLayout is the format of the expiration response field.
	ExpirationLayout = "2006-01-02 15:04:05"
)

// FormatDate renders t as an expireDate field value.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// ParseDate parses an expireDate field value. ISO dates are accepted as well.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{DateLayout, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q, want DD-MM-YYYY", s)
}

// FormatExpiration renders t as an expiration response field.
func FormatExpiration(t time.Time) string {
	return t.Format(ExpirationLayout)
}

// ParseExpiration parses an expiration response field.
func ParseExpiration(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{ExpirationLayout, "2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid expiration %q", s)
}
