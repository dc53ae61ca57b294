// Package datauri implements the inline image encoding shared by every flow:
// data:<mimetype>;base64,<payload>.
package datauri

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/vincent-petithory/dataurl"
)

const (
	scheme    = "data:"
	separator = ";base64,"
)

var (
	ErrNotDataURI     = errors.New("not a data URI")
	ErrMissingMIME    = errors.New("missing mime type")
	ErrNotBase64      = errors.New("payload is not base64 encoded")
	ErrEmptyPayload   = errors.New("empty payload")
	ErrInvalidPayload = errors.New("invalid base64 payload")
)

// URI is a parsed data URI. Raw keeps the exact source text so that a
// validated artifact round-trips unchanged.
type URI struct {
	Raw         string
	ContentType string
	Data        []byte
}

// Parse validates s against the data URI grammar and decodes its payload.
func Parse(s string) (*URI, error) {
	if !strings.HasPrefix(s, scheme) {
		return nil, ErrNotDataURI
	}

	rest := s[len(scheme):]
	idx := strings.Index(rest, separator)
	if idx < 0 {
		return nil, ErrNotBase64
	}

	mime := rest[:idx]
	if !validMIME(mime) {
		return nil, fmt.Errorf("%w: %q", ErrMissingMIME, mime)
	}

	if rest[idx+len(separator):] == "" {
		return nil, ErrEmptyPayload
	}

	du, err := dataurl.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if len(du.Data) == 0 {
		return nil, ErrEmptyPayload
	}

	return &URI{
		Raw:         s,
		ContentType: du.ContentType(),
		Data:        du.Data,
	}, nil
}

// Valid reports whether s is a well-formed, non-empty data URI.
func Valid(s string) bool {
	_, err := Parse(s)
	return err == nil
}

// Encode builds a data URI from raw bytes and a mime type. Parameters on
// the mime type are dropped; an unusable type falls back to octet-stream.
func Encode(contentType string, data []byte) string {
	mime, _, _ := strings.Cut(contentType, ";")
	mime = strings.TrimSpace(mime)
	if !validMIME(mime) {
		mime = "application/octet-stream"
	}
	return dataurl.New(data, mime).String()
}

// EncodeDetect builds a data URI, sniffing the mime type from the bytes.
func EncodeDetect(data []byte) string {
	return Encode(http.DetectContentType(data), data)
}

// Describe summarizes a data URI without its payload, for logs and history.
func Describe(s string) string {
	u, err := Parse(s)
	if err != nil {
		return "<invalid data uri>"
	}
	return fmt.Sprintf("%s (%d bytes)", u.ContentType, len(u.Data))
}

func validMIME(mime string) bool {
	if strings.ContainsAny(mime, "; ,") {
		return false
	}
	typ, sub, ok := strings.Cut(mime, "/")
	return ok && typ != "" && sub != ""
}
