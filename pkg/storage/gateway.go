package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"regexp"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/noah-isme/edupacket-api/pkg/config"
)

var (
	// ErrNotFound is returned by Delete when the provider has no blob for the key.
	ErrNotFound = errors.New("blob not found")
	// ErrMediaTypeRejected is returned for uploads whose declared type is video.
	ErrMediaTypeRejected = errors.New("video uploads are not allowed")
	// ErrKeyNotFound is returned when a URL carries no derivable storage key.
	ErrKeyNotFound = errors.New("storage key not derivable from url")
)

// Object is an upload request handed to a Gateway.
type Object struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader
}

// BlobReference identifies a stored blob.
type BlobReference struct {
	URL         string
	Key         string
	ContentType string
	Size        int64
}

// Gateway abstracts the external blob provider.
type Gateway interface {
	Upload(ctx context.Context, obj Object) (*BlobReference, error)
	Delete(ctx context.Context, key string) error
	// Owns reports whether url was issued by this gateway.
	Owns(url string) bool
}

// New returns the configured blob gateway and, for the local provider, the
// concrete store backing the /files route. Unknown providers are rejected.
func New(cfg config.BlobConfig) (Gateway, *LocalGateway, error) {
	switch cfg.Provider {
	case config.BlobProviderCloudinary:
		gw, err := NewCloudinaryGateway(cfg)
		if err != nil {
			return nil, nil, err
		}
		return gw, nil, nil
	case config.BlobProviderLocal, "":
		gw, err := NewLocalGateway(cfg)
		if err != nil {
			return nil, nil, err
		}
		return gw, gw, nil
	default:
		return nil, nil, fmt.Errorf("unknown blob provider %q", cfg.Provider)
	}
}

var versionedKeyPattern = regexp.MustCompile(`/v\d+/([^.]+)\.`)

// DeriveKey extracts the provider key from a versioned delivery URL of the
// form .../v<digits>/<key>.<ext>.
func DeriveKey(rawURL string) (string, error) {
	path := rawURL
	if parsed, err := url.Parse(rawURL); err == nil && parsed.Path != "" {
		path = parsed.Path
	}
	match := versionedKeyPattern.FindStringSubmatch(path)
	if len(match) < 2 || match[1] == "" {
		return "", ErrKeyNotFound
	}
	key, err := url.PathUnescape(match[1])
	if err != nil {
		return match[1], nil
	}
	return key, nil
}

// CheckMediaType rejects declared video content.
func CheckMediaType(contentType string) error {
	mediaType := strings.ToLower(strings.TrimSpace(contentType))
	if idx := strings.Index(mediaType, ";"); idx >= 0 {
		mediaType = strings.TrimSpace(mediaType[:idx])
	}
	if strings.HasPrefix(mediaType, "video/") {
		return ErrMediaTypeRejected
	}
	return nil
}

// ResolveContentType returns the declared type, sniffing the head of the
// content when the client declared nothing useful. The returned reader replays
// the sniffed bytes.
func ResolveContentType(declared string, body io.Reader) (string, io.Reader, error) {
	declared = strings.TrimSpace(declared)
	if declared != "" && declared != "application/octet-stream" {
		return declared, body, nil
	}
	head := make([]byte, 3072)
	n, err := io.ReadFull(body, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", nil, err
	}
	head = head[:n]
	detected := mimetype.Detect(head).String()
	return detected, io.MultiReader(bytes.NewReader(head), body), nil
}
