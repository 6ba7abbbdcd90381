package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/edupacket-api/pkg/config"
)

// LocalGateway persists blobs on disk and serves them under a public base URL
// using the same versioned layout as the hosted provider.
type LocalGateway struct {
	baseDir string
	baseURL string
	now     func() time.Time
}

// NewLocalGateway ensures the base directory exists and returns a handle.
func NewLocalGateway(cfg config.BlobConfig) (*LocalGateway, error) {
	baseDir := cfg.LocalDir
	if baseDir == "" {
		baseDir = "./uploads"
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload directory: %w", err)
	}
	return &LocalGateway{
		baseDir: baseDir,
		baseURL: strings.TrimRight(cfg.PublicBaseURL, "/"),
		now:     time.Now,
	}, nil
}

// Upload copies the object body to disk under a fresh key.
func (g *LocalGateway) Upload(ctx context.Context, obj Object) (*BlobReference, error) {
	if err := CheckMediaType(obj.ContentType); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	key := uuid.NewString()
	ext := extensionFor(obj.Name, obj.ContentType)
	path := filepath.Join(g.baseDir, key+ext)

	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create blob file: %w", err)
	}
	written, copyErr := io.Copy(file, obj.Body)
	closeErr := file.Close()
	if copyErr != nil || closeErr != nil {
		_ = os.Remove(path)
		if copyErr != nil {
			return nil, fmt.Errorf("write blob: %w", copyErr)
		}
		return nil, fmt.Errorf("close blob: %w", closeErr)
	}

	return &BlobReference{
		URL:         fmt.Sprintf("%s/v%d/%s%s", g.baseURL, g.now().Unix(), key, ext),
		Key:         key,
		ContentType: obj.ContentType,
		Size:        written,
	}, nil
}

// Delete removes the blob stored under key.
func (g *LocalGateway) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := g.locate(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ErrNotFound
		}
		return fmt.Errorf("delete blob: %w", err)
	}
	return nil
}

// Owns reports whether url was issued under this gateway's base URL.
func (g *LocalGateway) Owns(url string) bool {
	return g.baseURL != "" && strings.HasPrefix(url, g.baseURL+"/")
}

// Open returns a read-only handle for the blob stored under key.
func (g *LocalGateway) Open(key string) (*os.File, error) {
	path, err := g.locate(key)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("open blob: %w", err)
	}
	return file, nil
}

func (g *LocalGateway) locate(key string) (string, error) {
	if key == "" || strings.ContainsAny(key, `/\*?[`) || strings.Contains(key, "..") {
		return "", ErrNotFound
	}
	matches, err := filepath.Glob(filepath.Join(g.baseDir, key+".*"))
	if err != nil {
		return "", fmt.Errorf("locate blob: %w", err)
	}
	if len(matches) == 0 {
		exact := filepath.Join(g.baseDir, key)
		if _, err := os.Stat(exact); err == nil {
			return exact, nil
		}
		return "", ErrNotFound
	}
	return matches[0], nil
}

func extensionFor(name, contentType string) string {
	if ext := strings.ToLower(filepath.Ext(name)); ext != "" && !strings.ContainsAny(ext, `/\`) {
		return ext
	}
	if exts, err := mime.ExtensionsByType(contentType); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ".bin"
}
