package storage

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"

	"github.com/noah-isme/edupacket-api/pkg/config"
)

const cloudinaryHost = "res.cloudinary.com"

type cloudinaryAPI interface {
	Upload(ctx context.Context, file interface{}, params uploader.UploadParams) (*uploader.UploadResult, error)
	Destroy(ctx context.Context, params uploader.DestroyParams) (*uploader.DestroyResult, error)
}

// CloudinaryGateway stores blobs in a Cloudinary account.
type CloudinaryGateway struct {
	api       cloudinaryAPI
	cloudName string
	folder    string
}

// NewCloudinaryGateway builds a gateway from the blob configuration.
func NewCloudinaryGateway(cfg config.BlobConfig) (*CloudinaryGateway, error) {
	if cfg.CloudName == "" || cfg.APIKey == "" || cfg.APISecret == "" {
		return nil, fmt.Errorf("cloudinary credentials are not configured")
	}
	cld, err := cloudinary.NewFromParams(cfg.CloudName, cfg.APIKey, cfg.APISecret)
	if err != nil {
		return nil, fmt.Errorf("init cloudinary: %w", err)
	}
	return newCloudinaryGateway(&cld.Upload, cfg.CloudName, cfg.Folder), nil
}

func newCloudinaryGateway(api cloudinaryAPI, cloudName, folder string) *CloudinaryGateway {
	return &CloudinaryGateway{api: api, cloudName: cloudName, folder: folder}
}

// Upload sends the object to Cloudinary with automatic resource detection.
func (g *CloudinaryGateway) Upload(ctx context.Context, obj Object) (*BlobReference, error) {
	if err := CheckMediaType(obj.ContentType); err != nil {
		return nil, err
	}
	res, err := g.api.Upload(ctx, obj.Body, uploader.UploadParams{
		Folder:       g.folder,
		ResourceType: "auto",
	})
	if err != nil {
		return nil, fmt.Errorf("cloudinary upload: %w", err)
	}
	if res == nil {
		return nil, fmt.Errorf("cloudinary upload: empty response")
	}
	if res.Error.Message != "" {
		return nil, fmt.Errorf("cloudinary upload: %s", res.Error.Message)
	}
	return &BlobReference{
		URL:         res.SecureURL,
		Key:         res.PublicID,
		ContentType: obj.ContentType,
		Size:        int64(res.Bytes),
	}, nil
}

// Delete destroys the blob identified by its public id. Documents uploaded with
// automatic detection live under either the image or the raw resource type.
func (g *CloudinaryGateway) Delete(ctx context.Context, key string) error {
	for _, resourceType := range []string{"image", "raw"} {
		res, err := g.api.Destroy(ctx, uploader.DestroyParams{PublicID: key, ResourceType: resourceType})
		if err != nil {
			return fmt.Errorf("cloudinary destroy %s: %w", key, err)
		}
		if res == nil {
			return fmt.Errorf("cloudinary destroy %s: empty response", key)
		}
		if res.Error.Message != "" {
			return fmt.Errorf("cloudinary destroy %s: %s", key, res.Error.Message)
		}
		switch res.Result {
		case "ok":
			return nil
		case "not found":
			continue
		default:
			return fmt.Errorf("cloudinary destroy %s: unexpected result %q", key, res.Result)
		}
	}
	return ErrNotFound
}

// Owns reports whether the url points at this account's delivery host.
func (g *CloudinaryGateway) Owns(rawURL string) bool {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return strings.EqualFold(parsed.Host, cloudinaryHost) && strings.HasPrefix(parsed.Path, "/"+g.cloudName+"/")
}
