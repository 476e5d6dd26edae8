package content

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
)

// azureBackend is a remoteBackend over Azure Blob Storage. Grounded on the
// teacher's declared-but-unused azblob dependency (see DESIGN.md).
type azureBackend struct {
	client    *azblob.Client
	container string
	prefix    string
}

// AzureConfig configures the Azure Blob-backed content store.
type AzureConfig struct {
	AccountURL    string
	Container     string
	Prefix        string
	SharedKeyName string
	SharedKey     string
	CacheDir      string
}

// NewAzureStore builds a Store backed by Azure Blob Storage with
// local-disk caching.
func NewAzureStore(cfg AzureConfig) (Store, error) {
	if cfg.AccountURL == "" || cfg.Container == "" {
		return nil, errors.New("azure account URL and container are required")
	}

	var client *azblob.Client
	var err error
	if cfg.SharedKeyName != "" {
		var cred *azblob.SharedKeyCredential
		cred, err = azblob.NewSharedKeyCredential(cfg.SharedKeyName, cfg.SharedKey)
		if err != nil {
			return nil, fmt.Errorf("build azure shared key credential: %w", err)
		}
		client, err = azblob.NewClientWithSharedKeyCredential(cfg.AccountURL, cred, nil)
	} else {
		client, err = azblob.NewClientWithNoCredential(cfg.AccountURL, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("build azure blob client: %w", err)
	}

	backend := &azureBackend{client: client, container: cfg.Container, prefix: cfg.Prefix}
	return newCachingStore(backend, cfg.CacheDir), nil
}

func (b *azureBackend) blobName(dir, name string) string {
	if b.prefix == "" {
		return dir + "/" + name
	}
	return b.prefix + "/" + dir + "/" + name
}

func (b *azureBackend) exists(ctx context.Context, dir, name string) bool {
	_, err := b.client.ServiceClient().NewContainerClient(b.container).NewBlobClient(b.blobName(dir, name)).GetProperties(ctx, nil)
	if err == nil {
		return true
	}
	if bloberror.HasCode(err, bloberror.BlobNotFound) {
		return false
	}
	log.Warn("azure blob properties check failed", "container", b.container, "blob", b.blobName(dir, name), "error", err)
	return false
}

func (b *azureBackend) fetch(ctx context.Context, dir, name string) (io.ReadCloser, error) {
	resp, err := b.client.DownloadStream(ctx, b.container, b.blobName(dir, name), nil)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}
