package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"

	"pdfupload/internal/config"
)

// blobAPI is the subset of *azblob.Client used here.
type blobAPI interface {
	CreateContainer(ctx context.Context, containerName string, o *azblob.CreateContainerOptions) (azblob.CreateContainerResponse, error)
	UploadStream(ctx context.Context, containerName string, blobName string, body io.Reader, o *azblob.UploadStreamOptions) (azblob.UploadStreamResponse, error)
}

// azureStorage writes block blobs into one Azure Storage container.
// The underlying azblob client is safe for concurrent use.
type azureStorage struct {
	client    blobAPI
	container string
}

// NewAzure builds an Azure Blob Storage client for cfg.
// A connection string wins when present; otherwise the account URL is used with
// the default Azure credential chain (environment, workload identity, managed identity, CLI).
func NewAzure(cfg config.StorageConfig) (Storage, error) {
	if cfg.ContainerName == "" {
		return nil, fmt.Errorf("azure container name is required")
	}

	opts := &azblob.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Transport: &http.Client{Transport: tracedTransport()},
		},
	}

	var (
		cli *azblob.Client
		err error
	)
	if cfg.ConnectionString != "" {
		cli, err = azblob.NewClientFromConnectionString(cfg.ConnectionString, opts)
		if err != nil {
			return nil, fmt.Errorf("create azblob client from connection string: %w", err)
		}
	} else {
		if cfg.AccountURL == "" {
			return nil, fmt.Errorf("azure account url is required")
		}
		cred, err := azidentity.NewDefaultAzureCredential(nil)
		if err != nil {
			return nil, fmt.Errorf("resolve azure credential: %w", err)
		}
		cli, err = azblob.NewClient(cfg.AccountURL, cred, opts)
		if err != nil {
			return nil, fmt.Errorf("create azblob client: %w", err)
		}
	}

	return &azureStorage{client: cli, container: cfg.ContainerName}, nil
}

func (a *azureStorage) Container() string { return a.container }

// EnsureContainer creates the container; ContainerAlreadyExists counts as success.
func (a *azureStorage) EnsureContainer(ctx context.Context) error {
	_, err := a.client.CreateContainer(ctx, a.container, nil)
	if err == nil || bloberror.HasCode(err, bloberror.ContainerAlreadyExists) {
		return nil
	}
	return fmt.Errorf("create container %q: %w", a.container, err)
}

// Put streams r into a block blob, overwriting any existing blob. The SDK
// stages the body in fixed-size blocks, so r is never copied whole.
func (a *azureStorage) Put(ctx context.Context, key string, r io.Reader, opt PutObjectOptions) (ObjectInfo, error) {
	uploadOpts := &azblob.UploadStreamOptions{}
	if opt.ContentType != "" {
		ct := opt.ContentType
		uploadOpts.HTTPHeaders = &blob.HTTPHeaders{BlobContentType: &ct}
	}

	body := &countingReader{r: r}
	resp, err := a.client.UploadStream(ctx, a.container, key, body, uploadOpts)
	if err != nil {
		return ObjectInfo{}, err
	}

	info := ObjectInfo{
		Container:    a.container,
		Key:          key,
		Size:         body.n,
		ContentType:  opt.ContentType,
		LastModified: time.Now(),
	}
	if resp.ETag != nil {
		info.ETag = string(*resp.ETag)
	}
	if resp.LastModified != nil {
		info.LastModified = *resp.LastModified
	}
	return info, nil
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
