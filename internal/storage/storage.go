// Package storage contains the blob store abstraction PDFs are written to and its backends.
// Every Storage value is bound to a single container (bucket) fixed at construction.
package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"pdfupload/internal/config"
)

// PutObjectOptions define optional parameters for uploading objects.
// Size should be the exact number of bytes if known; -1 lets the backend buffer.
type PutObjectOptions struct {
	Size        int64
	ContentType string
}

// ObjectInfo contains basic information about a written object.
type ObjectInfo struct {
	Container    string
	Key          string
	Size         int64
	ETag         string
	ContentType  string
	LastModified time.Time
}

// Storage is the blob store client used by the upload service.
// Implementations must be safe for concurrent use.
type Storage interface {
	// EnsureContainer creates the configured container. An already existing
	// container is not an error; any other failure is returned to the caller.
	EnsureContainer(ctx context.Context) error
	// Put writes the object under key, replacing any existing object of that name.
	Put(ctx context.Context, key string, r io.Reader, opt PutObjectOptions) (ObjectInfo, error)
	// Container returns the name of the container objects are written to.
	Container() string
}

// New selects the backend named by cfg.Backend.
func New(cfg config.StorageConfig) (Storage, error) {
	switch cfg.Backend {
	case config.BackendAzure, "":
		return NewAzure(cfg)
	case config.BackendMinIO:
		return NewMinIO(cfg)
	case config.BackendMemory:
		return NewMemory(cfg.ContainerName), nil
	default:
		return nil, fmt.Errorf("unsupported storage backend %q", cfg.Backend)
	}
}

// tracedTransport wraps the default transport so every outbound blob request
// becomes a client span under the caller's trace.
func tracedTransport() http.RoundTripper {
	return otelhttp.NewTransport(http.DefaultTransport)
}
