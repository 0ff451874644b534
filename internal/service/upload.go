package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"pdfupload/internal/model"
	"pdfupload/internal/repository"
	"pdfupload/internal/storage"
	"pdfupload/internal/upload"
)

var tracer = otel.Tracer("pdfupload/internal/service")

// ErrNoSource is returned when a File carries nothing to read.
var ErrNoSource = errors.New("file has no content source")

// Source yields the bytes of one uploaded file. *multipart.FileHeader can be
// adapted to it; the returned reader is closed by the service.
type Source interface {
	Open() (io.ReadCloser, error)
}

// File is one submitted file as declared by the client.
type File struct {
	Filename    string
	ContentType string
	Size        int64
	Source      Source
}

// ValidationError reports a file that was not accepted as a PDF.
// Nothing has been written for that file.
type ValidationError struct {
	Filename string
	Err      error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("file %q rejected: %v", e.Filename, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// StorageError reports a file whose content could not be read or written to the blob store.
type StorageError struct {
	Filename string
	Err      error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("store file %q: %v", e.Filename, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// UploadService defines the PDF upload use cases.
type UploadService interface {
	// UploadOne validates and stores a single file and returns its stored name.
	UploadOne(ctx context.Context, f File) (string, error)

	// UploadBatch stores files sequentially in input order and stops at the first failure.
	// Files stored before the failure stay stored; the returned names cover exactly those.
	UploadBatch(ctx context.Context, files []File) ([]string, error)
}

// Option configures the upload service.
type Option func(*uploadService)

// WithTimeout bounds every storage call. Zero leaves calls unbounded.
func WithTimeout(d time.Duration) Option {
	return func(s *uploadService) { s.timeout = d }
}

// WithLedger records every stored file in repo. Ledger failures are logged, never returned.
func WithLedger(repo repository.UploadRepository) Option {
	return func(s *uploadService) { s.ledger = repo }
}

// WithMetrics counts upload outcomes.
func WithMetrics(m *Metrics) Option {
	return func(s *uploadService) { s.metrics = m }
}

type uploadService struct {
	store   storage.Storage
	timeout time.Duration
	ledger  repository.UploadRepository
	metrics *Metrics
}

// NewUploadService constructs an UploadService writing to store.
func NewUploadService(store storage.Storage, opts ...Option) UploadService {
	s := &uploadService{store: store}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *uploadService) UploadOne(ctx context.Context, f File) (string, error) {
	ctx, span := tracer.Start(ctx, "upload.single")
	defer span.End()

	name, err := s.uploadFile(ctx, f, true)
	s.metrics.observe(modeSingle, err)
	if err != nil {
		recordError(span, err)
		return "", err
	}
	return name, nil
}

func (s *uploadService) UploadBatch(ctx context.Context, files []File) ([]string, error) {
	ctx, span := tracer.Start(ctx, "upload.batch", trace.WithAttributes(attribute.Int("upload.files", len(files))))
	defer span.End()

	s.ensureContainer(ctx)

	stored := make([]string, 0, len(files))
	for _, f := range files {
		name, err := s.uploadFile(ctx, f, false)
		s.metrics.observe(modeBatch, err)
		if err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).
				Str("filename", f.Filename).
				Int("stored_before_failure", len(stored)).
				Msg("batch upload aborted")
			recordError(span, err)
			return stored, err
		}
		stored = append(stored, name)
	}
	span.SetAttributes(attribute.Int("upload.stored", len(stored)))
	return stored, nil
}

// uploadFile runs validate, optional container creation, then write for one file.
func (s *uploadService) uploadFile(ctx context.Context, f File, ensure bool) (string, error) {
	ctx, span := tracer.Start(ctx, "upload.file", trace.WithAttributes(
		attribute.String("upload.filename", f.Filename),
		attribute.String("upload.content_type", f.ContentType),
	))
	defer span.End()

	name, err := upload.Validate(f.ContentType, f.Filename)
	if err != nil {
		return "", &ValidationError{Filename: f.Filename, Err: err}
	}
	span.SetAttributes(attribute.String("upload.blob", name))

	if ensure {
		s.ensureContainer(ctx)
	}

	info, err := s.write(ctx, f, name)
	if err != nil {
		return "", err
	}

	zerolog.Ctx(ctx).Info().
		Str("filename", name).
		Str("container", info.Container).
		Int64("size", info.Size).
		Msg("pdf stored")
	s.record(ctx, info)
	return name, nil
}

// write reads the whole file into memory, closes it, then writes it under name.
func (s *uploadService) write(ctx context.Context, f File, name string) (storage.ObjectInfo, error) {
	if f.Source == nil {
		return storage.ObjectInfo{}, ErrNoSource
	}
	content, err := readAll(f.Source)
	if err != nil {
		return storage.ObjectInfo{}, &StorageError{Filename: f.Filename, Err: err}
	}

	callCtx, cancel := s.callContext(ctx)
	defer cancel()
	info, err := s.store.Put(callCtx, name, bytes.NewReader(content), storage.PutObjectOptions{
		Size:        int64(len(content)),
		ContentType: f.ContentType,
	})
	if err != nil {
		return storage.ObjectInfo{}, &StorageError{Filename: f.Filename, Err: err}
	}
	if info.Container == "" {
		info.Container = s.store.Container()
	}
	return info, nil
}

func readAll(src Source) ([]byte, error) {
	rc, err := src.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer rc.Close()

	content, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	return content, nil
}

// record appends info to the ledger, if one is configured.
func (s *uploadService) record(ctx context.Context, info storage.ObjectInfo) {
	if s.ledger == nil {
		return
	}
	_, err := s.ledger.Create(ctx, &model.Upload{
		ID:          uuid.NewString(),
		Filename:    info.Key,
		Container:   info.Container,
		Size:        info.Size,
		ContentType: info.ContentType,
		ETag:        info.ETag,
		CreatedAt:   time.Now().UTC(),
	})
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("filename", info.Key).Msg("ledger record failed")
	}
}

// ensureContainer creates the container on a best-effort basis. Failures are
// logged and ignored; a real permission problem surfaces from the blob write.
func (s *uploadService) ensureContainer(ctx context.Context) {
	callCtx, cancel := s.callContext(ctx)
	defer cancel()
	if err := s.store.EnsureContainer(callCtx); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("container", s.store.Container()).Msg("ensure container failed, continuing")
	}
}

func (s *uploadService) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout > 0 {
		return context.WithTimeout(ctx, s.timeout)
	}
	return context.WithCancel(ctx)
}

func recordError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
