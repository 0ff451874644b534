package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"pdfupload/internal/model"
	repoMocks "pdfupload/internal/repository/mocks"
	"pdfupload/internal/storage"
	storeMocks "pdfupload/internal/storage/mocks"
	"pdfupload/internal/upload"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// stringSource is a Source that tracks whether its reader was closed.
type stringSource struct {
	content string
	openErr error
	opened  int
	closed  int
}

func (s *stringSource) Open() (io.ReadCloser, error) {
	if s.openErr != nil {
		return nil, s.openErr
	}
	s.opened++
	return &trackingReader{Reader: strings.NewReader(s.content), src: s}, nil
}

type trackingReader struct {
	io.Reader
	src *stringSource
}

func (r *trackingReader) Close() error {
	r.src.closed++
	return nil
}

func pdfFile(name, content string) File {
	return File{Filename: name, ContentType: "application/pdf", Size: int64(len(content)), Source: &stringSource{content: content}}
}

func TestUploadService_UploadOne(t *testing.T) {
	ctx := context.Background()

	t.Run("stores under normalized name", func(t *testing.T) {
		store := storage.NewMemory("pdf-uploads")
		svc := NewUploadService(store)

		src := &stringSource{content: "%PDF-1.7"}
		name, err := svc.UploadOne(ctx, File{Filename: "report", ContentType: "application/x-pdf", Source: src})

		require.NoError(t, err)
		assert.Equal(t, "report.pdf", name)
		assert.True(t, store.ContainerCreated())

		obj, ok := store.Object("report.pdf")
		require.True(t, ok)
		assert.Equal(t, []byte("%PDF-1.7"), obj.Content)
		assert.Equal(t, "application/x-pdf", obj.Info.ContentType)
		assert.Equal(t, 1, src.closed)
	})

	t.Run("invalid content type writes nothing", func(t *testing.T) {
		mStore := new(storeMocks.MockStorage)
		svc := NewUploadService(mStore)

		src := &stringSource{content: "hello"}
		name, err := svc.UploadOne(ctx, File{Filename: "notes.txt", ContentType: "text/plain", Source: src})

		assert.Empty(t, name)
		var vErr *ValidationError
		require.True(t, errors.As(err, &vErr))
		assert.Equal(t, "notes.txt", vErr.Filename)
		assert.ErrorIs(t, err, upload.ErrNotPDF)
		assert.Zero(t, src.opened)
		mStore.AssertNotCalled(t, "EnsureContainer", mock.Anything)
		mStore.AssertNotCalled(t, "Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("ensure container failure is ignored", func(t *testing.T) {
		mStore := new(storeMocks.MockStorage)
		mStore.On("Container").Return("pdf-uploads")
		mStore.On("EnsureContainer", mock.Anything).Return(errors.New("permission denied")).Once()
		mStore.On("Put", mock.Anything, "a.pdf", mock.Anything, storage.PutObjectOptions{Size: 3, ContentType: "application/pdf"}).
			Return(storage.ObjectInfo{Container: "pdf-uploads", Key: "a.pdf", Size: 3}, nil).Once()

		svc := NewUploadService(mStore)
		name, err := svc.UploadOne(ctx, pdfFile("a.pdf", "abc"))

		require.NoError(t, err)
		assert.Equal(t, "a.pdf", name)
		mStore.AssertExpectations(t)
	})

	t.Run("storage failure", func(t *testing.T) {
		mStore := new(storeMocks.MockStorage)
		mStore.On("EnsureContainer", mock.Anything).Return(nil).Once()
		mStore.On("Put", mock.Anything, "a.pdf", mock.Anything, mock.Anything).
			Return(storage.ObjectInfo{}, errors.New("AuthorizationFailure")).Once()

		src := &stringSource{content: "abc"}
		svc := NewUploadService(mStore)
		name, err := svc.UploadOne(ctx, File{Filename: "a.pdf", ContentType: "application/pdf", Source: src})

		assert.Empty(t, name)
		var sErr *StorageError
		require.True(t, errors.As(err, &sErr))
		assert.Equal(t, "a.pdf", sErr.Filename)
		assert.EqualError(t, sErr.Err, "AuthorizationFailure")
		assert.Equal(t, 1, src.closed)
		mStore.AssertExpectations(t)
	})

	t.Run("open failure is a storage error", func(t *testing.T) {
		store := storage.NewMemory("c")
		svc := NewUploadService(store)

		_, err := svc.UploadOne(ctx, File{Filename: "a.pdf", ContentType: "application/pdf", Source: &stringSource{openErr: errors.New("tmp file gone")}})

		var sErr *StorageError
		require.True(t, errors.As(err, &sErr))
		assert.Contains(t, err.Error(), "tmp file gone")
		assert.Zero(t, store.Len())
	})

	t.Run("missing source", func(t *testing.T) {
		svc := NewUploadService(storage.NewMemory("c"))
		_, err := svc.UploadOne(ctx, File{Filename: "a.pdf", ContentType: "application/pdf"})
		assert.ErrorIs(t, err, ErrNoSource)
	})

	t.Run("overwrite keeps one object", func(t *testing.T) {
		store := storage.NewMemory("c")
		svc := NewUploadService(store)

		_, err := svc.UploadOne(ctx, pdfFile("same.pdf", "first"))
		require.NoError(t, err)
		_, err = svc.UploadOne(ctx, pdfFile("same.pdf", "second"))
		require.NoError(t, err)

		assert.Equal(t, 1, store.Len())
		obj, _ := store.Object("same.pdf")
		assert.Equal(t, []byte("second"), obj.Content)
	})
}

func TestUploadService_UploadBatch(t *testing.T) {
	ctx := context.Background()

	t.Run("all stored in order", func(t *testing.T) {
		store := storage.NewMemory("c")
		svc := NewUploadService(store)

		names, err := svc.UploadBatch(ctx, []File{pdfFile("a.pdf", "a"), pdfFile("b", "b"), pdfFile("dir/c.pdf", "c")})

		require.NoError(t, err)
		assert.Equal(t, []string{"a.pdf", "b.pdf", "c.pdf"}, names)
		assert.Equal(t, 3, store.Len())
	})

	t.Run("empty batch", func(t *testing.T) {
		store := storage.NewMemory("c")
		svc := NewUploadService(store)

		names, err := svc.UploadBatch(ctx, nil)

		require.NoError(t, err)
		assert.NotNil(t, names)
		assert.Empty(t, names)
		assert.True(t, store.ContainerCreated())
	})

	t.Run("validation failure keeps earlier files", func(t *testing.T) {
		store := storage.NewMemory("c")
		svc := NewUploadService(store)

		bad := File{Filename: "bad.txt", ContentType: "text/plain", Source: &stringSource{content: "x"}}
		later := &stringSource{content: "never"}
		names, err := svc.UploadBatch(ctx, []File{
			pdfFile("valid.pdf", "v"),
			bad,
			{Filename: "later.pdf", ContentType: "application/pdf", Source: later},
		})

		var vErr *ValidationError
		require.True(t, errors.As(err, &vErr))
		assert.Equal(t, "bad.txt", vErr.Filename)
		assert.Equal(t, []string{"valid.pdf"}, names)

		_, ok := store.Object("valid.pdf")
		assert.True(t, ok)
		_, ok = store.Object("later.pdf")
		assert.False(t, ok)
		assert.Zero(t, later.opened)
	})

	t.Run("storage failure truncates", func(t *testing.T) {
		mStore := new(storeMocks.MockStorage)
		mStore.On("Container").Return("c").Maybe()
		mStore.On("EnsureContainer", mock.Anything).Return(nil).Once()
		mStore.On("Put", mock.Anything, "a.pdf", mock.Anything, mock.Anything).
			Return(storage.ObjectInfo{Container: "c", Key: "a.pdf"}, nil).Once()
		mStore.On("Put", mock.Anything, "b.pdf", mock.Anything, mock.Anything).
			Return(storage.ObjectInfo{}, errors.New("network down")).Once()

		svc := NewUploadService(mStore)
		names, err := svc.UploadBatch(ctx, []File{pdfFile("a.pdf", "a"), pdfFile("b.pdf", "b"), pdfFile("c.pdf", "c")})

		var sErr *StorageError
		require.True(t, errors.As(err, &sErr))
		assert.Equal(t, "b.pdf", sErr.Filename)
		assert.Equal(t, []string{"a.pdf"}, names)
		mStore.AssertExpectations(t)
		mStore.AssertNumberOfCalls(t, "Put", 2)
		mStore.AssertNumberOfCalls(t, "EnsureContainer", 1)
	})
}

func TestUploadService_Timeout(t *testing.T) {
	mStore := new(storeMocks.MockStorage)
	mStore.On("EnsureContainer", mock.Anything).Return(nil)
	mStore.On("Put", mock.MatchedBy(func(ctx context.Context) bool {
		deadline, ok := ctx.Deadline()
		return ok && time.Until(deadline) <= time.Minute
	}), "a.pdf", mock.Anything, mock.Anything).Return(storage.ObjectInfo{Container: "c", Key: "a.pdf"}, nil).Once()

	svc := NewUploadService(mStore, WithTimeout(time.Minute))
	_, err := svc.UploadOne(context.Background(), pdfFile("a.pdf", "a"))

	require.NoError(t, err)
	mStore.AssertExpectations(t)
}

func TestUploadService_Ledger(t *testing.T) {
	ctx := context.Background()

	t.Run("records stored files", func(t *testing.T) {
		mRepo := new(repoMocks.MockUploadRepository)
		mRepo.On("Create", mock.Anything, mock.MatchedBy(func(u *model.Upload) bool {
			return u.ID != "" && u.Filename == "a.pdf" && u.Container == "c" && u.Size == 3 && u.ContentType == "application/pdf"
		})).Return(&model.Upload{ID: "id"}, nil).Once()

		svc := NewUploadService(storage.NewMemory("c"), WithLedger(mRepo))
		_, err := svc.UploadOne(ctx, pdfFile("a.pdf", "abc"))

		require.NoError(t, err)
		mRepo.AssertExpectations(t)
	})

	t.Run("ledger failure does not fail upload", func(t *testing.T) {
		mRepo := new(repoMocks.MockUploadRepository)
		mRepo.On("Create", mock.Anything, mock.Anything).Return(nil, errors.New("db down")).Once()

		store := storage.NewMemory("c")
		svc := NewUploadService(store, WithLedger(mRepo))
		name, err := svc.UploadOne(ctx, pdfFile("a.pdf", "abc"))

		require.NoError(t, err)
		assert.Equal(t, "a.pdf", name)
		assert.Equal(t, 1, store.Len())
	})

	t.Run("rejected files are not recorded", func(t *testing.T) {
		mRepo := new(repoMocks.MockUploadRepository)
		svc := NewUploadService(storage.NewMemory("c"), WithLedger(mRepo))

		_, err := svc.UploadOne(ctx, File{Filename: "a.txt", ContentType: "text/plain"})

		assert.Error(t, err)
		mRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})
}

func TestUploadService_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics, err := NewMetrics(reg)
	require.NoError(t, err)

	svc := NewUploadService(storage.NewMemory("c"), WithMetrics(metrics))
	ctx := context.Background()

	_, _ = svc.UploadOne(ctx, pdfFile("a.pdf", "a"))
	_, _ = svc.UploadOne(ctx, File{Filename: "a.txt", ContentType: "text/plain"})
	_, _ = svc.UploadBatch(ctx, []File{pdfFile("b.pdf", "b"), pdfFile("c.pdf", "c")})

	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.uploads.WithLabelValues(modeSingle, outcomeStored)))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.uploads.WithLabelValues(modeSingle, outcomeValidationFailed)))
	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.uploads.WithLabelValues(modeBatch, outcomeStored)))

	_, err = NewMetrics(reg)
	assert.Error(t, err, "registering twice on one registry must fail")
}
