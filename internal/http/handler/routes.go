package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"pdfupload/internal/repository"
	"pdfupload/internal/service"
	"pdfupload/internal/upload"
)

const (
	singleFileField = "file"
	batchFileField  = "files"

	maxListLimit = 100
)

// UploadResponse is returned by POST /upload-pdf.
type UploadResponse struct {
	Message  string `json:"message"`
	Filename string `json:"filename"`
}

// BatchUploadResponse is returned by POST /upload-pdfs.
type BatchUploadResponse struct {
	Message string   `json:"message"`
	Files   []string `json:"files"`
}

// UploadListResponse is returned by GET /uploads.
type UploadListResponse struct {
	Items  any `json:"data"`
	Total  int `json:"total"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// ReadinessChecker reports whether a dependency can serve traffic.
type ReadinessChecker interface {
	Ready(ctx context.Context) error
}

// RegisterRoutes attaches HTTP routes to the provided Fiber app.
// checker and ledger are optional; without a ledger GET /uploads is not registered.
func RegisterRoutes(app *fiber.App, checker ReadinessChecker, uploadSvc service.UploadService, ledger repository.UploadRepository) {
	app.Get("/health", Health())
	app.Get("/healthz", LivenessProbe())
	app.Get("/readyz", Readiness(checker))

	app.Post("/upload-pdf", UploadPDF(uploadSvc))
	app.Post("/upload-pdfs", UploadPDFs(uploadSvc))

	if ledger != nil {
		app.Get("/uploads", ListUploads(ledger))
	}
}

// Health godoc
// @Summary Health check
// @Produce json
// @Success 200 {object} map[string]string
// @Router /health [get]
func Health() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "ok"})
	}
}

// LivenessProbe answers with an empty 200.
func LivenessProbe() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	}
}

// Readiness asks checker, when one is configured, whether it can serve.
func Readiness(checker ReadinessChecker) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if checker != nil {
			ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
			defer cancel()
			if err := checker.Ready(ctx); err != nil {
				zerolog.Ctx(c.UserContext()).Warn().Err(err).Msg("readiness check failed")
				return writeError(c, fiber.StatusServiceUnavailable, "Dependency unavailable.")
			}
		}
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "ready"})
	}
}

// UploadPDF godoc
// @Summary Upload a single PDF document
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "PDF file"
// @Success 200 {object} UploadResponse
// @Failure 400 {object} errorPayload
// @Failure 500 {object} errorPayload
// @Router /upload-pdf [post]
func UploadPDF(uploadSvc service.UploadService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		fh, err := c.FormFile(singleFileField)
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "File is required.")
		}

		name, err := uploadSvc.UploadOne(c.UserContext(), fileFromHeader(fh))
		if err != nil {
			var vErr *service.ValidationError
			var sErr *service.StorageError
			switch {
			case errors.As(err, &vErr):
				if errors.Is(err, upload.ErrEmptyFilename) {
					return writeError(c, fiber.StatusBadRequest, "File name is required.")
				}
				return writeError(c, fiber.StatusBadRequest, "Only PDF files are allowed.")
			case errors.As(err, &sErr):
				return writeError(c, fiber.StatusInternalServerError,
					fmt.Sprintf("Failed to upload file to blob storage: %v", sErr.Err))
			default:
				return writeError(c, fiber.StatusInternalServerError,
					fmt.Sprintf("Failed to upload file to blob storage: %v", err))
			}
		}

		return c.Status(fiber.StatusOK).JSON(UploadResponse{
			Message:  "File uploaded successfully.",
			Filename: name,
		})
	}
}

// UploadPDFs godoc
// @Summary Upload multiple PDF documents
// @Description Files are stored in order; the first failure aborts the batch without removing files already stored.
// @Accept multipart/form-data
// @Produce json
// @Param files formData file true "PDF files" collectionFormat(multi)
// @Success 200 {object} BatchUploadResponse
// @Failure 400 {object} errorPayload
// @Failure 500 {object} errorPayload
// @Router /upload-pdfs [post]
func UploadPDFs(uploadSvc service.UploadService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		form, err := c.MultipartForm()
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "Multipart form data is required.")
		}

		headers := form.File[batchFileField]
		files := make([]service.File, 0, len(headers))
		for _, fh := range headers {
			files = append(files, fileFromHeader(fh))
		}

		stored, err := uploadSvc.UploadBatch(c.UserContext(), files)
		if err != nil {
			var vErr *service.ValidationError
			var sErr *service.StorageError
			switch {
			case errors.As(err, &vErr):
				// Batch rejections always name the offending part.
				return writeError(c, fiber.StatusBadRequest,
					fmt.Sprintf("File '%s' is not a valid PDF.", vErr.Filename))
			case errors.As(err, &sErr):
				return writeError(c, fiber.StatusInternalServerError,
					fmt.Sprintf("Failed to upload file '%s' to blob storage: %v", sErr.Filename, sErr.Err))
			default:
				return writeError(c, fiber.StatusInternalServerError,
					fmt.Sprintf("Unexpected error while uploading files: %v", err))
			}
		}

		if stored == nil {
			stored = []string{}
		}
		return c.Status(fiber.StatusOK).JSON(BatchUploadResponse{
			Message: "Files uploaded successfully.",
			Files:   stored,
		})
	}
}

// ListUploads returns ledger records, newest first, with limit & offset.
func ListUploads(ledger repository.UploadRepository) fiber.Handler {
	return func(c *fiber.Ctx) error {
		limit, err := strconv.Atoi(c.Query("limit", "10"))
		if err != nil || limit <= 0 {
			return writeError(c, fiber.StatusBadRequest, "invalid limit")
		}
		if limit > maxListLimit {
			limit = maxListLimit
		}
		offset, err := strconv.Atoi(c.Query("offset", "0"))
		if err != nil || offset < 0 {
			return writeError(c, fiber.StatusBadRequest, "invalid offset")
		}

		res, err := ledger.List(c.UserContext(), repository.PageQuery{Limit: limit, Offset: offset})
		if err != nil {
			return writeError(c, fiber.StatusInternalServerError, "Internal Server Error")
		}
		return c.JSON(UploadListResponse{Items: res.Items, Total: res.Total, Limit: limit, Offset: offset})
	}
}

// formFile adapts a multipart file header to service.Source.
type formFile struct {
	fh *multipart.FileHeader
}

func (f formFile) Open() (io.ReadCloser, error) {
	return f.fh.Open()
}

func fileFromHeader(fh *multipart.FileHeader) service.File {
	return service.File{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get(fiber.HeaderContentType),
		Size:        fh.Size,
		Source:      formFile{fh: fh},
	}
}
