// Package repository contains data access abstractions for the upload ledger.
// Implementations live in subpackages (e.g. postgres).
package repository

import (
	"context"

	"pdfupload/internal/model"
)

// UploadRepository persists the ledger of stored PDFs.
type UploadRepository interface {
	// Create inserts a new upload record and returns the stored row.
	Create(ctx context.Context, u *model.Upload) (*model.Upload, error)

	// List returns a page of upload records, newest first, and the total row count.
	List(ctx context.Context, pq PageQuery) (*PageResult[model.Upload], error)
}

// PageQuery holds limit/offset pagination parameters.
type PageQuery struct {
	Limit  int
	Offset int
}

// PageResult is a generic pagination result wrapper.
type PageResult[T any] struct {
	Items []T
	Total int
}
