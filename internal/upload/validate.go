// Package upload decides whether an uploaded file is accepted as a PDF and
// derives the name it is stored under.
package upload

import (
	"errors"
	"strings"
)

// PDFExtension is appended to accepted names that do not already carry it.
const PDFExtension = ".pdf"

var (
	ErrNotPDF        = errors.New("only PDF files are allowed")
	ErrEmptyFilename = errors.New("file name is required")
)

// AllowedContentTypes lists the declared MIME types accepted as PDF.
// Matching is exact: parameters such as "; charset=binary" are not stripped.
var AllowedContentTypes = []string{"application/pdf", "application/x-pdf"}

// RejectedError describes why a file was not accepted.
type RejectedError struct {
	Filename    string
	ContentType string
	Reason      error
}

func (e *RejectedError) Error() string {
	return e.Reason.Error()
}

func (e *RejectedError) Unwrap() error {
	return e.Reason
}

// Validate returns the normalized storage name for an accepted file, or a
// *RejectedError. It has no side effects.
func Validate(contentType, filename string) (string, error) {
	if !IsPDFContentType(contentType) {
		return "", &RejectedError{Filename: filename, ContentType: contentType, Reason: ErrNotPDF}
	}
	name := NormalizeFilename(filename)
	if name == "" {
		return "", &RejectedError{Filename: filename, ContentType: contentType, Reason: ErrEmptyFilename}
	}
	return name, nil
}

// IsPDFContentType reports whether contentType is one of AllowedContentTypes.
func IsPDFContentType(contentType string) bool {
	for _, ct := range AllowedContentTypes {
		if contentType == ct {
			return true
		}
	}
	return false
}

// Basename strips any directory prefix, treating both '/' and '\' as separators.
// A name ending in a separator has an empty basename.
func Basename(filename string) string {
	if i := strings.LastIndexAny(filename, `/\`); i >= 0 {
		return filename[i+1:]
	}
	return filename
}

// NormalizeFilename returns the basename of filename with ".pdf" appended when
// it does not already end in it (case-insensitive). Existing extensions are kept.
// An empty basename yields "".
func NormalizeFilename(filename string) string {
	name := Basename(filename)
	if name == "" {
		return ""
	}
	if !strings.HasSuffix(strings.ToLower(name), PDFExtension) {
		name += PDFExtension
	}
	return name
}
