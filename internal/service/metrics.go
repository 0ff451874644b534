package service

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	modeSingle = "single"
	modeBatch  = "batch"

	outcomeStored           = "stored"
	outcomeValidationFailed = "validation_failed"
	outcomeStorageFailed    = "storage_failed"
	outcomeError            = "error"
)

// Metrics counts per-file upload outcomes.
type Metrics struct {
	uploads *prometheus.CounterVec
}

// NewMetrics registers the upload counters on reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		uploads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pdf_uploads_total",
				Help: "Files processed by the upload endpoints, by mode and outcome.",
			},
			[]string{"mode", "outcome"},
		),
	}
	if err := reg.Register(m.uploads); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Metrics) observe(mode string, err error) {
	if m == nil {
		return
	}
	m.uploads.WithLabelValues(mode, outcomeOf(err)).Inc()
}

func outcomeOf(err error) string {
	var (
		vErr *ValidationError
		sErr *StorageError
	)
	switch {
	case err == nil:
		return outcomeStored
	case errors.As(err, &vErr):
		return outcomeValidationFailed
	case errors.As(err, &sErr):
		return outcomeStorageFailed
	default:
		return outcomeError
	}
}
