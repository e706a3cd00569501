package services

import (
	"context"
	"log/slog"
	"time"

	"canceldash/internal/dataset"
)

// HealthStatus is the payload served by the health endpoints.
type HealthStatus struct {
	Status        string    `json:"status"`
	Version       string    `json:"version"`
	UptimeSeconds float64   `json:"uptime_seconds"`
	DatasetLoaded bool      `json:"dataset_loaded"`
	RecordCount   int       `json:"record_count"`
	ContentHash   string    `json:"content_hash,omitempty"`
	LoadedAt      time.Time `json:"loaded_at,omitempty"`
	CheckedAt     time.Time `json:"checked_at"`
}

// HealthService reports process and dataset health.
type HealthService struct {
	store     *dataset.Store
	version   string
	startedAt time.Time
	logger    *slog.Logger
}

// NewHealthService creates a health service.
func NewHealthService(store *dataset.Store, version string, logger *slog.Logger) *HealthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthService{
		store:     store,
		version:   version,
		startedAt: time.Now(),
		logger:    logger.With(slog.String("service", "health")),
	}
}

// Check returns the current health status. The process is "degraded"
// rather than unhealthy when the dataset has not loaded, since the API
// surface still serves health and metrics.
func (s *HealthService) Check(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:        "healthy",
		Version:       s.version,
		UptimeSeconds: time.Since(s.startedAt).Seconds(),
		CheckedAt:     time.Now(),
	}

	snap, err := s.store.Snapshot(ctx)
	if err != nil {
		status.Status = "degraded"
		return status
	}

	status.DatasetLoaded = true
	status.RecordCount = snap.Len()
	status.ContentHash = snap.Hash()
	status.LoadedAt = snap.LoadedAt()
	return status
}

// Ready reports whether the service can answer dashboard queries.
func (s *HealthService) Ready(ctx context.Context) bool {
	_, err := s.store.Snapshot(ctx)
	return err == nil
}
