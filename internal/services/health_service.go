package services

import (
	"context"
	"log/slog"
	"runtime"
	"time"

	"borsapulse/pkg/contracts"
)

// Pinger reports whether a dependency is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// QueueStatser exposes job queue statistics
type QueueStatser interface {
	GetQueueStats() map[string]interface{}
}

// ClientCounter reports connected event stream clients
type ClientCounter interface {
	ClientCount() int
}

// HealthService provides health check functionality
type HealthService struct {
	store     Pinger
	jobs      QueueStatser
	hub       ClientCounter
	startTime time.Time
	logger    *slog.Logger
}

// HealthStatus represents the health status response
type HealthStatus struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Version   string                 `json:"version"`
	Runtime   map[string]interface{} `json:"runtime,omitempty"`
	Services  map[string]interface{} `json:"services,omitempty"`
}

// ServiceHealth represents individual service health
type ServiceHealth struct {
	Status  string                 `json:"status"`
	Message string                 `json:"message,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// NewHealthService creates a health service. jobs and hub may be nil.
func NewHealthService(store Pinger, jobs QueueStatser, hub ClientCounter, logger *slog.Logger) *HealthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthService{
		store:     store,
		jobs:      jobs,
		hub:       hub,
		startTime: time.Now(),
		logger:    logger.With(slog.String("service", "health")),
	}
}

// HealthCheck returns overall health status
func (hs *HealthService) HealthCheck(ctx context.Context) HealthStatus {
	status := hs.ReadinessCheck(ctx)
	if status.Status == "ready" {
		status.Status = "ok"
	} else {
		status.Status = "degraded"
	}
	status.Runtime = hs.runtimeInfo()
	return status
}

// ReadinessCheck reports whether the store and job queue can serve requests
func (hs *HealthService) ReadinessCheck(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:    "ready",
		Timestamp: time.Now().UTC(),
		Version:   contracts.Version,
		Services:  make(map[string]interface{}),
	}

	status.Services["store"] = hs.checkStore(ctx)
	status.Services["jobs"] = hs.checkJobs()
	if hs.hub != nil {
		status.Services["events"] = ServiceHealth{
			Status:  "ready",
			Details: map[string]interface{}{"clients": hs.hub.ClientCount()},
		}
	}

	for name, service := range status.Services {
		if sh, ok := service.(ServiceHealth); ok && sh.Status != "ready" {
			status.Status = "not_ready"
			hs.logger.WarnContext(ctx, "dependency not ready",
				slog.String("dependency", name),
				slog.String("message", sh.Message))
		}
	}
	return status
}

// LivenessCheck returns liveness status
func (hs *HealthService) LivenessCheck(ctx context.Context) HealthStatus {
	return HealthStatus{
		Status:    "alive",
		Timestamp: time.Now().UTC(),
		Version:   contracts.Version,
		Runtime:   hs.runtimeInfo(),
	}
}

func (hs *HealthService) runtimeInfo() map[string]interface{} {
	return map[string]interface{}{
		"uptime_seconds": time.Since(hs.startTime).Seconds(),
		"go_version":     runtime.Version(),
		"goroutines":     runtime.NumGoroutine(),
	}
}

func (hs *HealthService) checkStore(ctx context.Context) ServiceHealth {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := hs.store.Ping(ctx); err != nil {
		return ServiceHealth{Status: "not_ready", Message: err.Error()}
	}
	return ServiceHealth{Status: "ready"}
}

func (hs *HealthService) checkJobs() ServiceHealth {
	if hs.jobs == nil {
		return ServiceHealth{Status: "ready", Message: "background jobs disabled"}
	}
	return ServiceHealth{Status: "ready", Details: hs.jobs.GetQueueStats()}
}
