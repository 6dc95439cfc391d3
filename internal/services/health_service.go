package services

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"time"

	"oispurts/internal/config"
)

// ClientCounter reports connected live clients
type ClientCounter interface {
	ClientCount() int
}

// StoreStats is the slice of the live store health checks look at
type StoreStats interface {
	Date() string
	Len() int
}

// HealthService provides health check functionality
type HealthService struct {
	version   string
	buildTime string
	paths     config.PathsConfig
	store     StoreStats
	clients   ClientCounter
	startTime time.Time
	logger    *slog.Logger
	now       func() time.Time
}

// HealthStatus represents the health status response
type HealthStatus struct {
	Status    string                   `json:"status"`
	Timestamp time.Time                `json:"timestamp"`
	Version   string                   `json:"version"`
	Runtime   map[string]interface{}   `json:"runtime,omitempty"`
	Services  map[string]ServiceHealth `json:"services,omitempty"`
}

// ServiceHealth represents individual service health
type ServiceHealth struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Uptime  string `json:"uptime,omitempty"`
}

// SystemStats represents system statistics
type SystemStats struct {
	UptimeSeconds    float64 `json:"uptime_seconds"`
	Instruments      int     `json:"instruments"`
	CurrentDate      string  `json:"current_date"`
	WebSocketClients int     `json:"websocket_clients"`
	GoVersion        string  `json:"go_version"`
	OS               string  `json:"os"`
	Arch             string  `json:"arch"`
}

// NewHealthService creates a health service. clients may be nil when the
// live feed is not running.
func NewHealthService(version, buildTime string, paths config.PathsConfig, store StoreStats, clients ClientCounter, logger *slog.Logger) *HealthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthService{
		version:   version,
		buildTime: buildTime,
		paths:     paths,
		store:     store,
		clients:   clients,
		startTime: time.Now(),
		logger:    logger.With(slog.String("component", "health_service")),
		now:       time.Now,
	}
}

// HealthCheck returns overall health status
func (hs *HealthService) HealthCheck(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:    "ok",
		Timestamp: hs.now(),
		Version:   hs.version,
	}
	hs.logger.DebugContext(ctx, "HealthCheck: completed", slog.String("status", status.Status))
	return status
}

// ReadinessCheck reports ready once the store is serving a date and the
// data directories are writable
func (hs *HealthService) ReadinessCheck(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:    "ready",
		Timestamp: hs.now(),
		Version:   hs.version,
		Services: map[string]ServiceHealth{
			"store":     hs.checkStoreHealth(),
			"websocket": hs.checkWebSocketHealth(),
			"data":      hs.checkDataHealth(),
		},
	}

	for name, service := range status.Services {
		if service.Status != "ready" {
			status.Status = "not_ready"
			hs.logger.WarnContext(ctx, "ReadinessCheck: service not ready",
				slog.String("service", name),
				slog.String("message", service.Message))
		}
	}
	return status
}

// LivenessCheck returns liveness status
func (hs *HealthService) LivenessCheck(ctx context.Context) HealthStatus {
	return HealthStatus{
		Status:    "alive",
		Timestamp: hs.now(),
		Version:   hs.version,
		Runtime: map[string]interface{}{
			"uptime":     hs.now().Sub(hs.startTime).Seconds(),
			"go_version": runtime.Version(),
			"goroutines": runtime.NumGoroutine(),
		},
	}
}

// Version returns version information
func (hs *HealthService) Version() map[string]interface{} {
	result := map[string]interface{}{
		"version":      hs.version,
		"go_version":   runtime.Version(),
		"os":           runtime.GOOS,
		"arch":         runtime.GOARCH,
		"uptime":       hs.now().Sub(hs.startTime).Seconds(),
		"start_time":   hs.startTime.Format(time.RFC3339),
		"current_time": hs.now().Format(time.RFC3339),
	}
	if hs.buildTime != "" {
		result["build_time"] = hs.buildTime
	}
	return result
}

// SystemStats returns system statistics
func (hs *HealthService) SystemStats(ctx context.Context) SystemStats {
	stats := SystemStats{
		UptimeSeconds: hs.now().Sub(hs.startTime).Seconds(),
		GoVersion:     runtime.Version(),
		OS:            runtime.GOOS,
		Arch:          runtime.GOARCH,
	}
	if hs.store != nil {
		stats.Instruments = hs.store.Len()
		stats.CurrentDate = hs.store.Date()
	}
	if hs.clients != nil {
		stats.WebSocketClients = hs.clients.ClientCount()
	}
	return stats
}

func (hs *HealthService) checkStoreHealth() ServiceHealth {
	if hs.store == nil || hs.store.Date() == "" {
		return ServiceHealth{Status: "not_ready", Message: "rank store not initialized"}
	}
	return ServiceHealth{
		Status:  "ready",
		Message: fmt.Sprintf("serving %s with %d instruments", hs.store.Date(), hs.store.Len()),
	}
}

// checkWebSocketHealth is ready whenever the hub exists; zero clients is normal
func (hs *HealthService) checkWebSocketHealth() ServiceHealth {
	if hs.clients == nil {
		return ServiceHealth{Status: "ready", Message: "live feed disabled"}
	}
	return ServiceHealth{
		Status:  "ready",
		Message: fmt.Sprintf("%d clients connected", hs.clients.ClientCount()),
		Uptime:  FormatUptime(hs.now().Sub(hs.startTime)),
	}
}

// checkDataHealth checks the raw and snapshot directories exist and are writable
func (hs *HealthService) checkDataHealth() ServiceHealth {
	for _, dir := range []string{hs.paths.ExcelDir, hs.paths.ProcessedDir} {
		if dir == "" {
			continue
		}
		if _, err := os.Stat(dir); err != nil {
			return ServiceHealth{
				Status:  "not_ready",
				Message: fmt.Sprintf("data directory not found: %s", dir),
			}
		}
		probe, err := os.CreateTemp(dir, ".health-*")
		if err != nil {
			return ServiceHealth{
				Status:  "not_ready",
				Message: fmt.Sprintf("cannot write to data directory: %v", err),
			}
		}
		probe.Close()
		os.Remove(probe.Name())
	}
	return ServiceHealth{Status: "ready", Message: "data directories are writable"}
}

// GetDetailedHealth returns comprehensive health information
func (hs *HealthService) GetDetailedHealth(ctx context.Context) map[string]interface{} {
	return map[string]interface{}{
		"health":    hs.HealthCheck(ctx),
		"readiness": hs.ReadinessCheck(ctx),
		"liveness":  hs.LivenessCheck(ctx),
		"stats":     hs.SystemStats(ctx),
	}
}
