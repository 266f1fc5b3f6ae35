package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/upb/ecs-app/app"
	"github.com/upb/ecs-app/internal/cache"
	"github.com/upb/ecs-app/internal/jobs"
	"github.com/upb/ecs-app/internal/logging"
	"github.com/upb/ecs-app/utils"
	"go.uber.org/zap"
)

// Version is reported by the status endpoint
var Version = "0.1.0"

const readinessTimeout = 2 * time.Second

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// StatusResponse summarizes the running configuration. Connection URLs are
// redacted.
type StatusResponse struct {
	Version     string         `json:"version"`
	Environment string         `json:"environment"`
	Logging     LoggingStatus  `json:"logging"`
	Cache       CacheStatus    `json:"cache"`
	JobQueue    JobQueueStatus `json:"job_queue"`
}

type LoggingStatus struct {
	Level  string   `json:"level"`
	Format string   `json:"format"`
	Tags   []string `json:"tags"`
}

type CacheStatus struct {
	Kind      string       `json:"kind"`
	URL       string       `json:"url,omitempty"`
	Namespace string       `json:"namespace"`
	Stats     *cache.Stats `json:"stats,omitempty"`
}

type JobQueueStatus struct {
	Adapter     string      `json:"adapter"`
	URL         string      `json:"url,omitempty"`
	Queue       string      `json:"queue"`
	Concurrency int         `json:"concurrency"`
	Classes     []string    `json:"classes"`
	Stats       *jobs.Stats `json:"stats,omitempty"`
}

// HealthCheck reports that the process is serving requests
func HealthCheck() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_ = utils.WriteOK(w, HealthResponse{
			Status:    "healthy",
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// ReadinessCheck pings the cache and the job queue
func ReadinessCheck(deps *app.Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()
		logger := logging.FromContext(r.Context())

		checks := make(map[string]string)
		allHealthy := true

		probe := func(name string, ping func(context.Context) error) {
			if ping == nil {
				checks[name] = "not_initialized"
				allHealthy = false
				return
			}
			if err := ping(ctx); err != nil {
				logger.Warn(name+" health check failed", zap.Error(err))
				checks[name] = "unhealthy"
				allHealthy = false
				return
			}
			checks[name] = "healthy"
		}

		var cachePing, jobsPing func(context.Context) error
		if deps.Cache != nil {
			cachePing = deps.Cache.Ping
		}
		if deps.Jobs != nil {
			jobsPing = deps.Jobs.Ping
		}
		probe("cache", cachePing)
		probe("job_queue", jobsPing)

		response := HealthResponse{
			Status:    "ready",
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Checks:    checks,
		}

		if !allHealthy {
			response.Status = "not_ready"
			_ = utils.WriteServiceUnavailable(w, response)
			return
		}
		_ = utils.WriteOK(w, response)
	}
}

// StatusHandler returns application status information
func StatusHandler(deps *app.Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cfg := deps.Config
		loggingCfg := cfg.Logging()
		cacheCfg := cfg.Cache()
		queueCfg := cfg.JobQueue()

		tags := make([]string, 0, len(loggingCfg.Tags()))
		for _, tag := range loggingCfg.Tags() {
			tags = append(tags, string(tag))
		}

		response := StatusResponse{
			Version:     Version,
			Environment: cfg.Environment(),
			Logging: LoggingStatus{
				Level:  string(loggingCfg.Level()),
				Format: string(loggingCfg.Format()),
				Tags:   tags,
			},
			Cache: CacheStatus{
				Kind:      string(cacheCfg.Kind()),
				URL:       cacheCfg.LogString(),
				Namespace: cacheCfg.Namespace(),
			},
			JobQueue: JobQueueStatus{
				Adapter:     string(queueCfg.Kind()),
				URL:         queueCfg.LogString(),
				Queue:       queueCfg.Queue(),
				Concurrency: queueCfg.Concurrency(),
				Classes:     []string{},
			},
		}

		if mem, ok := deps.Cache.(*cache.MemoryStore); ok {
			stats := mem.Stats()
			response.Cache.Stats = &stats
		}
		if deps.Registry != nil {
			response.JobQueue.Classes = deps.Registry.Classes()
		}
		if rq, ok := deps.Jobs.(*jobs.RedisQueue); ok {
			ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
			defer cancel()
			if stats, err := rq.Stats(ctx); err == nil {
				response.JobQueue.Stats = &stats
			} else {
				logging.FromContext(r.Context()).Warn("failed to read job queue stats", zap.Error(err))
			}
		}

		_ = utils.WriteOK(w, response)
	}
}
