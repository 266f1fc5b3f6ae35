// Package config composes the process-wide runtime configuration.
//
// Load runs once at startup and returns an AppConfig value. AppConfig and its
// parts expose getters only; every subsystem receives the parts it needs as
// constructor arguments instead of reading global state.
package config

import (
	"fmt"
	"net/url"
	"time"
)

// LogLevel is the minimum severity written by the logger
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// LogFormat selects the log line encoder
type LogFormat string

const (
	LogFormatJSON    LogFormat = "json"
	LogFormatConsole LogFormat = "console"
)

// LogTag names a per-request value prepended to every request log line
type LogTag string

const (
	LogTagSubdomain LogTag = "subdomain"
	LogTagUUID      LogTag = "uuid"
)

// CacheKind selects the cache store implementation
type CacheKind string

const (
	CacheKindMemory CacheKind = "memory"
	CacheKindRedis  CacheKind = "redis"
	CacheKindNone   CacheKind = "none"
)

// JobQueueKind selects the background job adapter
type JobQueueKind string

const (
	JobQueueInline JobQueueKind = "inline"
	JobQueueRedis  JobQueueKind = "redis"
	JobQueueNone   JobQueueKind = "none"
)

// Compiled defaults
const (
	DefaultEnvironment         = "development"
	DefaultServerHost          = "0.0.0.0"
	DefaultServerPort          = 3000
	DefaultReadTimeout         = 30 * time.Second
	DefaultWriteTimeout        = 30 * time.Second
	DefaultShutdownTimeout     = 10 * time.Second
	DefaultLogLevel            = LogLevelDebug
	DefaultLogFormat           = LogFormatJSON
	DefaultCacheKind           = CacheKindRedis
	DefaultCacheNamespace      = "rails::cache"
	DefaultCacheMaxEntries     = 10000
	DefaultJobQueueKind        = JobQueueRedis
	DefaultJobQueueURL         = "redis://localhost:6379/0"
	DefaultJobQueueName        = "default"
	DefaultJobQueueConcurrency = 5
)

// DefaultLogTags returns the tags applied to every request log line
func DefaultLogTags() []LogTag {
	return []LogTag{LogTagSubdomain, LogTagUUID}
}

// AppConfig is the immutable runtime configuration of the process
type AppConfig struct {
	environment string
	server      ServerConfig
	logging     LoggingConfig
	cache       CacheBackend
	jobQueue    JobQueueBackend
}

// Environment returns the deployment environment name
func (c AppConfig) Environment() string { return c.environment }

// Server returns the HTTP listener settings
func (c AppConfig) Server() ServerConfig { return c.server }

// Logging returns the logging subsystem settings
func (c AppConfig) Logging() LoggingConfig { return c.logging }

// Cache returns the cache backend settings
func (c AppConfig) Cache() CacheBackend { return c.cache }

// JobQueue returns the job queue backend settings
func (c AppConfig) JobQueue() JobQueueBackend { return c.jobQueue }

// IsProduction returns true if running in production environment
func (c AppConfig) IsProduction() bool {
	return c.environment == "production" || c.environment == "prod"
}

// IsDevelopment returns true if running in development environment
func (c AppConfig) IsDevelopment() bool {
	return c.environment == "development" || c.environment == "dev"
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	host            string
	port            int
	readTimeout     time.Duration
	writeTimeout    time.Duration
	shutdownTimeout time.Duration
}

func (s ServerConfig) Host() string { return s.host }
func (s ServerConfig) Port() int { return s.port }
func (s ServerConfig) ReadTimeout() time.Duration { return s.readTimeout }
func (s ServerConfig) WriteTimeout() time.Duration { return s.writeTimeout }
func (s ServerConfig) ShutdownTimeout() time.Duration { return s.shutdownTimeout }

// Address returns the HTTP server address
func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.host, s.port)
}

// LoggingConfig is what the logging subsystem needs to build its writer
type LoggingConfig struct {
	level  LogLevel
	format LogFormat
	tags   []LogTag
}

func (l LoggingConfig) Level() LogLevel { return l.level }
func (l LoggingConfig) Format() LogFormat { return l.format }

// Tags returns a copy of the ordered tag sources
func (l LoggingConfig) Tags() []LogTag {
	out := make([]LogTag, len(l.tags))
	copy(out, l.tags)
	return out
}

// CacheBackend is what the cache subsystem needs to build its store
type CacheBackend struct {
	kind          CacheKind
	connectionURL string
	namespace     string
	maxEntries    int
	defaultTTL    time.Duration
}

func (c CacheBackend) Kind() CacheKind { return c.kind }
func (c CacheBackend) ConnectionURL() string { return c.connectionURL }
func (c CacheBackend) Namespace() string { return c.namespace }
func (c CacheBackend) MaxEntries() int { return c.maxEntries }
func (c CacheBackend) DefaultTTL() time.Duration { return c.defaultTTL }
func (c CacheBackend) LogString() string { return redactURL(c.connectionURL) }

// JobQueueBackend is what the job queue subsystem needs to build its adapter
type JobQueueBackend struct {
	kind          JobQueueKind
	connectionURL string
	queue         string
	concurrency   int
}

func (j JobQueueBackend) Kind() JobQueueKind { return j.kind }
func (j JobQueueBackend) ConnectionURL() string { return j.connectionURL }
func (j JobQueueBackend) Queue() string { return j.queue }
func (j JobQueueBackend) Concurrency() int { return j.concurrency }
func (j JobQueueBackend) LogString() string { return redactURL(j.connectionURL) }

// redactURL returns a connection URL safe for logs (no password)
func redactURL(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "<unparseable>"
	}
	return u.Redacted()
}
