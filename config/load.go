package config

import (
	"fmt"
	"math"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/multierr"
)

var (
	cacheKindAliases = map[string]string{
		"memory_store":      string(CacheKindMemory),
		"redis_store":       string(CacheKindRedis),
		"redis_cache_store": string(CacheKindRedis),
		"null_store":        string(CacheKindNone),
	}
	jobQueueAliases = map[string]string{
		"sidekiq": string(JobQueueRedis),
	}
	redisSchemes = []string{"redis", "rediss"}
)

// maxDurationSeconds is the largest bare number of seconds a time.Duration holds
const maxDurationSeconds = math.MaxInt64 / int64(time.Second)

// Load resolves every option from env, falling back to the compiled
// defaults, and returns the resulting configuration. It performs no I/O and
// never reads the process environment; use Environ to build env.
//
// Every problem found is reported. The returned error combines *Error
// values, so errors.Is(err, ErrMissingRequiredVariable) and errors.As work on
// it directly.
func Load(env Env) (AppConfig, error) {
	l := &loader{
		env:     env,
		raw:     make(map[string]string),
		sources: make(map[string]string),
	}

	s := settings{
		Environment:         l.str("APP_ENV", DefaultEnvironment),
		ServerHost:          l.str("SERVER_HOST", DefaultServerHost),
		ServerPort:          l.integer([]string{"PORT", "SERVER_PORT"}, DefaultServerPort),
		ReadTimeout:         l.duration("SERVER_READ_TIMEOUT", DefaultReadTimeout),
		WriteTimeout:        l.duration("SERVER_WRITE_TIMEOUT", DefaultWriteTimeout),
		ShutdownTimeout:     l.duration("SERVER_SHUTDOWN_TIMEOUT", DefaultShutdownTimeout),
		LogLevel:            l.enum("LOG_LEVEL", string(DefaultLogLevel), nil),
		LogFormat:           l.enum("LOG_FORMAT", string(DefaultLogFormat), nil),
		CacheStore:          l.enum("CACHE_STORE", string(DefaultCacheKind), cacheKindAliases),
		CacheURL:            l.str("CACHE_URL", ""),
		CacheNamespace:      l.str("CACHE_NAMESPACE", DefaultCacheNamespace),
		CacheMaxEntries:     l.integer([]string{"CACHE_MAX_ENTRIES"}, DefaultCacheMaxEntries),
		CacheTTL:            l.duration("CACHE_TTL", 0),
		JobQueueAdapter:     l.enum("JOB_QUEUE_ADAPTER", string(DefaultJobQueueKind), jobQueueAliases),
		JobQueueURL:         l.firstStr([]string{"JOB_QUEUE_URL", "REDIS_URL"}, DefaultJobQueueURL),
		JobQueueName:        l.str("JOB_QUEUE_NAME", DefaultJobQueueName),
		JobQueueConcurrency: l.integer([]string{"JOB_QUEUE_CONCURRENCY"}, DefaultJobQueueConcurrency),
	}

	l.append(validateSettings(&s, l.raw, l.sources)...)
	l.checkBackends(&s)

	if l.err != nil {
		return AppConfig{}, l.err
	}

	return AppConfig{
		environment: s.Environment,
		server: ServerConfig{
			host:            s.ServerHost,
			port:            s.ServerPort,
			readTimeout:     s.ReadTimeout,
			writeTimeout:    s.WriteTimeout,
			shutdownTimeout: s.ShutdownTimeout,
		},
		logging: LoggingConfig{
			level:  LogLevel(s.LogLevel),
			format: LogFormat(s.LogFormat),
			tags:   DefaultLogTags(),
		},
		cache: CacheBackend{
			kind:          CacheKind(s.CacheStore),
			connectionURL: s.CacheURL,
			namespace:     s.CacheNamespace,
			maxEntries:    s.CacheMaxEntries,
			defaultTTL:    s.CacheTTL,
		},
		jobQueue: JobQueueBackend{
			kind:          JobQueueKind(s.JobQueueAdapter),
			connectionURL: s.JobQueueURL,
			queue:         s.JobQueueName,
			concurrency:   s.JobQueueConcurrency,
		},
	}, nil
}

// loader accumulates every problem instead of stopping at the first one
type loader struct {
	env     Env
	raw     map[string]string // values as read, keyed by variable name
	sources map[string]string // primary variable name -> variable actually used
	err     error
}

func (l *loader) append(errs ...error) {
	for _, err := range errs {
		l.err = multierr.Append(l.err, err)
	}
}

func (l *loader) str(key, defaultValue string) string {
	return l.firstStr([]string{key}, defaultValue)
}

// firstStr reads the first set variable of keys. Validation errors are
// reported against that variable, not against keys[0].
func (l *loader) firstStr(keys []string, defaultValue string) string {
	key, value, ok := l.env.First(keys...)
	if !ok {
		return defaultValue
	}
	l.raw[key] = value
	if key != keys[0] {
		l.sources[keys[0]] = key
	}
	return value
}

func (l *loader) enum(key, defaultValue string, aliases map[string]string) string {
	value, ok := l.env.Lookup(key)
	if !ok {
		return defaultValue
	}
	l.raw[key] = value
	normalized := strings.ToLower(value)
	if canonical, found := aliases[normalized]; found {
		return canonical
	}
	return normalized
}

func (l *loader) integer(keys []string, defaultValue int) int {
	key, value, ok := l.env.First(keys...)
	if !ok {
		return defaultValue
	}
	l.raw[key] = value
	if key != keys[0] {
		l.sources[keys[0]] = key
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		l.append(InvalidValue(key, value, "must be an integer"))
		return defaultValue
	}
	return n
}

// duration accepts Go duration syntax ("90s", "5m") or a bare number of seconds
func (l *loader) duration(key string, defaultValue time.Duration) time.Duration {
	value, ok := l.env.Lookup(key)
	if !ok {
		return defaultValue
	}
	l.raw[key] = value
	if secs, err := strconv.ParseInt(value, 10, 64); err == nil {
		if secs < 0 || secs > maxDurationSeconds {
			l.append(InvalidValue(key, value,
				fmt.Sprintf("must be between 0 and %d seconds", maxDurationSeconds)))
			return defaultValue
		}
		return time.Duration(secs) * time.Second
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		l.append(InvalidValue(key, value, "must be a duration such as 30s or 5m"))
		return defaultValue
	}
	return d
}

// checkBackends enforces the rules that depend on which backend is selected.
// Connection URLs are only checked for the backend that will use them.
func (l *loader) checkBackends(s *settings) {
	if s.CacheStore == string(CacheKindRedis) {
		if s.CacheURL == "" {
			l.append(MissingRequiredVariable("CACHE_URL",
				fmt.Sprintf("when CACHE_STORE=%s", CacheKindRedis)))
		} else {
			l.append(checkRedisURL("CACHE_URL", s.CacheURL))
		}
	}

	if s.JobQueueAdapter == string(JobQueueRedis) {
		field := "JOB_QUEUE_URL"
		if src, ok := l.sources[field]; ok {
			field = src
		}
		l.append(checkRedisURL(field, s.JobQueueURL))
	}
}

// checkRedisURL accepts exactly the URLs the redis client can dial
func checkRedisURL(field, raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return InvalidValue(field, raw, err.Error())
	}
	if !slices.Contains(redisSchemes, strings.ToLower(u.Scheme)) {
		return InvalidValue(field, raw, fmt.Sprintf("scheme must be one of: %s", strings.Join(redisSchemes, ", ")))
	}
	if _, err := redis.ParseURL(raw); err != nil {
		return InvalidValue(field, raw, err.Error())
	}
	return nil
}
