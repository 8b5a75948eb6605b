package llm

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimiter provides proactive rate limiting for the LLM API using Redis.
// Counters are global, so several gittime processes sharing one API key
// also share one quota.
type RateLimiter struct {
	redis    *redis.Client
	prefix   string
	rpmLimit int64 // Requests Per Minute
	tpmLimit int64 // Tokens Per Minute
	rpdLimit int64 // Requests Per Day
	logger   *slog.Logger
}

// Default quota, sized for Groq's free tier on llama-3.3-70b-versatile
const (
	DefaultRPM = 30
	DefaultTPM = 12_000
	DefaultRPD = 1_000
)

// QuotaError reports a threshold hit. Daily exhaustion is not worth waiting for.
type QuotaError struct {
	Limit   string // "RPM", "TPM" or "RPD"
	Current int64
	Max     int64
	Wait    time.Duration
}

func (e *QuotaError) Error() string {
	if e.Limit == "RPD" {
		return fmt.Sprintf("daily quota exceeded: %d/%d requests (resets in %s)", e.Current, e.Max, e.Wait)
	}
	return fmt.Sprintf("approaching %s limit (%d/%d), wait %s", e.Limit, e.Current, e.Max, e.Wait)
}

// Daily reports whether the daily quota is exhausted
func (e *QuotaError) Daily() bool {
	return e.Limit == "RPD"
}

var checkScript = redis.NewScript(`
	local rpm_key = KEYS[1]
	local tpm_key = KEYS[2]
	local rpd_key = KEYS[3]
	local rpm_limit = tonumber(ARGV[1])
	local tpm_limit = tonumber(ARGV[2])
	local rpd_limit = tonumber(ARGV[3])
	local tokens = tonumber(ARGV[4])

	local rpm = redis.call('INCR', rpm_key)
	local tpm = redis.call('INCRBY', tpm_key, tokens)
	local rpd = redis.call('INCR', rpd_key)

	-- 70s on minute keys leaves 10s for clock skew
	if rpm == 1 then redis.call('EXPIRE', rpm_key, 70) end
	if tpm == tokens then redis.call('EXPIRE', tpm_key, 70) end
	if rpd == 1 then redis.call('EXPIRE', rpd_key, 86400) end

	-- throttle at 90% of the per-minute limits, 100% of the daily one
	if rpm >= rpm_limit * 0.9 then
		return {-1, 'RPM', rpm, rpm_limit}
	end
	if tpm >= tpm_limit * 0.9 then
		return {-2, 'TPM', tpm, tpm_limit}
	end
	if rpd >= rpd_limit then
		return {-3, 'RPD', rpd, rpd_limit}
	end

	return {0, 'OK', rpm, tpm, rpd}
`)

// NewRateLimiter creates a new rate limiter connected to Redis.
// prefix namespaces the counters, normally the provider name.
func NewRateLimiter(redisAddr, prefix string) (*RateLimiter, error) {
	client := redis.NewClient(&redis.Options{
		Addr: redisAddr,
		DB:   0,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", redisAddr, err)
	}

	return &RateLimiter{
		redis:    client,
		prefix:   prefix,
		rpmLimit: DefaultRPM,
		tpmLimit: DefaultTPM,
		rpdLimit: DefaultRPD,
		logger:   slog.Default().With("component", "llm_rate_limiter"),
	}, nil
}

// keys returns the minute, token-minute and day counters for now.
// Format: "groq:rpm:2025-11-19T14:23"
func (r *RateLimiter) keys(now time.Time) (string, string, string) {
	minute := now.Format("2006-01-02T15:04")
	return fmt.Sprintf("%s:rpm:%s", r.prefix, minute),
		fmt.Sprintf("%s:tpm:%s", r.prefix, minute),
		fmt.Sprintf("%s:rpd:%s", r.prefix, now.Format("2006-01-02"))
}

// CheckAndIncrement increments the counters and returns a *QuotaError when
// a threshold is reached. The script runs atomically across processes.
func (r *RateLimiter) CheckAndIncrement(ctx context.Context, estimatedTokens int64) error {
	now := time.Now()
	minuteKey, tpmKey, dayKey := r.keys(now)

	result, err := checkScript.Run(ctx, r.redis,
		[]string{minuteKey, tpmKey, dayKey},
		r.rpmLimit, r.tpmLimit, r.rpdLimit, estimatedTokens).Result()
	if err != nil {
		return fmt.Errorf("rate limiter Redis operation failed: %w", err)
	}

	return interpretResult(result, now)
}

// interpretResult turns the script's reply into nil or a *QuotaError
func interpretResult(result interface{}, now time.Time) error {
	resultSlice, ok := result.([]interface{})
	if !ok || len(resultSlice) < 2 {
		return fmt.Errorf("invalid rate limiter response format")
	}

	code, ok := resultSlice[0].(int64)
	if !ok {
		return fmt.Errorf("invalid rate limiter response code")
	}
	if code >= 0 {
		return nil
	}
	if len(resultSlice) < 4 {
		return fmt.Errorf("invalid rate limiter response format")
	}

	limitType, _ := resultSlice[1].(string)
	current, _ := resultSlice[2].(int64)
	limit, _ := resultSlice[3].(int64)

	qerr := &QuotaError{Limit: limitType, Current: current, Max: limit}
	if code == -3 {
		tomorrow := now.Add(24 * time.Hour)
		midnight := time.Date(tomorrow.Year(), tomorrow.Month(), tomorrow.Day(), 0, 0, 0, 0, tomorrow.Location())
		qerr.Wait = midnight.Sub(now).Truncate(time.Second)
		return qerr
	}

	// per-minute windows reset at the next minute
	wait := 60 - now.Second()
	if wait <= 0 {
		wait = 1
	}
	qerr.Wait = time.Duration(wait) * time.Second
	return qerr
}

// CheckAndIncrementWithRetry blocks until the per-minute window resets.
// Daily exhaustion and Redis failures are returned immediately.
func (r *RateLimiter) CheckAndIncrementWithRetry(ctx context.Context, estimatedTokens int64) error {
	for {
		err := r.CheckAndIncrement(ctx, estimatedTokens)
		if err == nil {
			return nil
		}

		qerr, ok := err.(*QuotaError)
		if !ok || qerr.Daily() {
			return err
		}

		r.logger.Warn("rate limit approaching, throttling", "limit", qerr.Limit, "wait", qerr.Wait)

		select {
		case <-time.After(qerr.Wait):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Close closes the Redis connection
func (r *RateLimiter) Close() error {
	if r.redis != nil {
		return r.redis.Close()
	}
	return nil
}

// GetCurrentUsage returns current usage statistics (for monitoring/debugging)
// Returns (rpm, tpm, rpd, error)
func (r *RateLimiter) GetCurrentUsage(ctx context.Context) (int64, int64, int64, error) {
	minuteKey, tpmKey, dayKey := r.keys(time.Now())

	pipe := r.redis.Pipeline()
	rpmCmd := pipe.Get(ctx, minuteKey)
	tpmCmd := pipe.Get(ctx, tpmKey)
	rpdCmd := pipe.Get(ctx, dayKey)

	_, err := pipe.Exec(ctx)
	if err != nil && err != redis.Nil {
		return 0, 0, 0, fmt.Errorf("failed to get usage stats: %w", err)
	}

	// missing keys read as 0
	rpm, _ := rpmCmd.Int64()
	tpm, _ := tpmCmd.Int64()
	rpd, _ := rpdCmd.Int64()

	return rpm, tpm, rpd, nil
}
