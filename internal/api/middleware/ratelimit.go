package middleware

import (
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/RAJESHREDDY0508/AI-tutor-platform/internal/pkg/metrics"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// tokenBucketLua 令牌桶限流脚本。返回 {allowed, wait_ms, tokens}。
const tokenBucketLua = `
local key = KEYS[1]
local rate = tonumber(ARGV[1])
local burst = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
local requested = tonumber(ARGV[4])

if rate <= 0 or burst <= 0 then
  return {1, 0, burst}
end

local data = redis.call("HMGET", key, "tokens", "ts")
local tokens = tonumber(data[1])
local ts = tonumber(data[2])
if tokens == nil then
  tokens = burst
end
if ts == nil then
  ts = now
end

local delta = math.max(0, now - ts)
local refill = (delta * rate) / 1000.0
tokens = math.min(burst, tokens + refill)

local allowed = tokens >= requested
local wait_ms = 0
if allowed then
  tokens = tokens - requested
else
  wait_ms = math.ceil((requested - tokens) * 1000.0 / rate)
end

redis.call("HMSET", key, "tokens", tokens, "ts", now)
redis.call("PEXPIRE", key, math.ceil((burst / rate) * 1000.0 * 2))

return {allowed and 1 or 0, wait_ms, tokens}
`

// Limit 描述单条路由的限流策略。
type Limit struct {
	Rate  float64 // 每秒补充令牌数
	Burst float64 // 桶容量
}

// PerMinute 返回每分钟 n 次的限流策略（桶容量同为 n）。
func PerMinute(n int) Limit {
	return Limit{Rate: float64(n) / 60.0, Burst: float64(n)}
}

// RateLimit 按 路由+客户端IP 限流。桶空时立即返回 429，不排队等待。
//
// Redis 不可用时放行并记录日志：限流是保护手段，不应把存储故障
// 放大为整个接口不可用。
func RateLimit(rdb *redis.Client, logger *slog.Logger, route string, limit Limit) gin.HandlerFunc {
	script := redis.NewScript(tokenBucketLua)

	return func(c *gin.Context) {
		if limit.Rate <= 0 || limit.Burst <= 0 {
			c.Next()
			return
		}

		key := fmt.Sprintf("aitutor:ratelimit:%s:%s", route, c.ClientIP())
		now := time.Now().UnixMilli()
		res, err := script.Run(c.Request.Context(), rdb, []string{key}, limit.Rate, limit.Burst, now, 1).Result()
		if err != nil {
			logger.Warn("rate limit eval failed", slog.String("route", route), slog.String("error", err.Error()))
			c.Next()
			return
		}

		values, ok := res.([]interface{})
		if !ok || len(values) < 2 {
			logger.Warn("rate limit invalid result", slog.String("route", route))
			c.Next()
			return
		}

		if toInt64(values[0]) == 1 {
			c.Next()
			return
		}

		retryAfter := int64(math.Ceil(float64(toInt64(values[1])) / 1000.0))
		if retryAfter < 1 {
			retryAfter = 1
		}
		metrics.RateLimitedTotal.WithLabelValues(route).Inc()
		c.Header("Retry-After", strconv.FormatInt(retryAfter, 10))
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many requests", "retry_after": retryAfter})
		c.Abort()
	}
}

func toInt64(v interface{}) int64 {
	switch t := v.(type) {
	case int64:
		return t
	case int:
		return int64(t)
	case float64:
		return int64(t)
	case string:
		if parsed, err := strconv.ParseInt(t, 10, 64); err == nil {
			return parsed
		}
	}
	return 0
}
