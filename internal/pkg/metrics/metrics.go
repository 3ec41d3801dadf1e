package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// 认证服务的 Prometheus 指标。
var (
	RegistrationsTotal prometheus.Counter
	LoginsTotal        *prometheus.CounterVec
	TokenRefreshTotal  *prometheus.CounterVec
	LogoutsTotal       prometheus.Counter
	BlacklistHitsTotal prometheus.Counter
	EmailJobsTotal     *prometheus.CounterVec
	RateLimitedTotal   *prometheus.CounterVec
)

var initOnce sync.Once

// InitMetrics 注册所有指标，幂等。
//
// 必须在服务启动时（以及依赖指标的测试中）调用一次。
func InitMetrics() {
	initOnce.Do(func() {
		RegistrationsTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "auth_registrations_total",
			Help: "Total number of successful registrations.",
		})
		LoginsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_logins_total",
			Help: "Login attempts by result.",
		}, []string{"result"})
		TokenRefreshTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_token_refresh_total",
			Help: "Refresh token exchanges by result.",
		}, []string{"result"})
		LogoutsTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "auth_logouts_total",
			Help: "Total number of logout requests.",
		})
		BlacklistHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "auth_blacklist_hits_total",
			Help: "Requests rejected because the access token was blacklisted.",
		})
		EmailJobsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_email_jobs_total",
			Help: "Email queue jobs by stage (published / delivered / failed / dlq).",
		}, []string{"stage"})
		RateLimitedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_rate_limited_total",
			Help: "Requests rejected by the per-route rate limiter.",
		}, []string{"route"})

		prometheus.MustRegister(
			RegistrationsTotal,
			LoginsTotal,
			TokenRefreshTotal,
			LogoutsTotal,
			BlacklistHitsTotal,
			EmailJobsTotal,
			RateLimitedTotal,
		)
	})
}
