// Package metrics exposes Prometheus counters for session lifecycle and gate decisions.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "sessiongate"

// Service is nil-safe: every recording method is a no-op on a nil receiver.
type Service struct {
	registry *prometheus.Registry

	sessionsIssued    prometheus.Counter
	sessionsRotated   prometheus.Counter
	sessionsRevoked   prometheus.Counter
	sessionsCleaned   prometheus.Counter
	issueCollisions   prometheus.Counter
	validations       *prometheus.CounterVec
	gateRejections    *prometheus.CounterVec
	logins            *prometheus.CounterVec
	accessTokensIssue prometheus.Counter
}

func NewService() *Service {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	s := &Service{
		registry: registry,
		sessionsIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_issued_total",
			Help:      "Refresh sessions created.",
		}),
		sessionsRotated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_rotated_total",
			Help:      "Refresh sessions replaced by rotation.",
		}),
		sessionsRevoked: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_revoked_total",
			Help:      "Refresh sessions revoked or deleted on logout.",
		}),
		sessionsCleaned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_cleaned_total",
			Help:      "Expired sessions removed by the cleanup sweep.",
		}),
		issueCollisions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_digest_collisions_total",
			Help:      "Digest uniqueness conflicts hit while issuing sessions.",
		}),
		validations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_validations_total",
			Help:      "Session validations by result.",
		}, []string{"result"}),
		gateRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gate_rejections_total",
			Help:      "Requests rejected by the authentication gate by failure kind.",
		}, []string{"kind"}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "logins_total",
			Help:      "Login attempts by result.",
		}, []string{"result"}),
		accessTokensIssue: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "access_tokens_issued_total",
			Help:      "Access tokens signed.",
		}),
	}

	registry.MustRegister(
		s.sessionsIssued,
		s.sessionsRotated,
		s.sessionsRevoked,
		s.sessionsCleaned,
		s.issueCollisions,
		s.validations,
		s.gateRejections,
		s.logins,
		s.accessTokensIssue,
	)

	return s
}

func (s *Service) Registry() *prometheus.Registry {
	if s == nil {
		return nil
	}
	return s.registry
}

func (s *Service) Handler() http.Handler {
	if s == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})
}

func (s *Service) SessionIssued() {
	if s != nil {
		s.sessionsIssued.Inc()
	}
}

func (s *Service) SessionRotated() {
	if s != nil {
		s.sessionsRotated.Inc()
	}
}

func (s *Service) SessionsRevoked(n int64) {
	if s != nil && n > 0 {
		s.sessionsRevoked.Add(float64(n))
	}
}

func (s *Service) SessionsCleaned(n int64) {
	if s != nil && n > 0 {
		s.sessionsCleaned.Add(float64(n))
	}
}

func (s *Service) IssueCollision() {
	if s != nil {
		s.issueCollisions.Inc()
	}
}

func (s *Service) SessionValidation(result string) {
	if s != nil {
		s.validations.WithLabelValues(result).Inc()
	}
}

func (s *Service) GateRejected(kind string) {
	if s != nil {
		s.gateRejections.WithLabelValues(kind).Inc()
	}
}

func (s *Service) Login(result string) {
	if s != nil {
		s.logins.WithLabelValues(result).Inc()
	}
}

func (s *Service) AccessTokenIssued() {
	if s != nil {
		s.accessTokensIssue.Inc()
	}
}
