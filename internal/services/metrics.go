package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	verificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rolegate_verifications_total",
			Help: "Verification pipeline outcomes, by terminal state.",
		},
		[]string{"state"},
	)

	grantErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rolegate_grant_errors_total",
			Help: "Role grant failures, by kind.",
		},
		[]string{"kind"}, // member_not_found, role_not_found, grant_failed
	)

	challengesIssued = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rolegate_challenges_issued_total",
			Help: "Challenge links issued.",
		},
	)

	verifierCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rolegate_verifier_calls_total",
			Help: "CAPTCHA verification calls, by result.",
		},
		[]string{"result"}, // success, rejected, error
	)
)
