package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	profilesCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tutorhub_profiles_created_total",
		Help: "Total number of tutor profiles created",
	})

	sessionsBookedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tutorhub_sessions_booked_total",
		Help: "Total number of sessions booked",
	})

	paymentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tutorhub_payments_total",
		Help: "Payment attempts by result",
	}, []string{"result"})

	sessionsCompletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tutorhub_sessions_completed_total",
		Help: "Total number of sessions marked completed",
	})

	reviewsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tutorhub_reviews_created_total",
		Help: "Total number of reviews submitted",
	})
)
