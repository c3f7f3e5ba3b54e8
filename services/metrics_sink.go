package services

import (
	"context"
	"math/big"

	"github.com/prometheus/client_golang/prometheus"

	"baseQuestAPI/internal/events"
)

// MetricsSink turns committed events into prometheus counters.
type MetricsSink struct {
	joins          prometheus.Counter
	completions    prometheus.Counter
	pointsAwarded  prometheus.Counter
	streakUpdates  prometheus.Counter
	weeksClosed    prometheus.Counter
	weeksSettled   prometheus.Counter
	closedPoolWei  prometheus.Gauge
	rankedInClosed prometheus.Gauge
}

func NewMetricsSink() *MetricsSink {
	return &MetricsSink{
		joins: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "basequest_players_joined_total",
			Help: "Total number of week joins",
		}),
		completions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "basequest_tasks_completed_total",
			Help: "Total number of credited task completions",
		}),
		pointsAwarded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "basequest_base_points_awarded_total",
			Help: "Total Base Points credited",
		}),
		streakUpdates: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "basequest_streak_updates_total",
			Help: "Total number of streak changes",
		}),
		weeksClosed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "basequest_weeks_closed_total",
			Help: "Total number of closed weeks",
		}),
		weeksSettled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "basequest_weeks_settled_total",
			Help: "Total number of settled weeks",
		}),
		closedPoolWei: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "basequest_last_closed_pool_wei",
			Help: "Prize pool of the most recently closed week",
		}),
		rankedInClosed: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "basequest_last_closed_ranked_players",
			Help: "Ranked players of the most recently closed week",
		}),
	}
}

func (m *MetricsSink) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{
		m.joins, m.completions, m.pointsAwarded, m.streakUpdates,
		m.weeksClosed, m.weeksSettled, m.closedPoolWei, m.rankedInClosed,
	} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func (m *MetricsSink) Name() string { return "metrics" }

func (m *MetricsSink) Handle(_ context.Context, e events.Event) error {
	switch e.Type {
	case events.TypePlayerJoined:
		m.joins.Inc()
	case events.TypeTaskCompleted:
		m.completions.Inc()
		m.pointsAwarded.Add(float64(e.PointsEarned))
	case events.TypeStreakUpdated:
		m.streakUpdates.Inc()
	case events.TypeWeekClosed:
		m.weeksClosed.Inc()
		m.rankedInClosed.Set(float64(e.Players))
		if e.Pool != nil {
			f, _ := new(big.Float).SetInt(e.Pool).Float64()
			m.closedPoolWei.Set(f)
		}
	case events.TypeWeekSettled:
		m.weeksSettled.Inc()
	}
	return nil
}
