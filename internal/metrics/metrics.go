package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "codetutor"

// Metrics collects room server counters. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	activeRooms    prometheus.Gauge
	connectedPeers prometheus.Gauge
	signals        *prometheus.CounterVec
	droppedFrames  prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		activeRooms: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_rooms",
			Help:      "Rooms currently held in memory by this instance.",
		}),
		connectedPeers: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connected_peers",
			Help:      "Participant endpoints connected to this instance.",
		}),
		signals: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "signals_total",
			Help:      "Signals handled, by type.",
		}, []string{"type"}),
		droppedFrames: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dropped_frames_total",
			Help:      "Frames dropped because a peer queue was full.",
		}),
	}
}

func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

func (m *Metrics) RoomActivated() {
	if m != nil {
		m.activeRooms.Inc()
	}
}

func (m *Metrics) RoomDeactivated() {
	if m != nil {
		m.activeRooms.Dec()
	}
}

func (m *Metrics) PeerConnected() {
	if m != nil {
		m.connectedPeers.Inc()
	}
}

func (m *Metrics) PeerDisconnected() {
	if m != nil {
		m.connectedPeers.Dec()
	}
}

func (m *Metrics) SignalHandled(signalType string) {
	if m != nil {
		m.signals.WithLabelValues(signalType).Inc()
	}
}

func (m *Metrics) FrameDropped() {
	if m != nil {
		m.droppedFrames.Inc()
	}
}
