package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/codewandler/lava-go/core/node"
)

// nodeMetrics implements node.NodeMetrics using Prometheus.
type nodeMetrics struct {
	playersCreated   *prometheus.CounterVec
	playersDestroyed *prometheus.CounterVec
	voiceUpdates     *prometheus.CounterVec
	playerEvents     *prometheus.CounterVec
	players          *prometheus.GaugeVec
	playingPlayers   *prometheus.GaugeVec
	load             *prometheus.GaugeVec
}

// NewNodeMetrics creates a new Prometheus implementation of NodeMetrics.
func NewNodeMetrics(reg prometheus.Registerer) node.NodeMetrics {
	m := &nodeMetrics{
		playersCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lava_node_players_created_total",
			Help: "Total number of players created",
		}, []string{"node"}),

		playersDestroyed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lava_node_players_destroyed_total",
			Help: "Total number of players destroyed",
		}, []string{"node"}),

		voiceUpdates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lava_node_voice_updates_total",
			Help: "Total number of voiceUpdate commands",
		}, []string{"node", "success"}),

		playerEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lava_node_player_events_total",
			Help: "Total number of player events received",
		}, []string{"node", "event"}),

		players: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "lava_node_players",
			Help: "Players reported by the node",
		}, []string{"node"}),

		playingPlayers: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "lava_node_playing_players",
			Help: "Playing players reported by the node",
		}, []string{"node"}),

		load: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "lava_node_load",
			Help: "System load per core reported by the node",
		}, []string{"node"}),
	}

	reg.MustRegister(
		m.playersCreated,
		m.playersDestroyed,
		m.voiceUpdates,
		m.playerEvents,
		m.players,
		m.playingPlayers,
		m.load,
	)

	return m
}

func (m *nodeMetrics) PlayerCreated(nodeID string) {
	m.playersCreated.WithLabelValues(nodeID).Inc()
}

func (m *nodeMetrics) PlayerDestroyed(nodeID string) {
	m.playersDestroyed.WithLabelValues(nodeID).Inc()
}

func (m *nodeMetrics) VoiceUpdate(nodeID string, success bool) {
	m.voiceUpdates.WithLabelValues(nodeID, boolToStr(success)).Inc()
}

func (m *nodeMetrics) PlayerEvent(nodeID string, event string) {
	m.playerEvents.WithLabelValues(nodeID, event).Inc()
}

func (m *nodeMetrics) Stats(nodeID string, players, playing int, load float64) {
	m.players.WithLabelValues(nodeID).Set(float64(players))
	m.playingPlayers.WithLabelValues(nodeID).Set(float64(playing))
	m.load.WithLabelValues(nodeID).Set(load)
}

var _ node.NodeMetrics = (*nodeMetrics)(nil)
