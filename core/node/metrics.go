package node

// NodeMetrics instruments a Node. node is the node id.
type NodeMetrics interface {
	PlayerCreated(node string)
	PlayerDestroyed(node string)
	VoiceUpdate(node string, success bool)
	PlayerEvent(node string, event string)
	Stats(node string, players, playing int, load float64)
}

type nopNodeMetrics struct{}

func (nopNodeMetrics) PlayerCreated(string)            {}
func (nopNodeMetrics) PlayerDestroyed(string)          {}
func (nopNodeMetrics) VoiceUpdate(string, bool)        {}
func (nopNodeMetrics) PlayerEvent(string, string)      {}
func (nopNodeMetrics) Stats(string, int, int, float64) {}

func NopNodeMetrics() NodeMetrics { return nopNodeMetrics{} }
