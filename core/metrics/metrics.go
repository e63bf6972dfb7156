// Package metrics holds the instrument types shared by the conn, node and
// cluster metric interfaces. Backends (see adapters/prometheus) implement
// them; the core packages only depend on these interfaces.
package metrics

// Counter only goes up.
type Counter interface {
	Inc()
	Add(delta float64)
}

// Gauge is a value that can go up and down, e.g. queue depth.
type Gauge interface {
	Set(value float64)
	Inc()
	Dec()
}

// Timer is started on creation; ObserveDuration records the time since.
//
//	defer m.ConnectDuration().ObserveDuration()
type Timer interface {
	ObserveDuration()
}
