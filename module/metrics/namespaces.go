package metrics

// Prometheus metric namespaces
const (
	namespaceMonitor = "upgrade_monitor"
)

// Prometheus metric subsystems
const (
	subsystemRelease   = "release"
	subsystemCandidate = "candidate"
)
