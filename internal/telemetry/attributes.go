package telemetry

// Span attributes recorded on hit deliveries. Centralized constants prevent
// typos across the session and transport layers.
const (
	AttrHitType = "usage.hit_type"
)
