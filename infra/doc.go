// Package infra holds the technical adapters of the planner: the LP engine,
// result stores, metrics sinks, the MQTT client, error monitoring and the
// annual series reader. They depend only on interfaces defined in core.
package infra
