// Package services implements the application layer between the transports
// (HTTP API, WebSocket hub, chat bot) and the rank history.
//
// # Services
//
//	QueryService  read-only lookups: search, suggestions, history, list, status
//	Collector     one collection cycle: fetch, extract, record, broadcast
//	Maintenance   daily cleanup of raw exports and old snapshots
//	HealthService liveness, readiness and version information
//
// Services take their dependencies through constructors and a *slog.Logger
// tagged with a component name. Query methods never fail for unknown
// instruments; they return empty results instead.
package services
