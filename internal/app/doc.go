// Package app wires the OI spurts tracker together and manages its lifecycle.
//
// # Initialization Flow
//
// NewApplication builds every component up front so configuration
// problems surface before anything starts:
//
//	1. Resolve and create the data, export and log directories
//	2. Initialize OpenTelemetry (tracing, Prometheus metrics)
//	3. Restore today's rank history snapshot
//	4. Wire the fetcher, collector and scheduler
//	5. Build the query, health and maintenance services
//	6. Set up the HTTP router, live feed and optional Telegram bot
//
// # Usage
//
//	a, err := app.Load()
//	if err != nil {
//	    return err
//	}
//	return a.Run(ctx)
//
// # Graceful Shutdown
//
// Run returns once ctx is cancelled or a component fails. Before it
// returns, the scheduler finishes its in-flight cycle, the HTTP server
// drains active requests, the bot answers pending messages, WebSocket
// clients are closed and telemetry is flushed.
//
// The package never calls os.Exit; main decides the exit code.
package app
