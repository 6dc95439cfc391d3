// Package http implements the HTTP surface of the rank tracker.
// Handlers are a thin layer between chi and the service layer: they parse
// and validate the request, call a service and render the result.
//
// # Routes
//
//	GET  /api/health                       liveness summary
//	GET  /api/health/ready                 readiness with per-dependency checks
//	GET  /api/status                       daily collection status
//	GET  /api/instruments                  latest state of every instrument
//	GET  /api/instruments/{key}            latest observation of one instrument
//	GET  /api/instruments/{key}/history    today's observations, oldest first
//	GET  /api/search?q=                    best match for free text
//	GET  /api/suggestions?q=               keys containing the query
//	GET  /api/movers?n=                    largest rank changes
//	POST /api/collect                      run a collection now
//	GET  /api/schedule                     slots with last and next run
//	GET  /ws                               live feed of cycle results
//	GET  /metrics                          Prometheus exposition
//
// # Error Handling
//
// All errors are rendered as RFC 7807 Problem Details by
// errors.ErrorHandler:
//
//	{
//	    "type": "/errors/not-found",
//	    "title": "Not Found",
//	    "status": 404,
//	    "detail": "instrument XYZ not found",
//	    "instance": "/api/instruments/XYZ"
//	}
package http
