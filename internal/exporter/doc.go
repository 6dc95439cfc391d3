// Package exporter writes rank data as CSV.
//
// It has two parts:
//
// StreamWriter: Core CSV writing over any io.Writer with an optional UTF-8
// BOM so Excel opens the file with the right encoding. WriteRanks,
// WriteHistory and WriteRows build on it for the HTTP API and the extract
// command.
//
// DailyExporter: Turns the snapshot of a finished day into
// ranks_YYYY-MM-DD.csv next to the snapshot. It runs when the tracker
// rolls over to a new date.
//
// Example usage:
//
//	// Current ranks to an HTTP response
//	err := exporter.WriteRanks(w, query.ListAll(), nil, exporter.WriteOptions{BOMPrefix: true})
//
//	// End-of-day report
//	daily := exporter.NewDailyExporter(processedDir, persister, location, logger)
//	tracker.OnRollover(daily.OnRollover)
package exporter
