// Package shared holds code used across packages that belongs to no
// single layer. Today that is only testutil:
//
//   - silent and buffered slog loggers for asserting on log output
//   - workbook and CSV builders for decoder and extractor fixtures
//   - SampleOISpurts, a small export shaped like the exchange sheet
//
// Example usage:
//
//	func TestExtract(t *testing.T) {
//	    logger, logs := testutil.NewTestLogger(t)
//	    data := testutil.SampleOISpurts(t)
//	    ...
//	    assert.True(t, logs.ContainsMessage("extracted instrument rows"))
//	}
package shared
