// Package dataprocessing turns a decoded OI spurts table into ranked
// instrument rows.
//
// Two pieces live here:
//
//  1. Normalize maps a raw instrument label to its canonical key
//  2. Extractor locates the instrument and auxiliary columns by header
//     heuristics and emits one ExtractedRow per valid table row
//
// Rank is taken purely from row position: the row at index i gets rank
// i+1 and rows skipped as garbage leave gaps rather than renumbering.
//
// # Usage
//
//	tbl, err := table.Decode(data)
//	if err != nil {
//	    return err
//	}
//	result := dataprocessing.NewExtractor(logger).Extract(tbl, "oi_spurts_20240102_101500.xlsx")
//	for _, row := range result.Rows {
//	    fmt.Println(row.Rank, row.InstrumentKey)
//	}
package dataprocessing
