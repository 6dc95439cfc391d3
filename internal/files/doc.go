// Package files keeps the raw OI spurts exports downloaded by the scraper.
//
// Every successful download is written to the excel directory as
// oi_spurts_YYYYMMDD_HHMMSS.<ext>. Discovery lists those files in
// chronological order and Manager saves, counts and prunes them.
//
// Example usage:
//
//	manager := files.NewManager(paths.ExcelDir, logger)
//	path, err := manager.SaveRaw(data, time.Now(), "xlsx")
//	removed, err := manager.Prune(50)
package files
