// Command extract decodes a saved OI spurts export and prints the ranked
// instrument rows as JSON. It is the offline counterpart of one collection
// cycle and never touches the network or the rank history.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/tidwall/pretty"

	"oispurts/internal/config"
	"oispurts/internal/dataprocessing"
	"oispurts/internal/exporter"
	"oispurts/internal/infrastructure"
	"oispurts/internal/table"
	"oispurts/internal/validation"
	"oispurts/pkg/contracts/domain"
)

// report is the printed result
type report struct {
	Source           string                `json:"source"`
	Format           string                `json:"format"`
	InstrumentColumn string                `json:"instrument_column"`
	AuxiliaryColumns []string              `json:"auxiliary_columns"`
	TotalRows        int                   `json:"total_rows"`
	Skipped          int                   `json:"skipped"`
	Rows             []domain.ExtractedRow `json:"rows"`
}

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "extract:", err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("extract", flag.ContinueOnError)
	fs.SetOutput(stderr)
	color := fs.Bool("color", false, "colorize the JSON output")
	asCSV := fs.Bool("csv", false, "print the rows as CSV instead of JSON")
	limit := fs.Int("limit", 0, "print at most this many rows (0 prints all)")
	verbose := fs.Bool("v", false, "log extraction details to stderr")
	output := fs.String("o", "", "write to this file instead of stdout")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: extract [-csv | -color] [-limit n] [-o file] [-v] <file.xlsx|file.csv|file.json>")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return fmt.Errorf("expected exactly one input file")
	}
	path := fs.Arg(0)

	level := "warn"
	if *verbose {
		level = "debug"
	}
	logger := infrastructure.NewLogger(config.LoggingConfig{Level: level, Format: "text"}, stderr)

	validator := validation.NewFileValidator(logger)
	if err := validator.ValidateExport(path); err != nil {
		return err
	}
	if *output != "" {
		if err := validator.ValidateOutputDirectory(filepath.Dir(*output)); err != nil {
			return err
		}
		f, err := os.Create(*output)
		if err != nil {
			return fmt.Errorf("create %s: %w", *output, err)
		}
		defer f.Close()
		stdout = f
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	tbl, err := table.Decode(data)
	if err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}

	source := filepath.Base(path)
	result := dataprocessing.NewExtractor(logger).Extract(tbl, source)

	rows := result.Rows
	if *limit > 0 && len(rows) > *limit {
		rows = rows[:*limit]
	}

	if *asCSV {
		return exporter.WriteRows(stdout, rows, exporter.WriteOptions{})
	}

	out, err := json.Marshal(report{
		Source:           source,
		Format:           string(tbl.Format),
		InstrumentColumn: result.InstrumentColumn,
		AuxiliaryColumns: result.AuxiliaryColumns,
		TotalRows:        result.TotalRows,
		Skipped:          result.Skipped,
		Rows:             rows,
	})
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}

	out = pretty.Pretty(out)
	if *color {
		out = pretty.Color(out, nil)
	}
	if _, err := stdout.Write(out); err != nil {
		return err
	}

	if len(result.Rows) == 0 {
		logger.Warn("no instrument rows extracted", slog.String("source_file", source))
	}
	return nil
}
