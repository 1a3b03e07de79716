package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"arkline/internal/logging"
	"arkline/internal/records"
)

// Archival filenames follow <institution>-<unionId>-<year>[-<type>], for
// example "fack-01234-1952-arsberattelse.pdf". The type suffix is optional
// and defaults to an annual report.
var filenamePattern = regexp.MustCompile(`^([a-zA-Z]+)-(\d+)-(\d{4})(?:-([a-z]+))?$`)

var reportTypeNames = map[string]string{
	"arsberattelse":       TypeAnnualReport,
	"revisionsberattelse": TypeFinancialStatement,
}

// ParseFilename derives the union id, year, and report type from the
// record's archival filename.
type ParseFilename struct {
	store  *records.Store
	logger *slog.Logger
}

// NewParseFilename builds the filename parsing handler.
func NewParseFilename(store *records.Store, logger *slog.Logger) *ParseFilename {
	return &ParseFilename{store: store, logger: logging.WithComponent(logger, "parse_filename")}
}

func (h *ParseFilename) Execute(ctx context.Context, record *records.Record, step *records.Step) error {
	meta, err := LoadMetadata(record)
	if err != nil {
		return err
	}

	name := meta.Filename
	if name == "" {
		name = record.Title
	}
	base := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))

	match := filenamePattern.FindStringSubmatch(base)
	if match == nil {
		reportFailure(step, fmt.Sprintf(
			"Could not parse filename %q. Expected <institution>-<unionId>-<year>.", base))
		return nil
	}

	year, err := strconv.Atoi(match[3])
	if err != nil {
		reportFailure(step, fmt.Sprintf("Filename %q carries an invalid year.", base))
		return nil
	}

	reportType := TypeAnnualReport
	if match[4] != "" {
		mapped, ok := reportTypeNames[match[4]]
		if !ok {
			reportFailure(step, fmt.Sprintf(
				"Filename %q carries unknown report type %q.", base, match[4]))
			return nil
		}
		reportType = mapped
	}

	meta.Filename = base
	meta.UnionID = match[2]
	meta.Years = appendYear(meta.Years, year)
	meta.ReportTypes = appendUnique(meta.ReportTypes, reportType)

	if err := meta.Apply(record); err != nil {
		return err
	}
	if err := h.store.UpdateRecord(ctx, record); err != nil {
		return err
	}

	h.logger.Info("filename parsed",
		logging.Int64(logging.FieldRecordID, record.ID),
		logging.String("union_id", meta.UnionID),
		logging.Int("year", year))
	return nil
}

func appendYear(years []int, year int) []int {
	for _, y := range years {
		if y == year {
			return years
		}
	}
	return append(years, year)
}

func appendUnique(values []string, value string) []string {
	for _, v := range values {
		if v == value {
			return values
		}
	}
	return append(values, value)
}
