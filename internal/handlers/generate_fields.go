package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"arkline/internal/config"
	"arkline/internal/logging"
	"arkline/internal/records"
)

// GenerateFields computes the derived metadata fields: title, created and
// available years, page-count description, license, access rights, and
// source. Missing defaults are configuration errors that name the setting.
type GenerateFields struct {
	store    *records.Store
	defaults config.Defaults
	logger   *slog.Logger
	now      func() time.Time
}

// NewGenerateFields builds the field generation handler.
func NewGenerateFields(store *records.Store, defaults config.Defaults, logger *slog.Logger) *GenerateFields {
	return &GenerateFields{
		store:    store,
		defaults: defaults,
		logger:   logging.WithComponent(logger, "generate_fields"),
		now:      time.Now,
	}
}

func (h *GenerateFields) Execute(ctx context.Context, record *records.Record, step *records.Step) error {
	meta, err := LoadMetadata(record)
	if err != nil {
		return err
	}
	if len(meta.Years) == 0 {
		reportFailure(step, "The record carries no dates. Run the filename step first.")
		return nil
	}

	years := append([]int{}, meta.Years...)
	sort.Ints(years)

	meta.Title = buildTitle(meta.Creator, meta.ReportTypes, years)
	meta.Created = years[len(years)-1] + 1

	pages, err := h.store.PagesForRecord(ctx, record.ID)
	if err != nil {
		return err
	}
	if len(pages) == 1 {
		meta.Description = "1 page"
	} else {
		meta.Description = fmt.Sprintf("%d pages", len(pages))
	}

	if strings.TrimSpace(h.defaults.License) == "" {
		reportFailure(step, "No license was specified. Please update the system settings.")
		return nil
	}
	meta.License = splitList(h.defaults.License)

	if h.defaults.AvailableYearOffset < 0 {
		reportFailure(step, "Specified year offset is negative. Please update the system settings.")
		return nil
	}
	meta.Available = meta.Created + h.defaults.AvailableYearOffset

	if meta.Available > h.now().Year() {
		meta.AccessRights = AccessRestricted
	} else {
		meta.AccessRights = AccessNotRestricted
	}

	meta.Source = splitList(h.defaults.Source)

	if err := meta.Apply(record); err != nil {
		return err
	}
	if record.Title == "" || record.Title == meta.Filename {
		record.Title = meta.Title
	}
	if err := h.store.UpdateRecord(ctx, record); err != nil {
		return err
	}

	h.logger.Info("fields generated",
		logging.Int64(logging.FieldRecordID, record.ID),
		logging.String("title", meta.Title),
		logging.String("access_rights", meta.AccessRights))
	return nil
}

// buildTitle renders "Creator - Type, Type (years)" with consecutive years
// collapsed into ranges.
func buildTitle(creator string, reportTypes []string, sortedYears []int) string {
	title := strings.Join(reportTypes, ", ")
	if creator != "" {
		title = creator + " - " + title
	}
	return fmt.Sprintf("%s (%s)", title, formatYearRanges(sortedYears))
}

func formatYearRanges(sortedYears []int) string {
	if len(sortedYears) == 0 {
		return ""
	}
	var groups [][]int
	groups = append(groups, []int{sortedYears[0]})
	for _, year := range sortedYears[1:] {
		last := groups[len(groups)-1]
		if year == last[len(last)-1] {
			continue
		}
		if year == last[len(last)-1]+1 {
			groups[len(groups)-1] = append(last, year)
		} else {
			groups = append(groups, []int{year})
		}
	}
	parts := make([]string, 0, len(groups))
	for _, group := range groups {
		if len(group) > 1 {
			parts = append(parts, fmt.Sprintf("%d -- %d", group[0], group[len(group)-1]))
		} else {
			parts = append(parts, fmt.Sprintf("%d", group[0]))
		}
	}
	return strings.Join(parts, ", ")
}

func splitList(value string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
