package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"arkline/internal/logging"
	"arkline/internal/records"
)

// Swedish display labels for the enumerated metadata fields.
var (
	swedishCoverage = map[string]string{
		CoverageWorkplace:      "arbetsplats",
		CoverageSection:        "sektion",
		CoverageDivision:       "avdelning",
		CoverageDistrict:       "distrikt",
		CoverageNationalBranch: "nationellt förbund",
		CoverageOther:          "övrig",
	}
	swedishTypes = map[string]string{
		TypeAnnualReport:       "verksamhetsberättelse",
		TypeFinancialStatement: "årsredovisning",
	}
	swedishAccessRights = map[string]string{
		AccessRestricted:    "tillståndsbelagt",
		AccessNotRestricted: "öppet",
	}
)

// Translate renders the Swedish display labels for the record's coverage,
// report types, and access rights.
type Translate struct {
	store  *records.Store
	caser  cases.Caser
	logger *slog.Logger
}

// NewTranslate builds the translation handler.
func NewTranslate(store *records.Store, logger *slog.Logger) *Translate {
	return &Translate{
		store:  store,
		caser:  cases.Lower(language.Swedish),
		logger: logging.WithComponent(logger, "translate"),
	}
}

func (h *Translate) Execute(ctx context.Context, record *records.Record, step *records.Step) error {
	meta, err := LoadMetadata(record)
	if err != nil {
		return err
	}

	translation := Translation{}

	if meta.Coverage != "" {
		label, ok := swedishCoverage[h.caser.String(meta.Coverage)]
		if !ok {
			reportFailure(step, fmt.Sprintf("No Swedish label exists for coverage %q.", meta.Coverage))
			return nil
		}
		translation.Coverage = label
	}

	for _, reportType := range meta.ReportTypes {
		label, ok := swedishTypes[reportType]
		if !ok {
			reportFailure(step, fmt.Sprintf("No Swedish label exists for report type %q.", reportType))
			return nil
		}
		translation.Types = append(translation.Types, label)
	}

	if meta.AccessRights != "" {
		label, ok := swedishAccessRights[strings.ToLower(meta.AccessRights)]
		if !ok {
			reportFailure(step, fmt.Sprintf("No Swedish label exists for access rights %q.", meta.AccessRights))
			return nil
		}
		translation.AccessRights = label
	}

	if meta.Translations == nil {
		meta.Translations = make(map[string]Translation)
	}
	meta.Translations[language.Swedish.String()] = translation

	if err := meta.Apply(record); err != nil {
		return err
	}
	if err := h.store.UpdateRecord(ctx, record); err != nil {
		return err
	}

	h.logger.Info("labels translated",
		logging.Int64(logging.FieldRecordID, record.ID),
		logging.String("language", language.Swedish.String()))
	return nil
}
