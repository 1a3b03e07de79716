package handlers

import (
	"context"
	"log/slog"
	"strconv"

	"arkline/internal/logging"
	"arkline/internal/records"
)

// TextExtractor runs text extraction (OCR/NER) for one page source. It is an
// external collaborator; the pipeline only stores what it returns.
type TextExtractor interface {
	Extract(ctx context.Context, source string) (string, error)
}

// ExtractText runs the configured extractor over every page of the record.
// Extraction failures on individual pages are logged and yield empty text
// rather than halting the step.
type ExtractText struct {
	store     *records.Store
	extractor TextExtractor
	logger    *slog.Logger
}

// NewExtractText builds the text extraction handler.
func NewExtractText(store *records.Store, extractor TextExtractor, logger *slog.Logger) *ExtractText {
	return &ExtractText{store: store, extractor: extractor, logger: logging.WithComponent(logger, "extract_text")}
}

func (h *ExtractText) Execute(ctx context.Context, record *records.Record, step *records.Step) error {
	if h.extractor == nil {
		reportFailure(step, "No text extraction service is configured. Please contact your admin.")
		return nil
	}

	meta, err := LoadMetadata(record)
	if err != nil {
		return err
	}
	if meta.Transcriptions == nil {
		meta.Transcriptions = make(map[string]string)
	}

	pages, err := h.store.PagesForRecord(ctx, record.ID)
	if err != nil {
		return err
	}
	for _, page := range pages {
		text, err := h.extractor.Extract(ctx, page.Source)
		if err != nil {
			h.logger.Error("text extraction failed",
				logging.Int64(logging.FieldRecordID, record.ID),
				logging.Int("page", page.Order),
				logging.Error(err))
			text = ""
		}
		meta.Transcriptions[strconv.Itoa(page.Order)] = text
	}

	if err := meta.Apply(record); err != nil {
		return err
	}
	return h.store.UpdateRecord(ctx, record)
}
