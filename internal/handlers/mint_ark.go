package handlers

import (
	"context"
	"log/slog"

	"arkline/internal/logging"
	"arkline/internal/records"
)

// Minter is the slice of the ARK minter client the handler needs; the
// production implementation is *arkmint.Client.
type Minter interface {
	Mint(ctx context.Context, details map[string]string) (string, error)
	Update(ctx context.Context, ark string, details map[string]string) error
}

// MintARK mints an ARK for the record, or pushes updated descriptive fields
// when the record already carries one.
type MintARK struct {
	store  *records.Store
	minter Minter
	logger *slog.Logger
}

// NewMintARK builds the ARK minting handler.
func NewMintARK(store *records.Store, minter Minter, logger *slog.Logger) *MintARK {
	return &MintARK{store: store, minter: minter, logger: logging.WithComponent(logger, "mint_ark")}
}

func (h *MintARK) Execute(ctx context.Context, record *records.Record, step *records.Step) error {
	if h.minter == nil {
		reportFailure(step, "The ARK minter is not configured. Please contact your admin.")
		return nil
	}

	meta, err := LoadMetadata(record)
	if err != nil {
		return err
	}

	details := map[string]string{}
	if meta.Title != "" {
		details["title"] = meta.Title
	}
	if meta.Creator != "" {
		details["creator"] = meta.Creator
	}
	if meta.Description != "" {
		details["description"] = meta.Description
	}

	if record.Identifier != "" {
		if err := h.minter.Update(ctx, record.Identifier, details); err != nil {
			reportFailure(step, "Could not update the ARK record. Please try again later or contact an administrator.")
			h.logger.Warn("ark update failed", logging.Error(err))
			return nil
		}
		return nil
	}

	ark, err := h.minter.Mint(ctx, details)
	if err != nil {
		reportFailure(step, "Could not mint an ARK. Please try again later or contact an administrator.")
		h.logger.Warn("ark mint failed", logging.Error(err))
		return nil
	}

	record.Identifier = ark
	if err := h.store.UpdateRecord(ctx, record); err != nil {
		return err
	}

	h.logger.Info("ark assigned",
		logging.Int64(logging.FieldRecordID, record.ID),
		logging.String("ark", ark))
	return nil
}
