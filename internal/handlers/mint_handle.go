package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"arkline/internal/config"
	"arkline/internal/identifier"
	"arkline/internal/logging"
	"arkline/internal/records"
	"arkline/internal/services/handle"
)

// HandleRegistry is the slice of the registry client the minting handler
// needs; the production implementation is *handle.Client.
type HandleRegistry interface {
	Exists(ctx context.Context, noid string) (bool, error)
	Create(ctx context.Context, noid, resolveTo string) (string, error)
	Update(ctx context.Context, noid, resolveTo string) (string, error)
	CreateWithLocations(ctx context.Context, noid string, locations []handle.Location) (string, error)
	UpdateWithLocations(ctx context.Context, noid string, locations []handle.Location) (string, error)
}

// MintHandle mints the record's plain handle and one location-based handle
// per page. Records that already carry a NOID get their resolution targets
// rewritten instead of a fresh identifier.
type MintHandle struct {
	store       *records.Store
	registry    HandleRegistry
	handleCfg   config.Handle
	maxAttempts int
	noidLength  int
	logger      *slog.Logger
}

// NewMintHandle builds the handle minting handler.
func NewMintHandle(store *records.Store, registry HandleRegistry, handleCfg config.Handle, pipelineCfg config.Pipeline, logger *slog.Logger) *MintHandle {
	return &MintHandle{
		store:       store,
		registry:    registry,
		handleCfg:   handleCfg,
		maxAttempts: pipelineCfg.MintMaxAttempts,
		noidLength:  pipelineCfg.IdentifierLength,
		logger:      logging.WithComponent(logger, "mint_handle"),
	}
}

func (h *MintHandle) Execute(ctx context.Context, record *records.Record, step *records.Step) error {
	if h.registry == nil {
		reportFailure(step, "The handle registry is not configured. Please contact your admin.")
		return nil
	}
	if strings.TrimSpace(h.handleCfg.ViewerHandle) == "" {
		reportFailure(step, "No viewer handle is configured. Please contact your admin.")
		return nil
	}
	if strings.TrimSpace(h.handleCfg.IIIFBaseURL) == "" {
		reportFailure(step, "No IIIF base URL is configured. Please contact your admin.")
		return nil
	}

	if done := h.mintRecordHandle(ctx, record, step); done {
		return nil
	}

	pages, err := h.store.PagesForRecord(ctx, record.ID)
	if err != nil {
		return err
	}
	for _, page := range pages {
		if done := h.mintPageHandle(ctx, page, step); done {
			return nil
		}
	}
	return nil
}

// mintRecordHandle writes the record's plain handle. It returns true when a
// failure was reported on the step and processing must stop.
func (h *MintHandle) mintRecordHandle(ctx context.Context, record *records.Record, step *records.Step) bool {
	if record.NOID != "" {
		written, err := h.registry.Update(ctx, record.NOID, h.recordTarget(record.NOID))
		if err != nil {
			h.reportRegistryFailure(step, err)
			return true
		}
		record.Identifier = resolverURL(written)
		if err := h.store.UpdateRecord(ctx, record); err != nil {
			h.reportRegistryFailure(step, err)
			return true
		}
		return false
	}

	noid, err := identifier.MintUnique(ctx, h.generate, h.registry.Exists, h.maxAttempts)
	if err != nil {
		if errors.Is(err, identifier.ErrExhausted) {
			reportFailure(step, fmt.Sprintf("Could not generate unique handle. Made %d attempt(s).", h.maxAttempts))
			return true
		}
		h.reportRegistryFailure(step, err)
		return true
	}

	written, err := h.registry.Create(ctx, noid, h.recordTarget(noid))
	if err != nil {
		h.reportRegistryFailure(step, err)
		return true
	}
	record.NOID = noid
	record.Identifier = resolverURL(written)
	if err := h.store.UpdateRecord(ctx, record); err != nil {
		h.reportRegistryFailure(step, err)
		return true
	}

	h.logger.Info("record handle minted",
		logging.Int64(logging.FieldRecordID, record.ID),
		logging.String("handle", written))
	return false
}

// mintPageHandle writes one page's location-based handle. Pages resolve
// differently per requested view: IIIF info document, full image, manifest.
func (h *MintHandle) mintPageHandle(ctx context.Context, page *records.Page, step *records.Step) bool {
	if page.NOID != "" {
		written, err := h.registry.UpdateWithLocations(ctx, page.NOID, h.pageLocations(page.NOID))
		if err != nil {
			h.reportRegistryFailure(step, err)
			return true
		}
		h.stampPage(page, written)
		if err := h.store.UpdatePage(ctx, page); err != nil {
			h.reportRegistryFailure(step, err)
			return true
		}
		return false
	}

	noid, err := identifier.MintUnique(ctx, h.generate, h.registry.Exists, h.maxAttempts)
	if err != nil {
		if errors.Is(err, identifier.ErrExhausted) {
			reportFailure(step, fmt.Sprintf("Could not generate unique handle. Made %d attempt(s).", h.maxAttempts))
			return true
		}
		h.reportRegistryFailure(step, err)
		return true
	}

	written, err := h.registry.CreateWithLocations(ctx, noid, h.pageLocations(noid))
	if err != nil {
		h.reportRegistryFailure(step, err)
		return true
	}
	page.NOID = noid
	h.stampPage(page, written)
	if err := h.store.UpdatePage(ctx, page); err != nil {
		h.reportRegistryFailure(step, err)
		return true
	}
	return false
}

func (h *MintHandle) generate() (string, error) {
	return identifier.New(h.noidLength)
}

// recordTarget resolves the record handle through the viewer with the IIIF
// presentation manifest appended.
func (h *MintHandle) recordTarget(noid string) string {
	iiifBase := strings.TrimRight(h.handleCfg.IIIFBaseURL, "/") + "/"
	return h.handleCfg.ViewerHandle + "?urlappend=?manifest=" + iiifBase + fmt.Sprintf("iiif/presentation/%s/manifest", noid)
}

func (h *MintHandle) pageLocations(noid string) []handle.Location {
	iiifBase := strings.TrimRight(h.handleCfg.IIIFBaseURL, "/") + "/"
	imageBase := iiifBase + fmt.Sprintf("iiif/image/%s", noid)
	return []handle.Location{
		{Weight: 1, Href: imageBase + "/info.json"},
		{Weight: 0, Href: imageBase + "/full/full/0/default.jpg", View: "jpgfull"},
		{Weight: 0, Href: imageBase + "/info.json", View: "manifest"},
	}
}

func (h *MintHandle) stampPage(page *records.Page, written string) {
	page.Identifier = resolverURL(written) + "?locatt=view:manifest"
	page.Source = resolverURL(written) + "?locatt=view:jpgfull"
}

// reportRegistryFailure maps a registry failure onto the step: the user
// message goes to the step log, the admin detail only to the operational
// log.
func (h *MintHandle) reportRegistryFailure(step *records.Step, err error) {
	var regErr *handle.RegistryError
	if errors.As(err, &regErr) {
		reportFailure(step, regErr.UserMessage)
		h.logger.Warn("registry failure", logging.String("admin_message", regErr.AdminMessage))
		return
	}
	reportFailure(step, "The identifier registry could not be reached. Please try again later or contact an administrator.")
	h.logger.Warn("registry failure", logging.Error(err))
}

func resolverURL(written string) string {
	return "https://hdl.handle.net/" + written
}
