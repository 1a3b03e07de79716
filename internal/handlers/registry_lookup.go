package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"arkline/internal/logging"
	"arkline/internal/records"
	"arkline/internal/services"
)

// Entry is one external archive registry record.
type Entry struct {
	ArchiveID        string `json:"archiveId"`
	OrganisationName string `json:"organisationName"`
	CatalogueLink    string `json:"catalogueLink"`
	County           string `json:"county"`
	Municipality     string `json:"municipality"`
	City             string `json:"city"`
	Parish           string `json:"parish"`
}

// Resolver looks up external registry entries by archive id.
type Resolver interface {
	Lookup(ctx context.Context, archiveID string) ([]Entry, error)
}

// FileResolver reads the registry from a JSON file: an array of entries.
type FileResolver struct {
	path string
}

// NewFileResolver builds a resolver over a registry export on disk.
func NewFileResolver(path string) *FileResolver {
	return &FileResolver{path: path}
}

func (r *FileResolver) Lookup(ctx context.Context, archiveID string) ([]Entry, error) {
	raw, err := os.ReadFile(r.path)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, string(records.StepRegistryLookup), "read registry", r.path, err)
	}
	var all []Entry
	if err := json.Unmarshal(raw, &all); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, string(records.StepRegistryLookup), "decode registry", r.path, err)
	}
	var matches []Entry
	for _, entry := range all {
		if entry.ArchiveID == archiveID {
			matches = append(matches, entry)
		}
	}
	return matches, nil
}

// RegistryLookup enriches a record from the external archive registry:
// creator, union coverage level, catalogue relation, and spatial terms.
type RegistryLookup struct {
	store    *records.Store
	resolver Resolver
	logger   *slog.Logger
}

// NewRegistryLookup builds the lookup handler.
func NewRegistryLookup(store *records.Store, resolver Resolver, logger *slog.Logger) *RegistryLookup {
	return &RegistryLookup{store: store, resolver: resolver, logger: logging.WithComponent(logger, "registry_lookup")}
}

func (h *RegistryLookup) Execute(ctx context.Context, record *records.Record, step *records.Step) error {
	if h.resolver == nil {
		reportFailure(step, "No registry is configured for lookups. Please contact your admin.")
		return nil
	}

	meta, err := LoadMetadata(record)
	if err != nil {
		return err
	}
	if meta.UnionID == "" {
		reportFailure(step, "The record carries no union ID. Run the filename step first.")
		return nil
	}

	entries, err := h.resolver.Lookup(ctx, meta.UnionID)
	if err != nil {
		if services.UserFacing(err) {
			reportFailure(step, "The registry could not be read. Please contact your admin.")
			h.logger.Warn("registry lookup failed", logging.Error(err))
			return nil
		}
		return err
	}
	if len(entries) == 0 {
		reportFailure(step, fmt.Sprintf("No registry entry found for union with ID %s.", meta.UnionID))
		return nil
	}
	if len(entries) > 1 {
		reportFailure(step, fmt.Sprintf(
			"Found %d registry entries for union with ID %s. Expected exactly one.", len(entries), meta.UnionID))
		return nil
	}

	entry := entries[0]
	if entry.OrganisationName == "" {
		reportFailure(step, fmt.Sprintf("Organisation name is empty for union with ID %s.", meta.UnionID))
		return nil
	}

	meta.Creator = entry.OrganisationName
	meta.Coverage = coverageForName(entry.OrganisationName)
	meta.Relation = []string{entry.CatalogueLink}
	meta.Spatial = spatialTerms(entry)

	if err := meta.Apply(record); err != nil {
		return err
	}
	if err := h.store.UpdateRecord(ctx, record); err != nil {
		return err
	}

	h.logger.Info("registry entry applied",
		logging.Int64(logging.FieldRecordID, record.ID),
		logging.String("creator", meta.Creator),
		logging.String("coverage", meta.Coverage))
	return nil
}

// coverageForName maps an organisation name to its union coverage level.
func coverageForName(name string) string {
	lower := strings.ToLower(name)
	switch {
	case strings.Contains(lower, "klubb"):
		return CoverageWorkplace
	case strings.Contains(lower, "sektion"):
		return CoverageSection
	case strings.Contains(lower, "avd"), strings.Contains(lower, "avdelning"):
		return CoverageDivision
	case strings.Contains(lower, "distrikt"):
		return CoverageDistrict
	case strings.Contains(lower, "riks"):
		return CoverageNationalBranch
	default:
		return CoverageOther
	}
}

func spatialTerms(entry Entry) []string {
	terms := []string{"SE"}
	for _, t := range []string{entry.County, entry.Municipality, entry.City, entry.Parish} {
		if t != "" {
			terms = append(terms, t)
		}
	}
	return terms
}
