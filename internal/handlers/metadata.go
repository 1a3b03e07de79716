package handlers

import (
	"encoding/json"
	"fmt"

	"arkline/internal/records"
)

// Union coverage levels derived from the organisation name.
const (
	CoverageWorkplace      = "workplace"
	CoverageSection        = "section"
	CoverageDivision       = "division"
	CoverageDistrict       = "district"
	CoverageNationalBranch = "national branch"
	CoverageOther          = "other"
)

// Report types recognized by the filename convention.
const (
	TypeAnnualReport       = "Annual Report"
	TypeFinancialStatement = "Financial Statement"
)

// Access rights values set by the generate step.
const (
	AccessRestricted    = "restricted"
	AccessNotRestricted = "not restricted"
)

// Translation holds the translated display labels for one language.
type Translation struct {
	Coverage     string   `json:"coverage,omitempty"`
	Types        []string `json:"types,omitempty"`
	AccessRights string   `json:"accessRights,omitempty"`
}

// Metadata is the enrichment document the handlers read and write through
// Record.MetadataJSON. The orchestration core never interprets it.
type Metadata struct {
	Filename     string   `json:"filename,omitempty"`
	UnionID      string   `json:"unionId,omitempty"`
	ReportTypes  []string `json:"reportTypes,omitempty"`
	Years        []int    `json:"years,omitempty"`
	Creator      string   `json:"creator,omitempty"`
	Coverage     string   `json:"coverage,omitempty"`
	Relation     []string `json:"relation,omitempty"`
	Spatial      []string `json:"spatial,omitempty"`
	Title        string   `json:"title,omitempty"`
	Created      int      `json:"created,omitempty"`
	Description  string   `json:"description,omitempty"`
	Available    int      `json:"available,omitempty"`
	License      []string `json:"license,omitempty"`
	AccessRights string   `json:"accessRights,omitempty"`
	Source       []string `json:"source,omitempty"`

	// Transcriptions maps page order to extracted text.
	Transcriptions map[string]string `json:"transcriptions,omitempty"`

	// Translations maps a language code to translated labels.
	Translations map[string]Translation `json:"translations,omitempty"`
}

// LoadMetadata decodes a record's metadata document. An empty document is
// valid and yields a zero value.
func LoadMetadata(record *records.Record) (*Metadata, error) {
	meta := &Metadata{}
	if record.MetadataJSON == "" {
		return meta, nil
	}
	if err := json.Unmarshal([]byte(record.MetadataJSON), meta); err != nil {
		return nil, fmt.Errorf("decode record metadata: %w", err)
	}
	return meta, nil
}

// Apply serializes the document back onto the record. The caller persists
// the record afterwards.
func (m *Metadata) Apply(record *records.Record) error {
	raw, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode record metadata: %w", err)
	}
	record.MetadataJSON = string(raw)
	return nil
}

// reportFailure marks the step with a user-readable log message. The worker
// persists the outcome after the handler returns.
func reportFailure(step *records.Step, message string) {
	step.Status = records.StatusError
	step.Log = message
}
