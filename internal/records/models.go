package records

import (
	"sort"
	"strings"
	"time"
)

// Status represents the lifecycle of a processing step.
type Status string

const (
	StatusPending                 Status = "pending"
	StatusQueued                  Status = "queued"
	StatusInProgress              Status = "in_progress"
	StatusAwaitingHumanInput      Status = "awaiting_human_input"
	StatusAwaitingHumanValidation Status = "awaiting_human_validation"
	StatusComplete                Status = "complete"
	StatusError                   Status = "error"
)

var allStatuses = []Status{
	StatusPending,
	StatusQueued,
	StatusInProgress,
	StatusAwaitingHumanInput,
	StatusAwaitingHumanValidation,
	StatusComplete,
	StatusError,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

var inFlightStatuses = map[Status]struct{}{
	StatusQueued:                  {},
	StatusInProgress:              {},
	StatusAwaitingHumanInput:      {},
	StatusAwaitingHumanValidation: {},
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// InFlight reports whether the status means another actor already owns
// progress for the record: queued, executing, or waiting on a human.
func (s Status) InFlight() bool {
	_, ok := inFlightStatuses[s]
	return ok
}

// Terminal reports whether the status ends the step's execution until a
// human intervenes: finished successfully or halted on a reported failure.
func (s Status) Terminal() bool {
	return s == StatusComplete || s == StatusError
}

// Mode controls whether a step runs unattended or always pauses for a human.
type Mode string

const (
	ModeAutomatic Mode = "automatic"
	ModeManual    Mode = "manual"
)

// ParseMode converts a string into a known Mode.
func ParseMode(value string) (Mode, bool) {
	normalized := Mode(strings.ToLower(strings.TrimSpace(value)))
	switch normalized {
	case ModeAutomatic, ModeManual:
		return normalized, true
	}
	return "", false
}

// StepType identifies which handler and business meaning a step has. The
// enumeration is closed; records never carry dynamic step types.
type StepType string

const (
	StepParseFilename  StepType = "parse_filename"
	StepRegistryLookup StepType = "registry_lookup"
	StepGenerateFields StepType = "generate_fields"
	StepExtractText    StepType = "extract_text"
	StepManualReview   StepType = "manual_review"
	StepMintHandle     StepType = "mint_handle"
	StepMintARK        StepType = "mint_ark"
	StepTranslate      StepType = "translate"
)

var allStepTypes = []StepType{
	StepParseFilename,
	StepRegistryLookup,
	StepGenerateFields,
	StepExtractText,
	StepManualReview,
	StepMintHandle,
	StepMintARK,
	StepTranslate,
}

var stepTypeSet = func() map[StepType]struct{} {
	set := make(map[StepType]struct{}, len(allStepTypes))
	for _, t := range allStepTypes {
		set[t] = struct{}{}
	}
	return set
}()

// AllStepTypes returns the ordered list of known step types.
func AllStepTypes() []StepType {
	cp := make([]StepType, len(allStepTypes))
	copy(cp, allStepTypes)
	return cp
}

// ParseStepType converts a string into a known StepType.
func ParseStepType(value string) (StepType, bool) {
	normalized := StepType(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := stepTypeSet[normalized]
	return normalized, ok
}

// Record is the unit of work: one archival report progressing through the
// pipeline. Handlers mutate its metadata; the minting steps stamp NOID and
// Identifier once a persistent identifier is registered.
type Record struct {
	ID           int64
	Title        string
	NOID         string
	Identifier   string
	MetadataJSON string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Page is one scanned page of a record. Location-based handles resolve a
// page identifier to different targets per requested view.
type Page struct {
	ID         int64
	RecordID   int64
	Order      int
	NOID       string
	Identifier string
	Source     string
}

// Step is one stage's state for one record.
type Step struct {
	ID              int64
	RecordID        int64
	Type            StepType
	Order           int
	Mode            Mode
	HumanValidation bool
	Status          Status
	Log             string
	UpdatedAt       time.Time
}

// StepSpec describes one step to create when a record enters the system.
type StepSpec struct {
	Type            StepType
	Order           int
	Mode            Mode
	HumanValidation bool
}

// DefaultSteps returns the standard enrichment pipeline seeded for new
// records ingested from a batch.
func DefaultSteps() []StepSpec {
	return []StepSpec{
		{Type: StepParseFilename, Order: 1, Mode: ModeAutomatic},
		{Type: StepRegistryLookup, Order: 2, Mode: ModeAutomatic},
		{Type: StepGenerateFields, Order: 3, Mode: ModeAutomatic, HumanValidation: true},
		{Type: StepManualReview, Order: 4, Mode: ModeManual},
		{Type: StepMintHandle, Order: 5, Mode: ModeAutomatic},
		{Type: StepTranslate, Order: 6, Mode: ModeAutomatic},
	}
}

// NextActionable returns the first step, in ascending order, that is not
// complete. A nil result means the record is finished. The dispatcher applies
// its scheduling rules to the returned step; callers must not assume it is
// runnable.
func NextActionable(steps []*Step) *Step {
	sorted := make([]*Step, len(steps))
	copy(sorted, steps)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Order < sorted[j].Order })
	for _, step := range sorted {
		if step.Status != StatusComplete {
			return step
		}
	}
	return nil
}
