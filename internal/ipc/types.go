package ipc

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// StatusResponse represents combined daemon and pipeline status information.
type StatusResponse struct {
	Running      bool           `json:"running"`
	PID          int            `json:"pid"`
	DBPath       string         `json:"db_path"`
	LockPath     string         `json:"lock_path"`
	TotalRecords int            `json:"total_records"`
	StepStats    map[string]int `json:"step_stats"`
}

// StepView is the wire representation of one pipeline step.
type StepView struct {
	ID              int64  `json:"id"`
	Type            string `json:"type"`
	Order           int    `json:"order"`
	Mode            string `json:"mode"`
	HumanValidation bool   `json:"human_validation"`
	Status          string `json:"status"`
	Log             string `json:"log,omitempty"`
	UpdatedAt       string `json:"updated_at"`
}

// PageView is the wire representation of one record page.
type PageView struct {
	ID         int64  `json:"id"`
	Order      int    `json:"order"`
	NOID       string `json:"noid,omitempty"`
	Identifier string `json:"identifier,omitempty"`
	Source     string `json:"source,omitempty"`
}

// RecordView is the wire representation of one record with its steps.
type RecordView struct {
	ID         int64      `json:"id"`
	Title      string     `json:"title"`
	NOID       string     `json:"noid,omitempty"`
	Identifier string     `json:"identifier,omitempty"`
	CreatedAt  string     `json:"created_at"`
	UpdatedAt  string     `json:"updated_at"`
	Steps      []StepView `json:"steps,omitempty"`
}

// ListRequest fetches all records.
type ListRequest struct{}

// ListResponse contains the record listing.
type ListResponse struct {
	Records []RecordView `json:"records"`
}

// DescribeRequest fetches a single record by id.
type DescribeRequest struct {
	ID int64 `json:"id"`
}

// DescribeResponse contains a single record with steps and pages.
type DescribeResponse struct {
	Record RecordView `json:"record"`
	Pages  []PageView `json:"pages,omitempty"`
}

// StepSpecView describes one step of a custom pipeline for new records.
type StepSpecView struct {
	Type            string `json:"type"`
	Order           int    `json:"order"`
	Mode            string `json:"mode"`
	HumanValidation bool   `json:"human_validation"`
}

// AddRequest enqueues new records, one per title. An empty Steps list seeds
// the default pipeline; a custom list applies to every title in the batch.
type AddRequest struct {
	Titles []string       `json:"titles"`
	Steps  []StepSpecView `json:"steps,omitempty"`
}

// AddResponse reports the created records.
type AddResponse struct {
	Records []RecordView `json:"records"`
}

// AdvanceRequest re-evaluates a record's pipeline.
type AdvanceRequest struct {
	ID int64 `json:"id"`
}

// AdvanceResponse reports whether a step was dispatched.
type AdvanceResponse struct {
	Dispatched bool `json:"dispatched"`
}

// RestartRequest forces one step back through execution.
type RestartRequest struct {
	ID       int64  `json:"id"`
	StepType string `json:"step_type"`
}

// RestartResponse acknowledges the restart.
type RestartResponse struct{}

// SubmitInputRequest resolves a step waiting on human input. Rerun sends the
// step back through its handler instead of completing it directly.
type SubmitInputRequest struct {
	ID    int64 `json:"id"`
	Rerun bool  `json:"rerun"`
}

// SubmitInputResponse acknowledges the submission.
type SubmitInputResponse struct{}

// ConfirmRequest resolves a step waiting on human validation.
type ConfirmRequest struct {
	ID int64 `json:"id"`
}

// ConfirmResponse acknowledges the confirmation.
type ConfirmResponse struct{}

// LogTailRequest fetches log lines based on offset and follow semantics.
type LogTailRequest struct {
	Offset     int64 `json:"offset"`
	Limit      int   `json:"limit"`
	Follow     bool  `json:"follow"`
	WaitMillis int   `json:"wait_millis"`
}

// LogTailResponse returns log lines and the next offset.
type LogTailResponse struct {
	Lines  []string `json:"lines"`
	Offset int64    `json:"offset"`
}

// RemoveRequest deletes a record with its steps and pages.
type RemoveRequest struct {
	ID int64 `json:"id"`
}

// RemoveResponse reports whether the record existed.
type RemoveResponse struct {
	Removed bool `json:"removed"`
}
