package galaxy

import "encoding/json"

// some structs matching JSON responses from the galaxy api
// only the fields the cli reads are declared

// History ..
type History struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	Tags         []string       `json:"tags"`
	Deleted      bool           `json:"deleted"`
	Purged       bool           `json:"purged"`
	State        string         `json:"state,omitempty"`
	StateDetails map[string]int `json:"state_details,omitempty"`
}

// HasTag reports whether the history carries tag
func (h *History) HasTag(tag string) bool {
	for _, t := range h.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// HistoryContent is an entry of a history's contents listing
type HistoryContent struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Deleted     bool   `json:"deleted"`
	Visible     bool   `json:"visible"`
	State       string `json:"state"`
	Extension   string `json:"extension"`
	ContentType string `json:"history_content_type"`
}

// Dataset is a history dataset association
type Dataset struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	HistoryID string `json:"history_id"`
	State     string `json:"state"`
	Extension string `json:"file_ext"`
	MiscInfo  string `json:"misc_info"`
	Deleted   bool   `json:"deleted"`
}

// dataset states
const (
	DatasetStateOK     = "ok"
	DatasetStateError  = "error"
	DatasetStatePaused = "paused"
)

// DatasetTerminal reports whether a dataset state will not change anymore
func DatasetTerminal(state string) bool {
	switch state {
	case DatasetStateOK, DatasetStateError, DatasetStatePaused, "discarded", "failed_metadata", "empty", "deferred":
		return true
	}
	return false
}

// Collection is a history dataset collection association
type Collection struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// CollectionElement identifies a dataset to put in a new collection
type CollectionElement struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Src  string `json:"src"`
}

// Genome is one entry of the genomes listing, sent as a [name, id] pair
type Genome struct {
	Name string
	ID   string
}

// UnmarshalJSON ..
func (g *Genome) UnmarshalJSON(b []byte) error {
	pair := []string{}
	if err := json.Unmarshal(b, &pair); err != nil {
		return err
	}
	if len(pair) > 0 {
		g.Name = pair[0]
	}
	if len(pair) > 1 {
		g.ID = pair[1]
	}
	return nil
}

// MarshalJSON ..
func (g Genome) MarshalJSON() ([]byte, error) {
	return json.Marshal([]string{g.Name, g.ID})
}

// Workflow ..
type Workflow struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Owner     string   `json:"owner"`
	Tags      []string `json:"tags"`
	Published bool     `json:"published"`
	Deleted   bool     `json:"deleted"`
}

// HasTag reports whether the workflow carries tag
func (w *Workflow) HasTag(tag string) bool {
	for _, t := range w.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// WorkflowDetails is the single workflow view
// Inputs is keyed on the step index of each input step
type WorkflowDetails struct {
	Workflow
	Inputs map[string]WorkflowInput `json:"inputs"`
}

// WorkflowInput ..
type WorkflowInput struct {
	Label string `json:"label"`
	UUID  string `json:"uuid"`
	Value string `json:"value"`
}

// InputIndex returns the step index of the input with the given label
func (w *WorkflowDetails) InputIndex(label string) (string, bool) {
	for index, input := range w.Inputs {
		if input.Label == label {
			return index, true
		}
	}
	return "", false
}

// Ref points at a dataset ("hda") or a collection ("hdca")
type Ref struct {
	ID  string `json:"id"`
	Src string `json:"src"`
}

// InvocationRequest is the body of a workflow invocation
type InvocationRequest struct {
	HistoryID                 string                 `json:"history_id"`
	Inputs                    map[string]interface{} `json:"inputs"`
	InputsBy                  string                 `json:"inputs_by"`
	AllowToolStateCorrections bool                   `json:"allow_tool_state_corrections"`
}

// Invocation ..
type Invocation struct {
	ID         string           `json:"id"`
	WorkflowID string           `json:"workflow_id"`
	HistoryID  string           `json:"history_id"`
	State      string           `json:"state"`
	UpdateTime string           `json:"update_time,omitempty"`
	Outputs    map[string]Ref   `json:"outputs,omitempty"`
	Steps      []InvocationStep `json:"steps,omitempty"`
}

// invocation scheduling states
const (
	InvocationStateNew       = "new"
	InvocationStateReady     = "ready"
	InvocationStateScheduled = "scheduled"
	InvocationStateCancelled = "cancelled"
	InvocationStateFailed    = "failed"
)

// InvocationStep ..
type InvocationStep struct {
	ID                      string       `json:"id"`
	OrderIndex              int          `json:"order_index"`
	WorkflowStepLabel       string       `json:"workflow_step_label"`
	State                   string       `json:"state"`
	SubworkflowInvocationID string       `json:"subworkflow_invocation_id"`
	Jobs                    []JobSummary `json:"jobs,omitempty"`
}

// JobSummary is the short job view embedded in invocation steps
type JobSummary struct {
	ID    string `json:"id"`
	State string `json:"state"`
}

// JobStateError ..
const JobStateError = "error"

// Job is the full job view
type Job struct {
	ID       string                     `json:"id"`
	ToolID   string                     `json:"tool_id"`
	State    string                     `json:"state"`
	Stderr   string                     `json:"stderr"`
	Params   map[string]json.RawMessage `json:"params"`
	Inputs   map[string]Ref             `json:"inputs"`
	Outputs  map[string]Ref             `json:"outputs"`
	ExitCode *int                       `json:"exit_code"`
}

// Param returns a job parameter as a plain string
// galaxy sends most parameter values as JSON encoded strings
func (j *Job) Param(name string) (string, bool) {
	raw, ok := j.Params[name]
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return string(raw), true
	}
	var inner string
	if err := json.Unmarshal([]byte(s), &inner); err == nil {
		return inner, true
	}
	return s, true
}

// UploadResponse is returned by the upload tool
type UploadResponse struct {
	Outputs []Dataset    `json:"outputs"`
	Jobs    []JobSummary `json:"jobs"`
}
