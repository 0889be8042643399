// Package galaxytest runs an in-memory imitation of the Galaxy API endpoints
// used by the cli, so the client can be tested without a real instance.
package galaxytest

import (
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/brinkmanlab/islandcompare-cli/galaxy"
)

// InactiveInvocationMessage is what galaxy answers when cancelling a finished invocation
const InactiveInvocationMessage = "Cannot cancel an inactive workflow invocation."

type dataset struct {
	galaxy.Dataset
	content []byte
}

type collection struct {
	galaxy.Collection
	historyID string
	elements  []galaxy.CollectionElement
}

type invocation struct {
	galaxy.Invocation
	request galaxy.InvocationRequest
}

// Output describes a workflow output created by Finish
type Output struct {
	Ext     string
	State   string
	Content string
}

// Server is a fake galaxy instance
// all exported fields may be set before the first request
type Server struct {
	*httptest.Server
	Key string

	// UploadState is the state given to newly uploaded datasets, "ok" by default
	UploadState string

	// OnInvoke is called with the new invocation, under the server lock
	OnInvoke func(s *Server, inv *galaxy.Invocation)

	sync.Mutex
	nextID      int
	requests    []string
	histories   map[string]*galaxy.History
	order       []string
	contents    map[string][]string
	datasets    map[string]*dataset
	collections map[string]*collection
	genomes     []galaxy.Genome
	workflows   []*galaxy.WorkflowDetails
	invocations map[string]*invocation
	steps       map[string]*galaxy.InvocationStep
	jobs        map[string]*galaxy.Job
}

// NewServer starts a fake galaxy accepting the given api key
func NewServer(key string) *Server {
	s := &Server{
		Key:         key,
		UploadState: galaxy.DatasetStateOK,
		histories:   make(map[string]*galaxy.History),
		contents:    make(map[string][]string),
		datasets:    make(map[string]*dataset),
		collections: make(map[string]*collection),
		invocations: make(map[string]*invocation),
		steps:       make(map[string]*galaxy.InvocationStep),
		jobs:        make(map[string]*galaxy.Job),
	}
	s.Server = httptest.NewServer(handlers.RecoveryHandler(handlers.PrintRecoveryStack(true))(s.makeRouter()))
	return s
}

func (s *Server) makeRouter() http.Handler {
	router := mux.NewRouter().StrictSlash(true)
	api := router.PathPrefix("/api").Subrouter()
	api.Use(s.handleAuth)

	api.HandleFunc("/histories", s.listHistories).Methods("GET")
	api.HandleFunc("/histories", s.createHistory).Methods("POST")
	api.HandleFunc("/histories/{id}", s.showHistory).Methods("GET")
	api.HandleFunc("/histories/{id}", s.updateHistory).Methods("PUT")
	api.HandleFunc("/histories/{id}", s.deleteHistory).Methods("DELETE")
	api.HandleFunc("/histories/{id}/contents", s.historyContents).Methods("GET")
	api.HandleFunc("/histories/{id}/contents", s.createCollection).Methods("POST")
	api.HandleFunc("/histories/{hid}/contents/{id}", s.deleteContent).Methods("DELETE")

	api.HandleFunc("/tools", s.upload).Methods("POST")
	api.HandleFunc("/datasets/{id}", s.showDataset).Methods("GET")
	api.HandleFunc("/datasets/{id}/display", s.displayDataset).Methods("GET")
	api.HandleFunc("/genomes", s.listGenomes).Methods("GET")

	api.HandleFunc("/workflows", s.listWorkflows).Methods("GET")
	api.HandleFunc("/workflows/{id}", s.showWorkflow).Methods("GET")
	api.HandleFunc("/workflows/{id}/invocations", s.invoke).Methods("POST")
	api.HandleFunc("/workflows/{id}/invocations", s.listInvocations).Methods("GET")
	api.HandleFunc("/workflows/{id}/invocations/{iid}", s.cancelInvocation).Methods("DELETE")
	api.HandleFunc("/invocations/{id}", s.showInvocation).Methods("GET")
	api.HandleFunc("/invocations/{id}/steps/{sid}", s.showInvocationStep).Methods("GET")
	api.HandleFunc("/jobs/{id}", s.showJob).Methods("GET")
	return router
}

// handleAuth rejects requests without the right api key and records the rest
func (s *Server) handleAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-api-key") != s.Key {
			writeError(w, http.StatusForbidden, "Provided API key is not valid.")
			return
		}
		s.Lock()
		s.requests = append(s.requests, r.Method+" "+strings.TrimPrefix(r.URL.Path, "/api/"))
		s.Unlock()
		next.ServeHTTP(w, r)
	})
}

// Requests returns "METHOD path" for every authenticated request so far
func (s *Server) Requests() []string {
	s.Lock()
	defer s.Unlock()
	return append([]string{}, s.requests...)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]interface{}{"err_msg": msg, "err_code": status * 1000})
}

func (s *Server) newID() string {
	s.nextID++
	return fmt.Sprintf("%016x", s.nextID)
}

// ----- setup helpers -----

// AddGenome makes a reference genome available
func (s *Server) AddGenome(name, id string) {
	s.Lock()
	defer s.Unlock()
	s.genomes = append(s.genomes, galaxy.Genome{Name: name, ID: id})
}

// AddWorkflow publishes a workflow with the given input labels and returns its id
func (s *Server) AddWorkflow(name, owner string, tags []string, inputLabels ...string) string {
	s.Lock()
	defer s.Unlock()
	wf := &galaxy.WorkflowDetails{
		Workflow: galaxy.Workflow{
			ID:        s.newID(),
			Name:      name,
			Owner:     owner,
			Tags:      tags,
			Published: true,
		},
		Inputs: make(map[string]galaxy.WorkflowInput),
	}
	for i, label := range inputLabels {
		wf.Inputs[fmt.Sprint(i)] = galaxy.WorkflowInput{Label: label}
	}
	s.workflows = append(s.workflows, wf)
	return wf.ID
}

// AddHistory creates a history directly and returns its id
func (s *Server) AddHistory(name string, tags ...string) string {
	s.Lock()
	defer s.Unlock()
	return s.addHistory(name, tags).ID
}

func (s *Server) addHistory(name string, tags []string) *galaxy.History {
	h := &galaxy.History{
		ID:           s.newID(),
		Name:         name,
		Tags:         append([]string{}, tags...),
		State:        "new",
		StateDetails: map[string]int{},
	}
	s.histories[h.ID] = h
	s.order = append(s.order, h.ID)
	return h
}

// AddDataset puts a dataset in a history and returns its id
func (s *Server) AddDataset(historyID, name, ext, state, content string) string {
	s.Lock()
	defer s.Unlock()
	return s.addDataset(historyID, name, ext, state, []byte(content)).ID
}

func (s *Server) addDataset(historyID, name, ext, state string, content []byte) *dataset {
	d := &dataset{
		Dataset: galaxy.Dataset{
			ID:        s.newID(),
			Name:      name,
			HistoryID: historyID,
			State:     state,
			Extension: ext,
		},
		content: content,
	}
	s.datasets[d.ID] = d
	s.contents[historyID] = append(s.contents[historyID], d.ID)
	return d
}

// SetDatasetState changes the state of a dataset
func (s *Server) SetDatasetState(id, state, miscInfo string) {
	s.Lock()
	defer s.Unlock()
	if d, ok := s.datasets[id]; ok {
		d.State = state
		d.MiscInfo = miscInfo
	}
}

// SetInvocationState changes the scheduling state of an invocation
func (s *Server) SetInvocationState(id, state string) {
	s.Lock()
	defer s.Unlock()
	if inv, ok := s.invocations[id]; ok {
		inv.State = state
	}
}

// Finish creates the outputs of an invocation in its history
func (s *Server) Finish(invocationID string, outputs map[string]Output) {
	s.Lock()
	defer s.Unlock()
	inv := s.invocations[invocationID]
	inv.State = galaxy.InvocationStateScheduled
	inv.Outputs = make(map[string]galaxy.Ref)
	for label, out := range outputs {
		state := out.State
		if state == "" {
			state = galaxy.DatasetStateOK
		}
		d := s.addDataset(inv.HistoryID, label, out.Ext, state, []byte(out.Content))
		inv.Outputs[label] = galaxy.Ref{ID: d.ID, Src: "hda"}
	}
}

// FailJob records a failed job in a new step of the invocation
// outputs maps output names to the misc_info of failed output datasets
func (s *Server) FailJob(invocationID, stepLabel, stderr string, identifiers map[string]string, outputs map[string]string) string {
	s.Lock()
	defer s.Unlock()
	inv := s.invocations[invocationID]
	job := &galaxy.Job{
		ID:      s.newID(),
		State:   galaxy.JobStateError,
		Stderr:  stderr,
		Params:  make(map[string]json.RawMessage),
		Inputs:  make(map[string]galaxy.Ref),
		Outputs: make(map[string]galaxy.Ref),
	}
	for input, identifier := range identifiers {
		job.Inputs[input] = galaxy.Ref{ID: s.newID(), Src: "hda"}
		// galaxy double encodes parameter values
		inner, _ := json.Marshal(identifier)
		outer, _ := json.Marshal(string(inner))
		job.Params[input+"|__identifier__"] = outer
	}
	for output, info := range outputs {
		d := s.addDataset(inv.HistoryID, output, "txt", galaxy.DatasetStateError, nil)
		d.MiscInfo = info
		job.Outputs[output] = galaxy.Ref{ID: d.ID, Src: "hda"}
	}
	s.jobs[job.ID] = job

	step := &galaxy.InvocationStep{
		ID:                s.newID(),
		OrderIndex:        len(inv.Steps),
		WorkflowStepLabel: stepLabel,
		State:             "scheduled",
		Jobs:              []galaxy.JobSummary{{ID: job.ID, State: job.State}},
	}
	s.steps[step.ID] = step
	inv.Steps = append(inv.Steps, galaxy.InvocationStep{ID: step.ID, OrderIndex: step.OrderIndex, WorkflowStepLabel: stepLabel})
	return job.ID
}

// AddSubworkflow adds a step running a sub-workflow to an invocation
// and returns the id of the sub-workflow invocation
func (s *Server) AddSubworkflow(invocationID, stepLabel string) string {
	s.Lock()
	defer s.Unlock()
	parent := s.invocations[invocationID]
	sub := &invocation{Invocation: galaxy.Invocation{
		ID:        s.newID(),
		HistoryID: parent.HistoryID,
		State:     galaxy.InvocationStateScheduled,
	}}
	s.invocations[sub.ID] = sub
	parent.Steps = append(parent.Steps, galaxy.InvocationStep{
		ID:                      s.newID(),
		OrderIndex:              len(parent.Steps),
		WorkflowStepLabel:       stepLabel,
		SubworkflowInvocationID: sub.ID,
	})
	return sub.ID
}

// Invocation returns a copy of an invocation and the request that created it
func (s *Server) Invocation(id string) (galaxy.Invocation, galaxy.InvocationRequest, bool) {
	s.Lock()
	defer s.Unlock()
	inv, ok := s.invocations[id]
	if !ok {
		return galaxy.Invocation{}, galaxy.InvocationRequest{}, false
	}
	return inv.Invocation, inv.request, true
}

// History returns a copy of a history
func (s *Server) History(id string) (galaxy.History, bool) {
	s.Lock()
	defer s.Unlock()
	h, ok := s.histories[id]
	if !ok {
		return galaxy.History{}, false
	}
	return *h, true
}

// Dataset returns a copy of a dataset and its content
func (s *Server) Dataset(id string) (galaxy.Dataset, string, bool) {
	s.Lock()
	defer s.Unlock()
	d, ok := s.datasets[id]
	if !ok {
		return galaxy.Dataset{}, "", false
	}
	return d.Dataset, string(d.content), true
}

// Collection returns the elements of a collection
func (s *Server) Collection(id string) ([]galaxy.CollectionElement, bool) {
	s.Lock()
	defer s.Unlock()
	c, ok := s.collections[id]
	if !ok {
		return nil, false
	}
	return append([]galaxy.CollectionElement{}, c.elements...), true
}

// ----- handlers -----

func (s *Server) listHistories(w http.ResponseWriter, r *http.Request) {
	s.Lock()
	defer s.Unlock()
	out := []galaxy.History{}
	for _, id := range s.order {
		if h := s.histories[id]; !h.Deleted {
			out = append(out, *h)
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) createHistory(w http.ResponseWriter, r *http.Request) {
	body := map[string]string{}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.Lock()
	defer s.Unlock()
	writeJSON(w, http.StatusOK, s.addHistory(body["name"], nil))
}

func (s *Server) history(w http.ResponseWriter, id string) *galaxy.History {
	h, ok := s.histories[id]
	if !ok {
		writeError(w, http.StatusNotFound, "History not found")
		return nil
	}
	return h
}

func (s *Server) showHistory(w http.ResponseWriter, r *http.Request) {
	s.Lock()
	defer s.Unlock()
	h := s.history(w, mux.Vars(r)["id"])
	if h == nil {
		return
	}
	// summarise dataset states the way galaxy does
	details := map[string]int{}
	n := 0
	for _, id := range s.contents[h.ID] {
		if d, ok := s.datasets[id]; ok && !d.Deleted {
			details[d.State]++
			n++
		}
	}
	h.StateDetails = details
	switch {
	case details[galaxy.DatasetStateError] > 0:
		h.State = galaxy.DatasetStateError
	case len(details) == 0:
		h.State = "new"
	case details[galaxy.DatasetStateOK] == n:
		h.State = galaxy.DatasetStateOK
	default:
		h.State = "running"
	}
	writeJSON(w, http.StatusOK, h)
}

func (s *Server) updateHistory(w http.ResponseWriter, r *http.Request) {
	body := map[string][]string{}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.Lock()
	defer s.Unlock()
	h := s.history(w, mux.Vars(r)["id"])
	if h == nil {
		return
	}
	if tags, ok := body["tags"]; ok {
		h.Tags = tags
	}
	writeJSON(w, http.StatusOK, h)
}

func (s *Server) deleteHistory(w http.ResponseWriter, r *http.Request) {
	s.Lock()
	defer s.Unlock()
	h := s.history(w, mux.Vars(r)["id"])
	if h == nil {
		return
	}
	h.Deleted = true
	h.Purged = r.URL.Query().Get("purge") == "true"
	writeJSON(w, http.StatusOK, h)
}

func (s *Server) historyContents(w http.ResponseWriter, r *http.Request) {
	s.Lock()
	defer s.Unlock()
	h := s.history(w, mux.Vars(r)["id"])
	if h == nil {
		return
	}
	out := []galaxy.HistoryContent{}
	for _, id := range s.contents[h.ID] {
		if d, ok := s.datasets[id]; ok {
			out = append(out, galaxy.HistoryContent{
				ID:          d.ID,
				Name:        d.Name,
				Deleted:     d.Deleted,
				Visible:     true,
				State:       d.State,
				Extension:   d.Extension,
				ContentType: "dataset",
			})
		} else if c, ok := s.collections[id]; ok {
			out = append(out, galaxy.HistoryContent{
				ID:          c.ID,
				Name:        c.Name,
				Visible:     true,
				State:       galaxy.DatasetStateOK,
				ContentType: "dataset_collection",
			})
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) createCollection(w http.ResponseWriter, r *http.Request) {
	body := struct {
		Type           string                     `json:"type"`
		CollectionType string                     `json:"collection_type"`
		Name           string                     `json:"name"`
		Elements       []galaxy.CollectionElement `json:"element_identifiers"`
	}{}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.Lock()
	defer s.Unlock()
	h := s.history(w, mux.Vars(r)["id"])
	if h == nil {
		return
	}
	if body.Type != "dataset_collection" || body.CollectionType != "list" {
		writeError(w, http.StatusBadRequest, "unsupported collection")
		return
	}
	for _, e := range body.Elements {
		if _, ok := s.datasets[e.ID]; !ok || e.Src != "hda" {
			writeError(w, http.StatusBadRequest, "invalid element "+e.ID)
			return
		}
	}
	c := &collection{
		Collection: galaxy.Collection{ID: s.newID(), Name: body.Name},
		historyID:  h.ID,
		elements:   body.Elements,
	}
	s.collections[c.ID] = c
	s.contents[h.ID] = append(s.contents[h.ID], c.ID)
	writeJSON(w, http.StatusOK, c.Collection)
}

func (s *Server) deleteContent(w http.ResponseWriter, r *http.Request) {
	s.Lock()
	defer s.Unlock()
	vars := mux.Vars(r)
	d, ok := s.datasets[vars["id"]]
	if !ok || d.HistoryID != vars["hid"] {
		writeError(w, http.StatusNotFound, "Dataset not found")
		return
	}
	d.Deleted = true
	writeJSON(w, http.StatusOK, d.Dataset)
}

func (s *Server) upload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if r.FormValue("tool_id") != "upload1" {
		writeError(w, http.StatusBadRequest, "unknown tool")
		return
	}
	inputs := map[string]string{}
	if err := json.Unmarshal([]byte(r.FormValue("inputs")), &inputs); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	f, _, err := r.FormFile("files_0|file_data")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	defer f.Close()
	content, err := ioutil.ReadAll(f)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.Lock()
	defer s.Unlock()
	h := s.history(w, r.FormValue("history_id"))
	if h == nil {
		return
	}
	ext := inputs["file_type"]
	if ext == "" || ext == "auto" {
		ext = "txt"
	}
	d := s.addDataset(h.ID, inputs["files_0|NAME"], ext, s.UploadState, content)
	writeJSON(w, http.StatusOK, galaxy.UploadResponse{
		Outputs: []galaxy.Dataset{d.Dataset},
		Jobs:    []galaxy.JobSummary{{ID: s.newID(), State: "queued"}},
	})
}

func (s *Server) showDataset(w http.ResponseWriter, r *http.Request) {
	s.Lock()
	defer s.Unlock()
	d, ok := s.datasets[mux.Vars(r)["id"]]
	if !ok {
		writeError(w, http.StatusNotFound, "Dataset not found")
		return
	}
	writeJSON(w, http.StatusOK, d.Dataset)
}

func (s *Server) displayDataset(w http.ResponseWriter, r *http.Request) {
	s.Lock()
	defer s.Unlock()
	d, ok := s.datasets[mux.Vars(r)["id"]]
	if !ok {
		writeError(w, http.StatusNotFound, "Dataset not found")
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	_, _ = w.Write(d.content)
}

func (s *Server) listGenomes(w http.ResponseWriter, r *http.Request) {
	s.Lock()
	defer s.Unlock()
	writeJSON(w, http.StatusOK, append([]galaxy.Genome{}, s.genomes...))
}

func (s *Server) workflow(w http.ResponseWriter, id string) *galaxy.WorkflowDetails {
	for _, wf := range s.workflows {
		if wf.ID == id {
			return wf
		}
	}
	writeError(w, http.StatusNotFound, "Workflow not found")
	return nil
}

func (s *Server) listWorkflows(w http.ResponseWriter, r *http.Request) {
	s.Lock()
	defer s.Unlock()
	out := []galaxy.Workflow{}
	for _, wf := range s.workflows {
		out = append(out, wf.Workflow)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) showWorkflow(w http.ResponseWriter, r *http.Request) {
	s.Lock()
	defer s.Unlock()
	if wf := s.workflow(w, mux.Vars(r)["id"]); wf != nil {
		writeJSON(w, http.StatusOK, wf)
	}
}

func (s *Server) invoke(w http.ResponseWriter, r *http.Request) {
	request := galaxy.InvocationRequest{}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.Lock()
	defer s.Unlock()
	wf := s.workflow(w, mux.Vars(r)["id"])
	if wf == nil {
		return
	}
	if s.history(w, request.HistoryID) == nil {
		return
	}
	for index := range request.Inputs {
		if _, ok := wf.Inputs[index]; !ok {
			writeError(w, http.StatusBadRequest, "unknown workflow input "+index)
			return
		}
	}
	inv := &invocation{
		Invocation: galaxy.Invocation{
			ID:         s.newID(),
			WorkflowID: wf.ID,
			HistoryID:  request.HistoryID,
			State:      galaxy.InvocationStateNew,
		},
		request: request,
	}
	s.invocations[inv.ID] = inv
	if s.OnInvoke != nil {
		s.OnInvoke(s, &inv.Invocation)
	}
	writeJSON(w, http.StatusOK, inv.Invocation)
}

func (s *Server) listInvocations(w http.ResponseWriter, r *http.Request) {
	s.Lock()
	defer s.Unlock()
	wfID := mux.Vars(r)["id"]
	historyID := r.URL.Query().Get("history_id")
	out := []galaxy.Invocation{}
	for _, inv := range s.invocations {
		if inv.WorkflowID == wfID && (historyID == "" || inv.HistoryID == historyID) {
			summary := inv.Invocation
			summary.Outputs = nil
			summary.Steps = nil
			out = append(out, summary)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) cancelInvocation(w http.ResponseWriter, r *http.Request) {
	s.Lock()
	defer s.Unlock()
	vars := mux.Vars(r)
	inv, ok := s.invocations[vars["iid"]]
	if !ok || inv.WorkflowID != vars["id"] {
		writeError(w, http.StatusNotFound, "Invocation not found")
		return
	}
	if inv.State != galaxy.InvocationStateNew && inv.State != galaxy.InvocationStateReady {
		writeError(w, http.StatusBadRequest, InactiveInvocationMessage)
		return
	}
	inv.State = galaxy.InvocationStateCancelled
	writeJSON(w, http.StatusOK, inv.Invocation)
}

func (s *Server) showInvocation(w http.ResponseWriter, r *http.Request) {
	s.Lock()
	defer s.Unlock()
	inv, ok := s.invocations[mux.Vars(r)["id"]]
	if !ok {
		writeError(w, http.StatusNotFound, "Invocation not found")
		return
	}
	writeJSON(w, http.StatusOK, inv.Invocation)
}

func (s *Server) showInvocationStep(w http.ResponseWriter, r *http.Request) {
	s.Lock()
	defer s.Unlock()
	step, ok := s.steps[mux.Vars(r)["sid"]]
	if !ok {
		writeError(w, http.StatusNotFound, "Step not found")
		return
	}
	writeJSON(w, http.StatusOK, step)
}

func (s *Server) showJob(w http.ResponseWriter, r *http.Request) {
	s.Lock()
	defer s.Unlock()
	job, ok := s.jobs[mux.Vars(r)["id"]]
	if !ok {
		writeError(w, http.StatusNotFound, "Job not found")
		return
	}
	writeJSON(w, http.StatusOK, job)
}
