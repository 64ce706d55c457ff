// Package v1 provides the autoscaling policy API endpoints.
package v1

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/scalemesh/policy-server/internal/api/common"
	"github.com/scalemesh/policy-server/internal/command"
	"github.com/scalemesh/policy-server/internal/store"
)

// RevisionHeader carries the document revision on read responses.
const RevisionHeader = "X-Policy-Revision"

// Routes handles HTTP requests for the autoscaling policy endpoints.
type Routes struct {
	store     *store.Store
	processor *command.Processor
}

// NewRoutes creates a new Routes instance.
func NewRoutes(st *store.Store, processor *command.Processor) *Routes {
	return &Routes{store: st, processor: processor}
}

// Router creates and configures the HTTP router for the policy endpoints.
func Router(st *store.Store, processor *command.Processor) http.Handler {
	routes := NewRoutes(st, processor)

	r := chi.NewRouter()
	r.Get("/autoscaling", routes.getConfiguration)
	r.Post("/autoscaling", routes.processCommands)
	return r
}

// getConfiguration returns the current policy document verbatim, with its
// revision in a response header.
func (routes *Routes) getConfiguration(w http.ResponseWriter, r *http.Request) {
	data, revision, err := routes.store.Read(r.Context())
	if err != nil {
		common.WriteErrorResponse(w, "Failed to read policy configuration", http.StatusInternalServerError)
		return
	}
	if len(data) == 0 {
		data = []byte(`{"triggers":{},"listeners":{}}`)
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set(RevisionHeader, string(revision))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// batchResponse is the body returned by processCommands.
type batchResponse struct {
	Results []command.Result `json:"results"`
}

// processCommands decodes a command envelope and runs each command in
// order. A rejected command does not stop the rest of the batch; the
// response reports every command's outcome and the status code is 400 as
// soon as any of them did not succeed.
func (routes *Routes) processCommands(w http.ResponseWriter, r *http.Request) {
	ops, err := command.ReadCommands(r.Body)
	if err != nil {
		common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	results := routes.processor.ProcessAll(r.Context(), ops)

	status := http.StatusOK
	for _, result := range results {
		if result.Status != command.StatusSuccess {
			status = http.StatusBadRequest
			break
		}
	}
	common.WriteJSONResponse(w, batchResponse{Results: results}, status)
}
