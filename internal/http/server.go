package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/joohnnie/mcp-agent/internal/log"
	"github.com/joohnnie/mcp-agent/pkg/service"
)

// StartServer exposes the workflow run history over HTTP.
func StartServer(port string, svc *service.Service) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", HealthHandler)
	mux.HandleFunc("/workflows", WorkflowsHandler(svc))
	mux.HandleFunc("/workflows/", WorkflowByIDHandler(svc))

	log.GetLogger().Infof("Starting mcp-agent server on :%s", port)
	return http.ListenAndServe(":"+port, mux)
}

func HealthHandler(w http.ResponseWriter, r *http.Request) {
	fmt.Fprintf(w, "mcp-agent server is running")
}

func WorkflowsHandler(svc *service.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			listWorkflowsHTTP(w, r, svc)
		case http.MethodPost:
			createWorkflowHTTP(w, r, svc)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	}
}

// WorkflowByIDHandler serves /workflows/{id} and /workflows/{id}/stats.
func WorkflowByIDHandler(svc *service.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		rest := strings.TrimPrefix(r.URL.Path, "/workflows/")
		parts := strings.Split(strings.Trim(rest, "/"), "/")
		id, err := strconv.ParseInt(parts[0], 10, 64)
		if err != nil {
			http.Error(w, "Invalid workflow ID", http.StatusBadRequest)
			return
		}
		if len(parts) == 2 && parts[1] == "stats" {
			statsHTTP(w, svc, id)
			return
		}
		getWorkflowHTTP(w, svc, id)
	}
}

func createWorkflowHTTP(w http.ResponseWriter, r *http.Request, svc *service.Service) {
	name := r.FormValue("name")
	if name == "" {
		log.GetLogger().Error("Missing 'name' parameter in POST /workflows")
		http.Error(w, "Missing 'name' parameter", http.StatusBadRequest)
		return
	}
	id, err := svc.CreateWorkflow(name)
	if err != nil {
		log.GetLogger().Errorf("Failed to create workflow: %v", err)
		http.Error(w, fmt.Sprintf("Failed to create workflow: %v", err), http.StatusInternalServerError)
		return
	}
	fmt.Fprintf(w, "Created workflow '%s' with ID %d\n", name, id)
}

func listWorkflowsHTTP(w http.ResponseWriter, r *http.Request, svc *service.Service) {
	_ = r
	workflows, err := svc.ListWorkflows()
	if err != nil {
		log.GetLogger().Errorf("Failed to list workflows: %v", err)
		http.Error(w, fmt.Sprintf("Failed to list workflows: %v", err), http.StatusInternalServerError)
		return
	}
	if len(workflows) == 0 {
		fmt.Fprintf(w, "No workflows found.\n")
		return
	}
	for _, wf := range workflows {
		fmt.Fprintf(w, "- ID: %d, Name: %s, Status: %s, Created: %s\n", wf.ID, wf.Name, wf.Status, wf.CreatedAt.Format(time.RFC3339))
	}
}

func getWorkflowHTTP(w http.ResponseWriter, svc *service.Service, id int64) {
	wf, err := svc.GetWorkflow(id)
	if err != nil {
		log.GetLogger().Errorf("Failed to get workflow %d: %v", id, err)
		http.Error(w, fmt.Sprintf("Workflow %d not found", id), http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(wf); err != nil {
		log.GetLogger().Errorf("Failed to encode workflow %d: %v", id, err)
	}
}

func statsHTTP(w http.ResponseWriter, svc *service.Service, id int64) {
	stats, err := svc.Statistics(id)
	if err != nil {
		log.GetLogger().Errorf("Failed to compute statistics for workflow %d: %v", id, err)
		http.Error(w, fmt.Sprintf("Failed to compute statistics: %v", err), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(stats); err != nil {
		log.GetLogger().Errorf("Failed to encode statistics for workflow %d: %v", id, err)
	}
}
