package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	internal_http "github.com/joohnnie/mcp-agent/internal/http"
	"github.com/joohnnie/mcp-agent/internal/log"
	internal_storage "github.com/joohnnie/mcp-agent/internal/storage"
	"github.com/joohnnie/mcp-agent/pkg/registry"
	"github.com/joohnnie/mcp-agent/pkg/service"
)

func SetupCLI(rootCmd *cobra.Command) {
	createCmd := &cobra.Command{
		Use:   "create [name]",
		Short: "Create a new workflow run",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			svc, store := initService(cmd)
			defer store.Close()
			createWorkflow(svc, args[0])
		},
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List all workflow runs",
		Run: func(cmd *cobra.Command, args []string) {
			svc, store := initService(cmd)
			defer store.Close()
			listWorkflows(svc)
		},
	}

	updateCmd := &cobra.Command{
		Use:   "update [id] [status]",
		Short: "Update a workflow run's status",
		Args:  cobra.ExactArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				log.GetLogger().Errorf("Error parsing id as number: %v", err)
				fmt.Fprintf(os.Stderr, "Error parsing id as number: %v\n", err)
				os.Exit(1)
			}
			svc, store := initService(cmd)
			defer store.Close()
			updateWorkflowStatus(svc, id, args[1])
		},
	}

	statsCmd := &cobra.Command{
		Use:   "stats [id]",
		Short: "Show aggregate task statistics for a workflow run",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				log.GetLogger().Errorf("Error parsing id as number: %v", err)
				fmt.Fprintf(os.Stderr, "Error parsing id as number: %v\n", err)
				os.Exit(1)
			}
			svc, store := initService(cmd)
			defer store.Close()
			showStatistics(svc, id)
		},
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the workflow run history over HTTP",
		Run: func(cmd *cobra.Command, args []string) {
			port, err := cmd.Flags().GetString("port")
			if err != nil || port == "" {
				port = "8080"
			}
			svc, store := initService(cmd)
			defer store.Close()
			if err := internal_http.StartServer(port, svc); err != nil {
				log.GetLogger().Errorf("Server failed: %v", err)
				os.Exit(1)
			}
		},
	}
	serveCmd.Flags().String("port", "8080", "HTTP listen port")

	rootCmd.AddCommand(createCmd, listCmd, updateCmd, statsCmd, serveCmd)
}

func createWorkflow(svc *service.Service, name string) {
	id, err := svc.CreateWorkflow(name)
	if err != nil {
		log.GetLogger().Errorf("Failed to create workflow: %v", err)
		fmt.Fprintf(os.Stderr, "Error: failed to create workflow: %v\n", err)
		os.Exit(1)
	}
	fmt.Fprintf(os.Stdout, "Created workflow '%s' with ID %d\n", name, id)
}

func updateWorkflowStatus(svc *service.Service, id int64, status string) {
	err := svc.UpdateWorkflowStatus(id, status)
	if err != nil {
		log.GetLogger().Errorf("Failed to update workflow status: %v", err)
		fmt.Fprintf(os.Stderr, "Error: failed to update workflow status: %v\n", err)
		os.Exit(1)
	}
	fmt.Fprintf(os.Stdout, "Updated the status of the workflow with ID %d to '%s'\n", id, status)
}

func listWorkflows(svc *service.Service) {
	workflows, err := svc.ListWorkflows()
	if err != nil {
		log.GetLogger().Errorf("Failed to list workflows: %v", err)
		fmt.Fprintf(os.Stderr, "Error: failed to list workflows: %v\n", err)
		os.Exit(1)
	}
	if len(workflows) == 0 {
		fmt.Fprintf(os.Stdout, "No workflows found.\n")
		return
	}
	fmt.Fprintf(os.Stdout, "Workflows:\n")
	for _, wf := range workflows {
		fmt.Fprintf(os.Stdout, "- ID: %d, Name: %s, Status: %s, Created: %s\n",
			wf.ID, wf.Name, wf.Status, wf.CreatedAt.Format(time.RFC3339))
	}
}

func showStatistics(svc *service.Service, id int64) {
	stats, err := svc.Statistics(id)
	if err != nil {
		log.GetLogger().Errorf("Failed to compute statistics: %v", err)
		fmt.Fprintf(os.Stderr, "Error: failed to compute statistics: %v\n", err)
		os.Exit(1)
	}
	out, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to render statistics: %v\n", err)
		os.Exit(1)
	}
	fmt.Fprintln(os.Stdout, string(out))
}

func initService(cmd *cobra.Command) (*service.Service, *internal_storage.PostgresStore) {
	dbConnStr, err := cmd.Flags().GetString("db")
	if err != nil {
		log.GetLogger().Errorf("Error retrieving db flag: %v", err)
		os.Exit(1)
	}
	store, err := internal_storage.InitStore(dbConnStr)
	if err != nil {
		log.GetLogger().Errorf("Failed to initialize store: %v", err)
		os.Exit(1)
	}
	svc := service.NewService(store, registry.NewRegistry(), log.GetLogger())
	return svc, store
}
