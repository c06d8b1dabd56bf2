package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var requestsCmd = &cobra.Command{
	Use:   "requests",
	Short: "List tracked media requests",
	Long: `List requests tracked by the server, newest first.

Examples:
  pickrr requests                          # All requests
  pickrr requests -s awaiting_selection    # Needs a torrent picked
  pickrr requests -s downloading,done      # In flight or finished`,
	RunE: runRequests,
}

var rejectCmd = &cobra.Command{
	Use:   "reject <request-id>",
	Short: "Reject a request and remove it everywhere",
	Long: `Remove a request locally, from the upstream manager and from the
library manager. Media files are never deleted.

Examples:
  pickrr reject 3f2a...                # Remove the request
  pickrr reject 3f2a... --stop         # Also delete its active download`,
	Args: cobra.ExactArgs(1),
	RunE: runReject,
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Reconcile against the upstream request manager",
	RunE:  runSync,
}

func init() {
	rootCmd.AddCommand(requestsCmd)
	rootCmd.AddCommand(rejectCmd)
	rootCmd.AddCommand(syncCmd)

	requestsCmd.Flags().StringP("status", "s", "", "Filter by status (comma-separated)")
	rejectCmd.Flags().Bool("stop", false, "Also stop and delete the active download")
}

func runRequests(cmd *cobra.Command, args []string) error {
	client := NewClient(serverURL)
	status, _ := cmd.Flags().GetString("status")

	requests, err := client.Requests(status)
	if err != nil {
		return fmt.Errorf("list requests failed: %w", err)
	}

	if jsonOutput {
		printJSON(requests)
		return nil
	}

	if len(requests) == 0 {
		fmt.Println("No requests.")
		return nil
	}

	fmt.Printf("%-36s %-6s %-30s %-19s %s\n", "ID", "KIND", "TITLE", "STATUS", "REQUESTED BY")
	for _, r := range requests {
		title := r.Title
		if r.Year != nil {
			title = fmt.Sprintf("%s (%d)", r.Title, *r.Year)
		}
		if len(r.Seasons) > 0 {
			title += fmt.Sprintf(" S%v", r.Seasons)
		}
		if len(title) > 30 {
			title = title[:27] + "..."
		}
		fmt.Printf("%-36s %-6s %-30s %-19s %s\n", r.ID, r.MediaKind, title, r.Status, r.RequestedBy)
	}
	return nil
}

func runReject(cmd *cobra.Command, args []string) error {
	client := NewClient(serverURL)
	stop, _ := cmd.Flags().GetBool("stop")

	if err := client.Reject(args[0], stop); err != nil {
		return fmt.Errorf("reject failed: %w", err)
	}
	fmt.Printf("Rejected request %s\n", args[0])
	return nil
}

func runSync(cmd *cobra.Command, args []string) error {
	client := NewClient(serverURL)

	result, err := client.Sync()
	if err != nil {
		return fmt.Errorf("sync failed: %w", err)
	}

	if jsonOutput {
		printJSON(result)
		return nil
	}

	fmt.Printf("Sync complete: %d imported, %d updated, %d pruned, %d skipped\n",
		result.Imported, result.Updated, result.Pruned, result.Skipped)
	if len(result.Errors) > 0 {
		fmt.Printf("Errors (%d):\n  %s\n", len(result.Errors), strings.Join(result.Errors, "\n  "))
	}
	return nil
}
