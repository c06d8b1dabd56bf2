package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var downloadsCmd = &cobra.Command{
	Use:   "downloads",
	Short: "Show active and recent downloads",
	Long: `Show the download client's active and recently completed torrents,
linked back to the requests they serve where a match exists.`,
	RunE: runDownloads,
}

var removeCmd = &cobra.Command{
	Use:   "remove <hash>",
	Short: "Pause, resume or delete a download",
	Long: `Act on a single download-client torrent by hash.

Deleting clears the stored client handle so the season can be re-grabbed.

Examples:
  pickrr remove <hash> --action pause
  pickrr remove <hash> --action delete --delete-files`,
	Args: cobra.ExactArgs(1),
	RunE: runRemove,
}

func init() {
	rootCmd.AddCommand(downloadsCmd)
	rootCmd.AddCommand(removeCmd)

	removeCmd.Flags().String("action", "pause", "Action: pause, resume or delete")
	removeCmd.Flags().Bool("delete-files", false, "Also delete downloaded files (delete only)")
}

func runDownloads(cmd *cobra.Command, args []string) error {
	client := NewClient(serverURL)

	views, err := client.Downloads()
	if err != nil {
		return fmt.Errorf("list downloads failed: %w", err)
	}

	if jsonOutput {
		printJSON(views)
		return nil
	}

	if len(views) == 0 {
		fmt.Println("No active downloads.")
		return nil
	}

	fmt.Printf("%-40s %8s %10s %8s %-12s %s\n", "NAME", "PROGRESS", "SPEED", "ETA", "STATE", "REQUEST")
	for _, v := range views {
		name := v.Name
		if len(name) > 40 {
			name = name[:37] + "..."
		}
		linked := "-"
		if v.Linked != nil {
			linked = fmt.Sprintf("%s [%s]", v.Linked.RequestTitle, v.Linked.Status)
		}
		fmt.Printf("%-40s %7.1f%% %10s %8s %-12s %s\n",
			name, v.Progress*100, formatSpeed(v.DLSpeed), formatETA(v.ETA), v.State, linked)
	}
	return nil
}

func runRemove(cmd *cobra.Command, args []string) error {
	client := NewClient(serverURL)
	action, _ := cmd.Flags().GetString("action")
	deleteFiles, _ := cmd.Flags().GetBool("delete-files")

	if err := client.RemoveDownload(args[0], action, deleteFiles); err != nil {
		return fmt.Errorf("%s failed: %w", action, err)
	}
	fmt.Printf("%s: %s\n", action, args[0])
	return nil
}

func formatSpeed(bytesPerSec int64) string {
	switch {
	case bytesPerSec >= 1<<20:
		return fmt.Sprintf("%.1f MB/s", float64(bytesPerSec)/(1<<20))
	case bytesPerSec >= 1<<10:
		return fmt.Sprintf("%.0f KB/s", float64(bytesPerSec)/(1<<10))
	default:
		return fmt.Sprintf("%d B/s", bytesPerSec)
	}
}

func formatETA(seconds int64) string {
	// qBittorrent reports 8640000 for "infinite".
	if seconds <= 0 || seconds >= 8640000 {
		return "-"
	}
	d := time.Duration(seconds) * time.Second
	if d >= time.Hour {
		return fmt.Sprintf("%dh%02dm", int(d.Hours()), int(d.Minutes())%60)
	}
	return fmt.Sprintf("%dm%02ds", int(d.Minutes()), int(d.Seconds())%60)
}
