package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Server and collaborator health",
	RunE:  runStatus,
}

var settingsCmd = &cobra.Command{
	Use:   "settings <get|set> <key> [value]",
	Short: "Read or write a server setting",
	Long: `Read or write one key in the server's settings store.

Examples:
  pickrr settings get MOVIES_SAVE_PATH
  pickrr settings set TV_SAVE_PATH /mnt/tv
  pickrr settings set WEBHOOK_SECRET s3cret`,
	Args: cobra.RangeArgs(2, 3),
	RunE: runSettings,
}

func init() {
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(settingsCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	client := NewClient(serverURL)

	status, err := client.Status()
	if err != nil {
		return fmt.Errorf("status check failed: %w", err)
	}

	if jsonOutput {
		printJSON(status)
		return nil
	}

	fmt.Printf("pickrr | Server: %s | Status: %s\n\n", serverURL, status.Status)

	names := make([]string, 0, len(status.Services))
	for name := range status.Services {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Printf("  %-12s %s\n", name+":", status.Services[name])
	}
	return nil
}

func runSettings(cmd *cobra.Command, args []string) error {
	client := NewClient(serverURL)

	switch args[0] {
	case "get":
		value, err := client.GetSetting(args[1])
		if err != nil {
			return fmt.Errorf("get failed: %w", err)
		}
		fmt.Println(value)
		return nil
	case "set":
		if len(args) < 3 {
			return fmt.Errorf("set needs a key and a value")
		}
		if err := client.SetSetting(args[1], args[2]); err != nil {
			return fmt.Errorf("set failed: %w", err)
		}
		fmt.Printf("%s = %s\n", args[1], args[2])
		return nil
	default:
		return fmt.Errorf("unknown subcommand %q, want get or set", args[0])
	}
}
