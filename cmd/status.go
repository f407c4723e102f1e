package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/reins-ai/reins/internal/config"
	"github.com/reins-ai/reins/internal/status"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show reins status",
	RunE:  runStatus,
}

func runStatus(_ *cobra.Command, _ []string) error {
	cfgPath := config.ConfigPath()

	fmt.Printf("%s reins Status\n\n", logo)

	_, statErr := os.Stat(cfgPath)
	cfgMark := "✗"
	if statErr == nil {
		cfgMark = "✓"
	}
	fmt.Printf("Config:    %s %s\n", cfgPath, cfgMark)

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Printf("  (could not load config: %v)\n", err)
		return nil
	}

	ws := cfg.WorkspacePath()
	_, wsErr := os.Stat(ws)
	wsMark := "✗"
	if wsErr == nil {
		wsMark = "✓"
	}

	fmt.Printf("Workspace: %s %s\n", ws, wsMark)
	fmt.Printf("Model:     %s\n", cfg.Provider.Model)
	keyMark := "(not set)"
	if cfg.Provider.APIKey != "" {
		keyMark = "✓"
	}
	fmt.Printf("API key:   %s\n\n", keyMark)

	st, err := status.Read(config.StatusPath())
	if err != nil {
		fmt.Println("Daemon:    not running (no status file)")
		return nil
	}

	fmt.Println("Daemon:")
	fmt.Printf("  PID:        %d\n", st.PID)
	fmt.Printf("  Started:    %s\n", st.StartedAt.Format("2006-01-02 15:04:05"))
	if st.LastConsolidationAt != nil {
		fmt.Printf("  Last consolidation: %s (%d runs)\n",
			st.LastConsolidationAt.Format("2006-01-02 15:04:05"), st.ConsolidationRuns)
		if s := st.LastRunStats; s != nil {
			fmt.Printf("    %d processed, %d created, %d updated, %d superseded\n",
				s.CandidatesProcessed, s.RecordsCreated, s.RecordsUpdated, s.RecordsSuperseded)
		}
	} else {
		fmt.Println("  Last consolidation: never")
	}
	if st.LastBriefingAt != nil {
		fmt.Printf("  Last briefing: %s (%d items)\n",
			st.LastBriefingAt.Format("2006-01-02 15:04:05"), st.LastBriefingItems)
	} else {
		fmt.Println("  Last briefing: never")
	}
	return nil
}
