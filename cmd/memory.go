package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/reins-ai/reins/internal/briefing"
	"github.com/reins-ai/reins/internal/config"
	"github.com/reins-ai/reins/internal/container"
)

var memoryCmd = &cobra.Command{
	Use:   "memory",
	Short: "Run memory pipeline operations manually",
}

var memoryConsolidateCmd = &cobra.Command{
	Use:   "consolidate",
	Short: "Run one consolidation pass now",
	RunE:  runMemoryConsolidate,
}

var memoryBriefingCmd = &cobra.Command{
	Use:   "briefing",
	Short: "Compose a briefing and print it",
	RunE:  runMemoryBriefing,
}

func init() {
	memoryCmd.AddCommand(memoryConsolidateCmd)
	memoryCmd.AddCommand(memoryBriefingCmd)
}

func buildContainer() (*container.Container, error) {
	cfg, err := config.Load(config.ConfigPath())
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	c, err := container.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("build services: %w", err)
	}
	return c, nil
}

func runMemoryConsolidate(_ *cobra.Command, _ []string) error {
	c, err := buildContainer()
	if err != nil {
		return err
	}

	fmt.Printf("%s Running consolidation...\n", logo)

	res, err := c.Runner().Run(context.Background())
	if err != nil {
		return fmt.Errorf("consolidation: %w", err)
	}
	c.StatusFile().RecordConsolidation(res)

	fmt.Printf("✓ Run %s finished in %s\n", res.RunID, res.Duration.Round(time.Millisecond))
	fmt.Printf("  Candidates: %d processed, %d failed\n", res.Stats.CandidatesProcessed, res.Stats.CandidatesFailed)
	fmt.Printf("  Facts:      %d distilled\n", res.Stats.FactsDistilled)
	fmt.Printf("  Records:    %d created, %d updated, %d superseded, %d skipped\n",
		res.Stats.Created, res.Stats.Updated, res.Stats.Superseded, res.Stats.Skipped)
	for _, e := range res.Errors {
		fmt.Printf("  ! %s\n", e)
	}
	return nil
}

func runMemoryBriefing(_ *cobra.Command, _ []string) error {
	c, err := buildContainer()
	if err != nil {
		return err
	}

	b, err := c.BriefingService().Compose(context.Background())
	if err != nil {
		return fmt.Errorf("compose briefing: %w", err)
	}
	c.StatusFile().RecordBriefing(b)

	for _, msg := range briefing.Format(b) {
		fmt.Println(msg.Text)
		fmt.Println()
	}
	return nil
}
