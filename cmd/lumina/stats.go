package main

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/digkill/lumina/internal/kv"
	"github.com/digkill/lumina/internal/models"
	"github.com/digkill/lumina/internal/repository"
	"github.com/digkill/lumina/internal/service"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show platform statistics",
	Long:  `Display user, credit and generation totals from the configured store.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, log, err := setup()
		if err != nil {
			return err
		}
		store, err := kv.Open(cmd.Context(), cfg.Store, log)
		if err != nil {
			return err
		}
		defer store.Close()

		stats := service.NewStatsService(repository.NewUserRepository(store), repository.NewHistoryRepository(store, cfg.History.Limit))
		result, err := stats.Compute(cmd.Context())
		if err != nil {
			return fmt.Errorf("compute stats: %w", err)
		}
		plans, err := repository.NewPlanRepository(store).List(cmd.Context())
		if err != nil {
			return fmt.Errorf("list plans: %w", err)
		}
		printStats(cmd.OutOrStdout(), result, plans)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func printStats(w io.Writer, stats models.AdminStats, plans []models.CreditPlan) {
	fmt.Fprintln(w, "Platform Statistics:")
	fmt.Fprintf(w, "Total Users: %s\n", humanize.Comma(int64(stats.TotalUsers)))
	fmt.Fprintf(w, "Credits Outstanding: %s\n", humanize.Comma(int64(stats.TotalCredits)))
	fmt.Fprintf(w, "Images Generated: %s\n", humanize.Comma(int64(stats.TotalImages)))
	fmt.Fprintf(w, "Active Today (est.): %s\n", humanize.Comma(int64(stats.ActiveToday)))

	if len(plans) == 0 {
		return
	}
	fmt.Fprintln(w, "\nPlans:")
	for _, p := range plans {
		fmt.Fprintf(w, "  %s: %s credits for $%s\n", p.Name, humanize.Comma(int64(p.Credits)), humanize.CommafWithDigits(p.Price, 2))
	}
}
