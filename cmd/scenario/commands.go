package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/scenario-simulator/internal/config"

	"github.com/scenario-simulator/internal/report"
	"github.com/scenario-simulator/internal/simulator"
	"github.com/scenario-simulator/internal/storage"
	"github.com/spf13/cobra"
)

func timelineCmd() *cobra.Command {
	var (
		showDays bool
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:   "timeline",
		Short: "Build the scenario timeline and describe it",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			a, err := loadApp(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			tl := a.Timeline
			if asJSON {
				return printJSON(tl.Snapshot())
			}

			fmt.Printf("Scenario:       %s\n", a.Config.Scenario.Name)
			fmt.Printf("Trading days:   %d\n", tl.Len())
			if tl.Len() > 0 {
				fmt.Printf("Range:          %s to %s\n", tl.First(), tl.Last())
			}
			fmt.Printf("Floor:          %s\n", tl.Floor())
			fmt.Printf("Funds:          %s\n", strings.Join(tl.FundCodes(), ", "))
			fmt.Printf("Indices:        %s (domestic), %s (foreign)\n", tl.DomesticIndex(), tl.ForeignIndex())
			fmt.Printf("Description:    %s\n", tl.Description())

			if showDays {
				fmt.Println()
				for _, day := range tl.Days() {
					domestic := day.Indices[tl.DomesticIndex()]
					fmt.Printf("%s  %s=%.2f  news=%d\n", day.Date, tl.DomesticIndex(), domestic.Close, len(day.News))
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&showDays, "days", false, "List every trading day")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the timeline snapshot as JSON")
	return cmd
}

func replayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "replay <history.json>",
		Short: "Restore an exported run and print its performance summary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			doc, err := storage.ReadHistoryFile(args[0])
			if err != nil {
				return err
			}
			if doc.SimulationInfo == nil {
				return fmt.Errorf("%s has no simulation_info", args[0])
			}

			a, err := loadApp(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			sim, err := simulator.New(a.Timeline, simulator.Config{InitialCapital: doc.SimulationInfo.InitialCapital}, nil)
			if err != nil {
				return err
			}
			restored, err := sim.ImportDocument(doc)
			if err != nil {
				return err
			}
			summary, err := sim.PerformanceSummary()
			if err != nil {
				return err
			}

			return printJSON(map[string]interface{}{
				"restored": restored,
				"summary":  summary,
			})
		},
	}
}

func chartCmd() *cobra.Command {
	var (
		output string
		title  string
	)

	cmd := &cobra.Command{
		Use:   "chart <history.json>",
		Short: "Render net worth against the domestic index as a PNG",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			doc, err := storage.ReadHistoryFile(args[0])
			if err != nil {
				return err
			}

			a, err := loadApp(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			tl := a.Timeline
			if title == "" {
				title = a.Config.Scenario.Name
			}
			png, err := report.RenderNetWorth(doc, report.BenchmarkFromTimeline(tl, tl.DomesticIndex()), title)
			if err != nil {
				return err
			}
			if err := os.WriteFile(output, png, 0o644); err != nil {
				return fmt.Errorf("failed to write chart: %w", err)
			}
			fmt.Printf("Chart written to %s\n", output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "net_worth.png", "Output PNG path")
	cmd.Flags().StringVar(&title, "title", "", "Chart title (defaults to the scenario name)")
	return cmd
}

func runsCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List the most recently archived runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			cfg, err := config.LoadConfig()
			if err != nil {
				return err
			}
			db, err := storage.NewClickHouseDB(&cfg.Database.ClickHouse)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			runs, err := storage.NewRunArchive(db).RecentRuns(ctx, limit)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "RUN\tSESSION\tPERIOD\tCAPITAL\tFINAL\tRETURN\tACTIONS\tARCHIVED")
			for _, r := range runs {
				fmt.Fprintf(w, "%s\t%s\t%s..%s\t%s\t%s\t%.2f%%\t%d\t%s\n",
					r.RunID, r.SessionID, r.StartDate, r.EndDate,
					r.InitialCapital.StringFixed(2), r.FinalAssets.StringFixed(2),
					r.ReturnRate*100, r.ActionCount, r.ArchivedAt.Format("2006-01-02 15:04:05"))
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of runs to list")
	return cmd
}
