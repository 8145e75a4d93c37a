package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var runsLimit int

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect persisted backtest runs",
}

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved runs, newest first",
	RunE:  runRunsList,
}

var runsShowCmd = &cobra.Command{
	Use:   "show ID",
	Short: "Print one run's parameters and report",
	Args:  cobra.ExactArgs(1),
	RunE:  runRunsShow,
}

var runsDeleteCmd = &cobra.Command{
	Use:   "delete ID",
	Short: "Delete a saved run",
	Args:  cobra.ExactArgs(1),
	RunE:  runRunsDelete,
}

func init() {
	rootCmd.AddCommand(runsCmd)
	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	runsCmd.AddCommand(runsDeleteCmd)

	runsListCmd.Flags().IntVar(&runsLimit, "limit", 20, "maximum runs to list")
}

func runRunsList(cmd *cobra.Command, args []string) error {
	st, err := openStack(true)
	if err != nil {
		return err
	}
	defer st.Close()

	summaries, err := st.runs().ListRuns(runsLimit)
	if err != nil {
		return err
	}
	if len(summaries) == 0 {
		fmt.Println("No saved runs. Use qp backtest --save to create one.")
		return nil
	}

	fmt.Printf("%-36s  %-16s  %-9s  %-24s  %9s  %12s\n",
		"ID", "CREATED", "KIND", "STRATEGY", "RETURN", "FINAL")
	for _, s := range summaries {
		strategy := s.Params.Frequency
		if s.Params.Objective != "" {
			strategy = s.Params.Objective + "/" + s.Params.Frequency
		}
		fmt.Printf("%-36s  %-16s  %-9s  %-24s  %8.2f%%  %12.2f\n",
			s.ID,
			s.CreatedAt.Local().Format("2006-01-02 15:04"),
			s.Kind,
			strategy,
			s.TotalReturn*100,
			s.FinalValue)
	}
	return nil
}

func runRunsShow(cmd *cobra.Command, args []string) error {
	st, err := openStack(true)
	if err != nil {
		return err
	}
	defer st.Close()

	run, err := st.runs().GetRun(args[0])
	if err != nil {
		return err
	}
	if run == nil {
		return fmt.Errorf("run %s not found", args[0])
	}

	fmt.Printf("Run:               %s (%s)\n", run.ID, run.Kind)
	fmt.Printf("Created:           %s\n", run.CreatedAt.Local().Format("2006-01-02 15:04:05"))
	fmt.Printf("Symbols:           %s\n", strings.Join(run.Params.Symbols, ", "))
	if run.Params.Objective != "" {
		fmt.Printf("Objective:         %s\n", run.Params.Objective)
	}
	fmt.Printf("Frequency:         %s\n", run.Params.Frequency)
	fmt.Printf("Risk-free rate:    %.4f\n", run.Params.RiskFreeRate)

	if run.Report != nil {
		fmt.Println()
		printReport(run.Report, len(run.Holdings))
	}

	if len(run.Holdings) > 0 {
		fmt.Println()
		fmt.Println("Final allocation:")
		printWeights(run.Holdings[len(run.Holdings)-1].Weights)
	}
	return nil
}

func runRunsDelete(cmd *cobra.Command, args []string) error {
	st, err := openStack(true)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.runs().DeleteRun(args[0]); err != nil {
		return err
	}
	fmt.Printf("Deleted run %s\n", args[0])
	return nil
}
