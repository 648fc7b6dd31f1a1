package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"noiseprop/internal/storage"
)

var (
	runsFormat string
	runsDBPath string
	runsLimit  int
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List stored runs",
	Long: `List the runs recorded in the result database, newest first.

Examples:
  noiseprop runs               # Last 20 runs
  noiseprop runs -n 0          # Every run
  noiseprop runs delete <id>   # Remove a run and its results`,
	RunE: runRuns,
}

var runsDeleteCmd = &cobra.Command{
	Use:   "delete <run-id>",
	Short: "Delete a run and its results",
	Args:  cobra.ExactArgs(1),
	RunE:  runRunsDelete,
}

func init() {
	runsCmd.PersistentFlags().StringVar(&runsDBPath, "db", "", "Result database (overrides storage.path)")
	runsCmd.Flags().StringVar(&runsFormat, "format", "human", "Output format (json, human)")
	runsCmd.Flags().IntVarP(&runsLimit, "limit", "n", 20, "Number of runs to list, 0 for all")
	runsCmd.AddCommand(runsDeleteCmd)
	rootCmd.AddCommand(runsCmd)
}

// RunsResponseCLI lists stored runs.
type RunsResponseCLI struct {
	Runs  []storage.Run `json:"runs"`
	Total int           `json:"total"`
}

func openRunsDB(cmd *cobra.Command) (*storage.DB, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	dbPath := cfg.Storage.Path
	if cmd.Flags().Changed("db") {
		dbPath = runsDBPath
	}
	return storage.Open(dbPath, nil)
}

func runRuns(cmd *cobra.Command, args []string) error {
	db, err := openRunsDB(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	runs, err := db.ListRuns(runsLimit)
	if err != nil {
		return err
	}
	resp := &RunsResponseCLI{Runs: runs, Total: len(runs)}
	if resp.Runs == nil {
		resp.Runs = []storage.Run{}
	}
	output, err := FormatResponse(resp, OutputFormat(runsFormat))
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, output)
	return nil
}

func runRunsDelete(cmd *cobra.Command, args []string) error {
	db, err := openRunsDB(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	if _, err := db.GetRun(args[0]); err != nil {
		return err
	}
	if err := db.DeleteRun(args[0]); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Deleted run %s\n", args[0])
	return nil
}
