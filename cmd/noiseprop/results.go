package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"noiseprop/internal/aggregator"
	"noiseprop/internal/storage"
)

var (
	resultsFormat   string
	resultsDBPath   string
	resultsReceiver int64
	resultsSource   int64
	resultsAll      bool
)

var resultsCmd = &cobra.Command{
	Use:   "results [run-id]",
	Short: "Show the results of a run",
	Long: `Show the receiver levels of a stored run, the latest one by default.

Examples:
  noiseprop results                          # Latest run, receiver levels
  noiseprop results 3f2a... --all            # Every attenuation record
  noiseprop results --receiver 7             # Attenuation at receiver 7
  noiseprop results --receiver 7 --source 2  # ...and the stored paths of that pair`,
	Args: cobra.MaximumNArgs(1),
	RunE: runResults,
}

func init() {
	resultsCmd.Flags().StringVar(&resultsFormat, "format", "human", "Output format (json, human)")
	resultsCmd.Flags().StringVar(&resultsDBPath, "db", "", "Result database (overrides storage.path)")
	resultsCmd.Flags().Int64Var(&resultsReceiver, "receiver", 0, "Show the attenuation records of this receiver")
	resultsCmd.Flags().Int64Var(&resultsSource, "source", 0, "With --receiver, show the stored paths from this source")
	resultsCmd.Flags().BoolVar(&resultsAll, "all", false, "Show every attenuation record")
	rootCmd.AddCommand(resultsCmd)
}

// ResultsResponseCLI is the stored outcome of a run.
type ResultsResponseCLI struct {
	Run         *storage.Run         `json:"run"`
	Levels      []aggregator.Summary `json:"levels"`
	Attenuation []aggregator.Record  `json:"attenuation,omitempty"`
	Paths       []storage.StoredPath `json:"paths,omitempty"`
}

// resultsQuery selects what to read from a run.
type resultsQuery struct {
	runID    string
	receiver *int64
	source   *int64
	all      bool
}

func runResults(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	dbPath := cfg.Storage.Path
	if cmd.Flags().Changed("db") {
		dbPath = resultsDBPath
	}

	q := resultsQuery{all: resultsAll}
	if len(args) == 1 {
		q.runID = args[0]
	}
	if cmd.Flags().Changed("receiver") {
		q.receiver = &resultsReceiver
	}
	if cmd.Flags().Changed("source") {
		if q.receiver == nil {
			return fmt.Errorf("--source requires --receiver")
		}
		q.source = &resultsSource
	}

	db, err := storage.Open(dbPath, nil)
	if err != nil {
		return err
	}
	defer db.Close()

	resp, err := loadResults(db, q)
	if err != nil {
		return err
	}
	output, err := FormatResponse(resp, OutputFormat(resultsFormat))
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, output)
	return nil
}

func loadResults(db *storage.DB, q resultsQuery) (*ResultsResponseCLI, error) {
	var (
		run *storage.Run
		err error
	)
	if q.runID == "" {
		run, err = db.LatestRun()
	} else {
		run, err = db.GetRun(q.runID)
	}
	if err != nil {
		return nil, err
	}

	resp := &ResultsResponseCLI{Run: run}
	if resp.Levels, err = db.Summaries(run.ID); err != nil {
		return nil, err
	}
	if q.all || q.receiver != nil {
		if resp.Attenuation, err = db.Attenuation(run.ID, q.receiver); err != nil {
			return nil, err
		}
	}
	if q.source != nil {
		if resp.Paths, err = db.Paths(run.ID, *q.receiver, *q.source); err != nil {
			return nil, err
		}
	}
	return resp, nil
}
