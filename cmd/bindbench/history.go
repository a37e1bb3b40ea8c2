package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli/v3"

	"github.com/delaneyj/bindparty/config"
	"github.com/delaneyj/bindparty/internal/benchstore"
)

func historyCommand() *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "List stored benchmark runs, newest first",
		Flags: []cli.Flag{
			configFlag(),
			&cli.StringFlag{Name: suiteKey, Usage: "Only show runs of this suite (propagate or scenarios)"},
			&cli.IntFlag{Name: limitKey, Value: 20, Usage: "Maximum number of runs to show"},
		},
		Action: runHistory,
	}
}

func runHistory(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	store, err := benchstore.Open(cfg.Bench.History)
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.Latest(cmd.String(suiteKey), int(cmd.Int(limitKey)))
	if err != nil {
		return err
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"#", "started", "suite", "name", "ops", "duration", "ops/s", "p50", "p99", "digest"})
	if !colorOutput() {
		table.SetBorder(false)
	}
	for _, r := range runs {
		table.Append([]string{
			strconv.FormatUint(r.Seq, 10),
			r.Started.Format("2006-01-02 15:04:05"),
			r.Suite,
			r.Name,
			humanize.Comma(int64(r.Ops)),
			r.Duration.String(),
			humanize.Comma(int64(r.OpsPerSecond())),
			r.P50.String(),
			r.P99.String(),
			fmt.Sprintf("%016x", r.Digest),
		})
	}
	table.Render()
	return nil
}

func saveRuns(cfg config.Config, runs []benchstore.Run) error {
	store, err := benchstore.Open(cfg.Bench.History)
	if err != nil {
		return err
	}
	defer store.Close()

	for _, r := range runs {
		seq, err := store.Add(r)
		if err != nil {
			return err
		}
		log.Printf("Saved run %d: %s %s", seq, r.Suite, r.Name)
	}
	return nil
}
