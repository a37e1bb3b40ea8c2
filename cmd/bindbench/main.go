package main

import (
	"context"
	"io"
	"log"
	"log/slog"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/urfave/cli/v3"

	"github.com/delaneyj/bindparty/config"
	"github.com/delaneyj/bindparty/container"
	"github.com/delaneyj/bindparty/scheduler"
)

const (
	configKey     = "config"
	iterationsKey = "iterations"
	historyKey    = "history"
	cpuProfileKey = "cpuprofile"
	suiteKey      = "suite"
	limitKey      = "limit"
)

func main() {
	cmd := &cli.Command{
		Name:  "bindbench",
		Usage: "Benchmarks and demos for the bindparty binding runtime",
		Commands: []*cli.Command{
			propagateCommand(),
			scenariosCommand(),
			historyCommand(),
			demoCommand(),
		},
	}
	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  configKey,
		Usage: "YAML config file",
	}
}

func loadConfig(cmd *cli.Command) (config.Config, error) {
	path := cmd.String(configKey)
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

func newLogger(cfg config.Config, w io.Writer) *slog.Logger {
	level, _ := config.ParseLevel(cfg.LogLevel)
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// newManualContainer builds a container on a ManualPlatform so every run
// drains deterministically, without waiting on frame or idle timers.
func newManualContainer(cfg config.Config) (*container.Container, *scheduler.ManualPlatform, error) {
	p := scheduler.NewManualPlatform()
	c, err := container.New(cfg,
		container.WithPlatform(p),
		container.WithLogger(newLogger(cfg, os.Stderr)),
	)
	return c, p, err
}

func colorOutput() bool {
	return isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
}
