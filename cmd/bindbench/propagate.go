package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"runtime/pprof"
	"strconv"
	"time"

	"github.com/jamiealquiza/tachymeter"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/urfave/cli/v3"

	"github.com/delaneyj/bindparty/binding"
	"github.com/delaneyj/bindparty/config"
	"github.com/delaneyj/bindparty/dom"
	"github.com/delaneyj/bindparty/expr"
	"github.com/delaneyj/bindparty/internal/benchstore"
	"github.com/delaneyj/bindparty/lifecycle"
	"github.com/delaneyj/bindparty/observation"
)

func propagateCommand() *cli.Command {
	return &cli.Command{
		Name:  "propagate",
		Usage: "Measure one source write flowing through w chains of h computed properties into bindings",
		Flags: []cli.Flag{
			configFlag(),
			&cli.IntFlag{Name: iterationsKey, Usage: "Writes per graph (defaults to bench.iterations)"},
			&cli.BoolFlag{Name: historyKey, Usage: "Append results to the history database"},
			&cli.StringFlag{Name: cpuProfileKey, Usage: "Write a CPU profile to this file"},
		},
		Action: runPropagate,
	}
}

func runPropagate(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	iters := cfg.Bench.Iterations
	if n := int(cmd.Int(iterationsKey)); n > 0 {
		iters = n
	}

	if path := cmd.String(cpuProfileKey); path != "" {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			return err
		}
		defer pprof.StopCPUProfile()
	}

	log.Printf("propagate: %d widths x %d heights, %d writes each", len(cfg.Bench.Widths), len(cfg.Bench.Heights), iters)

	tbl := table.NewWriter()
	tbl.SetTitle("Propagation")
	tbl.SetOutputMirror(os.Stdout)
	if colorOutput() {
		tbl.SetStyle(table.StyleColoredBright)
	} else {
		tbl.SetStyle(table.StyleLight)
	}
	tbl.AppendHeader(table.Row{"benchmark", "avg", "min", "p50", "p75", "p99", "max", "digest"})

	var runs []benchstore.Run
	for _, w := range cfg.Bench.Widths {
		for _, h := range cfg.Bench.Heights {
			run, err := propagate(cfg, w, h, iters)
			if err != nil {
				return err
			}
			runs = append(runs, run.Run)
			tbl.AppendRow(table.Row{
				run.Name,
				run.calc.Time.Avg,
				run.calc.Time.Min,
				run.calc.Time.P50,
				run.calc.Time.P75,
				run.calc.Time.P99,
				run.calc.Time.Max,
				fmt.Sprintf("%016x", run.Digest),
			})
		}
	}
	tbl.Render()

	if cmd.Bool(historyKey) {
		return saveRuns(cfg, runs)
	}
	return nil
}

type propagateRun struct {
	benchstore.Run
	calc *tachymeter.Metrics
}

// propagate builds w chains of h computed properties on one view model.
// Each chain ends in a binding that renders into its own text node.
func propagate(cfg config.Config, w, h, iters int) (*propagateRun, error) {
	c, p, err := newManualContainer(cfg)
	if err != nil {
		return nil, err
	}
	vm := observation.NewObject(map[string]any{"v": 0})
	root := dom.NewElement("div")
	ctrl := c.NewController("propagate", lifecycle.WithViewModel(vm))

	for i := 0; i < w; i++ {
		prev := "v"
		for j := 0; j < h; j++ {
			key := fmt.Sprintf("c%d_%d", i, j)
			dep := prev
			c.Locator.RegisterComputed(vm, key, func(obj any) any {
				o, err := c.Locator.GetObserver(obj, dep)
				if err != nil {
					return 0
				}
				n, _ := o.GetValue().(int)
				return n + 1
			}, dep)
			prev = key
		}
		text := root.AppendChild(dom.NewElement("span"))
		target := &dom.PropertyTarget{Adapter: c.Adapter, Node: text, Name: "textContent"}
		if err := ctrl.AddBinding(c.NewBinding(expr.Scope(prev), target, binding.ToView)); err != nil {
			return nil, err
		}
	}
	if err := ctrl.Bind(nil); err != nil {
		return nil, err
	}
	if err := ctrl.Attach(); err != nil {
		return nil, err
	}
	p.Drain()

	tach := tachymeter.New(&tachymeter.Config{Size: iters})
	started := time.Now()
	for i := 1; i <= iters; i++ {
		start := time.Now()
		vm.Set("v", i)
		p.Drain()
		tach.AddTime(time.Since(start))
	}
	total := time.Since(started)

	want := strconv.Itoa(iters + h)
	for _, span := range root.Children() {
		if got := span.TextContent(); got != want {
			return nil, fmt.Errorf("propagate %dx%d: rendered %q, want %q", w, h, got, want)
		}
	}
	digest := dom.Digest(root)
	if err := ctrl.Dispose(); err != nil {
		return nil, err
	}

	calc := tach.Calc()
	return &propagateRun{
		Run: benchstore.Run{
			Started:  started,
			Suite:    "propagate",
			Name:     fmt.Sprintf("propagate: %d * %d", w, h),
			Ops:      iters,
			Duration: total,
			P50:      calc.Time.P50,
			P99:      calc.Time.P99,
			Digest:   digest,
		},
		calc: calc,
	}, nil
}
