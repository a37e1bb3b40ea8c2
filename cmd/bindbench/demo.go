package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/delaneyj/bindparty/dom"
	"github.com/delaneyj/bindparty/expr"
	"github.com/delaneyj/bindparty/observation"
	"github.com/delaneyj/bindparty/scope"
)

func demoCommand() *cli.Command {
	return &cli.Command{
		Name:   "demo",
		Usage:  "Walk a two-way bound form through model and view edits, printing the rendered HTML",
		Flags:  []cli.Flag{configFlag()},
		Action: runDemo,
	}
}

func runDemo(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	c, p, err := newManualContainer(cfg)
	if err != nil {
		return err
	}
	c.RegisterConverter("upper", expr.ConverterFuncs{
		To: func(v any, _ ...any) (any, error) { return strings.ToUpper(expr.ToString(v)), nil },
	})

	user := observation.NewObject(map[string]any{"name": "Ann", "admin": false})
	vm := observation.NewObject(map[string]any{"user": user, "saves": 0})
	vm.Set("save", func() { vm.Set("saves", vm.Get("saves").(int)+1) })

	root := dom.NewElement("form")
	input := root.AppendChild(dom.NewElement("input"))
	admin := root.AppendChild(dom.NewElement("input"))
	label := root.AppendChild(dom.NewElement("label"))
	button := root.AppendChild(dom.NewElement("button"))

	ctrl := c.NewController("demo")
	views := []struct {
		node  *dom.Node
		attrs map[string]expr.Node
	}{
		{input, map[string]expr.Node{"value.bind": expr.Path("user", "name")}},
		{admin, map[string]expr.Node{"checked.bind": expr.Path("user", "admin")}},
		{label, map[string]expr.Node{
			":text-content": expr.Interp(expr.Convert(expr.Path("user", "name"), "upper"), " saved ", expr.Scope("saves"), "x"),
			"class":         expr.Cond(expr.Path("user", "admin"), expr.Lit("admin"), expr.Lit("user")),
		}},
		{button, map[string]expr.Node{"@click": expr.Call("save")}},
	}
	for _, v := range views {
		if err := c.Hydrate(ctrl, v.node, v.attrs); err != nil {
			return err
		}
	}
	if err := ctrl.Bind(scope.New(vm)); err != nil {
		return err
	}
	defer ctrl.Dispose()
	if err := ctrl.Attach(); err != nil {
		return err
	}

	steps := []struct {
		name string
		do   func()
	}{
		{"bound", func() {}},
		{"model sets user.name = Bea", func() { user.Set("name", "Bea") }},
		{"view types Cid", func() { input.Input("Cid") }},
		{"view ticks admin", func() { admin.Toggle() }},
		{"view clicks save twice", func() {
			button.Dispatch("click", nil)
			button.Dispatch("click", nil)
		}},
	}
	for i, s := range steps {
		s.do()
		p.Drain()
		fmt.Printf("%d. %s\n   %s\n", i+1, s.name, dom.HTML(root))
	}
	return nil
}
