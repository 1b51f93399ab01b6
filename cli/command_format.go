package cli

import (
	"fmt"
	"os"

	"github.com/fatih/color"

	"github.com/shibukawa/safeyaml"
	"github.com/shibukawa/safeyaml/emitter"
)

// FormatCmd represents the format command.
type FormatCmd struct {
	LimitFlags
	Files         []string `arg:"" optional:"" help:"Files to format; - or no argument reads stdin" type:"path"`
	Write         bool     `short:"w" help:"Rewrite files in place instead of printing"`
	Indent        int      `help:"Indentation width" default:"2"`
	Flow          bool     `help:"Force flow style for every collection"`
	Block         bool     `help:"Force block style for every collection"`
	ExplicitStart bool     `help:"Emit a --- marker before every document"`
}

func (cmd *FormatCmd) Run(ctx *Context) error {
	cfg, err := cmd.config()
	if err != nil {
		return err
	}
	cfg.Emit = emitter.Options{
		Indent:        cmd.Indent,
		ExplicitStart: cmd.ExplicitStart,
		ForceFlow:     cmd.Flow,
		ForceBlock:    cmd.Block,
	}
	inputs, err := readInputs(cmd.Files, os.Stdin)
	if err != nil {
		return err
	}

	for _, in := range inputs {
		docs, err := cfg.LoadAllString(in.text)
		if err != nil {
			fmt.Fprintf(ctx.stderr(), "%s:\n%s", color.New(color.Bold).Sprint(in.name), safeyaml.Render(err, in.text))
			return fmt.Errorf("%w: %s", ErrValidationFailed, in.name)
		}
		out, err := cfg.DumpAll(docs)
		if err != nil {
			return err
		}
		if cmd.Write && in.name != "<stdin>" {
			if err := os.WriteFile(in.name, []byte(out), 0o644); err != nil {
				return err
			}
			if ctx.Verbose {
				fmt.Fprintf(ctx.stdout(), "%s\n", color.GreenString("formatted %s", in.name))
			}
			continue
		}
		fmt.Fprint(ctx.stdout(), out)
	}
	return nil
}
