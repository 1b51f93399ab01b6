package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"

	"github.com/shibukawa/safeyaml/cli"
)

func main() {
	ctx := kong.Parse(&cli.CLI,
		kong.Name("safeyaml"),
		kong.Description("Validate, format and convert YAML documents under hard resource limits."),
		kong.UsageOnError(),
	)

	appCtx := &cli.Context{
		Verbose: cli.CLI.Verbose,
		Quiet:   cli.CLI.Quiet,
	}

	err := ctx.Run(appCtx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
