// Package cli implements the safeyaml command line tool: validate, format
// and json subcommands over files or standard input, with colored
// diagnostics and humanized resource statistics.
package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/shibukawa/safeyaml"
	"github.com/shibukawa/safeyaml/composer"
	"github.com/shibukawa/safeyaml/limits"
)

// Sentinel errors
var (
	ErrNoInput          = errors.New("no input files and nothing on stdin")
	ErrValidationFailed = errors.New("validation failed")
	ErrUnknownPreset    = errors.New("unknown limits preset")
)

// Context carries global flags into every command.
type Context struct {
	Verbose bool
	Quiet   bool
	Stdout  io.Writer
	Stderr  io.Writer
}

// CLI is the kong command tree for the safeyaml tool.
var CLI struct {
	Verbose  bool        `help:"Enable verbose output" short:"v"`
	Quiet    bool        `help:"Suppress non-error output" short:"q"`
	Validate ValidateCmd `cmd:"" help:"Check documents against the selected resource limits"`
	Format   FormatCmd   `cmd:"" help:"Reformat documents with canonical styling"`
	JSON     JSONCmd     `cmd:"" help:"Convert documents to JSON"`
	Version  VersionCmd  `cmd:"" help:"Show version information"`
}

// LimitFlags selects a preset and allows individual ceiling overrides.
// Every command embeds it.
type LimitFlags struct {
	Preset       string `help:"Limits preset" default:"default" enum:"default,strict,permissive,unlimited"`
	MaxDepth     int    `help:"Override maximum nesting depth" default:"0"`
	MaxAnchors   int    `help:"Override maximum anchor count" default:"0"`
	MaxSize      int    `help:"Override maximum document size in bytes" default:"0"`
	MaxAliases   int    `help:"Override maximum alias expansion depth" default:"0"`
	StrictTags   bool   `help:"Reject unknown tags"`
	AllowDupKeys bool   `help:"Keep the last value for duplicate mapping keys"`
}

func (f *LimitFlags) config() (safeyaml.Config, error) {
	cfg := safeyaml.DefaultConfig()
	switch f.Preset {
	case "default":
	case "strict":
		cfg = safeyaml.SecureConfig()
	case "permissive":
		cfg.Limits = limits.Permissive()
	case "unlimited":
		cfg.Limits = limits.Unlimited()
	default:
		return cfg, ErrUnknownPreset
	}
	if f.MaxDepth > 0 {
		cfg.Limits.MaxDepth = f.MaxDepth
	}
	if f.MaxAnchors > 0 {
		cfg.Limits.MaxAnchors = f.MaxAnchors
	}
	if f.MaxSize > 0 {
		cfg.Limits.MaxDocumentSize = f.MaxSize
	}
	if f.MaxAliases > 0 {
		cfg.Limits.MaxAliasDepth = f.MaxAliases
	}
	if f.StrictTags {
		cfg.StrictTags = true
	}
	if f.AllowDupKeys {
		cfg.DuplicateKeys = composer.DuplicateLastWins
	}
	return cfg, nil
}

// input is one named source, either a file or stdin.
type input struct {
	name string
	text string
}

// readInputs resolves the file arguments; an empty list or "-" reads stdin.
func readInputs(files []string, stdin io.Reader) ([]input, error) {
	if len(files) == 0 {
		files = []string{"-"}
	}
	inputs := make([]input, 0, len(files))
	for _, f := range files {
		if f == "-" {
			data, err := io.ReadAll(stdin)
			if err != nil {
				return nil, err
			}
			inputs = append(inputs, input{name: "<stdin>", text: string(data)})
			continue
		}
		data, err := os.ReadFile(f)
		if err != nil {
			return nil, err
		}
		inputs = append(inputs, input{name: f, text: string(data)})
	}
	return inputs, nil
}

func (ctx *Context) stdout() io.Writer {
	if ctx.Stdout != nil {
		return ctx.Stdout
	}
	return os.Stdout
}

func (ctx *Context) stderr() io.Writer {
	if ctx.Stderr != nil {
		return ctx.Stderr
	}
	return os.Stderr
}

// VersionCmd represents the version command.
type VersionCmd struct{}

func (cmd *VersionCmd) Run(ctx *Context) error {
	fmt.Fprintln(ctx.stdout(), "safeyaml v0.1.0")
	return nil
}
