package cli

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"

	"github.com/shibukawa/safeyaml"
	"github.com/shibukawa/safeyaml/composer"
	"github.com/shibukawa/safeyaml/limits"
)

// ValidateCmd represents the validate command.
type ValidateCmd struct {
	LimitFlags
	Files []string `arg:"" optional:"" help:"Files to validate; - or no argument reads stdin" type:"path"`
	Stats bool     `help:"Print resource usage statistics per input"`
}

func (cmd *ValidateCmd) Run(ctx *Context) error {
	cfg, err := cmd.config()
	if err != nil {
		return err
	}
	inputs, err := readInputs(cmd.Files, os.Stdin)
	if err != nil {
		return err
	}

	failed := 0
	for _, in := range inputs {
		docs, stats, err := loadWithStats(cfg, in.text)
		if err != nil {
			failed++
			fmt.Fprintf(ctx.stderr(), "%s:\n%s", color.New(color.Bold).Sprint(in.name), safeyaml.Render(err, in.text))
			continue
		}
		if !ctx.Quiet {
			fmt.Fprintf(ctx.stdout(), "%s: %s\n", in.name,
				color.GreenString("ok (%d %s)", docs, plural(docs, "document", "documents")))
		}
		if cmd.Stats {
			printStats(ctx, stats)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%w: %d of %d inputs", ErrValidationFailed, failed, len(inputs))
	}
	return nil
}

// loadWithStats runs the composer directly so the tracker statistics stay
// observable after the run. Counters reset per document, so totals are
// accumulated across the stream.
func loadWithStats(cfg safeyaml.Config, src string) (int, limits.Stats, error) {
	var total limits.Stats
	c := composer.NewForSource(src, limits.NewTracker(cfg.Limits), composer.Options{
		Loader:        cfg.Loader,
		Schema:        cfg.Schema,
		DuplicateKeys: cfg.DuplicateKeys,
		StrictTags:    cfg.StrictTags,
		Registry:      cfg.Registry,
	})
	docs := 0
	for {
		doc, err := c.ComposeNext()
		if err != nil {
			addStats(&total, c.Stats())
			return docs, total, err
		}
		if doc == nil {
			return docs, total, nil
		}
		docs++
		addStats(&total, c.Stats())
	}
}

func addStats(total *limits.Stats, st limits.Stats) {
	if st.MaxDepth > total.MaxDepth {
		total.MaxDepth = st.MaxDepth
	}
	total.AnchorCount += st.AnchorCount
	total.BytesProcessed += st.BytesProcessed
	total.CollectionItems += st.CollectionItems
	total.ComplexityScore += st.ComplexityScore
}

func printStats(ctx *Context, st limits.Stats) {
	w := ctx.stdout()
	fmt.Fprintf(w, "  bytes:      %s\n", humanize.Bytes(uint64(st.BytesProcessed)))
	fmt.Fprintf(w, "  max depth:  %d\n", st.MaxDepth)
	fmt.Fprintf(w, "  anchors:    %s\n", humanize.Comma(int64(st.AnchorCount)))
	fmt.Fprintf(w, "  items:      %s\n", humanize.Comma(int64(st.CollectionItems)))
	fmt.Fprintf(w, "  complexity: %s\n", humanize.Comma(int64(st.ComplexityScore)))
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
