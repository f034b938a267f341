// Package repl is an interactive shell for exploring complaint clusters.
package repl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/fatih/color"

	"github.com/steveyegge/gripes/internal/deduplication"
	"github.com/steveyegge/gripes/internal/embed"
	"github.com/steveyegge/gripes/internal/export"
	"github.com/steveyegge/gripes/internal/types"
)

// REPL represents the interactive shell
type REPL struct {
	engine   *deduplication.Engine
	embedder embed.Embedder
	product  string
	out      io.Writer
	rl       *readline.Instance
	ctx      context.Context
	commands map[string]CommandHandler
}

// CommandHandler handles a specific command
type CommandHandler func(args []string) error

// Config holds REPL configuration
type Config struct {
	Engine   *deduplication.Engine
	Embedder embed.Embedder // optional; enables "find"
	Product  string
	Out      io.Writer // defaults to stdout
}

// New creates a new REPL instance
func New(cfg *Config) (*REPL, error) {
	if cfg == nil || cfg.Engine == nil {
		return nil, fmt.Errorf("engine is required")
	}

	out := cfg.Out
	if out == nil {
		out = os.Stdout
	}

	r := &REPL{
		engine:   cfg.Engine,
		embedder: cfg.Embedder,
		product:  cfg.Product,
		out:      out,
		ctx:      context.Background(),
		commands: make(map[string]CommandHandler),
	}
	r.registerCommands()
	return r, nil
}

// Run starts the REPL loop
func (r *REPL) Run(ctx context.Context) error {
	r.ctx = ctx

	cyan := color.New(color.FgCyan).SprintFunc()
	rl, err := readline.NewEx(&readline.Config{
		Prompt:            cyan("gripes> "),
		AutoComplete:      r.completer(),
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,
		Stdout:            r.out,
	})
	if err != nil {
		return fmt.Errorf("failed to create readline: %w", err)
	}
	defer rl.Close()
	r.rl = rl

	r.printWelcome()

	for {
		if ctx.Err() != nil {
			return nil
		}
		line, err := rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) {
				continue
			} else if errors.Is(err, io.EOF) {
				fmt.Fprintln(r.out, "\nGoodbye!")
				return nil
			}
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if err := r.processInput(line); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			red := color.New(color.FgRed).SprintFunc()
			fmt.Fprintf(r.out, "%s %v\n", red("Error:"), err)
		}
	}
}

// processInput processes a single line of input
func (r *REPL) processInput(line string) error {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return nil
	}

	command := strings.ToLower(parts[0])
	if handler, ok := r.commands[command]; ok {
		return handler(parts[1:])
	}

	yellow := color.New(color.FgYellow).SprintFunc()
	fmt.Fprintf(r.out, "%s Unknown command %q. Use 'help' for available commands.\n", yellow("Note:"), parts[0])
	return nil
}

func (r *REPL) registerCommands() {
	r.commands["help"] = r.cmdHelp
	r.commands["?"] = r.cmdHelp
	r.commands["top"] = r.cmdTop
	r.commands["matrix"] = r.cmdMatrix
	r.commands["sources"] = r.cmdSources
	r.commands["show"] = r.cmdShow
	r.commands["feature"] = r.cmdFeature
	r.commands["find"] = r.cmdFind
	r.commands["stats"] = r.cmdStats
	r.commands["exit"] = r.cmdExit
	r.commands["quit"] = r.cmdExit
}

// completer offers command names, and cluster IDs after "show"
func (r *REPL) completer() readline.AutoCompleter {
	clusterIDs := func(string) []string {
		clusters := r.engine.SnapshotClusters()
		ids := make([]string, len(clusters))
		for i, c := range clusters {
			ids[i] = c.ID
		}
		return ids
	}
	features := func(string) []string {
		fs := r.engine.SnapshotMatrix().Features()
		names := make([]string, len(fs))
		for i, f := range fs {
			names[i] = string(f)
		}
		return names
	}

	names := make([]string, 0, len(r.commands))
	for name := range r.commands {
		if name != "show" && name != "feature" && name != "?" {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	items := []readline.PrefixCompleterInterface{
		readline.PcItem("show", readline.PcItemDynamic(clusterIDs)),
		readline.PcItem("feature", readline.PcItemDynamic(features)),
	}
	for _, name := range names {
		items = append(items, readline.PcItem(name))
	}
	return readline.NewPrefixCompleter(items...)
}

func (r *REPL) printWelcome() {
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	title := "Welcome to gripes"
	if r.product != "" {
		title += " - " + r.product
	}
	fmt.Fprintf(r.out, "\n%s\n", cyan(title))
	fmt.Fprintf(r.out, "%d complaints in %d clusters\n\n", r.engine.SnapshotMatrix().Total(), r.engine.Stats().Clusters)
	fmt.Fprintln(r.out, "Type 'help' for available commands, 'exit' to quit")
	fmt.Fprintln(r.out)
}

func (r *REPL) cmdHelp(args []string) error {
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	green := color.New(color.FgGreen).SprintFunc()
	fmt.Fprintf(r.out, "\n%s\n\n", cyan("Available Commands:"))

	commands := []struct {
		name string
		desc string
	}{
		{"top [n]", "Show the n largest clusters (default 10)"},
		{"matrix", "Show the feature x feedback-type matrix"},
		{"sources", "Show how many items came from each source"},
		{"show <cluster-id>", "Show one cluster and its examples"},
		{"feature <name>", "Show clusters for one feature"},
		{"find <text>", "Show where a text would land, per feature"},
		{"stats", "Show engine counters"},
		{"help, ?", "Show this help message"},
		{"exit, quit", "Exit the shell"},
	}
	for _, cmd := range commands {
		fmt.Fprintf(r.out, "  %s  %s\n", green(fmt.Sprintf("%-18s", cmd.name)), cmd.desc)
	}
	fmt.Fprintln(r.out)
	return nil
}

func (r *REPL) cmdTop(args []string) error {
	n := 10
	if len(args) > 0 {
		v, err := strconv.Atoi(args[0])
		if err != nil || v < 1 {
			return fmt.Errorf("invalid count %q: must be a positive integer", args[0])
		}
		n = v
	}
	rows := export.Top(export.ClusterRows(r.engine.SnapshotClusters()), n)
	export.RenderTable(r.out, rows, export.RenderOptions{
		Title:       fmt.Sprintf("Top %d complaints", n),
		ShowSources: true,
	})
	return nil
}

func (r *REPL) cmdMatrix(args []string) error {
	export.RenderMatrix(r.out, r.engine.SnapshotMatrix(), export.RenderOptions{Title: "Feedback matrix"})
	return nil
}

func (r *REPL) cmdSources(args []string) error {
	m := r.engine.SnapshotMatrix()
	total := m.Total()
	if total == 0 {
		fmt.Fprintln(r.out, "No feedback aggregated")
		return nil
	}
	for _, s := range m.SourceNames() {
		n := m.Sources[s]
		fmt.Fprintf(r.out, "  %-10s %5d  %5.1f%%\n", s, n, float64(n)*100/float64(total))
	}
	fmt.Fprintf(r.out, "  %-10s %5d\n", "total", total)
	return nil
}

func (r *REPL) cmdShow(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: show <cluster-id>")
	}
	c, ok := r.engine.Cluster(args[0])
	if !ok {
		return fmt.Errorf("cluster %s not found", args[0])
	}

	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()
	fmt.Fprintf(r.out, "\n%s %s\n", cyan(c.ID), c.Summary)
	fmt.Fprintf(r.out, "  Feature:  %s\n", c.Feature)
	fmt.Fprintf(r.out, "  Type:     %s\n", c.FeedbackType)
	fmt.Fprintf(r.out, "  Count:    %d\n", c.Count)
	fmt.Fprintf(r.out, "  Sources:  %s\n", export.ClusterRows([]types.ComplaintCluster{c})[0].SourceSummary())
	if len(c.Examples) > 0 {
		fmt.Fprintln(r.out, "  Examples:")
		for _, ex := range c.Examples {
			fmt.Fprintf(r.out, "    [%s] %s\n", ex.Source, ex.Summary)
			if ex.URL != "" {
				fmt.Fprintf(r.out, "      %s\n", gray(ex.URL))
			}
		}
	}
	fmt.Fprintln(r.out)
	return nil
}

func (r *REPL) cmdFeature(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: feature <name>")
	}
	f := types.ParseFeature(strings.Join(args, " "))
	rows := export.FilterFeature(export.ClusterRows(r.engine.SnapshotClusters()), f)
	export.RenderTable(r.out, rows, export.RenderOptions{
		Title:       fmt.Sprintf("%s complaints", f),
		ShowSources: true,
	})
	return nil
}

func (r *REPL) cmdFind(args []string) error {
	if r.embedder == nil {
		return fmt.Errorf("find needs an embedder")
	}
	if len(args) == 0 {
		return fmt.Errorf("usage: find <text>")
	}
	text := strings.Join(args, " ")
	vec, err := r.embedder.Embed(r.ctx, text)
	if err != nil {
		return fmt.Errorf("failed to embed query: %w", err)
	}

	matches := r.engine.FindBestMatches(vec)
	if len(matches) == 0 {
		fmt.Fprintln(r.out, "No clusters to compare against")
		return nil
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Similarity > matches[j].Similarity
	})

	green := color.New(color.FgGreen).SprintFunc()
	for _, m := range matches {
		c, _ := r.engine.Cluster(m.ClusterID)
		mark := " "
		if m.WouldMerge {
			mark = green("✓")
		}
		fmt.Fprintf(r.out, "  %s %-13s %s  %.3f  %s\n", mark, m.Feature, m.ClusterID, m.Similarity, c.Summary)
	}
	return nil
}

func (r *REPL) cmdStats(args []string) error {
	s := r.engine.Stats()
	cfg := r.engine.Config()
	fmt.Fprintf(r.out, "  Clusters:   %d\n", s.Clusters)
	fmt.Fprintf(r.out, "  Accepted:   %d (created %d, merged %d)\n", s.Accepted, s.Created, s.Merged)
	fmt.Fprintf(r.out, "  Restored:   %d\n", s.Restored)
	fmt.Fprintf(r.out, "  Rejected:   %d\n", s.Rejected)
	fmt.Fprintf(r.out, "  Dimension:  %d\n", s.Dimension)
	fmt.Fprintf(r.out, "  Threshold:  %.2f\n", cfg.SimilarityThreshold)
	if s.Failed {
		red := color.New(color.FgRed).SprintFunc()
		fmt.Fprintf(r.out, "  %s engine is latched after a dimension mismatch\n", red("Failed:"))
	}
	return nil
}

func (r *REPL) cmdExit(args []string) error {
	green := color.New(color.FgGreen).SprintFunc()
	fmt.Fprintf(r.out, "\n%s Goodbye!\n", green("✓"))
	if r.rl != nil {
		r.rl.Close()
	}
	return io.EOF
}
