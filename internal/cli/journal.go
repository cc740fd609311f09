package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/tether/internal/store"
)

// JournalOptions holds flags for the journal command.
type JournalOptions struct {
	*RootOptions
	Database   string
	Kind       string
	Connection string
	Limit      int
	Counts     bool
}

// JournalResult is the JSON payload of the journal command.
type JournalResult struct {
	Entries []store.Entry  `json:"entries,omitempty"`
	Counts  map[string]int `json:"counts,omitempty"`
}

// NewJournalCommand creates the journal command.
func NewJournalCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &JournalOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Show recent journal entries",
		Long: `Show what a server recorded in its journal: connects, refused
connects, disconnects, spawns and collisions between named bodies.

Entries are listed newest first.

Examples:
  tether journal --db ./tether.db
  tether journal --db ./tether.db --kind collision --limit 10
  tether journal --db ./tether.db --counts --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJournal(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to the SQLite journal (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Kind, "kind", "", "only entries of this kind")
	cmd.Flags().StringVar(&opts.Connection, "connection", "", "only entries for this connection id")
	cmd.Flags().IntVar(&opts.Limit, "limit", store.DefaultLimit, "maximum number of entries")
	cmd.Flags().BoolVar(&opts.Counts, "counts", false, "show entry counts per kind instead of entries")

	return cmd
}

func runJournal(opts *JournalOptions, cmd *cobra.Command) error {
	ctx := context.Background()
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	var kind store.Kind
	if opts.Kind != "" {
		k, err := store.ParseKind(opts.Kind)
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid --kind", err)
		}
		kind = k
	}

	// store.Open would create a missing file; a typo should not leave an
	// empty journal behind.
	if _, err := os.Stat(opts.Database); err != nil {
		_ = formatter.Error(ErrCodeNotFound, fmt.Sprintf("journal not found: %s", opts.Database), nil)
		return WrapExitError(ExitCommandError, "journal not found", err)
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		_ = formatter.Error(ErrCodeJournal, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to open journal", err)
	}
	defer st.Close()

	formatter.VerboseLog("Reading journal %s", opts.Database)

	if opts.Counts {
		counts, err := st.Counts(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to count entries", err)
		}
		return outputCounts(cmd, opts, counts)
	}

	entries, err := st.Recent(ctx, store.Filter{
		Kind:         kind,
		ConnectionID: opts.Connection,
		Limit:        opts.Limit,
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read entries", err)
	}
	return outputEntries(cmd, opts, entries)
}

func outputCounts(cmd *cobra.Command, opts *JournalOptions, counts map[store.Kind]int) error {
	w := cmd.OutOrStdout()
	if opts.Format == "json" {
		byName := make(map[string]int, len(counts))
		for k, n := range counts {
			byName[string(k)] = n
		}
		return json.NewEncoder(w).Encode(CLIResponse{Status: "ok", Data: JournalResult{Counts: byName}})
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "KIND\tCOUNT")
	for _, k := range store.Kinds() {
		fmt.Fprintf(tw, "%s\t%d\n", k, counts[k])
	}
	return tw.Flush()
}

func outputEntries(cmd *cobra.Command, opts *JournalOptions, entries []store.Entry) error {
	w := cmd.OutOrStdout()
	if opts.Format == "json" {
		return json.NewEncoder(w).Encode(CLIResponse{Status: "ok", Data: JournalResult{Entries: entries}})
	}

	if len(entries) == 0 {
		fmt.Fprintln(w, "No journal entries.")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTICK\tKIND\tCONNECTION\tSUBJECT\tDATA")
	for _, e := range entries {
		fmt.Fprintf(tw, "%d\t%d\t%s\t%s\t%s\t%s\n", e.ID, e.Tick, e.Kind, e.ConnectionID, e.Subject, formatData(e.Data))
	}
	return tw.Flush()
}

// formatData renders entry data as sorted key=value pairs.
func formatData(data map[string]any) string {
	if len(data) == 0 {
		return "-"
	}
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := ""
	for i, k := range keys {
		if i > 0 {
			out += " "
		}
		out += fmt.Sprintf("%s=%v", k, data[k])
	}
	return out
}
