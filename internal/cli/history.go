package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"ScriptWriter/internal/app"
	"ScriptWriter/internal/domain"
	"ScriptWriter/internal/infrastructure/scriptapi"
)

type historyOptions struct {
	limit  int
	server string
}

func newHistoryCommand(opts *rootOptions) *cobra.Command {
	hopts := &historyOptions{}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List archived scripts, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			records, err := loadHistory(cmd, opts, hopts)
			if err != nil {
				return err
			}
			printHistory(cmd.OutOrStdout(), records)
			return nil
		},
	}

	cmd.Flags().IntVarP(&hopts.limit, "limit", "n", 10, "maximum number of scripts")
	cmd.Flags().StringVar(&hopts.server, "server", "", "read history from a running scriptwriter server")
	return cmd
}

func loadHistory(cmd *cobra.Command, opts *rootOptions, hopts *historyOptions) ([]domain.ScriptRecord, error) {
	if hopts.server != "" {
		return scriptapi.NewClient(hopts.server).Scripts(cmd.Context(), hopts.limit)
	}

	a, err := opts.bootstrap(cmd, app.Options{})
	if err != nil {
		return nil, err
	}
	defer a.Close()

	archive := a.Archive()
	if archive == nil {
		return nil, errors.New("script archive is disabled")
	}
	return archive.List(cmd.Context(), hopts.limit)
}

func printHistory(w io.Writer, records []domain.ScriptRecord) {
	if len(records) == 0 {
		fmt.Fprintln(w, "No scripts archived yet.")
		return
	}

	for _, rec := range records {
		fmt.Fprintf(w, "%s  %s\n", rec.CreatedAt.Local().Format("2006-01-02 15:04"), headingStyle.Render(rec.VideoIdea))
		fmt.Fprintf(w, "  hook: %s\n", oneLine(rec.Hook, 100))
		fmt.Fprintf(w, "  nugget: %s  (%d sources)\n", rec.NuggetTitle, rec.SourceCount)
		fmt.Fprintln(w)
	}
}

func oneLine(s string, limit int) string {
	s = strings.Join(strings.Fields(s), " ")
	if runes := []rune(s); len(runes) > limit {
		return string(runes[:limit]) + "…"
	}
	return s
}
