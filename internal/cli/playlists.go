package cli

import (
	"fmt"
	"os"
	"strings"

	"legato/internal/library"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

func newPlaylistsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "playlists",
		Short: "List playlists",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(opts.cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			playlists := a.library.Playlists()
			if opts.jsonOut {
				return printJSON(cmd.OutOrStdout(), playlists)
			}

			t := newTable(cmd.OutOrStdout())
			t.AppendHeader(table.Row{"Name", "Kind", "Songs", "Query"})
			for _, p := range playlists {
				t.AppendRow(table.Row{p.Name, p.Kind, len(p.Songs), p.Query})
			}
			t.Render()
			return nil
		},
	}
}

func newExportCmd(opts *options) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export [name]...",
		Short: "Export playlists as JSON",
		Long: `Write the named playlists, or all playlists, as a portable JSON
document that can be imported into another library.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(opts.cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			doc, err := a.library.ExportPlaylists(args...)
			if err != nil {
				return err
			}

			if output == "" || output == "-" {
				return printJSON(cmd.OutOrStdout(), doc)
			}
			f, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("failed to create %s: %w", output, err)
			}
			if err := printJSON(f, doc); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Exported %d playlists to %s\n", len(doc.Playlists), output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "write to file instead of stdout")
	return cmd
}

func newImportCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Import playlists from an export document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(opts.cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			result, err := a.library.ImportPlaylistsJSON(f)
			if err != nil {
				return err
			}
			if opts.jsonOut {
				return printJSON(cmd.OutOrStdout(), result)
			}
			printImportResult(cmd, result)
			return nil
		},
	}
}

func printImportResult(cmd *cobra.Command, result library.ImportResult) {
	out := cmd.OutOrStdout()
	groups := lo.PickBy(map[string][]string{
		"Created":   result.Created,
		"Merged":    result.Merged,
		"Unchanged": result.Unchanged,
		"Conflicts": result.Conflicts,
	}, func(_ string, names []string) bool { return len(names) > 0 })
	for _, label := range []string{"Created", "Merged", "Unchanged", "Conflicts"} {
		if names, ok := groups[label]; ok {
			fmt.Fprintf(out, "%s: %s\n", label, strings.Join(names, ", "))
		}
	}
	fmt.Fprintf(out, "Songs matched: %d, not found: %d\n", result.Matched, result.Unmatched)
}
