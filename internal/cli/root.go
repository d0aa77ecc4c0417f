// Package cli is the legato command line: the HTTP server plus a few
// offline library commands that work directly on the database.
package cli

import (
	"fmt"
	"os"

	"legato/internal/config"

	"github.com/spf13/cobra"
)

const defaultConfigPath = "./config.toml"

type options struct {
	cfgFile string
	jsonOut bool

	cfg *config.Config
}

// NewRootCommand builds the full command tree
func NewRootCommand() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:   "legato",
		Short: "A personal music library server",
		Long: `Legato keeps a music library of songs, artists, albums and playlists,
serves it over HTTP and streams the stored audio.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.initConfig()
		},
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&opts.cfgFile, "config", "c", defaultConfigPath, "config file")
	rootCmd.PersistentFlags().BoolVarP(&opts.jsonOut, "json", "j", false, "output as JSON")

	rootCmd.AddCommand(
		newServeCmd(opts),
		newAddCmd(opts),
		newSongsCmd(opts),
		newPlaylistsCmd(opts),
		newExportCmd(opts),
		newImportCmd(opts),
	)
	return rootCmd
}

func (o *options) initConfig() error {
	cfg, err := config.LoadConfig(o.cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	o.cfg = cfg
	return nil
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
