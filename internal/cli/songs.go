package cli

import (
	"fmt"
	"path/filepath"
	"strings"

	"legato/internal/library"
	"legato/internal/metadata"
	"legato/pkg/models"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func newAddCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "add <file>...",
		Short: "Add audio files to the library",
		Long: `Read the tags of each file and store it in the library. Files whose
title, artist and album match a song already in the library are skipped.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(opts.cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			extractor := metadata.NewExtractor(a.cfg.Inbox.SupportedFormats, a.logger)
			var added []models.Song
			for _, path := range args {
				if !extractor.IsAudioFile(path) {
					a.logger.WithField("file_path", path).Warn("Skipping unsupported file")
					continue
				}
				meta, data, err := extractor.ExtractFromFile(path)
				if err != nil {
					return fmt.Errorf("failed to read %s: %w", path, err)
				}
				if a.library.Contains(meta) {
					a.logger.WithField("file_path", path).Info("Song already in library")
					continue
				}
				song, err := a.library.AddSong(meta, data, meta.MimeType)
				if err != nil {
					return fmt.Errorf("failed to add %s: %w", filepath.Base(path), err)
				}
				added = append(added, song)
			}

			a.logger.WithFields(logrus.Fields{"added": len(added), "files": len(args)}).Debug("Add finished")
			if opts.jsonOut {
				return printJSON(cmd.OutOrStdout(), added)
			}
			renderSongs(cmd.OutOrStdout(), added)
			return nil
		},
	}
}

func newSongsCmd(opts *options) *cobra.Command {
	var view, name string

	cmd := &cobra.Command{
		Use:   "songs [query]",
		Short: "List songs",
		Long: `List the songs of a view, optionally filtered by a search query.

Examples:
  legato songs
  legato songs 'artist:"Bob Dylan" -album:live'
  legato songs --view playlist --name Gym`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(opts.cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			v := library.View{Kind: library.ViewKind(view), Name: name}
			songs, err := a.library.FilteredSongs(v, strings.Join(args, " "))
			if err != nil {
				return err
			}
			if opts.jsonOut {
				return printJSON(cmd.OutOrStdout(), songs)
			}
			renderSongs(cmd.OutOrStdout(), songs)
			return nil
		},
	}

	cmd.Flags().StringVar(&view, "view", string(library.ViewAll), "view to list: all, artist, album or playlist")
	cmd.Flags().StringVar(&name, "name", "", "artist, album or playlist name of the view")
	return cmd
}
