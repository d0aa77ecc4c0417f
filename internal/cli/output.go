package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"legato/pkg/models"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/samber/lo"
)

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	return t
}

func renderSongs(w io.Writer, songs []models.Song) {
	t := newTable(w)
	t.AppendHeader(table.Row{"ID", "Title", "Artist", "Album", "Length"})
	for _, s := range songs {
		t.AppendRow(table.Row{s.ID, s.Title, s.Artist, s.Album, formatDuration(s.Duration)})
	}
	total := lo.SumBy(songs, func(s models.Song) int { return s.Duration })
	t.AppendFooter(table.Row{"", fmt.Sprintf("%d songs", len(songs)), "", "", formatDuration(total)})
	t.Render()
}

// formatDuration renders seconds as m:ss, or h:mm:ss from one hour on
func formatDuration(seconds int) string {
	h, m, s := seconds/3600, seconds/60%60, seconds%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}
