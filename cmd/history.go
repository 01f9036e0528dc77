package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/slotbooker/internal/db"
	"github.com/example/slotbooker/internal/runs"
)

func newHistoryCmd() *cobra.Command {
	var limit int
	c := &cobra.Command{
		Use:   "history",
		Short: "List recent booking runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			url := strings.TrimSpace(os.Getenv("DATABASE_URL"))
			if url == "" {
				return fmt.Errorf("DATABASE_URL is required")
			}
			ctx := context.Background()
			d, err := db.Open(ctx, url)
			if err != nil {
				return err
			}
			defer d.Close()

			rs, err := runs.NewRepo(d).List(ctx, limit)
			if err != nil {
				return err
			}
			printRuns(cmd.OutOrStdout(), rs)
			return nil
		},
	}
	c.Flags().IntVar(&limit, "limit", 20, "number of runs to show")
	return c
}

func printRuns(w io.Writer, rs []runs.Run) {
	for _, r := range rs {
		line := fmt.Sprintf("id=%s status=%s attempts=%d started=%s", r.ID, r.Status, r.AttemptsMade, r.StartedAt.Format(time.RFC3339))
		if r.ClassSlot != "" {
			line += fmt.Sprintf(" class=%q time=%s", r.ClassSlot, r.TimeSlot)
		}
		if r.LastError != nil {
			line += fmt.Sprintf(" error=%q", *r.LastError)
		}
		if r.ArtifactLocation != "" {
			line += " log=" + r.ArtifactLocation
		}
		fmt.Fprintln(w, line)
	}
}
