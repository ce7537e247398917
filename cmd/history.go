package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abhisek/lessonstream/internal/store"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recorded session events",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		sessionID, _ := cmd.Flags().GetString("session")

		s, err := openEvents(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		events, err := s.EventRepo().QuerySessionEvents(cmd.Context(), store.QueryOpts{
			Limit:     limit,
			SessionID: sessionID,
		})
		if err != nil {
			return fmt.Errorf("query events: %w", err)
		}
		if len(events) == 0 {
			fmt.Println("No sessions recorded yet.")
			return nil
		}

		fmt.Printf("%-19s  %-8s  %-10s  %-24s  %-7s  %s\n",
			"Timestamp", "Session", "Action", "Topic", "Pos", "Detail")
		fmt.Println(strings.Repeat("─", 90))
		for _, e := range events {
			fmt.Printf("%-19s  %-8s  %-10s  %-24s  %3d/%-3d  %s\n",
				e.Timestamp.Local().Format("2006-01-02 15:04:05"),
				truncate(e.SessionID, 8),
				e.Action,
				truncate(e.Topic, 24),
				e.Position, e.Total,
				e.Detail,
			)
		}
		return nil
	},
}

func init() {
	historyCmd.Flags().IntP("limit", "n", 50, "Number of events to show")
	historyCmd.Flags().StringP("session", "s", "", "Only show this session")
}
