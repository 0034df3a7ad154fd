package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alwinjoseph/jobquest/internal/review"
	"github.com/alwinjoseph/jobquest/internal/store"
)

const historyLimit = 200

var reviewChatID int64

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Browse sent notifications interactively (TUI)",
	Long:  "Shows the alert picker TUI, then a scrollable history of postings already delivered for the chosen alert.",
	RunE:  runReview,
}

func init() {
	rootCmd.AddCommand(reviewCmd)
	reviewCmd.Flags().Int64Var(&reviewChatID, "chat", 0, "chat id whose alerts to browse")
}

func runReview(cmd *cobra.Command, args []string) error {
	if reviewChatID == 0 {
		return fmt.Errorf("--chat is required")
	}
	return withStore(func(st *store.SQLiteStore) error {
		alerts, err := st.AlertsForChat(reviewChatID)
		if err != nil {
			return err
		}
		if len(alerts) == 0 {
			fmt.Println("No alerts for this chat.")
			return nil
		}
		loc, err := chatLocation(st, reviewChatID)
		if err != nil {
			return err
		}

		for {
			choice, err := review.RunAlertPicker(alerts)
			if err != nil {
				fmt.Printf("Picker error: %v\n", err)
				return nil
			}
			if choice < 0 {
				return nil
			}
			alert := alerts[choice]

			records, err := st.SentHistory(alert.ID, historyLimit)
			if err != nil {
				fmt.Printf("Error loading history: %v\n", err)
				continue
			}
			if err := review.RunHistory(alert, records, loc); err != nil {
				fmt.Printf("TUI error: %v\n", err)
				return nil
			}
			// back to picker
		}
	})
}
