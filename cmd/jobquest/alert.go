package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/alwinjoseph/jobquest/internal/model"
	"github.com/alwinjoseph/jobquest/internal/store"
)

var (
	alertChatID     int64
	alertLocation   string
	alertExperience []string
	alertJobTypes   []string
	alertDatePosted string
	alertWorkplace  string
)

var alertCmd = &cobra.Command{
	Use:   "alert",
	Short: "Manage alerts",
}

var alertAddCmd = &cobra.Command{
	Use:   "add <keywords...>",
	Short: "Create an alert",
	Long:  "Creates an alert and seeds its ledger with the current search results, so only postings that appear afterward trigger notifications.",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAlertAdd,
}

var alertListCmd = &cobra.Command{
	Use:   "list",
	Short: "List alerts for a chat",
	RunE:  runAlertList,
}

var alertShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one alert's details",
	Args:  cobra.ExactArgs(1),
	RunE:  runAlertShow,
}

var alertEditCmd = &cobra.Command{
	Use:   "edit <id>",
	Short: "Replace an alert's search filters",
	Long:  "Replaces the alert's filter set with the given flags. Omitted flags clear their axis.",
	Args:  cobra.ExactArgs(1),
	RunE:  runAlertEdit,
}

var alertPauseCmd = &cobra.Command{
	Use:   "pause <id>",
	Short: "Pause an alert",
	Args:  cobra.ExactArgs(1),
	RunE:  func(cmd *cobra.Command, args []string) error { return setAlertActive(args[0], false) },
}

var alertResumeCmd = &cobra.Command{
	Use:   "resume <id>",
	Short: "Resume a paused alert",
	Args:  cobra.ExactArgs(1),
	RunE:  func(cmd *cobra.Command, args []string) error { return setAlertActive(args[0], true) },
}

var alertDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete an alert and its sent history",
	Args:  cobra.ExactArgs(1),
	RunE:  runAlertDelete,
}

var alertTimezoneCmd = &cobra.Command{
	Use:   "timezone <zone>",
	Short: "Set the chat's display timezone",
	Long:  "Sets the IANA timezone (e.g. Europe/Berlin) used when rendering timestamps for this chat.",
	Args:  cobra.ExactArgs(1),
	RunE:  runAlertTimezone,
}

func init() {
	rootCmd.AddCommand(alertCmd)
	alertCmd.AddCommand(alertAddCmd, alertListCmd, alertShowCmd, alertEditCmd, alertPauseCmd, alertResumeCmd, alertDeleteCmd, alertTimezoneCmd)

	alertCmd.PersistentFlags().Int64Var(&alertChatID, "chat", 0, "chat id the alert belongs to")

	alertAddCmd.Flags().StringVarP(&alertLocation, "location", "l", "", "location filter")
	for _, cmd := range []*cobra.Command{alertAddCmd, alertEditCmd} {
		cmd.Flags().StringSliceVar(&alertExperience, "experience", nil, "experience levels (e.g. \"entry level\",associate)")
		cmd.Flags().StringSliceVar(&alertJobTypes, "job-type", nil, "job types (e.g. full-time,contract)")
		cmd.Flags().StringVar(&alertDatePosted, "date-posted", "", "date bucket (past 24 hours, past week, past month)")
		cmd.Flags().StringVar(&alertWorkplace, "workplace", "", "workplace type (on-site, remote, hybrid)")
	}
}

func requireChat() error {
	if alertChatID == 0 {
		return fmt.Errorf("--chat is required")
	}
	return nil
}

func parseAlertID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid alert id %q", arg)
	}
	return id, nil
}

// withStore loads config, opens the store, and runs fn against it.
func withStore(fn func(st *store.SQLiteStore) error) error {
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	st, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()
	return fn(st)
}

func runAlertAdd(cmd *cobra.Command, args []string) error {
	if err := requireChat(); err != nil {
		return err
	}
	logger := setupLogger(debug)

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	filters, err := model.ParseFilterSpec(alertExperience, alertJobTypes, alertDatePosted, alertWorkplace)
	if err != nil {
		return err
	}

	st, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	alert := model.Alert{
		ChatID:   alertChatID,
		Keywords: strings.Join(args, " "),
		Location: alertLocation,
		Filters:  filters,
		IsActive: true,
	}
	id, err := st.CreateAlert(alert)
	if err != nil {
		return fmt.Errorf("create alert: %w", err)
	}
	alert.ID = id
	fmt.Printf("Created alert #%d for %q\n", id, alert.Keywords)

	// Seed the ledger so the first cycle only reports what appears from now on.
	ev := buildEvaluator(cfg, st, st, setupNotifier(cfg, logger), logger)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	n, err := ev.PopulateBaseline(ctx, alert)
	if err != nil {
		return fmt.Errorf("baseline population: %w", err)
	}
	fmt.Printf("Baseline recorded: %d current postings will not be re-reported\n", n)
	return nil
}

func runAlertList(cmd *cobra.Command, args []string) error {
	if err := requireChat(); err != nil {
		return err
	}
	return withStore(func(st *store.SQLiteStore) error {
		alerts, err := st.AlertsForChat(alertChatID)
		if err != nil {
			return err
		}
		if len(alerts) == 0 {
			fmt.Println("No alerts for this chat.")
			return nil
		}
		for _, a := range alerts {
			state := "active"
			if !a.IsActive {
				state = "paused"
			}
			line := fmt.Sprintf("#%d %q", a.ID, a.Keywords)
			if a.Location != "" {
				line += " in " + a.Location
			}
			fmt.Printf("%s [%s]\n", line, state)
		}
		return nil
	})
}

func runAlertShow(cmd *cobra.Command, args []string) error {
	id, err := parseAlertID(args[0])
	if err != nil {
		return err
	}
	return withStore(func(st *store.SQLiteStore) error {
		a, err := st.AlertByID(id)
		if err != nil {
			return err
		}
		count, err := st.CountSent(id)
		if err != nil {
			return err
		}
		loc, err := chatLocation(st, a.ChatID)
		if err != nil {
			return err
		}

		state := "active"
		if !a.IsActive {
			state = "paused"
		}
		fmt.Printf("Alert #%d [%s]\n", a.ID, state)
		fmt.Printf("  Chat:       %d\n", a.ChatID)
		fmt.Printf("  Keywords:   %s\n", a.Keywords)
		if a.Location != "" {
			fmt.Printf("  Location:   %s\n", a.Location)
		}
		if !a.Filters.IsZero() {
			fmt.Printf("  Filters:    %s\n", a.Filters.Params().Encode())
		}
		fmt.Printf("  Sent:       %d postings\n", count)
		if a.LastChecked != nil {
			fmt.Printf("  Checked:    %s\n", a.LastChecked.In(loc).Format(time.RFC1123))
		} else {
			fmt.Printf("  Checked:    never\n")
		}
		return nil
	})
}

func runAlertEdit(cmd *cobra.Command, args []string) error {
	id, err := parseAlertID(args[0])
	if err != nil {
		return err
	}
	filters, err := model.ParseFilterSpec(alertExperience, alertJobTypes, alertDatePosted, alertWorkplace)
	if err != nil {
		return err
	}
	return withStore(func(st *store.SQLiteStore) error {
		if err := st.UpdateFilters(id, filters); err != nil {
			return err
		}
		if filters.IsZero() {
			fmt.Printf("Alert #%d filters cleared\n", id)
		} else {
			fmt.Printf("Alert #%d filters set: %s\n", id, filters.Params().Encode())
		}
		return nil
	})
}

func setAlertActive(arg string, active bool) error {
	id, err := parseAlertID(arg)
	if err != nil {
		return err
	}
	return withStore(func(st *store.SQLiteStore) error {
		if err := st.SetActive(id, active); err != nil {
			return err
		}
		if active {
			fmt.Printf("Alert #%d resumed\n", id)
		} else {
			fmt.Printf("Alert #%d paused\n", id)
		}
		return nil
	})
}

func runAlertDelete(cmd *cobra.Command, args []string) error {
	id, err := parseAlertID(args[0])
	if err != nil {
		return err
	}
	return withStore(func(st *store.SQLiteStore) error {
		if err := st.DeleteAlert(id); err != nil {
			return err
		}
		fmt.Printf("Alert #%d deleted\n", id)
		return nil
	})
}

func runAlertTimezone(cmd *cobra.Command, args []string) error {
	if err := requireChat(); err != nil {
		return err
	}
	zone := args[0]
	if _, err := time.LoadLocation(zone); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", zone, err)
	}
	return withStore(func(st *store.SQLiteStore) error {
		if err := st.SetTimezone(alertChatID, zone); err != nil {
			return err
		}
		fmt.Printf("Timezone for chat %d set to %s\n", alertChatID, zone)
		return nil
	})
}

// chatLocation resolves the chat's configured timezone, defaulting to UTC.
func chatLocation(st *store.SQLiteStore, chatID int64) (*time.Location, error) {
	tz, err := st.Timezone(chatID)
	if err != nil {
		return nil, err
	}
	if tz == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return time.UTC, nil
	}
	return loc, nil
}
