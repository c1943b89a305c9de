package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"timely/internal/model"
	"timely/internal/planner"
	"timely/internal/slots"
)

var (
	slotsDate     string
	slotsDays     int
	slotsActivity string
	slotsAll      bool
	slotsJSON     bool

	customDate     string
	customTime     string
	customDuration int
	customActivity string
	customTitle    string
	customBook     bool
)

var slotsCmd = &cobra.Command{
	Use:   "slots",
	Short: "Print open slots for the coming days",
	RunE:  runSlots,
}

var customCmd = &cobra.Command{
	Use:   "custom",
	Short: "Validate an ad-hoc slot and optionally book it",
	RunE:  runCustom,
}

func init() {
	slotsCmd.Flags().StringVar(&slotsDate, "date", "", "first day, YYYY-MM-DD (default today)")
	slotsCmd.Flags().IntVar(&slotsDays, "days", 0, "number of days (default horizon_days)")
	slotsCmd.Flags().StringVar(&slotsActivity, "activity", "", "activity id whose duration to use")
	slotsCmd.Flags().BoolVar(&slotsAll, "all", false, "include unavailable slots")
	slotsCmd.Flags().BoolVar(&slotsJSON, "json", false, "print JSON instead of a table")

	customCmd.Flags().StringVar(&customDate, "date", "", "day, YYYY-MM-DD")
	customCmd.Flags().StringVar(&customTime, "time", "", "start, HH:MM")
	customCmd.Flags().IntVar(&customDuration, "duration", 0, "length in minutes (default activity or preference)")
	customCmd.Flags().StringVar(&customActivity, "activity", "", "activity id to book")
	customCmd.Flags().StringVar(&customTitle, "title", "", "event title")
	customCmd.Flags().BoolVar(&customBook, "book", false, "write the slot to the local calendar")
	_ = customCmd.MarkFlagRequired("date")
	_ = customCmd.MarkFlagRequired("time")
}

func runSlots(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx, cancel := commandContext(cmd.Context())
	defer cancel()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	loc := cfg.Location()
	day := time.Now().In(loc)
	if slotsDate != "" {
		d, err := slots.ParseCivilDate(slotsDate)
		if err != nil {
			return err
		}
		day = d.In(loc)
	}
	days := slotsDays
	if days <= 0 {
		days = cfg.HorizonDays
	}

	if slotsActivity != "" {
		if _, err := a.planner.SelectActivity(ctx, slotsActivity); err != nil {
			return err
		}
	}
	prop, err := a.planner.Propose(ctx, slots.DaysFrom(day, days))
	if err != nil {
		return err
	}

	out := prop.Slots
	if !slotsAll {
		out = slots.Available(out)
	}
	if slotsJSON {
		return writeSlotsJSON(cmd.OutOrStdout(), prop, out)
	}
	return writeSlotsTable(cmd.OutOrStdout(), prop, out, loc)
}

func runCustom(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx, cancel := commandContext(cmd.Context())
	defer cancel()

	date, err := slots.ParseCivilDate(customDate)
	if err != nil {
		return err
	}
	start, err := slots.ParseCivilTime(customTime)
	if err != nil {
		return err
	}

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	var act model.Activity
	if customActivity != "" {
		if act, err = a.planner.SelectActivity(ctx, customActivity); err != nil {
			return err
		}
	}
	duration := customDuration
	if duration <= 0 {
		duration = act.DurationMinutes
	}
	if duration <= 0 {
		prefs, err := a.store.Preferences(ctx)
		if err != nil {
			return err
		}
		duration = prefs.DefaultDuration
	}

	s, err := a.planner.CustomSlot(date, start, duration)
	if err != nil {
		return err
	}
	w := cmd.OutOrStdout()
	loc := cfg.Location()
	fmt.Fprintf(w, "%s %s-%s (%d min)\n",
		s.Start().In(loc).Format("2006-01-02 Mon"), s.Start().In(loc).Format("15:04"), s.End().In(loc).Format("15:04"), s.Minutes())

	if !customBook {
		return nil
	}
	ev, err := a.planner.Confirm(ctx, planner.ConfirmRequest{Title: customTitle})
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "booked %q as %s\n", ev.Title, ev.ID)
	return nil
}

func writeSlotsTable(w io.Writer, prop planner.Proposal, out []slots.Slot, loc *time.Location) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "DATE\tSTART\tEND\tSTATUS\n")
	for _, s := range out {
		status := "free"
		if !s.Available {
			status = "busy"
		}
		start, end := s.Start().In(loc), s.End().In(loc)
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", start.Format("2006-01-02 Mon"), start.Format("15:04"), end.Format("15:04"), status)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(w, "%d of %d slots shown, %d minutes each\n", len(out), len(prop.Slots), prop.DurationMinutes)
	return nil
}

type cliSlot struct {
	ID        string    `json:"id"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	Available bool      `json:"available"`
}

func writeSlotsJSON(w io.Writer, prop planner.Proposal, out []slots.Slot) error {
	resp := struct {
		ActivityID      string    `json:"activity_id,omitempty"`
		DurationMinutes int       `json:"duration_minutes"`
		Total           int       `json:"total"`
		Slots           []cliSlot `json:"slots"`
	}{
		ActivityID:      prop.ActivityID,
		DurationMinutes: prop.DurationMinutes,
		Total:           len(prop.Slots),
		Slots:           make([]cliSlot, 0, len(out)),
	}
	for _, s := range out {
		resp.Slots = append(resp.Slots, cliSlot{ID: s.ID, Start: s.Start(), End: s.End(), Available: s.Available})
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}
