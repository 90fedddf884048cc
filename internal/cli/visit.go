package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newVisitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "visit",
		Aliases: []string{"visits", "v"},
		Short:   "Book and track property visits",
		Long: `Book and track property visits.

A completed visit is required before you can make a first offer on a property.

Date format: YYYY-MM-DD`,
	}
	cmd.AddCommand(
		newVisitScheduleCmd(),
		newVisitListCmd(),
		newVisitCancelCmd(),
		newVisitCompleteCmd(),
		newVisitRescheduleCmd(),
	)
	return cmd
}

func newVisitScheduleCmd() *cobra.Command {
	var notes string

	cmd := &cobra.Command{
		Use:   "schedule <property-id> <date>",
		Short: "Schedule a visit",
		Long: `Schedule a visit to a property.

Examples:
  hd visit schedule 0b6f... 2026-02-08
  hd visit schedule 0b6f... 2026-02-08 --notes "bring the floor plan"`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := newAPIClient().ScheduleVisit(cmd.Context(), args[0], args[1], notes)
			if err != nil {
				return err
			}
			if isJSON() {
				return printJSON(v)
			}
			fmt.Printf("Visit scheduled: %s (%s)\n", v.VisitDate, v.ID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&notes, "notes", "n", "", "optional notes about the visit")

	return cmd
}

func newVisitListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List your visits",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			visits, err := newAPIClient().ListVisits(cmd.Context())
			if err != nil {
				return err
			}
			if isJSON() {
				return printJSON(visits)
			}
			printVisits(visits)
			return nil
		},
	}
}

func newVisitCancelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <visit-id>",
		Short: "Cancel a scheduled visit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := newAPIClient().CancelVisit(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if isJSON() {
				return printJSON(v)
			}
			fmt.Printf("Visit %s cancelled.\n", v.ID)
			return nil
		},
	}
}

func newVisitCompleteCmd() *cobra.Command {
	var notes string

	cmd := &cobra.Command{
		Use:   "complete <visit-id>",
		Short: "Mark a visit as done",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := newAPIClient().CompleteVisit(cmd.Context(), args[0], notes)
			if err != nil {
				return err
			}
			if isJSON() {
				return printJSON(v)
			}
			fmt.Printf("Visit %s completed.\n", v.ID)
			if v.Notes != "" {
				fmt.Printf("  %s\n", v.Notes)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&notes, "notes", "n", "", "notes about the visit")

	return cmd
}

func newVisitRescheduleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reschedule <visit-id> <date>",
		Short: "Move a scheduled visit",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := newAPIClient().RescheduleVisit(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			if isJSON() {
				return printJSON(v)
			}
			fmt.Printf("Visit %s moved to %s.\n", v.ID, v.VisitDate)
			return nil
		},
	}
}
