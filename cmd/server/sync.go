package main

import (
	"context"
	"errors"
	"fmt"
	"go-moodle-catalog/internal/data"
	"go-moodle-catalog/internal/service"

	"github.com/spf13/cobra"
)

var syncCourseID int64

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Synchronize the local catalog from Moodle",
}

var syncCategoriesCmd = &cobra.Command{
	Use:   "categories",
	Short: "Sync all course categories",
	Args:  cobra.NoArgs,
	RunE: withApp(func(ctx context.Context, a *app, cmd *cobra.Command) error {
		n, err := a.categories.SyncAll(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), service.CategoriesSyncedMessage(n))
		return nil
	}),
}

var syncCoursesCmd = &cobra.Command{
	Use:   "courses",
	Short: "Sync all courses",
	Args:  cobra.NoArgs,
	RunE: withApp(func(ctx context.Context, a *app, cmd *cobra.Command) error {
		n, err := a.courses.SyncAll(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), service.CoursesSyncedMessage(n))
		return nil
	}),
}

var syncEnrolmentsCmd = &cobra.Command{
	Use:   "enrolments",
	Short: "Sync enrolment methods of one course (--course) or of every stored course",
	Args:  cobra.NoArgs,
	RunE: withApp(func(ctx context.Context, a *app, cmd *cobra.Command) error {
		if cmd.Flags().Changed("course") {
			n, err := a.enrolments.SyncCourse(ctx, syncCourseID)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), service.EnrolMethodsSyncedMessage(n))
			return nil
		}
		result, err := a.enrolments.SyncAllCourses(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), result.Message())
		return nil
	}),
}

var syncPricesCmd = &cobra.Command{
	Use:   "prices",
	Short: "Drop prices of removed courses and resync every course",
	Args:  cobra.NoArgs,
	RunE: withApp(func(ctx context.Context, a *app, cmd *cobra.Command) error {
		result, err := a.enrolments.FullResync(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), result.Message())
		return nil
	}),
}

func init() {
	syncEnrolmentsCmd.Flags().Int64Var(&syncCourseID, "course", 0, "Moodle course id to sync")

	syncCmd.AddCommand(syncCategoriesCmd)
	syncCmd.AddCommand(syncCoursesCmd)
	syncCmd.AddCommand(syncEnrolmentsCmd)
	syncCmd.AddCommand(syncPricesCmd)
}

var errNotConfigured = errors.New("moodle connection is not configured; save it in the admin page or set CATALOG_MOODLE_* variables")

// withApp builds the app for a sync command and tags its runs as CLI runs.
func withApp(run func(ctx context.Context, a *app, cmd *cobra.Command) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := service.WithTrigger(cmd.Context(), data.TriggerCLI)
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()

		if !a.remote.IsConfigured(ctx) {
			return errNotConfigured
		}
		if err := run(ctx, a, cmd); err != nil {
			log.Error(err, fmt.Sprintf("%s failed", cmd.CommandPath()))
			return err
		}
		return nil
	}
}
