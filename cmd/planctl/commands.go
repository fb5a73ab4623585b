package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"webaudit_backend/pkg/cron"
	"webaudit_backend/pkg/database"
	"webaudit_backend/pkg/seed"
	"webaudit_backend/pkg/subscription"
)

var downgradeCmd = &cobra.Command{
	Use:   "downgrade-expired",
	Short: "Downgrade users whose paid plan has expired",
	Long:  `Run the plan expiry job once and print its result as JSON`,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		repo := database.NewRepository(db)
		job := cron.NewPlanExpiryJob(repo, subscription.NewPlanStore(repo))

		result, err := job.Run(cmd.Context())
		if err != nil {
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			return err
		}
		if result.Failed > 0 {
			return fmt.Errorf("%d user(s) could not be downgraded", result.Failed)
		}
		return nil
	},
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create the default plans",
	Long:  `Create the default Starter, Growth and Scale plans where no active plan of the type exists`,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		created, err := seed.SeedPlans(cmd.Context(), db)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Created %d plan(s)\n", created)
		return nil
	},
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check stored plans against the feature catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		plans, err := database.NewRepository(db).ListPlans(cmd.Context(), false)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		invalid := 0
		for _, plan := range plans {
			if err := subscription.ValidateFeatures(plan.Features); err != nil {
				invalid++
				fmt.Fprintf(out, "%s (%s): %v\n", plan.Name, plan.ID, err)
			}
		}
		if invalid > 0 {
			return fmt.Errorf("%d of %d plan(s) are invalid", invalid, len(plans))
		}
		fmt.Fprintf(out, "All %d plan(s) are valid\n", len(plans))
		return nil
	},
}
