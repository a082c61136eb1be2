package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func newRootCommand(version, commit, date string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "cadence",
		Short: "Cadence recurring-billing operations",
		Long: `cadence operates the store behind a Cadence billing engine.

Connection settings come from CADENCE_DRIVER (postgres or mongo) and
CADENCE_DSN; a .env file in the working directory is loaded first.`,
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
	}

	rootCmd.AddCommand(
		newMigrateCommand(),
		newDueCommand(),
		newVersionCommand(version, commit, date),
	)

	return rootCmd
}

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the billing tables and indexes",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			log := cfg.logger()

			s, err := cfg.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()

			if err := s.Migrate(cmd.Context()); err != nil {
				return err
			}
			log.Info("cadence: migrations applied", "driver", cfg.Driver)
			return nil
		},
	}
}

func newDueCommand() *cobra.Command {
	var (
		at    int64
		limit int
	)

	cmd := &cobra.Command{
		Use:   "due",
		Short: "List live subscriptions whose next billing time has passed",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if limit <= 0 {
				limit = cfg.DueLimit
			}
			if at == 0 {
				at = time.Now().Unix()
			}

			s, err := cfg.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()

			subs, err := s.ListDueSubscriptions(cmd.Context(), at, limit)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "SUBSCRIPTION\tSUBSCRIBER\tPLAN\tSTATUS\tNEXT BILLING\tPAYMENTS")
			for _, sub := range subs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\n",
					sub.ID, sub.Subscriber, sub.PlanID, sub.EffectiveStatus(at),
					time.Unix(sub.NextBillingAt, 0).UTC().Format(time.RFC3339), sub.PaymentsMade)
			}
			return w.Flush()
		},
	}

	cmd.Flags().Int64Var(&at, "at", 0, "unix time to evaluate against (default now)")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum rows (default CADENCE_DUE_LIMIT)")

	return cmd
}

func newVersionCommand(version, commit, date string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "cadence %s (commit: %s, built: %s)\n", version, commit, date)
		},
	}
}
