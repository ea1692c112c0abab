package main

import (
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := bootDB(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		if err := a.store.Migrate(cmd.Context()); err != nil {
			return err
		}
		a.log.Info("migrations_applied")
		return nil
	},
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Fill the database with a starter menu, promo and admin account",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := boot(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		return a.seeder().Seed(cmd.Context(), a.cfg.AdminUsername, a.cfg.AdminPassword)
	},
}
