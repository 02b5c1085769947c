package main

import (
	"context"
	"fmt"
	"time"

	"github.com/GoPolymarket/hookgate/internal/config"
	"github.com/GoPolymarket/hookgate/internal/repository"
	"github.com/GoPolymarket/hookgate/internal/service"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	Long: `Apply the schema to the database named by HOOKGATE_DATABASE_DSN (or
database.dsn in config.yaml). With --seed, tenants listed in the config
file are created too; existing tenants and keys are left untouched.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		seed, _ := cmd.Flags().GetBool("seed")

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if cfg.Database.DSN == "" {
			return fmt.Errorf("database.dsn is not configured")
		}
		db, err := repository.NewDB(cfg)
		if err != nil {
			return err
		}
		if err := repository.Migrate(db); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")

		if !seed {
			return nil
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
		defer cancel()
		keys := repository.NewPostgresKeyRepo(db)
		if err := service.Seed(ctx, repository.NewPostgresTenantRepo(db), keys, repository.NewPostgresEndpointRepo(db), cfg.Tenants); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "seeded %d tenants\n", len(cfg.Tenants))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.Flags().Bool("seed", false, "Also create the tenants listed in the config file")
}
