package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"webaudit_backend/pkg/config"
	"webaudit_backend/pkg/database"
	"webaudit_backend/pkg/logging"
)

// openDB is replaced in tests.
var openDB = func() (*gorm.DB, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if cfg.Database.URL == "" {
		return nil, fmt.Errorf("DATABASE_URL is not set")
	}
	logging.Init(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Component: "planctl"})

	db, err := database.Open(cfg.Database.URL)
	if err != nil {
		return nil, err
	}
	if err := database.MigrateDatabase(db, database.Models()...); err != nil {
		log.Warn().Err(err).Msg("Migration warning")
	}
	return db, nil
}

var rootCmd = &cobra.Command{
	Use:           "planctl",
	Short:         "Web Audit Pro plan maintenance",
	Long:          `Operator tooling for subscription plans: seeding, validation and expiry downgrades`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(downgradeCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(validateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
