package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noah-isme/pattern-signup-api/internal/repository"
	"github.com/noah-isme/pattern-signup-api/internal/service"
	"github.com/noah-isme/pattern-signup-api/pkg/catalog"
	"github.com/noah-isme/pattern-signup-api/pkg/config"
	"github.com/noah-isme/pattern-signup-api/pkg/database"
	"github.com/noah-isme/pattern-signup-api/pkg/logger"
)

// migrateCmd applies the embedded schema
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDatabase(cmd, func(ctx context.Context, db *sqlx.DB, logr *zap.Logger) error {
			if err := database.Migrate(ctx, db); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "schema applied")
			return nil
		})
	},
}

// seedCmd groups data seeding commands
var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed reference data",
}

var catalogFile string

// seedCatalogCmd upserts the pattern catalog
var seedCatalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Upsert patterns from a catalog file",
	Long: `Insert new catalog patterns as available and refresh the description, example and
version of existing ones. Assignment status is never changed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := catalog.Load(catalogFile)
		if err != nil {
			return err
		}
		return withDatabase(cmd, func(ctx context.Context, db *sqlx.DB, logr *zap.Logger) error {
			svc := service.NewPatternService(
				repository.NewPatternRepository(db),
				repository.NewPatternRequestRepository(db),
				repository.NewUserRepository(db),
				nil,
				logr,
			)
			result, err := svc.SyncCatalog(ctx, c, "")
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "catalog %s: %d inserted, %d updated\n", c.Version, result.Inserted, result.Updated)
			return nil
		})
	},
}

// catalogCmd groups offline catalog commands
var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Inspect catalog files",
}

// catalogValidateCmd parses a catalog without touching the database
var catalogValidateCmd = &cobra.Command{
	Use:   "validate [file]",
	Short: "Check that a catalog file parses",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := catalogFile
		if len(args) == 1 {
			path = args[0]
		}
		c, err := catalog.Load(path)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "catalog %s: %d patterns\n", c.Version, len(c.Patterns))
		return nil
	},
}

var (
	adminUsername string
	adminFullName string
	adminPassword string
)

// createAdminCmd provisions an administrator account
var createAdminCmd = &cobra.Command{
	Use:   "create-admin",
	Short: "Create an administrator account",
	Long: `Create an administrator who can review pattern requests.

The password is read from --password or the SIGNUP_ADMIN_PASSWORD environment variable.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		password := adminPassword
		if password == "" {
			password = os.Getenv("SIGNUP_ADMIN_PASSWORD")
		}
		if strings.TrimSpace(adminUsername) == "" {
			return fmt.Errorf("--username is required")
		}
		return withDatabase(cmd, func(ctx context.Context, db *sqlx.DB, logr *zap.Logger) error {
			svc := service.NewAuthService(repository.NewUserRepository(db), nil, logr, service.AuthConfig{})
			user, err := svc.CreateAdmin(ctx, adminUsername, password, adminFullName)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "admin %s created (%s)\n", user.Username, user.ID)
			return nil
		})
	},
}

func init() {
	seedCatalogCmd.Flags().StringVarP(&catalogFile, "file", "f", "./data/catalog.yaml", "Catalog YAML file")
	catalogValidateCmd.Flags().StringVarP(&catalogFile, "file", "f", "./data/catalog.yaml", "Catalog YAML file")

	createAdminCmd.Flags().StringVarP(&adminUsername, "username", "u", "", "Administrator username")
	createAdminCmd.Flags().StringVar(&adminFullName, "full-name", "", "Display name")
	createAdminCmd.Flags().StringVar(&adminPassword, "password", "", "Password (at least 8 characters)")
}

func withDatabase(cmd *cobra.Command, fn func(ctx context.Context, db *sqlx.DB, logr *zap.Logger) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logr, err := logger.New(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer db.Close()

	return fn(ctx, db, logr)
}
