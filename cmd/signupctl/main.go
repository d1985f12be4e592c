package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var timeout time.Duration

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "signupctl",
	Short: "Operate the pattern sign-up database",
	Long: `Administrative tasks for the pattern sign-up service.

Database settings are read from the same .env file and environment variables as the API.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "Operation timeout")

	seedCmd.AddCommand(seedCatalogCmd)
	catalogCmd.AddCommand(catalogValidateCmd)

	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(catalogCmd)
	rootCmd.AddCommand(createAdminCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
