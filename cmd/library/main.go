package main

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap/zapcore"
	"golang.org/x/term"

	"github.com/Astemirdum/library-catalog/library/app"
	"github.com/Astemirdum/library-catalog/library/config"
)

// @title Library Catalog API
// @version 1.0
// @description Book catalog with borrow, reserve and return workflows.
// @BasePath /api
func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "library",
		Short:         "Library catalog service",
		SilenceUsage:  true,
		PersistentPreRun: func(*cobra.Command, []string) {
			if err := godotenv.Load(); err != nil {
				log.Println("no .env file, reading config from environment")
			}
		},
	}
	root.AddCommand(serveCmd(), migrateCmd(), createAdminCmd())
	return root
}

func serveCmd() *cobra.Command {
	var (
		debug   bool
		migrate bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Run: func(cmd *cobra.Command, _ []string) {
			opts := []config.Option{config.WithWriteTimeout(time.Minute)}
			if cmd.Flags().Changed("migrate") {
				opts = append(opts, config.WithMigrate(migrate))
			}
			if debug {
				opts = append(opts, config.WithLogLevel(zapcore.DebugLevel))
			}
			app.Run(config.NewConfig(opts...))
		},
	}
	cmd.Flags().BoolVar(&debug, "debug", false, "log at debug level")
	cmd.Flags().BoolVar(&migrate, "migrate", true, "apply pending migrations on start, overrides DB_MIGRATE")
	return cmd
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := app.Migrate(cmd.Context(), config.NewConfig(config.WithMigrate(false))); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
}

func createAdminCmd() *cobra.Command {
	var username string
	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an admin account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if username == "" {
				fmt.Fprintln(cmd.OutOrStdout(), "Enter user name")
				line, err := bufio.NewReader(os.Stdin).ReadString('\n')
				if err != nil {
					return errors.Wrap(err, "read username")
				}
				username = strings.TrimSpace(line)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Enter password")
			password, err := term.ReadPassword(int(os.Stdin.Fd()))
			if err != nil {
				return errors.Wrap(err, "read password")
			}

			user, err := app.CreateAdmin(cmd.Context(), config.NewConfig(), username, string(password))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "admin %s created (id %s)\n", user.Username, user.ID)
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "admin user name")
	return cmd
}
