package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/EatZeBaby/databooks/internal/appcontext"
	"github.com/EatZeBaby/databooks/internal/config"
	"github.com/EatZeBaby/databooks/internal/http"
	"github.com/EatZeBaby/databooks/internal/seed"
)

var rootCmd = &cobra.Command{
	Use:           "databooks",
	Short:         "Data catalog backend",
	Long:          `Databooks serves a social data catalog: datasets, follows, likes, an activity feed and connection snippets.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withContext(cmd.Context(), func(ctx *appcontext.Context) error {
			service := http.NewHTTPService(ctx)
			ctx.Logger.Info("Starting server", zap.String("port", ctx.Port), zap.String("environment", ctx.Environment))
			if err := service.Engine().Run(":" + ctx.Port); err != nil {
				return fmt.Errorf("failed to start the server: %w", err)
			}
			return nil
		})
	},
}

var seedFlags struct {
	users        int
	interactions int
	perDomain    int
	companies    []string
}

// seedCmd represents the seed command
var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed demo users and activity",
	Long:  `Create demo users per company and domain, then generate datasets and random social activity among them.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withContext(cmd.Context(), func(ctx *appcontext.Context) error {
			seeder := seed.New(ctx.Store, 0, ctx.Logger)

			users, err := seeder.SeedUsers(cmd.Context(), seed.UsersRequest{
				Companies: seedFlags.companies,
				PerDomain: seedFlags.perDomain,
			})
			if err != nil {
				return fmt.Errorf("failed to seed users: %w", err)
			}
			activity, err := seeder.SeedActivity(cmd.Context(), seedFlags.users, seedFlags.interactions)
			if err != nil {
				return fmt.Errorf("failed to seed activity: %w", err)
			}
			return printJSON(map[string]any{"users": users, "activity": activity})
		})
	},
}

// dbHealthCmd represents the db-health command
var dbHealthCmd = &cobra.Command{
	Use:   "db-health",
	Short: "Check the durable store",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withContext(cmd.Context(), func(ctx *appcontext.Context) error {
			if _, ok := ctx.Store.Durable(); !ok {
				return fmt.Errorf("DATABASE_URL not configured")
			}
			report, err := ctx.Store.Health(cmd.Context())
			if err != nil {
				return fmt.Errorf("database health check failed: %w", err)
			}
			return printJSON(report)
		})
	},
}

func withContext(parent context.Context, run func(*appcontext.Context) error) error {
	ctx, err := config.InitContext(parent)
	if err != nil {
		return fmt.Errorf("failed to initialize context: %w", err)
	}

	defer func() {
		if err := ctx.Logger.Sync(); err != nil {
			fmt.Printf("Failed to sync logger: %v\n", err)
		}
	}()

	if durable, ok := ctx.Store.Durable(); ok {
		defer func() {
			if err := durable.Close(); err != nil {
				ctx.Logger.Error("Failed to close database connection", zap.Error(err))
			}
		}()
	}

	return run(ctx)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	seedCmd.Flags().IntVar(&seedFlags.users, "users", 10, "number of users taking part in generated activity")
	seedCmd.Flags().IntVar(&seedFlags.interactions, "interactions", 50, "number of follow, like and connect interactions")
	seedCmd.Flags().IntVar(&seedFlags.perDomain, "per-domain", 0, "users per company domain")
	seedCmd.Flags().StringSliceVar(&seedFlags.companies, "companies", nil, "companies to seed users for")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(dbHealthCmd)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		log.Fatal(err)
	}
}
