package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"accessreview/internal/app"
	"accessreview/internal/db"
	"accessreview/internal/domain"
	"accessreview/internal/review"
	"accessreview/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "arv",
	Short: "Access review generator",
	Long: `arv generates periodic access review records for registered applications.
It resolves membership from the source-control and directory APIs, chases
each principal's reporting manager, and writes normalized review rows for
auditors to sign off elsewhere.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		return nil
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("ARV")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func registerCommands() {
	rootCmd.AddCommand(appCmd())
	rootCmd.AddCommand(reviewCmd())
	rootCmd.AddCommand(serveCmd())
}

func appCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "app", Short: "Manage application registrations"}
	cmd.AddCommand(appAddCmd())
	cmd.AddCommand(appListCmd())
	return cmd
}

func appAddCmd() *cobra.Command {
	var reg domain.Registration
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Register an application account",
		RunE: func(cmd *cobra.Command, args []string) error {
			if reg.AppName == "" || reg.AccountName == "" || reg.Source == "" || reg.Type == "" {
				return fmt.Errorf("--app, --account, --source and --type are required")
			}
			reg.CreatedAt = time.Now().UTC().Format(time.RFC3339)
			return withEnv(cmd.Context(), func(ctx context.Context, env *app.Env) error {
				if err := env.Engine.Repo.InsertRegistration(ctx, reg); err != nil {
					return err
				}
				return printJSON(reg)
			})
		},
	}
	cmd.Flags().StringVar(&reg.AppName, "app", "", "application name")
	cmd.Flags().StringVar(&reg.AccountName, "account", "", "external account identifier")
	cmd.Flags().StringVar(&reg.Source, "source", "", "source system (gitlab|rover)")
	cmd.Flags().StringVar(&reg.Type, "type", "", "account type (service-account|rover-group-name|project/group id)")
	cmd.Flags().StringVar(&reg.Environment, "environment", "", "environment label")
	cmd.Flags().StringVar(&reg.AppOwner, "owner", "", "application owner name")
	cmd.Flags().StringVar(&reg.AppOwnerEmail, "owner-email", "", "application owner email")
	cmd.Flags().StringVar(&reg.AppDelegate, "delegate", "", "application delegate")
	return cmd
}

func appListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered applications",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd.Context(), func(ctx context.Context, env *app.Env) error {
				items, err := env.Engine.Repo.ListApplications(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				t := table.NewWriter()
				t.SetOutputMirror(os.Stdout)
				t.AppendHeader(table.Row{"App", "Account", "Source", "Type", "Env", "Owner"})
				for _, reg := range items {
					t.AppendRow(table.Row{reg.AppName, reg.AccountName, reg.Source, reg.Type, reg.Environment, reg.AppOwner})
				}
				t.Render()
				return nil
			})
		},
	}
}

func reviewCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "review", Short: "Generate and inspect access reviews"}
	cmd.AddCommand(reviewGenerateCmd())
	cmd.AddCommand(reviewFreshCmd())
	cmd.AddCommand(reviewListCmd())
	return cmd
}

func runFlags(cmd *cobra.Command, appName, source, frequency, period *string) {
	cmd.Flags().StringVar(appName, "app", "", "application name")
	cmd.Flags().StringVar(source, "source", "", "source system (gitlab|rover)")
	cmd.Flags().StringVar(frequency, "frequency", "", "audit frequency (defaults from config)")
	cmd.Flags().StringVar(period, "period", "", "audit period, e.g. 2025-Q3")
	_ = cmd.MarkFlagRequired("app")
	_ = cmd.MarkFlagRequired("source")
	_ = cmd.MarkFlagRequired("period")
}

func reviewGenerateCmd() *cobra.Command {
	var appName, source, frequency, period string
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate and persist review records",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd.Context(), func(ctx context.Context, env *app.Env) error {
				run, err := env.Engine.Generate(ctx, appName, source, frequency, period)
				if err != nil {
					return err
				}
				return printRun(run)
			})
		},
	}
	runFlags(cmd, &appName, &source, &frequency, &period)
	return cmd
}

func reviewFreshCmd() *cobra.Command {
	var appName, source, frequency, period string
	cmd := &cobra.Command{
		Use:   "fresh",
		Short: "Dry-run the pipeline without persisting",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd.Context(), func(ctx context.Context, env *app.Env) error {
				run, err := env.Engine.FetchForFresh(ctx, appName, source, frequency, period)
				if err != nil {
					return err
				}
				return printRun(run)
			})
		},
	}
	runFlags(cmd, &appName, &source, &frequency, &period)
	return cmd
}

func reviewListCmd() *cobra.Command {
	var appName, period string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List persisted review records",
		RunE: func(cmd *cobra.Command, args []string) error {
			if appName == "" {
				return fmt.Errorf("--app required")
			}
			return withEnv(cmd.Context(), func(ctx context.Context, env *app.Env) error {
				records, err := env.Engine.Repo.ListAccessReviews(ctx, appName, period)
				if err != nil {
					return err
				}
				serviceAccounts, err := env.Engine.Repo.ListServiceAccountReviews(ctx, appName, period)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]any{"records": records, "service_accounts": serviceAccounts})
				}
				renderRecords(records, serviceAccounts)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&appName, "app", "", "application name")
	cmd.Flags().StringVar(&period, "period", "", "filter by audit period")
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd.Context(), func(ctx context.Context, env *app.Env) error {
				authCfg := server.AuthConfig{
					JWTSecret: env.Config.Server.JWTSecret,
					DevToken:  env.Config.Server.DevToken,
				}
				if authCfg.JWTSecret == "" && authCfg.DevToken == "" {
					return fmt.Errorf("server.jwt_secret or server.dev_token is required in %s", "arv.yml")
				}
				handler, err := server.New(server.Config{Engine: env.Engine, BasePath: basePath, Auth: authCfg})
				if err != nil {
					return err
				}
				srv := &http.Server{Addr: addr, Handler: handler}
				go func() {
					<-ctx.Done()
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					srv.Shutdown(shutdownCtx)
				}()
				fmt.Printf("Serving access review API on http://%s%s\n", addr, basePath)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v1", "API base path")
	return cmd
}

func withEnv(ctx context.Context, fn func(context.Context, *app.Env) error) error {
	env, err := app.Open(viper.GetString("workspace"))
	if err != nil {
		return err
	}
	defer env.Close()
	return fn(ctx, env)
}

func printRun(run review.Run) error {
	if viper.GetBool("json") {
		return printJSON(run)
	}
	renderRecords(run.Records, run.ServiceAccounts)
	fmt.Printf("%d records, %d service accounts (persisted=%v)\n", len(run.Records), len(run.ServiceAccounts), run.Persisted)
	return nil
}

func renderRecords(records []domain.AccessReviewRecord, serviceAccounts []domain.ServiceAccountRecord) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"User", "Name", "Role", "Manager", "Account", "Source", "Period"})
	for _, rec := range records {
		t.AppendRow(table.Row{rec.UserID, rec.FullName, rec.UserRole, rec.Manager, rec.AccountName, rec.Source, rec.Period})
	}
	for _, rec := range serviceAccounts {
		t.AppendRow(table.Row{rec.ServiceAccount, "", rec.UserRole, rec.Manager, rec.AccountName, rec.Source, rec.Period})
	}
	t.Render()
}

func printJSON(v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(b))
	return nil
}
