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
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/Zeyad-Hassan-1/TaskManagerAPI/internal/app"
	"github.com/Zeyad-Hassan-1/TaskManagerAPI/internal/config"
	"github.com/Zeyad-Hassan-1/TaskManagerAPI/internal/db"
	"github.com/Zeyad-Hassan-1/TaskManagerAPI/internal/engine"
	"github.com/Zeyad-Hassan-1/TaskManagerAPI/internal/engine/auth"
	"github.com/Zeyad-Hassan-1/TaskManagerAPI/internal/repo"
	"github.com/Zeyad-Hassan-1/TaskManagerAPI/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "tm",
	Short: "Task manager CLI",
	Long: `tm manages teams, projects and tasks with role-based access.
- Teams contain projects, projects contain tasks, and a task may have sub-tasks.
- Team and project roles are ranked: member < admin < owner. The creator is the owner and
  ownership is never transferred or removed.
- Task roles are assignee, reviewer and watcher. Who may change a task is decided by the
  project role; who may see it by taskmanager.yml (policy.task_view).
- Every change is recorded in the event log; view it with 'tm log tail'.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		_, err := db.EnsureWorkspace(viper.GetString("workspace"))
		return err
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", describeError(err))
		os.Exit(exitCode(err))
	}
}

func initConfig() {
	viper.SetEnvPrefix("TASKMANAGER")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("actor-id", "local-user", "principal acting on the command")
	rootCmd.PersistentFlags().String("log-level", "warn", "log level (debug, info, warn, error)")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("actor-id", rootCmd.PersistentFlags().Lookup("actor-id"))
	_ = viper.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level"))
}

func registerCommands() {
	rootCmd.AddCommand(principalCmd())
	rootCmd.AddCommand(teamCmd())
	rootCmd.AddCommand(projectCmd())
	rootCmd.AddCommand(taskCmd())
	rootCmd.AddCommand(invitationCmd())
	rootCmd.AddCommand(accessCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(serveCmd())
}

func accessCmd() *cobra.Command {
	var action string
	cmd := &cobra.Command{
		Use:   "access <kind> <id>",
		Short: "Show the actor's role and allowed actions on a team, project or task",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := parseResource(args[0], args[1])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				actor := viper.GetString("actor-id")
				if action != "" {
					a, err := auth.ParseAction(action)
					if err != nil {
						return err
					}
					d, err := e.Authorize(ctx, actor, a, res)
					if err != nil {
						return err
					}
					if viper.GetBool("json") {
						return printJSON(d)
					}
					if d.Allowed {
						fmt.Printf("%s may %s on %s\n", actor, a, res)
						return nil
					}
					fmt.Printf("%s may not %s on %s: %s (%s)\n", actor, a, res, d.Reason.Message, d.Reason.Code)
					return nil
				}
				sum, err := e.Access(ctx, actor, res)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(sum)
				}
				role := sum.Role
				if role == "" {
					role = "-"
				}
				fmt.Printf("principal: %s\nresource:  %s\nrole:      %s\ncan view:  %t\nactions:   %s\n",
					sum.PrincipalID, res, role, sum.CanView, strings.Join(sum.Actions, ", "))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&action, "action", "", "check a single action, e.g. project.invite")
	return cmd
}

func logCmd() *cobra.Command {
	log := &cobra.Command{
		Use:   "log",
		Short: "Event log",
	}
	log.AddCommand(logTailCmd())
	return log
}

func logTailCmd() *cobra.Command {
	var n int
	var f repo.EventFilters
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Show the newest events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				events, err := e.Repo.LatestEvents(ctx, n, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(events)
				}
				rows := make([]table.Row, 0, len(events))
				for _, evt := range events {
					rows = append(rows, table.Row{evt.ID, evt.TS, evt.Type, evt.ResourceKind + "/" + evt.ResourceID, evt.ActorID, evt.SubjectID})
				}
				printTable(table.Row{"ID", "TS", "Type", "Resource", "Actor", "Subject"}, rows)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of events")
	cmd.Flags().StringVar(&f.Type, "type", "", "event type filter")
	cmd.Flags().StringVar(&f.ResourceKind, "resource-kind", "", "resource kind filter")
	cmd.Flags().StringVar(&f.ResourceID, "resource-id", "", "resource id filter")
	cmd.Flags().StringVar(&f.ActorID, "actor", "", "actor filter")
	return cmd
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{
		Use:   "config",
		Short: "Workspace policy configuration (taskmanager.yml)",
	}
	cfg.AddCommand(configInitCmd())
	cfg.AddCommand(configShowCmd())
	return cfg
}

func configInitCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default taskmanager.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(viper.GetString("workspace"))
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o644); err != nil {
				return err
			}
			fmt.Println("wrote", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}

func configShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadOptional(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(cfg)
			}
			out, err := yaml.Marshal(cfg)
			if err != nil {
				return err
			}
			fmt.Print(string(out))
			return nil
		},
	}
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	var allowActorHeader, devLogin bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			secret := viper.GetString("jwt-secret")
			if secret == "" {
				return fmt.Errorf("TASKMANAGER_JWT_SECRET is required for bearer auth")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				handler, err := server.New(server.Config{
					Engine:   e,
					BasePath: basePath,
					Auth: server.AuthConfig{
						JWTSecret:              secret,
						AllowLegacyActorHeader: allowActorHeader,
						EnableDevLogin:         devLogin,
						Logger:                 e.Log,
					},
				})
				if err != nil {
					return err
				}
				ctx, cancel := context.WithCancel(ctx)
				defer cancel()
				server.StartWebhooks(ctx, e, e.Log)
				srv := &http.Server{Addr: addr, Handler: handler}
				go func() {
					<-ctx.Done()
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					srv.Shutdown(shutdownCtx)
				}()
				e.Log.Info("serving", zap.String("addr", addr), zap.String("base_path", basePath))
				fmt.Printf("Serving task manager API on http://%s%s (OpenAPI at %s/openapi.json, Swagger UI at /docs)\n", addr, basePath, basePath)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", server.DefaultBasePath, "API base path")
	cmd.Flags().BoolVar(&allowActorHeader, "allow-actor-header", false, "accept the unauthenticated X-Actor-Id header (local testing only)")
	cmd.Flags().BoolVar(&devLogin, "dev-login", false, "expose POST /auth/dev/login for minting test tokens")
	_ = viper.BindEnv("jwt-secret")
	return cmd
}

// --- helpers ---

func newLogger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(viper.GetString("log-level"))
	if err != nil {
		return nil, fmt.Errorf("invalid --log-level: %w", err)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.OutputPaths = []string{"stderr"}
	return cfg.Build()
}

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	log, err := newLogger()
	if err != nil {
		return err
	}
	defer log.Sync()
	e, closeDB, err := app.Open(ctx, viper.GetString("workspace"), log)
	if err != nil {
		return err
	}
	defer closeDB()
	return fn(ctx, e)
}

func parseResource(kind, id string) (auth.Resource, error) {
	scope, err := auth.ParseScope(kind)
	if err != nil {
		return auth.Resource{}, err
	}
	res := auth.Resource{Kind: scope, ID: id}
	return res, res.Validate()
}

func describeError(err error) string {
	codes := auth.Codes(err)
	if len(codes) == 0 {
		return err.Error()
	}
	return fmt.Sprintf("%s [%s]", strings.ReplaceAll(err.Error(), "\n", "; "), strings.Join(codes, ", "))
}

func exitCode(err error) int {
	var ae *auth.Error
	if errors.As(err, &ae) {
		return 10 + int(ae.Kind)
	}
	if errors.Is(err, repo.ErrNotFound) {
		return 10 + int(auth.KindNotFound)
	}
	return 1
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printTable(header table.Row, rows []table.Row) {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(header)
	tw.AppendRows(rows)
	tw.Render()
}

func optionalString(cmd *cobra.Command, flag, value string) *string {
	if !cmd.Flags().Changed(flag) {
		return nil
	}
	return &value
}
