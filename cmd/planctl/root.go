package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"safety-planner/internal/common/config"
	"safety-planner/internal/common/logging"
	"safety-planner/internal/planner/repository"
	"safety-planner/internal/planner/risk"
	"safety-planner/internal/planner/service"
	"safety-planner/internal/planner/versioning"
)

// ============================================================
// Root command
// ============================================================

// cli держит viper-конфигурацию одного запуска.
type cli struct {
	v *viper.Viper
}

func newRootCmd() *cobra.Command {
	app := &cli{v: viper.New()}

	root := &cobra.Command{
		Use:           "planctl",
		Short:         "Work with safety floor plans stored in a workspace file",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return app.initConfig(cmd)
		},
	}

	root.PersistentFlags().String("config", "", "config file (yaml, toml or json)")
	root.PersistentFlags().StringP("workspace", "w", "planner.json", "workspace file (.json, .cbor, .db)")
	root.PersistentFlags().String("rules", "", "risk rules file (json, yaml or toml)")
	root.PersistentFlags().Int("snapshot-interval", 50, "store a full snapshot every N commits")
	root.PersistentFlags().String("log-level", "warn", "log level")

	_ = app.v.BindPFlag("db_path", root.PersistentFlags().Lookup("workspace"))
	_ = app.v.BindPFlag("rules_path", root.PersistentFlags().Lookup("rules"))
	_ = app.v.BindPFlag("snapshot_interval", root.PersistentFlags().Lookup("snapshot-interval"))
	_ = app.v.BindPFlag("log_level", root.PersistentFlags().Lookup("log-level"))

	root.AddCommand(
		app.planCmd(),
		app.importCmd(),
		app.commitCmd(),
		app.logCmd(),
		app.checkoutCmd(),
		app.revertCmd(),
		app.riskCmd(),
		app.rulesCmd(),
		app.exportCmd(),
	)
	return root
}

func (a *cli) initConfig(cmd *cobra.Command) error {
	if file, _ := cmd.Flags().GetString("config"); file != "" {
		a.v.SetConfigFile(file)
		if err := a.v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", file, err)
		}
	}
	a.v.AutomaticEnv()
	return nil
}

// ============================================================
// Session
// ============================================================

// session: рабочее пространство, загруженное из файла на время одной
// команды. save записывает его обратно.
type session struct {
	svc   *service.Workspace
	store repository.Adapter
	close func() error
}

func (a *cli) open(ctx context.Context, stderr io.Writer) (*session, error) {
	cfg, err := config.FromViper(a.v)
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(logging.Config{Level: cfg.LogLevel, Format: "console", Output: stderr})
	if err != nil {
		return nil, err
	}

	rules, err := loadRules(cfg.RulesPath)
	if err != nil {
		return nil, err
	}
	engine, err := risk.NewEngine(rules, logger)
	if err != nil {
		return nil, err
	}

	store, closeFn, err := repository.Open(ctx, cfg.DBPath)
	if err != nil {
		return nil, err
	}
	svc := service.New(versioning.New(versioning.WithSnapshotInterval(cfg.SnapshotInterval)), risk.NewHolder(engine), logger)
	if _, err := svc.Restore(ctx, store); err != nil {
		closeFn()
		return nil, err
	}
	return &session{svc: svc, store: store, close: closeFn}, nil
}

func loadRules(path string) (risk.RulesConfig, error) {
	if path == "" {
		return risk.DefaultRules(), nil
	}
	return risk.LoadRules(path)
}

func (s *session) save(ctx context.Context) error {
	return s.store.Save(ctx, s.svc.Snapshot())
}

// withSession открывает сессию, выполняет fn и, если write, сохраняет
// результат.
func (a *cli) withSession(cmd *cobra.Command, write bool, fn func(*session) error) error {
	s, err := a.open(cmd.Context(), cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer s.close()

	if err := fn(s); err != nil {
		return err
	}
	if write {
		return s.save(cmd.Context())
	}
	return nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
