// Package cli wires configuration, logging, storage and reminders into the
// taskapp commands.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"taskapp/internal/alarm"
	"taskapp/internal/config"
	"taskapp/internal/logger"
	"taskapp/internal/notify"
	"taskapp/internal/storage"
	"taskapp/internal/ui"
)

var Version = "dev"

const releaseTimeout = 5 * time.Second

// NewRootCommand returns `taskapp` with its subcommands attached.
func NewRootCommand() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "taskapp",
		Short:         "A task list with reminders for the terminal",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScreen(cmd.Context(), configPath)
		},
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default $TASKAPP_CONFIG or config.toml)")

	root.AddCommand(listCmd(&configPath))
	root.AddCommand(remindersCmd(&configPath))
	root.AddCommand(versionCmd())
	return root
}

func listCmd(configPath *string) *cobra.Command {
	var category string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Print tasks, newest date first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd.OutOrStdout(), cmd.ErrOrStderr(), *configPath, category)
		},
	}
	cmd.Flags().StringVar(&category, "category", "", "only tasks in this exact category")
	return cmd
}

func remindersCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "reminders",
		Short: "Print armed reminders ordered by task id",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReminders(cmd.OutOrStdout(), *configPath)
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "taskapp %s\n", Version)
		},
	}
}

// env is what every command opens before doing work.
type env struct {
	cfg    config.Config
	logger *zap.Logger
	store  *storage.Store
	td     *teardown
}

func openEnv(ctx context.Context, configPath string) (*env, error) {
	cfg, err := config.LoadOrCreate(config.ResolveConfigPath(configPath))
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	base, logFile, err := logger.New(logger.Config{Level: cfg.LogLevel, Encoding: cfg.LogEncoding, Path: cfg.LogPath})
	if err != nil {
		return nil, fmt.Errorf("open log: %w", err)
	}
	log := logger.WithSession(ctx, base)

	td := newTeardown(releaseTimeout, log)
	td.add("logger", func(context.Context) error {
		_ = log.Sync()
		return logFile.Close()
	})

	store, err := storage.Open(cfg.DBPath, storage.WithLogger(log))
	if err != nil {
		_ = td.run(context.Background())
		return nil, fmt.Errorf("open database: %w", err)
	}
	td.addCloser("task store", store)

	return &env{cfg: cfg, logger: log, store: store, td: td}, nil
}

// runScreen runs the interactive list until the user quits or a signal arrives.
func runScreen(ctx context.Context, configPath string) (err error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = logger.NewSessionContext(ctx)
	e, err := openEnv(ctx, configPath)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, e.td.run(context.Background()))
	}()

	registry, err := alarm.OpenRegistry(e.cfg.AlarmDBPath)
	if err != nil {
		return fmt.Errorf("open alarm registry: %w", err)
	}
	e.td.addCloser("alarm registry", registry)

	perm := notify.RequestPermission(e.cfg.Notifications, e.logger)
	sink := notify.NewSink(perm, e.logger)
	scheduler := alarm.NewScheduler(registry, sink, e.logger, alarm.Config{Grace: e.cfg.Grace()})
	if err := scheduler.Start(); err != nil {
		return err
	}
	e.td.add("alarm scheduler", func(ctx context.Context) error {
		scheduler.Stop(ctx)
		return nil
	})

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	e.td.cancelOnSignal(cancel)

	e.logger.Info("list screen starting", zap.String("db_path", e.cfg.DBPath))
	return ui.Run(ctx, e.store, scheduler, e.cfg, e.logger, sink.Attach)
}

// runList prints the list the screen would show after searching for category.
func runList(out, errOut io.Writer, configPath, category string) (err error) {
	e, err := openEnv(context.Background(), configPath)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, e.td.run(context.Background()))
	}()

	list := &ui.TaskList{}
	all, err := e.store.QueryAll()
	if err != nil {
		return err
	}
	list.UpdateTaskList(all)

	if category != "" {
		res, err := ui.NewSearchController(e.store, list).Search(category)
		if err != nil {
			return err
		}
		if res.Outcome == ui.SearchNoMatch {
			fmt.Fprintln(errOut, res.Notice)
		}
	}
	printTasks(out, list)
	return nil
}

// runReminders lists persisted reminders without arming them.
func runReminders(out io.Writer, configPath string) (err error) {
	e, err := openEnv(context.Background(), configPath)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, e.td.run(context.Background()))
	}()

	registry, err := alarm.OpenRegistry(e.cfg.AlarmDBPath)
	if err != nil {
		return fmt.Errorf("open alarm registry: %w", err)
	}
	e.td.addCloser("alarm registry", registry)

	pending, err := alarm.NewScheduler(registry, nil, e.logger, alarm.Config{Grace: e.cfg.Grace()}).Pending()
	if err != nil {
		return err
	}
	for _, reg := range pending {
		fmt.Fprintf(out, "%4d  %s  %s\n", reg.ID, reg.At.Format(storage.DateLayout), reg.Title)
	}
	return nil
}

func printTasks(out io.Writer, list *ui.TaskList) {
	for i := 0; i < list.Len(); i++ {
		t, _ := list.TaskAt(i)
		fmt.Fprintf(out, "%4d  %-16s  %s", t.ID, t.Date, t.Title)
		if t.Category != "" {
			fmt.Fprintf(out, "  [%s]", t.Category)
		}
		fmt.Fprintln(out)
	}
}
