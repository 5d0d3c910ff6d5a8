package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/shaiso/Conveyor/internal/config"
	"github.com/shaiso/Conveyor/internal/driver"
	"github.com/shaiso/Conveyor/internal/launcher"
	"github.com/shaiso/Conveyor/internal/orchestrator"
	"github.com/shaiso/Conveyor/internal/telemetry"
)

// ExitError — команда завершилась с кодом выхода, отличным от 1.
// main передаёт Code в os.Exit.
type ExitError struct {
	Code int
	Err  error
}

// Error реализует интерфейс error.
func (e *ExitError) Error() string {
	return e.Err.Error()
}

// Unwrap возвращает исходную ошибку.
func (e *ExitError) Unwrap() error {
	return e.Err
}

// ExitCode возвращает код выхода для ошибки команды.
func ExitCode(err error) int {
	if err == nil {
		return driver.ExitOK
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return driver.ExitFailed
}

// loadApp читает конфигурацию приложения. Ошибка конфигурации — структурная.
func loadApp(configDir, name string) (*config.App, error) {
	app, err := config.Load(config.Dir(configDir), name)
	if err != nil {
		return nil, &ExitError{Code: driver.ExitStructural, Err: err}
	}
	return app, nil
}

// NewRunCmd создаёт команду запуска сессии.
func NewRunCmd(configDirFn func() string, outputFn func() *Output) *cobra.Command {
	var drainTimeout time.Duration

	cmd := &cobra.Command{
		Use:   "run CONFIG",
		Short: "Run a session of the main workflow",
		Long: "Run a session: execute the main workflow, then the success or error workflow.\n" +
			"Exit code: 0 success, 1 workflow failed, 2 configuration or dependency error.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()
			ctx := cmd.Context()

			app, err := loadApp(configDirFn(), args[0])
			if err != nil {
				return err
			}

			console := telemetry.NewHandler(cmd.ErrOrStderr(), app.Logger.Format, telemetry.LogLevel())
			logger := slog.New(console)

			backends, err := launcher.Connect(ctx, app, logger)
			if err != nil {
				return err
			}
			defer backends.Close()

			opts := launcher.Options{
				Console:      console,
				Logger:       logger,
				DrainTimeout: drainTimeout,
			}
			backends.Apply(&opts)

			report, err := launcher.New(app, opts).Run(ctx, launcher.TriggerCLI)
			if err != nil {
				return err
			}

			printReport(out, report)

			if code := report.Outcome.ExitCode(); code != driver.ExitOK {
				return &ExitError{
					Code: code,
					Err:  fmt.Errorf("session %s failed: %s", report.Session.Name, report.Outcome.Message),
				}
			}
			out.Success(fmt.Sprintf("Session %s succeeded", report.Session.Name))
			return nil
		},
	}

	cmd.Flags().DurationVar(&drainTimeout, "drain-timeout", 0, "How long to wait for runners abandoned after a failure (default 30s, negative: don't wait)")

	return cmd
}

func printReport(out *Output, report *launcher.Report) {
	s, o := report.Session, report.Outcome

	pairs := [][2]string{
		{"Session", s.Name},
		{"Status", string(s.Status)},
		{"Work dir", s.WorkDir},
		{"Duration", telemetry.FormatDuration(o.Duration)},
		{"Exit code", strconv.Itoa(o.ExitCode())},
	}
	if o.Message != "" {
		pairs = append(pairs, [2]string{"Message", o.Message})
	}
	if o.FollowUp != nil {
		pairs = append(pairs, [2]string{"Follow-up", fmt.Sprintf("%s %s", o.FollowUp.Status, o.FollowUp.Message)})
	}

	out.Detail(pairs, s)
}

// NewValidateCmd создаёт команду статической проверки конфигурации.
func NewValidateCmd(configDirFn func() string, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "validate CONFIG",
		Short: "Check workflow configuration without running it",
		Long: "Build the graphs of the main, success and error workflows, checking that every\n" +
			"factory exists and every required key has an earlier provider.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			app, err := loadApp(configDirFn(), args[0])
			if err != nil {
				return err
			}

			l := launcher.New(app, launcher.Options{Logger: telemetry.Discard()})
			if err := l.Validate(cmd.Context()); err != nil {
				return &ExitError{Code: driver.ExitStructural, Err: err}
			}

			out.Success(fmt.Sprintf("%s: configuration is valid", args[0]))
			return nil
		},
	}
}

// FactoryInfo — фабрика runner'ов в выводе `factories`.
type FactoryInfo struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
}

// NewFactoriesCmd создаёт команду списка зарегистрированных фабрик.
func NewFactoriesCmd(outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "factories",
		Short: "List registered runner factories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			names := launcher.NewRegistry(telemetry.Discard()).Names()

			infos := make([]FactoryInfo, len(names))
			rows := make([][]string, len(names))
			for i, name := range names {
				kind := "leaf"
				if name == orchestrator.FactoryName {
					kind = "workflow"
				}
				infos[i] = FactoryInfo{Name: name, Kind: kind}
				rows[i] = []string{name, kind}
			}

			out.Print([]string{"NAME", "KIND"}, rows, infos)
			return nil
		},
	}
}
