package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/salescast/internal/metrics"
	"github.com/wonny/salescast/internal/scheduler"
	"github.com/wonny/salescast/internal/scheduler/jobs"
	"github.com/wonny/salescast/pkg/database"
	"github.com/wonny/salescast/pkg/redis"
)

// schedulerCmd represents the scheduler command
var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "Scheduled re-forecasting of stored businesses",
	Long: `Re-runs the pipeline for every business with stored inputs and replaces
its stored forecast. One failing business never stops the others.

Subcommands:
  start   Run the cron scheduler until interrupted
  run     Run the forecast job once and exit
  list    Show registered jobs

Example:
  go run ./cmd/salescast scheduler start
  go run ./cmd/salescast scheduler run`,
}

var schedulerStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the scheduler",
	RunE:  runSchedulerStart,
}

var schedulerRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the forecast job once",
	RunE:  runSchedulerOnce,
}

var schedulerListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered jobs and their schedules",
	RunE:  runSchedulerList,
}

var (
	schedulerRetries    int
	schedulerRetryDelay time.Duration
	schedulerModel      string
)

func init() {
	rootCmd.AddCommand(schedulerCmd)
	schedulerCmd.AddCommand(schedulerStartCmd)
	schedulerCmd.AddCommand(schedulerRunCmd)
	schedulerCmd.AddCommand(schedulerListCmd)

	schedulerCmd.PersistentFlags().IntVar(&schedulerRetries, "retries", 1, "retries of a failed job run")
	schedulerCmd.PersistentFlags().DurationVar(&schedulerRetryDelay, "retry-delay", time.Minute, "delay between retries")
	schedulerCmd.PersistentFlags().StringVar(&schedulerModel, "model-config", "", "model YAML (default FORECAST_MODEL_CONFIG)")
}

// schedulerEnv is everything a scheduler command opens
type schedulerEnv struct {
	app   *app
	db    *database.DB
	redis *redis.Client
	sched *scheduler.Scheduler
	job   *jobs.ForecastJob
}

func (e *schedulerEnv) close(ctx context.Context) {
	e.sched.Stop()
	_ = e.redis.Close()
	e.db.Close()
	e.app.close(ctx)
}

// newSchedulerEnv wires the forecast job against Postgres and the cache
func newSchedulerEnv(ctx context.Context) (*schedulerEnv, error) {
	a, err := bootstrap(ctx)
	if err != nil {
		return nil, err
	}

	modelCfg, err := a.modelConfig(schedulerModel)
	if err != nil {
		a.close(ctx)
		return nil, err
	}

	m := metrics.New()
	orch, err := a.orchestrator(modelCfg, m)
	if err != nil {
		a.close(ctx)
		return nil, err
	}

	db, repo, err := a.openStore(ctx)
	if err != nil {
		a.close(ctx)
		return nil, err
	}
	if err := repo.EnsureSchema(ctx); err != nil {
		db.Close()
		a.close(ctx)
		return nil, err
	}

	responseCache, redisClient, err := a.openCache(ctx, m)
	if err != nil {
		db.Close()
		a.close(ctx)
		return nil, err
	}

	job := jobs.NewForecastJob(repo, orch, responseCache,
		a.cfg.Forecast.Schedule, a.cfg.Forecast.RunTimeout, modelCfg.Forecast.Horizon, m, a.log)

	sched := scheduler.New(a.log, scheduler.WithRetries(schedulerRetries, schedulerRetryDelay))
	if err := sched.AddJob(job); err != nil {
		_ = redisClient.Close()
		db.Close()
		a.close(ctx)
		return nil, fmt.Errorf("register job: %w", err)
	}

	return &schedulerEnv{app: a, db: db, redis: redisClient, sched: sched, job: job}, nil
}

func runSchedulerStart(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	env, err := newSchedulerEnv(ctx)
	if err != nil {
		return err
	}
	defer env.close(ctx)

	env.sched.Start()

	PrintHeader("Scheduler", [][2]string{
		{"Job", env.job.Name()},
		{"Schedule", env.job.Schedule()},
		{"Retries", strconv.Itoa(schedulerRetries)},
	})
	if next, ok := env.sched.NextRun(env.job.Name()); ok {
		fmt.Printf("Next run: %s\n", next.Format(time.RFC3339))
	}
	fmt.Println("\nPress Ctrl+C to stop")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	env.app.log.Info("Shutting down scheduler")
	return nil
}

func runSchedulerOnce(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	env, err := newSchedulerEnv(ctx)
	if err != nil {
		return err
	}
	defer env.close(ctx)

	// Ctrl+C cancels the run in progress
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	runErr := env.sched.RunJob(ctx, env.job.Name())

	outcomes := env.job.LastOutcomes()
	PrintHeader("Forecast Job", [][2]string{
		{"Businesses", strconv.Itoa(len(outcomes))},
	})

	widths := []int{24, 38, 8, 10}
	PrintTableHeader([]string{"Business", "Run ID", "Points", "Status"}, widths)
	failed := 0
	for _, o := range outcomes {
		status := "ok"
		if o.Err != nil {
			status = "failed"
			failed++
		}
		PrintTableRow([]string{o.BusinessID, o.RunID, strconv.Itoa(o.Points), status}, widths)
	}
	for _, o := range outcomes {
		if o.Err != nil {
			PrintWarning(fmt.Sprintf("%s: %v", o.BusinessID, o.Err))
		}
	}

	fmt.Println()
	if runErr != nil {
		PrintError("Forecast job failed")
		return runErr
	}
	PrintSuccess(fmt.Sprintf("%d of %d businesses forecast", len(outcomes)-failed, len(outcomes)))
	return nil
}

func runSchedulerList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	env, err := newSchedulerEnv(ctx)
	if err != nil {
		return err
	}
	defer env.close(ctx)

	stats := env.sched.GetJobStats()
	widths := []int{22, 16, 26}
	PrintTableHeader([]string{"Job", "Schedule", "Next run"}, widths)
	for _, name := range env.sched.GetAllJobs() {
		next := "-"
		if t, ok := env.sched.NextRun(name); ok {
			next = t.Format(time.RFC3339)
		}
		PrintTableRow([]string{name, stats[name].Schedule, next}, widths)
	}
	return nil
}
