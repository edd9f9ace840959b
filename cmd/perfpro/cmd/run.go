package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/psantana5/perfpro/internal/report"
	"github.com/psantana5/perfpro/internal/runner"
	"github.com/psantana5/perfpro/pkg/api"
	"github.com/psantana5/perfpro/pkg/logging"
	"github.com/psantana5/perfpro/pkg/markstore"
	"github.com/psantana5/perfpro/pkg/perf"
	"github.com/psantana5/perfpro/pkg/shutdown"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	runStepName string
	runLimit    []string
	runOmit     []string
)

var runCmd = &cobra.Command{
	Use:   "run [plan.yaml] [-- command args...]",
	Short: "Run a plan or a single command and report mark durations",
	Long: `Run executes every step of a YAML plan, or a single command given after --,
marking each step and the whole run ("total"). The resulting durations are
printed in the configured output format.

With --serve the durations stay available over HTTP (/durations, /metrics,
/health) until the process receives SIGINT or SIGTERM.

Example:
  perfpro run build.yaml
  perfpro run --limit compile,test -o json build.yaml
  perfpro run --app deploy -- ./deploy.sh staging
  perfpro run --serve :9090 build.yaml`,
	RunE: runPlan,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&runStepName, "name", "", "step name for a single command (default is the command base name)")
	runCmd.Flags().StringSliceVar(&runLimit, "limit", nil, "only report these marks")
	runCmd.Flags().StringSliceVar(&runOmit, "omit", nil, "do not report these marks")
	runCmd.Flags().String("serve", "", "serve durations on this address after the run, e.g. :9090")

	viper.BindPFlag("metrics_addr", runCmd.Flags().Lookup("serve"))
}

func runPlan(cmd *cobra.Command, args []string) error {
	plan, err := planFromArgs(cmd, args)
	if err != nil {
		return err
	}

	format, err := outputFormat()
	if err != nil {
		return err
	}

	logger := newLogger()
	defer logger.Close()

	p := perf.New(appName(plan.App),
		perf.WithStore(markstore.NewMemoryStore()),
		perf.WithLogger(logger),
	)

	r := runner.New(p,
		runner.WithLogger(logger),
		runner.WithOutput(cmd.OutOrStdout(), cmd.ErrOrStderr()),
	)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	_, runErr := r.Run(ctx, plan)

	// A nil slice means no filter, so only pass the flags that were given.
	var limit, omit []string
	if cmd.Flags().Changed("limit") {
		limit = append([]string{}, runLimit...)
	}
	if cmd.Flags().Changed("omit") {
		omit = append([]string{}, runOmit...)
	}

	if err := report.Render(cmd.OutOrStdout(), format, report.Snapshot(p, limit, omit)); err != nil {
		return fmt.Errorf("failed to render report: %w", err)
	}

	if addr := viper.GetString("metrics_addr"); addr != "" && ctx.Err() == nil {
		if err := serve(ctx, addr, p, logger); err != nil {
			return err
		}
	}

	return runErr
}

// planFromArgs builds the plan from a plan file or from the command after --
func planFromArgs(cmd *cobra.Command, args []string) (*runner.Plan, error) {
	dash := cmd.ArgsLenAtDash()
	if dash >= 0 {
		if dash > 0 {
			return nil, fmt.Errorf("cannot combine a plan file with a command after --")
		}
		return runner.CommandPlan(viper.GetString("app"), runStepName, args[dash:])
	}

	if len(args) != 1 {
		return nil, fmt.Errorf("expected a plan file or a command after --")
	}
	return runner.LoadPlan(args[0])
}

// serve exposes the profiler over HTTP until a signal arrives or ctx is done
func serve(ctx context.Context, addr string, p *perf.Profiler, logger *logging.Logger) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(report.NewCollector(p), report.Global())

	router := mux.NewRouter()
	api.NewDurationsHandler(p, reg).RegisterRoutes(router)

	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("serving durations", logging.Fields{"addr": addr, "app": p.App()})
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			cancel()
		}
	}()

	sm := shutdown.New(10*time.Second, logger)
	sm.Register(shutdown.StopHTTPServer(server, "durations"))
	sm.WaitWithContext(ctx)

	select {
	case err := <-errCh:
		return fmt.Errorf("failed to serve on %s: %w", addr, err)
	default:
		return nil
	}
}
