package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"riverview/adapters/htm"
	"riverview/adapters/output"
	"riverview/adapters/riverview"
	"riverview/app"
	"riverview/domain/stream"
	"riverview/internal"
	"riverview/internal/config"
	"riverview/internal/errors"
	"riverview/ports"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

// cli carries the resolved configuration from the persistent pre-run to the commands
type cli struct {
	cfg       *config.Config
	logger    *internal.Logger
	aggregate string
	plot      bool

	flags struct {
		url, river, stream, field string
		limit                     int
		outputDir, format, params string
	}
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:   "riverview",
		Short: "Run a River View stream through a temporal anomaly model",
		Long: `Fetch one stream from a River View instance, size the model to the observed
range of a field and write timestamp, value, prediction, anomaly score and
anomaly likelihood for every row.

Configuration is read from the environment (and a .env file):
- RIVERVIEW_URL, RIVERVIEW_RIVER, RIVERVIEW_STREAM, RIVERVIEW_FIELD
- RIVERVIEW_LIMIT (default 3000), RIVERVIEW_TIMEOUT (default 30s)
- OUTPUT_DIR (default .), OUTPUT_FORMAT (csv|xlsx)
- MODEL_PARAMS_FILE, LOG_LEVEL
Flags override the environment.

Example: riverview -r chicago-beach-weather -s "Oak Street Weather Station" -f solar_radiation --plot`,
		SilenceUsage:      true,
		Args:              cobra.NoArgs,
		PersistentPreRunE: c.setup,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runAnomaly(cmd.Context())
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&c.flags.url, "url", "u", config.DefaultRiverViewURL, "River View URL")
	pf.StringVarP(&c.flags.river, "river", "r", config.DefaultRiver, "River name")
	pf.StringVarP(&c.flags.stream, "stream", "s", config.DefaultStream, "Stream id within the river")
	pf.StringVarP(&c.aggregate, "aggregate", "a", "", "Aggregation window for geospatial rivers; models the count field")
	pf.IntVar(&c.flags.limit, "limit", config.DefaultDataLimit, "Number of rows to request when not aggregating")
	pf.StringVar(&c.flags.params, "params", "", "YAML file overriding the model params")

	f := root.Flags()
	f.StringVarP(&c.flags.field, "field", "f", config.DefaultField, "Field to model")
	f.BoolVarP(&c.plot, "plot", "p", false, "Render a PNG plot instead of writing a data file")
	f.StringVar(&c.flags.format, "format", "csv", "Data file format: csv or xlsx")
	f.StringVarP(&c.flags.outputDir, "output-dir", "o", ".", "Directory for output files")

	root.AddCommand(newInspectCmd(c), newParamsCmd(c))
	return root
}

// setup loads .env and the environment, then lets explicitly set flags win
func (c *cli) setup(cmd *cobra.Command, args []string) error {
	_ = godotenv.Load()

	cfg := config.Load()
	flags := cmd.Flags()
	if flags.Changed("url") {
		cfg.RiverView.URL = c.flags.url
	}
	if flags.Changed("river") {
		cfg.RiverView.River = c.flags.river
	}
	if flags.Changed("stream") {
		cfg.RiverView.Stream = c.flags.stream
	}
	if flags.Changed("field") {
		cfg.RiverView.Field = c.flags.field
	}
	if flags.Changed("limit") {
		cfg.RiverView.Limit = c.flags.limit
	}
	if flags.Changed("output-dir") {
		cfg.Output.Dir = c.flags.outputDir
	}
	if flags.Changed("format") {
		cfg.Output.Format = strings.ToLower(c.flags.format)
	}
	if flags.Changed("params") {
		cfg.Model.ParamsFile = c.flags.params
	}
	if err := cfg.Validate(); err != nil {
		return errors.Wrap(err, "configuration validation failed")
	}

	level, ok := internal.ParseLogLevel(cfg.Logging.Level)
	if !ok {
		level = internal.LogLevelInfo
	}
	c.cfg = cfg
	c.logger = internal.NewLogger(level)
	return nil
}

func (c *cli) source() ports.StreamSourcePort {
	return riverview.NewClient(riverview.ClientConfig{
		BaseURL: c.cfg.RiverView.URL,
		Limit:   c.cfg.RiverView.Limit,
		Timeout: c.cfg.RiverView.Timeout,
	}, c.logger)
}

func (c *cli) params() (htm.Params, error) {
	if c.cfg.Model.ParamsFile != "" {
		return htm.LoadParamsFile(c.cfg.Model.ParamsFile)
	}
	return htm.DefaultParams()
}

func (c *cli) runAnomaly(ctx context.Context) error {
	defer c.logger.Sync()

	params, err := c.params()
	if err != nil {
		return err
	}

	outCfg := output.Config{Dir: c.cfg.Output.Dir, Format: c.cfg.Output.Format}
	writers := func(meta stream.RunMeta, plot bool) (ports.ResultWriterPort, error) {
		return output.New(outCfg, meta, plot, c.logger)
	}

	fingerprint, err := params.Fingerprint()
	if err != nil {
		return err
	}
	c.logger.Debug("Model params %s", fingerprint.Short())

	svc := app.NewAnomalyService(c.source(), htm.NewModelFactory(params), writers,
		params.ModelParams.AnomalyParams, c.logger)

	summary, err := svc.Run(ctx, app.RunRequest{
		River:      c.cfg.RiverView.River,
		Stream:     c.cfg.RiverView.Stream,
		Field:      c.cfg.RiverView.Field,
		Aggregate:  c.aggregate,
		Plot:       c.plot,
		ParamsHash: fingerprint,
	})
	if err != nil {
		return err
	}
	c.logger.Info("Run %s finished in %s: %d rows written to %s",
		summary.RunID, summary.Duration.Round(time.Millisecond), summary.RowsWritten, summary.OutputPath)
	return nil
}

func newInspectCmd(c *cli) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Fetch a stream and profile its numeric fields",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc := app.NewInspectService(c.source())
			report, err := svc.Inspect(cmd.Context(), c.cfg.RiverView.River, c.cfg.RiverView.Stream, c.aggregate)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}
			return printReport(cmd.OutOrStdout(), report)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the report as JSON")
	return cmd
}

func printReport(w io.Writer, report *app.StreamReport) error {
	fmt.Fprintf(w, "%s (%s)\n%s\n%d rows, headers %v\n\n", report.Name, report.Type, report.URL, report.Rows, report.Headers)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "FIELD\tCOUNT\tNULLS\tMIN\tMAX\tMEAN\tSTDDEV")
	for _, f := range report.Fields {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%g\t%g\t%.4g\t%.4g\n", f.Field, f.Count, f.Nulls, f.Min, f.Max, f.Mean, f.StdDev)
	}
	return tw.Flush()
}

func newParamsCmd(c *cli) *cobra.Command {
	var min, max float64

	cmd := &cobra.Command{
		Use:   "params",
		Short: "Print the resolved model params",
		Long: `Print the model params YAML the run would start from. With --min and --max
the value and _classifierInput encoder ranges are patched as a run would.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := c.params()
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("min") || flags.Changed("max") {
				if params, err = params.WithRange(min, max); err != nil {
					return err
				}
			}
			raw, err := params.YAML()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(raw)
			return err
		},
	}

	cmd.Flags().Float64Var(&min, "min", 0, "Encoder minimum")
	cmd.Flags().Float64Var(&max, "max", 100, "Encoder maximum")
	return cmd
}
