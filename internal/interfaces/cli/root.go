package cli

import (
	"time"

	"github.com/riskibarqy/fpl-data-pipeline/internal/config"
	"github.com/riskibarqy/fpl-data-pipeline/internal/domain/resource"
	"github.com/riskibarqy/fpl-data-pipeline/internal/usecase"
	"github.com/spf13/cobra"
)

type fetchFlags struct {
	envFile  string
	resource string
	out      string
	season   int
	league   string
	limit    int
	sleep    float64
}

// NewRootCommand builds the datafetch command tree. bootstrap runs after flag
// parsing, so --help and flag errors never touch the network or the env file.
func NewRootCommand(bootstrap Bootstrap) *cobra.Command {
	if bootstrap == nil {
		bootstrap = DefaultBootstrap
	}
	flags := &fetchFlags{}

	cmd := &cobra.Command{
		Use:   "datafetch --resource <name> --out <path>",
		Short: "Fetch FPL and Understat data into JSON, CSV or Parquet files.",
		Long: "datafetch downloads one resource per run and writes it to --out. The output format\n" +
			"follows the file extension: .json, .csv, .parquet (anything else is written as CSV).\n" +
			"Resources: " + resource.Names() + ".",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runFetch(cmd, bootstrap, flags)
		},
	}

	cmd.PersistentFlags().StringVar(&flags.envFile, "env-file", config.DefaultEnvFile, "optional KEY=VALUE file; process environment wins")

	cmd.Flags().StringVar(&flags.resource, "resource", "", "resource to fetch: "+resource.Names())
	cmd.Flags().StringVar(&flags.out, "out", "", "output path; the extension selects the format")
	cmd.Flags().IntVar(&flags.season, "season", resource.DefaultSeason, "Understat season start year")
	cmd.Flags().StringVar(&flags.league, "league", resource.DefaultLeague, "Understat league code")
	cmd.Flags().IntVar(&flags.limit, "limit", 0, "only fetch histories for the first N players")
	cmd.Flags().Float64Var(&flags.sleep, "sleep", 0, "seconds between FPL history requests (default FPL_SLEEP_SEC)")
	_ = cmd.MarkFlagRequired("resource")
	_ = cmd.MarkFlagRequired("out")

	cmd.AddCommand(newCheckCommand(bootstrap, &flags.envFile))
	return cmd
}

func runFetch(cmd *cobra.Command, bootstrap Bootstrap, flags *fetchFlags) error {
	res, err := resource.Parse(flags.resource)
	if err != nil {
		return err
	}

	req := usecase.Request{
		Resource: res,
		Out:      flags.out,
		Season:   flags.season,
		League:   flags.league,
	}
	if cmd.Flags().Changed("limit") {
		limit := flags.limit
		req.Limit = &limit
	}
	if cmd.Flags().Changed("sleep") {
		sleep := time.Duration(flags.sleep * float64(time.Second))
		req.Sleep = &sleep
	}

	ctx := cmd.Context()
	svc, err := bootstrap(ctx, flags.envFile)
	if err != nil {
		return err
	}
	defer closeServices(svc)

	ds, err := svc.Fetcher.Fetch(ctx, req)
	if err != nil {
		return err
	}
	_, err = svc.Writer.Write(ctx, flags.out, ds)
	return err
}
