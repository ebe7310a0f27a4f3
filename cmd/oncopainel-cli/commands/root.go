package commands

import (
	"context"
	"fmt"
	"os"

	"oncopainel-backend/lib/restyutil"
	"oncopainel-backend/lib/scrapers/tabnet"
	"oncopainel-backend/lib/serviceutil"
	"oncopainel-backend/lib/telemetry"

	"github.com/spf13/cobra"
)

var baseUrl *string
var verbose *bool
var debugHttp *bool

func init() {
	baseUrl = rootCmd.PersistentFlags().String("base-url", "", "Overrides the upstream tabulation service base url.")
	verbose = rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enables debug logging.")
	debugHttp = rootCmd.PersistentFlags().Bool("debug-http", false, "Writes http transcripts to .dev/resty/tabnet.")
}

var rootCmd = &cobra.Command{
	Use:   "oncopainel-cli",
	Short: "oncopainel-cli queries the Painel Oncológico tabulation service.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		telemetry.InitSlog(*verbose)
		if *debugHttp {
			tabnet.SetRestyInstrumentOutput(restyutil.NewFilesystemOutput(".dev/resty/tabnet"))
		}
	},
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func createClient() *tabnet.Client {
	client, err := tabnet.NewClient(tabnet.ClientOptions{BaseUrl: *baseUrl})
	if err != nil {
		serviceutil.Fatal("failed to initialize tabnet client", err)
	}
	return client
}
