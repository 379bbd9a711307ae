package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/nicktill/ipedscomps/pkg/config"
	"github.com/nicktill/ipedscomps/pkg/server"
)

var (
	rootCmd = &cobra.Command{
		Use:   "ipedscomps",
		Short: "Completions lookup service",
		Long: `ipedscomps answers "which institutions awarded completions in this
program, per year" from IPEDS directory and completions files.`,
		SilenceUsage: true,
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long: `Start the HTTP API. Every flag can also be set through an environment
variable of the form COMPS_<FLAG> (e.g. COMPS_CACHE_SIZE=200). PORT overrides
the listening port.`,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			return viper.BindPFlags(cmd.Flags())
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(viper.GetViper())
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("ipedscomps v%s\n", server.Version)
		},
	}
)

func init() {
	cobra.OnInitialize(func() { config.InitEnv(viper.GetViper()) })

	config.RegisterFlags(serveCmd.Flags())
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}
