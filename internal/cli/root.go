package cli

import (
	"github.com/latrastienda/tienda/internal/config"
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:           "tienda",
		Short:         "Online shop backend",
		Long:          "Checkout, Redsys card payments, invoices and returns for a small Spanish shop.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath, "YAML configuration file")
	cmd.AddCommand(newServeCmd(&configPath))
	cmd.AddCommand(newRedsysCmd(&configPath))
	return cmd
}

// NewRootCmdForTest returns the root command for testing.
func NewRootCmdForTest() *cobra.Command {
	return newRootCmd()
}

func Execute() error {
	return newRootCmd().Execute()
}
