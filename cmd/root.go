package cmd

import (
	"fmt"
	"os"

	"github.com/ValentinKolb/dMesh/cmd/sim"
	"github.com/ValentinKolb/dMesh/cmd/util"
	"github.com/spf13/cobra"
)

const (
	Version = "0.3.1"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "dmesh",
		Short: "distributed unstructured-mesh database",
		Long: fmt.Sprintf(`dMesh (v%s)

A distributed unstructured-mesh database library written in Go,
keeping entity copies consistent across processes via collective
ghost-layer synchronization.`, Version),
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of dMesh",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("dMesh v%s\n", Version)
		},
	}
)

func init() {
	// Add Commands
	RootCmd.AddCommand(sim.SimCommands)
	RootCmd.AddCommand(versionCmd)

	// Add Flags
	key := "log-level"
	RootCmd.PersistentFlags().String(key, "warning", util.WrapString("log level for all subsystems (debug, info, warning, error)"))
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
