package sim

import (
	"fmt"

	"github.com/ValentinKolb/dMesh/cmd/util"
	"github.com/ValentinKolb/dMesh/comm/common"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	// SimCommands represents the sim command group
	SimCommands = &cobra.Command{
		Use:     "sim",
		Short:   "Run an in-process multi-rank mesh simulation",
		Long:    "",
		RunE:    run,
		PreRunE: processConfig,
	}
	simRanks    = 4
	simElements = 64
)

func init() {
	// Initialize viper
	cobra.OnInitialize(util.InitConfig)

	// Add flags
	key := "ranks"
	SimCommands.PersistentFlags().Int(key, 4, util.WrapString("Number of in-process ranks to run"))
	key = "element-count"
	SimCommands.PersistentFlags().Int(key, 64, util.WrapString("Total number of elements in the chain mesh, partitioned evenly across the ranks"))

	// Add subcommands
	SimCommands.AddCommand(perfTestCmd)
}

// processConfig reads the simulation parameters from flags and env
func processConfig(cmd *cobra.Command, _ []string) error {
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	simRanks = viper.GetInt("ranks")
	simElements = viper.GetInt("element-count")

	if simRanks < 1 {
		return fmt.Errorf("invalid rank count %d", simRanks)
	}
	if simElements < simRanks {
		return fmt.Errorf("element count %d must be at least the rank count %d", simElements, simRanks)
	}

	return nil
}

func run(_ *cobra.Command, _ []string) error {
	common.InitLoggers(viper.GetString("log-level"))

	fmt.Printf("Simulating %d elements across %d ranks\n\n", simElements, simRanks)

	summaries, err := runSimulation(simRanks, simElements)
	if err != nil {
		return err
	}

	for _, s := range summaries {
		fmt.Println(s.String())
	}

	return nil
}
