package table

import (
	"github.com/spf13/cobra"
	"github.com/yanqingluo/dble/cmd/util"
	"github.com/yanqingluo/dble/rpc/client"
)

var (
	rpcStore client.IRPCStore

	// TableCommands represents the sequence table command group
	TableCommands = &cobra.Command{
		Use:               "table",
		Short:             "Perform sequence table operations",
		Long:              "Manage the rows of a sequence table shard. The allocator reserves its segments from these rows.",
		PersistentPreRunE: setupTableClient,
	}
)

func init() {
	// Initialize viper
	cobra.OnInitialize(util.InitClientConfig)

	// Add common RPC flags to the table command
	util.SetupRPCClientFlags(TableCommands)

	// Set default shard ID for table operations (different from allocator default)
	TableCommands.PersistentFlags().Int("shard", 100, util.WrapString("ID of the shard to connect to"))

	// Add subcommands
	TableCommands.AddCommand(defineCmd)
	TableCommands.AddCommand(spanCmd)
	TableCommands.AddCommand(dropCmd)
	TableCommands.AddCommand(getCmd)
	TableCommands.AddCommand(reserveCmd)
	TableCommands.AddCommand(infoCmd)
}

// setupTableClient initializes the RPC table client
func setupTableClient(cmd *cobra.Command, _ []string) error {
	// Bind command flags to viper
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	// Get serializer and transport
	s, err := util.GetSerializer()
	if err != nil {
		return err
	}

	t, err := util.GetClientTransport()
	if err != nil {
		return err
	}

	rpcStore, err = client.NewRPCStore(
		util.GetShardID(),
		*util.GetClientConfig(),
		t,
		s,
	)

	return err
}
