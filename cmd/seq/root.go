package seq

import (
	"github.com/spf13/cobra"
	"github.com/yanqingluo/dble/cmd/util"
	"github.com/yanqingluo/dble/rpc/client"
)

var (
	rpcAllocator client.IRPCAllocator

	// SequenceCommands represents the sequence command group
	SequenceCommands = &cobra.Command{
		Use:               "seq",
		Short:             "Fetch IDs and manage the sequence allocator",
		PersistentPreRunE: setupAllocatorClient,
	}
)

func init() {
	// Initialize viper
	cobra.OnInitialize(util.InitClientConfig)

	// Add common RPC flags to the sequence command
	util.SetupRPCClientFlags(SequenceCommands)

	// Set default shard ID for allocator operations (different from table default)
	SequenceCommands.PersistentFlags().Int("shard", 1, util.WrapString("ID of the allocator shard to connect to"))

	// Add subcommands
	SequenceCommands.AddCommand(nextCmd)
	SequenceCommands.AddCommand(listCmd)
	SequenceCommands.AddCommand(errorsCmd)
	SequenceCommands.AddCommand(reloadCmd)
	SequenceCommands.AddCommand(perfTestCmd)
}

// setupAllocatorClient initializes the RPC allocator client
func setupAllocatorClient(cmd *cobra.Command, _ []string) error {
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

	rpcAllocator, err = client.NewRPCAllocator(
		util.GetShardID(),
		*util.GetClientConfig(),
		t,
		s,
	)

	return err
}
