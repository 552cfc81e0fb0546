package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/yanqingluo/dble/cmd/seq"
	"github.com/yanqingluo/dble/cmd/serve"
	"github.com/yanqingluo/dble/cmd/table"
	"github.com/yanqingluo/dble/cmd/util"
)

const (
	Version = "0.4.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "dseq",
		Short: "segmented unique ID allocator",
		Long: fmt.Sprintf(`dseq (v%s)

A unique ID allocator for sharded databases. IDs are reserved in segments
from sequence tables on the data nodes and handed out from memory, the next
segment is fetched before the current one runs out.`, Version),
		SilenceUsage: true,
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of dseq",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("dseq v%s\n", Version)
		},
	}
)

func init() {
	// Add Commands
	RootCmd.AddCommand(serve.ServeCmd)
	RootCmd.AddCommand(seq.SequenceCommands)
	RootCmd.AddCommand(table.TableCommands)
	RootCmd.AddCommand(versionCmd)

	// Add Flags
	key := "serializer"
	RootCmd.PersistentFlags().String(key, "binary", util.WrapString("serializer to use (binary, json, gob)"))
	key = "transport"
	RootCmd.PersistentFlags().String(key, "tcp", util.WrapString("transport to use (tcp, http)"))
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
