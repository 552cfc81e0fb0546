package seq

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/yanqingluo/dble/lib/seqconf"
)

var (
	nextCmd = &cobra.Command{
		Use:   "next [sequence]",
		Short: "Fetches the next ID(s) of a sequence",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			count := viper.GetInt("count")
			if count < 1 {
				return fmt.Errorf("count must be at least 1")
			}
			for i := 0; i < count; i++ {
				id, err := rpcAllocator.NextID(args[0])
				if err != nil {
					return err
				}
				fmt.Println(id)
			}
			return nil
		},
	}
	listCmd = &cobra.Command{
		Use:   "list",
		Short: "Lists the sequences of the allocator and their targets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sequences, err := rpcAllocator.ListSequences()
			if err != nil {
				return err
			}
			if len(sequences) == 0 {
				fmt.Println("no sequences configured")
				return nil
			}
			printSorted(sequences)
			return nil
		},
	}
	errorsCmd = &cobra.Command{
		Use:   "errors",
		Short: "Shows the last refill error of each sequence",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			errs, err := rpcAllocator.ListErrors()
			if err != nil {
				return err
			}
			if len(errs) == 0 {
				fmt.Println("no errors")
				return nil
			}
			printSorted(errs)
			return nil
		},
	}
	reloadCmd = &cobra.Command{
		Use:   "reload [file]",
		Short: "Replaces the sequence mapping of the allocator with the content of a properties file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mapping, err := seqconf.LoadProperties(args[0], viper.GetBool("lower-case-names"))
			if err != nil {
				return err
			}
			if err := rpcAllocator.ReloadMapping(mapping); err != nil {
				return err
			}
			fmt.Printf("reloaded %d sequences\n", len(mapping))
			return nil
		},
	}
)

func init() {
	nextCmd.Flags().Int("count", 1, "Number of IDs to fetch")
	reloadCmd.Flags().Bool("lower-case-names", false, "Lower-case all sequence names of the file")
}

// printSorted prints a map as name=value lines ordered by name
func printSorted(m map[string]string) {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Printf("%s=%s\n", name, m[name])
	}
}
