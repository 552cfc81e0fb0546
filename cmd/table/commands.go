package table

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var (
	defineCmd = &cobra.Command{
		Use:   "define [sequence] [start] [span]",
		Short: "Defines a sequence, the first reservation starts at start",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			start, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("start must be a number: %w", err)
			}
			span, err := strconv.ParseInt(args[2], 10, 64)
			if err != nil {
				return fmt.Errorf("span must be a number: %w", err)
			}
			if err := rpcStore.Define(args[0], start, span); err != nil {
				return err
			}
			fmt.Println("defined successfully")
			return nil
		},
	}
	spanCmd = &cobra.Command{
		Use:   "span [sequence] [span]",
		Short: "Changes the number of IDs reserved at once",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			span, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("span must be a number: %w", err)
			}
			if err := rpcStore.SetSpan(args[0], span); err != nil {
				return err
			}
			fmt.Println("span set successfully")
			return nil
		},
	}
	dropCmd = &cobra.Command{
		Use:   "drop [sequence]",
		Short: "Removes a sequence",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := rpcStore.Drop(args[0]); err != nil {
				return err
			}
			fmt.Println("dropped successfully")
			return nil
		},
	}
	getCmd = &cobra.Command{
		Use:   "get [sequence]",
		Short: "Shows the row of a sequence",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			row, ok, err := rpcStore.Get(args[0])
			if err != nil {
				return err
			}
			if !ok {
				fmt.Println("<not found>")
				return nil
			}
			fmt.Printf("next=%d span=%d\n", row.Next, row.Span)
			return nil
		},
	}
	reserveCmd = &cobra.Command{
		Use:   "reserve [sequence]",
		Short: "Reserves the next segment of a sequence",
		Long:  "Reserves the next segment of a sequence. The IDs of the segment are never handed out by the allocator.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			next, span, ok, err := rpcStore.Reserve(args[0])
			if err != nil {
				return err
			}
			if !ok {
				fmt.Println("<not found>")
				return nil
			}
			fmt.Printf("reserved [%d, %d)\n", next, next+span)
			return nil
		},
	}
	infoCmd = &cobra.Command{
		Use:   "info",
		Short: "Shows metadata of the table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := rpcStore.GetInfo()
			if err != nil {
				return err
			}
			fmt.Println(info.String())
			return nil
		},
	}
)
