package seq

import (
	"encoding/csv"
	"fmt"
	"log"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/yanqingluo/dble/cmd/util"
	"github.com/yanqingluo/dble/rpc/common"
)

var (
	perfTestCmd = &cobra.Command{
		Use:   "perf",
		Short: "Performance testing tool for the sequence allocator",
		Long: `Fetches IDs concurrently and reports the throughput. The sequences must be configured on the server.
By default all sequences of the allocator are used, the "next" test only uses the first one.`,
		RunE:    run,
		PreRunE: processPerfConfig,
	}
	perfNumThreads = 10
	perfSequences  []string
	perfSkip       = make([]string, 0)
)

func init() {
	// add flags
	key := "skip"
	perfTestCmd.Flags().String(key, "", util.WrapString("Benchmarks to skip (comma separated - e.g. next,list)"))
	key = "threads"
	perfTestCmd.Flags().Int(key, 10, util.WrapString("Number of threads to use for the benchmark"))
	key = "sequences"
	perfTestCmd.Flags().String(key, "", util.WrapString("Sequences to use (comma separated), defaults to all sequences of the allocator"))
	key = "csv"
	perfTestCmd.Flags().String(key, "", util.WrapString("Optional path to save benchmark results as CSV"))
}

func processPerfConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// Read the configuration from the command line flags and environment variables
	perfNumThreads = viper.GetInt("threads")
	perfSkip = util.SplitList(viper.GetString("skip"))
	perfSequences = util.SplitList(viper.GetString("sequences"))

	if len(perfSequences) == 0 {
		sequences, err := rpcAllocator.ListSequences()
		if err != nil {
			return err
		}
		for name := range sequences {
			perfSequences = append(perfSequences, name)
		}
		sort.Strings(perfSequences)
	}
	if len(perfSequences) == 0 {
		return fmt.Errorf("the allocator has no sequences, use --sequences or configure the server")
	}
	return nil
}

func run(_ *cobra.Command, _ []string) error {

	fmt.Println("Performance testing tool for the sequence allocator")

	// Print configuration
	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Println(util.GetClientConfig().String())
	fmt.Printf("Threads: %d\n", perfNumThreads)
	fmt.Printf("Sequences: %s\n", strings.Join(perfSequences, ","))
	fmt.Println()

	fmt.Println("starting tests...")

	// Create results map
	results := make(map[string]testing.BenchmarkResult)
	// tests that fetched ids and whether they saw duplicates
	var duplicates sync.Map

	nextResult := testing.Benchmark(func(b *testing.B) {
		if shouldSkip("next") {
			return
		}

		name := perfSequences[0]
		seen := newIDSet()

		b.SetParallelism(perfNumThreads)

		b.ResetTimer()

		b.RunParallel(func(pb *testing.PB) {
			for pb.Next() {
				id, err := rpcAllocator.NextID(name)
				if err != nil {
					log.Printf("(next) - error fetching id: %v\n", err)
					continue
				}
				if !seen.add(name, id) {
					duplicates.Store("next", true)
				}
			}
		})
	})

	results["next"] = nextResult
	printResult("next", nextResult)

	spreadResult := testing.Benchmark(func(b *testing.B) {
		if shouldSkip("next-spread") {
			return
		}

		seen := newIDSet()

		b.SetParallelism(perfNumThreads)

		b.ResetTimer()

		b.RunParallel(func(pb *testing.PB) {
			counter := 0
			for pb.Next() {
				name := perfSequences[counter%len(perfSequences)]
				id, err := rpcAllocator.NextID(name)
				if err != nil {
					log.Printf("(next-spread) - error fetching id of %s: %v\n", name, err)
				} else if !seen.add(name, id) {
					duplicates.Store("next-spread", true)
				}
				counter++
			}
		})
	})

	results["next-spread"] = spreadResult
	printResult("next-spread", spreadResult)

	listResult := testing.Benchmark(func(b *testing.B) {
		if shouldSkip("list") {
			return
		}

		b.SetParallelism(perfNumThreads)

		b.ResetTimer()

		b.RunParallel(func(pb *testing.PB) {
			for pb.Next() {
				if _, err := rpcAllocator.ListSequences(); err != nil {
					log.Printf("(list) - error listing sequences: %v\n", err)
				}
			}
		})
	})

	results["list"] = listResult
	printResult("list", listResult)

	failed := false
	duplicates.Range(func(test, _ any) bool {
		fmt.Printf("\n(%s) - duplicate ids were handed out\n", test)
		failed = true
		return true
	})

	// Write results to csv is specified
	if csvPath := viper.GetString("csv"); csvPath != "" {
		fmt.Printf("\nExporting results to CSV: %s\n", csvPath)
		if err := writeResultsToCSV(csvPath, results, util.GetClientConfig()); err != nil {
			return fmt.Errorf("failed to export results to CSV: %v", err)
		}
		fmt.Println("Export complete")
	}

	if failed {
		return fmt.Errorf("duplicate ids detected")
	}
	return nil
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func shouldSkip(test string) bool {
	// Check if the test is in the skip list
	for _, skip := range perfSkip {
		if test == skip {
			return true
		}
	}
	return false
}

// idSet records the ids handed out per sequence
type idSet struct {
	mu  sync.Mutex
	ids map[string]map[int64]struct{}
}

func newIDSet() *idSet {
	return &idSet{ids: make(map[string]map[int64]struct{})}
}

// add returns false if the id was seen before
func (s *idSet) add(name string, id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids, ok := s.ids[name]
	if !ok {
		ids = make(map[int64]struct{})
		s.ids[name] = ids
	}
	if _, dup := ids[id]; dup {
		return false
	}
	ids[id] = struct{}{}
	return true
}

// printResult prints the result of a benchmark test in a formatted way
func printResult(test string, result testing.BenchmarkResult) {
	if result.NsPerOp() == 0 {
		fmt.Printf("%-20sskipped\n", test)
		return
	}

	nsPerOp := math.Max(float64(result.NsPerOp()), 1) // prevent division by zero
	opsPerSec := 1.0 / (nsPerOp / 1e9)

	// Print the formatted result
	fmt.Printf("%-20s%.0fns/op (%s/op)\t%.0f ops/sec\n", test, nsPerOp, time.Duration(nsPerOp), opsPerSec)
}

// writeResultsToCSV writes benchmark results to a CSV file
func writeResultsToCSV(csvPath string, results map[string]testing.BenchmarkResult, config *common.ClientConfig) error {
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %v", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	// Write header
	header := []string{
		"Test", "NsPerOp", "DurationPerOp", "OpsPerSec", "Skipped",
		"Endpoints", "TimeoutSec", "RetryCount", "ConnectionsPerEndpoint",
		"ShardID", "Serializer", "Transport",
		"Threads", "Sequences",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %v", err)
	}

	tests := make([]string, 0, len(results))
	for test := range results {
		tests = append(tests, test)
	}
	sort.Strings(tests)

	// Write test results
	for _, test := range tests {
		result := results[test]
		var nsPerOp float64
		var opsPerSec float64
		skipped := "true"

		if result.NsPerOp() != 0 {
			skipped = "false"
			nsPerOp = math.Max(float64(result.NsPerOp()), 1)
			opsPerSec = 1.0 / (nsPerOp / 1e9)
		}

		row := []string{
			test,
			fmt.Sprintf("%.0f", nsPerOp),
			time.Duration(nsPerOp).String(),
			fmt.Sprintf("%.0f", opsPerSec),
			skipped,
			strings.Join(config.Transport.Endpoints, ";"),
			strconv.Itoa(config.TimeoutSecond),
			strconv.Itoa(config.Transport.RetryCount),
			strconv.Itoa(config.Transport.ConnectionsPerEndpoint),
			strconv.FormatUint(util.GetShardID(), 10),
			viper.GetString("serializer"),
			viper.GetString("transport"),
			strconv.Itoa(perfNumThreads),
			strings.Join(perfSequences, ";"),
		}

		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row for test %s: %v", test, err)
		}
	}

	return nil
}
