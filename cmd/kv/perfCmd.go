package kv

import (
	"encoding/csv"
	"fmt"
	"log"
	"math"
	"os"
	"slices"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/ValentinKolb/dbKV/cmd/util"
	"github.com/ValentinKolb/dbKV/rpc/common"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	perfTestCmd = &cobra.Command{
		Use:     "perf",
		Short:   "Performance testing tool for dbKV servers",
		Long:    "Runs parallel benchmarks of the key-value operations against a running dbKV server. All keys written by a benchmark are removed afterwards.",
		RunE:    runPerf,
		PreRunE: processPerfConfig,
	}
	perfKeyPrefix        = "__test"
	perfLargeValueSizeKB = 100
	perfNumThreads       = 10
	perfKeySpread        = 100
	perfSkip             = make([]string, 0)
)

func init() {
	key := "skip"
	perfTestCmd.Flags().String(key, "", util.WrapString("Benchmarks to skip (comma separated - e.g. put,get)"))
	key = "threads"
	perfTestCmd.Flags().Int(key, 10, util.WrapString("Number of threads to use for the benchmark"))
	key = "large-value-size"
	perfTestCmd.Flags().Int(key, 100, util.WrapString("How large the value for the put-large test should be (in KB)"))
	key = "key-spread"
	perfTestCmd.Flags().Int(key, 100, util.WrapString("How many different keys to use for the tests"))
	key = "csv"
	perfTestCmd.Flags().String(key, "", util.WrapString("Optional path to save benchmark results as CSV"))
}

func processPerfConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	perfLargeValueSizeKB = viper.GetInt("large-value-size")
	perfKeySpread = max(viper.GetInt("key-spread"), 1)
	perfNumThreads = max(viper.GetInt("threads"), 1)
	perfSkip = strings.Split(viper.GetString("skip"), ",")

	return nil
}

// perfTest describes one benchmark. If prefill is set, all keys are written
// before the timer starts. op is called with the goroutine local counter.
type perfTest struct {
	name    string
	prefill bool
	op      func(key string, counter int) error
}

func perfTests() []perfTest {
	largeValue := strings.Repeat("x", perfLargeValueSizeKB*1024)

	return []perfTest{
		{name: "put", op: func(key string, _ int) error {
			_, err := rpcStore.Put(table, key, "test")
			return err
		}},
		{name: "put-large", op: func(key string, _ int) error {
			_, err := rpcStore.Put(table, key, largeValue)
			return err
		}},
		{name: "get", prefill: true, op: func(key string, _ int) error {
			_, _, err := rpcStore.Get(table, key)
			return err
		}},
		{name: "remove", prefill: true, op: func(key string, _ int) error {
			_, err := rpcStore.Remove(table, key)
			return err
		}},
		{name: "contains", prefill: true, op: func(key string, _ int) error {
			_, err := rpcStore.Contains(table, key)
			return err
		}},
		{name: "contains-not", op: func(key string, _ int) error {
			_, err := rpcStore.Contains(table, key+"-missing")
			return err
		}},
		{name: "mixed", prefill: true, op: func(key string, counter int) error {
			var err error
			switch counter % 4 {
			case 0:
				_, err = rpcStore.Put(table, key, "test")
			case 1:
				_, _, err = rpcStore.Get(table, key)
			case 2:
				_, err = rpcStore.Remove(table, key)
			case 3:
				_, err = rpcStore.Contains(table, key)
			}
			return err
		}},
	}
}

// benchmark runs test in parallel and cleans up all keys it used
func benchmark(test perfTest) testing.BenchmarkResult {
	return testing.Benchmark(func(b *testing.B) {
		if shouldSkip(test.name) {
			return
		}

		getKey, iter := getKeys(test.name)

		if test.prefill {
			iter(func(k string) {
				if _, err := rpcStore.Put(table, k, "test"); err != nil {
					log.Printf("(%s) - error setting key: %v\n", test.name, err)
				}
			})
		}

		b.Cleanup(func() {
			iter(func(k string) {
				if _, err := rpcStore.Remove(table, k); err != nil {
					log.Printf("(%s) - error removing key: %v\n", test.name, err)
				}
			})
		})

		b.SetParallelism(perfNumThreads)
		b.ResetTimer()

		b.RunParallel(func(pb *testing.PB) {
			counter := 0
			for pb.Next() {
				if err := test.op(getKey(counter), counter); err != nil {
					log.Printf("(%s) - error performing operation: %v\n", test.name, err)
				}
				counter++
			}
		})
	})
}

func runPerf(_ *cobra.Command, _ []string) error {
	fmt.Println("Performance testing tool for dbKV servers")

	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Println(util.GetClientConfig().String())
	fmt.Printf("Table: %s\n", table)
	fmt.Printf("Threads: %d\n", perfNumThreads)
	fmt.Println()

	fmt.Println("starting tests...")

	tests := perfTests()
	results := make(map[string]testing.BenchmarkResult, len(tests))
	for _, test := range tests {
		result := benchmark(test)
		results[test.name] = result
		printResult(test.name, result)
	}

	if csvPath := viper.GetString("csv"); csvPath != "" {
		fmt.Printf("\nExporting results to CSV: %s\n", csvPath)
		if err := writeResultsToCSV(csvPath, results, util.GetClientConfig()); err != nil {
			return fmt.Errorf("failed to export results to CSV: %v", err)
		}
		fmt.Println("Export complete")
	}

	return nil
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func shouldSkip(test string) bool {
	return slices.Contains(perfSkip, test)
}

// getKeys creates the test keys of a benchmark. It returns a lookup with
// wraparound and a function applying fn to every key.
func getKeys(prefix string) (func(int) string, func(func(string))) {
	keys := make([]string, perfKeySpread)
	for i := range keys {
		keys[i] = fmt.Sprintf("%s-%s-%d", perfKeyPrefix, prefix, i)
	}

	getKey := func(i int) string {
		return keys[i%perfKeySpread]
	}

	iterateKeys := func(fn func(string)) {
		for _, key := range keys {
			fn(key)
		}
	}

	return getKey, iterateKeys
}

// opsPerSec converts a benchmark result to operations per second. The second
// return value is false if the benchmark was skipped.
func opsPerSec(result testing.BenchmarkResult) (float64, float64, bool) {
	if result.NsPerOp() == 0 {
		return 0, 0, false
	}
	nsPerOp := math.Max(float64(result.NsPerOp()), 1)
	return nsPerOp, 1.0 / (nsPerOp / 1e9), true
}

// printResult prints the result of a benchmark test in a formatted way
func printResult(test string, result testing.BenchmarkResult) {
	nsPerOp, ops, ok := opsPerSec(result)
	if !ok {
		fmt.Printf("%-20sskipped\n", test)
		return
	}

	fmt.Printf("%-20s%.0fns/op (%s/op)\t%s ops/sec\n", test, nsPerOp, time.Duration(nsPerOp), humanize.Comma(int64(ops)))
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

	header := []string{
		"Test", "NsPerOp", "DurationPerOp", "OpsPerSec", "Skipped",
		"Endpoints", "TimeoutSec", "RetryCount", "ConnectionsPerEndpoint",
		"Table", "Serializer", "Transport",
		"Threads", "LargeValueSizeKB", "KeySpread",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %v", err)
	}

	for test, result := range results {
		nsPerOp, ops, ok := opsPerSec(result)

		row := []string{
			test,
			fmt.Sprintf("%.0f", nsPerOp),
			time.Duration(nsPerOp).String(),
			fmt.Sprintf("%.0f", ops),
			strconv.FormatBool(!ok),
			strings.Join(config.Transport.Endpoints, ";"),
			strconv.Itoa(config.TimeoutSecond),
			strconv.Itoa(config.Transport.RetryCount),
			strconv.Itoa(config.Transport.ConnectionsPerEndpoint),
			string(table),
			viper.GetString("serializer"),
			viper.GetString("transport"),
			strconv.Itoa(perfNumThreads),
			strconv.Itoa(perfLargeValueSizeKB),
			strconv.Itoa(perfKeySpread),
		}

		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row for test %s: %v", test, err)
		}
	}

	return nil
}
