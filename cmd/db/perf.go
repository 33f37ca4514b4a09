package db

import (
	"context"
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/VictoriaMetrics/metrics"
	gometrics "github.com/rcrowley/go-metrics"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ValentinKolb/orbitapi/cmd/util"
	"github.com/ValentinKolb/orbitapi/lib/store"
	"github.com/ValentinKolb/orbitapi/rpc/client"
	"github.com/ValentinKolb/orbitapi/rpc/common"
)

var (
	perfTestCmd = &cobra.Command{
		Use:     "perf",
		Short:   "Load test a keyvalue database of the gateway",
		Args:    cobra.NoArgs,
		RunE:    runPerf,
		PreRunE: processPerfConfig,
	}
	perfDBName           = "__perf"
	perfKeyPrefix        = "__test"
	perfLargeValueSizeKB = 100
	perfNumThreads       = 10
	perfKeySpread        = 100
	perfSkip             = make([]string, 0)
)

// perfTest is one benchmark of the load test
type perfTest struct {
	name string
	// prepare runs before the timer starts, keys are the keys of the test
	prepare func(ctx context.Context, kv *client.KeyValueDB, keys []string)
	// op is the measured operation
	op func(ctx context.Context, kv *client.KeyValueDB, key string, counter int) error
}

// perfResult is the outcome of one perfTest
type perfResult struct {
	bench  testing.BenchmarkResult
	timer  gometrics.Timer
	errors int64
}

func init() {
	key := "db"
	perfTestCmd.Flags().String(key, perfDBName, util.WrapString("Name of the keyvalue database used for the test (created if missing)"))
	key = "skip"
	perfTestCmd.Flags().String(key, "", util.WrapString("Benchmarks to skip (comma separated - e.g. put,get)"))
	key = "threads"
	perfTestCmd.Flags().Int(key, 10, util.WrapString("Number of parallel goroutines per benchmark"))
	key = "large-value-size"
	perfTestCmd.Flags().Int(key, 100, util.WrapString("How large the value for the put-large test should be (in KB)"))
	key = "keys"
	perfTestCmd.Flags().Int(key, 100, util.WrapString("How many different keys to use for the tests"))
	key = "csv"
	perfTestCmd.Flags().String(key, "", util.WrapString("Optional path to save benchmark results as CSV"))
	key = "metrics"
	perfTestCmd.Flags().Bool(key, false, util.WrapString("Print the request metrics of the client in Prometheus format after the test"))
}

func processPerfConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// Read the configuration from the command line flags and environment variables
	perfDBName = viper.GetString("db")
	perfLargeValueSizeKB = viper.GetInt("large-value-size")
	perfKeySpread = viper.GetInt("keys")
	perfNumThreads = viper.GetInt("threads")
	perfSkip = strings.Split(viper.GetString("skip"), ",")

	if perfKeySpread <= 0 || perfNumThreads <= 0 {
		return fmt.Errorf("keys and threads must be positive")
	}
	return nil
}

func runPerf(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	fmt.Println("Performance testing tool for the OrbitDB gateway")

	// Print configuration
	config := orbitClient.Config()
	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Println(config.String())
	fmt.Printf("Database: %s\n", perfDBName)
	fmt.Printf("Threads: %d\n", perfNumThreads)
	fmt.Println()

	kv, err := orbitClient.OpenKeyValue(ctx, perfDBName, store.OpenOptions{Create: true, Type: store.TypeKeyValue})
	if err != nil {
		return err
	}
	if err := kv.AwaitReady(ctx); err != nil {
		return err
	}

	fmt.Println("starting tests...")

	largeValue := strings.Repeat("x", perfLargeValueSizeKB*1024)
	tests := []perfTest{
		{
			name: "put",
			op: func(ctx context.Context, kv *client.KeyValueDB, key string, _ int) error {
				_, err := kv.Put(ctx, key, "test")
				return err
			},
		},
		{
			name: "put-large",
			op: func(ctx context.Context, kv *client.KeyValueDB, key string, _ int) error {
				_, err := kv.Put(ctx, key, largeValue)
				return err
			},
		},
		{
			name:    "get",
			prepare: fillKeys,
			op: func(ctx context.Context, kv *client.KeyValueDB, key string, _ int) error {
				_, err := kv.Get(ctx, key)
				return err
			},
		},
		{
			name:    "remove",
			prepare: fillKeys,
			op: func(ctx context.Context, kv *client.KeyValueDB, key string, _ int) error {
				_, err := kv.Remove(ctx, key)
				return err
			},
		},
		{
			name:    "mixed",
			prepare: fillKeys,
			op: func(ctx context.Context, kv *client.KeyValueDB, key string, counter int) error {
				var err error
				switch counter % 3 {
				case 0:
					_, err = kv.Put(ctx, key, "test")
				case 1:
					_, err = kv.Get(ctx, key)
				case 2:
					_, err = kv.Remove(ctx, key)
				}
				// a get after a remove of the same key is expected to miss
				if common.StatusCodeOf(err) == 404 {
					return nil
				}
				return err
			},
		},
	}

	results := make(map[string]perfResult, len(tests))
	for _, test := range tests {
		result := runPerfTest(ctx, kv, test)
		results[test.name] = result
		printResult(test.name, result)
	}

	// Write results to csv is specified
	if csvPath := viper.GetString("csv"); csvPath != "" {
		fmt.Printf("\nExporting results to CSV: %s\n", csvPath)
		if err := writeResultsToCSV(csvPath, results, config); err != nil {
			return fmt.Errorf("failed to export results to CSV: %v", err)
		}
		fmt.Println("Export complete")
	}

	if viper.GetBool("metrics") {
		fmt.Println()
		metrics.WritePrometheus(os.Stdout, false)
	}

	return nil
}

// runPerfTest runs test as a parallel benchmark and records the latency of every call
func runPerfTest(ctx context.Context, kv *client.KeyValueDB, test perfTest) perfResult {
	result := perfResult{timer: gometrics.NewTimer()}
	if shouldSkip(test.name) {
		return result
	}
	errCount := gometrics.NewCounter()

	result.bench = testing.Benchmark(func(b *testing.B) {
		getKey, keys := getKeys(test.name)
		if test.prepare != nil {
			test.prepare(ctx, kv, keys)
		}

		// cleanup
		b.Cleanup(func() {
			for _, k := range keys {
				if _, err := kv.Remove(ctx, k); err != nil {
					Logger.Warningf("(%s) - error removing key: %v", test.name, err)
				}
			}
		})

		b.SetParallelism(perfNumThreads)

		b.ResetTimer()

		b.RunParallel(func(pb *testing.PB) {
			counter := 0
			for pb.Next() {
				start := time.Now()
				err := test.op(ctx, kv, getKey(counter), counter)
				result.timer.UpdateSince(start)
				if err != nil {
					errCount.Inc(1)
					Logger.Warningf("(%s) - error: %v", test.name, err)
				}
				counter++
			}
		})
	})
	result.errors = errCount.Count()
	return result
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func fillKeys(ctx context.Context, kv *client.KeyValueDB, keys []string) {
	for _, k := range keys {
		if _, err := kv.Put(ctx, k, "test"); err != nil {
			Logger.Warningf("error setting key %s: %v", k, err)
		}
	}
}

func shouldSkip(test string) bool {
	// Check if the test is in the skip list
	for _, skip := range perfSkip {
		if test == strings.TrimSpace(skip) {
			return true
		}
	}
	return false
}

// getKeys creates the test keys of a benchmark and a function to pick one (with wraparound)
func getKeys(prefix string) (func(int) string, []string) {
	keys := make([]string, perfKeySpread)
	for i := 0; i < perfKeySpread; i++ {
		keys[i] = fmt.Sprintf("%s-%s-%d", perfKeyPrefix, prefix, i)
	}

	getKey := func(i int) string {
		return keys[i%perfKeySpread]
	}
	return getKey, keys
}

// opsPerSec returns ns/op and ops/sec of a benchmark, zero if it was skipped
func opsPerSec(result testing.BenchmarkResult) (float64, float64) {
	if result.NsPerOp() == 0 {
		return 0, 0
	}
	nsPerOp := math.Max(float64(result.NsPerOp()), 1) // prevent division by zero
	return nsPerOp, 1.0 / (nsPerOp / 1e9)
}

// printResult prints the result of a benchmark test in a formatted way
func printResult(test string, result perfResult) {
	nsPerOp, ops := opsPerSec(result.bench)
	if nsPerOp == 0 {
		fmt.Printf("%-20sskipped\n", test)
		return
	}

	p := result.timer.Percentiles([]float64{0.5, 0.99})
	fmt.Printf("%-20s%.0fns/op (%s/op)\t%.0f ops/sec\tp50 %s\tp99 %s\terrors %d\n",
		test, nsPerOp, time.Duration(nsPerOp), ops,
		time.Duration(p[0]), time.Duration(p[1]), result.errors)
}

// writeResultsToCSV writes benchmark results to a CSV file
func writeResultsToCSV(csvPath string, results map[string]perfResult, config common.ClientConfig) error {
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %v", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	// Write header
	header := []string{
		"Test", "NsPerOp", "DurationPerOp", "OpsPerSec", "P50Ns", "P99Ns", "Errors", "Skipped",
		"BaseURL", "TimeoutSec", "Serializer",
		"Threads", "LargeValueSizeKB", "Keys Count",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %v", err)
	}

	// Write test results
	for test, result := range results {
		nsPerOp, ops := opsPerSec(result.bench)
		p := result.timer.Percentiles([]float64{0.5, 0.99})

		row := []string{
			test,
			fmt.Sprintf("%.0f", nsPerOp),
			time.Duration(nsPerOp).String(),
			fmt.Sprintf("%.0f", ops),
			fmt.Sprintf("%.0f", p[0]),
			fmt.Sprintf("%.0f", p[1]),
			strconv.FormatInt(result.errors, 10),
			strconv.FormatBool(nsPerOp == 0),
			config.BaseURL,
			strconv.Itoa(config.TimeoutSecond),
			viper.GetString("serializer"),
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
