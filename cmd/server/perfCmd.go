package server

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/dLDAP/cmd/util"
	"github.com/ValentinKolb/dLDAP/ldap/conn"
	gometrics "github.com/rcrowley/go-metrics"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	perfCmd = &cobra.Command{
		Use:     "perf",
		Short:   "Measure connection establishment latency",
		Long:    util.WrapString("Repeatedly acquires and releases connections through the server set and reports latency statistics per run."),
		RunE:    runPerf,
		PreRunE: processPerfConfig,
	}
	perfIterations = 100
	perfNumThreads = 10
	perfSkipCheck  = false
)

func init() {
	// add flags
	key := "iterations"
	perfCmd.Flags().Int(key, 100, util.WrapString("How many connections to establish in total"))
	key = "threads"
	perfCmd.Flags().Int(key, 10, util.WrapString("Number of threads to use for the benchmark"))
	key = "skip-health-check"
	perfCmd.Flags().Bool(key, false, util.WrapString("Hand out connections without running the Who Am I health check"))
	key = "csv"
	perfCmd.Flags().String(key, "", util.WrapString("Optional path to save benchmark results as CSV"))
}

func processPerfConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// Read the configuration from the command line flags and environment variables
	perfIterations = viper.GetInt("iterations")
	perfNumThreads = viper.GetInt("threads")
	perfSkipCheck = viper.GetBool("skip-health-check")

	return nil
}

func runPerf(_ *cobra.Command, _ []string) error {

	fmt.Println("Performance testing tool for directory servers")

	// Print configuration
	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Println(clientConfig.String())
	fmt.Printf("Iterations: %d\n", perfIterations)
	fmt.Printf("Threads: %d\n", perfNumThreads)
	fmt.Println()

	var healthCheck conn.HealthCheck
	if !perfSkipCheck {
		healthCheck = conn.WhoAmIHealthCheck{}
	}

	timer := gometrics.NewTimer()
	var failures atomic.Int64

	fmt.Println("starting test...")

	var wg sync.WaitGroup
	var next atomic.Int64
	for i := 0; i < perfNumThreads; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for next.Add(1) <= int64(perfIterations) {
				timer.Time(func() {
					c, err := clientSet.GetConnection(healthCheck)
					if err != nil {
						failures.Add(1)
						return
					}
					c.Close()
				})
			}
		}()
	}
	wg.Wait()

	printPerfResult(timer, failures.Load())

	// Per-server distribution after the run
	fmt.Println()
	fmt.Println(clientSet.String())

	// Write results to csv if specified
	if csvPath := viper.GetString("csv"); csvPath != "" {
		fmt.Printf("\nExporting results to CSV: %s\n", csvPath)
		if err := writePerfResultsToCSV(csvPath, timer, failures.Load()); err != nil {
			return fmt.Errorf("failed to export results to CSV: %v", err)
		}
		fmt.Println("Export complete")
	}

	return nil
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// printPerfResult prints the timer statistics in a formatted way
func printPerfResult(timer gometrics.Timer, failures int64) {
	ps := timer.Percentiles([]float64{0.5, 0.95, 0.99})

	fmt.Println()
	fmt.Printf("%-20s%d (%d failed)\n", "connections", timer.Count(), failures)
	fmt.Printf("%-20s%.0f conn/sec\n", "throughput", timer.RateMean())
	fmt.Printf("%-20s%s\n", "mean", time.Duration(timer.Mean()))
	fmt.Printf("%-20s%s\n", "p50", time.Duration(ps[0]))
	fmt.Printf("%-20s%s\n", "p95", time.Duration(ps[1]))
	fmt.Printf("%-20s%s\n", "p99", time.Duration(ps[2]))
	fmt.Printf("%-20s%s\n", "min", time.Duration(timer.Min()))
	fmt.Printf("%-20s%s\n", "max", time.Duration(timer.Max()))
}

// writePerfResultsToCSV writes benchmark results to a CSV file
func writePerfResultsToCSV(csvPath string, timer gometrics.Timer, failures int64) error {
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %v", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	// Write header
	header := []string{
		"Connections", "Failures", "ConnPerSec",
		"MeanNs", "P50Ns", "P95Ns", "P99Ns", "MinNs", "MaxNs",
		"Endpoints", "TimeoutSec", "ConnectTimeoutSec", "Threads", "Iterations",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %v", err)
	}

	ps := timer.Percentiles([]float64{0.5, 0.95, 0.99})
	row := []string{
		strconv.FormatInt(timer.Count(), 10),
		strconv.FormatInt(failures, 10),
		fmt.Sprintf("%.0f", timer.RateMean()),
		fmt.Sprintf("%.0f", timer.Mean()),
		fmt.Sprintf("%.0f", ps[0]),
		fmt.Sprintf("%.0f", ps[1]),
		fmt.Sprintf("%.0f", ps[2]),
		strconv.FormatInt(timer.Min(), 10),
		strconv.FormatInt(timer.Max(), 10),
		strings.Join(clientConfig.Endpoints, ";"),
		strconv.Itoa(clientConfig.TimeoutSecond),
		strconv.Itoa(clientConfig.ConnectTimeoutSecond),
		strconv.Itoa(perfNumThreads),
		strconv.Itoa(perfIterations),
	}
	if err := writer.Write(row); err != nil {
		return fmt.Errorf("failed to write CSV row: %v", err)
	}

	return nil
}
