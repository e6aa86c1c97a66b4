// Copyright © 2016 Phil Estes <estesp@gmail.com>
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/estesp/statbench/benches"
	"github.com/estesp/statbench/driver"
	"github.com/estesp/statbench/report"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	yamlFile     string
	reportDir    string
	pollInterval time.Duration
	warmup       time.Duration
	cooldown     time.Duration
)

// simple structure to handle collecting output data which will be displayed
// after all benchmarks are complete
type benchResult struct {
	group  string
	test   string
	report *report.Report
	err    error
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the benchmark tests while sampling the selected targets",
	Long: `The YAML file provided via the --benchmark flag determines which targets
(processes, containers or cgroups) to sample and which test commands to run.
Each test runs once per target; one CSV report per target and test is written
below the report directory and a summary is displayed afterwards.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if yamlFile == "" {
			return fmt.Errorf("no YAML file provided with --benchmark/-b; nothing to do")
		}
		benchmark, err := benches.ReadBenchmark(yamlFile)
		if err != nil {
			return err
		}
		applyOverrides(cmd, &benchmark)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		assembler := report.NewAssembler(benchmark.ReportDir)

		var results []benchResult
		for _, target := range benchmark.Targets {
			targetResults, err := runTarget(ctx, &benchmark, target, assembler)
			results = append(results, targetResults...)
			if err != nil {
				log.WithError(err).Errorf("Skipping target %s '%s'", target.Kind, target.Selector)
				results = append(results, benchResult{group: target.Selector, err: err})
			}
			if ctx.Err() != nil {
				break
			}
		}

		outputRunDetails(results)

		failed := 0
		for _, r := range results {
			if r.err != nil {
				failed++
			}
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d benchmark runs failed", failed, len(results))
		}
		log.Info("Benchmark runs complete")
		return nil
	},
}

func applyOverrides(cmd *cobra.Command, benchmark *benches.Benchmark) {
	flags := cmd.Flags()
	if flags.Changed("report-dir") {
		benchmark.ReportDir = reportDir
	}
	if flags.Changed("poll-interval") {
		benchmark.PollInterval = benches.Duration(pollInterval)
	}
	if flags.Changed("warmup") {
		d := benches.Duration(warmup)
		benchmark.Warmup = &d
	}
	if flags.Changed("cooldown") {
		d := benches.Duration(cooldown)
		benchmark.Cooldown = &d
	}
}

func runTarget(ctx context.Context, benchmark *benches.Benchmark, target benches.TargetConfig, assembler *report.Assembler) ([]benchResult, error) {
	drv, err := driver.New(ctx, target.DriverConfig())
	if err != nil {
		return nil, errors.Wrapf(err, "error during driver initialization for %s", target.Kind)
	}
	defer drv.Close()

	info, err := drv.Info(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "error during driver info query")
	}
	log.Infof("Driver initialized: %s", info)

	instrumenter := benches.NewInstrumenter(drv, drv.Source(), assembler)
	opts := benchmark.Options(target)

	var results []benchResult
	for _, test := range benchmark.Tests {
		rep, err := instrumenter.Instrument(ctx, target.Selector, test.Name, opts, benches.ShellOperation(test.Command, test.Dir))
		if rep == nil {
			// nothing was sampled, the target is unusable for the remaining tests too
			return results, err
		}
		if err != nil {
			log.WithError(err).Warnf("Test %q against %s finished with errors", test.Name, rep.Target)
		}
		results = append(results, benchResult{group: rep.Target.Name, test: test.Name, report: rep, err: err})
		if ctx.Err() != nil {
			break
		}
	}
	return results, nil
}

func outputRunDetails(results []benchResult) {
	fmt.Printf("%-20s %-24s %10s %8s %8s %8s %8s %8s  %s\n",
		"Target", "Test", "Exec (s)", "Samples", "CPU avg", "CPU max", "MEM avg", "MEM max", "Status")
	for _, r := range results {
		if r.report == nil {
			fmt.Printf("%-20s %-24s %10s %8s %8s %8s %8s %8s  %v\n", r.group, "-", "-", "-", "-", "-", "-", "-", r.err)
			continue
		}
		sum := r.report.Summary
		status := string(r.report.Status)
		if r.err != nil {
			status += " (" + r.err.Error() + ")"
		}
		fmt.Printf("%-20s %-24s %10.3f %8d %8.2f %8.2f %8.2f %8.2f  %s\n",
			r.group, r.test, r.report.ExecTime.Seconds(), sum.Samples,
			sum.CPUMean, sum.CPUMax, sum.MemMean, sum.MemMax, status)
	}
	fmt.Printf("\n")
}

func init() {
	RootCmd.AddCommand(runCmd)
	runCmd.PersistentFlags().StringVarP(&yamlFile, "benchmark", "b", "", "YAML file with benchmark definition")
	runCmd.PersistentFlags().StringVar(&reportDir, "report-dir", "", "Directory reports are written to (overrides YAML)")
	runCmd.PersistentFlags().DurationVar(&pollInterval, "poll-interval", 0, "Interval between samples (overrides YAML; default depends on target kind)")
	runCmd.PersistentFlags().DurationVar(&warmup, "warmup", benches.DefaultWarmup, "Sampling time before each test (overrides YAML)")
	runCmd.PersistentFlags().DurationVar(&cooldown, "cooldown", benches.DefaultCooldown, "Sampling time after each test (overrides YAML)")
}
