// Command archappl-get retrieves archived PV data from an EPICS Archiver
// Appliance and renders it as a table, CSV, or JSON.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/archman/goarchappl/archiver"
	"github.com/archman/goarchappl/internal/app"
	"github.com/archman/goarchappl/internal/render"
)

const version = "0.1.0"

const usageExamples = `
Examples:
  # Retrieve PV data for a time frame
  archappl-get --pv LS1_CA01:BPM_D1129:XPOS_RD --pv LS1_CA01:BPM_D1129:YPOS_RD \
      --from 2021-04-15T20:10:00.000Z --to 2021-04-15T21:25:00.000Z

  # Relative time range, CSV output to a file
  archappl-get --pv TST:gaussianNoise --from "1 hour ago" -f csv -o data.csv

  # Load PV names from a file (one per line, # comments skipped)
  archappl-get --pv-file pvlist.txt --from "30 mins ago" --url http://127.0.0.1:17668
`

func main() {
	os.Exit(run())
}

func run() int {
	var pvs app.PVFlag
	flag.Var(&pvs, "pv", "PV to retrieve; repeat for several PVs")
	pvFile := flag.String("pv-file", "", "file of PV names, one per line")
	fromStr := flag.String("from", "", "start of the time range (ISO8601, \"now\", or \"<n> <unit> ago\")")
	toStr := flag.String("to", "", "end of the time range (defaults to now)")
	lastN := flag.Int("last-n", 0, "keep only the most recent n samples per PV")
	flag.IntVar(lastN, "n", 0, "shorthand for --last-n")
	urlFlag := flag.String("url", "", "archiver appliance URL (overrides configuration)")
	output := flag.String("output", "", "write results to a file instead of stdout")
	flag.StringVar(output, "o", "", "shorthand for --output")
	formatFlag := flag.String("format", "", "output format: table, csv, or json")
	flag.StringVar(formatFlag, "f", "", "shorthand for --format")
	timeout := flag.Duration("timeout", 0, "HTTP timeout (overrides the transport default)")
	verbose := flag.Int("verbose", 0, "log verbosity: 1 info, 2 debug")
	flag.IntVar(verbose, "v", 0, "shorthand for --verbose")
	logFile := flag.String("log-file", "", "write log messages to a file instead of stderr")
	showConfig := flag.Bool("show-config", false, "print the resolved site configuration and exit")
	showVersion := flag.Bool("version", false, "print version info and exit")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags]\n\nRetrieve data from an Archiver Appliance.\n\nFlags:\n", os.Args[0])
		flag.PrintDefaults()
		fmt.Fprint(os.Stderr, usageExamples)
	}
	flag.Parse()

	if *showVersion {
		fmt.Printf("archappl-get %s\n", version)
		return 0
	}

	env, err := app.Setup(app.Options{
		URL:     *urlFlag,
		Timeout: *timeout,
		Verbose: *verbose,
		LogFile: *logFile,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "archappl-get: %v\n", err)
		return 1
	}
	defer func() { _ = env.Close() }()

	if *showConfig {
		if err := render.WriteJSON(os.Stdout, env.Cfg); err != nil {
			fmt.Fprintf(os.Stderr, "archappl-get: %v\n", err)
			return 1
		}
		return 0
	}

	pvList, err := app.LoadPVList(pvs, *pvFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "archappl-get: %v\n", err)
		return 1
	}
	if len(pvList) == 0 {
		flag.Usage()
		return 1
	}

	query, err := buildQuery(env, *fromStr, *toStr, *lastN)
	if err != nil {
		fmt.Fprintf(os.Stderr, "archappl-get: %v\n", err)
		return 1
	}

	format := *formatFlag
	if format == "" {
		format = env.Cfg.Format
	}
	outFormat, err := render.ParseFormat(format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "archappl-get: %v\n", err)
		return 1
	}

	client, err := env.DataClient()
	if err != nil {
		fmt.Fprintf(os.Stderr, "archappl-get: %v\n", err)
		return 1
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	env.Log.Info("retrieving data", "pvs", len(pvList), "from", *fromStr, "to", *toStr)

	results, err := client.GetDataSet(ctx, pvList, query)
	if err != nil {
		// Partial failures: report each failed PV but keep the rest.
		for _, line := range splitJoined(err) {
			fmt.Fprintf(os.Stderr, "archappl-get: %s\n", line)
		}
	}
	if len(results) == 0 {
		fmt.Fprintln(os.Stderr, "archappl-get: no data retrieved")
		return 1
	}

	out, err := render.Output(*output)
	if err != nil {
		fmt.Fprintf(os.Stderr, "archappl-get: %v\n", err)
		return 1
	}
	if err := render.WriteSeriesSet(out, outFormat, results); err != nil {
		fmt.Fprintf(os.Stderr, "archappl-get: %v\n", err)
		return 1
	}
	if out != os.Stdout {
		if err := out.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "archappl-get: %v\n", err)
			return 1
		}
	}
	return 0
}

func buildQuery(env *app.Env, fromStr, toStr string, lastN int) (archiver.Query, error) {
	loc, err := env.Location()
	if err != nil {
		return archiver.Query{}, err
	}
	q := archiver.Query{LastN: lastN}
	if fromStr != "" {
		if q.From, err = archiver.ParseTime(fromStr, loc); err != nil {
			return archiver.Query{}, err
		}
	}
	if toStr != "" {
		if q.To, err = archiver.ParseTime(toStr, loc); err != nil {
			return archiver.Query{}, err
		}
	}
	if !q.From.IsZero() && !q.To.IsZero() && q.To.Before(q.From) {
		return archiver.Query{}, fmt.Errorf("time range ends (%s) before it starts (%s)", toStr, fromStr)
	}
	return q, nil
}

// splitJoined flattens an errors.Join result into per-PV messages.
func splitJoined(err error) []string {
	type unwrapper interface{ Unwrap() []error }
	var multi unwrapper
	if errors.As(err, &multi) {
		lines := make([]string, 0, len(multi.Unwrap()))
		for _, e := range multi.Unwrap() {
			lines = append(lines, e.Error())
		}
		return lines
	}
	return []string{err.Error()}
}
