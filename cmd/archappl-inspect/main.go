// Command archappl-inspect queries an EPICS Archiver Appliance's management
// API: appliance info, PV listing by pattern, and per-PV archiving status,
// type info, details, and data stores.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
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
  # Check whether PVs are being archived
  archappl-inspect --pv TST:constant --pv TST:NONEXIST

  # Archiving parameters / per-source details / data stores
  archappl-inspect --pv TST:constant --key type
  archappl-inspect --pv TST:constant --key details
  archappl-inspect --pv TST:constant --key stores

  # List archived PVs matching a pattern
  archappl-inspect --pattern "TST:*" --limit 50

  # Appliance identity and endpoints
  archappl-inspect --info
`

func main() {
	os.Exit(run())
}

func run() int {
	var pvs app.PVFlag
	flag.Var(&pvs, "pv", "PV to inspect; repeat for several PVs")
	pvFile := flag.String("pv-file", "", "file of PV names, one per line")
	key := flag.String("key", "status", "information to inspect: status, type, details, or stores")
	pattern := flag.String("pattern", "", "list archived PVs matching a glob pattern instead of inspecting")
	limit := flag.Int("limit", 0, "cap the PV listing (0 lists all)")
	info := flag.Bool("info", false, "print appliance info and exit")
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
		fmt.Fprintf(os.Stderr, "Usage: %s [flags]\n\nInspect an Archiver Appliance with or without PVs.\n\nFlags:\n", os.Args[0])
		flag.PrintDefaults()
		fmt.Fprint(os.Stderr, usageExamples)
	}
	flag.Parse()

	if *showVersion {
		fmt.Printf("archappl-inspect %s\n", version)
		return 0
	}

	env, err := app.Setup(app.Options{
		URL:     *urlFlag,
		Timeout: *timeout,
		Verbose: *verbose,
		LogFile: *logFile,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "archappl-inspect: %v\n", err)
		return 1
	}
	defer func() { _ = env.Close() }()

	if *showConfig {
		if err := render.WriteJSON(os.Stdout, env.Cfg); err != nil {
			fmt.Fprintf(os.Stderr, "archappl-inspect: %v\n", err)
			return 1
		}
		return 0
	}

	format := *formatFlag
	if format == "" {
		format = "json"
	}
	outFormat, err := render.ParseFormat(format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "archappl-inspect: %v\n", err)
		return 1
	}

	client, err := env.MgmtClient()
	if err != nil {
		fmt.Fprintf(os.Stderr, "archappl-inspect: %v\n", err)
		return 1
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	out, err := render.Output(*output)
	if err != nil {
		fmt.Fprintf(os.Stderr, "archappl-inspect: %v\n", err)
		return 1
	}
	code := inspect(ctx, env, client, out, outFormat, pvs, *pvFile, *key, *pattern, *limit, *info)
	if out != os.Stdout {
		if err := out.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "archappl-inspect: %v\n", err)
			return 1
		}
	}
	return code
}

func inspect(ctx context.Context, env *app.Env, client *archiver.MgmtClient, out io.Writer,
	format render.Format, pvs []string, pvFile, key, pattern string, limit int, info bool) int {

	fail := func(err error) int {
		fmt.Fprintf(os.Stderr, "archappl-inspect: %v\n", err)
		return 1
	}

	if info {
		appliance, err := client.GetApplianceInfo(ctx)
		if err != nil {
			return fail(err)
		}
		if err := render.WriteJSON(out, appliance); err != nil {
			return fail(err)
		}
		return 0
	}

	if pattern != "" {
		matched, err := client.GetAllPVs(ctx, pattern, limit)
		if err != nil {
			return fail(err)
		}
		env.Log.Info("listed archived PVs", "pattern", pattern, "count", len(matched))
		if err := render.WritePVList(out, format, matched); err != nil {
			return fail(err)
		}
		return 0
	}

	pvList, err := app.LoadPVList(pvs, pvFile)
	if err != nil {
		return fail(err)
	}
	if len(pvList) == 0 {
		flag.Usage()
		return 1
	}

	switch key {
	case "status":
		statuses, err := client.GetPVStatus(ctx, pvList...)
		if err != nil {
			return fail(err)
		}
		if err := render.WritePVStatuses(out, format, statuses); err != nil {
			return fail(err)
		}
	case "type":
		infos := make(map[string]*archiver.PVTypeInfo, len(pvList))
		for _, pv := range pvList {
			typeInfo, err := client.GetPVTypeInfo(ctx, pv)
			if err != nil {
				return fail(err)
			}
			infos[pv] = typeInfo
		}
		if err := render.WriteJSON(out, infos); err != nil {
			return fail(err)
		}
	case "details":
		details := make(map[string][]archiver.PVDetail, len(pvList))
		for _, pv := range pvList {
			rows, err := client.GetPVDetails(ctx, pv)
			if err != nil {
				return fail(err)
			}
			details[pv] = rows
		}
		if err := render.WriteJSON(out, details); err != nil {
			return fail(err)
		}
	case "stores":
		stores := make(map[string][]string, len(pvList))
		for _, pv := range pvList {
			names, err := client.GetStoresForPV(ctx, pv)
			if err != nil {
				return fail(err)
			}
			stores[pv] = names
		}
		if err := render.WriteJSON(out, stores); err != nil {
			return fail(err)
		}
	default:
		return fail(fmt.Errorf("invalid --key %q (want status, type, details, or stores)", key))
	}
	return 0
}
