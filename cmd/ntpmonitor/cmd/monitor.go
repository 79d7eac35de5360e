/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package cmd

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	syscall "golang.org/x/sys/unix"

	"github.com/ntpmonitor/ntpmonitor/clock"
	"github.com/ntpmonitor/ntpmonitor/monitor/config"
	"github.com/ntpmonitor/ntpmonitor/monitor/output"
	"github.com/ntpmonitor/ntpmonitor/monitor/server"
	"github.com/ntpmonitor/ntpmonitor/monitor/stats"
	"github.com/ntpmonitor/ntpmonitor/monitor/transport"
	"github.com/ntpmonitor/ntpmonitor/ntptime"
)

// ntpPort is the conventional UDP port for the "ntp" service.
const ntpPort = 123

var monitorFlags struct {
	csvOut       string
	jsonAddr     string
	configPath   string
	historyLimit int
	status       bool
	statusEvery  int
}

func init() {
	RootCmd.AddCommand(monitorCmd)
	monitorCmd.Flags().StringVar(&monitorFlags.csvOut, "csv-out", "", "write CSV rows to this file instead of stdout")
	monitorCmd.Flags().StringVar(&monitorFlags.jsonAddr, "json-addr", "", "also serve JSON history, /metrics and /healthz on this address (e.g. :8080)")
	monitorCmd.Flags().StringVar(&monitorFlags.configPath, "config", "", "optional server/fudge config file (§6) adding servers beyond the CLI arguments")
	monitorCmd.Flags().IntVar(&monitorFlags.historyLimit, "history-limit", output.DefaultHistoryLimit, "bounded history length per server, in ticks")
	monitorCmd.Flags().BoolVar(&monitorFlags.status, "status", false, "also print a console status table to stderr, alongside the CSV stream")
	monitorCmd.Flags().IntVar(&monitorFlags.statusEvery, "status-every", 10, "ticks between console status tables, when --status is set")
}

var monitorCmd = &cobra.Command{
	Use:   "monitor REFERENCE SERVER [SERVER...]",
	Short: "Discipline and stream offset/frequency measurements for a set of NTP servers",
	RunE: func(_ *cobra.Command, args []string) error {
		ConfigureVerbosity()
		return runMonitor(args)
	},
}

func runMonitor(args []string) error {
	hosts := append([]string{}, args...)
	if monitorFlags.configPath != "" {
		extra, err := loadConfigHosts(monitorFlags.configPath)
		if err != nil {
			return fmt.Errorf("loading %q: %w", monitorFlags.configPath, err)
		}
		hosts = append(hosts, extra...)
	}
	if len(hosts) < 2 {
		return fmt.Errorf("usage: monitor REFERENCE SERVER [SERVER...] (need at least a reference and one server)")
	}

	localClock := clock.Calibrate()
	servers, err := resolveAll(hosts, localClock)
	if err != nil {
		return err
	}
	if len(servers) == 0 {
		return fmt.Errorf("no server resolved")
	}

	tr, err := transport.New(servers, localClock)
	if err != nil {
		return fmt.Errorf("starting transport: %w", err)
	}

	exporter := stats.NewExporter()
	history := output.NewHistoryServer(monitorFlags.historyLimit)

	csvOut := os.Stdout
	if monitorFlags.csvOut != "" {
		f, err := os.Create(monitorFlags.csvOut)
		if err != nil {
			return fmt.Errorf("creating %q: %w", monitorFlags.csvOut, err)
		}
		defer f.Close()
		csvOut = f
	}
	serverHosts := make([]string, 0, len(servers)-1)
	for _, s := range servers[1:] {
		serverHosts = append(serverHosts, s.Host)
	}
	csv := output.NewCSVWriter(csvOut, servers[0].Host, serverHosts)
	if err := csv.WriteHeader(); err != nil {
		return fmt.Errorf("writing CSV header: %w", err)
	}

	tr.OnDecodeError = func(error) { exporter.DecodeError() }
	tr.OnUnmatched = func(net.Addr) { exporter.UnmatchedReply() }

	tick := 0
	tr.OnTick = func(refTime time.Time, servers []*server.Server, counterMHz float64) {
		tick++
		exporter.SetCounterFrequencyMHz(counterMHz)

		snap := output.Snapshot{RefTime: refTime, CounterMHz: counterMHz}
		for _, s := range servers[1:] {
			d, ok := s.LatestOffset()
			off := output.ServerOffset{Host: s.Host, OK: ok}
			if ok {
				seconds := ntptime.ToSeconds(d)
				off.OffsetMillis = ntptime.ToMillis(d)
				exporter.SampleAccepted(s.Host)
				exporter.Observe(s.Host, seconds, (s.Clock.Frequency()/localClock.Frequency()-1)*1e6)
				history.Record(s.Host, refTime, seconds)
			}
			snap.Offsets = append(snap.Offsets, off)
		}
		if err := csv.WriteRow(snap); err != nil {
			log.Errorf("writing CSV row: %v", err)
		}
		if monitorFlags.status && tick%monitorFlags.statusEvery == 0 {
			printStatus(servers)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if monitorFlags.jsonAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/", history.Handler())
		mux.Handle("/healthz", history.HealthzHandler())
		mux.Handle("/metrics", exporter.Handler())
		go func() {
			if err := http.ListenAndServe(monitorFlags.jsonAddr, mux); err != nil {
				log.Errorf("JSON/metrics server on %s stopped: %v", monitorFlags.jsonAddr, err)
			}
		}()
	}

	go reportSysStats(ctx, exporter)

	if err := stats.SdNotifyReady(); err != nil {
		log.Debugf("sd_notify failed (probably not running under systemd): %v", err)
	}

	sigStop := make(chan os.Signal, 1)
	signal.Notify(sigStop, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	go func() {
		<-sigStop
		log.Info("shutting down")
		cancel()
	}()

	tr.Run(ctx)
	return nil
}

// resolveAll resolves every host to one *server.Server per IPv4 address
// it owns (§6: "each resolved address becomes a separate Server"), in
// the order the hosts were supplied. hosts[0] is the reference; its own
// resolution failure is fatal, a later server's is only logged and
// skipped (§7 class 3).
func resolveAll(hosts []string, localClock clock.Clock) ([]*server.Server, error) {
	var out []*server.Server
	for i, host := range hosts {
		addrs, err := resolveIPv4(host)
		if err != nil || len(addrs) == 0 {
			if i == 0 {
				return nil, fmt.Errorf("resolving reference host %q: %w", host, err)
			}
			log.Warningf("skipping unresolvable server %q: %v", host, err)
			continue
		}
		for _, addr := range addrs {
			out = append(out, server.New(host, addr, localClock))
		}
	}
	return out, nil
}

func resolveIPv4(host string) ([]*net.UDPAddr, error) {
	ips, err := net.LookupIP(host)
	if err != nil {
		return nil, err
	}
	var out []*net.UDPAddr
	for _, ip := range ips {
		if v4 := ip.To4(); v4 != nil {
			out = append(out, &net.UDPAddr{IP: v4, Port: ntpPort})
		}
	}
	return out, nil
}

// loadConfigHosts extracts the plain server hostnames out of a §6 config
// file; refclock pseudo-addresses have no UDP transport and are skipped
// since this monitor only ever speaks NTP over the network.
func loadConfigHosts(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	parsed, err := config.Parse(f)
	if err != nil {
		return nil, err
	}
	var hosts []string
	for _, sc := range parsed.Servers() {
		if sc.Driver != nil {
			log.Warningf("skipping refclock entry %q: no UDP transport", sc.Host)
			continue
		}
		hosts = append(hosts, sc.Host)
	}
	return hosts, nil
}

// sysStatsInterval is how often reportSysStats refreshes the process
// resource-usage gauges; the monitor's own footprint changes far slower
// than the 1Hz pacing loop, so this runs independently of it.
const sysStatsInterval = 15 * time.Second

// reportSysStats periodically feeds the monitor's own resource usage into
// the Prometheus exporter, until ctx is cancelled.
func reportSysStats(ctx context.Context, exporter *stats.Exporter) {
	ticker := time.NewTicker(sysStatsInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s, err := stats.Collect()
			if err != nil {
				log.Debugf("collecting sys stats: %v", err)
				continue
			}
			exporter.ObserveSysStats(s)
		}
	}
}

// offsetWarnMillis/offsetFailMillis are the thresholds printStatus uses to
// color the offset column, the same green/yellow/red idiom as the
// teacher's ntpcheck diag command.
const (
	offsetWarnMillis = 10.0
	offsetFailMillis = 100.0
)

func colorizeOffset(millis float64) string {
	abs := millis
	if abs < 0 {
		abs = -abs
	}
	switch {
	case abs >= offsetFailMillis:
		return color.RedString("%.4f", millis)
	case abs >= offsetWarnMillis:
		return color.YellowString("%.4f", millis)
	default:
		return color.GreenString("%.4f", millis)
	}
}

func printStatus(servers []*server.Server) {
	table := tablewriter.NewWriter(os.Stderr)
	table.SetHeader([]string{"host", "stratum", "refid", "offset (ms)", "samples"})
	for _, s := range servers {
		row := []string{s.Host, fmt.Sprintf("%d", s.Stratum), fmt.Sprintf("%08x", s.ReferenceID), color.YellowString("Unknown"), fmt.Sprintf("%d", s.SampleCount())}
		if d, ok := s.LatestOffset(); ok {
			row[3] = colorizeOffset(ntptime.ToMillis(d))
		}
		table.Append(row)
	}
	table.Render()
}
