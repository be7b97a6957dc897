package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	ae3gis "github.com/TollanBerhanu/ae3gis-gns3-api"
	"github.com/TollanBerhanu/ae3gis-gns3-api/pkg/deferer"
	"github.com/TollanBerhanu/ae3gis-gns3-api/pkg/lock"
	"github.com/armon/go-metrics"
	mapsink "github.com/bakins/go-metrics-map"
	flag "github.com/ogier/pflag"
	log "github.com/sirupsen/logrus"
)

const lockTTL = 10 * time.Minute

func main() {
	var configPath, planPath, reportPath, hostOverride, only, interfaces, logLevel string
	var leaseWindow, warmup, concurrency, port uint

	// Command line flags
	flag.StringVarP(&configPath, "config", "c", "config.generated.json", "fleet config file")
	flag.StringVarP(&planPath, "plan", "p", "ip_plan.json", "static ip plan file")
	flag.StringVarP(&reportPath, "report", "r", "report.generated.json", "run report file. set to empty to skip")
	flag.StringVarP(&hostOverride, "console-host", "H", "", "override every stored console host")
	flag.StringVarP(&only, "only", "n", "", "comma separated node names to provision")
	flag.StringVarP(&interfaces, "interfaces", "I", "", "comma separated interface override")
	flag.UintVarP(&leaseWindow, "lease-window", "w", 15, "seconds to wait on each dhcp strategy")
	flag.UintVarP(&warmup, "warmup", "W", 3, "seconds to let dhcp servers settle before clients ask")
	flag.UintVarP(&concurrency, "concurrency", "j", ae3gis.DefaultConcurrency, "maximum concurrent console sessions")
	flag.UintVarP(&port, "http", "m", 7545, "http port to publish metrics. set to 0 to disable")
	flag.StringVarP(&logLevel, "log-level", "l", "warn", "log level")
	flag.Parse()

	// Set up logger
	level, err := log.ParseLevel(logLevel)
	if err != nil {
		log.WithFields(log.Fields{
			"error": err,
			"level": logLevel,
		}).Fatal("unable to set up logrus")
	}
	log.SetLevel(level)

	d := deferer.NewDeferer()
	defer d.Run()

	// One orchestrator at a time per config file
	l, err := lock.Acquire(configPath, lockTTL, false)
	if err != nil {
		log.WithFields(log.Fields{
			"error":  err,
			"config": configPath,
		}).Fatal("could not lock fleet config")
	}
	d.Defer(func() {
		_ = l.Release()
	})

	store, err := ae3gis.LoadStore(configPath)
	if err != nil {
		d.FatalWithFields(log.Fields{
			"error":  err,
			"config": configPath,
		}, "could not load fleet config")
	}

	plan, err := ae3gis.LoadStaticPlan(planPath)
	if err != nil {
		if !os.IsNotExist(err) {
			d.FatalWithFields(log.Fields{
				"error": err,
				"plan":  planPath,
			}, "could not load static plan")
		}
		log.WithFields(log.Fields{
			"plan": planPath,
		}).Warning("no static plan, dhcp only")
		plan = nil
	}

	provisioner := &ae3gis.Provisioner{
		Store:   store,
		Plan:    plan,
		Metrics: setupMetrics(port),
		Options: ae3gis.Options{
			HostOverride: hostOverride,
			Only:         splitList(only),
			Interfaces:   splitList(interfaces),
			LeaseWindow:  time.Duration(leaseWindow) * time.Second,
			Warmup:       time.Duration(warmup) * time.Second,
			Concurrency:  int(concurrency),
		},
	}

	report, err := provisioner.Run()
	if err != nil {
		d.FatalWithFields(log.Fields{
			"error": err,
		}, "provisioning run failed")
	}

	if reportPath != "" {
		if err := report.Write(reportPath); err != nil {
			d.FatalWithFields(log.Fields{
				"error":  err,
				"report": reportPath,
			}, "could not write run report")
		}
	}

	if report.Failed() {
		log.WithFields(log.Fields{
			"run":    report.ID,
			"counts": report.Counts(),
		}).Warning("some nodes did not provision")
		d.Run()
		os.Exit(1)
	}
}

// setupMetrics creates the metric sink and starts an optional http server
func setupMetrics(port uint) *metrics.Metrics {
	ms := mapsink.New()
	conf := metrics.DefaultConfig("provision")
	conf.EnableHostname = false
	m, _ := metrics.New(conf, ms)

	// Unless told not to, expose metrics via http
	if port != 0 {
		http.Handle("/metrics", http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(ms)
		}))

		go func() {
			log.Fatal(http.ListenAndServe(fmt.Sprintf(":%d", port), nil))
		}()
	}

	return m
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
