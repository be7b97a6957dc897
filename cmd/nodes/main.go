package main

import (
	"os"
	"sort"

	ae3gis "github.com/TollanBerhanu/ae3gis-gns3-api"
	"github.com/TollanBerhanu/ae3gis-gns3-api/internal/cli"
	"github.com/andrew-d/go-termutil"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	configPath = "config.generated.json"
	reportPath = "report.generated.json"
	logLevel   = "warn"
	jsonout    = false
	status     = ""
)

func help(cmd *cobra.Command, _ []string) {
	_ = cmd.Help()
}

func setupLogging(cmd *cobra.Command, _ []string) {
	level, err := log.ParseLevel(logLevel)
	if err != nil {
		log.WithFields(log.Fields{
			"error": err,
			"level": logLevel,
		}).Fatal("unable to set up logrus")
	}
	log.SetLevel(level)
}

func nodeJMap(n *ae3gis.Node) cli.JMap {
	j, err := cli.NewJMap(n)
	if err != nil {
		log.WithFields(log.Fields{
			"error": err,
			"node":  n.Name,
		}).Fatal("could not render node")
	}
	j["role"] = string(n.Role())
	return j
}

func list(cmd *cobra.Command, names []string) {
	store, err := ae3gis.LoadStore(configPath)
	if err != nil {
		log.WithFields(log.Fields{
			"error":  err,
			"config": configPath,
		}).Fatal("could not load fleet config")
	}
	fleet := store.Fleet()

	if len(names) == 0 && !termutil.Isatty(os.Stdin.Fd()) {
		names = cli.Read(os.Stdin)
	}

	nodes := []cli.JMap{}
	if len(names) == 0 {
		for _, n := range fleet.Nodes {
			nodes = append(nodes, nodeJMap(n))
		}
		sort.Sort(cli.JMapSlice(nodes))
	} else {
		for _, name := range names {
			cli.AssertName(name)
			n := fleet.FindNode(name)
			if n == nil {
				log.WithField("name", name).Fatal("unknown node")
			}
			nodes = append(nodes, nodeJMap(n))
		}
	}

	for _, n := range nodes {
		n.Print(jsonout)
	}
}

func report(cmd *cobra.Command, names []string) {
	r, err := ae3gis.LoadRunReport(reportPath)
	if err != nil {
		log.WithFields(log.Fields{
			"error":  err,
			"report": reportPath,
		}).Fatal("could not load run report")
	}

	only := map[string]bool{}
	for _, name := range names {
		cli.AssertName(name)
		only[name] = true
	}

	for i := range r.Nodes {
		res := &r.Nodes[i]
		if status != "" && res.Status != status {
			continue
		}
		if len(only) > 0 && !only[res.Node] {
			continue
		}
		j, err := cli.NewJMap(res)
		if err != nil {
			log.WithFields(log.Fields{
				"error": err,
				"node":  res.Node,
			}).Error("could not render result")
			continue
		}
		// reports key results under "node", JMaps print by "name"
		j["name"] = res.Node
		j.Print(jsonout)
	}
}

func main() {
	root := &cobra.Command{
		Use:              "nodes",
		Short:            "nodes inspects the fleet config and run reports",
		PersistentPreRun: setupLogging,
		Run:              help,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", configPath, "fleet config file")
	root.PersistentFlags().StringVarP(&logLevel, "log-level", "l", logLevel, "log level")
	root.PersistentFlags().BoolVarP(&jsonout, "jsonout", "j", jsonout, "output in json")

	cmdList := &cobra.Command{
		Use:   "list [<node>...]",
		Short: "List fleet nodes with their roles and addresses",
		Run:   list,
	}

	cmdReport := &cobra.Command{
		Use:   "report [<node>...]",
		Short: "Print entries from the last run report",
		Run:   report,
	}
	cmdReport.Flags().StringVarP(&reportPath, "report", "r", reportPath, "run report file")
	cmdReport.Flags().StringVarP(&status, "status", "s", status, "only entries with this status")

	root.AddCommand(cmdList, cmdReport)
	_ = root.Execute()
}
