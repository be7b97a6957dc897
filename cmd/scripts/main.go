package main

import (
	"os"
	"time"

	ae3gis "github.com/TollanBerhanu/ae3gis-gns3-api"
	"github.com/TollanBerhanu/ae3gis-gns3-api/internal/cli"
	"github.com/andrew-d/go-termutil"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	configPath   = "config.generated.json"
	hostOverride = ""
	baseDir      = "scripts"
	logLevel     = "warn"
	jsonout      = false
	concurrency  = ae3gis.DefaultConcurrency

	source     = ""
	dest       = ""
	command    = ""
	remotePath = ""
	shell      = "sh"
	window     = uint(120)
	runAfter   = false
	executable = false
	overwrite  = false
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

// targets picks the nodes to touch: named args, then piped stdin, then every
// non-switch node in the fleet
func targets(fleet *ae3gis.FleetConfig, names []string) ae3gis.Nodes {
	if len(names) == 0 && !termutil.Isatty(os.Stdin.Fd()) {
		names = cli.Read(os.Stdin)
	}

	if len(names) == 0 {
		var nodes ae3gis.Nodes
		for _, n := range fleet.Nodes {
			if n.Role() != ae3gis.RoleSwitch {
				nodes = append(nodes, n)
			}
		}
		return nodes
	}

	nodes := make(ae3gis.Nodes, 0, len(names))
	for _, name := range names {
		cli.AssertName(name)
		n := fleet.FindNode(name)
		if n == nil {
			log.WithField("name", name).Fatal("unknown node")
		}
		if n.Role() == ae3gis.RoleSwitch {
			log.WithField("name", name).Fatal("switches have no console to script")
		}
		nodes = append(nodes, n)
	}
	return nodes
}

func loadFleet() *ae3gis.FleetConfig {
	store, err := ae3gis.LoadStore(configPath)
	if err != nil {
		log.WithFields(log.Fields{
			"error":  err,
			"config": configPath,
		}).Fatal("could not load fleet config")
	}
	return store.Fleet()
}

func buildJob(n *ae3gis.Node, content []byte) *ae3gis.ScriptJob {
	host, port, err := n.ConsoleTarget(hostOverride)
	if err != nil {
		log.WithFields(log.Fields{
			"error": err,
			"node":  n.Name,
		}).Fatal("node has no dialable console")
	}
	return &ae3gis.ScriptJob{
		Node:           n.Name,
		Host:           host,
		Port:           port,
		Content:        content,
		RemotePath:     dest,
		Command:        command,
		Shell:          shell,
		RunAfterUpload: runAfter,
		Executable:     executable,
		Overwrite:      overwrite,
		RunWindow:      time.Duration(window) * time.Second,
	}
}

func dispatch(jobs []ae3gis.Job) {
	dispatcher := &ae3gis.Dispatcher{Concurrency: concurrency}
	failed := false
	for _, result := range dispatcher.Run(jobs) {
		j, err := cli.NewJMap(result)
		if err != nil {
			log.WithFields(log.Fields{
				"error": err,
				"node":  result.Node,
			}).Error("could not render result")
			continue
		}
		j.Print(jsonout)
		if result.Status == ae3gis.StatusFailed || result.Status == ae3gis.StatusTimeout {
			failed = true
		}
	}
	if failed {
		os.Exit(1)
	}
}

func push(cmd *cobra.Command, args []string) {
	if source == "" {
		log.Fatal("push needs a --source script")
	}
	if dest == "" {
		log.Fatal("push needs a --dest remote path")
	}

	path := source
	if path != "-" {
		validated, err := cli.ValidateUnder(baseDir, source)
		if err != nil {
			log.WithFields(log.Fields{
				"error":  err,
				"source": source,
				"base":   baseDir,
			}).Fatal("refusing script outside the base directory")
		}
		path = validated
	}
	content, err := cli.ReadSource(path)
	if err != nil {
		log.WithFields(log.Fields{
			"error":  err,
			"source": source,
		}).Fatal("could not read script source")
	}
	if len(content) == 0 {
		log.WithField("source", source).Fatal("script source is empty")
	}

	command = ""
	var jobs []ae3gis.Job
	for _, n := range targets(loadFleet(), args) {
		jobs = append(jobs, buildJob(n, content))
	}
	dispatch(jobs)
}

func run(cmd *cobra.Command, args []string) {
	if command == "" && remotePath == "" {
		log.Fatal("run needs a --command or a --remote script path")
	}

	dest = remotePath
	var jobs []ae3gis.Job
	for _, n := range targets(loadFleet(), args) {
		jobs = append(jobs, buildJob(n, nil))
	}
	dispatch(jobs)
}

func main() {
	root := &cobra.Command{
		Use:              "scripts",
		Short:            "scripts pushes and runs traffic scripts on lab nodes over their consoles",
		PersistentPreRun: setupLogging,
		Run:              help,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", configPath, "fleet config file")
	root.PersistentFlags().StringVarP(&hostOverride, "console-host", "H", hostOverride, "override every stored console host")
	root.PersistentFlags().StringVarP(&logLevel, "log-level", "l", logLevel, "log level")
	root.PersistentFlags().BoolVarP(&jsonout, "jsonout", "j", jsonout, "output in json")
	root.PersistentFlags().IntVar(&concurrency, "concurrency", concurrency, "maximum concurrent console sessions")
	root.PersistentFlags().StringVar(&shell, "shell", shell, "remote shell")
	root.PersistentFlags().UintVarP(&window, "window", "w", window, "seconds to wait on the remote run")

	cmdPush := &cobra.Command{
		Use:   "push [<node>...]",
		Short: "Push a script to nodes",
		Long:  `Push a local script (or stdin with --source -) to nodes over their consoles. With no nodes given, targets every non-switch node.`,
		Run:   push,
	}
	cmdPush.Flags().StringVarP(&source, "source", "s", source, "local script path, or - for stdin")
	cmdPush.Flags().StringVarP(&dest, "dest", "d", dest, "remote destination path")
	cmdPush.Flags().StringVarP(&baseDir, "base-dir", "b", baseDir, "directory local scripts must live under")
	cmdPush.Flags().BoolVarP(&runAfter, "run", "r", runAfter, "run the script after upload")
	cmdPush.Flags().BoolVarP(&executable, "executable", "x", executable, "chmod +x after upload")
	cmdPush.Flags().BoolVarP(&overwrite, "overwrite", "f", overwrite, "replace an existing remote file")

	cmdRun := &cobra.Command{
		Use:   "run [<node>...]",
		Short: "Run a command or uploaded script on nodes",
		Run:   run,
	}
	cmdRun.Flags().StringVarP(&command, "command", "e", command, "command to run remotely")
	cmdRun.Flags().StringVarP(&remotePath, "remote", "R", remotePath, "remote script path to run")

	root.AddCommand(cmdPush, cmdRun)
	_ = root.Execute()
}
