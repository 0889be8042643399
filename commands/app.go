// Package commands is the islandcompare command line: it validates arguments,
// resolves the configuration and prints results.
//
// Results that other programs may consume (ids, states, paths, error reports)
// go to stdout, everything else goes to stderr through the logger.
package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"

	"github.com/brinkmanlab/islandcompare-cli/config"
	"github.com/brinkmanlab/islandcompare-cli/galaxy"
	"github.com/brinkmanlab/islandcompare-cli/islandcompare"
	"github.com/brinkmanlab/islandcompare-cli/logging"
	"github.com/brinkmanlab/islandcompare-cli/storage"
)

// Version is set at build time
var Version = "dev"

// Env is what the commands need from the outside world
// zero fields are replaced with the real thing
type Env struct {
	Context context.Context
	Stdout  io.Writer
	Stderr  io.Writer

	// NewService is called once the configuration is resolved, after argument checks
	NewService func(conf *config.Config, log logrus.FieldLogger) (islandcompare.Service, error)
	// OpenSink opens the output location of run, download and upload_run
	OpenSink func(target string, conf *config.Config) (storage.Sink, error)

	Sleep islandcompare.SleepFunc
	Now   func() time.Time
}

func (env *Env) withDefaults() *Env {
	out := *env
	if out.Context == nil {
		out.Context = context.Background()
	}
	if out.Stdout == nil {
		out.Stdout = os.Stdout
	}
	if out.Stderr == nil {
		out.Stderr = os.Stderr
	}
	if out.Sleep == nil {
		out.Sleep = islandcompare.Sleep
	}
	if out.Now == nil {
		out.Now = time.Now
	}
	if out.NewService == nil {
		out.NewService = func(conf *config.Config, log logrus.FieldLogger) (islandcompare.Service, error) {
			return newService(conf, log, out.Sleep)
		}
	}
	if out.OpenSink == nil {
		out.OpenSink = func(target string, conf *config.Config) (storage.Sink, error) {
			return storage.Open(target, storage.Options{Region: conf.S3Region})
		}
	}
	return &out
}

func newService(conf *config.Config, log logrus.FieldLogger, sleep islandcompare.SleepFunc) (islandcompare.Service, error) {
	g, err := galaxy.NewClient(galaxy.Config{
		Host:   conf.Host,
		Key:    conf.Key,
		Logger: log,
	})
	if err != nil {
		return nil, &UsageError{Message: err.Error()}
	}
	return islandcompare.NewClient(g, islandcompare.Options{Logger: log, Sleep: sleep}), nil
}

// runner holds the state shared by the command actions
type runner struct {
	env *Env
	log *logrus.Logger
}

// NewApp builds the cli application
func NewApp(env *Env) *cli.App {
	r := &runner{env: env.withDefaults()}
	r.log = logging.New(r.env.Stderr, false)

	app := cli.NewApp()
	app.Name = "islandcompare"
	app.Usage = "Genomic island prediction and comparison on the IslandCompare galaxy instance"
	app.Version = Version
	app.Writer = r.env.Stdout
	app.ErrWriter = r.env.Stderr
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:   "host",
			Usage:  "galaxy instance url (default " + config.DefaultHost + ")",
			EnvVar: config.EnvHost,
		},
		cli.StringFlag{
			Name:   "key",
			Usage:  "galaxy API key",
			EnvVar: config.EnvKey,
		},
		cli.StringFlag{
			Name:  "config",
			Usage: "yaml config file (default ~/.islandcompare.yml)",
		},
		cli.DurationFlag{
			Name:  "poll-interval",
			Usage: "pause between checks of a running analysis (default " + config.DefaultPollInterval.String() + ")",
		},
		cli.StringFlag{
			Name:  "s3-region",
			Usage: "aws region of s3:// output locations",
		},
		cli.BoolFlag{
			Name:  "debug",
			Usage: "log every galaxy request",
		},
	}
	app.Before = func(c *cli.Context) error {
		if c.Bool("debug") {
			r.log.SetLevel(logrus.DebugLevel)
		}
		return nil
	}
	app.OnUsageError = func(c *cli.Context, err error, isSubcommand bool) error {
		return &UsageError{Message: err.Error()}
	}
	app.Action = func(c *cli.Context) error {
		if c.NArg() > 0 {
			return &UsageError{Message: fmt.Sprintf("unknown command %q", c.Args().First())}
		}
		return cli.ShowAppHelp(c)
	}
	app.Commands = append(r.datasetCommands(), r.analysisCommands()...)
	for i := range app.Commands {
		app.Commands[i].OnUsageError = onUsageError
	}
	return app
}

func onUsageError(c *cli.Context, err error, isSubcommand bool) error {
	return &UsageError{
		Command: c.Command.Name,
		Usage:   c.Command.ArgsUsage,
		Message: err.Error(),
	}
}

// Run runs the application with the given arguments and returns the exit code
func Run(env *Env, args []string) int {
	app := NewApp(env)
	err := app.Run(args)
	if err != nil {
		log := logging.New(app.ErrWriter, false)
		log.Error(err)
		usage := &UsageError{}
		if errors.As(err, &usage) && usage.Command != "" {
			fmt.Fprintf(app.ErrWriter, "usage: %v %v %v\n", app.Name, usage.Command, usage.Usage)
		}
	}
	return ExitCode(err)
}

// config resolves the configuration from the global flags
func (r *runner) config(c *cli.Context) (*config.Config, error) {
	conf, err := config.Resolve(config.Overrides{
		ConfigFile:   c.GlobalString("config"),
		Host:         c.GlobalString("host"),
		Key:          c.GlobalString("key"),
		PollInterval: c.GlobalDuration("poll-interval"),
		S3Region:     c.GlobalString("s3-region"),
	})
	if err != nil {
		return nil, &UsageError{Message: err.Error()}
	}
	return conf, nil
}

// service resolves the configuration and connects the service
func (r *runner) service(c *cli.Context) (islandcompare.Service, *config.Config, error) {
	conf, err := r.config(c)
	if err != nil {
		return nil, nil, err
	}
	svc, err := r.env.NewService(conf, r.log)
	if err != nil {
		return nil, nil, err
	}
	return svc, conf, nil
}

// openSink opens an output location, rejecting it as a usage error when invalid
func (r *runner) openSink(c *cli.Context, target string, conf *config.Config) (storage.Sink, error) {
	sink, err := r.env.OpenSink(target, conf)
	if errors.Is(err, storage.ErrNotDir) || errors.Is(err, storage.ErrInvalidTarget) {
		return nil, usageError(c, "%v", err)
	}
	return sink, err
}

// waiter polls with the configured interval
func (r *runner) waiter(svc islandcompare.Service, conf *config.Config) *islandcompare.Waiter {
	return &islandcompare.Waiter{
		Service:  svc,
		Interval: conf.PollInterval,
		Sleep:    r.env.Sleep,
		Log:      r.log,
	}
}

func (r *runner) println(a ...interface{}) {
	fmt.Fprintln(r.env.Stdout, a...)
}

// isFile reports whether path is an existing regular file
func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
