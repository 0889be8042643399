package commands

import (
	"errors"

	"github.com/urfave/cli"

	"github.com/brinkmanlab/islandcompare-cli/config"
	"github.com/brinkmanlab/islandcompare-cli/islandcompare"
	"github.com/brinkmanlab/islandcompare-cli/storage"
)

// flags shared by run and upload_run
var (
	referenceFlag = cli.StringFlag{
		Name:  "r",
		Usage: "reference genome `ID` to align drafts against, see the reference command",
	}
	outputFlag = cli.StringFlag{
		Name:  "o",
		Usage: "wait for the analysis and download the results into `OUTPUT`, a folder or s3://bucket/prefix",
	}
)

func newickFlags(what string) []cli.Flag {
	return []cli.Flag{
		cli.StringFlag{
			Name:  "a",
			Usage: "newick tree `" + what + "` whose leaves are the accessions of the genomes",
		},
		cli.StringFlag{
			Name:  "l",
			Usage: "newick tree `" + what + "` whose leaves are the labels of the genomes",
		},
	}
}

func (r *runner) analysisCommands() []cli.Command {
	return []cli.Command{
		{
			Name:      "run",
			Usage:     "Start an analysis of uploaded datasets, prints the analysis id",
			ArgsUsage: "LABEL ID ID [ID...]",
			Flags:     append([]cli.Flag{referenceFlag, outputFlag}, newickFlags("DATASET_ID")...),
			Action:    r.run,
		},
		{
			Name:   "runs",
			Usage:  "List analyses and their state",
			Action: r.runs,
		},
		{
			Name:      "download",
			Usage:     "Wait for an analysis and download its results",
			ArgsUsage: "ID OUTPUT",
			Action:    r.download,
		},
		{
			Name:      "cancel",
			Usage:     "Cancel an analysis and delete its results",
			ArgsUsage: "ID",
			Action:    r.cancel,
		},
		{
			Name:      "errors",
			Usage:     "Print the errors of the failed jobs of an analysis",
			ArgsUsage: "ID",
			Action:    r.errors,
		},
		{
			Name:      "upload_run",
			Usage:     "Upload genomes, run, wait, download and delete everything from the server",
			ArgsUsage: "LABEL PATH PATH [PATH...] OUTPUT",
			Flags:     append([]cli.Flag{referenceFlag}, newickFlags("PATH")...),
			Action:    r.uploadRun,
		},
	}
}

// newick returns the tree given with -a or -l
func newick(c *cli.Context) (string, islandcompare.NewickIdentifiers, error) {
	accession, label := c.String("a"), c.String("l")
	switch {
	case accession != "" && label != "":
		return "", "", usageError(c, "-a and -l are mutually exclusive")
	case accession != "":
		return accession, islandcompare.NewickAccessions, nil
	case label != "":
		return label, islandcompare.NewickLabels, nil
	}
	return "", "", nil
}

func (r *runner) run(c *cli.Context) error {
	if c.NArg() < 3 {
		return usageError(c, "expected a LABEL and at least two dataset IDs")
	}
	newickID, mode, err := newick(c)
	if err != nil {
		return err
	}
	conf, err := r.config(c)
	if err != nil {
		return err
	}
	var sink storage.Sink
	if out := c.String("o"); out != "" {
		if sink, err = r.openSink(c, out, conf); err != nil {
			return err
		}
		defer sink.Close()
	}
	svc, err := r.env.NewService(conf, r.log)
	if err != nil {
		return err
	}

	r.log.Info("Running..")
	args := c.Args()
	analysis, err := svc.Invoke(r.env.Context, islandcompare.InvokeRequest{
		Label:       args.First(),
		DatasetIDs:  args.Tail(),
		NewickID:    newickID,
		NewickMode:  mode,
		ReferenceID: c.String("r"),
	})
	if err != nil {
		return err
	}
	r.log.Info("Analysis ID:")
	r.println(analysis.ID)

	if sink == nil {
		return nil
	}
	return r.waitAndDownload(svc, conf, analysis.ID, sink)
}

func (r *runner) runs(c *cli.Context) error {
	if c.NArg() != 0 {
		return usageError(c, "unexpected arguments")
	}
	svc, _, err := r.service(c)
	if err != nil {
		return err
	}
	analyses, err := svc.ListAnalyses(r.env.Context)
	if err != nil {
		return err
	}
	if len(analyses) == 0 {
		r.log.Info("No analyses found")
		return nil
	}
	r.log.Info("ID\tLabel\tState")
	for _, a := range analyses {
		r.println(a.ID + "\t" + a.Label + "\t" + string(a.State))
	}
	return nil
}

func (r *runner) download(c *cli.Context) error {
	if c.NArg() != 2 {
		return usageError(c, "expected an analysis ID and an OUTPUT location")
	}
	conf, err := r.config(c)
	if err != nil {
		return err
	}
	sink, err := r.openSink(c, c.Args().Get(1), conf)
	if err != nil {
		return err
	}
	defer sink.Close()
	svc, err := r.env.NewService(conf, r.log)
	if err != nil {
		return err
	}
	return r.waitAndDownload(svc, conf, c.Args().First(), sink)
}

// waitAndDownload prints the final location of each result,
// or the error reports when the analysis failed
func (r *runner) waitAndDownload(svc islandcompare.Service, conf *config.Config, id string, sink storage.Sink) error {
	paths, err := r.waiter(svc, conf).WaitAndDownload(r.env.Context, id, sink.Dir())
	if err != nil {
		jobErr := &islandcompare.JobError{}
		if errors.As(err, &jobErr) {
			if werr := islandcompare.WriteFailures(r.env.Stdout, jobErr.Failures); werr != nil {
				return werr
			}
		}
		return err
	}
	return r.commit(sink, paths)
}

func (r *runner) commit(sink storage.Sink, paths []string) error {
	committed, err := sink.Commit(r.env.Context, paths)
	for _, p := range committed {
		r.println(p)
	}
	return err
}

func (r *runner) cancel(c *cli.Context) error {
	if c.NArg() != 1 {
		return usageError(c, "expected an analysis ID")
	}
	svc, _, err := r.service(c)
	if err != nil {
		return err
	}
	return svc.Cancel(r.env.Context, c.Args().First())
}

func (r *runner) errors(c *cli.Context) error {
	if c.NArg() != 1 {
		return usageError(c, "expected an analysis ID")
	}
	svc, _, err := r.service(c)
	if err != nil {
		return err
	}
	failures, err := svc.Errors(r.env.Context, c.Args().First())
	if err != nil {
		return err
	}
	if len(failures) == 0 {
		r.log.Info("No errors found")
		return nil
	}
	return islandcompare.WriteFailures(r.env.Stdout, failures)
}

func (r *runner) uploadRun(c *cli.Context) error {
	n := c.NArg()
	if n < 4 {
		return usageError(c, "expected a LABEL, at least two PATHs and an OUTPUT location")
	}
	args := c.Args()
	paths := args[1 : n-1]
	for _, path := range paths {
		if !isFile(path) {
			return usageError(c, "invalid file path specified: %v", path)
		}
	}
	newickPath, mode, err := newick(c)
	if err != nil {
		return err
	}
	if newickPath != "" && !isFile(newickPath) {
		return usageError(c, "invalid newick file path specified: %v", newickPath)
	}
	conf, err := r.config(c)
	if err != nil {
		return err
	}
	sink, err := r.openSink(c, args[n-1], conf)
	if err != nil {
		return err
	}
	defer sink.Close()
	svc, err := r.env.NewService(conf, r.log)
	if err != nil {
		return err
	}

	roundTrip := &islandcompare.RoundTrip{
		Service: svc,
		Waiter:  r.waiter(svc, conf),
		Out:     r.env.Stdout,
		Log:     r.log,
		Now:     r.env.Now,
	}
	results, err := roundTrip.Run(r.env.Context, islandcompare.RoundTripRequest{
		Label:       args.First(),
		Paths:       paths,
		NewickPath:  newickPath,
		NewickMode:  mode,
		ReferenceID: c.String("r"),
		OutputDir:   sink.Dir(),
	})
	if err != nil {
		return err
	}
	return r.commit(sink, results)
}
