package commands

import (
	"github.com/urfave/cli"
)

func (r *runner) datasetCommands() []cli.Command {
	return []cli.Command{
		{
			Name:      "upload",
			Usage:     "Upload a genome or newick tree, prints the dataset id",
			ArgsUsage: "PATH [LABEL]",
			Action:    r.upload,
		},
		{
			Name:   "list",
			Usage:  "List uploaded datasets",
			Action: r.list,
		},
		{
			Name:      "delete",
			Usage:     "Delete an uploaded dataset",
			ArgsUsage: "ID",
			Action:    r.delete,
		},
		{
			Name:      "reference",
			Usage:     "List the reference genomes available for aligning drafts",
			ArgsUsage: "[QUERY]",
			Action:    r.reference,
		},
	}
}

func (r *runner) upload(c *cli.Context) error {
	if c.NArg() < 1 || c.NArg() > 2 {
		return usageError(c, "expected a PATH and an optional LABEL")
	}
	path := c.Args().Get(0)
	if !isFile(path) {
		return usageError(c, "invalid file path specified: %v", path)
	}
	svc, _, err := r.service(c)
	if err != nil {
		return err
	}

	r.log.Info("Uploading..")
	dataset, err := svc.Upload(r.env.Context, path, c.Args().Get(1))
	if err != nil {
		return err
	}
	r.log.Info("Dataset ID:")
	r.println(dataset.ID)
	return nil
}

func (r *runner) list(c *cli.Context) error {
	if c.NArg() != 0 {
		return usageError(c, "unexpected arguments")
	}
	svc, _, err := r.service(c)
	if err != nil {
		return err
	}
	datasets, err := svc.ListDatasets(r.env.Context)
	if err != nil {
		return err
	}
	if len(datasets) == 0 {
		r.log.Info("No datasets found")
		return nil
	}
	r.log.Info("ID\tLabel")
	for _, d := range datasets {
		r.println(d.ID + "\t" + d.Name)
	}
	return nil
}

func (r *runner) delete(c *cli.Context) error {
	if c.NArg() != 1 {
		return usageError(c, "expected a dataset ID")
	}
	svc, _, err := r.service(c)
	if err != nil {
		return err
	}
	return svc.DeleteDataset(r.env.Context, c.Args().First())
}

func (r *runner) reference(c *cli.Context) error {
	if c.NArg() > 1 {
		return usageError(c, "expected at most one QUERY")
	}
	svc, _, err := r.service(c)
	if err != nil {
		return err
	}
	references, err := svc.ListReferences(r.env.Context, c.Args().First())
	if err != nil {
		return err
	}
	if len(references) == 0 {
		r.log.Info("No references found")
		return nil
	}
	r.log.Info("Reference ID\tName")
	for _, ref := range references {
		r.println(ref.ID + "\t" + ref.Name)
	}
	return nil
}
