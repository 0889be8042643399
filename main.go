package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/brinkmanlab/islandcompare-cli/commands"
)

/*
islandcompare drives the IslandCompare workflow on a galaxy instance

usage:
  - upload genomes: `islandcompare --key $KEY upload genome.gbk`
  - start an analysis: `islandcompare run -o results/ "my analysis" $ID1 $ID2`
  - everything in one go: `islandcompare upload_run "my analysis" *.gbk results/`

ids, states and result paths are printed to stdout, progress to stderr
*/
func main() {
	// ctrl-c stops waiting, the analysis keeps going on the server
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := commands.Run(&commands.Env{Context: ctx}, os.Args)
	stop()
	os.Exit(code)
}
