// main.go -- main() for gofront
//
// Author: Sudhi Herle <sudhi@herle.net>
//
// This software does not come with any express or implied
// warranty; it is provided "as is". No claim  is made to its
// suitability for any purpose.

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	flag "github.com/spf13/pflag"
	"go.uber.org/automaxprocs/maxprocs"

	"github.com/opencoff/gofront/internal/bootstrap"
	"github.com/opencoff/gofront/internal/lifecycle"
)

// This will be filled in by "build"
var RepoVersion string = "UNDEFINED"
var Buildtime string = "UNDEFINED"
var ProductVersion string = "UNDEFINED"

// Name of the program
const Name = "gofront"

func main() {
	os.Exit(run(os.Args[1:], os.Stdout))
}

// run is main() without the exit; it returns the process exit status
func run(args []string, out io.Writer) int {
	cmd, fs, err := parseArgs(args)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			usage(out, fs)
			return 0
		}
		warn("%s", err)
		return 1
	}

	switch {
	case cmd.Help:
		usage(out, fs)
		return 0
	case cmd.Version:
		fmt.Fprintf(out, "%s - %s [%s; %s]\n", Name, ProductVersion, RepoVersion, Buildtime)
		return 0
	}

	undo, err := maxprocs.Set()
	if err != nil {
		warn("can't set GOMAXPROCS: %s", err)
	}
	defer undo()

	// Make sure any files we create are readable ONLY by us
	syscall.Umask(0077)

	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer cancel()

	s := &bootstrap.Sequencer{
		ConfPath: cmd.Conf,
		Entries:  cmd.Entries,
		Debug:    cmd.Debug,
	}

	err = s.Run(ctx)
	if s.Log != nil {
		defer s.Log.Close()
	}

	switch {
	case err == nil:
		s.Log.Info("Shutdown complete!")
		return 0

	case errors.Is(err, lifecycle.ErrDetached):
		return 0
	}

	if s.Log != nil {
		s.Log.Error("%s", err)
	}
	warn("%s", err)
	return 1
}

func usage(w io.Writer, fs *flag.FlagSet) {
	fmt.Fprintf(w, `%s - TLS terminating reverse proxy

Usage: %s [options] [<private-key> <certificate>]

Options:
`, Name, Name)
	fs.SetOutput(w)
	fs.PrintDefaults()
}
