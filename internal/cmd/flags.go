// SPDX-FileCopyrightText: 2026 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package cmd

import (
	"flag"
	"fmt"
	"io"
	"runtime/debug"
	"strings"

	"github.com/aibor/vrlaunch/internal/boot"
	"github.com/aibor/vrlaunch/internal/vrlaunch"
)

const (
	name = "vrlaunch"

	hostnameDefault = "vr"
	usernameDefault = "vrnetlab"
	passwordDefault = "VR-netlab9"

	cpuMin = 1
	cpuMax = 32

	memMin = 256
	memMax = 65536

	usageMessage = `Usage of 'vrlaunch':
    vrlaunch -vendor=<name> [flags...]

vrlaunch runs as PID 1 style supervisor inside a lab node container. It
boots the vendor disk image found in the container, waits until the router
accepts remote management and bridges the container's ethN interfaces to
the guest's NICs.

All vrlaunch flags can also be provided via environment variable
VRLAUNCH_ARGS. Credentials and interface count default to the USERNAME,
PASSWORD and CLAB_INTFS variables the lab orchestrator sets.
`
)

type flags struct {
	cfg     vrlaunch.Config
	flagSet *flag.FlagSet

	version bool
	debug   bool
}

func newFlags(output io.Writer, getenv Environ) *flags {
	flags := &flags{
		cfg: vrlaunch.Config{
			Hostname: envString(getenv, hostnameDefault, "HOSTNAME"),
			Username: envString(getenv, usernameDefault, "USERNAME"),
			Password: envString(getenv, passwordDefault, "PASSWORD"),
			ConnectionMode: envString(
				getenv, "tc", "CONNECTION_MODE",
			),
			ExpectedNICs: envInt(getenv, "CLAB_INTFS", 0),
			MaxRestarts:  -1,
		},
	}

	flags.initFlagset(output)

	return flags
}

func (f *flags) ParseArgs(args []string) error {
	err := f.flagSet.Parse(args)
	if err != nil {
		return &ParseArgsError{msg: "flag parse", err: err}
	}

	if f.version {
		err := f.printVersionInformation()
		return &ParseArgsError{msg: "version requested", err: err}
	}

	if f.cfg.Vendor == "" {
		return f.fail("no vendor given (use -vendor)", nil)
	}

	return nil
}

func (f *flags) initFlagset(output io.Writer) {
	flagSet := flag.NewFlagSet(name, flag.ContinueOnError)
	flagSet.SetOutput(output)
	flagSet.Usage = f.usage

	flagSet.StringVar(
		&f.cfg.Vendor,
		"vendor",
		f.cfg.Vendor,
		fmt.Sprintf(
			"virtual router vendor profile: %s",
			strings.Join(boot.ProfileNames(), ", "),
		),
	)

	flagSet.StringVar(
		&f.cfg.Hostname,
		"hostname",
		f.cfg.Hostname,
		"hostname configured on the router",
	)

	flagSet.StringVar(
		&f.cfg.Username,
		"username",
		f.cfg.Username,
		"username created on the router",
	)

	flagSet.StringVar(
		&f.cfg.Password,
		"password",
		f.cfg.Password,
		"password of the created user",
	)

	flagSet.StringVar(
		&f.cfg.DiskImage,
		"disk",
		f.cfg.DiskImage,
		"path to the base qcow2 disk image "+
			"(default is the single image found in /)",
	)

	flagSet.Var(
		&limitedUintValue{
			Value: &f.cfg.VCPUs,
			min:   cpuMin,
			max:   cpuMax,
		},
		"cpu",
		"number of CPUs for the VM (default from the vendor profile)",
	)

	flagSet.Var(
		&limitedUintValue{
			Value: &f.cfg.MemoryMiB,
			min:   memMin,
			max:   memMax,
		},
		"memory",
		"memory (in MB) for the VM (default from the vendor profile)",
	)

	flagSet.IntVar(
		&f.cfg.NICCount,
		"nics",
		f.cfg.NICCount,
		"fixed number of emulated data NICs, skips interface discovery "+
			"and bridging",
	)

	flagSet.IntVar(
		&f.cfg.ExpectedNICs,
		"expected-nics",
		f.cfg.ExpectedNICs,
		"wait until this many data interfaces are provisioned "+
			"(default from CLAB_INTFS)",
	)

	flagSet.StringVar(
		&f.cfg.ConnectionMode,
		"connection-mode",
		f.cfg.ConnectionMode,
		"how container interfaces are connected to the guest (only: tc)",
	)

	flagSet.DurationVar(
		&f.cfg.BootTimeout,
		"boot-timeout",
		f.cfg.BootTimeout,
		"maximum duration of one boot attempt "+
			"(default from the vendor profile)",
	)

	flagSet.IntVar(
		&f.cfg.MaxRestarts,
		"max-restarts",
		f.cfg.MaxRestarts,
		"number of relaunches after a VM crash before giving up",
	)

	flagSet.BoolVar(
		&f.cfg.NoKVM,
		"nokvm",
		f.cfg.NoKVM,
		"disable hardware acceleration (default is enabled if present)",
	)

	flagSet.BoolVar(
		&f.debug,
		"debug",
		f.debug,
		"enable debug output",
	)

	flagSet.BoolVar(
		&f.version,
		"version",
		f.version,
		"show version and exit",
	)

	f.flagSet = flagSet
}

// fail fails like flag does. It prints the error first and then usage.
func (f *flags) fail(msg string, err error) error {
	err = &ParseArgsError{msg: msg, err: err}
	fmt.Fprintln(f.flagSet.Output(), err.Error())

	f.flagSet.Usage()

	return err
}

func (f *flags) printVersionInformation() error {
	buildInfo, ok := debug.ReadBuildInfo()
	if !ok {
		return ErrReadBuildInfo
	}

	fmt.Fprintf(f.flagSet.Output(), "Version: %s\n", buildInfo.Main.Version)

	return ErrHelp
}

func (f *flags) usage() {
	fmt.Fprint(f.flagSet.Output(), usageMessage)
	fmt.Fprintln(f.flagSet.Output(), "\nFlags:")
	f.flagSet.PrintDefaults()
}
