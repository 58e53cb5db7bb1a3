// SPDX-FileCopyrightText: 2026 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package vrlaunch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/aibor/vrlaunch/internal/boot"
	"github.com/aibor/vrlaunch/internal/console"
	"github.com/aibor/vrlaunch/internal/host"
	"github.com/aibor/vrlaunch/internal/qemu"
)

const (
	defaultExecutable = "qemu-system-x86_64"
	defaultDiskDir    = "/"

	// mgmtSubnet is the guest's user-mode management network. The
	// bootstrap configuration assigns .15 to the management interface.
	mgmtSubnet = "10.0.0.0/24"
	tftpDir    = "/tftpboot"

	maxConsoleReconnects = 3
)

// managementPorts are the services exposed on the guest's management
// address. QEMU forwards the container-local port into the guest and a
// socat process makes it reachable on the container's own addresses.
var managementPorts = []struct {
	name   string
	guest  uint16
	local  uint16
	listen uint16
}{
	{"ssh", 22, 2022, 22},
	{"netconf", 830, 2830, 830},
	{"gnmi", 57400, 17400, 57400},
}

// Config is the launcher configuration assembled from flags and
// environment.
type Config struct {
	// Vendor selects the boot profile. See [boot.ProfileNames].
	Vendor string

	// Guest identity applied during bootstrap.
	Hostname string
	Username string
	Password string

	// DiskImage is the base qcow2 image. If empty, DiskDir is searched
	// for exactly one image.
	DiskImage string
	DiskDir   string

	// Sizing overrides. Zero means the profile default.
	VCPUs     uint64
	MemoryMiB uint64

	// NICCount fixes the number of emulated data NICs and skips interface
	// inventory and bridging entirely.
	NICCount int

	// ExpectedNICs makes the launcher wait until that many data
	// interfaces are provisioned before validating the inventory.
	ExpectedNICs int

	// ConnectionMode selects how container interfaces are bridged into
	// the guest. Only "tc" is supported.
	ConnectionMode string

	// BootTimeout overrides the profile's boot timeout if positive.
	BootTimeout time.Duration

	// MaxRestarts is the relaunch budget after crashes. Negative means the
	// default.
	MaxRestarts int

	// NoKVM disables KVM acceleration even if available.
	NoKVM bool
}

// Run launches the virtual router and supervises it until ctx is canceled
// or the relaunch budget is exhausted.
func Run(ctx context.Context, cfg Config) error {
	profile, err := boot.ProfileFor(cfg.Vendor)
	if err != nil {
		return err
	}

	if cfg.ConnectionMode != "" && cfg.ConnectionMode != "tc" {
		return fmt.Errorf(
			"%w: %s",
			ErrUnsupportedConnectionMode,
			cfg.ConnectionMode,
		)
	}

	if cfg.BootTimeout > 0 {
		adjusted := *profile
		adjusted.BootTimeout = cfg.BootTimeout
		profile = &adjusted
	}

	identity := boot.Identity{
		Hostname: cfg.Hostname,
		Username: cfg.Username,
		Password: cfg.Password,
	}

	interfaces, err := inventory(ctx, cfg, profile)
	if err != nil {
		return err
	}

	spec, err := buildSpec(ctx, cfg, profile, interfaces)
	if err != nil {
		return err
	}

	slog.Info("Launching virtual router",
		slog.String("vendor", profile.Name),
		slog.String("disk", spec.DiskImage),
		slog.Int("interfaces", len(interfaces)),
		slog.Bool("kvm", !spec.NoKVM),
	)

	supervisor := NewSupervisor(func() (Launcher, error) {
		return qemu.NewCommand(*spec)
	}).WithMaxRestarts(cfg.MaxRestarts)

	runner := newSessionRunner(profile, identity, interfaces)

	return supervisor.Run(ctx, runner.run)
}

// inventory discovers and validates the container's data interfaces.
func inventory(
	ctx context.Context,
	cfg Config,
	profile *boot.Profile,
) ([]host.Interface, error) {
	if cfg.NICCount > 0 {
		return nil, nil
	}

	lister := host.NetlinkLister{}

	var (
		interfaces []host.Interface
		err        error
	)

	if cfg.ExpectedNICs > 0 {
		interfaces, err = host.WaitProvisioned(ctx, lister, cfg.ExpectedNICs)
	} else {
		interfaces, err = host.Discover(lister)
	}

	if err != nil {
		return nil, err
	}

	err = host.ValidateCount(
		interfaces,
		profile.MinDataNICs,
		profile.MaxDataNICs,
	)
	if err != nil {
		return nil, err
	}

	return interfaces, nil
}

// buildSpec assembles the QEMU command spec: overlay disk, NIC layout,
// sizing and management port forwards.
func buildSpec(
	ctx context.Context,
	cfg Config,
	profile *boot.Profile,
	interfaces []host.Interface,
) (*qemu.CommandSpec, error) {
	baseImage := cfg.DiskImage

	if baseImage == "" {
		diskDir := cfg.DiskDir
		if diskDir == "" {
			diskDir = defaultDiskDir
		}

		var err error

		baseImage, err = qemu.FindDiskImage(diskDir)
		if err != nil {
			return nil, err
		}
	}

	overlay, err := qemu.CreateOverlay(ctx, baseImage)
	if err != nil {
		return nil, err
	}

	vcpus := profile.VCPUs
	if cfg.VCPUs > 0 {
		vcpus = cfg.VCPUs
	}

	memory := profile.MemoryMiB
	if cfg.MemoryMiB > 0 {
		memory = cfg.MemoryMiB
	}

	forwards := make([]qemu.HostForward, len(managementPorts))
	for idx, port := range managementPorts {
		forwards[idx] = qemu.HostForward{
			Proto:     "tcp",
			HostPort:  port.local,
			GuestPort: port.guest,
		}
	}

	return &qemu.CommandSpec{
		Executable:    defaultExecutable,
		DiskImage:     overlay,
		Machine:       profile.Machine,
		CPU:           profile.CPU,
		VCPUs:         vcpus,
		Memory:        memory,
		NoKVM:         cfg.NoKVM || !qemu.KVMAvailable(),
		SystemUUID:    uuid.NewString(),
		SMBIOSProduct: profile.SMBIOSProduct,
		MgmtNICDriver: profile.MgmtNICDriver,
		NICs:          buildNICs(profile, interfaces, cfg.NICCount),
		MgmtSubnet:    mgmtSubnet,
		TFTPDir:       tftpDir,
		NumConsoles:   profile.NumConsoles,
		HostForwards:  forwards,
		BootOrder:     profile.BootOrder,
	}, nil
}

// buildNICs lays out the emulated data NICs. Every ordinal up to the
// highest present interface gets a slot so the guest's interface numbering
// matches the container's; gaps are filled with placeholder NICs.
func buildNICs(
	profile *boot.Profile,
	interfaces []host.Interface,
	fixedCount int,
) []qemu.NIC {
	present := make(map[int]bool, len(interfaces))
	for _, iface := range interfaces {
		present[iface.Ordinal] = true
	}

	count := host.HighestOrdinal(interfaces)
	if fixedCount > 0 {
		count = fixedCount
	}

	nics := make([]qemu.NIC, 0, count)

	for ordinal := 1; ordinal <= count; ordinal++ {
		nics = append(nics, qemu.NIC{
			Ordinal:     ordinal,
			Driver:      profile.NICDriver,
			MAC:         qemu.RandomMAC(uint8(ordinal)),
			Placeholder: !present[ordinal],
		})
	}

	return nics
}

// consoleChannel is the console connection a boot session is driven on.
// Implemented by [console.Client] and by test fakes.
type consoleChannel interface {
	boot.Channel
	Close() error
}

// sessionRunner is the supervised-session callback with its dependencies:
// bridging the data interfaces, driving the boot dialogue, exposing the
// management ports and watching the process until shutdown.
//
// The netlink operations, the console opener and the forward starter are
// fields so tests can run a full session without CAP_NET_ADMIN, a real
// emulator or socat.
type sessionRunner struct {
	profile    *boot.Profile
	identity   boot.Identity
	interfaces []host.Interface

	netOps        host.NetOps
	openConsole   func(ctx context.Context, addr string) (consoleChannel, error)
	startForwards func(ctx context.Context) ([]*host.PortForward, error)
}

func newSessionRunner(
	profile *boot.Profile,
	identity boot.Identity,
	interfaces []host.Interface,
) *sessionRunner {
	return &sessionRunner{
		profile:    profile,
		identity:   identity,
		interfaces: interfaces,
		netOps:     host.NetlinkOps{},
		openConsole: func(
			ctx context.Context,
			addr string,
		) (consoleChannel, error) {
			return console.Open(ctx, addr)
		},
		startForwards: startForwards,
	}
}

// run is one supervised attempt against a live emulator process. Readiness
// is reported once, only after the boot dialogue completed and all data
// interfaces are bridged.
func (r *sessionRunner) run(ctx context.Context, vm *VM) error {
	bridges := host.NewBridgeManager(r.netOps)

	defer func() {
		if err := bridges.DetachAll(); err != nil {
			slog.Warn("Bridge teardown failed", "error", err)
		}
	}()

	for _, iface := range r.interfaces {
		nic := qemu.NIC{Ordinal: iface.Ordinal}

		if _, err := bridges.Attach(ctx, iface, nic.TapName()); err != nil {
			return err
		}
	}

	elapsed, err := r.bootGuest(ctx, vm)
	if err != nil {
		return err
	}

	forwards, err := r.startForwards(ctx)
	if err != nil {
		return err
	}

	defer stopForwards(forwards)

	slog.Info("Virtual router is ready",
		slog.String("vendor", r.profile.Name),
		slog.String("hostname", r.identity.Hostname),
		slog.Duration("boot_time", elapsed.Round(time.Second)),
	)

	select {
	case <-ctx.Done():
		return nil
	case <-vm.Done():
		if exitErr := vm.ExitErr(); exitErr != nil {
			return fmt.Errorf("%w: %w", ErrVMExited, exitErr)
		}

		return ErrVMExited
	}
}

// bootGuest drives the boot dialogue on the primary serial console. A
// console disconnect with the process still alive starts a fresh session,
// a bounded number of times.
func (r *sessionRunner) bootGuest(
	ctx context.Context,
	vm *VM,
) (time.Duration, error) {
	for reconnect := 0; ; reconnect++ {
		client, err := r.openConsole(ctx, vm.ConsoleAddr(0))
		if err != nil {
			return 0, err
		}

		session := boot.NewSession(client, r.profile, r.identity)

		elapsed, err := session.Run(ctx)

		_ = client.Close()

		if err == nil {
			return elapsed, nil
		}

		if errors.Is(err, console.ErrDisconnected) &&
			vm.Alive() &&
			reconnect < maxConsoleReconnects {
			slog.Warn("Console disconnected, restarting boot session",
				slog.String("state", session.State().String()),
				slog.Int("reconnect", reconnect+1),
			)

			continue
		}

		return elapsed, err
	}
}

func startForwards(ctx context.Context) ([]*host.PortForward, error) {
	forwards := make([]*host.PortForward, 0, len(managementPorts))

	for _, port := range managementPorts {
		forward := &host.PortForward{
			Proto:      "tcp",
			ListenPort: port.listen,
			TargetPort: port.local,
		}

		if err := forward.Start(ctx); err != nil {
			stopForwards(forwards)

			return nil, fmt.Errorf("forward %s: %w", port.name, err)
		}

		forwards = append(forwards, forward)
	}

	return forwards, nil
}

func stopForwards(forwards []*host.PortForward) {
	for _, forward := range forwards {
		forward.Stop()
	}
}
