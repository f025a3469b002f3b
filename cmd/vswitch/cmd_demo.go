package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jingkaihe/vswitch/internal/demoguest"
	"github.com/jingkaihe/vswitch/internal/errx"
	"github.com/jingkaihe/vswitch/pkg/memnic"
	"github.com/jingkaihe/vswitch/pkg/switchctx"
	"github.com/jingkaihe/vswitch/pkg/worker"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// demoCmd runs a full switch context in this process plus one real demo
// guest (a Linux TAP device or a macOS vz virtio-net attachment), bridged
// to the switch's in-memory NIC/transport. It is the acceptance-test path
// internal/demoguest was built for: MAC learning, control updates, and
// tagged forwarding can all be driven and observed by hand, without a real
// paravirtualized guest.
var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Attach a real TAP/vz demo guest to an in-process switch",
	RunE:  runDemo,
}

func init() {
	flags := demoCmd.Flags()
	flags.String("mac", "02:00:00:00:00:05", "demo guest MAC address")
	flags.String("gateway", "192.168.100.1/24", "host-side IP assigned to the TAP/attachment")
	flags.Bool("console", false, "attach an interactive pty to the guest's control stream")
	viper.BindPFlags(flags)
	rootCmd.AddCommand(demoCmd)
}

func runDemo(cmd *cobra.Command, args []string) error {
	hwAddr, err := net.ParseMAC(viper.GetString("mac"))
	if err != nil || len(hwAddr) != 6 {
		return errx.With(ErrCreateDemoGuest, ": invalid --mac %q", viper.GetString("mac"))
	}
	var mac [6]byte
	copy(mac[:], hwAddr)

	numPools := viper.GetInt("num-pools")
	if numPools <= 0 {
		numPools = 64
	}
	cpuFreq := viper.GetUint64("cpu-freq")
	if cpuFreq == 0 {
		cpuFreq = 1_000_000_000
	}
	numCores := viper.GetInt("num-cores")
	if numCores <= 0 {
		numCores = 2
	}

	nic := memnic.NewNIC()
	transport := memnic.NewTransport()

	sw, err := switchctx.Build(switchctx.Config{
		NumCores:  numCores,
		NumPools:  numPools,
		CPUFreq:   cpuFreq,
		DoTag:     viper.GetBool("do-tag"),
		DoShape:   viper.GetBool("do-shape"),
		Port:      nic,
		Transport: transport,
	})
	if err != nil {
		return errx.Wrap(ErrBuildSwitchContext, err)
	}

	g := sw.AddGuest()
	transport.RegisterGuest(g.ID)
	defer transport.UnregisterGuest(g.ID)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	backend := demoguest.NewBackend()
	dg, err := backend.Create(ctx, &demoguest.Config{
		ID:      fmt.Sprintf("vswitch-demo-%d", g.ID),
		MAC:     mac,
		Gateway: viper.GetString("gateway"),
		Console: viper.GetBool("console"),
	})
	if err != nil {
		return errx.Wrap(ErrCreateDemoGuest, err)
	}
	defer dg.Close()

	if err := dg.Start(ctx); err != nil {
		return errx.Wrap(ErrRegisterGuest, err)
	}

	stop := make(chan struct{})
	for _, w := range sw.Workers() {
		go runWorkerUntilStopped(w, stop)
	}
	go bridgeGuestToSwitch(dg, transport, g.ID, stop)
	go bridgeSwitchToGuest(dg, transport, g.ID, stop)

	slog.Info("demo guest attached",
		"backend", backend.Name(), "guest_id", g.ID, "mac", viper.GetString("mac"))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	close(stop)
	slog.Info("demo guest detaching")
	return nil
}

func runWorkerUntilStopped(w *worker.Worker, stop chan struct{}) {
	for {
		select {
		case <-stop:
			return
		default:
			w.RunOnce()
		}
	}
}

// bridgeGuestToSwitch pumps frames the demo guest actually transmitted
// (arriving over its TAP/vz device) onto its TX virtqueue for a worker to
// classify, the same path a paravirtualized guest's virtqueue kick drives.
func bridgeGuestToSwitch(dg demoguest.Guest, tr *memnic.Transport, guestID uint64, stop chan struct{}) {
	for {
		select {
		case <-stop:
			return
		default:
		}
		frame, err := dg.Recv()
		if err != nil {
			return
		}
		tr.SendFromGuest(guestID, frame)
	}
}

// bridgeSwitchToGuest polls frames the switch forwarded to this guest's RX
// virtqueue and writes them back out over the TAP/vz device.
func bridgeSwitchToGuest(dg demoguest.Guest, tr *memnic.Transport, guestID uint64, stop chan struct{}) {
	for {
		select {
		case <-stop:
			return
		default:
		}
		frame, ok := tr.RecvForGuest(guestID)
		if !ok {
			time.Sleep(time.Millisecond)
			continue
		}
		if err := dg.Send(frame); err != nil {
			return
		}
	}
}
