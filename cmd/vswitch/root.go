package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/jingkaihe/vswitch/internal/errx"
	"github.com/jingkaihe/vswitch/pkg/dump"
	"github.com/jingkaihe/vswitch/pkg/firewall"
	"github.com/jingkaihe/vswitch/pkg/guest"
	"github.com/jingkaihe/vswitch/pkg/logging"
	"github.com/jingkaihe/vswitch/pkg/memnic"
	"github.com/jingkaihe/vswitch/pkg/switchctx"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sys/unix"
	"golang.org/x/time/rate"
)

var rootCmd = &cobra.Command{
	Use:   "vswitch",
	Short: "Poll-mode virtual switch for paravirtualized guest front-ends",
	Long: `vswitch mediates between paravirtualized guest network front-ends
attached over a Unix socket and a single physical NIC: it classifies and
rate-shapes guest traffic per five-tuple, pushes VLAN tags, and applies
control-channel table updates in-band.`,
	RunE: runSwitch,
}

func init() {
	flags := rootCmd.Flags()
	flags.IntP("port-id", "p", 0, "physical NIC port id")
	flags.BoolP("promiscuous", "P", false, "enable promiscuous/broadcast/multicast acceptance on VMDQ")
	flags.StringArray("socket-file", nil, "vhost-user socket path (repeatable)")
	flags.Bool("tx-csum", true, "enable TX checksum offload")
	flags.Bool("do-tag", true, "push VLAN tags on the fast path")
	flags.Bool("do-shape", true, "enforce per-entry token-bucket shaping")
	flags.Bool("client", false, "connect to socket-file as a client instead of listening")
	flags.Bool("dequeue-zero-copy", false, "enable zero-copy dequeue from guest virtqueues")
	flags.Int("num-pools", 64, "number of VMDQ pools")
	flags.Int("num-cores", 2, "number of polling worker cores")
	flags.Uint64("cpu-freq", 1_000_000_000, "TSC ticks per second used to scale token-bucket arithmetic")
	flags.Bool("nftables-mirror", false, "install a kernel nftables mirror of VLAN pool bindings")
	flags.String("nic-interface", "eth0", "physical NIC interface name, used by --nftables-mirror")
	flags.String("event-log", "", "JSONL audit log path; empty disables the sink")
	flags.Float64("control-rate-limit", 10, "max control-table updates per second (0 disables limiting)")
	flags.Int("control-burst", 5, "control-table update burst size")
	flags.String("dump-format", "text", "USR1 dump format: text or cbor")

	viper.BindPFlags(flags)
	viper.SetEnvPrefix("VSWITCH")
	viper.AutomaticEnv()
}

func runSwitch(cmd *cobra.Command, args []string) error {
	socketFiles := viper.GetStringSlice("socket-file")
	if len(socketFiles) == 0 {
		return ErrMissingSocketFile
	}
	cpuFreq := viper.GetUint64("cpu-freq")
	if cpuFreq == 0 {
		return ErrInvalidCPUFreq
	}
	numPools := viper.GetInt("num-pools")
	if numPools <= 0 {
		return ErrInvalidPoolCount
	}

	var emitter *logging.Emitter
	if path := viper.GetString("event-log"); path != "" {
		w, err := logging.NewJSONLWriter(path)
		if err != nil {
			return errx.Wrap(ErrOpenEventLog, err)
		}
		emitter = logging.NewEmitter(logging.EmitterConfig{
			RunID:       fmt.Sprintf("vswitch-%d", os.Getpid()),
			AgentSystem: "vswitch",
		}, w)
		defer emitter.Close()
	}

	nic := memnic.NewNIC()
	transport := memnic.NewTransport()

	var mirror firewall.Mirror
	if viper.GetBool("nftables-mirror") {
		mirror = firewall.NewNFTablesMirror(viper.GetString("nic-interface"))
		if err := mirror.Setup(); err != nil {
			return errx.Wrap(ErrSetupFirewallMirror, err)
		}
		defer mirror.Close()
	}

	var limit rate.Limit
	if rl := viper.GetFloat64("control-rate-limit"); rl > 0 {
		limit = rate.Limit(rl)
	}

	sw, err := switchctx.Build(switchctx.Config{
		NumCores:         viper.GetInt("num-cores"),
		NumPools:         numPools,
		CPUFreq:          cpuFreq,
		DoTag:            viper.GetBool("do-tag"),
		DoShape:          viper.GetBool("do-shape"),
		ControlRateLimit: limit,
		ControlBurst:     viper.GetInt("control-burst"),
		Port:             withMirror(nic, mirror),
		Transport:        transport,
		Emitter:          emitter,
	})
	if err != nil {
		return errx.Wrap(ErrBuildSwitchContext, err)
	}

	slog.Info("vswitch starting",
		"port_id", viper.GetInt("port-id"),
		"promiscuous", viper.GetBool("promiscuous"),
		"num_cores", viper.GetInt("num-cores"),
		"num_pools", numPools,
		"sockets", len(socketFiles),
	)

	stop := make(chan struct{})
	var wg sync.WaitGroup
	for _, w := range sw.Workers() {
		wg.Add(1)
		go func(w interface{ RunOnce() }) {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
					w.RunOnce()
				}
			}
		}(w)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGUSR1, syscall.SIGUSR2, syscall.SIGINT, unix.SIGRTMIN())

	for {
		sig := <-sigCh
		switch sig {
		case syscall.SIGUSR1:
			writeDump(sw, viper.GetString("dump-format"))
		case syscall.SIGUSR2:
			resetStats(sw.Registry.All())
		default:
			slog.Info("shutting down", "signal", sig.String())
			close(stop)
			waitWithTimeout(&wg, 5*time.Second)
			return nil
		}
	}
}

func writeDump(sw *switchctx.Context, format string) {
	guests := sw.Registry.All()
	if format == "cbor" {
		b, err := dump.MarshalCBOR(guests, sw.Table)
		if err != nil {
			slog.Error("cbor dump failed", "error", err)
			return
		}
		os.Stdout.Write(b)
		return
	}
	dump.WriteMatchingTable(os.Stdout, guests, sw.Table)
	dump.WriteStats(os.Stdout, guests)
}

func resetStats(guests []*guest.Guest) {
	for _, g := range guests {
		g.Stats.Reset()
	}
}

func waitWithTimeout(wg *sync.WaitGroup, d time.Duration) {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(d):
	}
}
