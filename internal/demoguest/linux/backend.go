//go:build linux

package linux

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"os"
	"os/exec"
	"unsafe"

	"github.com/jingkaihe/vswitch/internal/errx"

	"github.com/creack/pty"
	"golang.org/x/sys/unix"
	"golang.org/x/term"
)

type ifreq struct {
	name  [unix.IFNAMSIZ]byte
	flags uint16
	_     [22]byte
}

// Backend launches a demo guest backed by a real Linux TAP device.
type Backend struct{}

func NewBackend() *Backend { return &Backend{} }

func (b *Backend) Name() string { return "tap" }

// Config mirrors demoguest.Config without importing the parent package,
// to avoid an import cycle; cmd/vswitch converts between the two.
type Config struct {
	ID      string
	MAC     [6]byte
	Gateway string
	Console bool
}

// Guest is a running TAP-backed demo guest.
type Guest struct {
	name    string
	mac     [6]byte
	f       *os.File
	console *os.File

	termState *term.State // non-nil if startConsole put stdin in raw mode
}

// Create opens a new TAP device named "vsw-demo-" followed by the first
// 8 characters of cfg.ID, assigns it cfg.Gateway
// (if set), and brings it up.
func (b *Backend) Create(ctx context.Context, cfg *Config) (*Guest, error) {
	name := "vsw-demo-" + shortID(cfg.ID)

	f, err := os.OpenFile("/dev/net/tun", os.O_RDWR, 0)
	if err != nil {
		return nil, errx.Wrap(ErrTAPOpen, err)
	}

	var ifr ifreq
	copy(ifr.name[:], name)
	ifr.flags = unix.IFF_TAP | unix.IFF_NO_PI

	if err := ioctl(f.Fd(), unix.TUNSETIFF, &ifr); err != nil {
		f.Close()
		return nil, errx.Wrap(ErrTUNSETIFF, err)
	}

	if cfg.Gateway != "" {
		if err := run(ctx, "ip", "addr", "add", cfg.Gateway, "dev", name); err != nil {
			f.Close()
			return nil, errx.Wrap(ErrSIOCSIFADDR, err)
		}
	}
	if err := run(ctx, "ip", "link", "set", name, "up"); err != nil {
		f.Close()
		return nil, errx.Wrap(ErrSIOCSIFFLAGS, err)
	}

	mac := cfg.MAC
	if mac == ([6]byte{}) {
		mac = generateMAC()
	}

	g := &Guest{name: name, mac: mac, f: f}
	if cfg.Console {
		if err := g.startConsole(); err != nil {
			f.Close()
			return nil, errx.Wrap(ErrPTYStart, err)
		}
	}
	return g, nil
}

func (g *Guest) Start(ctx context.Context) error { return nil }

// startConsole attaches an interactive shell to a pty, for driving the
// control-channel wire format by hand while testing (--console mode). If
// stdin is a real terminal it is switched to raw mode for the duration so
// the shell sees every keystroke unbuffered; Close restores it.
func (g *Guest) startConsole() error {
	cmd := exec.Command(os.Getenv("SHELL"))
	ptmx, err := pty.Start(cmd)
	if err != nil {
		return err
	}
	g.console = ptmx

	if term.IsTerminal(int(os.Stdin.Fd())) {
		oldState, err := term.MakeRaw(int(os.Stdin.Fd()))
		if err == nil {
			g.termState = oldState
		}
	}

	go func() { _, _ = io.Copy(os.Stdout, ptmx) }()
	go func() { _, _ = io.Copy(ptmx, os.Stdin) }()
	return nil
}

func (g *Guest) Send(frame []byte) error {
	_, err := g.f.Write(frame)
	if err != nil {
		return errx.Wrap(ErrTAPWrite, err)
	}
	return nil
}

func (g *Guest) Recv() ([]byte, error) {
	buf := make([]byte, 65536)
	n, err := g.f.Read(buf)
	if err != nil {
		return nil, errx.Wrap(ErrTAPRead, err)
	}
	return buf[:n], nil
}

func (g *Guest) MAC() [6]byte { return g.mac }

func (g *Guest) Close() error {
	if g.termState != nil {
		_ = term.Restore(int(os.Stdin.Fd()), g.termState)
	}
	if g.console != nil {
		g.console.Close()
	}
	if err := g.f.Close(); err != nil {
		return err
	}
	return run(context.Background(), "ip", "link", "delete", g.name)
}

func ioctl(fd uintptr, req uintptr, ifr *ifreq) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, fd, req, uintptr(unsafe.Pointer(ifr)))
	if errno != 0 {
		return errno
	}
	return nil
}

func run(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s %v: %w: %s", name, args, err, out)
	}
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func generateMAC() [6]byte {
	var mac [6]byte
	_, _ = rand.Read(mac[:])
	mac[0] = (mac[0] &^ 0x01) | 0x02 // locally administered, unicast
	return mac
}
