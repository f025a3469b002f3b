//go:build darwin

package darwin

import (
	"context"
	"os"

	"github.com/jingkaihe/vswitch/internal/errx"

	"github.com/Code-Hex/vz/v3"
	"golang.org/x/sys/unix"
)

// Backend launches a demo guest backed by a vz virtio-net device. Unlike
// the teacher's full Firecracker/vz VM launchers, this does not boot a
// guest kernel: the demo guest's purpose is to exercise the switch's RX/TX
// path, not to run a real operating system, so Send/Recv talk directly to
// the socketpair end vz's FileHandleNetworkDeviceAttachment reads from on
// the other side. A real vz.VirtualMachine can be layered on top of
// netConfig by a caller that also wants to boot a kernel; that is out of
// this component's scope.
type Backend struct{}

func NewBackend() *Backend { return &Backend{} }

func (b *Backend) Name() string { return "vz" }

// Config mirrors demoguest.Config without importing the parent package, to
// avoid an import cycle; cmd/vswitch converts between the two.
type Config struct {
	ID      string
	MAC     [6]byte
	Gateway string
}

// Guest is a running vz-attachment-backed demo guest.
type Guest struct {
	mac       vz.MACAddress
	guestFD   *os.File // read/write from Send/Recv, i.e. "the guest side"
	attachFD  *os.File // handed to vz.NewFileHandleNetworkDeviceAttachment
	netConfig *vz.VirtioNetworkDeviceConfiguration
}

// Create allocates a socketpair and wraps one end in a vz network device
// attachment, ready to be attached to a vz.VirtualMachineConfiguration by
// a caller that boots a real guest kernel.
func (b *Backend) Create(ctx context.Context, cfg *Config) (*Guest, error) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_DGRAM, 0)
	if err != nil {
		return nil, errx.Wrap(ErrSocketPair, err)
	}
	guestFD := os.NewFile(uintptr(fds[0]), "vsw-demo-guest")
	attachFD := os.NewFile(uintptr(fds[1]), "vsw-demo-attach")

	attachment, err := vz.NewFileHandleNetworkDeviceAttachment(attachFD)
	if err != nil {
		guestFD.Close()
		attachFD.Close()
		return nil, errx.Wrap(ErrFileHandleAttach, err)
	}

	netConfig, err := vz.NewVirtioNetworkDeviceConfiguration(attachment)
	if err != nil {
		guestFD.Close()
		attachFD.Close()
		return nil, errx.Wrap(ErrNetworkConfig, err)
	}

	mac, err := macAddressFor(cfg.MAC)
	if err != nil {
		guestFD.Close()
		attachFD.Close()
		return nil, errx.Wrap(ErrMACAddress, err)
	}
	netConfig.SetMACAddress(mac)

	return &Guest{
		mac:       mac,
		guestFD:   guestFD,
		attachFD:  attachFD,
		netConfig: netConfig,
	}, nil
}

// NetworkConfig exposes the vz network device configuration so a caller
// that boots a real guest kernel can attach it to a
// vz.VirtualMachineConfiguration.
func (g *Guest) NetworkConfig() *vz.VirtioNetworkDeviceConfiguration { return g.netConfig }

func (g *Guest) Start(ctx context.Context) error { return nil }

func (g *Guest) Send(frame []byte) error {
	_, err := g.guestFD.Write(frame)
	return err
}

func (g *Guest) Recv() ([]byte, error) {
	buf := make([]byte, 65536)
	n, err := g.guestFD.Read(buf)
	if err != nil {
		return nil, err
	}
	return buf[:n], nil
}

func (g *Guest) MAC() [6]byte { return macBytes(g.mac) }

func (g *Guest) Close() error {
	g.attachFD.Close()
	return g.guestFD.Close()
}

func macAddressFor(mac [6]byte) (vz.MACAddress, error) {
	if mac == ([6]byte{}) {
		return vz.NewRandomLocallyAdministeredMACAddress()
	}
	return vz.NewMACAddress(mac[:])
}

func macBytes(mac vz.MACAddress) [6]byte {
	var out [6]byte
	copy(out[:], mac.Bytes())
	return out
}
