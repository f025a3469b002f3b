//go:build linux

package linux

import "errors"

// TAP / network interface errors
var (
	ErrTAPOpen           = errors.New("open /dev/net/tun")
	ErrTUNSETIFF         = errors.New("TUNSETIFF")
	ErrInterfaceNotFound = errors.New("interface not found")
	ErrInvalidCIDR       = errors.New("invalid CIDR")
	ErrCreateSocket      = errors.New("create socket")
	ErrSIOCSIFADDR       = errors.New("SIOCSIFADDR")
	ErrSIOCSIFNETMASK    = errors.New("SIOCSIFNETMASK")
	ErrSIOCGIFFLAGS      = errors.New("SIOCGIFFLAGS")
	ErrSIOCSIFFLAGS      = errors.New("SIOCSIFFLAGS")
)

// Frame I/O errors
var (
	ErrTAPRead  = errors.New("read TAP device")
	ErrTAPWrite = errors.New("write TAP device")
)

// Console errors
var (
	ErrPTYStart = errors.New("start console pty")
)
