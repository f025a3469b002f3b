//go:build darwin

package darwin

import "errors"

var (
	ErrSocketPair       = errors.New("create socket pair")
	ErrFileHandleAttach = errors.New("create vz file-handle network attachment")
	ErrNetworkConfig    = errors.New("create vz network device configuration")
	ErrMACAddress       = errors.New("parse vz MAC address")
)
