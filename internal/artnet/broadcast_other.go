//go:build !unix

package artnet

import "syscall"

func enableBroadcast(network, address string, c syscall.RawConn) error {
	return nil
}
