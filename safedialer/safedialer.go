// Package safedialer provides a net.Dialer control function that rejects
// attempts to dial internal/private networks.
//
// This code was lightly adapted from Andrew Ayer's excellent "Preventing
// Server Side Request Forgery in Golang" blog post:
// https://www.agwa.name/blog/post/preventing_server_side_request_forgery_in_golangs
package safedialer

/*
 * Written in 2019 by Andrew Ayer
 *
 * To the extent possible under law, the author(s) have dedicated all
 * copyright and related and neighboring rights to this software to the
 * public domain worldwide. This software is distributed without any
 * warranty.
 *
 * You should have received a copy of the CC0 Public
 * Domain Dedication along with this software. If not, see
 * <https://creativecommons.org/publicdomain/zero/1.0/>.
 */

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
	"syscall"
)

// Errors returned when a dial is rejected. They are wrapped with details
// about the rejected address, so use errors.Is to check for them.
var (
	ErrUnsafeNetwork = errors.New("unsafe network type")
	ErrUnsafePort    = errors.New("unsafe port number")
	ErrUnsafeIP      = errors.New("unsafe IP address")
)

// Control is a net.Dialer.Control function that only allows TCP connections
// to ports 80 and 443 on public IP addresses.
func Control(network string, address string, _ syscall.RawConn) error {
	if !(network == "tcp4" || network == "tcp6") {
		return fmt.Errorf("%w: %s", ErrUnsafeNetwork, network)
	}

	host, port, err := net.SplitHostPort(address)
	if err != nil {
		return fmt.Errorf("%w: %s is not a valid host/port pair: %s", ErrUnsafeIP, address, err)
	}

	if !(port == "80" || port == "443") {
		return fmt.Errorf("%w: %s", ErrUnsafePort, port)
	}

	addr, err := netip.ParseAddr(host)
	if err != nil {
		return fmt.Errorf("%w: %s is not a valid IP address", ErrUnsafeIP, host)
	}

	if !isPublicIPAddress(addr) {
		return fmt.Errorf("%w: %s is not a public IP address", ErrUnsafeIP, addr)
	}

	return nil
}

// Shared address space (RFC 6598) is not covered by netip.Addr.IsPrivate.
var carrierGradeNAT = netip.MustParsePrefix("100.64.0.0/10")

func isPublicIPAddress(addr netip.Addr) bool {
	addr = addr.Unmap()
	switch {
	case !addr.IsGlobalUnicast(),
		addr.IsPrivate(),
		addr.IsLoopback(),
		addr.IsLinkLocalUnicast(),
		carrierGradeNAT.Contains(addr):
		return false
	}
	return true
}
