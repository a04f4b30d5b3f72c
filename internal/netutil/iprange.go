// Package netutil provides IP range expansion and TCP reachability probing.
package netutil

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// ExpandRange expands a range specification into concrete IPv4 addresses.
// Three grammars are accepted:
//
//	CIDR       "10.32.101.0/24"  -> host addresses only (network/broadcast excluded)
//	dash range "10.32.101.1-10"  -> last-octet range, inclusive
//	single     "10.32.101.7"     -> one-element list
//
// Expansion is deterministic: addresses are returned in ascending order.
func ExpandRange(spec string) ([]string, error) {
	spec = strings.TrimSpace(spec)

	if strings.Contains(spec, "/") {
		return expandCIDR(spec)
	}
	if strings.Contains(spec, "-") {
		return expandDashRange(spec)
	}

	if !IsValidIP(spec) {
		return nil, fmt.Errorf("invalid IP address: %q", spec)
	}
	ip := net.ParseIP(spec).To4()
	if ip == nil {
		return nil, fmt.Errorf("%q is not an IPv4 address", spec)
	}
	return []string{ip.String()}, nil
}

// expandCIDR returns all usable host addresses of an IPv4 network.
func expandCIDR(cidr string) ([]string, error) {
	ip, ipnet, err := net.ParseCIDR(cidr)
	if err != nil {
		return nil, fmt.Errorf("invalid CIDR %q: %w", cidr, err)
	}
	if ip.To4() == nil {
		return nil, fmt.Errorf("CIDR %q is not an IPv4 network", cidr)
	}

	var ips []string
	for ip := ip.Mask(ipnet.Mask); ipnet.Contains(ip); incIP(ip) {
		ips = append(ips, ip.String())
	}

	// Drop network and broadcast addresses. /31 and /32 have no
	// dedicated network/broadcast address, so keep everything.
	if len(ips) > 2 {
		return ips[1 : len(ips)-1], nil
	}
	return ips, nil
}

// expandDashRange expands "a.b.c.d-N" where N replaces the last octet.
func expandDashRange(spec string) ([]string, error) {
	parts := strings.SplitN(spec, "-", 2)
	base := strings.TrimSpace(parts[0])
	end := strings.TrimSpace(parts[1])

	octets := strings.Split(base, ".")
	if len(octets) != 4 {
		return nil, fmt.Errorf("invalid range base %q: want four octets", base)
	}
	if !IsValidIP(base) {
		return nil, fmt.Errorf("invalid range base %q", base)
	}

	start, err := strconv.Atoi(octets[3])
	if err != nil {
		return nil, fmt.Errorf("invalid start octet %q: %w", octets[3], err)
	}
	last, err := strconv.Atoi(end)
	if err != nil {
		return nil, fmt.Errorf("invalid range end %q: %w", end, err)
	}
	if last < start || last > 255 {
		return nil, fmt.Errorf("invalid range %q: end octet must be between %d and 255", spec, start)
	}

	prefix := strings.Join(octets[:3], ".")
	ips := make([]string, 0, last-start+1)
	for i := start; i <= last; i++ {
		ips = append(ips, fmt.Sprintf("%s.%d", prefix, i))
	}
	return ips, nil
}

// IsValidIP checks if the given string is a valid IP address.
func IsValidIP(ip string) bool {
	return net.ParseIP(ip) != nil
}

// incIP increments an IP address by one.
func incIP(ip net.IP) {
	for j := len(ip) - 1; j >= 0; j-- {
		ip[j]++
		if ip[j] > 0 {
			break
		}
	}
}
