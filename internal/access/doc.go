// Package access implements the inbound address allow-list.
//
// An allow-list is a comma-separated string of IPv4/IPv6 addresses and CIDR
// networks ("127.0.0.1, 192.168.1.0/24, ::1"). Host bits in a network entry
// are tolerated and masked off. Malformed entries are skipped, never fatal.
//
// A Filter holds the live list and can be swapped atomically while the server
// runs. Listener applies it to every accepted connection; peers that do not
// match are closed before any request is read.
package access
