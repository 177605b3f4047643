package access

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
	"regexp"
	"strings"
)

// DefaultAllowList admits only the IPv4 loopback address.
const DefaultAllowList = "127.0.0.1"

// ErrEmptyAllowList is returned when validating a blank allow-list.
var ErrEmptyAllowList = errors.New("access: allow-list must not be empty")

// ErrMalformedAllowList is returned when the string is not a well-formed
// comma-separated list.
var ErrMalformedAllowList = errors.New("access: malformed list, check for leading, trailing or doubled commas")

var commaSeparated = regexp.MustCompile(`^\s*[^,\s]+(\s*,\s*[^,\s]+)*\s*$`)

// List is a parsed allow-list. The zero List denies everyone.
type List struct {
	entries  []string
	prefixes []netip.Prefix
}

// Validate splits s into entries that parse and messages for those that do
// not. It fails outright when s is blank or not a well-formed list.
func Validate(s string) (valid []string, problems []string, err error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil, ErrEmptyAllowList
	}
	if !commaSeparated.MatchString(s) {
		return nil, nil, ErrMalformedAllowList
	}
	for _, entry := range strings.Split(s, ",") {
		entry = strings.TrimSpace(entry)
		if _, perr := parseEntry(entry); perr != nil {
			problems = append(problems, fmt.Sprintf("invalid IP/subnet: '%s'", entry))
			continue
		}
		valid = append(valid, entry)
	}
	return valid, problems, nil
}

// Parse builds a List from s, skipping invalid entries. The returned
// warnings describe what was skipped.
func Parse(s string) (*List, []string) {
	valid, problems, err := Validate(s)
	if err != nil {
		return &List{}, []string{err.Error()}
	}
	l := &List{entries: valid, prefixes: make([]netip.Prefix, 0, len(valid))}
	for _, entry := range valid {
		p, _ := parseEntry(entry)
		l.prefixes = append(l.prefixes, p)
	}
	return l, problems
}

// Normalize validates s and rejoins its valid entries as "a, b, c". It fails
// when no entry is valid.
func Normalize(s string) (string, []string, error) {
	valid, problems, err := Validate(s)
	if err != nil {
		return "", nil, err
	}
	if len(valid) == 0 {
		return "", problems, fmt.Errorf("access: no valid entries in %q", s)
	}
	return strings.Join(valid, ", "), problems, nil
}

func parseEntry(entry string) (netip.Prefix, error) {
	if strings.Contains(entry, "/") {
		p, err := netip.ParsePrefix(entry)
		if err != nil {
			return netip.Prefix{}, err
		}
		// Peers are compared unmapped, so IPv4-mapped networks are too.
		if p.Addr().Is4In6() && p.Bits() >= 96 {
			p = netip.PrefixFrom(p.Addr().Unmap(), p.Bits()-96)
		}
		return p.Masked(), nil
	}
	addr, err := netip.ParseAddr(entry)
	if err != nil {
		return netip.Prefix{}, err
	}
	addr = addr.WithZone("").Unmap()
	return netip.PrefixFrom(addr, addr.BitLen()), nil
}

// Entries returns the entries that were accepted, in order.
func (l *List) Entries() []string {
	out := make([]string, len(l.entries))
	copy(out, l.entries)
	return out
}

// String joins the accepted entries.
func (l *List) String() string {
	return strings.Join(l.entries, ", ")
}

// Len returns the number of accepted entries.
func (l *List) Len() int {
	return len(l.prefixes)
}

// Contains reports whether addr matches an entry by exact address or
// network containment.
func (l *List) Contains(addr netip.Addr) bool {
	if !addr.IsValid() {
		return false
	}
	addr = addr.Unmap()
	for _, p := range l.prefixes {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// AllowsRemote reports whether a peer address in "host:port" or bare host
// form is allowed. Addresses that cannot be parsed are denied.
func (l *List) AllowsRemote(remote string) bool {
	addr, ok := PeerAddr(remote)
	return ok && l.Contains(addr)
}

// PeerAddr extracts the IP from a "host:port" or bare host string. IPv6 zone
// identifiers are dropped.
func PeerAddr(remote string) (netip.Addr, bool) {
	host := remote
	if h, _, err := net.SplitHostPort(remote); err == nil {
		host = h
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return netip.Addr{}, false
	}
	return addr.WithZone("").Unmap(), true
}
