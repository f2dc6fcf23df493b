// Package blocklist implements the address and port block-lists consulted by
// the decision engine and maintained by the control plane.
package blocklist

import (
	"errors"
	"fmt"
	"net/netip"
	"slices"
)

// DefaultCapacity is the per-table entry limit.
const DefaultCapacity = 1024

var (
	// ErrTableFull is returned when inserting a new key into a full table.
	ErrTableFull = errors.New("blocklist: table full")
	// ErrNotIPv4 is returned when inserting an address that is not IPv4.
	ErrNotIPv4 = errors.New("blocklist: address is not IPv4")
)

// Reader is the read-only capability handed to the per-frame pipeline.
// Lookups fail open: unknown keys report not-blocked.
type Reader interface {
	IsBlockedAddress(addr netip.Addr) bool
	IsBlockedPort(port uint16) bool
}

// Writer is the mutating capability retained by the control plane.
type Writer interface {
	InsertAddress(addr netip.Addr) error
	RemoveAddress(addr netip.Addr) error
	InsertPort(port uint16) error
	RemovePort(port uint16) error
}

// Store holds two independent tables. Each entry is individually atomic;
// there is no transaction across tables.
type Store struct {
	addrs *table[[4]byte]
	ports *table[uint16]
}

// NewStore creates a store whose tables each hold at most capacity entries.
// A non-positive capacity selects DefaultCapacity.
func NewStore(capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Store{
		addrs: newTable[[4]byte](capacity),
		ports: newTable[uint16](capacity),
	}
}

var (
	_ Reader = (*Store)(nil)
	_ Writer = (*Store)(nil)
)

// IsBlockedAddress reports whether addr is in the address table.
func (s *Store) IsBlockedAddress(addr netip.Addr) bool {
	addr = addr.Unmap()
	if !addr.Is4() {
		return false
	}
	return s.addrs.contains(addr.As4())
}

// IsBlockedPort reports whether port is in the port table.
func (s *Store) IsBlockedPort(port uint16) bool {
	return s.ports.contains(port)
}

// InsertAddress adds an IPv4 address.
func (s *Store) InsertAddress(addr netip.Addr) error {
	addr = addr.Unmap()
	if !addr.Is4() {
		return fmt.Errorf("insert %v: %w", addr, ErrNotIPv4)
	}
	if err := s.addrs.insert(addr.As4()); err != nil {
		return fmt.Errorf("insert %v: %w", addr, err)
	}
	return nil
}

// RemoveAddress deletes an IPv4 address.
func (s *Store) RemoveAddress(addr netip.Addr) error {
	addr = addr.Unmap()
	if !addr.Is4() {
		return fmt.Errorf("remove %v: %w", addr, ErrNotIPv4)
	}
	s.addrs.remove(addr.As4())
	return nil
}

// InsertPort adds a UDP port.
func (s *Store) InsertPort(port uint16) error {
	if err := s.ports.insert(port); err != nil {
		return fmt.Errorf("insert port %d: %w", port, err)
	}
	return nil
}

// RemovePort deletes a UDP port.
func (s *Store) RemovePort(port uint16) error {
	s.ports.remove(port)
	return nil
}

// Addresses returns a sorted snapshot of the address table.
func (s *Store) Addresses() []netip.Addr {
	keys := s.addrs.keys()
	out := make([]netip.Addr, 0, len(keys))
	for _, k := range keys {
		out = append(out, netip.AddrFrom4(k))
	}
	slices.SortFunc(out, func(a, b netip.Addr) int { return a.Compare(b) })
	return out
}

// Ports returns a sorted snapshot of the port table.
func (s *Store) Ports() []uint16 {
	out := s.ports.keys()
	slices.Sort(out)
	return out
}

// Len returns the number of addresses and ports currently stored.
func (s *Store) Len() (addrs, ports int) {
	return s.addrs.len(), s.ports.len()
}

// Capacity returns the per-table entry limit.
func (s *Store) Capacity() int {
	return s.addrs.capacity
}
