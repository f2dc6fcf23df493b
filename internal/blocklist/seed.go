package blocklist

import (
	"fmt"
	"net"
	"net/netip"
	"os"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"

	"firestige.xyz/dnsreflect/internal/core"
)

// Seeds is the set of entries loaded into the store at startup.
type Seeds struct {
	Addresses []netip.Addr
	Ports     []uint16
}

// seedFile mirrors the on-disk layout:
//
//	addresses: ["1.1.1.1", "9.9.9.9"]
//	ports: [53, "5353"]
type seedFile struct {
	Addresses []net.IP `mapstructure:"addresses"`
	Ports     []int    `mapstructure:"ports"`
}

// ParseSeeds validates textual addresses and integer ports.
func ParseSeeds(addrs []string, ports []int) (Seeds, error) {
	var s Seeds
	for _, a := range addrs {
		addr, err := netip.ParseAddr(a)
		if err != nil {
			return Seeds{}, fmt.Errorf("invalid address %q: %w", a, err)
		}
		addr = addr.Unmap()
		if !addr.Is4() {
			return Seeds{}, fmt.Errorf("invalid address %q: %w", a, ErrNotIPv4)
		}
		s.Addresses = append(s.Addresses, addr)
	}
	p, err := toPorts(ports)
	if err != nil {
		return Seeds{}, err
	}
	s.Ports = p
	return s, nil
}

func toPorts(ports []int) ([]uint16, error) {
	out := make([]uint16, 0, len(ports))
	for _, p := range ports {
		if p < 0 || p > 0xFFFF {
			return nil, fmt.Errorf("invalid port %d: must be 0-65535", p)
		}
		out = append(out, uint16(p))
	}
	return out, nil
}

// LoadFile reads a YAML seed file. Ports may be written as numbers or strings.
func LoadFile(path string) (Seeds, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Seeds{}, fmt.Errorf("failed to read seed file %s: %w", path, err)
	}

	raw := make(map[string]any)
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Seeds{}, fmt.Errorf("failed to parse seed file %s: %w", path, err)
	}

	var f seedFile
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToIPHookFunc(),
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           &f,
	})
	if err != nil {
		return Seeds{}, err
	}
	if err := dec.Decode(raw); err != nil {
		return Seeds{}, fmt.Errorf("failed to decode seed file %s: %w", path, err)
	}

	var s Seeds
	for _, ip := range f.Addresses {
		addr, ok := netip.AddrFromSlice(ip)
		if !ok {
			return Seeds{}, fmt.Errorf("seed file %s: invalid address %v", path, ip)
		}
		addr = addr.Unmap()
		if !addr.Is4() {
			return Seeds{}, fmt.Errorf("seed file %s: %v: %w", path, addr, ErrNotIPv4)
		}
		s.Addresses = append(s.Addresses, addr)
	}
	s.Ports, err = toPorts(f.Ports)
	if err != nil {
		return Seeds{}, fmt.Errorf("seed file %s: %w", path, err)
	}
	return s, nil
}

// Merge returns the union of s and o, keeping order and dropping duplicates.
func (s Seeds) Merge(o Seeds) Seeds {
	var out Seeds
	seenAddr := make(map[netip.Addr]bool)
	for _, a := range append(append([]netip.Addr(nil), s.Addresses...), o.Addresses...) {
		if !seenAddr[a] {
			seenAddr[a] = true
			out.Addresses = append(out.Addresses, a)
		}
	}
	seenPort := make(map[uint16]bool)
	for _, p := range append(append([]uint16(nil), s.Ports...), o.Ports...) {
		if !seenPort[p] {
			seenPort[p] = true
			out.Ports = append(out.Ports, p)
		}
	}
	return out
}

// Seed inserts every entry into w. Failures are control-plane errors.
func Seed(w Writer, s Seeds) error {
	for _, a := range s.Addresses {
		if err := w.InsertAddress(a); err != nil {
			return fmt.Errorf("%w: seed address: %w", core.ErrControlPlane, err)
		}
	}
	for _, p := range s.Ports {
		if err := w.InsertPort(p); err != nil {
			return fmt.Errorf("%w: seed port: %w", core.ErrControlPlane, err)
		}
	}
	return nil
}
