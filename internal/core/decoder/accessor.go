// Package decoder implements bounds-checked protocol decoding over raw frames.
package decoder

import (
	"encoding/binary"

	"firestige.xyz/dnsreflect/internal/core"
)

// View is a read-only window of exactly one header inside a frame.
// Views are only constructed by viewAt, so holding one proves the
// byte range was inside the frame.
type View struct {
	b []byte
}

// MutView is a writable window of exactly one header inside a frame.
// The caller must own the frame exclusively while the view is alive.
type MutView struct {
	View
}

// viewAt validates [offset, offset+size) against the frame before
// producing a view. No byte of data is touched before the check.
func viewAt(data []byte, offset, size int) (View, error) {
	if offset < 0 || size < 0 || offset > len(data) || size > len(data)-offset {
		return View{}, core.ErrOutOfBounds
	}
	end := offset + size
	// clip capacity so the view can never be resliced past the header
	return View{b: data[offset:end:end]}, nil
}

func mutViewAt(data []byte, offset, size int) (MutView, error) {
	v, err := viewAt(data, offset, size)
	if err != nil {
		return MutView{}, err
	}
	return MutView{View: v}, nil
}

// Len returns the size of the viewed header.
func (v View) Len() int { return len(v.b) }

func (v View) u8(off int) uint8 { return v.b[off] }

func (v View) u16(off int) uint16 { return binary.BigEndian.Uint16(v.b[off : off+2]) }

func (v View) u32(off int) uint32 { return binary.BigEndian.Uint32(v.b[off : off+4]) }

func (v View) array6(off int) (a [6]byte) {
	copy(a[:], v.b[off:off+6])
	return a
}

func (v View) array4(off int) (a [4]byte) {
	copy(a[:], v.b[off:off+4])
	return a
}

// swap exchanges two non-overlapping n-byte ranges of the view in place.
// Wire byte order is preserved since bytes move verbatim.
func (m MutView) swap(a, b, n int) {
	x, y := m.b[a:a+n], m.b[b:b+n]
	for i := range n {
		x[i], y[i] = y[i], x[i]
	}
}
