// Package afpacket implements frame ingress and egress on a network interface
// using AF_PACKET TPACKET_V3.
package afpacket

import (
	"errors"
	"fmt"
	"os"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/google/gopacket/afpacket"

	"firestige.xyz/dnsreflect/internal/core"
)

const (
	defaultSnapLen      = 65535
	defaultBufferSizeMB = 8
	defaultPollTimeout  = 100 * time.Millisecond
)

// Config describes one socket on the interface.
type Config struct {
	Interface    string
	SnapLen      int
	BufferSizeMB int
	PollTimeout  time.Duration
	FanoutID     uint16 // 0 = no fanout group
	Prefilter    bool   // attach the DNS socket filter
}

// Source reads frames from a TPACKET_V3 ring and writes frames back out the
// same interface. A Source is owned by a single goroutine.
type Source struct {
	handle *afpacket.TPacket
	cfg    Config

	frameSize int
	blockSize int
	numBlocks int

	received atomic.Uint64
	sent     atomic.Uint64
}

// Open creates the socket, joins the fanout group and attaches the socket
// filter. Every failure wraps core.ErrControlPlane.
func Open(cfg Config) (*Source, error) {
	if cfg.Interface == "" {
		return nil, fmt.Errorf("%w: afpacket: interface is required", core.ErrControlPlane)
	}
	if cfg.SnapLen <= 0 {
		cfg.SnapLen = defaultSnapLen
	}
	if cfg.BufferSizeMB <= 0 {
		cfg.BufferSizeMB = defaultBufferSizeMB
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = defaultPollTimeout
	}

	frameSize, blockSize, numBlocks, err := recomputeSize(cfg.BufferSizeMB, cfg.SnapLen, os.Getpagesize())
	if err != nil {
		return nil, fmt.Errorf("%w: afpacket: %w", core.ErrControlPlane, err)
	}
	s := &Source{
		cfg:       cfg,
		frameSize: frameSize,
		blockSize: blockSize,
		numBlocks: numBlocks,
	}
	if err := s.open(); err != nil {
		return nil, fmt.Errorf("%w: afpacket %s: %w", core.ErrControlPlane, cfg.Interface, err)
	}
	return s, nil
}

func (s *Source) open() error {
	tp, err := afpacket.NewTPacket(
		afpacket.OptInterface(s.cfg.Interface),
		afpacket.OptFrameSize(s.frameSize),
		afpacket.OptBlockSize(s.blockSize),
		afpacket.OptNumBlocks(s.numBlocks),
		afpacket.OptPollTimeout(s.cfg.PollTimeout),
		afpacket.SocketRaw,
		afpacket.TPacketVersion3,
	)
	if err != nil {
		return fmt.Errorf("failed to create TPacket handle: %w", err)
	}

	if s.cfg.FanoutID > 0 {
		if err := tp.SetFanout(afpacket.FanoutHash, s.cfg.FanoutID); err != nil {
			tp.Close()
			return fmt.Errorf("failed to set fanout: %w", err)
		}
	}

	raw, err := AssembleFilter(s.cfg.SnapLen, s.cfg.Prefilter)
	if err != nil {
		tp.Close()
		return err
	}
	if err := tp.SetBPF(raw); err != nil {
		tp.Close()
		return fmt.Errorf("failed to set BPF: %w", err)
	}

	if err := tp.InitSocketStats(); err != nil {
		tp.Close()
		return fmt.Errorf("failed to init socket stats: %w", err)
	}
	s.handle = tp
	return nil
}

// ReadFrame returns the next frame. Data points into the ring and is only
// valid until the next ReadFrame; the caller may mutate it in place before
// handing it to WriteFrame. An expired poll returns core.ErrReadTimeout.
func (s *Source) ReadFrame() (core.RawFrame, error) {
	data, ci, err := s.handle.ZeroCopyReadPacketData()
	if err != nil {
		if errors.Is(err, afpacket.ErrTimeout) || errors.Is(err, syscall.EINTR) {
			return core.RawFrame{}, core.ErrReadTimeout
		}
		return core.RawFrame{}, err
	}
	s.received.Add(1)
	return core.RawFrame{
		Data:           data,
		Timestamp:      ci.Timestamp,
		CaptureLen:     uint32(ci.CaptureLength),
		OrigLen:        uint32(ci.Length),
		InterfaceIndex: ci.InterfaceIndex,
	}, nil
}

// WriteFrame transmits data out the interface.
func (s *Source) WriteFrame(data []byte) error {
	if err := s.handle.WritePacketData(data); err != nil {
		return err
	}
	s.sent.Add(1)
	return nil
}

// Stats reports frames read and written by this socket, and the kernel's
// drop count for the ring.
type Stats struct {
	Received uint64
	Sent     uint64
	Drops    uint64
}

func (s *Source) Stats() Stats {
	st := Stats{Received: s.received.Load(), Sent: s.sent.Load()}
	if _, v3, err := s.handle.SocketStats(); err == nil {
		st.Drops = uint64(v3.Drops())
	}
	return st
}

// Name identifies the socket in logs and metrics labels.
func (s *Source) Name() string {
	return s.cfg.Interface
}

// Close releases the ring. It must not race with ReadFrame: the ring is
// unmapped on close.
func (s *Source) Close() error {
	if s.handle != nil {
		s.handle.Close()
		s.handle = nil
	}
	return nil
}
