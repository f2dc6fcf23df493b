// Package pcapfile replays a pcap capture as a frame source and records
// transmitted frames to another pcap file.
package pcapfile

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"firestige.xyz/dnsreflect/internal/core"
)

// Source reads Ethernet frames from a pcap file. Frames written back are
// appended to an optional output capture with the timestamp of the frame
// they answer.
type Source struct {
	in     *os.File
	reader *pcapgo.Reader

	out    *os.File
	buf    *bufio.Writer
	writer *pcapgo.Writer

	last gopacket.CaptureInfo
	path string
}

// Open opens inPath for reading and, when outPath is not empty, creates
// outPath for the transmitted frames.
func Open(inPath, outPath string) (*Source, error) {
	if inPath == "" {
		return nil, fmt.Errorf("%w: pcap input path is required", core.ErrControlPlane)
	}
	in, err := os.Open(inPath)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open pcap file %s: %w", core.ErrControlPlane, inPath, err)
	}
	r, err := pcapgo.NewReader(in)
	if err != nil {
		in.Close()
		return nil, fmt.Errorf("%w: failed to read pcap header of %s: %w", core.ErrControlPlane, inPath, err)
	}
	if lt := r.LinkType(); lt != layers.LinkTypeEthernet {
		in.Close()
		return nil, fmt.Errorf("%w: %s: unsupported link type %s", core.ErrControlPlane, inPath, lt)
	}

	s := &Source{in: in, reader: r, path: inPath}
	if outPath == "" {
		return s, nil
	}

	out, err := os.Create(outPath)
	if err != nil {
		in.Close()
		return nil, fmt.Errorf("%w: failed to create pcap file %s: %w", core.ErrControlPlane, outPath, err)
	}
	s.out = out
	s.buf = bufio.NewWriter(out)
	s.writer = pcapgo.NewWriter(s.buf)
	if err := s.writer.WriteFileHeader(r.Snaplen(), layers.LinkTypeEthernet); err != nil {
		s.Close()
		return nil, fmt.Errorf("%w: failed to write pcap header to %s: %w", core.ErrControlPlane, outPath, err)
	}
	return s, nil
}

// ReadFrame returns the next frame. The data is owned by the caller.
func (s *Source) ReadFrame() (core.RawFrame, error) {
	data, ci, err := s.reader.ReadPacketData()
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return core.RawFrame{}, io.EOF
		}
		return core.RawFrame{}, fmt.Errorf("failed to read packet: %w", err)
	}
	s.last = ci
	return core.RawFrame{
		Data:           data,
		Timestamp:      ci.Timestamp,
		CaptureLen:     uint32(ci.CaptureLength),
		OrigLen:        uint32(ci.Length),
		InterfaceIndex: ci.InterfaceIndex,
	}, nil
}

// WriteFrame records data in the output capture. Without an output file the
// frame is discarded.
func (s *Source) WriteFrame(data []byte) error {
	if s.writer == nil {
		return nil
	}
	ts := s.last.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	return s.writer.WritePacket(gopacket.CaptureInfo{
		Timestamp:     ts,
		CaptureLength: len(data),
		Length:        len(data),
	}, data)
}

// Name identifies the source in logs and metrics labels.
func (s *Source) Name() string {
	return s.path
}

// Close flushes the output capture and closes both files.
func (s *Source) Close() error {
	var errs []error
	if s.buf != nil {
		errs = append(errs, s.buf.Flush())
	}
	if s.out != nil {
		errs = append(errs, s.out.Close())
		s.out = nil
	}
	if s.in != nil {
		errs = append(errs, s.in.Close())
		s.in = nil
	}
	return errors.Join(errs...)
}
