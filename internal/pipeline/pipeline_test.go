package pipeline

import (
	"context"
	"errors"
	"io"
	"net"
	"net/netip"
	"sync"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/dnsreflect/internal/blocklist"
	"firestige.xyz/dnsreflect/internal/core"
	"firestige.xyz/dnsreflect/internal/diag"
	"firestige.xyz/dnsreflect/internal/engine"
	"firestige.xyz/dnsreflect/internal/metrics"
)

// fakeSource replays a script of frames and errors, then returns io.EOF.
type fakeSource struct {
	mu       sync.Mutex
	script   []step
	written  [][]byte
	writeErr error
}

type step struct {
	data []byte
	err  error
}

func (f *fakeSource) ReadFrame() (core.RawFrame, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.script) == 0 {
		return core.RawFrame{}, io.EOF
	}
	s := f.script[0]
	f.script = f.script[1:]
	if s.err != nil {
		return core.RawFrame{}, s.err
	}
	return core.RawFrame{Data: s.data, CaptureLen: uint32(len(s.data)), OrigLen: uint32(len(s.data))}, nil
}

func (f *fakeSource) WriteFrame(data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	f.written = append(f.written, append([]byte(nil), data...))
	return nil
}

// timeoutSource never delivers a frame.
type timeoutSource struct{}

func (timeoutSource) ReadFrame() (core.RawFrame, error) {
	time.Sleep(time.Millisecond)
	return core.RawFrame{}, core.ErrReadTimeout
}
func (timeoutSource) WriteFrame([]byte) error { return nil }

// recorder collects diagnostic records.
type recorder struct {
	mu      sync.Mutex
	records []diag.Record
}

func (r *recorder) Emit(rec diag.Record) {
	r.mu.Lock()
	r.records = append(r.records, rec)
	r.mu.Unlock()
}

func udpFrame(t *testing.T, dstPort uint16) []byte {
	t.Helper()
	eth := &layers.Ethernet{
		SrcMAC:       net.HardwareAddr{0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0xff},
		DstMAC:       net.HardwareAddr{0x00, 0x11, 0x22, 0x33, 0x44, 0x55},
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip := &layers.IPv4{
		Version: 4, IHL: 5, TTL: 64, Protocol: layers.IPProtocolUDP,
		SrcIP: net.IP{192, 168, 1, 1}, DstIP: net.IP{1, 1, 1, 1},
	}
	udp := &layers.UDP{SrcPort: 5000, DstPort: layers.UDPPort(dstPort)}
	require.NoError(t, udp.SetNetworkLayerForChecksum(ip))

	// DNS header: id 0x1234, RD, one question; body is opaque here
	payload := []byte{0x12, 0x34, 0x01, 0x00, 0x00, 0x01, 0, 0, 0, 0, 0, 0, 0xde, 0xad, 0xbe, 0xef}

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	require.NoError(t, gopacket.SerializeLayers(buf, opts, eth, ip, udp, gopacket.Payload(payload)))
	return append([]byte(nil), buf.Bytes()...)
}

func seededEngine(t *testing.T) *engine.Engine {
	t.Helper()
	s := blocklist.NewStore(0)
	require.NoError(t, s.InsertAddress(netip.MustParseAddr("1.1.1.1")))
	require.NoError(t, s.InsertPort(53))
	return engine.New(s)
}

func TestRunProcessesFrames(t *testing.T) {
	dns := udpFrame(t, 53)
	orig := append([]byte(nil), dns...)

	src := &fakeSource{script: []step{
		{data: dns},
		{data: udpFrame(t, 123)},
		{data: dns[:20]},
		{err: core.ErrReadTimeout},
	}}
	rec := &recorder{}
	p := New(Config{Name: "test-run", Source: src, Engine: seededEngine(t), Emitter: rec})

	require.NoError(t, p.Run(context.Background()))

	stats := p.Stats()
	assert.Equal(t, Stats{
		Received:    3,
		Passed:      1,
		Aborted:     1,
		Transmitted: 1,
		Inspected:   1,
		Matched:     1,
	}, stats)

	require.Len(t, src.written, 1)
	out := src.written[0]
	assert.Equal(t, orig[0:6], out[6:12], "MACs swapped")
	assert.Equal(t, orig[26:30], out[30:34], "addresses swapped")
	assert.Equal(t, orig[34:36], out[36:38], "ports swapped")
	assert.Equal(t, orig[42:], out[42:], "DNS message untouched")

	require.Len(t, rec.records, 2)
	assert.Equal(t, diag.StageIngress, rec.records[0].Stage)
	assert.Equal(t, diag.StageReflected, rec.records[1].Stage)
	assert.Equal(t, rec.records[0].Endpoints.Swapped(), rec.records[1].Endpoints)
	assert.Equal(t, uint16(0x1234), rec.records[0].DNS.ID)
	assert.Equal(t, "test-run", rec.records[0].Pipeline)
	assert.True(t, rec.records[0].Match.DstAddr)

	// the reflected record describes the frame that went out
	sent := gopacket.NewPacket(out, layers.LayerTypeEthernet, gopacket.Default)
	sentIP, ok := sent.Layer(layers.LayerTypeIPv4).(*layers.IPv4)
	require.True(t, ok)
	sentUDP, ok := sent.Layer(layers.LayerTypeUDP).(*layers.UDP)
	require.True(t, ok)
	reflected := rec.records[1].Endpoints
	assert.Equal(t, out[6:12], reflected.SrcMAC[:])
	assert.Equal(t, out[0:6], reflected.DstMAC[:])
	assert.Equal(t, sentIP.SrcIP.String(), reflected.SrcIP.String())
	assert.Equal(t, sentIP.DstIP.String(), reflected.DstIP.String())
	assert.Equal(t, uint16(sentUDP.SrcPort), reflected.SrcPort)
	assert.Equal(t, uint16(sentUDP.DstPort), reflected.DstPort)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.FramesTotal.WithLabelValues("test-run", "tx")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.FramesTotal.WithLabelValues("test-run", "pass")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.FramesTotal.WithLabelValues("test-run", "abort")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.BlocklistMatchesTotal.WithLabelValues("test-run", metrics.KeyDstPort)))
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.BlocklistMatchesTotal.WithLabelValues("test-run", metrics.KeySrcPort)))
}

func TestRunWriteError(t *testing.T) {
	src := &fakeSource{
		script:   []step{{data: udpFrame(t, 53)}, {data: udpFrame(t, 53)}},
		writeErr: errors.New("no buffer space"),
	}
	p := New(Config{Name: "test-write-error", Source: src, Engine: engine.New(nil)})

	require.NoError(t, p.Run(context.Background()))
	stats := p.Stats()
	assert.Equal(t, uint64(2), stats.Transmitted)
	assert.Equal(t, uint64(2), stats.TxErrors)
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.TxErrorsTotal.WithLabelValues("test-write-error")))
}

func TestRunReadError(t *testing.T) {
	boom := errors.New("socket closed")
	src := &fakeSource{script: []step{{data: udpFrame(t, 53)}, {err: boom}}}
	p := New(Config{Name: "test-read-error", Source: src, Engine: engine.New(nil)})

	err := p.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, err, core.ErrPipelineStopped)
	assert.Equal(t, uint64(1), p.Stats().Received)
}

func TestStartStop(t *testing.T) {
	p := New(Config{ID: 3, Source: timeoutSource{}, Engine: engine.New(nil)})
	assert.Equal(t, "pipeline-3", p.Name())

	p.Start(context.Background())
	select {
	case <-p.Done():
		t.Fatal("pipeline exited before Stop")
	case <-time.After(20 * time.Millisecond):
	}

	require.NoError(t, p.Stop())
	<-p.Done()
	assert.Zero(t, p.Stats().Received)
	assert.NoError(t, p.Stop(), "second Stop is a no-op")
}

func TestStopWithoutStart(t *testing.T) {
	p := New(Config{Source: timeoutSource{}, Engine: engine.New(nil)})
	assert.NoError(t, p.Stop())
}

func TestStartEndsAtEOF(t *testing.T) {
	p := NewBuilder().
		WithName("test-eof").
		WithSource(&fakeSource{script: []step{{data: udpFrame(t, 53)}}}).
		WithEngine(engine.New(nil)).
		WithEmitter(diag.Nop{}).
		Build()

	p.Start(context.Background())
	select {
	case <-p.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("pipeline did not stop at end of source")
	}
	assert.NoError(t, p.Stop())
	assert.Equal(t, uint64(1), p.Stats().Transmitted)
}

func TestStatsAdd(t *testing.T) {
	a := Stats{Received: 2, Transmitted: 1, Passed: 1}
	b := Stats{Received: 3, Aborted: 3, TxErrors: 1}
	assert.Equal(t, Stats{Received: 5, Transmitted: 1, Passed: 1, Aborted: 3, TxErrors: 1}, a.Add(b))
}

func TestMetricsReset(t *testing.T) {
	m := NewMetrics("test-reset")
	m.Received.Add(4)
	m.countAction(core.ActionDrop)
	m.Reset()
	assert.Zero(t, m.Received.Load())
	assert.Zero(t, m.Dropped.Load())
}
