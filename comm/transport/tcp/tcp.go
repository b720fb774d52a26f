// Package tcp provides the TCP transport: one listener per rank and a full
// mesh of peer connections, exchanging length-prefixed frames tagged with
// the sender rank and a round sequence number. Used when ranks run as
// separate OS processes.
package tcp

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/ValentinKolb/dMesh/comm/common"
	"github.com/ValentinKolb/dMesh/comm/transport"
	"github.com/lni/dragonboat/v4/logger"
)

var log = logger.GetLogger("transport")

const (
	defaultDialTimeout = 30 * time.Second
	dialRetryInterval  = 100 * time.Millisecond
)

// --------------------------------------------------------------------------
// Connection establishment
// --------------------------------------------------------------------------

type peer struct {
	conn net.Conn
	r    *bufio.Reader
	w    *bufio.Writer
}

type meshTransport struct {
	cfg      common.TransportConfig
	listener net.Listener
	peers    []*peer // indexed by rank, nil at own rank
	seq      uint64
}

// New establishes the full peer mesh for one rank: the rank listens on its
// own endpoint, dials every higher rank and accepts a connection from every
// lower rank. New is itself collective - it returns only once every pairwise
// connection exists.
func New(ctx context.Context, cfg common.TransportConfig) (transport.Transport, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	listener, err := net.Listen("tcp", cfg.Endpoints[cfg.Rank])
	if err != nil {
		return nil, fmt.Errorf("tcp: failed to listen on %s: %v", cfg.Endpoints[cfg.Rank], err)
	}

	t := &meshTransport{
		cfg:      cfg,
		listener: listener,
		peers:    make([]*peer, cfg.Size()),
	}

	if err := t.connectPeers(ctx); err != nil {
		t.Close()
		return nil, err
	}
	log.Infof("rank %d connected to %d peers", cfg.Rank, cfg.Size()-1)
	return t, nil
}

func (t *meshTransport) connectPeers(ctx context.Context) error {
	var wg sync.WaitGroup
	errs := make(chan error, 2)

	// Accept one connection from every lower rank. The dialer announces
	// its rank in a fixed-width hello frame.
	expect := t.cfg.Rank
	if expect > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for n := 0; n < expect; n++ {
				conn, err := t.listener.Accept()
				if err != nil {
					errs <- fmt.Errorf("tcp: accept failed: %v", err)
					return
				}
				var hello [4]byte
				if _, err := io.ReadFull(conn, hello[:]); err != nil {
					errs <- fmt.Errorf("tcp: peer hello failed: %v", err)
					return
				}
				rank := int(binary.BigEndian.Uint32(hello[:]))
				if rank < 0 || rank >= t.cfg.Rank || t.peers[rank] != nil {
					errs <- fmt.Errorf("tcp: unexpected hello from rank %d", rank)
					return
				}
				t.setupPeer(rank, conn)
			}
		}()
	}

	// Dial every higher rank, retrying while the peer's listener comes up.
	wg.Add(1)
	go func() {
		defer wg.Done()
		for rank := t.cfg.Rank + 1; rank < t.cfg.Size(); rank++ {
			conn, err := t.dialPeer(ctx, rank)
			if err != nil {
				errs <- err
				return
			}
			var hello [4]byte
			binary.BigEndian.PutUint32(hello[:], uint32(t.cfg.Rank))
			if _, err := conn.Write(hello[:]); err != nil {
				errs <- fmt.Errorf("tcp: hello to rank %d failed: %v", rank, err)
				return
			}
			t.setupPeer(rank, conn)
		}
	}()

	wg.Wait()
	select {
	case err := <-errs:
		return err
	default:
		return nil
	}
}

func (t *meshTransport) dialPeer(ctx context.Context, rank int) (net.Conn, error) {
	timeout := defaultDialTimeout
	if t.cfg.DialTimeoutSec > 0 {
		timeout = time.Duration(t.cfg.DialTimeoutSec) * time.Second
	}
	deadline := time.Now().Add(timeout)
	for {
		d := net.Dialer{Deadline: deadline}
		conn, err := d.DialContext(ctx, "tcp", t.cfg.Endpoints[rank])
		if err == nil {
			return conn, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("tcp: dialing rank %d at %s timed out: %v", rank, t.cfg.Endpoints[rank], err)
		}
		time.Sleep(dialRetryInterval)
	}
}

func (t *meshTransport) setupPeer(rank int, conn net.Conn) {
	if err := upgradeConnection(conn, t.cfg); err != nil {
		log.Warningf("rank %d: socket tuning for peer %d failed: %v", t.cfg.Rank, rank, err)
	}
	t.peers[rank] = &peer{
		conn: conn,
		r:    bufio.NewReader(conn),
		w:    bufio.NewWriter(conn),
	}
}

// upgradeConnection applies performance options to a TCP connection using
// the SocketConf and TCPConf configuration values.
func upgradeConnection(conn net.Conn, cfg common.TransportConfig) error {
	tcpConn, ok := conn.(*net.TCPConn)
	if !ok {
		return nil // Not a TCP connection, nothing to upgrade
	}

	// Disable Nagle's algorithm if configured
	if err := tcpConn.SetNoDelay(cfg.TCPNoDelay); err != nil {
		return err
	}

	// Set socket write buffer size if configured
	if cfg.WriteBufferSize > 0 {
		if err := tcpConn.SetWriteBuffer(cfg.WriteBufferSize); err != nil {
			return err
		}
	}

	// Set socket read buffer size if configured
	if cfg.ReadBufferSize > 0 {
		if err := tcpConn.SetReadBuffer(cfg.ReadBufferSize); err != nil {
			return err
		}
	}

	// Enable TCP keep-alive if configured
	if cfg.TCPKeepAliveSec > 0 {
		if err := tcpConn.SetKeepAlive(true); err != nil {
			return err
		}
		if err := tcpConn.SetKeepAlivePeriod(time.Duration(cfg.TCPKeepAliveSec) * time.Second); err != nil {
			return err
		}
	}

	// Set TCP linger option if configured
	if cfg.TCPLingerSec >= 0 {
		if err := tcpConn.SetLinger(cfg.TCPLingerSec); err != nil {
			return err
		}
	}

	return nil
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.Transport)
// --------------------------------------------------------------------------

func (t *meshTransport) Rank() int { return t.cfg.Rank }
func (t *meshTransport) Size() int { return t.cfg.Size() }

func (t *meshTransport) Exchange(ctx context.Context, out [][]byte) ([][]byte, error) {
	if len(out) != t.cfg.Size() {
		return nil, fmt.Errorf("tcp: exchange with %d buffers for %d ranks", len(out), t.cfg.Size())
	}
	t.seq++

	deadline, hasDeadline := ctx.Deadline()
	for _, p := range t.peers {
		if p == nil {
			continue
		}
		if hasDeadline {
			_ = p.conn.SetDeadline(deadline)
		} else {
			_ = p.conn.SetDeadline(time.Time{})
		}
	}

	// Write all frames concurrently so a peer blocked on its own writes
	// cannot deadlock this rank's reads.
	var wg sync.WaitGroup
	errs := make(chan error, t.cfg.Size())
	for rank, p := range t.peers {
		if p == nil {
			continue
		}
		wg.Add(1)
		go func(rank int, p *peer, payload []byte) {
			defer wg.Done()
			if err := writeFrame(p.w, t.seq, payload); err != nil {
				errs <- fmt.Errorf("tcp: send to rank %d failed: %v", rank, err)
			}
		}(rank, p, out[rank])
	}

	in := make([][]byte, t.cfg.Size())
	// Self-delivery copies the payload; like frames off the wire, a nil
	// send buffer arrives as an empty message.
	in[t.cfg.Rank] = append(make([]byte, 0, len(out[t.cfg.Rank])), out[t.cfg.Rank]...)

	var readErr error
	for rank, p := range t.peers {
		if p == nil {
			continue
		}
		payload, seq, err := readFrame(p.r)
		if err != nil {
			readErr = fmt.Errorf("tcp: receive from rank %d failed: %v", rank, err)
			break
		}
		if seq != t.seq {
			readErr = fmt.Errorf("tcp: rank %d is at round %d, expected %d (mismatched collective)", rank, seq, t.seq)
			break
		}
		in[rank] = payload
	}

	wg.Wait()
	close(errs)
	if readErr != nil {
		return nil, readErr
	}
	if err, ok := <-errs; ok && err != nil {
		return nil, err
	}
	return in, nil
}

func (t *meshTransport) Close() error {
	var first error
	if t.listener != nil {
		first = t.listener.Close()
	}
	for _, p := range t.peers {
		if p == nil {
			continue
		}
		if err := p.conn.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// --------------------------------------------------------------------------
// Framing
// --------------------------------------------------------------------------

// Frame layout: round sequence (u64), payload length (u32), payload bytes.

func writeFrame(w *bufio.Writer, seq uint64, payload []byte) error {
	var hdr [12]byte
	binary.BigEndian.PutUint64(hdr[:8], seq)
	binary.BigEndian.PutUint32(hdr[8:], uint32(len(payload)))
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}
	if _, err := w.Write(payload); err != nil {
		return err
	}
	return w.Flush()
}

func readFrame(r *bufio.Reader) ([]byte, uint64, error) {
	var hdr [12]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, 0, err
	}
	seq := binary.BigEndian.Uint64(hdr[:8])
	n := binary.BigEndian.Uint32(hdr[8:])
	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, 0, err
	}
	return payload, seq, nil
}
