// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package prober

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"net/textproto"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/streamkeep/streamkeep/internal/log"
	"github.com/streamkeep/streamkeep/internal/metrics"
)

type response struct {
	statusCode int
	raw        string
}

type pendingRequest struct {
	resultCh chan response
}

// endpoint owns one TCP connection to a single (host, port) RTSP server and
// demultiplexes in-flight DESCRIBE/OPTIONS requests by CSeq.
type endpoint struct {
	host, port string

	mu       sync.Mutex
	conn     net.Conn
	cseq     int
	pending  map[int]*pendingRequest
	lastUsed time.Time
	closed   bool

	limiter *rate.Limiter
}

func newEndpoint(host, port string, heartbeatEvery time.Duration) *endpoint {
	var lim *rate.Limiter
	if heartbeatEvery > 0 {
		lim = rate.NewLimiter(rate.Every(heartbeatEvery), 1)
	}
	return &endpoint{
		host:     host,
		port:     port,
		pending:  make(map[int]*pendingRequest),
		lastUsed: time.Now(),
		limiter:  lim,
	}
}

func (e *endpoint) ensureConn(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.conn != nil {
		return nil
	}
	if e.closed {
		return fmt.Errorf("prober: endpoint closed")
	}

	dialer := net.Dialer{}
	conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(e.host, e.port))
	if err != nil {
		return fmt.Errorf("prober: dial %s:%s: %w", e.host, e.port, err)
	}
	e.conn = conn
	go e.readLoop(conn)
	return nil
}

// readLoop parses RTSP responses off the wire and dispatches each to its
// pending CSeq, for as long as the connection is open.
func (e *endpoint) readLoop(conn net.Conn) {
	reader := bufio.NewReader(conn)
	tp := textproto.NewReader(reader)

	for {
		startLine, err := tp.ReadLine()
		if err != nil {
			e.evictAll("transport_error")
			return
		}
		if startLine == "" {
			continue
		}

		headers, err := tp.ReadMIMEHeader()
		if err != nil {
			e.evictAll("transport_error")
			return
		}

		var body string
		if cl := headers.Get("Content-Length"); cl != "" {
			n, convErr := strconv.Atoi(strings.TrimSpace(cl))
			if convErr == nil && n > 0 {
				buf := make([]byte, n)
				if _, err := readFull(reader, buf); err != nil {
					e.evictAll("transport_error")
					return
				}
				body = string(buf)
			}
		} else if peeked, err := reader.Peek(2); err == nil && string(peeked) == "v=" {
			// SDP heuristic: no Content-Length, but the body starts with
			// "v=" (SDP's mandatory first field) — consume whatever is
			// already buffered as the body, without blocking for more.
			n := reader.Buffered()
			buf := make([]byte, n)
			_, _ = reader.Read(buf)
			body = string(buf)
		}
		_ = body

		statusCode, ok := parseStatusLine(startLine)
		cseq, cerr := strconv.Atoi(strings.TrimSpace(headers.Get("Cseq")))
		if cerr != nil {
			continue // unsolicited or unparsable response, drop
		}

		e.mu.Lock()
		pr, exists := e.pending[cseq]
		if exists {
			delete(e.pending, cseq)
		}
		e.mu.Unlock()

		if !exists {
			continue
		}
		if !ok {
			pr.resultCh <- response{statusCode: -1}
		} else {
			pr.resultCh <- response{statusCode: statusCode}
		}
	}
}

func readFull(r *bufio.Reader, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := r.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func parseStatusLine(line string) (int, bool) {
	// "RTSP/1.0 200 OK"
	parts := strings.SplitN(line, " ", 3)
	if len(parts) < 2 || !strings.HasPrefix(parts[0], "RTSP/") {
		return 0, false
	}
	code, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, false
	}
	return code, true
}

func (e *endpoint) evictAll(reason string) {
	e.mu.Lock()
	if e.conn != nil {
		_ = e.conn.Close()
		e.conn = nil
	}
	pending := e.pending
	e.pending = make(map[int]*pendingRequest)
	e.mu.Unlock()

	metrics.ProberPoolEvictions.WithLabelValues(reason).Inc()
	for _, pr := range pending {
		pr.resultCh <- response{statusCode: -2}
	}
}

func (e *endpoint) close() {
	e.mu.Lock()
	e.closed = true
	conn := e.conn
	e.conn = nil
	pending := e.pending
	e.pending = make(map[int]*pendingRequest)
	e.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
	for _, pr := range pending {
		pr.resultCh <- response{statusCode: -2}
	}
}

// describe issues one DESCRIBE request and waits for its matching response,
// the caller's timeout, or ctx cancellation.
func (e *endpoint) describe(ctx context.Context, rtspURL string, timeout time.Duration) (Outcome, error) {
	if err := e.ensureConn(ctx); err != nil {
		metrics.ProberOutcomes.WithLabelValues(string(OutcomeError)).Inc()
		return OutcomeError, err
	}

	e.mu.Lock()
	e.cseq++
	cseq := e.cseq
	pr := &pendingRequest{resultCh: make(chan response, 1)}
	e.pending[cseq] = pr
	e.lastUsed = time.Now()
	conn := e.conn
	e.mu.Unlock()

	req := fmt.Sprintf("DESCRIBE %s RTSP/1.0\r\nCSeq: %d\r\n\r\n", rtspURL, cseq)
	if _, err := conn.Write([]byte(req)); err != nil {
		e.mu.Lock()
		delete(e.pending, cseq)
		e.mu.Unlock()
		metrics.ProberOutcomes.WithLabelValues(string(OutcomeError)).Inc()
		return OutcomeError, fmt.Errorf("prober: write describe: %w", err)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case r := <-pr.resultCh:
		outcome := classify(r.statusCode)
		metrics.ProberOutcomes.WithLabelValues(string(outcome)).Inc()
		if r.statusCode == -2 {
			return OutcomeError, fmt.Errorf("prober: endpoint evicted while waiting")
		}
		return outcome, nil
	case <-ctx.Done():
		e.mu.Lock()
		delete(e.pending, cseq)
		e.mu.Unlock()
		return OutcomeError, ctx.Err()
	case <-timer.C:
		e.mu.Lock()
		delete(e.pending, cseq)
		e.mu.Unlock()
		metrics.ProberOutcomes.WithLabelValues(string(OutcomeTimeout)).Inc()
		return OutcomeTimeout, nil
	}
}

func classify(statusCode int) Outcome {
	switch {
	case statusCode == -2:
		return OutcomeError
	case statusCode == -1:
		return OutcomeInvalid
	case statusCode >= 200 && statusCode < 300:
		return OutcomeLive
	case statusCode == 404:
		return OutcomeNotFound
	case statusCode >= 100 && statusCode < 600:
		return OutcomeError
	default:
		return OutcomeInvalid
	}
}

// heartbeat sends a paced OPTIONS request to keep the connection warm. The
// response is discarded via the normal demux path.
func (e *endpoint) heartbeat(ctx context.Context) {
	if e.limiter == nil || !e.limiter.Allow() {
		return
	}
	if err := e.ensureConn(ctx); err != nil {
		return
	}

	e.mu.Lock()
	e.cseq++
	cseq := e.cseq
	pr := &pendingRequest{resultCh: make(chan response, 1)}
	e.pending[cseq] = pr
	conn := e.conn
	e.mu.Unlock()

	req := fmt.Sprintf("OPTIONS rtsp://%s RTSP/1.0\r\nCSeq: %d\r\n\r\n", net.JoinHostPort(e.host, e.port), cseq)
	if _, err := conn.Write([]byte(req)); err != nil {
		logger := log.WithComponent("prober")
		logger.Debug().Err(err).Msg("heartbeat write failed")
		e.mu.Lock()
		delete(e.pending, cseq)
		e.mu.Unlock()
		return
	}

	go func() {
		select {
		case <-pr.resultCh:
		case <-time.After(5 * time.Second):
			e.mu.Lock()
			delete(e.pending, cseq)
			e.mu.Unlock()
		}
	}()
}
