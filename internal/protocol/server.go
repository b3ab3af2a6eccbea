// Package protocol implements the PostgreSQL wire protocol.
package protocol

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/duramec/id"
	"github.com/duramec/id/internal/executor"
	"github.com/jackc/pgproto3/v2"
)

// Server handles PostgreSQL wire protocol connections
type Server struct {
	port     int
	executor *executor.Executor
	logger   id.Logger
	metrics  id.Metrics

	mu       sync.Mutex
	listener net.Listener
	conns    map[net.Conn]struct{}
	closed   bool
	wg       sync.WaitGroup

	nextPID atomic.Uint32
	ready   chan struct{}
}

// NewServer creates a protocol server answering queries with gen. Port 0
// picks a free port; Addr reports it once Start is listening.
func NewServer(port int, gen *id.Generator, version string, logger id.Logger, metrics id.Metrics) *Server {
	if logger == nil {
		logger = &id.NoOpLogger{}
	}
	if metrics == nil {
		metrics = &id.NoOpMetrics{}
	}
	return &Server{
		port:     port,
		executor: executor.NewExecutor(gen, version),
		logger:   logger,
		metrics:  metrics,
		conns:    make(map[net.Conn]struct{}),
		ready:    make(chan struct{}),
	}
}

// Start listens and serves until Close is called. It returns nil after Close.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", s.port))
	if err != nil {
		return fmt.Errorf("failed to listen on port %d: %w", s.port, err)
	}
	return s.serve(listener)
}

// Accept failures such as EMFILE back off from minAcceptDelay, doubling up
// to maxAcceptDelay.
const (
	minAcceptDelay = 5 * time.Millisecond
	maxAcceptDelay = time.Second
)

func nextAcceptDelay(prev time.Duration) time.Duration {
	if prev == 0 {
		return minAcceptDelay
	}
	if prev *= 2; prev > maxAcceptDelay {
		return maxAcceptDelay
	}
	return prev
}

func (s *Server) serve(listener net.Listener) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		listener.Close()
		return nil
	}
	s.listener = listener
	s.mu.Unlock()
	close(s.ready)

	s.logger.Info("idserver listening", "addr", listener.Addr().String())

	var delay time.Duration
	for {
		conn, err := listener.Accept()
		if err != nil {
			if s.isClosed() {
				return nil
			}
			delay = nextAcceptDelay(delay)
			s.logger.Warn("accept error", "error", err, "retry_in", delay)
			time.Sleep(delay)
			continue
		}
		delay = 0

		if !s.track(conn) {
			conn.Close()
			return nil
		}
		go func() {
			defer s.done(conn)
			s.handleConnection(conn)
		}()
	}
}

// Ready is closed once the server is listening.
func (s *Server) Ready() <-chan struct{} { return s.ready }

// Addr returns the listening address, nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Close stops accepting, closes open connections and waits for their
// handlers to return.
func (s *Server) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	var err error
	if s.listener != nil {
		err = s.listener.Close()
	}
	for conn := range s.conns {
		conn.Close()
	}
	s.mu.Unlock()

	s.wg.Wait()
	return err
}

func (s *Server) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// track registers conn with the wait group under the same lock Close takes,
// so Close either rejects conn or waits for it.
func (s *Server) track(conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.wg.Add(1)
	s.conns[conn] = struct{}{}
	s.metrics.Gauge(id.MetricServerConnections, float64(len(s.conns)))
	return true
}

func (s *Server) done(conn net.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.metrics.Gauge(id.MetricServerConnections, float64(len(s.conns)))
	s.mu.Unlock()
	s.wg.Done()
}

// handleConnection processes a single client connection
func (s *Server) handleConnection(conn net.Conn) {
	defer conn.Close()

	remote := conn.RemoteAddr().String()
	s.logger.Debug("new connection", "remote", remote)

	backend := pgproto3.NewBackend(pgproto3.NewChunkReader(conn), conn)

	if err := s.startup(conn, backend, remote); err != nil {
		s.logger.Warn("startup failed", "remote", remote, "error", err)
		return
	}

	// Main message loop
	for {
		msg, err := backend.Receive()
		if err != nil {
			if errors.Is(err, io.EOF) || s.isClosed() {
				s.logger.Debug("client disconnected", "remote", remote)
			} else {
				s.logger.Warn("receive error", "remote", remote, "error", err)
			}
			return
		}

		switch m := msg.(type) {
		case *pgproto3.Query:
			if err := s.handleQuery(backend, m.String); err != nil {
				s.logger.Warn("write error", "remote", remote, "error", err)
				return
			}

		case *pgproto3.Terminate:
			s.logger.Debug("client terminated connection", "remote", remote)
			return

		default:
			s.logger.Debug("unhandled message type", "remote", remote, "type", fmt.Sprintf("%T", msg))
			err := s.sendAll(backend,
				&pgproto3.ErrorResponse{
					Severity: "ERROR",
					Code:     executor.CodeFeatureNotSupported,
					Message:  "only the simple query protocol is supported",
				},
				&pgproto3.ReadyForQuery{TxStatus: 'I'},
			)
			if err != nil {
				return
			}
		}
	}
}

// startup declines TLS and GSS encryption, then accepts the startup message
// without authentication.
func (s *Server) startup(conn net.Conn, backend *pgproto3.Backend, remote string) error {
	for {
		msg, err := backend.ReceiveStartupMessage()
		if err != nil {
			return fmt.Errorf("receive startup: %w", err)
		}

		switch m := msg.(type) {
		case *pgproto3.SSLRequest, *pgproto3.GSSEncRequest:
			// decline with 'N'; the client sends a regular startup next
			if _, err := conn.Write([]byte{'N'}); err != nil {
				return fmt.Errorf("write encryption response: %w", err)
			}
			continue

		case *pgproto3.CancelRequest:
			return errors.New("cancel requests are not supported")

		case *pgproto3.StartupMessage:
			s.logger.Debug("startup",
				"remote", remote,
				"protocol", fmt.Sprintf("%d.%d", m.ProtocolVersion>>16, m.ProtocolVersion&0xFFFF),
				"database", m.Parameters["database"],
				"user", m.Parameters["user"],
			)
			return s.sendAll(backend,
				&pgproto3.AuthenticationOk{},
				&pgproto3.ParameterStatus{Name: "server_version", Value: "15.0 (idserver)"},
				&pgproto3.ParameterStatus{Name: "client_encoding", Value: "UTF8"},
				&pgproto3.ParameterStatus{Name: "server_encoding", Value: "UTF8"},
				&pgproto3.ParameterStatus{Name: "standard_conforming_strings", Value: "on"},
				&pgproto3.ParameterStatus{Name: "DateStyle", Value: "ISO, MDY"},
				&pgproto3.ParameterStatus{Name: "TimeZone", Value: "UTC"},
				&pgproto3.ParameterStatus{Name: "integer_datetimes", Value: "on"},
				&pgproto3.BackendKeyData{ProcessID: s.nextPID.Add(1), SecretKey: 0},
				&pgproto3.ReadyForQuery{TxStatus: 'I'},
			)

		default:
			return fmt.Errorf("unexpected startup message %T", msg)
		}
	}
}

// handleQuery runs one simple query and writes its result. Errors returned
// are write errors; query errors go to the client.
func (s *Server) handleQuery(backend *pgproto3.Backend, query string) error {
	start := time.Now()
	s.logger.Debug("query", "sql", query)

	result, err := s.executor.Execute(context.Background(), query)
	s.metrics.Timing(id.MetricQueryDuration, time.Since(start))

	if err != nil {
		s.metrics.Increment(id.MetricServerErrors)
		s.logger.Info("query failed", "sql", query, "error", err)
		return s.sendAll(backend,
			&pgproto3.ErrorResponse{
				Severity: "ERROR",
				Code:     executor.Code(err),
				Message:  err.Error(),
			},
			&pgproto3.ReadyForQuery{TxStatus: 'I'},
		)
	}

	var msgs []pgproto3.BackendMessage
	switch {
	case result.Message == "" && len(result.Columns) == 0:
		msgs = append(msgs, &pgproto3.EmptyQueryResponse{})
	default:
		if len(result.Columns) > 0 {
			s.metrics.Increment(id.MetricServerQueries, "function", result.Columns[0].Name)
			msgs = append(msgs, rowDescription(result.Columns))
			for _, row := range result.Rows {
				msgs = append(msgs, dataRow(row))
			}
		}
		msgs = append(msgs, &pgproto3.CommandComplete{CommandTag: []byte(result.Message)})
	}
	msgs = append(msgs, &pgproto3.ReadyForQuery{TxStatus: 'I'})

	return s.sendAll(backend, msgs...)
}

func (s *Server) sendAll(backend *pgproto3.Backend, msgs ...pgproto3.BackendMessage) error {
	for _, msg := range msgs {
		if err := backend.Send(msg); err != nil {
			return err
		}
	}
	return nil
}

func rowDescription(columns []executor.Column) *pgproto3.RowDescription {
	fields := make([]pgproto3.FieldDescription, len(columns))
	for i, c := range columns {
		fields[i] = pgproto3.FieldDescription{
			Name:                 []byte(c.Name),
			TableOID:             0,
			TableAttributeNumber: 0,
			DataTypeOID:          uint32(c.Type),
			DataTypeSize:         typeSize(c.Type),
			TypeModifier:         -1,
			Format:               0, // text
		}
	}
	return &pgproto3.RowDescription{Fields: fields}
}

func typeSize(t executor.Type) int16 {
	switch t {
	case executor.TypeInt8:
		return 8
	case executor.TypeUUID:
		return 16
	case executor.TypeMacaddr:
		return 6
	default:
		return -1
	}
}

func dataRow(row []string) *pgproto3.DataRow {
	values := make([][]byte, len(row))
	for i, v := range row {
		values[i] = []byte(v)
	}
	return &pgproto3.DataRow{Values: values}
}
