package rpcshim

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// Server wraps a Unix domain socket listener serving line-framed JSON-RPC
// requests, one JSON object per line in each direction. Follows the socket
// setup of a Unix-domain gRPC server: directory creation, stale-socket
// removal, and owner-only permissions, with the gRPC server swapped for a
// line-framed JSON-RPC loop per connection.
type Server struct {
	listener   net.Listener
	socketPath string
	handler    *Handler
	log        *zap.Logger
}

// NewServer creates a Server bound to socketPath. It prepares the socket
// directory, removes any stale socket left by a previous run, and
// restricts the new socket to owner-only access.
func NewServer(socketPath string, handler *Handler, log *zap.Logger) (*Server, error) {
	if log == nil {
		log = zap.NewNop()
	}

	if err := os.MkdirAll(filepath.Dir(socketPath), 0o700); err != nil {
		return nil, fmt.Errorf("create socket directory: %w", err)
	}
	if err := os.Remove(socketPath); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("remove stale socket: %w", err)
	}

	lis, err := net.Listen("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("listen on unix socket %s: %w", socketPath, err)
	}
	if err := os.Chmod(socketPath, 0o600); err != nil {
		lis.Close()
		return nil, fmt.Errorf("chmod socket: %w", err)
	}

	return &Server{listener: lis, socketPath: socketPath, handler: handler, log: log}, nil
}

// Serve accepts connections until the listener is closed, handling each on
// its own goroutine. It returns nil when the listener is closed via Close.
func (s *Server) Serve() error {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if ne, ok := err.(net.Error); ok && !ne.Temporary() {
				return nil
			}
			s.log.Warn("accept failed", zap.Error(err))
			continue
		}
		go s.serveConn(conn)
	}
}

// Close stops accepting connections and removes the socket file.
func (s *Server) Close() error {
	err := s.listener.Close()
	os.Remove(s.socketPath)
	return err
}

func (s *Server) serveConn(conn net.Conn) {
	defer conn.Close()

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	enc := json.NewEncoder(conn)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req Request
		if err := json.Unmarshal(line, &req); err != nil {
			resp := &Response{JSONRPC: "2.0", Error: &RPCError{Code: codeParseError, Message: "malformed JSON-RPC request"}}
			if encErr := enc.Encode(resp); encErr != nil {
				s.log.Warn("write response failed", zap.Error(encErr))
				return
			}
			continue
		}

		resp := s.handler.Handle(req)
		if err := enc.Encode(resp); err != nil {
			s.log.Warn("write response failed", zap.Error(err))
			return
		}
	}
	if err := scanner.Err(); err != nil {
		s.log.Debug("connection read error", zap.Error(err))
	}
}
