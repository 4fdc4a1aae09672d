package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"github.com/Aman-CERP/wordindex/internal/store"
	"github.com/Aman-CERP/wordindex/pkg/version"
)

// Index is the query and registration surface the server exposes.
type Index interface {
	Search(word string) []store.FileEntry
	ListFiles() []store.FileStatistics
	ListWords() []string
	Stats() store.Statistics
	Roots() []string
	IsIdle() bool
	Add(ctx context.Context, path string) error
	Remove(ctx context.Context, path string) error
}

// Server listens on a Unix socket and handles one request per connection.
type Server struct {
	socketPath string
	index      Index
	instanceID string
	timeout    time.Duration
	logger     *slog.Logger

	// onQuery is called after every read request.
	onQuery func()

	mu       sync.Mutex
	listener net.Listener
	started  time.Time
	shutdown bool
	wg       sync.WaitGroup
}

// NewServer creates a server for index on socketPath.
func NewServer(socketPath string, index Index, instanceID string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		socketPath: socketPath,
		index:      index,
		instanceID: instanceID,
		timeout:    30 * time.Second,
		logger:     logger.With(slog.String("component", "daemon")),
		onQuery:    func() {},
	}
}

// ListenAndServe serves until ctx is cancelled, then waits for active
// connections to finish.
func (s *Server) ListenAndServe(ctx context.Context) error {
	// Clean up any stale socket
	_ = os.Remove(s.socketPath)

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.socketPath, err)
	}
	s.mu.Lock()
	s.listener = listener
	s.started = time.Now()
	s.mu.Unlock()

	defer func() {
		_ = listener.Close()
		_ = os.Remove(s.socketPath)
	}()

	s.logger.Info("server listening", slog.String("socket", s.socketPath))

	stop := context.AfterFunc(ctx, func() { _ = s.Close() })
	defer stop()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if s.isShutdown() {
				break
			}
			s.logger.Error("accept failed", slog.String("error", err.Error()))
			continue
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConnection(ctx, conn)
		}()
	}

	s.wg.Wait()
	return nil
}

func (s *Server) isShutdown() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shutdown
}

// handleConnection processes a single client connection.
func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(s.timeout)); err != nil {
		s.logger.Warn("failed to set connection deadline", slog.String("error", err.Error()))
	}

	decoder := json.NewDecoder(conn)
	encoder := json.NewEncoder(conn)

	var req Request
	if err := decoder.Decode(&req); err != nil {
		_ = encoder.Encode(NewErrorResponse("", ErrCodeParseError, "failed to parse request"))
		return
	}

	start := time.Now()
	resp := s.handleRequest(ctx, req)
	s.logger.Debug("request handled",
		slog.String("method", req.Method),
		slog.Duration("took", time.Since(start)),
		slog.Bool("ok", resp.Error == nil))
	_ = encoder.Encode(resp)
}

// handleRequest dispatches a request to the appropriate handler.
func (s *Server) handleRequest(ctx context.Context, req Request) Response {
	if req.JSONRPC != "2.0" {
		return NewErrorResponse(req.ID, ErrCodeInvalidRequest, "jsonrpc must be \"2.0\"")
	}

	switch req.Method {
	case MethodPing:
		return NewSuccessResponse(req.ID, PingResult{Pong: true})

	case MethodStatus:
		return NewSuccessResponse(req.ID, s.status())

	case MethodSearch:
		var params SearchParams
		if resp, ok := decodeParams(req, &params); !ok {
			return resp
		}
		if err := params.Validate(); err != nil {
			return errorResponse(req.ID, err)
		}
		defer s.onQuery()
		return NewSuccessResponse(req.ID, SearchResult{Word: params.Word, Files: s.index.Search(params.Word)})

	case MethodFiles:
		defer s.onQuery()
		return NewSuccessResponse(req.ID, s.index.ListFiles())

	case MethodWords:
		defer s.onQuery()
		return NewSuccessResponse(req.ID, s.index.ListWords())

	case MethodStats:
		return NewSuccessResponse(req.ID, s.index.Stats())

	case MethodAdd, MethodRemove:
		var params RootParams
		if resp, ok := decodeParams(req, &params); !ok {
			return resp
		}
		if err := params.Validate(); err != nil {
			return errorResponse(req.ID, err)
		}
		op := s.index.Add
		if req.Method == MethodRemove {
			op = s.index.Remove
		}
		if err := op(ctx, params.Path); err != nil {
			return errorResponse(req.ID, err)
		}
		return NewSuccessResponse(req.ID, s.index.Roots())

	default:
		return NewErrorResponse(req.ID, ErrCodeMethodNotFound, fmt.Sprintf("method not found: %s", req.Method))
	}
}

func decodeParams(req Request, dst any) (Response, bool) {
	if len(req.Params) == 0 {
		return Response{}, true
	}
	if err := json.Unmarshal(req.Params, dst); err != nil {
		return NewErrorResponse(req.ID, ErrCodeInvalidParams, "failed to decode params"), false
	}
	return Response{}, true
}

// status returns the current server status.
func (s *Server) status() StatusResult {
	s.mu.Lock()
	started := s.started
	s.mu.Unlock()

	return StatusResult{
		Running:    true,
		PID:        os.Getpid(),
		InstanceID: s.instanceID,
		Version:    version.Short(),
		Uptime:     time.Since(started).Round(time.Second).String(),
		Idle:       s.index.IsIdle(),
		Roots:      s.index.Roots(),
		Stats:      s.index.Stats(),
	}
}

// Close stops accepting connections.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shutdown = true
	if s.listener != nil {
		return s.listener.Close()
	}
	return nil
}
