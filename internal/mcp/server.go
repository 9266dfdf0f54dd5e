// Package mcp implements a line-oriented JSON-RPC 2.0 tool server over
// stdio, speaking the Model Context Protocol subset that desktop
// assistants use: initialize, tools/list, and tools/call. Protocol frames
// go to stdout; all logging goes elsewhere.
package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
)

const protocolVersion = "2024-11-05"

// JSON-RPC 2.0 error codes.
const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeInternalError  = -32603
)

type request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  any             `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Content is one content block of a tool result.
type Content struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// ToolResult is the MCP result shape for tools/call. Tool failures travel
// in-band with IsError set, not as JSON-RPC errors.
type ToolResult struct {
	Content []Content `json:"content"`
	IsError bool      `json:"isError,omitempty"`
}

// TextResult builds a single-text-block result.
func TextResult(text string, isError bool) ToolResult {
	return ToolResult{Content: []Content{{Type: "text", Text: text}}, IsError: isError}
}

// Tool is one callable tool: a name, a description, a JSON schema for its
// arguments, and the handler.
type Tool struct {
	Name        string
	Description string
	InputSchema map[string]any
	Handler     func(ctx context.Context, args json.RawMessage) ToolResult
}

type toolInfo struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"inputSchema"`
}

// Server reads one JSON-RPC request per line from in and writes one
// response per line to out.
type Server struct {
	name    string
	version string
	in      io.Reader
	out     io.Writer
	log     *slog.Logger

	tools  []Tool
	byName map[string]int

	writeMu sync.Mutex
}

// NewServer creates a Server reading from in and writing to out.
func NewServer(name, version string, in io.Reader, out io.Writer, log *slog.Logger) *Server {
	return &Server{
		name:    name,
		version: version,
		in:      in,
		out:     out,
		log:     log,
		byName:  make(map[string]int),
	}
}

// Register adds a tool. Registering a duplicate name replaces the earlier
// tool.
func (s *Server) Register(t Tool) {
	if i, ok := s.byName[t.Name]; ok {
		s.tools[i] = t
		return
	}
	s.byName[t.Name] = len(s.tools)
	s.tools = append(s.tools, t)
}

// Run serves requests until in is exhausted or ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	s.log.Info("tool server starting", "name", s.name, "version", s.version)

	scanner := bufio.NewScanner(s.in)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req request
		if err := json.Unmarshal(line, &req); err != nil {
			s.write(response{JSONRPC: "2.0", Error: &rpcError{codeParseError, "Parse error"}})
			continue
		}
		if req.JSONRPC != "2.0" {
			s.write(response{JSONRPC: "2.0", ID: req.ID, Error: &rpcError{codeInvalidRequest, "Invalid JSON-RPC version"}})
			continue
		}

		resp := s.dispatch(ctx, req)
		if resp == nil {
			// Notification: no response.
			continue
		}
		s.write(*resp)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading requests: %w", err)
	}
	s.log.Info("tool server input closed, shutting down")
	return nil
}

func (s *Server) dispatch(ctx context.Context, req request) *response {
	if req.Method == "" {
		return s.fail(req, codeInvalidRequest, "Missing method field")
	}
	switch req.Method {
	case "initialize":
		return s.result(req, map[string]any{
			"protocolVersion": protocolVersion,
			"capabilities":    map[string]any{"tools": map[string]any{}},
			"serverInfo":      map[string]any{"name": s.name, "version": s.version},
		})
	case "notifications/initialized":
		return nil
	case "tools/list":
		infos := make([]toolInfo, 0, len(s.tools))
		for _, t := range s.tools {
			infos = append(infos, toolInfo{Name: t.Name, Description: t.Description, InputSchema: t.InputSchema})
		}
		return s.result(req, map[string]any{"tools": infos})
	case "tools/call":
		return s.call(ctx, req)
	default:
		return s.fail(req, codeMethodNotFound, fmt.Sprintf("Unknown method: %s", req.Method))
	}
}

func (s *Server) call(ctx context.Context, req request) *response {
	var params struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.fail(req, codeInvalidParams, "Invalid tools/call params")
	}

	i, ok := s.byName[params.Name]
	if !ok {
		return s.fail(req, codeInvalidParams, fmt.Sprintf("Tool %q not found", params.Name))
	}

	s.log.Info("tool call", "tool", params.Name)
	return s.result(req, s.tools[i].Handler(ctx, params.Arguments))
}

func (s *Server) result(req request, result any) *response {
	return &response{JSONRPC: "2.0", ID: req.ID, Result: result}
}

func (s *Server) fail(req request, code int, message string) *response {
	return &response{JSONRPC: "2.0", ID: req.ID, Error: &rpcError{code, message}}
}

func (s *Server) write(resp response) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	data, err := json.Marshal(resp)
	if err != nil {
		s.log.Error("encoding response", "error", err)
		return
	}
	if _, err := s.out.Write(append(data, '\n')); err != nil {
		s.log.Error("writing response", "error", err)
	}
}
