// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes read-only BharathVani tools for LLM integration via stdio
// transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/bharathvani/internal/apperr"
	"github.com/starford/bharathvani/internal/corpus"
	"github.com/starford/bharathvani/internal/entryservice"
	"github.com/starford/bharathvani/internal/lookup"
)

const (
	contractURI     = "bharathvani://entry-format"
	defaultPageSize = 20
	maxPageSize     = 100
)

// Server wraps the MCP server with BharathVani tools.
type Server struct {
	mcp     *server.MCPServer
	entries *entryservice.Service
	lookup  *lookup.Client
}

// New creates a new MCP server with all tools registered. lk may be nil,
// in which case lookup_place reports lookups as disabled.
func New(entries *entryservice.Service, lk *lookup.Client) *Server {
	s := &Server{entries: entries, lookup: lk}

	s.mcp = server.NewMCPServer(
		"BharathVani",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("search_entries",
		mcp.WithDescription("Search heritage entries by free text, category and contributor. "+
			"All filters are optional and combined with AND."),
		mcp.WithString("q", mcp.Description("Case-insensitive text matched against title or description")),
		mcp.WithString("category", mcp.Description("Exact category, see get_entry_contract")),
		mcp.WithString("contributor", mcp.Description("Exact contributor username")),
		mcp.WithNumber("page", mcp.Description("1-indexed page number (default 1)")),
		mcp.WithNumber("size", mcp.Description("Page size (default 20, max 100)")),
	), s.searchEntries)

	s.mcp.AddTool(mcp.NewTool("get_entry",
		mcp.WithDescription("Read one heritage entry with its attachments."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Entry identifier")),
	), s.getEntry)

	s.mcp.AddTool(mcp.NewTool("corpus_stats",
		mcp.WithDescription("Aggregate statistics: totals, entries per category, per day and per contributor."),
	), s.corpusStats)

	s.mcp.AddTool(mcp.NewTool("lookup_place",
		mcp.WithDescription("Best-effort encyclopedia summary and geocoding for a place name."),
		mcp.WithString("place", mcp.Required(), mcp.Description("Place name, e.g. Hampi")),
	), s.lookupPlace)

	s.mcp.AddTool(mcp.NewTool("get_entry_contract",
		mcp.WithDescription("Returns the BharathVani entry format: fields, categories and historical periods."),
	), s.getEntryContract)

	// Resource: entry format contract.
	s.mcp.AddResource(
		mcp.NewResource(contractURI, "Entry Format Contract",
			mcp.WithResourceDescription("Fields and vocabularies of a heritage entry."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readEntryFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) searchEntries(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	size := req.GetInt("size", defaultPageSize)
	if size <= 0 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}
	res, err := s.entries.ListEntries(ctx, corpus.Query{
		Filter: corpus.Filter{
			Text:        req.GetString("q", ""),
			Category:    req.GetString("category", ""),
			Contributor: req.GetString("contributor", ""),
		},
		Page: corpus.Page{Number: req.GetInt("page", 1), Size: size},
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(res)
}

func (s *Server) getEntry(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	e, err := s.entries.GetEntry(ctx, id)
	if errors.Is(err, apperr.ErrNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", id)), nil
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(e)
}

func (s *Server) corpusStats(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rep, err := s.entries.Stats(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(rep)
}

func (s *Server) lookupPlace(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	place, err := req.RequireString("place")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if s.lookup == nil || !s.lookup.Enabled() {
		return mcp.NewToolResultText("lookups are disabled"), nil
	}
	res := s.lookup.Search(ctx, place)
	if res.Wikipedia == nil && res.OpenStreetMap == nil {
		return mcp.NewToolResultText("no information found"), nil
	}
	return jsonResult(res)
}

func (s *Server) getEntryContract(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(EntryFormatContract), nil
}

func (s *Server) readEntryFormatResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      contractURI,
			MIMEType: "text/markdown",
			Text:     EntryFormatContract,
		},
	}, nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}
