// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes Threadbox tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/threadbox/internal/models"
	"github.com/starford/threadbox/internal/noteservice"
	"github.com/starford/threadbox/internal/store"
)

// Server wraps the MCP server with Threadbox tools.
type Server struct {
	mcp *server.MCPServer
	svc *noteservice.Service
}

// New creates a new MCP server with all Threadbox tools registered.
func New(svc *noteservice.Service) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"Threadbox",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_threads",
		mcp.WithDescription("List all threads with title, description, keywords and note count."),
	), s.listThreads)

	s.mcp.AddTool(mcp.NewTool("list_inbox",
		mcp.WithDescription("List notes that are not in any thread, with their suggested thread if one is attached."),
	), s.listInbox)

	s.mcp.AddTool(mcp.NewTool("read_thread",
		mcp.WithDescription("Read a thread with its notes and generated summaries."),
		mcp.WithString("thread_id", mcp.Required(), mcp.Description("Thread id (e.g. thread-1)")),
	), s.readThread)

	s.mcp.AddTool(mcp.NewTool("create_thread",
		mcp.WithDescription("Create a new thread. Only do this when the user asks for one."),
		mcp.WithString("title", mcp.Required(), mcp.Description("Thread title")),
		mcp.WithString("description", mcp.Description("What belongs in the thread")),
		mcp.WithString("keywords", mcp.Description("Comma separated keywords used for classification")),
		mcp.WithString("color", mcp.Description("Display color as #RRGGBB")),
	), s.createThread)

	s.mcp.AddTool(mcp.NewTool("suggest_thread",
		mcp.WithDescription("Attach a thread suggestion to a note without moving it. "+
			"Read the protocol first via get_classification_protocol or the "+
			ClassificationProtocolURI+" resource."),
		mcp.WithString("note_id", mcp.Required(), mcp.Description("Note id")),
		mcp.WithString("thread_id", mcp.Required(), mcp.Description("Suggested thread id")),
		mcp.WithNumber("confidence", mcp.Required(), mcp.Description("Probability in [0, 1]")),
		mcp.WithString("reasoning", mcp.Description("One short sentence")),
	), s.suggestThread)

	s.mcp.AddTool(mcp.NewTool("move_note",
		mcp.WithDescription("Move a note into a thread."),
		mcp.WithString("note_id", mcp.Required(), mcp.Description("Note id")),
		mcp.WithString("thread_id", mcp.Required(), mcp.Description("Target thread id")),
	), s.moveNote)

	s.mcp.AddTool(mcp.NewTool("approve_suggestion",
		mcp.WithDescription("Move a note into the thread it was suggested for."),
		mcp.WithString("note_id", mcp.Required(), mcp.Description("Note id")),
	), s.approveSuggestion)

	s.mcp.AddTool(mcp.NewTool("generate_summary",
		mcp.WithDescription("Generate a Markdown summary of a thread. The thread must have at least one note."),
		mcp.WithString("thread_id", mcp.Required(), mcp.Description("Thread id")),
	), s.generateSummary)

	s.mcp.AddTool(mcp.NewTool("search_notes",
		mcp.WithDescription("Full-text search through note subjects, senders and bodies."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
	), s.searchNotes)

	s.mcp.AddTool(mcp.NewTool("import_message",
		mcp.WithDescription("Fetch a .md or .eml message from an http(s) URL or a base64 data URI "+
			"and ingest it into the inbox."),
		mcp.WithString("url", mcp.Required(), mcp.Description("http(s) URL or data:<mime>;base64,<data>")),
		mcp.WithString("filename", mcp.Description("Optional name used to pick the format (.md or .eml)")),
	), s.importMessage)

	s.mcp.AddTool(mcp.NewTool("get_classification_protocol",
		mcp.WithDescription("Returns the suggest/approve protocol for sorting inbox notes into threads. "+
			"Call this before suggesting or approving."),
	), s.getClassificationProtocol)

	s.mcp.AddResource(
		mcp.NewResource(ClassificationProtocolURI, "Classification Protocol",
			mcp.WithResourceDescription("How to suggest and approve thread assignments for inbox notes."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readClassificationProtocol,
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

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) listThreads(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.svc.Threads())
}

func (s *Server) listInbox(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	items := s.svc.Inbox()
	if len(items) == 0 {
		return mcp.NewToolResultText("inbox is empty"), nil
	}
	return jsonResult(items)
}

func (s *Server) readThread(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("thread_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	d, err := s.svc.ThreadDetail(id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(d)
}

func (s *Server) createThread(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title, err := req.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	in := store.ThreadInput{
		Title:       title,
		Description: req.GetString("description", ""),
		Keywords:    splitKeywords(req.GetString("keywords", "")),
		Color:       req.GetString("color", ""),
	}
	if !models.ValidColor(in.Color) {
		return mcp.NewToolResultError("color must be a #RRGGBB color"), nil
	}
	t, err := s.svc.CreateThread(ctx, in)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(t)
}

func splitKeywords(s string) []string {
	var out []string
	for _, k := range strings.Split(s, ",") {
		if k = strings.TrimSpace(k); k != "" {
			out = append(out, k)
		}
	}
	return out
}

func (s *Server) suggestThread(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	noteID, err := req.RequireString("note_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	threadID, err := req.RequireString("thread_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	conf, err := req.RequireFloat("confidence")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if conf < 0 || conf > 1 {
		return mcp.NewToolResultError(fmt.Sprintf("confidence must be in [0, 1], got %g", conf)), nil
	}
	n, err := s.svc.AttachClassification(ctx, noteID, models.Classification{
		ThreadID:   threadID,
		Confidence: conf,
		Reasoning:  req.GetString("reasoning", ""),
		ModelUsed:  "mcp-client",
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(n)
}

func (s *Server) moveNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	noteID, err := req.RequireString("note_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	threadID, err := req.RequireString("thread_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	n, err := s.svc.MoveNote(ctx, noteID, threadID)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("moved: %s -> %s", n.ID, threadID)), nil
}

func (s *Server) approveSuggestion(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	noteID, err := req.RequireString("note_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	n, err := s.svc.ApproveSuggestion(ctx, noteID)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	threadID := ""
	if n.ThreadID != nil {
		threadID = *n.ThreadID
	}
	return mcp.NewToolResultText(fmt.Sprintf("approved: %s -> %s", n.ID, threadID)), nil
}

func (s *Server) generateSummary(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("thread_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	g, err := s.svc.GenerateSummary(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(g.Content), nil
}

func (s *Server) searchNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	hits, err := s.svc.Search(ctx, query, 20)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(hits) == 0 {
		return mcp.NewToolResultText("no matches"), nil
	}
	return jsonResult(hits)
}

func (s *Server) getClassificationProtocol(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(ClassificationProtocol), nil
}

func (s *Server) readClassificationProtocol(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      ClassificationProtocolURI,
			MIMEType: "text/markdown",
			Text:     ClassificationProtocol,
		},
	}, nil
}
