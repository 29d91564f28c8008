// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes the research note tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/fathom/internal/apperr"
	"github.com/starford/fathom/internal/models"
	"github.com/starford/fathom/internal/noteservice"
	"github.com/starford/fathom/internal/storage"
)

// NoteFormatURI is the resource URI of the mirror format description.
const NoteFormatURI = "fathom://note-format"

// Server wraps the MCP server with the research tools.
type Server struct {
	mcp *server.MCPServer
	svc *noteservice.Service
	fs  storage.Provider
}

// New creates a new MCP server with all research tools registered.
func New(svc *noteservice.Service, fs storage.Provider, version string) *Server {
	s := &Server{svc: svc, fs: fs}

	s.mcp = server.NewMCPServer(
		"fathom",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("research_add",
		mcp.WithDescription("Store a research note. The note is indexed for search and mirrored "+
			"as Markdown in the workspace. Notes cannot be edited or deleted afterwards."),
		mcp.WithString("topic", mcp.Required(), mcp.Description("Short subject of the note")),
		mcp.WithString("query", mcp.Required(), mcp.Description("The question that was researched")),
		mcp.WithString("summary", mcp.Required(), mcp.Description("Findings in a few sentences")),
		mcp.WithString("raw_findings", mcp.Description("Longer unprocessed findings")),
		mcp.WithString("sources", mcp.Description(`JSON array like [{"url":"...","title":"...","accessed":"2024-05-01"}]`)),
		mcp.WithString("tags", mcp.Description("Comma-separated tags")),
		mcp.WithString("confidence", mcp.Description("low, medium (default) or high"), mcp.Enum("low", "medium", "high")),
		mcp.WithString("session_dir", mcp.Description("Session directory returned by research_create_session")),
		mcp.WithString("session_type", mcp.Description("Session type"), mcp.Enum("deep-research", "quick-lookup", "spike")),
	), s.addNote)

	s.mcp.AddTool(mcp.NewTool("research_search",
		mcp.WithDescription("Full-text search across topic, query, summary, raw findings, tags and session type. "+
			"Results are ordered by relevance."),
		mcp.WithString("term", mcp.Required(), mcp.Description("Search expression")),
		mcp.WithNumber("limit", mcp.Description("Max results (0 = all)")),
	), s.search)

	s.mcp.AddTool(mcp.NewTool("research_get",
		mcp.WithDescription("Read one note by id."),
		mcp.WithNumber("id", mcp.Required(), mcp.Description("Note id")),
	), s.getNote)

	s.mcp.AddTool(mcp.NewTool("research_list",
		mcp.WithDescription("List the newest notes."),
		mcp.WithNumber("limit", mcp.Description("Max notes (default 20)")),
	), s.listNotes)

	s.mcp.AddTool(mcp.NewTool("research_query",
		mcp.WithDescription("Filter notes by one field: topic or tag substring, created since a date, or exact session type. "+
			"When several are given the first in that order wins."),
		mcp.WithString("topic", mcp.Description("Topic substring")),
		mcp.WithString("tag", mcp.Description("Tag substring")),
		mcp.WithString("since", mcp.Description("Date (2006-01-02) or RFC 3339 timestamp")),
		mcp.WithString("session_type", mcp.Description("Exact session type")),
	), s.query)

	s.mcp.AddTool(mcp.NewTool("research_topics",
		mcp.WithDescription("Count notes per topic, most frequent first."),
	), s.topics)

	s.mcp.AddTool(mcp.NewTool("research_tags",
		mcp.WithDescription("Count notes per tag, most frequent first."),
	), s.tags)

	s.mcp.AddTool(mcp.NewTool("research_export",
		mcp.WithDescription("Export every note as JSON or Markdown."),
		mcp.WithString("format", mcp.Description("json (default) or markdown"), mcp.Enum("json", "md", "markdown")),
	), s.export)

	s.mcp.AddTool(mcp.NewTool("research_create_session",
		mcp.WithDescription("Create a session directory with notes/ and artifacts/ (plus src/ for spikes). "+
			"Pass the returned dir as session_dir when adding notes."),
		mcp.WithString("type", mcp.Required(), mcp.Description("Session type"), mcp.Enum("deep-research", "quick-lookup", "spike")),
		mcp.WithString("topic", mcp.Required(), mcp.Description("Session topic")),
	), s.createSession)

	s.mcp.AddTool(mcp.NewTool("research_save_artifact",
		mcp.WithDescription("Save a file into a session's artifacts/ directory. "+
			"Content is plain text or a base64 data URI (data:<mime>;base64,<data>)."),
		mcp.WithString("session", mcp.Required(), mcp.Description("Session directory name, e.g. spike-cache-design")),
		mcp.WithString("content", mcp.Required(), mcp.Description("Text or base64 data URI")),
		mcp.WithString("filename", mcp.Description("Target file name; generated when empty")),
	), s.saveArtifact)

	s.mcp.AddTool(mcp.NewTool("research_note_format",
		mcp.WithDescription("Describe the Markdown layout of mirrored notes and the workspace structure."),
	), s.noteFormat)

	s.mcp.AddResource(
		mcp.NewResource(NoteFormatURI, "Note Mirror Format",
			mcp.WithResourceDescription("Markdown layout of mirrored research notes and workspace structure."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readNoteFormatResource,
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

func errorResult(err error) (*mcp.CallToolResult, error) {
	if errors.Is(err, apperr.ErrNotFound) {
		return mcp.NewToolResultError("not found"), nil
	}
	return mcp.NewToolResultError(err.Error()), nil
}

func (s *Server) addNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var n models.Note
	var err error
	if n.Topic, err = req.RequireString("topic"); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if n.Query, err = req.RequireString("query"); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if n.Summary, err = req.RequireString("summary"); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	n.RawFindings = req.GetString("raw_findings", "")
	n.Sources = req.GetString("sources", "")
	n.Tags = models.SplitTags(req.GetString("tags", ""))
	n.Confidence = models.Confidence(req.GetString("confidence", ""))
	n.SessionDir = req.GetString("session_dir", "")
	n.SessionType = models.SessionType(req.GetString("session_type", ""))

	res, err := s.svc.AddNote(ctx, n)
	if err != nil {
		return errorResult(err)
	}
	return jsonResult(res)
}

func (s *Server) search(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	term, err := req.RequireString("term")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	notes, err := s.svc.Search(ctx, term, req.GetInt("limit", 0))
	if err != nil {
		return errorResult(err)
	}
	return jsonResult(notes)
}

func (s *Server) getNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireInt("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	note, err := s.svc.Get(ctx, int64(id))
	if err != nil {
		return errorResult(err)
	}
	return jsonResult(note)
}

func (s *Server) listNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	notes, err := s.svc.List(ctx, req.GetInt("limit", 0))
	if err != nil {
		return errorResult(err)
	}
	return jsonResult(notes)
}

func (s *Server) query(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	notes, err := s.svc.Query(ctx, noteservice.Filter{
		Topic:       req.GetString("topic", ""),
		Tag:         req.GetString("tag", ""),
		Since:       req.GetString("since", ""),
		SessionType: req.GetString("session_type", ""),
	})
	if err != nil {
		return errorResult(err)
	}
	return jsonResult(notes)
}

func (s *Server) topics(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	topics, err := s.svc.Topics(ctx)
	if err != nil {
		return errorResult(err)
	}
	return jsonResult(topics)
}

func (s *Server) tags(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tags, err := s.svc.Tags(ctx)
	if err != nil {
		return errorResult(err)
	}
	return jsonResult(tags)
}

func (s *Server) export(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	out, err := s.svc.Export(ctx, req.GetString("format", ""))
	if err != nil {
		return errorResult(err)
	}
	return mcp.NewToolResultText(out), nil
}

func (s *Server) createSession(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	typ, err := req.RequireString("type")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	topic, err := req.RequireString("topic")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	sess, err := s.svc.CreateSession(ctx, models.SessionType(typ), topic)
	if err != nil {
		return errorResult(err)
	}
	return jsonResult(sess)
}

func (s *Server) noteFormat(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(NoteFormatContract), nil
}

func (s *Server) readNoteFormatResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      NoteFormatURI,
			MIMEType: "text/markdown",
			Text:     NoteFormatContract,
		},
	}, nil
}
