package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/voicemind/voicemind/internal/pipeline"
	"github.com/voicemind/voicemind/internal/session"
	"github.com/voicemind/voicemind/internal/storage"
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Store     *storage.Store
	Sessions  *session.Registry
	Finalizer *pipeline.Finalizer
}

// NewMCPServer creates an MCP server exposing meeting tools: listing,
// transcript and summary retrieval, and transcript Q&A.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"voicemind",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions("voicemind exposes recorded meetings: list them, read transcripts and summaries, and ask questions about what was said."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("list_meetings",
			mcp.WithDescription("List recorded meetings, newest first, with status and chunk counts."),
		),
		mcpListMeetings(deps),
	)

	s.AddTool(
		mcp.NewTool("get_transcript",
			mcp.WithDescription("Return the full transcript of a meeting, or the per-chunk segments while it is still recording."),
			mcp.WithString("meeting_id", mcp.Description("Meeting identifier"), mcp.Required()),
		),
		mcpGetTranscript(deps),
	)

	s.AddTool(
		mcp.NewTool("get_summary",
			mcp.WithDescription("Return the generated summary and agenda of a completed meeting."),
			mcp.WithString("meeting_id", mcp.Description("Meeting identifier"), mcp.Required()),
		),
		mcpGetSummary(deps),
	)

	s.AddTool(
		mcp.NewTool("ask_question",
			mcp.WithDescription("Ask a question about a completed meeting's transcript."),
			mcp.WithString("meeting_id", mcp.Description("Meeting identifier"), mcp.Required()),
			mcp.WithString("question", mcp.Description("The question to answer"), mcp.Required()),
		),
		mcpAskQuestion(deps),
	)

	return s
}

func mcpListMeetings(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		meetings, err := deps.Sessions.ListSessions()
		if err != nil {
			return mcpError(fmt.Sprintf("listing meetings: %v", err)), nil
		}

		out := make([]map[string]any, 0, len(meetings))
		for _, m := range meetings {
			out = append(out, meetingJSON(m))
		}
		b, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return mcpError(fmt.Sprintf("encoding meetings: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpGetTranscript(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		meetingID, err := req.RequireString("meeting_id")
		if err != nil {
			return mcpError("meeting_id is required"), nil
		}

		meeting, err := deps.Sessions.GetSession(meetingID)
		if err != nil {
			return mcpError(fmt.Sprintf("meeting %s: %v", meetingID, err)), nil
		}
		if meeting.FullTranscript != "" {
			return mcpText(meeting.FullTranscript), nil
		}

		chunks, err := deps.Store.ListChunks(meetingID)
		if err != nil {
			return mcpError(fmt.Sprintf("listing chunks: %v", err)), nil
		}
		if len(chunks) == 0 {
			return mcpText("No audio recorded yet."), nil
		}
		var partial []string
		for _, c := range chunks {
			if c.TranscriptSegment != "" {
				partial = append(partial, fmt.Sprintf("[chunk %d] %s", c.ChunkNumber, c.TranscriptSegment))
			}
		}
		if len(partial) == 0 {
			return mcpText("Audio recorded, transcription still pending."), nil
		}
		b, _ := json.MarshalIndent(partial, "", "  ")
		return mcpText(string(b)), nil
	}
}

func mcpGetSummary(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		meetingID, err := req.RequireString("meeting_id")
		if err != nil {
			return mcpError("meeting_id is required"), nil
		}

		meeting, err := deps.Sessions.GetSession(meetingID)
		if err != nil {
			return mcpError(fmt.Sprintf("meeting %s: %v", meetingID, err)), nil
		}
		if meeting.Status != storage.StatusCompleted {
			return mcpError(fmt.Sprintf("meeting %s is still %s; no summary yet", meetingID, meeting.Status)), nil
		}

		b, err := json.MarshalIndent(map[string]string{
			"title":   meeting.Title,
			"summary": meeting.Summary,
			"agenda":  meeting.Agenda,
		}, "", "  ")
		if err != nil {
			return mcpError(fmt.Sprintf("encoding summary: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpAskQuestion(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		meetingID, err := req.RequireString("meeting_id")
		if err != nil {
			return mcpError("meeting_id is required"), nil
		}
		question, err := req.RequireString("question")
		if err != nil {
			return mcpError("question is required"), nil
		}

		res, err := deps.Finalizer.AnswerQuestion(ctx, meetingID, question)
		if err != nil {
			return mcpError(fmt.Sprintf("answering question about %s: %v", meetingID, err)), nil
		}
		return mcpText(res.Answer), nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
