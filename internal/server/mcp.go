package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spigell/resume-butler/internal/export"
	"github.com/spigell/resume-butler/internal/session"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// NewMCPServer registers the assistant tools. Version is reported to clients.
func NewMCPServer(deps Deps, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"resume-butler",
		version,
		server.WithToolCapabilities(true),
		server.WithInstructions("resume-butler builds and improves resumes through a guided conversation. Start a session, then send the user's messages to it."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("start_session",
			mcp.WithDescription("Start a new resume conversation and return its session id."),
		),
		mcpStartSession(deps),
	)

	s.AddTool(
		mcp.NewTool("send_message",
			mcp.WithDescription("Send a user message to a session and return the assistant reply."),
			mcp.WithString("session_id", mcp.Description("Session id from start_session"), mcp.Required()),
			mcp.WithString("text", mcp.Description("The user's message"), mcp.Required()),
		),
		mcpSendMessage(deps),
	)

	s.AddTool(
		mcp.NewTool("completion_status",
			mcp.WithDescription("Report how complete the session profile is and which fields are missing."),
			mcp.WithString("session_id", mcp.Description("Session id"), mcp.Required()),
		),
		mcpCompletionStatus(deps),
	)

	s.AddTool(
		mcp.NewTool("upload_resume",
			mcp.WithDescription("Load an existing resume into the session profile."),
			mcp.WithString("session_id", mcp.Description("Session id"), mcp.Required()),
			mcp.WithString("filename", mcp.Description("File name; the extension selects the parser (txt, md, pdf, docx)"), mcp.Required()),
			mcp.WithString("content", mcp.Description("File content"), mcp.Required()),
			mcp.WithString("encoding", mcp.Description("\"text\" (default) or \"base64\" for binary files")),
		),
		mcpUploadResume(deps),
	)

	s.AddTool(
		mcp.NewTool("set_job_description",
			mcp.WithDescription("Set the job the user is applying for, as text or a URL."),
			mcp.WithString("session_id", mcp.Description("Session id"), mcp.Required()),
			mcp.WithString("text", mcp.Description("Job description text")),
			mcp.WithString("url", mcp.Description("Job posting URL")),
		),
		mcpSetJobDescription(deps),
	)

	s.AddTool(
		mcp.NewTool("match_resume",
			mcp.WithDescription("Assess how well the session resume fits the job description."),
			mcp.WithString("session_id", mcp.Description("Session id"), mcp.Required()),
		),
		mcpMatch(deps),
	)

	s.AddTool(
		mcp.NewTool("export_resume",
			mcp.WithDescription("Export the generated resume. Text formats are returned inline, binary formats base64 encoded."),
			mcp.WithString("session_id", mcp.Description("Session id"), mcp.Required()),
			mcp.WithString("format", mcp.Description("One of docx, md, txt, html (default md)")),
		),
		mcpExport(deps),
	)

	return s
}

func mcpStartSession(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sess, err := deps.Sessions.Create(ctx)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to start session: %v", err)), nil
		}
		return mcpText(sess.ID), nil
	}
}

func mcpSendMessage(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sess, errResult := mcpSession(deps, req)
		if errResult != nil {
			return errResult, nil
		}
		text, err := req.RequireString("text")
		if err != nil {
			return mcpError("text is required"), nil
		}

		resp, err := deps.Assistant.ProcessMessage(ctx, sess, text)
		if err != nil {
			return mcpError(fmt.Sprintf("message failed: %v", err)), nil
		}
		if resp.Artifact == nil {
			return mcpText(resp.Text), nil
		}
		return mcpJSON(map[string]any{
			"text":     resp.Text,
			"filename": resp.Artifact.Filename,
			"mime":     resp.Artifact.MIME,
			"content":  base64.StdEncoding.EncodeToString(resp.Artifact.Content),
		})
	}
}

func mcpCompletionStatus(deps Deps) server.ToolHandlerFunc {
	return func(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sess, errResult := mcpSession(deps, req)
		if errResult != nil {
			return errResult, nil
		}
		return mcpJSON(deps.Assistant.CompletionStatus(sess))
	}
}

func mcpUploadResume(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sess, errResult := mcpSession(deps, req)
		if errResult != nil {
			return errResult, nil
		}
		filename, err := req.RequireString("filename")
		if err != nil {
			return mcpError("filename is required"), nil
		}
		content, err := req.RequireString("content")
		if err != nil {
			return mcpError("content is required"), nil
		}

		data := []byte(content)
		if strings.EqualFold(req.GetString("encoding", "text"), "base64") {
			data, err = base64.StdEncoding.DecodeString(content)
			if err != nil {
				return mcpError(fmt.Sprintf("invalid base64 content: %v", err)), nil
			}
		}

		status, err := deps.Assistant.Upload(ctx, sess, filename, data)
		if err != nil {
			return mcpError(fmt.Sprintf("upload failed: %v", err)), nil
		}
		return mcpJSON(status)
	}
}

func mcpSetJobDescription(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sess, errResult := mcpSession(deps, req)
		if errResult != nil {
			return errResult, nil
		}

		text := req.GetString("text", "")
		if url := req.GetString("url", ""); text == "" && url != "" {
			if deps.Jobs == nil {
				return mcpError("fetching job descriptions by url is disabled"), nil
			}
			fetched, err := deps.Jobs.Fetch(ctx, url)
			if err != nil {
				return mcpError(fmt.Sprintf("failed to fetch job description: %v", err)), nil
			}
			text = fetched
		}

		if err := deps.Assistant.SetJobDescription(sess, text); err != nil {
			return mcpError(err.Error()), nil
		}
		return mcpText(fmt.Sprintf("Job description stored (%d characters).", len(text))), nil
	}
}

func mcpMatch(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sess, errResult := mcpSession(deps, req)
		if errResult != nil {
			return errResult, nil
		}
		resp, err := deps.Assistant.Match(ctx, sess)
		if err != nil {
			return mcpError(fmt.Sprintf("match failed: %v", err)), nil
		}
		return mcpText(resp.Text), nil
	}
}

func mcpExport(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sess, errResult := mcpSession(deps, req)
		if errResult != nil {
			return errResult, nil
		}

		format := req.GetString("format", string(export.FormatMarkdown))
		artifact, err := deps.Assistant.Export(ctx, sess, format)
		if err != nil {
			return mcpError(fmt.Sprintf("export failed: %v", err)), nil
		}

		if strings.HasPrefix(artifact.MIME, "text/") {
			return mcpText(string(artifact.Content)), nil
		}
		return mcpJSON(map[string]any{
			"filename": artifact.Filename,
			"mime":     artifact.MIME,
			"content":  base64.StdEncoding.EncodeToString(artifact.Content),
		})
	}
}

func mcpSession(deps Deps, req mcp.CallToolRequest) (*session.Session, *mcp.CallToolResult) {
	id, err := req.RequireString("session_id")
	if err != nil {
		return nil, mcpError("session_id is required")
	}
	sess, err := deps.Sessions.Get(id)
	if err != nil {
		return nil, mcpError(err.Error())
	}
	return sess, nil
}

func mcpJSON(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcpError(fmt.Sprintf("failed to encode result: %v", err)), nil
	}
	return mcpText(string(data)), nil
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
