// Package mcpserver exposes the chat agent as MCP tools over stdio, so other
// assistants can hand a support conversation to T-Help.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/comigor/thelp-go/internal/agent"
	"github.com/comigor/thelp-go/internal/logger"
)

const (
	serverName    = "thelp"
	serverVersion = "1.0.0"
)

// Server wraps an agent with MCP tool handlers.
type Server struct {
	agent *agent.Agent
	mcp   *server.MCPServer
}

// New registers the send_message and get_chat_history tools.
func New(a *agent.Agent) *Server {
	s := &Server{agent: a}
	s.mcp = server.NewMCPServer(serverName, serverVersion, server.WithToolCapabilities(false))

	s.mcp.AddTool(mcp.NewTool("send_message",
		mcp.WithDescription("Send a customer message to the Telkom technical support assistant and get its reply."),
		mcp.WithString("message", mcp.Required(), mcp.Description("The customer's message.")),
		mcp.WithString("session_id", mcp.Description("Conversation to continue. A new one is started when omitted.")),
	), s.sendMessage)

	s.mcp.AddTool(mcp.NewTool("get_chat_history",
		mcp.WithDescription("Return the messages of a support conversation as JSON."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Conversation id returned by send_message.")),
	), s.getChatHistory)

	return s
}

// ServeStdio blocks serving MCP over stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

type sendMessageResult struct {
	SessionID string `json:"session_id"`
	Reply     string `json:"reply"`
	Model     string `json:"model,omitempty"`
}

func (s *Server) sendMessage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	message, err := req.RequireString("message")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	sessionID := req.GetString("session_id", "")

	out, err := s.agent.HandleTurn(ctx, agent.TurnInput{SessionID: sessionID, Text: message})
	if errors.Is(err, agent.ErrEmptyContent) {
		return mcp.NewToolResultError("message must not be empty"), nil
	}
	if err != nil {
		logger.FromContext(ctx).Error("mcp send_message failed", "error", err)
		return nil, err
	}
	return jsonResult(sendMessageResult{SessionID: out.SessionID, Reply: out.AssistantMessage.Content, Model: out.Result.Model})
}

func (s *Server) getChatHistory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, err := req.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(s.agent.History(sessionID))
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(b)), nil
}
