package calendar_tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

func assistantTools(a Assistant) []mcpserver.ServerTool {
	chatTool := mcp.NewTool("assistant_chat",
		mcp.WithDescription("Send one message to the calendar assistant and return its reply. "+
			"Messages mentioning the calendar are routed to list, create or mark-important operations."),
		mcp.WithString("message",
			mcp.Required(),
			mcp.Description("The user's message, in the assistant's configured language"),
		),
	)

	return []mcpserver.ServerTool{
		{
			Tool: chatTool,
			Handler: func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
				message, err := request.RequireString("message")
				if err != nil {
					return mcp.NewToolResultError("message is required"), nil
				}
				return mcp.NewToolResultText(a.Chat(ctx, message)), nil
			},
		},
	}
}
