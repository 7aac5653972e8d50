package mcp

import "github.com/mark3labs/mcp-go/mcp"

var statusGetToolDef = mcp.NewTool("status_get",
	mcp.WithDescription("Return the current dashboard snapshot: working state, timestamps, todo/queue/done lists and requests."),
	mcp.WithReadOnlyHintAnnotation(true),
)

var statusUpdateToolDef = mcp.NewTool("status_update",
	mcp.WithDescription("Shallow-merge keys into the dashboard status. lastUpdated and lastActivity are stamped by the server. "+
		"title/detail are shorthand for working: {title, detail}."),
	mcp.WithObject("status",
		mcp.Description("Top-level keys to merge, e.g. {\"working\": {\"title\": \"Build\", \"detail\": \"compiling\"}}"),
	),
	mcp.WithString("title",
		mcp.Description("Sets working.title (replaces working)"),
	),
	mcp.WithString("detail",
		mcp.Description("Sets working.detail (replaces working)"),
	),
)

var tasksReplaceToolDef = mcp.NewTool("tasks_replace",
	mcp.WithDescription("Replace the whole durable task collection {working, todo, queue, done, requests}."),
	mcp.WithDestructiveHintAnnotation(true),
	mcp.WithObject("tasks",
		mcp.Required(),
		mcp.Description("The full collection. Omitted lists are stored empty."),
	),
)

var requestUpdateToolDef = mcp.NewTool("request_update",
	mcp.WithDescription("Set status and/or notes on a request by id. approved/rejected stamps decidedAt."),
	mcp.WithNumber("id",
		mcp.Required(),
		mcp.Description("Request id"),
	),
	mcp.WithString("status",
		mcp.Description("New status: pending, approved or rejected. Empty leaves it unchanged."),
	),
	mcp.WithString("notes",
		mcp.Description("Replaces notes. An empty string clears them."),
	),
)
