package mcp

import (
	"context"
	"encoding/json"
	stderrors "errors"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/lookout/internal/errors"
	"github.com/hpungsan/lookout/internal/status"
	"github.com/hpungsan/lookout/internal/store"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	model *status.Model
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(model *status.Model) *Handlers {
	return &Handlers{model: model}
}

// StatusUpdateRequest represents the arguments for status_update.
type StatusUpdateRequest struct {
	Status map[string]any `json:"status,omitempty"`
	Title  *string        `json:"title,omitempty"`
	Detail *string        `json:"detail,omitempty"`
}

// TasksReplaceRequest represents the arguments for tasks_replace.
type TasksReplaceRequest struct {
	Tasks json.RawMessage `json:"tasks"`
}

// RequestUpdateRequest represents the arguments for request_update.
// Status and notes are re-encoded and parsed the same way as the HTTP body.
type RequestUpdateRequest struct {
	ID *int `json:"id"`
}

// HandleStatusGet handles the status_get tool call.
func (h *Handlers) HandleStatusGet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return successResult(h.model.Snapshot(ctx))
}

// HandleStatusUpdate handles the status_update tool call.
func (h *Handlers) HandleStatusUpdate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[StatusUpdateRequest](req)
	if err != nil {
		return errorResult(errors.NewMalformedInput(err.Error())), nil
	}

	partial := input.Status
	if partial == nil {
		partial = map[string]any{}
	}
	if input.Title != nil || input.Detail != nil {
		working := map[string]any{}
		if input.Title != nil {
			working["title"] = *input.Title
		}
		if input.Detail != nil {
			working["detail"] = *input.Detail
		}
		partial["working"] = working
	}
	if len(partial) == 0 {
		return errorResult(errors.NewMalformedInput("status, title or detail is required")), nil
	}

	body, err := json.Marshal(partial)
	if err != nil {
		return errorResult(errors.NewMalformedInput(err.Error())), nil
	}
	if err := h.model.ApplyStatusUpdate(ctx, body); err != nil {
		return errorResult(err), nil
	}

	return successResult(map[string]bool{"success": true})
}

// HandleTasksReplace handles the tasks_replace tool call.
func (h *Handlers) HandleTasksReplace(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[TasksReplaceRequest](req)
	if err != nil {
		return errorResult(errors.NewMalformedInput(err.Error())), nil
	}
	if len(input.Tasks) == 0 {
		return errorResult(errors.NewMalformedInput("tasks is required")), nil
	}

	tasks, err := store.ParseTasks(input.Tasks)
	if err != nil {
		return errorResult(errors.NewMalformedInput(err.Error())), nil
	}
	if err := h.model.ReplaceTasks(ctx, tasks); err != nil {
		return errorResult(err), nil
	}

	return successResult(map[string]bool{"success": true})
}

// HandleRequestUpdate handles the request_update tool call.
func (h *Handlers) HandleRequestUpdate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[RequestUpdateRequest](req)
	if err != nil {
		return errorResult(errors.NewMalformedInput(err.Error())), nil
	}
	if input.ID == nil {
		return errorResult(errors.NewMalformedInput("id is required")), nil
	}
	if *input.ID < 0 {
		return errorResult(errors.NewMalformedInput("id must not be negative")), nil
	}

	fields := map[string]any{}
	args := req.GetArguments()
	for _, key := range []string{"status", "notes"} {
		if v, ok := args[key]; ok {
			fields[key] = v
		}
	}
	body, err := json.Marshal(fields)
	if err != nil {
		return errorResult(errors.NewMalformedInput(err.Error())), nil
	}
	update, err := status.ParseRequestUpdate(body)
	if err != nil {
		return errorResult(err), nil
	}

	rec, err := h.model.ApplyRequestUpdate(ctx, *input.ID, update)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(map[string]any{
		"success": true,
		"request": rec,
	})
}

// Result helpers

// errorResult creates an MCP error result from any error.
// Uses IsError: true so MCP clients recognize failures properly.
// Internal and persistence causes are not exposed.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	var dErr *errors.DashError
	if stderrors.As(err, &dErr) {
		errorObj := map[string]any{
			"code":    dErr.Code,
			"message": dErr.Message,
			"status":  dErr.Status,
		}
		if dErr.Code != errors.ErrInternal && dErr.Details != nil {
			errorObj["details"] = dErr.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    "INTERNAL",
				"message": "an internal error occurred",
				"status":  500,
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
