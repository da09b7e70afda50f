package mcp

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/zerx-lab/penbridge/internal/errors"
	"github.com/zerx-lab/penbridge/internal/ops"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	env *ops.Env
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(env *ops.Env) *Handlers {
	return &Handlers{env: env}
}

// Request types for each tool

// ImportArticleRequest represents the arguments for article_import.
type ImportArticleRequest struct {
	Path    string `json:"path,omitempty"`
	Content string `json:"content,omitempty"`
	Title   string `json:"title,omitempty"`
	Tags    string `json:"tags,omitempty"`
	Mode    string `json:"mode,omitempty"`
}

// ListArticlesRequest represents the arguments for article_list.
type ListArticlesRequest struct {
	Limit          int  `json:"limit,omitempty"`
	Offset         int  `json:"offset,omitempty"`
	IncludeDeleted bool `json:"include_deleted,omitempty"`
}

// ShowArticleRequest represents the arguments for article_show.
type ShowArticleRequest struct {
	ID             string `json:"id,omitempty"`
	Title          string `json:"title,omitempty"`
	IncludeDeleted bool   `json:"include_deleted,omitempty"`
}

// DeleteArticleRequest represents the arguments for article_delete.
type DeleteArticleRequest struct {
	ID    string `json:"id,omitempty"`
	Title string `json:"title,omitempty"`
}

// PurgeArticlesRequest represents the arguments for article_purge.
type PurgeArticlesRequest struct {
	OlderThanDays int `json:"older_than_days,omitempty"`
}

// SetTargetRequest represents the arguments for set_target.
// Pointer fields distinguish "not provided" from empty.
type SetTargetRequest struct {
	ID        string  `json:"id,omitempty"`
	Title     string  `json:"title,omitempty"`
	Platform  string  `json:"platform"`
	Brief     *string `json:"brief,omitempty"`
	Category  *string `json:"category,omitempty"`
	TagIDs    *string `json:"tag_ids,omitempty"`
	Original  *bool   `json:"original,omitempty"`
	SourceURL *string `json:"source_url,omitempty"`
}

// PublishRequest represents the arguments for publish_article and save_draft.
type PublishRequest struct {
	ID       string `json:"id,omitempty"`
	Title    string `json:"title,omitempty"`
	Platform string `json:"platform"`
}

// ReconcileRequest represents the arguments for reconcile_statuses.
type ReconcileRequest struct {
	Platform string `json:"platform,omitempty"`
}

// SearchTagsRequest represents the arguments for search_tags.
type SearchTagsRequest struct {
	Platform string `json:"platform"`
	Keyword  string `json:"keyword"`
}

// RecommendTagsRequest represents the arguments for recommend_tags.
type RecommendTagsRequest struct {
	ID       string `json:"id,omitempty"`
	Title    string `json:"title,omitempty"`
	Platform string `json:"platform"`
}

// PlatformRequest represents the arguments for session_capture and session_end.
type PlatformRequest struct {
	Platform string `json:"platform"`
}

// SessionImportRequest represents the arguments for session_import.
type SessionImportRequest struct {
	Platform string `json:"platform"`
	Cookies  string `json:"cookies"`
}

// ExportBackupRequest represents the arguments for export_backup.
type ExportBackupRequest struct {
	Path           string `json:"path,omitempty"`
	IncludeDeleted bool   `json:"include_deleted,omitempty"`
}

// ImportBackupRequest represents the arguments for import_backup.
type ImportBackupRequest struct {
	Path string `json:"path"`
	Mode string `json:"mode,omitempty"`
}

// Handler implementations

// HandleImportArticle handles the article_import tool call.
func (h *Handlers) HandleImportArticle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ImportArticleRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.ImportArticle(h.env, ops.ImportArticleInput{
		Path:    input.Path,
		Content: input.Content,
		Title:   input.Title,
		Tags:    splitList(input.Tags),
		Mode:    ops.ImportMode(input.Mode),
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleListArticles handles the article_list tool call.
func (h *Handlers) HandleListArticles(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ListArticlesRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.ListArticles(h.env, ops.ListArticlesInput{
		Limit:          input.Limit,
		Offset:         input.Offset,
		IncludeDeleted: input.IncludeDeleted,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleShowArticle handles the article_show tool call.
func (h *Handlers) HandleShowArticle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ShowArticleRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.ShowArticle(h.env, ops.ShowArticleInput{
		ID:             input.ID,
		Title:          input.Title,
		IncludeDeleted: input.IncludeDeleted,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleDeleteArticle handles the article_delete tool call.
func (h *Handlers) HandleDeleteArticle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[DeleteArticleRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.DeleteArticle(h.env, ops.DeleteArticleInput{
		ID:    input.ID,
		Title: input.Title,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandlePurgeArticles handles the article_purge tool call.
func (h *Handlers) HandlePurgeArticles(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[PurgeArticlesRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.PurgeArticles(h.env, ops.PurgeArticlesInput{
		OlderThanDays: input.OlderThanDays,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleSetTarget handles the set_target tool call.
func (h *Handlers) HandleSetTarget(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SetTargetRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	var tagIDs *[]string
	if input.TagIDs != nil {
		ids := splitList(*input.TagIDs)
		tagIDs = &ids
	}

	result, err := ops.SetTarget(h.env, ops.SetTargetInput{
		ID:        input.ID,
		Title:     input.Title,
		Platform:  input.Platform,
		Brief:     input.Brief,
		Category:  input.Category,
		TagIDs:    tagIDs,
		Original:  input.Original,
		SourceURL: input.SourceURL,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandlePublishArticle handles the publish_article tool call.
func (h *Handlers) HandlePublishArticle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[PublishRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.PublishArticle(ctx, h.env, ops.PublishArticleInput{
		ID:       input.ID,
		Title:    input.Title,
		Platform: input.Platform,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleSaveDraft handles the save_draft tool call.
func (h *Handlers) HandleSaveDraft(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[PublishRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.SaveDraft(ctx, h.env, ops.SaveDraftInput{
		ID:       input.ID,
		Title:    input.Title,
		Platform: input.Platform,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleReconcileStatuses handles the reconcile_statuses tool call.
func (h *Handlers) HandleReconcileStatuses(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ReconcileRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.ReconcileStatuses(ctx, h.env, ops.ReconcileStatusesInput{
		Platform: input.Platform,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleSearchTags handles the search_tags tool call.
func (h *Handlers) HandleSearchTags(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SearchTagsRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.SearchTags(ctx, h.env, ops.SearchTagsInput{
		Platform: input.Platform,
		Keyword:  input.Keyword,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleRecommendTags handles the recommend_tags tool call.
func (h *Handlers) HandleRecommendTags(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[RecommendTagsRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.RecommendTags(ctx, h.env, ops.RecommendTagsInput{
		ID:       input.ID,
		Title:    input.Title,
		Platform: input.Platform,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleSessionCapture handles the session_capture tool call.
func (h *Handlers) HandleSessionCapture(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[PlatformRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.SessionCapture(ctx, h.env, ops.SessionCaptureInput{
		Platform: input.Platform,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleSessionStatus handles the session_status tool call.
func (h *Handlers) HandleSessionStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := ops.SessionStatus(h.env)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleSessionEnd handles the session_end tool call.
func (h *Handlers) HandleSessionEnd(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[PlatformRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.SessionEnd(h.env, ops.SessionEndInput{
		Platform: input.Platform,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleSessionImport handles the session_import tool call.
func (h *Handlers) HandleSessionImport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SessionImportRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.SessionImport(h.env, ops.SessionImportInput{
		Platform:    input.Platform,
		CookiesJSON: input.Cookies,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleExportBackup handles the export_backup tool call.
func (h *Handlers) HandleExportBackup(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ExportBackupRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.ExportBackup(ctx, h.env, ops.ExportBackupInput{
		Path:           input.Path,
		IncludeDeleted: input.IncludeDeleted,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleImportBackup handles the import_backup tool call.
func (h *Handlers) HandleImportBackup(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ImportBackupRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.ImportBackup(h.env, ops.ImportBackupInput{
		Path: input.Path,
		Mode: ops.ImportMode(input.Mode),
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// Helpers

// splitList parses a comma-separated parameter into trimmed items.
func splitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	var items []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}

// Result helpers

// errorResult creates an MCP error result from any error.
// Uses IsError: true so MCP clients recognize failures properly.
// Internal error details are not exposed; they can carry file paths or
// SQL text.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	if bErr, ok := errors.AsBridgeError(err); ok {
		errorObj := map[string]any{
			"code":    bErr.Code,
			"message": bErr.Message,
			"status":  bErr.Status,
		}
		if bErr.Code != errors.ErrInternal && bErr.Details != nil {
			errorObj["details"] = bErr.Details
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
