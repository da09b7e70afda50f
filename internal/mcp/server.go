package mcp

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/zerx-lab/penbridge/internal/ops"
)

// KnownTypes lists all valid tool type names.
var KnownTypes = []string{"article", "publish", "session", "backup"}

// toolEntry pairs a tool definition with its type and a handler factory.
type toolEntry struct {
	def     mcp.Tool
	typ     string
	handler func(*Handlers) server.ToolHandlerFunc
}

// toolRegistry maps tool names to their definitions and handler factories.
var toolRegistry = map[string]toolEntry{
	"article_import": {
		def: importArticleToolDef, typ: "article",
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleImportArticle },
	},
	"article_list": {
		def: listArticlesToolDef, typ: "article",
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleListArticles },
	},
	"article_show": {
		def: showArticleToolDef, typ: "article",
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleShowArticle },
	},
	"article_delete": {
		def: deleteArticleToolDef, typ: "article",
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleDeleteArticle },
	},
	"article_purge": {
		def: purgeArticlesToolDef, typ: "article",
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandlePurgeArticles },
	},
	"set_target": {
		def: setTargetToolDef, typ: "article",
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSetTarget },
	},
	"publish_article": {
		def: publishArticleToolDef, typ: "publish",
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandlePublishArticle },
	},
	"save_draft": {
		def: saveDraftToolDef, typ: "publish",
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSaveDraft },
	},
	"reconcile_statuses": {
		def: reconcileToolDef, typ: "publish",
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleReconcileStatuses },
	},
	"search_tags": {
		def: searchTagsToolDef, typ: "publish",
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSearchTags },
	},
	"recommend_tags": {
		def: recommendTagsToolDef, typ: "publish",
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleRecommendTags },
	},
	"session_capture": {
		def: sessionCaptureToolDef, typ: "session",
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSessionCapture },
	},
	"session_status": {
		def: sessionStatusToolDef, typ: "session",
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSessionStatus },
	},
	"session_end": {
		def: sessionEndToolDef, typ: "session",
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSessionEnd },
	},
	"session_import": {
		def: sessionImportToolDef, typ: "session",
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSessionImport },
	},
	"export_backup": {
		def: exportBackupToolDef, typ: "backup",
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleExportBackup },
	},
	"import_backup": {
		def: importBackupToolDef, typ: "backup",
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleImportBackup },
	},
}

// AllToolNames returns a list of all valid tool names.
func AllToolNames() []string {
	names := make([]string, 0, len(toolRegistry))
	for name := range toolRegistry {
		names = append(names, name)
	}
	return names
}

// ValidateDisabledTools returns a list of unknown tool names from the given list.
func ValidateDisabledTools(names []string) []string {
	unknown := make([]string, 0)
	for _, name := range names {
		if _, ok := toolRegistry[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// ValidateDisabledTypes returns a list of unknown type names from the given list.
func ValidateDisabledTypes(names []string) []string {
	known := make(map[string]bool, len(KnownTypes))
	for _, t := range KnownTypes {
		known[t] = true
	}

	unknown := make([]string, 0)
	for _, name := range names {
		if !known[name] {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// GetTypeForTool returns the type a tool belongs to, or "" for unknown tools.
func GetTypeForTool(toolName string) string {
	if entry, ok := toolRegistry[toolName]; ok {
		return entry.typ
	}
	return ""
}

// ExpandTypesToTools returns all tool names belonging to the given types.
func ExpandTypesToTools(types []string) []string {
	if len(types) == 0 {
		return nil
	}

	typeSet := make(map[string]bool, len(types))
	for _, t := range types {
		typeSet[t] = true
	}

	tools := make([]string, 0)
	for name, entry := range toolRegistry {
		if typeSet[entry.typ] {
			tools = append(tools, name)
		}
	}
	return tools
}

// NewServer creates a new MCP server with penbridge tools registered.
// Tools listed in the config's disabled_tools or belonging to its
// disabled_types are excluded from registration.
func NewServer(env *ops.Env, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"penbridge",
		version,
		server.WithToolCapabilities(true),
	)

	h := NewHandlers(env)

	// Disabled set: expand types first, then add individual tools.
	disabled := make(map[string]bool)
	for _, tool := range ExpandTypesToTools(env.Cfg.DisabledTypes) {
		disabled[tool] = true
	}
	for _, name := range env.Cfg.DisabledTools {
		disabled[name] = true
	}

	for name, entry := range toolRegistry {
		if disabled[name] {
			continue
		}
		s.AddTool(entry.def, entry.handler(h))
	}

	return s
}

// Run starts the MCP server using stdio transport.
func Run(env *ops.Env, version string) error {
	s := NewServer(env, version)
	return server.ServeStdio(s)
}

// ToolHandlerFunc is the signature for tool handlers.
type ToolHandlerFunc func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error)
