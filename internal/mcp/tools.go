package mcp

import "github.com/mark3labs/mcp-go/mcp"

// Tool definitions. List-valued parameters are comma-separated strings;
// MCP clients handle those more reliably than JSON arrays.

var importArticleToolDef = mcp.NewTool("article_import",
	mcp.WithDescription("Import a markdown article into the local library. Front matter (title, tags, platforms) pre-configures publish targets."),
	mcp.WithString("path", mcp.Description("Path to a markdown file. Mutually exclusive with content.")),
	mcp.WithString("content", mcp.Description("Inline markdown. Mutually exclusive with path.")),
	mcp.WithString("title", mcp.Description("Article title. Required when the front matter has none.")),
	mcp.WithString("tags", mcp.Description("Comma-separated tags. Overrides front matter tags.")),
	mcp.WithString("mode", mcp.Description("Collision handling when the title already exists: error (default) or replace."),
		mcp.Enum("error", "replace")),
)

var listArticlesToolDef = mcp.NewTool("article_list",
	mcp.WithDescription("List articles ordered by most recently updated, each with its per-platform publish status."),
	mcp.WithNumber("limit", mcp.Description("Page size, default 20, max 100.")),
	mcp.WithNumber("offset", mcp.Description("Pagination offset.")),
	mcp.WithBoolean("include_deleted", mcp.Description("Include soft-deleted articles.")),
)

var showArticleToolDef = mcp.NewTool("article_show",
	mcp.WithDescription("Show one article with its body and every platform projection. Address by id or title, not both."),
	mcp.WithString("id", mcp.Description("Article ID.")),
	mcp.WithString("title", mcp.Description("Article title (case and whitespace insensitive).")),
	mcp.WithBoolean("include_deleted", mcp.Description("Allow resolving a soft-deleted article.")),
)

var deleteArticleToolDef = mcp.NewTool("article_delete",
	mcp.WithDescription("Soft-delete an article. Nothing is removed from the platforms; the local row survives until a purge."),
	mcp.WithString("id", mcp.Description("Article ID.")),
	mcp.WithString("title", mcp.Description("Article title.")),
)

var purgeArticlesToolDef = mcp.NewTool("article_purge",
	mcp.WithDescription("Permanently remove soft-deleted articles and their platform projections."),
	mcp.WithNumber("older_than_days", mcp.Description("Only purge articles deleted at least this many days ago. Default 0 purges all.")),
)

var setTargetToolDef = mcp.NewTool("set_target",
	mcp.WithDescription("Configure an article's publish settings for one platform: brief, category, tag ids, original flag, source url. Omitted fields keep their value; remote state is never touched."),
	mcp.WithString("id", mcp.Description("Article ID.")),
	mcp.WithString("title", mcp.Description("Article title.")),
	mcp.WithString("platform", mcp.Required(), mcp.Description("Target platform: devcloud, techforum, or quill.")),
	mcp.WithString("brief", mcp.Description("Platform-specific summary shown in listings.")),
	mcp.WithString("category", mcp.Description("Platform category.")),
	mcp.WithString("tag_ids", mcp.Description("Comma-separated platform tag ids (see search_tags).")),
	mcp.WithBoolean("original", mcp.Description("Whether the article is original work. Defaults to true for new targets.")),
	mcp.WithString("source_url", mcp.Description("Canonical URL for reposted articles.")),
)

var publishArticleToolDef = mcp.NewTool("publish_article",
	mcp.WithDescription("Publish an article to one platform: validate against its rules, adapt the markdown, migrate images, save the draft, submit it."),
	mcp.WithString("id", mcp.Description("Article ID.")),
	mcp.WithString("title", mcp.Description("Article title.")),
	mcp.WithString("platform", mcp.Required(), mcp.Description("Target platform.")),
)

var saveDraftToolDef = mcp.NewTool("save_draft",
	mcp.WithDescription("Push an article to a platform as a draft without submitting it, for previewing in the platform's own editor."),
	mcp.WithString("id", mcp.Description("Article ID.")),
	mcp.WithString("title", mcp.Description("Article title.")),
	mcp.WithString("platform", mcp.Required(), mcp.Description("Target platform.")),
)

var reconcileToolDef = mcp.NewTool("reconcile_statuses",
	mcp.WithDescription("Pull each platform's article listing and refresh the local view of moderation status, remote IDs, and URLs."),
	mcp.WithString("platform", mcp.Description("Reconcile only this platform. Default: all configured platforms.")),
)

var searchTagsToolDef = mcp.NewTool("search_tags",
	mcp.WithDescription("Search a platform's tag vocabulary by keyword. Returned ids go into set_target's tag_ids."),
	mcp.WithString("platform", mcp.Required(), mcp.Description("Platform to search.")),
	mcp.WithString("keyword", mcp.Required(), mcp.Description("Search keyword.")),
)

var recommendTagsToolDef = mcp.NewTool("recommend_tags",
	mcp.WithDescription("Ask a platform to recommend tags for an article based on its title and body. Not every platform supports this."),
	mcp.WithString("id", mcp.Description("Article ID.")),
	mcp.WithString("title", mcp.Description("Article title.")),
	mcp.WithString("platform", mcp.Required(), mcp.Description("Platform to ask.")),
)

var sessionCaptureToolDef = mcp.NewTool("session_capture",
	mcp.WithDescription("Open an interactive login window for a platform and capture the session cookies. Needs a browser surface; headless machines use session_import."),
	mcp.WithString("platform", mcp.Required(), mcp.Description("Platform to log in to.")),
)

var sessionStatusToolDef = mcp.NewTool("session_status",
	mcp.WithDescription("List stored sessions per platform. Reports cookie names and capture age, never cookie values."),
)

var sessionEndToolDef = mcp.NewTool("session_end",
	mcp.WithDescription("Forget the stored session for a platform. The platform-side login stays valid until it expires."),
	mcp.WithString("platform", mcp.Required(), mcp.Description("Platform whose session to drop.")),
)

var sessionImportToolDef = mcp.NewTool("session_import",
	mcp.WithDescription("Store a session from manually supplied cookies, as exported by browser devtools. The capture fallback for headless machines."),
	mcp.WithString("platform", mcp.Required(), mcp.Description("Platform the cookies belong to.")),
	mcp.WithString("cookies", mcp.Required(), mcp.Description("JSON array of {name, value, domain} objects.")),
)

var exportBackupToolDef = mcp.NewTool("export_backup",
	mcp.WithDescription("Export every article and its platform projections to a JSONL backup file."),
	mcp.WithString("path", mcp.Description("Destination path ending in .jsonl. Default: ~/.penbridge/exports/articles-<timestamp>.jsonl.")),
	mcp.WithBoolean("include_deleted", mcp.Description("Include soft-deleted articles.")),
)

var importBackupToolDef = mcp.NewTool("import_backup",
	mcp.WithDescription("Restore articles from a JSONL backup file."),
	mcp.WithString("path", mcp.Required(), mcp.Description("Backup file path.")),
	mcp.WithString("mode", mcp.Description("Collision handling: error (default, atomic) or replace (overwrite in place)."),
		mcp.Enum("error", "replace")),
)
