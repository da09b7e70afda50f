package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/zerx-lab/penbridge/internal/errors"
	"github.com/zerx-lab/penbridge/internal/ops"
	"github.com/zerx-lab/penbridge/internal/web"
)

// maxStdinBytes caps piped input so a stray binary doesn't end up in the store.
const maxStdinBytes = 10 << 20

// newCLIApp creates the CLI application with all commands.
func newCLIApp(env *ops.Env) *cli.App {
	app := &cli.App{
		Name:    "penbridge",
		Usage:   "Local publish bridge for devcloud, techforum, and quill",
		Version: Version,
		Commands: []*cli.Command{
			articleCmd(env),
			targetCmd(env),
			publishCmd(env),
			draftCmd(env),
			reconcileCmd(env),
			tagsCmd(env),
			sessionCmd(env),
			exportCmd(env),
			importCmd(env),
			serveCmd(env),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// articleCmd groups local article management commands.
func articleCmd(env *ops.Env) *cli.Command {
	return &cli.Command{
		Name:  "article",
		Usage: "Manage local articles",
		Subcommands: []*cli.Command{
			{
				Name:  "import",
				Usage: "Import a markdown article (from --path or stdin)",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "path", Aliases: []string{"p"}, Usage: "Markdown file to import"},
					&cli.StringFlag{Name: "title", Aliases: []string{"t"}, Usage: "Title override (defaults to the front matter title)"},
					&cli.StringFlag{Name: "tags", Usage: "Comma-separated local tags"},
					&cli.StringFlag{Name: "mode", Aliases: []string{"m"}, Value: "error", Usage: "Collision mode: error|replace"},
				},
				Action: func(c *cli.Context) error {
					input := ops.ImportArticleInput{
						Path:  c.String("path"),
						Title: c.String("title"),
						Mode:  ops.ImportMode(c.String("mode")),
					}

					if input.Path == "" {
						if !stdinHasData() {
							return outputError(errors.NewInvalidRequest("markdown must be piped via stdin or given with --path"))
						}
						content, err := readStdin(maxStdinBytes)
						if err != nil {
							return outputError(errors.NewInvalidRequest(err.Error()))
						}
						input.Content = content
					}

					if tags := c.String("tags"); tags != "" {
						input.Tags = parseTags(tags)
					}

					output, err := ops.ImportArticle(env, input)
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
			{
				Name:  "list",
				Usage: "List local articles with per-platform status",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Value: 20, Usage: "Maximum items to return"},
					&cli.IntFlag{Name: "offset", Aliases: []string{"o"}, Value: 0, Usage: "Items to skip"},
					&cli.BoolFlag{Name: "include-deleted", Usage: "Include soft-deleted articles"},
				},
				Action: func(c *cli.Context) error {
					output, err := ops.ListArticles(env, ops.ListArticlesInput{
						Limit:          c.Int("limit"),
						Offset:         c.Int("offset"),
						IncludeDeleted: c.Bool("include-deleted"),
					})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
			{
				Name:      "show",
				Usage:     "Show an article with its body and publications",
				ArgsUsage: "[id]",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "title", Aliases: []string{"t"}, Usage: "Address by title instead of ID"},
					&cli.BoolFlag{Name: "include-deleted", Usage: "Include soft-deleted articles"},
				},
				Action: func(c *cli.Context) error {
					input := ops.ShowArticleInput{
						IncludeDeleted: c.Bool("include-deleted"),
					}
					if c.NArg() > 0 {
						input.ID = c.Args().First()
					} else {
						input.Title = c.String("title")
					}

					output, err := ops.ShowArticle(env, input)
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
			{
				Name:      "delete",
				Usage:     "Soft-delete an article",
				ArgsUsage: "[id]",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "title", Aliases: []string{"t"}, Usage: "Address by title instead of ID"},
				},
				Action: func(c *cli.Context) error {
					input := ops.DeleteArticleInput{}
					if c.NArg() > 0 {
						input.ID = c.Args().First()
					} else {
						input.Title = c.String("title")
					}

					output, err := ops.DeleteArticle(env, input)
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
			{
				Name:  "purge",
				Usage: "Permanently delete soft-deleted articles",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "older-than", Usage: "Only purge if deleted more than N days ago (e.g., 7d)"},
				},
				Action: func(c *cli.Context) error {
					input := ops.PurgeArticlesInput{}
					if olderThan := c.String("older-than"); olderThan != "" {
						days, err := parseDuration(olderThan)
						if err != nil {
							return outputError(errors.NewInvalidRequest(err.Error()))
						}
						input.OlderThanDays = days
					}

					output, err := ops.PurgeArticles(env, input)
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
		},
	}
}

// targetCmd creates the target command.
func targetCmd(env *ops.Env) *cli.Command {
	return &cli.Command{
		Name:      "target",
		Usage:     "Set per-platform publish settings for an article",
		ArgsUsage: "[id]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "title", Aliases: []string{"t"}, Usage: "Address by title instead of ID"},
			&cli.StringFlag{Name: "platform", Usage: "Target platform: devcloud|techforum|quill"},
			&cli.StringFlag{Name: "brief", Usage: "Platform summary text"},
			&cli.StringFlag{Name: "category", Usage: "Platform category"},
			&cli.StringFlag{Name: "tag-ids", Usage: "Comma-separated platform tag IDs"},
			&cli.BoolFlag{Name: "original", Usage: "Mark as original content (--original=false for reposts)"},
			&cli.StringFlag{Name: "source-url", Usage: "Source URL for reposted content"},
		},
		Action: func(c *cli.Context) error {
			input := ops.SetTargetInput{
				Platform: c.String("platform"),
			}
			if c.NArg() > 0 {
				input.ID = c.Args().First()
			} else {
				input.Title = c.String("title")
			}

			// IsSet distinguishes "not provided" from an explicit empty value.
			if c.IsSet("brief") {
				v := c.String("brief")
				input.Brief = &v
			}
			if c.IsSet("category") {
				v := c.String("category")
				input.Category = &v
			}
			if c.IsSet("tag-ids") {
				v := parseTags(c.String("tag-ids"))
				input.TagIDs = &v
			}
			if c.IsSet("original") {
				v := c.Bool("original")
				input.Original = &v
			}
			if c.IsSet("source-url") {
				v := c.String("source-url")
				input.SourceURL = &v
			}

			output, err := ops.SetTarget(env, input)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// publishCmd creates the publish command.
func publishCmd(env *ops.Env) *cli.Command {
	return &cli.Command{
		Name:      "publish",
		Usage:     "Adapt, migrate assets, and publish an article to a platform",
		ArgsUsage: "[id]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "title", Aliases: []string{"t"}, Usage: "Address by title instead of ID"},
			&cli.StringFlag{Name: "platform", Usage: "Target platform: devcloud|techforum|quill"},
		},
		Action: func(c *cli.Context) error {
			input := ops.PublishArticleInput{
				Platform: c.String("platform"),
			}
			if c.NArg() > 0 {
				input.ID = c.Args().First()
			} else {
				input.Title = c.String("title")
			}

			output, err := ops.PublishArticle(c.Context, env, input)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// draftCmd creates the draft command.
func draftCmd(env *ops.Env) *cli.Command {
	return &cli.Command{
		Name:      "draft",
		Usage:     "Push an article to a platform as a draft without publishing",
		ArgsUsage: "[id]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "title", Aliases: []string{"t"}, Usage: "Address by title instead of ID"},
			&cli.StringFlag{Name: "platform", Usage: "Target platform: devcloud|techforum|quill"},
		},
		Action: func(c *cli.Context) error {
			input := ops.SaveDraftInput{
				Platform: c.String("platform"),
			}
			if c.NArg() > 0 {
				input.ID = c.Args().First()
			} else {
				input.Title = c.String("title")
			}

			output, err := ops.SaveDraft(c.Context, env, input)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// reconcileCmd creates the reconcile command.
func reconcileCmd(env *ops.Env) *cli.Command {
	return &cli.Command{
		Name:  "reconcile",
		Usage: "Pull platform listings and refresh local publication status",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "platform", Usage: "Reconcile one platform (default: all configured)"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.ReconcileStatuses(c.Context, env, ops.ReconcileStatusesInput{
				Platform: c.String("platform"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// tagsCmd groups platform tag lookup commands.
func tagsCmd(env *ops.Env) *cli.Command {
	return &cli.Command{
		Name:  "tags",
		Usage: "Look up platform tags",
		Subcommands: []*cli.Command{
			{
				Name:      "search",
				Usage:     "Search a platform's tags by keyword",
				ArgsUsage: "[keyword]",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "platform", Usage: "Platform: devcloud|techforum|quill"},
					&cli.StringFlag{Name: "keyword", Aliases: []string{"k"}, Usage: "Search keyword"},
				},
				Action: func(c *cli.Context) error {
					keyword := c.String("keyword")
					if c.NArg() > 0 {
						keyword = c.Args().First()
					}

					output, err := ops.SearchTags(c.Context, env, ops.SearchTagsInput{
						Platform: c.String("platform"),
						Keyword:  keyword,
					})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
			{
				Name:      "recommend",
				Usage:     "Ask a platform to suggest tags for an article",
				ArgsUsage: "[id]",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "title", Aliases: []string{"t"}, Usage: "Address by title instead of ID"},
					&cli.StringFlag{Name: "platform", Usage: "Platform: devcloud|techforum|quill"},
				},
				Action: func(c *cli.Context) error {
					input := ops.RecommendTagsInput{
						Platform: c.String("platform"),
					}
					if c.NArg() > 0 {
						input.ID = c.Args().First()
					} else {
						input.Title = c.String("title")
					}

					output, err := ops.RecommendTags(c.Context, env, input)
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
		},
	}
}

// sessionCmd groups platform session commands.
func sessionCmd(env *ops.Env) *cli.Command {
	return &cli.Command{
		Name:  "session",
		Usage: "Manage platform login sessions",
		Subcommands: []*cli.Command{
			{
				Name:  "capture",
				Usage: "Capture a session through an interactive login window",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "platform", Usage: "Platform: devcloud|techforum|quill"},
				},
				Action: func(c *cli.Context) error {
					output, err := ops.SessionCapture(c.Context, env, ops.SessionCaptureInput{
						Platform: c.String("platform"),
					})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
			{
				Name:  "status",
				Usage: "Show stored sessions (cookie names only, never values)",
				Action: func(c *cli.Context) error {
					output, err := ops.SessionStatus(env)
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
			{
				Name:  "end",
				Usage: "Delete a platform's stored session",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "platform", Usage: "Platform: devcloud|techforum|quill"},
				},
				Action: func(c *cli.Context) error {
					output, err := ops.SessionEnd(env, ops.SessionEndInput{
						Platform: c.String("platform"),
					})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
			{
				Name:  "import",
				Usage: "Import a session from cookie JSON piped via stdin",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "platform", Usage: "Platform: devcloud|techforum|quill"},
				},
				Action: func(c *cli.Context) error {
					if !stdinHasData() {
						return outputError(errors.NewInvalidRequest("cookie JSON must be piped via stdin"))
					}
					cookies, err := readStdin(maxStdinBytes)
					if err != nil {
						return outputError(errors.NewInvalidRequest(err.Error()))
					}

					output, err := ops.SessionImport(env, ops.SessionImportInput{
						Platform:    c.String("platform"),
						CookiesJSON: cookies,
					})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
		},
	}
}

// exportCmd creates the export command.
func exportCmd(env *ops.Env) *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Export articles and publications to a JSONL file",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "path", Aliases: []string{"p"}, Usage: "Export file path (default: ~/.penbridge/exports/articles-<timestamp>.jsonl)"},
			&cli.BoolFlag{Name: "include-deleted", Usage: "Include soft-deleted articles"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.ExportBackup(c.Context, env, ops.ExportBackupInput{
				Path:           c.String("path"),
				IncludeDeleted: c.Bool("include-deleted"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// importCmd creates the import command.
func importCmd(env *ops.Env) *cli.Command {
	return &cli.Command{
		Name:  "import",
		Usage: "Import articles from a JSONL backup file",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "path", Aliases: []string{"p"}, Required: true, Usage: "Import file path"},
			&cli.StringFlag{Name: "mode", Aliases: []string{"m"}, Value: "error", Usage: "Collision mode: error|replace"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.ImportBackup(env, ops.ImportBackupInput{
				Path: c.String("path"),
				Mode: ops.ImportMode(c.String("mode")),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// serveCmd creates the serve command for the local dashboard.
func serveCmd(env *ops.Env) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the local web dashboard",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "bind", Value: "127.0.0.1", Usage: "Bind address"},
			&cli.IntFlag{Name: "port", Value: 8787, Usage: "Listen port"},
		},
		Action: func(c *cli.Context) error {
			srv := web.NewServer(env, Version, c.String("bind"), c.Int("port"))
			return web.Run(srv)
		},
	}
}

// Helper functions

// outputJSON marshals result to stdout as JSON.
func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	if bErr, ok := errors.AsBridgeError(err); ok {
		return cli.Exit(fmt.Sprintf("[%s] %s", bErr.Code, bErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}

// stdinHasData returns true if stdin has piped data (not a terminal).
func stdinHasData() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) == 0
}

// readStdin reads stdin up to limit bytes.
func readStdin(limit int64) (string, error) {
	data, err := io.ReadAll(io.LimitReader(os.Stdin, limit+1))
	if err != nil {
		return "", err
	}
	if int64(len(data)) > limit {
		return "", fmt.Errorf("stdin input exceeds %d bytes", limit)
	}
	return strings.TrimSpace(string(data)), nil
}

// parseTags splits a comma-separated string into a slice of tags.
func parseTags(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

// parseDuration parses "7d" format to days.
func parseDuration(s string) (int, error) {
	if numStr, ok := strings.CutSuffix(s, "d"); ok {
		days, err := strconv.Atoi(numStr)
		if err != nil {
			return 0, fmt.Errorf("invalid duration: %s", s)
		}
		if days < 0 {
			return 0, fmt.Errorf("duration must be non-negative")
		}
		return days, nil
	}
	return 0, fmt.Errorf("duration must end with 'd' (days), e.g., 7d")
}
