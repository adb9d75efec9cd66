package tools

import (
	"context"

	"github.com/olgasafonova/mediawiki-bot/wiki"
)

// DefaultHistoryCount is used when wiki_history is called without a count
const DefaultHistoryCount = 10

// LoginArgs are the arguments of wiki_login
type LoginArgs struct {
	Username string `json:"username" jsonschema:"Account name or bot-password login name"`
	Password string `json:"password" jsonschema:"Account or bot password"`
}

// LoginResult is the outcome of wiki_login
type LoginResult struct {
	Username string `json:"username"`
}

// LogoutArgs are the arguments of wiki_logout
type LogoutArgs struct{}

// LogoutResult is the outcome of wiki_logout
type LogoutResult struct {
	LoggedOut bool `json:"logged_out"`
}

// WhoAmIArgs are the arguments of wiki_whoami
type WhoAmIArgs struct{}

// WhoAmIResult is the outcome of wiki_whoami
type WhoAmIResult struct {
	Name string `json:"name"`
}

// UserInfoArgs are the arguments of wiki_userinfo
type UserInfoArgs struct{}

// GetPageArgs are the arguments of wiki_get_page
type GetPageArgs struct {
	Title string `json:"title" jsonschema:"Page title"`
}

// GetRevisionArgs are the arguments of wiki_get_revision
type GetRevisionArgs struct {
	RevID int `json:"revid" jsonschema:"Revision id"`
}

// HistoryArgs are the arguments of wiki_history
type HistoryArgs struct {
	Title string `json:"title" jsonschema:"Page title"`
	Count int    `json:"count,omitempty" jsonschema:"Number of revisions to return (default 10)"`
}

// CategoryMembersArgs are the arguments of wiki_category_members
type CategoryMembersArgs struct {
	Category string `json:"category" jsonschema:"Category name with or without the Category: prefix"`
}

// EditPageArgs are the arguments of wiki_edit_page
type EditPageArgs struct {
	Title   string `json:"title" jsonschema:"Page title"`
	Text    string `json:"text" jsonschema:"Complete new page wikitext"`
	Summary string `json:"summary,omitempty" jsonschema:"Edit summary"`
}

// AddSectionArgs are the arguments of wiki_add_section
type AddSectionArgs struct {
	Title   string `json:"title" jsonschema:"Page title"`
	Heading string `json:"heading" jsonschema:"Section heading"`
	Text    string `json:"text" jsonschema:"Section body wikitext"`
}

// WikiTools adapts Bot operations to MCP handler signatures. Each method
// submits one operation and waits for it with the request context; when the
// context ends first, work that has not reached the wire is withdrawn.
type WikiTools struct {
	bot *wiki.Bot
}

// NewWikiTools wraps bot
func NewWikiTools(bot *wiki.Bot) *WikiTools {
	return &WikiTools{bot: bot}
}

// Login is the MCP wrapper for Bot.Login
func (w *WikiTools) Login(ctx context.Context, args LoginArgs) (LoginResult, error) {
	name, err := w.bot.Login(args.Username, args.Password).Wait(ctx)
	if err != nil {
		return LoginResult{}, err
	}
	return LoginResult{Username: name}, nil
}

// Logout is the MCP wrapper for Bot.Logout
func (w *WikiTools) Logout(ctx context.Context, _ LogoutArgs) (LogoutResult, error) {
	if _, err := w.bot.Logout().Wait(ctx); err != nil {
		return LogoutResult{}, err
	}
	return LogoutResult{LoggedOut: true}, nil
}

// WhoAmI is the MCP wrapper for Bot.WhoAmI
func (w *WikiTools) WhoAmI(ctx context.Context, _ WhoAmIArgs) (WhoAmIResult, error) {
	name, err := w.bot.WhoAmI().Wait(ctx)
	if err != nil {
		return WhoAmIResult{}, err
	}
	return WhoAmIResult{Name: name}, nil
}

// UserInfo is the MCP wrapper for Bot.UserInfo
func (w *WikiTools) UserInfo(ctx context.Context, _ UserInfoArgs) (wiki.UserInfo, error) {
	return w.bot.UserInfo().Wait(ctx)
}

// GetPage is the MCP wrapper for Bot.Page
func (w *WikiTools) GetPage(ctx context.Context, args GetPageArgs) (wiki.PageContent, error) {
	return w.bot.Page(args.Title).Wait(ctx)
}

// GetRevision is the MCP wrapper for Bot.Revision
func (w *WikiTools) GetRevision(ctx context.Context, args GetRevisionArgs) (wiki.PageContent, error) {
	return w.bot.Revision(args.RevID).Wait(ctx)
}

// History is the MCP wrapper for Bot.History
func (w *WikiTools) History(ctx context.Context, args HistoryArgs) (wiki.History, error) {
	count := args.Count
	if count == 0 {
		count = DefaultHistoryCount
	}
	return w.bot.History(args.Title, count).Wait(ctx)
}

// CategoryMembers is the MCP wrapper for Bot.Category
func (w *WikiTools) CategoryMembers(ctx context.Context, args CategoryMembersArgs) (wiki.CategoryMembers, error) {
	return w.bot.Category(args.Category).Wait(ctx)
}

// EditPage is the MCP wrapper for Bot.Edit
func (w *WikiTools) EditPage(ctx context.Context, args EditPageArgs) (wiki.EditResult, error) {
	return w.bot.Edit(args.Title, args.Text, args.Summary).Wait(ctx)
}

// AddSection is the MCP wrapper for Bot.Add
func (w *WikiTools) AddSection(ctx context.Context, args AddSectionArgs) (wiki.EditResult, error) {
	return w.bot.Add(args.Title, args.Heading, args.Text).Wait(ctx)
}
