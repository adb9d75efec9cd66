package tools

// AllTools contains all tool specifications for the wiki bot MCP server.
// Tool descriptions follow a structured format for LLM tool selection:
// - USE WHEN: Natural language triggers
// - NOT FOR: Disambiguation from similar tools
// - PARAMETERS: Key arguments with defaults
// - RETURNS: What the tool returns
//
// Every call shares the bot's throttled request queue, so a tool may wait for
// earlier work before its own requests go out.
var AllTools = []ToolSpec{
	// ==========================================================================
	// SESSION TOOLS
	// ==========================================================================
	{
		Name:     "wiki_login",
		Method:   "Login",
		Title:    "Log In",
		Category: "session",
		Description: `Log the bot into the wiki with a username and password (or bot password).

USE WHEN: User says "log in as X", "sign in to the wiki", or an edit failed because the session is anonymous.

NOT FOR: Checking who is logged in (use wiki_whoami).

PARAMETERS:
- username: Account name, e.g. "ExampleBot" or "ExampleBot@tool" for bot passwords (required)
- password: Account or bot password (required)

RETURNS: The canonical user name the wiki reports after a successful login.`,
		OpenWorld: true,
	},
	{
		Name:     "wiki_logout",
		Method:   "Logout",
		Title:    "Log Out",
		Category: "session",
		Description: `End the current wiki session.

USE WHEN: User says "log out", "sign out", "drop the session".

RETURNS: Confirmation that the logout request completed.`,
		Idempotent: true,
		OpenWorld:  true,
	},
	{
		Name:     "wiki_whoami",
		Method:   "WhoAmI",
		Title:    "Who Am I",
		Category: "session",
		Description: `Return the name the wiki currently sees for this session (a user name, or an IP address when anonymous).

USE WHEN: User asks "who am I logged in as", "am I logged in", "what account is the bot using".

NOT FOR: Full account details (use wiki_userinfo).

RETURNS: The current user name or IP.`,
		ReadOnly:   true,
		Idempotent: true,
		OpenWorld:  true,
	},
	{
		Name:     "wiki_userinfo",
		Method:   "UserInfo",
		Title:    "User Info",
		Category: "session",
		Description: `Get the account record of the current session.

USE WHEN: User asks for "my user id", "account info", "is the session anonymous".

NOT FOR: Just the name (use wiki_whoami).

RETURNS: User id, name, and whether the session is anonymous.`,
		ReadOnly:   true,
		Idempotent: true,
		OpenWorld:  true,
	},

	// ==========================================================================
	// READ TOOLS
	// ==========================================================================
	{
		Name:     "wiki_get_page",
		Method:   "GetPage",
		Title:    "Get Page",
		Category: "read",
		Description: `Fetch the current wikitext of a page.

USE WHEN: User says "show me page X", "what does the X article say", "get the source of X".

NOT FOR: An older version (use wiki_get_revision) or the list of edits (use wiki_history).

PARAMETERS:
- title: Page title (required)

RETURNS: Title, wikitext content, and the timestamp of the latest revision.`,
		ReadOnly:   true,
		Idempotent: true,
		OpenWorld:  true,
	},
	{
		Name:     "wiki_get_revision",
		Method:   "GetRevision",
		Title:    "Get Revision",
		Category: "read",
		Description: `Fetch the wikitext of one specific revision by id.

USE WHEN: User says "show revision 12345", "what did the page look like before edit X". Revision ids come from wiki_history.

NOT FOR: The current version (use wiki_get_page).

PARAMETERS:
- revid: Revision id (required)

RETURNS: Title, wikitext content, and the timestamp of that revision.`,
		ReadOnly:   true,
		Idempotent: true,
		OpenWorld:  true,
	},
	{
		Name:     "wiki_history",
		Method:   "History",
		Title:    "Page History",
		Category: "read",
		Description: `List the most recent revisions of a page, newest first.

USE WHEN: User asks "who edited X", "recent changes to X", "last 10 edits of X".

NOT FOR: Reading revision text (use wiki_get_revision with a revid from this list).

PARAMETERS:
- title: Page title (required)
- count: Number of revisions (default 10, larger values are fetched over several requests)

RETURNS: Revision ids, parent ids, users, timestamps, comments, sizes, and tags.`,
		ReadOnly:   true,
		Idempotent: true,
		OpenWorld:  true,
	},
	{
		Name:     "wiki_category_members",
		Method:   "CategoryMembers",
		Title:    "Category Members",
		Category: "read",
		Description: `List every member of a category, split into subcategories and other pages.

USE WHEN: User asks "what pages are in category X", "list subcategories of X".

PARAMETERS:
- category: Category name, with or without the "Category:" prefix (required)

RETURNS: Pages and subcategories with page ids, namespaces, and titles. The full listing is returned.`,
		ReadOnly:   true,
		Idempotent: true,
		OpenWorld:  true,
	},

	// ==========================================================================
	// WRITE TOOLS
	// ==========================================================================
	{
		Name:     "wiki_edit_page",
		Method:   "EditPage",
		Title:    "Edit Page",
		Category: "write",
		Description: `Replace the full text of a page, creating it if it does not exist.

USE WHEN: User says "set page X to ...", "rewrite X", "create page X with ...".

NOT FOR: Adding a new talk-page style section (use wiki_add_section).

PARAMETERS:
- title: Page title (required)
- text: Complete new wikitext (required)
- summary: Edit summary; the bot byeline is appended

RETURNS: Page id, old and new revision ids, and the new timestamp. Fails with an edit conflict if the page changed since the bot read it.`,
		Destructive: true,
		OpenWorld:   true,
	},
	{
		Name:     "wiki_add_section",
		Method:   "AddSection",
		Title:    "Add Section",
		Category: "write",
		Description: `Append a new section with a heading to the end of a page.

USE WHEN: User says "post a new topic on Talk:X", "add a section called Y to X".

NOT FOR: Changing existing text (use wiki_edit_page).

PARAMETERS:
- title: Page title (required)
- heading: Section heading, also used as the edit summary (required)
- text: Section body wikitext (required)

RETURNS: Page id and the new revision id.`,
		OpenWorld: true,
	},
}
