package wiki

// MaxLimit is the largest per-request list size the API grants to ordinary users
const MaxLimit = 500

// CategoryNamespace is the namespace number of category pages
const CategoryNamespace = 14

// UserInfo describes the account the session is acting as
type UserInfo struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	Anonymous bool   `json:"anonymous"`
}

// PageContent is the latest (or a specific) revision of a page
type PageContent struct {
	Title     string `json:"title"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
}

// Revision is one entry of a page history
type Revision struct {
	RevID     int      `json:"revid"`
	ParentID  int      `json:"parentid"`
	User      string   `json:"user"`
	Timestamp string   `json:"timestamp"`
	Comment   string   `json:"comment"`
	Size      int      `json:"size"`
	Tags      []string `json:"tags"`
}

// History is the newest-first revision list of one page
type History struct {
	Title     string     `json:"title"`
	Revisions []Revision `json:"revisions"`
}

// CategoryMember is one page listed in a category
type CategoryMember struct {
	PageID    int    `json:"pageid"`
	Namespace int    `json:"ns"`
	Title     string `json:"title"`
}

// CategoryMembers splits a category listing into subcategories and everything else
type CategoryMembers struct {
	Category      string           `json:"category"`
	Pages         []CategoryMember `json:"pages"`
	Subcategories []CategoryMember `json:"subcategories"`
}

// EditMode selects how an edit changes the page
type EditMode int

const (
	// EditReplace replaces the whole page text
	EditReplace EditMode = iota
	// EditAppendSection appends a new section
	EditAppendSection
)

func (m EditMode) String() string {
	switch m {
	case EditReplace:
		return "replace"
	case EditAppendSection:
		return "append"
	default:
		return "unknown"
	}
}

// EditResult is the outcome of a successful edit
type EditResult struct {
	Title        string `json:"title"`
	PageID       int    `json:"page_id"`
	OldRevID     int    `json:"old_revision_id,omitempty"`
	NewRevID     int    `json:"new_revision_id,omitempty"`
	NewTimestamp string `json:"new_timestamp,omitempty"`
	NoChange     bool   `json:"no_change,omitempty"`
}
