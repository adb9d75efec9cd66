package wiki

import (
	"encoding/json"
	"net/http"
	"net/url"
	"slices"
	"strconv"

	"github.com/olgasafonova/mediawiki-bot/scheduler"
)

// queryPage is one entry of query.pages. Content arrives under "*" in the
// default format and under "content" in formatversion=2.
type queryPage struct {
	PageID    int             `json:"pageid"`
	Namespace int             `json:"ns"`
	Title     string          `json:"title"`
	Missing   json.RawMessage `json:"missing"`
	Invalid   json.RawMessage `json:"invalid"`
	EditToken string          `json:"edittoken"`
	StartTS   string          `json:"starttimestamp"`
	Revisions []queryRevision `json:"revisions"`
}

type queryRevision struct {
	Revision
	Star    *string `json:"*"`
	Content *string `json:"content"`
}

func (r queryRevision) text() string {
	switch {
	case r.Star != nil:
		return *r.Star
	case r.Content != nil:
		return *r.Content
	default:
		return ""
	}
}

type queryResult struct {
	Pages     map[string]queryPage `json:"pages"`
	BadRevIDs json.RawMessage      `json:"badrevids"`
}

// firstPage returns the page with the lowest key of query.pages. Keys are page
// ids, negative for missing pages.
func (q queryResult) firstPage() (queryPage, bool) {
	if len(q.Pages) == 0 {
		return queryPage{}, false
	}
	keys := make([]string, 0, len(q.Pages))
	for k := range q.Pages {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b string) int {
		ai, aerr := strconv.Atoi(a)
		bi, berr := strconv.Atoi(b)
		if aerr == nil && berr == nil {
			return ai - bi
		}
		if a < b {
			return -1
		}
		if a > b {
			return 1
		}
		return 0
	})
	return q.Pages[keys[0]], true
}

func decodeQuery(resp *Response) (queryResult, error) {
	var q queryResult
	if err := resp.Decode("query", &q); err != nil {
		return queryResult{}, err
	}
	return q, nil
}

// Page fetches the latest revision of a page
func (b *Bot) Page(title string, opts ...CallOption) *scheduler.Future[PageContent] {
	if title == "" {
		return scheduler.Rejected[PageContent](&ValidationError{Field: "title", Message: "must not be empty"})
	}
	params := url.Values{}
	params.Set("titles", title)
	return b.page(params, applyCallOptions(opts).priority)
}

// Revision fetches a specific revision by id
func (b *Bot) Revision(revid int, opts ...CallOption) *scheduler.Future[PageContent] {
	if revid <= 0 {
		return scheduler.Rejected[PageContent](&ValidationError{Field: "revid", Message: "must be positive"})
	}
	params := url.Values{}
	params.Set("revids", strconv.Itoa(revid))
	return b.page(params, applyCallOptions(opts).priority)
}

func (b *Bot) page(params url.Values, priority bool) *scheduler.Future[PageContent] {
	params.Set("action", "query")
	params.Set("prop", "revisions")
	params.Set("rvprop", "timestamp|content")

	return call(b, http.MethodGet, params, priority, func(resp *Response) (PageContent, error) {
		q, err := decodeQuery(resp)
		if err != nil {
			return PageContent{}, err
		}
		if len(q.BadRevIDs) > 0 && string(q.BadRevIDs) != "null" {
			return PageContent{}, &ProtocolError{Op: "revision", Code: "nosuchrevid", Info: "no revision with id " + params.Get("revids")}
		}
		page, ok := q.firstPage()
		if !ok {
			return PageContent{}, &DecodeError{Err: errMissing("query.pages")}
		}
		if page.Missing != nil || page.Invalid != nil {
			return PageContent{}, &ProtocolError{Op: "page", Code: "missingtitle", Info: "page does not exist: " + page.Title}
		}
		if len(page.Revisions) == 0 {
			return PageContent{}, &DecodeError{Err: errMissing("revisions for " + page.Title)}
		}
		rev := page.Revisions[0]
		return PageContent{
			Title:     page.Title,
			Content:   rev.text(),
			Timestamp: rev.Timestamp,
		}, nil
	})
}
