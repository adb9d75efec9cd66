package wiki

import (
	"net/http"
	"net/url"
	"strconv"

	"github.com/olgasafonova/mediawiki-bot/metrics"
	"github.com/olgasafonova/mediawiki-bot/scheduler"
)

// historyFlow pages through revisions until count is reached or the server
// stops offering a continuation.
type historyFlow struct {
	*flow[History]
	title   string
	count   int
	pages   int
	history History
}

// History fetches up to count revisions of a page, newest first. Follow-up
// pages are requested with priority.
func (b *Bot) History(title string, count int, opts ...CallOption) *scheduler.Future[History] {
	if title == "" {
		return scheduler.Rejected[History](&ValidationError{Field: "title", Message: "must not be empty"})
	}
	if count <= 0 {
		return scheduler.Rejected[History](&ValidationError{Field: "count", Message: "must be positive"})
	}

	hf := &historyFlow{
		flow:    newFlow[History](b),
		title:   title,
		count:   count,
		history: History{Title: title, Revisions: make([]Revision, 0, min(count, MaxLimit))},
	}
	hf.next(nil, applyCallOptions(opts).priority)
	return hf.out
}

func (h *historyFlow) next(cont url.Values, priority bool) {
	params := url.Values{}
	params.Set("action", "query")
	params.Set("prop", "revisions")
	params.Set("titles", h.title)
	params.Set("rvprop", "timestamp|user|ids|comment|size|tags")
	params.Set("rvlimit", strconv.Itoa(min(h.count, MaxLimit)))
	params.Set("continue", "")
	for k, v := range cont {
		params[k] = v
	}
	h.send(http.MethodGet, params, priority, h.handle)
}

func (h *historyFlow) handle(resp *Response) {
	h.pages++
	metrics.PaginationPages.WithLabelValues("history").Inc()

	q, err := decodeQuery(resp)
	if err != nil {
		h.reject(err)
		return
	}
	page, ok := q.firstPage()
	if !ok {
		h.reject(&DecodeError{Err: errMissing("query.pages")})
		return
	}
	if page.Missing != nil || page.Invalid != nil {
		h.reject(&ProtocolError{Op: "history", Code: "missingtitle", Info: "page does not exist: " + page.Title})
		return
	}
	if page.Title != "" {
		h.history.Title = page.Title
	}

	for _, rev := range page.Revisions {
		if len(h.history.Revisions) >= h.count {
			break
		}
		h.history.Revisions = append(h.history.Revisions, rev.Revision)
	}

	if cont, more := resp.Continuation(); more && len(h.history.Revisions) < h.count {
		h.next(cont, true)
		return
	}

	h.bot.logger.Debug("History fetched",
		"title", h.history.Title,
		"revisions", len(h.history.Revisions),
		"pages", h.pages)
	h.resolve(h.history)
}
