package wiki

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/olgasafonova/mediawiki-bot/metrics"
	"github.com/olgasafonova/mediawiki-bot/scheduler"
)

// EditSuccess is the result code of a saved edit
const EditSuccess = "Success"

type editState int

const (
	editAwaitingToken editState = iota
	editAwaitingSave
	editDone
)

type editFlow struct {
	*flow[EditResult]
	mode    EditMode
	title   string
	text    string
	summary string
	state   editState
}

// Edit replaces the text of a page. The configured byeline is appended to the
// summary after a space.
func (b *Bot) Edit(title, text, summary string, opts ...CallOption) *scheduler.Future[EditResult] {
	if by := b.config.Byeline; by != "" && !b.config.NoByeline {
		summary = strings.TrimSpace(summary + " " + by)
	}
	return b.edit(EditReplace, title, text, summary, applyCallOptions(opts).priority)
}

// Add appends a new section to a page. The heading doubles as the summary.
func (b *Bot) Add(title, heading, body string, opts ...CallOption) *scheduler.Future[EditResult] {
	return b.edit(EditAppendSection, title, body, heading, applyCallOptions(opts).priority)
}

// edit fetches a fresh token and base timestamp, then saves with priority so
// nothing else runs between the two requests. Besides prop=info|revisions and
// intoken=edit, the metadata request also sends meta=tokens: wikis that have
// dropped intoken answer only the csrftoken, which is used when the page
// carries no edittoken.
func (b *Bot) edit(mode EditMode, title, text, summary string, priority bool) *scheduler.Future[EditResult] {
	if strings.TrimSpace(title) == "" {
		return scheduler.Rejected[EditResult](&ValidationError{Field: "title", Message: "must not be empty"})
	}

	ef := &editFlow{
		flow:    newFlow[EditResult](b),
		mode:    mode,
		title:   title,
		text:    text,
		summary: summary,
		state:   editAwaitingToken,
	}
	ef.out.OnSettle(func(_ EditResult, err error) {
		metrics.RecordEdit(mode.String(), len(text), err == nil)
	})

	params := url.Values{}
	params.Set("action", "query")
	params.Set("prop", "info|revisions")
	params.Set("intoken", "edit")
	params.Set("meta", "tokens")
	params.Set("titles", title)
	ef.send(http.MethodGet, params, priority, ef.handleToken)
	return ef.out
}

func (e *editFlow) handleToken(resp *Response) {
	var q struct {
		queryResult
		Tokens struct {
			CSRF string `json:"csrftoken"`
		} `json:"tokens"`
	}
	if err := resp.Decode("query", &q); err != nil {
		e.reject(err)
		return
	}
	page, ok := q.firstPage()
	if !ok {
		e.reject(&DecodeError{Err: errMissing("query.pages")})
		return
	}
	if page.Invalid != nil {
		e.reject(&ProtocolError{Op: "edit", Code: "invalidtitle", Info: "invalid title: " + e.title})
		return
	}

	token := page.EditToken
	if token == "" {
		token = q.Tokens.CSRF
	}
	if token == "" || token == "+\\" {
		e.reject(&ProtocolError{Op: "edit", Code: "notoken", Info: "no edit token for " + e.title})
		return
	}

	params := url.Values{}
	params.Set("action", "edit")
	params.Set("title", e.title)
	params.Set("text", e.text)
	params.Set("summary", e.summary)
	params.Set("token", token)
	params.Set("bot", "true")
	// A page being created has no revisions and so no base timestamp.
	if len(page.Revisions) > 0 && page.Revisions[0].Timestamp != "" {
		params.Set("basetimestamp", page.Revisions[0].Timestamp)
	}
	if page.StartTS != "" {
		params.Set("starttimestamp", page.StartTS)
	}
	if e.mode == EditAppendSection {
		params.Set("section", "new")
	}

	e.state = editAwaitingSave
	e.send(http.MethodPost, params, true, e.handleSave)
}

func (e *editFlow) handleSave(resp *Response) {
	e.state = editDone

	var res struct {
		Result       string          `json:"result"`
		PageID       int             `json:"pageid"`
		Title        string          `json:"title"`
		OldRevID     int             `json:"oldrevid"`
		NewRevID     int             `json:"newrevid"`
		NewTimestamp string          `json:"newtimestamp"`
		NoChange     json.RawMessage `json:"nochange"`
		Info         string          `json:"info"`
	}
	if err := resp.Decode("edit", &res); err != nil {
		e.reject(err)
		return
	}
	if res.Result != EditSuccess {
		e.bot.logger.Warn("Edit rejected", "title", e.title, "result", res.Result, "info", res.Info)
		e.reject(&ProtocolError{Op: "edit", Code: res.Result, Info: res.Info})
		return
	}

	title := res.Title
	if title == "" {
		title = e.title
	}
	e.bot.logger.Info("Page saved",
		"title", title,
		"mode", e.mode.String(),
		"revision", res.NewRevID)
	e.resolve(EditResult{
		Title:        title,
		PageID:       res.PageID,
		OldRevID:     res.OldRevID,
		NewRevID:     res.NewRevID,
		NewTimestamp: res.NewTimestamp,
		NoChange:     res.NoChange != nil,
	})
}
