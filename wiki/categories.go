package wiki

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/olgasafonova/mediawiki-bot/metrics"
	"github.com/olgasafonova/mediawiki-bot/scheduler"
)

const categoryPrefix = "Category:"

// normalizeCategory ensures the title carries the Category: namespace prefix
func normalizeCategory(title string) string {
	title = strings.TrimSpace(title)
	if strings.HasPrefix(strings.ToLower(title), strings.ToLower(categoryPrefix)) {
		return title
	}
	return categoryPrefix + title
}

type categoryFlow struct {
	*flow[CategoryMembers]
	members CategoryMembers
}

// Category lists every member of a category, following continuations until the
// listing is exhausted. Subcategories are reported separately.
func (b *Bot) Category(title string, opts ...CallOption) *scheduler.Future[CategoryMembers] {
	if strings.TrimSpace(title) == "" {
		return scheduler.Rejected[CategoryMembers](&ValidationError{Field: "category", Message: "must not be empty"})
	}

	cf := &categoryFlow{
		flow: newFlow[CategoryMembers](b),
		members: CategoryMembers{
			Category:      normalizeCategory(title),
			Pages:         []CategoryMember{},
			Subcategories: []CategoryMember{},
		},
	}
	cf.next(nil, applyCallOptions(opts).priority)
	return cf.out
}

func (c *categoryFlow) next(cont url.Values, priority bool) {
	params := url.Values{}
	params.Set("action", "query")
	params.Set("list", "categorymembers")
	params.Set("cmtitle", c.members.Category)
	params.Set("cmlimit", "max")
	params.Set("cmsort", "sortkey")
	params.Set("cmdir", "desc")
	params.Set("continue", "")
	for k, v := range cont {
		params[k] = v
	}
	c.send(http.MethodGet, params, priority, c.handle)
}

func (c *categoryFlow) handle(resp *Response) {
	metrics.PaginationPages.WithLabelValues("category").Inc()

	var q struct {
		CategoryMembers []CategoryMember `json:"categorymembers"`
	}
	if err := resp.Decode("query", &q); err != nil {
		c.reject(err)
		return
	}

	for _, m := range q.CategoryMembers {
		if m.Namespace == CategoryNamespace {
			c.members.Subcategories = append(c.members.Subcategories, m)
		} else {
			c.members.Pages = append(c.members.Pages, m)
		}
	}

	if cont, more := resp.Continuation(); more {
		c.next(cont, true)
		return
	}

	c.bot.logger.Debug("Category listed",
		"category", c.members.Category,
		"pages", len(c.members.Pages),
		"subcategories", len(c.members.Subcategories))
	c.resolve(c.members)
}
