package pagination

import (
	"net/url"
	"strconv"
)

// Links are navigation URLs for a page. Next and Prev are nil at the
// respective boundary.
type Links struct {
	First string  `json:"first"`
	Last  string  `json:"last"`
	Self  string  `json:"self"`
	Next  *string `json:"next"`
	Prev  *string `json:"prev"`
}

// LinkedPage is a Page with navigation links.
type LinkedPage struct {
	Page
	Links Links `json:"links"`
}

// WithLinks attaches navigation links built from the request URL. Only the
// path and query of base are used; other query parameters are preserved.
func WithLinks(p Page, base *url.URL) LinkedPage {
	last := p.Pages
	if last < 1 {
		last = 1
	}

	links := Links{
		First: pageURL(base, 1, p.Size),
		Last:  pageURL(base, last, p.Size),
		Self:  pageURL(base, p.Page, p.Size),
	}

	if p.Page < last {
		next := pageURL(base, p.Page+1, p.Size)
		links.Next = &next
	}
	if p.Page > 1 {
		prev := pageURL(base, p.Page-1, p.Size)
		links.Prev = &prev
	}

	return LinkedPage{Page: p, Links: links}
}

func pageURL(base *url.URL, page, size int) string {
	q := base.Query()
	q.Set("page", strconv.Itoa(page))
	q.Set("size", strconv.Itoa(size))

	u := url.URL{Path: base.Path, RawQuery: q.Encode()}
	return u.String()
}
