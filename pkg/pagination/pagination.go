// Package pagination reads limit/offset from list requests and shapes the
// paged JSON envelope every list endpoint returns.
package pagination

import (
	"net/url"
	"strconv"

	"github.com/labstack/echo/v4"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

type Params struct {
	Limit  int
	Offset int
}

// FromContext reads limit/offset, falling back to page/per_page. Garbage and
// negative values fall back to defaults; limit is clamped to MaxLimit.
func FromContext(c echo.Context) Params {
	limit := firstPositive(c.QueryParam("limit"), c.QueryParam("per_page"))
	if limit == 0 {
		limit = DefaultLimit
	}
	limit = min(limit, MaxLimit)

	offset := firstPositive(c.QueryParam("offset"))
	if offset == 0 {
		if page := firstPositive(c.QueryParam("page")); page > 1 {
			offset = (page - 1) * limit
		}
	}
	return Params{Limit: limit, Offset: offset}
}

func firstPositive(raw ...string) int {
	for _, s := range raw {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return 0
}

// Page is the 1-based page holding Offset.
func (p Params) Page() int {
	if p.Limit <= 0 {
		return 1
	}
	return p.Offset/p.Limit + 1
}

// Pages is the number of pages needed for total rows, at least 1.
func (p Params) Pages(total int) int {
	if p.Limit <= 0 || total <= p.Limit {
		return 1
	}
	return (total + p.Limit - 1) / p.Limit
}

func (p Params) hasNext(total int) bool { return p.Offset+p.Limit < total }

func (p Params) at(page int) Params {
	return Params{Limit: p.Limit, Offset: max(page-1, 0) * p.Limit}
}

type Response struct {
	Data    interface{} `json:"data"`
	Total   int         `json:"total"`
	Limit   int         `json:"limit"`
	Offset  int         `json:"offset"`
	Page    int         `json:"page"`
	Pages   int         `json:"pages"`
	HasMore bool        `json:"has_more"`
	Links   *Links      `json:"links,omitempty"`
}

type Links struct {
	Self  string `json:"self"`
	First string `json:"first"`
	Last  string `json:"last"`
	Next  string `json:"next,omitempty"`
	Prev  string `json:"prev,omitempty"`
}

func NewResponse(data interface{}, total, limit, offset int) *Response {
	p := Params{Limit: limit, Offset: offset}
	return &Response{
		Data:    data,
		Total:   total,
		Limit:   limit,
		Offset:  offset,
		Page:    p.Page(),
		Pages:   p.Pages(total),
		HasMore: p.hasNext(total),
	}
}

// WithLinks attaches navigation URLs built from u, keeping its filters.
func (r *Response) WithLinks(u *url.URL) *Response {
	p := Params{Limit: r.Limit, Offset: r.Offset}
	r.Links = &Links{
		Self:  pageURL(u, p),
		First: pageURL(u, p.at(1)),
		Last:  pageURL(u, p.at(r.Pages)),
	}
	if p.hasNext(r.Total) {
		r.Links.Next = pageURL(u, Params{Limit: p.Limit, Offset: p.Offset + p.Limit})
	}
	if p.Offset > 0 {
		r.Links.Prev = pageURL(u, Params{Limit: p.Limit, Offset: max(p.Offset-p.Limit, 0)})
	}
	return r
}

func pageURL(u *url.URL, p Params) string {
	q := u.Query()
	q.Del("page")
	q.Del("per_page")
	q.Set("limit", strconv.Itoa(p.Limit))
	q.Set("offset", strconv.Itoa(p.Offset))
	return u.Path + "?" + q.Encode()
}
