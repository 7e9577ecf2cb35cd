package http

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// PaginatedResponse wraps list results with pagination metadata.
type PaginatedResponse struct {
	Data       interface{} `json:"data"`
	Pagination Pagination  `json:"pagination"`
}

// Pagination contains offset-based pagination info. The store does not
// count rows, so HasMore is inferred from a full page.
type Pagination struct {
	Offset  int  `json:"offset"`
	Limit   int  `json:"limit"`
	Count   int  `json:"count"`
	HasMore bool `json:"has_more"`
}

// pageParams reads offset/limit with the given default and ceiling.
func pageParams(c *fiber.Ctx, def, max int) (offset, limit int) {
	offset = c.QueryInt("offset", 0)
	limit = c.QueryInt("limit", def)
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 || limit > max {
		limit = def
	}
	return offset, limit
}

// SetLinkHeaders adds RFC 8288 Link headers for paginated responses,
// keeping the request's other query parameters.
func SetLinkHeaders(c *fiber.Ctx, p Pagination) {
	base := c.Path()
	var extra []string
	c.Context().QueryArgs().VisitAll(func(k, v []byte) {
		key := string(k)
		if key != "offset" && key != "limit" {
			extra = append(extra, key+"="+string(v))
		}
	})
	suffix := ""
	if len(extra) > 0 {
		suffix = "&" + strings.Join(extra, "&")
	}

	links := []string{fmt.Sprintf(`<%s?offset=0&limit=%d%s>; rel="first"`, base, p.Limit, suffix)}
	if p.Offset > 0 {
		prev := p.Offset - p.Limit
		if prev < 0 {
			prev = 0
		}
		links = append(links, fmt.Sprintf(`<%s?offset=%d&limit=%d%s>; rel="prev"`, base, prev, p.Limit, suffix))
	}
	if p.HasMore {
		links = append(links, fmt.Sprintf(`<%s?offset=%d&limit=%d%s>; rel="next"`, base, p.Offset+p.Limit, p.Limit, suffix))
	}

	c.Set("Link", strings.Join(links, ", "))
}
