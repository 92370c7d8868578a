package pagination

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

const (
	DefaultPerPage = 20
	MaxPerPage     = 100
)

// Page is a 1-based page request.
type Page struct {
	Page    int
	PerPage int
}

// Meta is returned alongside list payloads.
type Meta struct {
	Page       int   `json:"page"`
	PerPage    int   `json:"per_page"`
	Total      int64 `json:"total"`
	TotalPages int64 `json:"total_pages"`
}

// Normalize clamps page and per-page into their valid ranges.
func (p Page) Normalize() Page {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PerPage < 1 {
		p.PerPage = DefaultPerPage
	}
	if p.PerPage > MaxPerPage {
		p.PerPage = MaxPerPage
	}
	return p
}

// Scope applies LIMIT/OFFSET.
func (p Page) Scope(db *gorm.DB) *gorm.DB {
	p = p.Normalize()
	return db.Limit(p.PerPage).Offset((p.Page - 1) * p.PerPage)
}

func (p Page) Meta(total int64) Meta {
	p = p.Normalize()
	pages := total / int64(p.PerPage)
	if total%int64(p.PerPage) != 0 {
		pages++
	}
	return Meta{Page: p.Page, PerPage: p.PerPage, Total: total, TotalPages: pages}
}

// FromQuery reads ?page= and ?per_page=.
func FromQuery(c *fiber.Ctx) Page {
	page, _ := strconv.Atoi(c.Query("page"))
	per, _ := strconv.Atoi(c.Query("per_page"))
	return Page{Page: page, PerPage: per}.Normalize()
}
