package util

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Calculate turns a 1-based page and a page size into an offset and limit.
func Calculate(page, size int) (from, limit int) {
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > MaxPageSize {
		size = DefaultPageSize
	}
	from = (page - 1) * size
	return from, size
}

// PageFromQuery reads ?page= and ?size=, ignoring malformed values.
func PageFromQuery(c echo.Context) (from, limit int) {
	page, _ := strconv.Atoi(c.QueryParam("page"))
	size, _ := strconv.Atoi(c.QueryParam("size"))
	return Calculate(page, size)
}
