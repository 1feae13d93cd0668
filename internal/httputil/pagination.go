package httputil

import (
	"fmt"
	"strconv"

	"github.com/gin-gonic/gin"

	customValidation "github.com/allisson/courier/internal/validation"
)

const (
	defaultLimit = 50
	maxLimit     = 100
)

// ListQuery holds the paging window and the optional name filter of a list endpoint.
type ListQuery struct {
	Offset int
	Limit  int
	Filter string
}

// ParseListQuery reads offset (default 0), limit (default 50, at most 100) and the filter
// named filterKey. The filter is a topic or task name and must be a valid identifier when set.
func ParseListQuery(c *gin.Context, filterKey string) (ListQuery, error) {
	offset, limit, err := ParsePagination(c)
	if err != nil {
		return ListQuery{}, err
	}

	filter := c.Query(filterKey)
	if filter != "" {
		if err := customValidation.Identifier.Validate(filter); err != nil {
			return ListQuery{}, fmt.Errorf("invalid %s parameter: %w", filterKey, err)
		}
	}

	return ListQuery{Offset: offset, Limit: limit, Filter: filter}, nil
}

// ParsePagination parses the offset and limit query parameters.
func ParsePagination(c *gin.Context) (offset, limit int, err error) {
	offset, ok := queryInt(c, "offset", 0)
	if !ok || offset < 0 {
		return 0, 0, fmt.Errorf("invalid offset parameter: must be a non-negative integer")
	}

	limit, ok = queryInt(c, "limit", defaultLimit)
	if !ok || limit < 1 || limit > maxLimit {
		return 0, 0, fmt.Errorf("invalid limit parameter: must be between 1 and %d", maxLimit)
	}

	return offset, limit, nil
}

func queryInt(c *gin.Context, key string, fallback int) (int, bool) {
	raw, present := c.GetQuery(key)
	if !present {
		return fallback, true
	}
	v, err := strconv.Atoi(raw)
	return v, err == nil
}
