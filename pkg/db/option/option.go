// Package option holds composable gorm query modifiers.
package option

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/smallbiznis/crewbill/pkg/db/pagination"
	"gorm.io/gorm"
)

type QueryOption interface {
	Apply(*gorm.DB) *gorm.DB
}

type QueryOptionFunc func(*gorm.DB) *gorm.DB

func (f QueryOptionFunc) Apply(db *gorm.DB) *gorm.DB { return f(db) }

type Operator string

const (
	EQ  Operator = "="
	GTE Operator = ">="
	LTE Operator = "<="
	IN  Operator = "IN"
)

type Condition struct {
	Field    string
	Operator Operator
	Value    any
}

// ApplyOperator adds a single where clause built from the condition.
func ApplyOperator(cond Condition) QueryOption {
	return QueryOptionFunc(func(db *gorm.DB) *gorm.DB {
		field := strings.TrimSpace(cond.Field)
		if field == "" {
			return db
		}
		if cond.Operator == IN {
			return db.Where(fmt.Sprintf("%s IN ?", field), cond.Value)
		}
		return db.Where(fmt.Sprintf("%s %s ?", field, cond.Operator), cond.Value)
	})
}

type QuerySortBy struct {
	Field string
	Desc  bool
	Allow map[string]bool
}

// WithSortBy orders by an allow-listed field, defaulting to created_at desc.
func WithSortBy(sort QuerySortBy) QueryOption {
	return QueryOptionFunc(func(db *gorm.DB) *gorm.DB {
		field := strings.TrimSpace(sort.Field)
		if field == "" || !sort.Allow[field] {
			return db.Order("created_at desc, id desc")
		}
		direction := "asc"
		if sort.Desc {
			direction = "desc"
		}
		return db.Order(fmt.Sprintf("%s %s, id %s", field, direction, direction))
	})
}

// ApplyPagination limits the query to one page plus a lookahead row.
func ApplyPagination(page pagination.Pagination) QueryOption {
	return QueryOptionFunc(func(db *gorm.DB) *gorm.DB {
		size := page.PageSize
		if size <= 0 {
			size = 10
		}
		if cursor, err := pagination.DecodeCursor(page.PageToken); err == nil && cursor != nil {
			if id, err := strconv.ParseInt(cursor.ID, 10, 64); err == nil && id > 0 {
				db = db.Where("id < ?", id)
			}
		}
		return db.Limit(size + 1)
	})
}
