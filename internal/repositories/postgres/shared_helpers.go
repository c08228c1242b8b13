package postgres

import (
	"gorm.io/gorm"
)

// pick returns the transaction handle when one is supplied, the base
// connection otherwise. Every repository method accepts an optional tx so
// services can compose multi-row operations atomically.
func pick(base, tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return base
}

func applySort(query *gorm.DB, sortBy, sortOrder, fallback string, allowed map[string]bool) *gorm.DB {
	column := fallback
	if sortBy != "" && allowed[sortBy] {
		column = sortBy
	}
	order := "desc"
	if sortOrder == "asc" {
		order = "asc"
	}
	return query.Order(column + " " + order)
}

func applyPagination(query *gorm.DB, limit, offset int) *gorm.DB {
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	return query
}
