package repository

import (
	"database/sql"
	"errors"
	"strings"
)

// HandleNotFound processes a database query result, converting sql.ErrNoRows
// to a nil result without error. This is a common pattern for Find* operations
// where a missing row is not an error condition.
//
// Usage:
//
//	var account model.Account
//	err := r.db.GetContext(ctx, &account, query, args...)
//	return HandleNotFound(&account, err)
func HandleNotFound[T any](result *T, err error) (*T, error) {
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike quotes LIKE wildcards so user search text matches literally.
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
