package mysql

import (
	"database/sql"
	"encoding/json"
	"errors"
	"strings"

	driver "github.com/go-sql-driver/mysql"
)

// stringOrDash returns "-" when the input is empty/whitespace
func stringOrDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// jsonOrEmpty returns details as a JSON document; anything that is not
// valid JSON gets wrapped as {"raw": ...}.
func jsonOrEmpty(details string) string {
	if strings.TrimSpace(details) == "" {
		return "{}"
	}
	if !json.Valid([]byte(details)) {
		b, _ := json.Marshal(map[string]string{"raw": details})
		return string(b)
	}
	return details
}

const errDuplicateEntry = 1062

func isDuplicate(err error) bool {
	var me *driver.MySQLError
	return errors.As(err, &me) && me.Number == errDuplicateEntry
}
