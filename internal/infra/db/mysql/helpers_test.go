package mysql

import (
	"fmt"
	"testing"

	driver "github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
)

func TestIsDuplicate(t *testing.T) {
	dup := &driver.MySQLError{Number: 1062, Message: "Duplicate entry"}
	assert.True(t, isDuplicate(dup))
	assert.True(t, isDuplicate(fmt.Errorf("insert: %w", dup)))
	assert.False(t, isDuplicate(&driver.MySQLError{Number: 1213}))
	assert.False(t, isDuplicate(fmt.Errorf("boom")))
}

func TestJSONOrEmpty(t *testing.T) {
	assert.Equal(t, "{}", jsonOrEmpty("  "))
	assert.Equal(t, `{"a":1}`, jsonOrEmpty(`{"a":1}`))
	assert.JSONEq(t, `{"raw":"oops"}`, jsonOrEmpty("oops"))
	assert.Equal(t, "-", stringOrDash(""))
}
