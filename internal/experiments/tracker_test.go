package experiments

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsUniqueViolation_MatchesKnownDriverMessages(t *testing.T) {
	assert.True(t, isUniqueViolation(errUnique("duplicate key value violates unique constraint \"experiments_tenant_name_key\"")))
	assert.True(t, isUniqueViolation(errUnique("ERROR: unique constraint failed")))
	assert.False(t, isUniqueViolation(errUnique("connection refused")))
	assert.False(t, isUniqueViolation(nil))
}

func TestContains_SubstringMatch(t *testing.T) {
	assert.True(t, contains("duplicate key value", "duplicate key"))
	assert.True(t, contains("abc", "abc"))
	assert.False(t, contains("abc", "abcd"))
	assert.False(t, contains("", "x"))
	assert.True(t, contains("x", ""))
}

func TestFlattenConfig_FlattensNestedMapsWithDotKeys(t *testing.T) {
	config := map[string]any{
		"learning_rate": 0.1,
		"model": map[string]any{
			"n_estimators": 100,
			"nested": map[string]any{
				"depth": 3,
			},
		},
		"tags": []any{"a", "b"},
	}

	flat := make(map[string]string)
	flattenConfig("", config, flat)

	assert.Equal(t, "0.1", flat["learning_rate"])
	assert.Equal(t, "100", flat["model.n_estimators"])
	assert.Equal(t, "3", flat["model.nested.depth"])
	assert.Equal(t, "[a b]", flat["tags"])
}

type errUnique string

func (e errUnique) Error() string { return string(e) }
