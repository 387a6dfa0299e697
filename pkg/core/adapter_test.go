package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTableMetadata_MissingColumns(t *testing.T) {
	meta := &TableMetadata{
		Name: "normal_translation",
		Columns: []Column{
			{Name: "id"}, {Name: "MASTER_ID"}, {Name: "language_code"},
		},
	}

	assert.True(t, meta.HasColumn("master_id"))
	assert.False(t, meta.HasColumn("translated_field"))
	assert.Equal(t, []string{"translated_field"},
		meta.MissingColumns([]string{"id", "master_id", "language_code", "translated_field"}))
	assert.Empty(t, meta.MissingColumns([]string{"id"}))
}
