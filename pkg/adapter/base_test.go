package adapter

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/leapstack-labs/polyglot/pkg/core"
	"github.com/leapstack-labs/polyglot/pkg/dialect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBaseSQLAdapter_Lifecycle(t *testing.T) {
	base := &BaseSQLAdapter{}
	assert.False(t, base.IsConnected())
	assert.Nil(t, base.DB())
	assert.NoError(t, base.Close(), "closing an unconnected adapter")

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	mock.ExpectClose()

	base.Conn = db
	assert.True(t, base.IsConnected())
	assert.Same(t, db, base.DB())

	require.NoError(t, base.Close())
	assert.False(t, base.IsConnected())
	assert.NoError(t, base.Close(), "second close")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBaseSQLAdapter_Exec(t *testing.T) {
	tests := []struct {
		name      string
		connect   bool
		setup     func(mock sqlmock.Sqlmock)
		stmt      string
		wantErr   error
		errSubstr string
	}{
		{
			name:    "not connected",
			stmt:    "CREATE TABLE article (id INTEGER)",
			wantErr: ErrNotConnected,
		},
		{
			name:    "ddl",
			connect: true,
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec("CREATE TABLE article_translation").WillReturnResult(sqlmock.NewResult(0, 0))
			},
			stmt: "CREATE TABLE article_translation (id INTEGER)",
		},
		{
			name:    "driver error",
			connect: true,
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec("CREATE TABLE broken").WillReturnError(assert.AnError)
			},
			stmt:      "CREATE TABLE broken",
			wantErr:   assert.AnError,
			errSubstr: "failed to execute SQL",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			base := &BaseSQLAdapter{}
			if tt.connect {
				db, mock, err := sqlmock.New()
				require.NoError(t, err)
				defer func() { _ = db.Close() }()
				tt.setup(mock)
				base.Conn = db
			}

			err := base.Exec(context.Background(), tt.stmt)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tt.wantErr)
			assert.Contains(t, err.Error(), tt.errSubstr)
		})
	}
}

func TestParseQualifiedName(t *testing.T) {
	d := dialect.NewDialect("test").DefaultSchema("public").Build()

	tests := []struct {
		table, schema, name string
	}{
		{"article", "public", "article"},
		{"app.article_translation", "app", "article_translation"},
		{"db.app.article", "db.app", "article"},
	}
	for _, tt := range tests {
		t.Run(tt.table, func(t *testing.T) {
			schema, name := ParseQualifiedName(tt.table, d)
			assert.Equal(t, tt.schema, schema)
			assert.Equal(t, tt.name, name)
		})
	}
}

func TestBaseSQLAdapter_GetTableMetadataCommon(t *testing.T) {
	d := dialect.NewDialect("test").
		DefaultSchema("public").
		PlaceholderStyle(core.PlaceholderDollar).
		Build()

	t.Run("columns and rows", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer func() { _ = db.Close() }()

		mock.ExpectQuery("information_schema.columns").
			WithArgs("public", "article_translation").
			WillReturnRows(sqlmock.NewRows([]string{"column_name", "data_type", "is_nullable", "ordinal_position"}).
				AddRow("id", "bigint", "NO", 1).
				AddRow("title", "character varying", "YES", 2))
		mock.ExpectQuery(`SELECT COUNT\(\*\) FROM "public"."article_translation"`).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

		base := &BaseSQLAdapter{Conn: db}
		meta, err := base.GetTableMetadataCommon(context.Background(), "article_translation", d)
		require.NoError(t, err)

		assert.Equal(t, "public", meta.Schema)
		require.Len(t, meta.Columns, 2)
		assert.True(t, meta.Columns[0].PrimaryKey)
		assert.False(t, meta.Columns[0].Nullable)
		assert.True(t, meta.Columns[1].Nullable)
		assert.Equal(t, int64(3), meta.RowCount)
		assert.Equal(t, []string{"slug"}, meta.MissingColumns([]string{"id", "title", "slug"}))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing table", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer func() { _ = db.Close() }()

		mock.ExpectQuery("information_schema.columns").
			WithArgs("public", "ghost").
			WillReturnRows(sqlmock.NewRows([]string{"column_name", "data_type", "is_nullable", "ordinal_position"}))

		base := &BaseSQLAdapter{Conn: db}
		_, err = base.GetTableMetadataCommon(context.Background(), "ghost", d)
		assert.ErrorIs(t, err, core.ErrTableNotFound)
	})

	t.Run("count failure reports zero", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer func() { _ = db.Close() }()

		mock.ExpectQuery("information_schema.columns").
			WithArgs("public", "article").
			WillReturnRows(sqlmock.NewRows([]string{"column_name", "data_type", "is_nullable", "ordinal_position"}).
				AddRow("id", "bigint", "NO", 1))
		mock.ExpectQuery(`SELECT COUNT`).WillReturnError(assert.AnError)

		base := &BaseSQLAdapter{Conn: db}
		meta, err := base.GetTableMetadataCommon(context.Background(), "article", d)
		require.NoError(t, err)
		assert.Zero(t, meta.RowCount)
	})

	t.Run("not connected", func(t *testing.T) {
		_, err := (&BaseSQLAdapter{}).GetTableMetadataCommon(context.Background(), "article", d)
		assert.ErrorIs(t, err, ErrNotConnected)
	})
}
