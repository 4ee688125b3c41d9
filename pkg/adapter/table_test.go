package adapter

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapforge/pkg/core"
)

func TestNewTableInfersKinds(t *testing.T) {
	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name   string
		values []any
		want   DataKind
	}{
		{"booleans", []any{"true", "False", nil}, KindBoolean},
		{"native booleans", []any{true, false}, KindBoolean},
		{"integers", []any{"1", "-2", ""}, KindInteger},
		{"native integers", []any{int64(1), 2}, KindInteger},
		{"mixed numbers", []any{"1", "2.5"}, KindNumber},
		{"whole floats", []any{1.0, 2.0}, KindInteger},
		{"dates", []any{"2024-01-01", "2024/02/03"}, KindDate},
		{"native dates", []any{day}, KindDate},
		{"datetimes", []any{"2024-01-01 10:00:00", "2024-01-01T10:00:00Z"}, KindDateTime},
		{"mixed", []any{"1", "x"}, KindText},
		{"all null", []any{nil, ""}, KindText},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows := make([][]any, len(tt.values))
			for i, v := range tt.values {
				rows[i] = []any{v}
			}
			table := NewTable([]string{"c"}, rows)
			kind, err := table.Kind(0)
			require.NoError(t, err)
			assert.Equal(t, tt.want, kind, "got %s", kind)
		})
	}
}

func TestTableAccessors(t *testing.T) {
	table := NewTable([]string{"Grantee", "privilege"}, [][]any{{"a", "SELECT"}, {"b", "INSERT"}})
	assert.Equal(t, 2, table.Len())

	_, ok := table.ColumnIndex("grantee")
	assert.False(t, ok)
	i, ok := table.ColumnIndexFold("grantee")
	assert.True(t, ok)
	assert.Equal(t, 0, i)

	values, err := table.ColumnValues("PRIVILEGE")
	require.NoError(t, err)
	assert.Equal(t, []any{"SELECT", "INSERT"}, values)

	_, err = table.ColumnValues("missing")
	assert.True(t, core.IsKind(err, core.KindInternal))

	_, err = table.Kind(-1)
	assert.True(t, core.IsKind(err, core.KindInternal))
}

func TestReadTable(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectQuery("select").WillReturnRows(
		sqlmock.NewRows([]string{"id", "name"}).
			AddRow(int64(1), []byte("alice")).
			AddRow(int64(2), []byte("bob")).
			AddRow(int64(3), []byte("carol")),
	)
	rows, err := db.Query("select id, name from people")
	require.NoError(t, err)

	table, err := ReadTable(rows, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "name"}, table.Columns)
	assert.Equal(t, [][]any{{int64(1), "alice"}, {int64(2), "bob"}}, table.Rows)
}
