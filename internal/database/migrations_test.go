package database

import (
	"io/fs"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationFiles_SortedSQLOnly(t *testing.T) {
	fsys := fstest.MapFS{
		"m/0002_b.sql":      {Data: []byte("SELECT 2")},
		"m/0001_a.sql":      {Data: []byte("SELECT 1")},
		"m/README.md":       {Data: []byte("docs")},
		"m/nested/0003.sql": {Data: []byte("SELECT 3")},
	}

	files, err := migrationFiles(fsys, "m")
	require.NoError(t, err)
	assert.Equal(t, []string{"0001_a.sql", "0002_b.sql"}, files)
}

func TestMigrationFiles_MissingDir(t *testing.T) {
	_, err := migrationFiles(fstest.MapFS{}, "nope")
	require.Error(t, err)
}

func TestEmbeddedMigrations(t *testing.T) {
	tests := []struct {
		dir   string
		table string
	}{
		{dir: KitchenMigrations, table: "kitchen_orders"},
		{dir: KitchenMigrations, table: "kitchen_order_status_log"},
		{dir: OrderMigrations, table: "orders"},
		{dir: OrderMigrations, table: "order_items"},
		{dir: OrderMigrations, table: "menu_items"},
	}

	for _, tt := range tests {
		t.Run(tt.table, func(t *testing.T) {
			files, err := migrationFiles(Migrations, tt.dir)
			require.NoError(t, err)
			require.NotEmpty(t, files)

			var found bool
			for _, name := range files {
				body, err := fs.ReadFile(Migrations, tt.dir+"/"+name)
				require.NoError(t, err)
				if strings.Contains(string(body), "CREATE TABLE IF NOT EXISTS "+tt.table+" (") {
					found = true
				}
			}
			assert.True(t, found, "no migration creates %s", tt.table)
		})
	}
}
