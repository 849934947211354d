package convert

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMySQLToPostgres_Golden(t *testing.T) {
	dump, err := os.ReadFile(filepath.Join("testdata", "mysql_dump.sql"))
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "mysql_dump", []byte(MySQLToPostgres(string(dump))))
}

func TestMySQLToPostgres(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"backticks", "SELECT `a` FROM `t`;", "SELECT a FROM t;"},
		{"directive", "/*!40101 SET NAMES utf8mb4 */;\nSELECT 1;", "\nSELECT 1;"},
		{"multiline directive", "/*!40101 SET\n x = 1 */;", ""},
		{"auto increment", "id int  NOT NULL auto_increment,", "id SERIAL,"},
		{"engine", ") ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;", ");"},
		{"unlock", "UNLOCK TABLES;", ""},
		{"lock", "LOCK TABLES t WRITE;INSERT INTO t VALUES (1);", "INSERT INTO t VALUES (1);"},
		{"collate", "name varchar(10) COLLATE utf8mb4_bin NOT NULL", "name varchar(10) NOT NULL"},
		{"charset", "name varchar(10) CHARACTER SET latin1 NOT NULL", "name varchar(10) NOT NULL"},
		{"cascade", "DROP TABLE IF EXISTS shipments;", "DROP TABLE IF EXISTS shipments CASCADE;"},
		{"key lines", "  id int,\n  KEY k (id)\n)", "  id int\n)"},
		{"primary key kept", "  PRIMARY KEY (id),\n  FOREIGN KEY (c) REFERENCES c (c)\n)", "  PRIMARY KEY (id),\n  FOREIGN KEY (c) REFERENCES c (c)\n)"},
		{"trailing comma", "  a int,\n)", "  a int\n)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MySQLToPostgres(tt.in)
			require.True(t, strings.HasPrefix(got, header))
			require.True(t, strings.HasSuffix(got, footer))
			assert.Equal(t, tt.want, strings.TrimSuffix(strings.TrimPrefix(got, header), footer))
		})
	}
}

func TestMySQLToPostgres_NoStrayUnlock(t *testing.T) {
	got := MySQLToPostgres("LOCK TABLES t WRITE;\nINSERT INTO t VALUES (1);\nUNLOCK TABLES;\n")
	assert.NotContains(t, got, "UN\n")
	assert.NotContains(t, got, "LOCK")
}

func TestConvertFile(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "dump.sql")
	out := filepath.Join(dir, "dump_pg.sql")
	require.NoError(t, os.WriteFile(in, []byte("DROP TABLE IF EXISTS `t`;\n"), 0o644))

	require.NoError(t, ConvertFile(in, out))
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), "DROP TABLE IF EXISTS t CASCADE;")

	assert.Error(t, ConvertFile(filepath.Join(dir, "missing.sql"), out))
}
