// Package convert rewrites a mysqldump file into SQL that psql accepts.
//
// The rewrite is a fixed list of text substitutions, good enough for dumps of
// the logistics schema; it does not parse SQL.
package convert

import (
	"os"
	"regexp"
	"strings"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
)

const (
	header = "SET client_encoding = 'UTF8';\nSET session_replication_role = 'replica';\n\n"
	footer = "\n\nSET session_replication_role = 'origin';"
)

type substitution struct {
	re   *regexp.Regexp
	repl string
}

// applied in order; UNLOCK goes before LOCK or "UNLOCK TABLES;" leaves "UN"
var substitutions = []substitution{
	{regexp.MustCompile(`(?s)/\*!.*?\*/;`), ""},
	{regexp.MustCompile(`(?i)int\s+NOT\s+NULL\s+AUTO_INCREMENT`), "SERIAL"},
	{regexp.MustCompile(`(?i)\)\s*ENGINE=InnoDB.*?;`), ");"},
	{regexp.MustCompile(`(?i)UNLOCK TABLES;`), ""},
	{regexp.MustCompile(`(?i)LOCK TABLES.*?;`), ""},
	{regexp.MustCompile(`(?i)\s+COLLATE\s+\w+`), ""},
	{regexp.MustCompile(`(?i)\s+CHARACTER SET\s+\w+`), ""},
	{regexp.MustCompile(`(?i)DROP TABLE IF EXISTS\s+(\w+);`), "DROP TABLE IF EXISTS ${1} CASCADE;"},
}

// trailing commas left in front of ")" once KEY lines are commented out
var commaFixes = []substitution{
	{regexp.MustCompile(`,\s*--.*?\n\s*\)`), "\n)"},
	{regexp.MustCompile(`,\s*\n\s*\)`), "\n)"},
}

func MySQLToPostgres(dump string) string {
	out := strings.ReplaceAll(dump, "`", "")
	for _, s := range substitutions {
		out = s.re.ReplaceAllString(out, s.repl)
	}

	// PostgreSQL has no inline index definitions
	lines := strings.Split(out, "\n")
	for i, line := range lines {
		stripped := strings.TrimSpace(line)
		if strings.HasPrefix(stripped, "KEY ") {
			lines[i] = "-- " + line
		}
	}
	out = strings.Join(lines, "\n")

	for _, s := range commaFixes {
		out = s.re.ReplaceAllString(out, s.repl)
	}

	return header + out + footer
}

// Converts the dump at in and writes the result to out
func ConvertFile(in string, out string) error {
	data, err := os.ReadFile(in)
	if err != nil {
		return errors.Wrap(err, "read dump")
	}

	converted := MySQLToPostgres(string(data))
	if err := os.WriteFile(out, []byte(converted), 0o644); err != nil {
		return errors.Wrap(err, "write converted dump")
	}

	zlog.Info().Str("in", in).Str("out", out).Int("bytes", len(converted)).Msg("Dump converted")
	return nil
}
