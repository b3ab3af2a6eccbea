// Package export generates PostgreSQL DDL that decodes TimeIDs stored in
// uuid columns, so data written through idserver can be inspected in a
// real PostgreSQL database.
package export

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/duramec/id"
)

// Function is one SQL function definition.
type Function struct {
	Name    string
	Args    string
	Returns string
	Body    string
}

// gregorianOffset is the tick count at the Unix epoch.
var gregorianOffset = strconv.FormatUint(id.TickFromTime(time.Unix(0, 0)), 10)

// Functions mirrors the TimeID accessors the wire server answers. A uuid's
// text form places time_low at 1-8, time_mid at 10-13, the version at 15,
// time_hi at 16-18, clock_seq at 20-23 and the node at 25-36.
var Functions = []Function{
	{
		Name:    "timeid_tick",
		Args:    "u uuid",
		Returns: "bigint",
		Body: "SELECT (('x' || substr(h, 16, 3))::bit(12)::bigint << 48)\n" +
			"     | (('x' || substr(h, 10, 4))::bit(16)::bigint << 32)\n" +
			"     | ('x' || substr(h, 1, 8))::bit(32)::bigint\n" +
			"  FROM (SELECT u::text AS h) s",
	},
	{
		Name:    "timeid_node",
		Args:    "u uuid",
		Returns: "macaddr",
		Body:    "SELECT substr(u::text, 25, 12)::macaddr",
	},
	{
		Name:    "timeid_payload",
		Args:    "u uuid",
		Returns: "integer",
		Body:    fmt.Sprintf("SELECT ('x' || substr(u::text, 20, 4))::bit(16)::integer & %d", id.MaxPayload),
	},
	{
		Name:    "timeid_version",
		Args:    "u uuid",
		Returns: "integer",
		Body:    "SELECT ('x' || substr(u::text, 15, 1))::bit(4)::integer",
	},
	{
		Name:    "timeid_variant",
		Args:    "u uuid",
		Returns: "integer",
		Body:    "SELECT ('x' || substr(u::text, 20, 1))::bit(4)::integer >> 2",
	},
	{
		Name:    "timeid_time",
		Args:    "u uuid",
		Returns: "timestamptz",
		Body:    "SELECT to_timestamp((timeid_tick(u) - " + gregorianOffset + ") / 10000000.0)",
	},
}

// ExportDDL generates CREATE FUNCTION statements for every accessor.
func ExportDDL() string {
	var sb strings.Builder
	sb.WriteString("-- idserver TimeID accessors for PostgreSQL\n")
	sb.WriteString("-- Generated; safe to re-run\n\n")

	for i, f := range Functions {
		sb.WriteString(FunctionToDDL(f))
		if i < len(Functions)-1 {
			sb.WriteString("\n")
		}
	}

	return sb.String()
}

// FunctionToDDL generates a CREATE OR REPLACE FUNCTION statement for f.
func FunctionToDDL(f Function) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("CREATE OR REPLACE FUNCTION %s(%s) RETURNS %s\n", f.Name, f.Args, f.Returns))
	sb.WriteString("LANGUAGE sql IMMUTABLE STRICT PARALLEL SAFE AS $$\n")
	sb.WriteString("  ")
	sb.WriteString(f.Body)
	sb.WriteString("\n$$;\n")
	return sb.String()
}

// ExportData generates a table for ids and INSERT statements filling it.
func ExportData(table string, ids []id.TimeID) string {
	var sb strings.Builder
	sb.WriteString("-- idserver data export\n\n")
	sb.WriteString(fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n  id UUID PRIMARY KEY\n);\n\n", quoteIdent(table)))

	for _, t := range ids {
		sb.WriteString(rowToInsert(table, t))
	}

	return sb.String()
}

// rowToInsert generates an INSERT statement for a single id
func rowToInsert(table string, t id.TimeID) string {
	return fmt.Sprintf("INSERT INTO %s (id) VALUES ('%s');\n", quoteIdent(table), t)
}

// quoteIdent leaves plain lowercase names alone and double-quotes the rest.
func quoteIdent(name string) string {
	plain := name != ""
	for i, c := range name {
		if !(c == '_' || 'a' <= c && c <= 'z' || i > 0 && '0' <= c && c <= '9') {
			plain = false
			break
		}
	}
	if plain {
		return name
	}
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// Export generates both DDL and data
func Export(table string, ids []id.TimeID) string {
	var sb strings.Builder
	sb.WriteString(ExportDDL())
	sb.WriteString("\n")
	sb.WriteString(ExportData(table, ids))
	return sb.String()
}
