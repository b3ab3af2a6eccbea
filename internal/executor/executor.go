// Package executor parses SQL queries and evaluates the identifier functions
// the wire server exposes.
package executor

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/duramec/id"
	"github.com/xwb1989/sqlparser"
)

// Type is the Postgres type OID a column is described with.
type Type uint32

const (
	TypeInt8    Type = 20
	TypeText    Type = 25
	TypeMacaddr Type = 829
	TypeUUID    Type = 2950
)

// SQLSTATE codes returned to clients.
const (
	CodeSyntaxError         = "42601"
	CodeUndefinedFunction   = "42883"
	CodeInvalidText         = "22P02"
	CodeFeatureNotSupported = "0A000"
	CodeInternal            = "XX000"
)

// Error carries the SQLSTATE a failed query reports.
type Error struct {
	Code string
	Err  error
}

func (e *Error) Error() string { return e.Err.Error() }

func (e *Error) Unwrap() error { return e.Err }

func newError(code string, format string, args ...interface{}) *Error {
	return &Error{Code: code, Err: fmt.Errorf(format, args...)}
}

// Column describes one result column.
type Column struct {
	Name string
	Type Type
}

// Result represents the result of executing a SQL statement
type Result struct {
	Columns []Column
	Rows    [][]string
	Message string // command tag
}

// Executor evaluates queries against one Generator.
type Executor struct {
	gen     *id.Generator
	version string
}

// NewExecutor creates a new SQL executor. version is what version() returns.
func NewExecutor(gen *id.Generator, version string) *Executor {
	return &Executor{gen: gen, version: version}
}

// Execute parses and executes a SQL statement
func (e *Executor) Execute(ctx context.Context, sql string) (*Result, error) {
	sql = strings.TrimSpace(sql)
	if sql == "" {
		return &Result{}, nil
	}

	// Remove trailing semicolon for parser
	sql = strings.TrimSpace(strings.TrimSuffix(sql, ";"))

	// clients ask for this before anything else
	if strings.EqualFold(sql, "select version()") {
		return &Result{
			Columns: []Column{{Name: "version", Type: TypeText}},
			Rows:    [][]string{{e.version}},
			Message: "SELECT 1",
		}, nil
	}

	stmt, err := sqlparser.Parse(sql)
	if err != nil {
		return nil, newError(CodeSyntaxError, "parse error: %v", err)
	}

	switch s := stmt.(type) {
	case *sqlparser.Select:
		return e.executeSelect(ctx, s)
	case *sqlparser.Set:
		return &Result{Message: "SET"}, nil
	default:
		return nil, newError(CodeFeatureNotSupported, "unsupported statement type: %T", stmt)
	}
}

// executeSelect evaluates a SELECT without a table: one row, one column per
// select expression.
func (e *Executor) executeSelect(ctx context.Context, stmt *sqlparser.Select) (*Result, error) {
	if !fromDual(stmt.From) {
		return nil, newError(CodeFeatureNotSupported, "SELECT from tables is not supported")
	}
	if stmt.Where != nil || stmt.GroupBy != nil || stmt.Having != nil {
		return nil, newError(CodeFeatureNotSupported, "only plain function SELECT is supported")
	}

	columns := make([]Column, 0, len(stmt.SelectExprs))
	row := make([]string, 0, len(stmt.SelectExprs))

	for _, expr := range stmt.SelectExprs {
		aliased, ok := expr.(*sqlparser.AliasedExpr)
		if !ok {
			return nil, newError(CodeFeatureNotSupported, "unsupported select expression: %s", sqlparser.String(expr))
		}

		v, err := e.eval(ctx, aliased.Expr)
		if err != nil {
			return nil, err
		}

		name := columnName(aliased.Expr)
		if !aliased.As.IsEmpty() {
			name = aliased.As.String()
		}
		columns = append(columns, Column{Name: name, Type: v.typ})
		row = append(row, v.text)
	}

	return &Result{
		Columns: columns,
		Rows:    [][]string{row},
		Message: "SELECT 1",
	}, nil
}

// fromDual reports whether the FROM clause is absent, which the parser
// records as the table "dual".
func fromDual(from sqlparser.TableExprs) bool {
	if len(from) == 0 {
		return true
	}
	if len(from) != 1 {
		return false
	}
	aliased, ok := from[0].(*sqlparser.AliasedTableExpr)
	if !ok {
		return false
	}
	tbl, ok := aliased.Expr.(sqlparser.TableName)
	return ok && tbl.Name.String() == "dual" && tbl.Qualifier.IsEmpty()
}

func columnName(expr sqlparser.Expr) string {
	if f, ok := expr.(*sqlparser.FuncExpr); ok {
		return f.Name.Lowered()
	}
	return "?column?"
}

type value struct {
	typ  Type
	text string
}

func (e *Executor) eval(ctx context.Context, expr sqlparser.Expr) (value, error) {
	switch x := expr.(type) {
	case *sqlparser.SQLVal:
		switch x.Type {
		case sqlparser.StrVal:
			return value{typ: TypeText, text: string(x.Val)}, nil
		case sqlparser.IntVal:
			return value{typ: TypeInt8, text: string(x.Val)}, nil
		}
		return value{}, newError(CodeFeatureNotSupported, "unsupported literal: %s", sqlparser.String(x))
	case *sqlparser.ParenExpr:
		return e.eval(ctx, x.Expr)
	case *sqlparser.FuncExpr:
		return e.call(ctx, x)
	default:
		return value{}, newError(CodeFeatureNotSupported, "unsupported expression: %s", sqlparser.String(expr))
	}
}

type function struct {
	args int
	fn   func(e *Executor, ctx context.Context, args []value) (value, error)
}

var functions = map[string]function{
	"new_timeid": {0, func(e *Executor, ctx context.Context, _ []value) (value, error) {
		t, err := e.gen.Next(ctx)
		if err != nil {
			return value{}, &Error{Code: CodeInternal, Err: err}
		}
		return uuidValue(t), nil
	}},
	"server_node": {0, func(e *Executor, _ context.Context, _ []value) (value, error) {
		return value{typ: TypeMacaddr, text: e.gen.Node().String()}, nil
	}},
	"timeid": {1, timeIDFunc(func(t id.TimeID) value {
		return uuidValue(t)
	})},
	"timeid_tick": {1, timeIDFunc(func(t id.TimeID) value {
		return intValue(int64(t.Tick()))
	})},
	"timeid_node": {1, timeIDFunc(func(t id.TimeID) value {
		return value{typ: TypeMacaddr, text: t.NodeEUI48().String()}
	})},
	"timeid_payload": {1, timeIDFunc(func(t id.TimeID) value {
		return intValue(int64(t.Payload()))
	})},
	"timeid_version": {1, timeIDFunc(func(t id.TimeID) value {
		return intValue(int64(t.Version()))
	})},
	"timeid_variant": {1, timeIDFunc(func(t id.TimeID) value {
		return intValue(int64(t.Variant()))
	})},
	"timeid_hash": {1, timeIDFunc(func(t id.TimeID) value {
		return intValue(int64(t.Hash()))
	})},
	"timeid_time": {1, timeIDFunc(func(t id.TimeID) value {
		return value{typ: TypeText, text: t.Time().Format(time.RFC3339Nano)}
	})},
	"timeid_compare": {2, func(_ *Executor, _ context.Context, args []value) (value, error) {
		a, err := parseTimeID(args[0])
		if err != nil {
			return value{}, err
		}
		b, err := parseTimeID(args[1])
		if err != nil {
			return value{}, err
		}
		return intValue(int64(a.Compare(b))), nil
	}},
	"eui48": {1, func(_ *Executor, _ context.Context, args []value) (value, error) {
		a, err := id.ParseEUI48(args[0].text)
		if err != nil {
			return value{}, &Error{Code: CodeInvalidText, Err: err}
		}
		return value{typ: TypeMacaddr, text: a.String()}, nil
	}},
	"eui64": {1, func(_ *Executor, _ context.Context, args []value) (value, error) {
		a, err := id.ParseEUI64(args[0].text)
		if err != nil {
			return value{}, &Error{Code: CodeInvalidText, Err: err}
		}
		return value{typ: TypeText, text: a.String()}, nil
	}},
	"version": {0, func(e *Executor, _ context.Context, _ []value) (value, error) {
		return value{typ: TypeText, text: e.version}, nil
	}},
}

// Functions returns the names of the callable functions.
func Functions() []string {
	names := make([]string, 0, len(functions))
	for name := range functions {
		names = append(names, name)
	}
	return names
}

func (e *Executor) call(ctx context.Context, f *sqlparser.FuncExpr) (value, error) {
	name := f.Name.Lowered()
	def, ok := functions[name]
	if !ok || !f.Qualifier.IsEmpty() || f.Distinct {
		return value{}, newError(CodeUndefinedFunction, "function %s does not exist", sqlparser.String(f.Name))
	}
	if len(f.Exprs) != def.args {
		return value{}, newError(CodeUndefinedFunction, "function %s takes %d arguments, got %d", name, def.args, len(f.Exprs))
	}

	args := make([]value, len(f.Exprs))
	for i, arg := range f.Exprs {
		aliased, ok := arg.(*sqlparser.AliasedExpr)
		if !ok {
			return value{}, newError(CodeFeatureNotSupported, "unsupported argument: %s", sqlparser.String(arg))
		}
		v, err := e.eval(ctx, aliased.Expr)
		if err != nil {
			return value{}, err
		}
		args[i] = v
	}

	return def.fn(e, ctx, args)
}

func timeIDFunc(fn func(id.TimeID) value) func(*Executor, context.Context, []value) (value, error) {
	return func(_ *Executor, _ context.Context, args []value) (value, error) {
		t, err := parseTimeID(args[0])
		if err != nil {
			return value{}, err
		}
		return fn(t), nil
	}
}

func parseTimeID(v value) (id.TimeID, error) {
	t, err := id.ParseTimeID(v.text)
	if err != nil {
		return id.TimeID{}, &Error{Code: CodeInvalidText, Err: err}
	}
	return t, nil
}

func uuidValue(t id.TimeID) value {
	return value{typ: TypeUUID, text: t.String()}
}

func intValue(n int64) value {
	return value{typ: TypeInt8, text: strconv.FormatInt(n, 10)}
}

// Code returns the SQLSTATE for err, CodeInternal if it carries none.
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}
