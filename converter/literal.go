package converter

import (
	"math"
	"time"

	"github.com/pingcap/tidb/parser/ast"
	"github.com/tsfans/sql2mongo/document"
	"github.com/tsfans/sql2mongo/parser"
)

const (
	SQLFuncName_ObjectID  = "objectid"
	SQLFuncName_Date      = "date"
	SQLFuncName_Timestamp = "timestamp"
	SQLFuncName_ISODate   = "isodate"
)

var (
	// 支持的日期字面量格式
	dateLayouts = []string{
		time.RFC3339Nano,
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
		"2006-01-02",
	}

	// 函数名 -> 字面量构造
	literalFuncs = map[string]func(node parser.Expr, arg string) (document.Value, error){
		SQLFuncName_ObjectID:  objectIDLiteral,
		SQLFuncName_Date:      dateLiteral,
		SQLFuncName_Timestamp: dateLiteral,
		SQLFuncName_ISODate:   dateLiteral,
		ast.DateLiteral:       dateLiteral,
		ast.TimestampLiteral:  dateLiteral,
	}
)

// literalValue 将字面量节点转为文档值，不是字面量时 ok 为 false
func literalValue(e parser.Expr) (v document.Value, ok bool, err error) {
	switch n := parser.Unwrap(e).(type) {
	case *parser.Literal:
		ok = true
		v, err = scalarValue(n)
	case *parser.FuncCall:
		build, isLiteral := literalFuncs[n.Name]
		if !isLiteral {
			return
		}
		var arg *parser.Literal
		if len(n.Args) == 1 {
			arg, _ = parser.Unwrap(n.Args[0]).(*parser.Literal)
		}
		// DATE(col) 之类的调用不是字面量
		if arg == nil {
			return
		}
		ok = true
		if arg.Kind != parser.LitString {
			err = invalidLiteral(n, "%v expects a string argument", n.Name)
			return
		}
		v, err = build(n, arg.Str)
	}
	return
}

func scalarValue(lit *parser.Literal) (v document.Value, err error) {
	switch lit.Kind {
	case parser.LitNull:
		v = document.Null{}
	case parser.LitBool:
		v = document.Bool(lit.Bool)
	case parser.LitInt:
		v = document.Int(lit.Int)
	case parser.LitFloat:
		if math.IsInf(lit.Float, 0) || math.IsNaN(lit.Float) {
			err = invalidLiteral(lit, "number out of range")
			return
		}
		v = document.Double(lit.Float)
	case parser.LitString:
		v = document.String(lit.Str)
	case parser.LitBigInt:
		err = invalidLiteral(lit, "integer [%v] overflows int64", lit.Str)
	default:
		err = invalidLiteral(lit, "literal can not be represented as a document value")
	}
	return
}

func objectIDLiteral(node parser.Expr, arg string) (v document.Value, err error) {
	var d *document.Doc
	d, err = document.ObjectID(arg)
	if err != nil {
		err = invalidLiteral(node, "malformed ObjectId [%v]", arg)
		return
	}
	v = d
	return
}

func dateLiteral(node parser.Expr, arg string) (v document.Value, err error) {
	for _, layout := range dateLayouts {
		t, perr := time.Parse(layout, arg)
		if perr == nil {
			v = document.Date(t)
			return
		}
	}
	err = invalidLiteral(node, "malformed date [%v]", arg)
	return
}
