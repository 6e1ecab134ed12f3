package parser

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	tiParser "github.com/pingcap/tidb/parser"
	"github.com/pingcap/tidb/parser/ast"
	"github.com/pingcap/tidb/parser/format"
	"github.com/pingcap/tidb/parser/mysql"
	"github.com/pingcap/tidb/parser/opcode"
	"github.com/pingcap/tidb/parser/test_driver"
	log "github.com/sirupsen/logrus"
)

const (
	SQLFuncName_Count = "count"
	SQLFuncName_Sum   = "sum"
	SQLFuncName_Avg   = "avg"
	SQLFuncName_Max   = "max"
	SQLFuncName_Min   = "min"

	// math.MinInt64 去掉符号后的字面量
	minInt64Magnitude = "9223372036854775808"
)

// MySQLSelectParser 基于 tidb parser 解析 MySQL 方言的 SELECT
type MySQLSelectParser struct {
	sql    string
	parser *tiParser.Parser
}

func NewMySQLSelectParser(sql string) *MySQLSelectParser {
	return &MySQLSelectParser{sql: sql, parser: tiParser.New()}
}

func (p *MySQLSelectParser) Parse() (sel *Select, err error) {
	var stmts []ast.StmtNode
	stmts, err = p.statements()
	if err != nil {
		return
	}
	if len(stmts) != 1 {
		err = fmt.Errorf("%w: expected exactly one statement, got %d", ErrParse, len(stmts))
		return
	}
	sel, err = p.toSelect(stmts[0])
	return
}

func (p *MySQLSelectParser) ParseAll() (sels []*Select, err error) {
	var stmts []ast.StmtNode
	stmts, err = p.statements()
	if err != nil {
		return
	}
	for idx, stmt := range stmts {
		var sel *Select
		sel, err = p.toSelect(stmt)
		if err != nil {
			err = fmt.Errorf("statement %d: %w", idx+1, err)
			return
		}
		sels = append(sels, sel)
	}
	return
}

func (p *MySQLSelectParser) statements() (stmts []ast.StmtNode, err error) {
	log.Debugf("original sql is [%v]", p.sql)

	stmts, _, err = p.parser.Parse(p.sql, "", "")
	if err != nil {
		err = fmt.Errorf("%w: %v", ErrParse, err)
		return
	}
	if len(stmts) == 0 {
		err = fmt.Errorf("%w: empty sql", ErrParse)
	}
	return
}

func (p *MySQLSelectParser) toSelect(stmt ast.StmtNode) (sel *Select, err error) {
	selectStmt, ok := stmt.(*ast.SelectStmt)
	if !ok || selectStmt.Kind != ast.SelectStmtKindSelect {
		err = fmt.Errorf("%w: not a select statement [%v]", ErrParse, restoreText(stmt))
		return
	}
	if selectStmt.With != nil {
		err = fmt.Errorf("%w: WITH clause is not supported", ErrParse)
		return
	}

	sel, err = parseSelectStmt(selectStmt)
	if err != nil {
		return
	}

	sel.SQL = strings.TrimSpace(stmt.Text())
	if sel.SQL == "" {
		sel.SQL = strings.TrimSpace(p.sql)
	}
	return
}

func parseSelectStmt(stmt *ast.SelectStmt) (sel *Select, err error) {
	sel = &Select{Distinct: stmt.Distinct}

	if stmt.Fields != nil {
		for _, f := range stmt.Fields.Fields {
			var field *SelectField
			field, err = parseSelectField(f)
			if err != nil {
				return
			}
			sel.Fields = append(sel.Fields, field)
		}
	}

	if stmt.From != nil && stmt.From.TableRefs != nil {
		sel.From, sel.Joins, err = parseTableRefs(stmt.From.TableRefs)
		if err != nil {
			return
		}
		err = checkDuplicateAlias(sel.Tables())
		if err != nil {
			return
		}
	}

	if stmt.Where != nil {
		sel.Where, err = parseExpr(stmt.Where)
		if err != nil {
			return
		}
	}

	if stmt.GroupBy != nil {
		for _, item := range stmt.GroupBy.Items {
			var e Expr
			e, err = parseExpr(item.Expr)
			if err != nil {
				return
			}
			sel.GroupBy = append(sel.GroupBy, e)
		}
		if stmt.GroupBy.Rollup {
			sel.GroupBy = append(sel.GroupBy, &Unsupported{node: node{text: restoreText(stmt.GroupBy)}, Desc: "GROUP BY ... WITH ROLLUP"})
		}
	}

	if stmt.Having != nil {
		sel.Having, err = parseExpr(stmt.Having.Expr)
		if err != nil {
			return
		}
	}

	if stmt.OrderBy != nil {
		for _, item := range stmt.OrderBy.Items {
			var e Expr
			e, err = parseExpr(item.Expr)
			if err != nil {
				return
			}
			sel.OrderBy = append(sel.OrderBy, &OrderByItem{Expr: e, Desc: item.Desc})
		}
	}

	if stmt.Limit != nil {
		sel.Limit = &Limit{}
		sel.Limit.Count, err = parseLimitValue(stmt.Limit.Count)
		if err != nil {
			return
		}
		if stmt.Limit.Offset != nil {
			sel.Limit.Offset, err = parseLimitValue(stmt.Limit.Offset)
			if err != nil {
				return
			}
		}
	}

	return
}

func parseSelectField(f *ast.SelectField) (field *SelectField, err error) {
	// 通配符查询
	if f.WildCard != nil {
		field = &SelectField{WildCard: true, WildCardTable: f.WildCard.Table.O}
		return
	}

	field = &SelectField{AsName: f.AsName.O}
	field.Expr, err = parseExpr(f.Expr)
	return
}

// 将左深的连接树展开为基表和按顺序排列的连接
func parseTableRefs(rs ast.ResultSetNode) (from *TableRef, joins []*Join, err error) {
	switch n := rs.(type) {
	case *ast.Join:
		from, joins, err = parseTableRefs(n.Left)
		if err != nil || n.Right == nil {
			return
		}

		join := &Join{Natural: n.NaturalJoin}
		join.Table, err = parseJoinedTable(n.Right)
		if err != nil {
			return
		}
		switch n.Tp {
		case ast.LeftJoin:
			join.Kind = LeftJoin
		case ast.RightJoin:
			join.Kind = RightJoin
		default:
			// INNER JOIN 在语法树中也是 CrossJoin，通过连接条件区分
			join.Kind = CrossJoin
			if n.On != nil || len(n.Using) > 0 || n.NaturalJoin {
				join.Kind = InnerJoin
			}
		}
		if n.On != nil {
			join.On, err = parseExpr(n.On.Expr)
			if err != nil {
				return
			}
		}
		for _, col := range n.Using {
			join.Using = append(join.Using, col.Name.O)
		}
		joins = append(joins, join)
	case *ast.TableSource:
		from, err = parseTableSource(n)
	default:
		from = &TableRef{Unsupported: restoreText(rs)}
	}
	return
}

func parseJoinedTable(rs ast.ResultSetNode) (table *TableRef, err error) {
	if ts, ok := rs.(*ast.TableSource); ok {
		return parseTableSource(ts)
	}
	table = &TableRef{Unsupported: "nested join " + restoreText(rs)}
	return
}

func parseTableSource(ts *ast.TableSource) (table *TableRef, err error) {
	table = &TableRef{AsName: ts.AsName.O}
	switch src := ts.Source.(type) {
	case *ast.TableName:
		table.Name = src.Name.O
	case *ast.SelectStmt:
		table.Derived, err = parseSelectStmt(src)
		if err != nil {
			return
		}
		table.Unsupported = "derived table " + restoreText(src)
	default:
		table.Unsupported = restoreText(ts)
	}
	return
}

func checkDuplicateAlias(tables []*TableRef) (err error) {
	seen := map[string]bool{}
	for _, t := range tables {
		ref := strings.ToLower(t.Ref())
		if ref == "" {
			continue
		}
		if seen[ref] {
			err = fmt.Errorf("%w: can't have duplicate table alias [%v]", ErrParse, t.Ref())
			return
		}
		seen[ref] = true
	}
	return
}

func parseLimitValue(n ast.ExprNode) (v int64, err error) {
	val, ok := n.(*test_driver.ValueExpr)
	if !ok {
		err = fmt.Errorf("%w: LIMIT must be a constant, got [%v]", ErrParse, restoreText(n))
		return
	}
	switch val.Datum.Kind() {
	case test_driver.KindInt64:
		v = val.Datum.GetInt64()
	case test_driver.KindUint64:
		u := val.Datum.GetUint64()
		if u > math.MaxInt64 {
			err = fmt.Errorf("%w: LIMIT value out of range [%v]", ErrParse, u)
			return
		}
		v = int64(u)
	default:
		err = fmt.Errorf("%w: invalid LIMIT value [%v]", ErrParse, restoreText(n))
	}
	return
}

func parseExprs(nodes []ast.ExprNode) (exprs []Expr, err error) {
	for _, n := range nodes {
		var e Expr
		e, err = parseExpr(n)
		if err != nil {
			return
		}
		exprs = append(exprs, e)
	}
	return
}

func parseExpr(n ast.ExprNode) (expr Expr, err error) {
	base := node{text: restoreText(n)}
	switch e := n.(type) {
	// 普通字段
	case *ast.ColumnNameExpr:
		expr = &ColumnRef{node: base, Table: e.Name.Table.O, Name: e.Name.Name.O}
	// 显式值
	case *test_driver.ValueExpr:
		expr = parseValue(e, base)
	case *ast.ParenthesesExpr:
		var inner Expr
		inner, err = parseExpr(e.Expr)
		expr = &Paren{node: base, Expr: inner}
	case *ast.UnaryOperationExpr:
		expr, err = parseUnary(e, base)
	case *ast.BinaryOperationExpr:
		expr, err = parseBinary(e, base)
	case *ast.IsNullExpr:
		is := &IsNull{node: base, Not: e.Not}
		is.Expr, err = parseExpr(e.Expr)
		expr = is
	case *ast.BetweenExpr:
		between := &Between{node: base, Not: e.Not}
		if between.Expr, err = parseExpr(e.Expr); err != nil {
			return
		}
		if between.Low, err = parseExpr(e.Left); err != nil {
			return
		}
		between.High, err = parseExpr(e.Right)
		expr = between
	case *ast.PatternInExpr:
		expr, err = parseIn(e, base)
	case *ast.PatternLikeOrIlikeExpr:
		like := &Like{node: base, Not: e.Not, Escape: e.Escape, CaseInsensitive: !e.IsLike}
		if like.Expr, err = parseExpr(e.Expr); err != nil {
			return
		}
		like.Pattern, err = parseExpr(e.Pattern)
		expr = like
	// 聚合函数
	case *ast.AggregateFuncExpr:
		agg := &Aggregate{node: base, Name: strings.ToLower(e.F), Distinct: e.Distinct}
		agg.Args, err = parseExprs(e.Args)
		expr = agg
	// 取值函数
	case *ast.FuncCallExpr:
		fn := &FuncCall{node: base, Name: e.FnName.L}
		fn.Args, err = parseExprs(e.Args)
		expr = fn
	case *ast.WindowFuncExpr:
		expr = &Unsupported{node: base, Desc: "window function " + e.Name}
	case *ast.SubqueryExpr:
		expr = &Unsupported{node: base, Desc: "scalar subquery"}
	case *ast.ExistsSubqueryExpr:
		expr = &Unsupported{node: base, Desc: "EXISTS subquery"}
	case *ast.CaseExpr:
		expr = &Unsupported{node: base, Desc: "CASE expression"}
	default:
		log.Debugf("unknown exprNode type=%T", n)
		expr = &Unsupported{node: base, Desc: "expression"}
	}
	return
}

func parseValue(v *test_driver.ValueExpr, base node) (lit *Literal) {
	lit = &Literal{node: base}
	switch v.Datum.Kind() {
	case test_driver.KindNull:
		lit.Kind = LitNull
	case test_driver.KindInt64:
		lit.Kind = LitInt
		lit.Int = v.Datum.GetInt64()
		if mysql.HasIsBooleanFlag(v.GetType().GetFlag()) {
			lit.Kind = LitBool
			lit.Bool = lit.Int != 0
		}
	case test_driver.KindUint64:
		u := v.Datum.GetUint64()
		if u > math.MaxInt64 {
			lit.Kind = LitBigInt
			lit.Str = strconv.FormatUint(u, 10)
			return
		}
		lit.Kind = LitInt
		lit.Int = int64(u)
	case test_driver.KindFloat32, test_driver.KindFloat64:
		lit.Kind = LitFloat
		lit.Float = v.Datum.GetFloat64()
	case test_driver.KindMysqlDecimal:
		s := v.Datum.GetMysqlDecimal().String()
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			lit.Kind = LitOther
			lit.Str = s
			return
		}
		lit.Kind = LitFloat
		lit.Float = f
	case test_driver.KindString:
		lit.Kind = LitString
		lit.Str = v.Datum.GetString()
	case test_driver.KindBytes:
		lit.Kind = LitString
		lit.Str = string(v.Datum.GetBytes())
	default:
		log.Debugf("value kind=%v", v.Datum.Kind())
		lit.Kind = LitOther
		lit.Str = base.text
	}
	return
}

func parseUnary(e *ast.UnaryOperationExpr, base node) (expr Expr, err error) {
	var inner Expr
	inner, err = parseExpr(e.V)
	if err != nil {
		return
	}
	switch e.Op {
	case opcode.Not:
		expr = &Not{node: base, Expr: inner}
		return
	case opcode.Minus, opcode.Plus:
		// 带符号的数字字面量
		if lit, ok := Unwrap(inner).(*Literal); ok && (lit.Kind == LitInt || lit.Kind == LitFloat) {
			signed := *lit
			signed.node = base
			if e.Op == opcode.Minus {
				signed.Int, signed.Float = -lit.Int, -lit.Float
			}
			expr = &signed
			return
		}
		// 超出 int64 的整数：-9223372036854775808 折叠为 MinInt64，其余保持 LitBigInt
		if lit, ok := Unwrap(inner).(*Literal); ok && lit.Kind == LitBigInt {
			signed := *lit
			signed.node = base
			if e.Op == opcode.Minus {
				if lit.Str == minInt64Magnitude {
					signed.Kind, signed.Int, signed.Str = LitInt, math.MinInt64, ""
				} else {
					signed.Str = "-" + lit.Str
				}
			}
			expr = &signed
			return
		}
	}
	expr = &Unsupported{node: base, Desc: "unary operator " + e.Op.String()}
	return
}

func parseBinary(e *ast.BinaryOperationExpr, base node) (expr Expr, err error) {
	var l, r Expr
	if l, err = parseExpr(e.L); err != nil {
		return
	}
	if r, err = parseExpr(e.R); err != nil {
		return
	}
	switch e.Op {
	case opcode.LogicAnd, opcode.LogicOr:
		expr = &Logical{node: base, Op: e.Op, L: l, R: r}
	case opcode.EQ, opcode.NE, opcode.LT, opcode.LE, opcode.GT, opcode.GE, opcode.NullEQ:
		expr = &Comparison{node: base, Op: e.Op, L: l, R: r}
	default:
		expr = &Unsupported{node: base, Desc: "operator " + e.Op.String()}
	}
	return
}

func parseIn(e *ast.PatternInExpr, base node) (expr Expr, err error) {
	var target Expr
	target, err = parseExpr(e.Expr)
	if err != nil {
		return
	}
	if e.Sel == nil {
		in := &InList{node: base, Expr: target, Not: e.Not}
		in.List, err = parseExprs(e.List)
		expr = in
		return
	}

	sub, ok := e.Sel.(*ast.SubqueryExpr)
	if !ok {
		expr = &Unsupported{node: base, Desc: "IN subquery"}
		return
	}
	in := &InSubquery{node: base, Expr: target, Not: e.Not}
	switch q := sub.Query.(type) {
	case *ast.SelectStmt:
		var sel *Select
		sel, err = parseSelectStmt(q)
		if err != nil {
			return
		}
		in.Query = []*Select{sel}
	case *ast.SetOprStmt:
		if q.OrderBy != nil || q.Limit != nil {
			expr = &Unsupported{node: base, Desc: "ORDER BY or LIMIT on set operation in subquery"}
			return
		}
		for _, item := range q.SelectList.Selects {
			branch, isSelect := item.(*ast.SelectStmt)
			if !isSelect {
				expr = &Unsupported{node: base, Desc: "nested set operation in subquery"}
				return
			}
			if op := branch.AfterSetOperator; op != nil && *op != ast.Union && *op != ast.UnionAll {
				expr = &Unsupported{node: base, Desc: "set operation " + op.String() + " in subquery"}
				return
			}
			var sel *Select
			sel, err = parseSelectStmt(branch)
			if err != nil {
				return
			}
			in.Query = append(in.Query, sel)
		}
	default:
		expr = &Unsupported{node: base, Desc: "IN subquery"}
		return
	}
	expr = in
	return
}

func restoreText(n ast.Node) string {
	var sb strings.Builder
	if err := n.Restore(format.NewRestoreCtx(format.DefaultRestoreFlags, &sb)); err != nil {
		return fmt.Sprintf("%T", n)
	}
	return sb.String()
}
