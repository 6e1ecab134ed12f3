package converter

import (
	"regexp"
	"strings"

	"github.com/pingcap/tidb/parser/opcode"
	"github.com/tsfans/sql2mongo/document"
	"github.com/tsfans/sql2mongo/parser"
)

// fieldResolver 将表达式解析为文档字段路径，不是字段时 ok 为 false
type fieldResolver interface {
	field(e parser.Expr) (path string, ok bool, err error)
}

// whereResolver 解析 WHERE 和 JOIN 中的列
type whereResolver struct {
	scope *scope
}

func (r whereResolver) field(e parser.Expr) (path string, ok bool, err error) {
	switch n := e.(type) {
	case *parser.ColumnRef:
		_, path, err = r.scope.resolve(n)
		ok = err == nil
	case *parser.Aggregate:
		err = unsupported(n, "aggregate function [%v] is not allowed in WHERE", n.Name)
	}
	return
}

type operandKind int

const (
	operandField operandKind = iota + 1
	operandLiteral
	// 匿名值字段，谓词直接写在顶层
	operandValue
)

type operand struct {
	kind  operandKind
	path  string
	value document.Value
}

// exprTranslator 把谓词树翻译为过滤文档
type exprTranslator struct {
	resolver fieldResolver
	scope    *scope
	opts     Options
	// 是否识别值字段
	valueFields bool
}

func newWhereTranslator(s *scope, opts Options) *exprTranslator {
	return &exprTranslator{resolver: whereResolver{scope: s}, scope: s, opts: opts, valueFields: true}
}

func (t *exprTranslator) filter(e parser.Expr) (doc *document.Doc, err error) {
	switch n := e.(type) {
	case *parser.Paren:
		return t.filter(n.Expr)
	case *parser.Logical:
		return t.logical(n)
	case *parser.Not:
		return t.not(n)
	case *parser.Comparison:
		return t.comparison(n)
	case *parser.Between:
		return t.between(n)
	case *parser.InList:
		return t.inList(n)
	case *parser.InSubquery:
		return t.inSubquery(n)
	case *parser.Like:
		return t.like(n)
	case *parser.IsNull:
		return t.isNull(n)
	case *parser.Unsupported:
		err = unsupported(n, "%v is not supported", n.Desc)
	case *parser.Aggregate:
		err = unsupported(n, "aggregate function [%v] can not be used as a predicate", n.Name)
	default:
		err = unsupported(e, "expression can not be used as a predicate")
	}
	return
}

// conjunction 翻译多个 AND 条件，只有一个时不包 $and
func (t *exprTranslator) conjunction(exprs []parser.Expr) (doc *document.Doc, err error) {
	if len(exprs) == 1 {
		return t.filter(exprs[0])
	}
	var parts document.Array
	for _, e := range exprs {
		var frag *document.Doc
		frag, err = t.filter(e)
		if err != nil {
			return
		}
		parts = append(parts, frag)
	}
	doc = document.D(document.E(Mongo_Operator_And, parts))
	return
}

func (t *exprTranslator) logical(n *parser.Logical) (doc *document.Doc, err error) {
	var parts document.Array
	for _, e := range flatten(n, n.Op) {
		var frag *document.Doc
		frag, err = t.filter(e)
		if err != nil {
			return
		}
		parts = append(parts, frag)
	}
	op := Mongo_Operator_And
	if n.Op == opcode.LogicOr {
		op = Mongo_Operator_Or
	}
	doc = document.D(document.E(op, parts))
	return
}

// flatten 展开同一运算符的链，括号不影响展开
func flatten(e parser.Expr, op opcode.Op) []parser.Expr {
	e = parser.Unwrap(e)
	if l, ok := e.(*parser.Logical); ok && l.Op == op {
		return append(flatten(l.L, op), flatten(l.R, op)...)
	}
	return []parser.Expr{e}
}

func (t *exprTranslator) not(n *parser.Not) (doc *document.Doc, err error) {
	inner := parser.Unwrap(n.Expr)
	if nn, ok := inner.(*parser.Not); ok {
		return t.filter(nn.Expr)
	}

	var frag *document.Doc
	frag, err = t.filter(inner)
	if err != nil {
		return
	}

	first, _ := frag.First()
	switch {
	// 单字段谓词：{col: {$not: opdoc}}
	case frag.Len() == 1 && !isOperator(first.Key):
		opDoc, isOp := first.Value.(*document.Doc)
		if !isOp || !isOperatorDoc(opDoc) {
			opDoc = document.D(document.E(Mongo_Operator_Eq, first.Value))
		}
		doc = document.D(document.E(first.Key, negate(opDoc)))
	// 值字段谓词：{$not: opdoc}
	case isOperatorDoc(frag) && !logicalOperators[first.Key]:
		doc = negate(frag)
	default:
		doc = document.D(document.E(Mongo_Operator_Nor, document.Array{frag}))
	}
	return
}

// negate 对运算符文档取反，{$not: x} 直接还原为 x
func negate(opDoc *document.Doc) *document.Doc {
	if first, ok := opDoc.First(); ok && opDoc.Len() == 1 && first.Key == Mongo_Operator_Not {
		if inner, isDoc := first.Value.(*document.Doc); isDoc {
			return inner
		}
	}
	return document.D(document.E(Mongo_Operator_Not, opDoc))
}

func (t *exprTranslator) operand(e parser.Expr) (op operand, err error) {
	e = parser.Unwrap(e)

	if col, ok := e.(*parser.ColumnRef); ok && t.isValueField(col) {
		op.kind = operandValue
		return
	}

	var isLiteral bool
	op.value, isLiteral, err = literalValue(e)
	if err != nil {
		return
	}
	if isLiteral {
		op.kind = operandLiteral
		return
	}

	var isField bool
	op.path, isField, err = t.resolver.field(e)
	if err != nil {
		return
	}
	if isField {
		op.kind = operandField
		return
	}

	switch n := e.(type) {
	case *parser.Unsupported:
		err = unsupported(n, "%v is not supported", n.Desc)
	case *parser.FuncCall:
		err = unsupported(n, "function [%v] is not supported", n.Name)
	default:
		err = unsupported(e, "operand can not be translated")
	}
	return
}

func (t *exprTranslator) isValueField(col *parser.ColumnRef) bool {
	return t.valueFields && col.Table == "" && t.opts.isValueField(col.Name) && !t.opts.schemaHasColumn(col.Name)
}

// target 解析谓词左侧，必须是字段
func (t *exprTranslator) target(e parser.Expr, owner parser.Expr) (op operand, err error) {
	op, err = t.operand(e)
	if err != nil {
		return
	}
	if op.kind == operandLiteral {
		err = unsupported(owner, "left side of the predicate must be a column")
	}
	return
}

func (t *exprTranslator) literal(e parser.Expr, owner parser.Expr) (v document.Value, err error) {
	var op operand
	op, err = t.operand(e)
	if err != nil {
		return
	}
	if op.kind != operandLiteral {
		err = unsupported(owner, "[%v] must be a literal", e.Text())
		return
	}
	v = op.value
	return
}

// withOperator 生成 {path: opDoc}，值字段直接返回 opDoc
func withOperator(op operand, opDoc *document.Doc) *document.Doc {
	if op.kind == operandValue {
		return opDoc
	}
	return document.D(document.E(op.path, opDoc))
}

// equals 生成 {path: v}，值字段生成 {$eq: v}
func equals(op operand, v document.Value) *document.Doc {
	if op.kind == operandValue {
		return document.D(document.E(Mongo_Operator_Eq, v))
	}
	return document.D(document.E(op.path, v))
}

func (t *exprTranslator) comparison(n *parser.Comparison) (doc *document.Doc, err error) {
	var l, r operand
	if l, err = t.operand(n.L); err != nil {
		return
	}
	if r, err = t.operand(n.R); err != nil {
		return
	}

	op := n.Op
	// 字面量在左侧时交换并镜像运算符
	if l.kind == operandLiteral && r.kind != operandLiteral {
		l, r = r, l
		op = mirrored[op]
	}

	switch {
	case r.kind == operandLiteral && l.kind != operandLiteral:
		mongoOp, ok := Mongo_Compare_Operator_Mapping[op]
		if !ok {
			err = unsupported(n, "operator [%v] is not supported", n.Op)
			return
		}
		if mongoOp == Mongo_Operator_Eq {
			doc = equals(l, r.value)
			return
		}
		doc = withOperator(l, document.D(document.E(mongoOp, r.value)))
	case l.kind == operandField && r.kind == operandField:
		mongoOp, ok := Mongo_Compare_Operator_Mapping[op]
		if !ok {
			err = unsupported(n, "operator [%v] is not supported", n.Op)
			return
		}
		cmp := document.D(document.E(mongoOp, document.Array{document.String("$" + l.path), document.String("$" + r.path)}))
		doc = document.D(document.E(Mongo_Operator_Expr, cmp))
	default:
		err = unsupported(n, "comparison must involve exactly one column and one literal, or two columns")
	}
	return
}

func (t *exprTranslator) between(n *parser.Between) (doc *document.Doc, err error) {
	var op operand
	if op, err = t.target(n.Expr, n); err != nil {
		return
	}
	var low, high document.Value
	if low, err = t.literal(n.Low, n); err != nil {
		return
	}
	if high, err = t.literal(n.High, n); err != nil {
		return
	}

	if n.Not {
		doc = document.D(document.E(Mongo_Operator_Or, document.Array{
			withOperator(op, document.D(document.E(Mongo_Operator_Lt, low))),
			withOperator(op, document.D(document.E(Mongo_Operator_Gt, high))),
		}))
		return
	}
	doc = withOperator(op, document.D(
		document.E(Mongo_Operator_Gte, low),
		document.E(Mongo_Operator_Lte, high),
	))
	return
}

func (t *exprTranslator) inList(n *parser.InList) (doc *document.Doc, err error) {
	var op operand
	if op, err = t.target(n.Expr, n); err != nil {
		return
	}
	values := document.Array{}
	for _, item := range n.List {
		var v document.Value
		if v, err = t.literal(item, n); err != nil {
			return
		}
		values = append(values, v)
	}
	doc = membership(op, values, n.Not)
	return
}

func membership(op operand, values document.Array, not bool) *document.Doc {
	mongoOp := Mongo_Operator_In
	if not {
		mongoOp = Mongo_Operator_Nin
	}
	return withOperator(op, document.D(document.E(mongoOp, values)))
}

func (t *exprTranslator) inSubquery(n *parser.InSubquery) (doc *document.Doc, err error) {
	var op operand
	if op, err = t.target(n.Expr, n); err != nil {
		return
	}
	var values document.Array
	if values, err = t.constantSubquery(n); err != nil {
		return
	}
	doc = membership(op, values, n.Not)
	return
}

// constantSubquery 只支持不读取集合的常量子查询，例如 SELECT 'a' UNION SELECT 'b'
func (t *exprTranslator) constantSubquery(n *parser.InSubquery) (values document.Array, err error) {
	values = document.Array{}
	for _, q := range n.Query {
		if q.From != nil {
			if t.correlated(q) {
				err = unsupported(n, "correlated subquery is not supported")
				return
			}
			err = unsupported(n, "subquery over collection [%v] can not be inlined", q.From.Ref())
			return
		}
		if len(q.Fields) != 1 || q.Fields[0].WildCard || q.Where != nil || len(q.GroupBy) > 0 ||
			q.Having != nil || len(q.OrderBy) > 0 || q.Limit != nil {
			err = unsupported(n, "subquery must select exactly one constant")
			return
		}
		v, isLiteral, lerr := literalValue(q.Fields[0].Expr)
		if lerr != nil {
			err = lerr
			return
		}
		if !isLiteral {
			err = unsupported(n, "subquery must select exactly one constant")
			return
		}
		values = append(values, v)
	}
	return
}

// correlated 判断子查询是否引用了外层的表
func (t *exprTranslator) correlated(q *parser.Select) bool {
	if t.scope == nil {
		return false
	}
	own := map[string]bool{}
	for _, tbl := range q.Tables() {
		own[strings.ToLower(tbl.Ref())] = true
	}
	exprs := []parser.Expr{q.Where, q.Having}
	for _, f := range q.Fields {
		exprs = append(exprs, f.Expr)
	}
	for _, j := range q.Joins {
		exprs = append(exprs, j.On)
	}
	for _, e := range exprs {
		if e == nil {
			continue
		}
		for _, col := range parser.Columns(e) {
			if col.Table == "" || own[strings.ToLower(col.Table)] {
				continue
			}
			if _, outer := t.scope.lookup(col.Table); outer {
				return true
			}
		}
	}
	return false
}

func (t *exprTranslator) like(n *parser.Like) (doc *document.Doc, err error) {
	var op operand
	if op, err = t.target(n.Expr, n); err != nil {
		return
	}
	var pattern document.Value
	if pattern, err = t.literal(n.Pattern, n); err != nil {
		return
	}
	str, ok := pattern.(document.String)
	if !ok {
		err = unsupported(n, "LIKE pattern must be a string literal")
		return
	}

	opDoc := document.D(document.E(Mongo_Operator_Regex, document.String(likePattern(string(str), n.Escape))))
	options := t.opts.RegexOptions
	if n.CaseInsensitive && !strings.Contains(options, "i") {
		options += "i"
	}
	if options != "" {
		opDoc.Set(Mongo_Operator_Options, document.String(options))
	}
	if n.Not {
		opDoc = negate(opDoc)
	}
	doc = withOperator(op, opDoc)
	return
}

// likePattern 将 LIKE 模式转为锚定的正则：% -> .*，_ -> .，其余字符按字面匹配
func likePattern(pattern string, escape byte) string {
	var sb strings.Builder
	sb.WriteString("^")
	runes := []rune(pattern)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case escape != 0 && r == rune(escape) && i+1 < len(runes):
			i++
			sb.WriteString(regexp.QuoteMeta(string(runes[i])))
		case r == '%':
			sb.WriteString(".*")
		case r == '_':
			sb.WriteString(".")
		default:
			sb.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	sb.WriteString("$")
	return sb.String()
}

func (t *exprTranslator) isNull(n *parser.IsNull) (doc *document.Doc, err error) {
	var op operand
	if op, err = t.target(n.Expr, n); err != nil {
		return
	}
	mongoOp := Mongo_Operator_Eq
	if n.Not {
		mongoOp = Mongo_Operator_Ne
	}
	doc = withOperator(op, document.D(document.E(mongoOp, document.Null{})))
	return
}

func isOperator(key string) bool {
	return strings.HasPrefix(key, "$")
}

// isOperatorDoc 判断是否为运算符文档，{$oid}/{$date} 字面量不算
func isOperatorDoc(d *document.Doc) bool {
	if d.Len() == 0 {
		return false
	}
	for _, k := range d.Keys() {
		if !isOperator(k) || k == document.Key_ObjectID || k == document.Key_Date {
			return false
		}
	}
	return true
}
