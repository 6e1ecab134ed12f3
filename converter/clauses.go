package converter

import (
	"fmt"
	"strings"

	"github.com/pingcap/tidb/parser/opcode"
	"github.com/tsfans/sql2mongo/document"
	"github.com/tsfans/sql2mongo/parser"
)

const (
	Mongo_Field_ID = "_id"
	// 分组键在 $group 之后的前缀
	Mongo_Group_Key_Prefix = "_id."
	// COUNT(*) 未命名时的输出字段
	Default_Count_Name = "count"
)

// ---------- 投影 ----------

// findProjection 构造 find 的投影，SELECT * 返回 nil
func findProjection(sel *parser.Select, s *scope) (proj *document.Doc, err error) {
	var wildcard bool
	if wildcard, err = checkWildcards(sel, s); err != nil || wildcard {
		return
	}

	var paths []string
	for _, f := range sel.Fields {
		col, ok := parser.Unwrap(f.Expr).(*parser.ColumnRef)
		if !ok {
			err = unsupported(f.Expr, "expression in select list is not supported")
			return
		}
		var path string
		if _, path, err = s.resolve(col); err != nil {
			return
		}
		paths = append(paths, path)
	}

	proj = document.D()
	if !containsID(paths) {
		proj.Set(Mongo_Field_ID, document.Int(0))
	}
	for _, p := range paths {
		proj.Set(p, document.Int(1))
	}
	return
}

// checkWildcards 校验通配符，返回是否整体选择了全部字段
func checkWildcards(sel *parser.Select, s *scope) (wildcard bool, err error) {
	for _, f := range sel.Fields {
		if !f.WildCard {
			continue
		}
		wildcard = true
		if f.WildCardTable == "" {
			continue
		}
		if _, ok := s.lookup(f.WildCardTable); !ok {
			err = newError(AmbiguousColumn, nil, "unknown table [%v] in [%v.*], known tables %v", f.WildCardTable, f.WildCardTable, s.refs())
			return
		}
		if len(s.ordered) > 1 {
			err = newError(UnsupportedConstruct, nil, "[%v.*] in a multi-table select is not supported", f.WildCardTable)
			return
		}
	}
	if !wildcard {
		return
	}
	for _, f := range sel.Fields {
		if !f.WildCard && f.AsName != "" {
			err = unsupported(f.Expr, "* can not be combined with aliased columns")
			return
		}
	}
	return
}

// outputNames 记录输出字段名及其来源，同名不同源时报错
type outputNames map[string]string

func (n outputNames) add(name, source string, node parser.Expr) error {
	if existing, ok := n[name]; ok && existing != source {
		return unsupported(node, "duplicate output name [%v]", name)
	}
	n[name] = source
	return nil
}

func containsID(paths []string) bool {
	for _, p := range paths {
		if p == Mongo_Field_ID {
			return true
		}
	}
	return false
}

// renames 判断字段别名是否需要重命名
func renames(f *parser.SelectField) bool {
	if f.AsName == "" {
		return false
	}
	col, ok := parser.Unwrap(f.Expr).(*parser.ColumnRef)
	return !ok || col.Table != "" || col.Name != f.AsName
}

// ---------- 分组与聚合 ----------

type groupKey struct {
	path string
	// _id 中的键名，"." 替换为 "_"
	name string
}

type accumulator struct {
	text string
	name string
	spec *document.Doc
	// COUNT(DISTINCT) 需要在 $project 中取 $size
	size bool
}

type grouping struct {
	scope *scope
	keys  []*groupKey
	accs  []*accumulator
	// 别名 -> $group 之后的字段
	aliases map[string]string
	used    map[string]bool
}

func newGrouping(s *scope) *grouping {
	// _id 保留给分组键
	return &grouping{scope: s, aliases: map[string]string{}, used: map[string]bool{Mongo_Field_ID: true}}
}

func keyName(path string) string {
	return strings.ReplaceAll(path, ".", "_")
}

func (g *grouping) addKey(e parser.Expr) (err error) {
	if u, isUnsupported := e.(*parser.Unsupported); isUnsupported {
		err = unsupported(u, "%v is not supported", u.Desc)
		return
	}
	col, ok := parser.Unwrap(e).(*parser.ColumnRef)
	if !ok {
		err = unsupported(e, "only columns can be used as grouping keys")
		return
	}
	var path string
	if _, path, err = g.scope.resolve(col); err != nil {
		return
	}
	if g.keyFor(path) != nil {
		return
	}
	key := &groupKey{path: path, name: keyName(path)}
	g.used[key.name] = true
	g.keys = append(g.keys, key)
	return
}

func (g *grouping) keyFor(path string) *groupKey {
	for _, k := range g.keys {
		if k.path == path {
			return k
		}
	}
	return nil
}

// columnKey 返回列对应的分组键
func (g *grouping) columnKey(col *parser.ColumnRef) (key *groupKey, err error) {
	var path string
	if _, path, err = g.scope.resolve(col); err != nil {
		return
	}
	key = g.keyFor(path)
	return
}

func (g *grouping) accFor(agg *parser.Aggregate) *accumulator {
	for _, acc := range g.accs {
		if acc.text == agg.Text() {
			return acc
		}
	}
	return nil
}

// addAccumulator 注册聚合函数，alias 为空时使用默认名称
func (g *grouping) addAccumulator(agg *parser.Aggregate, alias string) (acc *accumulator, err error) {
	if acc = g.accFor(agg); acc != nil && (alias == "" || acc.name == alias) {
		return
	}

	if alias == Mongo_Field_ID {
		err = unsupported(agg, "output name [%v] is reserved for the group key", alias)
		return
	}
	for _, existing := range g.accs {
		if alias != "" && existing.name == alias {
			err = unsupported(agg, "duplicate output name [%v]", alias)
			return
		}
	}

	acc = &accumulator{text: agg.Text()}
	var path string
	acc.spec, acc.size, path, err = g.accumulatorSpec(agg)
	if err != nil {
		return
	}
	acc.name = alias
	if acc.name == "" {
		acc.name = g.uniqueName(defaultAggName(agg, path))
	}
	g.used[acc.name] = true
	g.accs = append(g.accs, acc)
	return
}

func defaultAggName(agg *parser.Aggregate, path string) string {
	switch {
	case path == "" && agg.Name == parser.SQLFuncName_Count:
		return Default_Count_Name
	case path == "":
		return agg.Name
	case agg.Distinct:
		return agg.Name + "_distinct_" + keyName(path)
	}
	return agg.Name + "_" + keyName(path)
}

func (g *grouping) uniqueName(name string) string {
	if !g.used[name] {
		return name
	}
	for i := 2; ; i++ {
		candidate := fmt.Sprintf("%v_%d", name, i)
		if !g.used[candidate] {
			return candidate
		}
	}
}

// accumulatorSpec 生成累加器，path 为参数列的字段路径，参数为字面量时为空
func (g *grouping) accumulatorSpec(agg *parser.Aggregate) (spec *document.Doc, size bool, path string, err error) {
	if len(agg.Args) != 1 {
		err = unsupported(agg, "aggregate function [%v] expects exactly one argument", agg.Name)
		return
	}
	arg := parser.Unwrap(agg.Args[0])

	var lit document.Value
	var isLiteral bool
	if lit, isLiteral, err = literalValue(arg); err != nil {
		return
	}
	if !isLiteral {
		col, ok := arg.(*parser.ColumnRef)
		if !ok {
			err = unsupported(agg, "aggregate argument must be a column")
			return
		}
		if _, path, err = g.scope.resolve(col); err != nil {
			return
		}
	}
	ref := document.String("$" + path)

	switch agg.Name {
	case parser.SQLFuncName_Count:
		switch {
		case agg.Distinct && isLiteral:
			err = unsupported(agg, "COUNT(DISTINCT) expects a column")
		case agg.Distinct:
			spec = document.D(document.E(Mongo_Operator_AddToSet, ref))
			size = true
		case isLiteral:
			// COUNT(*)、COUNT(1)；COUNT(NULL) 恒为 0
			n := document.Int(1)
			if _, isNull := lit.(document.Null); isNull {
				n = 0
			}
			spec = document.D(document.E(Mongo_Operator_Sum, n))
		default:
			// 只统计非 null 值
			cond := document.Array{
				document.D(document.E(Mongo_Operator_Gt, document.Array{ref, document.Null{}})),
				document.Int(1),
				document.Int(0),
			}
			spec = document.D(document.E(Mongo_Operator_Sum, document.D(document.E(Mongo_Operator_Cond, cond))))
		}
	case parser.SQLFuncName_Sum, parser.SQLFuncName_Avg, parser.SQLFuncName_Min, parser.SQLFuncName_Max:
		op := Mongo_Accumulator_Mapping[agg.Name]
		switch {
		case agg.Distinct:
			err = unsupported(agg, "DISTINCT is only supported in COUNT")
		case isLiteral:
			spec = document.D(document.E(op, lit))
		default:
			spec = document.D(document.E(op, ref))
		}
	default:
		err = unsupported(agg, "aggregate function [%v] is not supported", agg.Name)
	}
	return
}

// stage 生成 $group 阶段
func (g *grouping) stage() *document.Doc {
	var id document.Value = document.Null{}
	if len(g.keys) > 0 {
		keys := document.D()
		for _, k := range g.keys {
			keys.Set(k.name, document.String("$"+k.path))
		}
		id = keys
	}
	group := document.D(document.E(Mongo_Field_ID, id))
	for _, acc := range g.accs {
		group.Set(acc.name, acc.spec)
	}
	return document.D(document.E(Mongo_Stage_Group, group))
}

// havingResolver 解析 $group 之后的字段：分组键为 _id.<key>，聚合函数为累加器名
type havingResolver struct {
	g *grouping
}

func (r havingResolver) field(e parser.Expr) (path string, ok bool, err error) {
	switch n := e.(type) {
	case *parser.ColumnRef:
		if target, found := r.g.aliases[n.Name]; found && n.Table == "" {
			return target, true, nil
		}
		var key *groupKey
		if key, err = r.g.columnKey(n); err != nil {
			return
		}
		if key == nil {
			err = unsupported(n, "column [%v] in HAVING must be grouped or aggregated", n.Name)
			return
		}
		path, ok = Mongo_Group_Key_Prefix+key.name, true
	case *parser.Aggregate:
		var acc *accumulator
		if acc, err = r.g.addAccumulator(n, ""); err != nil {
			return
		}
		if acc.size {
			err = unsupported(n, "COUNT(DISTINCT) can not be used in HAVING")
			return
		}
		path, ok = acc.name, true
	}
	return
}

// ---------- 输出字段 ----------

// output 是 $project 之后的一个字段
type output struct {
	name string
	// 列的字段路径
	path string
	// 聚合函数的SQL文本
	aggText string
}

type outputs []output

func (o outputs) byName(name string) (out output, ok bool) {
	for _, item := range o {
		if item.name == name {
			return item, true
		}
	}
	return
}

func (o outputs) byPath(path string) (out output, ok bool) {
	for _, item := range o {
		if item.path != "" && item.path == path {
			return item, true
		}
	}
	return
}

func (o outputs) byAggregate(text string) (out output, ok bool) {
	for _, item := range o {
		if item.aggText == text {
			return item, true
		}
	}
	return
}

// ---------- 排序与分页 ----------

// sortDoc 生成排序文档，resolve 将排序项解析为字段
func sortDoc(items []*parser.OrderByItem, resolve func(e parser.Expr) (string, error)) (doc *document.Doc, err error) {
	if len(items) == 0 {
		return
	}
	doc = document.D()
	for _, item := range items {
		var path string
		if path, err = resolve(parser.Unwrap(item.Expr)); err != nil {
			return
		}
		dir := document.Int(1)
		if item.Desc {
			dir = -1
		}
		if !doc.Has(path) {
			doc.Set(path, dir)
		}
	}
	return
}

func limitStages(limit *parser.Limit) (stages document.Array) {
	if limit == nil {
		return
	}
	if limit.Offset > 0 {
		stages = append(stages, document.D(document.E(Mongo_Stage_Skip, document.Int(limit.Offset))))
	}
	stages = append(stages, document.D(document.E(Mongo_Stage_Limit, document.Int(limit.Count))))
	return
}

// ---------- 连接 ----------

// joinStages 为每个连接生成 $lookup，内连接追加 $unwind
func joinStages(sel *parser.Select, s *scope) (stages document.Array, err error) {
	for idx, j := range sel.Joins {
		binding := s.ordered[idx+1]
		switch {
		case j.Natural:
			err = newError(UnsupportedConstruct, nil, "NATURAL JOIN [%v] is not supported", j.Table.Ref())
		case len(j.Using) > 0:
			err = newError(UnsupportedConstruct, nil, "JOIN [%v] USING %v is not supported", j.Table.Ref(), j.Using)
		case j.Kind == parser.RightJoin:
			err = newError(UnsupportedConstruct, nil, "RIGHT JOIN [%v] is not supported", j.Table.Ref())
		case j.Kind == parser.CrossJoin || j.On == nil:
			err = newError(UnsupportedConstruct, nil, "join [%v] without ON condition is not supported", j.Table.Ref())
		}
		if err != nil {
			return
		}

		var local, foreign string
		if local, foreign, err = joinFields(j.On, binding, s); err != nil {
			return
		}
		as := j.Table.Ref()
		lookup := document.D(
			document.E(Mongo_Arg_From, document.String(j.Table.Name)),
			document.E(Mongo_Arg_LocalField, document.String(local)),
			document.E(Mongo_Arg_ForeignField, document.String(foreign)),
			document.E(Mongo_Arg_As, document.String(as)),
		)
		stages = append(stages, document.D(document.E(Mongo_Stage_Lookup, lookup)))
		// LEFT JOIN 保留 lookup 数组
		if j.Kind == parser.InnerJoin {
			stages = append(stages, document.D(document.E(Mongo_Stage_Unwind, document.String("$"+as))))
		}
	}
	return
}

// joinFields 校验连接条件为单列等值，一侧为当前连接表，另一侧为之前的表
func joinFields(on parser.Expr, joined *tableBinding, s *scope) (local, foreign string, err error) {
	cmp, ok := parser.Unwrap(on).(*parser.Comparison)
	if !ok || cmp.Op != opcode.EQ {
		err = unsupported(on, "only equality join on a single column pair is supported")
		return
	}
	lc, lok := parser.Unwrap(cmp.L).(*parser.ColumnRef)
	rc, rok := parser.Unwrap(cmp.R).(*parser.ColumnRef)
	if !lok || !rok {
		err = unsupported(on, "join condition must compare two columns")
		return
	}

	var lb, rb *tableBinding
	var lpath, rpath string
	if lb, lpath, err = s.resolve(lc); err != nil {
		return
	}
	if rb, rpath, err = s.resolve(rc); err != nil {
		return
	}
	switch {
	case rb == joined && lb.pos < joined.pos:
		local, foreign = lpath, rc.Name
	case lb == joined && rb.pos < joined.pos:
		local, foreign = rpath, lc.Name
	default:
		err = unsupported(on, "join condition must compare [%v] with a preceding table", joined.table.Ref())
	}
	return
}

// splitWhere 拆分 WHERE：只涉及基表的条件在连接前过滤，其余在连接后过滤
func splitWhere(where parser.Expr, t *exprTranslator) (pre, post []parser.Expr, err error) {
	if where == nil {
		return
	}
	for _, c := range flatten(where, opcode.LogicAnd) {
		onlyBase := true
		for _, col := range parser.Columns(c) {
			if t.isValueField(col) {
				continue
			}
			var b *tableBinding
			if b, _, err = t.scope.resolve(col); err != nil {
				return
			}
			if !b.isBase() {
				onlyBase = false
			}
		}
		if onlyBase {
			pre = append(pre, c)
		} else {
			post = append(post, c)
		}
	}
	return
}
