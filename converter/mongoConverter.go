package converter

import (
	"fmt"
	"regexp"

	"github.com/pingcap/tidb/parser/opcode"
	log "github.com/sirupsen/logrus"
	"github.com/tsfans/sql2mongo/document"
	"github.com/tsfans/sql2mongo/parser"
	"go.mongodb.org/mongo-driver/bson"
)

const (
	Mongo_Stage_Lookup  = "$lookup"
	Mongo_Stage_Group   = "$group"
	Mongo_Stage_Unwind  = "$unwind"
	Mongo_Stage_Match   = "$match"
	Mongo_Stage_Project = "$project"
	Mongo_Stage_Sort    = "$sort"
	Mongo_Stage_Skip    = "$skip"
	Mongo_Stage_Limit   = "$limit"

	Mongo_Operator_Gte      = "$gte"
	Mongo_Operator_Gt       = "$gt"
	Mongo_Operator_Lte      = "$lte"
	Mongo_Operator_Lt       = "$lt"
	Mongo_Operator_Eq       = "$eq"
	Mongo_Operator_Ne       = "$ne"
	Mongo_Operator_In       = "$in"
	Mongo_Operator_Nin      = "$nin"
	Mongo_Operator_And      = "$and"
	Mongo_Operator_Or       = "$or"
	Mongo_Operator_Nor      = "$nor"
	Mongo_Operator_Not      = "$not"
	Mongo_Operator_Expr     = "$expr"
	Mongo_Operator_Regex    = "$regex"
	Mongo_Operator_Options  = "$options"
	Mongo_Operator_Sum      = "$sum"
	Mongo_Operator_Avg      = "$avg"
	Mongo_Operator_Min      = "$min"
	Mongo_Operator_Max      = "$max"
	Mongo_Operator_Cond     = "$cond"
	Mongo_Operator_AddToSet = "$addToSet"
	Mongo_Operator_Size     = "$size"

	Mongo_Arg_From         = "from"
	Mongo_Arg_LocalField   = "localField"
	Mongo_Arg_ForeignField = "foreignField"
	Mongo_Arg_As           = "as"
)

var (
	Mongo_Compare_Operator_Mapping = map[opcode.Op]string{
		opcode.GE:     Mongo_Operator_Gte,
		opcode.GT:     Mongo_Operator_Gt,
		opcode.LE:     Mongo_Operator_Lte,
		opcode.LT:     Mongo_Operator_Lt,
		opcode.EQ:     Mongo_Operator_Eq,
		opcode.NullEQ: Mongo_Operator_Eq,
		opcode.NE:     Mongo_Operator_Ne,
	}

	Mongo_Accumulator_Mapping = map[string]string{
		parser.SQLFuncName_Sum: Mongo_Operator_Sum,
		parser.SQLFuncName_Avg: Mongo_Operator_Avg,
		parser.SQLFuncName_Min: Mongo_Operator_Min,
		parser.SQLFuncName_Max: Mongo_Operator_Max,
	}

	// 交换比较两侧时的运算符
	mirrored = map[opcode.Op]opcode.Op{
		opcode.GE:     opcode.LE,
		opcode.GT:     opcode.LT,
		opcode.LE:     opcode.GE,
		opcode.LT:     opcode.GT,
		opcode.EQ:     opcode.EQ,
		opcode.NullEQ: opcode.NullEQ,
		opcode.NE:     opcode.NE,
	}

	logicalOperators = map[string]bool{
		Mongo_Operator_And:  true,
		Mongo_Operator_Or:   true,
		Mongo_Operator_Nor:  true,
		Mongo_Operator_Expr: true,
	}

	// 输出字段名不能以 $ 开头，也不能包含 .
	outputNameRegex = regexp.MustCompile(`^[^$.][^.]*$`)
)

// mongo查询语句转化器
type MongoQueryConverter struct {
	sel  *parser.Select
	opts Options
}

func NewMongoQueryConverter(sel *parser.Select, opts ...Option) *MongoQueryConverter {
	return &MongoQueryConverter{sel: sel, opts: buildOptions(opts)}
}

func (conv *MongoQueryConverter) Convert() (result Result, err error) {
	if conv.sel == nil {
		err = fmt.Errorf("no sql to convert")
		return
	}

	err = validateOutputNames(conv.sel)
	if err != nil {
		return
	}

	var s *scope
	s, err = newScope(conv.sel, conv.opts)
	if err != nil {
		return
	}

	if aggregateShaped(conv.sel) {
		result, err = conv.aggregate(s)
	} else {
		result, err = conv.find(s)
	}
	if err != nil {
		log.Debugf("translate failed,err=[%v],sql=[%v]", err, conv.sel.SQL)
		result = nil
		return
	}

	logResult(result)
	return
}

func validateOutputNames(sel *parser.Select) (err error) {
	for _, f := range sel.Fields {
		if f.AsName != "" && !outputNameRegex.MatchString(f.AsName) {
			err = unsupported(f.Expr, "invalid output field name [%v]", f.AsName)
			return
		}
	}
	return
}

// aggregateShaped 有分组、聚合、连接、重命名、DISTINCT 或 HAVING 时需要聚合管道
func aggregateShaped(sel *parser.Select) bool {
	if len(sel.GroupBy) > 0 || len(sel.Joins) > 0 || sel.Distinct || sel.Having != nil || hasAggregates(sel) {
		return true
	}
	for _, f := range sel.Fields {
		if renames(f) {
			return true
		}
	}
	return false
}

func hasAggregates(sel *parser.Select) bool {
	for _, f := range sel.Fields {
		if f.Expr != nil && parser.HasAggregate(f.Expr) {
			return true
		}
	}
	for _, item := range sel.OrderBy {
		if parser.HasAggregate(item.Expr) {
			return true
		}
	}
	return false
}

func (conv *MongoQueryConverter) find(s *scope) (query *FindQuery, err error) {
	sel := conv.sel
	query = &FindQuery{Collection: s.base().table.Name, Filter: document.D(), SQL: sel.SQL}

	if sel.Where != nil {
		query.Filter, err = newWhereTranslator(s, conv.opts).filter(sel.Where)
		if err != nil {
			return
		}
	}

	query.Projection, err = findProjection(sel, s)
	if err != nil {
		return
	}

	query.Sort, err = sortDoc(sel.OrderBy, func(e parser.Expr) (path string, err error) {
		col, ok := e.(*parser.ColumnRef)
		if !ok {
			err = unsupported(e, "ORDER BY must refer to a column")
			return
		}
		_, path, err = s.resolve(col)
		return
	})
	if err != nil {
		return
	}

	if sel.Limit != nil {
		query.Skip = sel.Limit.Offset
		count := sel.Limit.Count
		query.Limit = &count
	}
	return
}

func (conv *MongoQueryConverter) aggregate(s *scope) (query *AggregateQuery, err error) {
	sel := conv.sel
	t := newWhereTranslator(s, conv.opts)
	pipeline := document.Array{}

	// 连接前只过滤基表
	var pre, post []parser.Expr
	if pre, post, err = splitWhere(sel.Where, t); err != nil {
		return
	}
	if len(pre) > 0 {
		var match *document.Doc
		if match, err = t.conjunction(pre); err != nil {
			return
		}
		pipeline = append(pipeline, document.D(document.E(Mongo_Stage_Match, match)))
	}

	var joins document.Array
	if joins, err = joinStages(sel, s); err != nil {
		return
	}
	pipeline = append(pipeline, joins...)

	if len(post) > 0 {
		var match *document.Doc
		if match, err = t.conjunction(post); err != nil {
			return
		}
		pipeline = append(pipeline, document.D(document.E(Mongo_Stage_Match, match)))
	}

	var proj *document.Doc
	var outs outputs
	if len(sel.GroupBy) > 0 || sel.Distinct || sel.Having != nil || hasAggregates(sel) {
		var stages document.Array
		if stages, proj, outs, err = conv.group(s); err != nil {
			return
		}
		pipeline = append(pipeline, stages...)
	} else {
		if proj, outs, err = plainProjection(sel, s); err != nil {
			return
		}
	}
	if proj != nil {
		pipeline = append(pipeline, document.D(document.E(Mongo_Stage_Project, proj)))
	}

	var sort *document.Doc
	sort, err = sortDoc(sel.OrderBy, func(e parser.Expr) (string, error) {
		return sortField(e, s, proj != nil, outs)
	})
	if err != nil {
		return
	}
	if sort != nil {
		pipeline = append(pipeline, document.D(document.E(Mongo_Stage_Sort, sort)))
	}

	pipeline = append(pipeline, limitStages(sel.Limit)...)

	query = &AggregateQuery{Collection: s.base().table.Name, Pipeline: pipeline, SQL: sel.SQL}
	return
}

// group 生成 $group 和 HAVING 的 $match，以及之后的 $project
func (conv *MongoQueryConverter) group(s *scope) (stages document.Array, proj *document.Doc, outs outputs, err error) {
	sel := conv.sel
	g := newGrouping(s)

	for _, f := range sel.Fields {
		if f.WildCard {
			err = newError(UnsupportedConstruct, nil, "SELECT * can not be combined with GROUP BY, DISTINCT or aggregates")
			return
		}
	}

	if sel.Distinct {
		if len(sel.GroupBy) > 0 || hasAggregates(sel) || sel.Having != nil {
			err = newError(UnsupportedConstruct, nil, "DISTINCT can not be combined with GROUP BY, HAVING or aggregates")
			return
		}
		// DISTINCT 按所选列分组
		for _, f := range sel.Fields {
			if err = g.addKey(f.Expr); err != nil {
				return
			}
		}
	}
	for _, e := range sel.GroupBy {
		if err = g.addKey(e); err != nil {
			return
		}
	}

	proj = document.D(document.E(Mongo_Field_ID, document.Int(0)))
	names := outputNames{}
	for _, f := range sel.Fields {
		switch e := parser.Unwrap(f.Expr).(type) {
		case *parser.ColumnRef:
			var key *groupKey
			if key, err = g.columnKey(e); err != nil {
				return
			}
			if key == nil {
				err = unsupported(e, "column [%v] must appear in GROUP BY or be aggregated", e.Name)
				return
			}
			// 连接表的分组键默认输出为 <as>_<col>
			name := f.AsName
			if name == "" {
				name = key.name
			}
			ref := "$" + Mongo_Group_Key_Prefix + key.name
			if err = names.add(name, ref, f.Expr); err != nil {
				return
			}
			g.used[name] = true
			proj.Set(name, document.String(ref))
			outs = append(outs, output{name: name, path: key.path})
			if f.AsName != "" {
				g.aliases[f.AsName] = Mongo_Group_Key_Prefix + key.name
			}
		case *parser.Aggregate:
			var acc *accumulator
			if acc, err = g.addAccumulator(e, f.AsName); err != nil {
				return
			}
			if err = names.add(acc.name, "$"+acc.name, f.Expr); err != nil {
				return
			}
			if acc.size {
				proj.Set(acc.name, document.D(document.E(Mongo_Operator_Size, document.String("$"+acc.name))))
			} else {
				proj.Set(acc.name, document.Int(1))
				if f.AsName != "" {
					g.aliases[f.AsName] = acc.name
				}
			}
			outs = append(outs, output{name: acc.name, aggText: acc.text})
		default:
			err = unsupported(f.Expr, "expression in select list is not supported")
			return
		}
	}

	// HAVING 可能注册额外的累加器，必须在生成 $group 之前翻译
	var having *document.Doc
	if sel.Having != nil {
		ht := &exprTranslator{resolver: havingResolver{g: g}, scope: s, opts: conv.opts}
		if having, err = ht.filter(sel.Having); err != nil {
			return
		}
	}

	stages = append(stages, g.stage())
	if having != nil {
		stages = append(stages, document.D(document.E(Mongo_Stage_Match, having)))
	}
	return
}

// plainProjection 处理只有连接或重命名的投影，SELECT * 返回 nil
func plainProjection(sel *parser.Select, s *scope) (proj *document.Doc, outs outputs, err error) {
	var wildcard bool
	if wildcard, err = checkWildcards(sel, s); err != nil || wildcard {
		return
	}

	fields := document.D()
	names := outputNames{}
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
		if renames(f) {
			if err = names.add(f.AsName, "$"+path, f.Expr); err != nil {
				return
			}
			fields.Set(f.AsName, document.String("$"+path))
			outs = append(outs, output{name: f.AsName, path: path})
			continue
		}
		if err = names.add(path, "$"+path, f.Expr); err != nil {
			return
		}
		fields.Set(path, document.Int(1))
		outs = append(outs, output{name: path, path: path})
	}

	proj = document.D()
	if !fields.Has(Mongo_Field_ID) {
		proj.Set(Mongo_Field_ID, document.Int(0))
	}
	for _, e := range fields.Elems() {
		proj.Set(e.Key, e.Value)
	}
	return
}

// sortField 解析排序字段，有 $project 时必须是输出字段
func sortField(e parser.Expr, s *scope, projected bool, outs outputs) (name string, err error) {
	switch n := e.(type) {
	case *parser.ColumnRef:
		if n.Table == "" {
			if out, ok := outs.byName(n.Name); ok {
				return out.name, nil
			}
		}
		var path string
		if _, path, err = s.resolve(n); err != nil {
			return
		}
		if !projected {
			return path, nil
		}
		if out, ok := outs.byPath(path); ok {
			return out.name, nil
		}
		err = unsupported(n, "ORDER BY column [%v] must be selected", n.Name)
	case *parser.Aggregate:
		if out, ok := outs.byAggregate(n.Text()); ok {
			return out.name, nil
		}
		err = unsupported(n, "ORDER BY aggregate must be selected")
	default:
		err = unsupported(e, "ORDER BY expression is not supported")
	}
	return
}

func logResult(r Result) {
	if !log.IsLevelEnabled(log.DebugLevel) {
		return
	}
	switch q := r.(type) {
	case *FindQuery:
		log.Debugf("collection=%v", q.Collection)
		log.Debugf("filter=%v", extJSON(q.Filter))
		if q.Projection != nil {
			log.Debugf("projection=%v", extJSON(q.Projection))
		}
	case *AggregateQuery:
		log.Debugf("collection=%v", q.Collection)
		log.Debugf("pipeline=%v", extJSON(q.Pipeline))
	}
}

func extJSON(v document.Value) string {
	b, err := bson.MarshalExtJSON(bson.D{{Key: "v", Value: document.ToBSON(v)}}, false, false)
	if err != nil {
		return err.Error()
	}
	return string(b)
}
