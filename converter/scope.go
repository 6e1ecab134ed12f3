package converter

import (
	"slices"
	"strings"

	"github.com/tsfans/sql2mongo/parser"
	"golang.org/x/exp/maps"
)

type tableBinding struct {
	table *parser.TableRef
	// 基表字段直接引用，连接表字段以 "<as>." 为前缀
	prefix string
	// 在 FROM/JOIN 中的位置，基表为 0
	pos int
}

func (b *tableBinding) isBase() bool {
	return b.pos == 0
}

// scope 负责把列引用解析为文档字段路径
type scope struct {
	tables  map[string]*tableBinding
	ordered []*tableBinding
	opts    Options
}

func newScope(sel *parser.Select, opts Options) (s *scope, err error) {
	if sel.From == nil {
		err = unsupported(nil, "select without FROM clause")
		return
	}
	s = &scope{tables: map[string]*tableBinding{}, opts: opts}
	for idx, t := range sel.Tables() {
		if t.Unsupported != "" {
			err = newError(UnsupportedConstruct, nil, "table source [%v] can not be mapped to a collection", t.Unsupported)
			return
		}
		b := &tableBinding{table: t, pos: idx}
		if idx > 0 {
			b.prefix = t.Ref() + "."
		}
		s.tables[strings.ToLower(t.Ref())] = b
		s.ordered = append(s.ordered, b)
	}
	return
}

func (s *scope) base() *tableBinding {
	return s.ordered[0]
}

func (s *scope) refs() []string {
	keys := maps.Keys(s.tables)
	slices.Sort(keys)
	return keys
}

func (s *scope) lookup(table string) (b *tableBinding, ok bool) {
	b, ok = s.tables[strings.ToLower(table)]
	return
}

// resolve 返回列所在的表和字段路径
func (s *scope) resolve(col *parser.ColumnRef) (b *tableBinding, path string, err error) {
	if col.Table != "" {
		var ok bool
		if b, ok = s.lookup(col.Table); !ok {
			err = ambiguous(col, "unknown table [%v], known tables %v", col.Table, s.refs())
			return
		}
		path = b.prefix + col.Name
		return
	}

	if len(s.ordered) == 1 || len(s.opts.Schema) == 0 {
		b = s.base()
		path = col.Name
		return
	}

	// 多表语句根据 schema 判断未限定列的归属，未描述的表视为可能包含该列
	var candidates []*tableBinding
	for _, t := range s.ordered {
		cols, described := s.opts.schemaColumns(t.table.Name)
		if !described || slices.ContainsFunc(cols, func(c string) bool { return strings.EqualFold(c, col.Name) }) {
			candidates = append(candidates, t)
		}
	}
	if len(candidates) != 1 {
		var names []string
		for _, c := range candidates {
			names = append(names, c.table.Ref())
		}
		err = ambiguous(col, "column [%v] can not be resolved to exactly one table, candidates %v", col.Name, names)
		return
	}
	b = candidates[0]
	path = b.prefix + col.Name
	return
}
