package parser

import (
	"github.com/pingcap/tidb/parser/opcode"
)

// Select 是一条 SELECT 语句的只读模型
type Select struct {
	Distinct bool
	Fields   []*SelectField
	// 没有 FROM 子句时为 nil
	From    *TableRef
	Joins   []*Join
	Where   Expr
	GroupBy []Expr
	Having  Expr
	OrderBy []*OrderByItem
	Limit   *Limit
	SQL     string
}

func (s *Select) OriginalSQL() string {
	return s.SQL
}

// Tables 返回 FROM 和 JOIN 中的全部表，基表在前
func (s *Select) Tables() (tables []*TableRef) {
	if s.From != nil {
		tables = append(tables, s.From)
	}
	for _, j := range s.Joins {
		tables = append(tables, j.Table)
	}
	return
}

type SelectField struct {
	Expr   Expr
	AsName string
	// 通配符 * 或 t.*
	WildCard      bool
	WildCardTable string
}

type TableRef struct {
	Name   string
	AsName string
	// 派生表
	Derived *Select
	// 无法表示的表来源，例如括号中的嵌套连接
	Unsupported string
}

// Ref 返回引用该表时使用的名称
func (t *TableRef) Ref() string {
	if t.AsName != "" {
		return t.AsName
	}
	return t.Name
}

type JoinKind int

const (
	InnerJoin JoinKind = iota + 1
	LeftJoin
	RightJoin
	// 逗号连接或没有 ON 条件的 JOIN
	CrossJoin
)

func (k JoinKind) String() string {
	switch k {
	case InnerJoin:
		return "INNER JOIN"
	case LeftJoin:
		return "LEFT JOIN"
	case RightJoin:
		return "RIGHT JOIN"
	case CrossJoin:
		return "CROSS JOIN"
	}
	return "JOIN"
}

type Join struct {
	Kind    JoinKind
	Table   *TableRef
	On      Expr
	Using   []string
	Natural bool
}

type OrderByItem struct {
	Expr Expr
	Desc bool
}

type Limit struct {
	Count  int64
	Offset int64
}

// Expr 是封闭的表达式节点集合，只有本包内的节点类型可以实现
type Expr interface {
	// 节点的SQL文本，用于错误描述
	Text() string
	exprNode()
}

type node struct {
	text string
}

func (n node) Text() string {
	return n.text
}

func (node) exprNode() {}

type ColumnRef struct {
	node
	Table string
	Name  string
}

type LiteralKind int

const (
	LitNull LiteralKind = iota + 1
	LitBool
	LitInt
	LitFloat
	LitString
	// 超出 int64 范围的无符号整数
	LitBigInt
	// 二进制、位值等无法直接表示的字面量
	LitOther
)

type Literal struct {
	node
	Kind  LiteralKind
	Bool  bool
	Int   int64
	Float float64
	Str   string
}

// FuncCall 普通函数调用，Name 为小写
type FuncCall struct {
	node
	Name string
	Args []Expr
}

// Comparison 比较运算，Op 为 EQ/NE/LT/LE/GT/GE/NullEQ
type Comparison struct {
	node
	Op opcode.Op
	L  Expr
	R  Expr
}

type Between struct {
	node
	Expr Expr
	Low  Expr
	High Expr
	Not  bool
}

type InList struct {
	node
	Expr Expr
	List []Expr
	Not  bool
}

// InSubquery 的 Query 为 UNION 的各个分支，单个 SELECT 时只有一个元素
type InSubquery struct {
	node
	Expr  Expr
	Query []*Select
	Not   bool
}

type Like struct {
	node
	Expr    Expr
	Pattern Expr
	Escape  byte
	Not     bool
	// ILIKE
	CaseInsensitive bool
}

type IsNull struct {
	node
	Expr Expr
	Not  bool
}

// Logical 的 Op 为 LogicAnd 或 LogicOr
type Logical struct {
	node
	Op opcode.Op
	L  Expr
	R  Expr
}

type Not struct {
	node
	Expr Expr
}

type Paren struct {
	node
	Expr Expr
}

// Aggregate 聚合函数，Name 为小写；COUNT(*) 的参数为字面量 1
type Aggregate struct {
	node
	Name     string
	Args     []Expr
	Distinct bool
}

// Unsupported 语法合法但无法翻译的表达式
type Unsupported struct {
	node
	Desc string
}

// Unwrap 去掉外层括号
func Unwrap(e Expr) Expr {
	for {
		p, ok := e.(*Paren)
		if !ok {
			return e
		}
		e = p.Expr
	}
}
