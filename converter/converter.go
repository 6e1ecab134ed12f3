package converter

import (
	"github.com/tsfans/sql2mongo/document"
	"github.com/tsfans/sql2mongo/parser"
)

type SelectConverter interface {
	// 转化为目标查询语句
	Convert() (Result, error)
}

// Result 翻译结果，只有 *FindQuery 和 *AggregateQuery 两种
type Result interface {
	// 查询的集合
	GetCollection() string
	// 获取原始SQL
	OriginalSQL() string
	result()
}

// FindQuery 对应 db.<collection>.find(filter, projection)
type FindQuery struct {
	Collection string
	Filter     *document.Doc
	// SELECT * 时为 nil
	Projection *document.Doc
	Sort       *document.Doc
	Skip       int64
	// 没有 LIMIT 时为 nil
	Limit *int64
	SQL   string
}

// AggregateQuery 对应 db.<collection>.aggregate(pipeline)
type AggregateQuery struct {
	Collection string
	Pipeline   document.Array
	SQL        string
}

func (q *FindQuery) GetCollection() string      { return q.Collection }
func (q *FindQuery) OriginalSQL() string        { return q.SQL }
func (*FindQuery) result()                      {}
func (q *AggregateQuery) GetCollection() string { return q.Collection }
func (q *AggregateQuery) OriginalSQL() string   { return q.SQL }
func (*AggregateQuery) result()                 {}

// Translate 将解析后的语句翻译为 find 或 aggregate 查询，失败时不返回部分结果
func Translate(sel *parser.Select, opts ...Option) (Result, error) {
	return NewMongoQueryConverter(sel, opts...).Convert()
}
