package formatter

import (
	"fmt"

	"github.com/tsfans/sql2mongo/converter"
	"github.com/tsfans/sql2mongo/document"
	"go.mongodb.org/mongo-driver/bson"
)

// FormatJSON 输出 relaxed 格式的 MongoDB Extended JSON
func FormatJSON(r converter.Result) (out string, err error) {
	var doc bson.D
	switch q := r.(type) {
	case *converter.FindQuery:
		doc = bson.D{
			{Key: "collection", Value: q.Collection},
			{Key: "operation", Value: "find"},
			{Key: "filter", Value: document.ToBSON(filterOrEmpty(q.Filter))},
		}
		if q.Projection != nil {
			doc = append(doc, bson.E{Key: "projection", Value: document.ToBSON(q.Projection)})
		}
		if q.Sort != nil {
			doc = append(doc, bson.E{Key: "sort", Value: document.ToBSON(q.Sort)})
		}
		if q.Skip > 0 {
			doc = append(doc, bson.E{Key: "skip", Value: q.Skip})
		}
		if q.Limit != nil {
			doc = append(doc, bson.E{Key: "limit", Value: *q.Limit})
		}
	case *converter.AggregateQuery:
		pipeline := q.Pipeline
		if pipeline == nil {
			pipeline = document.Array{}
		}
		doc = bson.D{
			{Key: "collection", Value: q.Collection},
			{Key: "operation", Value: "aggregate"},
			{Key: "pipeline", Value: document.ToBSON(pipeline)},
		}
	default:
		err = fmt.Errorf("unknown result type [%T]", r)
		return
	}

	var b []byte
	b, err = bson.MarshalExtJSONIndent(doc, false, false, "", "  ")
	if err != nil {
		err = fmt.Errorf("marshal extended json failed: %w", err)
		return
	}
	out = string(b)
	return
}
