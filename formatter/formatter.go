// Package formatter 将翻译结果输出为确定的 mongo shell 文本
package formatter

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/tsfans/sql2mongo/converter"
	"github.com/tsfans/sql2mongo/document"
)

const (
	indentStep = "  "
	// find 中过滤条件与投影之间的分隔
	findSeparator = " , "
)

// Format 输出 db.<collection>.find(...) 或 db.<collection>.aggregate(...)
func Format(r converter.Result) string {
	var sb strings.Builder
	switch q := r.(type) {
	case *converter.FindQuery:
		sb.WriteString("db." + q.Collection + ".find(")
		writeValue(&sb, filterOrEmpty(q.Filter), 0)
		if q.Projection != nil {
			sb.WriteString(findSeparator)
			writeValue(&sb, q.Projection, 0)
		}
		sb.WriteString(")")
		if q.Sort != nil {
			sb.WriteString(".sort(")
			writeValue(&sb, q.Sort, 0)
			sb.WriteString(")")
		}
		if q.Skip > 0 {
			sb.WriteString(".skip(" + strconv.FormatInt(q.Skip, 10) + ")")
		}
		if q.Limit != nil {
			sb.WriteString(".limit(" + strconv.FormatInt(*q.Limit, 10) + ")")
		}
	case *converter.AggregateQuery:
		sb.WriteString("db." + q.Collection + ".aggregate(")
		pipeline := q.Pipeline
		if pipeline == nil {
			pipeline = document.Array{}
		}
		writeValue(&sb, pipeline, 0)
		sb.WriteString(")")
	}
	return sb.String()
}

// FormatValue 以相同规则输出单个值
func FormatValue(v document.Value) string {
	var sb strings.Builder
	writeValue(&sb, v, 0)
	return sb.String()
}

func filterOrEmpty(d *document.Doc) *document.Doc {
	if d == nil {
		return document.D()
	}
	return d
}

func writeValue(sb *strings.Builder, v document.Value, level int) {
	switch val := v.(type) {
	case nil, document.Null:
		sb.WriteString("null")
	case document.Bool:
		sb.WriteString(strconv.FormatBool(bool(val)))
	case document.Int:
		sb.WriteString(strconv.FormatInt(int64(val), 10))
	case document.Double:
		sb.WriteString(formatDouble(float64(val)))
	case document.String:
		sb.WriteString(quote(string(val)))
	case document.Array:
		if len(val) == 0 {
			sb.WriteString("[]")
			return
		}
		sb.WriteString("[\n")
		for idx, item := range val {
			indent(sb, level+1)
			writeValue(sb, item, level+1)
			endEntry(sb, idx, len(val))
		}
		indent(sb, level)
		sb.WriteString("]")
	case *document.Doc:
		if val.Len() == 0 {
			sb.WriteString("{}")
			return
		}
		sb.WriteString("{\n")
		elems := val.Elems()
		for idx, e := range elems {
			indent(sb, level+1)
			sb.WriteString(quote(e.Key))
			sb.WriteString(": ")
			writeValue(sb, e.Value, level+1)
			endEntry(sb, idx, len(elems))
		}
		indent(sb, level)
		sb.WriteString("}")
	}
}

func indent(sb *strings.Builder, level int) {
	for i := 0; i < level; i++ {
		sb.WriteString(indentStep)
	}
}

func endEntry(sb *strings.Builder, idx, total int) {
	if idx < total-1 {
		sb.WriteString(",")
	}
	sb.WriteString("\n")
}

// quote 按 JSON 规则转义字符串，不转义 HTML 字符
func quote(s string) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return strconv.Quote(s)
	}
	return strings.TrimSuffix(buf.String(), "\n")
}

// formatDouble 输出最短的可还原表示，整数值保留 ".0"
func formatDouble(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}
	format := byte('f')
	if abs := math.Abs(f); abs != 0 && (abs < 1e-6 || abs >= 1e21) {
		format = 'g'
	}
	s := strconv.FormatFloat(f, format, -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}
