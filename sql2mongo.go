// Package sql2mongo 将 SQL SELECT 翻译为 MongoDB 的 find 或 aggregate 查询
package sql2mongo

import (
	"github.com/tsfans/sql2mongo/converter"
	"github.com/tsfans/sql2mongo/formatter"
	"github.com/tsfans/sql2mongo/parser"
)

// Translate 解析并翻译单条 SELECT
func Translate(sql string, opts ...converter.Option) (result converter.Result, err error) {
	var sel *parser.Select
	sel, err = parser.Parse(sql)
	if err != nil {
		return
	}
	result, err = converter.Translate(sel, opts...)
	return
}

// Convert 返回 mongo shell 格式的查询文本
func Convert(sql string, opts ...converter.Option) (out string, err error) {
	var result converter.Result
	result, err = Translate(sql, opts...)
	if err != nil {
		return
	}
	out = formatter.Format(result)
	return
}

// ConvertJSON 返回 Extended JSON 格式的查询
func ConvertJSON(sql string, opts ...converter.Option) (out string, err error) {
	var result converter.Result
	result, err = Translate(sql, opts...)
	if err != nil {
		return
	}
	return formatter.FormatJSON(result)
}
