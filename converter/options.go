package converter

import "strings"

const (
	Default_Value_Field   = "value"
	Default_Regex_Options = "i"
)

type Options struct {
	// 代表被测标量本身的列名，谓词直接输出在顶层
	ValueFields []string
	// LIKE 生成的 $options
	RegexOptions string
	// 表名 -> 列名，用于多表语句中未限定列的归属判断
	Schema map[string][]string
}

type Option func(*Options)

func DefaultOptions() Options {
	return Options{
		ValueFields:  []string{Default_Value_Field},
		RegexOptions: Default_Regex_Options,
	}
}

func WithValueFields(fields ...string) Option {
	return func(o *Options) {
		o.ValueFields = fields
	}
}

func WithRegexOptions(options string) Option {
	return func(o *Options) {
		o.RegexOptions = options
	}
}

func WithSchema(schema map[string][]string) Option {
	return func(o *Options) {
		o.Schema = schema
	}
}

// WithOptions 整体替换配置
func WithOptions(opts Options) Option {
	return func(o *Options) {
		*o = opts
	}
}

func buildOptions(opts []Option) Options {
	o := DefaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func (o Options) isValueField(name string) bool {
	for _, f := range o.ValueFields {
		if strings.EqualFold(f, name) {
			return true
		}
	}
	return false
}

// schemaColumns 返回表的列，表不在 schema 中时 ok 为 false
func (o Options) schemaColumns(table string) (cols []string, ok bool) {
	for name, c := range o.Schema {
		if strings.EqualFold(name, table) {
			return c, true
		}
	}
	return
}

func (o Options) schemaHasColumn(column string) bool {
	for _, cols := range o.Schema {
		for _, c := range cols {
			if strings.EqualFold(c, column) {
				return true
			}
		}
	}
	return false
}
