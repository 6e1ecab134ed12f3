package parser

import "errors"

// ErrParse 包装所有语法解析失败
var ErrParse = errors.New("parse sql failed")

// SQL解析器，将SQL文本解析为只读的语句模型
type SelectParser interface {
	// 返回解析后的SELECT语句
	Parse() (*Select, error)
}

// 代表一个SQL对象
type SQL interface {
	// 获取原始SQL
	OriginalSQL() string
}

// Parse 解析单条SELECT语句
func Parse(sql string) (*Select, error) {
	return NewMySQLSelectParser(sql).Parse()
}

// ParseAll 解析以分号分隔的多条SELECT语句，按出现顺序返回
func ParseAll(sql string) ([]*Select, error) {
	return NewMySQLSelectParser(sql).ParseAll()
}
