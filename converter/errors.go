package converter

import (
	"errors"
	"fmt"

	"github.com/tsfans/sql2mongo/parser"
)

type ErrorKind int

const (
	// SQL 特性没有对应的 mongo 表示
	UnsupportedConstruct ErrorKind = iota + 1
	// 字面量无法转为文档值
	InvalidLiteral
	// 列无法唯一对应到一张表
	AmbiguousColumn
)

var (
	ErrUnsupportedConstruct = errors.New("unsupported construct")
	ErrInvalidLiteral       = errors.New("invalid literal")
	ErrAmbiguousColumn      = errors.New("ambiguous column")
)

func (k ErrorKind) String() string {
	switch k {
	case UnsupportedConstruct:
		return "UnsupportedConstruct"
	case InvalidLiteral:
		return "InvalidLiteral"
	case AmbiguousColumn:
		return "AmbiguousColumn"
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

func (k ErrorKind) sentinel() error {
	switch k {
	case UnsupportedConstruct:
		return ErrUnsupportedConstruct
	case InvalidLiteral:
		return ErrInvalidLiteral
	case AmbiguousColumn:
		return ErrAmbiguousColumn
	}
	return nil
}

// TranslationError 携带出错节点的SQL文本
type TranslationError struct {
	Kind ErrorKind
	Node string
	Msg  string
}

func (e *TranslationError) Error() string {
	if e.Node == "" {
		return fmt.Sprintf("%v: %v", e.Kind, e.Msg)
	}
	return fmt.Sprintf("%v: %v, node=[%v]", e.Kind, e.Msg, e.Node)
}

func (e *TranslationError) Is(target error) bool {
	return target != nil && target == e.Kind.sentinel()
}

func newError(kind ErrorKind, node parser.Expr, format string, args ...any) *TranslationError {
	err := &TranslationError{Kind: kind, Msg: fmt.Sprintf(format, args...)}
	if node != nil {
		err.Node = node.Text()
	}
	return err
}

func unsupported(node parser.Expr, format string, args ...any) error {
	return newError(UnsupportedConstruct, node, format, args...)
}

func invalidLiteral(node parser.Expr, format string, args ...any) error {
	return newError(InvalidLiteral, node, format, args...)
}

func ambiguous(node parser.Expr, format string, args ...any) error {
	return newError(AmbiguousColumn, node, format, args...)
}
