package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/tsfans/sql2mongo/converter"
	"github.com/tsfans/sql2mongo/parser"
)

// 退出码
const (
	ExitSuccess      = 0 // 翻译成功
	ExitFailure      = 1 // SQL 无法解析或翻译
	ExitCommandError = 2 // 参数或读写错误
)

// ExitError 携带退出码的错误
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode 取出错误的退出码，非 ExitError 时为 ExitFailure
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// 解析和翻译失败的退出码为 ExitFailure
func translationExitError(err error) *ExitError {
	var te *converter.TranslationError
	switch {
	case errors.As(err, &te):
		return WrapExitError(ExitFailure, "translation failed", err)
	case errors.Is(err, parser.ErrParse):
		return WrapExitError(ExitFailure, "invalid sql", err)
	}
	return WrapExitError(ExitFailure, "translation failed", err)
}

// QueryWriter 输出翻译结果，banner 为空时不输出
type QueryWriter struct {
	Writer io.Writer
	Banner string
}

// Write 一次写出全部查询
func (w *QueryWriter) Write(queries []string) error {
	var sb strings.Builder
	sb.WriteString(w.Banner)
	sb.WriteString(strings.Join(queries, "\n\n"))
	sb.WriteString("\n")
	_, err := io.WriteString(w.Writer, sb.String())
	return err
}
