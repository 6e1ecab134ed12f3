package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
)

const (
	Prompt = "Enter input sql:"
)

var exitCommands = map[string]bool{"exit": true, "quit": true, `\q`: true}

// RunInteractive 每行一条语句，直到 EOF 或退出命令；单条失败只输出错误
func RunInteractive(ctx context.Context, in io.Reader, out, errOut io.Writer, t *Translator, banner string) error {
	qw := &QueryWriter{Writer: out, Banner: banner}
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	fmt.Fprintln(out, Prompt)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := strings.TrimSpace(scanner.Text())
		if exitCommands[strings.ToLower(line)] {
			return nil
		}
		if line != "" {
			queries, err := t.TranslateAll(ctx, line)
			if err != nil {
				fmt.Fprintf(errOut, "Error: %v\n", err)
			} else if err := qw.Write(queries); err != nil {
				return err
			}
		}
		fmt.Fprintln(out, Prompt)
	}
	return scanner.Err()
}
