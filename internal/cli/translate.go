package cli

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/tsfans/sql2mongo/config"
	"github.com/tsfans/sql2mongo/converter"
	"github.com/tsfans/sql2mongo/formatter"
	"github.com/tsfans/sql2mongo/parser"
	"golang.org/x/sync/errgroup"
)

// Translator 将 SQL 文本翻译为输出格式的查询
type Translator struct {
	Options []converter.Option
	Format  string
}

func NewTranslator(cfg *config.Config) *Translator {
	return &Translator{Options: cfg.ConverterOptions(), Format: cfg.Output.Format}
}

func (t *Translator) render(sel *parser.Select) (out string, err error) {
	var result converter.Result
	result, err = converter.Translate(sel, t.Options...)
	if err != nil {
		return
	}
	if t.Format == config.FormatJSON {
		return formatter.FormatJSON(result)
	}
	out = formatter.Format(result)
	return
}

// TranslateAll 并发翻译每条语句，按语句顺序返回，任一失败则整批失败
func (t *Translator) TranslateAll(ctx context.Context, sql string) (queries []string, err error) {
	var sels []*parser.Select
	sels, err = parser.ParseAll(sql)
	if err != nil {
		return
	}

	rendered := make([]string, len(sels))
	g, ctx := errgroup.WithContext(ctx)
	for idx, sel := range sels {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			out, err := t.render(sel)
			if err != nil {
				return fmt.Errorf("statement %d: %w", idx+1, err)
			}
			log.Debugf("statement %d translated", idx+1)
			rendered[idx] = out
			return nil
		})
	}
	if err = g.Wait(); err != nil {
		return
	}
	queries = rendered
	return
}
