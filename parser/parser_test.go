package parser

import (
	"math"
	"testing"

	"github.com/pingcap/tidb/parser/opcode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	SELECT  = `select column1 from my_table where value IN ("theValue1","theValue2","theValue3")`
	SELECT2 = "select s.id, s.name, h.score from student s join homework h on s.id = h.stuId left join class c on c.id = s.class where s.age > 18"
	SELECT3 = "select grade, count(*) as cnt, avg(age) from student where age >= 10 group by grade having count(*) > 2 order by cnt desc limit 5, 10"
	SELECT4 = "select * from student"

	SELECT_LIST = []string{SELECT, SELECT2, SELECT3, SELECT4}
)

func TestParseMySQLSelect(t *testing.T) {
	for _, sql := range SELECT_LIST {
		t.Run(sql, func(t *testing.T) {
			sel, err := Parse(sql)
			require.NoError(t, err)
			require.NotNil(t, sel.From)
			assert.Equal(t, sql, sel.OriginalSQL())
		})
	}
}

func TestParseValueIn(t *testing.T) {
	sel, err := Parse(SELECT)
	require.NoError(t, err)

	require.Len(t, sel.Fields, 1)
	col, ok := sel.Fields[0].Expr.(*ColumnRef)
	require.True(t, ok)
	assert.Equal(t, "column1", col.Name)
	assert.Equal(t, "my_table", sel.From.Name)

	in, ok := sel.Where.(*InList)
	require.True(t, ok, "got %T", sel.Where)
	assert.False(t, in.Not)
	assert.Equal(t, "value", in.Expr.(*ColumnRef).Name)
	require.Len(t, in.List, 3)
	for idx, want := range []string{"theValue1", "theValue2", "theValue3"} {
		lit := in.List[idx].(*Literal)
		assert.Equal(t, LitString, lit.Kind)
		assert.Equal(t, want, lit.Str)
	}
}

func TestParseJoins(t *testing.T) {
	sel, err := Parse(SELECT2)
	require.NoError(t, err)

	assert.Equal(t, "student", sel.From.Name)
	assert.Equal(t, "s", sel.From.Ref())
	require.Len(t, sel.Joins, 2)

	assert.Equal(t, InnerJoin, sel.Joins[0].Kind)
	assert.Equal(t, "homework", sel.Joins[0].Table.Name)
	assert.Equal(t, "h", sel.Joins[0].Table.Ref())
	on, ok := sel.Joins[0].On.(*Comparison)
	require.True(t, ok)
	assert.Equal(t, opcode.EQ, on.Op)

	assert.Equal(t, LeftJoin, sel.Joins[1].Kind)
	assert.Equal(t, "class", sel.Joins[1].Table.Name)

	tables := sel.Tables()
	require.Len(t, tables, 3)
	assert.Equal(t, []string{"s", "h", "c"}, []string{tables[0].Ref(), tables[1].Ref(), tables[2].Ref()})
}

func TestParseJoinKinds(t *testing.T) {
	tests := []struct {
		sql  string
		kind JoinKind
	}{
		{"select * from a, b", CrossJoin},
		{"select * from a cross join b", CrossJoin},
		{"select * from a inner join b on a.id = b.id", InnerJoin},
		{"select * from a join b using (id)", InnerJoin},
		{"select * from a right join b on a.id = b.id", RightJoin},
	}
	for _, tt := range tests {
		t.Run(tt.sql, func(t *testing.T) {
			sel, err := Parse(tt.sql)
			require.NoError(t, err)
			require.Len(t, sel.Joins, 1)
			assert.Equal(t, tt.kind, sel.Joins[0].Kind)
		})
	}
}

func TestParseUsingColumns(t *testing.T) {
	sel, err := Parse("select * from a join b using (id)")
	require.NoError(t, err)
	assert.Equal(t, []string{"id"}, sel.Joins[0].Using)
}

func TestParseGroupHavingOrderLimit(t *testing.T) {
	sel, err := Parse(SELECT3)
	require.NoError(t, err)

	require.Len(t, sel.Fields, 3)
	assert.Equal(t, "cnt", sel.Fields[1].AsName)
	agg, ok := sel.Fields[1].Expr.(*Aggregate)
	require.True(t, ok)
	assert.Equal(t, SQLFuncName_Count, agg.Name)

	avg := sel.Fields[2].Expr.(*Aggregate)
	assert.Equal(t, SQLFuncName_Avg, avg.Name)
	require.Len(t, avg.Args, 1)
	assert.Equal(t, "age", avg.Args[0].(*ColumnRef).Name)

	require.Len(t, sel.GroupBy, 1)
	assert.Equal(t, "grade", sel.GroupBy[0].(*ColumnRef).Name)
	assert.True(t, HasAggregate(sel.Having))

	require.Len(t, sel.OrderBy, 1)
	assert.True(t, sel.OrderBy[0].Desc)

	require.NotNil(t, sel.Limit)
	assert.Equal(t, int64(10), sel.Limit.Count)
	assert.Equal(t, int64(5), sel.Limit.Offset)
}

func TestParseLimitOffset(t *testing.T) {
	sel, err := Parse("select a from t limit 3 offset 7")
	require.NoError(t, err)
	assert.Equal(t, &Limit{Count: 3, Offset: 7}, sel.Limit)
}

func TestParseLiterals(t *testing.T) {
	sel, err := Parse("select a from t where a > -5 and b < 1.5 and c = 'x' and d = 2.5e1 and e is null")
	require.NoError(t, err)

	var lits []*Literal
	Walk(sel.Where, func(e Expr) bool {
		if lit, ok := e.(*Literal); ok {
			lits = append(lits, lit)
		}
		return true
	})
	require.Len(t, lits, 4)
	assert.Equal(t, LitInt, lits[0].Kind)
	assert.Equal(t, int64(-5), lits[0].Int)
	assert.Equal(t, LitFloat, lits[1].Kind)
	assert.Equal(t, 1.5, lits[1].Float)
	assert.Equal(t, LitString, lits[2].Kind)
	assert.Equal(t, "x", lits[2].Str)
	assert.Equal(t, LitFloat, lits[3].Kind)
	assert.Equal(t, 25.0, lits[3].Float)
}

func TestParseNullLiteral(t *testing.T) {
	sel, err := Parse("select a from t where a = null")
	require.NoError(t, err)
	cmp := sel.Where.(*Comparison)
	assert.Equal(t, LitNull, cmp.R.(*Literal).Kind)
}

func TestParseBigUnsignedLiteral(t *testing.T) {
	sel, err := Parse("select a from t where a = 18446744073709551615")
	require.NoError(t, err)
	lit := sel.Where.(*Comparison).R.(*Literal)
	assert.Equal(t, LitBigInt, lit.Kind)
	assert.Equal(t, "18446744073709551615", lit.Str)
}

func TestParseMinInt64Literal(t *testing.T) {
	sel, err := Parse("select a from t where a = -9223372036854775808")
	require.NoError(t, err)
	lit := sel.Where.(*Comparison).R.(*Literal)
	assert.Equal(t, LitInt, lit.Kind)
	assert.Equal(t, int64(math.MinInt64), lit.Int)

	sel, err = Parse("select a from t where a = -9223372036854775809")
	require.NoError(t, err)
	lit = sel.Where.(*Comparison).R.(*Literal)
	assert.Equal(t, LitBigInt, lit.Kind)
	assert.Equal(t, "-9223372036854775809", lit.Str)
}

func TestParseGroupByRollup(t *testing.T) {
	sel, err := Parse("select a, count(*) from t group by a with rollup")
	require.NoError(t, err)
	require.Len(t, sel.GroupBy, 2)
	rollup, ok := sel.GroupBy[1].(*Unsupported)
	require.True(t, ok, "got %T", sel.GroupBy[1])
	assert.Contains(t, rollup.Desc, "ROLLUP")
}

func TestParseSubqueryUnionWithLimit(t *testing.T) {
	for _, sql := range []string{
		"select * from t where a in (select 1 union select 2 limit 1)",
		"select * from t where a in (select 1 union select 2 order by 1)",
	} {
		sel, err := Parse(sql)
		require.NoError(t, err)
		_, ok := sel.Where.(*Unsupported)
		assert.True(t, ok, "got %T for [%v]", sel.Where, sql)
	}
}

func TestParsePredicates(t *testing.T) {
	tests := []struct {
		sql   string
		check func(t *testing.T, e Expr)
	}{
		{"select a from t where a between 1 and 5", func(t *testing.T, e Expr) {
			b, ok := e.(*Between)
			require.True(t, ok)
			assert.False(t, b.Not)
		}},
		{"select a from t where a not in (1, 2)", func(t *testing.T, e Expr) {
			in, ok := e.(*InList)
			require.True(t, ok)
			assert.True(t, in.Not)
			assert.Len(t, in.List, 2)
		}},
		{"select a from t where a like 'x!%%' escape '!'", func(t *testing.T, e Expr) {
			like, ok := e.(*Like)
			require.True(t, ok)
			assert.Equal(t, byte('!'), like.Escape)
			assert.Equal(t, "x!%%", like.Pattern.(*Literal).Str)
		}},
		{"select a from t where a is not null", func(t *testing.T, e Expr) {
			is, ok := e.(*IsNull)
			require.True(t, ok)
			assert.True(t, is.Not)
		}},
		{"select a from t where not (a = 1 or b = 2)", func(t *testing.T, e Expr) {
			not, ok := e.(*Not)
			require.True(t, ok)
			logical, ok := Unwrap(not.Expr).(*Logical)
			require.True(t, ok)
			assert.Equal(t, opcode.LogicOr, logical.Op)
		}},
		{"select a from t where a + 1 > 2", func(t *testing.T, e Expr) {
			cmp, ok := e.(*Comparison)
			require.True(t, ok)
			_, ok = cmp.L.(*Unsupported)
			assert.True(t, ok)
		}},
		{"select a from t where a in (select 'x' union select 'y')", func(t *testing.T, e Expr) {
			in, ok := e.(*InSubquery)
			require.True(t, ok)
			assert.Len(t, in.Query, 2)
		}},
		{"select a from t where a in (select b from u where u.c = t.a)", func(t *testing.T, e Expr) {
			in, ok := e.(*InSubquery)
			require.True(t, ok)
			require.Len(t, in.Query, 1)
			assert.Equal(t, "u", in.Query[0].From.Name)
		}},
		{"select a from t where exists (select 1 from u)", func(t *testing.T, e Expr) {
			u, ok := e.(*Unsupported)
			require.True(t, ok)
			assert.Equal(t, "EXISTS subquery", u.Desc)
		}},
		{"select a from t where objectid('5f1b2c3d4e5f60718293a4b5') = _id", func(t *testing.T, e Expr) {
			cmp := e.(*Comparison)
			fn, ok := cmp.L.(*FuncCall)
			require.True(t, ok)
			assert.Equal(t, "objectid", fn.Name)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.sql, func(t *testing.T) {
			sel, err := Parse(tt.sql)
			require.NoError(t, err)
			tt.check(t, sel.Where)
		})
	}
}

func TestParseWildcardAndDistinct(t *testing.T) {
	sel, err := Parse("select distinct s.* from student s")
	require.NoError(t, err)
	assert.True(t, sel.Distinct)
	require.Len(t, sel.Fields, 1)
	assert.True(t, sel.Fields[0].WildCard)
	assert.Equal(t, "s", sel.Fields[0].WildCardTable)
}

func TestParseDerivedTable(t *testing.T) {
	sel, err := Parse("select id from (select id from student) s1")
	require.NoError(t, err)
	require.NotNil(t, sel.From.Derived)
	assert.NotEmpty(t, sel.From.Unsupported)
	assert.Equal(t, "s1", sel.From.Ref())
}

func TestParseWindowFunction(t *testing.T) {
	sel, err := Parse("select row_number() over (order by a) from t")
	require.NoError(t, err)
	_, ok := sel.Fields[0].Expr.(*Unsupported)
	assert.True(t, ok)
}

func TestParseWithoutFrom(t *testing.T) {
	sel, err := Parse("select 'a'")
	require.NoError(t, err)
	assert.Nil(t, sel.From)
	assert.Empty(t, sel.Joins)
}

func TestParseErrors(t *testing.T) {
	tests := []string{
		"",
		"select from where",
		"delete from student where id = 1",
		"select a from t; select b from u",
		"select a from t s join u s on s.id = s.id",
		"with x as (select 1) select * from x",
	}
	for _, sql := range tests {
		t.Run(sql, func(t *testing.T) {
			_, err := Parse(sql)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrParse)
		})
	}
}

func TestParseAll(t *testing.T) {
	sels, err := ParseAll("select a from t; select b from u where b = 1;")
	require.NoError(t, err)
	require.Len(t, sels, 2)
	assert.Equal(t, "t", sels[0].From.Name)
	assert.Equal(t, "u", sels[1].From.Name)
}

func TestParseAllRejectsNonSelect(t *testing.T) {
	_, err := ParseAll("select a from t; update t set a = 1")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrParse)
	assert.Contains(t, err.Error(), "statement 2")
}

func TestColumns(t *testing.T) {
	sel, err := Parse("select a from t where t.a = 1 and (b > 2 or c in (select d from u))")
	require.NoError(t, err)

	var names []string
	for _, c := range Columns(sel.Where) {
		names = append(names, c.Name)
	}
	// 子查询内部的列不参与遍历
	assert.Equal(t, []string{"a", "b", "c"}, names)
}
