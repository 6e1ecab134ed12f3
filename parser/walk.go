package parser

// Walk 先序遍历表达式树，fn 返回 false 时跳过该节点的子节点。
// 子查询内部不会被遍历。
func Walk(e Expr, fn func(Expr) bool) {
	if e == nil || !fn(e) {
		return
	}
	for _, child := range children(e) {
		Walk(child, fn)
	}
}

func children(e Expr) []Expr {
	switch n := e.(type) {
	case *Comparison:
		return []Expr{n.L, n.R}
	case *Logical:
		return []Expr{n.L, n.R}
	case *Between:
		return []Expr{n.Expr, n.Low, n.High}
	case *InList:
		return append([]Expr{n.Expr}, n.List...)
	case *InSubquery:
		return []Expr{n.Expr}
	case *Like:
		return []Expr{n.Expr, n.Pattern}
	case *IsNull:
		return []Expr{n.Expr}
	case *Not:
		return []Expr{n.Expr}
	case *Paren:
		return []Expr{n.Expr}
	case *Aggregate:
		return n.Args
	case *FuncCall:
		return n.Args
	}
	return nil
}

// Columns 收集表达式中引用的全部列
func Columns(e Expr) (cols []*ColumnRef) {
	Walk(e, func(n Expr) bool {
		if c, ok := n.(*ColumnRef); ok {
			cols = append(cols, c)
		}
		return true
	})
	return
}

// HasAggregate 判断表达式中是否包含聚合函数
func HasAggregate(e Expr) (found bool) {
	Walk(e, func(n Expr) bool {
		if _, ok := n.(*Aggregate); ok {
			found = true
		}
		return !found
	})
	return
}
