// Package document 定义翻译结果使用的值模型：
// Null、Bool、Int、Double、String、Array 以及按插入顺序输出的 Doc。
package document

// Value 是封闭的值类型，只有本包内的类型可以实现
type Value interface {
	value()
}

type Null struct{}

type Bool bool

type Int int64

type Double float64

type String string

type Array []Value

func (Null) value()   {}
func (Bool) value()   {}
func (Int) value()    {}
func (Double) value() {}
func (String) value() {}
func (Array) value()  {}
func (*Doc) value()   {}

// Elem 是 Doc 中的一个键值对
type Elem struct {
	Key   string
	Value Value
}

// E 构造一个键值对
func E(key string, val Value) Elem {
	return Elem{Key: key, Value: val}
}

// Doc 是键唯一、按插入顺序输出的映射
type Doc struct {
	elems []Elem
	index map[string]int
}

// D 按顺序构造 Doc，重复的键保留首次出现的位置、使用最后一次的值
func D(elems ...Elem) *Doc {
	d := &Doc{}
	for _, e := range elems {
		d.Set(e.Key, e.Value)
	}
	return d
}

// Set 已存在的键原位替换，否则追加到末尾
func (d *Doc) Set(key string, val Value) *Doc {
	if d.index == nil {
		d.index = map[string]int{}
	}
	if idx, ok := d.index[key]; ok {
		d.elems[idx].Value = val
		return d
	}
	d.index[key] = len(d.elems)
	d.elems = append(d.elems, Elem{Key: key, Value: val})
	return d
}

func (d *Doc) Get(key string) (val Value, ok bool) {
	if d == nil || d.index == nil {
		return
	}
	var idx int
	if idx, ok = d.index[key]; ok {
		val = d.elems[idx].Value
	}
	return
}

func (d *Doc) Has(key string) bool {
	_, ok := d.Get(key)
	return ok
}

func (d *Doc) Len() int {
	if d == nil {
		return 0
	}
	return len(d.elems)
}

func (d *Doc) Keys() []string {
	if d == nil {
		return nil
	}
	keys := make([]string, 0, len(d.elems))
	for _, e := range d.elems {
		keys = append(keys, e.Key)
	}
	return keys
}

// Elems 返回键值对的副本
func (d *Doc) Elems() []Elem {
	if d == nil {
		return nil
	}
	return append([]Elem(nil), d.elems...)
}

// First 返回第一个键值对，空 Doc 返回 false
func (d *Doc) First() (elem Elem, ok bool) {
	if d.Len() == 0 {
		return
	}
	return d.elems[0], true
}
