package document

import (
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	// 扩展 JSON 中的 ObjectId 和日期标记
	Key_ObjectID = "$oid"
	Key_Date     = "$date"
)

// ToBSON 将值转为 mongo 驱动可直接使用的类型：
// Doc -> bson.D，Array -> bson.A，{"$oid": hex} -> primitive.ObjectID，{"$date": rfc3339} -> primitive.DateTime
func ToBSON(v Value) any {
	switch val := v.(type) {
	case nil, Null:
		return nil
	case Bool:
		return bool(val)
	case Int:
		return int64(val)
	case Double:
		return float64(val)
	case String:
		return string(val)
	case Array:
		arr := make(bson.A, 0, len(val))
		for _, item := range val {
			arr = append(arr, ToBSON(item))
		}
		return arr
	case *Doc:
		if special, ok := toSpecial(val); ok {
			return special
		}
		d := make(bson.D, 0, val.Len())
		for _, e := range val.elems {
			d = append(d, bson.E{Key: e.Key, Value: ToBSON(e.Value)})
		}
		return d
	}
	return nil
}

func toSpecial(d *Doc) (res any, ok bool) {
	if d.Len() != 1 {
		return
	}
	e := d.elems[0]
	s, isStr := e.Value.(String)
	if !isStr {
		return
	}
	switch e.Key {
	case Key_ObjectID:
		oid, err := primitive.ObjectIDFromHex(string(s))
		if err != nil {
			return
		}
		return oid, true
	case Key_Date:
		t, err := time.Parse(time.RFC3339Nano, string(s))
		if err != nil {
			return
		}
		return primitive.NewDateTimeFromTime(t), true
	}
	return
}

// ObjectID 构造 {"$oid": hex}，hex 必须是合法的 ObjectId
func ObjectID(hex string) (d *Doc, err error) {
	var oid primitive.ObjectID
	oid, err = primitive.ObjectIDFromHex(hex)
	if err != nil {
		return
	}
	d = D(E(Key_ObjectID, String(oid.Hex())))
	return
}

// Date 构造 {"$date": rfc3339}
func Date(t time.Time) *Doc {
	return D(E(Key_Date, String(t.UTC().Format(time.RFC3339Nano))))
}
