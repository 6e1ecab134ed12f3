package document

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestDocKeepsInsertionOrder(t *testing.T) {
	d := D(E("b", Int(1)), E("a", Int(2)))
	d.Set("c", Int(3))

	assert.Equal(t, []string{"b", "a", "c"}, d.Keys())
	assert.Equal(t, 3, d.Len())
}

func TestDocSetReplacesInPlace(t *testing.T) {
	d := D(E("_id", Int(0)), E("name", Int(1)))
	d.Set("_id", Int(1))

	assert.Equal(t, []string{"_id", "name"}, d.Keys())
	v, ok := d.Get("_id")
	require.True(t, ok)
	assert.Equal(t, Int(1), v)
}

func TestDocDuplicateKeysInConstructor(t *testing.T) {
	d := D(E("a", Int(1)), E("b", Int(2)), E("a", Int(3)))

	assert.Equal(t, []string{"a", "b"}, d.Keys())
	v, _ := d.Get("a")
	assert.Equal(t, Int(3), v)
}

func TestNilDoc(t *testing.T) {
	var d *Doc
	assert.Equal(t, 0, d.Len())
	assert.Nil(t, d.Keys())
	assert.False(t, d.Has("a"))
	_, ok := d.First()
	assert.False(t, ok)
}

func TestElemsReturnsCopy(t *testing.T) {
	d := D(E("a", Int(1)))
	elems := d.Elems()
	elems[0].Value = Int(9)

	v, _ := d.Get("a")
	assert.Equal(t, Int(1), v)
}

func TestToBSON(t *testing.T) {
	d := D(
		E("name", String("bob")),
		E("age", D(E("$gte", Int(18)))),
		E("tags", Array{String("a"), Bool(true), Null{}, Double(1.5)}),
	)

	got := ToBSON(d)
	want := bson.D{
		{Key: "name", Value: "bob"},
		{Key: "age", Value: bson.D{{Key: "$gte", Value: int64(18)}}},
		{Key: "tags", Value: bson.A{"a", true, nil, 1.5}},
	}
	assert.Equal(t, want, got)
}

func TestToBSONSpecialDocs(t *testing.T) {
	oidDoc, err := ObjectID("5f1b2c3d4e5f60718293a4b5")
	require.NoError(t, err)

	oid, ok := ToBSON(oidDoc).(primitive.ObjectID)
	require.True(t, ok)
	assert.Equal(t, "5f1b2c3d4e5f60718293a4b5", oid.Hex())

	ts := time.Date(2024, 1, 15, 8, 30, 0, 0, time.UTC)
	dt, ok := ToBSON(Date(ts)).(primitive.DateTime)
	require.True(t, ok)
	assert.True(t, ts.Equal(dt.Time()))
}

func TestToBSONSpecialKeyWithNonStringStaysDocument(t *testing.T) {
	got := ToBSON(D(E("$date", Int(1))))
	assert.Equal(t, bson.D{{Key: "$date", Value: int64(1)}}, got)
}

func TestObjectIDRejectsInvalidHex(t *testing.T) {
	_, err := ObjectID("not-an-object-id")
	assert.Error(t, err)
}

func TestDateFormatsUTC(t *testing.T) {
	loc := time.FixedZone("UTC+8", 8*3600)
	d := Date(time.Date(2024, 1, 15, 8, 0, 0, 0, loc))

	v, ok := d.Get("$date")
	require.True(t, ok)
	assert.Equal(t, String("2024-01-15T00:00:00Z"), v)
}
