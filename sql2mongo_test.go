package sql2mongo

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsfans/sql2mongo/converter"
	"github.com/tsfans/sql2mongo/parser"
)

const (
	SELECT = `select column1 from my_table where value IN ("theValue1","theValue2","theValue3")`

	expectedQuery = `db.my_table.find({
  "$in": [
    "theValue1",
    "theValue2",
    "theValue3"
  ]
} , {
  "_id": 0,
  "column1": 1
})`
)

func TestConvert(t *testing.T) {
	out, err := Convert(SELECT)
	require.NoError(t, err)
	assert.Equal(t, expectedQuery, out)
}

func TestConvertIsRepeatable(t *testing.T) {
	first, err := Convert(SELECT)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		out, err := Convert(SELECT)
		require.NoError(t, err)
		assert.Equal(t, first, out)
	}
}

func TestConvertWithOptions(t *testing.T) {
	out, err := Convert("select * from t where value = 'x' and name like 'a%'",
		converter.WithValueFields(), converter.WithRegexOptions(""))
	require.NoError(t, err)
	assert.Equal(t, `db.t.find({
  "$and": [
    {
      "value": "x"
    },
    {
      "name": {
        "$regex": "^a.*$"
      }
    }
  ]
})`, out)
}

func TestConvertJSON(t *testing.T) {
	out, err := ConvertJSON(SELECT)
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	assert.Equal(t, "my_table", doc["collection"])
}

func TestTranslateErrors(t *testing.T) {
	_, err := Translate("delete from t")
	assert.ErrorIs(t, err, parser.ErrParse)

	_, err = Translate("select * from orders o where o.id in (select c.id from customers c where c.oid = o.id)")
	assert.ErrorIs(t, err, converter.ErrUnsupportedConstruct)

	out, err := Convert("select * from t where id = objectid('nope')")
	assert.ErrorIs(t, err, converter.ErrInvalidLiteral)
	assert.Empty(t, out)
}
