package nftjson

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRulesetFlattensListOutput(t *testing.T) {
	doc := `{"nftables":[
		{"table":{"family":"ip","name":"fcnet","handle":1}},
		{"chain":{"family":"ip","table":"fcnet","name":"postrouting","handle":2,"type":"nat","hook":"postrouting","prio":100,"policy":"accept"}},
		{"rule":{"family":"ip","table":"fcnet","chain":"postrouting","handle":3,"expr":[
			{"match":{"op":"==","left":{"payload":{"protocol":"ip","field":"saddr"}},"right":"172.16.0.2"}},
			{"match":{"op":"==","left":{"meta":{"key":"oifname"}},"right":"eth0"}},
			{"masquerade":null}
		]}}
	]}`

	rs, err := ParseRuleset([]byte(doc))
	require.NoError(t, err)
	require.Len(t, rs.Objects, 3)

	assert.Equal(t, "fcnet", rs.Objects[0].Table.Name)
	assert.Equal(t, "postrouting", rs.Objects[1].Chain.Name)

	rule := rs.Objects[2].Rule
	require.NotNil(t, rule)
	require.Len(t, rule.Expr, 3)
	assert.Equal(t, "172.16.0.2", rule.Expr[0].Match.Right.Literal)
	assert.Equal(t, "eth0", rule.Expr[1].Match.Right.Literal)
	assert.NotNil(t, rule.Expr[2].Masquerade)
	require.NotNil(t, rule.Handle)
	assert.Equal(t, 3, *rule.Handle)
}

func TestBatchMarshalsAddAndDeleteEnvelope(t *testing.T) {
	batch := NewBatch()
	assert.True(t, batch.Empty())

	batch.Add(Object{Table: &Table{Family: FamilyIP, Name: "fcnet"}})
	handle := 9
	batch.Delete(Object{Rule: &Rule{Family: FamilyIP, Table: "fcnet", Chain: "forward", Handle: &handle}})
	assert.False(t, batch.Empty())

	raw, err := batch.MarshalJSON()
	require.NoError(t, err)

	var doc struct {
		Nftables []map[string]json.RawMessage `json:"nftables"`
	}
	require.NoError(t, json.Unmarshal(raw, &doc))
	require.Len(t, doc.Nftables, 2)
	_, hasAdd := doc.Nftables[0]["add"]
	assert.True(t, hasAdd)
	_, hasDelete := doc.Nftables[1]["delete"]
	assert.True(t, hasDelete)
}

func TestExpressionLiteralRoundTrips(t *testing.T) {
	e := Str("172.16.0.1")
	raw, err := json.Marshal(e)
	require.NoError(t, err)
	assert.Equal(t, `"172.16.0.1"`, string(raw))

	var decoded Expression
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "172.16.0.1", decoded.Literal)
}
