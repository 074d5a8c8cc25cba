package memdb

import (
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func s(v string) types.AttributeValue { return &types.AttributeValueMemberS{Value: v} }
func n(v string) types.AttributeValue { return &types.AttributeValueMemberN{Value: v} }

func playlist() item {
	return item{
		"partition_key": s("PLAYLIST_p1"),
		"sort_key":      s("INFO_"),
		"playlist_name": s("Road trip"),
		"playlist_size": n("3"),
		"tags":          &types.AttributeValueMemberSS{Value: []string{"summer", "driving"}},
		"meta": &types.AttributeValueMemberM{Value: item{
			"owner": s("ann"),
			"ranks": &types.AttributeValueMemberL{Value: []types.AttributeValue{n("1"), n("2")}},
		}},
	}
}

func TestParseCondition_Eval(t *testing.T) {
	values := map[string]types.AttributeValue{
		":three": n("3.0"),
		":four":  n("4"),
		":name":  s("Road"),
		":tag":   s("summer"),
		":ann":   s("ann"),
		":type":  s("SS"),
	}

	tests := []struct {
		expr string
		want bool
	}{
		{"attribute_exists(playlist_name)", true},
		{"attribute_not_exists(playlist_name)", false},
		{"attribute_not_exists(partition_key)", false},
		{"attribute_exists(missing)", false},
		{"playlist_size = :three", true},
		{"playlist_size <> :three", false},
		{"playlist_size < :four", true},
		{"playlist_size >= :four", false},
		{"playlist_size BETWEEN :three AND :four", true},
		{"playlist_size IN (:four, :three)", true},
		{"begins_with(playlist_name, :name)", true},
		{"contains(tags, :tag)", true},
		{"contains(playlist_name, :tag)", false},
		{"meta.owner = :ann", true},
		{"meta.ranks[1] < :three", true},
		{"meta.ranks[5] = :three", false},
		{"size(tags) < :three", true},
		{"attribute_type(tags, :type)", true},
		{"NOT attribute_exists(missing) AND playlist_size = :three", true},
		{"attribute_exists(missing) OR (playlist_size = :four OR playlist_size = :three)", true},
		{"missing = :three", false},
		{"missing <> :three", true},
		{"playlist_name < :four", false},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			used := map[string]types.AttributeValue{}
			for k, v := range values {
				if containsToken(tt.expr, k) {
					used[k] = v
				}
			}
			c, err := ParseCondition(tt.expr, nil, used)
			require.NoError(t, err)
			assert.Equal(t, tt.want, c.Eval(playlist()))
		})
	}
}

func containsToken(expr, tok string) bool {
	for i := 0; i+len(tok) <= len(expr); i++ {
		if expr[i:i+len(tok)] == tok && (i+len(tok) == len(expr) || !isIdentByte(expr[i+len(tok)])) {
			return true
		}
	}
	return false
}

func TestParseCondition_AbsentItem(t *testing.T) {
	c, err := ParseCondition("attribute_not_exists(#pk)", map[string]string{"#pk": "partition_key"}, nil)
	require.NoError(t, err)
	assert.True(t, c.Eval(nil))
	assert.False(t, c.Eval(playlist()))
}

func TestParseCondition_SDKBuilderOutput(t *testing.T) {
	c, err := ParseCondition("(attribute_exists (#0)) AND (#1 = :0)",
		map[string]string{"#0": "playlist_name", "#1": "playlist_size"},
		map[string]types.AttributeValue{":0": n("3")})
	require.NoError(t, err)
	assert.True(t, c.Eval(playlist()))
}

func TestParseCondition_Errors(t *testing.T) {
	tests := []struct {
		name   string
		expr   string
		names  map[string]string
		values map[string]types.AttributeValue
	}{
		{"undefined value", "a = :missing", nil, nil},
		{"undefined name", "#a = :v", nil, map[string]types.AttributeValue{":v": n("1")}},
		{"unused value", "attribute_exists(a)", nil, map[string]types.AttributeValue{":v": n("1")}},
		{"unused name", "attribute_exists(a)", map[string]string{"#b": "b"}, nil},
		{"reserved word", "attribute_exists(name)", nil, nil},
		{"trailing tokens", "attribute_exists(a) b", nil, nil},
		{"unbalanced", "(attribute_exists(a)", nil, nil},
		{"bad character", "a = :v;", nil, map[string]types.AttributeValue{":v": n("1")}},
		{"missing comparator", "a :v", nil, map[string]types.AttributeValue{":v": n("1")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCondition(tt.expr, tt.names, tt.values)
			assert.Error(t, err)
		})
	}
}

func TestEqual(t *testing.T) {
	assert.True(t, Equal(n("1.50"), n("1.5")))
	assert.False(t, Equal(n("1"), s("1")))
	assert.True(t, Equal(
		&types.AttributeValueMemberSS{Value: []string{"a", "b"}},
		&types.AttributeValueMemberSS{Value: []string{"b", "a"}},
	))
	assert.False(t, Equal(
		&types.AttributeValueMemberL{Value: []types.AttributeValue{s("a"), s("b")}},
		&types.AttributeValueMemberL{Value: []types.AttributeValue{s("b"), s("a")}},
	))
	assert.True(t, Equal(playlist()["meta"], playlist()["meta"]))
}
