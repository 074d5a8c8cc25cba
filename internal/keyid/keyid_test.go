package keyid

import (
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

func s(v string) types.AttributeValue { return &types.AttributeValueMemberS{Value: v} }
func n(v string) types.AttributeValue { return &types.AttributeValueMemberN{Value: v} }

func TestOf_SameKeySameID(t *testing.T) {
	a, err := Of("music", map[string]types.AttributeValue{"pk": s("ALBUM_1"), "sk": s("INFO_")})
	if err != nil {
		t.Fatal(err)
	}
	b, err := Of("music", map[string]types.AttributeValue{"sk": s("INFO_"), "pk": s("ALBUM_1")})
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Errorf("expected equal IDs, got %q and %q", a, b)
	}
	if len(a) != 32 {
		t.Errorf("expected 32 hex chars, got %d", len(a))
	}
}

func TestOf_DistinguishesKeys(t *testing.T) {
	base := map[string]types.AttributeValue{"pk": s("ALBUM_1"), "sk": s("INFO_")}
	id, _ := Of("music", base)

	tests := []struct {
		name  string
		table string
		key   map[string]types.AttributeValue
	}{
		{"other table", "music2", base},
		{"other partition", "music", map[string]types.AttributeValue{"pk": s("ALBUM_2"), "sk": s("INFO_")}},
		{"other sort", "music", map[string]types.AttributeValue{"pk": s("ALBUM_1"), "sk": s("TRACK_1")}},
		{"number vs string", "music", map[string]types.AttributeValue{"pk": n("1"), "sk": s("INFO_")}},
		{"partition only", "music", map[string]types.AttributeValue{"pk": s("ALBUM_1")}},
	}

	for _, tt := range tests {
		other, err := Of(tt.table, tt.key)
		if err != nil {
			t.Fatalf("%s: %v", tt.name, err)
		}
		if other == id {
			t.Errorf("%s: expected a different ID", tt.name)
		}
	}
}

func TestCanonical_NumbersCompareByValue(t *testing.T) {
	a, err := Canonical("t", map[string]types.AttributeValue{"pk": n("1.50")})
	if err != nil {
		t.Fatal(err)
	}
	b, err := Canonical("t", map[string]types.AttributeValue{"pk": n("1.5")})
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Errorf("expected %q, got %q", a, b)
	}
}

func TestCanonical_Binary(t *testing.T) {
	c, err := Canonical("t", map[string]types.AttributeValue{"pk": &types.AttributeValueMemberB{Value: []byte{1, 2}}})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(c, "pk=B:AQI=") {
		t.Errorf("unexpected canonical form %q", c)
	}
}

func TestCanonical_RejectsNonKeyTypes(t *testing.T) {
	_, err := Canonical("t", map[string]types.AttributeValue{"pk": &types.AttributeValueMemberBOOL{Value: true}})
	if err == nil {
		t.Error("expected error for BOOL key")
	}
	_, err = Canonical("t", map[string]types.AttributeValue{"pk": n("one")})
	if err == nil {
		t.Error("expected error for invalid number")
	}
}
