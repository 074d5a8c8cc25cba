package stream

import (
	"bytes"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// --- ConvertStreamKey Tests ---

func TestConvertStreamKey_CompositeKey(t *testing.T) {
	streamKey := map[string]events.DynamoDBAttributeValue{
		"partition_key": events.NewStringAttribute("PLAYLIST_L_1"),
		"sort_key":      events.NewStringAttribute("ENTRY_M_1:T_1"),
	}

	key := ConvertStreamKey(streamKey)

	if v, ok := key["partition_key"].(*types.AttributeValueMemberS); !ok || v.Value != "PLAYLIST_L_1" {
		t.Errorf("unexpected partition_key %v", key["partition_key"])
	}
	if v, ok := key["sort_key"].(*types.AttributeValueMemberS); !ok || v.Value != "ENTRY_M_1:T_1" {
		t.Errorf("unexpected sort_key %v", key["sort_key"])
	}
}

func TestConvertStreamKey_MixedTypes(t *testing.T) {
	streamKey := map[string]events.DynamoDBAttributeValue{
		"id":      events.NewNumberAttribute("-12.5"),
		"blob":    events.NewBinaryAttribute([]byte{0x01, 0x02}),
		"ignored": events.NewBooleanAttribute(true),
	}

	key := ConvertStreamKey(streamKey)

	if v, ok := key["id"].(*types.AttributeValueMemberN); !ok || v.Value != "-12.5" {
		t.Errorf("unexpected id %v", key["id"])
	}
	if v, ok := key["blob"].(*types.AttributeValueMemberB); !ok || !bytes.Equal(v.Value, []byte{0x01, 0x02}) {
		t.Errorf("unexpected blob %v", key["blob"])
	}
	if _, ok := key["ignored"]; ok {
		t.Error("expected non-key types to be dropped")
	}
}

func TestConvertStreamKey_Nil(t *testing.T) {
	key := ConvertStreamKey(nil)
	if key == nil || len(key) != 0 {
		t.Errorf("expected empty non-nil map, got %v", key)
	}
}

// --- ConvertImage Tests ---

func TestConvertImage_AllTypes(t *testing.T) {
	image := map[string]events.DynamoDBAttributeValue{
		"s":    events.NewStringAttribute("日本語テスト"),
		"n":    events.NewNumberAttribute("42"),
		"b":    events.NewBinaryAttribute([]byte("art")),
		"bool": events.NewBooleanAttribute(true),
		"null": events.NewNullAttribute(),
		"ss":   events.NewStringSetAttribute([]string{"rock", "pop"}),
		"ns":   events.NewNumberSetAttribute([]string{"1", "2"}),
		"bs":   events.NewBinarySetAttribute([][]byte{[]byte("x")}),
		"l":    events.NewListAttribute([]events.DynamoDBAttributeValue{events.NewStringAttribute("a"), events.NewNumberAttribute("1")}),
		"m": events.NewMapAttribute(map[string]events.DynamoDBAttributeValue{
			"label": events.NewStringAttribute("Warner"),
		}),
	}

	av := ConvertImage(image)

	if len(av) != len(image) {
		t.Fatalf("expected %d attributes, got %d", len(image), len(av))
	}
	if v, ok := av["s"].(*types.AttributeValueMemberS); !ok || v.Value != "日本語テスト" {
		t.Errorf("unexpected s %v", av["s"])
	}
	if v, ok := av["bool"].(*types.AttributeValueMemberBOOL); !ok || !v.Value {
		t.Errorf("unexpected bool %v", av["bool"])
	}
	if _, ok := av["null"].(*types.AttributeValueMemberNULL); !ok {
		t.Errorf("unexpected null %v", av["null"])
	}
	if v, ok := av["ss"].(*types.AttributeValueMemberSS); !ok || len(v.Value) != 2 {
		t.Errorf("unexpected ss %v", av["ss"])
	}
	if v, ok := av["ns"].(*types.AttributeValueMemberNS); !ok || len(v.Value) != 2 {
		t.Errorf("unexpected ns %v", av["ns"])
	}
	if v, ok := av["bs"].(*types.AttributeValueMemberBS); !ok || len(v.Value) != 1 {
		t.Errorf("unexpected bs %v", av["bs"])
	}
	l, ok := av["l"].(*types.AttributeValueMemberL)
	if !ok || len(l.Value) != 2 {
		t.Fatalf("unexpected l %v", av["l"])
	}
	if _, ok := l.Value[1].(*types.AttributeValueMemberN); !ok {
		t.Errorf("expected number in list, got %T", l.Value[1])
	}
	m, ok := av["m"].(*types.AttributeValueMemberM)
	if !ok {
		t.Fatalf("unexpected m %v", av["m"])
	}
	if v, ok := m.Value["label"].(*types.AttributeValueMemberS); !ok || v.Value != "Warner" {
		t.Errorf("unexpected nested label %v", m.Value["label"])
	}
}

func TestConvertImage_Empty(t *testing.T) {
	if av := ConvertImage(nil); av != nil {
		t.Errorf("expected nil for nil image, got %v", av)
	}
	if av := ConvertImage(map[string]events.DynamoDBAttributeValue{}); av != nil {
		t.Errorf("expected nil for empty image, got %v", av)
	}
}

// --- TableFromARN Tests ---

func TestTableFromARN(t *testing.T) {
	tests := []struct {
		arn  string
		want string
	}{
		{"arn:aws:dynamodb:us-west-2:123456789012:table/music_items/stream/2024-01-01T00:00:00.000", "music_items"},
		{"arn:aws:dynamodb:us-west-2:123456789012:table/music_items", "music_items"},
		{"arn:aws:dynamodb:us-west-2:123456789012:global-table/music_items", ""},
		{"", ""},
	}

	for _, tt := range tests {
		if got := TableFromARN(tt.arn); got != tt.want {
			t.Errorf("TableFromARN(%q) = %q, want %q", tt.arn, got, tt.want)
		}
	}
}
