package stream_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/aws/aws-lambda-go/events"

	"github.com/jacentio/tessera/internal/musicdb"
	"github.com/jacentio/tessera/store"
	"github.com/jacentio/tessera/stream"
)

const streamARN = "arn:aws:dynamodb:us-west-2:123456789012:table/music_items/stream/2024-01-01T00:00:00.000"

func newHandler(t *testing.T) *stream.Handler {
	t.Helper()
	registry, err := musicdb.Default().Registry()
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	return stream.NewHandler(registry, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func playlistKeys(token string) map[string]events.DynamoDBAttributeValue {
	return map[string]events.DynamoDBAttributeValue{
		"partition_key": events.NewStringAttribute("PLAYLIST_" + token),
		"sort_key":      events.NewStringAttribute("INFO_"),
	}
}

func playlistImage(token, name, size string) map[string]events.DynamoDBAttributeValue {
	image := playlistKeys(token)
	image["playlist_name"] = events.NewStringAttribute(name)
	image["playlist_size"] = events.NewNumberAttribute(size)
	return image
}

func record(eventID, name string, keys, oldImage, newImage map[string]events.DynamoDBAttributeValue) events.DynamoDBEventRecord {
	return events.DynamoDBEventRecord{
		EventID:        eventID,
		EventName:      name,
		EventSourceArn: streamARN,
		Change: events.DynamoDBStreamRecord{
			Keys:           keys,
			OldImage:       oldImage,
			NewImage:       newImage,
			SequenceNumber: eventID,
		},
	}
}

// --- NewHandler Tests ---

func TestNewHandler_Defaults(t *testing.T) {
	h := stream.NewHandler(nil, nil)
	if h == nil {
		t.Fatal("expected non-nil Handler")
	}

	// With an empty registry every record is skipped.
	event := events.DynamoDBEvent{Records: []events.DynamoDBEventRecord{
		record("1", stream.EventInsert, playlistKeys("L_1"), nil, playlistImage("L_1", "Focus", "0")),
	}}
	if err := h.Handle(context.Background(), event); err != nil {
		t.Errorf("expected no error, got %v", err)
	}
}

// --- Handle Tests ---

func TestHandle_EmptyEvent(t *testing.T) {
	h := newHandler(t)
	if err := h.Handle(context.Background(), events.DynamoDBEvent{}); err != nil {
		t.Errorf("expected no error for empty event, got %v", err)
	}
}

func TestHandle_TypedChanges(t *testing.T) {
	h := newHandler(t)

	var changes []stream.TypedChange[musicdb.PlaylistInfo]
	stream.Subscribe(h, musicdb.PlaylistInfoSchema, func(_ context.Context, c stream.TypedChange[musicdb.PlaylistInfo]) error {
		changes = append(changes, c)
		return nil
	})

	var entries int
	stream.Subscribe(h, musicdb.PlaylistEntrySchema, func(context.Context, stream.TypedChange[musicdb.PlaylistEntry]) error {
		entries++
		return nil
	})

	event := events.DynamoDBEvent{Records: []events.DynamoDBEventRecord{
		record("1", stream.EventInsert, playlistKeys("L_1"), nil, playlistImage("L_1", "WFH Music", "0")),
		record("2", stream.EventModify, playlistKeys("L_1"), playlistImage("L_1", "WFH Music", "0"), playlistImage("L_1", "WFH Music", "1")),
		record("3", stream.EventRemove, playlistKeys("L_1"), playlistImage("L_1", "WFH Music", "1"), nil),
	}}

	if err := h.Handle(context.Background(), event); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(changes) != 3 {
		t.Fatalf("expected 3 changes, got %d", len(changes))
	}
	if entries != 0 {
		t.Errorf("expected no PlaylistEntry changes, got %d", entries)
	}

	insert := changes[0]
	if insert.Old != nil || insert.New == nil {
		t.Fatalf("expected only a new image on INSERT, got old=%v new=%v", insert.Old, insert.New)
	}
	if insert.New.PlaylistToken != "L_1" || insert.New.PlaylistName != "WFH Music" {
		t.Errorf("unexpected new image %+v", *insert.New)
	}
	if insert.Type.TypeName() != "PlaylistInfo" || insert.Table != musicdb.TableName {
		t.Errorf("unexpected type %s in table %s", insert.Type.TypeName(), insert.Table)
	}

	modify := changes[1]
	if modify.Old.PlaylistSize != 0 || modify.New.PlaylistSize != 1 {
		t.Errorf("expected size 0 -> 1, got %d -> %d", modify.Old.PlaylistSize, modify.New.PlaylistSize)
	}

	remove := changes[2]
	if remove.EventName != stream.EventRemove || remove.New != nil || remove.Old == nil {
		t.Errorf("expected only an old image on REMOVE, got %+v", remove)
	}
}

func TestHandle_KeysOnly(t *testing.T) {
	h := newHandler(t)

	var got stream.Change
	h.On(musicdb.PlaylistInfoSchema, func(_ context.Context, c stream.Change) error {
		got = c
		return nil
	})

	event := events.DynamoDBEvent{Records: []events.DynamoDBEventRecord{
		record("1", stream.EventRemove, playlistKeys("L_1"), nil, nil),
	}}
	if err := h.Handle(context.Background(), event); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Old != nil || got.New != nil {
		t.Error("expected no images for a keys-only record")
	}
	if len(got.Keys) != 2 {
		t.Errorf("expected 2 key attributes, got %v", got.Keys)
	}
}

func TestHandle_SkipsUnknownRecords(t *testing.T) {
	h := newHandler(t)

	called := false
	h.On(musicdb.PlaylistInfoSchema, func(context.Context, stream.Change) error {
		called = true
		return nil
	})

	unknownTable := record("1", stream.EventInsert, playlistKeys("L_1"), nil, playlistImage("L_1", "x", "0"))
	unknownTable.EventSourceArn = "arn:aws:dynamodb:us-west-2:123456789012:table/other/stream/2024"

	unknownShape := record("2", stream.EventInsert, map[string]events.DynamoDBAttributeValue{
		"partition_key": events.NewStringAttribute("ARTIST_1"),
		"sort_key":      events.NewStringAttribute("INFO_"),
	}, nil, nil)

	unknownEvent := record("3", "TTL", playlistKeys("L_1"), nil, nil)

	event := events.DynamoDBEvent{Records: []events.DynamoDBEventRecord{unknownTable, unknownShape, unknownEvent}}
	if err := h.Handle(context.Background(), event); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if called {
		t.Error("expected no subscriber to run")
	}
}

func TestHandle_SubscriberError(t *testing.T) {
	h := newHandler(t)
	boom := errors.New("boom")

	var seen []string
	h.On(musicdb.PlaylistInfoSchema, func(_ context.Context, c stream.Change) error {
		seen = append(seen, c.EventID)
		if c.EventID == "2" {
			return boom
		}
		return nil
	})

	event := events.DynamoDBEvent{Records: []events.DynamoDBEventRecord{
		record("1", stream.EventInsert, playlistKeys("L_1"), nil, playlistImage("L_1", "a", "0")),
		record("2", stream.EventInsert, playlistKeys("L_2"), nil, playlistImage("L_2", "b", "0")),
		record("3", stream.EventInsert, playlistKeys("L_3"), nil, playlistImage("L_3", "c", "0")),
	}}

	err := h.Handle(context.Background(), event)
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if len(seen) != 2 {
		t.Errorf("expected processing to stop at the failing record, saw %v", seen)
	}

	seen = nil
	resp, err := h.HandleBatch(context.Background(), event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(resp.BatchItemFailures) != 2 {
		t.Fatalf("expected 2 batch item failures, got %v", resp.BatchItemFailures)
	}
	if resp.BatchItemFailures[0].ItemIdentifier != "2" || resp.BatchItemFailures[1].ItemIdentifier != "3" {
		t.Errorf("unexpected failures %v", resp.BatchItemFailures)
	}
}

func TestHandle_DecodeError(t *testing.T) {
	h := newHandler(t)
	h.On(musicdb.PlaylistInfoSchema, func(context.Context, stream.Change) error { return nil })

	bad := playlistKeys("L_1")
	bad["playlist_size"] = events.NewStringAttribute("one")

	event := events.DynamoDBEvent{Records: []events.DynamoDBEventRecord{
		record("1", stream.EventInsert, playlistKeys("L_1"), nil, bad),
	}}
	if err := h.Handle(context.Background(), event); err == nil {
		t.Error("expected decode error")
	}
}

func TestHandle_WithStoreRegistry(t *testing.T) {
	registry, err := musicdb.Default().Registry()
	if err != nil {
		t.Fatal(err)
	}
	s := store.NewWithRegistry(nil, store.DefaultConfig(), registry)

	h := stream.NewHandler(s.Registry(), nil)
	count := 0
	stream.Subscribe(h, musicdb.AlbumTrackSchema, func(_ context.Context, c stream.TypedChange[musicdb.AlbumTrack]) error {
		count++
		if c.New.TrackName != "dreamin'" {
			t.Errorf("unexpected track %+v", *c.New)
		}
		return nil
	})

	keys := map[string]events.DynamoDBAttributeValue{
		"partition_key": events.NewStringAttribute("ALBUM_M_1"),
		"sort_key":      events.NewStringAttribute("TRACK_T_1"),
	}
	image := map[string]events.DynamoDBAttributeValue{
		"partition_key": keys["partition_key"],
		"sort_key":      keys["sort_key"],
		"track_name":    events.NewStringAttribute("dreamin'"),
		"run_length":    events.NewStringAttribute("PT3M28S"),
	}

	event := events.DynamoDBEvent{Records: []events.DynamoDBEventRecord{
		record("1", stream.EventInsert, keys, nil, image),
	}}
	if err := h.Handle(context.Background(), event); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 change, got %d", count)
	}
}
