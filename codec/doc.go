// Package codec converts typed domain objects and their keys to and from
// DynamoDB attribute maps.
//
// Each domain type is described once by a [Schema], built from explicit
// field bindings rather than struct tags or reflection:
//
//	var AlbumTrackSchema = codec.Define[AlbumTrack, AlbumTrackKey]("AlbumTrack", "music_items").
//		PartitionKey(codec.KeyString("album_token", ...).Attr("partition_key").WithPrefix("ALBUM_")).
//		SortKey(codec.KeyString("track_token", ...).Attr("sort_key").WithPrefix("TRACK_")).
//		Field(
//		    codec.String("track_name", func(t *AlbumTrack) *string { return &t.TrackName }),
//		    codec.Duration("run_length", func(t *AlbumTrack) *time.Duration { return &t.RunLength }),
//		).
//		MustBuild()
//
// Key prefixes let several logical types share one physical table; a
// [Schema] only matches items whose key attributes carry its prefixes.
//
// # Encodings
//
//   - strings as S, integers and floats as N (shortest exact decimal form)
//   - durations as ISO-8601 strings ("PT3M28S")
//   - times as RFC 3339 strings with nanoseconds, in UTC
//   - string sets as SS, string lists as L, nested values as M via attributevalue
//
// # Errors
//
//   - [ErrSchemaMismatch] - a required or key attribute is absent or malformed
//   - [ErrTypeMismatch] - an attribute has an incompatible physical type
//   - [ErrInvalidValue] - a value cannot be stored (NaN, empty key)
//   - [ErrInvalidSchema] - a definition or [Mapping] is inconsistent
package codec
