// Package musicdb is a small music library domain stored in one table. It is
// used by tests and examples.
//
// Every type lives in the "music_items" table under a generic partition_key /
// sort_key pair, with key prefixes telling the types apart:
//
//	AlbumInfo      ALBUM_<album_token>        INFO_
//	AlbumTrack     ALBUM_<album_token>        TRACK_<track_token>
//	PlaylistInfo   PLAYLIST_<playlist_token>  INFO_
//	PlaylistEntry  PLAYLIST_<playlist_token>  ENTRY_<album_track_token>
package musicdb

import (
	"time"

	"github.com/jacentio/tessera/codec"
	"github.com/jacentio/tessera/store"
)

// TableName is the table every musicdb type is stored in.
const TableName = "music_items"

const (
	partitionKey = "partition_key"
	sortKey      = "sort_key"
)

type AlbumInfo struct {
	AlbumToken  string
	AlbumTitle  string
	ArtistName  string
	ReleaseDate time.Time
	GenreName   string
}

type AlbumInfoKey struct {
	AlbumToken string
}

type AlbumTrack struct {
	AlbumToken string
	TrackToken string
	TrackName  string
	RunLength  time.Duration
}

type AlbumTrackKey struct {
	AlbumToken string
	TrackToken string
}

type PlaylistInfo struct {
	PlaylistToken   string
	PlaylistName    string
	PlaylistSize    int
	PlaylistVersion int64
	Tags            []string
}

type PlaylistInfoKey struct {
	PlaylistToken string
}

// PlaylistEntry places one album track on a playlist. AlbumTrackToken is
// "<album_token>:<track_token>".
type PlaylistEntry struct {
	PlaylistToken   string
	AlbumTrackToken string
}

type PlaylistEntryKey struct {
	PlaylistToken   string
	AlbumTrackToken string
}

var AlbumInfoSchema = codec.Define[AlbumInfo, AlbumInfoKey]("AlbumInfo", TableName).
	PartitionKey(codec.KeyString("album_token",
		func(a *AlbumInfo) *string { return &a.AlbumToken },
		func(k *AlbumInfoKey) *string { return &k.AlbumToken }).Attr(partitionKey).WithPrefix("ALBUM_")).
	SortKey(codec.KeyConstant[AlbumInfo, AlbumInfoKey](sortKey, "INFO_")).
	Field(
		codec.String("album_title", func(a *AlbumInfo) *string { return &a.AlbumTitle }).Required(),
		codec.String("artist_name", func(a *AlbumInfo) *string { return &a.ArtistName }),
		codec.Time("release_date", func(a *AlbumInfo) *time.Time { return &a.ReleaseDate }).OmitEmpty(),
		codec.String("genre_name", func(a *AlbumInfo) *string { return &a.GenreName }).OmitEmpty(),
	).
	MustBuild()

var AlbumTrackSchema = codec.Define[AlbumTrack, AlbumTrackKey]("AlbumTrack", TableName).
	PartitionKey(codec.KeyString("album_token",
		func(t *AlbumTrack) *string { return &t.AlbumToken },
		func(k *AlbumTrackKey) *string { return &k.AlbumToken }).Attr(partitionKey).WithPrefix("ALBUM_")).
	SortKey(codec.KeyString("track_token",
		func(t *AlbumTrack) *string { return &t.TrackToken },
		func(k *AlbumTrackKey) *string { return &k.TrackToken }).Attr(sortKey).WithPrefix("TRACK_")).
	Field(
		codec.String("track_name", func(t *AlbumTrack) *string { return &t.TrackName }).Required(),
		codec.Duration("run_length", func(t *AlbumTrack) *time.Duration { return &t.RunLength }),
	).
	MustBuild()

var PlaylistInfoSchema = codec.Define[PlaylistInfo, PlaylistInfoKey]("PlaylistInfo", TableName).
	PartitionKey(codec.KeyString("playlist_token",
		func(p *PlaylistInfo) *string { return &p.PlaylistToken },
		func(k *PlaylistInfoKey) *string { return &k.PlaylistToken }).Attr(partitionKey).WithPrefix("PLAYLIST_")).
	SortKey(codec.KeyConstant[PlaylistInfo, PlaylistInfoKey](sortKey, "INFO_")).
	Field(
		codec.String("playlist_name", func(p *PlaylistInfo) *string { return &p.PlaylistName }),
		codec.Int("playlist_size", func(p *PlaylistInfo) *int { return &p.PlaylistSize }),
		codec.Int64("playlist_version", func(p *PlaylistInfo) *int64 { return &p.PlaylistVersion }),
		codec.StringSet("tags", func(p *PlaylistInfo) *[]string { return &p.Tags }),
	).
	MustBuild()

var PlaylistEntrySchema = codec.Define[PlaylistEntry, PlaylistEntryKey]("PlaylistEntry", TableName).
	PartitionKey(codec.KeyString("playlist_token",
		func(e *PlaylistEntry) *string { return &e.PlaylistToken },
		func(k *PlaylistEntryKey) *string { return &k.PlaylistToken }).Attr(partitionKey).WithPrefix("PLAYLIST_")).
	SortKey(codec.KeyString("album_track_token",
		func(e *PlaylistEntry) *string { return &e.AlbumTrackToken },
		func(k *PlaylistEntryKey) *string { return &k.AlbumTrackToken }).Attr(sortKey).WithPrefix("ENTRY_")).
	MustBuild()

// DB bundles the schemas of one musicdb deployment. Use Default for the
// built-in layout or New to apply a mapping.
type DB struct {
	AlbumInfo     *codec.Schema[AlbumInfo, AlbumInfoKey]
	AlbumTrack    *codec.Schema[AlbumTrack, AlbumTrackKey]
	PlaylistInfo  *codec.Schema[PlaylistInfo, PlaylistInfoKey]
	PlaylistEntry *codec.Schema[PlaylistEntry, PlaylistEntryKey]
}

// Default returns the schemas with the built-in table and attribute names.
func Default() *DB {
	return &DB{
		AlbumInfo:     AlbumInfoSchema,
		AlbumTrack:    AlbumTrackSchema,
		PlaylistInfo:  PlaylistInfoSchema,
		PlaylistEntry: PlaylistEntrySchema,
	}
}

// New returns the schemas with m's table and attribute overrides applied.
// A nil mapping yields Default.
func New(m *codec.Mapping) (*DB, error) {
	db := Default()
	if m == nil {
		return db, nil
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}

	var err error
	if db.AlbumInfo, err = db.AlbumInfo.WithMapping(m); err != nil {
		return nil, err
	}
	if db.AlbumTrack, err = db.AlbumTrack.WithMapping(m); err != nil {
		return nil, err
	}
	if db.PlaylistInfo, err = db.PlaylistInfo.WithMapping(m); err != nil {
		return nil, err
	}
	if db.PlaylistEntry, err = db.PlaylistEntry.WithMapping(m); err != nil {
		return nil, err
	}
	return db, nil
}

// Types returns every schema of db.
func (db *DB) Types() []codec.Type {
	return []codec.Type{db.AlbumInfo, db.AlbumTrack, db.PlaylistInfo, db.PlaylistEntry}
}

// Registry returns a registry holding every schema of db.
func (db *DB) Registry() (*store.Registry, error) {
	r := store.NewRegistry()
	if err := r.Register(db.Types()...); err != nil {
		return nil, err
	}
	return r, nil
}
