package musicdb_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jacentio/tessera/codec"
	"github.com/jacentio/tessera/internal/musicdb"
)

func TestSchemas_SharedTable(t *testing.T) {
	db := musicdb.Default()

	info, err := db.PlaylistInfo.Encode(musicdb.PlaylistInfo{PlaylistToken: "L_1", PlaylistName: "WFH Music"})
	require.NoError(t, err)
	assert.Equal(t, &types.AttributeValueMemberS{Value: "PLAYLIST_L_1"}, info["partition_key"])
	assert.Equal(t, &types.AttributeValueMemberS{Value: "INFO_"}, info["sort_key"])

	entry, err := db.PlaylistEntry.Encode(musicdb.PlaylistEntry{PlaylistToken: "L_1", AlbumTrackToken: "M_1:T_1"})
	require.NoError(t, err)
	assert.Equal(t, &types.AttributeValueMemberS{Value: "ENTRY_M_1:T_1"}, entry["sort_key"])

	track, err := db.AlbumTrack.Encode(musicdb.AlbumTrack{
		AlbumToken: "M_1",
		TrackToken: "T_1",
		TrackName:  "dreamin'",
		RunLength:  3*time.Minute + 28*time.Second,
	})
	require.NoError(t, err)
	assert.Equal(t, &types.AttributeValueMemberS{Value: "PT3M28S"}, track["run_length"])

	assert.True(t, db.PlaylistInfo.Matches(info))
	assert.False(t, db.PlaylistEntry.Matches(info))
	assert.False(t, db.AlbumInfo.Matches(info))
	assert.True(t, db.PlaylistEntry.Matches(entry))
	assert.True(t, db.AlbumTrack.Matches(track))
}

func TestRegistry_Lookup(t *testing.T) {
	db := musicdb.Default()
	r, err := db.Registry()
	require.NoError(t, err)
	assert.Equal(t, []string{musicdb.TableName}, r.Tables())

	album, err := db.AlbumInfo.Encode(musicdb.AlbumInfo{AlbumToken: "M_1", AlbumTitle: "Rumours"})
	require.NoError(t, err)

	typ, ok := r.Lookup(musicdb.TableName, album)
	require.True(t, ok)
	assert.Equal(t, "AlbumInfo", typ.TypeName())
}

func TestNew_Mapping(t *testing.T) {
	m, err := codec.ParseMapping(strings.NewReader(`
types:
  AlbumInfo:
    table: music_staging
  AlbumTrack:
    table: music_staging
    attributes:
      track_name: name
`))
	require.NoError(t, err)

	db, err := musicdb.New(m)
	require.NoError(t, err)
	assert.Equal(t, "music_staging", db.AlbumTrack.TableName())
	assert.Equal(t, musicdb.TableName, db.PlaylistInfo.TableName())

	av, err := db.AlbumTrack.Encode(musicdb.AlbumTrack{AlbumToken: "M_1", TrackToken: "T_1", TrackName: "dreamin'"})
	require.NoError(t, err)
	assert.Contains(t, av, "name")
	assert.NotContains(t, av, "track_name")

	r, err := db.Registry()
	require.NoError(t, err)
	assert.Equal(t, []string{"music_staging", musicdb.TableName}, r.Tables())
}

func TestNew_ConflictingKeys(t *testing.T) {
	// Renaming the key of one type only leaves the shared table with two key shapes.
	m := &codec.Mapping{Types: map[string]codec.TypeMapping{
		"PlaylistInfo": {Attributes: map[string]string{"playlist_token": "pk"}},
	}}

	db, err := musicdb.New(m)
	require.NoError(t, err)

	_, err = db.Registry()
	assert.True(t, errors.Is(err, codec.ErrInvalidSchema))
}

func TestNew_UnknownField(t *testing.T) {
	m := &codec.Mapping{Types: map[string]codec.TypeMapping{
		"PlaylistEntry": {Attributes: map[string]string{"playlist_size": "size"}},
	}}

	_, err := musicdb.New(m)
	assert.True(t, errors.Is(err, codec.ErrInvalidSchema))
}
