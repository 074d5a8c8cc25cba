// Package store runs typed, heterogeneous transactions against DynamoDB.
//
// Items and keys are encoded by [codec] schemas and collected in a write set
// or a load set. Each set is dispatched as exactly one TransactWriteItems or
// TransactGetItems call, so it succeeds or fails as a whole.
//
// # Writing
//
//	ws, err := store.NewWriteSet().
//	    SaveIf(musicdb.PlaylistInfoSchema.Item(info), store.ConditionExpr("playlist_size = :size", vals)).
//	    Save(musicdb.PlaylistEntrySchema.Item(entry)).
//	    CheckCondition(musicdb.AlbumTrackSchema.Key(trackKey), store.Exists("track_name")).
//	    Build()
//	if err != nil {
//	    return err // duplicate keys, encode errors, invalid conditions
//	}
//	err = s.TransactWrite(ctx, ws)
//
// # Loading
//
//	result, err := s.TransactLoadKeys(ctx,
//	    musicdb.PlaylistInfoSchema.Key(infoKey),
//	    musicdb.PlaylistEntrySchema.Key(entryKey),
//	)
//	infos := store.ItemsOf(result, musicdb.PlaylistInfoSchema)
//
// Keys whose item doesn't exist are omitted from the result.
//
// # Builders
//
// Builders are single-use. Adding an operation after Build, or calling Build
// twice, fails with [ErrIllegalState]. The first error recorded while adding
// operations is returned by Build.
//
// # Configuration
//
// Use [DefaultConfig] for the current DynamoDB limits (25 writes, 100 reads
// per transaction). Sets larger than the configured limits are rejected with
// [ErrTooManyItems] before any request is made; a set is never split.
//
// # Errors
//
//   - [ErrDuplicateKeyInTransaction] - two operations target the same item
//   - [ErrTransactionCanceled] - DynamoDB canceled the transaction; see [TransactionCanceledError]
//   - [ErrIllegalState] - builder used after Build
//   - [ErrTooManyItems] - set exceeds the configured item limit
//   - [ErrInvalidCondition] - malformed condition
//   - [ErrNotFound] - single-item load found nothing
//   - [ErrConditionFailed] - single-item write condition failed
package store
