// Package stream decodes DynamoDB stream records into typed changes.
package stream

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jacentio/tessera/codec"
	"github.com/jacentio/tessera/store"
)

// Stream event names.
const (
	EventInsert = "INSERT"
	EventModify = "MODIFY"
	EventRemove = "REMOVE"
)

// Change is one decoded stream record. Old and New hold values of the
// record's type (not pointers); either is nil when the image is absent,
// e.g. Old on INSERT, New on REMOVE, or both with a KEYS_ONLY stream.
type Change struct {
	EventID        string
	EventName      string
	SequenceNumber string
	Table          string
	Type           codec.Type
	Keys           map[string]types.AttributeValue
	Old            any
	New            any
}

// Func is called for every change of a subscribed type.
type Func func(ctx context.Context, c Change) error

// Handler dispatches DynamoDB stream records to subscribers by type.
// Records of tables or key shapes the registry doesn't know are skipped.
type Handler struct {
	registry    *store.Registry
	logger      *slog.Logger
	subscribers map[string][]Func
}

// NewHandler creates a new stream handler.
func NewHandler(registry *store.Registry, logger *slog.Logger) *Handler {
	if registry == nil {
		registry = store.NewRegistry()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		registry:    registry,
		logger:      logger,
		subscribers: make(map[string][]Func),
	}
}

// On registers fn for changes of t. Subscribe is the typed equivalent.
// Subscribers must be added before the handler starts processing events.
func (h *Handler) On(t codec.Type, fn Func) {
	id := codec.ID(t)
	h.subscribers[id] = append(h.subscribers[id], fn)
}

// Handle processes every record of event in order and stops at the first
// failure. It is designed to be used as an AWS Lambda handler; returning
// the error makes Lambda retry the batch.
func (h *Handler) Handle(ctx context.Context, event events.DynamoDBEvent) error {
	for _, record := range event.Records {
		if err := h.processRecord(ctx, record); err != nil {
			h.logger.Error("failed to process record",
				"eventID", record.EventID,
				"error", err,
			)
			return err
		}
	}
	return nil
}

// HandleBatch is like Handle but reports the failing record and every
// record after it as batch item failures, so Lambda resumes from there
// instead of retrying the whole batch. It requires ReportBatchItemFailures
// on the event source mapping.
func (h *Handler) HandleBatch(ctx context.Context, event events.DynamoDBEvent) (events.DynamoDBEventResponse, error) {
	var resp events.DynamoDBEventResponse
	for i, record := range event.Records {
		if err := h.processRecord(ctx, record); err != nil {
			h.logger.Error("failed to process record",
				"eventID", record.EventID,
				"sequenceNumber", record.Change.SequenceNumber,
				"error", err,
			)
			for _, rest := range event.Records[i:] {
				resp.BatchItemFailures = append(resp.BatchItemFailures, events.DynamoDBBatchItemFailure{
					ItemIdentifier: rest.Change.SequenceNumber,
				})
			}
			break
		}
	}
	return resp, nil
}

// processRecord decodes a single DynamoDB stream record and runs its subscribers.
func (h *Handler) processRecord(ctx context.Context, record events.DynamoDBEventRecord) error {
	switch record.EventName {
	case EventInsert, EventModify, EventRemove:
	default:
		return nil
	}

	table := TableFromARN(record.EventSourceArn)
	keys := ConvertStreamKey(record.Change.Keys)

	t, ok := h.registry.Lookup(table, keys)
	if !ok {
		h.logger.Debug("skipping record of unregistered type",
			"eventID", record.EventID,
			"table", table,
		)
		return nil
	}

	subscribers := h.subscribers[codec.ID(t)]
	if len(subscribers) == 0 {
		return nil
	}

	change := Change{
		EventID:        record.EventID,
		EventName:      record.EventName,
		SequenceNumber: record.Change.SequenceNumber,
		Table:          table,
		Type:           t,
		Keys:           keys,
	}
	var err error
	if change.Old, err = decodeImage(t, record.Change.OldImage); err != nil {
		return fmt.Errorf("decode old %s image: %w", t.TypeName(), err)
	}
	if change.New, err = decodeImage(t, record.Change.NewImage); err != nil {
		return fmt.Errorf("decode new %s image: %w", t.TypeName(), err)
	}

	h.logger.Debug("dispatching change",
		"eventID", record.EventID,
		"eventName", record.EventName,
		"type", t.TypeName(),
		"subscribers", len(subscribers),
	)

	for _, fn := range subscribers {
		if err := fn(ctx, change); err != nil {
			return fmt.Errorf("%s %s: %w", record.EventName, t.TypeName(), err)
		}
	}
	return nil
}

func decodeImage(t codec.Type, image map[string]events.DynamoDBAttributeValue) (any, error) {
	av := ConvertImage(image)
	if av == nil {
		return nil, nil
	}
	return t.DecodeAny(av)
}

// TypedChange is a Change with its images decoded to T.
type TypedChange[T any] struct {
	Change
	Old *T
	New *T
}

// Subscribe registers fn for changes of schema's type.
func Subscribe[T, K any](h *Handler, schema *codec.Schema[T, K], fn func(ctx context.Context, c TypedChange[T]) error) {
	h.On(schema, func(ctx context.Context, c Change) error {
		typed := TypedChange[T]{Change: c}
		if v, ok := c.Old.(T); ok {
			typed.Old = &v
		}
		if v, ok := c.New.(T); ok {
			typed.New = &v
		}
		return fn(ctx, typed)
	})
}
