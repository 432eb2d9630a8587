// Package stream invalidates the user cache from DynamoDB Streams, so writes
// that bypass the HTTP service (other replicas, migrations, console edits)
// do not leave cached entries behind.
package stream

import (
	"context"
	"fmt"

	"github.com/aws/aws-lambda-go/events"

	"github.com/unkn0wn-root/userd"
)

// Invalidator is the part of *cache.Users the handler needs.
type Invalidator interface {
	DeleteUser(ctx context.Context, id string) error
	DropAll(ctx context.Context) error
}

// Handler processes DynamoDB stream events of the users table.
type Handler struct {
	cache  Invalidator
	logger userd.Logger
}

// NewHandler creates a new stream handler.
func NewHandler(c Invalidator, logger userd.Logger) *Handler {
	if logger == nil {
		logger = userd.NopLogger{}
	}
	return &Handler{cache: c, logger: logger}
}

// HandleInvalidate is the Lambda entry point. A returned error makes Lambda
// retry the batch; invalidation is idempotent so replays are harmless.
func (h *Handler) HandleInvalidate(ctx context.Context, event events.DynamoDBEvent) error {
	dropList := false
	for _, record := range event.Records {
		drop, err := h.processRecord(ctx, record)
		if err != nil {
			h.logger.Error("failed to process record", userd.Fields{
				"eventID": record.EventID,
				"err":     err,
			})
			return err
		}
		dropList = dropList || drop
	}
	// one list invalidation per batch
	if dropList {
		if err := h.cache.DropAll(ctx); err != nil {
			return fmt.Errorf("drop list: %w", err)
		}
	}
	return nil
}

// processRecord invalidates the single entry of a changed user and reports
// whether the list entry must go.
func (h *Handler) processRecord(ctx context.Context, record events.DynamoDBEventRecord) (bool, error) {
	switch events.DynamoDBOperationType(record.EventName) {
	case events.DynamoDBOperationTypeInsert:
		return true, nil
	case events.DynamoDBOperationTypeModify, events.DynamoDBOperationTypeRemove:
	default:
		return false, nil
	}

	id := getStringAttr(record.Change.Keys, "id")
	if id == "" {
		h.logger.Warn("stream record without id key", userd.Fields{"eventID": record.EventID})
		return true, nil
	}
	if err := h.cache.DeleteUser(ctx, id); err != nil {
		return false, fmt.Errorf("invalidate user %s: %w", id, err)
	}
	h.logger.Debug("user invalidated from stream", userd.Fields{
		"id":    id,
		"event": record.EventName,
	})
	return true, nil
}

// getStringAttr extracts a string attribute from a DynamoDB stream image.
func getStringAttr(image map[string]events.DynamoDBAttributeValue, key string) string {
	if v, ok := image[key]; ok && v.DataType() == events.DataTypeString {
		return v.String()
	}
	return ""
}
