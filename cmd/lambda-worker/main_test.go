package main

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-lambda-go/events"

	"jobtracker-backend/internal/queue"
	"jobtracker-backend/internal/stats"
)

type fakeRefresher struct {
	err error
}

func (f fakeRefresher) Refresh(ctx context.Context, ownerID string) (stats.Overview, error) {
	return stats.Overview{}, f.err
}

func validBody(t *testing.T) string {
	t.Helper()
	raw, err := queue.EncodeMessage(queue.Message{Type: queue.TypeStatusChanged, ApplicationID: "a1", OwnerID: "o1", Version: 1})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	return string(raw)
}

func TestProcessBatchReportsOnlyRetryableFailures(t *testing.T) {
	event := events.SQSEvent{Records: []events.SQSMessage{
		{MessageId: "ok", Body: validBody(t)},
		{MessageId: "bad", Body: "{not json"},
	}}

	resp := processBatch(context.Background(), fakeRefresher{}, event)
	if len(resp.BatchItemFailures) != 0 {
		t.Fatalf("expected no failures, got %+v", resp.BatchItemFailures)
	}

	resp = processBatch(context.Background(), fakeRefresher{err: errors.New("down")}, event)
	if len(resp.BatchItemFailures) != 1 || resp.BatchItemFailures[0].ItemIdentifier != "ok" {
		t.Fatalf("expected only the valid message to be retried, got %+v", resp.BatchItemFailures)
	}
}
