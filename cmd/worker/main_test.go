package main

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"jobtracker-backend/internal/queue"
	"jobtracker-backend/internal/stats"
	"jobtracker-backend/internal/workerproc"
)

type fakeSQS struct {
	deleted []string
}

func (f *fakeSQS) ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
	return &sqs.ReceiveMessageOutput{}, nil
}

func (f *fakeSQS) DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error) {
	f.deleted = append(f.deleted, aws.ToString(params.ReceiptHandle))
	return &sqs.DeleteMessageOutput{}, nil
}

type fakeRefresher struct {
	owners []string
	err    error
}

func (f *fakeRefresher) Refresh(ctx context.Context, ownerID string) (stats.Overview, error) {
	f.owners = append(f.owners, ownerID)
	return stats.Overview{}, f.err
}

func newPoller(client sqsAPI, refresher workerproc.Refresher) *poller {
	return &poller{client: client, queueURL: "queue", refresher: refresher, concurrency: 1}
}

func eventMessage(t *testing.T, id string) sqstypes.Message {
	t.Helper()
	body, err := queue.EncodeMessage(queue.Message{
		Type:          queue.TypeStatusChanged,
		ApplicationID: "app-" + id,
		OwnerID:       "owner-" + id,
		From:          "Applied",
		To:            "Offer",
		Version:       1,
	})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	return sqstypes.Message{
		MessageId:     aws.String("m" + id),
		ReceiptHandle: aws.String("r" + id),
		Body:          aws.String(string(body)),
		Attributes:    map[string]string{"ApproximateReceiveCount": "1"},
	}
}

func TestWorkerDeletesMessageOnSuccess(t *testing.T) {
	client := &fakeSQS{}
	refresher := &fakeRefresher{}

	newPoller(client, refresher).handle(context.Background(), eventMessage(t, "1"))

	if len(client.deleted) != 1 || client.deleted[0] != "r1" {
		t.Fatalf("expected delete of r1, got %v", client.deleted)
	}
	if len(refresher.owners) != 1 || refresher.owners[0] != "owner-1" {
		t.Fatalf("expected refresh for owner-1, got %v", refresher.owners)
	}
}

func TestWorkerDoesNotDeleteOnFailure(t *testing.T) {
	client := &fakeSQS{}
	refresher := &fakeRefresher{err: errors.New("boom")}

	newPoller(client, refresher).handle(context.Background(), eventMessage(t, "2"))

	if len(client.deleted) != 0 {
		t.Fatalf("expected no delete, got %d", len(client.deleted))
	}
}

func TestWorkerDeletesOnInvalidJSON(t *testing.T) {
	client := &fakeSQS{}
	msg := sqstypes.Message{
		MessageId:     aws.String("m3"),
		ReceiptHandle: aws.String("r3"),
		Body:          aws.String("{bad-json"),
	}

	newPoller(client, &fakeRefresher{}).handle(context.Background(), msg)

	if len(client.deleted) != 1 {
		t.Fatalf("expected delete, got %d", len(client.deleted))
	}
}

func TestWorkerDeletesUnknownEventType(t *testing.T) {
	client := &fakeSQS{}
	refresher := &fakeRefresher{}
	msg := sqstypes.Message{
		MessageId:     aws.String("m4"),
		ReceiptHandle: aws.String("r4"),
		Body:          aws.String(`{"type":"something.else","applicationId":"a","ownerId":"o"}`),
	}

	newPoller(client, refresher).handle(context.Background(), msg)

	if len(client.deleted) != 1 || len(refresher.owners) != 0 {
		t.Fatalf("expected drop without refresh, deleted=%v refreshed=%v", client.deleted, refresher.owners)
	}
}

func TestReceiveCount(t *testing.T) {
	if got := receiveCount(sqstypes.Message{}); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
	if got := receiveCount(sqstypes.Message{Attributes: map[string]string{"ApproximateReceiveCount": "3"}}); got != 3 {
		t.Fatalf("expected 3, got %d", got)
	}
}

type stoppingSQS struct {
	fakeSQS
	batches [][]sqstypes.Message
	cancel  context.CancelFunc
}

func (s *stoppingSQS) ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
	if len(s.batches) == 0 {
		s.cancel()
		return nil, context.Canceled
	}
	batch := s.batches[0]
	s.batches = s.batches[1:]
	return &sqs.ReceiveMessageOutput{Messages: batch}, nil
}

func TestPollerRunDrainsBatchesUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	client := &stoppingSQS{
		batches: [][]sqstypes.Message{{eventMessage(t, "5")}},
		cancel:  cancel,
	}
	refresher := &fakeRefresher{}

	newPoller(client, refresher).run(ctx)

	if len(client.deleted) != 1 || client.deleted[0] != "r5" {
		t.Fatalf("expected r5 deleted, got %v", client.deleted)
	}
}
