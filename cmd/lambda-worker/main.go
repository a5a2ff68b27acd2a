package main

// Build the Lambda handler binary:
//   GOOS=linux GOARCH=amd64 CGO_ENABLED=0 go build -o bootstrap ./cmd/lambda-worker

import (
	"context"
	"sync"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"jobtracker-backend/internal/bootstrap"
	"jobtracker-backend/internal/shared/config"
	"jobtracker-backend/internal/shared/metrics"
	"jobtracker-backend/internal/shared/telemetry"
	"jobtracker-backend/internal/workerproc"
)

var (
	initOnce sync.Once
	initErr  error
	app      *bootstrap.App
)

func initApp() {
	cfg := config.Load()
	built, err := bootstrap.Build(cfg)
	if err != nil {
		initErr = err
		return
	}
	app = built
}

func handler(ctx context.Context, event events.SQSEvent) (events.SQSEventResponse, error) {
	initOnce.Do(initApp)
	if initErr != nil {
		telemetry.Error("lambda_worker.bootstrap_failed", map[string]any{"error": initErr.Error()})
		failures := make([]events.SQSBatchItemFailure, 0, len(event.Records))
		for _, record := range event.Records {
			failures = append(failures, events.SQSBatchItemFailure{ItemIdentifier: record.MessageId})
		}
		return events.SQSEventResponse{BatchItemFailures: failures}, initErr
	}
	return processBatch(ctx, app.StatsService, event), nil
}

// processBatch reports retryable failures back to SQS. Unrecoverable messages
// are logged and acknowledged so they do not loop.
func processBatch(ctx context.Context, refresher workerproc.Refresher, event events.SQSEvent) events.SQSEventResponse {
	failures := make([]events.SQSBatchItemFailure, 0)
	for _, record := range event.Records {
		metrics.IncEventsReceived()
		msg, err := workerproc.HandleMessage(ctx, refresher, record.Body)
		fields := map[string]any{
			"sqs_message_id": record.MessageId,
			"application_id": msg.ApplicationID,
		}
		switch {
		case err == nil:
			metrics.IncEventsProcessed()
			telemetry.Info("worker.event.processed", fields)
		case workerproc.Unrecoverable(err):
			metrics.IncEventsDropped()
			fields["error"] = err.Error()
			fields["body_len"] = len(record.Body)
			telemetry.Error("worker.event.dropped", fields)
		default:
			metrics.IncEventsFailed()
			fields["error"] = err.Error()
			telemetry.Error("worker.event.failed", fields)
			failures = append(failures, events.SQSBatchItemFailure{ItemIdentifier: record.MessageId})
		}
	}
	return events.SQSEventResponse{BatchItemFailures: failures}
}

func main() {
	lambda.Start(handler)
}
