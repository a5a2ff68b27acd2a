// Command worker consumes application status-change events from SQS and
// refreshes the owner's cached stats overview.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"golang.org/x/sync/errgroup"

	"jobtracker-backend/internal/bootstrap"
	"jobtracker-backend/internal/shared/config"
	"jobtracker-backend/internal/shared/metrics"
	"jobtracker-backend/internal/shared/telemetry"
	"jobtracker-backend/internal/workerproc"
)

const receiveCountAttr = "ApproximateReceiveCount"

type sqsAPI interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// poller long-polls one queue and hands each message to the refresher.
type poller struct {
	client      sqsAPI
	queueURL    string
	refresher   workerproc.Refresher
	visibility  int32
	concurrency int
}

func main() {
	cfg := config.Load()
	if strings.TrimSpace(cfg.EventsQueueURL) == "" {
		telemetry.Error("worker.config_missing", map[string]any{"key": "EVENTS_SQS_QUEUE_URL"})
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	region := cfg.AWSRegion
	if region == "" {
		region = "us-east-1"
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		telemetry.Error("worker.aws_config_failed", map[string]any{"error": err.Error()})
		os.Exit(1)
	}

	app, err := bootstrap.Build(cfg)
	if err != nil {
		telemetry.Error("worker.bootstrap_failed", map[string]any{"error": err.Error()})
		os.Exit(1)
	}
	defer app.Close(context.Background())

	p := &poller{
		client:      sqs.NewFromConfig(awsCfg),
		queueURL:    strings.TrimSpace(cfg.EventsQueueURL),
		refresher:   app.StatsService,
		visibility:  int32(envInt("WORKER_VISIBILITY_TIMEOUT_SECONDS", 60)),
		concurrency: envInt("WORKER_CONCURRENCY", 4),
	}
	telemetry.Info("worker.started", map[string]any{
		"queue":       p.queueURL,
		"concurrency": p.concurrency,
		"visibility":  p.visibility,
	})

	grace := time.Duration(envInt("WORKER_SHUTDOWN_TIMEOUT_SECONDS", 30)) * time.Second
	done := make(chan struct{})
	go func() {
		p.run(ctx)
		close(done)
	}()
	<-ctx.Done()
	telemetry.Info("worker.draining", map[string]any{"timeout": grace.String()})
	select {
	case <-done:
	case <-time.After(grace):
		telemetry.Warn("worker.shutdown_timeout", nil)
	}
}

// run polls until ctx is cancelled, then waits for in-flight messages.
func (p *poller) run(ctx context.Context) {
	var g errgroup.Group
	g.SetLimit(max(1, p.concurrency))
	defer g.Wait()

	for ctx.Err() == nil {
		resp, err := p.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
			QueueUrl:            aws.String(p.queueURL),
			MaxNumberOfMessages: 10,
			WaitTimeSeconds:     20,
			VisibilityTimeout:   p.visibility,
			AttributeNames:      []sqstypes.QueueAttributeName{receiveCountAttr},
		})
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return
			}
			telemetry.Warn("worker.receive_failed", map[string]any{"error": err.Error()})
			continue
		}
		for _, msg := range resp.Messages {
			metrics.IncEventsReceived()
			g.Go(func() error {
				p.handle(ctx, msg)
				return nil
			})
		}
	}
}

// handle deletes processed and unrecoverable messages. Retryable failures
// stay on the queue until the visibility timeout lapses.
func (p *poller) handle(ctx context.Context, msg sqstypes.Message) {
	body := aws.ToString(msg.Body)
	event, err := workerproc.HandleMessage(ctx, p.refresher, body)

	fields := map[string]any{
		"sqs_message_id": aws.ToString(msg.MessageId),
		"receive_count":  receiveCount(msg),
	}
	if event.ApplicationID != "" {
		fields["application_id"] = event.ApplicationID
		fields["owner_id"] = event.OwnerID
	}

	switch {
	case err == nil:
		if p.ack(ctx, msg, fields) {
			metrics.IncEventsProcessed()
			telemetry.Info("worker.event.processed", fields)
		}
	case workerproc.Unrecoverable(err):
		meta := workerproc.ComputeMeta(body)
		fields["body_len"] = meta.BodyLen
		fields["body_sha256"] = meta.BodySHA
		fields["error"] = err.Error()
		telemetry.Error("worker.event.dropped", fields)
		if p.ack(ctx, msg, fields) {
			metrics.IncEventsDropped()
		}
	default:
		fields["error"] = err.Error()
		telemetry.Error("worker.event.failed", fields)
		metrics.IncEventsFailed()
	}
}

func (p *poller) ack(ctx context.Context, msg sqstypes.Message, fields map[string]any) bool {
	receipt := aws.ToString(msg.ReceiptHandle)
	var err error
	if receipt == "" {
		err = errors.New("missing receipt handle")
	} else {
		_, err = p.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
			QueueUrl:      aws.String(p.queueURL),
			ReceiptHandle: aws.String(receipt),
		})
	}
	if err != nil {
		telemetry.Error("worker.event.delete_failed", map[string]any{
			"sqs_message_id": fields["sqs_message_id"],
			"error":          err.Error(),
		})
		return false
	}
	return true
}

func receiveCount(msg sqstypes.Message) int {
	n, err := strconv.Atoi(msg.Attributes[receiveCountAttr])
	if err != nil {
		return 0
	}
	return n
}

func envInt(key string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(os.Getenv(key)))
	if err != nil {
		return def
	}
	return n
}
