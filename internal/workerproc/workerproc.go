package workerproc

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"

	"jobtracker-backend/internal/queue"
	"jobtracker-backend/internal/stats"
)

// Refresher recomputes and caches an owner's stats overview.
type Refresher interface {
	Refresh(ctx context.Context, ownerID string) (stats.Overview, error)
}

// MessageMeta captures details useful for logging and diagnostics.
type MessageMeta struct {
	BodyLen int
	BodySHA string
}

// ComputeMeta returns the body length and SHA-256 hash.
func ComputeMeta(body string) MessageMeta {
	if body == "" {
		return MessageMeta{}
	}
	sum := sha256.Sum256([]byte(body))
	return MessageMeta{BodyLen: len(body), BodySHA: hex.EncodeToString(sum[:])}
}

// ErrEmptyBody indicates an empty queue payload.
type ErrEmptyBody struct {
	Meta MessageMeta
}

func (e ErrEmptyBody) Error() string { return "empty message body" }

// ErrDecode indicates a JSON decode failure.
type ErrDecode struct {
	Meta MessageMeta
	Err  error
}

func (e ErrDecode) Error() string {
	if e.Err == nil {
		return "decode message"
	}
	return "decode message: " + e.Err.Error()
}

// ErrInvalid indicates a decoded message that fails validation.
type ErrInvalid struct {
	Meta MessageMeta
	Err  error
}

func (e ErrInvalid) Error() string {
	if e.Err == nil {
		return "invalid message"
	}
	return "invalid message: " + e.Err.Error()
}

// ErrProcess indicates processing failed after successful parsing.
type ErrProcess struct {
	ApplicationID string
	OwnerID       string
	Err           error
}

func (e ErrProcess) Error() string {
	if e.Err == nil {
		return "process event"
	}
	return "process event: " + e.Err.Error()
}

func (e ErrProcess) Unwrap() error { return e.Err }

// Unrecoverable reports whether redelivering the message can never succeed.
func Unrecoverable(err error) bool {
	var empty ErrEmptyBody
	var decode ErrDecode
	var invalid ErrInvalid
	return errors.As(err, &empty) || errors.As(err, &decode) || errors.As(err, &invalid)
}

// ParseMessage validates and decodes the queue payload.
func ParseMessage(body string) (queue.Message, MessageMeta, error) {
	meta := ComputeMeta(body)
	if strings.TrimSpace(body) == "" {
		return queue.Message{}, meta, ErrEmptyBody{Meta: meta}
	}

	msg, err := queue.DecodeMessage([]byte(body))
	if err != nil {
		return queue.Message{}, meta, ErrDecode{Meta: meta, Err: err}
	}
	if err := msg.Validate(); err != nil {
		return msg, meta, ErrInvalid{Meta: meta, Err: err}
	}
	return msg, meta, nil
}

// HandleMessage parses a status-change event and refreshes the owner's
// cached overview.
func HandleMessage(ctx context.Context, refresher Refresher, body string) (queue.Message, error) {
	if refresher == nil {
		return queue.Message{}, errors.New("stats service not configured")
	}
	msg, _, err := ParseMessage(body)
	if err != nil {
		return msg, err
	}
	if _, err := refresher.Refresh(ctx, msg.OwnerID); err != nil {
		return msg, ErrProcess{ApplicationID: msg.ApplicationID, OwnerID: msg.OwnerID, Err: err}
	}
	return msg, nil
}
