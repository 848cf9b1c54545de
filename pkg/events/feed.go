/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package events publishes session lifecycle CloudEvents to NATS JetStream.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/carverauto/forceplate/pkg/logger"
	"github.com/carverauto/forceplate/pkg/models"
)

const (
	defaultSource         = "forceplate/station"
	defaultPublishTimeout = 2 * time.Second
	connectionName        = "forceplate"

	subjectStarted   = "started"
	subjectFinalized = "finalized"
)

var ErrMissingNATSURL = errors.New("nats url is not configured")

// publisher is the slice of jetstream.JetStream the feed needs.
type publisher interface {
	Publish(ctx context.Context, subject string, data []byte, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

// SessionFeed publishes a CloudEvent whenever a recording starts or is
// finalized. It satisfies recorder.SessionObserver.
type SessionFeed struct {
	js      publisher
	nc      *nats.Conn
	subject string
	source  string
	timeout time.Duration
	logger  logger.Logger
}

// NewSessionFeed wraps an existing JetStream handle.
func NewSessionFeed(js publisher, subject, source string, log logger.Logger) *SessionFeed {
	if subject == "" {
		subject = models.DefaultEventsSubject
	}

	if source == "" {
		source = defaultSource
	}

	return &SessionFeed{
		js:      js,
		subject: subject,
		source:  source,
		timeout: defaultPublishTimeout,
		logger:  log,
	}
}

// Connect dials NATS, makes sure the stream captures the feed subject and
// returns a ready feed.
func Connect(ctx context.Context, cfg *models.EventsConfig, source string, log logger.Logger) (*SessionFeed, error) {
	if cfg == nil || cfg.NATSURL == "" {
		return nil, ErrMissingNATSURL
	}

	nc, err := nats.Connect(cfg.NATSURL,
		nats.Name(connectionName),
		nats.MaxReconnects(-1),
		nats.ErrorHandler(func(_ *nats.Conn, _ *nats.Subscription, err error) {
			log.Warn().Err(err).Msg("NATS error")
		}),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	subject := cfg.Subject
	if subject == "" {
		subject = models.DefaultEventsSubject
	}

	stream := cfg.Stream
	if stream == "" {
		stream = models.DefaultEventsStream
	}

	if err := ensureStream(ctx, js, stream, subject+".>"); err != nil {
		nc.Close()
		return nil, err
	}

	feed := NewSessionFeed(js, subject, source, log)
	feed.nc = nc

	log.Info().Str("url", nc.ConnectedUrl()).Str("stream", stream).Str("subject", subject).Msg("Session event feed connected")

	return feed, nil
}

func ensureStream(ctx context.Context, js jetstream.JetStream, name, subject string) error {
	stream, err := js.Stream(ctx, name)
	if err != nil {
		if !errors.Is(err, jetstream.ErrStreamNotFound) {
			return fmt.Errorf("failed to look up stream %s: %w", name, err)
		}

		_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
			Name:     name,
			Subjects: []string{subject},
		})
		if err != nil {
			return fmt.Errorf("failed to create stream %s: %w", name, err)
		}

		return nil
	}

	info, err := stream.Info(ctx)
	if err != nil {
		return fmt.Errorf("failed to get stream info: %w", err)
	}

	subjects := ensureSubjectList(append([]string(nil), info.Config.Subjects...), subject)
	if len(subjects) == len(info.Config.Subjects) {
		return nil
	}

	cfg := info.Config
	cfg.Subjects = subjects

	if _, err := js.UpdateStream(ctx, cfg); err != nil {
		return fmt.Errorf("failed to add subject %s to stream %s: %w", subject, name, err)
	}

	return nil
}

// ensureSubjectList appends subject unless an existing entry already
// matches it, wildcards included.
func ensureSubjectList(subjects []string, subject string) []string {
	for _, s := range subjects {
		if subjectMatches(s, subject) {
			return subjects
		}
	}

	return append(subjects, subject)
}

func subjectMatches(pattern, subject string) bool {
	if pattern == subject {
		return true
	}

	pt := strings.Split(pattern, ".")
	st := strings.Split(subject, ".")

	for i, tok := range pt {
		switch {
		case tok == ">":
			return len(st) > i
		case i >= len(st):
			return false
		case tok == "*":
			if st[i] == ">" {
				return false
			}
		case tok != st[i]:
			return false
		}
	}

	return len(pt) == len(st)
}

// SessionStarted implements recorder.SessionObserver.
func (f *SessionFeed) SessionStarted(ctx context.Context, s models.Session) {
	f.publish(ctx, models.EventTypeSessionStarted, subjectStarted, s, s.StartedAt)
}

// SessionFinalized implements recorder.SessionObserver.
func (f *SessionFeed) SessionFinalized(ctx context.Context, s models.Session) {
	at := s.StartedAt
	if s.EndedAt != nil {
		at = *s.EndedAt
	}

	f.publish(ctx, models.EventTypeSessionFinalized, subjectFinalized, s, at)
}

func (f *SessionFeed) publish(ctx context.Context, eventType, suffix string, s models.Session, at time.Time) {
	event := models.CloudEvent{
		SpecVersion:     "1.0",
		ID:              uuid.New().String(),
		Source:          f.source,
		Type:            eventType,
		DataContentType: "application/json",
		Subject:         f.subject + "." + suffix,
		Time:            &at,
		Data: models.SessionEventData{
			SessionID:   s.ID,
			UserID:      s.UserID,
			PlatformID:  s.PlatformID,
			StartedAt:   s.StartedAt,
			EndedAt:     s.EndedAt,
			DurationSec: s.DurationSec,
			SampleCount: s.SampleCount,
		},
	}

	payload, err := json.Marshal(event)
	if err != nil {
		f.logger.Error().Err(err).Str("type", eventType).Msg("Failed to marshal session event")
		return
	}

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), f.timeout)
	defer cancel()

	ack, err := f.js.Publish(pubCtx, event.Subject, payload)
	if err != nil {
		f.logger.Warn().Err(err).Int64("session_id", s.ID).Str("type", eventType).Msg("Failed to publish session event")
		return
	}

	f.logger.Debug().
		Str("event_id", event.ID).
		Str("subject", event.Subject).
		Uint64("seq", ack.Sequence).
		Msg("Published session event")
}

// Close drains the NATS connection when the feed owns one.
func (f *SessionFeed) Close() error {
	if f.nc == nil {
		return nil
	}

	return f.nc.Drain()
}
