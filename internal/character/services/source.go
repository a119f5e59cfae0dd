package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go-falcon-locations/internal/character/models"

	"github.com/cenkalti/backoff/v5"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var errStreamInvalidated = errors.New("change stream invalidated")

// Loader returns the full set of characters
type Loader interface {
	LoadAll(ctx context.Context) ([]models.Character, error)
}

// ChangeStream is an open change stream cursor
type ChangeStream interface {
	Next(ctx context.Context) bool
	Event() bson.Raw
	ResumeToken() bson.Raw
	Err() error
	Close(ctx context.Context) error
}

// Watcher opens change streams, resuming after the given token when it is not nil
type Watcher interface {
	Watch(ctx context.Context, resumeAfter bson.Raw) (ChangeStream, error)
}

type collectionWatcher struct {
	collection *mongo.Collection
}

func (w collectionWatcher) Watch(ctx context.Context, resumeAfter bson.Raw) (ChangeStream, error) {
	opts := options.ChangeStream().SetFullDocument(options.UpdateLookup)
	if resumeAfter != nil {
		opts.SetResumeAfter(resumeAfter)
	}
	cs, err := w.collection.Watch(ctx, mongo.Pipeline{}, opts)
	if err != nil {
		return nil, err
	}
	return mongoChangeStream{cs}, nil
}

type mongoChangeStream struct {
	*mongo.ChangeStream
}

func (cs mongoChangeStream) Event() bson.Raw {
	return cs.Current
}

// MongoSource streams the characters collection: a snapshot on every (re)connect,
// then change stream events resumed from the last seen token.
type MongoSource struct {
	watcher        Watcher
	loader         Loader
	resumeToken    bson.Raw
	initialBackoff time.Duration
	maxBackoff     time.Duration
}

// NewMongoSource creates a source backed by the repository's collection
func NewMongoSource(repo *Repository) *MongoSource {
	return newSource(collectionWatcher{repo.Collection()}, repo)
}

func newSource(watcher Watcher, loader Loader) *MongoSource {
	return &MongoSource{
		watcher:    watcher,
		loader:     loader,
		maxBackoff: time.Minute,
	}
}

// Subscribe starts streaming in the background
func (s *MongoSource) Subscribe(ctx context.Context) (<-chan Event, error) {
	out := make(chan Event, 256)
	go s.run(ctx, out)
	return out, nil
}

func (s *MongoSource) run(ctx context.Context, out chan<- Event) {
	defer close(out)

	for ctx.Err() == nil {
		err := s.stream(ctx, out)
		if ctx.Err() != nil {
			return
		}
		slog.WarnContext(ctx, "Character change stream ended, reconnecting", "error", err)
	}
}

// stream opens the change stream (with backoff), emits a snapshot when not resuming, and
// forwards events until the stream fails.
func (s *MongoSource) stream(ctx context.Context, out chan<- Event) error {
	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.MaxInterval = s.maxBackoff
	if s.initialBackoff > 0 {
		expBackoff.InitialInterval = s.initialBackoff
	}

	cs, err := backoff.Retry(ctx, func() (ChangeStream, error) {
		cs, err := s.watcher.Watch(ctx, s.resumeToken)
		if err != nil && s.resumeToken != nil {
			// The token may have rolled off the oplog, fall back to a fresh snapshot
			s.resumeToken = nil
		}
		return cs, err
	},
		backoff.WithBackOff(expBackoff),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, next time.Duration) {
			slog.WarnContext(ctx, "Failed to open character change stream", "error", err, "retry_in", next)
		}),
	)
	if err != nil {
		return err
	}
	defer cs.Close(context.Background())

	if s.resumeToken == nil {
		// Stream is already open, so nothing is lost between the snapshot and the first event
		characters, err := s.loader.LoadAll(ctx)
		if err != nil {
			return fmt.Errorf("failed to load characters: %w", err)
		}
		if !send(ctx, out, Event{Type: EventSnapshot, Snapshot: characters}) {
			return ctx.Err()
		}
	}

	for cs.Next(ctx) {
		ev, ok, err := decodeChange(cs.Event())
		if err != nil {
			if errors.Is(err, errStreamInvalidated) {
				s.resumeToken = nil
				return err
			}
			slog.WarnContext(ctx, "Skipping undecodable change event", "error", err)
			s.resumeToken = cs.ResumeToken()
			continue
		}
		if ok && !send(ctx, out, ev) {
			return ctx.Err()
		}
		s.resumeToken = cs.ResumeToken()
	}
	if err := cs.Err(); err != nil {
		if historyLost(err) {
			s.resumeToken = nil
		}
		return err
	}
	return ctx.Err()
}

// ChangeStreamHistoryLost: the resume token is no longer in the oplog
const codeHistoryLost = 286

func historyLost(err error) bool {
	var se mongo.ServerError
	return errors.As(err, &se) && se.HasErrorCode(codeHistoryLost)
}

func send(ctx context.Context, out chan<- Event, ev Event) bool {
	select {
	case out <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

type changeEvent struct {
	OperationType string `bson:"operationType"`
	DocumentKey   struct {
		ID int64 `bson:"_id"`
	} `bson:"documentKey"`
	FullDocument *models.Character `bson:"fullDocument"`
}

// decodeChange maps a raw change event to a directory event. ok is false for
// operations the directory does not care about.
func decodeChange(raw bson.Raw) (ev Event, ok bool, err error) {
	var change changeEvent
	if err := bson.Unmarshal(raw, &change); err != nil {
		return Event{}, false, fmt.Errorf("failed to decode change event: %w", err)
	}

	switch change.OperationType {
	case "insert":
		if change.FullDocument == nil {
			return Event{}, false, nil
		}
		return Event{Type: EventAdded, ID: change.DocumentKey.ID, Character: change.FullDocument}, true, nil
	case "update", "replace":
		if change.FullDocument == nil {
			// Deleted before the lookup ran
			return Event{Type: EventRemoved, ID: change.DocumentKey.ID}, true, nil
		}
		return Event{Type: EventChanged, ID: change.DocumentKey.ID, Character: change.FullDocument}, true, nil
	case "delete":
		return Event{Type: EventRemoved, ID: change.DocumentKey.ID}, true, nil
	case "invalidate", "drop", "rename", "dropDatabase":
		return Event{}, false, errStreamInvalidated
	default:
		return Event{}, false, nil
	}
}
