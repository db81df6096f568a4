// Package activity records an audit trail of console and database actions.
// Entries are written asynchronously so request handlers never wait for
// the log insert; a full buffer drops entries rather than blocking.
package activity

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/segmentio/kafka-go"

	"github.com/docbase-tech/docbase/core/csql"
	"github.com/docbase-tech/docbase/core/logger"
)

// Entry is one audit record.
type Entry struct {
	UserID     *int64                 `json:"user_id,omitempty"`
	Action     string                 `json:"action"`
	EntityType string                 `json:"entity_type"`
	EntityID   string                 `json:"entity_id,omitempty"`
	Details    map[string]interface{} `json:"details,omitempty"`
	IPAddress  string                 `json:"ip_address,omitempty"`
}

// Logger persists entries into the activity_logs table and optionally
// mirrors them to a kafka topic for downstream consumers.
type Logger struct {
	db      *csql.DB
	writer  *kafka.Writer
	entries chan Entry
	wg      sync.WaitGroup
}

// Topic is the kafka topic activity entries are mirrored to.
const Topic = "docbase.activity"

const bufferSize = 256

// New creates a logger writing into db. If brokers is non-empty, entries
// are also published to the activity topic.
func New(db *csql.DB, brokers []string) *Logger {
	if db == nil {
		panic("please specify a database")
	}
	l := &Logger{
		db:      db,
		entries: make(chan Entry, bufferSize),
	}
	if len(brokers) > 0 {
		l.writer = &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        Topic,
			Balancer:     &kafka.LeastBytes{},
			RequiredAcks: kafka.RequireOne,
		}
	}
	l.wg.Add(1)
	go l.drain()
	return l
}

// Record queues one entry. It never blocks; when the buffer is full the
// entry is dropped with a warning.
func (l *Logger) Record(ctx context.Context, entry Entry) {
	select {
	case l.entries <- entry:
	default:
		logger.FromContext(ctx).Warnf("Warning 4810: activity buffer full, dropping %s %s", entry.Action, entry.EntityType)
	}
}

// Close flushes queued entries and stops the worker.
func (l *Logger) Close() {
	close(l.entries)
	l.wg.Wait()
	if l.writer != nil {
		l.writer.Close()
	}
}

func (l *Logger) drain() {
	defer l.wg.Done()
	for entry := range l.entries {
		l.persist(entry)
	}
}

func (l *Logger) persist(entry Entry) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var details interface{}
	if entry.Details != nil {
		data, err := json.MarshalWithOption(entry.Details, json.DisableHTMLEscape())
		if err != nil {
			logger.Default().WithError(err).Errorf("Error 4811: cannot marshal activity details")
		} else {
			details = data
		}
	}

	query := fmt.Sprintf(`INSERT INTO %s.activity_logs (user_id, action, entity_type, entity_id, details, ip_address) VALUES ($1, $2, $3, $4, $5, $6);`, l.db.Schema)
	_, err := l.db.ExecContext(ctx, query,
		entry.UserID, entry.Action, entry.EntityType, entry.EntityID, details, entry.IPAddress)
	if err != nil {
		logger.Default().WithError(err).Errorf("Error 4812: cannot insert activity entry")
	}

	if l.writer == nil {
		return
	}
	payload, err := json.MarshalWithOption(entry, json.DisableHTMLEscape())
	if err != nil {
		return
	}
	err = l.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(entry.EntityType),
		Value: payload,
	})
	if err != nil {
		logger.Default().WithError(err).Errorf("Error 4813: cannot publish activity entry")
	}
}
