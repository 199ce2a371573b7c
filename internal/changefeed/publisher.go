package changefeed

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/sqlgw/internal/infrastructure/database"
)

// Sink delivers one message to a topic. *mqtt.Client satisfies it.
type Sink interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// TopicFunc maps a table name to its change topic.
type TopicFunc func(table string) string

// Logger is the logging surface the publisher needs.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

// Options configures a Publisher.
type Options struct {
	// Topic maps a table to its topic. Required.
	Topic TopicFunc

	QoS      byte
	Retained bool

	// Logger receives publish failures. Optional.
	Logger Logger
}

// Publisher turns committed row changes into change batch messages, one per
// table touched by the commit. It implements database.ChangeListener.
//
// Publish failures are logged and dropped; they never fail the database
// call that committed the changes.
type Publisher struct {
	sink     Sink
	topic    TopicFunc
	qos      byte
	retained bool
	logger   Logger

	// now and newID are replaced in tests.
	now   func() time.Time
	newID func() string
}

// New creates a Publisher writing to sink.
func New(sink Sink, opts Options) (*Publisher, error) {
	if sink == nil {
		return nil, ErrNilSink
	}
	if opts.Topic == nil {
		return nil, ErrNoTopic
	}
	return &Publisher{
		sink:     sink,
		topic:    opts.Topic,
		qos:      opts.QoS,
		retained: opts.Retained,
		logger:   opts.Logger,
		now:      time.Now,
		newID:    uuid.NewString,
	}, nil
}

// Batch is the JSON message published for one table of one commit.
type Batch struct {
	BatchID   string   `json:"batch_id"`
	Table     string   `json:"table"`
	Changes   []Change `json:"changes"`
	Timestamp string   `json:"timestamp"`
}

// Change is one row in a Batch.
type Change struct {
	Op    string `json:"op"`
	RowID int64  `json:"rowid"`
}

// OnCommit publishes changes grouped by table, in the order each table first
// appears. Every batch of a commit shares one batch ID and timestamp.
func (p *Publisher) OnCommit(changes []database.RowChange) {
	if len(changes) == 0 {
		return
	}

	batchID := p.newID()
	ts := p.now().UTC().Format(time.RFC3339Nano)

	for _, b := range groupByTable(changes) {
		b.BatchID = batchID
		b.Timestamp = ts
		p.publish(b)
	}
}

func (p *Publisher) publish(b Batch) {
	payload, err := json.Marshal(b)
	if err != nil {
		p.warn("change batch encode failed", "table", b.Table, "error", err)
		return
	}

	topic := p.topic(b.Table)
	if err := p.sink.Publish(topic, payload, p.qos, p.retained); err != nil {
		p.warn("change batch publish failed",
			"topic", topic,
			"batch_id", b.BatchID,
			"changes", len(b.Changes),
			"error", err,
		)
		return
	}

	if p.logger != nil {
		p.logger.Debug("change batch published",
			"topic", topic,
			"batch_id", b.BatchID,
			"changes", len(b.Changes),
		)
	}
}

func (p *Publisher) warn(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Warn(msg, args...)
	}
}

// groupByTable splits changes into per-table batches, preserving the commit
// order of rows within a table and the first-appearance order of tables.
// Tables in attached schemas are keyed as "schema.table".
func groupByTable(changes []database.RowChange) []Batch {
	index := make(map[string]int)
	var batches []Batch

	for _, c := range changes {
		table := c.Table
		if c.Database != "" && c.Database != "main" {
			table = c.Database + "." + c.Table
		}

		i, ok := index[table]
		if !ok {
			i = len(batches)
			index[table] = i
			batches = append(batches, Batch{Table: table})
		}
		batches[i].Changes = append(batches[i].Changes, Change{Op: c.Op.String(), RowID: c.RowID})
	}
	return batches
}

var _ database.ChangeListener = (*Publisher)(nil)
