package intake

import (
	"context"
	"errors"
	"io"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Message is one record read from, or published to, a topic.
type Message struct {
	Topic     string
	Partition int
	Offset    int64
	Key       []byte
	Value     []byte
	Headers   []Header
	Time      time.Time
}

// Header is a message header.
type Header struct {
	Key   string
	Value []byte
}

// headerMap returns the headers as a map; later duplicates win.
func (m Message) headerMap() map[string]string {
	if len(m.Headers) == 0 {
		return nil
	}
	out := make(map[string]string, len(m.Headers))
	for _, h := range m.Headers {
		out[h.Key] = string(h.Value)
	}
	return out
}

// Source yields messages with manual acknowledgement. Fetch returns io.EOF
// once the source is closed.
type Source interface {
	Fetch(ctx context.Context) (Message, error)
	Commit(ctx context.Context, msg Message) error
	Close() error
}

// DeadLetterSink publishes messages that could not be processed.
type DeadLetterSink interface {
	Publish(ctx context.Context, msg Message) error
	Close() error
}

// Processor decides the outcome of one message.
type Processor interface {
	Process(ctx context.Context, msg Message) Outcome
}

// Consumer defaults.
const (
	DefaultWorkerBuffer  = 64
	DefaultCommitTimeout = 5 * time.Second
	fetchErrorBackoff    = time.Second
)

// Consumer reads messages from its sources and hands them to Processor.
//
// Each (topic, partition) gets its own worker goroutine fed by an unbounded
// queue, so messages of one partition are processed and committed strictly
// in order while partitions progress independently: a partition stuck in
// backoff never stops the fetch loop from serving the others. A message is
// committed after Process returns any outcome other than OutcomeAborted.
type Consumer struct {
	Sources   []Source
	Processor Processor
	// Sink is closed after all workers stop. Optional.
	Sink DeadLetterSink

	// Buffer is the per-partition backlog at which the partition is
	// reported as lagging. Queues grow past it rather than block.
	Buffer int
	// CommitTimeout bounds a commit, which is allowed to finish after
	// shutdown starts.
	CommitTimeout time.Duration
}

type partitionKey struct {
	topic     string
	partition int
}

// Run consumes until ctx is cancelled or every source reports io.EOF. It
// waits for in-flight messages, then closes the sources and the sink.
func (c *Consumer) Run(ctx context.Context) error {
	var workers sync.WaitGroup
	var loops sync.WaitGroup
	for _, src := range c.Sources {
		loops.Add(1)
		go func(src Source) {
			defer loops.Done()
			c.fetchLoop(ctx, src, &workers)
		}(src)
	}
	loops.Wait()
	workers.Wait()

	var errs []error
	for _, src := range c.Sources {
		if err := src.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if c.Sink != nil {
		if err := c.Sink.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	log.Info().Int("sources", len(c.Sources)).Msg("consumer stopped")
	return errors.Join(errs...)
}

// fetchLoop reads src and dispatches to partition workers. Queues are owned
// by this goroutine and closed when it returns; workers then finish what is
// already queued.
func (c *Consumer) fetchLoop(ctx context.Context, src Source, workers *sync.WaitGroup) {
	queues := make(map[partitionKey]*partitionQueue)
	defer func() {
		for _, q := range queues {
			q.close()
		}
	}()

	for {
		msg, err := src.Fetch(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				return
			}
			log.Error().Err(err).Msg("fetch failed")
			if sleepCtx(ctx, fetchErrorBackoff) != nil {
				return
			}
			continue
		}

		key := partitionKey{topic: msg.Topic, partition: msg.Partition}
		q, ok := queues[key]
		if !ok {
			q = newPartitionQueue(c.buffer())
			queues[key] = q
			workers.Add(1)
			go func() {
				defer workers.Done()
				c.work(ctx, src, key, q)
			}()
		}

		n := q.push(msg)
		if n == 0 {
			continue
		}
		partitionBacklog.WithLabelValues(key.topic, strconv.Itoa(key.partition)).Set(float64(n))
		if n == c.buffer() {
			log.Warn().Str("topic", key.topic).Int("partition", key.partition).Int("backlog", n).
				Msg("partition is lagging")
		}
	}
}

func (c *Consumer) work(ctx context.Context, src Source, key partitionKey, q *partitionQueue) {
	backlog := partitionBacklog.WithLabelValues(key.topic, strconv.Itoa(key.partition))
	defer partitionBacklog.DeleteLabelValues(key.topic, strconv.Itoa(key.partition))
	for {
		msg, ok := q.pop()
		if !ok {
			return
		}
		backlog.Set(float64(q.backlog()))
		outcome := c.Processor.Process(ctx, msg)
		if !outcome.Acknowledge() {
			// Later offsets must not be committed past this one.
			q.stop()
			return
		}
		c.commit(ctx, src, msg)
	}
}

func (c *Consumer) commit(ctx context.Context, src Source, msg Message) {
	timeout := c.CommitTimeout
	if timeout <= 0 {
		timeout = DefaultCommitTimeout
	}
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()
	if err := src.Commit(cctx, msg); err != nil {
		log.Warn().Err(err).Str("topic", msg.Topic).Int("partition", msg.Partition).
			Int64("offset", msg.Offset).Msg("commit failed; message may be redelivered")
	}
}

func (c *Consumer) buffer() int {
	if c.Buffer <= 0 {
		return DefaultWorkerBuffer
	}
	return c.Buffer
}

// partitionQueue is the FIFO between the fetch loop and one partition
// worker. push never blocks; pop waits for the next message.
type partitionQueue struct {
	mu      sync.Mutex
	items   []Message
	closed  bool
	stopped bool
	ready   chan struct{}
}

func newPartitionQueue(capacity int) *partitionQueue {
	return &partitionQueue{
		items: make([]Message, 0, capacity),
		ready: make(chan struct{}, 1),
	}
}

// push appends msg and returns the backlog. Messages pushed after close or
// stop are discarded.
func (q *partitionQueue) push(msg Message) int {
	q.mu.Lock()
	if q.closed || q.stopped {
		q.mu.Unlock()
		return 0
	}
	q.items = append(q.items, msg)
	n := len(q.items)
	q.mu.Unlock()
	q.signal()
	return n
}

// pop returns the oldest message, waiting for one if the queue is empty. It
// reports false once the queue is closed and drained, or stopped.
func (q *partitionQueue) pop() (Message, bool) {
	for {
		q.mu.Lock()
		if q.stopped {
			q.mu.Unlock()
			return Message{}, false
		}
		if len(q.items) > 0 {
			msg := q.items[0]
			q.items[0] = Message{}
			q.items = q.items[1:]
			q.mu.Unlock()
			return msg, true
		}
		if q.closed {
			q.mu.Unlock()
			return Message{}, false
		}
		q.mu.Unlock()
		<-q.ready
	}
}

func (q *partitionQueue) backlog() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *partitionQueue) close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.signal()
}

// stop drops the backlog and everything pushed afterwards.
func (q *partitionQueue) stop() {
	q.mu.Lock()
	q.stopped = true
	q.items = nil
	q.mu.Unlock()
	q.signal()
}

func (q *partitionQueue) signal() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}
