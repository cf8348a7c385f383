// Package analytics records conversation telemetry without getting in
// the way of the conversation. Every Track* method enqueues a record
// and returns immediately; a single background worker writes to the
// store. When the queue is full the record is dropped and counted,
// never blocked on.
package analytics

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bookly/bookly-support/internal/events"
	"github.com/bookly/bookly-support/internal/store"
)

// defaultQueueSize bounds the pending-record queue. Telemetry past
// this point is dropped.
const defaultQueueSize = 256

// writeTimeout bounds each store write so a wedged database cannot
// stall the worker forever.
const writeTimeout = 5 * time.Second

// sentiment keyword lists. Negative wins on a tie; a frustrated
// message that also says "thanks" is still a frustrated message.
var (
	positiveWords = []string{
		"thank", "thanks", "great", "helpful", "excellent",
		"perfect", "good", "appreciate", "awesome",
	}
	negativeWords = []string{
		"frustrated", "disappointed", "problem", "issue", "wrong",
		"bad", "terrible", "horrible", "angry", "upset",
	}
)

// DetectSentiment classifies a message as "positive", "negative", or
// "" (neutral) by keyword count.
func DetectSentiment(text string) string {
	lower := strings.ToLower(text)
	var pos, neg int
	for _, w := range positiveWords {
		if strings.Contains(lower, w) {
			pos++
		}
	}
	for _, w := range negativeWords {
		if strings.Contains(lower, w) {
			neg++
		}
	}
	switch {
	case neg >= pos && neg > 0:
		return "negative"
	case pos > 0:
		return "positive"
	default:
		return ""
	}
}

// toolTopics maps tool names to the conversation topic they imply.
var toolTopics = map[string]string{
	"get_order_status":      "order_inquiry",
	"search_orders":         "order_inquiry",
	"initiate_return":       "return_request",
	"get_policy_info":       "policy_question",
	"get_recommendations":   "recommendations",
	"search_books":          "book_search",
	"create_support_ticket": "escalation",
	"get_customer_info":     "account_inquiry",
}

// TopicForTool returns the topic a tool use implies, or "".
func TopicForTool(toolName string) string {
	return toolTopics[toolName]
}

// record is one pending write. Exactly one of the op constants is set.
type record struct {
	op        string
	sessionID string
	userEmail string
	at        time.Time

	eventType string
	metadata  map[string]any
	sentiment string
	toolName  string
	escalated bool
}

const (
	opEvent   = "event"
	opStart   = "start"
	opMessage = "message"
	opToolUse = "tool_use"
	opEnd     = "end"
	opSpan    = "span"
)

// Collector is the fire-and-forget telemetry sink.
type Collector struct {
	backend *store.Store
	bus     *events.Bus
	logger  *slog.Logger

	queue   chan record
	dropped atomic.Int64

	closeOnce sync.Once
	done      chan struct{}
}

// New creates a collector and starts its worker. Close must be called
// to flush pending records on shutdown.
func New(backend *store.Store, bus *events.Bus, logger *slog.Logger) *Collector {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Collector{
		backend: backend,
		bus:     bus,
		logger:  logger.With("component", "analytics"),
		queue:   make(chan record, defaultQueueSize),
		done:    make(chan struct{}),
	}
	go c.worker()
	return c
}

// Close stops accepting records and drains the queue. Safe to call
// more than once.
func (c *Collector) Close() {
	c.closeOnce.Do(func() {
		close(c.queue)
		<-c.done
	})
}

// Dropped returns the number of records discarded because the queue
// was full.
func (c *Collector) Dropped() int64 {
	return c.dropped.Load()
}

// enqueue attempts a non-blocking put. A full queue drops the record.
func (c *Collector) enqueue(r record) {
	defer func() {
		// Close races with in-flight Track* calls; a send on the
		// closed queue is treated like a drop.
		if recover() != nil {
			c.dropped.Add(1)
		}
	}()
	select {
	case c.queue <- r:
	default:
		total := c.dropped.Add(1)
		c.logger.Warn("analytics queue full, record dropped",
			"op", r.op, "dropped_total", total)
		c.bus.Publish(events.Event{
			Source: events.SourceAnalytics,
			Kind:   events.KindDropped,
			Data:   map[string]any{"dropped_total": total},
		})
	}
}

// TrackEvent records a raw analytics event.
func (c *Collector) TrackEvent(eventType, sessionID, userEmail string, metadata map[string]any) {
	c.enqueue(record{
		op:        opEvent,
		eventType: eventType,
		sessionID: sessionID,
		userEmail: userEmail,
		at:        time.Now(),
		metadata:  metadata,
	})
}

// TrackConversationStart opens the rollup row for a session.
func (c *Collector) TrackConversationStart(sessionID, userEmail string) {
	c.enqueue(record{
		op:        opStart,
		sessionID: sessionID,
		userEmail: userEmail,
		at:        time.Now(),
	})
}

// TrackMessage bumps the message counter and records sentiment
// detected from the message text.
func (c *Collector) TrackMessage(sessionID, text string) {
	c.enqueue(record{
		op:        opMessage,
		sessionID: sessionID,
		at:        time.Now(),
		sentiment: DetectSentiment(text),
	})
}

// TrackToolUse records a tool invocation. A successful support ticket
// marks the conversation escalated.
func (c *Collector) TrackToolUse(sessionID, toolName string, succeeded bool) {
	c.enqueue(record{
		op:        opToolUse,
		sessionID: sessionID,
		at:        time.Now(),
		toolName:  toolName,
		escalated: toolName == "create_support_ticket" && succeeded,
	})
}

// TrackSpan records a timed-operation span: a name, its attributes,
// and a terminal status ("ok" or "error"). Spans land in the event
// log under a "span." prefix. A session_id attribute, when present,
// also fills the event's session column so spans group with their
// conversation.
func (c *Collector) TrackSpan(name string, attributes map[string]any, status string) {
	meta := make(map[string]any, len(attributes)+1)
	for k, v := range attributes {
		meta[k] = v
	}
	meta["status"] = status

	sessionID, _ := attributes["session_id"].(string)
	c.enqueue(record{
		op:        opSpan,
		eventType: "span." + name,
		sessionID: sessionID,
		at:        time.Now(),
		metadata:  meta,
	})
}

// TrackConversationEnd stamps the rollup row's end time.
func (c *Collector) TrackConversationEnd(sessionID string) {
	c.enqueue(record{
		op:        opEnd,
		sessionID: sessionID,
		at:        time.Now(),
	})
}

func (c *Collector) worker() {
	defer close(c.done)
	for r := range c.queue {
		c.write(r)
	}
}

func (c *Collector) write(r record) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	var err error
	switch r.op {
	case opEvent, opSpan:
		err = c.backend.InsertEvent(ctx, r.eventType, r.sessionID, r.userEmail, r.at, r.metadata)
	case opStart:
		err = c.backend.StartConversation(ctx, r.sessionID, r.userEmail, r.at)
	case opMessage:
		err = c.backend.RecordMessage(ctx, r.sessionID, r.sentiment)
	case opToolUse:
		err = c.backend.RecordToolUse(ctx, r.sessionID, r.toolName, r.escalated)
	case opEnd:
		err = c.backend.EndConversation(ctx, r.sessionID, r.at)
	}
	if err != nil {
		c.logger.Warn("analytics write failed", "op", r.op,
			"session_id", r.sessionID, "error", err)
	}
}
