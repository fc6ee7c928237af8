// Package events forwards committed ledger changes to a message broker
// without ever blocking the writer that produced them.
package events

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"billsplit/internal/amqp"
	"billsplit/internal/ledger"
	"billsplit/internal/log"
)

// Sink delivers one message to the broker.
type Sink interface {
	PublishLedgerChange(ctx context.Context, msg *amqp.LedgerMessage) error
}

// Subscriber is the ledger's change feed.
type Subscriber interface {
	Subscribe(fn ledger.Observer) (cancel func())
}

// Publisher buffers ledger changes and publishes them from one goroutine.
// When the buffer is full new changes are dropped and counted.
type Publisher struct {
	msgCh  chan *amqp.LedgerMessage
	sink   Sink
	logger *log.Logger

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc

	published atomic.Int64
	failed    atomic.Int64
	dropped   atomic.Int64
}

func NewPublisher(sink Sink, bufferSize int, logger *log.Logger) *Publisher {
	if bufferSize < 1 {
		bufferSize = 1
	}
	if logger == nil {
		logger = log.Discard()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Publisher{
		msgCh:  make(chan *amqp.LedgerMessage, bufferSize),
		sink:   sink,
		logger: logger.WithComponent(log.ComponentPublisher),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Attach subscribes the publisher to a ledger. The initial snapshot is
// not republished.
func (p *Publisher) Attach(s Subscriber) (cancel func()) {
	return s.Subscribe(p.Observe)
}

// Observe converts a ledger change to a message and enqueues it.
func (p *Publisher) Observe(c ledger.Change) {
	var t amqp.MessageType
	switch c.Kind {
	case ledger.ChangeAdded:
		t = amqp.MessageExpenseAdded
	case ledger.ChangeRemoved:
		t = amqp.MessageExpenseRemoved
	default:
		return
	}
	p.Enqueue(amqp.NewLedgerMessage(t, c.Expense))
}

// Enqueue never blocks.
func (p *Publisher) Enqueue(msg *amqp.LedgerMessage) bool {
	if p.ctx.Err() != nil {
		p.dropped.Add(1)
		return false
	}
	select {
	case p.msgCh <- msg:
		return true
	default:
		p.dropped.Add(1)
		p.logger.Warn("Publish buffer full, dropping change",
			log.FieldMessageID, msg.ID,
			log.FieldMessageType, msg.Type,
			log.FieldExpenseID, msg.Expense.ID)
		return false
	}
}

func (p *Publisher) Start() {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		for {
			select {
			case <-p.ctx.Done():
				p.drain()
				return
			case msg := <-p.msgCh:
				p.publish(p.ctx, msg)
			}
		}
	}()
}

func (p *Publisher) drain() {
	remaining := len(p.msgCh)
	if remaining == 0 {
		return
	}
	p.logger.Info("Draining ledger changes before shutdown", "remaining", remaining)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for {
		select {
		case msg := <-p.msgCh:
			p.publish(ctx, msg)
		default:
			return
		}
	}
}

func (p *Publisher) publish(ctx context.Context, msg *amqp.LedgerMessage) {
	if err := p.sink.PublishLedgerChange(ctx, msg); err != nil {
		p.failed.Add(1)
		p.logger.ErrorContext(ctx, "Failed to publish ledger change",
			append(log.NewFields().
				WithOperation(log.OpPublish).
				WithErrorType(log.ErrorTypeNetwork).
				WithError(err).
				ToSlice(),
				log.FieldMessageID, msg.ID, log.FieldExpenseID, msg.Expense.ID)...)
		return
	}
	p.published.Add(1)
}

// Shutdown stops accepting changes, publishes whatever is buffered and
// waits for the worker to exit.
func (p *Publisher) Shutdown() {
	p.cancel()
	p.wg.Wait()
}

type Stats struct {
	Published int64 `json:"published"`
	Failed    int64 `json:"failed"`
	Dropped   int64 `json:"dropped"`
}

func (p *Publisher) Stats() Stats {
	return Stats{
		Published: p.published.Load(),
		Failed:    p.failed.Load(),
		Dropped:   p.dropped.Load(),
	}
}
