package services

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"baseQuestAPI/internal/events"
	"baseQuestAPI/internal/logger"
	"baseQuestAPI/internal/notification"
)

// EventSink receives committed game events.
type EventSink interface {
	Name() string
	Handle(ctx context.Context, e events.Event) error
}

// EventDispatcher fans committed events out to sinks. Inline sinks run in
// the publishing goroutine after commit: the events of one Publish arrive in
// order, but concurrent writes may interleave, so consumers that need a total
// order sort by Seq. Queued sinks run on the worker pool in no fixed order.
type EventDispatcher struct {
	inline   []EventSink
	queued   []EventSink
	workers  int
	jobQueue chan events.Event
	stopChan chan struct{}
	wg       sync.WaitGroup
	once     sync.Once
}

func NewEventDispatcher(workers, queueSize int) *EventDispatcher {
	if workers <= 0 {
		workers = 1
	}
	return &EventDispatcher{
		workers:  workers,
		jobQueue: make(chan events.Event, queueSize),
		stopChan: make(chan struct{}),
	}
}

// AddInlineSink must be called before Start.
func (d *EventDispatcher) AddInlineSink(s EventSink) { d.inline = append(d.inline, s) }

// AddSink must be called before Start.
func (d *EventDispatcher) AddSink(s EventSink) { d.queued = append(d.queued, s) }

func (d *EventDispatcher) Start() {
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.worker(i)
	}
}

func (d *EventDispatcher) worker(id int) {
	defer d.wg.Done()
	for {
		select {
		case e := <-d.jobQueue:
			d.deliver(d.queued, e)
		case <-d.stopChan:
			return
		}
	}
}

func (d *EventDispatcher) deliver(sinks []EventSink, e events.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for _, s := range sinks {
		if err := s.Handle(ctx, e); err != nil {
			logger.L().Warn("event sink failed",
				zap.String("sink", s.Name()),
				zap.String("event", string(e.Type)),
				zap.Int64("seq", e.Seq),
				zap.Error(err),
			)
		}
	}
}

// Publish never fails: an event that cannot be queued within a second is
// dropped from the queued sinks and stays available in the event log.
func (d *EventDispatcher) Publish(evts ...events.Event) {
	for _, e := range evts {
		d.deliver(d.inline, e)
		if len(d.queued) == 0 {
			continue
		}

		select {
		case d.jobQueue <- e:
		case <-time.After(time.Second):
			logger.L().Warn("event queue full, dropping", zap.String("event", string(e.Type)), zap.Int64("seq", e.Seq))
		}
	}
}

func (d *EventDispatcher) Stop() {
	d.once.Do(func() {
		close(d.stopChan)
		d.wg.Wait()
	})
}

// PushSender is implemented by notification.FCMService.
type PushSender interface {
	SendTopic(ctx context.Context, msg notification.Message) error
}

// PushSink forwards streak and week events as topic pushes.
type PushSink struct {
	sender PushSender
}

func NewPushSink(sender PushSender) *PushSink {
	return &PushSink{sender: sender}
}

func (p *PushSink) Name() string { return "push" }

func (p *PushSink) Handle(ctx context.Context, e events.Event) error {
	msg, ok := notification.FromEvent(e)
	if !ok {
		return nil
	}
	return p.sender.SendTopic(ctx, msg)
}
