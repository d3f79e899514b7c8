// Copyright 2024 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package event

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	EventQueueSize      = 64
	AsyncQueueSize      = 1000
	AsyncWorkerPoolSize = 4
)

type EventType string

type EventSubscriberId int

type EventHandlerFunc func(Event)

type Event struct {
	Timestamp time.Time
	Data      any
	Type      EventType
}

func NewEvent(eventType EventType, eventData any) Event {
	return Event{
		Type:      eventType,
		Timestamp: time.Now(),
		Data:      eventData,
	}
}

type subscriber struct {
	ch     chan Event
	types  []EventType
	mu     sync.RWMutex
	closed bool
}

func (s *subscriber) deliver(evt Event) (err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("deliver panic: %v", r)
		}
	}()
	s.ch <- evt
	return nil
}

func (s *subscriber) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}

// EventBus fans out published events to subscribers. A subscriber may listen
// to several event types on one channel, in which case it observes those
// events in publish order.
type EventBus struct {
	subscribers map[EventType]map[EventSubscriberId]*subscriber
	metrics     *eventMetrics
	lastSubId   EventSubscriberId
	mu          sync.RWMutex
	logger      *slog.Logger

	asyncQueue chan Event
	asyncWg    sync.WaitGroup
	stopCh     chan struct{}
	stopOnce   sync.Once
}

// NewEventBus creates a new EventBus and starts its async worker pool
func NewEventBus(
	promRegistry prometheus.Registerer,
	logger *slog.Logger,
) *EventBus {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	e := &EventBus{
		subscribers: make(map[EventType]map[EventSubscriberId]*subscriber),
		logger:      logger.With("component", "event"),
		asyncQueue:  make(chan Event, AsyncQueueSize),
		stopCh:      make(chan struct{}),
	}
	if promRegistry != nil {
		e.metrics = newEventMetrics(promRegistry)
	}
	for range AsyncWorkerPoolSize {
		e.asyncWg.Add(1)
		go e.asyncWorker()
	}
	return e
}

func (e *EventBus) asyncWorker() {
	defer e.asyncWg.Done()
	for {
		select {
		case <-e.stopCh:
			return
		case evt := <-e.asyncQueue:
			e.Publish(evt)
		}
	}
}

// Subscribe returns a channel receiving events of the given types
func (e *EventBus) Subscribe(
	eventTypes ...EventType,
) (EventSubscriberId, <-chan Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	sub := &subscriber{
		ch:    make(chan Event, EventQueueSize),
		types: eventTypes,
	}
	e.lastSubId++
	subId := e.lastSubId
	for _, eventType := range eventTypes {
		if _, ok := e.subscribers[eventType]; !ok {
			e.subscribers[eventType] = make(map[EventSubscriberId]*subscriber)
		}
		e.subscribers[eventType][subId] = sub
		if e.metrics != nil {
			e.metrics.subscribers.WithLabelValues(string(eventType)).Inc()
		}
	}
	return subId, sub.ch
}

// SubscribeFunc calls handlerFunc from a dedicated goroutine for every event
// of the given types
func (e *EventBus) SubscribeFunc(
	handlerFunc EventHandlerFunc,
	eventTypes ...EventType,
) EventSubscriberId {
	subId, evtCh := e.Subscribe(eventTypes...)
	go func() {
		for evt := range evtCh {
			handlerFunc(evt)
		}
	}()
	return subId
}

// Unsubscribe stops delivery to an existing subscriber and closes its channel
func (e *EventBus) Unsubscribe(subId EventSubscriberId) {
	e.mu.Lock()
	var found *subscriber
	for eventType, subs := range e.subscribers {
		sub, ok := subs[subId]
		if !ok {
			continue
		}
		found = sub
		delete(subs, subId)
		if len(subs) == 0 {
			delete(e.subscribers, eventType)
		}
		if e.metrics != nil {
			e.metrics.subscribers.WithLabelValues(string(eventType)).Dec()
		}
	}
	e.mu.Unlock()
	if found != nil {
		found.close()
	}
}

// Publish delivers an event to all subscribers of its type. Delivery blocks
// while a subscriber's queue is full.
func (e *EventBus) Publish(evt Event) {
	e.mu.RLock()
	subs := e.subscribers[evt.Type]
	targets := make(map[EventSubscriberId]*subscriber, len(subs))
	for id, sub := range subs {
		targets[id] = sub
	}
	e.mu.RUnlock()
	for id, sub := range targets {
		if err := sub.deliver(evt); err != nil {
			e.Unsubscribe(id)
			if e.metrics != nil {
				e.metrics.deliveryErrors.WithLabelValues(string(evt.Type)).Inc()
			}
			e.logger.Debug(
				"event delivery error",
				"type", evt.Type,
				"subscriber", id,
				"err", err,
			)
		}
	}
	if e.metrics != nil {
		e.metrics.eventsTotal.WithLabelValues(string(evt.Type)).Inc()
	}
}

// PublishAsync queues an event for delivery by the worker pool. It returns
// false when the bus is stopped or the queue is full.
func (e *EventBus) PublishAsync(evt Event) bool {
	select {
	case <-e.stopCh:
		return false
	default:
	}
	select {
	case e.asyncQueue <- evt:
		return true
	default:
		e.logger.Warn(
			"async event queue full, dropping event",
			"type", evt.Type,
		)
		if e.metrics != nil {
			e.metrics.deliveryErrors.WithLabelValues(string(evt.Type)).Inc()
		}
		return false
	}
}

// Stop halts the async workers and closes every subscriber channel so that
// SubscribeFunc goroutines exit
func (e *EventBus) Stop() {
	e.stopOnce.Do(func() {
		close(e.stopCh)
		e.asyncWg.Wait()
		e.mu.Lock()
		subs := e.subscribers
		e.subscribers = make(map[EventType]map[EventSubscriberId]*subscriber)
		e.mu.Unlock()
		for _, evtTypeSubs := range subs {
			for _, sub := range evtTypeSubs {
				sub.close()
			}
		}
		if e.metrics != nil {
			e.metrics.subscribers.Reset()
		}
	})
}
