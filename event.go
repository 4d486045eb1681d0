package travel

import (
	"context"
	"fmt"
	"sync"

	"github.com/goccy/go-json"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"bestoffer.kz/travel/models"
	"bestoffer.kz/travel/models/enum"
)

const (
	eventSubjectPrefix = "travel.event."
	eventSubjectAll    = eventSubjectPrefix + ">"
)

type EventHandler func(context.Context, *models.Event) error

// EventManager routes domain events to the dispatcher, through NATS when a
// connection is configured and directly otherwise.
type EventManager struct {
	natsConn     *nats.Conn
	subscription *nats.Subscription
	dispatcher   *Dispatcher
	handlers     map[enum.EventType]EventHandler
	mu           sync.RWMutex
	logger       *zap.Logger
}

func NewEventManager(natsConn *nats.Conn, logger *zap.Logger) *EventManager {
	return &EventManager{
		natsConn: natsConn,
		handlers: make(map[enum.EventType]EventHandler),
		logger:   logger,
	}
}

func (em *EventManager) RegisterHandler(eventType enum.EventType, handler EventHandler) {
	em.mu.Lock()
	defer em.mu.Unlock()
	em.handlers[eventType] = handler
}

func (em *EventManager) GetHandler(eventType enum.EventType) (EventHandler, bool) {
	em.mu.RLock()
	defer em.mu.RUnlock()
	handler, exists := em.handlers[eventType]
	return handler, exists
}

// PublishEvent never blocks on processing. Without NATS the event goes
// straight onto the dispatcher queue; when the queue is full it is dropped
// and stays unprocessed in the ledger.
func (em *EventManager) PublishEvent(ctx context.Context, event *models.Event) error {
	if em.natsConn == nil {
		if em.dispatcher == nil {
			return fmt.Errorf("no event transport for %s", event.Type)
		}
		return em.dispatcher.TrySubmit(context.WithoutCancel(ctx), event)
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	return em.natsConn.Publish(eventSubjectPrefix+string(event.Type), data)
}

// SubscribeToEvents feeds every travel event into d.
func (em *EventManager) SubscribeToEvents(d *Dispatcher) error {
	em.dispatcher = d
	if em.natsConn == nil {
		return nil
	}

	sub, err := em.natsConn.Subscribe(eventSubjectAll, func(msg *nats.Msg) {
		var event models.Event
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			em.logger.Error("failed to unmarshal event", zap.String("subject", msg.Subject), zap.Error(err))
			return
		}

		if err := d.Submit(context.Background(), &event); err != nil {
			em.logger.Error("failed to queue event",
				zap.String("event_id", event.ID.String()),
				zap.String("event_type", string(event.Type)),
				zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", eventSubjectAll, err)
	}

	em.subscription = sub
	return nil
}

func (em *EventManager) Close() {
	if em.subscription == nil {
		return
	}
	if err := em.subscription.Drain(); err != nil {
		em.logger.Warn("failed to drain event subscription", zap.Error(err))
	}
}

func (bo *BestOffer) registerEventHandlers() {

	eventHandlers := map[enum.EventType]EventHandler{
		enum.EventTypeQuoteRunCompleted: bo.handleQuoteRunCompleted,

		enum.EventTypeOrderSubmitted: bo.handleOrderEvent,
		enum.EventTypeOrderFailed:    bo.handleOrderEvent,
		enum.EventTypeOrderPaid:      bo.handleOrderEvent,
	}

	for eventType, handler := range eventHandlers {
		bo.eventManager.RegisterHandler(eventType, handler)
	}
}
