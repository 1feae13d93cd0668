package usecase

import (
	"sort"
	"sync"

	validation "github.com/jellydator/validation"

	apperrors "github.com/allisson/courier/internal/errors"
	"github.com/allisson/courier/internal/outbox/domain"
	customValidation "github.com/allisson/courier/internal/validation"
)

// Registry maps topics to their consumer. It is populated at startup and read by the
// deliverer on every dispatch.
type Registry struct {
	mu            sync.RWMutex
	subscriptions map[string]domain.Subscription
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{subscriptions: make(map[string]domain.Subscription)}
}

// Register binds handler to topic under the consumer name recorded with failures.
// A topic accepts a single handler.
func (r *Registry) Register(topic, consumer string, handler domain.Handler) error {
	err := validation.Errors{
		"topic":    validation.Validate(topic, validation.Required, customValidation.Identifier),
		"consumer": validation.Validate(consumer, validation.Required, customValidation.Identifier),
	}.Filter()
	if err != nil {
		return customValidation.WrapValidationError(err)
	}
	if handler == nil {
		return apperrors.Wrap(apperrors.ErrInvalidInput, "handler must not be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.subscriptions[topic]; ok {
		return apperrors.Wrapf(domain.ErrHandlerAlreadyRegistered, "%s (consumer %s)", topic, existing.Consumer)
	}
	r.subscriptions[topic] = domain.Subscription{Topic: topic, Consumer: consumer, Handler: handler}

	return nil
}

// Lookup returns the subscription of topic.
func (r *Registry) Lookup(topic string) (domain.Subscription, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sub, ok := r.subscriptions[topic]
	return sub, ok
}

// Topics returns the registered topics in lexical order.
func (r *Registry) Topics() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	topics := make([]string, 0, len(r.subscriptions))
	for topic := range r.subscriptions {
		topics = append(topics, topic)
	}
	sort.Strings(topics)
	return topics
}
