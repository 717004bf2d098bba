// Package channel holds the delivery capability behind the notification
// dispatcher. Each delivery medium implements Sender; the dispatcher selects
// one by channel tag, so new channels are added by implementing the interface
// rather than branching.
package channel

import (
	"context"
	"fmt"

	"healthfinance/internal/notification/models"
)

// Sender delivers one notification over one medium. Implementations return an
// error for delivery failures; the dispatcher records it and never re-raises.
type Sender interface {
	Send(ctx context.Context, n *models.Notification) error
}

// Registry maps channel tags to senders.
type Registry struct {
	senders map[models.Channel]Sender
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{senders: make(map[models.Channel]Sender)}
}

// Register installs a sender for a channel, replacing any previous one.
func (r *Registry) Register(ch models.Channel, s Sender) {
	r.senders[ch] = s
}

// Lookup returns the sender for a channel.
func (r *Registry) Lookup(ch models.Channel) (Sender, error) {
	s, ok := r.senders[ch]
	if !ok {
		return nil, fmt.Errorf("no sender registered for channel %s", ch)
	}
	return s, nil
}
