// Package notify delivers verification codes to employees. Transports are
// registered by name and selected with notifier.type.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/xxxsen/simurgh/internal/config"
)

// ErrNoRecipient means the employee has no address the transport can use.
var ErrNoRecipient = errors.New("notify: no recipient address")

type Message struct {
	NotificationID int64  `json:"notification_id"`
	Username       string `json:"username"`
	Name           string `json:"name"`
	To             string `json:"to"`
	Mobile         string `json:"mobile"`
	Subject        string `json:"subject"`
	Body           string `json:"body"`
	ExpiresAt      int64  `json:"expires_at"`
}

//go:generate mockgen -source=notify.go -destination=notifymock/sender.go -package=notifymock Sender
type Sender interface {
	Name() string
	Send(ctx context.Context, msg Message) error
}

type Factory func(args interface{}) (Sender, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
)

func Register(name string, factory Factory) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" || factory == nil {
		return
	}
	registryMu.Lock()
	registry[key] = factory
	registryMu.Unlock()
}

func New(cfg config.NotifierConfig) (Sender, error) {
	key := strings.ToLower(strings.TrimSpace(cfg.Type))
	if key == "" {
		return nil, fmt.Errorf("notifier.type is required")
	}
	registryMu.RLock()
	factory := registry[key]
	registryMu.RUnlock()
	if factory == nil {
		return nil, fmt.Errorf("unsupported notifier type: %s", cfg.Type)
	}
	return factory(cfg.Data)
}

func decodeConfig(args interface{}, dst interface{}) error {
	if args == nil {
		return fmt.Errorf("notifier config is required")
	}
	data, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("encode notifier config: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode notifier config: %w", err)
	}
	return nil
}
