// Package store provides notification persistence: an in-memory
// implementation for tests and a PostgreSQL implementation for production,
// plus a redis read-through cache for templates.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"healthfinance/internal/notification/models"
	id "healthfinance/pkg/domain"
	"healthfinance/pkg/platform/sentinel"
)

// Memory is a mutex-guarded in-memory notification store.
type Memory struct {
	mu            sync.RWMutex
	notifications map[id.NotificationID]*models.Notification
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{notifications: make(map[id.NotificationID]*models.Notification)}
}

func (s *Memory) Create(_ context.Context, n *models.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.notifications[n.ID]; exists {
		return sentinel.ErrConflict
	}
	s.notifications[n.ID] = clone(n)
	return nil
}

func (s *Memory) Update(_ context.Context, n *models.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.notifications[n.ID]; !exists {
		return sentinel.ErrNotFound
	}
	s.notifications[n.ID] = clone(n)
	return nil
}

func (s *Memory) Get(_ context.Context, nid id.NotificationID) (*models.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.notifications[nid]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return clone(n), nil
}

func (s *Memory) ListByRecipient(_ context.Context, recipientID string) ([]*models.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Notification
	for _, n := range s.notifications {
		if n.RecipientID == recipientID {
			out = append(out, clone(n))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Memory) ListByStatus(_ context.Context, status models.Status) ([]*models.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Notification
	for _, n := range s.notifications {
		if n.Status == status {
			out = append(out, clone(n))
		}
	}
	return out, nil
}

func (s *Memory) ListDue(_ context.Context, now time.Time) ([]*models.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Notification
	for _, n := range s.notifications {
		if n.Status == models.StatusPending && n.ScheduledAt != nil && !n.ScheduledAt.After(now) {
			out = append(out, clone(n))
		}
	}
	return out, nil
}

func (s *Memory) ListFailedRetryable(_ context.Context, maxRetries int) ([]*models.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Notification
	for _, n := range s.notifications {
		if n.Status == models.StatusFailed && n.RetryCount < maxRetries {
			out = append(out, clone(n))
		}
	}
	return out, nil
}

func (s *Memory) Delete(_ context.Context, nid id.NotificationID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.notifications[nid]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.notifications, nid)
	return nil
}

func clone(n *models.Notification) *models.Notification {
	c := *n
	return &c
}

// TemplateMemory is an in-memory template store keyed by template name.
type TemplateMemory struct {
	mu        sync.RWMutex
	templates map[string]*models.Template
}

// NewTemplateMemory creates an empty in-memory template store.
func NewTemplateMemory() *TemplateMemory {
	return &TemplateMemory{templates: make(map[string]*models.Template)}
}

// Put stores a template under its name, overwriting any existing one.
func (s *TemplateMemory) Put(tpl *models.Template) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *tpl
	s.templates[tpl.TemplateName] = &c
}

func (s *TemplateMemory) Create(_ context.Context, tpl *models.Template) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.templates[tpl.TemplateName]; exists {
		return sentinel.ErrConflict
	}
	c := *tpl
	s.templates[tpl.TemplateName] = &c
	return nil
}

func (s *TemplateMemory) List(_ context.Context) ([]*models.Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Template, 0, len(s.templates))
	for _, tpl := range s.templates {
		c := *tpl
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TemplateName < out[j].TemplateName })
	return out, nil
}

func (s *TemplateMemory) GetByName(_ context.Context, name string) (*models.Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tpl, ok := s.templates[name]
	if !ok || !tpl.Active {
		return nil, sentinel.ErrNotFound
	}
	c := *tpl
	return &c, nil
}
