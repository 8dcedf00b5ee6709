// Package clients manages Client records and their contracts.
package clients

import (
	"context"
	"fmt"
	"strings"

	"myapp.dev/internal/audit"
	"myapp.dev/internal/auth"
)

const defaultLimit = 10

// Store persists clients.
type Store interface {
	CreateClient(ctx context.Context, c *Client) error
	GetClient(ctx context.Context, id int64) (*Client, error)
	ListClients(ctx context.Context, afterID int64, limit int) ([]Client, error)
	SearchClients(ctx context.Context, q SearchQuery) ([]Client, int, error)
	UpdateClient(ctx context.Context, id int64, label, description string) (*Client, error)
	SetClientStatus(ctx context.Context, id int64, status auth.Status) (*Client, error)
	DestroyClient(ctx context.Context, id int64) error
	ClientContracts(ctx context.Context, clientID int64) ([]Contract, error)
}

// Service implements client use cases on top of Store.
type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

// CreateInput is the create/update form.
type CreateInput struct {
	Label       string
	Description string
}

func (in CreateInput) validate() error {
	if strings.TrimSpace(in.Label) == "" {
		return fmt.Errorf("%w: missing property 'label'", ErrInvalidInput)
	}
	return nil
}

// Create stores a new client owned by creatorID.
func (s *Service) Create(ctx context.Context, in CreateInput, creatorID *int64) (*Client, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	c := &Client{
		Label:       strings.TrimSpace(in.Label),
		Description: in.Description,
		CreatorID:   creatorID,
		Status:      auth.StatusInitialized,
	}
	if err := s.store.CreateClient(ctx, c); err != nil {
		return nil, err
	}
	audit.LogEvent(ctx, "client.create", map[string]any{"client_id": c.ID})
	return c, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*Client, error) {
	return s.store.GetClient(ctx, id)
}

// List returns up to limit clients after the keyset cursor derived from page.
// Page 1 starts at the beginning; page n starts after id n-1.
func (s *Service) List(ctx context.Context, page int64, limit int) ([]Client, ListMeta, error) {
	if limit <= 0 {
		limit = defaultLimit
	}
	after := page - 1
	if after < 0 {
		after = 0
	}
	items, err := s.store.ListClients(ctx, after, limit)
	if err != nil {
		return nil, ListMeta{}, err
	}
	return items, ListMeta{Count: len(items), Limit: limit, Page: after + 1}, nil
}

// SearchParams are the raw search inputs. Limit -1 returns every match.
type SearchParams struct {
	Query string
	Sort  string
	Order string
	Page  int
	Limit int
}

// Search matches label or description case-insensitively.
func (s *Service) Search(ctx context.Context, p SearchParams) ([]Client, PageMeta, error) {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit == 0 || p.Limit < -1 {
		p.Limit = defaultLimit
	}
	q := SearchQuery{
		Text:  p.Query,
		Sort:  ParseSort(p.Sort),
		Desc:  strings.EqualFold(p.Order, "desc"),
		Limit: p.Limit,
	}
	if p.Limit > 0 {
		q.Offset = (p.Page - 1) * p.Limit
	}
	items, total, err := s.store.SearchClients(ctx, q)
	if err != nil {
		return nil, PageMeta{}, err
	}
	return items, pageMeta(p.Page, p.Limit, total), nil
}

func pageMeta(page, limit, total int) PageMeta {
	effective := limit
	if limit == -1 {
		effective = total
	}
	pages := 0
	if effective > 0 {
		pages = (total + effective - 1) / effective
	}
	m := PageMeta{First: 1, Last: pages, Pages: pages, Count: total, Limit: effective}
	if page > 1 {
		prev := page - 1
		m.Prev = &prev
	}
	if page < pages {
		next := page + 1
		m.Next = &next
	}
	return m
}

// Update replaces label and description.
func (s *Service) Update(ctx context.Context, id int64, in CreateInput) (*Client, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	c, err := s.store.UpdateClient(ctx, id, strings.TrimSpace(in.Label), in.Description)
	if err != nil {
		return nil, err
	}
	audit.LogEvent(ctx, "client.update", map[string]any{"client_id": id})
	return c, nil
}

func (s *Service) Delete(ctx context.Context, id int64) (*Client, error) {
	return s.setStatus(ctx, id, auth.StatusDeleted, "client.delete")
}

func (s *Service) Recover(ctx context.Context, id int64) (*Client, error) {
	return s.setStatus(ctx, id, auth.StatusValidated, "client.recover")
}

func (s *Service) Archive(ctx context.Context, id int64) (*Client, error) {
	return s.setStatus(ctx, id, auth.StatusArchived, "client.archive")
}

func (s *Service) Unarchive(ctx context.Context, id int64) (*Client, error) {
	return s.setStatus(ctx, id, auth.StatusValidated, "client.unarchive")
}

func (s *Service) setStatus(ctx context.Context, id int64, status auth.Status, event string) (*Client, error) {
	c, err := s.store.SetClientStatus(ctx, id, status)
	if err != nil {
		return nil, err
	}
	audit.LogEvent(ctx, event, map[string]any{"client_id": id, "status": string(status)})
	return c, nil
}

// Destroy removes the row permanently.
func (s *Service) Destroy(ctx context.Context, id int64) error {
	if err := s.store.DestroyClient(ctx, id); err != nil {
		return err
	}
	audit.LogEvent(ctx, "client.destroy", map[string]any{"client_id": id})
	return nil
}

// Contracts lists the client's contracts; an empty result is ErrContractsNotFound.
func (s *Service) Contracts(ctx context.Context, clientID int64) ([]Contract, error) {
	items, err := s.store.ClientContracts(ctx, clientID)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, ErrContractsNotFound
	}
	return items, nil
}
