package clients

import (
	"errors"
	"time"

	"myapp.dev/internal/auth"
)

var (
	ErrNotFound          = errors.New("clients: not found")
	ErrContractsNotFound = errors.New("clients: contracts not found")
	ErrInvalidInput      = errors.New("clients: invalid input")
	ErrHasContracts      = errors.New("clients: client still has contracts")
)

// Creator is the subject summary joined onto clients and contracts.
type Creator struct {
	ID        int64  `json:"id"`
	UUID      string `json:"uuid"`
	Firstname string `json:"firstname"`
	Lastname  string `json:"lastname"`
	Email     string `json:"email"`
}

// Client is a customer record.
type Client struct {
	ID           int64       `json:"id"`
	Label        string      `json:"label"`
	Description  string      `json:"description"`
	CreatorID    *int64      `json:"creatorId,omitempty"`
	Creator      *Creator    `json:"creator,omitempty"`
	Created      time.Time   `json:"created"`
	LastModified time.Time   `json:"lastmodified"`
	Status       auth.Status `json:"status"`
}

// Contract belongs to a client.
type Contract struct {
	ID           int64       `json:"id"`
	ClientID     int64       `json:"clientId"`
	Label        string      `json:"label"`
	Description  string      `json:"description"`
	CreatorID    *int64      `json:"creatorId,omitempty"`
	Creator      *Creator    `json:"creator,omitempty"`
	Created      time.Time   `json:"created"`
	LastModified time.Time   `json:"lastmodified"`
	Private      bool        `json:"private"`
	Status       auth.Status `json:"status"`
	DateDebut    *int64      `json:"dateDebut,omitempty"`
	DateFin      *int64      `json:"dateFin,omitempty"`
}

// SortColumn is a whitelisted search ordering.
type SortColumn string

const (
	SortID           SortColumn = "id"
	SortLabel        SortColumn = "label"
	SortDescription  SortColumn = "description"
	SortCreator      SortColumn = "creator"
	SortCreated      SortColumn = "created"
	SortLastModified SortColumn = "lastmodified"
	SortStatus       SortColumn = "status"
)

// ParseSort falls back to id for unknown columns.
func ParseSort(s string) SortColumn {
	switch c := SortColumn(s); c {
	case SortID, SortLabel, SortDescription, SortCreator, SortCreated, SortLastModified, SortStatus:
		return c
	}
	return SortID
}

// SearchQuery is passed to the store. Limit < 0 means no limit.
type SearchQuery struct {
	Text   string
	Sort   SortColumn
	Desc   bool
	Limit  int
	Offset int
}

// ListMeta describes a keyset page.
type ListMeta struct {
	Count int   `json:"count"`
	Limit int   `json:"limit"`
	Page  int64 `json:"page"`
}

// PageMeta describes an offset page of search results.
type PageMeta struct {
	First int  `json:"first"`
	Prev  *int `json:"prev"`
	Next  *int `json:"next"`
	Last  int  `json:"last"`
	Pages int  `json:"pages"`
	Count int  `json:"count"`
	Limit int  `json:"limit"`
}
