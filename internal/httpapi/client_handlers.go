package httpapi

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"myapp.dev/internal/apperr"
	"myapp.dev/internal/auth"
	"myapp.dev/internal/clients"
)

type clientRequest struct {
	Label       string `json:"label"`
	Description string `json:"description"`
}

func clientID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.BadRequest("Invalid client ID", err)
	}
	return id, nil
}

// queryInt reads an integer query parameter. Missing optional parameters yield def.
func queryInt(r *http.Request, name string, required bool, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		if required {
			return 0, apperr.MalformedRequest("Missing query parameter", map[string]string{name: "required"})
		}
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperr.MalformedRequest("Invalid query parameter", map[string]string{name: "must be a number"})
	}
	return v, nil
}

// subject loads the local user behind the authenticated request.
func (a *API) subject(ctx context.Context) (*auth.User, error) {
	claims, ok := auth.ClaimsFromContext(ctx)
	if !ok {
		return nil, apperr.Unauthorized(auth.ErrMissingToken)
	}
	p, err := a.deps.Sessions.Resolver().Principal(ctx, claims.Subject)
	if err != nil {
		return nil, err
	}
	return p.User, nil
}

func (a *API) handleListClients(w http.ResponseWriter, r *http.Request) {
	page, err := queryInt(r, "page", true, 1)
	if err != nil {
		writeError(w, r, err)
		return
	}
	limit, err := queryInt(r, "limit", true, 10)
	if err != nil {
		writeError(w, r, err)
		return
	}
	items, meta, err := a.deps.Clients.List(r.Context(), int64(page), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "Clients retrieved successfully", items, meta)
}

func (a *API) handleSearchClients(w http.ResponseWriter, r *http.Request) {
	page, err := queryInt(r, "page", false, 1)
	if err != nil {
		writeError(w, r, err)
		return
	}
	limit, err := queryInt(r, "limit", false, 10)
	if err != nil {
		writeError(w, r, err)
		return
	}
	q := r.URL.Query()
	items, meta, err := a.deps.Clients.Search(r.Context(), clients.SearchParams{
		Query: q.Get("query"),
		Sort:  q.Get("sort"),
		Order: q.Get("order"),
		Page:  page,
		Limit: limit,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "Clients retrieved successfully", items, meta)
}

func (a *API) handleGetClient(w http.ResponseWriter, r *http.Request) {
	id, err := clientID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	c, err := a.deps.Clients.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "Client retrieved successfully", c, nil)
}

func (a *API) handleCreateClient(w http.ResponseWriter, r *http.Request) {
	var req clientRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	user, err := a.subject(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	c, err := a.deps.Clients.Create(r.Context(), clients.CreateInput{Label: req.Label, Description: req.Description}, &user.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusCreated, "Client created successfully", c, nil)
}

func (a *API) handleUpdateClient(w http.ResponseWriter, r *http.Request) {
	id, err := clientID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req clientRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	c, err := a.deps.Clients.Update(r.Context(), id, clients.CreateInput{Label: req.Label, Description: req.Description})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "Client updated successfully", c, nil)
}

type statusChange func(ctx context.Context, id int64) (*clients.Client, error)

func (a *API) changeStatus(change statusChange, message string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := clientID(r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		c, err := change(r.Context(), id)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeSuccess(w, http.StatusOK, message, c, nil)
	}
}

func (a *API) handleDeleteClient(w http.ResponseWriter, r *http.Request) {
	a.changeStatus(a.deps.Clients.Delete, "Client marked as deleted successfully.")(w, r)
}

func (a *API) handleRecoverClient(w http.ResponseWriter, r *http.Request) {
	a.changeStatus(a.deps.Clients.Recover, "Client recovered successfully.")(w, r)
}

func (a *API) handleArchiveClient(w http.ResponseWriter, r *http.Request) {
	a.changeStatus(a.deps.Clients.Archive, "Client archived successfully.")(w, r)
}

func (a *API) handleUnarchiveClient(w http.ResponseWriter, r *http.Request) {
	a.changeStatus(a.deps.Clients.Unarchive, "Client unarchived successfully.")(w, r)
}

func (a *API) handleDestroyClient(w http.ResponseWriter, r *http.Request) {
	id, err := clientID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := a.deps.Clients.Destroy(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "Client destroyed successfully", map[string]int64{"id": id}, nil)
}

func (a *API) handleClientContracts(w http.ResponseWriter, r *http.Request) {
	id, err := clientID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	contracts, err := a.deps.Clients.Contracts(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "Contracts retrieved successfully", contracts, nil)
}
