package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"myapp.dev/internal/auth"
	"myapp.dev/internal/clients"
)

var _ clients.Store = (*Store)(nil)

const clientSelect = `
		select c.id, c.label, c.description, c.creator, c.created, c.lastmodified, c.status,
		       u.id, u.uuid, u.firstname, u.lastname, u.email
		from "Client" c
		left join "User" u on u.id = c.creator`

var clientSortColumns = map[clients.SortColumn]string{
	clients.SortID:           "c.id",
	clients.SortLabel:        "c.label",
	clients.SortDescription:  "c.description",
	clients.SortCreator:      "c.creator",
	clients.SortCreated:      "c.created",
	clients.SortLastModified: "c.lastmodified",
	clients.SortStatus:       "c.status",
}

func scanCreator(id sql.NullInt64, uuid, first, last, email sql.NullString) *clients.Creator {
	if !id.Valid {
		return nil
	}
	return &clients.Creator{ID: id.Int64, UUID: uuid.String, Firstname: first.String, Lastname: last.String, Email: email.String}
}

func scanClient(row rowScanner) (*clients.Client, error) {
	var (
		c                           clients.Client
		label, desc, status         sql.NullString
		creator, uid                sql.NullInt64
		uuuid, ufirst, ulast, umail sql.NullString
		created, modified           sql.NullTime
	)
	if err := row.Scan(&c.ID, &label, &desc, &creator, &created, &modified, &status,
		&uid, &uuuid, &ufirst, &ulast, &umail); err != nil {
		return nil, err
	}
	c.Label, c.Description = label.String, desc.String
	c.CreatorID = int64Ptr(creator)
	c.Creator = scanCreator(uid, uuuid, ufirst, ulast, umail)
	c.Created, c.LastModified = created.Time, modified.Time
	c.Status = auth.Status(status.String)
	return &c, nil
}

func (s *Store) CreateClient(ctx context.Context, c *clients.Client) error {
	status := c.Status
	if status == "" {
		status = auth.StatusInitialized
	}
	return s.db.QueryRowContext(ctx, `
		insert into "Client" (label, description, creator, status)
		values ($1, $2, $3, $4)
		returning id, created, lastmodified
	`, c.Label, nullIfEmpty(c.Description), c.CreatorID, string(status)).Scan(&c.ID, &c.Created, &c.LastModified)
}

func (s *Store) GetClient(ctx context.Context, id int64) (*clients.Client, error) {
	c, err := scanClient(s.db.QueryRowContext(ctx, clientSelect+` where c.id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, clients.ErrNotFound
	}
	return c, err
}

func (s *Store) ListClients(ctx context.Context, afterID int64, limit int) ([]clients.Client, error) {
	rows, err := s.db.QueryContext(ctx, clientSelect+` where c.id > $1 order by c.id asc limit $2`, afterID, limit)
	if err != nil {
		return nil, err
	}
	return collectClients(rows)
}

func (s *Store) SearchClients(ctx context.Context, q clients.SearchQuery) ([]clients.Client, int, error) {
	pattern := "%" + escapeLike(q.Text) + "%"
	const where = ` where (c.label ilike $1 or c.description ilike $1)`

	var total int
	if err := s.db.QueryRowContext(ctx, `select count(*) from "Client" c`+where, pattern).Scan(&total); err != nil {
		return nil, 0, err
	}

	col, ok := clientSortColumns[q.Sort]
	if !ok {
		col = "c.id"
	}
	dir := "asc"
	if q.Desc {
		dir = "desc"
	}
	var limit any
	if q.Limit > 0 {
		limit = q.Limit
	}
	query := fmt.Sprintf(`%s%s order by %s %s, c.id asc limit $2 offset $3`, clientSelect, where, col, dir)
	rows, err := s.db.QueryContext(ctx, query, pattern, limit, q.Offset)
	if err != nil {
		return nil, 0, err
	}
	items, err := collectClients(rows)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (s *Store) UpdateClient(ctx context.Context, id int64, label, description string) (*clients.Client, error) {
	res, err := s.db.ExecContext(ctx, `
		update "Client" set label = $2, description = $3, lastmodified = now()
		where id = $1
	`, id, label, nullIfEmpty(description))
	if err := affectedOne(res, err); err != nil {
		return nil, err
	}
	return s.GetClient(ctx, id)
}

func (s *Store) SetClientStatus(ctx context.Context, id int64, status auth.Status) (*clients.Client, error) {
	res, err := s.db.ExecContext(ctx, `
		update "Client" set status = $2, lastmodified = now()
		where id = $1
	`, id, string(status))
	if err := affectedOne(res, err); err != nil {
		return nil, err
	}
	return s.GetClient(ctx, id)
}

func (s *Store) DestroyClient(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `delete from "Client" where id = $1`, id)
	if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
		return clients.ErrHasContracts
	}
	return affectedOne(res, err)
}

func (s *Store) ClientContracts(ctx context.Context, clientID int64) ([]clients.Contract, error) {
	rows, err := s.db.QueryContext(ctx, `
		select k.id, k.client_id, k.label, k.description, k.creator, k.created, k.lastmodified,
		       k.private, k.status, k.date_debut, k.date_fin,
		       u.id, u.uuid, u.firstname, u.lastname, u.email
		from "Contract" k
		left join "User" u on u.id = k.creator
		where k.client_id = $1
		order by k.id asc
	`, clientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []clients.Contract
	for rows.Next() {
		var (
			k                           clients.Contract
			label, desc, status         sql.NullString
			creator, uid, debut, fin    sql.NullInt64
			uuuid, ufirst, ulast, umail sql.NullString
			created, modified           sql.NullTime
		)
		if err := rows.Scan(&k.ID, &k.ClientID, &label, &desc, &creator, &created, &modified,
			&k.Private, &status, &debut, &fin,
			&uid, &uuuid, &ufirst, &ulast, &umail); err != nil {
			return nil, err
		}
		k.Label, k.Description = label.String, desc.String
		k.CreatorID = int64Ptr(creator)
		k.Creator = scanCreator(uid, uuuid, ufirst, ulast, umail)
		k.Created, k.LastModified = created.Time, modified.Time
		k.Status = auth.Status(status.String)
		k.DateDebut, k.DateFin = int64Ptr(debut), int64Ptr(fin)
		out = append(out, k)
	}
	return out, rows.Err()
}

func collectClients(rows *sql.Rows) ([]clients.Client, error) {
	defer rows.Close()
	out := []clients.Client{}
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func affectedOne(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return clients.ErrNotFound
	}
	return nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string { return likeEscaper.Replace(s) }
