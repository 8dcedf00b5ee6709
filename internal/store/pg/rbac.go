package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"myapp.dev/internal/auth"
)

var (
	_ auth.UserStore       = (*Store)(nil)
	_ auth.PermissionStore = (*Store)(nil)
)

const userColumns = `id, uuid, firstname, lastname, email, creator, isadmin, status, created, modified`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*auth.User, error) {
	var (
		u                          auth.User
		first, last, email, status sql.NullString
		creator                    sql.NullInt64
		created, modified          sql.NullTime
	)
	if err := row.Scan(&u.ID, &u.UUID, &first, &last, &email, &creator, &u.IsAdmin, &status, &created, &modified); err != nil {
		return nil, err
	}
	u.Firstname, u.Lastname, u.Email = first.String, last.String, email.String
	u.CreatorID = int64Ptr(creator)
	u.Status = auth.Status(status.String)
	if u.Status == "" {
		u.Status = auth.StatusInitialized
	}
	u.Created, u.Modified = created.Time, modified.Time
	return &u, nil
}

func (s *Store) FindByUUID(ctx context.Context, uuid string) (*auth.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, `select `+userColumns+` from "User" where uuid = $1`, uuid))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrNotFound
	}
	return u, err
}

func (s *Store) FindByID(ctx context.Context, id int64) (*auth.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, `select `+userColumns+` from "User" where id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrNotFound
	}
	return u, err
}

// Provision inserts the subject unless its uuid is already known.
func (s *Store) Provision(ctx context.Context, u *auth.User) (bool, error) {
	status := u.Status
	if status == "" {
		status = auth.StatusInitialized
	}
	err := s.db.QueryRowContext(ctx, `
		insert into "User" (uuid, firstname, lastname, email, creator, isadmin, status)
		values ($1, $2, $3, $4, $5, $6, $7)
		on conflict (uuid) do nothing
		returning id
	`, u.UUID, nullIfEmpty(u.Firstname), nullIfEmpty(u.Lastname), nullIfEmpty(u.Email), u.CreatorID, u.IsAdmin, string(status)).Scan(&u.ID)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, sql.ErrNoRows):
		return false, nil
	case isUniqueViolation(err):
		return false, fmt.Errorf("provision %s: email already used: %w", u.UUID, err)
	default:
		return false, err
	}
}

const codesForSubjectQuery = `
		select distinct p.code
		from "Permission" p
		join "ProfilePermission" pp on pp.permission_id = p.id
		join "Profile" pr on pr.id = pp.profile_id
		join "UserProfile" up on up.profile_id = pr.id
		join "User" u on u.id = up.user_id
		where u.uuid = $1`

const activeGrantsFilter = `
		and coalesce(p.status, 'ini') not in ('del', 'arc')
		and coalesce(pp.status, 'ini') not in ('del', 'arc')
		and coalesce(pr.status, 'ini') not in ('del', 'arc')
		and coalesce(up.status, 'ini') not in ('del', 'arc')`

// CodesForSubject walks Permission→ProfilePermission→Profile→UserProfile→User.
func (s *Store) CodesForSubject(ctx context.Context, uuid string, activeOnly bool) ([]string, error) {
	query := codesForSubjectQuery
	if activeOnly {
		query += activeGrantsFilter
	}
	query += "\n\t\torder by p.code"

	rows, err := s.db.QueryContext(ctx, query, uuid)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var codes []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, err
		}
		codes = append(codes, code)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return codes, nil
}
