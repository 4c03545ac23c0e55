package repo

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/abdusco/linkhub/internal"
	"github.com/doug-martin/goqu/v9"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

type domainRow struct {
	ID        int64   `db:"id"`
	Domain    string  `db:"domain"`
	Name      *string `db:"name"`
	CreatedAt Date    `db:"created_at"`
}

type DomainsRepo struct {
	db *goqu.Database
}

func NewDomainsRepo(db *sql.DB) *DomainsRepo {
	return &DomainsRepo{db: newBuilder(db)}
}

func (r *DomainsRepo) List(ctx context.Context) ([]internal.Domain, error) {
	var rows []domainRow
	err := r.db.From("domains").
		Select("id", "domain", "name", "created_at").
		Order(goqu.C("domain").Asc()).
		ScanStructsContext(ctx, &rows)
	if err != nil {
		return nil, fmt.Errorf("failed to list domains: %w", err)
	}
	return lo.Map(rows, func(row domainRow, _ int) internal.Domain {
		return row.toDomain()
	}), nil
}

func (r *DomainsRepo) GetByID(ctx context.Context, id int64) (*internal.Domain, error) {
	var row domainRow
	found, err := r.db.From("domains").
		Select("id", "domain", "name", "created_at").
		Where(goqu.C("id").Eq(id)).
		ScanStructContext(ctx, &row)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch domain: %w", err)
	}
	if !found {
		return nil, internal.ErrDomainNotFound
	}
	d := row.toDomain()
	return &d, nil
}

// Create registers a host. Hosts are stored lower-cased so lookups by the
// normalized request host match.
func (r *DomainsRepo) Create(ctx context.Context, domain, name string) (*internal.Domain, error) {
	domain = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(domain)), ".")

	res, err := r.db.Insert("domains").Rows(goqu.Record{
		"domain":     domain,
		"name":       nullable(name),
		"created_at": now(),
	}).Executor().ExecContext(ctx)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, internal.ErrConflict
		}
		return nil, fmt.Errorf("failed to create domain: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read domain id: %w", err)
	}

	log.Info().Int64("id", id).Str("domain", domain).Msg("domain created")
	return r.GetByID(ctx, id)
}

// Delete removes a domain together with its links and bio pages.
func (r *DomainsRepo) Delete(ctx context.Context, id int64) error {
	res, err := r.db.Delete("domains").Where(goqu.C("id").Eq(id)).Executor().ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete domain: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return internal.ErrDomainNotFound
	}
	log.Info().Int64("id", id).Msg("domain deleted")
	return nil
}

func (r domainRow) toDomain() internal.Domain {
	return internal.Domain{
		ID:        r.ID,
		Domain:    r.Domain,
		Name:      lo.FromPtr(r.Name),
		CreatedAt: r.CreatedAt.Time(),
	}
}
