package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/abdusco/linkhub/internal"
	"github.com/doug-martin/goqu/v9"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

var bioColumns = []string{"id", "domain_id", "slug", "title", "bio", "logo_url", "theme", "created_at", "updated_at"}

type bioRow struct {
	ID        int64   `db:"id"`
	DomainID  int64   `db:"domain_id"`
	Host      string  `db:"host"`
	Slug      string  `db:"slug"`
	Title     *string `db:"title"`
	Bio       *string `db:"bio"`
	LogoURL   *string `db:"logo_url"`
	Theme     string  `db:"theme"`
	CreatedAt Date    `db:"created_at"`
	UpdatedAt Date    `db:"updated_at"`
}

var bioLinkColumns = []string{"id", "bio_page_id", "title", "url", "icon", "sort_order", "is_active", "created_at"}

type bioLinkRow struct {
	ID        int64   `db:"id"`
	BioPageID int64   `db:"bio_page_id"`
	Title     string  `db:"title"`
	URL       string  `db:"url"`
	Icon      *string `db:"icon"`
	SortOrder int     `db:"sort_order"`
	IsActive  bool    `db:"is_active"`
	CreatedAt Date    `db:"created_at"`
}

type BioUpdate struct {
	Slug    *string
	Title   *string
	Bio     *string
	LogoURL *string
	Theme   *internal.BioTheme
}

type BioLinkUpdate struct {
	Title    *string
	URL      *string
	Icon     *string
	IsActive *bool
}

type BioRepo struct {
	db *goqu.Database
}

func NewBioRepo(db *sql.DB) *BioRepo {
	return &BioRepo{db: newBuilder(db)}
}

func (r *BioRepo) selectPages() *goqu.SelectDataset {
	return r.db.From(goqu.T("bio_pages").As("b")).
		InnerJoin(goqu.T("domains").As("d"), goqu.On(goqu.I("d.id").Eq(goqu.I("b.domain_id")))).
		Select(append(qualified("b", bioColumns), goqu.I("d.domain").As("host"))...)
}

// LookupBioPage returns the bio page for host and slug with all of its links.
// Filtering and ordering for display is left to the renderer.
func (r *BioRepo) LookupBioPage(ctx context.Context, host, slug string) (*internal.BioPage, error) {
	log.Debug().Str("host", host).Str("slug", slug).Msg("looking up bio page")

	var row bioRow
	found, err := r.selectPages().
		Where(goqu.I("d.domain").Eq(host), goqu.I("b.slug").Eq(slug)).
		ScanStructContext(ctx, &row)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch bio page: %w", err)
	}
	if !found {
		return nil, internal.ErrBioPageNotFound
	}

	page := row.toDomain()
	if err := r.loadLinks(ctx, []*internal.BioPage{page}); err != nil {
		return nil, err
	}
	return page, nil
}

func (r *BioRepo) GetByID(ctx context.Context, id int64) (*internal.BioPage, error) {
	var row bioRow
	found, err := r.selectPages().Where(goqu.I("b.id").Eq(id)).ScanStructContext(ctx, &row)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch bio page: %w", err)
	}
	if !found {
		return nil, internal.ErrBioPageNotFound
	}

	page := row.toDomain()
	if err := r.loadLinks(ctx, []*internal.BioPage{page}); err != nil {
		return nil, err
	}
	return page, nil
}

func (r *BioRepo) List(ctx context.Context) ([]*internal.BioPage, error) {
	var rows []bioRow
	err := r.selectPages().
		Order(goqu.I("b.created_at").Desc(), goqu.I("b.id").Desc()).
		ScanStructsContext(ctx, &rows)
	if err != nil {
		return nil, fmt.Errorf("failed to list bio pages: %w", err)
	}

	pages := lo.Map(rows, func(row bioRow, _ int) *internal.BioPage {
		return row.toDomain()
	})
	if err := r.loadLinks(ctx, pages); err != nil {
		return nil, err
	}
	return pages, nil
}

func (r *BioRepo) Create(ctx context.Context, page *internal.BioPage) (*internal.BioPage, error) {
	theme, err := encodeTheme(page.Theme)
	if err != nil {
		return nil, err
	}

	ts := now()
	res, err := r.db.Insert("bio_pages").Rows(goqu.Record{
		"domain_id":  page.DomainID,
		"slug":       page.Slug,
		"title":      nullable(page.Title),
		"bio":        nullable(page.Bio),
		"logo_url":   nullable(page.LogoURL),
		"theme":      theme,
		"created_at": ts,
		"updated_at": ts,
	}).Executor().ExecContext(ctx)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, internal.ErrSlugExists
		}
		return nil, fmt.Errorf("failed to create bio page: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read bio page id: %w", err)
	}

	log.Info().Int64("id", id).Str("slug", page.Slug).Msg("bio page created")
	return r.GetByID(ctx, id)
}

func (r *BioRepo) Update(ctx context.Context, id int64, upd BioUpdate) (*internal.BioPage, error) {
	record := goqu.Record{"updated_at": now()}
	if upd.Slug != nil {
		record["slug"] = *upd.Slug
	}
	if upd.Title != nil {
		record["title"] = nullable(*upd.Title)
	}
	if upd.Bio != nil {
		record["bio"] = nullable(*upd.Bio)
	}
	if upd.LogoURL != nil {
		record["logo_url"] = nullable(*upd.LogoURL)
	}
	if upd.Theme != nil {
		theme, err := encodeTheme(*upd.Theme)
		if err != nil {
			return nil, err
		}
		record["theme"] = theme
	}

	res, err := r.db.Update("bio_pages").Set(record).Where(goqu.C("id").Eq(id)).Executor().ExecContext(ctx)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, internal.ErrSlugExists
		}
		return nil, fmt.Errorf("failed to update bio page: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, internal.ErrBioPageNotFound
	}
	return r.GetByID(ctx, id)
}

func (r *BioRepo) Delete(ctx context.Context, id int64) error {
	res, err := r.db.Delete("bio_pages").Where(goqu.C("id").Eq(id)).Executor().ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete bio page: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return internal.ErrBioPageNotFound
	}
	log.Info().Int64("id", id).Msg("bio page deleted")
	return nil
}

// CreateLink appends a link after the current last one.
func (r *BioRepo) CreateLink(ctx context.Context, link internal.BioLink) (*internal.BioLink, error) {
	var maxOrder sql.NullInt64
	_, err := r.db.From("bio_links").
		Select(goqu.MAX("sort_order")).
		Where(goqu.C("bio_page_id").Eq(link.BioPageID)).
		ScanValContext(ctx, &maxOrder)
	if err != nil {
		return nil, fmt.Errorf("failed to read sort order: %w", err)
	}
	sortOrder := 0
	if maxOrder.Valid {
		sortOrder = int(maxOrder.Int64) + 1
	}

	res, err := r.db.Insert("bio_links").Rows(goqu.Record{
		"bio_page_id": link.BioPageID,
		"title":       link.Title,
		"url":         link.URL,
		"icon":        nullable(link.Icon),
		"sort_order":  sortOrder,
		"is_active":   true,
		"created_at":  now(),
	}).Executor().ExecContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create bio link: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read bio link id: %w", err)
	}
	return r.getLink(ctx, link.BioPageID, id)
}

func (r *BioRepo) UpdateLink(ctx context.Context, pageID, linkID int64, upd BioLinkUpdate) (*internal.BioLink, error) {
	record := goqu.Record{}
	if upd.Title != nil {
		record["title"] = *upd.Title
	}
	if upd.URL != nil {
		record["url"] = *upd.URL
	}
	if upd.Icon != nil {
		record["icon"] = nullable(*upd.Icon)
	}
	if upd.IsActive != nil {
		record["is_active"] = *upd.IsActive
	}
	if len(record) == 0 {
		return r.getLink(ctx, pageID, linkID)
	}

	res, err := r.db.Update("bio_links").Set(record).
		Where(goqu.C("id").Eq(linkID), goqu.C("bio_page_id").Eq(pageID)).
		Executor().ExecContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to update bio link: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, internal.ErrNotFound
	}
	return r.getLink(ctx, pageID, linkID)
}

func (r *BioRepo) DeleteLink(ctx context.Context, pageID, linkID int64) error {
	res, err := r.db.Delete("bio_links").
		Where(goqu.C("id").Eq(linkID), goqu.C("bio_page_id").Eq(pageID)).
		Executor().ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete bio link: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return internal.ErrNotFound
	}
	return nil
}

// Reorder assigns sort_order by position in linkIDs. Ids that do not belong
// to the page are ignored.
func (r *BioRepo) Reorder(ctx context.Context, pageID int64, linkIDs []int64) error {
	err := r.db.WithTx(func(tx *goqu.TxDatabase) error {
		for i, id := range linkIDs {
			_, err := tx.Update("bio_links").
				Set(goqu.Record{"sort_order": i}).
				Where(goqu.C("id").Eq(id), goqu.C("bio_page_id").Eq(pageID)).
				Executor().ExecContext(ctx)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to reorder bio links: %w", err)
	}
	return nil
}

func (r *BioRepo) getLink(ctx context.Context, pageID, linkID int64) (*internal.BioLink, error) {
	var row bioLinkRow
	found, err := r.db.From("bio_links").
		Select(plain(bioLinkColumns)...).
		Where(goqu.C("id").Eq(linkID), goqu.C("bio_page_id").Eq(pageID)).
		ScanStructContext(ctx, &row)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch bio link: %w", err)
	}
	if !found {
		return nil, internal.ErrNotFound
	}
	link := row.toDomain()
	return &link, nil
}

func (r *BioRepo) loadLinks(ctx context.Context, pages []*internal.BioPage) error {
	if len(pages) == 0 {
		return nil
	}
	ids := lo.Map(pages, func(p *internal.BioPage, _ int) int64 { return p.ID })

	var rows []bioLinkRow
	err := r.db.From("bio_links").
		Select(plain(bioLinkColumns)...).
		Where(goqu.C("bio_page_id").In(ids)).
		Order(goqu.C("sort_order").Asc(), goqu.C("id").Asc()).
		ScanStructsContext(ctx, &rows)
	if err != nil {
		return fmt.Errorf("failed to load bio links: %w", err)
	}

	byPage := lo.GroupBy(rows, func(l bioLinkRow) int64 { return l.BioPageID })
	for _, page := range pages {
		page.Links = lo.Map(byPage[page.ID], func(row bioLinkRow, _ int) internal.BioLink {
			return row.toDomain()
		})
	}
	return nil
}

func encodeTheme(theme internal.BioTheme) (string, error) {
	b, err := json.Marshal(theme)
	if err != nil {
		return "", fmt.Errorf("failed to encode theme: %w", err)
	}
	return string(b), nil
}

func (r *bioRow) toDomain() *internal.BioPage {
	var theme internal.BioTheme
	if r.Theme != "" {
		if err := json.Unmarshal([]byte(r.Theme), &theme); err != nil {
			log.Warn().Err(err).Int64("id", r.ID).Msg("ignoring malformed bio theme")
		}
	}

	return &internal.BioPage{
		ID:        r.ID,
		DomainID:  r.DomainID,
		Host:      r.Host,
		Slug:      r.Slug,
		Title:     lo.FromPtr(r.Title),
		Bio:       lo.FromPtr(r.Bio),
		LogoURL:   lo.FromPtr(r.LogoURL),
		Theme:     theme,
		CreatedAt: r.CreatedAt.Time(),
		UpdatedAt: r.UpdatedAt.Time(),
		Links:     []internal.BioLink{},
	}
}

func (r bioLinkRow) toDomain() internal.BioLink {
	return internal.BioLink{
		ID:        r.ID,
		BioPageID: r.BioPageID,
		Title:     r.Title,
		URL:       r.URL,
		Icon:      lo.FromPtr(r.Icon),
		SortOrder: r.SortOrder,
		IsActive:  r.IsActive,
		CreatedAt: r.CreatedAt.Time(),
	}
}
