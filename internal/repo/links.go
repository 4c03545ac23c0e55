package repo

import (
	"context"
	"database/sql"
	"fmt"
	"math/rand/v2"

	"github.com/abdusco/linkhub/internal"
	"github.com/doug-martin/goqu/v9"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

var linkColumns = []string{
	"id", "domain_id", "slug", "name", "target_url", "is_active", "use_ab_test", "append_utm",
	"utm_source", "utm_medium", "utm_campaign", "utm_term", "utm_content",
	"pixel_id", "gtm_id", "ga_id", "created_at", "updated_at",
}

type linkRow struct {
	ID          int64   `db:"id"`
	DomainID    int64   `db:"domain_id"`
	Host        string  `db:"host"`
	Slug        string  `db:"slug"`
	Name        *string `db:"name"`
	TargetURL   string  `db:"target_url"`
	IsActive    bool    `db:"is_active"`
	UseABTest   bool    `db:"use_ab_test"`
	AppendUTM   bool    `db:"append_utm"`
	UTMSource   *string `db:"utm_source"`
	UTMMedium   *string `db:"utm_medium"`
	UTMCampaign *string `db:"utm_campaign"`
	UTMTerm     *string `db:"utm_term"`
	UTMContent  *string `db:"utm_content"`
	PixelID     *string `db:"pixel_id"`
	GTMID       *string `db:"gtm_id"`
	GAID        *string `db:"ga_id"`
	CreatedAt   Date    `db:"created_at"`
	UpdatedAt   Date    `db:"updated_at"`
}

var targetColumns = []string{"id", "short_link_id", "target_url", "weight", "name", "is_active", "created_at"}

type targetRow struct {
	ID          int64   `db:"id"`
	ShortLinkID int64   `db:"short_link_id"`
	TargetURL   string  `db:"target_url"`
	Weight      int     `db:"weight"`
	Name        *string `db:"name"`
	IsActive    bool    `db:"is_active"`
	CreatedAt   Date    `db:"created_at"`
}

var ruleColumns = []string{
	"id", "short_link_id", "param_pattern",
	"utm_source", "utm_medium", "utm_campaign", "utm_term", "utm_content", "created_at",
}

type ruleRow struct {
	ID           int64   `db:"id"`
	ShortLinkID  int64   `db:"short_link_id"`
	ParamPattern string  `db:"param_pattern"`
	UTMSource    *string `db:"utm_source"`
	UTMMedium    *string `db:"utm_medium"`
	UTMCampaign  *string `db:"utm_campaign"`
	UTMTerm      *string `db:"utm_term"`
	UTMContent   *string `db:"utm_content"`
	CreatedAt    Date    `db:"created_at"`
}

type qrRow struct {
	ShortLinkID int64   `db:"short_link_id"`
	FgColor     *string `db:"fg_color"`
	BgColor     *string `db:"bg_color"`
	Size        *int    `db:"size"`
}

// LinkUpdate carries the fields of a partial link update; nil fields are
// left unchanged.
type LinkUpdate struct {
	Slug      *string
	Name      *string
	TargetURL *string
	IsActive  *bool
	UseABTest *bool
	AppendUTM *bool
	UTM       *internal.UTM
	PixelID   *string
	GTMID     *string
	GAID      *string
}

type TargetUpdate struct {
	TargetURL *string
	Weight    *int
	Name      *string
	IsActive  *bool
}

type LinksRepo struct {
	db *goqu.Database
}

func NewLinksRepo(db *sql.DB) *LinksRepo {
	return &LinksRepo{db: newBuilder(db)}
}

func (r *LinksRepo) selectLinks() *goqu.SelectDataset {
	return r.db.From(goqu.T("short_links").As("l")).
		InnerJoin(goqu.T("domains").As("d"), goqu.On(goqu.I("d.id").Eq(goqu.I("l.domain_id")))).
		Select(append(qualified("l", linkColumns), goqu.I("d.domain").As("host"))...)
}

// LookupShortLink returns the active link for host and slug together with
// its targets and UTM rules.
func (r *LinksRepo) LookupShortLink(ctx context.Context, host, slug string) (*internal.ShortLink, error) {
	log.Debug().Str("host", host).Str("slug", slug).Msg("looking up short link")

	query := r.selectLinks().Where(
		goqu.I("d.domain").Eq(host),
		goqu.I("l.slug").Eq(slug),
		goqu.I("l.is_active").Eq(1),
	)

	var row linkRow
	found, err := query.ScanStructContext(ctx, &row)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch link: %w", err)
	}
	if !found {
		return nil, internal.ErrLinkNotFound
	}

	link := row.toDomain()
	if err := r.loadChildren(ctx, []*internal.ShortLink{link}); err != nil {
		return nil, err
	}
	return link, nil
}

func (r *LinksRepo) GetByID(ctx context.Context, id int64) (*internal.ShortLink, error) {
	var row linkRow
	found, err := r.selectLinks().Where(goqu.I("l.id").Eq(id)).ScanStructContext(ctx, &row)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch link: %w", err)
	}
	if !found {
		return nil, internal.ErrLinkNotFound
	}

	link := row.toDomain()
	if err := r.loadChildren(ctx, []*internal.ShortLink{link}); err != nil {
		return nil, err
	}
	return link, nil
}

// List returns all links, newest first. domainID of zero lists every domain.
func (r *LinksRepo) List(ctx context.Context, domainID int64) ([]*internal.ShortLink, error) {
	query := r.selectLinks().Order(goqu.I("l.created_at").Desc(), goqu.I("l.id").Desc())
	if domainID != 0 {
		query = query.Where(goqu.I("l.domain_id").Eq(domainID))
	}

	var rows []linkRow
	if err := query.ScanStructsContext(ctx, &rows); err != nil {
		return nil, fmt.Errorf("failed to list links: %w", err)
	}

	links := lo.Map(rows, func(row linkRow, _ int) *internal.ShortLink {
		return row.toDomain()
	})
	if err := r.loadChildren(ctx, links); err != nil {
		return nil, err
	}
	return links, nil
}

func (r *LinksRepo) Create(ctx context.Context, link *internal.ShortLink) (*internal.ShortLink, error) {
	log.Debug().Int64("domain_id", link.DomainID).Str("slug", link.Slug).Msg("creating link")

	ts := now()
	record := goqu.Record{
		"domain_id":   link.DomainID,
		"slug":        link.Slug,
		"name":        nullable(link.Name),
		"target_url":  link.TargetURL,
		"is_active":   link.IsActive,
		"use_ab_test": link.UseABTest,
		"append_utm":  link.AppendUTM,
		"pixel_id":    nullable(link.PixelID),
		"gtm_id":      nullable(link.GTMID),
		"ga_id":       nullable(link.GAID),
		"created_at":  ts,
		"updated_at":  ts,
	}
	for k, v := range utmRecord(link.UTM) {
		record[k] = v
	}

	res, err := r.db.Insert("short_links").Rows(record).Executor().ExecContext(ctx)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, internal.ErrSlugExists
		}
		return nil, fmt.Errorf("failed to create link: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read link id: %w", err)
	}

	log.Info().Int64("id", id).Str("slug", link.Slug).Msg("link created successfully")
	return r.GetByID(ctx, id)
}

func (r *LinksRepo) Update(ctx context.Context, id int64, upd LinkUpdate) (*internal.ShortLink, error) {
	record := goqu.Record{"updated_at": now()}
	if upd.Slug != nil {
		record["slug"] = *upd.Slug
	}
	if upd.Name != nil {
		record["name"] = nullable(*upd.Name)
	}
	if upd.TargetURL != nil {
		record["target_url"] = *upd.TargetURL
	}
	if upd.IsActive != nil {
		record["is_active"] = *upd.IsActive
	}
	if upd.UseABTest != nil {
		record["use_ab_test"] = *upd.UseABTest
	}
	if upd.AppendUTM != nil {
		record["append_utm"] = *upd.AppendUTM
	}
	if upd.UTM != nil {
		for k, v := range utmRecord(*upd.UTM) {
			record[k] = v
		}
	}
	if upd.PixelID != nil {
		record["pixel_id"] = nullable(*upd.PixelID)
	}
	if upd.GTMID != nil {
		record["gtm_id"] = nullable(*upd.GTMID)
	}
	if upd.GAID != nil {
		record["ga_id"] = nullable(*upd.GAID)
	}

	res, err := r.db.Update("short_links").Set(record).Where(goqu.C("id").Eq(id)).Executor().ExecContext(ctx)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, internal.ErrSlugExists
		}
		return nil, fmt.Errorf("failed to update link: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, internal.ErrLinkNotFound
	}

	return r.GetByID(ctx, id)
}

func (r *LinksRepo) Delete(ctx context.Context, id int64) error {
	res, err := r.db.Delete("short_links").Where(goqu.C("id").Eq(id)).Executor().ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete link: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return internal.ErrLinkNotFound
	}
	log.Info().Int64("id", id).Msg("link deleted")
	return nil
}

func (r *LinksRepo) ListTargets(ctx context.Context, linkID int64) ([]internal.LinkTarget, error) {
	var rows []targetRow
	err := r.db.From("link_targets").
		Select(plain(targetColumns)...).
		Where(goqu.C("short_link_id").Eq(linkID)).
		Order(goqu.C("id").Asc()).
		ScanStructsContext(ctx, &rows)
	if err != nil {
		return nil, fmt.Errorf("failed to list targets: %w", err)
	}
	return lo.Map(rows, func(row targetRow, _ int) internal.LinkTarget {
		return row.toDomain()
	}), nil
}

// CreateTarget adds a target and turns on A/B testing for the link in one
// transaction.
func (r *LinksRepo) CreateTarget(ctx context.Context, target internal.LinkTarget) (*internal.LinkTarget, error) {
	if target.Weight <= 0 {
		target.Weight = 1
	}

	var id int64
	err := r.db.WithTx(func(tx *goqu.TxDatabase) error {
		res, err := tx.Insert("link_targets").Rows(goqu.Record{
			"short_link_id": target.ShortLinkID,
			"target_url":    target.TargetURL,
			"weight":        target.Weight,
			"name":          nullable(target.Name),
			"is_active":     true,
			"created_at":    now(),
		}).Executor().ExecContext(ctx)
		if err != nil {
			return fmt.Errorf("failed to create target: %w", err)
		}
		if id, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("failed to read target id: %w", err)
		}
		return setABTest(ctx, tx, target.ShortLinkID, true)
	})
	if err != nil {
		return nil, err
	}

	return r.getTarget(ctx, target.ShortLinkID, id)
}

func (r *LinksRepo) UpdateTarget(ctx context.Context, linkID, targetID int64, upd TargetUpdate) (*internal.LinkTarget, error) {
	record := goqu.Record{}
	if upd.TargetURL != nil {
		record["target_url"] = *upd.TargetURL
	}
	if upd.Weight != nil {
		record["weight"] = *upd.Weight
	}
	if upd.Name != nil {
		record["name"] = nullable(*upd.Name)
	}
	if upd.IsActive != nil {
		record["is_active"] = *upd.IsActive
	}
	if len(record) == 0 {
		return r.getTarget(ctx, linkID, targetID)
	}

	res, err := r.db.Update("link_targets").Set(record).
		Where(goqu.C("id").Eq(targetID), goqu.C("short_link_id").Eq(linkID)).
		Executor().ExecContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to update target: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, internal.ErrNotFound
	}
	return r.getTarget(ctx, linkID, targetID)
}

// DeleteTarget removes a target and turns A/B testing off once the link has
// no targets left. Both happen in one transaction.
func (r *LinksRepo) DeleteTarget(ctx context.Context, linkID, targetID int64) error {
	return r.db.WithTx(func(tx *goqu.TxDatabase) error {
		res, err := tx.Delete("link_targets").
			Where(goqu.C("id").Eq(targetID), goqu.C("short_link_id").Eq(linkID)).
			Executor().ExecContext(ctx)
		if err != nil {
			return fmt.Errorf("failed to delete target: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return internal.ErrNotFound
		}

		remaining, err := tx.From("link_targets").Where(goqu.C("short_link_id").Eq(linkID)).CountContext(ctx)
		if err != nil {
			return fmt.Errorf("failed to count targets: %w", err)
		}
		if remaining == 0 {
			return setABTest(ctx, tx, linkID, false)
		}
		return nil
	})
}

func (r *LinksRepo) getTarget(ctx context.Context, linkID, targetID int64) (*internal.LinkTarget, error) {
	var row targetRow
	found, err := r.db.From("link_targets").
		Select(plain(targetColumns)...).
		Where(goqu.C("id").Eq(targetID), goqu.C("short_link_id").Eq(linkID)).
		ScanStructContext(ctx, &row)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch target: %w", err)
	}
	if !found {
		return nil, internal.ErrNotFound
	}
	target := row.toDomain()
	return &target, nil
}

func setABTest(ctx context.Context, tx *goqu.TxDatabase, linkID int64, enabled bool) error {
	_, err := tx.Update("short_links").
		Set(goqu.Record{"use_ab_test": enabled, "updated_at": now()}).
		Where(goqu.C("id").Eq(linkID)).
		Executor().ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to toggle A/B test: %w", err)
	}
	return nil
}

// ListRules returns the rules of a link ordered by pattern.
func (r *LinksRepo) ListRules(ctx context.Context, linkID int64) ([]internal.ParamUtmRule, error) {
	var rows []ruleRow
	err := r.db.From("param_utm_rules").
		Select(plain(ruleColumns)...).
		Where(goqu.C("short_link_id").Eq(linkID)).
		Order(goqu.C("param_pattern").Asc()).
		ScanStructsContext(ctx, &rows)
	if err != nil {
		return nil, fmt.Errorf("failed to list utm rules: %w", err)
	}
	return lo.Map(rows, func(row ruleRow, _ int) internal.ParamUtmRule {
		return row.toDomain()
	}), nil
}

func (r *LinksRepo) CreateRule(ctx context.Context, rule internal.ParamUtmRule) (*internal.ParamUtmRule, error) {
	record := goqu.Record{
		"short_link_id": rule.ShortLinkID,
		"param_pattern": rule.ParamPattern,
		"created_at":    now(),
	}
	for k, v := range utmRecord(rule.UTM) {
		record[k] = v
	}

	res, err := r.db.Insert("param_utm_rules").Rows(record).Executor().ExecContext(ctx)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, internal.ErrConflict
		}
		return nil, fmt.Errorf("failed to create utm rule: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read utm rule id: %w", err)
	}

	var row ruleRow
	found, err := r.db.From("param_utm_rules").
		Select(plain(ruleColumns)...).
		Where(goqu.C("id").Eq(id)).
		ScanStructContext(ctx, &row)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch utm rule: %w", err)
	}
	if !found {
		return nil, internal.ErrNotFound
	}
	created := row.toDomain()
	return &created, nil
}

func (r *LinksRepo) DeleteRule(ctx context.Context, linkID, ruleID int64) error {
	res, err := r.db.Delete("param_utm_rules").
		Where(goqu.C("id").Eq(ruleID), goqu.C("short_link_id").Eq(linkID)).
		Executor().ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete utm rule: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return internal.ErrNotFound
	}
	return nil
}

// GetQrSetting returns the stored QR settings of a link, or a zero value
// carrying only the link id when none are stored.
func (r *LinksRepo) GetQrSetting(ctx context.Context, linkID int64) (internal.QrSetting, error) {
	var row qrRow
	found, err := r.db.From("qr_settings").
		Select("short_link_id", "fg_color", "bg_color", "size").
		Where(goqu.C("short_link_id").Eq(linkID)).
		ScanStructContext(ctx, &row)
	if err != nil {
		return internal.QrSetting{}, fmt.Errorf("failed to fetch qr settings: %w", err)
	}
	if !found {
		return internal.QrSetting{ShortLinkID: linkID}, nil
	}
	return internal.QrSetting{
		ShortLinkID: row.ShortLinkID,
		FgColor:     lo.FromPtr(row.FgColor),
		BgColor:     lo.FromPtr(row.BgColor),
		Size:        lo.FromPtr(row.Size),
	}, nil
}

func (r *LinksRepo) UpsertQrSetting(ctx context.Context, s internal.QrSetting) error {
	record := goqu.Record{
		"short_link_id": s.ShortLinkID,
		"fg_color":      nullable(s.FgColor),
		"bg_color":      nullable(s.BgColor),
		"size":          lo.EmptyableToPtr(s.Size),
	}
	_, err := r.db.Insert("qr_settings").
		Rows(record).
		OnConflict(goqu.DoUpdate("short_link_id", goqu.Record{
			"fg_color": record["fg_color"],
			"bg_color": record["bg_color"],
			"size":     record["size"],
		})).
		Executor().ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to save qr settings: %w", err)
	}
	return nil
}

// loadChildren attaches targets and rules to links with one query per table.
// Both are ordered by id so rule ties keep their insertion order.
func (r *LinksRepo) loadChildren(ctx context.Context, links []*internal.ShortLink) error {
	if len(links) == 0 {
		return nil
	}
	ids := lo.Map(links, func(l *internal.ShortLink, _ int) int64 { return l.ID })

	var targets []targetRow
	err := r.db.From("link_targets").
		Select(plain(targetColumns)...).
		Where(goqu.C("short_link_id").In(ids)).
		Order(goqu.C("id").Asc()).
		ScanStructsContext(ctx, &targets)
	if err != nil {
		return fmt.Errorf("failed to load targets: %w", err)
	}

	var rules []ruleRow
	err = r.db.From("param_utm_rules").
		Select(plain(ruleColumns)...).
		Where(goqu.C("short_link_id").In(ids)).
		Order(goqu.C("id").Asc()).
		ScanStructsContext(ctx, &rules)
	if err != nil {
		return fmt.Errorf("failed to load utm rules: %w", err)
	}

	targetsByLink := lo.GroupBy(targets, func(t targetRow) int64 { return t.ShortLinkID })
	rulesByLink := lo.GroupBy(rules, func(r ruleRow) int64 { return r.ShortLinkID })

	for _, link := range links {
		link.Targets = lo.Map(targetsByLink[link.ID], func(row targetRow, _ int) internal.LinkTarget {
			return row.toDomain()
		})
		link.UTMRules = lo.Map(rulesByLink[link.ID], func(row ruleRow, _ int) internal.ParamUtmRule {
			return row.toDomain()
		})
	}
	return nil
}

// GenerateSlug returns a random six character slug for links created without
// one.
func GenerateSlug() string {
	const charset = "abcdefghijkmnopqrstuvwxyzABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	slug := make([]byte, 6)
	for i := range slug {
		slug[i] = charset[rand.IntN(len(charset))]
	}
	return string(slug)
}

func utmRecord(u internal.UTM) goqu.Record {
	return goqu.Record{
		"utm_source":   nullable(u.Source),
		"utm_medium":   nullable(u.Medium),
		"utm_campaign": nullable(u.Campaign),
		"utm_term":     nullable(u.Term),
		"utm_content":  nullable(u.Content),
	}
}

func (r *linkRow) toDomain() *internal.ShortLink {
	return &internal.ShortLink{
		ID:        r.ID,
		DomainID:  r.DomainID,
		Host:      r.Host,
		Slug:      r.Slug,
		Name:      lo.FromPtr(r.Name),
		TargetURL: r.TargetURL,
		IsActive:  r.IsActive,
		UseABTest: r.UseABTest,
		AppendUTM: r.AppendUTM,
		UTM: internal.UTM{
			Source:   lo.FromPtr(r.UTMSource),
			Medium:   lo.FromPtr(r.UTMMedium),
			Campaign: lo.FromPtr(r.UTMCampaign),
			Term:     lo.FromPtr(r.UTMTerm),
			Content:  lo.FromPtr(r.UTMContent),
		},
		PixelID:   lo.FromPtr(r.PixelID),
		GTMID:     lo.FromPtr(r.GTMID),
		GAID:      lo.FromPtr(r.GAID),
		CreatedAt: r.CreatedAt.Time(),
		UpdatedAt: r.UpdatedAt.Time(),
		Targets:   []internal.LinkTarget{},
		UTMRules:  []internal.ParamUtmRule{},
	}
}

func (r targetRow) toDomain() internal.LinkTarget {
	return internal.LinkTarget{
		ID:          r.ID,
		ShortLinkID: r.ShortLinkID,
		TargetURL:   r.TargetURL,
		Weight:      r.Weight,
		Name:        lo.FromPtr(r.Name),
		IsActive:    r.IsActive,
		CreatedAt:   r.CreatedAt.Time(),
	}
}

func (r ruleRow) toDomain() internal.ParamUtmRule {
	return internal.ParamUtmRule{
		ID:           r.ID,
		ShortLinkID:  r.ShortLinkID,
		ParamPattern: r.ParamPattern,
		UTM: internal.UTM{
			Source:   lo.FromPtr(r.UTMSource),
			Medium:   lo.FromPtr(r.UTMMedium),
			Campaign: lo.FromPtr(r.UTMCampaign),
			Term:     lo.FromPtr(r.UTMTerm),
			Content:  lo.FromPtr(r.UTMContent),
		},
		CreatedAt: r.CreatedAt.Time(),
	}
}
