package repo

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/abdusco/linkhub/internal"
	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

var clickColumns = []string{
	"id", "short_link_id", "param", "ip", "user_agent", "referer", "device",
	"utm_source", "utm_medium", "utm_campaign", "clicked_at",
}

type clickRow struct {
	ID          int64   `db:"id"`
	ShortLinkID *int64  `db:"short_link_id"`
	Param       *string `db:"param"`
	IP          *string `db:"ip"`
	UserAgent   *string `db:"user_agent"`
	Referer     *string `db:"referer"`
	Device      *string `db:"device"`
	UTMSource   *string `db:"utm_source"`
	UTMMedium   *string `db:"utm_medium"`
	UTMCampaign *string `db:"utm_campaign"`
	ClickedAt   Date    `db:"clicked_at"`
}

type clickEntryRow struct {
	clickRow
	Slug *string `db:"slug"`
	Host *string `db:"host"`
}

type clickStatsRow struct {
	ShortLinkID int64 `db:"short_link_id"`
	Total       int64 `db:"total"`
	Unique      int64 `db:"unique_ips"`
}

type ClicksRepo struct {
	db *goqu.Database
}

func NewClicksRepo(db *sql.DB) *ClicksRepo {
	return &ClicksRepo{db: newBuilder(db)}
}

func (r *ClicksRepo) InsertClickLog(ctx context.Context, click *internal.ClickLog) error {
	log.Debug().Int64("link_id", click.ShortLinkID).Str("ip", click.IP).Msg("recording click")

	clickedAt := Date(click.ClickedAt)
	if click.ClickedAt.IsZero() {
		clickedAt = now()
	}

	res, err := r.db.Insert("click_logs").Rows(goqu.Record{
		"short_link_id": click.ShortLinkID,
		"param":         nullable(click.Param),
		"ip":            nullable(click.IP),
		"user_agent":    nullable(click.UserAgent),
		"referer":       nullable(click.Referer),
		"device":        nullable(click.Device),
		"utm_source":    nullable(click.UTMSource),
		"utm_medium":    nullable(click.UTMMedium),
		"utm_campaign":  nullable(click.UTMCampaign),
		"clicked_at":    clickedAt,
	}).Executor().ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to insert click log: %w", err)
	}

	if id, err := res.LastInsertId(); err == nil {
		click.ID = id
	}
	log.Debug().Int64("link_id", click.ShortLinkID).Msg("click recorded successfully")
	return nil
}

// Stats returns total and unique-IP click counts for one link.
func (r *ClicksRepo) Stats(ctx context.Context, linkID int64) (internal.ClickStats, error) {
	stats, err := r.stats(ctx, goqu.C("short_link_id").Eq(linkID))
	if err != nil {
		return internal.ClickStats{}, err
	}
	if len(stats) == 0 {
		return internal.ClickStats{ShortLinkID: linkID}, nil
	}
	return stats[0], nil
}

// StatsAll returns click counts for every link that has been clicked.
func (r *ClicksRepo) StatsAll(ctx context.Context) ([]internal.ClickStats, error) {
	return r.stats(ctx, goqu.C("short_link_id").IsNotNull())
}

func (r *ClicksRepo) stats(ctx context.Context, where exp.Expression) ([]internal.ClickStats, error) {
	var rows []clickStatsRow
	err := r.db.From("click_logs").
		Select(
			goqu.C("short_link_id"),
			goqu.COUNT("*").As("total"),
			goqu.COUNT(goqu.DISTINCT("ip")).As("unique_ips"),
		).
		Where(where).
		GroupBy("short_link_id").
		Order(goqu.C("short_link_id").Asc()).
		ScanStructsContext(ctx, &rows)
	if err != nil {
		return nil, fmt.Errorf("failed to compute click stats: %w", err)
	}

	return lo.Map(rows, func(row clickStatsRow, _ int) internal.ClickStats {
		return internal.ClickStats{ShortLinkID: row.ShortLinkID, Total: row.Total, Unique: row.Unique}
	}), nil
}

// Recent returns the latest click rows with the slug and host of their link.
func (r *ClicksRepo) Recent(ctx context.Context, limit uint) ([]internal.ClickEntry, error) {
	var rows []clickEntryRow
	err := r.db.From(goqu.T("click_logs").As("c")).
		LeftJoin(goqu.T("short_links").As("l"), goqu.On(goqu.I("l.id").Eq(goqu.I("c.short_link_id")))).
		LeftJoin(goqu.T("domains").As("d"), goqu.On(goqu.I("d.id").Eq(goqu.I("l.domain_id")))).
		Select(append(qualified("c", clickColumns), goqu.I("l.slug").As("slug"), goqu.I("d.domain").As("host"))...).
		Order(goqu.I("c.clicked_at").Desc(), goqu.I("c.id").Desc()).
		Limit(limit).
		ScanStructsContext(ctx, &rows)
	if err != nil {
		return nil, fmt.Errorf("failed to list clicks: %w", err)
	}

	return lo.Map(rows, func(row clickEntryRow, _ int) internal.ClickEntry {
		return internal.ClickEntry{
			ClickLog: row.toDomain(),
			Slug:     lo.FromPtr(row.Slug),
			Host:     lo.FromPtr(row.Host),
		}
	}), nil
}

func (r clickRow) toDomain() internal.ClickLog {
	return internal.ClickLog{
		ID:          r.ID,
		ShortLinkID: lo.FromPtr(r.ShortLinkID),
		Param:       lo.FromPtr(r.Param),
		IP:          lo.FromPtr(r.IP),
		UserAgent:   lo.FromPtr(r.UserAgent),
		Referer:     lo.FromPtr(r.Referer),
		Device:      lo.FromPtr(r.Device),
		UTMSource:   lo.FromPtr(r.UTMSource),
		UTMMedium:   lo.FromPtr(r.UTMMedium),
		UTMCampaign: lo.FromPtr(r.UTMCampaign),
		ClickedAt:   time.Time(r.ClickedAt),
	}
}
