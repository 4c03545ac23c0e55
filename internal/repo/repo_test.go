package repo

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/abdusco/linkhub/internal"
	"github.com/abdusco/linkhub/internal/db"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	instance, err := db.Open(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { instance.Close() })
	return instance
}

func newTestDomain(t *testing.T, instance *sql.DB, host string) *internal.Domain {
	t.Helper()
	d, err := NewDomainsRepo(instance).Create(context.Background(), host, "")
	require.NoError(t, err)
	return d
}

func TestDomainsRepo(t *testing.T) {
	ctx := context.Background()
	domains := NewDomainsRepo(newTestDB(t))

	created, err := domains.Create(ctx, " Go.Example.COM ", "Main")
	require.NoError(t, err)
	assert.Equal(t, "go.example.com", created.Domain)
	assert.Equal(t, "Main", created.Name)
	assert.False(t, created.CreatedAt.IsZero())

	_, err = domains.Create(ctx, "go.example.com", "")
	assert.ErrorIs(t, err, internal.ErrConflict)

	_, err = domains.Create(ctx, "bio.example.com", "")
	require.NoError(t, err)

	all, err := domains.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"bio.example.com", "go.example.com"}, lo.Map(all, func(d internal.Domain, _ int) string { return d.Domain }))

	require.NoError(t, domains.Delete(ctx, created.ID))
	assert.ErrorIs(t, domains.Delete(ctx, created.ID), internal.ErrDomainNotFound)
	_, err = domains.GetByID(ctx, created.ID)
	assert.ErrorIs(t, err, internal.ErrDomainNotFound)
}

func TestLinksRepo_CreateAndLookup(t *testing.T) {
	ctx := context.Background()
	instance := newTestDB(t)
	domain := newTestDomain(t, instance, "go.example.com")
	links := NewLinksRepo(instance)

	created, err := links.Create(ctx, &internal.ShortLink{
		DomainID:  domain.ID,
		Slug:      "spring",
		Name:      "Spring sale",
		TargetURL: "https://shop.example/spring",
		IsActive:  true,
		AppendUTM: true,
		UTM:       internal.UTM{Source: "link", Campaign: "spring"},
		PixelID:   "123",
	})
	require.NoError(t, err)
	assert.Equal(t, "go.example.com", created.Host)
	assert.Equal(t, internal.UTM{Source: "link", Campaign: "spring"}, created.UTM)
	assert.True(t, created.AppendUTM)
	assert.False(t, created.UseABTest)
	assert.Empty(t, created.GTMID)
	assert.NotNil(t, created.Targets)

	found, err := links.LookupShortLink(ctx, "go.example.com", "spring")
	require.NoError(t, err)
	assert.Equal(t, created.ID, found.ID)
	assert.Equal(t, "123", found.PixelID)

	_, err = links.LookupShortLink(ctx, "other.example.com", "spring")
	assert.ErrorIs(t, err, internal.ErrLinkNotFound)

	_, err = links.Create(ctx, &internal.ShortLink{DomainID: domain.ID, Slug: "spring", TargetURL: "https://x.example", IsActive: true})
	assert.ErrorIs(t, err, internal.ErrSlugExists)
}

func TestLinksRepo_InactiveLinksAreNotFound(t *testing.T) {
	ctx := context.Background()
	instance := newTestDB(t)
	domain := newTestDomain(t, instance, "go.example.com")
	links := NewLinksRepo(instance)

	created, err := links.Create(ctx, &internal.ShortLink{DomainID: domain.ID, Slug: "off", TargetURL: "https://x.example", IsActive: true})
	require.NoError(t, err)

	updated, err := links.Update(ctx, created.ID, LinkUpdate{IsActive: lo.ToPtr(false), Name: lo.ToPtr("renamed")})
	require.NoError(t, err)
	assert.False(t, updated.IsActive)
	assert.Equal(t, "renamed", updated.Name)
	assert.Equal(t, "https://x.example", updated.TargetURL)

	_, err = links.LookupShortLink(ctx, "go.example.com", "off")
	assert.ErrorIs(t, err, internal.ErrLinkNotFound)

	_, err = links.Update(ctx, 9999, LinkUpdate{Name: lo.ToPtr("x")})
	assert.ErrorIs(t, err, internal.ErrLinkNotFound)
}

func TestLinksRepo_TargetsToggleABTest(t *testing.T) {
	ctx := context.Background()
	instance := newTestDB(t)
	domain := newTestDomain(t, instance, "go.example.com")
	links := NewLinksRepo(instance)

	link, err := links.Create(ctx, &internal.ShortLink{DomainID: domain.ID, Slug: "ab", TargetURL: "https://primary.example", IsActive: true})
	require.NoError(t, err)

	first, err := links.CreateTarget(ctx, internal.LinkTarget{ShortLinkID: link.ID, TargetURL: "https://a.example"})
	require.NoError(t, err)
	assert.Equal(t, 1, first.Weight)
	assert.True(t, first.IsActive)

	second, err := links.CreateTarget(ctx, internal.LinkTarget{ShortLinkID: link.ID, TargetURL: "https://b.example", Weight: 3, Name: "B"})
	require.NoError(t, err)

	found, err := links.LookupShortLink(ctx, "go.example.com", "ab")
	require.NoError(t, err)
	assert.True(t, found.UseABTest)
	require.Len(t, found.Targets, 2)
	assert.Equal(t, "https://a.example", found.Targets[0].TargetURL)
	assert.Equal(t, 3, found.Targets[1].Weight)

	updated, err := links.UpdateTarget(ctx, link.ID, second.ID, TargetUpdate{IsActive: lo.ToPtr(false)})
	require.NoError(t, err)
	assert.False(t, updated.IsActive)

	require.NoError(t, links.DeleteTarget(ctx, link.ID, first.ID))
	found, err = links.GetByID(ctx, link.ID)
	require.NoError(t, err)
	assert.True(t, found.UseABTest)

	require.NoError(t, links.DeleteTarget(ctx, link.ID, second.ID))
	found, err = links.GetByID(ctx, link.ID)
	require.NoError(t, err)
	assert.False(t, found.UseABTest)
	assert.Empty(t, found.Targets)

	assert.ErrorIs(t, links.DeleteTarget(ctx, link.ID, second.ID), internal.ErrNotFound)
}

func TestLinksRepo_Rules(t *testing.T) {
	ctx := context.Background()
	instance := newTestDB(t)
	domain := newTestDomain(t, instance, "go.example.com")
	links := NewLinksRepo(instance)

	link, err := links.Create(ctx, &internal.ShortLink{DomainID: domain.ID, Slug: "r", TargetURL: "https://x.example", IsActive: true})
	require.NoError(t, err)

	fb, err := links.CreateRule(ctx, internal.ParamUtmRule{ShortLinkID: link.ID, ParamPattern: "FB", UTM: internal.UTM{Source: "facebook"}})
	require.NoError(t, err)
	assert.Equal(t, "facebook", fb.UTM.Source)
	assert.Empty(t, fb.UTM.Medium)

	_, err = links.CreateRule(ctx, internal.ParamUtmRule{ShortLinkID: link.ID, ParamPattern: "FB"})
	assert.ErrorIs(t, err, internal.ErrConflict)

	_, err = links.CreateRule(ctx, internal.ParamUtmRule{ShortLinkID: link.ID, ParamPattern: "Ads/FB", UTM: internal.UTM{Medium: "cpc"}})
	require.NoError(t, err)

	rules, err := links.ListRules(ctx, link.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"Ads/FB", "FB"}, lo.Map(rules, func(r internal.ParamUtmRule, _ int) string { return r.ParamPattern }))

	require.NoError(t, links.DeleteRule(ctx, link.ID, fb.ID))
	found, err := links.LookupShortLink(ctx, "go.example.com", "r")
	require.NoError(t, err)
	require.Len(t, found.UTMRules, 1)
	assert.Equal(t, "Ads/FB", found.UTMRules[0].ParamPattern)
}

func TestLinksRepo_ListAndDelete(t *testing.T) {
	ctx := context.Background()
	instance := newTestDB(t)
	a := newTestDomain(t, instance, "a.example")
	b := newTestDomain(t, instance, "b.example")
	links := NewLinksRepo(instance)

	for _, d := range []*internal.Domain{a, a, b} {
		_, err := links.Create(ctx, &internal.ShortLink{DomainID: d.ID, Slug: GenerateSlug(), TargetURL: "https://x.example", IsActive: true})
		require.NoError(t, err)
	}

	all, err := links.List(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	onlyA, err := links.List(ctx, a.ID)
	require.NoError(t, err)
	assert.Len(t, onlyA, 2)

	require.NoError(t, links.Delete(ctx, onlyA[0].ID))
	assert.ErrorIs(t, links.Delete(ctx, onlyA[0].ID), internal.ErrLinkNotFound)
}

func TestLinksRepo_QrSettings(t *testing.T) {
	ctx := context.Background()
	instance := newTestDB(t)
	domain := newTestDomain(t, instance, "go.example.com")
	links := NewLinksRepo(instance)

	link, err := links.Create(ctx, &internal.ShortLink{DomainID: domain.ID, Slug: "qr", TargetURL: "https://x.example", IsActive: true})
	require.NoError(t, err)

	empty, err := links.GetQrSetting(ctx, link.ID)
	require.NoError(t, err)
	assert.Equal(t, internal.QrSetting{ShortLinkID: link.ID}, empty)

	require.NoError(t, links.UpsertQrSetting(ctx, internal.QrSetting{ShortLinkID: link.ID, FgColor: "#ff0000", Size: 300}))
	require.NoError(t, links.UpsertQrSetting(ctx, internal.QrSetting{ShortLinkID: link.ID, BgColor: "#eeeeee", Size: 500}))

	got, err := links.GetQrSetting(ctx, link.ID)
	require.NoError(t, err)
	assert.Equal(t, internal.QrSetting{ShortLinkID: link.ID, BgColor: "#eeeeee", Size: 500}, got)
}

func TestClicksRepo(t *testing.T) {
	ctx := context.Background()
	instance := newTestDB(t)
	domain := newTestDomain(t, instance, "go.example.com")
	links := NewLinksRepo(instance)
	clicks := NewClicksRepo(instance)

	link, err := links.Create(ctx, &internal.ShortLink{DomainID: domain.ID, Slug: "c", TargetURL: "https://x.example", IsActive: true})
	require.NoError(t, err)

	for _, ip := range []string{"1.1.1.1", "1.1.1.1", "2.2.2.2"} {
		click := &internal.ClickLog{ShortLinkID: link.ID, IP: ip, Device: "desktop", UTMSource: "fb"}
		require.NoError(t, clicks.InsertClickLog(ctx, click))
		assert.NotZero(t, click.ID)
	}

	stats, err := clicks.Stats(ctx, link.ID)
	require.NoError(t, err)
	assert.Equal(t, internal.ClickStats{ShortLinkID: link.ID, Total: 3, Unique: 2}, stats)

	none, err := clicks.Stats(ctx, 9999)
	require.NoError(t, err)
	assert.Equal(t, internal.ClickStats{ShortLinkID: 9999}, none)

	all, err := clicks.StatsAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	recent, err := clicks.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "c", recent[0].Slug)
	assert.Equal(t, "go.example.com", recent[0].Host)
	assert.Equal(t, "2.2.2.2", recent[0].IP)
	assert.Empty(t, recent[0].Param)
	assert.Equal(t, "fb", recent[0].UTMSource)
}

func TestBioRepo(t *testing.T) {
	ctx := context.Background()
	instance := newTestDB(t)
	domain := newTestDomain(t, instance, "bio.example.com")
	bios := NewBioRepo(instance)

	page, err := bios.Create(ctx, &internal.BioPage{
		DomainID: domain.ID,
		Slug:     "shop",
		Title:    "Shop",
		Theme:    internal.BioTheme{BgColor: "#101010", ButtonStyle: "pill"},
	})
	require.NoError(t, err)
	assert.Equal(t, "bio.example.com", page.Host)
	assert.Equal(t, internal.BioTheme{BgColor: "#101010", ButtonStyle: "pill"}, page.Theme)
	assert.Empty(t, page.Links)

	_, err = bios.Create(ctx, &internal.BioPage{DomainID: domain.ID, Slug: "shop"})
	assert.ErrorIs(t, err, internal.ErrSlugExists)

	var ids []int64
	for _, title := range []string{"one", "two", "three"} {
		link, err := bios.CreateLink(ctx, internal.BioLink{BioPageID: page.ID, Title: title, URL: "https://" + title + ".example"})
		require.NoError(t, err)
		assert.Equal(t, len(ids), link.SortOrder)
		assert.True(t, link.IsActive)
		ids = append(ids, link.ID)
	}

	require.NoError(t, bios.Reorder(ctx, page.ID, []int64{ids[2], ids[0], ids[1]}))
	_, err = bios.UpdateLink(ctx, page.ID, ids[1], BioLinkUpdate{IsActive: lo.ToPtr(false)})
	require.NoError(t, err)

	found, err := bios.LookupBioPage(ctx, "bio.example.com", "shop")
	require.NoError(t, err)
	assert.Equal(t, []string{"three", "one", "two"}, lo.Map(found.Links, func(l internal.BioLink, _ int) string { return l.Title }))
	assert.False(t, found.Links[2].IsActive)

	_, err = bios.LookupBioPage(ctx, "bio.example.com", "nope")
	assert.ErrorIs(t, err, internal.ErrBioPageNotFound)

	updated, err := bios.Update(ctx, page.ID, BioUpdate{Title: lo.ToPtr("New"), Theme: &internal.BioTheme{TextColor: "#fff"}})
	require.NoError(t, err)
	assert.Equal(t, "New", updated.Title)
	assert.Equal(t, internal.BioTheme{TextColor: "#fff"}, updated.Theme)

	require.NoError(t, bios.DeleteLink(ctx, page.ID, ids[0]))
	assert.ErrorIs(t, bios.DeleteLink(ctx, page.ID, ids[0]), internal.ErrNotFound)

	require.NoError(t, bios.Delete(ctx, page.ID))
	_, err = bios.GetByID(ctx, page.ID)
	assert.ErrorIs(t, err, internal.ErrBioPageNotFound)
}

func TestLinksRepo_TargetWritesRollBackWithABFlag(t *testing.T) {
	ctx := context.Background()
	instance := newTestDB(t)
	domain := newTestDomain(t, instance, "go.example.com")
	links := NewLinksRepo(instance)

	link, err := links.Create(ctx, &internal.ShortLink{DomainID: domain.ID, Slug: "tx", TargetURL: "https://primary.example", IsActive: true})
	require.NoError(t, err)
	kept, err := links.CreateTarget(ctx, internal.LinkTarget{ShortLinkID: link.ID, TargetURL: "https://a.example"})
	require.NoError(t, err)

	_, err = instance.ExecContext(ctx, `
		CREATE TRIGGER block_ab_toggle BEFORE UPDATE OF use_ab_test ON short_links
		BEGIN SELECT RAISE(ABORT, 'toggle blocked'); END`)
	require.NoError(t, err)

	_, err = links.CreateTarget(ctx, internal.LinkTarget{ShortLinkID: link.ID, TargetURL: "https://b.example"})
	require.ErrorContains(t, err, "toggle blocked")

	err = links.DeleteTarget(ctx, link.ID, kept.ID)
	require.ErrorContains(t, err, "toggle blocked")

	targets, err := links.ListTargets(ctx, link.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a.example"}, lo.Map(targets, func(target internal.LinkTarget, _ int) string { return target.TargetURL }))

	found, err := links.GetByID(ctx, link.ID)
	require.NoError(t, err)
	assert.True(t, found.UseABTest)
}
