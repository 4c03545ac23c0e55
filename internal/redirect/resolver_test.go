package redirect

import (
	"context"
	"errors"
	"testing"

	"github.com/abdusco/linkhub/internal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLinks struct {
	links map[string]*internal.ShortLink
	err   error
	hosts []string
}

func (f *fakeLinks) LookupShortLink(_ context.Context, host, slug string) (*internal.ShortLink, error) {
	f.hosts = append(f.hosts, host)
	if f.err != nil {
		return nil, f.err
	}
	link, ok := f.links[host+"/"+slug]
	if !ok {
		return nil, internal.ErrLinkNotFound
	}
	return link, nil
}

type fakeClicks struct {
	clicks []internal.ClickLog
}

func (f *fakeClicks) Record(click internal.ClickLog) {
	f.clicks = append(f.clicks, click)
}

func newTestResolver(links map[string]*internal.ShortLink, opts ...Option) (*Resolver, *fakeLinks, *fakeClicks) {
	gw := &fakeLinks{links: links}
	clicks := &fakeClicks{}
	return NewResolver(gw, clicks, "https://landing.example", opts...), gw, clicks
}

func TestResolve_PlainRedirect(t *testing.T) {
	r, _, clicks := newTestResolver(map[string]*internal.ShortLink{
		"go.example/spring": {ID: 1, Slug: "spring", TargetURL: "https://shop.example/spring", IsActive: true},
	})

	res := r.Resolve(context.Background(), Request{
		Host:      "go.example",
		Slug:      "spring",
		IP:        "203.0.113.1",
		UserAgent: "Mozilla/5.0 (iPhone)",
		Referer:   "https://t.co/",
	})

	assert.Equal(t, OutcomeRedirect, res.Outcome)
	assert.Equal(t, "https://shop.example/spring", res.Location)
	assert.Nil(t, res.Tracking)

	require.Len(t, clicks.clicks, 1)
	click := clicks.clicks[0]
	assert.Equal(t, int64(1), click.ShortLinkID)
	assert.Empty(t, click.Param)
	assert.Equal(t, "203.0.113.1", click.IP)
	assert.Equal(t, DeviceMobile, click.Device)
	assert.Equal(t, "https://t.co/", click.Referer)
	assert.False(t, click.ClickedAt.IsZero())
}

func TestResolve_UnknownSlugGoesToLanding(t *testing.T) {
	r, _, clicks := newTestResolver(map[string]*internal.ShortLink{})

	res := r.Resolve(context.Background(), Request{Host: "go.example", Slug: "missing"})

	assert.Equal(t, OutcomeNotFound, res.Outcome)
	assert.Equal(t, "https://landing.example", res.Location)
	assert.Empty(t, clicks.clicks)
}

func TestResolve_LookupErrorFailsOpen(t *testing.T) {
	r, gw, clicks := newTestResolver(nil)
	gw.err = errors.New("connection refused")

	res := r.Resolve(context.Background(), Request{Host: "go.example", Slug: "spring"})

	assert.Equal(t, OutcomeNotFound, res.Outcome)
	assert.Equal(t, "https://landing.example", res.Location)
	assert.Empty(t, clicks.clicks)
}

func TestResolve_NormalizesHost(t *testing.T) {
	r, gw, _ := newTestResolver(map[string]*internal.ShortLink{
		"go.example/a": {ID: 1, Slug: "a", TargetURL: "https://x.example", IsActive: true},
	})

	res := r.Resolve(context.Background(), Request{Host: "GO.Example.", Slug: "a"})
	assert.Equal(t, OutcomeRedirect, res.Outcome)
	assert.Equal(t, []string{"go.example"}, gw.hosts)
}

func TestResolve_RuleOverridesDefaults(t *testing.T) {
	r, _, clicks := newTestResolver(map[string]*internal.ShortLink{
		"h/spring": {
			ID:        1,
			Slug:      "spring",
			TargetURL: "https://shop.example/",
			IsActive:  true,
			UTM:       internal.UTM{Source: "default", Medium: "link", Campaign: "spring", Content: "banner"},
			UTMRules: []internal.ParamUtmRule{
				{ID: 1, ParamPattern: "FB", UTM: internal.UTM{Source: "facebook", Medium: "post"}},
			},
		},
	})

	res := r.Resolve(context.Background(), Request{Host: "h", Slug: "spring", Param: "FB"})

	assert.Equal(t, internal.UTM{Source: "facebook", Medium: "post", Campaign: "spring", Content: "banner"}, res.UTM)
	// append_utm is off, so the destination is untouched but the click still
	// carries the resolved values.
	assert.Equal(t, "https://shop.example/", res.Location)
	require.Len(t, clicks.clicks, 1)
	assert.Equal(t, "FB", clicks.clicks[0].Param)
	assert.Equal(t, "facebook", clicks.clicks[0].UTMSource)
	assert.Equal(t, "post", clicks.clicks[0].UTMMedium)
	assert.Equal(t, "spring", clicks.clicks[0].UTMCampaign)
}

func TestResolve_LongestRuleWins(t *testing.T) {
	r, _, _ := newTestResolver(map[string]*internal.ShortLink{
		"h/s": {
			ID:        1,
			Slug:      "s",
			TargetURL: "https://shop.example/",
			IsActive:  true,
			AppendUTM: true,
			UTMRules: []internal.ParamUtmRule{
				{ID: 1, ParamPattern: "IG", UTM: internal.UTM{Source: "instagram"}},
				{ID: 2, ParamPattern: "IG/Story", UTM: internal.UTM{Source: "instagram", Medium: "story"}},
			},
		},
	})

	res := r.Resolve(context.Background(), Request{Host: "h", Slug: "s", Param: "IG/Story"})

	assert.Equal(t, "story", res.UTM.Medium)
	assert.Equal(t, "https://shop.example/?utm_source=instagram&utm_medium=story", res.Location)
}

func TestResolve_AppendKeepsExistingUTM(t *testing.T) {
	r, _, _ := newTestResolver(map[string]*internal.ShortLink{
		"h/s": {
			ID:        1,
			Slug:      "s",
			TargetURL: "https://shop.example/?utm_source=existing",
			IsActive:  true,
			AppendUTM: true,
			UTMRules: []internal.ParamUtmRule{
				{ID: 1, ParamPattern: "X", UTM: internal.UTM{Source: "other"}},
			},
		},
	})

	res := r.Resolve(context.Background(), Request{Host: "h", Slug: "s", Param: "X"})
	assert.Equal(t, "https://shop.example/?utm_source=existing", res.Location)
	assert.Equal(t, "other", res.UTM.Source)
}

func TestResolve_ABTest(t *testing.T) {
	link := &internal.ShortLink{
		ID:        1,
		Slug:      "ab",
		TargetURL: "https://primary.example",
		IsActive:  true,
		UseABTest: true,
		Targets: []internal.LinkTarget{
			{ID: 1, TargetURL: "https://a.example", Weight: 1, IsActive: true},
			{ID: 2, TargetURL: "https://b.example", Weight: 1, IsActive: true},
		},
	}
	links := map[string]*internal.ShortLink{"h/ab": link}

	r, _, _ := newTestResolver(links, WithRandom(fixed(0.1)))
	assert.Equal(t, "https://a.example", r.Resolve(context.Background(), Request{Host: "h", Slug: "ab"}).Location)

	r, _, _ = newTestResolver(links, WithRandom(fixed(0.9)))
	assert.Equal(t, "https://b.example", r.Resolve(context.Background(), Request{Host: "h", Slug: "ab"}).Location)
}

func TestResolve_ABTestWithoutActiveTargetsUsesPrimary(t *testing.T) {
	r, _, _ := newTestResolver(map[string]*internal.ShortLink{
		"h/ab": {
			ID:        1,
			Slug:      "ab",
			TargetURL: "https://primary.example",
			IsActive:  true,
			UseABTest: true,
			Targets:   []internal.LinkTarget{{ID: 1, TargetURL: "https://a.example", Weight: 1, IsActive: false}},
		},
	})

	res := r.Resolve(context.Background(), Request{Host: "h", Slug: "ab"})
	assert.Equal(t, "https://primary.example", res.Location)
}

func TestResolve_TrackingRendersInterstitial(t *testing.T) {
	r, _, clicks := newTestResolver(map[string]*internal.ShortLink{
		"h/px": {
			ID:        1,
			Slug:      "px",
			TargetURL: "https://shop.example/",
			IsActive:  true,
			PixelID:   "123456",
			UTM:       internal.UTM{Source: "fb", Medium: "cpc", Campaign: "launch", Term: "ignored"},
		},
	})

	res := r.Resolve(context.Background(), Request{Host: "h", Slug: "px", Param: "ad/1"})

	assert.Equal(t, OutcomeInterstitial, res.Outcome)
	assert.Equal(t, "https://shop.example/", res.Location)
	require.NotNil(t, res.Tracking)
	assert.Equal(t, "123456", res.Tracking.PixelID)
	assert.Equal(t, TrackingPayload{
		UTMSource:   "fb",
		UTMMedium:   "cpc",
		UTMCampaign: "launch",
		Slug:        "px",
		Param:       "ad/1",
	}, res.Tracking.Payload)
	assert.Len(t, clicks.clicks, 1)
}
