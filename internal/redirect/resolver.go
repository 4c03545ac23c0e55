package redirect

import (
	"context"
	"errors"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/abdusco/linkhub/internal"
	"github.com/abdusco/linkhub/internal/metrics"
	"github.com/rs/zerolog/log"
)

// LinkGateway loads an active short link with its targets and UTM rules.
// It returns internal.ErrLinkNotFound when no active link matches.
type LinkGateway interface {
	LookupShortLink(ctx context.Context, host, slug string) (*internal.ShortLink, error)
}

// ClickSink accepts click log rows. Record must not block on storage.
type ClickSink interface {
	Record(click internal.ClickLog)
}

type Outcome int

const (
	OutcomeNotFound Outcome = iota
	OutcomeRedirect
	OutcomeInterstitial
)

func (o Outcome) String() string {
	switch o {
	case OutcomeRedirect:
		return "redirect"
	case OutcomeInterstitial:
		return "interstitial"
	default:
		return "not_found"
	}
}

type Request struct {
	Host      string
	Slug      string
	Param     string
	IP        string
	UserAgent string
	Referer   string
}

// TrackingPayload is sent with the custom event fired by each tracking tag.
type TrackingPayload struct {
	UTMSource   string `json:"utm_source"`
	UTMMedium   string `json:"utm_medium"`
	UTMCampaign string `json:"utm_campaign"`
	Slug        string `json:"slug"`
	Param       string `json:"param"`
}

type Tracking struct {
	PixelID string
	GTMID   string
	GAID    string
	Payload TrackingPayload
}

type Result struct {
	Outcome  Outcome
	Location string
	Link     *internal.ShortLink
	UTM      internal.UTM
	Device   string
	// Tracking is set only for OutcomeInterstitial.
	Tracking *Tracking
}

type Resolver struct {
	links      LinkGateway
	clicks     ClickSink
	landingURL string
	random     func() float64
}

type Option func(*Resolver)

// WithRandom replaces the random source used for A/B selection. f must
// return values in [0, 1).
func WithRandom(f func() float64) Option {
	return func(r *Resolver) {
		r.random = f
	}
}

func NewResolver(links LinkGateway, clicks ClickSink, landingURL string, opts ...Option) *Resolver {
	r := &Resolver{
		links:      links,
		clicks:     clicks,
		landingURL: landingURL,
		random:     rand.Float64,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Resolver) Resolve(ctx context.Context, req Request) Result {
	host := NormalizeHost(req.Host)

	link, err := r.links.LookupShortLink(ctx, host, req.Slug)
	if err != nil {
		if errors.Is(err, internal.ErrLinkNotFound) {
			log.Debug().Str("host", host).Str("slug", req.Slug).Msg("short link not found")
		} else {
			// Backend failures still send the visitor to the landing page.
			metrics.RecordLookupError()
			log.Error().Err(err).Str("host", host).Str("slug", req.Slug).Msg("failed to look up short link")
		}
		metrics.RecordRedirect(OutcomeNotFound.String())
		return Result{Outcome: OutcomeNotFound, Location: r.landingURL}
	}

	destination := link.TargetURL
	if link.UseABTest {
		if target, ok := SelectTarget(link.Targets, r.random); ok {
			destination = target.TargetURL
		}
	}

	utm := link.UTM
	if req.Param != "" && len(link.UTMRules) > 0 {
		utm = ResolveUTM(link.UTM, req.Param, link.UTMRules)
	}

	if link.AppendUTM && !utm.IsEmpty() {
		destination = AppendUTM(destination, utm)
	}

	device := DetectDevice(req.UserAgent)

	r.clicks.Record(internal.ClickLog{
		ShortLinkID: link.ID,
		Param:       req.Param,
		IP:          req.IP,
		UserAgent:   req.UserAgent,
		Referer:     req.Referer,
		Device:      device,
		UTMSource:   utm.Source,
		UTMMedium:   utm.Medium,
		UTMCampaign: utm.Campaign,
		ClickedAt:   time.Now().UTC(),
	})

	result := Result{
		Outcome:  OutcomeRedirect,
		Location: destination,
		Link:     link,
		UTM:      utm,
		Device:   device,
	}

	if link.HasTracking() {
		result.Outcome = OutcomeInterstitial
		result.Tracking = &Tracking{
			PixelID: link.PixelID,
			GTMID:   link.GTMID,
			GAID:    link.GAID,
			Payload: TrackingPayload{
				UTMSource:   utm.Source,
				UTMMedium:   utm.Medium,
				UTMCampaign: utm.Campaign,
				Slug:        link.Slug,
				Param:       req.Param,
			},
		}
	}

	log.Info().
		Str("host", host).
		Str("slug", link.Slug).
		Str("param", req.Param).
		Str("outcome", result.Outcome.String()).
		Msg("resolved short link")

	metrics.RecordRedirect(result.Outcome.String())
	return result
}

// NormalizeHost lower-cases a Host header value and drops a trailing dot.
// The port, if any, is kept since domains may be registered with one.
func NormalizeHost(host string) string {
	return strings.TrimSuffix(strings.ToLower(strings.TrimSpace(host)), ".")
}
