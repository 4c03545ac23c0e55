package internal

import "time"

type Domain struct {
	ID        int64     `json:"id"`
	Domain    string    `json:"domain"`
	Name      string    `json:"name,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// UTM holds the five standard tracking parameters. An empty field means the
// value is not set.
type UTM struct {
	Source   string `json:"utm_source,omitempty"`
	Medium   string `json:"utm_medium,omitempty"`
	Campaign string `json:"utm_campaign,omitempty"`
	Term     string `json:"utm_term,omitempty"`
	Content  string `json:"utm_content,omitempty"`
}

func (u UTM) IsEmpty() bool {
	return u == UTM{}
}

// Pairs returns the set values in canonical query-parameter order.
func (u UTM) Pairs() [][2]string {
	all := [][2]string{
		{"utm_source", u.Source},
		{"utm_medium", u.Medium},
		{"utm_campaign", u.Campaign},
		{"utm_term", u.Term},
		{"utm_content", u.Content},
	}
	pairs := make([][2]string, 0, len(all))
	for _, p := range all {
		if p[1] != "" {
			pairs = append(pairs, p)
		}
	}
	return pairs
}

// Override returns u with every non-empty field of o applied on top.
func (u UTM) Override(o UTM) UTM {
	if o.Source != "" {
		u.Source = o.Source
	}
	if o.Medium != "" {
		u.Medium = o.Medium
	}
	if o.Campaign != "" {
		u.Campaign = o.Campaign
	}
	if o.Term != "" {
		u.Term = o.Term
	}
	if o.Content != "" {
		u.Content = o.Content
	}
	return u
}

type ShortLink struct {
	ID        int64          `json:"id"`
	DomainID  int64          `json:"domain_id"`
	Host      string         `json:"host,omitempty"`
	Slug      string         `json:"slug"`
	Name      string         `json:"name,omitempty"`
	TargetURL string         `json:"target_url"`
	IsActive  bool           `json:"is_active"`
	UseABTest bool           `json:"use_ab_test"`
	AppendUTM bool           `json:"append_utm"`
	UTM       UTM            `json:"utm"`
	PixelID   string         `json:"pixel_id,omitempty"`
	GTMID     string         `json:"gtm_id,omitempty"`
	GAID      string         `json:"ga_id,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	Targets   []LinkTarget   `json:"targets"`
	UTMRules  []ParamUtmRule `json:"utm_rules"`
}

// HasTracking reports whether any client-side tracking id is configured.
func (l *ShortLink) HasTracking() bool {
	return l.PixelID != "" || l.GTMID != "" || l.GAID != ""
}

type LinkTarget struct {
	ID          int64     `json:"id"`
	ShortLinkID int64     `json:"short_link_id"`
	TargetURL   string    `json:"target_url"`
	Weight      int       `json:"weight"`
	Name        string    `json:"name,omitempty"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
}

type ParamUtmRule struct {
	ID           int64     `json:"id"`
	ShortLinkID  int64     `json:"short_link_id"`
	ParamPattern string    `json:"param_pattern"`
	UTM          UTM       `json:"utm"`
	CreatedAt    time.Time `json:"created_at"`
}

type ClickLog struct {
	ID          int64     `json:"id"`
	ShortLinkID int64     `json:"short_link_id"`
	Param       string    `json:"param,omitempty"`
	IP          string    `json:"ip"`
	UserAgent   string    `json:"user_agent,omitempty"`
	Referer     string    `json:"referer,omitempty"`
	Device      string    `json:"device"`
	UTMSource   string    `json:"utm_source,omitempty"`
	UTMMedium   string    `json:"utm_medium,omitempty"`
	UTMCampaign string    `json:"utm_campaign,omitempty"`
	ClickedAt   time.Time `json:"clicked_at"`
}

type ClickStats struct {
	ShortLinkID int64 `json:"link_id"`
	Total       int64 `json:"total"`
	Unique      int64 `json:"unique"`
}

// ClickEntry is a click log row joined with the slug and host of its link.
type ClickEntry struct {
	ClickLog
	Slug string `json:"slug"`
	Host string `json:"host"`
}

type BioPage struct {
	ID        int64     `json:"id"`
	DomainID  int64     `json:"domain_id"`
	Host      string    `json:"host,omitempty"`
	Slug      string    `json:"slug"`
	Title     string    `json:"title,omitempty"`
	Bio       string    `json:"bio,omitempty"`
	LogoURL   string    `json:"logo_url,omitempty"`
	Theme     BioTheme  `json:"theme"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Links     []BioLink `json:"links"`
}

// BioTheme is the stored theme of a bio page. Empty fields fall back to the
// renderer defaults.
type BioTheme struct {
	BgColor         string `json:"bgColor,omitempty"`
	TextColor       string `json:"textColor,omitempty"`
	ButtonColor     string `json:"buttonColor,omitempty"`
	ButtonTextColor string `json:"buttonTextColor,omitempty"`
	ButtonStyle     string `json:"buttonStyle,omitempty"`
	BgGradient      string `json:"bgGradient,omitempty"`
	BgImage         string `json:"bgImage,omitempty"`
	BgOverlay       string `json:"bgOverlay,omitempty"`
}

type BioLink struct {
	ID        int64     `json:"id"`
	BioPageID int64     `json:"bio_page_id"`
	Title     string    `json:"title"`
	URL       string    `json:"url"`
	Icon      string    `json:"icon,omitempty"`
	SortOrder int       `json:"sort_order"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

type QrSetting struct {
	ShortLinkID int64  `json:"short_link_id"`
	FgColor     string `json:"fg_color,omitempty"`
	BgColor     string `json:"bg_color,omitempty"`
	Size        int    `json:"size,omitempty"`
}
