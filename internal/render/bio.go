package render

import (
	"fmt"
	"html/template"
	"sort"
	"strings"

	"github.com/abdusco/linkhub/internal"
	"github.com/samber/lo"
)

const BioTemplate = "bio.html"

const (
	ButtonRounded = "rounded"
	ButtonPill    = "pill"
	ButtonSquare  = "square"
	ButtonOutline = "outline"
	ButtonGlass   = "glass"
)

// DefaultTheme is applied underneath every stored bio theme.
var DefaultTheme = internal.BioTheme{
	BgColor:         "#ffffff",
	TextColor:       "#000000",
	ButtonColor:     "#000000",
	ButtonTextColor: "#ffffff",
	ButtonStyle:     ButtonRounded,
	BgOverlay:       "rgba(0,0,0,0.3)",
}

// MergeTheme fills every empty field of t from DefaultTheme.
func MergeTheme(t internal.BioTheme) internal.BioTheme {
	d := DefaultTheme
	return internal.BioTheme{
		BgColor:         lo.CoalesceOrEmpty(t.BgColor, d.BgColor),
		TextColor:       lo.CoalesceOrEmpty(t.TextColor, d.TextColor),
		ButtonColor:     lo.CoalesceOrEmpty(t.ButtonColor, d.ButtonColor),
		ButtonTextColor: lo.CoalesceOrEmpty(t.ButtonTextColor, d.ButtonTextColor),
		ButtonStyle:     lo.CoalesceOrEmpty(t.ButtonStyle, d.ButtonStyle),
		BgGradient:      lo.CoalesceOrEmpty(t.BgGradient, d.BgGradient),
		BgImage:         lo.CoalesceOrEmpty(t.BgImage, d.BgImage),
		BgOverlay:       lo.CoalesceOrEmpty(t.BgOverlay, d.BgOverlay),
	}
}

// Button holds the CSS values that depend on the button style.
type Button struct {
	Radius     string
	Background string
	Color      string
	Border     string
	Glass      bool
}

// ButtonLayout maps a merged theme to button CSS. Unknown styles render as
// rounded.
func ButtonLayout(t internal.BioTheme) Button {
	b := Button{
		Radius:     "12px",
		Background: t.ButtonColor,
		Color:      t.ButtonTextColor,
		Border:     "none",
	}

	switch t.ButtonStyle {
	case ButtonPill:
		b.Radius = "9999px"
	case ButtonSquare:
		b.Radius = "4px"
	case ButtonOutline:
		b.Background = "transparent"
		b.Color = t.ButtonColor
		b.Border = "2px solid " + t.ButtonColor
	case ButtonGlass:
		b.Background = "rgba(255,255,255,0.12)"
		b.Color = "#ffffff"
		b.Glass = true
	}
	return b
}

type BioLinkView struct {
	Title string
	URL   string
	Icon  string
	Delay template.CSS
}

type BioView struct {
	Title   string
	Bio     string
	LogoURL string
	Links   []BioLinkView

	BodyBackground template.CSS
	TextColor      template.CSS
	// Overlay is only set when a background image is used.
	Overlay template.CSS

	ButtonRadius     template.CSS
	ButtonBackground template.CSS
	ButtonColor      template.CSS
	ButtonBorder     template.CSS
	ButtonGlass      bool
}

// NewBioView prepares a bio page for the bio template: inactive links are
// dropped, the rest ordered by sort_order, and theme values reduced to safe
// CSS.
func NewBioView(page *internal.BioPage) BioView {
	links := lo.Filter(page.Links, func(l internal.BioLink, _ int) bool {
		return l.IsActive
	})
	sort.SliceStable(links, func(i, j int) bool {
		return links[i].SortOrder < links[j].SortOrder
	})

	theme := MergeTheme(page.Theme)
	button := ButtonLayout(theme)

	background := "background: " + sanitizeCSS(theme.BgColor) + ";"
	if theme.BgGradient != "" {
		background = "background: " + sanitizeCSS(theme.BgGradient) + ";"
	}
	var overlay string
	if theme.BgImage != "" {
		background = fmt.Sprintf("background: url('%s') center/cover fixed no-repeat;", sanitizeCSSURL(theme.BgImage))
		overlay = lo.CoalesceOrEmpty(sanitizeCSS(theme.BgOverlay), "transparent")
	}

	return BioView{
		Title:   page.Title,
		Bio:     page.Bio,
		LogoURL: page.LogoURL,
		Links: lo.Map(links, func(l internal.BioLink, i int) BioLinkView {
			return BioLinkView{
				Title: l.Title,
				URL:   l.URL,
				Icon:  l.Icon,
				Delay: template.CSS(fmt.Sprintf("%.2fs", 0.15+float64(i)*0.08)),
			}
		}),
		BodyBackground:   template.CSS(background),
		TextColor:        template.CSS(sanitizeCSS(theme.TextColor)),
		Overlay:          template.CSS(overlay),
		ButtonRadius:     template.CSS(button.Radius),
		ButtonBackground: template.CSS(sanitizeCSS(button.Background)),
		ButtonColor:      template.CSS(sanitizeCSS(button.Color)),
		ButtonBorder:     template.CSS(sanitizeCSS(button.Border)),
		ButtonGlass:      button.Glass,
	}
}

var cssReplacer = strings.NewReplacer(
	"<", "", ">", "", "{", "", "}", "", ";", "", `"`, "", `\`, "", "\n", " ", "\r", " ",
)

// sanitizeCSS strips characters that could end a declaration or the style
// element. Colors, gradients and rgba() values pass through unchanged.
func sanitizeCSS(v string) string {
	return strings.TrimSpace(cssReplacer.Replace(v))
}

var cssURLReplacer = strings.NewReplacer("'", "%27", "(", "%28", ")", "%29", " ", "%20")

func sanitizeCSSURL(v string) string {
	return cssURLReplacer.Replace(sanitizeCSS(v))
}
