package qr

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"

	"github.com/abdusco/linkhub/internal"
	"github.com/samber/lo"
	qrcode "github.com/skip2/go-qrcode"
)

const (
	DefaultSize    = 400
	MinSize        = 64
	MaxSize        = 2048
	DefaultFgColor = "#000000"
	DefaultBgColor = "#ffffff"
)

// MergeSettings fills unset fields with defaults and clamps the size.
func MergeSettings(s internal.QrSetting) internal.QrSetting {
	s.FgColor = lo.CoalesceOrEmpty(s.FgColor, DefaultFgColor)
	s.BgColor = lo.CoalesceOrEmpty(s.BgColor, DefaultBgColor)
	s.Size = ClampSize(lo.CoalesceOrEmpty(s.Size, DefaultSize))
	return s
}

func ClampSize(n int) int {
	return min(max(n, MinSize), MaxSize)
}

// ShortURL is the public address encoded into a link's QR code.
func ShortURL(host, slug string) string {
	scheme := "https"
	if strings.Contains(host, "localhost") {
		scheme = "http"
	}
	return scheme + "://" + host + "/" + slug
}

// ParseHexColor accepts #rgb and #rrggbb.
func ParseHexColor(s string) (color.RGBA, error) {
	hex, ok := strings.CutPrefix(strings.TrimSpace(s), "#")
	if !ok {
		return color.RGBA{}, fmt.Errorf("color %q must start with #", s)
	}
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) != 6 {
		return color.RGBA{}, fmt.Errorf("color %q must have 3 or 6 hex digits", s)
	}

	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("invalid color %q: %w", s, err)
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}, nil
}

// PNG encodes content at the high recovery level using the merged settings.
func PNG(content string, s internal.QrSetting) ([]byte, error) {
	s = MergeSettings(s)

	fg, err := ParseHexColor(s.FgColor)
	if err != nil {
		return nil, err
	}
	bg, err := ParseHexColor(s.BgColor)
	if err != nil {
		return nil, err
	}

	code, err := qrcode.New(content, qrcode.High)
	if err != nil {
		return nil, fmt.Errorf("failed to encode qr code: %w", err)
	}
	code.ForegroundColor = fg
	code.BackgroundColor = bg

	png, err := code.PNG(s.Size)
	if err != nil {
		return nil, fmt.Errorf("failed to render qr code: %w", err)
	}
	return png, nil
}
