package render

import "github.com/abdusco/linkhub/internal/redirect"

const InterstitialTemplate = "interstitial.html"

// RedirectDelayMS gives tracking beacons time to fire before navigation.
const RedirectDelayMS = 800

type InterstitialView struct {
	Destination string
	PixelID     string
	GTMID       string
	GAID        string
	Payload     redirect.TrackingPayload
	DelayMS     int
}

func NewInterstitialView(destination string, tracking redirect.Tracking) InterstitialView {
	return InterstitialView{
		Destination: destination,
		PixelID:     tracking.PixelID,
		GTMID:       tracking.GTMID,
		GAID:        tracking.GAID,
		Payload:     tracking.Payload,
		DelayMS:     RedirectDelayMS,
	}
}
