package domain

type AdSlot string

const (
	AdSlotBanner       AdSlot = "banner"
	AdSlotInterstitial AdSlot = "interstitial"
	AdSlotRewarded     AdSlot = "rewarded"
)

func ParseAdSlot(s string) (AdSlot, bool) {
	switch AdSlot(s) {
	case AdSlotBanner, AdSlotInterstitial, AdSlotRewarded:
		return AdSlot(s), true
	}
	return "", false
}

// Sentinel ad identifiers returned instead of errors.
const (
	AdInvalidType    = "invalid-ad-type"
	AdNoneConfigured = "no-ads-configured"
	AdNoneEnabled    = "no-enabled-ads"
)

type AdUnit struct {
	ID         string `json:"id"`
	Enabled    bool   `json:"enabled"`
	IsHighEcpm bool   `json:"is_high_ecpm"`
}

// AdMobIDs is the ad inventory per slot.
type AdMobIDs struct {
	AppIDs          []AdUnit `json:"app_ids"`
	BannerIDs       []AdUnit `json:"banner_ids"`
	InterstitialIDs []AdUnit `json:"interstitial_ids"`
	RewardedIDs     []AdUnit `json:"rewarded_ids"`
}

func (a AdMobIDs) Units(slot AdSlot) []AdUnit {
	switch slot {
	case AdSlotBanner:
		return a.BannerIDs
	case AdSlotInterstitial:
		return a.InterstitialIDs
	case AdSlotRewarded:
		return a.RewardedIDs
	}
	return nil
}

// AdRotationState holds one cursor per slot, shared process-wide.
type AdRotationState struct {
	BannerIndex       int `json:"banner_index"`
	InterstitialIndex int `json:"interstitial_index"`
	RewardedIndex     int `json:"rewarded_index"`
}

func (r AdRotationState) Cursor(slot AdSlot) int {
	switch slot {
	case AdSlotBanner:
		return r.BannerIndex
	case AdSlotInterstitial:
		return r.InterstitialIndex
	case AdSlotRewarded:
		return r.RewardedIndex
	}
	return 0
}

func (r AdRotationState) WithCursor(slot AdSlot, v int) AdRotationState {
	switch slot {
	case AdSlotBanner:
		r.BannerIndex = v
	case AdSlotInterstitial:
		r.InterstitialIndex = v
	case AdSlotRewarded:
		r.RewardedIndex = v
	}
	return r
}

// DefaultAdMobIDs seeds Google's public test units.
func DefaultAdMobIDs() AdMobIDs {
	return AdMobIDs{
		AppIDs: []AdUnit{{ID: "ca-app-pub-3940256099942544~3347511713", Enabled: true}},
		BannerIDs: []AdUnit{
			{ID: "ca-app-pub-3940256099942544/6300978111", Enabled: true},
			{ID: "ca-app-pub-3940256099942544/9214589741", Enabled: true},
		},
		InterstitialIDs: []AdUnit{
			{ID: "ca-app-pub-3940256099942544/1033173712", Enabled: true},
			{ID: "ca-app-pub-3940256099942544/8691691433", Enabled: true},
		},
		RewardedIDs: []AdUnit{
			{ID: "ca-app-pub-3940256099942544/5224354917", Enabled: true, IsHighEcpm: true},
			{ID: "ca-app-pub-3940256099942544/5354046379", Enabled: true},
		},
	}
}
