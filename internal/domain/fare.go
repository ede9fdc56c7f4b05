package domain

// RateType identifies which tariff was applied to a fare.
type RateType string

const (
	RateTypeDay   RateType = "day"
	RateTypeNight RateType = "night"
)

// FareEstimate is an itemized trip price. It is a value: every calculation
// returns a fresh one.
type FareEstimate struct {
	BaseFare       float64
	DistanceKm     float64
	DistanceRate   float64 // per km
	DistanceFare   float64
	WaitingMinutes float64
	WaitingRate    float64 // per minute
	WaitingFare    float64
	Total          float64 // rounded to the cent
	RateType       RateType
}

// Language selects the wording of customer-facing text.
type Language string

const (
	LanguageFrench  Language = "fr"
	LanguageEnglish Language = "en"
)

// ParseLanguage returns the matching language, or def when s is unknown.
func ParseLanguage(s string, def Language) Language {
	switch Language(s) {
	case LanguageFrench, LanguageEnglish:
		return Language(s)
	default:
		return def
	}
}
