package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"ridetrack/internal/domain"
)

const (
	priceDisclaimerFR = "Prix estimé — le tarif final peut varier selon la circulation, l’attente et le taximètre du véhicule."
	priceDisclaimerEN = "Estimated price — final fare may vary based on traffic, waiting time, and the vehicle’s taximeter."
)

// receiptLabels holds the customer-facing wording for one language.
type receiptLabels struct {
	title      string
	receiptID  string
	date       string
	dateLayout string
	trip       string
	pickup     string
	dropoff    string
	duration   string
	distance   string
	breakdown  string
	dayRate    string
	nightRate  string
	base       string
	waiting    string
	total      string
	thanks     string
}

var labels = map[domain.Language]receiptLabels{
	domain.LanguageFrench: {
		title:      "REÇU DE COURSE",
		receiptID:  "No de reçu",
		date:       "Date",
		dateLayout: "02/01/2006 15:04",
		trip:       "DÉTAILS DU TRAJET",
		pickup:     "Départ",
		dropoff:    "Arrivée",
		duration:   "Durée",
		distance:   "Distance",
		breakdown:  "DÉTAIL DU TARIF",
		dayRate:    "Tarif de jour",
		nightRate:  "Tarif de nuit",
		base:       "Prise en charge",
		waiting:    "Attente",
		total:      "TOTAL",
		thanks:     "Merci d'avoir voyagé avec nous!",
	},
	domain.LanguageEnglish: {
		title:      "RIDE RECEIPT",
		receiptID:  "Receipt ID",
		date:       "Date",
		dateLayout: "Jan 02, 2006 3:04 PM",
		trip:       "TRIP DETAILS",
		pickup:     "Pickup",
		dropoff:    "Dropoff",
		duration:   "Duration",
		distance:   "Distance",
		breakdown:  "FARE BREAKDOWN",
		dayRate:    "Day rate",
		nightRate:  "Night rate",
		base:       "Base fare",
		waiting:    "Waiting",
		total:      "TOTAL",
		thanks:     "Thank you for riding with us!",
	},
}

// Disclaimer returns the estimated-price notice in the given language.
func Disclaimer(lang domain.Language) string {
	if lang == domain.LanguageEnglish {
		return priceDisclaimerEN
	}
	return priceDisclaimerFR
}

func labelsFor(lang domain.Language) receiptLabels {
	if l, ok := labels[lang]; ok {
		return l
	}
	return labels[domain.LanguageFrench]
}

// ReceiptService handles quote and receipt text.
type ReceiptService struct {
	notificationService *NotificationService
	defaultLanguage     domain.Language
}

// NewReceiptService creates a new ReceiptService.
func NewReceiptService(notificationService *NotificationService, defaultLanguage domain.Language) *ReceiptService {
	return &ReceiptService{
		notificationService: notificationService,
		defaultLanguage:     domain.ParseLanguage(string(defaultLanguage), domain.LanguageFrench),
	}
}

// Language resolves a requested language code, falling back to the default.
func (s *ReceiptService) Language(requested string) domain.Language {
	return domain.ParseLanguage(requested, s.defaultLanguage)
}

// RateLabel names the tariff of a fare.
func (s *ReceiptService) RateLabel(fare domain.FareEstimate, lang domain.Language) string {
	l := labelsFor(lang)
	if fare.RateType == domain.RateTypeNight {
		return l.nightRate
	}
	return l.dayRate
}

// FormatFare formats the itemized fare breakdown.
func (s *ReceiptService) FormatFare(fare domain.FareEstimate, lang domain.Language) string {
	l := labelsFor(lang)

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", s.RateLabel(fare, lang))
	fmt.Fprintf(&b, "%-18s $%s\n", l.base+":", formatFloat(fare.BaseFare))
	fmt.Fprintf(&b, "%-18s $%s\n", fmt.Sprintf("%s (%.1f km):", l.distance, fare.DistanceKm), formatFloat(fare.DistanceFare))
	if fare.WaitingMinutes > 0 {
		fmt.Fprintf(&b, "%-18s $%s\n", fmt.Sprintf("%s (%.0f min):", l.waiting, fare.WaitingMinutes), formatFloat(fare.WaitingFare))
	}
	fmt.Fprintf(&b, "%-18s $%s\n", l.total+":", formatFloat(fare.Total))
	b.WriteString(Disclaimer(lang))

	return b.String()
}

// GenerateReceipt generates a receipt for a completed ride.
func (s *ReceiptService) GenerateReceipt(ctx context.Context, ride *domain.Ride, lang domain.Language) (*domain.Receipt, error) {
	if ride == nil {
		return nil, ErrInvalidRideID
	}

	var duration time.Duration
	if !ride.StartedAt.IsZero() && ride.CompletedAt.After(ride.StartedAt) {
		duration = ride.CompletedAt.Sub(ride.StartedAt)
	}

	receipt := &domain.Receipt{
		ID:          uuid.New().String(),
		RideID:      ride.ID,
		RiderID:     ride.RiderID,
		Fare:        ride.Fare,
		DistanceKm:  ride.DistanceKm,
		Duration:    duration,
		Language:    lang,
		Disclaimer:  Disclaimer(lang),
		StartedAt:   ride.StartedAt,
		CompletedAt: ride.CompletedAt,
		CreatedAt:   time.Now(),
	}

	// Notify rider that receipt is ready
	if s.notificationService != nil {
		_ = s.notificationService.NotifyReceiptReady(ctx, receipt)
	}

	return receipt, nil
}

// FormatReceipt formats the receipt as a string (for email/print).
func (s *ReceiptService) FormatReceipt(receipt *domain.Receipt, ride *domain.Ride) string {
	l := labelsFor(receipt.Language)

	var b strings.Builder
	b.WriteString("=====================================\n")
	fmt.Fprintf(&b, "        %s\n", l.title)
	b.WriteString("=====================================\n")
	fmt.Fprintf(&b, "%s: %s\n", l.receiptID, receipt.ID)
	fmt.Fprintf(&b, "%s: %s\n\n", l.date, receipt.CreatedAt.Format(l.dateLayout))

	fmt.Fprintf(&b, "%s\n", l.trip)
	b.WriteString("-------------------------------------\n")
	if ride != nil {
		fmt.Fprintf(&b, "%-10s %s\n", l.pickup+":", ride.PickupAddress)
		fmt.Fprintf(&b, "%-10s %s\n", l.dropoff+":", ride.DropoffAddress)
	}
	fmt.Fprintf(&b, "%-10s %s\n", l.duration+":", formatDuration(receipt.Duration))
	fmt.Fprintf(&b, "%-10s %.1f km\n\n", l.distance+":", receipt.DistanceKm)

	fmt.Fprintf(&b, "%s\n", l.breakdown)
	b.WriteString("-------------------------------------\n")
	b.WriteString(s.FormatFare(receipt.Fare, receipt.Language))
	b.WriteString("\n\n=====================================\n")
	fmt.Fprintf(&b, "  %s\n", l.thanks)
	b.WriteString("=====================================\n")

	return b.String()
}

func formatFloat(f float64) string {
	return fmt.Sprintf("%.2f", f)
}

func formatDuration(d time.Duration) string {
	minutes := int(d.Minutes())
	return fmt.Sprintf("%d min", minutes)
}
