package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"ridetrack/internal/domain"
	"ridetrack/internal/tracking"
)

// Device error codes accepted by PublishError.
const (
	LocationErrorPermissionDenied    = "permission_denied"
	LocationErrorPositionUnavailable = "position_unavailable"
	LocationErrorTimeout             = "timeout"
	LocationErrorUnsupported         = "unsupported"
)

const (
	consentGranted = "granted"
	consentDenied  = "denied"

	// ConsentTTL is how long a rider's consent answer is remembered.
	ConsentTTL = 24 * time.Hour

	feedBufferSize = 16
)

func consentKey(rideID string) string     { return fmt.Sprintf("location:consent:%s", rideID) }
func consentChannel(rideID string) string { return fmt.Sprintf("location:consent-events:%s", rideID) }
func samplesChannel(rideID string) string { return fmt.Sprintf("location:samples:%s", rideID) }

// feedMessage is the envelope published on a ride's sample channel.
type feedMessage struct {
	Type        string   `json:"type"` // "sample" or "error"
	Lat         float64  `json:"lat,omitempty"`
	Lng         float64  `json:"lng,omitempty"`
	Accuracy    float64  `json:"accuracy,omitempty"`
	TimestampMs int64    `json:"timestamp,omitempty"`
	Speed       *float64 `json:"speed,omitempty"`
	Code        string   `json:"code,omitempty"`
}

// LocationFeed relays rider device positions through Redis so that the
// process tracking a ride receives them whichever instance they were posted to.
type LocationFeed struct {
	client *redis.Client
}

// NewLocationFeed creates a new LocationFeed.
func NewLocationFeed(client *redis.Client) *LocationFeed {
	return &LocationFeed{client: client}
}

// SetConsent records the rider's answer to the location permission prompt
// and wakes any pending permission request.
func (f *LocationFeed) SetConsent(ctx context.Context, rideID string, granted bool) error {
	value := consentDenied
	if granted {
		value = consentGranted
	}

	if err := f.client.Set(ctx, consentKey(rideID), value, ConsentTTL).Err(); err != nil {
		return err
	}
	return f.client.Publish(ctx, consentChannel(rideID), value).Err()
}

// ClearConsent forgets the rider's answer.
func (f *LocationFeed) ClearConsent(ctx context.Context, rideID string) error {
	return f.client.Del(ctx, consentKey(rideID)).Err()
}

// PublishSample publishes a device position for a ride.
func (f *LocationFeed) PublishSample(ctx context.Context, rideID string, p domain.LocationPoint) error {
	return f.publish(ctx, rideID, feedMessage{
		Type:        "sample",
		Lat:         p.Lat,
		Lng:         p.Lng,
		Accuracy:    p.Accuracy,
		TimestampMs: p.TimestampMs,
		Speed:       p.Speed,
	})
}

// PublishError publishes a device location failure for a ride.
func (f *LocationFeed) PublishError(ctx context.Context, rideID, code string) error {
	return f.publish(ctx, rideID, feedMessage{Type: "error", Code: code})
}

func (f *LocationFeed) publish(ctx context.Context, rideID string, msg feedMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return f.client.Publish(ctx, samplesChannel(rideID), data).Err()
}

// Geolocator returns the location capability of the rider's device for a ride.
func (f *LocationFeed) Geolocator(rideID string) tracking.Geolocator {
	return &feedGeolocator{client: f.client, rideID: rideID}
}

// LocationErrorFromCode maps a device error code to the tracking taxonomy.
func LocationErrorFromCode(code string) error {
	switch code {
	case LocationErrorPermissionDenied:
		return tracking.ErrPermissionDenied
	case LocationErrorPositionUnavailable:
		return tracking.ErrPositionUnavailable
	case LocationErrorTimeout:
		return tracking.ErrLocationTimeout
	case LocationErrorUnsupported:
		return tracking.ErrGeolocationUnsupported
	default:
		return tracking.ErrLocationGeneric
	}
}

type feedGeolocator struct {
	client *redis.Client
	rideID string
}

// RequestPermission returns the stored consent, or waits for the rider to
// answer until ctx is done.
func (g *feedGeolocator) RequestPermission(ctx context.Context) (bool, error) {
	// Subscribe before reading the key so an answer in between is not missed.
	pubsub := g.client.Subscribe(ctx, consentChannel(g.rideID))
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return false, err
	}

	value, err := g.client.Get(ctx, consentKey(g.rideID)).Result()
	if err == nil {
		return value == consentGranted, nil
	}
	if !errors.Is(err, redis.Nil) {
		return false, err
	}

	select {
	case msg, ok := <-pubsub.Channel():
		if !ok {
			return false, tracking.ErrLocationGeneric
		}
		return msg.Payload == consentGranted, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// Subscribe opens the ride's sample channel.
func (g *feedGeolocator) Subscribe(ctx context.Context) (tracking.Subscription, error) {
	pubsub := g.client.Subscribe(ctx, samplesChannel(g.rideID))
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, err
	}

	sub := &feedSubscription{
		pubsub:  pubsub,
		updates: make(chan domain.LocationPoint, feedBufferSize),
		errs:    make(chan error, 1),
		done:    make(chan struct{}),
	}
	go sub.pump(g.rideID)

	return sub, nil
}

type feedSubscription struct {
	pubsub  *redis.PubSub
	updates chan domain.LocationPoint
	errs    chan error
	done    chan struct{}
	once    sync.Once
}

func (s *feedSubscription) Updates() <-chan domain.LocationPoint { return s.updates }
func (s *feedSubscription) Errors() <-chan error                 { return s.errs }

func (s *feedSubscription) Unsubscribe() {
	s.once.Do(func() {
		close(s.done)
		_ = s.pubsub.Close()
	})
}

func (s *feedSubscription) pump(rideID string) {
	for msg := range s.pubsub.Channel() {
		var fm feedMessage
		if err := json.Unmarshal([]byte(msg.Payload), &fm); err != nil {
			log.Printf("[LOCATION] Dropping malformed message for ride %s: %v", rideID, err)
			continue
		}

		switch fm.Type {
		case "sample":
			p := domain.LocationPoint{
				Lat:         fm.Lat,
				Lng:         fm.Lng,
				Accuracy:    fm.Accuracy,
				TimestampMs: fm.TimestampMs,
				Speed:       fm.Speed,
			}
			select {
			case s.updates <- p:
			case <-s.done:
				return
			}
		case "error":
			select {
			case s.errs <- LocationErrorFromCode(fm.Code):
			case <-s.done:
				return
			default:
				// An error is already pending.
			}
		}
	}
}
