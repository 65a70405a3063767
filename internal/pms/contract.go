// Package pms defines the vendor-agnostic PMS connector contract every
// property-management-system adapter (starting with Apaleo, see
// internal/pms/apaleo) implements.
package pms

import (
	"context"

	"github.com/voicehive-hotels/orchestrator/internal/domain"
)

// Connector is the capability-described contract every PMS adapter
// implements. Callers consult Capabilities() before invoking an optional
// operation rather than type-asserting the concrete adapter.
type Connector interface {
	VendorName() string
	Capabilities() map[domain.Capability]bool

	HealthCheck(ctx context.Context) error

	GetAvailability(ctx context.Context, req domain.AvailabilityRequest) ([]domain.RoomAvailability, error)
	QuoteRate(ctx context.Context, req domain.RateQuoteRequest) (domain.RateQuote, error)

	CreateReservation(ctx context.Context, req domain.ReservationRequest) (domain.Reservation, error)
	GetReservation(ctx context.Context, id string) (domain.Reservation, error)
	ModifyReservation(ctx context.Context, id string, mod domain.ReservationModification) (domain.Reservation, error)
	CancelReservation(ctx context.Context, id string, reason string) error

	SearchGuest(ctx context.Context, req domain.GuestSearchRequest) ([]domain.GuestProfile, error)
	UpsertGuestProfile(ctx context.Context, g domain.GuestProfile) (domain.GuestProfile, error)
}

// ReservationPage is one page of a lazily-streamed reservation listing
// (e.g. arrivals or in-house guests for a date range). Connectors that
// can't paginate server-side still return this shape with NextPageToken
// empty.
type ReservationPage struct {
	Reservations  []domain.Reservation
	NextPageToken string
}

// Streamer is an optional capability: connectors that advertise
// CapStreamArrivals or CapStreamInHouse implement it in addition to
// Connector.
type Streamer interface {
	StreamArrivals(propertyID string, date domain.Date) *ReservationStream
	StreamInHouse(propertyID string) *ReservationStream
}

// ReservationStream lazily yields reservations page by page. It is
// finite and non-restartable: once Next reports exhaustion or an error,
// every later call does too. Cancellation takes effect at the next page
// boundary; reservations already buffered from the current page are
// still yielded.
type ReservationStream struct {
	fetch func(ctx context.Context, pageToken string) (ReservationPage, error)

	buf       []domain.Reservation
	nextToken string
	exhausted bool
	err       error
}

// NewReservationStream builds a stream over a page-fetch function. The
// fetch is first invoked with an empty token and then with each
// server-provided continuation token until none is returned.
func NewReservationStream(fetch func(ctx context.Context, pageToken string) (ReservationPage, error)) *ReservationStream {
	return &ReservationStream{fetch: fetch}
}

// Next yields the next reservation, fetching the next page when the
// buffer runs dry. ok is false once the stream is exhausted or failed.
func (s *ReservationStream) Next(ctx context.Context) (res domain.Reservation, ok bool, err error) {
	if s.err != nil {
		return domain.Reservation{}, false, s.err
	}
	for len(s.buf) == 0 {
		if s.exhausted {
			return domain.Reservation{}, false, nil
		}
		if err := ctx.Err(); err != nil {
			s.err = err
			return domain.Reservation{}, false, err
		}
		page, err := s.fetch(ctx, s.nextToken)
		if err != nil {
			s.err = err
			return domain.Reservation{}, false, err
		}
		s.buf = page.Reservations
		s.nextToken = page.NextPageToken
		if s.nextToken == "" {
			s.exhausted = true
		}
	}
	res = s.buf[0]
	s.buf = s.buf[1:]
	return res, true, nil
}
