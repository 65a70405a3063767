package domain

import "time"

// RoomType describes a sellable unit group at a property (Apaleo calls
// this a "unit group"; other PMS vendors use "room type").
type RoomType struct {
	Code        string
	Name        string
	MaxOccupancy int
}

// AvailabilityRequest asks a connector how many units of which room types
// are sellable over a date range.
type AvailabilityRequest struct {
	PropertyID string
	From       Date
	To         Date
	RoomType   string // optional filter; empty means all room types
}

// RoomAvailability is one room type's open-to-sell count for the
// requested range.
type RoomAvailability struct {
	RoomType  RoomType
	Available int
}

// RateQuoteRequest asks for a priced quote for a stay.
type RateQuoteRequest struct {
	PropertyID string
	RoomType   string
	RatePlan   string
	From       Date
	To         Date
	Occupancy  int
}

// RateQuote is a priced stay quote. Total is always Base plus Taxes plus
// Fees in the same currency; connectors that can't separate the
// components still must reconcile to this invariant.
type RateQuote struct {
	PropertyID string
	RoomType   string
	RatePlan   string
	From       Date
	To         Date
	Base       Money
	Taxes      Money
	Fees       Money
	Total      Money
}

// ReservationStatus is the internal reservation lifecycle state, mapped
// from each vendor's wire vocabulary at the adapter boundary.
type ReservationStatus string

const (
	ReservationConfirmed  ReservationStatus = "confirmed"
	ReservationCancelled  ReservationStatus = "cancelled"
	ReservationCheckedIn  ReservationStatus = "checked_in"
	ReservationCheckedOut ReservationStatus = "checked_out"
	ReservationNoShow     ReservationStatus = "no_show"
	// ReservationUnknown is surfaced when a vendor reports a status the
	// adapter does not recognize; never coerced to a happy-path state.
	ReservationUnknown ReservationStatus = "unknown"
)

// ReservationRequest creates a new booking.
type ReservationRequest struct {
	PropertyID     string
	RoomType       string
	RatePlan       string
	From           Date
	To             Date
	Guest          GuestProfile
	Occupancy      int
	IdempotencyKey string
}

// Reservation is the vendor-agnostic booking record returned by every
// connector operation that creates, reads, or modifies a booking.
type Reservation struct {
	ID                 string
	ConfirmationNumber string
	PropertyID         string
	RoomType           string
	RatePlan           string
	From               Date
	To                 Date
	Guest              GuestProfile
	Status             ReservationStatus
	Total              Money
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// ReservationModification carries only the fields being changed; zero
// values mean "leave unchanged" and connectors must not overwrite fields
// the caller did not set.
type ReservationModification struct {
	From     *Date
	To       *Date
	RoomType *string
}

// GuestProfile is the vendor-agnostic guest identity record.
type GuestProfile struct {
	ID        string
	FirstName string
	LastName  string
	Email     string
	Phone     string
	Consent   ConsentRecord
}

// ConsentRecord timestamps and sources every consent flag so the record
// is defensible in an audit, rather than a bare boolean.
type ConsentRecord struct {
	GDPRConsent      bool
	MarketingConsent bool
	RecordedAt       time.Time
	Source           string
}

// GuestSearchRequest supports search-by-email and search-by-name; a
// search that matches nothing returns an empty list, not an error.
type GuestSearchRequest struct {
	Email     string
	FirstName string
	LastName  string
}

// Capability enumerates optional PMS features a connector may or may not
// support, so callers can branch without type-asserting the connector.
type Capability string

const (
	CapAvailability    Capability = "availability"
	CapRateQuote       Capability = "rate_quote"
	CapReservationCRUD Capability = "reservation_crud"
	CapGuestSearch     Capability = "guest_search"
	CapGuestUpsert     Capability = "guest_upsert"
	CapStreamArrivals  Capability = "stream_arrivals"
	CapStreamInHouse   Capability = "stream_in_house"
)
