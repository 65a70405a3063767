package apaleo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/voicehive-hotels/orchestrator/internal/domain"
	"github.com/voicehive-hotels/orchestrator/pkg/voicehiveerr"
)

// Adapter implements pms.Connector against Apaleo.
type Adapter struct {
	client     *Client
	propertyID string
}

func NewAdapter(client *Client, propertyID string) *Adapter {
	return &Adapter{client: client, propertyID: propertyID}
}

func (a *Adapter) VendorName() string { return "apaleo" }

func (a *Adapter) Capabilities() map[domain.Capability]bool {
	return map[domain.Capability]bool{
		domain.CapAvailability:    true,
		domain.CapRateQuote:       true,
		domain.CapReservationCRUD: true,
		domain.CapGuestSearch:     true,
		domain.CapGuestUpsert:     true, // pass-through only; Apaleo has no upsert endpoint
		domain.CapStreamArrivals:  true,
		domain.CapStreamInHouse:   true,
	}
}

func (a *Adapter) HealthCheck(ctx context.Context) error {
	resp, err := a.client.request(ctx, http.MethodGet, "/status", nil, nil)
	if err != nil {
		return err
	}
	return decodeJSON(resp, nil)
}

type unitGroup struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	MaxPersons int    `json:"maxPersons"`
}

type unitGroupsResponse struct {
	UnitGroups []unitGroup `json:"unitGroups"`
}

type availabilityUnit struct {
	UnitGroup struct {
		ID string `json:"id"`
	} `json:"unitGroup"`
	Available int `json:"availableUnits"`
}

type availabilityResponse struct {
	UnitGroups []availabilityUnit `json:"unitGroups"`
}

// GetAvailability performs the two-call flow: unit groups first (room
// type catalog), then the availability grid, joining results by unit
// group ID.
func (a *Adapter) GetAvailability(ctx context.Context, req domain.AvailabilityRequest) ([]domain.RoomAvailability, error) {
	propertyID := coalesce(req.PropertyID, a.propertyID)

	groupsResp, err := a.client.request(ctx, http.MethodGet, "/inventory/v1/unit-groups", url.Values{"propertyId": {propertyID}}, nil)
	if err != nil {
		return nil, err
	}
	var groups unitGroupsResponse
	if err := decodeJSON(groupsResp, &groups); err != nil {
		return nil, err
	}

	query := url.Values{
		"propertyId": {propertyID},
		"from":       {req.From.String()},
		"to":         {req.To.String()},
	}
	if req.RoomType != "" {
		query.Set("unitGroupIds", req.RoomType)
	}
	availResp, err := a.client.request(ctx, http.MethodGet, "/availability/v1/unit-groups", query, nil)
	if err != nil {
		return nil, err
	}
	var avail availabilityResponse
	if err := decodeJSON(availResp, &avail); err != nil {
		return nil, err
	}

	names := make(map[string]unitGroup, len(groups.UnitGroups))
	for _, g := range groups.UnitGroups {
		names[g.ID] = g
	}

	var out []domain.RoomAvailability
	for _, u := range avail.UnitGroups {
		g := names[u.UnitGroup.ID]
		out = append(out, domain.RoomAvailability{
			RoomType:  domain.RoomType{Code: u.UnitGroup.ID, Name: g.Name, MaxOccupancy: g.MaxPersons},
			Available: u.Available,
		})
	}
	return out, nil
}

type ratePlanResponse struct {
	ID    string `json:"id"`
	Price struct {
		Amount   json.Number `json:"amount"`
		Currency string      `json:"currency"`
	} `json:"price"`
	Taxes struct {
		Amount json.Number `json:"amount"`
	} `json:"taxesAndFees"`
}

func (a *Adapter) QuoteRate(ctx context.Context, req domain.RateQuoteRequest) (domain.RateQuote, error) {
	path := fmt.Sprintf("/rateplans/v1/rate-plans/%s", req.RatePlan)
	query := url.Values{
		"from": {req.From.String()},
		"to":   {req.To.String()},
	}
	resp, err := a.client.request(ctx, http.MethodGet, path, query, nil)
	if err != nil {
		return domain.RateQuote{}, err
	}
	var rp ratePlanResponse
	if err := decodeJSON(resp, &rp); err != nil {
		return domain.RateQuote{}, err
	}

	base, err := domain.ParseMoney(rp.Price.Amount.String(), rp.Price.Currency)
	if err != nil {
		return domain.RateQuote{}, voicehiveerr.Validation("apaleo: bad rate amount for "+req.RatePlan, err)
	}
	taxes := domain.MoneyFromMinorUnits(0, rp.Price.Currency)
	if rp.Taxes.Amount != "" {
		taxes, err = domain.ParseMoney(rp.Taxes.Amount.String(), rp.Price.Currency)
		if err != nil {
			return domain.RateQuote{}, voicehiveerr.Validation("apaleo: bad tax amount for "+req.RatePlan, err)
		}
	}
	total, err := base.Add(taxes)
	if err != nil {
		return domain.RateQuote{}, err
	}

	return domain.RateQuote{
		PropertyID: coalesce(req.PropertyID, a.propertyID),
		RoomType:   req.RoomType,
		RatePlan:   req.RatePlan,
		From:       req.From,
		To:         req.To,
		Base:       base,
		Taxes:      taxes,
		Total:      total,
	}, nil
}

type reservationPayload struct {
	ID        string `json:"id"`
	BookingID string `json:"bookingId"`
	Status    string `json:"status"`
	Arrival   string `json:"arrival"`
	Departure string `json:"departure"`
	Created   string `json:"created"`
	Modified  string `json:"modified"`
	Property  struct {
		ID string `json:"id"`
	} `json:"property"`
	UnitGroup struct {
		ID string `json:"id"`
	} `json:"unitGroup"`
	RatePlan struct {
		ID string `json:"id"`
	} `json:"ratePlan"`
	TotalGrossAmount struct {
		Amount   json.Number `json:"amount"`
		Currency string      `json:"currency"`
	} `json:"totalGrossAmount"`
	Booker struct {
		FirstName string `json:"firstName"`
		LastName  string `json:"lastName"`
		Email     string `json:"email"`
		Phone     string `json:"phone"`
	} `json:"booker"`
}

// toReservation maps one vendor payload into the normalized record.
// Arrival/departure come back as ISO datetimes and are truncated to
// stay-boundary dates; amounts stay fixed-point from the wire text, so
// a float64 never enters the money path.
func toReservation(p reservationPayload) (domain.Reservation, error) {
	res := domain.Reservation{
		ID:                 p.ID,
		ConfirmationNumber: p.BookingID,
		PropertyID:         p.Property.ID,
		RoomType:           p.UnitGroup.ID,
		RatePlan:           p.RatePlan.ID,
		Status:             mapReservationStatus(p.Status),
		Guest: domain.GuestProfile{
			FirstName: p.Booker.FirstName,
			LastName:  p.Booker.LastName,
			Email:     p.Booker.Email,
			Phone:     p.Booker.Phone,
		},
	}

	if p.Arrival != "" {
		from, err := domain.ParseDate(p.Arrival)
		if err != nil {
			return domain.Reservation{}, voicehiveerr.Validation("apaleo: bad arrival in reservation "+p.ID, err)
		}
		res.From = from
	}
	if p.Departure != "" {
		to, err := domain.ParseDate(p.Departure)
		if err != nil {
			return domain.Reservation{}, voicehiveerr.Validation("apaleo: bad departure in reservation "+p.ID, err)
		}
		res.To = to
	}
	if p.TotalGrossAmount.Amount != "" {
		total, err := domain.ParseMoney(p.TotalGrossAmount.Amount.String(), p.TotalGrossAmount.Currency)
		if err != nil {
			return domain.Reservation{}, voicehiveerr.Validation("apaleo: bad amount in reservation "+p.ID, err)
		}
		res.Total = total
	}
	if t, err := time.Parse(time.RFC3339, p.Created); err == nil {
		res.CreatedAt = t
	}
	if t, err := time.Parse(time.RFC3339, p.Modified); err == nil {
		res.UpdatedAt = t
	}
	return res, nil
}

// mapReservationStatus normalizes Apaleo's American-spelled "Canceled"
// wire value to the internal "cancelled"; unknown vendor statuses map
// to ReservationUnknown, never to a happy-path status.
func mapReservationStatus(s string) domain.ReservationStatus {
	switch s {
	case "Confirmed":
		return domain.ReservationConfirmed
	case "Canceled":
		return domain.ReservationCancelled
	case "CheckedIn", "InHouse":
		return domain.ReservationCheckedIn
	case "CheckedOut":
		return domain.ReservationCheckedOut
	case "NoShow":
		return domain.ReservationNoShow
	default:
		return domain.ReservationUnknown
	}
}

func (a *Adapter) CreateReservation(ctx context.Context, req domain.ReservationRequest) (domain.Reservation, error) {
	body := map[string]any{
		"propertyId": coalesce(req.PropertyID, a.propertyID),
		"arrival":    req.From.String(),
		"departure":  req.To.String(),
		"unitGroupId": req.RoomType,
		"ratePlanId":  req.RatePlan,
		"booker": map[string]any{
			"firstName": req.Guest.FirstName,
			"lastName":  req.Guest.LastName,
			"email":     req.Guest.Email,
			"phone":     req.Guest.Phone,
		},
		"adults": req.Occupancy,
	}
	if req.IdempotencyKey != "" {
		body["idempotencyKey"] = req.IdempotencyKey
	}
	resp, err := a.client.request(ctx, http.MethodPost, "/booking/v1/reservations", nil, body)
	if err != nil {
		return domain.Reservation{}, err
	}
	var p reservationPayload
	if err := decodeJSON(resp, &p); err != nil {
		return domain.Reservation{}, err
	}
	return toReservation(p)
}

func (a *Adapter) GetReservation(ctx context.Context, id string) (domain.Reservation, error) {
	resp, err := a.client.request(ctx, http.MethodGet, fmt.Sprintf("/booking/v1/reservations/%s", id), nil, nil)
	if err != nil {
		return domain.Reservation{}, err
	}
	var p reservationPayload
	if err := decodeJSON(resp, &p); err != nil {
		return domain.Reservation{}, err
	}
	return toReservation(p)
}

// ModifyReservation PATCHes /booking/v1/bookings/{id} with only the
// fields the caller set, reserved for partial-field edits (arrival,
// departure, room type); distinct from CancelReservation's DELETE,
// resolving the two cancellation-shaped endpoints the vendor exposes.
func (a *Adapter) ModifyReservation(ctx context.Context, id string, mod domain.ReservationModification) (domain.Reservation, error) {
	body := map[string]any{}
	if mod.From != nil {
		body["arrival"] = mod.From.String()
	}
	if mod.To != nil {
		body["departure"] = mod.To.String()
	}
	if mod.RoomType != nil {
		body["unitGroupId"] = *mod.RoomType
	}

	resp, err := a.client.request(ctx, http.MethodPatch, fmt.Sprintf("/booking/v1/bookings/%s", id), nil, body)
	if err != nil {
		return domain.Reservation{}, err
	}
	var p reservationPayload
	if err := decodeJSON(resp, &p); err != nil {
		return domain.Reservation{}, err
	}
	return toReservation(p)
}

// CancelReservation issues DELETE /booking/v1/reservations/{id}, the
// endpoint Apaleo's own connector test suite exercises for cancellation
// (as opposed to PATCHing a status field via ModifyReservation).
func (a *Adapter) CancelReservation(ctx context.Context, id string, reason string) error {
	body := map[string]any{"reason": reason}
	resp, err := a.client.request(ctx, http.MethodDelete, fmt.Sprintf("/booking/v1/reservations/%s", id), nil, body)
	if err != nil {
		return err
	}
	return decodeJSON(resp, nil)
}

type guestPayload struct {
	ID        string `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
}

type guestSearchResponse struct {
	Guests []guestPayload `json:"guests"`
}

func (a *Adapter) SearchGuest(ctx context.Context, req domain.GuestSearchRequest) ([]domain.GuestProfile, error) {
	query := url.Values{}
	if req.Email != "" {
		query.Set("email", req.Email)
	} else {
		query.Set("textSearch", fmt.Sprintf("%s %s", req.FirstName, req.LastName))
	}

	resp, err := a.client.request(ctx, http.MethodGet, "/booking/v1/guests", query, nil)
	if err != nil {
		return nil, err
	}
	var out guestSearchResponse
	if err := decodeJSON(resp, &out); err != nil {
		return nil, err
	}

	profiles := make([]domain.GuestProfile, 0, len(out.Guests))
	for _, g := range out.Guests {
		profiles = append(profiles, domain.GuestProfile{
			ID: g.ID, FirstName: g.FirstName, LastName: g.LastName, Email: g.Email, Phone: g.Phone,
		})
	}
	return profiles, nil
}

// UpsertGuestProfile is a pass-through: Apaleo has no upsert-guest
// endpoint, so the adapter returns the input unchanged with the consent
// timestamp stamped.
func (a *Adapter) UpsertGuestProfile(ctx context.Context, g domain.GuestProfile) (domain.GuestProfile, error) {
	g.Consent.RecordedAt = time.Now()
	return g, nil
}

func coalesce(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
