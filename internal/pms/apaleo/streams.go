package apaleo

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/voicehive-hotels/orchestrator/internal/domain"
	"github.com/voicehive-hotels/orchestrator/internal/pms"
)

// streamPageSize bounds how many reservations one listing call fetches.
const streamPageSize = 100

type reservationListResponse struct {
	Reservations []reservationPayload `json:"reservations"`
	Count        int                  `json:"count"`
}

// StreamArrivals lazily yields every reservation arriving at the
// property on the given date.
func (a *Adapter) StreamArrivals(propertyID string, date domain.Date) *pms.ReservationStream {
	query := url.Values{
		"propertyIds": {coalesce(propertyID, a.propertyID)},
		"dateFilter":  {"Arrival"},
		"from":        {date.String()},
		"to":          {date.AddDays(1).String()},
	}
	return a.streamReservations(query)
}

// StreamInHouse lazily yields every reservation currently checked in at
// the property.
func (a *Adapter) StreamInHouse(propertyID string) *pms.ReservationStream {
	query := url.Values{
		"propertyIds": {coalesce(propertyID, a.propertyID)},
		"status":      {"InHouse"},
	}
	return a.streamReservations(query)
}

// streamReservations pages through /booking/v1/reservations. Apaleo
// paginates by page number; the continuation token is the next page
// number, present only while the page came back full.
func (a *Adapter) streamReservations(base url.Values) *pms.ReservationStream {
	return pms.NewReservationStream(func(ctx context.Context, pageToken string) (pms.ReservationPage, error) {
		pageNumber := 1
		if pageToken != "" {
			n, err := strconv.Atoi(pageToken)
			if err != nil {
				return pms.ReservationPage{}, err
			}
			pageNumber = n
		}

		query := url.Values{}
		for k, vs := range base {
			query[k] = vs
		}
		query.Set("pageNumber", strconv.Itoa(pageNumber))
		query.Set("pageSize", strconv.Itoa(streamPageSize))

		resp, err := a.client.request(ctx, http.MethodGet, "/booking/v1/reservations", query, nil)
		if err != nil {
			return pms.ReservationPage{}, err
		}
		var list reservationListResponse
		if err := decodeJSON(resp, &list); err != nil {
			return pms.ReservationPage{}, err
		}

		page := pms.ReservationPage{}
		for _, p := range list.Reservations {
			res, err := toReservation(p)
			if err != nil {
				return pms.ReservationPage{}, err
			}
			page.Reservations = append(page.Reservations, res)
		}
		if len(list.Reservations) == streamPageSize {
			page.NextPageToken = strconv.Itoa(pageNumber + 1)
		}
		return page, nil
	})
}
