package apaleo

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voicehive-hotels/orchestrator/internal/domain"
)

func TestStreamArrivals_PagesUntilShortPage(t *testing.T) {
	var pagesServed []int
	srv, adapter := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/booking/v1/reservations", r.URL.Path)
		require.Equal(t, "Arrival", r.URL.Query().Get("dateFilter"))

		pageNumber, err := strconv.Atoi(r.URL.Query().Get("pageNumber"))
		require.NoError(t, err)
		pagesServed = append(pagesServed, pageNumber)

		// Page 1 is full, page 2 is short: the stream must stop after 2.
		count := streamPageSize
		if pageNumber > 1 {
			count = 3
		}
		payloads := make([]reservationPayload, count)
		for i := range payloads {
			payloads[i] = reservationPayload{
				ID:     "res-" + strconv.Itoa(pageNumber) + "-" + strconv.Itoa(i),
				Status: "Confirmed",
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(reservationListResponse{Reservations: payloads, Count: count})
	})
	defer srv.Close()

	stream := adapter.StreamArrivals("DEMO01", domain.NewDate(2024, 6, 1))

	var seen int
	for {
		res, ok, err := stream.Next(context.Background())
		require.NoError(t, err)
		if !ok {
			break
		}
		assert.Equal(t, domain.ReservationConfirmed, res.Status)
		seen++
	}

	assert.Equal(t, streamPageSize+3, seen)
	assert.Equal(t, []int{1, 2}, pagesServed)
}

func TestStreamInHouse_CancellationStopsAtPageBoundary(t *testing.T) {
	srv, adapter := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		payloads := make([]reservationPayload, streamPageSize)
		for i := range payloads {
			payloads[i] = reservationPayload{ID: "res-" + strconv.Itoa(i), Status: "InHouse"}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(reservationListResponse{Reservations: payloads, Count: streamPageSize})
	})
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	stream := adapter.StreamInHouse("DEMO01")

	// Drain the first page; cancel mid-stream.
	for i := 0; i < streamPageSize; i++ {
		res, ok, err := stream.Next(ctx)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, domain.ReservationCheckedIn, res.Status)
	}
	cancel()

	_, ok, err := stream.Next(ctx)
	assert.False(t, ok)
	require.Error(t, err)

	// A failed stream stays failed.
	_, ok, err = stream.Next(context.Background())
	assert.False(t, ok)
	require.Error(t, err)
}

func TestStreamArrivals_IsFiniteAfterExhaustion(t *testing.T) {
	srv, adapter := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(reservationListResponse{})
	})
	defer srv.Close()

	stream := adapter.StreamArrivals("DEMO01", domain.NewDate(2024, 6, 1))

	_, ok, err := stream.Next(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = stream.Next(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}
