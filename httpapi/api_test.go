package httpapi_test

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gatiride/gati-platform/engine/dispatch"
	"github.com/gatiride/gati-platform/engine/driver"
	"github.com/gatiride/gati-platform/engine/fare"
	"github.com/gatiride/gati-platform/engine/health"
	"github.com/gatiride/gati-platform/engine/httpapi"
	"github.com/gatiride/gati-platform/engine/logging"
	"github.com/gatiride/gati-platform/engine/stream"
	enginetest "github.com/gatiride/gati-platform/engine/testing"
	"github.com/gatiride/gati-platform/engine/testing/fixtures"
	"github.com/gatiride/gati-platform/engine/zone"
)

// testServer wires a full in-memory engine behind the router.
type testServer struct {
	handler http.Handler
	zones   *zone.Index
	rules   *fare.Table
	roster  *driver.Roster
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	logger := logging.NewLogger("error")
	zones := zone.NewIndex(nil)
	if err := zones.Create(fixtures.CityZone(), "test"); err != nil {
		t.Fatalf("Create zone: %v", err)
	}

	rules := fare.NewTable(nil)
	if err := rules.Upsert(fixtures.MeteredRule(), "test"); err != nil {
		t.Fatalf("Upsert rule: %v", err)
	}

	calc := fare.NewCalculator(fare.DefaultPolicy())
	roster := driver.NewRoster(driver.DefaultRosterConfig(), nil)
	dispatcher := dispatch.NewDispatcher(zones, rules, calc, roster, dispatch.DefaultConfig(), logger, nil)

	applier := stream.NewApplier(roster, logger)

	checker := health.NewChecker("test")
	checker.AddCheck("zones", health.ZonesLoadedCheck(zones), true)
	checker.AddCheck("fare_rules", health.FareRulesCheck(rules), true)

	api := httpapi.NewAPI(zones, rules, calc, nil, dispatcher, roster, roster, applier, checker, logger)
	return &testServer{
		handler: httpapi.NewRouter(api, logger, nil),
		zones:   zones,
		rules:   rules,
		roster:  roster,
	}
}

func (s *testServer) do(t *testing.T, req *enginetest.HTTPTestRequest) *enginetest.HTTPTestResponse {
	t.Helper()
	return enginetest.ExecuteRequest(t, s.handler, req.Build(t))
}

// envelope decodes the standard response wrapper into a typed payload.
func decodeData(t *testing.T, resp *enginetest.HTTPTestResponse, out interface{}) {
	t.Helper()
	var env struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	resp.DecodeJSON(&env)
	if !env.Success {
		t.Fatalf("response not successful: %s", resp.Body.String())
	}
	if out != nil {
		if err := json.Unmarshal(env.Data, out); err != nil {
			t.Fatalf("decode data: %v", err)
		}
	}
}

func tripBody() map[string]interface{} {
	return map[string]interface{}{
		"pickup":        map[string]float64{"lat": fixtures.HosurCenter.Lat, "lng": fixtures.HosurCenter.Lng},
		"dropoff":       map[string]float64{"lat": fixtures.InsideHosur.Lat, "lng": fixtures.InsideHosur.Lng},
		"booking_type":  "regular",
		"vehicle_class": "sedan",
		"distance_km":   5,
		"duration_min":  12,
	}
}

func TestQuoteEndpoint(t *testing.T) {
	s := newTestServer(t)

	t.Run("prices a serviceable trip", func(t *testing.T) {
		resp := s.do(t, enginetest.NewHTTPTestRequest(http.MethodPost, "/v1/quotes").WithBody(tripBody()))
		resp.AssertOK()

		var got struct {
			ZoneID string         `json:"zone_id"`
			Quote  fare.Breakdown `json:"quote"`
		}
		decodeData(t, resp, &got)
		if got.ZoneID != "zone-hosur" {
			t.Errorf("zone_id = %s, want zone-hosur", got.ZoneID)
		}
		if got.Quote.Total != 168 {
			t.Errorf("total = %v, want 168", got.Quote.Total)
		}
	})

	t.Run("outside the service area", func(t *testing.T) {
		body := tripBody()
		body["pickup"] = map[string]float64{"lat": fixtures.OutsideHosur.Lat, "lng": fixtures.OutsideHosur.Lng}

		s.do(t, enginetest.NewHTTPTestRequest(http.MethodPost, "/v1/quotes").WithBody(body)).
			AssertUnprocessable()
	})

	t.Run("no fare rule", func(t *testing.T) {
		body := tripBody()
		body["booking_type"] = "rental"

		s.do(t, enginetest.NewHTTPTestRequest(http.MethodPost, "/v1/quotes").WithBody(body)).
			AssertNotFound()
	})

	t.Run("rejects bad payloads", func(t *testing.T) {
		bad := []map[string]interface{}{
			{"booking_type": "regular"},                       // missing vehicle class
			{"booking_type": "carpool", "vehicle_class": "sedan", "pickup": map[string]float64{"lat": 12, "lng": 77}},
			{"booking_type": "regular", "vehicle_class": "sedan", "pickup": map[string]float64{"lat": 99, "lng": 77}},
		}
		for _, body := range bad {
			s.do(t, enginetest.NewHTTPTestRequest(http.MethodPost, "/v1/quotes").WithBody(body)).
				AssertBadRequest()
		}
	})
}

func TestCancellationQuoteEndpoint(t *testing.T) {
	s := newTestServer(t)

	resp := s.do(t, enginetest.NewHTTPTestRequest(http.MethodPost, "/v1/quotes/cancellation").WithBody(map[string]string{
		"booking_type":  "regular",
		"vehicle_class": "sedan",
	}))
	resp.AssertOK()

	var got fare.Breakdown
	decodeData(t, resp, &got)
	if got.Total != 60 {
		t.Errorf("total = %v, want the cancellation fee 60", got.Total)
	}
}

func TestDispatchEndpoint(t *testing.T) {
	ctx := context.Background()

	t.Run("assigns the closest driver", func(t *testing.T) {
		s := newTestServer(t)
		s.roster.Upsert(ctx, fixtures.OnlineDriver("d-near", 0.5))
		s.roster.Upsert(ctx, fixtures.OnlineDriver("d-far", 3))

		resp := s.do(t, enginetest.NewHTTPTestRequest(http.MethodPost, "/v1/dispatch").WithBody(map[string]interface{}{
			"ride_id": "ride-1",
			"trip":    tripBody(),
		}))
		resp.AssertOK()

		var got dispatch.Result
		decodeData(t, resp, &got)
		if got.AssignedDriverID != "d-near" {
			t.Errorf("assigned %s, want d-near", got.AssignedDriverID)
		}

		d, _ := s.roster.Get(ctx, "d-near")
		if d.Status != driver.StatusBusy {
			t.Errorf("driver status = %s, want busy", d.Status)
		}
	})

	t.Run("no drivers is a conflict", func(t *testing.T) {
		s := newTestServer(t)
		s.do(t, enginetest.NewHTTPTestRequest(http.MethodPost, "/v1/dispatch").WithBody(map[string]interface{}{
			"ride_id": "ride-1",
			"trip":    tripBody(),
		})).AssertConflict()
	})

	t.Run("out of area is unprocessable", func(t *testing.T) {
		s := newTestServer(t)
		trip := tripBody()
		trip["pickup"] = map[string]float64{"lat": fixtures.OutsideHosur.Lat, "lng": fixtures.OutsideHosur.Lng}

		s.do(t, enginetest.NewHTTPTestRequest(http.MethodPost, "/v1/dispatch").WithBody(map[string]interface{}{
			"ride_id": "ride-1",
			"trip":    trip,
		})).AssertUnprocessable()
	})

	t.Run("missing ride id", func(t *testing.T) {
		s := newTestServer(t)
		s.do(t, enginetest.NewHTTPTestRequest(http.MethodPost, "/v1/dispatch").WithBody(map[string]interface{}{
			"trip": tripBody(),
		})).AssertBadRequest()
	})
}

func TestPreviewEndpoint(t *testing.T) {
	ctx := context.Background()
	s := newTestServer(t)
	s.roster.Upsert(ctx, fixtures.OnlineDriver("d1", 0.5))

	resp := s.do(t, enginetest.NewHTTPTestRequest(http.MethodPost, "/v1/dispatch/preview").WithBody(tripBody()))
	resp.AssertOK()

	var got dispatch.Result
	decodeData(t, resp, &got)
	if got.AssignedDriverID != "" {
		t.Errorf("preview assigned %s", got.AssignedDriverID)
	}
	if len(got.Candidates) != 1 {
		t.Errorf("candidates = %d, want 1", len(got.Candidates))
	}

	d, _ := s.roster.Get(ctx, "d1")
	if d.Status != driver.StatusOnline {
		t.Errorf("driver status = %s, preview must not claim", d.Status)
	}
}

func TestServiceabilityEndpoint(t *testing.T) {
	s := newTestServer(t)

	t.Run("covered point", func(t *testing.T) {
		resp := s.do(t, enginetest.NewHTTPTestRequest(http.MethodGet, "/v1/serviceability?lat=12.1266&lng=77.8308"))
		resp.AssertOK()

		var got zone.LookupResult
		decodeData(t, resp, &got)
		if !got.Covered || len(got.ZoneIDs) != 1 {
			t.Errorf("got %+v, want covered by zone-hosur", got)
		}
	})

	t.Run("uncovered point", func(t *testing.T) {
		resp := s.do(t, enginetest.NewHTTPTestRequest(http.MethodGet, "/v1/serviceability?lat=13.0827&lng=80.2707"))
		resp.AssertOK()

		var got zone.LookupResult
		decodeData(t, resp, &got)
		if got.Covered {
			t.Errorf("got %+v, want uncovered", got)
		}
	})

	t.Run("bad coordinates", func(t *testing.T) {
		s.do(t, enginetest.NewHTTPTestRequest(http.MethodGet, "/v1/serviceability?lat=abc&lng=77")).
			AssertBadRequest()
		s.do(t, enginetest.NewHTTPTestRequest(http.MethodGet, "/v1/serviceability?lat=95&lng=77")).
			AssertBadRequest()
	})
}

func TestDriverEventsEndpoint(t *testing.T) {
	ctx := context.Background()
	s := newTestServer(t)

	register := map[string]interface{}{
		"type":      "driver.registered",
		"driver_id": "d1",
		"timestamp": "2026-03-14T11:00:00Z",
		"payload":   map[string]interface{}{"rating": 4.6, "verified": true, "vehicle_class": "sedan"},
	}
	s.do(t, enginetest.NewHTTPTestRequest(http.MethodPost, "/v1/driver-events").WithBody(register)).
		AssertStatus(http.StatusAccepted)

	d, err := s.roster.Get(ctx, "d1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if d.Rating != 4.6 || !d.Verified {
		t.Errorf("driver = %+v, want rating 4.6 verified", d)
	}

	t.Run("malformed event", func(t *testing.T) {
		s.do(t, enginetest.NewHTTPTestRequest(http.MethodPost, "/v1/driver-events").WithBody(map[string]string{
			"type": "driver.sneezed",
		})).AssertBadRequest()
	})
}

func TestGetDriverEndpoint(t *testing.T) {
	ctx := context.Background()
	s := newTestServer(t)
	s.roster.Upsert(ctx, fixtures.OnlineDriver("d1", 0))

	resp := s.do(t, enginetest.NewHTTPTestRequest(http.MethodGet, "/v1/drivers/d1"))
	resp.AssertOK()

	var got driver.Driver
	decodeData(t, resp, &got)
	if got.ID != "d1" || got.Status != driver.StatusOnline {
		t.Errorf("got %+v", got)
	}

	s.do(t, enginetest.NewHTTPTestRequest(http.MethodGet, "/v1/drivers/ghost")).AssertNotFound()
}

func TestSuspendDriverEndpoint(t *testing.T) {
	ctx := context.Background()
	s := newTestServer(t)
	s.roster.Upsert(ctx, fixtures.OnlineDriver("d1", 0))

	s.do(t, enginetest.NewHTTPTestRequest(http.MethodPatch, "/v1/drivers/d1/suspension").
		WithActor("admin-1").
		WithBody(map[string]bool{"suspended": true})).
		AssertStatus(http.StatusNoContent)

	d, _ := s.roster.Get(ctx, "d1")
	if d.Status != driver.StatusSuspended {
		t.Errorf("status = %s, want suspended", d.Status)
	}

	s.do(t, enginetest.NewHTTPTestRequest(http.MethodPatch, "/v1/drivers/d1/suspension").
		WithActor("admin-1").
		WithBody(map[string]bool{"suspended": false})).
		AssertStatus(http.StatusNoContent)

	d, _ = s.roster.Get(ctx, "d1")
	if d.Status != driver.StatusOffline {
		t.Errorf("status = %s, reinstatement lands on offline", d.Status)
	}

	s.do(t, enginetest.NewHTTPTestRequest(http.MethodPatch, "/v1/drivers/ghost/suspension").
		WithActor("admin-1").
		WithBody(map[string]bool{"suspended": true})).
		AssertNotFound()
}

func TestHealthEndpoints(t *testing.T) {
	s := newTestServer(t)

	s.do(t, enginetest.NewHTTPTestRequest(http.MethodGet, "/healthz")).AssertOK()
	s.do(t, enginetest.NewHTTPTestRequest(http.MethodGet, "/readyz")).AssertOK()
	s.do(t, enginetest.NewHTTPTestRequest(http.MethodGet, "/health")).AssertOK()
}

func TestRequestIDEcho(t *testing.T) {
	s := newTestServer(t)

	resp := s.do(t, enginetest.NewHTTPTestRequest(http.MethodGet, "/healthz"))
	if resp.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID header missing")
	}

	resp = s.do(t, enginetest.NewHTTPTestRequest(http.MethodGet, "/healthz").WithHeader("X-Request-ID", "req-42"))
	if got := resp.Header().Get("X-Request-ID"); got != "req-42" {
		t.Errorf("X-Request-ID = %q, want the caller's id echoed", got)
	}
}
