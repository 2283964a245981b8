package zones

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaiso/WasteOps/internal/domain"
	"github.com/shaiso/WasteOps/internal/resolver"
	"github.com/shaiso/WasteOps/internal/telemetry"
)

func noSleep(context.Context, time.Duration) error { return nil }

func newTestService(t *testing.T, handlers ...http.HandlerFunc) (*Service, *atomic.Int32) {
	t.Helper()

	var hits atomic.Int32
	candidates := make([]resolver.RequestSpec, 0, len(handlers))
	for _, h := range handlers {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hits.Add(1)
			h(w, r)
		}))
		t.Cleanup(server.Close)
		candidates = append(candidates, resolver.RequestSpec{URL: server.URL})
	}

	r := resolver.New(resolver.Config{
		Policy: resolver.Policy{MaxRetries: 1, BaseDelay: time.Millisecond},
		Sleep:  noSleep,
		Logger: telemetry.Discard(),
	})

	return New(Config{Resolver: r, Candidates: candidates, Logger: telemetry.Discard()}), &hits
}

func respond(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(status)
		w.Write([]byte(body))
	}
}

func TestResolveZones_AllCandidatesFailReturnsDefaults(t *testing.T) {
	svc, _ := newTestService(t,
		respond(http.StatusInternalServerError, "down"),
		respond(http.StatusUnauthorized, ""),
		respond(http.StatusBadGateway, ""),
	)

	zones, err := svc.ResolveZones(context.Background())

	require.ErrorIs(t, err, ErrDefaultsUsed)
	assert.True(t, resolver.IsExhausted(err))
	assert.Equal(t, domain.DefaultZones(), zones)
	assert.Len(t, zones, 5)
}

func TestResolveZones_NoCandidatesReturnsDefaults(t *testing.T) {
	svc, _ := newTestService(t)

	zones, err := svc.ResolveZones(context.Background())

	assert.ErrorIs(t, err, ErrDefaultsUsed)
	assert.Equal(t, domain.DefaultZones(), zones)
}

func TestResolveZones_EmptyResponseReturnsDefaults(t *testing.T) {
	svc, _ := newTestService(t, respond(http.StatusOK, `{"zones":[]}`))

	zones, err := svc.ResolveZones(context.Background())

	assert.ErrorIs(t, err, ErrNoZones)
	assert.Equal(t, domain.DefaultZones(), zones)
}

func TestResolveZones_Shapes(t *testing.T) {
	tests := []struct {
		name string
		body string
		want []domain.Zone
	}{
		{
			name: "array",
			body: `[{"_id":"z1","name":"Harbor","code":"H"}]`,
			want: []domain.Zone{{ID: "z1", Name: "Harbor", Code: "H"}},
		},
		{
			name: "data",
			body: `{"data":[{"id":"z2","zoneName":"Old Town"}]}`,
			want: []domain.Zone{{ID: "z2", Name: "Old Town"}},
		},
		{
			name: "zones",
			body: `{"zones":[{"zoneId":7,"title":"Airport","zoneCode":"AP"},{"name":"Docks"},{"foo":"bar"}]}`,
			want: []domain.Zone{
				{ID: "7", Name: "Airport", Code: "AP"},
				{ID: "Docks", Name: "Docks"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newTestService(t, respond(http.StatusOK, tt.body))

			zones, err := svc.ResolveZones(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.want, zones)
		})
	}
}

func TestResolveZones_FallsBackToSecondSource(t *testing.T) {
	svc, hits := newTestService(t,
		respond(http.StatusForbidden, ""),
		respond(http.StatusOK, `[{"id":"z1","name":"Harbor"}]`),
	)

	zones, err := svc.ResolveZones(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []domain.Zone{{ID: "z1", Name: "Harbor"}}, zones)
	assert.Equal(t, int32(2), hits.Load())
}

func TestZones_LoadsOnceUntilReset(t *testing.T) {
	svc, hits := newTestService(t, respond(http.StatusOK, `[{"id":"z1","name":"Harbor"}]`))
	ctx := context.Background()

	assert.False(t, svc.Loaded())

	first := svc.Zones(ctx)
	second := svc.Zones(ctx)
	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), hits.Load())
	assert.True(t, svc.Loaded())
	assert.NoError(t, svc.LastError())

	// Изменение результата не портит кэш.
	first[0].Name = "changed"
	assert.Equal(t, "Harbor", svc.Zones(ctx)[0].Name)

	svc.Reset()
	assert.False(t, svc.Loaded())
	svc.Zones(ctx)
	assert.Equal(t, int32(2), hits.Load())

	svc.Refresh(ctx)
	assert.Equal(t, int32(3), hits.Load())
}

func TestZones_FallbackIsCachedWithError(t *testing.T) {
	svc, _ := newTestService(t, respond(http.StatusInternalServerError, ""))

	zones := svc.Zones(context.Background())

	assert.Len(t, zones, 5)
	assert.ErrorIs(t, svc.LastError(), ErrDefaultsUsed)
}

func TestZoneNameFor(t *testing.T) {
	zones := []domain.Zone{
		{ID: "zone-north", Name: "North Zone", Code: "N"},
		{ID: "zone-south", Name: "South Zone", Code: "S"},
		{ID: "South Zone", Name: "Legacy South"},
	}

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"exact id", "zone-north", "North Zone"},
		{"id wins over name", "South Zone", "Legacy South"},
		{"exact name", "North Zone", "North Zone"},
		{"code", "s", "South Zone"},
		{"substring of name", "north", "North Zone"},
		{"name inside input", "legacy south sector", "Legacy South"},
		{"unknown passes through", "zone-west", "zone-west"},
		{"empty", "", Unassigned},
		{"blank", "   ", Unassigned},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ZoneNameFor(tt.input, zones))
		})
	}

	assert.Equal(t, "anything", ZoneNameFor("anything", nil))
}

func TestParseZones_EnvelopesWithoutList(t *testing.T) {
	assert.Empty(t, ParseZones([]byte(`{"data":null}`)))
	assert.Empty(t, ParseZones([]byte(`{"success":false,"message":"db down"}`)))
	assert.Equal(t, []domain.Zone{{ID: "z9", Name: "Quay"}}, ParseZones([]byte(`{"id":"z9","name":"Quay"}`)))
}
