package handler

import (
	"io"
	"log/slog"
	"net/http"
	"slices"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"census/internal/citizens/aggregate"
	"census/internal/citizens/models"
	"census/internal/citizens/service"
	"census/internal/citizens/store"
	"census/internal/platform/metrics"
	id "census/pkg/domain"
	tu "census/pkg/testutil"
)

const family = `{"citizens": [
	{"citizen_id": 1, "town": "Москва", "street": "Льва Толстого", "building": "16к7стр5", "apartment": 7,
	 "name": "Иванов Иван Иванович", "birth_date": "26.12.1986", "gender": "male", "relatives": [2]},
	{"citizen_id": 2, "town": "Москва", "street": "Льва Толстого", "building": "16к7стр5", "apartment": 7,
	 "name": "Иванов Сергей Иванович", "birth_date": "01.04.1997", "gender": "male", "relatives": [1]},
	{"citizen_id": 3, "town": "Керчь", "street": "Иосифа Бродского", "building": "2", "apartment": 11,
	 "name": "Романова Мария Леонидовна", "birth_date": "23.11.1986", "gender": "female", "relatives": []}
]}`

func newRouter(t *testing.T) (http.Handler, *metrics.Metrics) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := service.New(store.NewInMemory(), store.NewMemoryAllocator(), service.WithLogger(logger))
	m := metrics.NewWithRegistry(prometheus.NewRegistry())

	r := chi.NewRouter()
	New(svc, logger, m).Register(r)
	return r, m
}

func TestRouterImportPatchAndRead(t *testing.T) {
	router, m := newRouter(t)

	rr := tu.DoRequest(router, tu.NewRequestWithBody(t, http.MethodPost, "/imports", family))
	tu.AssertStatus(t, rr, http.StatusCreated)
	importID := tu.UnmarshalData[map[string]id.ImportID](t, rr)["import_id"]
	require.Equal(t, id.ImportID(1), importID)

	rr = tu.DoRequest(router, tu.NewRequestWithBody(t, http.MethodPatch, "/imports/1/citizens/3",
		`{"name": "Иванова Мария Леонидовна", "town": "Москва", "relatives": [1]}`))
	tu.AssertStatus(t, rr, http.StatusOK)
	patched := tu.UnmarshalData[models.Citizen](t, rr)
	assert.Equal(t, "Иванова Мария Леонидовна", patched.Name)
	assert.Equal(t, "Иосифа Бродского", patched.Street)
	assert.Equal(t, []id.CitizenID{1}, patched.Relatives)

	rr = tu.DoRequest(router, tu.NewJSONRequest(t, http.MethodGet, "/imports/1/citizens", nil))
	tu.AssertStatus(t, rr, http.StatusOK)
	citizens := tu.UnmarshalData[[]models.Citizen](t, rr)
	require.Len(t, citizens, 3)
	assert.Equal(t, []id.CitizenID{2, 3}, citizens[0].Relatives)
	assert.Equal(t, []id.CitizenID{1}, citizens[1].Relatives)
	assert.Equal(t, "01.04.1997", citizens[1].BirthDate.String())

	rr = tu.DoRequest(router, tu.NewJSONRequest(t, http.MethodGet, "/imports/1/citizens/birthdays", nil))
	tu.AssertStatus(t, rr, http.StatusOK)
	months := tu.UnmarshalData[map[string][]models.Presents](t, rr)
	assert.Len(t, months, 12)
	assert.Equal(t, []models.Presents{{CitizenID: 1, Presents: 1}}, months["4"])
	assert.ElementsMatch(t, []models.Presents{{CitizenID: 2, Presents: 1}, {CitizenID: 3, Presents: 1}}, months["12"])
	assert.Equal(t, []models.Presents{{CitizenID: 1, Presents: 1}}, months["11"])
	assert.Empty(t, months["1"])

	rr = tu.DoRequest(router, tu.NewJSONRequest(t, http.MethodGet, "/imports/1/towns/stat/percentile/age", nil))
	tu.AssertStatus(t, rr, http.StatusOK)
	stats := tu.UnmarshalData[[]models.TownAgeStats](t, rr)
	require.Len(t, stats, 1)
	assert.Equal(t, "Москва", stats[0].Town)

	today := time.Now().UTC()
	ages := []float64{
		float64(aggregate.Age(models.NewBirthDate(1997, time.April, 1), today)),
		float64(aggregate.Age(models.NewBirthDate(1986, time.December, 26), today)),
		float64(aggregate.Age(models.NewBirthDate(1986, time.November, 23), today)),
	}
	slices.Sort(ages)
	assert.InDelta(t, aggregate.Round2(aggregate.Percentile(ages, aggregate.P50)), stats[0].P50, 1)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("/imports", http.MethodPost, "201")))
}

func TestRouterRejectsBeforeStoring(t *testing.T) {
	router, _ := newRouter(t)

	rr := tu.DoRequest(router, tu.NewRequestWithBody(t, http.MethodPost, "/imports",
		`{"citizens": [{"citizen_id": 1, "town": "Москва", "street": "a", "building": "b", "apartment": 1,
		  "name": "n", "birth_date": "01.01.2000", "gender": "male", "relatives": [2]}]}`))
	tu.AssertStatusAndError(t, rr, http.StatusBadRequest, "validation_error")

	rr = tu.DoRequest(router, tu.NewRequestWithBody(t, http.MethodPost, "/imports",
		`{"citizens": [
		{"citizen_id": 1, "town": "Москва", "street": "a", "building": "b", "apartment": 1,
		 "name": "n", "birth_date": "01.01.2000", "gender": "male", "relatives": []},
		{"citizen_id": 1, "town": "Москва", "street": "a", "building": "b", "apartment": 1,
		 "name": "n", "birth_date": "31.02.2000", "gender": "male", "relatives": []}]}`))
	tu.AssertStatusAndError(t, rr, http.StatusBadRequest, "validation_error")
	assert.Contains(t, tu.UnmarshalErrorResponse(t, rr)["detail"], "duplicate citizen id: 1")

	rr = tu.DoRequest(router, tu.NewJSONRequest(t, http.MethodGet, "/imports/1/citizens", nil))
	tu.AssertStatusAndError(t, rr, http.StatusNotFound, "not_found")

	rr = tu.DoRequest(router, tu.NewRequestWithBody(t, http.MethodPost, "/imports", family))
	tu.AssertStatus(t, rr, http.StatusCreated)

	rr = tu.DoRequest(router, tu.NewRequestWithBody(t, http.MethodPatch, "/imports/1/citizens/1", `{"relatives": [2, 42]}`))
	tu.AssertStatusAndError(t, rr, http.StatusBadRequest, "unknown_relative")

	rr = tu.DoRequest(router, tu.NewRequestWithBody(t, http.MethodPatch, "/imports/1/citizens/1", `{}`))
	tu.AssertStatusAndError(t, rr, http.StatusBadRequest, "empty_patch")

	rr = tu.DoRequest(router, tu.NewJSONRequest(t, http.MethodGet, "/healthz", nil))
	tu.AssertStatus(t, rr, http.StatusOK)
}

func TestRouterImportZeroIsMissing(t *testing.T) {
	router, _ := newRouter(t)
	rr := tu.DoRequest(router, tu.NewRequestWithBody(t, http.MethodPost, "/imports", family))
	tu.AssertStatus(t, rr, http.StatusCreated)

	rr = tu.DoRequest(router, tu.NewRequestWithBody(t, http.MethodPatch, "/imports/0/citizens/1", `{"name": "x"}`))
	tu.AssertStatusAndError(t, rr, http.StatusNotFound, "not_found")

	for _, path := range []string{
		"/imports/0/citizens",
		"/imports/0/citizens/birthdays",
		"/imports/0/towns/stat/percentile/age",
	} {
		rr = tu.DoRequest(router, tu.NewJSONRequest(t, http.MethodGet, path, nil))
		tu.AssertStatusAndError(t, rr, http.StatusNotFound, "not_found")
	}
}

func TestRouterPatchWithoutPatchableFieldsIsEmpty(t *testing.T) {
	router, _ := newRouter(t)
	rr := tu.DoRequest(router, tu.NewRequestWithBody(t, http.MethodPost, "/imports", family))
	tu.AssertStatus(t, rr, http.StatusCreated)

	for _, body := range []string{`{"foo": 1}`, `{"citizen_id": 1}`} {
		rr = tu.DoRequest(router, tu.NewRequestWithBody(t, http.MethodPatch, "/imports/1/citizens/1", body))
		tu.AssertStatusAndError(t, rr, http.StatusBadRequest, "empty_patch")
	}

	rr = tu.DoRequest(router, tu.NewRequestWithBody(t, http.MethodPatch, "/imports/1/citizens/1",
		`{"citizen_id": 1, "name": "x"}`))
	tu.AssertStatusAndError(t, rr, http.StatusBadRequest, "invalid_field")
}
