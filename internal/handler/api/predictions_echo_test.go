package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MarketPulse/internal/domain/models"
	"MarketPulse/internal/usecase"
)

type fakeService struct {
	listReq    models.ListPredictionsRequest
	refreshReq models.RefreshRequest
	items      []models.SymbolPrediction
	err        error
	refreshErr error
}

func (f *fakeService) List(_ context.Context, req models.ListPredictionsRequest) ([]models.SymbolPrediction, error) {
	f.listReq = req
	return f.items, f.err
}

func (f *fakeService) Get(_ context.Context, symbol string) (models.SymbolPrediction, error) {
	for _, it := range f.items {
		if strings.EqualFold(it.Symbol, symbol) {
			return it, nil
		}
	}
	return models.SymbolPrediction{}, fmt.Errorf("%w: %s", usecase.ErrNotFound, symbol)
}

func (f *fakeService) Stats(context.Context) (models.PredictionStats, error) {
	return models.PredictionStats{TotalStocks: len(f.items)}, f.err
}

func (f *fakeService) Sectors(context.Context) ([]string, error) {
	return []string{"Technology"}, f.err
}

func (f *fakeService) Refresh(_ context.Context, req models.RefreshRequest) (string, error) {
	f.refreshReq = req
	return "job-42", f.refreshErr
}

type envelope struct {
	Status int             `json:"status"`
	Data   json.RawMessage `json:"data"`
}

func serve(t *testing.T, svc PredictionsService, method, target, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	e := echo.New()
	NewPredictionsEchoHandler(nil, svc).RegisterRoutes(e)

	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec, env
}

func TestListAppliesDefaults(t *testing.T) {
	svc := &fakeService{items: []models.SymbolPrediction{{Symbol: "AAPL"}}}
	rec, env := serve(t, svc, http.MethodGet, "/api/predictions?sector=Technology", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "symbol", svc.listReq.Sort)
	assert.Equal(t, "desc", svc.listReq.Order)
	assert.Equal(t, "Technology", svc.listReq.Sector)

	var data struct {
		Rows  []models.SymbolPrediction `json:"rows"`
		Total int64                     `json:"total"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, int64(1), data.Total)
	assert.Equal(t, "AAPL", data.Rows[0].Symbol)
}

func TestListRejectsBadParams(t *testing.T) {
	rec, _ := serve(t, &fakeService{}, http.MethodGet, "/api/predictions?order=sideways", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = serve(t, &fakeService{}, http.MethodGet, "/api/predictions?signal=moon", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetSymbol(t *testing.T) {
	svc := &fakeService{items: []models.SymbolPrediction{{Symbol: "MSFT", Signal: models.SignalBuy}}}

	rec, env := serve(t, svc, http.MethodGet, "/api/predictions/msft", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	var got models.SymbolPrediction
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.Equal(t, models.SignalBuy, got.Signal)

	rec, env = serve(t, svc, http.MethodGet, "/api/predictions/NOPE", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, http.StatusNotFound, env.Status)
}

func TestStaticRoutesWinOverSymbol(t *testing.T) {
	svc := &fakeService{items: []models.SymbolPrediction{{Symbol: "A"}, {Symbol: "B"}}}

	rec, env := serve(t, svc, http.MethodGet, "/api/predictions/stats/summary", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `2`, string(mustField(t, env.Data, "totalStocks")))

	rec, env = serve(t, svc, http.MethodGet, "/api/predictions/filters/sectors", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `["Technology"]`, string(env.Data))
}

func TestRefresh(t *testing.T) {
	svc := &fakeService{}
	rec, env := serve(t, svc, http.MethodPost, "/api/predictions/refresh", `{"symbols":["AAPL","MSFT"]}`)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.JSONEq(t, `{"job_id":"job-42"}`, string(env.Data))
	assert.Equal(t, []string{"AAPL", "MSFT"}, svc.refreshReq.Symbols)

	disabled := &fakeService{refreshErr: usecase.ErrQueueDisabled}
	rec, _ = serve(t, disabled, http.MethodPost, "/api/predictions/refresh", `{}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestStoreErrorIsInternal(t *testing.T) {
	rec, env := serve(t, &fakeService{err: errors.New("db down")}, http.MethodGet, "/api/predictions", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, string(env.Data), "db down")
}

func mustField(t *testing.T, raw json.RawMessage, key string) json.RawMessage {
	t.Helper()
	var m map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &m))
	return m[key]
}
