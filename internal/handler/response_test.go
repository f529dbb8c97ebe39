package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"textilemart/internal/usecase"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newContext(target string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestAmountUnmarshal(t *testing.T) {
	cases := []struct {
		in   string
		want amount
	}{
		{`"12.50"`, "12.50"},
		{`12.5`, "12.5"},
		{`100`, "100"},
		{`null`, ""},
	}
	for _, tc := range cases {
		var body struct {
			Amount amount `json:"amount"`
		}
		require.NoError(t, json.Unmarshal([]byte(`{"amount":`+tc.in+`}`), &body), tc.in)
		assert.Equal(t, tc.want, body.Amount, tc.in)
	}

	var body struct {
		Amount amount `json:"amount"`
	}
	assert.Error(t, json.Unmarshal([]byte(`{"amount":true}`), &body))
}

func TestWriteError(t *testing.T) {
	c, rec := newContext("/")
	require.NoError(t, writeError(c, usecase.NewHTTPError(http.StatusConflict, "user already exists")))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.JSONEq(t, `{"error":"user already exists"}`, rec.Body.String())

	c, rec = newContext("/")
	require.NoError(t, writeError(c, errors.New("pq: connection refused")))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"internal error"}`, rec.Body.String())
}

func TestQueryHelpers(t *testing.T) {
	c, _ := newContext("/?page=2&limit=x&from=2026-01-02&to=2026-01-03T10:00:00Z&user=7")

	page, err := queryInt(c, "page")
	require.NoError(t, err)
	assert.Equal(t, 2, page)

	_, err = queryInt(c, "limit")
	he, ok := usecase.AsHTTPError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadRequest, he.Status)

	missing, err := queryInt(c, "offset")
	require.NoError(t, err)
	assert.Zero(t, missing)

	from, err := queryTime(c, "from")
	require.NoError(t, err)
	assert.Equal(t, 2, from.Day())

	to, err := queryTime(c, "to")
	require.NoError(t, err)
	assert.Equal(t, 10, to.Hour())

	user, err := queryInt64Ptr(c, "user")
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, int64(7), *user)
}

func TestPathID(t *testing.T) {
	c, _ := newContext("/")
	c.SetParamNames("id")
	c.SetParamValues("0")
	_, err := pathID(c, "id")
	he, ok := usecase.AsHTTPError(err)
	require.True(t, ok)
	assert.Equal(t, "invalid id", he.Message)

	c.SetParamValues("42")
	id, err := pathID(c, "id")
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
}
