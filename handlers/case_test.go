package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"legal_case_ai_go/models"
	"legal_case_ai_go/services"
)

func TestCreateCaseHandler(t *testing.T) {
	setupTestDB(t)

	t.Run("Success", func(t *testing.T) {
		body := jsonBody(t, map[string]interface{}{
			"title":    "Smith v. Jones",
			"caseType": models.CaseTypeCivil,
			"caseText": strings.Repeat("The plaintiff alleges breach of contract. ", 3),
		})
		_, c, rec := setupEcho(http.MethodPost, "/api/cases", body)

		assert.NoError(t, CreateCaseHandler(c))
		assert.Equal(t, http.StatusCreated, rec.Code)

		resp := decodeResponse(t, rec)
		assert.True(t, resp.Success)

		data, _ := json.Marshal(resp.Data)
		var created models.Case
		assert.NoError(t, json.Unmarshal(data, &created))
		assert.Regexp(t, `^CI-\d{4}-\d{3}$`, *created.CaseNumber)
		assert.Equal(t, models.CaseStatusPending, created.Status)
	})

	t.Run("ValidationErrors", func(t *testing.T) {
		body := jsonBody(t, map[string]interface{}{
			"caseType": "Maritime",
			"caseText": "too short",
		})
		_, c, rec := setupEcho(http.MethodPost, "/api/cases", body)

		assert.NoError(t, CreateCaseHandler(c))
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		resp := decodeResponse(t, rec)
		assert.False(t, resp.Success)
		// Every violation is reported in one round trip.
		assert.GreaterOrEqual(t, len(resp.Errors), 3)
	})
}

func TestGetCaseHandler(t *testing.T) {
	database := setupTestDB(t)
	created := createCaseFixture(t, database)

	_, c, rec := setupEcho(http.MethodGet, "/api/cases/"+created.ID, nil)
	c.SetParamNames("id")
	c.SetParamValues(created.ID)

	assert.NoError(t, GetCaseHandler(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	t.Run("NotFound", func(t *testing.T) {
		_, c, rec := setupEcho(http.MethodGet, "/api/cases/missing", nil)
		c.SetParamNames("id")
		c.SetParamValues("missing")

		assert.NoError(t, GetCaseHandler(c))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestUpdateCaseHandlerConflict(t *testing.T) {
	database := setupTestDB(t)
	first := createCaseFixture(t, database)
	second := createCaseFixture(t, database)

	body := jsonBody(t, map[string]interface{}{"caseNumber": *first.CaseNumber})
	_, c, rec := setupEcho(http.MethodPut, "/api/cases/"+second.ID, body)
	c.SetParamNames("id")
	c.SetParamValues(second.ID)

	assert.NoError(t, UpdateCaseHandler(c))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestDeleteCaseHandler(t *testing.T) {
	database := setupTestDB(t)
	created := createCaseFixture(t, database)

	_, c, rec := setupEcho(http.MethodDelete, "/api/cases/"+created.ID, nil)
	c.SetParamNames("id")
	c.SetParamValues(created.ID)

	assert.NoError(t, DeleteCaseHandler(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var count int64
	database.Model(&models.Case{}).Where("id = ?", created.ID).Count(&count)
	assert.Zero(t, count)
}

func TestGetCasesHandlerPagination(t *testing.T) {
	database := setupTestDB(t)
	for i := 0; i < 3; i++ {
		createCaseFixture(t, database)
	}

	_, c, rec := setupEcho(http.MethodGet, "/api/cases?page=1&limit=2", nil)
	assert.NoError(t, GetCasesHandler(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	resp := decodeResponse(t, rec)
	assert.NotNil(t, resp.Meta)
	assert.Equal(t, int64(3), resp.Meta.Total)
	assert.Equal(t, int64(2), resp.Meta.TotalPages)
}

func TestSearchCasesHandler(t *testing.T) {
	database := setupTestDB(t)
	createCaseFixture(t, database)

	_, c, rec := setupEcho(http.MethodGet, "/api/cases/search/smith", nil)
	c.SetParamNames("query")
	c.SetParamValues("smith")

	assert.NoError(t, SearchCasesHandler(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	resp := decodeResponse(t, rec)
	assert.Equal(t, int64(1), resp.Meta.Total)
}

func TestAddTimelineEventHandler(t *testing.T) {
	database := setupTestDB(t)
	created := createCaseFixture(t, database)

	body := jsonBody(t, map[string]interface{}{
		"event": "hearing scheduled",
		"type":  models.TimelineEventHearing,
	})
	_, c, rec := setupEcho(http.MethodPost, "/api/cases/"+created.ID+"/timeline", body)
	c.SetParamNames("id")
	c.SetParamValues(created.ID)

	assert.NoError(t, AddTimelineEventHandler(c))
	assert.Equal(t, http.StatusCreated, rec.Code)

	stored, err := services.GetCase(database, created.ID)
	assert.NoError(t, err)
	assert.Len(t, stored.Timeline, 1)
}
