package handlers

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"legal_case_ai_go/db"
	"legal_case_ai_go/models"
	"legal_case_ai_go/services"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	// Unique shared memory name isolates tests from each other.
	dbName := "mem_" + uuid.New().String()
	testDB, err := gorm.Open(sqlite.Open("file:"+dbName+"?mode=memory&cache=shared&_busy_timeout=5000"), &gorm.Config{})
	assert.NoError(t, err)

	assert.NoError(t, testDB.AutoMigrate(&models.Case{}, &models.Analysis{}))

	if services.Storage == nil {
		services.Storage = services.NewLocalStorage(t.TempDir())
	}

	db.DB = testDB
	return testDB
}

func setupEcho(method, target string, body io.Reader) (*echo.Echo, echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(method, target, body)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	return e, c, rec
}

func jsonBody(t *testing.T, v interface{}) io.Reader {
	t.Helper()
	data, err := json.Marshal(v)
	assert.NoError(t, err)
	return strings.NewReader(string(data))
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	var resp APIResponse
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func createCaseFixture(t *testing.T, database *gorm.DB) *models.Case {
	t.Helper()
	created, err := services.CreateCase(database, services.CreateCaseInput{
		Title:    "Smith v. Jones",
		CaseType: models.CaseTypeCivil,
		CaseText: strings.Repeat("The plaintiff alleges breach of contract. ", 3),
	})
	assert.NoError(t, err)
	return created
}
