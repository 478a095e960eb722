package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"legal_case_ai_go/db"
	"legal_case_ai_go/models"
	"legal_case_ai_go/services"
)

// CreateCaseHandler creates a new case.
func CreateCaseHandler(c echo.Context) error {
	var input services.CreateCaseInput
	if err := c.Bind(&input); err != nil {
		return c.JSON(http.StatusBadRequest, APIResponse{Success: false, Message: "Invalid request body"})
	}

	created, err := services.CreateCase(db.DB, input)
	if err != nil {
		return respondError(c, err)
	}
	return respondCreated(c, created)
}

// GetCasesHandler lists cases with filtering, sorting and pagination.
func GetCasesHandler(c echo.Context) error {
	filter := services.CaseListFilter{
		CaseType: c.QueryParam("caseType"),
		Status:   c.QueryParam("status"),
		Priority: c.QueryParam("priority"),
		SortBy:   c.QueryParam("sortBy"),
		Order:    c.QueryParam("order"),
		Page:     queryInt(c, "page", 1),
		Limit:    queryInt(c, "limit", 10),
	}

	cases, total, err := services.ListCases(db.DB, filter)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, APIResponse{
		Success: true,
		Data:    cases,
		Meta:    NewPaginationMeta(filter.Page, filter.Limit, total),
	})
}

// GetCaseHandler fetches one case by id.
func GetCaseHandler(c echo.Context) error {
	found, err := services.GetCase(db.DB, c.Param("id"))
	if err != nil {
		return respondError(c, err)
	}
	return respondOK(c, found)
}

// GetPublicCaseHandler fetches the restricted view of a case.
func GetPublicCaseHandler(c echo.Context) error {
	view, err := services.GetPublicCaseView(db.DB, c.Param("id"))
	if err != nil {
		return respondError(c, err)
	}
	return respondOK(c, view)
}

// UpdateCaseHandler applies a partial update to a case.
func UpdateCaseHandler(c echo.Context) error {
	var input services.UpdateCaseInput
	if err := c.Bind(&input); err != nil {
		return c.JSON(http.StatusBadRequest, APIResponse{Success: false, Message: "Invalid request body"})
	}

	updated, err := services.UpdateCase(db.DB, c.Param("id"), input)
	if err != nil {
		return respondError(c, err)
	}
	return respondOK(c, updated)
}

// DeleteCaseHandler deletes a case and its analyses.
func DeleteCaseHandler(c echo.Context) error {
	deleted, err := services.DeleteCase(db.DB, c.Param("id"))
	if err != nil {
		return respondError(c, err)
	}
	return respondMessage(c, fmt.Sprintf("Case deleted along with %d analyses", deleted), nil)
}

// SearchCasesHandler searches cases by title, number, parties and tags.
func SearchCasesHandler(c echo.Context) error {
	page := queryInt(c, "page", 1)
	limit := queryInt(c, "limit", 10)

	cases, total, err := services.SearchCases(db.DB, c.Param("query"), page, limit)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, APIResponse{
		Success: true,
		Data:    cases,
		Meta:    NewPaginationMeta(page, limit, total),
	})
}

// GetCaseStatsHandler returns the case book statistics overview.
func GetCaseStatsHandler(c echo.Context) error {
	stats, err := services.GetCaseStats(db.DB)
	if err != nil {
		return respondError(c, err)
	}
	return respondOK(c, stats)
}

// AddTimelineEventHandler appends an event to a case timeline.
func AddTimelineEventHandler(c echo.Context) error {
	var event models.TimelineEvent
	if err := c.Bind(&event); err != nil {
		return c.JSON(http.StatusBadRequest, APIResponse{Success: false, Message: "Invalid request body"})
	}

	updated, err := services.AddTimelineEvent(db.DB, c.Param("id"), event)
	if err != nil {
		return respondError(c, err)
	}
	return respondCreated(c, updated)
}

// AddDocumentHandler uploads a document blob and attaches its metadata to
// the case. With no file attached it accepts bare metadata, for documents
// stored elsewhere.
func AddDocumentHandler(c echo.Context) error {
	caseID := c.Param("id")

	file, err := c.FormFile("file")
	if err != nil {
		var doc models.CaseDocument
		if bindErr := c.Bind(&doc); bindErr != nil {
			return c.JSON(http.StatusBadRequest, APIResponse{Success: false, Message: "Invalid request body"})
		}
		updated, svcErr := services.AddDocument(db.DB, caseID, doc)
		if svcErr != nil {
			return respondError(c, svcErr)
		}
		return respondCreated(c, updated)
	}

	key := services.DocumentStorageKey(caseID, file.Filename)
	stored, err := services.Storage.Upload(c.Request().Context(), file, key)
	if err != nil {
		return respondError(c, err)
	}

	doc := models.CaseDocument{
		Name:     file.Filename,
		Type:     c.FormValue("type"),
		Path:     stored.URL,
		Size:     stored.FileSize,
		MimeType: stored.MimeType,
	}
	updated, err := services.AddDocument(db.DB, caseID, doc)
	if err != nil {
		// The blob is orphaned if metadata persistence fails.
		_ = services.Storage.Delete(c.Request().Context(), key)
		return respondError(c, err)
	}
	return respondCreated(c, updated)
}

// ExportCasesHandler streams the filtered case book as an xlsx download.
func ExportCasesHandler(c echo.Context) error {
	filter := services.CaseListFilter{
		CaseType: c.QueryParam("caseType"),
		Status:   c.QueryParam("status"),
		Priority: c.QueryParam("priority"),
		SortBy:   c.QueryParam("sortBy"),
		Order:    c.QueryParam("order"),
	}

	buf, err := services.ExportCasesToExcel(db.DB, filter)
	if err != nil {
		return respondError(c, err)
	}

	filename := fmt.Sprintf("cases_export_%s.xlsx", time.Now().Format("2006-01-02"))
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="%s"`, filename))
	return c.Blob(http.StatusOK,
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		buf.Bytes())
}

func queryInt(c echo.Context, name string, fallback int) int {
	if raw := c.QueryParam(name); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			return parsed
		}
	}
	return fallback
}
