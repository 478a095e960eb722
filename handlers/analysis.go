package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"legal_case_ai_go/db"
	"legal_case_ai_go/models"
	"legal_case_ai_go/services"
	"legal_case_ai_go/services/ai"
)

// AnalysisGateway is the provider router the analysis handlers dispatch to.
// Set once at startup.
var AnalysisGateway ai.Gateway

// RunAnalysisHandler runs one AI analysis against a case and returns the
// persisted record. Provider failures still persist a Failed record, which
// is returned alongside the mapped error status.
func RunAnalysisHandler(c echo.Context) error {
	var input services.RunAnalysisInput
	if err := c.Bind(&input); err != nil {
		return c.JSON(http.StatusBadRequest, APIResponse{Success: false, Message: "Invalid request body"})
	}

	analysis, err := services.RunAnalysis(c.Request().Context(), db.DB, AnalysisGateway, input)
	if err != nil {
		if analysis != nil {
			// Attach the failed record so the client can inspect errorInfo.
			var perr *ai.ProviderError
			status := http.StatusBadGateway
			message := err.Error()
			if errors.As(err, &perr) {
				status = providerErrorStatus(perr)
				message = perr.Message
			}
			return c.JSON(status, APIResponse{Success: false, Message: message, Data: analysis})
		}
		return respondError(c, err)
	}
	return respondCreated(c, analysis)
}

// RunBatchAnalysisHandler runs several analysis types against one case.
type batchAnalysisRequest struct {
	CaseID        string   `json:"caseId"`
	Provider      string   `json:"aiProvider"`
	Model         string   `json:"model"`
	AnalysisTypes []string `json:"analysisTypes"`
}

func RunBatchAnalysisHandler(c echo.Context) error {
	var req batchAnalysisRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, APIResponse{Success: false, Message: "Invalid request body"})
	}

	results, err := services.RunBatchAnalysis(c.Request().Context(), db.DB, AnalysisGateway,
		req.CaseID, req.Provider, req.Model, req.AnalysisTypes)
	if err != nil {
		return respondError(c, err)
	}
	return respondOK(c, results)
}

// GetAnalysisHandler fetches one analysis by id.
func GetAnalysisHandler(c echo.Context) error {
	analysis, err := services.GetAnalysis(db.DB, c.Param("id"))
	if err != nil {
		return respondError(c, err)
	}
	return respondOK(c, analysis)
}

// GetCaseAnalysesHandler lists the analyses of one case, newest first.
func GetCaseAnalysesHandler(c echo.Context) error {
	analyses, err := services.AnalysesByCase(db.DB, c.Param("caseId"), c.QueryParam("analysisType"))
	if err != nil {
		return respondError(c, err)
	}

	if c.QueryParam("view") == "summary" {
		summaries := make([]models.AnalysisSummary, 0, len(analyses))
		for i := range analyses {
			summaries = append(summaries, analyses[i].Summarize())
		}
		return respondOK(c, summaries)
	}
	return respondOK(c, analyses)
}

// UpdateAnalysisHandler applies a partial update to an analysis.
func UpdateAnalysisHandler(c echo.Context) error {
	var input services.UpdateAnalysisInput
	if err := c.Bind(&input); err != nil {
		return c.JSON(http.StatusBadRequest, APIResponse{Success: false, Message: "Invalid request body"})
	}

	analysis, err := services.UpdateAnalysis(db.DB, c.Param("id"), input)
	if err != nil {
		return respondError(c, err)
	}
	return respondOK(c, analysis)
}

// DeleteAnalysisHandler removes one analysis.
func DeleteAnalysisHandler(c echo.Context) error {
	if err := services.DeleteAnalysis(db.DB, c.Param("id")); err != nil {
		return respondError(c, err)
	}
	return respondMessage(c, "Analysis deleted", nil)
}

// AddFeedbackHandler records user feedback on an analysis.
func AddFeedbackHandler(c echo.Context) error {
	var rating models.UserRating
	if err := c.Bind(&rating); err != nil {
		return c.JSON(http.StatusBadRequest, APIResponse{Success: false, Message: "Invalid request body"})
	}

	analysis, err := services.AddUserFeedback(db.DB, c.Param("id"), rating)
	if err != nil {
		return respondError(c, err)
	}
	return respondOK(c, analysis)
}

// MarkReviewedHandler records the reviewer on an analysis.
func MarkReviewedHandler(c echo.Context) error {
	var body struct {
		ReviewedBy string `json:"reviewedBy"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, APIResponse{Success: false, Message: "Invalid request body"})
	}

	analysis, err := services.MarkAsReviewed(db.DB, c.Param("id"), body.ReviewedBy)
	if err != nil {
		return respondError(c, err)
	}
	return respondOK(c, analysis)
}

// GetAnalysisStatsHandler returns the analysis statistics overview.
func GetAnalysisStatsHandler(c echo.Context) error {
	stats, err := services.GetAnalysisStats(db.DB)
	if err != nil {
		return respondError(c, err)
	}
	return respondOK(c, stats)
}

// GetAnalyticsHandler returns per-provider-and-type aggregates.
func GetAnalyticsHandler(c echo.Context) error {
	rows, err := services.AnalyticsData(db.DB)
	if err != nil {
		return respondError(c, err)
	}
	return respondOK(c, rows)
}

// GetProviderPerformanceHandler summarizes one provider's recent work.
func GetProviderPerformanceHandler(c echo.Context) error {
	days := queryInt(c, "days", 30)
	perf, err := services.GetProviderPerformance(db.DB, c.Param("provider"), days)
	if err != nil {
		return respondError(c, err)
	}
	return respondOK(c, perf)
}

// GetAnalysisReportHandler renders an analysis as a PDF download.
func GetAnalysisReportHandler(c echo.Context) error {
	pdf, err := services.GenerateAnalysisReport(db.DB, c.Param("id"))
	if err != nil {
		return respondError(c, err)
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="analysis_report.pdf"`)
	return c.Blob(http.StatusOK, "application/pdf", pdf)
}

func providerErrorStatus(perr *ai.ProviderError) int {
	switch perr.Kind {
	case ai.ErrorKindAuth:
		return http.StatusUnauthorized
	case ai.ErrorKindQuota:
		return http.StatusTooManyRequests
	case ai.ErrorKindTimeout:
		return http.StatusGatewayTimeout
	case ai.ErrorKindInvalidRequest:
		return http.StatusBadRequest
	default:
		return http.StatusBadGateway
	}
}
