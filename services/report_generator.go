package services

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"os"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"gorm.io/gorm"

	"legal_case_ai_go/models"
)

// PDFOptions controls page geometry for rendered reports.
type PDFOptions struct {
	PageOrientation string // portrait, landscape
	PageSize        string // letter, legal, A4
	MarginTop       int    // points (72 = 1 inch)
	MarginBottom    int
	MarginLeft      int
	MarginRight     int
}

// DefaultPDFOptions returns the defaults for legal documents.
func DefaultPDFOptions() PDFOptions {
	return PDFOptions{
		PageOrientation: "portrait",
		PageSize:        "letter",
		MarginTop:       72,
		MarginBottom:    72,
		MarginLeft:      72,
		MarginRight:     72,
	}
}

func getChromePath() string {
	return os.Getenv("CHROME_PATH")
}

// GeneratePDF renders HTML content to PDF using headless Chrome.
func GeneratePDF(htmlContent string, options PDFOptions) ([]byte, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.NoSandbox,
		chromedp.DisableGPU,
	)
	if chromePath := getChromePath(); chromePath != "" {
		opts = append(opts, chromedp.ExecPath(chromePath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	defer allocCancel()

	ctx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	var paperWidth, paperHeight float64
	switch options.PageSize {
	case "legal":
		paperWidth, paperHeight = 8.5, 14.0
	case "A4":
		paperWidth, paperHeight = 8.27, 11.69
	default: // letter
		paperWidth, paperHeight = 8.5, 11.0
	}
	if options.PageOrientation == "landscape" {
		paperWidth, paperHeight = paperHeight, paperWidth
	}

	marginTop := float64(options.MarginTop) / 72.0
	marginBottom := float64(options.MarginBottom) / 72.0
	marginLeft := float64(options.MarginLeft) / 72.0
	marginRight := float64(options.MarginRight) / 72.0

	var pdfBuf []byte
	err := chromedp.Run(ctx,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			frameTree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(frameTree.Frame.ID, htmlContent).Do(ctx)
		}),
		chromedp.Sleep(100*time.Millisecond),
		chromedp.ActionFunc(func(ctx context.Context) error {
			buf, _, err := page.PrintToPDF().
				WithPaperWidth(paperWidth).
				WithPaperHeight(paperHeight).
				WithMarginTop(marginTop).
				WithMarginBottom(marginBottom).
				WithMarginLeft(marginLeft).
				WithMarginRight(marginRight).
				WithPrintBackground(true).
				WithDisplayHeaderFooter(false).
				Do(ctx)
			if err != nil {
				return err
			}
			pdfBuf = buf
			return nil
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to generate PDF: %w", err)
	}
	return pdfBuf, nil
}

var analysisReportTmpl = template.Must(template.New("analysis_report").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<style>
  body { font-family: Georgia, 'Times New Roman', serif; color: #1a1a1a; line-height: 1.5; }
  h1 { font-size: 20px; border-bottom: 2px solid #1a1a1a; padding-bottom: 8px; }
  h2 { font-size: 15px; margin-top: 24px; }
  table.meta { border-collapse: collapse; width: 100%; font-size: 12px; margin: 16px 0; }
  table.meta td { border: 1px solid #999; padding: 6px 10px; }
  table.meta td.label { font-weight: bold; width: 30%; background: #f2f2f2; }
  .result { white-space: pre-wrap; font-size: 12px; }
  .footer { margin-top: 32px; font-size: 10px; color: #666; }
</style>
</head>
<body>
<h1>{{.CaseTitle}}</h1>
<table class="meta">
  <tr><td class="label">Case Number</td><td>{{.CaseNumber}}</td></tr>
  <tr><td class="label">Analysis Type</td><td>{{.AnalysisType}}</td></tr>
  <tr><td class="label">AI Provider</td><td>{{.Provider}} ({{.Model}})</td></tr>
  <tr><td class="label">Status</td><td>{{.Status}}</td></tr>
  {{if .QualityScore}}<tr><td class="label">Quality Score</td><td>{{printf "%.2f" .QualityScore}}</td></tr>{{end}}
  <tr><td class="label">Generated</td><td>{{.GeneratedAt}}</td></tr>
</table>
<h2>Analysis</h2>
<div class="result">{{.Result}}</div>
<div class="footer">Generated by the case analysis system on {{.RenderedAt}}. AI-generated content; review before relying on it.</div>
</body>
</html>`))

type analysisReportData struct {
	CaseTitle    string
	CaseNumber   string
	AnalysisType string
	Provider     string
	Model        string
	Status       string
	QualityScore float64
	Result       string
	GeneratedAt  string
	RenderedAt   string
}

// GenerateAnalysisReport renders one analysis to a printable PDF report.
func GenerateAnalysisReport(db *gorm.DB, analysisID string) ([]byte, error) {
	analysis, err := GetAnalysis(db, analysisID)
	if err != nil {
		return nil, err
	}
	legalCase, err := GetCase(db, analysis.CaseID)
	if err != nil {
		return nil, err
	}

	data := analysisReportData{
		CaseTitle:    legalCase.Title,
		CaseNumber:   derefOrEmpty(legalCase.CaseNumber),
		AnalysisType: analysis.AnalysisType,
		Provider:     analysis.AIProvider,
		Model:        analysis.Model,
		Status:       analysis.Status,
		Result:       analysis.Result,
		GeneratedAt:  analysis.CreatedAt.Format("January 2, 2006 15:04"),
		RenderedAt:   time.Now().Format("January 2, 2006"),
	}
	if analysis.QualityScore != nil {
		data.QualityScore = *analysis.QualityScore
	}
	if analysis.Status != models.AnalysisStatusCompleted {
		data.Result = "No completed analysis result is available for this record."
		if analysis.ErrorInfo != nil && analysis.ErrorInfo.Message != "" {
			data.Result += "\n\nFailure reason: " + analysis.ErrorInfo.Message
		}
	}

	var html bytes.Buffer
	if err := analysisReportTmpl.Execute(&html, data); err != nil {
		return nil, fmt.Errorf("failed to render report template: %w", err)
	}
	return GeneratePDF(html.String(), DefaultPDFOptions())
}
