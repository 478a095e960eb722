package ai

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"legal_case_ai_go/models"
)

// SystemMessage frames every analysis request sent to a provider.
const SystemMessage = "You are an expert legal analyst with deep knowledge of law, legal precedents, and case analysis. Provide thorough, accurate, and well-structured legal analysis."

// BuildCaseContext renders the shared case header prepended to every prompt.
func BuildCaseContext(c *models.Case) string {
	parties, err := json.Marshal(c.Parties)
	if err != nil {
		parties = []byte("{}")
	}

	var b strings.Builder
	b.WriteString("\nLegal Case Details:\n")
	fmt.Fprintf(&b, "Title: %s\n", c.Title)
	fmt.Fprintf(&b, "Case Number: %s\n", orNotSpecified(c.CaseNumber))
	fmt.Fprintf(&b, "Case Type: %s\n", c.CaseType)
	fmt.Fprintf(&b, "Court: %s\n", orNotSpecified(c.Court))
	fmt.Fprintf(&b, "Parties: %s\n", parties)
	fmt.Fprintf(&b, "Date of Filing: %s\n", dateOrNotSpecified(c.DateOfFiling))
	b.WriteString("\nCase Text:\n")
	b.WriteString(c.CaseText)
	b.WriteString("\n\n---\n")
	return b.String()
}

func orNotSpecified(s *string) string {
	if s == nil || *s == "" {
		return "Not specified"
	}
	return *s
}

func dateOrNotSpecified(t *time.Time) string {
	if t == nil {
		return "Not specified"
	}
	return t.Format("2006-01-02")
}

var analysisInstructions = map[string]string{
	models.AnalysisTypeSummary: `Please provide a comprehensive case summary including:
1. Key facts and background
2. Main legal issues involved
3. Current status and important dates
4. Parties involved and their positions

Provide a clear, concise summary in 3-4 paragraphs.`,

	models.AnalysisTypeLegalIssues: `Analyze and identify the key legal issues in this case:
1. Primary legal questions that need to be resolved
2. Areas of law involved (constitutional, criminal, civil, etc.)
3. Specific statutes, regulations, or legal principles at stake
4. Complexity level and potential precedential value

Format your response with numbered points for each major legal issue.`,

	models.AnalysisTypePrecedents: `Research and suggest relevant legal precedents for this case:
1. Similar cases that have been decided previously
2. Landmark cases in the same area of law
3. Circuit splits or conflicting decisions (if any)
4. How these precedents might influence the outcome

Provide case names, key holdings, and their relevance to this case.`,

	models.AnalysisTypeOutcomePrediction: `Based on the case details and legal analysis, predict the likely outcome:
1. Probability of success for each party
2. Potential settlement scenarios
3. Key factors that will influence the decision
4. Timeline for resolution
5. Potential appeals or further proceedings

Provide a balanced analysis with reasoning for your predictions.`,

	models.AnalysisTypeRiskAssessment: `Assess the legal and financial risks this case poses:
1. Principal risk factors and their severity
2. Likelihood of adverse findings against each party
3. Reputational and regulatory exposure
4. Mitigation strategies worth pursuing

Rank the risks from most to least severe with reasoning for each.`,

	models.AnalysisTypeStrategyRecommendation: `Recommend a litigation strategy for this case:
1. Strongest arguments available and how to sequence them
2. Weaknesses the opposing side will likely exploit
3. Procedural options (motions, discovery, settlement posture)
4. Recommended next steps with priorities

Present the recommendations as an actionable, prioritized plan.`,

	models.AnalysisTypeDocumentAnalysis: `Analyze the documentary record described in this case:
1. Key documents and what each establishes
2. Gaps in the record that need to be filled
3. Authenticity or admissibility concerns
4. Documents to request during discovery

List each document category with its evidentiary significance.`,

	models.AnalysisTypeSettlementEvaluation: `Evaluate settlement prospects for this case:
1. Realistic settlement range given the claims at stake
2. Each party's leverage and incentives to settle
3. Non-monetary terms that could unlock agreement
4. Optimal timing for settlement discussions

Provide a recommended negotiation position with supporting reasoning.`,

	models.AnalysisTypeComplianceCheck: `Review this case for compliance and regulatory considerations:
1. Statutes and regulations the conduct implicates
2. Filing, notice, and limitation deadlines that apply
3. Ongoing compliance obligations for the parties
4. Exposure to regulatory enforcement beyond this dispute

Flag any deadline or obligation that appears to be at risk.`,

	models.AnalysisTypeEvidenceEvaluation: `Evaluate the strength of the evidence in this case:
1. Evidence supporting each party's position
2. Credibility and weight of each item
3. Evidentiary objections likely to arise
4. Additional evidence worth gathering

Conclude with an overall assessment of which side the evidence favors.`,

	models.AnalysisTypeWitnessAnalysis: `Analyze the witnesses relevant to this case:
1. Key witnesses and what each can establish
2. Credibility strengths and vulnerabilities
3. Expert witnesses that would strengthen the case
4. Preparation priorities for direct and cross examination

Address fact witnesses and experts separately.`,

	models.AnalysisTypeTimelineAnalysis: `Analyze the chronology of this case:
1. Critical events in order and their legal significance
2. Limitation periods and procedural deadlines in play
3. Gaps or inconsistencies in the timeline
4. Projected schedule through resolution

Present the analysis as an annotated chronology.`,
}

// BuildPrompt composes the full prompt for an analysis type. Unknown types
// fall back to the summary instructions.
func BuildPrompt(c *models.Case, analysisType string) string {
	instructions, ok := analysisInstructions[analysisType]
	if !ok {
		instructions = analysisInstructions[models.AnalysisTypeSummary]
	}
	return BuildCaseContext(c) + "\n" + instructions
}
