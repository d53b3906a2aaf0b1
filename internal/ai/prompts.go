package ai

import (
	"fmt"
	"strings"
)

// AnalystMode selects the stance the model takes when reviewing a case.
type AnalystMode string

const (
	// ModeACH runs a standard competing-hypotheses review.
	ModeACH AnalystMode = "ach"
	// ModeDevilsAdvocate argues against the currently favored hypothesis.
	ModeDevilsAdvocate AnalystMode = "devils-advocate"
	// ModeRedHat reasons from the perpetrator's perspective.
	ModeRedHat AnalystMode = "red-hat"
	// ModeWhatIf explores the consequences of a low-probability hypothesis
	// being true.
	ModeWhatIf AnalystMode = "what-if"
	// ModeSensitivity probes which single judgments, if reversed, would
	// change the ranking.
	ModeSensitivity AnalystMode = "sensitivity"
)

// Valid reports whether the mode is known.
func (m AnalystMode) Valid() bool {
	switch m {
	case ModeACH, ModeDevilsAdvocate, ModeRedHat, ModeWhatIf, ModeSensitivity:
		return true
	}
	return false
}

var modeInstructions = map[AnalystMode]string{
	ModeACH: "Evaluate each hypothesis against each piece of evidence. " +
		"Focus on evidence that is inconsistent with hypotheses; the hypothesis " +
		"with the least inconsistent evidence is strongest.",
	ModeDevilsAdvocate: "Argue against the leading hypothesis as forcefully as " +
		"the evidence allows. Identify its weakest assumptions and the evidence " +
		"that most undermines it.",
	ModeRedHat: "Reason from the perspective of the person responsible. What " +
		"would they have needed to know, do, and avoid? What traces would that " +
		"behavior leave?",
	ModeWhatIf: "Assume the least likely hypothesis is actually true. What " +
		"would have to be re-explained, and what overlooked evidence would gain " +
		"significance?",
	ModeSensitivity: "Identify the individual consistency judgments that, if " +
		"reversed, would change which hypothesis ranks first. Flag judgments " +
		"resting on a single source.",
}

// ModeInstruction returns the stance text for a mode, defaulting to ACH.
func ModeInstruction(m AnalystMode) string {
	if instr, ok := modeInstructions[m]; ok {
		return instr
	}
	return modeInstructions[ModeACH]
}

// ExtractionPrompt builds the staged-extraction prompt for raw source
// text. The model must return only JSON matching the staged item schema.
func ExtractionPrompt(sourceText string) string {
	var b strings.Builder
	b.WriteString(`You are assisting a cold-case investigation. Extract structured records from the source text below.

Return ONLY a JSON object with this shape:
{
  "entities": [{"name": "...", "entity_type": "person|location|organization|vehicle|object", "description": "...", "confidence": "high|medium|low"}],
  "events": [{"timestamp_start": "YYYY-MM-DD or YYYY-MM-DDTHH:MM:SS or null", "timestamp_end": null, "description": "...", "confidence": "high|medium|low"}],
  "evidence": [{"name": "...", "evidence_type": "physical|digital|circumstantial|documentary|testimonial", "description": "..."}],
  "relationships": [{"entity_a": "name", "entity_b": "name", "relationship_type": "...", "description": "..."}]
}

Rules:
- Only include facts stated in the text. Do not speculate.
- Use null for unknown timestamps, never guess dates.
- Entity names must appear verbatim in the text.

SOURCE TEXT:
`)
	b.WriteString(sourceText)
	return b.String()
}

// ReliabilityPrompt asks for Admiralty grade suggestions for a source.
func ReliabilityPrompt(url, sourceType, excerpt string) string {
	return fmt.Sprintf(`Suggest Admiralty ratings for this source.

Reliability: A (completely reliable) through F (cannot be judged).
Accuracy: 1 (confirmed by independent sources) through 6 (cannot be judged).

Return ONLY JSON: {"reliability": "A-F", "accuracy": "1-6", "rationale": "..."}

URL: %s
Declared type: %s
Excerpt:
%s`, url, sourceType, excerpt)
}

// ReviewPrompt builds an analyst-mode case review over a case summary.
func ReviewPrompt(mode AnalystMode, caseSummary string) string {
	return fmt.Sprintf(`You are an experienced cold-case analyst.

%s

Structure your answer as:
1. Key observations
2. Weaknesses in the current analysis
3. Concrete next investigative steps

CASE SUMMARY:
%s`, ModeInstruction(mode), caseSummary)
}

// FileAnalysisPrompt asks for an investigative description of an attachment.
func FileAnalysisPrompt(filename, mimeType string, context string) string {
	return fmt.Sprintf(`Describe the investigative relevance of this case file attachment.

Filename: %s
Type: %s
Case context: %s

Note what an investigator should examine in it and what it could corroborate or contradict. Be concrete and avoid speculation beyond the stated context.`,
		filename, mimeType, context)
}

// CrossReferencePrompt asks the model to find contradictions between
// statements and the established timeline.
func CrossReferencePrompt(statements, timeline string) string {
	return fmt.Sprintf(`Compare the statements below against the case timeline. Identify contradictions, impossible claims, and statements that changed over time.

Return ONLY JSON: {"findings": [{"description": "...", "speakers": ["..."], "severity": "high|medium|low"}]}

STATEMENTS:
%s

TIMELINE:
%s`, statements, timeline)
}
