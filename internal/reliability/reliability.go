// Package reliability implements the Admiralty (NATO) source grading
// scheme: a reliability letter A..F, an accuracy digit 1..6, and a numeric
// composite of the two.
package reliability

import (
	"math"
	"net/url"
	"strings"

	"github.com/casetrace/casetrace/internal/model"
)

var reliabilityValues = map[model.ReliabilityGrade]float64{
	model.ReliabilityA: 1.0,
	model.ReliabilityB: 0.8,
	model.ReliabilityC: 0.6,
	model.ReliabilityD: 0.4,
	model.ReliabilityE: 0.2,
	model.ReliabilityF: 0.0,
}

var accuracyValues = map[model.AccuracyGrade]float64{
	model.Accuracy1: 1.0,
	model.Accuracy2: 0.8,
	model.Accuracy3: 0.6,
	model.Accuracy4: 0.4,
	model.Accuracy5: 0.2,
	model.Accuracy6: 0.0,
}

// Composite maps the two Admiralty grades to a [0,1] score: the mean of
// their numeric values, rounded to two decimals. Unknown grades count as 0.
func Composite(rel model.ReliabilityGrade, acc model.AccuracyGrade) float64 {
	mean := (reliabilityValues[rel] + accuracyValues[acc]) / 2
	return math.Round(mean*100) / 100
}

// GradeValue returns the numeric value of a reliability letter.
func GradeValue(rel model.ReliabilityGrade) float64 {
	return reliabilityValues[rel]
}

// AccuracyValue returns the numeric value of an accuracy digit.
func AccuracyValue(acc model.AccuracyGrade) float64 {
	return accuracyValues[acc]
}

// Suggestion is a machine-proposed starting grade for an unrated source.
// It is advisory only; callers must never overwrite a human rating with it.
type Suggestion struct {
	Reliability model.ReliabilityGrade `json:"reliability"`
	Accuracy    model.AccuracyGrade    `json:"accuracy"`
	Rationale   string                 `json:"rationale"`
}

// domainGrades maps well-known publisher domains to starting grades.
// Official registries grade higher than aggregators and social platforms.
var domainGrades = map[string]Suggestion{
	"namus.gov":          {model.ReliabilityA, model.Accuracy2, "national official registry"},
	"fbi.gov":            {model.ReliabilityA, model.Accuracy2, "federal law enforcement"},
	"doenetwork.org":     {model.ReliabilityB, model.Accuracy3, "curated volunteer registry"},
	"charleyproject.org": {model.ReliabilityB, model.Accuracy3, "curated volunteer registry"},
	"websleuths.com":     {model.ReliabilityD, model.Accuracy4, "unverified forum discussion"},
	"reddit.com":         {model.ReliabilityE, model.Accuracy5, "anonymous social discussion"},
	"facebook.com":       {model.ReliabilityE, model.Accuracy5, "anonymous social discussion"},
	"wikipedia.org":      {model.ReliabilityC, model.Accuracy3, "crowd-edited summary"},
}

// typeGrades provides fallbacks keyed on the declared source type.
var typeGrades = map[string]Suggestion{
	model.SourceTypeOfficial: {model.ReliabilityB, model.Accuracy2, "official document"},
	model.SourceTypeNews:     {model.ReliabilityC, model.Accuracy3, "news reporting"},
	model.SourceTypeAcademic: {model.ReliabilityB, model.Accuracy2, "peer-reviewed material"},
	model.SourceTypeDocument: {model.ReliabilityC, model.Accuracy3, "primary document, unverified"},
	model.SourceTypeWitness:  {model.ReliabilityD, model.Accuracy4, "single witness account"},
	model.SourceTypeSocial:   {model.ReliabilityE, model.Accuracy5, "social media content"},
}

// Suggest proposes starting grades for a source from its URL domain, then
// its declared type. The default is F/6: unrated until a human looks.
func Suggest(src model.Source) Suggestion {
	if src.URL != nil {
		if u, err := url.Parse(*src.URL); err == nil {
			host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
			for domain, s := range domainGrades {
				if host == domain || strings.HasSuffix(host, "."+domain) {
					return s
				}
			}
		}
	}
	if s, ok := typeGrades[src.SourceType]; ok {
		return s
	}
	return Suggestion{model.ReliabilityF, model.Accuracy6, "no basis for grading"}
}
