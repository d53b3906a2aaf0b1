package reliability_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/casetrace/casetrace/internal/model"
	"github.com/casetrace/casetrace/internal/reliability"
)

func TestComposite(t *testing.T) {
	tests := []struct {
		rel  model.ReliabilityGrade
		acc  model.AccuracyGrade
		want float64
	}{
		{model.ReliabilityA, model.Accuracy1, 1.0},
		{model.ReliabilityF, model.Accuracy6, 0.0},
		{model.ReliabilityA, model.Accuracy6, 0.5},
		{model.ReliabilityB, model.Accuracy2, 0.8},
		{model.ReliabilityC, model.Accuracy3, 0.6},
		{model.ReliabilityD, model.Accuracy5, 0.3},
		{model.ReliabilityE, model.Accuracy4, 0.3},
	}
	for _, tt := range tests {
		t.Run(string(tt.rel)+string(tt.acc), func(t *testing.T) {
			assert.InDelta(t, tt.want, reliability.Composite(tt.rel, tt.acc), 1e-9)
		})
	}
}

func TestCompositeUnknownGradesCountAsZero(t *testing.T) {
	assert.Equal(t, 0.0, reliability.Composite("Z", "9"))
	// One known half still contributes.
	assert.InDelta(t, 0.5, reliability.Composite(model.ReliabilityA, "9"), 1e-9)
}

func TestSuggestByDomain(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantRel model.ReliabilityGrade
		wantAcc model.AccuracyGrade
	}{
		{"official registry", "https://www.namus.gov/MissingPersons/Case#/12345", model.ReliabilityA, model.Accuracy2},
		{"law enforcement", "https://www.fbi.gov/wanted/kidnap/jane-doe", model.ReliabilityA, model.Accuracy2},
		{"volunteer registry", "https://www.doenetwork.org/cases/100df.html", model.ReliabilityB, model.Accuracy3},
		{"subdomain matches", "https://en.wikipedia.org/wiki/Case", model.ReliabilityC, model.Accuracy3},
		{"forum", "https://websleuths.com/forums/thread", model.ReliabilityD, model.Accuracy4},
		{"social", "https://old.reddit.com/r/UnresolvedMysteries/abc", model.ReliabilityE, model.Accuracy5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := model.Source{URL: &tt.url, SourceType: model.SourceTypeNews}
			got := reliability.Suggest(src)
			assert.Equal(t, tt.wantRel, got.Reliability)
			assert.Equal(t, tt.wantAcc, got.Accuracy)
			assert.NotEmpty(t, got.Rationale)
		})
	}
}

func TestSuggestFallsBackToType(t *testing.T) {
	url := "https://smalltownpaper.example.com/archive/1987"
	got := reliability.Suggest(model.Source{URL: &url, SourceType: model.SourceTypeNews})
	assert.Equal(t, model.ReliabilityC, got.Reliability)
	assert.Equal(t, model.Accuracy3, got.Accuracy)

	got = reliability.Suggest(model.Source{SourceType: model.SourceTypeWitness})
	assert.Equal(t, model.ReliabilityD, got.Reliability)
}

func TestSuggestDefaultsToUnrated(t *testing.T) {
	got := reliability.Suggest(model.Source{SourceType: "mystery"})
	assert.Equal(t, model.ReliabilityF, got.Reliability)
	assert.Equal(t, model.Accuracy6, got.Accuracy)
}

func TestDomainMatchIsExactOrSubdomain(t *testing.T) {
	// A lookalike domain must not inherit the registry's grade.
	url := "https://notnamus.gov.example.com/case"
	got := reliability.Suggest(model.Source{URL: &url, SourceType: "mystery"})
	assert.Equal(t, model.ReliabilityF, got.Reliability)
}
