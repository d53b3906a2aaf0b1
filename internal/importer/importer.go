package importer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/casetrace/casetrace/internal/model"
	"github.com/casetrace/casetrace/internal/reliability"
	"github.com/casetrace/casetrace/internal/staging"
	"github.com/casetrace/casetrace/internal/storage"
)

// reliabilitySuggestion derives a starting numeric score for an imported
// source from its domain and type suggestion.
func reliabilitySuggestion(src model.Source) float64 {
	s := reliability.Suggest(src)
	return reliability.Composite(s.Reliability, s.Accuracy)
}

// Service imports external pages into a case: fetch, parse, create the
// source record, and stage the parsed records for review.
type Service struct {
	db       *storage.CaseDB
	staging  *staging.Service
	fetcher  *Fetcher
	registry *Registry
	logger   *slog.Logger
}

// NewService returns an import Service for one case.
func NewService(db *storage.CaseDB, st *staging.Service, logger *slog.Logger) *Service {
	return &Service{
		db:       db,
		staging:  st,
		fetcher:  NewFetcher(logger),
		registry: NewRegistry(),
		logger:   logger,
	}
}

// Result is what one import produced.
type Result struct {
	Source model.Source       `json:"source"`
	Parser string             `json:"parser"`
	Staged []model.StagedItem `json:"staged"`
}

// ImportURL fetches a page and imports it. When the site blocks the fetch
// the error wraps ErrBlocked and the caller should offer ImportHTML with
// pasted page source instead.
func (s *Service) ImportURL(ctx context.Context, rawURL string) (Result, error) {
	html, err := s.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		return Result{}, err
	}
	return s.importPage(ctx, rawURL, html)
}

// ImportHTML imports pasted page source attributed to the given URL. This
// is the fallback path for sites that refuse automated fetches.
func (s *Service) ImportHTML(ctx context.Context, rawURL, html string) (Result, error) {
	return s.importPage(ctx, rawURL, html)
}

func (s *Service) importPage(ctx context.Context, rawURL, html string) (Result, error) {
	parsed, parserName, err := s.registry.ParseHTML(rawURL, html)
	if err != nil {
		return Result{}, fmt.Errorf("importer: parse %s: %w", rawURL, err)
	}

	note := fmt.Sprintf("imported via %s parser", parserName)
	if parsed.Title != "" {
		note = fmt.Sprintf("%s: %s", note, parsed.Title)
	}
	src := model.Source{
		URL:        &rawURL,
		RawText:    parsed.Text,
		SourceType: parsed.SourceType,
		Notes:      &note,
	}
	// Machine suggestion seeds the numeric score only; the Admiralty grade
	// columns stay empty until a human rates the source.
	sug := reliabilitySuggestion(src)
	src.ReliabilityScore = sug

	src, err = s.db.InsertSource(ctx, src)
	if err != nil {
		return Result{}, err
	}

	staged, err := s.staging.Stage(ctx, src.ID, parsed.Proposals)
	if err != nil {
		return Result{}, err
	}

	s.logger.Info("page imported", "url", rawURL, "parser", parserName,
		"source_id", src.ID, "staged", len(staged))
	return Result{Source: src, Parser: parserName, Staged: staged}, nil
}
