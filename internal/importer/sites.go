package importer

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/casetrace/casetrace/internal/model"
	"github.com/casetrace/casetrace/internal/staging"
)

// namusParser handles NamUs missing-person case pages.
type namusParser struct{}

func (p *namusParser) Name() string { return "namus" }

func (p *namusParser) CanParse(u *url.URL) bool {
	return hostMatches(u, "namus.gov") || hostMatches(u, "namus.nij.ojp.gov")
}

func (p *namusParser) Parse(doc *goquery.Document) (ParseResult, error) {
	res := ParseResult{
		SourceType: model.SourceTypeOfficial,
		Title:      strings.TrimSpace(doc.Find("h1").First().Text()),
		Text:       cleanText(doc.Find("main, body").First().Text()),
	}

	// NamUs lays case facts out as labeled field pairs.
	fields := map[string]string{}
	doc.Find(".data-field, dl dt").Each(func(_ int, s *goquery.Selection) {
		label := strings.TrimSpace(s.Find(".data-label").Text())
		value := strings.TrimSpace(s.Find(".data-value").Text())
		if label == "" {
			label = strings.TrimSpace(s.Text())
			value = strings.TrimSpace(s.Next().Text())
		}
		if label != "" && value != "" {
			fields[strings.ToLower(strings.TrimSuffix(label, ":"))] = value
		}
	})

	if name, ok := fields["legal last name"]; ok {
		full := strings.TrimSpace(fields["legal first name"] + " " + name)
		res.Proposals.Entities = append(res.Proposals.Entities, staging.EntityPayload{
			Name: full, EntityType: "person", Confidence: "high",
		})
	} else if res.Title != "" {
		res.Proposals.Entities = append(res.Proposals.Entities, staging.EntityPayload{
			Name: res.Title, EntityType: "person", Confidence: "medium",
		})
	}

	if loc, ok := fields["location"]; ok {
		res.Proposals.Entities = append(res.Proposals.Entities, staging.EntityPayload{
			Name: loc, EntityType: "location", Confidence: "high",
		})
	}

	if dlc, ok := fields["date of last contact"]; ok {
		if iso, ok := parseLooseDate(dlc); ok {
			desc := "Last contact"
			if res.Title != "" {
				desc = fmt.Sprintf("Last contact with %s", res.Title)
			}
			res.Proposals.Events = append(res.Proposals.Events, staging.EventPayload{
				TimestampStart: &iso, Description: desc, Confidence: "high",
			})
		}
	}

	return res, nil
}

// fbiParser handles FBI wanted and ViCAP pages.
type fbiParser struct{}

func (p *fbiParser) Name() string { return "fbi" }

func (p *fbiParser) CanParse(u *url.URL) bool {
	return hostMatches(u, "fbi.gov")
}

func (p *fbiParser) Parse(doc *goquery.Document) (ParseResult, error) {
	res := ParseResult{
		SourceType: model.SourceTypeOfficial,
		Title:      strings.TrimSpace(doc.Find("h1.documentFirstHeading, h1").First().Text()),
	}

	var parts []string
	doc.Find(".wanted-person-description, .summary, #content p").Each(func(_ int, s *goquery.Selection) {
		if t := strings.TrimSpace(s.Text()); t != "" {
			parts = append(parts, t)
		}
	})
	if len(parts) == 0 {
		parts = append(parts, doc.Find("body").Text())
	}
	res.Text = cleanText(strings.Join(parts, "\n\n"))

	if res.Title != "" {
		res.Proposals.Entities = append(res.Proposals.Entities, staging.EntityPayload{
			Name: res.Title, EntityType: "person", Confidence: "high",
		})
	}
	doc.Find(".wanted-person-aliases li").Each(func(_ int, s *goquery.Selection) {
		if alias := strings.TrimSpace(s.Text()); alias != "" {
			res.Proposals.Entities = append(res.Proposals.Entities, staging.EntityPayload{
				Name: alias, EntityType: "person", Confidence: "low",
			})
		}
	})

	return res, nil
}

// doeNetworkParser handles Doe Network unidentified-person pages.
type doeNetworkParser struct{}

func (p *doeNetworkParser) Name() string { return "doenetwork" }

func (p *doeNetworkParser) CanParse(u *url.URL) bool {
	return hostMatches(u, "doenetwork.org")
}

func (p *doeNetworkParser) Parse(doc *goquery.Document) (ParseResult, error) {
	res := ParseResult{
		SourceType: model.SourceTypeOfficial,
		Title:      strings.TrimSpace(doc.Find("h1, .case-title").First().Text()),
		Text:       cleanText(doc.Find("body").Text()),
	}
	if res.Title != "" {
		res.Proposals.Entities = append(res.Proposals.Entities, staging.EntityPayload{
			Name: res.Title, EntityType: "person", Confidence: "medium",
		})
	}
	return res, nil
}

// genericParser is the fallback for unrecognized sites: strip boilerplate,
// keep the readable text, classify the source type from the domain.
type genericParser struct{}

func (p *genericParser) Name() string { return "generic" }

func (p *genericParser) CanParse(*url.URL) bool { return true }

func (p *genericParser) Parse(doc *goquery.Document) (ParseResult, error) {
	doc.Find("script, style, nav, header, footer, aside, noscript").Remove()

	res := ParseResult{
		SourceType: model.SourceTypeNews,
		Title:      strings.TrimSpace(doc.Find("title").First().Text()),
	}
	if h1 := strings.TrimSpace(doc.Find("h1").First().Text()); h1 != "" {
		res.Title = h1
	}

	body := doc.Find("article, main").First()
	if body.Length() == 0 {
		body = doc.Find("body")
	}
	res.Text = cleanText(body.Text())
	if res.Text == "" {
		return res, fmt.Errorf("importer: no readable text in page")
	}
	return res, nil
}
