package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"github.com/L4Nci/verejne-zakazky/internal/domain"
	"github.com/L4Nci/verejne-zakazky/internal/normalize"
)

// NEN is the Czech national electronic procurement tool (nen.nipez.cz).
const (
	nenSourceID   = "nen"
	nenListPath   = "/api/v1/zakazky"
	nenPageSize   = 100
	nenMaxPages   = 50
	nenDetailBase = "https://nen.nipez.cz/verejne-zakazky/detail-zakazky/"
)

// nenItem mirrors one entry of the NEN contract export.
type nenItem struct {
	SystemNumber   string `json:"systemNumber"`
	Name           string `json:"name"`
	Authority      string `json:"contractingAuthority"`
	StateName      string `json:"currentState"`
	EstimatedValue string `json:"estimatedValue"`
	Currency       string `json:"currency"`
	BidDeadline    string `json:"bidDeadline"`
	Published      string `json:"publicationDate"`
	CPV            string `json:"cpvCodes"`
	Region         string `json:"region"`
	ProcedureType  string `json:"procedureType"`
	Description    string `json:"subjectDescription"`
	DetailURL      string `json:"detailUrl"`
	Attachments    []struct {
		Name string `json:"name"`
		URL  string `json:"url"`
		Size int64  `json:"size"`
	} `json:"attachments"`
}

type nenResponse struct {
	Data []nenItem `json:"data"`
}

// NENSource reads the NEN open-data contract listing page by page.
type NENSource struct {
	baseURL string
	fetcher *Fetcher
	logger  *slog.Logger
}

// NewNENSource creates the adapter. baseURL is the deployment root, e.g.
// https://nen.nipez.cz.
func NewNENSource(baseURL string, fetcher *Fetcher, logger *slog.Logger) *NENSource {
	return &NENSource{
		baseURL: strings.TrimRight(baseURL, "/"),
		fetcher: fetcher,
		logger:  logger,
	}
}

func (s *NENSource) ID() string { return nenSourceID }

// Fetch walks the listing until an empty page or the page cap.
func (s *NENSource) Fetch(ctx context.Context) ([]domain.Tender, error) {
	var out []domain.Tender

	for page := 1; page <= nenMaxPages; page++ {
		params := url.Values{}
		params.Set("page", strconv.Itoa(page))
		params.Set("limit", strconv.Itoa(nenPageSize))

		body, err := s.fetcher.Get(ctx, s.baseURL+nenListPath, params)
		if err != nil {
			return out, fmt.Errorf("fetch nen page %d: %w", page, err)
		}

		var resp nenResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return out, fmt.Errorf("decode nen page %d: %w", page, err)
		}
		if len(resp.Data) == 0 {
			break
		}

		for i := range resp.Data {
			t, err := s.normalizeItem(&resp.Data[i])
			if err != nil {
				s.logger.Warn("skipping nen item", "error", err)
				continue
			}
			out = append(out, t)
		}

		if len(resp.Data) < nenPageSize {
			break
		}
	}

	s.logger.Info("nen fetch complete", "tenders", len(out))
	return out, nil
}

func (s *NENSource) normalizeItem(item *nenItem) (domain.Tender, error) {
	externalID := normalize.CollapseWhitespace(item.SystemNumber)
	if externalID == "" {
		return domain.Tender{}, fmt.Errorf("nen item %q: missing system number", item.Name)
	}

	price, currency := normalize.Money(item.EstimatedValue, item.Currency)
	status, _ := normalize.Status(item.StateName)

	t := domain.Tender{
		SourceID:       nenSourceID,
		ExternalID:     externalID,
		Title:          normalize.CollapseWhitespace(item.Name),
		Buyer:          normalize.CollapseWhitespace(item.Authority),
		Description:    strings.TrimSpace(item.Description),
		ProcedureType:  normalize.CollapseWhitespace(item.ProcedureType),
		CPVCodes:       splitCPV(item.CPV),
		Country:        "CZ",
		Region:         normalize.CollapseWhitespace(item.Region),
		EstimatedPrice: price,
		Currency:       currency,
		Status:         status,
		NoticeURL:      strings.TrimSpace(item.DetailURL),
	}

	if t.NoticeURL == "" {
		t.NoticeURL = nenDetailBase + url.PathEscape(externalID)
	}
	if deadline, ok := normalize.Date(item.BidDeadline); ok {
		t.Deadline = &deadline
	}
	if published, ok := normalize.Date(item.Published); ok {
		t.PublicationDate = published
	}
	for _, a := range item.Attachments {
		if a.URL == "" {
			continue
		}
		t.Attachments = append(t.Attachments, domain.Attachment{
			Name:      normalize.CollapseWhitespace(a.Name),
			URL:       a.URL,
			SizeBytes: a.Size,
		})
	}

	if err := t.Normalize(); err != nil {
		return domain.Tender{}, err
	}
	return t, nil
}

func splitCPV(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
