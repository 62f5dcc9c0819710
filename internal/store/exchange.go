package store

import (
	"context"
	"strings"

	"circ-exchange/internal/common/logger"
	"circ-exchange/internal/models"

	"github.com/google/uuid"
)

// CompanyLister is the slice of the exchange API this source needs.
type CompanyLister interface {
	DemoCompanies(ctx context.Context) ([]models.Company, error)
}

// ExchangeSource builds the pool from the exchange API's demo companies.
// Records that cannot be converted are skipped and logged.
type ExchangeSource struct {
	api    CompanyLister
	logger logger.Logger
}

func NewExchangeSource(api CompanyLister, log logger.Logger) *ExchangeSource {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &ExchangeSource{api: api, logger: log}
}

func (s *ExchangeSource) Pool(ctx context.Context) ([]models.Listing, error) {
	companies, err := s.api.DemoCompanies(ctx)
	if err != nil {
		return nil, err
	}
	return CompaniesToListings(companies, s.logger), nil
}

func (s *ExchangeSource) Get(ctx context.Context, id string) (*models.Listing, error) {
	pool, err := s.Pool(ctx)
	if err != nil {
		return nil, err
	}
	return findListing(pool, id)
}

// CompaniesToListings converts demo records, skipping invalid ones. Records
// without an id get one derived from their name and type, so repeated
// imports of the same record agree.
func CompaniesToListings(companies []models.Company, log logger.Logger) []models.Listing {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	listings := make([]models.Listing, 0, len(companies))
	for _, c := range companies {
		if strings.TrimSpace(c.ID.String()) == "" && strings.TrimSpace(c.Name) != "" {
			c.ID = models.FlexibleID(DeriveListingID(c.Name, string(c.Type)))
		}
		l, err := c.ToListing()
		if err != nil {
			log.Warn("skipping company record", map[string]interface{}{
				"companyId": c.ID.String(),
				"error":     err,
			})
			continue
		}
		listings = append(listings, l)
	}
	return listings
}

var listingNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("circ-exchange/listings"))

// DeriveListingID returns a stable UUID for a record identified only by its
// descriptive fields.
func DeriveListingID(parts ...string) string {
	key := make([]string, len(parts))
	for i, p := range parts {
		key[i] = strings.ToLower(strings.TrimSpace(p))
	}
	return uuid.NewSHA1(listingNamespace, []byte(strings.Join(key, "|"))).String()
}
