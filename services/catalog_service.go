package services

import (
	"teamtrivia/catalog"
	"teamtrivia/engine"
)

// CatalogService serves the question catalog to clients without the answers.
type CatalogService struct {
	catalog *catalog.Catalog
}

func NewCatalogService(cat *catalog.Catalog) *CatalogService {
	return &CatalogService{catalog: cat}
}

type CatalogSummary struct {
	TotalRounds    int                   `json:"total_rounds"`
	TotalQuestions int                   `json:"total_questions"`
	Rounds         []catalog.PublicRound `json:"rounds"`
}

func (s *CatalogService) GetRounds() *CatalogSummary {
	return &CatalogSummary{
		TotalRounds:    len(s.catalog.Rounds),
		TotalQuestions: s.catalog.TotalQuestions(),
		Rounds:         s.catalog.PublicRounds(),
	}
}

func (s *CatalogService) GetRound(index int) (*catalog.PublicRound, error) {
	rounds := s.catalog.PublicRounds()
	if index < 0 || index >= len(rounds) {
		return nil, engine.NotFoundf("round %d not found", index)
	}
	return &rounds[index], nil
}
