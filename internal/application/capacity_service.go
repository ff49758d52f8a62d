package application

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/mes-platform/production-service/internal/domain"
	"github.com/mes-platform/production-service/pkg/logging"
)

// CapacityApplicationService runs the bottleneck calculator over the
// machine registry
type CapacityApplicationService struct {
	machineRepo domain.MachineRepository
	logger      *logging.Logger
}

// NewCapacityApplicationService creates a new
// CapacityApplicationService
func NewCapacityApplicationService(machineRepo domain.MachineRepository, logger *logging.Logger) *CapacityApplicationService {
	return &CapacityApplicationService{
		machineRepo: machineRepo,
		logger:      logger,
	}
}

// Estimate computes per-process days and the bottleneck for a product
// run. A registry with no usable machines degrades to zero-day
// processes rather than failing: planners always get an answer.
func (s *CapacityApplicationService) Estimate(ctx context.Context, query EstimateCapacityQuery) (*CapacityEstimateDTO, error) {
	machines, err := s.machineRepo.FindAll(ctx, domain.Pagination{Page: 1, PageSize: 1000})
	if err != nil {
		return nil, fmt.Errorf("failed to load machine registry: %w", err)
	}

	req := domain.CapacityRequest{
		ProductID:     query.ProductID,
		TotalWeightKg: decimal.NewFromFloat(query.TotalWeightKg),
		CutCount:      decimal.NewFromFloat(query.CutCount),
		SewCount:      decimal.NewFromFloat(query.SewCount),
		PackCount:     decimal.NewFromFloat(query.PackCount),
	}

	estimate := domain.EstimateCapacity(req, machines)

	s.logger.Info("Capacity estimate computed",
		"productId", query.ProductID,
		"bottleneck", string(estimate.Bottleneck),
		"totalDays", estimate.TotalDays.String(),
	)

	return ToCapacityEstimateDTO(estimate), nil
}
