package usecase

import (
	"fmt"

	"marketplace-payments/internal/config"
	"marketplace-payments/internal/domain"
	"marketplace-payments/internal/domain/model"
)

// Compile-time check
var _ PlanCatalog = (*planCatalog)(nil)

// PlanCatalog resolves plan ids to price and priority. The catalog is built
// once at process start and never mutated, so all methods are safe for
// concurrent use without locking.
type PlanCatalog interface {
	// Resolve returns the plan for id, or domain.ErrUnknownPlan.
	Resolve(id string) (*model.Plan, error)
	// HighestOf picks the plan with the greatest priority among ids, or the
	// free plan when ids is empty. Unknown ids fail the whole call.
	HighestOf(ids []string) (*model.Plan, error)
	// List returns every plan, for display surfaces.
	List() []*model.Plan
}

type planCatalog struct {
	plans map[string]*model.Plan
	order []*model.Plan
}

// NewPlanCatalog builds the catalog from config rows. The free plan must be
// present: it is the fallback for HighestOf and for unpriced submissions.
func NewPlanCatalog(rows []config.PlanConfig) (*planCatalog, error) {
	c := &planCatalog{plans: make(map[string]*model.Plan, len(rows))}
	for _, r := range rows {
		p, err := model.NewPlan(r.ID, r.Name, r.Price, r.Priority)
		if err != nil {
			return nil, fmt.Errorf("plan %q: %w", r.ID, err)
		}
		if _, dup := c.plans[p.ID]; dup {
			return nil, fmt.Errorf("plan %q: %w", p.ID, domain.ErrInvalidArgument)
		}
		c.plans[p.ID] = p
		c.order = append(c.order, p)
	}
	if _, ok := c.plans[model.PlanFree]; !ok {
		return nil, fmt.Errorf("catalog missing %q plan: %w", model.PlanFree, domain.ErrInvalidArgument)
	}
	return c, nil
}

func (c *planCatalog) Resolve(id string) (*model.Plan, error) {
	p, ok := c.plans[id]
	if !ok {
		return nil, fmt.Errorf("%q: %w", id, domain.ErrUnknownPlan)
	}
	return p, nil
}

func (c *planCatalog) HighestOf(ids []string) (*model.Plan, error) {
	if len(ids) == 0 {
		return c.plans[model.PlanFree], nil
	}
	var best *model.Plan
	for _, id := range ids {
		p, err := c.Resolve(id)
		if err != nil {
			return nil, err
		}
		if best == nil || p.Priority > best.Priority {
			best = p
		}
	}
	return best, nil
}

func (c *planCatalog) List() []*model.Plan {
	out := make([]*model.Plan, len(c.order))
	copy(out, c.order)
	return out
}
