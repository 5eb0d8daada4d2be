package lifecycle

import (
	"cmp"
	"slices"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/models"
	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/pkg/apperror"
)

// PickPrimary chooses the agreement the others merge into: the hint when
// given, else the only fully signed agreement, else the first in input order.
func PickPrimary(agreements []*models.Agreement, hint *uuid.UUID) (*models.Agreement, error) {
	if len(agreements) < 2 {
		return nil, apperror.BadRequest("at least two agreements are required to merge")
	}

	if hint != nil {
		for _, a := range agreements {
			if a.ID == *hint {
				return a, nil
			}
		}
		return nil, apperror.BadRequest("primary agreement must be one of the merged agreements")
	}

	var signed *models.Agreement
	signedCount := 0
	for _, a := range agreements {
		if a.IsFullySigned() {
			signed = a
			signedCount++
		}
	}
	if signedCount == 1 {
		return signed, nil
	}
	return agreements[0], nil
}

// MergeChild is one agreement being folded into the primary.
type MergeChild struct {
	Agreement  *models.Agreement
	Milestones []models.Milestone
	// Linked is true when an amendment link primary -> child already exists.
	Linked bool
}

// MilestoneMove re-parents one milestone.
type MilestoneMove struct {
	MilestoneID uuid.UUID
	OrderNum    int
}

// AmendmentLink is a new primary -> child link.
type AmendmentLink struct {
	ChildID         uuid.UUID
	AmendmentNumber int
}

// MergePlan is everything a merge writes, computed up front.
type MergePlan struct {
	PrimaryID       uuid.UUID
	Moves           []MilestoneMove
	Links           []AmendmentLink
	ArchiveIDs      []uuid.UUID
	AddedCost       decimal.Decimal
	AddedMilestones int
	AddedDays       int
}

// IsNoop reports whether the plan changes nothing beyond confirming links.
func (p *MergePlan) IsNoop() bool {
	return len(p.Moves) == 0 && len(p.Links) == 0 && len(p.ArchiveIDs) == 0
}

// PlanMerge computes the merge of children into primary. maxOrder is the
// primary's current highest milestone order and maxAmendment its highest
// amendment link number, both read under lock. Children that are already
// linked and archived contribute nothing, so planning the same merge twice
// yields a no-op the second time.
func PlanMerge(primary *models.Agreement, maxOrder, maxAmendment int, children []MergeChild) (*MergePlan, error) {
	if primary.IsArchived {
		return nil, apperror.BadRequest("primary agreement is archived")
	}
	if primary.EscrowFunded {
		return nil, apperror.BadRequest("cannot merge into an agreement whose escrow is already funded")
	}
	if primary.HasPendingEscrow() {
		return nil, apperror.BadRequest("cannot merge into an agreement with an escrow payment in progress")
	}

	plan := &MergePlan{PrimaryID: primary.ID, AddedCost: decimal.Zero}
	seen := map[uuid.UUID]struct{}{primary.ID: {}}
	order := maxOrder
	amendment := maxAmendment

	for _, child := range children {
		a := child.Agreement
		if _, dup := seen[a.ID]; dup {
			return nil, apperror.BadRequest("agreements to merge must be distinct")
		}
		seen[a.ID] = struct{}{}

		if child.Linked && a.IsArchived {
			continue
		}
		if a.IsArchived {
			return nil, apperror.BadRequest("agreement " + a.ID.String() + " is archived")
		}
		if a.EscrowFunded {
			return nil, apperror.BadRequest("agreement " + a.ID.String() + " has funded escrow and cannot be merged")
		}
		if a.HasPendingEscrow() {
			return nil, apperror.BadRequest("agreement " + a.ID.String() + " has an escrow payment in progress and cannot be merged")
		}
		if a.ContractorID != primary.ContractorID {
			return nil, apperror.BadRequest("only agreements of the same contractor can be merged")
		}

		for _, m := range sortedByOrder(child.Milestones) {
			order++
			plan.Moves = append(plan.Moves, MilestoneMove{MilestoneID: m.ID, OrderNum: order})
		}
		if !child.Linked {
			amendment++
			plan.Links = append(plan.Links, AmendmentLink{ChildID: a.ID, AmendmentNumber: amendment})
		}
		plan.ArchiveIDs = append(plan.ArchiveIDs, a.ID)
		plan.AddedCost = plan.AddedCost.Add(a.TotalCost)
		plan.AddedMilestones += len(child.Milestones)
		plan.AddedDays += a.TotalTimeEstimateDays
	}

	return plan, nil
}

func sortedByOrder(ms []models.Milestone) []models.Milestone {
	out := make([]models.Milestone, len(ms))
	copy(out, ms)
	slices.SortStableFunc(out, func(a, b models.Milestone) int { return cmp.Compare(a.OrderNum, b.OrderNum) })
	return out
}
