package store

import (
	"context"
	"time"

	"vouch/internal/approval/models"
	id "vouch/pkg/domain"
)

// Creator is satisfied by both request stores.
type Creator interface {
	Create(ctx context.Context, req *models.Request) error
}

// SeedDemoRequests creates one submitted request per policy shape so a fresh
// development instance has something to approve. Returned in creation order:
// no evidence needed, evidence required, evidence required with a one hour TTL.
func SeedDemoRequests(ctx context.Context, store Creator, tenantID id.TenantID, now time.Time) ([]*models.Request, error) {
	hour := int64(3600)
	seeds := []*models.Request{
		{Title: "Office supplies order", EvidenceRequiredForApproval: false},
		{Title: "Vendor invoice", EvidenceRequiredForApproval: true},
		{Title: "Travel reimbursement", EvidenceRequiredForApproval: true, EvidenceTTLSeconds: &hour},
	}
	for _, req := range seeds {
		req.ID = id.NewRequestID()
		req.TenantID = tenantID
		req.Status = models.StatusSubmitted
		req.CreatedAt = now
		req.UpdatedAt = now
		if err := store.Create(ctx, req); err != nil {
			return nil, err
		}
	}
	return seeds, nil
}
