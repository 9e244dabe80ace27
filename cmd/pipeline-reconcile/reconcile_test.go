package main

import (
	"bytes"
	"context"
	"errors"
	"slices"
	"testing"

	leadrepo "estate_crm_backend/internal/leads/repository"
	"estate_crm_backend/internal/pipeline/domain"
	"estate_crm_backend/platform/logger"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
)

type fakeStore struct {
	leads   []leadrepo.Lead
	setErr  map[uuid.UUID]error
	updates map[uuid.UUID]domain.Status
	queries int
}

func (f *fakeStore) ListInvalidStatus(_ context.Context, afterID uuid.UUID, limit int) ([]leadrepo.Lead, error) {
	f.queries++
	var out []leadrepo.Lead
	for _, l := range f.leads {
		if bytes.Compare(l.ID[:], afterID[:]) <= 0 || domain.IsStatusValidForPipeline(l.Status, l.PipelineType) {
			continue
		}
		out = append(out, l)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeStore) SetStatus(_ context.Context, id, _ uuid.UUID, status domain.Status) error {
	if err := f.setErr[id]; err != nil {
		return err
	}
	f.updates[id] = status
	for i := range f.leads {
		if f.leads[i].ID == id {
			f.leads[i].Status = status
		}
	}
	return nil
}

func newFakeStore(leads ...leadrepo.Lead) *fakeStore {
	slices.SortFunc(leads, func(a, b leadrepo.Lead) int { return bytes.Compare(a.ID[:], b.ID[:]) })
	return &fakeStore{leads: leads, setErr: map[uuid.UUID]error{}, updates: map[uuid.UUID]domain.Status{}}
}

func lead(status domain.Status, pt domain.PipelineType) leadrepo.Lead {
	return leadrepo.Lead{ID: uuid.New(), OrganizationID: uuid.New(), Status: status, PipelineType: pt}
}

func TestReconcileCorrectsInvalidStatuses(t *testing.T) {
	proposalInRental := lead(domain.StatusProposal, domain.PipelineRental)
	newInOwner := lead(domain.StatusNew, domain.PipelineOwner)
	mandateInPurchase := lead(domain.StatusMandateSigned, domain.PipelinePurchase)
	valid := lead(domain.StatusVisit, domain.PipelineRental)
	store := newFakeStore(proposalInRental, newInOwner, mandateInPurchase, valid)

	sum, err := reconcile(context.Background(), store, 2, false, logger.Discard())
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	want := map[uuid.UUID]domain.Status{
		proposalInRental.ID:  domain.StatusNew,
		newInOwner.ID:        domain.StatusNewContact,
		mandateInPurchase.ID: domain.StatusNew,
	}
	if diff := cmp.Diff(want, store.updates); diff != "" {
		t.Fatalf("updates mismatch (-want +got):\n%s", diff)
	}
	if sum != (summary{Scanned: 3, Corrected: 3}) {
		t.Fatalf("unexpected summary %+v", sum)
	}
}

func TestReconcileDryRunWritesNothing(t *testing.T) {
	store := newFakeStore(lead(domain.StatusProposal, domain.PipelineRental))

	sum, err := reconcile(context.Background(), store, 10, true, logger.Discard())
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if len(store.updates) != 0 || sum.Corrected != 1 {
		t.Fatalf("dry run wrote %v, summary %+v", store.updates, sum)
	}
}

func TestReconcileContinuesAfterFailure(t *testing.T) {
	broken := lead(domain.StatusProposal, domain.PipelineRental)
	fine := lead(domain.StatusInactive, domain.PipelinePurchase)
	store := newFakeStore(broken, fine)
	store.setErr[broken.ID] = errors.New("row locked")

	sum, err := reconcile(context.Background(), store, 1, false, logger.Discard())
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if sum.Failed != 1 || sum.Corrected != 1 || store.updates[fine.ID] != domain.StatusNew {
		t.Fatalf("unexpected result %+v %v", sum, store.updates)
	}
}

func TestReconcileRejectsBadBatchSize(t *testing.T) {
	if _, err := reconcile(context.Background(), newFakeStore(), 0, false, logger.Discard()); err == nil {
		t.Fatal("expected an error for a zero batch size")
	}
}
