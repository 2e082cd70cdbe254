package service_test

import (
	"context"
	"strings"
	"testing"

	"fieldops/internal/apierror"
	"fieldops/internal/dto"
	"fieldops/internal/model"
	"fieldops/internal/repository"
	"fieldops/internal/service"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ── In-memory ToolkitRepository stub ─────────────────────────────────────────

type stubToolkitRepo struct {
	toolkits map[uuid.UUID]*model.Toolkit

	// failSaves makes the next N Save/RemoveVariant calls fail with a version
	// conflict, exercising the service retry loop.
	failSaves int
	// missOnFindByName makes the next N FindByName calls report not-found even
	// when the toolkit exists, simulating a lost create race.
	missOnFindByName int
}

func newStubToolkitRepo() *stubToolkitRepo {
	return &stubToolkitRepo{toolkits: make(map[uuid.UUID]*model.Toolkit)}
}

// cloneToolkit deep-copies the aggregate so callers never share slices with
// the store, mirroring how a real repository hydrates fresh rows.
func cloneToolkit(t *model.Toolkit) *model.Toolkit {
	out := *t
	out.Variants = make([]model.Variant, len(t.Variants))
	for i, v := range t.Variants {
		cv := v
		cv.History = make([]model.StockHistoryEntry, len(v.History))
		copy(cv.History, v.History)
		out.Variants[i] = cv
	}
	return &out
}

// assignLedgerIDs mimics the DB default filling in primary keys on insert.
func assignLedgerIDs(t *model.Toolkit) {
	for i := range t.Variants {
		for j := range t.Variants[i].History {
			if t.Variants[i].History[j].ID == uuid.Nil {
				t.Variants[i].History[j].ID = uuid.New()
			}
		}
	}
}

func (r *stubToolkitRepo) Create(_ context.Context, t *model.Toolkit) error {
	for _, existing := range r.toolkits {
		if strings.EqualFold(existing.Name, t.Name) {
			return apierror.ErrDuplicateName
		}
	}
	stored := cloneToolkit(t)
	assignLedgerIDs(stored)
	r.toolkits[t.ID] = stored
	return nil
}

func (r *stubToolkitRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Toolkit, error) {
	t, ok := r.toolkits[id]
	if !ok {
		return nil, apierror.ErrToolkitNotFound
	}
	return cloneToolkit(t), nil
}

func (r *stubToolkitRepo) FindByName(_ context.Context, name string) (*model.Toolkit, error) {
	if r.missOnFindByName > 0 {
		r.missOnFindByName--
		return nil, apierror.ErrToolkitNotFound
	}
	for _, t := range r.toolkits {
		if strings.EqualFold(t.Name, name) {
			return cloneToolkit(t), nil
		}
	}
	return nil, apierror.ErrToolkitNotFound
}

func (r *stubToolkitRepo) FindAll(_ context.Context) ([]model.Toolkit, error) {
	out := make([]model.Toolkit, 0, len(r.toolkits))
	for _, t := range r.toolkits {
		out = append(out, *cloneToolkit(t))
	}
	return out, nil
}

func (r *stubToolkitRepo) SearchByName(_ context.Context, term string) ([]model.Toolkit, error) {
	var out []model.Toolkit
	for _, t := range r.toolkits {
		if strings.Contains(strings.ToLower(t.Name), strings.ToLower(term)) {
			out = append(out, *cloneToolkit(t))
		}
	}
	return out, nil
}

func (r *stubToolkitRepo) Save(_ context.Context, t *model.Toolkit) error {
	if r.failSaves > 0 {
		r.failSaves--
		return apierror.ErrVersionConflict
	}
	stored, ok := r.toolkits[t.ID]
	if !ok {
		return apierror.ErrToolkitNotFound
	}
	if stored.Version != t.Version {
		return apierror.ErrVersionConflict
	}
	t.Version++
	next := cloneToolkit(t)
	assignLedgerIDs(next)
	r.toolkits[t.ID] = next
	return nil
}

func (r *stubToolkitRepo) RemoveVariant(_ context.Context, t *model.Toolkit, _ uuid.UUID) error {
	return r.Save(context.Background(), t)
}

func (r *stubToolkitRepo) DeleteByID(_ context.Context, id uuid.UUID) error {
	if _, ok := r.toolkits[id]; !ok {
		return apierror.ErrToolkitNotFound
	}
	delete(r.toolkits, id)
	return nil
}

// Ensure the stub satisfies the interface at compile time.
var _ repository.ToolkitRepository = (*stubToolkitRepo)(nil)

// ── Helpers ───────────────────────────────────────────────────────────────────

func newTestService(repo *stubToolkitRepo) service.ToolkitService {
	// nil dispatcher and nil redis: notifications and caching are best-effort
	return service.NewToolkitService(repo, nil, nil, "")
}

func addHelmet(t *testing.T, svc service.ToolkitService, stock int) *dto.ToolkitResponse {
	t.Helper()
	resp, created, err := svc.InsertOrMerge(context.Background(), dto.AddToolkitRequest{
		Name:          "Safety Helmet",
		Type:          "PPE",
		Size:          "L",
		Color:         "Yellow",
		StockCount:    stock,
		MinStockLevel: 5,
		UpdatedBy:     "alice",
	})
	require.NoError(t, err)
	require.True(t, created)
	return resp
}

// ── Tests ─────────────────────────────────────────────────────────────────────

func TestInsertCreatesToolkit(t *testing.T) {
	repo := newStubToolkitRepo()
	svc := newTestService(repo)

	resp := addHelmet(t, svc, 12)

	assert.Equal(t, "Safety Helmet", resp.Name)
	assert.Equal(t, 12, resp.TotalStock)
	assert.Equal(t, "available", resp.OverallStatus)
	require.Len(t, resp.Variants, 1)
	v := resp.Variants[0]
	assert.Equal(t, "available", v.Status)
	require.Len(t, v.StockHistory, 1)
	assert.Equal(t, "initial", v.StockHistory[0].Action)
	assert.Equal(t, 0, v.StockHistory[0].PreviousStock)
	assert.Equal(t, 12, v.StockHistory[0].NewStock)
}

func TestInsertRejectsBlankNameOrType(t *testing.T) {
	svc := newTestService(newStubToolkitRepo())

	_, _, err := svc.InsertOrMerge(context.Background(), dto.AddToolkitRequest{Name: "   ", Type: "PPE"})
	assert.Error(t, err)

	_, _, err = svc.InsertOrMerge(context.Background(), dto.AddToolkitRequest{Name: "Helmet", Type: " "})
	assert.Error(t, err)
}

func TestInsertMergesSameVariantCaseInsensitive(t *testing.T) {
	repo := newStubToolkitRepo()
	svc := newTestService(repo)
	addHelmet(t, svc, 12)

	// Same name and same size/color in a different case: additive merge.
	resp, created, err := svc.InsertOrMerge(context.Background(), dto.AddToolkitRequest{
		Name:       "SAFETY helmet",
		Type:       "PPE",
		Size:       "l",
		Color:      "YELLOW",
		StockCount: 3,
		UpdatedBy:  "bob",
	})
	require.NoError(t, err)
	assert.False(t, created)
	require.Len(t, resp.Variants, 1)
	assert.Equal(t, 15, resp.Variants[0].StockCount)
	assert.Equal(t, 15, resp.TotalStock)

	// Ledger gained an "updated" entry on top of the "initial" one.
	hist := resp.Variants[0].StockHistory
	require.Len(t, hist, 2)
	assert.Equal(t, "updated", hist[1].Action)
	assert.Equal(t, 12, hist[1].PreviousStock)
	assert.Equal(t, 15, hist[1].NewStock)
	assert.Equal(t, 3, hist[1].ChangeAmount)
}

func TestInsertAppendsNewVariant(t *testing.T) {
	repo := newStubToolkitRepo()
	svc := newTestService(repo)
	addHelmet(t, svc, 12)

	resp, created, err := svc.InsertOrMerge(context.Background(), dto.AddToolkitRequest{
		Name:       "Safety Helmet",
		Type:       "PPE",
		Size:       "M",
		Color:      "White",
		StockCount: 6,
	})
	require.NoError(t, err)
	assert.False(t, created)
	require.Len(t, resp.Variants, 2)
	assert.Equal(t, 18, resp.TotalStock)
	assert.Equal(t, "initial", resp.Variants[1].StockHistory[0].Action)
}

func TestInsertLostCreateRaceMerges(t *testing.T) {
	repo := newStubToolkitRepo()
	svc := newTestService(repo)
	addHelmet(t, svc, 12)

	// First FindByName misses, so the service takes the create path and only
	// then learns the name is taken. It must fall back to merging.
	repo.missOnFindByName = 1
	resp, created, err := svc.InsertOrMerge(context.Background(), dto.AddToolkitRequest{
		Name:       "Safety Helmet",
		Type:       "PPE",
		Size:       "L",
		Color:      "Yellow",
		StockCount: 3,
	})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, 15, resp.TotalStock)
	assert.Len(t, repo.toolkits, 1)
}

func TestReduceStock(t *testing.T) {
	repo := newStubToolkitRepo()
	svc := newTestService(repo)
	created := addHelmet(t, svc, 12)
	toolkitID := uuid.MustParse(created.ID)
	variantID := uuid.MustParse(created.Variants[0].ID)

	resp, err := svc.ReduceStock(context.Background(), toolkitID, variantID, dto.ReduceStockRequest{
		Quantity:  8,
		Reason:    "issued to crew 7",
		UpdatedBy: "dispatcher",
	})
	require.NoError(t, err)

	v := resp.Variants[0]
	assert.Equal(t, 4, v.StockCount)
	assert.Equal(t, "low", v.Status) // 4 < min level 5
	assert.Equal(t, "low", resp.OverallStatus)

	hist := v.StockHistory
	require.Len(t, hist, 2)
	assert.Equal(t, "reduced", hist[1].Action)
	assert.Equal(t, -8, hist[1].ChangeAmount)
	assert.Equal(t, "issued to crew 7", hist[1].Reason)
}

func TestReduceStockInsufficientMutatesNothing(t *testing.T) {
	repo := newStubToolkitRepo()
	svc := newTestService(repo)
	created := addHelmet(t, svc, 4)
	toolkitID := uuid.MustParse(created.ID)
	variantID := uuid.MustParse(created.Variants[0].ID)

	_, err := svc.ReduceStock(context.Background(), toolkitID, variantID, dto.ReduceStockRequest{Quantity: 5})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insufficient stock: requested 5, available 4")

	// Neither the count nor the ledger changed.
	stored := repo.toolkits[toolkitID]
	assert.Equal(t, 4, stored.Variants[0].StockCount)
	assert.Len(t, stored.Variants[0].History, 1)
}

func TestReduceStockRejectsNonPositiveQuantity(t *testing.T) {
	svc := newTestService(newStubToolkitRepo())
	_, err := svc.ReduceStock(context.Background(), uuid.New(), uuid.New(), dto.ReduceStockRequest{Quantity: 0})
	assert.Error(t, err)
}

func TestReduceStockUnknownVariant(t *testing.T) {
	repo := newStubToolkitRepo()
	svc := newTestService(repo)
	created := addHelmet(t, svc, 12)

	_, err := svc.ReduceStock(context.Background(), uuid.MustParse(created.ID), uuid.New(), dto.ReduceStockRequest{Quantity: 1})
	assert.ErrorIs(t, err, apierror.ErrVariantNotFound)
}

func TestUpdateVariantStockWritesLedger(t *testing.T) {
	repo := newStubToolkitRepo()
	svc := newTestService(repo)
	created := addHelmet(t, svc, 12)
	toolkitID := uuid.MustParse(created.ID)
	variantID := uuid.MustParse(created.Variants[0].ID)

	newCount := 20
	resp, err := svc.UpdateVariant(context.Background(), toolkitID, variantID, dto.UpdateVariantRequest{
		StockCount: &newCount,
		Reason:     "annual recount",
		UpdatedBy:  "auditor",
	})
	require.NoError(t, err)

	v := resp.Variants[0]
	assert.Equal(t, 20, v.StockCount)
	require.Len(t, v.StockHistory, 2)
	assert.Equal(t, "added", v.StockHistory[1].Action)
	assert.Equal(t, 8, v.StockHistory[1].ChangeAmount)
}

func TestUpdateVariantSameCountAppendsNothing(t *testing.T) {
	repo := newStubToolkitRepo()
	svc := newTestService(repo)
	created := addHelmet(t, svc, 12)
	toolkitID := uuid.MustParse(created.ID)
	variantID := uuid.MustParse(created.Variants[0].ID)

	sameCount := 12
	resp, err := svc.UpdateVariant(context.Background(), toolkitID, variantID, dto.UpdateVariantRequest{
		StockCount: &sameCount,
	})
	require.NoError(t, err)
	assert.Len(t, resp.Variants[0].StockHistory, 1)
}

func TestUpdateToolkitRenameAndAppendVariant(t *testing.T) {
	repo := newStubToolkitRepo()
	svc := newTestService(repo)
	created := addHelmet(t, svc, 12)
	toolkitID := uuid.MustParse(created.ID)

	newName := "Climbing Helmet"
	size, color := "S", "Orange"
	stock := 7
	resp, err := svc.UpdateToolkit(context.Background(), toolkitID, dto.UpdateToolkitRequest{
		Name: &newName,
		Variants: []dto.UpdateVariantRequest{
			{Size: &size, Color: &color, StockCount: &stock},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "Climbing Helmet", resp.Name)
	require.Len(t, resp.Variants, 2)
	assert.Equal(t, 19, resp.TotalStock)
}

func TestUpdateToolkitUnknownVariantID(t *testing.T) {
	repo := newStubToolkitRepo()
	svc := newTestService(repo)
	created := addHelmet(t, svc, 12)

	missing := uuid.New().String()
	_, err := svc.UpdateToolkit(context.Background(), uuid.MustParse(created.ID), dto.UpdateToolkitRequest{
		Variants: []dto.UpdateVariantRequest{{ID: &missing}},
	})
	assert.ErrorIs(t, err, apierror.ErrVariantNotFound)
}

func TestDeleteVariantRecomputesAggregate(t *testing.T) {
	repo := newStubToolkitRepo()
	svc := newTestService(repo)
	created := addHelmet(t, svc, 12)
	toolkitID := uuid.MustParse(created.ID)

	merged, _, err := svc.InsertOrMerge(context.Background(), dto.AddToolkitRequest{
		Name: "Safety Helmet", Type: "PPE", Size: "M", Color: "White", StockCount: 6,
	})
	require.NoError(t, err)
	secondID := uuid.MustParse(merged.Variants[1].ID)

	require.NoError(t, svc.DeleteVariant(context.Background(), toolkitID, secondID))

	stored := repo.toolkits[toolkitID]
	require.Len(t, stored.Variants, 1)
	assert.Equal(t, 12, stored.TotalStock)
}

func TestDeleteLastVariantDeletesToolkit(t *testing.T) {
	repo := newStubToolkitRepo()
	svc := newTestService(repo)
	created := addHelmet(t, svc, 12)
	toolkitID := uuid.MustParse(created.ID)
	variantID := uuid.MustParse(created.Variants[0].ID)

	require.NoError(t, svc.DeleteVariant(context.Background(), toolkitID, variantID))

	_, err := repo.FindByID(context.Background(), toolkitID)
	assert.ErrorIs(t, err, apierror.ErrToolkitNotFound)
}

func TestDeleteToolkit(t *testing.T) {
	repo := newStubToolkitRepo()
	svc := newTestService(repo)
	created := addHelmet(t, svc, 12)

	require.NoError(t, svc.DeleteToolkit(context.Background(), uuid.MustParse(created.ID)))
	assert.ErrorIs(t, svc.DeleteToolkit(context.Background(), uuid.MustParse(created.ID)), apierror.ErrToolkitNotFound)
}

func TestSaveRetriesOnVersionConflict(t *testing.T) {
	repo := newStubToolkitRepo()
	svc := newTestService(repo)
	created := addHelmet(t, svc, 12)
	toolkitID := uuid.MustParse(created.ID)
	variantID := uuid.MustParse(created.Variants[0].ID)

	// Two conflicts, then success on the third attempt.
	repo.failSaves = 2
	resp, err := svc.ReduceStock(context.Background(), toolkitID, variantID, dto.ReduceStockRequest{Quantity: 2})
	require.NoError(t, err)
	assert.Equal(t, 10, resp.Variants[0].StockCount)
	// Exactly one ledger entry despite the retries.
	assert.Len(t, repo.toolkits[toolkitID].Variants[0].History, 2)
}

func TestSaveGivesUpAfterMaxAttempts(t *testing.T) {
	repo := newStubToolkitRepo()
	svc := newTestService(repo)
	created := addHelmet(t, svc, 12)

	repo.failSaves = 3
	_, err := svc.ReduceStock(context.Background(),
		uuid.MustParse(created.ID), uuid.MustParse(created.Variants[0].ID),
		dto.ReduceStockRequest{Quantity: 2})
	assert.ErrorIs(t, err, apierror.ErrVersionConflict)
}

func TestGetStockHistoryNewestFirst(t *testing.T) {
	repo := newStubToolkitRepo()
	svc := newTestService(repo)
	created := addHelmet(t, svc, 12)
	toolkitID := uuid.MustParse(created.ID)
	variantID := uuid.MustParse(created.Variants[0].ID)

	_, err := svc.ReduceStock(context.Background(), toolkitID, variantID, dto.ReduceStockRequest{Quantity: 3})
	require.NoError(t, err)

	hist, err := svc.GetStockHistory(context.Background(), toolkitID, variantID)
	require.NoError(t, err)
	require.Len(t, hist, 2)
	assert.Equal(t, "reduced", hist[0].Action)
	assert.Equal(t, "initial", hist[1].Action)
}

func TestGetToolkitStockHistoryGroupsPerVariant(t *testing.T) {
	repo := newStubToolkitRepo()
	svc := newTestService(repo)
	created := addHelmet(t, svc, 12)
	toolkitID := uuid.MustParse(created.ID)

	_, _, err := svc.InsertOrMerge(context.Background(), dto.AddToolkitRequest{
		Name: "Safety Helmet", Type: "PPE", Size: "M", Color: "White", StockCount: 6,
	})
	require.NoError(t, err)

	groups, err := svc.GetToolkitStockHistory(context.Background(), toolkitID)
	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.Len(t, groups[0].StockHistory, 1)
	assert.Len(t, groups[1].StockHistory, 1)
}

func TestSearchRequiresTerm(t *testing.T) {
	svc := newTestService(newStubToolkitRepo())
	_, err := svc.Search(context.Background(), "   ")
	assert.Error(t, err)
}

func TestSearchMatchesSubstringCaseInsensitive(t *testing.T) {
	repo := newStubToolkitRepo()
	svc := newTestService(repo)
	addHelmet(t, svc, 12)

	results, err := svc.Search(context.Background(), "helm")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Safety Helmet", results[0].Name)

	results, err = svc.Search(context.Background(), "wrench")
	require.NoError(t, err)
	assert.Empty(t, results)
}

// Full lifecycle: create, debit, rejected over-debit, then a merged restock.
func TestHelmetLifecycle(t *testing.T) {
	repo := newStubToolkitRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	created := addHelmet(t, svc, 12)
	toolkitID := uuid.MustParse(created.ID)
	variantID := uuid.MustParse(created.Variants[0].ID)

	// Debit 8 → 4 left, low.
	resp, err := svc.ReduceStock(ctx, toolkitID, variantID, dto.ReduceStockRequest{Quantity: 8, UpdatedBy: "dispatcher"})
	require.NoError(t, err)
	assert.Equal(t, 4, resp.Variants[0].StockCount)
	assert.Equal(t, "low", resp.OverallStatus)

	// Debit 5 with 4 left → rejected, nothing changes.
	_, err = svc.ReduceStock(ctx, toolkitID, variantID, dto.ReduceStockRequest{Quantity: 5})
	require.Error(t, err)
	assert.Equal(t, 4, repo.toolkits[toolkitID].Variants[0].StockCount)

	// Re-insert 3 under the same name and key → additive merge back to 7.
	merged, wasCreated, err := svc.InsertOrMerge(ctx, dto.AddToolkitRequest{
		Name: "safety helmet", Type: "PPE", Size: "L", Color: "Yellow", StockCount: 3,
	})
	require.NoError(t, err)
	assert.False(t, wasCreated)
	assert.Equal(t, 7, merged.Variants[0].StockCount)
	assert.Equal(t, "available", merged.OverallStatus)

	// Ledger: initial, reduced, updated — exactly three entries, sums consistent.
	hist, err := svc.GetStockHistory(ctx, toolkitID, variantID)
	require.NoError(t, err)
	require.Len(t, hist, 3)
	assert.Equal(t, "updated", hist[0].Action)
	assert.Equal(t, "reduced", hist[1].Action)
	assert.Equal(t, "initial", hist[2].Action)
	assert.Equal(t, 3, hist[0].ChangeAmount)
	assert.Equal(t, -8, hist[1].ChangeAmount)
	assert.Equal(t, 12, hist[2].ChangeAmount)
}

func TestGetAllWithoutCache(t *testing.T) {
	repo := newStubToolkitRepo()
	svc := newTestService(repo)
	addHelmet(t, svc, 12)

	all, err := svc.GetAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 1)
}
