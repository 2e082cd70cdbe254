package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"fieldops/internal/apierror"
	"fieldops/internal/dto"
	"fieldops/internal/infra"
	"fieldops/internal/model"
	"fieldops/internal/repository"
	"fieldops/internal/worker"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// ToolkitService defines the business logic contract for the stock ledger.
type ToolkitService interface {
	// InsertOrMerge creates a toolkit, appends a variant, or additively merges
	// stock into an existing variant. The bool reports whether a new toolkit
	// was created (201) as opposed to merged (200).
	InsertOrMerge(ctx context.Context, req dto.AddToolkitRequest) (*dto.ToolkitResponse, bool, error)
	GetAll(ctx context.Context) ([]dto.ToolkitResponse, error)
	UpdateToolkit(ctx context.Context, id uuid.UUID, req dto.UpdateToolkitRequest) (*dto.ToolkitResponse, error)
	DeleteToolkit(ctx context.Context, id uuid.UUID) error
	UpdateVariant(ctx context.Context, toolkitID, variantID uuid.UUID, req dto.UpdateVariantRequest) (*dto.ToolkitResponse, error)
	// DeleteVariant removes a variant; deleting the last variant deletes the
	// whole toolkit rather than leaving an empty shell.
	DeleteVariant(ctx context.Context, toolkitID, variantID uuid.UUID) error
	ReduceStock(ctx context.Context, toolkitID, variantID uuid.UUID, req dto.ReduceStockRequest) (*dto.ToolkitResponse, error)
	Search(ctx context.Context, term string) ([]dto.ToolkitResponse, error)
	GetStockHistory(ctx context.Context, toolkitID, variantID uuid.UUID) ([]dto.StockHistoryEntryResponse, error)
	GetToolkitStockHistory(ctx context.Context, toolkitID uuid.UUID) ([]dto.VariantHistoryResponse, error)
	// ExportReport renders the inventory PDF and returns its file path.
	ExportReport(ctx context.Context) (string, error)
}

type toolkitService struct {
	repo       repository.ToolkitRepository
	dispatcher *worker.Dispatcher
	rdb        *redis.Client
	reportPath string
}

func NewToolkitService(repo repository.ToolkitRepository, dispatcher *worker.Dispatcher, rdb *redis.Client, reportPath string) ToolkitService {
	return &toolkitService{repo: repo, dispatcher: dispatcher, rdb: rdb, reportPath: reportPath}
}

const (
	// maxSaveAttempts bounds the reload-and-retry loop on optimistic
	// version conflicts.
	maxSaveAttempts = 3

	listCacheKey = "toolkits:all"
	listCacheTTL = 5 * time.Minute
)

// ── InsertOrMerge ─────────────────────────────────────────────────────────────
// Case-insensitive lookup by name:
//   - no toolkit        → create with one variant ("initial" ledger entry)
//   - toolkit, new key  → append variant ("initial")
//   - toolkit, same key → additive merge ("updated")

func (s *toolkitService) InsertOrMerge(ctx context.Context, req dto.AddToolkitRequest) (*dto.ToolkitResponse, bool, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" || strings.TrimSpace(req.Type) == "" {
		return nil, false, errors.New("name and type are required")
	}

	_, err := s.repo.FindByName(ctx, name)
	if errors.Is(err, apierror.ErrToolkitNotFound) {
		t := model.NewToolkit(name, req.Type)
		v := t.AddVariant(req.Size, req.Color, req.StockCount, req.MinStockLevel, req.Reason, req.UpdatedBy)
		v.UnitCost = req.UnitCost
		t.Recompute()
		if createErr := s.repo.Create(ctx, t); createErr != nil {
			if errors.Is(createErr, apierror.ErrDuplicateName) {
				// Lost the create race — someone inserted the same name
				// concurrently. Fall through to the merge path.
				return s.mergeIntoExisting(ctx, req)
			}
			return nil, false, createErr
		}
		s.invalidateListCache(ctx)
		s.notifyCreate(ctx, t,
			fmt.Sprintf("Toolkit %q added", t.Name),
			fmt.Sprintf("New toolkit %q (%s) stocked with %d units", t.Name, t.Type, t.TotalStock),
			"normal")
		s.alertIfLow(ctx, t, &t.Variants[0])
		return toToolkitResponse(t), true, nil
	}
	if err != nil {
		return nil, false, err
	}

	return s.mergeIntoExisting(ctx, req)
}

func (s *toolkitService) mergeIntoExisting(ctx context.Context, req dto.AddToolkitRequest) (*dto.ToolkitResponse, bool, error) {
	name := strings.TrimSpace(req.Name)

	byName, err := s.repo.FindByName(ctx, name)
	if err != nil {
		return nil, false, err
	}

	var touched *model.Variant
	t, err := s.mutateWithRetry(ctx, byName.ID, func(t *model.Toolkit) error {
		if v := t.FindVariantByKey(req.Size, req.Color); v != nil {
			v.MergeStock(req.StockCount, req.Reason, req.UpdatedBy)
			if req.UnitCost != nil {
				v.UnitCost = req.UnitCost
			}
			touched = v
			return nil
		}
		v := t.AddVariant(req.Size, req.Color, req.StockCount, req.MinStockLevel, req.Reason, req.UpdatedBy)
		v.UnitCost = req.UnitCost
		touched = v
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	s.notifyCreate(ctx, t,
		fmt.Sprintf("Stock updated for %q", t.Name),
		fmt.Sprintf("Toolkit %q now holds %d units in total", t.Name, t.TotalStock),
		"normal")
	s.alertIfLow(ctx, t, touched)
	return toToolkitResponse(t), false, nil
}

// ── UpdateToolkit ─────────────────────────────────────────────────────────────

func (s *toolkitService) UpdateToolkit(ctx context.Context, id uuid.UUID, req dto.UpdateToolkitRequest) (*dto.ToolkitResponse, error) {
	t, err := s.mutateWithRetry(ctx, id, func(t *model.Toolkit) error {
		if req.Name != nil && strings.TrimSpace(*req.Name) != "" {
			t.Name = strings.TrimSpace(*req.Name)
		}
		if req.Type != nil && strings.TrimSpace(*req.Type) != "" {
			t.Type = *req.Type
		}
		for _, vu := range req.Variants {
			if vu.ID != nil {
				vid, parseErr := uuid.Parse(*vu.ID)
				if parseErr != nil {
					return apierror.ErrVariantNotFound
				}
				v := t.FindVariantByID(vid)
				if v == nil {
					return apierror.ErrVariantNotFound
				}
				applyVariantUpdate(v, vu)
				continue
			}
			// Entries without an id append a new variant
			stock := 0
			if vu.StockCount != nil {
				stock = *vu.StockCount
			}
			minLevel := 0
			if vu.MinStockLevel != nil {
				minLevel = *vu.MinStockLevel
			}
			size, color := "", ""
			if vu.Size != nil {
				size = *vu.Size
			}
			if vu.Color != nil {
				color = *vu.Color
			}
			nv := t.AddVariant(size, color, stock, minLevel, vu.Reason, vu.UpdatedBy)
			nv.UnitCost = vu.UnitCost
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifyCreate(ctx, t,
		fmt.Sprintf("Toolkit %q updated", t.Name),
		fmt.Sprintf("Toolkit %q now holds %d units in total", t.Name, t.TotalStock),
		"low")
	return toToolkitResponse(t), nil
}

// ── UpdateVariant ─────────────────────────────────────────────────────────────

func (s *toolkitService) UpdateVariant(ctx context.Context, toolkitID, variantID uuid.UUID, req dto.UpdateVariantRequest) (*dto.ToolkitResponse, error) {
	var touched *model.Variant
	t, err := s.mutateWithRetry(ctx, toolkitID, func(t *model.Toolkit) error {
		v := t.FindVariantByID(variantID)
		if v == nil {
			return apierror.ErrVariantNotFound
		}
		applyVariantUpdate(v, req)
		touched = v
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifyCreate(ctx, t,
		fmt.Sprintf("Variant updated on %q", t.Name),
		fmt.Sprintf("Variant %s was updated; toolkit total is now %d", variantLabel(touched), t.TotalStock),
		"low")
	s.alertIfLow(ctx, t, touched)
	return toToolkitResponse(t), nil
}

// applyVariantUpdate applies the explicit allow-list of mutable variant
// fields. A stock-count change goes through the ledger (action chosen by the
// sign of the delta); everything else is assigned directly.
func applyVariantUpdate(v *model.Variant, req dto.UpdateVariantRequest) {
	changed := false
	if req.Size != nil {
		v.Size = *req.Size
		changed = true
	}
	if req.Color != nil {
		v.Color = *req.Color
		changed = true
	}
	if req.MinStockLevel != nil && *req.MinStockLevel >= 1 {
		v.MinStockLevel = *req.MinStockLevel
		changed = true
	}
	if req.InUse != nil {
		v.InUse = *req.InUse
		changed = true
	}
	if req.UnitCost != nil {
		v.UnitCost = req.UnitCost
		changed = true
	}
	if req.StockCount != nil && *req.StockCount != v.StockCount {
		v.ApplyStock(*req.StockCount, req.Reason, req.UpdatedBy)
		changed = false // ApplyStock already refreshed LastUpdatedDate
	}
	if changed {
		v.LastUpdatedDate = time.Now()
	}
}

// ── ReduceStock ───────────────────────────────────────────────────────────────
// Quantity-guarded debit: if quantity exceeds the available count, nothing is
// mutated and no ledger entry is appended.

func (s *toolkitService) ReduceStock(ctx context.Context, toolkitID, variantID uuid.UUID, req dto.ReduceStockRequest) (*dto.ToolkitResponse, error) {
	if req.Quantity <= 0 {
		return nil, errors.New("quantity must be a positive integer")
	}

	var touched *model.Variant
	t, err := s.mutateWithRetry(ctx, toolkitID, func(t *model.Toolkit) error {
		v := t.FindVariantByID(variantID)
		if v == nil {
			return apierror.ErrVariantNotFound
		}
		if req.Quantity > v.StockCount {
			return &apierror.InsufficientStockError{Available: v.StockCount, Requested: req.Quantity}
		}
		v.ReduceStock(req.Quantity, req.Reason, req.UpdatedBy)
		touched = v
		return nil
	})
	if err != nil {
		return nil, err
	}

	desc := fmt.Sprintf("%d unit(s) of %s taken from toolkit %q; %d left",
		req.Quantity, variantLabel(touched), t.Name, touched.StockCount)
	s.notifyCreate(ctx, t, fmt.Sprintf("Stock reduced on %q", t.Name), desc, "normal")
	if req.Person != "" {
		// Handover notice addressed to the receiving person. The person is
		// part of the notification text only — the ledger does not store it.
		s.notifyGeneral(ctx, req.Person,
			fmt.Sprintf("Equipment handover: %s", t.Name),
			fmt.Sprintf("%s — handed over to %s", desc, req.Person),
			"normal", "handover")
	}
	s.alertIfLow(ctx, t, touched)
	return toToolkitResponse(t), nil
}

// ── Deletes ───────────────────────────────────────────────────────────────────

func (s *toolkitService) DeleteVariant(ctx context.Context, toolkitID, variantID uuid.UUID) error {
	for attempt := 0; attempt < maxSaveAttempts; attempt++ {
		t, err := s.repo.FindByID(ctx, toolkitID)
		if err != nil {
			return err
		}
		if t.FindVariantByID(variantID) == nil {
			return apierror.ErrVariantNotFound
		}
		t.RemoveVariant(variantID)

		if len(t.Variants) == 0 {
			// No variants left — drop the whole toolkit, not an empty shell.
			if err := s.repo.DeleteByID(ctx, toolkitID); err != nil {
				return err
			}
			s.invalidateListCache(ctx)
			return nil
		}

		t.Recompute()
		err = s.repo.RemoveVariant(ctx, t, variantID)
		if errors.Is(err, apierror.ErrVersionConflict) {
			continue
		}
		if err != nil {
			return err
		}
		s.invalidateListCache(ctx)
		return nil
	}
	return apierror.ErrVersionConflict
}

func (s *toolkitService) DeleteToolkit(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.DeleteByID(ctx, id); err != nil {
		return err
	}
	s.invalidateListCache(ctx)
	return nil
}

// ── Reads ─────────────────────────────────────────────────────────────────────

func (s *toolkitService) GetAll(ctx context.Context) ([]dto.ToolkitResponse, error) {
	// Best-effort Redis cache; the DB remains the source of truth.
	if s.rdb != nil {
		if cached, err := s.rdb.Get(ctx, listCacheKey).Bytes(); err == nil {
			var resp []dto.ToolkitResponse
			if jsonErr := json.Unmarshal(cached, &resp); jsonErr == nil {
				return resp, nil
			}
		}
	}

	toolkits, err := s.repo.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	resp := make([]dto.ToolkitResponse, 0, len(toolkits))
	for i := range toolkits {
		resp = append(resp, *toToolkitResponse(&toolkits[i]))
	}

	if s.rdb != nil {
		if b, jsonErr := json.Marshal(resp); jsonErr == nil {
			_ = s.rdb.Set(ctx, listCacheKey, b, listCacheTTL).Err()
		}
	}
	return resp, nil
}

func (s *toolkitService) Search(ctx context.Context, term string) ([]dto.ToolkitResponse, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, errors.New("search term is required")
	}
	toolkits, err := s.repo.SearchByName(ctx, term)
	if err != nil {
		return nil, err
	}
	resp := make([]dto.ToolkitResponse, 0, len(toolkits))
	for i := range toolkits {
		resp = append(resp, *toToolkitResponse(&toolkits[i]))
	}
	return resp, nil
}

func (s *toolkitService) GetStockHistory(ctx context.Context, toolkitID, variantID uuid.UUID) ([]dto.StockHistoryEntryResponse, error) {
	t, err := s.repo.FindByID(ctx, toolkitID)
	if err != nil {
		return nil, err
	}
	v := t.FindVariantByID(variantID)
	if v == nil {
		return nil, apierror.ErrVariantNotFound
	}
	return toHistoryResponses(model.SortedHistory(v.History)), nil
}

func (s *toolkitService) GetToolkitStockHistory(ctx context.Context, toolkitID uuid.UUID) ([]dto.VariantHistoryResponse, error) {
	t, err := s.repo.FindByID(ctx, toolkitID)
	if err != nil {
		return nil, err
	}
	resp := make([]dto.VariantHistoryResponse, 0, len(t.Variants))
	for i := range t.Variants {
		v := &t.Variants[i]
		resp = append(resp, dto.VariantHistoryResponse{
			VariantID:    v.ID.String(),
			Size:         v.Size,
			Color:        v.Color,
			StockCount:   v.StockCount,
			StockHistory: toHistoryResponses(model.SortedHistory(v.History)),
		})
	}
	return resp, nil
}

func (s *toolkitService) ExportReport(ctx context.Context) (string, error) {
	toolkits, err := s.repo.FindAll(ctx)
	if err != nil {
		return "", err
	}
	return infra.GenerateInventoryReport(toolkits, s.reportPath)
}

// ── Internals ─────────────────────────────────────────────────────────────────

// mutateWithRetry runs the load → mutate → recompute → save cycle, reloading
// and re-applying on optimistic version conflicts. The mutate closure sees a
// fresh aggregate on every attempt, so stock guards are re-validated against
// current counts.
func (s *toolkitService) mutateWithRetry(ctx context.Context, id uuid.UUID, mutate func(t *model.Toolkit) error) (*model.Toolkit, error) {
	for attempt := 0; attempt < maxSaveAttempts; attempt++ {
		t, err := s.repo.FindByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if err := mutate(t); err != nil {
			return nil, err
		}
		t.Recompute()
		err = s.repo.Save(ctx, t)
		if errors.Is(err, apierror.ErrVersionConflict) {
			log.Debug().Str("toolkit_id", id.String()).Int("attempt", attempt+1).Msg("optimistic save conflict, retrying")
			continue
		}
		if err != nil {
			return nil, err
		}
		s.invalidateListCache(ctx)
		return t, nil
	}
	return nil, apierror.ErrVersionConflict
}

func (s *toolkitService) invalidateListCache(ctx context.Context) {
	if s.rdb == nil {
		return
	}
	_ = s.rdb.Del(ctx, listCacheKey).Err()
}

// notifyCreate enqueues a dashboard notification. Best-effort: enqueue
// failures are logged and swallowed, never surfaced to the caller.
func (s *toolkitService) notifyCreate(ctx context.Context, t *model.Toolkit, title, description, priority string) {
	if s.dispatcher == nil {
		return
	}
	job := dto.NotificationJob{
		Kind:        "create",
		Title:       title,
		Description: description,
		Priority:    priority,
		SourceID:    t.ID.String(),
		Time:        time.Now().UTC().Format(time.RFC3339),
	}
	if err := s.dispatcher.EnqueueNotification(ctx, job); err != nil {
		log.Warn().Err(err).Str("title", title).Msg("notification enqueue failed")
	}
}

func (s *toolkitService) notifyGeneral(ctx context.Context, recipient, title, description, priority, typ string) {
	if s.dispatcher == nil {
		return
	}
	job := dto.NotificationJob{
		Kind:        "general",
		Title:       title,
		Description: description,
		Priority:    priority,
		Type:        typ,
		Recipient:   recipient,
		Time:        time.Now().UTC().Format(time.RFC3339),
	}
	if err := s.dispatcher.EnqueueNotification(ctx, job); err != nil {
		log.Warn().Err(err).Str("recipient", recipient).Msg("notification enqueue failed")
	}
}

// alertIfLow raises a high-priority notification when a mutation leaves the
// variant at or below its threshold.
func (s *toolkitService) alertIfLow(ctx context.Context, t *model.Toolkit, v *model.Variant) {
	if v == nil || v.Status == model.StatusAvailable {
		return
	}
	s.notifyCreate(ctx, t,
		fmt.Sprintf("Low stock: %s", t.Name),
		fmt.Sprintf("Variant %s is %s (%d left, threshold %d)",
			variantLabel(v), v.Status, v.StockCount, v.MinStockLevel),
		"high")
}

func variantLabel(v *model.Variant) string {
	size, color := v.Size, v.Color
	if size == "" {
		size = "N/A"
	}
	if color == "" {
		color = "N/A"
	}
	return size + "/" + color
}

// ── Response mapping ──────────────────────────────────────────────────────────

func toToolkitResponse(t *model.Toolkit) *dto.ToolkitResponse {
	variants := make([]dto.VariantResponse, 0, len(t.Variants))
	for i := range t.Variants {
		variants = append(variants, toVariantResponse(&t.Variants[i]))
	}
	return &dto.ToolkitResponse{
		ID:            t.ID.String(),
		Name:          t.Name,
		Type:          t.Type,
		Variants:      variants,
		TotalStock:    t.TotalStock,
		OverallStatus: string(t.OverallStatus),
		CreatedAt:     t.CreatedAt.Format(time.RFC3339),
		UpdatedAt:     t.UpdatedAt.Format(time.RFC3339),
	}
}

func toVariantResponse(v *model.Variant) dto.VariantResponse {
	return dto.VariantResponse{
		ID:              v.ID.String(),
		Size:            v.Size,
		Color:           v.Color,
		StockCount:      v.StockCount,
		MinStockLevel:   v.MinStockLevel,
		Status:          string(v.Status),
		InUse:           v.InUse,
		UnitCost:        v.UnitCost,
		FirstAddedDate:  v.FirstAddedDate.Format(time.RFC3339),
		LastUpdatedDate: v.LastUpdatedDate.Format(time.RFC3339),
		StockHistory:    toHistoryResponses(v.History),
	}
}

func toHistoryResponses(entries []model.StockHistoryEntry) []dto.StockHistoryEntryResponse {
	resp := make([]dto.StockHistoryEntryResponse, 0, len(entries))
	for _, e := range entries {
		resp = append(resp, dto.StockHistoryEntryResponse{
			ID:            e.ID.String(),
			Action:        string(e.Action),
			PreviousStock: e.PreviousStock,
			NewStock:      e.NewStock,
			ChangeAmount:  e.ChangeAmount,
			Reason:        e.Reason,
			UpdatedBy:     e.UpdatedBy,
			Timestamp:     e.CreatedAt.Format(time.RFC3339),
		})
	}
	return resp
}
