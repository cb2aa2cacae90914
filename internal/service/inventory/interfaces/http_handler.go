package interfaces

import (
	"encoding/json"
	"net/http"
	"time"

	"akwa/internal/pkg/tracing"
	"akwa/internal/service/inventory/application"
	"akwa/internal/service/inventory/domain"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// InventoryHandler 封装了 inventory 服务的 HTTP 处理器。
// 处理器只做参数解析和错误码映射，业务规则全部在应用层。
type InventoryHandler struct {
	service *application.ReservationService
}

// NewInventoryHandler 创建一个新的 HTTP 处理器实例
func NewInventoryHandler(service *application.ReservationService) *InventoryHandler {
	return &InventoryHandler{service: service}
}

// RegisterRoutes 在 ServeMux 上注册所有路由
func (h *InventoryHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/items/register", h.handleRegisterItem)
	mux.HandleFunc("/items/update_quantity", h.handleUpdateQuantity)
	mux.HandleFunc("/items/deactivate", h.handleDeactivateItem)
	mux.HandleFunc("/items/get", h.handleGetItem)
	mux.HandleFunc("/items/summary", h.handleSummary)
	mux.HandleFunc("/reservations/create", h.handleCreateReservation)
	mux.HandleFunc("/reservations/confirm", h.handleConfirmReservation)
	mux.HandleFunc("/reservations/release", h.handleReleaseReservation)
	mux.HandleFunc("/reservations/expiring_soon", h.handleExpiringSoon)
	mux.HandleFunc("/alerts/unresolved", h.handleUnresolvedAlerts)
	mux.HandleFunc("/sync/failed", h.handleFailedSyncEntries)
}

func (h *InventoryHandler) handleCreateReservation(w http.ResponseWriter, r *http.Request) {
	propagator := otel.GetTextMapPropagator()
	ctx := propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))

	var body struct {
		ProfileID  string `json:"profile_id"`
		ItemID     string `json:"item_id"`
		CustomerID string `json:"customer_id"`
		Actor      string `json:"actor"`
		Quantity   int64  `json:"quantity"`
		TTLSeconds int64  `json:"ttl_seconds"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	res, err := h.service.CreateReservation(ctx, &application.CreateReservationRequest{
		ProfileID:  body.ProfileID,
		ItemID:     body.ItemID,
		CustomerID: body.CustomerID,
		Actor:      body.Actor,
		Quantity:   body.Quantity,
		TTL:        time.Duration(body.TTLSeconds) * time.Second,
	})
	if err != nil {
		code := statusFor(err)
		if code == http.StatusInternalServerError {
			log.Error().Err(err).Str("trace_id", tracing.GetTraceIDFromContext(ctx)).
				Msg("create reservation failed")
		}
		http.Error(w, err.Error(), code)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"reservation_id": res.ID,
		"state":          res.State,
		"expires_at":     res.ExpiresAt,
	})
}

func (h *InventoryHandler) handleConfirmReservation(w http.ResponseWriter, r *http.Request) {
	propagator := otel.GetTextMapPropagator()
	ctx := propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))

	var body struct {
		ReservationID string `json:"reservation_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.service.ConfirmReservation(ctx, body.ReservationID); err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}
	writeSuccess(w)
}

func (h *InventoryHandler) handleReleaseReservation(w http.ResponseWriter, r *http.Request) {
	propagator := otel.GetTextMapPropagator()
	ctx := propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))

	var body struct {
		ReservationID string `json:"reservation_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.service.ReleaseReservation(ctx, body.ReservationID); err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}
	writeSuccess(w)
}

func (h *InventoryHandler) handleRegisterItem(w http.ResponseWriter, r *http.Request) {
	propagator := otel.GetTextMapPropagator()
	ctx := propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))

	var body struct {
		ProfileID string `json:"profile_id"`
		Actor     string `json:"actor"`
		Name      string `json:"name"`
		Kind      string `json:"kind"`
		Total     int64  `json:"total"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	item, err := h.service.RegisterItem(ctx, &application.RegisterItemRequest{
		ProfileID: body.ProfileID,
		Actor:     body.Actor,
		Name:      body.Name,
		Kind:      body.Kind,
		Total:     body.Total,
	})
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"item_id":   item.ID,
		"available": item.AvailableQuantity,
	})
}

func (h *InventoryHandler) handleUpdateQuantity(w http.ResponseWriter, r *http.Request) {
	propagator := otel.GetTextMapPropagator()
	ctx := propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))

	var body struct {
		ProfileID string `json:"profile_id"`
		ItemID    string `json:"item_id"`
		Actor     string `json:"actor"`
		NewTotal  int64  `json:"new_total"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.service.UpdateItemQuantity(ctx, body.ProfileID, body.ItemID, body.Actor, body.NewTotal); err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}
	writeSuccess(w)
}

func (h *InventoryHandler) handleDeactivateItem(w http.ResponseWriter, r *http.Request) {
	propagator := otel.GetTextMapPropagator()
	ctx := propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))

	var body struct {
		ProfileID string `json:"profile_id"`
		ItemID    string `json:"item_id"`
		Actor     string `json:"actor"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.service.DeactivateItem(ctx, body.ProfileID, body.ItemID, body.Actor); err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}
	writeSuccess(w)
}

func (h *InventoryHandler) handleGetItem(w http.ResponseWriter, r *http.Request) {
	propagator := otel.GetTextMapPropagator()
	ctx := propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))

	profileID := r.URL.Query().Get("profile_id")
	itemID := r.URL.Query().Get("item_id")

	item, err := h.service.GetItem(ctx, profileID, itemID)
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"item_id":   item.ID,
		"name":      item.Name,
		"kind":      item.Kind,
		"total":     item.TotalQuantity,
		"available": item.AvailableQuantity,
		"reserved":  item.ReservedQuantity,
		"is_active": item.IsActive,
	})
}

func (h *InventoryHandler) handleSummary(w http.ResponseWriter, r *http.Request) {
	propagator := otel.GetTextMapPropagator()
	ctx := propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))

	summary, err := h.service.Summary(ctx, r.URL.Query().Get("profile_id"))
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"item_count":      summary.ItemCount,
		"total_quantity":  summary.TotalQuantity,
		"total_available": summary.TotalAvailable,
		"total_reserved":  summary.TotalReserved,
	})
}

func (h *InventoryHandler) handleExpiringSoon(w http.ResponseWriter, r *http.Request) {
	propagator := otel.GetTextMapPropagator()
	ctx := propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))

	profileID := r.URL.Query().Get("profile_id")
	within, err := time.ParseDuration(r.URL.Query().Get("within"))
	if err != nil {
		within = time.Hour
	}

	list, err := h.service.ExpiringSoon(ctx, profileID, within)
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	out := make([]map[string]any, 0, len(list))
	for _, res := range list {
		out = append(out, map[string]any{
			"reservation_id": res.ID,
			"item_id":        res.ItemID,
			"quantity":       res.Quantity,
			"expires_at":     res.ExpiresAt,
		})
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(out)
}

func (h *InventoryHandler) handleUnresolvedAlerts(w http.ResponseWriter, r *http.Request) {
	propagator := otel.GetTextMapPropagator()
	ctx := propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))

	alerts, err := h.service.UnresolvedAlerts(ctx, r.URL.Query().Get("profile_id"))
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	out := make([]map[string]any, 0, len(alerts))
	for _, a := range alerts {
		out = append(out, map[string]any{
			"id":       a.ID,
			"item_id":  a.ItemID,
			"kind":     a.Kind,
			"severity": a.Severity,
			"message":  a.Message,
		})
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(out)
}

// handleFailedSyncEntries 暴露重试用尽的日志条目，供运维排查
func (h *InventoryHandler) handleFailedSyncEntries(w http.ResponseWriter, r *http.Request) {
	propagator := otel.GetTextMapPropagator()
	ctx := propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))

	entries, err := h.service.FailedSyncEntries(ctx, r.URL.Query().Get("profile_id"), 100)
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	out := make([]map[string]any, 0, len(entries))
	for _, e := range entries {
		out = append(out, map[string]any{
			"entry_id":      e.ID,
			"item_id":       e.ItemID,
			"action":        e.Kind,
			"attempt_count": e.AttemptCount,
			"created_at":    e.CreatedAt,
		})
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(out)
}

// statusFor 把领域错误映射到 HTTP 状态码
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrItemNotFound),
		errors.Is(err, domain.ErrReservationNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInsufficientCapacity),
		errors.Is(err, domain.ErrInvalidState),
		errors.Is(err, domain.ErrItemInactive),
		errors.Is(err, domain.ErrOpenReservations),
		errors.Is(err, domain.ErrOverRelease):
		return http.StatusConflict
	case errors.Is(err, domain.ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrPermissionCheckTimeout):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeSuccess(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"success": true})
}
