package infrastructure

import (
	"akwa/internal/service/inventory/domain"
)

func itemToModel(i *domain.Item) *ItemModel {
	return &ItemModel{
		ID:                i.ID,
		ProfileID:         i.ProfileID,
		Name:              i.Name,
		Kind:              string(i.Kind),
		TotalQuantity:     i.TotalQuantity,
		AvailableQuantity: i.AvailableQuantity,
		ReservedQuantity:  i.ReservedQuantity,
		IsActive:          i.IsActive,
		CreatedAt:         i.CreatedAt,
		UpdatedAt:         i.UpdatedAt,
	}
}

func itemToDomain(m *ItemModel) *domain.Item {
	return &domain.Item{
		ID:                m.ID,
		ProfileID:         m.ProfileID,
		Name:              m.Name,
		Kind:              domain.ItemKind(m.Kind),
		TotalQuantity:     m.TotalQuantity,
		AvailableQuantity: m.AvailableQuantity,
		ReservedQuantity:  m.ReservedQuantity,
		IsActive:          m.IsActive,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
}

func reservationToModel(r *domain.Reservation) *ReservationModel {
	return &ReservationModel{
		ID:         r.ID,
		ItemID:     r.ItemID,
		ProfileID:  r.ProfileID,
		CustomerID: r.CustomerID,
		Quantity:   r.Quantity,
		State:      string(r.State),
		CreatedAt:  r.CreatedAt,
		ExpiresAt:  r.ExpiresAt,
	}
}

func reservationToDomain(m *ReservationModel) *domain.Reservation {
	return &domain.Reservation{
		ID:         m.ID,
		ItemID:     m.ItemID,
		ProfileID:  m.ProfileID,
		CustomerID: m.CustomerID,
		Quantity:   m.Quantity,
		State:      domain.ReservationState(m.State),
		CreatedAt:  m.CreatedAt,
		ExpiresAt:  m.ExpiresAt,
	}
}

func actionLogToModel(e *domain.ActionLogEntry) *ActionLogModel {
	return &ActionLogModel{
		ID:            e.ID,
		ItemID:        e.ItemID,
		ProfileID:     e.ProfileID,
		Kind:          string(e.Kind),
		Payload:       []byte(e.Payload),
		SyncState:     string(e.SyncState),
		AttemptCount:  e.AttemptCount,
		LastAttemptAt: e.LastAttemptAt,
		CreatedAt:     e.CreatedAt,
	}
}

func actionLogToDomain(m *ActionLogModel) *domain.ActionLogEntry {
	return &domain.ActionLogEntry{
		ID:            m.ID,
		ItemID:        m.ItemID,
		ProfileID:     m.ProfileID,
		Kind:          domain.ActionKind(m.Kind),
		Payload:       m.Payload,
		SyncState:     domain.SyncState(m.SyncState),
		AttemptCount:  m.AttemptCount,
		LastAttemptAt: m.LastAttemptAt,
		CreatedAt:     m.CreatedAt,
	}
}

func alertToModel(a *domain.Alert) *AlertModel {
	return &AlertModel{
		ID:        a.ID,
		ProfileID: a.ProfileID,
		ItemID:    a.ItemID,
		Kind:      string(a.Kind),
		Severity:  string(a.Severity),
		Message:   a.Message,
		Resolved:  a.Resolved,
		CreatedAt: a.CreatedAt,
	}
}

func alertToDomain(m *AlertModel) *domain.Alert {
	return &domain.Alert{
		ID:        m.ID,
		ProfileID: m.ProfileID,
		ItemID:    m.ItemID,
		Kind:      domain.AlertKind(m.Kind),
		Severity:  domain.AlertSeverity(m.Severity),
		Message:   m.Message,
		Resolved:  m.Resolved,
		CreatedAt: m.CreatedAt,
	}
}
