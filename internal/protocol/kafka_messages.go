package protocol

import (
	"encoding/json"
	"time"

	"github.com/Poyyy414/ByteTech/internal/database"
)

// AlertNotification is published to Kafka for every stored alert.
type AlertNotification struct {
	NotificationID string         `json:"notification_id"`
	AlertID        int64          `json:"alert_id"`
	DataID         int64          `json:"data_id"`
	SensorID       int64          `json:"sensor_id"`
	Type           string         `json:"type"`
	Level          database.Level `json:"level"`
	Value          *float64       `json:"value,omitempty"`
	RecordedAt     time.Time      `json:"recorded_at"`
	CreatedAt      time.Time      `json:"created_at"`
}

// NewAlertNotification builds the message for a stored alert of reading r.
func NewAlertNotification(id string, a *database.Alert, r *database.Reading) *AlertNotification {
	return &AlertNotification{
		NotificationID: id,
		AlertID:        a.ID,
		DataID:         a.DataID,
		SensorID:       a.SensorID,
		Type:           a.Type,
		Level:          a.Level,
		Value:          a.Value,
		RecordedAt:     r.RecordedAt,
		CreatedAt:      a.CreatedAt,
	}
}

// EncodeAlertNotification encodes an AlertNotification to JSON
func EncodeAlertNotification(n *AlertNotification) ([]byte, error) {
	return json.Marshal(n)
}

// DecodeAlertNotification decodes JSON to AlertNotification
func DecodeAlertNotification(data []byte) (*AlertNotification, error) {
	var n AlertNotification
	if err := json.Unmarshal(data, &n); err != nil {
		return nil, err
	}
	return &n, nil
}
