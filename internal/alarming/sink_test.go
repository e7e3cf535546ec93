package alarming

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Poyyy414/ByteTech/internal/database"
	"github.com/Poyyy414/ByteTech/internal/protocol"
)

type fakeAlertStore struct {
	stored []*database.Alert
	err    error
}

func (f *fakeAlertStore) InsertAlerts(ctx context.Context, alerts []*database.Alert) ([]*database.Alert, error) {
	if f.err != nil {
		return nil, f.err
	}

	var inserted []*database.Alert
	for _, a := range alerts {
		if f.has(a.DataID, a.Type) {
			continue
		}
		a.ID = int64(len(f.stored) + 1)
		a.CreatedAt = time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
		f.stored = append(f.stored, a)
		inserted = append(inserted, a)
	}
	return inserted, nil
}

func (f *fakeAlertStore) has(dataID int64, alertType string) bool {
	for _, a := range f.stored {
		if a.DataID == dataID && a.Type == alertType {
			return true
		}
	}
	return false
}

type fakePublisher struct {
	keys     []string
	messages [][]byte
	err      error
}

func (f *fakePublisher) Publish(ctx context.Context, key string, value []byte) error {
	if f.err != nil {
		return f.err
	}
	f.keys = append(f.keys, key)
	f.messages = append(f.messages, value)
	return nil
}

func TestSinkPersistsAndPublishes(t *testing.T) {
	store := &fakeAlertStore{}
	pub := &fakePublisher{}
	sink := NewSink(store, pub, zerolog.Nop())

	r := baseReading()
	r.SensorID = 9
	r.TemperatureC = 45
	alerts := NewEvaluator(DefaultThresholds()).Evaluate(r)

	stored, err := sink.Persist(context.Background(), r, alerts)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	require.Len(t, store.stored, 1)
	assert.Equal(t, int64(1), alerts[0].ID)

	require.Len(t, pub.messages, 1)
	assert.Equal(t, "9", pub.keys[0])

	n, err := protocol.DecodeAlertNotification(pub.messages[0])
	require.NoError(t, err)
	assert.Equal(t, int64(1), n.AlertID)
	assert.Equal(t, r.ID, n.DataID)
	assert.NotEmpty(t, n.NotificationID)
}

func TestSinkStoreFailureSkipsPublishing(t *testing.T) {
	store := &fakeAlertStore{err: errors.New("connection reset")}
	pub := &fakePublisher{}
	sink := NewSink(store, pub, zerolog.Nop())

	r := baseReading()
	r.TemperatureC = 45
	_, err := sink.Persist(context.Background(), r, NewEvaluator(DefaultThresholds()).Evaluate(r))

	require.Error(t, err)
	assert.ErrorIs(t, err, store.err)
	assert.Empty(t, pub.messages)
}

func TestSinkPublishFailureIsNotAnError(t *testing.T) {
	store := &fakeAlertStore{}
	sink := NewSink(store, &fakePublisher{err: errors.New("broker down")}, zerolog.Nop())

	r := baseReading()
	r.TemperatureC = 45
	_, err := sink.Persist(context.Background(), r, NewEvaluator(DefaultThresholds()).Evaluate(r))
	require.NoError(t, err)
	assert.Len(t, store.stored, 1)
}

func TestSinkWithoutPublisher(t *testing.T) {
	store := &fakeAlertStore{}
	sink := NewSink(store, nil, zerolog.Nop())

	r := baseReading()
	r.MethanePPM = ptr(300)
	_, err := sink.Persist(context.Background(), r, NewEvaluator(DefaultThresholds()).Evaluate(r))
	require.NoError(t, err)
	assert.Len(t, store.stored, 1)
}

func TestSinkRejectsForeignAlert(t *testing.T) {
	store := &fakeAlertStore{}
	sink := NewSink(store, nil, zerolog.Nop())

	r := baseReading()
	foreign := &database.Alert{DataID: r.ID + 1, Type: database.AlertTypeMethane}

	_, err := sink.Persist(context.Background(), r, []*database.Alert{foreign})
	require.Error(t, err)
	assert.Empty(t, store.stored)
}

func TestSinkSkipsAlreadyRecordedAlerts(t *testing.T) {
	store := &fakeAlertStore{}
	pub := &fakePublisher{}
	sink := NewSink(store, pub, zerolog.Nop())
	evaluator := NewEvaluator(DefaultThresholds())

	r := baseReading()
	r.TemperatureC = 42

	first, err := sink.Persist(context.Background(), r, evaluator.Evaluate(r))
	require.NoError(t, err)
	require.Len(t, first, 1)

	second, err := sink.Persist(context.Background(), r, evaluator.Evaluate(r))
	require.NoError(t, err)
	assert.Empty(t, second)
	assert.Len(t, store.stored, 1)
	assert.Len(t, pub.messages, 1, "a duplicate must not be announced twice")
}
