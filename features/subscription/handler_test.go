package subscription

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockRepo struct {
	Repository
	saved   []*Subscription
	deleted []string
}

func (m *mockRepo) Save(ctx context.Context, sub *Subscription) error {
	sub.ID = "sub-1"
	m.saved = append(m.saved, sub)
	return nil
}

func (m *mockRepo) DeleteByEndpoint(ctx context.Context, endpoint string) error {
	m.deleted = append(m.deleted, endpoint)
	return nil
}

func TestHandler_Create(t *testing.T) {
	t.Run("Created", func(t *testing.T) {
		repo := &mockRepo{}
		h := NewHandler(repo)

		body := `{"endpoint":"https://push.example.com/ep-1","keys":{"p256dh":"key","auth":"secret"},"user_id":"u1"}`
		req := httptest.NewRequest(http.MethodPost, "/subscriptions", bytes.NewBufferString(body))
		rec := httptest.NewRecorder()

		h.Create(rec, req)

		assert.Equal(t, http.StatusCreated, rec.Code)
		require.Len(t, repo.saved, 1)
		assert.Equal(t, "https://push.example.com/ep-1", repo.saved[0].Endpoint)
		require.NotNil(t, repo.saved[0].UserID)
		assert.Equal(t, "u1", *repo.saved[0].UserID)
	})

	t.Run("AnonymousSubscriber", func(t *testing.T) {
		repo := &mockRepo{}
		h := NewHandler(repo)

		body := `{"endpoint":"https://push.example.com/ep-2","keys":{"p256dh":"key","auth":"secret"}}`
		req := httptest.NewRequest(http.MethodPost, "/subscriptions", bytes.NewBufferString(body))
		rec := httptest.NewRecorder()

		h.Create(rec, req)

		assert.Equal(t, http.StatusCreated, rec.Code)
		require.Len(t, repo.saved, 1)
		assert.Nil(t, repo.saved[0].UserID)
	})

	t.Run("MissingKeys", func(t *testing.T) {
		repo := &mockRepo{}
		h := NewHandler(repo)

		body := `{"endpoint":"https://push.example.com/ep-3"}`
		req := httptest.NewRequest(http.MethodPost, "/subscriptions", bytes.NewBufferString(body))
		rec := httptest.NewRecorder()

		h.Create(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Empty(t, repo.saved)
	})

	t.Run("InvalidJSON", func(t *testing.T) {
		h := NewHandler(&mockRepo{})

		req := httptest.NewRequest(http.MethodPost, "/subscriptions", bytes.NewBufferString("{broken"))
		rec := httptest.NewRecorder()

		h.Create(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestHandler_Delete(t *testing.T) {
	t.Run("Unsubscribes", func(t *testing.T) {
		repo := &mockRepo{}
		h := NewHandler(repo)

		req := httptest.NewRequest(http.MethodDelete, "/subscriptions", bytes.NewBufferString(`{"endpoint":"ep-1"}`))
		rec := httptest.NewRecorder()

		h.Delete(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, []string{"ep-1"}, repo.deleted)
	})

	t.Run("RequiresEndpoint", func(t *testing.T) {
		repo := &mockRepo{}
		h := NewHandler(repo)

		req := httptest.NewRequest(http.MethodDelete, "/subscriptions", bytes.NewBufferString(`{}`))
		rec := httptest.NewRecorder()

		h.Delete(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Empty(t, repo.deleted)
	})
}

func TestSubscription_Validate(t *testing.T) {
	valid := Subscription{Endpoint: "https://push.example.com/ep", P256dh: "key", Auth: "secret"}
	assert.NoError(t, valid.Validate())

	for name, sub := range map[string]Subscription{
		"NoEndpoint": {P256dh: "key", Auth: "secret"},
		"NoP256dh":   {Endpoint: "ep", Auth: "secret"},
		"NoAuth":     {Endpoint: "ep", P256dh: "key"},
	} {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, sub.Validate(), ErrInvalidSubscription)
		})
	}
}
