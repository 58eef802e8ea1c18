package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prudhvinik1/notesync/internal/models"
	"github.com/prudhvinik1/notesync/internal/repositories"
	"github.com/prudhvinik1/notesync/internal/services"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testPassword = "correct-horse-battery"

type recordingBackuper struct {
	mu   sync.Mutex
	jobs []uuid.UUID
}

func (b *recordingBackuper) Enqueue(accountID, itemID uuid.UUID) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.jobs = append(b.jobs, itemID)
	return true
}

func (b *recordingBackuper) Jobs() []uuid.UUID {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]uuid.UUID(nil), b.jobs...)
}

type testEnv struct {
	handler http.Handler
	items   *repositories.MemoryItemRepository
	backups *recordingBackuper
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	backups := &recordingBackuper{}
	env := newTestEnvWithBackups(t, backups)
	env.backups = backups
	return env
}

// newTestEnvWithBackups builds the full router over in-memory stores. A nil
// backups disables backups.
func newTestEnvWithBackups(t *testing.T, backups services.Backuper) *testEnv {
	t.Helper()
	logger := zap.NewNop()
	items := repositories.NewMemoryItemRepository()
	auth := services.NewAuthService(
		repositories.NewMemoryAccountRepository(),
		repositories.NewMemorySessionRepository(),
		"handler-test-secret",
		time.Hour,
	)

	return &testEnv{
		handler: NewRouter(Deps{
			Auth:   auth,
			Sync:   services.NewSyncService(items, logger, services.SyncOptions{DefaultLimit: 150, MaxLimit: 1000, BoundaryLag: time.Second}),
			Items:  services.NewItemService(items, backups, false, logger),
			Logger: logger,
		}),
		items: items,
	}
}

// do sends body as-is when it is a string and as JSON otherwise.
func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader = http.NoBody
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) register(t *testing.T, email string) *models.Account {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/auth", "", credentialsRequest{Email: email, Password: testPassword})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decodeBodyAs[accountResponse](t, rec).User
}

func (e *testEnv) signIn(t *testing.T, email string) string {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/auth/sign_in", "", credentialsRequest{Email: email, Password: testPassword})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return decodeBodyAs[signInResponse](t, rec).Token
}

// signUp registers the account and returns a bearer token for it.
func (e *testEnv) signUp(t *testing.T, email string) (*models.Account, string) {
	t.Helper()
	account := e.register(t, email)
	return account, e.signIn(t, email)
}

func (e *testEnv) sync(t *testing.T, token string, req map[string]any) syncBody {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/items/sync", token, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return decodeBodyAs[syncBody](t, rec)
}

type syncBody struct {
	RetrievedItems []models.Item   `json:"retrieved_items"`
	SavedItems     []models.Item   `json:"saved_items"`
	Unsaved        []unsavedEntry  `json:"unsaved"`
	Conflicts      []conflictEntry `json:"conflicts"`
	SyncToken      string          `json:"sync_token"`
	CursorToken    *string         `json:"cursor_token"`
}

func decodeBodyAs[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func bodyKeys(t *testing.T, rec *httptest.ResponseRecorder) map[string]json.RawMessage {
	t.Helper()
	return decodeBodyAs[map[string]json.RawMessage](t, rec)
}

func noteJSON(id uuid.UUID, content string) map[string]any {
	return map[string]any{
		"uuid":         id.String(),
		"content":      content,
		"content_type": "Note",
		"enc_item_key": "enc-key-" + content,
		"auth_hash":    "auth-hash",
		// Server-owned fields are ignored on input.
		"created_at": "2001-01-01T00:00:00Z",
		"updated_at": "2001-01-01T00:00:00Z",
	}
}

func extensionJSON(id uuid.UUID, content string) map[string]any {
	item := noteJSON(id, content)
	item["content_type"] = "SF|Extension"
	return item
}

func notes(n int) []map[string]any {
	items := make([]map[string]any, 0, n)
	for i := 0; i < n; i++ {
		items = append(items, noteJSON(uuid.New(), "note-"+uuid.NewString()[:8]))
	}
	return items
}

func byUUID(items []models.Item) map[uuid.UUID]models.Item {
	m := make(map[uuid.UUID]models.Item, len(items))
	for _, item := range items {
		m[item.UUID] = item
	}
	return m
}
