package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prudhvinik1/notesync/internal/models"
	"github.com/prudhvinik1/notesync/internal/services"
	"go.uber.org/zap"
)

type ItemsHandler struct {
	sync   *services.SyncService
	items  *services.ItemService
	logger *zap.Logger
}

func NewItemsHandler(sync *services.SyncService, items *services.ItemService, logger *zap.Logger) *ItemsHandler {
	return &ItemsHandler{sync: sync, items: items, logger: logger}
}

// Sync handles both the versioned and the fallback request shape.
func (h *ItemsHandler) Sync(w http.ResponseWriter, r *http.Request) {
	var req syncRequest
	if !decodeBody(w, r, &req) {
		return
	}
	claims := claimsFromContext(r.Context())

	result, err := h.sync.Sync(r.Context(), claims.AccountID, req.toService(requestLogger(r, h.logger)))
	if err != nil {
		writeServerError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, newSyncResponse(result, req.versioned()))
}

type createItemRequest struct {
	Item json.RawMessage `json:"item"`
}

type itemResponse struct {
	Item *models.Item `json:"item"`
}

func (h *ItemsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createItemRequest
	if !decodeBody(w, r, &req) {
		return
	}
	raw := bytes.TrimSpace(req.Item)
	if len(raw) == 0 || raw[0] != '{' {
		writeError(w, http.StatusBadRequest, tagInvalidRequest, "An item object is required.")
		return
	}

	var p itemPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		writeError(w, http.StatusBadRequest, tagInvalidRequest, "Item could not be decoded.")
		return
	}
	in := p.toInput()
	if strings.TrimSpace(p.UUID) != "" && in.UUID == uuid.Nil {
		writeError(w, http.StatusBadRequest, tagInvalidRequest, "Item uuid is invalid.")
		return
	}

	claims := claimsFromContext(r.Context())
	item, err := h.items.CreateItem(r.Context(), claims.AccountID, in)
	if errors.Is(err, services.ErrItemConflict) {
		writeError(w, http.StatusConflict, tagUUIDConflict, "This item's uuid is already in use.")
		return
	}
	if err != nil {
		writeServerError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, itemResponse{Item: item})
}

type backupRequest struct {
	UUID string `json:"uuid"`
}

// Backup takes the item uuid from the path, the query string or the body, in
// that order.
func (h *ItemsHandler) Backup(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "uuid")
	if id == "" {
		id = r.URL.Query().Get("uuid")
	}
	if id == "" {
		var req backupRequest
		if !decodeOptionalBody(w, r, &req) {
			return
		}
		id = req.UUID
	}
	if strings.TrimSpace(id) == "" {
		writeError(w, http.StatusBadRequest, tagInvalidRequest, "An item uuid is required.")
		return
	}

	itemID, ok := parseItemID(w, id)
	if !ok {
		return
	}
	claims := claimsFromContext(r.Context())

	err := h.items.BackupItem(r.Context(), claims.AccountID, itemID)
	switch {
	case errors.Is(err, services.ErrItemNotFound):
		writeItemNotFound(w)
	case errors.Is(err, services.ErrBackupDisabled):
		writeError(w, http.StatusServiceUnavailable, tagBackupDisabled, "Backups are not configured on this server.")
	case err != nil:
		writeServerError(w, r, h.logger, err)
	default:
		noContent(w)
	}
}

func (h *ItemsHandler) Destroy(w http.ResponseWriter, r *http.Request) {
	itemID, ok := parseItemID(w, chi.URLParam(r, "uuid"))
	if !ok {
		return
	}
	claims := claimsFromContext(r.Context())

	err := h.items.DestroyItem(r.Context(), claims.AccountID, itemID)
	if errors.Is(err, services.ErrItemNotFound) {
		writeItemNotFound(w)
		return
	}
	if err != nil {
		writeServerError(w, r, h.logger, err)
		return
	}
	noContent(w)
}

// parseItemID reports an unparseable uuid as a missing item.
func parseItemID(w http.ResponseWriter, raw string) (uuid.UUID, bool) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		writeItemNotFound(w)
		return uuid.Nil, false
	}
	return id, true
}

func writeItemNotFound(w http.ResponseWriter) {
	writeError(w, http.StatusNotFound, tagItemNotFound, msgItemNotFound)
}
