package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/prudhvinik1/notesync/internal/models"
	"github.com/prudhvinik1/notesync/internal/services"
	"go.uber.org/zap"
)

// versionedAPI is the first API revision with cursor pagination and the
// conflicts list. Older or absent api values get the fallback shape.
const versionedAPI = "20190520"

// syncRequest decodes every scalar leniently so that a badly typed token or
// limit never costs the client its submitted items.
type syncRequest struct {
	API         flexString      `json:"api"`
	SyncToken   flexString      `json:"sync_token"`
	CursorToken flexString      `json:"cursor_token"`
	Limit       flexInt         `json:"limit"`
	Items       json.RawMessage `json:"items"`
}

func (r syncRequest) versioned() bool {
	api := r.API.Value
	return len(api) == len(versionedAPI) && api >= versionedAPI
}

// toService maps either wire shape onto the single internal request. A token
// that is not a JSON string is treated like any other malformed token.
func (r syncRequest) toService(log *zap.Logger) services.SyncRequest {
	req := services.SyncRequest{
		SyncToken:   r.SyncToken.Value,
		CursorToken: r.CursorToken.Value,
		Limit:       int(r.Limit),
		Items:       decodeItems(r.Items),
	}
	if !r.versioned() {
		req.CursorToken = ""
	}
	if r.SyncToken.Invalid {
		log.Warn("sync token is not a string, syncing from scratch")
		req.SyncToken = ""
	}
	if r.CursorToken.Invalid && r.versioned() {
		log.Warn("cursor token is not a string, syncing from scratch")
		req.SyncToken = ""
		req.CursorToken = ""
	}
	return req
}

// itemPayload is the client view of an item. Server-owned fields such as
// user_uuid and the timestamps are accepted and ignored.
type itemPayload struct {
	UUID        string   `json:"uuid"`
	Content     *string  `json:"content"`
	ContentType string   `json:"content_type"`
	EncItemKey  *string  `json:"enc_item_key"`
	AuthHash    *string  `json:"auth_hash"`
	Deleted     flexBool `json:"deleted"`
}

func (p itemPayload) toInput() services.ItemInput {
	in := services.ItemInput{
		Content:     p.Content,
		ContentType: p.ContentType,
		EncItemKey:  p.EncItemKey,
		AuthHash:    p.AuthHash,
		Deleted:     bool(p.Deleted),
	}
	// An unparseable uuid stays Nil and is reported as uuid_error.
	if id, err := uuid.Parse(strings.TrimSpace(p.UUID)); err == nil {
		in.UUID = id
	}
	return in
}

var errNotAnObject = errors.New("item is not a JSON object")

// decodeItems never fails: entries that are not item objects are kept with
// their decode error so they can be reported back as unsaved.
func decodeItems(raw json.RawMessage) []services.SubmittedItem {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return []services.SubmittedItem{}
	}

	var entries []json.RawMessage
	if raw[0] != '[' || json.Unmarshal(raw, &entries) != nil {
		return []services.SubmittedItem{{Raw: raw, Err: errNotAnObject}}
	}

	items := make([]services.SubmittedItem, 0, len(entries))
	for _, entry := range entries {
		items = append(items, decodeItem(entry))
	}
	return items
}

func decodeItem(raw json.RawMessage) services.SubmittedItem {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return services.SubmittedItem{Raw: raw, Err: errNotAnObject}
	}

	var p itemPayload
	if err := json.Unmarshal(trimmed, &p); err != nil {
		return services.SubmittedItem{Raw: raw, Err: err}
	}
	return services.SubmittedItem{Input: p.toInput(), Raw: raw}
}

type unsavedEntry struct {
	Item  json.RawMessage `json:"item"`
	Error errorDetail     `json:"error"`
}

type conflictEntry struct {
	Type        string          `json:"type"`
	UnsavedItem json.RawMessage `json:"unsaved_item"`
}

type syncResponse struct {
	RetrievedItems []*models.Item   `json:"retrieved_items"`
	SavedItems     []*models.Item   `json:"saved_items"`
	Unsaved        []unsavedEntry   `json:"unsaved"`
	Conflicts      *[]conflictEntry `json:"conflicts,omitempty"`
	SyncToken      string           `json:"sync_token"`
	CursorToken    *string          `json:"cursor_token"`
}

func newSyncResponse(result *services.SyncResult, versioned bool) syncResponse {
	resp := syncResponse{
		RetrievedItems: result.RetrievedItems,
		SavedItems:     result.SavedItems,
		Unsaved:        make([]unsavedEntry, 0, len(result.Unsaved)),
		SyncToken:      result.SyncToken,
	}
	if result.CursorToken != "" {
		c := result.CursorToken
		resp.CursorToken = &c
	}

	conflicts := []conflictEntry{}
	for _, u := range result.Unsaved {
		item := submittedJSON(u.Item)
		resp.Unsaved = append(resp.Unsaved, unsavedEntry{
			Item:  item,
			Error: errorDetail{Tag: u.Tag, Message: u.Message},
		})
		if u.Tag == services.TagUUIDConflict {
			conflicts = append(conflicts, conflictEntry{Type: u.Tag, UnsavedItem: item})
		}
	}
	if versioned {
		resp.Conflicts = &conflicts
	}
	return resp
}

// submittedJSON echoes the entry as the client sent it.
func submittedJSON(sub services.SubmittedItem) json.RawMessage {
	if len(sub.Raw) > 0 {
		return sub.Raw
	}
	p := itemPayload{
		Content:     sub.Input.Content,
		ContentType: sub.Input.ContentType,
		EncItemKey:  sub.Input.EncItemKey,
		AuthHash:    sub.Input.AuthHash,
		Deleted:     flexBool(sub.Input.Deleted),
	}
	if sub.Input.UUID != uuid.Nil {
		p.UUID = sub.Input.UUID.String()
	}
	data, err := json.Marshal(p)
	if err != nil {
		return json.RawMessage("null")
	}
	return data
}

// flexString holds a JSON string. null decodes to "", and any other JSON
// value decodes without error and sets Invalid.
type flexString struct {
	Value   string
	Invalid bool
}

func (s *flexString) UnmarshalJSON(data []byte) error {
	*s = flexString{}
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	if err := json.Unmarshal(data, &s.Value); err != nil {
		s.Invalid = true
	}
	return nil
}

// flexInt accepts 5, 5.0, "5" and null. Anything else decodes to 0, which
// selects the default limit.
type flexInt int

func (i *flexInt) UnmarshalJSON(data []byte) error {
	*i = 0
	s := strings.Trim(string(bytes.TrimSpace(data)), `"`)
	if n, err := strconv.Atoi(s); err == nil {
		*i = flexInt(n)
		return nil
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f >= math.MinInt32 && f <= math.MaxInt32 {
		*i = flexInt(f)
	}
	return nil
}

// flexBool accepts true, "true", 1, "1" and their false counterparts.
type flexBool bool

func (b *flexBool) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(bytes.TrimSpace(data)), `"`)
	switch strings.ToLower(s) {
	case "true", "1":
		*b = true
	case "false", "0", "", "null":
		*b = false
	default:
		return fmt.Errorf("invalid boolean %q", s)
	}
	return nil
}

func (b flexBool) MarshalJSON() ([]byte, error) {
	return json.Marshal(bool(b))
}
