package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"chainquiz-service/internal/app"
	"chainquiz-service/internal/domain"
	"chainquiz-service/internal/storage"
)

// maxMediaBytes bounds a single media upload.
const maxMediaBytes = 8 << 20

// Handler exposes the room control surface over HTTP. The caller identity is
// taken from the X-Identity header; credential checks happen upstream in the
// identity service.
type Handler struct {
	service *app.RoomService
	media   storage.Uploader
}

func NewHandler(service *app.RoomService, media storage.Uploader) *Handler {
	return &Handler{service: service, media: media}
}

// Register mounts all command routes on the router.
func (h *Handler) Register(router *mux.Router) {
	router.HandleFunc("/api/rooms", h.CreateRoom).Methods(http.MethodPost, http.MethodOptions)
	router.HandleFunc("/api/rooms", h.ListRooms).Methods(http.MethodGet)
	router.HandleFunc("/api/rooms/{code}", h.GetRoom).Methods(http.MethodGet)
	router.HandleFunc("/api/rooms/{code}", h.DeleteRoom).Methods(http.MethodDelete, http.MethodOptions)
	router.HandleFunc("/api/rooms/{code}/start", h.StartRoom).Methods(http.MethodPost, http.MethodOptions)
	router.HandleFunc("/api/rooms/{code}/stop", h.StopRoom).Methods(http.MethodPost, http.MethodOptions)
	router.HandleFunc("/api/rooms/{code}/advance", h.AdvanceRoom).Methods(http.MethodPost, http.MethodOptions)
	router.HandleFunc("/api/media", h.UploadMedia).Methods(http.MethodPost, http.MethodOptions)
}

type createRoomRequest struct {
	Quiz   domain.QuizDefinition `json:"quiz"`
	Reward domain.RewardPolicy   `json:"reward"`
}

func (h *Handler) CreateRoom(w http.ResponseWriter, r *http.Request) {
	identity, ok := callerIdentity(w, r)
	if !ok {
		return
	}
	var req createRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	snap, err := h.service.CreateRoom(r.Context(), req.Quiz, req.Reward, identity)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, snap)
}

func (h *Handler) ListRooms(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.service.ListRooms())
}

func (h *Handler) GetRoom(w http.ResponseWriter, r *http.Request) {
	snap, err := h.service.GetRoom(mux.Vars(r)["code"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (h *Handler) DeleteRoom(w http.ResponseWriter, r *http.Request) {
	identity, ok := callerIdentity(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteRoom(r.Context(), mux.Vars(r)["code"], identity); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statusOK())
}

func (h *Handler) StartRoom(w http.ResponseWriter, r *http.Request) {
	h.hostCommand(w, r, h.service.Start)
}

func (h *Handler) StopRoom(w http.ResponseWriter, r *http.Request) {
	h.hostCommand(w, r, h.service.Stop)
}

func (h *Handler) AdvanceRoom(w http.ResponseWriter, r *http.Request) {
	h.hostCommand(w, r, h.service.Advance)
}

func (h *Handler) hostCommand(w http.ResponseWriter, r *http.Request, cmd func(code, requester string) error) {
	identity, ok := callerIdentity(w, r)
	if !ok {
		return
	}
	if err := cmd(mux.Vars(r)["code"], identity); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statusOK())
}

func (h *Handler) UploadMedia(w http.ResponseWriter, r *http.Request) {
	if h.media == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "media storage not configured")
		return
	}
	if _, ok := callerIdentity(w, r); !ok {
		return
	}
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxMediaBytes))
	if err != nil {
		writeJSONError(w, http.StatusRequestEntityTooLarge, "media too large")
		return
	}
	contentID, err := h.media.Upload(r.Context(), data, r.Header.Get("Content-Type"))
	if err != nil {
		writeJSONError(w, http.StatusBadGateway, "upload failed")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"contentId": contentID})
}

func callerIdentity(w http.ResponseWriter, r *http.Request) (string, bool) {
	identity := r.Header.Get("X-Identity")
	if identity == "" {
		writeJSONError(w, http.StatusBadRequest, "missing X-Identity header")
		return "", false
	}
	return identity, true
}

func statusOK() map[string]string {
	return map[string]string{"status": "ok"}
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrRoomNotFound), errors.Is(err, domain.ErrPlayerNotFound):
		writeJSONError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		writeJSONError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, domain.ErrInvalidQuiz), errors.Is(err, domain.ErrInvalidAnswer):
		writeJSONError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrRoomFull),
		errors.Is(err, domain.ErrAlreadyStarted),
		errors.Is(err, domain.ErrNotPlaying),
		errors.Is(err, domain.ErrNotEnoughPlayers),
		errors.Is(err, domain.ErrDuplicatePlayer),
		errors.Is(err, domain.ErrQuestionMismatch):
		writeJSONError(w, http.StatusConflict, err.Error())
	default:
		writeJSONError(w, http.StatusInternalServerError, "internal error")
	}
}
