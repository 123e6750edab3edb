package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"chefmate-backend/internal/middleware"
	"chefmate-backend/internal/models"
	"chefmate-backend/internal/services"
)

type conversationRepository interface {
	Create(ctx context.Context, c *models.Conversation) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Conversation, error)
	ListBySession(ctx context.Context, sessionID uuid.UUID, limit, offset int) ([]*models.Conversation, int, error)
	Delete(ctx context.Context, id uuid.UUID) error
	UpdateContext(ctx context.Context, id uuid.UUID, text, source string) error
	GetMessages(ctx context.Context, conversationID uuid.UUID) ([]models.StoredMessage, error)
	AppendTurn(ctx context.Context, userMsg, assistantMsg *models.StoredMessage) error
}

type recipeFileService interface {
	Extract(path string) (string, error)
}

type videoContextService interface {
	FetchContext(videoURL string) (*services.VideoInfo, string, error)
}

type ConversationHandler struct {
	convRepo    conversationRepository
	agent       chatAgent
	recipeFiles recipeFileService
	video       videoContextService
	storagePath string
}

func NewConversationHandler(convRepo conversationRepository, agent chatAgent, recipeFiles recipeFileService, video videoContextService, storagePath string) *ConversationHandler {
	return &ConversationHandler{
		convRepo:    convRepo,
		agent:       agent,
		recipeFiles: recipeFiles,
		video:       video,
		storagePath: storagePath,
	}
}

func (h *ConversationHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.CreateConversationRequest
	if r.Body != nil {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
			writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
			return
		}
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = "New conversation"
	}

	c := &models.Conversation{
		SessionID: middleware.GetSessionID(r.Context()),
		Title:     title,
	}

	if err := h.convRepo.Create(r.Context(), c); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to create conversation", r))
		return
	}

	writeJSON(w, http.StatusCreated, c)
}

func (h *ConversationHandler) List(w http.ResponseWriter, r *http.Request) {
	sessionID := middleware.GetSessionID(r.Context())
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	if limit <= 0 || limit > 50 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	conversations, total, err := h.convRepo.ListBySession(r.Context(), sessionID, limit, offset)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to fetch conversations", r))
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"conversations": conversations,
		"total":         total,
		"limit":         limit,
		"offset":        offset,
	})
}

func (h *ConversationHandler) Get(w http.ResponseWriter, r *http.Request) {
	c, err := h.ownedConversation(r)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	messages, err := h.convRepo.GetMessages(r.Context(), c.ID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to fetch messages", r))
		return
	}

	writeJSON(w, http.StatusOK, models.ConversationDetail{Conversation: *c, Messages: messages})
}

func (h *ConversationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	c, err := h.ownedConversation(r)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	if err := h.convRepo.Delete(r.Context(), c.ID); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to delete conversation", r))
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Conversation deleted"})
}

// SendMessage appends the user's turn to the stored history, runs the agent
// (with the conversation's recipe context, if any) and persists both new
// turns. A provider failure persists nothing.
func (h *ConversationHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	c, err := h.ownedConversation(r)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	var req models.SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	text := strings.TrimSpace(req.Message)
	if text == "" {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Message is required", r))
		return
	}

	stored, err := h.convRepo.GetMessages(r.Context(), c.ID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to fetch messages", r))
		return
	}

	history := make([]models.Message, 0, len(stored)+2)
	for _, m := range stored {
		history = append(history, models.Message{Role: m.Role, Content: m.Content})
	}
	history = append(history, models.Message{Role: models.RoleUser, Content: text})

	contextText := ""
	if c.ContextText != nil {
		contextText = *c.ContextText
	}

	updated, err := h.agent.RespondWithContext(r.Context(), history, contextText)
	if err != nil {
		writeJSON(w, http.StatusBadGateway, errorResp("LLM_ERROR", "Failed to get assistant response", r))
		return
	}
	reply := updated[len(updated)-1].Content

	userMsg := &models.StoredMessage{ConversationID: c.ID, Role: models.RoleUser, Content: text}
	assistantMsg := &models.StoredMessage{ConversationID: c.ID, Role: models.RoleAssistant, Content: reply}
	if err := h.convRepo.AppendTurn(r.Context(), userMsg, assistantMsg); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to save messages", r))
		return
	}

	history = append(history, models.Message{Role: models.RoleAssistant, Content: reply})
	writeJSON(w, http.StatusOK, models.SendMessageResponse{Reply: reply, Messages: history})
}

// AttachContext sets the conversation's recipe context from either an
// uploaded file (multipart) or a YouTube URL (JSON body). New context
// replaces the old one.
func (h *ConversationHandler) AttachContext(w http.ResponseWriter, r *http.Request) {
	c, err := h.ownedConversation(r)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		h.attachFileContext(w, r, c)
		return
	}
	h.attachVideoContext(w, r, c)
}

func (h *ConversationHandler) attachFileContext(w http.ResponseWriter, r *http.Request, c *models.Conversation) {
	if r.ContentLength > services.MaxRecipeFileSize {
		writeJSON(w, http.StatusRequestEntityTooLarge, errorResp("FILE_TOO_LARGE", "File size exceeds 20MB limit", r))
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, services.MaxRecipeFileSize)

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "No file provided", r))
		return
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !services.SupportedRecipeExt(ext) {
		writeJSON(w, http.StatusUnsupportedMediaType, errorResp("UNSUPPORTED_FORMAT", "Only .txt, .pdf and .docx recipes are supported", r))
		return
	}

	// Stage the upload so extraction can read from disk. The retention
	// sweeper cleans up anything a crashed request leaves behind.
	staged := filepath.Join(h.storagePath, uuid.New().String()+ext)
	dst, err := os.Create(staged)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to store upload", r))
		return
	}
	if _, err := io.Copy(dst, file); err != nil {
		dst.Close()
		os.Remove(staged)
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to store upload", r))
		return
	}
	dst.Close()
	defer os.Remove(staged)

	text, err := h.recipeFiles.Extract(staged)
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, errorResp("EXTRACTION_FAILED", "Could not extract text from the file", r))
		return
	}

	if err := h.convRepo.UpdateContext(r.Context(), c.ID, text, "file"); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to save context", r))
		return
	}

	writeJSON(w, http.StatusOK, models.ContextResponse{
		Source:     "file",
		Title:      header.Filename,
		Characters: len(text),
	})
}

func (h *ConversationHandler) attachVideoContext(w http.ResponseWriter, r *http.Request, c *models.Conversation) {
	var req models.AttachContextRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	if strings.TrimSpace(req.VideoURL) == "" {
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed",
			map[string]string{"video_url": "A video URL or a file upload is required"}, r))
		return
	}

	if _, err := services.ParseVideoID(req.VideoURL); err != nil {
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed",
			map[string]string{"video_url": "Not a recognized YouTube URL"}, r))
		return
	}

	info, text, err := h.video.FetchContext(req.VideoURL)
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, errorResp("VIDEO_UNAVAILABLE", "Could not fetch captions for this video", r))
		return
	}

	if err := h.convRepo.UpdateContext(r.Context(), c.ID, text, "video"); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to save context", r))
		return
	}

	resp := models.ContextResponse{Source: "video", Characters: len(text)}
	if info != nil {
		resp.Title = info.Title
	}
	writeJSON(w, http.StatusOK, resp)
}

// ownedConversation loads the conversation in the URL and verifies it
// belongs to the calling session.
func (h *ConversationHandler) ownedConversation(r *http.Request) (*models.Conversation, error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return nil, &services.ValidationError{Fields: map[string]string{"id": "Invalid conversation ID"}}
	}

	c, err := h.convRepo.GetByID(r.Context(), id)
	if err != nil {
		return nil, &services.NotFoundError{Message: "Conversation not found"}
	}

	if c.SessionID != middleware.GetSessionID(r.Context()) {
		return nil, &services.ForbiddenError{Message: "Access denied"}
	}

	return c, nil
}
