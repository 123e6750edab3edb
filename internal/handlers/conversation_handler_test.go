package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"chefmate-backend/internal/middleware"
	"chefmate-backend/internal/models"
	"chefmate-backend/internal/services"
)

type stubConvRepo struct {
	conversation *models.Conversation
	messages     []models.StoredMessage

	created       *models.Conversation
	appendedUser  *models.StoredMessage
	appendedReply *models.StoredMessage
	contextText   string
	contextSource string
}

func (s *stubConvRepo) Create(ctx context.Context, c *models.Conversation) error {
	c.ID = uuid.New()
	s.created = c
	return nil
}

func (s *stubConvRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Conversation, error) {
	if s.conversation == nil {
		return nil, context.Canceled
	}
	return s.conversation, nil
}

func (s *stubConvRepo) ListBySession(ctx context.Context, sessionID uuid.UUID, limit, offset int) ([]*models.Conversation, int, error) {
	return nil, 0, nil
}

func (s *stubConvRepo) Delete(ctx context.Context, id uuid.UUID) error { return nil }

func (s *stubConvRepo) UpdateContext(ctx context.Context, id uuid.UUID, text, source string) error {
	s.contextText = text
	s.contextSource = source
	return nil
}

func (s *stubConvRepo) GetMessages(ctx context.Context, conversationID uuid.UUID) ([]models.StoredMessage, error) {
	return s.messages, nil
}

func (s *stubConvRepo) AppendTurn(ctx context.Context, userMsg, assistantMsg *models.StoredMessage) error {
	s.appendedUser = userMsg
	s.appendedReply = assistantMsg
	return nil
}

type stubVideoService struct {
	info *services.VideoInfo
	text string
	err  error
}

func (s *stubVideoService) FetchContext(videoURL string) (*services.VideoInfo, string, error) {
	return s.info, s.text, s.err
}

// requestFor builds a request routed at the given conversation id, issued by
// the given session.
func requestFor(method, path string, body []byte, conversationID, sessionID uuid.UUID) *http.Request {
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, path, bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}

	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", conversationID.String())
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	req = req.WithContext(context.WithValue(req.Context(), middleware.SessionIDKey, sessionID))
	return req
}

func TestConversationHandler_Create_DefaultTitle(t *testing.T) {
	repo := &stubConvRepo{}
	h := &ConversationHandler{convRepo: repo}
	sessionID := uuid.New()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/conversations", bytes.NewReader([]byte(`{}`)))
	req = req.WithContext(context.WithValue(req.Context(), middleware.SessionIDKey, sessionID))

	rr := httptest.NewRecorder()
	h.Create(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status %d, got %d", http.StatusCreated, rr.Code)
	}
	if repo.created == nil {
		t.Fatal("expected conversation to be created")
	}
	if repo.created.Title != "New conversation" {
		t.Errorf("expected default title, got %q", repo.created.Title)
	}
	if repo.created.SessionID != sessionID {
		t.Errorf("conversation owned by %s, want %s", repo.created.SessionID, sessionID)
	}
}

func TestConversationHandler_Get_Authorization(t *testing.T) {
	conversationID := uuid.New()
	ownerID := uuid.New()
	otherID := uuid.New()

	repo := &stubConvRepo{
		conversation: &models.Conversation{ID: conversationID, SessionID: ownerID},
	}
	h := &ConversationHandler{convRepo: repo}

	req := requestFor(http.MethodGet, "/api/v1/conversations/"+conversationID.String(), nil, conversationID, otherID)
	rr := httptest.NewRecorder()
	h.Get(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected status %d, got %d", http.StatusForbidden, rr.Code)
	}
}

func TestConversationHandler_Get_NotFound(t *testing.T) {
	conversationID := uuid.New()
	h := &ConversationHandler{convRepo: &stubConvRepo{}}

	req := requestFor(http.MethodGet, "/api/v1/conversations/"+conversationID.String(), nil, conversationID, uuid.New())
	rr := httptest.NewRecorder()
	h.Get(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status %d, got %d", http.StatusNotFound, rr.Code)
	}
}

func TestConversationHandler_SendMessage(t *testing.T) {
	conversationID := uuid.New()
	sessionID := uuid.New()
	contextText := "Carbonara: eggs, guanciale, pecorino."

	repo := &stubConvRepo{
		conversation: &models.Conversation{
			ID:          conversationID,
			SessionID:   sessionID,
			ContextText: &contextText,
		},
		messages: []models.StoredMessage{
			{ConversationID: conversationID, Seq: 1, Role: "user", Content: "Hi"},
			{ConversationID: conversationID, Seq: 2, Role: "assistant", Content: "Hello! What are we cooking?"},
		},
	}
	agent := &stubAgent{
		messages: []models.Message{
			{Role: "system", Content: "prompt"},
			{Role: "user", Content: "Hi"},
			{Role: "assistant", Content: "Hello! What are we cooking?"},
			{Role: "user", Content: "Carbonara, no cream right?"},
			{Role: "assistant", Content: "Right, never cream."},
		},
	}
	h := &ConversationHandler{convRepo: repo, agent: agent}

	body, _ := json.Marshal(models.SendMessageRequest{Message: "Carbonara, no cream right?"})
	req := requestFor(http.MethodPost, "/api/v1/conversations/"+conversationID.String()+"/messages", body, conversationID, sessionID)
	rr := httptest.NewRecorder()
	h.SendMessage(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rr.Code, rr.Body.String())
	}

	// Agent saw stored history plus the new user turn, and the context.
	if len(agent.gotMessages) != 3 {
		t.Fatalf("agent received %d messages, want 3", len(agent.gotMessages))
	}
	if last := agent.gotMessages[2]; last.Role != "user" || last.Content != "Carbonara, no cream right?" {
		t.Errorf("unexpected final turn sent to agent: %+v", last)
	}
	if agent.gotContext != contextText {
		t.Errorf("agent context = %q, want %q", agent.gotContext, contextText)
	}

	// Both turns were persisted.
	if repo.appendedUser == nil || repo.appendedReply == nil {
		t.Fatal("expected both turns to be persisted")
	}
	if repo.appendedUser.Role != "user" || repo.appendedReply.Role != "assistant" {
		t.Errorf("persisted roles: %q, %q", repo.appendedUser.Role, repo.appendedReply.Role)
	}
	if repo.appendedReply.Content != "Right, never cream." {
		t.Errorf("persisted reply %q", repo.appendedReply.Content)
	}

	var resp models.SendMessageResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Reply != "Right, never cream." {
		t.Errorf("reply = %q", resp.Reply)
	}
	if len(resp.Messages) != 4 {
		t.Errorf("expected 4 persisted messages in response, got %d", len(resp.Messages))
	}
	for _, m := range resp.Messages {
		if m.Role == "system" {
			t.Error("system prompt must not appear in the persisted history")
		}
	}
}

func TestConversationHandler_SendMessage_EmptyMessage(t *testing.T) {
	conversationID := uuid.New()
	sessionID := uuid.New()
	repo := &stubConvRepo{
		conversation: &models.Conversation{ID: conversationID, SessionID: sessionID},
	}
	agent := &stubAgent{}
	h := &ConversationHandler{convRepo: repo, agent: agent}

	body, _ := json.Marshal(models.SendMessageRequest{Message: "   "})
	req := requestFor(http.MethodPost, "/api/v1/conversations/"+conversationID.String()+"/messages", body, conversationID, sessionID)
	rr := httptest.NewRecorder()
	h.SendMessage(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, rr.Code)
	}
	if agent.calls != 0 {
		t.Error("agent should not be called for a blank message")
	}
}

func TestConversationHandler_SendMessage_ProviderError(t *testing.T) {
	conversationID := uuid.New()
	sessionID := uuid.New()
	repo := &stubConvRepo{
		conversation: &models.Conversation{ID: conversationID, SessionID: sessionID},
	}
	agent := &stubAgent{err: errors.New("rate limited")}
	h := &ConversationHandler{convRepo: repo, agent: agent}

	body, _ := json.Marshal(models.SendMessageRequest{Message: "hello"})
	req := requestFor(http.MethodPost, "/api/v1/conversations/"+conversationID.String()+"/messages", body, conversationID, sessionID)
	rr := httptest.NewRecorder()
	h.SendMessage(rr, req)

	if rr.Code != http.StatusBadGateway {
		t.Fatalf("expected status %d, got %d", http.StatusBadGateway, rr.Code)
	}
	if repo.appendedUser != nil || repo.appendedReply != nil {
		t.Error("no turn should be persisted when the provider fails")
	}
}

func TestConversationHandler_AttachContext_Video(t *testing.T) {
	conversationID := uuid.New()
	sessionID := uuid.New()
	repo := &stubConvRepo{
		conversation: &models.Conversation{ID: conversationID, SessionID: sessionID},
	}
	video := &stubVideoService{
		info: &services.VideoInfo{ID: "dQw4w9WgXcQ", Title: "Perfect Pasta"},
		text: "Video: Perfect Pasta\n\nBoil water, salt it well...",
	}
	h := &ConversationHandler{convRepo: repo, video: video}

	body, _ := json.Marshal(models.AttachContextRequest{VideoURL: "https://www.youtube.com/watch?v=dQw4w9WgXcQ"})
	req := requestFor(http.MethodPost, "/api/v1/conversations/"+conversationID.String()+"/context", body, conversationID, sessionID)
	rr := httptest.NewRecorder()
	h.AttachContext(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rr.Code, rr.Body.String())
	}
	if repo.contextSource != "video" {
		t.Errorf("context source = %q, want video", repo.contextSource)
	}
	if repo.contextText != video.text {
		t.Errorf("stored context %q", repo.contextText)
	}

	var resp models.ContextResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Title != "Perfect Pasta" || resp.Characters != len(video.text) {
		t.Errorf("unexpected context response: %+v", resp)
	}
}

func TestConversationHandler_AttachContext_BadURL(t *testing.T) {
	conversationID := uuid.New()
	sessionID := uuid.New()
	repo := &stubConvRepo{
		conversation: &models.Conversation{ID: conversationID, SessionID: sessionID},
	}
	h := &ConversationHandler{convRepo: repo, video: &stubVideoService{}}

	body, _ := json.Marshal(models.AttachContextRequest{VideoURL: "https://example.com/not-youtube"})
	req := requestFor(http.MethodPost, "/api/v1/conversations/"+conversationID.String()+"/context", body, conversationID, sessionID)
	rr := httptest.NewRecorder()
	h.AttachContext(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, rr.Code)
	}
	if repo.contextSource != "" {
		t.Error("context should not be updated for an invalid URL")
	}
}
