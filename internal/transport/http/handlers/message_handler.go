package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/vedran77/murmur/internal/domain"
	"github.com/vedran77/murmur/internal/service"
	"github.com/vedran77/murmur/internal/transport/http/middleware"
	"go.uber.org/zap"
)

// MessageService is the message lifecycle as seen by the HTTP layer.
type MessageService interface {
	Send(ctx context.Context, senderID, receiverID uuid.UUID, input service.SendInput) (*domain.Message, error)
	Edit(ctx context.Context, userID, messageID uuid.UUID, input service.EditInput) (*domain.Message, error)
	React(ctx context.Context, userID, messageID uuid.UUID, input service.ReactInput) (*domain.ReactionEvent, error)
	Delete(ctx context.Context, userID, messageID uuid.UUID, rawScope string) (domain.DeleteScope, error)
	OpenThread(ctx context.Context, viewerID, peerID uuid.UUID) ([]domain.Message, error)
	ListDigests(ctx context.Context, userID uuid.UUID) ([]domain.Digest, error)
	ListContacts(ctx context.Context, userID uuid.UUID) ([]domain.Contact, error)
	OnlineUsers() []uuid.UUID
}

type MessageHandler struct {
	messageService MessageService
	log            *zap.Logger
}

func NewMessageHandler(messageService MessageService, log *zap.Logger) *MessageHandler {
	return &MessageHandler{messageService: messageService, log: log}
}

func (h *MessageHandler) Contacts(w http.ResponseWriter, r *http.Request) {
	contacts, err := h.messageService.ListContacts(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		writeServiceError(w, h.log, "list contacts", err)
		return
	}

	writeJSON(w, http.StatusOK, contacts)
}

func (h *MessageHandler) Chats(w http.ResponseWriter, r *http.Request) {
	digests, err := h.messageService.ListDigests(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		writeServiceError(w, h.log, "list chats", err)
		return
	}

	writeJSON(w, http.StatusOK, digests)
}

func (h *MessageHandler) Online(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.messageService.OnlineUsers())
}

// Thread returns the conversation with a peer and marks what the viewer
// received as read.
func (h *MessageHandler) Thread(w http.ResponseWriter, r *http.Request) {
	peerID, ok := pathID(w, r, "peerId", "user")
	if !ok {
		return
	}

	msgs, err := h.messageService.OpenThread(r.Context(), middleware.GetUserID(r.Context()), peerID)
	if err != nil {
		writeServiceError(w, h.log, "open thread", err)
		return
	}

	writeJSON(w, http.StatusOK, msgs)
}

func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	peerID, ok := pathID(w, r, "peerId", "user")
	if !ok {
		return
	}

	var input service.SendInput
	if !decodeJSON(w, r, &input) {
		return
	}

	msg, err := h.messageService.Send(r.Context(), middleware.GetUserID(r.Context()), peerID, input)
	if err != nil {
		writeServiceError(w, h.log, "send message", err)
		return
	}

	writeJSON(w, http.StatusCreated, msg)
}

func (h *MessageHandler) Edit(w http.ResponseWriter, r *http.Request) {
	messageID, ok := pathID(w, r, "id", "message")
	if !ok {
		return
	}

	var input service.EditInput
	if !decodeJSON(w, r, &input) {
		return
	}

	msg, err := h.messageService.Edit(r.Context(), middleware.GetUserID(r.Context()), messageID, input)
	if err != nil {
		writeServiceError(w, h.log, "edit message", err)
		return
	}

	writeJSON(w, http.StatusOK, msg)
}

func (h *MessageHandler) React(w http.ResponseWriter, r *http.Request) {
	messageID, ok := pathID(w, r, "id", "message")
	if !ok {
		return
	}

	var input service.ReactInput
	if !decodeJSON(w, r, &input) {
		return
	}

	ev, err := h.messageService.React(r.Context(), middleware.GetUserID(r.Context()), messageID, input)
	if err != nil {
		writeServiceError(w, h.log, "react", err)
		return
	}

	writeJSON(w, http.StatusOK, ev)
}

// Delete hides a message for the caller (?scope=me, the default) or for
// both participants (?scope=all, sender only).
func (h *MessageHandler) Delete(w http.ResponseWriter, r *http.Request) {
	messageID, ok := pathID(w, r, "id", "message")
	if !ok {
		return
	}

	scope, err := h.messageService.Delete(r.Context(), middleware.GetUserID(r.Context()), messageID, r.URL.Query().Get("scope"))
	if err != nil {
		writeServiceError(w, h.log, "delete message", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "scope": scope})
}
