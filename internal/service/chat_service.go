package service

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/google/uuid"

	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/domain/valueobject"
	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/logger"
	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/models"
	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/pkg/apperror"
	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/repository/common"
	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/ws"
)

const maxMessageLength = 4000

type ConversationRepository interface {
	Ensure(ctx context.Context, agreementID, contractorUserID uuid.UUID, homeownerUserID *uuid.UUID) (*models.Conversation, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Conversation, error)
	ListForUser(ctx context.Context, userID uuid.UUID) ([]models.Conversation, error)
	AddMessage(ctx context.Context, m *models.Message) error
	ListMessages(ctx context.Context, conversationID uuid.UUID, page common.PageRequest) ([]models.Message, int, error)
}

// RoomPublisher pushes events to websocket rooms.
type RoomPublisher interface {
	Publish(room, event string, data any) error
	PublishToUser(userID uuid.UUID, event string, data any) error
}

type ChatService struct {
	repo        ConversationRepository
	agreements  AgreementByID
	contractors ContractorByID
	homeowners  HomeownerLookup
	access      *Access
	publisher   RoomPublisher
}

func NewChatService(repo ConversationRepository, agreements AgreementByID, contractors ContractorByID, homeowners HomeownerLookup, access *Access, publisher RoomPublisher) *ChatService {
	return &ChatService{
		repo:        repo,
		agreements:  agreements,
		contractors: contractors,
		homeowners:  homeowners,
		access:      access,
		publisher:   publisher,
	}
}

// ForAgreement returns the agreement's conversation, creating it on first use.
func (s *ChatService) ForAgreement(ctx context.Context, actor Actor, agreementID uuid.UUID) (*models.Conversation, error) {
	if actor.viaToken() {
		return nil, apperror.ErrUnauthorized
	}
	a, err := s.agreements.GetByID(ctx, agreementID)
	if err != nil {
		return nil, mapErr("chat service: agreement", err)
	}
	if _, err := s.access.PartyOf(ctx, actor, a); err != nil {
		return nil, err
	}
	c, err := s.contractors.GetByID(ctx, a.ContractorID)
	if err != nil {
		return nil, mapErr("chat service: contractor", err)
	}
	h, err := s.homeowners.GetByID(ctx, a.HomeownerID)
	if err != nil {
		return nil, mapErr("chat service: homeowner", err)
	}
	homeownerUserID := h.UserID
	if homeownerUserID == nil && actor.Role == valueobject.RoleHomeowner {
		// Email-matched homeowner who has not been linked yet.
		homeownerUserID = &actor.UserID
	}

	conv, err := s.repo.Ensure(ctx, a.ID, c.UserID, homeownerUserID)
	if err != nil {
		return nil, mapErr("chat service: ensure conversation", err)
	}
	return conv, nil
}

func (s *ChatService) ListForUser(ctx context.Context, userID uuid.UUID) ([]models.Conversation, error) {
	items, err := s.repo.ListForUser(ctx, userID)
	return items, mapErr("chat service: list", err)
}

// Authorize loads a conversation userID participates in.
func (s *ChatService) Authorize(ctx context.Context, userID, conversationID uuid.UUID) (*models.Conversation, error) {
	conv, err := s.repo.GetByID(ctx, conversationID)
	if err != nil {
		return nil, mapErr("chat service: conversation", err)
	}
	if !conv.HasParticipant(userID) {
		return nil, apperror.Forbidden("not a participant of this conversation")
	}
	return conv, nil
}

func (s *ChatService) Messages(ctx context.Context, userID, conversationID uuid.UUID, page common.PageRequest) ([]models.Message, int, error) {
	if _, err := s.Authorize(ctx, userID, conversationID); err != nil {
		return nil, 0, err
	}
	items, total, err := s.repo.ListMessages(ctx, conversationID, page.Normalize())
	if err != nil {
		return nil, 0, mapErr("chat service: messages", err)
	}
	return items, total, nil
}

// Post stores the message and then broadcasts it to the conversation room.
// The other participants also get it on their personal channel.
func (s *ChatService) Post(ctx context.Context, userID, conversationID uuid.UUID, text string) (*models.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperror.Validation("empty message", map[string][]string{"text": {"This field is required"}})
	}
	if len([]rune(text)) > maxMessageLength {
		return nil, apperror.Validation("message too long", map[string][]string{"text": {"Ensure this field has no more than 4000 characters"}})
	}
	conv, err := s.Authorize(ctx, userID, conversationID)
	if err != nil {
		return nil, err
	}

	msg := &models.Message{ConversationID: conv.ID, AuthorID: userID, Text: text}
	if err := s.repo.AddMessage(ctx, msg); err != nil {
		return nil, mapErr("chat service: add message", err)
	}

	if s.publisher != nil {
		if err := s.publisher.Publish(ws.ConversationRoom(conv.ID), EventChatMessage, msg); err != nil {
			logger.L().WithError(err).WithField("conversation_id", conv.ID).Warn("chat service: broadcast")
		}
		for _, p := range conv.Participants() {
			if p == userID {
				continue
			}
			if err := s.publisher.PublishToUser(p, EventChatMessage, msg); err != nil {
				logger.L().WithError(err).WithField("user_id", p).Warn("chat service: notify participant")
			}
		}
	}
	return msg, nil
}

type inboundFrame struct {
	Text string `json:"text"`
}

// Inbound handles frames a websocket client sends to the conversation.
func (s *ChatService) Inbound(conversationID uuid.UUID) ws.InboundFunc {
	return func(ctx context.Context, userID uuid.UUID, frame []byte) error {
		var in inboundFrame
		if err := json.Unmarshal(frame, &in); err != nil {
			return apperror.BadRequest(`frame must be {"text": "..."}`)
		}
		_, err := s.Post(ctx, userID, conversationID, in.Text)
		return err
	}
}
