package service

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/models"
	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/pkg/apperror"
	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/repository"
	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/repository/common"
	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/ws"
)

type memConversations struct {
	byAgreement map[uuid.UUID]*models.Conversation
	messages    []models.Message
}

func (m *memConversations) Ensure(ctx context.Context, agreementID, contractorUserID uuid.UUID, homeownerUserID *uuid.UUID) (*models.Conversation, error) {
	if c, ok := m.byAgreement[agreementID]; ok {
		if c.HomeownerUserID == nil {
			c.HomeownerUserID = homeownerUserID
		}
		return c, nil
	}
	c := &models.Conversation{ID: uuid.New(), AgreementID: agreementID, ContractorUserID: contractorUserID, HomeownerUserID: homeownerUserID}
	m.byAgreement[agreementID] = c
	return c, nil
}

func (m *memConversations) GetByID(ctx context.Context, id uuid.UUID) (*models.Conversation, error) {
	for _, c := range m.byAgreement {
		if c.ID == id {
			return c, nil
		}
	}
	return nil, repository.ErrConversationNotFound
}

func (m *memConversations) ListForUser(ctx context.Context, userID uuid.UUID) ([]models.Conversation, error) {
	var out []models.Conversation
	for _, c := range m.byAgreement {
		if c.HasParticipant(userID) {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (m *memConversations) AddMessage(ctx context.Context, msg *models.Message) error {
	msg.ID = uuid.New()
	m.messages = append(m.messages, *msg)
	return nil
}

func (m *memConversations) ListMessages(ctx context.Context, conversationID uuid.UUID, page common.PageRequest) ([]models.Message, int, error) {
	var out []models.Message
	for _, msg := range m.messages {
		if msg.ConversationID == conversationID {
			out = append(out, msg)
		}
	}
	return out, len(out), nil
}

type published struct {
	room  string
	user  uuid.UUID
	event string
}

type recordingPublisher struct {
	sent []published
}

func (r *recordingPublisher) Publish(room, event string, data any) error {
	r.sent = append(r.sent, published{room: room, event: event})
	return nil
}

func (r *recordingPublisher) PublishToUser(userID uuid.UUID, event string, data any) error {
	r.sent = append(r.sent, published{user: userID, event: event})
	return nil
}

type chatFixture struct {
	*world
	svc       *ChatService
	repo      *memConversations
	publisher *recordingPublisher
	agreement *models.Agreement
}

func newChatFixture() *chatFixture {
	f := &chatFixture{
		world:     newWorld(),
		repo:      &memConversations{byAgreement: map[uuid.UUID]*models.Conversation{}},
		publisher: &recordingPublisher{},
	}
	f.agreement = f.world.agreement()
	agreements := fakeAgreements{f.agreement.ID: f.agreement}
	f.svc = NewChatService(f.repo, agreements, f.contractors, f.homeowners, f.access, f.publisher)
	return f
}

func TestChatService_ForAgreement_LinksEmailMatchedHomeowner(t *testing.T) {
	f := newChatFixture()
	ctx := context.Background()

	conv, err := f.svc.ForAgreement(ctx, f.asContractor(), f.agreement.ID)
	require.NoError(t, err)
	assert.Equal(t, f.contractorUser.ID, conv.ContractorUserID)
	assert.Nil(t, conv.HomeownerUserID)

	conv, err = f.svc.ForAgreement(ctx, f.asHomeowner(), f.agreement.ID)
	require.NoError(t, err)
	require.NotNil(t, conv.HomeownerUserID)
	assert.Equal(t, f.homeownerUser.ID, *conv.HomeownerUserID)
	assert.Len(t, f.repo.byAgreement, 1)
}

func TestChatService_ForAgreement_Rejections(t *testing.T) {
	f := newChatFixture()
	ctx := context.Background()

	_, err := f.svc.ForAgreement(ctx, f.asStranger(), f.agreement.ID)
	assert.True(t, apperror.IsForbidden(err))

	_, err = f.svc.ForAgreement(ctx, TokenActor(f.agreement.HomeownerAccessToken), f.agreement.ID)
	assert.Error(t, err)
}

func TestChatService_Post_BroadcastsToRoomAndOtherParticipant(t *testing.T) {
	f := newChatFixture()
	ctx := context.Background()
	_, err := f.svc.ForAgreement(ctx, f.asContractor(), f.agreement.ID)
	require.NoError(t, err)
	conv, err := f.svc.ForAgreement(ctx, f.asHomeowner(), f.agreement.ID)
	require.NoError(t, err)

	msg, err := f.svc.Post(ctx, f.contractorUser.ID, conv.ID, "  Tile arrives Monday ")
	require.NoError(t, err)
	assert.Equal(t, "Tile arrives Monday", msg.Text)

	require.Len(t, f.publisher.sent, 2)
	assert.Equal(t, ws.ConversationRoom(conv.ID), f.publisher.sent[0].room)
	assert.Equal(t, f.homeownerUser.ID, f.publisher.sent[1].user)
	assert.Equal(t, EventChatMessage, f.publisher.sent[1].event)

	items, total, err := f.svc.Messages(ctx, f.homeownerUser.ID, conv.ID, common.PageRequest{})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, msg.ID, items[0].ID)
}

func TestChatService_Post_Validation(t *testing.T) {
	f := newChatFixture()
	ctx := context.Background()
	conv, err := f.svc.ForAgreement(ctx, f.asContractor(), f.agreement.ID)
	require.NoError(t, err)

	_, err = f.svc.Post(ctx, f.contractorUser.ID, conv.ID, "   ")
	assert.True(t, apperror.IsValidation(err))

	_, err = f.svc.Post(ctx, f.contractorUser.ID, conv.ID, strings.Repeat("é", 4001))
	assert.True(t, apperror.IsValidation(err))

	_, err = f.svc.Post(ctx, f.strangerUser.ID, conv.ID, "hi")
	assert.True(t, apperror.IsForbidden(err))
	assert.Empty(t, f.publisher.sent)
}

func TestChatService_Inbound(t *testing.T) {
	f := newChatFixture()
	ctx := context.Background()
	conv, err := f.svc.ForAgreement(ctx, f.asContractor(), f.agreement.ID)
	require.NoError(t, err)

	handle := f.svc.Inbound(conv.ID)
	require.NoError(t, handle(ctx, f.contractorUser.ID, []byte(`{"text":"on my way"}`)))
	assert.True(t, apperror.IsValidation(handle(ctx, f.contractorUser.ID, []byte(`not json`))))
	assert.Len(t, f.repo.messages, 1)
}
