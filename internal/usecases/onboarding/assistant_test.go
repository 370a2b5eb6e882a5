package onboarding

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/admin/tg-bots/referral-bot/internal/domain"
	"github.com/admin/tg-bots/referral-bot/internal/usecases/onboarding/texts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type assistantRequest struct {
	SessionID string
	Channel   domain.Channel
	Recipient string
	Text      string
}

type fakeProducer struct {
	requests []assistantRequest
	err      error
}

func (p *fakeProducer) SendAssistantRequest(ctx context.Context, sessionID string, channel domain.Channel, recipient string, text string) error {
	if p.err != nil {
		return p.err
	}
	p.requests = append(p.requests, assistantRequest{
		SessionID: sessionID,
		Channel:   channel,
		Recipient: recipient,
		Text:      text,
	})
	return nil
}

func (p *fakeProducer) Send(ctx context.Context, key string, value []byte) error { return nil }

func (p *fakeProducer) Close() error { return nil }

func completedUser(repo *fakeUserRepo, phone string) *domain.User {
	return seedUser(repo, &domain.User{
		ID:           "done",
		Phone:        &phone,
		Name:         strPtr("Ana"),
		City:         strPtr("Cali"),
		AcceptsTerms: true,
		ChatbotState: domain.StateCompleted,
		ReferralCode: strPtr("ABCD1234"),
	})
}

func TestCompletedUserMessagesGoToAssistant(t *testing.T) {
	repo := newFakeUserRepo()
	phone := "+573001112233"
	completedUser(repo, phone)

	producer := &fakeProducer{}
	cache := newFakeCache()

	svc := newTestService(repo, nil)
	svc.Producer = producer
	svc.Cache = cache

	reply, err := svc.HandleInbound(context.Background(), domain.InboundMessage{
		FromID:  phone,
		Text:    "¿Cuándo llega mi premio?",
		Channel: domain.ChannelWhatsApp,
	})
	require.NoError(t, err)

	// The answer arrives asynchronously, nothing to send synchronously.
	assert.Empty(t, reply.Parts)

	require.Len(t, producer.requests, 1)
	req := producer.requests[0]
	assert.Equal(t, phone, req.SessionID)
	assert.Equal(t, domain.ChannelWhatsApp, req.Channel)
	assert.Equal(t, phone, req.Recipient)
	assert.Equal(t, "¿Cuándo llega mi premio?", req.Text)

	// The session marker keeps the responder's conversation memory warm.
	exists, err := cache.Exists(context.Background(), assistantSessionPrefix+req.SessionID)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestAssistantAcksOnAPIChannel(t *testing.T) {
	repo := newFakeUserRepo()
	phone := "+573001112233"
	user := completedUser(repo, phone)

	producer := &fakeProducer{}
	svc := newTestService(repo, nil)
	svc.Producer = producer

	reply, err := svc.HandleInbound(context.Background(), domain.InboundMessage{
		FromID:  user.ID,
		Text:    "hola",
		Channel: domain.ChannelAPI,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{texts.AssistantAck}, reply.Parts)
}

func TestAssistantUnavailableWithoutProducer(t *testing.T) {
	repo := newFakeUserRepo()
	phone := "+573001112233"
	completedUser(repo, phone)

	svc := newTestService(repo, nil)

	reply, err := svc.HandleInbound(context.Background(), domain.InboundMessage{
		FromID:  phone,
		Text:    "hola",
		Channel: domain.ChannelWhatsApp,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{texts.AssistantUnavailable}, reply.Parts)
}

func TestAssistantSendFailureIsVisible(t *testing.T) {
	repo := newFakeUserRepo()
	phone := "+573001112233"
	completedUser(repo, phone)

	svc := newTestService(repo, nil)
	svc.Producer = &fakeProducer{err: errors.New("broker unreachable")}

	reply, err := svc.HandleInbound(context.Background(), domain.InboundMessage{
		FromID:  phone,
		Text:    "hola",
		Channel: domain.ChannelWhatsApp,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{texts.AssistantUnavailable}, reply.Parts)
}

func TestAssistantNotInvokedDuringRegistration(t *testing.T) {
	repo := newFakeUserRepo()
	phone := "+573001112233"
	seedUser(repo, &domain.User{
		ID:           "mid",
		Phone:        &phone,
		ChatbotState: domain.StateAwaitingName,
	})

	producer := &fakeProducer{}
	svc := newTestService(repo, nil)
	svc.Producer = producer

	reply, err := svc.HandleInbound(context.Background(), domain.InboundMessage{
		FromID:  phone,
		Text:    "Laura",
		Channel: domain.ChannelWhatsApp,
	})
	require.NoError(t, err)

	assert.Empty(t, producer.requests)
	assert.True(t, strings.Contains(strings.Join(reply.Parts, "\n"), texts.AskCity))
}
