package onboarding

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/admin/tg-bots/referral-bot/internal/domain"
	"github.com/admin/tg-bots/referral-bot/internal/usecases/onboarding/texts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewUserWithReferralGreeting(t *testing.T) {
	repo := newFakeUserRepo()
	referrerPhone := "+573009998877"
	seedUser(repo, &domain.User{
		ID:           "referrer",
		Phone:        &referrerPhone,
		ChatbotState: domain.StateCompleted,
		ReferralCode: strPtr("ABCD1234"),
	})

	svc := newTestService(repo, nil)

	reply, err := svc.HandleInbound(context.Background(), domain.InboundMessage{
		FromID:     "+573001112233",
		Text:       "Hola, vengo referido por: ABCD1234",
		Channel:    domain.ChannelWhatsApp,
		SenderName: "Carlos",
	})
	require.NoError(t, err)
	require.NotNil(t, reply)

	user, err := repo.GetByPhone(context.Background(), "+573001112233")
	require.NoError(t, err)

	assert.Equal(t, domain.StateAwaitingName, user.ChatbotState)
	require.NotNil(t, user.ReferredByCode)
	assert.Equal(t, "ABCD1234", *user.ReferredByCode)
	require.NotNil(t, user.ReferredByPhone)
	assert.Equal(t, referrerPhone, *user.ReferredByPhone)

	assert.Contains(t, reply.Parts, texts.AskName)
}

func TestTermsAcceptanceCompletesRegistration(t *testing.T) {
	repo := newFakeUserRepo()
	phone := "+573001112233"
	user := seedUser(repo, &domain.User{
		ID:           "ana",
		Phone:        &phone,
		Name:         strPtr("Ana"),
		City:         strPtr("Cali"),
		ChatbotState: domain.StateAwaitingTerms,
	})

	svc := newTestService(repo, nil)

	reply, err := svc.HandleInbound(context.Background(), domain.InboundMessage{
		FromID:  phone,
		Text:    "Si",
		Channel: domain.ChannelWhatsApp,
	})
	require.NoError(t, err)

	saved := repo.mustGet(user.ID)
	assert.Equal(t, domain.StateCompleted, saved.ChatbotState)
	assert.True(t, saved.AcceptsTerms)
	require.NotNil(t, saved.ReferralCode)
	assert.Len(t, *saved.ReferralCode, 8)

	joined := strings.Join(reply.Parts, "\n")
	assert.Contains(t, joined, *saved.ReferralCode)
	assert.Contains(t, joined, "https://wa.me/")
	assert.Contains(t, joined, "https://t.me/campaignbot?start="+*saved.ReferralCode)
}

func TestGeographicAmbiguityAlwaysAsksClarification(t *testing.T) {
	repo := newFakeUserRepo()
	phone := "+573001112233"
	user := seedUser(repo, &domain.User{
		ID:           "geo",
		Phone:        &phone,
		Name:         strPtr("Luisa"),
		ChatbotState: domain.StateAwaitingCity,
	})

	extractor := &fakeExtractor{fn: func(ctx context.Context, query, prev string) (*domain.ExtractionResult, error) {
		return &domain.ExtractionResult{
			City:       strPtr("Armenia"),
			Confidence: 0.9,
			Clarification: &domain.Clarification{
				Slot:   domain.ClarificationSlotCity,
				Prompt: "¿Te refieres a Armenia, Quindío?",
			},
		}, nil
	}}

	svc := newTestService(repo, extractor)

	reply, err := svc.HandleInbound(context.Background(), domain.InboundMessage{
		FromID:  phone,
		Text:    "Soy de Armenia",
		Channel: domain.ChannelWhatsApp,
	})
	require.NoError(t, err)

	saved := repo.mustGet(user.ID)
	assert.Equal(t, domain.StateAwaitingClarification, saved.ChatbotState)
	require.NotNil(t, saved.City)
	assert.Equal(t, "Armenia", *saved.City)
	require.NotNil(t, saved.PendingClarificationSlot)
	assert.Equal(t, domain.ClarificationSlotCity, *saved.PendingClarificationSlot)

	assert.Contains(t, reply.Parts, "¿Te refieres a Armenia, Quindío?")
}

func TestClarificationAnswerResumesRegistration(t *testing.T) {
	repo := newFakeUserRepo()
	phone := "+573001112233"
	slot := domain.ClarificationSlotCity
	user := seedUser(repo, &domain.User{
		ID:                       "geo2",
		Phone:                    &phone,
		Name:                     strPtr("Luisa"),
		City:                     strPtr("Armenia"),
		ChatbotState:             domain.StateAwaitingClarification,
		PendingClarificationSlot: &slot,
	})

	svc := newTestService(repo, nil)

	reply, err := svc.HandleInbound(context.Background(), domain.InboundMessage{
		FromID:  phone,
		Text:    "Sí",
		Channel: domain.ChannelWhatsApp,
	})
	require.NoError(t, err)

	saved := repo.mustGet(user.ID)
	assert.Nil(t, saved.PendingClarificationSlot)
	require.NotNil(t, saved.City)
	assert.Equal(t, "Armenia", *saved.City)
	// Name and city are present; terms is the remaining slot.
	assert.Equal(t, domain.StateAwaitingTerms, saved.ChatbotState)
	assert.Contains(t, reply.Parts, texts.AskTerms)
}

func TestClarificationDisputeReplacesTentativeCity(t *testing.T) {
	repo := newFakeUserRepo()
	phone := "+573001112233"
	slot := domain.ClarificationSlotCity
	user := seedUser(repo, &domain.User{
		ID:                       "geo3",
		Phone:                    &phone,
		Name:                     strPtr("Luisa"),
		City:                     strPtr("Armenia"),
		ChatbotState:             domain.StateAwaitingClarification,
		PendingClarificationSlot: &slot,
	})

	svc := newTestService(repo, nil)

	answer := "No, me refiero a Armenia de Antioquia"
	_, err := svc.HandleInbound(context.Background(), domain.InboundMessage{
		FromID:  phone,
		Text:    answer,
		Channel: domain.ChannelWhatsApp,
	})
	require.NoError(t, err)

	saved := repo.mustGet(user.ID)
	assert.Nil(t, saved.PendingClarificationSlot)
	require.NotNil(t, saved.City)
	// The disputed tentative value must not survive; without an extractor the
	// answer is taken verbatim.
	assert.Equal(t, answer, *saved.City)
	assert.Equal(t, domain.StateAwaitingTerms, saved.ChatbotState)
}

func TestClarificationDisputeUsesExtractedCity(t *testing.T) {
	repo := newFakeUserRepo()
	phone := "+573001112233"
	slot := domain.ClarificationSlotCity
	user := seedUser(repo, &domain.User{
		ID:                       "geo4",
		Phone:                    &phone,
		Name:                     strPtr("Luisa"),
		City:                     strPtr("Armenia"),
		ChatbotState:             domain.StateAwaitingClarification,
		PendingClarificationSlot: &slot,
	})

	extractor := &fakeExtractor{fn: func(ctx context.Context, query, prev string) (*domain.ExtractionResult, error) {
		return &domain.ExtractionResult{
			City:       strPtr("Armenia de Antioquia"),
			Confidence: 0.9,
		}, nil
	}}

	svc := newTestService(repo, extractor)

	_, err := svc.HandleInbound(context.Background(), domain.InboundMessage{
		FromID:  phone,
		Text:    "No, la de Antioquia",
		Channel: domain.ChannelWhatsApp,
	})
	require.NoError(t, err)

	saved := repo.mustGet(user.ID)
	require.NotNil(t, saved.City)
	assert.Equal(t, "Armenia de Antioquia", *saved.City)
	assert.Nil(t, saved.PendingClarificationSlot)
}

func TestCorrectionOverwritesAndAcknowledges(t *testing.T) {
	repo := newFakeUserRepo()
	phone := "+573001112233"
	user := seedUser(repo, &domain.User{
		ID:           "corr",
		Phone:        &phone,
		Name:         strPtr("Pedro"),
		City:         strPtr("Medellín"),
		ChatbotState: domain.StateAwaitingTerms,
	})

	extractor := &fakeExtractor{fn: func(ctx context.Context, query, prev string) (*domain.ExtractionResult, error) {
		return &domain.ExtractionResult{
			City:          strPtr("Envigado"),
			IsCorrection:  true,
			PreviousValue: strPtr("Medellín"),
			Confidence:    0.95,
		}, nil
	}}

	svc := newTestService(repo, extractor)

	reply, err := svc.HandleInbound(context.Background(), domain.InboundMessage{
		FromID:  phone,
		Text:    "Perdón, no soy de Medellín sino de Envigado",
		Channel: domain.ChannelWhatsApp,
	})
	require.NoError(t, err)

	saved := repo.mustGet(user.ID)
	require.NotNil(t, saved.City)
	assert.Equal(t, "Envigado", *saved.City)

	joined := strings.Join(reply.Parts, "\n")
	assert.Contains(t, joined, "Medellín")
	assert.Contains(t, joined, "Envigado")
}

func TestConcurrentMessagesDoNotLoseUpdates(t *testing.T) {
	repo := newFakeUserRepo()
	phone := "+573001112233"
	user := seedUser(repo, &domain.User{
		ID:           "race",
		Phone:        &phone,
		ChatbotState: domain.StateAwaitingName,
	})

	extractor := &fakeExtractor{fn: func(ctx context.Context, query, prev string) (*domain.ExtractionResult, error) {
		switch query {
		case "Me llamo Sofía":
			return &domain.ExtractionResult{Name: strPtr("Sofía"), Confidence: 0.9}, nil
		case "Vivo en Bogotá":
			return &domain.ExtractionResult{City: strPtr("Bogotá"), Confidence: 0.9}, nil
		}
		return &domain.ExtractionResult{Confidence: 0.9}, nil
	}}

	svc := newTestService(repo, extractor)

	var wg sync.WaitGroup
	for _, text := range []string{"Me llamo Sofía", "Vivo en Bogotá"} {
		wg.Add(1)
		go func(text string) {
			defer wg.Done()
			_, err := svc.HandleInbound(context.Background(), domain.InboundMessage{
				FromID:  phone,
				Text:    text,
				Channel: domain.ChannelWhatsApp,
			})
			assert.NoError(t, err)
		}(text)
	}
	wg.Wait()

	saved := repo.mustGet(user.ID)
	require.NotNil(t, saved.Name)
	assert.Equal(t, "Sofía", *saved.Name)
	require.NotNil(t, saved.City)
	assert.Equal(t, "Bogotá", *saved.City)
}

func TestCrossChannelMessagesSerializePerUser(t *testing.T) {
	repo := newFakeUserRepo()
	phone := "+573001112233"
	chatID := "556677"
	user := seedUser(repo, &domain.User{
		ID:             "merged",
		Phone:          &phone,
		TelegramChatID: &chatID,
		ChatbotState:   domain.StateAwaitingName,
	})

	extractor := &fakeExtractor{fn: func(ctx context.Context, query, prev string) (*domain.ExtractionResult, error) {
		switch query {
		case "Me llamo Sofía":
			return &domain.ExtractionResult{Name: strPtr("Sofía"), Confidence: 0.9}, nil
		case "Vivo en Bogotá":
			return &domain.ExtractionResult{City: strPtr("Bogotá"), Confidence: 0.9}, nil
		}
		return &domain.ExtractionResult{Confidence: 0.9}, nil
	}}

	svc := newTestService(repo, extractor)

	// One person, two transports at once: the channel keys differ, so only
	// the canonical lock serializes the read-modify-write cycles.
	messages := []domain.InboundMessage{
		{FromID: phone, Text: "Me llamo Sofía", Channel: domain.ChannelWhatsApp},
		{FromID: chatID, Text: "Vivo en Bogotá", Channel: domain.ChannelTelegram},
	}

	var wg sync.WaitGroup
	for _, msg := range messages {
		wg.Add(1)
		go func(msg domain.InboundMessage) {
			defer wg.Done()
			_, err := svc.HandleInbound(context.Background(), msg)
			assert.NoError(t, err)
		}(msg)
	}
	wg.Wait()

	saved := repo.mustGet(user.ID)
	require.NotNil(t, saved.Name)
	assert.Equal(t, "Sofía", *saved.Name)
	require.NotNil(t, saved.City)
	assert.Equal(t, "Bogotá", *saved.City)
}

func TestStartCommandAttributesReferral(t *testing.T) {
	repo := newFakeUserRepo()
	referrerPhone := "+573009998877"
	seedUser(repo, &domain.User{
		ID:           "referrer",
		Phone:        &referrerPhone,
		ChatbotState: domain.StateCompleted,
		ReferralCode: strPtr("ABCD1234"),
	})

	svc := newTestService(repo, nil)
	ctx := context.Background()

	// The t.me/<bot>?start=<code> deep link arrives as a /start command.
	reply, err := svc.HandleInbound(ctx, domain.InboundMessage{
		FromID:  "556677",
		Text:    "/start abcd1234",
		Channel: domain.ChannelTelegram,
	})
	require.NoError(t, err)
	assert.Contains(t, reply.Parts, texts.AskPhone)

	user, err := repo.GetByTelegramChatID(ctx, "556677")
	require.NoError(t, err)
	require.NotNil(t, user.ReferredByCode)
	assert.Equal(t, "ABCD1234", *user.ReferredByCode)
	require.NotNil(t, user.ReferredByPhone)
	assert.Equal(t, referrerPhone, *user.ReferredByPhone)
}

func TestLowConfidenceMatchesFallbackExactly(t *testing.T) {
	phone := "+573001112233"

	makeService := func(extractor *fakeExtractor) (*Service, *fakeUserRepo, string) {
		repo := newFakeUserRepo()
		u := seedUser(repo, &domain.User{
			ID:           "fb-" + phone,
			Phone:        &phone,
			ChatbotState: domain.StateAwaitingName,
		})
		return newTestService(repo, extractor), repo, u.ID
	}

	lowConfidence := &fakeExtractor{fn: func(ctx context.Context, query, prev string) (*domain.ExtractionResult, error) {
		return nil, domain.ErrExtractionLowConfidence
	}}

	msg := domain.InboundMessage{
		FromID:  phone,
		Text:    "Juana",
		Channel: domain.ChannelWhatsApp,
	}

	svcLow, repoLow, idLow := makeService(lowConfidence)
	replyLow, err := svcLow.HandleInbound(context.Background(), msg)
	require.NoError(t, err)

	svcNone, repoNone, idNone := makeService(nil)
	replyNone, err := svcNone.HandleInbound(context.Background(), msg)
	require.NoError(t, err)

	assert.Equal(t, replyNone.Parts, replyLow.Parts)
	assert.Equal(t, repoNone.mustGet(idNone).ChatbotState, repoLow.mustGet(idLow).ChatbotState)
	assert.Equal(t, *repoNone.mustGet(idNone).Name, *repoLow.mustGet(idLow).Name)
}

func TestVerbatimSlotCaptureInSlotStates(t *testing.T) {
	repo := newFakeUserRepo()
	phone := "+573001112233"
	user := seedUser(repo, &domain.User{
		ID:           "verbatim",
		Phone:        &phone,
		ChatbotState: domain.StateAwaitingName,
	})

	svc := newTestService(repo, nil)
	ctx := context.Background()

	_, err := svc.HandleInbound(ctx, domain.InboundMessage{
		FromID:  phone,
		Text:    "María Fernanda",
		Channel: domain.ChannelWhatsApp,
	})
	require.NoError(t, err)

	saved := repo.mustGet(user.ID)
	require.NotNil(t, saved.Name)
	assert.Equal(t, "María Fernanda", *saved.Name)
	assert.Equal(t, domain.StateAwaitingCity, saved.ChatbotState)

	_, err = svc.HandleInbound(ctx, domain.InboundMessage{
		FromID:  phone,
		Text:    "Barranquilla",
		Channel: domain.ChannelWhatsApp,
	})
	require.NoError(t, err)

	saved = repo.mustGet(user.ID)
	require.NotNil(t, saved.City)
	assert.Equal(t, "Barranquilla", *saved.City)
	assert.Equal(t, domain.StateAwaitingTerms, saved.ChatbotState)
}

func TestUnknownStateSelfHeals(t *testing.T) {
	repo := newFakeUserRepo()
	phone := "+573001112233"
	user := seedUser(repo, &domain.User{
		ID:           "stuck",
		Phone:        &phone,
		ChatbotState: domain.ChatbotState("legacy_step_42"),
	})

	svc := newTestService(repo, nil)

	reply, err := svc.HandleInbound(context.Background(), domain.InboundMessage{
		FromID:  phone,
		Text:    "Hola",
		Channel: domain.ChannelWhatsApp,
	})
	require.NoError(t, err)

	saved := repo.mustGet(user.ID)
	assert.Equal(t, domain.StateAwaitingName, saved.ChatbotState)
	assert.Contains(t, reply.Parts, texts.AskName)
}

func TestReferralCodeIsStableAcrossReset(t *testing.T) {
	repo := newFakeUserRepo()
	phone := "+573001112233"
	user := seedUser(repo, &domain.User{
		ID:           "stable",
		Phone:        &phone,
		Name:         strPtr("Ana"),
		City:         strPtr("Cali"),
		ChatbotState: domain.StateAwaitingTerms,
	})

	svc := newTestService(repo, nil)
	ctx := context.Background()

	_, err := svc.HandleInbound(ctx, domain.InboundMessage{
		FromID:  phone,
		Text:    "Sí",
		Channel: domain.ChannelWhatsApp,
	})
	require.NoError(t, err)

	first := repo.mustGet(user.ID)
	require.NotNil(t, first.ReferralCode)
	code := *first.ReferralCode

	require.NoError(t, svc.ResetRegistration(ctx, user.ID))

	afterReset := repo.mustGet(user.ID)
	assert.Equal(t, domain.StateNew, afterReset.ChatbotState)
	require.NotNil(t, afterReset.Name)
	require.NotNil(t, afterReset.ReferralCode)
	assert.Equal(t, code, *afterReset.ReferralCode)

	// Completing again keeps the original code.
	_, err = svc.HandleInbound(ctx, domain.InboundMessage{
		FromID:  phone,
		Text:    "Hola de nuevo",
		Channel: domain.ChannelWhatsApp,
	})
	require.NoError(t, err)

	final := repo.mustGet(user.ID)
	require.NotNil(t, final.ReferralCode)
	assert.Equal(t, code, *final.ReferralCode)
}

func TestChatOnlyChannelAsksForPhoneFirst(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestService(repo, nil)
	ctx := context.Background()

	reply, err := svc.HandleInbound(ctx, domain.InboundMessage{
		FromID:     "556677",
		Text:       "Hola",
		Channel:    domain.ChannelTelegram,
		SenderName: "Jorge",
	})
	require.NoError(t, err)
	assert.Contains(t, reply.Parts, texts.AskPhone)

	user, err := repo.GetByTelegramChatID(ctx, "556677")
	require.NoError(t, err)
	assert.Equal(t, domain.StateAwaitingPhone, user.ChatbotState)

	// An unparseable answer re-asks.
	reply, err = svc.HandleInbound(ctx, domain.InboundMessage{
		FromID:  "556677",
		Text:    "no te lo doy",
		Channel: domain.ChannelTelegram,
	})
	require.NoError(t, err)
	assert.Contains(t, reply.Parts, texts.ReAskPhone)

	reply, err = svc.HandleInbound(ctx, domain.InboundMessage{
		FromID:  "556677",
		Text:    "57 300 111 2233",
		Channel: domain.ChannelTelegram,
	})
	require.NoError(t, err)
	assert.Contains(t, reply.Parts, texts.AskName)

	user, err = repo.GetByTelegramChatID(ctx, "556677")
	require.NoError(t, err)
	require.NotNil(t, user.Phone)
	assert.Equal(t, "+573001112233", *user.Phone)
	require.NotNil(t, user.PhoneCountryCode)
	assert.Equal(t, "57", *user.PhoneCountryCode)
	assert.Equal(t, domain.StateAwaitingName, user.ChatbotState)
}

func TestPhoneBindMergesIntoExistingRecord(t *testing.T) {
	repo := newFakeUserRepo()
	phone := "+573001112233"
	seedUser(repo, &domain.User{
		ID:           "canonical",
		Phone:        &phone,
		Name:         strPtr("Ana"),
		City:         strPtr("Cali"),
		AcceptsTerms: true,
		ChatbotState: domain.StateCompleted,
		ReferralCode: strPtr("WXYZ9876"),
	})

	svc := newTestService(repo, nil)
	ctx := context.Background()

	_, err := svc.HandleInbound(ctx, domain.InboundMessage{
		FromID:  "998877",
		Text:    "Hola",
		Channel: domain.ChannelTelegram,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, repo.count())

	reply, err := svc.HandleInbound(ctx, domain.InboundMessage{
		FromID:  "998877",
		Text:    phone,
		Channel: domain.ChannelTelegram,
	})
	require.NoError(t, err)

	// The channel-only duplicate is discarded, the chat id lands on the
	// phone-keyed record.
	assert.Equal(t, 1, repo.count())

	canonical := repo.mustGet("canonical")
	require.NotNil(t, canonical.TelegramChatID)
	assert.Equal(t, "998877", *canonical.TelegramChatID)
	assert.Equal(t, "WXYZ9876", *canonical.ReferralCode)

	joined := strings.Join(reply.Parts, "\n")
	assert.Contains(t, joined, "WXYZ9876")
}

func TestResetRegistrationMarksLoggedFailures(t *testing.T) {
	repo := newFakeUserRepo()
	phone := "+573001112233"
	user := seedUser(repo, &domain.User{
		ID:           "failing",
		Phone:        &phone,
		ChatbotState: domain.StateAwaitingCity,
	})

	svc := newTestService(repo, nil)
	ctx := context.Background()

	repo.saveErr = errors.New("connection reset")

	err := svc.ResetRegistration(ctx, user.ID)
	require.Error(t, err)
	// The use case logged the failure; the marker tells outer layers not to
	// log it again.
	assert.True(t, domain.IsBusinessError(err))

	// A missing user is the caller's mistake, reported as-is.
	err = svc.ResetRegistration(ctx, "no-such-user")
	require.ErrorIs(t, err, domain.ErrUserNotFound)
	assert.False(t, domain.IsBusinessError(err))
}

func TestExtractionContextMatchesPrompts(t *testing.T) {
	assert.Equal(t, texts.AskPhone, previousQuestion(domain.StateAwaitingPhone))
	assert.Equal(t, texts.AskName, previousQuestion(domain.StateAwaitingName))
	assert.Equal(t, texts.AskCity, previousQuestion(domain.StateAwaitingCity))
	assert.Equal(t, texts.AskTerms, previousQuestion(domain.StateAwaitingTerms))
	assert.Equal(t, texts.AskTerms, previousQuestion(domain.StateConfirmData))
	assert.Equal(t, texts.ClarifyWhichCity, previousQuestion(domain.StateAwaitingClarification))
	assert.Empty(t, previousQuestion(domain.StateNew))
}

func TestNonGeographicAmbiguityDefersToExtractedFields(t *testing.T) {
	repo := newFakeUserRepo()
	phone := "+573001112233"
	user := seedUser(repo, &domain.User{
		ID:           "nongeo",
		Phone:        &phone,
		ChatbotState: domain.StateAwaitingName,
	})

	extractor := &fakeExtractor{fn: func(ctx context.Context, query, prev string) (*domain.ExtractionResult, error) {
		return &domain.ExtractionResult{
			Name:       strPtr("Camila"),
			Confidence: 0.8,
			Clarification: &domain.Clarification{
				Slot:   domain.ClarificationSlotOther,
				Prompt: "¿Podrías repetir la última parte?",
			},
		}, nil
	}}

	svc := newTestService(repo, extractor)

	reply, err := svc.HandleInbound(context.Background(), domain.InboundMessage{
		FromID:  phone,
		Text:    "Soy Camila y este fin de semana mmm",
		Channel: domain.ChannelWhatsApp,
	})
	require.NoError(t, err)

	saved := repo.mustGet(user.ID)
	require.NotNil(t, saved.Name)
	assert.Equal(t, "Camila", *saved.Name)
	// The applied name advanced the flow; the next question is the city, not
	// the clarification.
	assert.Equal(t, domain.StateAwaitingCity, saved.ChatbotState)
	assert.Contains(t, reply.Parts, texts.AskCity)
}
