package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"marketchat/internal/core/contracts"
	"marketchat/internal/core/domain"
	"marketchat/internal/core/events"
	"marketchat/pkg/logging"
)

const (
	ConversationListLimit = 120
	HistoryLimit          = 150
	HistoryAfterLimit     = 200
)

// IChatService is the messaging slice of the web tier: every operation is performed on
// behalf of an authenticated user and persists before it publishes.
type IChatService interface {
	IssueWSToken(ctx context.Context, userID string) (domain.WSTokenView, error)
	StartConversation(ctx context.Context, userID, recipientID string) (string, error)
	ListConversations(ctx context.Context, userID string) ([]domain.ConversationView, error)
	ListMessages(ctx context.Context, userID, convID string, after *time.Time) ([]domain.MessagePayload, error)
	SendMessage(ctx context.Context, userID, convID, body string) (domain.MessagePayload, error)
	MarkRead(ctx context.Context, userID, convID string) (time.Time, error)
	UnreadCount(ctx context.Context, userID string) (int, error)
	Heartbeat(ctx context.Context, userID string) (time.Time, error)
}

var chatTracer = otel.Tracer("chat-service")

type ChatDeps struct {
	Store     domain.ConversationStore
	Users     domain.UserDirectory
	LastSeen  contracts.LastSeenStore
	Publisher contracts.EventPublisher
	Limiter   contracts.RateLimiter
	Tokens    *WSTokenService
	WSURL     string
	TokenTTL  time.Duration
	Log       *slog.Logger
}

type ChatService struct {
	store     domain.ConversationStore
	users     domain.UserDirectory
	lastSeen  contracts.LastSeenStore
	publisher contracts.EventPublisher
	limiter   contracts.RateLimiter
	tokens    *WSTokenService
	wsURL     string
	tokenTTL  time.Duration
	now       func() time.Time
	log       *slog.Logger

	pending sync.WaitGroup
}

var _ IChatService = (*ChatService)(nil)

func NewChatService(deps ChatDeps) *ChatService {
	log := deps.Log
	if log == nil {
		log = slog.Default()
	}
	ttl := deps.TokenTTL
	if ttl <= 0 {
		ttl = DefaultWSTokenTTL
	}
	return &ChatService{
		store:     deps.Store,
		users:     deps.Users,
		lastSeen:  deps.LastSeen,
		publisher: deps.Publisher,
		limiter:   deps.Limiter,
		tokens:    deps.Tokens,
		wsURL:     deps.WSURL,
		tokenTTL:  ttl,
		now:       time.Now,
		log:       log,
	}
}

// WithClock replaces the time source, for tests.
func (s *ChatService) WithClock(now func() time.Time) *ChatService {
	s.now = now
	return s
}

// Close waits for in-flight publishes.
func (s *ChatService) Close() {
	s.pending.Wait()
}

func (s *ChatService) IssueWSToken(ctx context.Context, userID string) (domain.WSTokenView, error) {
	if s.tokens == nil {
		return domain.WSTokenView{}, errors.New("ws token service not configured")
	}
	token, err := s.tokens.Issue(userID, s.tokenTTL)
	if err != nil {
		return domain.WSTokenView{}, err
	}
	return domain.WSTokenView{Token: token, WSURL: s.wsURL}, nil
}

func (s *ChatService) StartConversation(ctx context.Context, userID, recipientID string) (string, error) {
	ctx, span := chatTracer.Start(ctx, "ChatService.StartConversation", trace.WithAttributes(
		attribute.String("user_id", userID),
		attribute.String("recipient_id", recipientID),
	))
	defer span.End()

	recipientID = strings.TrimSpace(recipientID)
	if recipientID == "" {
		return "", domain.ErrInvalidUserID
	}
	if recipientID == userID {
		return "", domain.ErrSelfConversation
	}
	recipient, err := s.users.GetUser(ctx, recipientID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return "", domain.ErrRecipientUnavailable
		}
		return "", s.fail(span, fmt.Errorf("get recipient: %w", err))
	}
	if !recipient.IsActive || recipient.IsBlocked {
		return "", domain.ErrRecipientUnavailable
	}

	conv, err := s.store.UpsertConversation(ctx, userID, recipientID)
	if err != nil {
		return "", s.fail(span, fmt.Errorf("upsert conversation: %w", err))
	}
	s.touch(ctx, userID)
	s.log.InfoContext(ctx, "chat - start conversation - ok", logging.User(userID), logging.Conversation(conv.ID))

	s.publish(ctx, events.ConversationUpsert{
		ConversationID:     conv.ID,
		ParticipantUserIDs: conv.ParticipantIDs(),
	})
	return conv.ID, nil
}

func (s *ChatService) ListConversations(ctx context.Context, userID string) ([]domain.ConversationView, error) {
	ctx, span := chatTracer.Start(ctx, "ChatService.ListConversations", trace.WithAttributes(attribute.String("user_id", userID)))
	defer span.End()

	s.touch(ctx, userID)
	summaries, err := s.store.ListConversationsForUser(ctx, userID, ConversationListLimit)
	if err != nil {
		return nil, s.fail(span, fmt.Errorf("list conversations: %w", err))
	}

	others := make([]string, 0, len(summaries))
	for _, sum := range summaries {
		others = append(others, sum.Conversation.OtherUserID(userID))
	}
	users, err := s.users.GetUsers(ctx, others)
	if err != nil {
		return nil, s.fail(span, fmt.Errorf("get users: %w", err))
	}
	seen := s.lastSeenOf(ctx, others)
	now := s.now()

	out := make([]domain.ConversationView, 0, len(summaries))
	for _, sum := range summaries {
		otherID := sum.Conversation.OtherUserID(userID)
		view := domain.ConversationView{
			ID:            sum.Conversation.ID,
			LastMessageAt: domain.FormatTime(sum.Conversation.LastMessageAt),
			HasUnread:     sum.HasUnread,
			OtherUser:     domain.UserView{ID: otherID, Name: "User"},
		}
		if u, ok := users[otherID]; ok {
			view.OtherUser.Name = u.Name
			view.OtherUser.Image = u.Image
		}
		if at, ok := seen[otherID]; ok {
			stamp := domain.FormatTime(at)
			view.OtherUser.LastSeenAt = &stamp
			view.OtherUser.IsOnline = domain.IsOnline(&at, now)
		}
		if sum.LastMessage != nil {
			p := domain.NewMessagePayload(*sum.LastMessage, nil)
			view.LastMessage = &p
		}
		out = append(out, view)
	}
	return out, nil
}

func (s *ChatService) ListMessages(ctx context.Context, userID, convID string, after *time.Time) ([]domain.MessagePayload, error) {
	ctx, span := chatTracer.Start(ctx, "ChatService.ListMessages", trace.WithAttributes(
		attribute.String("user_id", userID),
		attribute.String("conv_id", convID),
	))
	defer span.End()

	if _, err := s.participantConversation(ctx, userID, convID); err != nil {
		return nil, err
	}
	limit := HistoryLimit
	if after != nil {
		limit = HistoryAfterLimit
	}
	msgs, err := s.store.ListMessages(ctx, convID, after, limit)
	if err != nil {
		return nil, s.fail(span, fmt.Errorf("list messages: %w", err))
	}
	s.touch(ctx, userID)

	senderIDs := make([]string, 0, 2)
	for _, m := range msgs {
		senderIDs = appendUnique(senderIDs, m.SenderID)
	}
	senders, err := s.users.GetUsers(ctx, senderIDs)
	if err != nil {
		return nil, s.fail(span, fmt.Errorf("get senders: %w", err))
	}

	out := make([]domain.MessagePayload, 0, len(msgs))
	for _, m := range msgs {
		var sender *domain.User
		if u, ok := senders[m.SenderID]; ok {
			sender = &u
		}
		out = append(out, domain.NewMessagePayload(m, sender))
	}
	return out, nil
}

func (s *ChatService) SendMessage(ctx context.Context, userID, convID, body string) (domain.MessagePayload, error) {
	ctx, span := chatTracer.Start(ctx, "ChatService.SendMessage", trace.WithAttributes(
		attribute.String("user_id", userID),
		attribute.String("conv_id", convID),
	))
	defer span.End()

	body, err := domain.NormalizeMessageBody(body)
	if err != nil {
		return domain.MessagePayload{}, err
	}
	conv, err := s.participantConversation(ctx, userID, convID)
	if err != nil {
		return domain.MessagePayload{}, err
	}
	if s.limiter != nil && !s.limiter.Allow(ctx, "send:"+userID) {
		s.log.WarnContext(ctx, "chat - send message - rate limited", logging.User(userID))
		return domain.MessagePayload{}, domain.ErrRateLimited
	}

	msg, err := s.store.AppendMessage(ctx, conv.ID, userID, body)
	if err != nil {
		return domain.MessagePayload{}, s.fail(span, fmt.Errorf("append message: %w", err))
	}
	s.touch(ctx, userID)

	sender, err := s.users.GetUser(ctx, userID)
	if err != nil {
		s.log.WarnContext(ctx, "chat - send message - sender lookup failed", logging.User(userID), logging.Err(err))
		sender = nil
	}
	payload := domain.NewMessagePayload(*msg, sender)
	span.SetAttributes(attribute.String("message_id", msg.ID))
	s.log.InfoContext(ctx, "chat - send message - persisted", logging.Conversation(conv.ID), logging.Message(msg.ID))

	s.publish(ctx, events.MessageCreated{
		ConversationID:     conv.ID,
		ParticipantUserIDs: conv.ParticipantIDs(),
		Message:            payload,
	})
	return payload, nil
}

// MarkRead moves the caller's cursor to now. The stored cursor never moves backwards, so
// the returned time may be later than now when a newer cursor already exists.
func (s *ChatService) MarkRead(ctx context.Context, userID, convID string) (time.Time, error) {
	ctx, span := chatTracer.Start(ctx, "ChatService.MarkRead", trace.WithAttributes(
		attribute.String("user_id", userID),
		attribute.String("conv_id", convID),
	))
	defer span.End()

	conv, err := s.participantConversation(ctx, userID, convID)
	if err != nil {
		return time.Time{}, err
	}
	readAt, err := s.store.MarkRead(ctx, conv.ID, userID, s.now())
	if err != nil {
		return time.Time{}, s.fail(span, fmt.Errorf("mark read: %w", err))
	}
	s.touch(ctx, userID)

	s.publish(ctx, events.ConversationRead{
		ConversationID:     conv.ID,
		ParticipantUserIDs: conv.ParticipantIDs(),
		UserID:             userID,
		ReadAt:             domain.FormatTime(readAt),
	})
	return readAt, nil
}

func (s *ChatService) UnreadCount(ctx context.Context, userID string) (int, error) {
	ctx, span := chatTracer.Start(ctx, "ChatService.UnreadCount", trace.WithAttributes(attribute.String("user_id", userID)))
	defer span.End()

	n, err := s.store.UnreadConversationCount(ctx, userID)
	if err != nil {
		return 0, s.fail(span, fmt.Errorf("unread count: %w", err))
	}
	s.touch(ctx, userID)
	return n, nil
}

// Heartbeat records last-seen and announces the user as online.
func (s *ChatService) Heartbeat(ctx context.Context, userID string) (time.Time, error) {
	ctx, span := chatTracer.Start(ctx, "ChatService.Heartbeat", trace.WithAttributes(attribute.String("user_id", userID)))
	defer span.End()

	now := s.now()
	if s.lastSeen != nil {
		if err := s.lastSeen.Touch(ctx, userID, now); err != nil {
			return time.Time{}, s.fail(span, fmt.Errorf("touch last seen: %w", err))
		}
	}
	s.publish(ctx, events.PresenceChanged{
		UserID:     userID,
		IsOnline:   true,
		LastSeenAt: domain.FormatTime(now),
	})
	return now, nil
}

func (s *ChatService) participantConversation(ctx context.Context, userID, convID string) (*domain.Conversation, error) {
	if err := uuid.Validate(convID); err != nil {
		return nil, domain.ErrInvalidConversationID
	}
	conv, err := s.store.GetConversation(ctx, convID)
	if err != nil {
		return nil, err
	}
	if !conv.HasParticipant(userID) {
		s.log.WarnContext(ctx, "chat - participant check - forbidden", logging.User(userID), logging.Conversation(convID))
		return nil, domain.ErrForbidden
	}
	return conv, nil
}

// touch records last-seen on a best-effort basis.
func (s *ChatService) touch(ctx context.Context, userID string) {
	if s.lastSeen == nil {
		return
	}
	if err := s.lastSeen.Touch(ctx, userID, s.now()); err != nil {
		s.log.WarnContext(ctx, "chat - touch last seen - failed", logging.User(userID), logging.Err(err))
	}
}

func (s *ChatService) lastSeenOf(ctx context.Context, userIDs []string) map[string]time.Time {
	if s.lastSeen == nil || len(userIDs) == 0 {
		return nil
	}
	seen, err := s.lastSeen.LastSeen(ctx, userIDs)
	if err != nil {
		s.log.WarnContext(ctx, "chat - last seen - lookup failed", logging.Err(err))
		return nil
	}
	return seen
}

// publish hands ev to the realtime bridge without blocking the caller. The result is only
// logged: the write that produced ev has already succeeded.
func (s *ChatService) publish(ctx context.Context, ev events.Event) {
	if s.publisher == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		res := s.publisher.Publish(ctx, ev)
		if !res.OK() {
			s.log.WarnContext(ctx, "chat - publish - not delivered", logging.Event(string(ev.Type())), logging.Err(res.Err))
		}
	}()
}

func (s *ChatService) fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

func appendUnique(ids []string, id string) []string {
	for _, existing := range ids {
		if existing == id {
			return ids
		}
	}
	return append(ids, id)
}
