package app

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"founderos-api/internal/ai"
	"founderos-api/internal/model"
	"founderos-api/internal/repository"
)

type fakeConversationStore struct {
	conversations map[uuid.UUID]*model.Conversation
	titles        map[uuid.UUID]string
	deleted       []uuid.UUID
}

func newFakeConversationStore() *fakeConversationStore {
	return &fakeConversationStore{
		conversations: map[uuid.UUID]*model.Conversation{},
		titles:        map[uuid.UUID]string{},
	}
}

func (s *fakeConversationStore) Create(conv *model.Conversation) error {
	if conv.ID == uuid.Nil {
		conv.ID = uuid.New()
	}
	s.conversations[conv.ID] = conv
	return nil
}

func (s *fakeConversationStore) ListByWorkspace(workspaceID uuid.UUID) ([]model.Conversation, error) {
	var out []model.Conversation
	for _, conv := range s.conversations {
		if conv.WorkspaceID == workspaceID {
			out = append(out, *conv)
		}
	}
	return out, nil
}

func (s *fakeConversationStore) GetByIDAndWorkspace(id, workspaceID uuid.UUID) (*model.Conversation, error) {
	conv, ok := s.conversations[id]
	if !ok || conv.WorkspaceID != workspaceID {
		return nil, nil
	}
	copied := *conv
	return &copied, nil
}

func (s *fakeConversationStore) UpdateTitle(id uuid.UUID, title string) error {
	s.titles[id] = title
	s.conversations[id].Title = title
	return nil
}

func (s *fakeConversationStore) Delete(id uuid.UUID) error {
	s.deleted = append(s.deleted, id)
	delete(s.conversations, id)
	return nil
}

type fakeMessageStore struct {
	messages []*model.Message
}

func (s *fakeMessageStore) Create(msg *model.Message) error {
	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}
	s.messages = append(s.messages, msg)
	return nil
}

func (s *fakeMessageStore) ListByConversationID(conversationID uuid.UUID) ([]model.Message, error) {
	var out []model.Message
	for _, msg := range s.messages {
		if msg.ConversationID == conversationID {
			out = append(out, *msg)
		}
	}
	return out, nil
}

func (s *fakeMessageStore) CountByConversationID(conversationID uuid.UUID) (int64, error) {
	var count int64
	for _, msg := range s.messages {
		if msg.ConversationID == conversationID {
			count++
		}
	}
	return count, nil
}

func (s *fakeMessageStore) byRole(role string) []*model.Message {
	var out []*model.Message
	for _, msg := range s.messages {
		if msg.Role == role {
			out = append(out, msg)
		}
	}
	return out
}

type fakeRetriever struct {
	hits []repository.ChunkSearchResult
	err  error
}

func (r *fakeRetriever) SearchSimilar(uuid.UUID, []float32, int) ([]repository.ChunkSearchResult, error) {
	return r.hits, r.err
}

type fakeQueryEmbedder struct {
	err error
}

func (e *fakeQueryEmbedder) EmbedQuery(context.Context, string) ([]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	return []float32{0.1, 0.2}, nil
}

type fakeGenerator struct {
	creds       bool
	deltas      []string
	failStream  bool
	gotMessages []ai.ChatMessage
}

func (g *fakeGenerator) HasCredentials() bool { return g.creds }

func (g *fakeGenerator) StreamComplete(_ context.Context, messages []ai.ChatMessage, onDelta func(string) error) (string, error) {
	g.gotMessages = messages
	var full strings.Builder
	for _, delta := range g.deltas {
		if err := onDelta(delta); err != nil {
			return "", err
		}
		full.WriteString(delta)
	}
	if g.failStream {
		return "", errors.New("provider dropped the stream")
	}
	return full.String(), nil
}

type noopHistoryCache struct{}

func (noopHistoryCache) Get(context.Context, uuid.UUID) ([]model.Message, bool, error) {
	return nil, false, nil
}
func (noopHistoryCache) Set(context.Context, uuid.UUID, []model.Message) error { return nil }
func (noopHistoryCache) Delete(context.Context, uuid.UUID) error               { return nil }

type chatFixture struct {
	service       *ChatService
	conversations *fakeConversationStore
	messages      *fakeMessageStore
	retriever     *fakeRetriever
	embedder      *fakeQueryEmbedder
	generator     *fakeGenerator
}

func newChatFixture() *chatFixture {
	f := &chatFixture{
		conversations: newFakeConversationStore(),
		messages:      &fakeMessageStore{},
		retriever:     &fakeRetriever{},
		embedder:      &fakeQueryEmbedder{},
		generator:     &fakeGenerator{creds: true},
	}
	f.service = NewChatService(f.conversations, f.messages, f.retriever, f.embedder, f.generator, noopHistoryCache{}, 5)
	return f
}

func (f *chatFixture) newConversation(t *testing.T, workspaceID uuid.UUID) *model.Conversation {
	t.Helper()
	conv, err := f.service.CreateConversation(workspaceID, uuid.New(), "")
	require.NoError(t, err)
	return conv
}

func collectEvents(events *[]StreamEvent) func(StreamEvent) error {
	return func(event StreamEvent) error {
		*events = append(*events, event)
		return nil
	}
}

func eventTypes(events []StreamEvent) []string {
	types := make([]string, len(events))
	for i, e := range events {
		types[i] = e.Type
	}
	return types
}

func hit(title, content string) repository.ChunkSearchResult {
	return repository.ChunkSearchResult{
		ChunkID:       uuid.New(),
		Content:       content,
		DocumentID:    uuid.New(),
		DocumentTitle: title,
		Similarity:    0.9,
	}
}

func TestStreamMessage_UnknownConversation(t *testing.T) {
	f := newChatFixture()

	var events []StreamEvent
	err := f.service.StreamMessage(context.Background(), StreamMessageInput{
		ConversationID: uuid.New(),
		WorkspaceID:    uuid.New(),
		Content:        "hello",
	}, collectEvents(&events))

	assert.ErrorIs(t, err, ErrConversationNotFound)
	assert.Empty(t, events)
	assert.Empty(t, f.messages.messages)
}

func TestStreamMessage_NoContext(t *testing.T) {
	f := newChatFixture()
	workspaceID := uuid.New()
	conv := f.newConversation(t, workspaceID)

	var events []StreamEvent
	err := f.service.StreamMessage(context.Background(), StreamMessageInput{
		ConversationID: conv.ID,
		WorkspaceID:    workspaceID,
		Content:        "what is the plan?",
	}, collectEvents(&events))
	require.NoError(t, err)

	require.Equal(t, []string{EventContent, EventDone}, eventTypes(events))
	assert.Equal(t, noContextReply, events[0].Content)
	assert.NotEmpty(t, events[1].MessageID)

	assistants := f.messages.byRole(model.RoleAssistant)
	require.Len(t, assistants, 1)
	assert.Equal(t, noContextReply, assistants[0].Content)
	assert.Nil(t, assistants[0].Sources)
	assert.Equal(t, assistants[0].ID.String(), events[1].MessageID)
}

func TestStreamMessage_SuccessWithSources(t *testing.T) {
	f := newChatFixture()
	workspaceID := uuid.New()
	conv := f.newConversation(t, workspaceID)

	f.retriever.hits = []repository.ChunkSearchResult{
		hit("plan.txt", "The launch is scheduled for March."),
		hit("notes.md", strings.Repeat("x", 300)),
	}
	f.generator.deltas = []string{"The launch ", "is in March."}

	var events []StreamEvent
	err := f.service.StreamMessage(context.Background(), StreamMessageInput{
		ConversationID: conv.ID,
		WorkspaceID:    workspaceID,
		Content:        "when is the launch?",
	}, collectEvents(&events))
	require.NoError(t, err)

	require.Equal(t, []string{EventContent, EventContent, EventSources, EventDone}, eventTypes(events))
	assert.Equal(t, "The launch ", events[0].Content)
	assert.Equal(t, "is in March.", events[1].Content)

	require.Len(t, events[2].Sources, 2)
	assert.Equal(t, "plan.txt", events[2].Sources[0].DocumentTitle)
	assert.Len(t, events[2].Sources[1].Snippet, 200)

	assistants := f.messages.byRole(model.RoleAssistant)
	require.Len(t, assistants, 1)
	assert.Equal(t, "The launch is in March.", assistants[0].Content)
	assert.Len(t, assistants[0].SourceList(), 2)
	assert.Equal(t, assistants[0].ID.String(), events[3].MessageID)

	// Prompt carries the grounding instruction and both excerpts.
	require.NotEmpty(t, f.generator.gotMessages)
	system := f.generator.gotMessages[0]
	assert.Equal(t, "system", system.Role)
	assert.Contains(t, system.Content, "[Document: plan.txt]")
	assert.Contains(t, system.Content, "[Document: notes.md]")
	last := f.generator.gotMessages[len(f.generator.gotMessages)-1]
	assert.Equal(t, model.RoleUser, last.Role)
	assert.Equal(t, "when is the launch?", last.Content)
}

func TestStreamMessage_EmbedFailure(t *testing.T) {
	f := newChatFixture()
	workspaceID := uuid.New()
	conv := f.newConversation(t, workspaceID)
	f.embedder.err = errors.New("embedding provider down")

	var events []StreamEvent
	err := f.service.StreamMessage(context.Background(), StreamMessageInput{
		ConversationID: conv.ID,
		WorkspaceID:    workspaceID,
		Content:        "question",
	}, collectEvents(&events))
	require.NoError(t, err)

	require.Equal(t, []string{EventError}, eventTypes(events))
	// The user turn is kept even when answering failed.
	assert.Len(t, f.messages.byRole(model.RoleUser), 1)
	assert.Empty(t, f.messages.byRole(model.RoleAssistant))
}

func TestStreamMessage_MidStreamFailure(t *testing.T) {
	f := newChatFixture()
	workspaceID := uuid.New()
	conv := f.newConversation(t, workspaceID)

	f.retriever.hits = []repository.ChunkSearchResult{hit("plan.txt", "content")}
	f.generator.deltas = []string{"partial "}
	f.generator.failStream = true

	var events []StreamEvent
	err := f.service.StreamMessage(context.Background(), StreamMessageInput{
		ConversationID: conv.ID,
		WorkspaceID:    workspaceID,
		Content:        "question",
	}, collectEvents(&events))
	require.NoError(t, err)

	require.Equal(t, []string{EventContent, EventError}, eventTypes(events))
	assert.Empty(t, f.messages.byRole(model.RoleAssistant))
}

func TestStreamMessage_NoCredentialsFallback(t *testing.T) {
	f := newChatFixture()
	workspaceID := uuid.New()
	conv := f.newConversation(t, workspaceID)

	f.generator.creds = false
	f.retriever.hits = []repository.ChunkSearchResult{hit("plan.txt", "The best excerpt.")}

	var events []StreamEvent
	err := f.service.StreamMessage(context.Background(), StreamMessageInput{
		ConversationID: conv.ID,
		WorkspaceID:    workspaceID,
		Content:        "question",
	}, collectEvents(&events))
	require.NoError(t, err)

	require.Equal(t, []string{EventContent, EventSources, EventDone}, eventTypes(events))
	assert.Contains(t, events[0].Content, "The best excerpt.")
	assert.Contains(t, events[0].Content, "[Document: plan.txt]")
	assert.Len(t, f.messages.byRole(model.RoleAssistant), 1)
}

func TestStreamMessage_FirstMessageSetsTitle(t *testing.T) {
	f := newChatFixture()
	workspaceID := uuid.New()
	conv := f.newConversation(t, workspaceID)

	longQuestion := strings.Repeat("q", 150)
	var events []StreamEvent
	err := f.service.StreamMessage(context.Background(), StreamMessageInput{
		ConversationID: conv.ID,
		WorkspaceID:    workspaceID,
		Content:        longQuestion,
	}, collectEvents(&events))
	require.NoError(t, err)

	title, ok := f.conversations.titles[conv.ID]
	require.True(t, ok)
	assert.Len(t, title, 100)

	// A second turn leaves the title alone.
	delete(f.conversations.titles, conv.ID)
	err = f.service.StreamMessage(context.Background(), StreamMessageInput{
		ConversationID: conv.ID,
		WorkspaceID:    workspaceID,
		Content:        "followup",
	}, collectEvents(&events))
	require.NoError(t, err)
	_, ok = f.conversations.titles[conv.ID]
	assert.False(t, ok)
}

func TestStreamMessage_RenamesAfterLoneUserMessage(t *testing.T) {
	f := newChatFixture()
	workspaceID := uuid.New()
	conv := f.newConversation(t, workspaceID)

	// An interrupted earlier turn left a user message with no reply; the
	// conversation is still unnamed, so the next turn's question names it.
	require.NoError(t, f.messages.Create(&model.Message{
		ConversationID: conv.ID, Role: model.RoleUser, Content: "orphaned question",
	}))

	var events []StreamEvent
	err := f.service.StreamMessage(context.Background(), StreamMessageInput{
		ConversationID: conv.ID,
		WorkspaceID:    workspaceID,
		Content:        "retried question",
	}, collectEvents(&events))
	require.NoError(t, err)

	title, ok := f.conversations.titles[conv.ID]
	require.True(t, ok)
	assert.Equal(t, "retried question", title)
}

func TestStreamMessage_HistoryPassedToGenerator(t *testing.T) {
	f := newChatFixture()
	workspaceID := uuid.New()
	conv := f.newConversation(t, workspaceID)

	require.NoError(t, f.messages.Create(&model.Message{
		ConversationID: conv.ID, Role: model.RoleUser, Content: "first question",
	}))
	require.NoError(t, f.messages.Create(&model.Message{
		ConversationID: conv.ID, Role: model.RoleAssistant, Content: "first answer",
	}))

	f.retriever.hits = []repository.ChunkSearchResult{hit("plan.txt", "content")}
	f.generator.deltas = []string{"second answer"}

	var events []StreamEvent
	err := f.service.StreamMessage(context.Background(), StreamMessageInput{
		ConversationID: conv.ID,
		WorkspaceID:    workspaceID,
		Content:        "second question",
	}, collectEvents(&events))
	require.NoError(t, err)

	// system, two history turns, then the current question.
	require.Len(t, f.generator.gotMessages, 4)
	assert.Equal(t, "first question", f.generator.gotMessages[1].Content)
	assert.Equal(t, "first answer", f.generator.gotMessages[2].Content)
	assert.Equal(t, "second question", f.generator.gotMessages[3].Content)
}

func TestGetConversation_NotFound(t *testing.T) {
	f := newChatFixture()

	_, _, err := f.service.GetConversation(uuid.New(), uuid.New())
	assert.ErrorIs(t, err, ErrConversationNotFound)
}

func TestDeleteConversation(t *testing.T) {
	f := newChatFixture()
	workspaceID := uuid.New()
	conv := f.newConversation(t, workspaceID)

	require.NoError(t, f.service.DeleteConversation(conv.ID, workspaceID))
	assert.Contains(t, f.conversations.deleted, conv.ID)

	err := f.service.DeleteConversation(conv.ID, workspaceID)
	assert.ErrorIs(t, err, ErrConversationNotFound)
}
