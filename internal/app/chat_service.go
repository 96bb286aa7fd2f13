package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"

	"founderos-api/internal/ai"
	"founderos-api/internal/model"
	"founderos-api/internal/repository"
)

var ErrConversationNotFound = errors.New("conversation not found")

// Stream event types emitted over SSE.
const (
	EventContent = "content"
	EventSources = "sources"
	EventDone    = "done"
	EventError   = "error"
)

const (
	historyWindow = 10
	snippetMaxLen = 200
	titleMaxLen   = 100
)

const noContextReply = "I don't have any relevant documents to answer that question. " +
	"Try uploading documents related to your question first."

const groundingSystemPrompt = `You are a knowledgeable assistant that answers questions using the provided document excerpts.

Rules:
- Base your answer only on the excerpts below. If they do not contain the answer, say so plainly.
- Cite every excerpt you draw on inline using its [Document: title] marker.
- Be concise and concrete.`

// StreamEvent is one unit of the streamed chat response.
type StreamEvent struct {
	Type      string         `json:"type"`
	Content   string         `json:"content,omitempty"`
	Sources   []model.Source `json:"sources,omitempty"`
	MessageID string         `json:"message_id,omitempty"`
}

type ConversationStore interface {
	Create(conv *model.Conversation) error
	ListByWorkspace(workspaceID uuid.UUID) ([]model.Conversation, error)
	GetByIDAndWorkspace(id, workspaceID uuid.UUID) (*model.Conversation, error)
	UpdateTitle(id uuid.UUID, title string) error
	Delete(id uuid.UUID) error
}

type MessageStore interface {
	Create(msg *model.Message) error
	ListByConversationID(conversationID uuid.UUID) ([]model.Message, error)
	CountByConversationID(conversationID uuid.UUID) (int64, error)
}

type Retriever interface {
	SearchSimilar(workspaceID uuid.UUID, embedding []float32, limit int) ([]repository.ChunkSearchResult, error)
}

type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

type Generator interface {
	HasCredentials() bool
	StreamComplete(ctx context.Context, messages []ai.ChatMessage, onDelta func(delta string) error) (string, error)
}

// HistoryCache is a read-through cache of a conversation's messages.
type HistoryCache interface {
	Get(ctx context.Context, conversationID uuid.UUID) ([]model.Message, bool, error)
	Set(ctx context.Context, conversationID uuid.UUID, messages []model.Message) error
	Delete(ctx context.Context, conversationID uuid.UUID) error
}

type ChatService struct {
	conversations ConversationStore
	messages      MessageStore
	retriever     Retriever
	embedder      QueryEmbedder
	generator     Generator
	history       HistoryCache
	topK          int
}

func NewChatService(
	conversations ConversationStore,
	messages MessageStore,
	retriever Retriever,
	embedder QueryEmbedder,
	generator Generator,
	history HistoryCache,
	topK int,
) *ChatService {
	return &ChatService{
		conversations: conversations,
		messages:      messages,
		retriever:     retriever,
		embedder:      embedder,
		generator:     generator,
		history:       history,
		topK:          topK,
	}
}

func (s *ChatService) CreateConversation(workspaceID, createdBy uuid.UUID, title string) (*model.Conversation, error) {
	if title == "" {
		title = "New conversation"
	}
	conv := &model.Conversation{
		WorkspaceID: workspaceID,
		CreatedBy:   createdBy,
		Title:       truncateRunes(title, titleMaxLen),
	}
	if err := s.conversations.Create(conv); err != nil {
		return nil, err
	}
	return conv, nil
}

func (s *ChatService) ListConversations(workspaceID uuid.UUID) ([]model.Conversation, error) {
	return s.conversations.ListByWorkspace(workspaceID)
}

func (s *ChatService) GetConversation(id, workspaceID uuid.UUID) (*model.Conversation, []model.Message, error) {
	conv, err := s.conversations.GetByIDAndWorkspace(id, workspaceID)
	if err != nil {
		return nil, nil, err
	}
	if conv == nil {
		return nil, nil, ErrConversationNotFound
	}
	msgs, err := s.loadHistory(context.Background(), id)
	if err != nil {
		return nil, nil, err
	}
	return conv, msgs, nil
}

func (s *ChatService) DeleteConversation(id, workspaceID uuid.UUID) error {
	conv, err := s.conversations.GetByIDAndWorkspace(id, workspaceID)
	if err != nil {
		return err
	}
	if conv == nil {
		return ErrConversationNotFound
	}
	if err := s.conversations.Delete(id); err != nil {
		return err
	}
	if err := s.history.Delete(context.Background(), id); err != nil {
		log.Printf("conversation %s: drop history cache: %v", id, err)
	}
	return nil
}

// loadHistory reads messages through the cache, falling back to the store
// and repopulating on a miss.
func (s *ChatService) loadHistory(ctx context.Context, conversationID uuid.UUID) ([]model.Message, error) {
	if cached, ok, err := s.history.Get(ctx, conversationID); err == nil && ok {
		return cached, nil
	} else if err != nil {
		log.Printf("conversation %s: history cache read: %v", conversationID, err)
	}
	msgs, err := s.messages.ListByConversationID(conversationID)
	if err != nil {
		return nil, err
	}
	if err := s.history.Set(ctx, conversationID, msgs); err != nil {
		log.Printf("conversation %s: history cache write: %v", conversationID, err)
	}
	return msgs, nil
}

type StreamMessageInput struct {
	ConversationID uuid.UUID
	WorkspaceID    uuid.UUID
	UserID         uuid.UUID
	Content        string
}

// StreamMessage runs one retrieval-grounded chat turn, emitting events as
// the answer is produced. The user message is persisted before any
// provider call; the assistant message is persisted only when the full
// answer arrives, so an interrupted stream leaves no partial reply.
func (s *ChatService) StreamMessage(ctx context.Context, in StreamMessageInput, emit func(StreamEvent) error) error {
	conv, err := s.conversations.GetByIDAndWorkspace(in.ConversationID, in.WorkspaceID)
	if err != nil {
		return err
	}
	if conv == nil {
		return ErrConversationNotFound
	}

	priorCount, err := s.messages.CountByConversationID(conv.ID)
	if err != nil {
		return err
	}

	userMsg := &model.Message{
		ConversationID: conv.ID,
		Role:           model.RoleUser,
		Content:        in.Content,
	}
	if err := s.messages.Create(userMsg); err != nil {
		return err
	}
	if err := s.history.Delete(ctx, conv.ID); err != nil {
		log.Printf("conversation %s: drop history cache: %v", conv.ID, err)
	}

	// A conversation with at most one earlier message is still unnamed,
	// so this turn's question becomes the title. The one-message case
	// covers a lone user message left behind by an interrupted turn.
	if priorCount <= 1 {
		if err := s.conversations.UpdateTitle(conv.ID, truncateRunes(in.Content, titleMaxLen)); err != nil {
			log.Printf("conversation %s: update title: %v", conv.ID, err)
		}
	}

	queryVec, err := s.embedder.EmbedQuery(ctx, in.Content)
	if err != nil {
		log.Printf("conversation %s: embed query: %v", conv.ID, err)
		return emit(StreamEvent{Type: EventError, Content: "failed to process your question"})
	}

	hits, err := s.retriever.SearchSimilar(in.WorkspaceID, queryVec, s.topK)
	if err != nil {
		log.Printf("conversation %s: retrieval: %v", conv.ID, err)
		return emit(StreamEvent{Type: EventError, Content: "failed to search your documents"})
	}

	if len(hits) == 0 {
		return s.finishTurn(ctx, conv.ID, noContextReply, nil, emit)
	}

	answer, err := s.generate(ctx, conv.ID, in.Content, hits, emit)
	if err != nil {
		log.Printf("conversation %s: generation: %v", conv.ID, err)
		return emit(StreamEvent{Type: EventError, Content: "failed to generate a response"})
	}

	sources := make([]model.Source, len(hits))
	for i, hit := range hits {
		sources[i] = model.Source{
			DocumentID:    hit.DocumentID.String(),
			DocumentTitle: hit.DocumentTitle,
			ChunkID:       hit.ChunkID.String(),
			Snippet:       truncateRunes(hit.Content, snippetMaxLen),
		}
	}
	return s.persistAssistant(ctx, conv.ID, answer, sources, emit)
}

// generate streams the grounded answer, emitting each delta as a content
// event. Without provider credentials it falls back to quoting the best
// matching excerpt.
func (s *ChatService) generate(
	ctx context.Context,
	conversationID uuid.UUID,
	question string,
	hits []repository.ChunkSearchResult,
	emit func(StreamEvent) error,
) (string, error) {
	if !s.generator.HasCredentials() {
		answer := fmt.Sprintf(
			"No language model is configured. The most relevant excerpt from your documents:\n\n[Document: %s]\n%s",
			hits[0].DocumentTitle, truncateRunes(hits[0].Content, snippetMaxLen),
		)
		if err := emit(StreamEvent{Type: EventContent, Content: answer}); err != nil {
			return "", err
		}
		return answer, nil
	}

	var contextBlock strings.Builder
	for _, hit := range hits {
		fmt.Fprintf(&contextBlock, "[Document: %s]\n%s\n\n", hit.DocumentTitle, hit.Content)
	}

	messages := []ai.ChatMessage{
		{Role: "system", Content: groundingSystemPrompt + "\n\nDocument excerpts:\n\n" + contextBlock.String()},
	}
	messages = append(messages, s.recentHistory(ctx, conversationID)...)
	messages = append(messages, ai.ChatMessage{Role: model.RoleUser, Content: question})

	return s.generator.StreamComplete(ctx, messages, func(delta string) error {
		return emit(StreamEvent{Type: EventContent, Content: delta})
	})
}

// recentHistory returns the last few persisted turns, oldest first,
// excluding the just-persisted current user message.
func (s *ChatService) recentHistory(ctx context.Context, conversationID uuid.UUID) []ai.ChatMessage {
	msgs, err := s.loadHistory(ctx, conversationID)
	if err != nil {
		log.Printf("conversation %s: load history: %v", conversationID, err)
		return nil
	}
	if len(msgs) > 0 {
		msgs = msgs[:len(msgs)-1]
	}
	if len(msgs) > historyWindow {
		msgs = msgs[len(msgs)-historyWindow:]
	}
	out := make([]ai.ChatMessage, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, ai.ChatMessage{Role: m.Role, Content: m.Content})
	}
	return out
}

func (s *ChatService) finishTurn(
	ctx context.Context,
	conversationID uuid.UUID,
	answer string,
	sources []model.Source,
	emit func(StreamEvent) error,
) error {
	if err := emit(StreamEvent{Type: EventContent, Content: answer}); err != nil {
		return err
	}
	return s.persistAssistant(ctx, conversationID, answer, sources, emit)
}

func (s *ChatService) persistAssistant(
	ctx context.Context,
	conversationID uuid.UUID,
	answer string,
	sources []model.Source,
	emit func(StreamEvent) error,
) error {
	msg := &model.Message{
		ConversationID: conversationID,
		Role:           model.RoleAssistant,
		Content:        answer,
	}
	if len(sources) > 0 {
		if err := msg.SetSources(sources); err != nil {
			return err
		}
	}
	if err := s.messages.Create(msg); err != nil {
		return err
	}
	if err := s.history.Delete(ctx, conversationID); err != nil {
		log.Printf("conversation %s: drop history cache: %v", conversationID, err)
	}

	if len(sources) > 0 {
		if err := emit(StreamEvent{Type: EventSources, Sources: sources}); err != nil {
			return err
		}
	}
	return emit(StreamEvent{Type: EventDone, MessageID: msg.ID.String()})
}

func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
