package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"lexrag/internal/ai"
	"lexrag/internal/model"
	"lexrag/internal/repository"
	"lexrag/internal/vectorstore"
)

const (
	questionMinLength = 3
	questionMaxLength = 5000
	defaultTopK       = 5
	// Prompt context carries the last 6 turns, 3 user/assistant pairs.
	defaultMaxContext = 6
)

// Canned answers for questions that cannot be grounded. These are
// normal responses, not errors: the user asked a fine question, the
// knowledge base just has nothing for it.
const (
	emptyStoreAnswer = "I don't have any documents in my knowledge base yet. " +
		"Please upload the relevant firm documents first, and I'll be happy to answer questions about them."
	noMatchAnswer = "I couldn't find anything relevant to your question in the uploaded documents. " +
		"Try rephrasing it, or check that the document covering this topic has been uploaded."
)

const systemPrompt = "You are a legal assistant for a law firm. Answer the user's question using only " +
	"the provided document excerpts. Cite which document your answer draws on. If the excerpts do not " +
	"contain the answer, say so plainly instead of guessing. Do not give advice beyond what the documents support."

var (
	ErrConversationNotFound = errors.New("conversation not found")
	ErrQuestionInvalid      = fmt.Errorf("question must be between %d and %d characters and contain letters", questionMinLength, questionMaxLength)
	ErrMessageEnqueue       = errors.New("message enqueue failed")
)

type AsyncMessagePublisher interface {
	Publish(ctx context.Context, msg model.Message) error
}

type HistoryCache interface {
	GetHistory(ctx context.Context, conversationID uint) ([]model.Message, bool, error)
	SetHistory(ctx context.Context, conversationID uint, messages []model.Message) error
	DeleteHistory(ctx context.Context, conversationID uint) error
	MarkDirty(ctx context.Context, conversationID uint) error
	IsDirty(ctx context.Context, conversationID uint) (bool, error)
}

// ChatService owns conversations and answers questions over the
// document index: retrieve top-k chunks, build a grounded prompt, call
// the model, persist both turns through the async pipeline.
type ChatService struct {
	conversationRepo *repository.ConversationRepository
	messageRepo      *repository.MessageRepository
	publisher        AsyncMessagePublisher
	historyCache     HistoryCache
	store            vectorstore.Store
	llmClient        *ai.OpenAICompatibleClient
	chatConfig       ai.ChatConfig
	topK             int
	maxContext       int
}

func NewChatService(
	conversationRepo *repository.ConversationRepository,
	messageRepo *repository.MessageRepository,
	publisher AsyncMessagePublisher,
	historyCache HistoryCache,
	store vectorstore.Store,
	llmClient *ai.OpenAICompatibleClient,
	chatConfig ai.ChatConfig,
	topK int,
	maxContext int,
) *ChatService {
	if topK <= 0 {
		topK = defaultTopK
	}
	if maxContext <= 0 {
		maxContext = defaultMaxContext
	}
	return &ChatService{
		conversationRepo: conversationRepo,
		messageRepo:      messageRepo,
		publisher:        publisher,
		historyCache:     historyCache,
		store:            store,
		llmClient:        llmClient,
		chatConfig:       chatConfig,
		topK:             topK,
		maxContext:       maxContext,
	}
}

type CreateConversationInput struct {
	UserID uint
	Title  string
}

func (s *ChatService) CreateConversation(input CreateConversationInput) (*model.Conversation, error) {
	if input.UserID == 0 {
		return nil, ErrInvalidInput
	}

	title := strings.TrimSpace(input.Title)
	if title == "" {
		title = "New Conversation"
	}

	conversation := &model.Conversation{
		UserID: input.UserID,
		Title:  title,
	}
	if err := s.conversationRepo.Create(conversation); err != nil {
		return nil, err
	}
	return conversation, nil
}

func (s *ChatService) ListConversations(userID uint) ([]model.Conversation, error) {
	if userID == 0 {
		return nil, ErrInvalidInput
	}
	return s.conversationRepo.ListByUserID(userID)
}

func (s *ChatService) DeleteConversation(userID, conversationID uint) error {
	if userID == 0 || conversationID == 0 {
		return ErrInvalidInput
	}
	conversation, err := s.conversationRepo.GetByIDAndUserID(conversationID, userID)
	if err != nil {
		return err
	}
	if conversation == nil {
		return ErrConversationNotFound
	}
	if err := s.messageRepo.DeleteByConversationID(conversationID); err != nil {
		return err
	}
	if err := s.conversationRepo.DeleteByIDAndUserID(conversationID, userID); err != nil {
		return err
	}
	if s.historyCache != nil {
		_ = s.historyCache.DeleteHistory(context.Background(), conversationID)
	}
	return nil
}

func (s *ChatService) GetHistory(userID, conversationID uint, limit int) ([]model.Message, error) {
	if userID == 0 || conversationID == 0 {
		return nil, ErrInvalidInput
	}

	conversation, err := s.conversationRepo.GetByIDAndUserID(conversationID, userID)
	if err != nil {
		return nil, err
	}
	if conversation == nil {
		return nil, ErrConversationNotFound
	}

	ctx := context.Background()
	if s.historyCache != nil {
		dirty, err := s.historyCache.IsDirty(ctx, conversationID)
		if err == nil && !dirty {
			if cached, hit, cacheErr := s.historyCache.GetHistory(ctx, conversationID); cacheErr == nil && hit {
				return trimMessages(cached, limit), nil
			}
		}
	}

	messages, err := s.messageRepo.ListByConversationID(conversationID, limit)
	if err != nil {
		return nil, err
	}
	if s.historyCache != nil {
		if dirty, dirtyErr := s.historyCache.IsDirty(ctx, conversationID); dirtyErr == nil && !dirty {
			_ = s.historyCache.SetHistory(ctx, conversationID, messages)
		}
	}
	return messages, nil
}

type AskInput struct {
	UserID         uint
	ConversationID uint
	Question       string
}

type AskResult struct {
	Answer  string                    `json:"answer"`
	Sources []string                  `json:"sources"`
	Chunks  []vectorstore.ScoredChunk `json:"chunks"`
}

// Ask answers a question grounded on the document index. When the index
// is empty or retrieval comes back blank, a canned answer is returned
// and no model call is made.
func (s *ChatService) Ask(ctx context.Context, input AskInput) (*AskResult, error) {
	question, conversation, err := s.prepareAsk(input)
	if err != nil {
		return nil, err
	}

	hits, fallback, err := s.retrieve(ctx, question)
	if err != nil {
		return nil, err
	}
	if fallback != "" {
		if err := s.recordUserTurn(ctx, input, question); err != nil {
			return nil, err
		}
		if err := s.recordAssistantTurn(ctx, input, fallback, nil); err != nil {
			return nil, err
		}
		_ = s.conversationRepo.Touch(conversation.ID)
		return &AskResult{Answer: fallback}, nil
	}

	// History is read before the current turn is enqueued so the
	// question appears in the prompt exactly once.
	messages, err := s.buildPromptMessages(input.ConversationID, question, hits)
	if err != nil {
		return nil, err
	}
	if err := s.recordUserTurn(ctx, input, question); err != nil {
		return nil, err
	}
	answer, err := s.llmClient.Complete(ctx, s.chatConfig, messages)
	if err != nil {
		return nil, err
	}
	answer = strings.TrimSpace(answer)
	if answer == "" {
		answer = "The model returned an empty response."
	}

	sources := sourceNames(hits)
	if err := s.recordAssistantTurn(ctx, input, answer, sources); err != nil {
		return nil, err
	}
	_ = s.conversationRepo.Touch(conversation.ID)

	return &AskResult{Answer: answer, Sources: sources, Chunks: hits}, nil
}

// AskStream is Ask with the answer streamed through onChunk as it is
// generated. Canned answers are delivered as a single chunk.
func (s *ChatService) AskStream(ctx context.Context, input AskInput, onChunk func(string) error) (*AskResult, error) {
	question, conversation, err := s.prepareAsk(input)
	if err != nil {
		return nil, err
	}

	hits, fallback, err := s.retrieve(ctx, question)
	if err != nil {
		return nil, err
	}
	if fallback != "" {
		if err := onChunk(fallback); err != nil {
			return nil, err
		}
		if err := s.recordUserTurn(ctx, input, question); err != nil {
			return nil, err
		}
		if err := s.recordAssistantTurn(ctx, input, fallback, nil); err != nil {
			return nil, err
		}
		_ = s.conversationRepo.Touch(conversation.ID)
		return &AskResult{Answer: fallback}, nil
	}

	messages, err := s.buildPromptMessages(input.ConversationID, question, hits)
	if err != nil {
		return nil, err
	}
	if err := s.recordUserTurn(ctx, input, question); err != nil {
		return nil, err
	}
	full, err := s.llmClient.StreamComplete(ctx, s.chatConfig, messages, onChunk)
	if err != nil {
		return nil, err
	}
	full = strings.TrimSpace(full)
	if full == "" {
		full = "The model returned an empty response."
	}

	sources := sourceNames(hits)
	if err := s.recordAssistantTurn(ctx, input, full, sources); err != nil {
		return nil, err
	}
	_ = s.conversationRepo.Touch(conversation.ID)

	return &AskResult{Answer: full, Sources: sources, Chunks: hits}, nil
}

func (s *ChatService) prepareAsk(input AskInput) (string, *model.Conversation, error) {
	if input.UserID == 0 || input.ConversationID == 0 {
		return "", nil, ErrInvalidInput
	}
	question := strings.TrimSpace(input.Question)
	if err := ValidateQuestion(question); err != nil {
		return "", nil, err
	}
	conversation, err := s.conversationRepo.GetByIDAndUserID(input.ConversationID, input.UserID)
	if err != nil {
		return "", nil, err
	}
	if conversation == nil {
		return "", nil, ErrConversationNotFound
	}
	return question, conversation, nil
}

// ValidateQuestion rejects questions that are too short, too long, or
// contain no letters at all (punctuation-only input).
func ValidateQuestion(question string) error {
	question = strings.TrimSpace(question)
	n := utf8.RuneCountInString(question)
	if n < questionMinLength || n > questionMaxLength {
		return ErrQuestionInvalid
	}
	for _, r := range question {
		if unicode.IsLetter(r) {
			return nil
		}
	}
	return ErrQuestionInvalid
}

// retrieve returns the top-k hits, or a canned fallback answer when the
// store is empty or nothing scores.
func (s *ChatService) retrieve(ctx context.Context, question string) ([]vectorstore.ScoredChunk, string, error) {
	count, err := s.store.Count(ctx)
	if err != nil {
		return nil, "", err
	}
	if count == 0 {
		return nil, emptyStoreAnswer, nil
	}
	hits, err := s.store.Search(ctx, question, s.topK)
	if err != nil {
		return nil, "", err
	}
	if len(hits) == 0 {
		return nil, noMatchAnswer, nil
	}
	return hits, "", nil
}

func (s *ChatService) recordUserTurn(ctx context.Context, input AskInput, question string) error {
	if s.publisher == nil {
		return ErrMessageEnqueue
	}
	if s.historyCache != nil {
		_ = s.historyCache.MarkDirty(ctx, input.ConversationID)
		_ = s.historyCache.DeleteHistory(ctx, input.ConversationID)
	}
	msg := model.Message{
		ConversationID: input.ConversationID,
		UserID:         input.UserID,
		Role:           "user",
		Content:        question,
		CreatedAt:      time.Now(),
	}
	if err := s.publisher.Publish(ctx, msg); err != nil {
		return ErrMessageEnqueue
	}
	return nil
}

func (s *ChatService) recordAssistantTurn(ctx context.Context, input AskInput, answer string, sources []string) error {
	if s.publisher == nil {
		return ErrMessageEnqueue
	}
	msg := model.Message{
		ConversationID: input.ConversationID,
		UserID:         input.UserID,
		Role:           "assistant",
		Content:        answer,
		Sources:        strings.Join(sources, ","),
		CreatedAt:      time.Now(),
	}
	if err := s.publisher.Publish(ctx, msg); err != nil {
		return ErrMessageEnqueue
	}
	return nil
}

// buildPromptMessages assembles system prompt, recent history and the
// current question with its retrieved context block.
func (s *ChatService) buildPromptMessages(conversationID uint, question string, hits []vectorstore.ScoredChunk) ([]ai.ChatMessage, error) {
	recent, err := s.messageRepo.ListRecentByConversationID(conversationID, s.maxContext)
	if err != nil {
		return nil, err
	}

	messages := make([]ai.ChatMessage, 0, len(recent)+2)
	messages = append(messages, ai.ChatMessage{Role: "system", Content: systemPrompt})
	for _, item := range recent {
		role := item.Role
		if role == "" {
			role = "user"
		}
		messages = append(messages, ai.ChatMessage{Role: role, Content: item.Content})
	}
	messages = append(messages, ai.ChatMessage{
		Role:    "user",
		Content: buildContextBlock(hits) + "\n\nQuestion: " + question,
	})
	return messages, nil
}

func buildContextBlock(hits []vectorstore.ScoredChunk) string {
	var sb strings.Builder
	sb.WriteString("Here are the relevant document excerpts:\n\n")
	for i, hit := range hits {
		fmt.Fprintf(&sb, "[Document %d - Source: %s, Chunk: %d]\n%s\n\n",
			i+1, hit.Chunk.Source, hit.Chunk.ChunkIndex, hit.Chunk.Content)
	}
	return strings.TrimRight(sb.String(), "\n")
}

// sourceNames returns the distinct source documents behind the hits,
// sorted for stable output.
func sourceNames(hits []vectorstore.ScoredChunk) []string {
	seen := make(map[string]struct{}, len(hits))
	var names []string
	for _, hit := range hits {
		if _, ok := seen[hit.Chunk.Source]; ok {
			continue
		}
		seen[hit.Chunk.Source] = struct{}{}
		names = append(names, hit.Chunk.Source)
	}
	sort.Strings(names)
	return names
}

func trimMessages(messages []model.Message, limit int) []model.Message {
	if limit <= 0 || limit >= len(messages) {
		return messages
	}
	return messages[len(messages)-limit:]
}
