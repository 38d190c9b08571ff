package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kirillkom/medication-finder/internal/core/domain"
	"github.com/kirillkom/medication-finder/internal/core/ports"
)

const defaultDecideTemperature = 0.2

const (
	ChatAdmissionKey  = "chat"
	NoInformationText = "Something went wrong. I could not find any information."
)

type ChatOptions struct {
	DecideModel   string
	ReviewModel   string
	ContextTurns  int
	RetrievalTopK int
	// Temperature of the decide stage; nil or negative means 0.2.
	Temperature   *float64
	AdmissionCost int
}

// ChatUseCase answers one turn in two completion stages: decide whether to
// retrieve, then review the retrieved candidates under a response schema.
type ChatUseCase struct {
	completions ports.CompletionClient
	retriever   ports.KnowledgeRetriever
	gate        ports.AdmissionGate
	opts        ChatOptions
	logger      *slog.Logger
}

func NewChatUseCase(
	completions ports.CompletionClient,
	retriever ports.KnowledgeRetriever,
	gate ports.AdmissionGate,
	opts ChatOptions,
	logger *slog.Logger,
) *ChatUseCase {
	if opts.DecideModel == "" {
		opts.DecideModel = "gpt-4.1-mini"
	}
	if opts.ReviewModel == "" {
		opts.ReviewModel = "gpt-4o-mini"
	}
	if opts.ContextTurns <= 0 {
		opts.ContextTurns = 10
	}
	if opts.RetrievalTopK <= 0 {
		opts.RetrievalTopK = 10
	}
	if opts.Temperature == nil || *opts.Temperature < 0 {
		temperature := defaultDecideTemperature
		opts.Temperature = &temperature
	}
	if opts.AdmissionCost <= 0 {
		opts.AdmissionCost = 2
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &ChatUseCase{
		completions: completions,
		retriever:   retriever,
		gate:        gate,
		opts:        opts,
		logger:      logger,
	}
}

func (uc *ChatUseCase) Chat(ctx context.Context, userPrompt string, history []domain.ConversationTurn) (*domain.ChatResponse, error) {
	prompt := strings.TrimSpace(userPrompt)
	if prompt == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "chat", errors.New("userPrompt is required"))
	}
	if err := validateHistory(history); err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "chat", err)
	}

	if uc.gate != nil {
		if err := uc.gate.Admit(ctx, ChatAdmissionKey, uc.opts.AdmissionCost); err != nil {
			return nil, err
		}
	}

	messages := windowHistory(history, uc.opts.ContextTurns)
	messages = append(messages,
		domain.TextTurn(domain.RoleSystem, buildSearchInstruction()),
		domain.TextTurn(domain.RoleUser, prompt),
	)
	temperature := *uc.opts.Temperature
	decision, err := uc.completions.Complete(ctx, domain.CompletionRequest{
		Model:       uc.opts.DecideModel,
		Messages:    messages,
		Tools:       []domain.ToolDefinition{searchMedicationTool()},
		Temperature: &temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("decide completion: %w", err)
	}

	assistant := decision.Message
	assistant.Role = domain.RoleAssistant
	terminal := []domain.ConversationTurn{assistant}

	resp := &domain.ChatResponse{}
	for _, call := range assistant.ToolCalls {
		args, err := parseToolArguments(call)
		if domain.IsKind(err, domain.ErrUnknownTool) {
			uc.logger.Warn("chat_tool_ignored", "tool", call.Function.Name, "tool_call_id", call.ID)
			continue
		}
		if err != nil {
			return nil, err
		}

		turn, err := uc.runTool(ctx, prompt, call, args)
		if err != nil {
			return nil, err
		}
		terminal = append(terminal, turn)
		resp.ToolsInvoked = append(resp.ToolsInvoked, call.Function.Name)
	}

	blocks, err := assembleBlocks(terminal)
	if err != nil {
		return nil, err
	}
	resp.Blocks = blocks
	resp.Context = make([]domain.ConversationTurn, 0, len(history)+len(terminal))
	resp.Context = append(resp.Context, history...)
	resp.Context = append(resp.Context, terminal...)
	return resp, nil
}

func (uc *ChatUseCase) runTool(ctx context.Context, prompt string, call domain.ToolCall, args ToolArguments) (domain.ConversationTurn, error) {
	switch a := args.(type) {
	case SearchMedicationDataArgs:
		content, err := uc.reviewMedicationData(ctx, prompt, a)
		if err != nil {
			return domain.ConversationTurn{}, err
		}
		return domain.ConversationTurn{Role: domain.RoleTool, Content: content, ToolCallID: call.ID}, nil
	default:
		return domain.ConversationTurn{}, domain.WrapError(domain.ErrUnknownTool, "run tool", fmt.Errorf("%T", args))
	}
}

// reviewMedicationData retrieves candidates and returns the raw review content.
func (uc *ChatUseCase) reviewMedicationData(ctx context.Context, prompt string, args SearchMedicationDataArgs) (*string, error) {
	candidates, err := uc.retriever.Retrieve(ctx, args.UserPrompt, uc.opts.RetrievalTopK)
	if err != nil {
		return nil, domain.WrapError(domain.ErrRetrievalUnavailable, "retrieve medication data", err)
	}
	if candidates == nil {
		candidates = []domain.RetrievalCandidate{}
	}
	candidatesJSON, err := json.Marshal(candidates)
	if err != nil {
		return nil, fmt.Errorf("marshal candidates: %w", err)
	}

	review, err := uc.completions.Complete(ctx, domain.CompletionRequest{
		Model: uc.opts.ReviewModel,
		Messages: []domain.ConversationTurn{
			domain.TextTurn(domain.RoleSystem, buildReviewInstruction(string(candidatesJSON))),
			domain.TextTurn(domain.RoleUser, buildReviewUserPrompt(prompt)),
		},
		ResponseSchema: medicationListSchema(),
	})
	if err != nil {
		return nil, fmt.Errorf("review completion: %w", err)
	}
	return review.Message.Content, nil
}

// assembleBlocks turns the terminal turns into user-facing blocks.
// Turns that still carry tool calls are intermediate and skipped.
func assembleBlocks(turns []domain.ConversationTurn) ([]domain.Block, error) {
	blocks := make([]domain.Block, 0, len(turns))
	for _, turn := range turns {
		if turn.HasToolCalls() {
			continue
		}
		text := strings.TrimSpace(turn.Text())
		if text == "" {
			blocks = append(blocks, noInformationBlock())
			continue
		}

		switch turn.Role {
		case domain.RoleTool:
			var result reviewResult
			if err := json.Unmarshal([]byte(text), &result); err != nil {
				return nil, domain.WrapError(domain.ErrUpstream, "parse review result", err)
			}
			contents := make([]domain.Inline, 0, len(result.Medications)+1)
			contents = append(contents, domain.TextInline(result.Reasoning))
			for _, ref := range result.Medications {
				contents = append(contents, domain.EntityInline(ref))
			}
			blocks = append(blocks, domain.Paragraph(string(domain.RoleAssistant), contents...))
		default:
			blocks = append(blocks, domain.Paragraph(string(domain.RoleAssistant), domain.TextInline(turn.Text())))
		}
	}
	return blocks, nil
}

func noInformationBlock() domain.Block {
	return domain.Paragraph(string(domain.RoleAssistant), domain.TextInline(NoInformationText))
}

func validateHistory(history []domain.ConversationTurn) error {
	for i, turn := range history {
		switch turn.Role {
		case domain.RoleUser, domain.RoleAssistant:
		case domain.RoleTool:
			if strings.TrimSpace(turn.ToolCallID) == "" {
				return fmt.Errorf("context[%d]: tool turn without tool_call_id", i)
			}
		default:
			return fmt.Errorf("context[%d]: unsupported role %q", i, turn.Role)
		}
	}
	return nil
}

// windowHistory keeps the last n turns and drops tool halves whose partner
// fell outside the window or was never answered.
func windowHistory(history []domain.ConversationTurn, n int) []domain.ConversationTurn {
	if len(history) > n {
		history = history[len(history)-n:]
	}

	requested := make(map[string]struct{})
	answered := make(map[string]struct{})
	for _, turn := range history {
		for _, call := range turn.ToolCalls {
			requested[call.ID] = struct{}{}
		}
		if turn.Role == domain.RoleTool {
			answered[turn.ToolCallID] = struct{}{}
		}
	}

	out := make([]domain.ConversationTurn, 0, len(history)+2)
	for _, turn := range history {
		if turn.Role == domain.RoleTool {
			if _, ok := requested[turn.ToolCallID]; !ok {
				continue
			}
			out = append(out, turn)
			continue
		}
		if !turn.HasToolCalls() {
			out = append(out, turn)
			continue
		}

		calls := make([]domain.ToolCall, 0, len(turn.ToolCalls))
		for _, call := range turn.ToolCalls {
			if _, ok := answered[call.ID]; ok {
				calls = append(calls, call)
			}
		}
		if len(calls) == len(turn.ToolCalls) {
			out = append(out, turn)
			continue
		}
		turn.ToolCalls = calls
		if len(calls) == 0 && turn.Content == nil {
			continue
		}
		out = append(out, turn)
	}
	return out
}
