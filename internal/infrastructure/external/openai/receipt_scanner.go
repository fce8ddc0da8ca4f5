package openai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/finovate/expenseflow/internal/application/port"
	"github.com/finovate/expenseflow/internal/domain/entity"
)

const scannerSystemPrompt = "You are a receipt data extractor. " +
	"Given a receipt image, extract the total amount, currency code, purchase date, " +
	"merchant name and a likely expense category. " +
	"Respond with a single JSON object with keys amount, currency, date, merchant, category. " +
	"Use empty strings for fields you cannot read. Dates are YYYY-MM-DD."

// PageRenderer converts the first page of a PDF into a PNG image so it can be
// sent through the vision API like any other receipt photo
type PageRenderer interface {
	RenderFirstPage(path string) ([]byte, error)
}

// ReceiptScanner implements port.ReceiptScanner using an OpenAI vision model
type ReceiptScanner struct {
	client      *openai.Client
	model       string
	temperature float32
	renderer    PageRenderer
	logger      *zap.Logger
}

// NewReceiptScanner creates a new receipt scanner
func NewReceiptScanner(apiKey, model string, temperature float32, renderer PageRenderer, logger *zap.Logger) *ReceiptScanner {
	return &ReceiptScanner{
		client:      openai.NewClient(apiKey),
		model:       model,
		temperature: temperature,
		renderer:    renderer,
		logger:      logger,
	}
}

// Scan extracts structured hints from the receipt file at filePath
func (s *ReceiptScanner) Scan(ctx context.Context, filePath, mimeType string) (*entity.ReceiptHints, error) {
	imageData, imageMime, err := s.loadImage(filePath, mimeType)
	if err != nil {
		return nil, err
	}

	dataURL := fmt.Sprintf("data:%s;base64,%s", imageMime, base64.StdEncoding.EncodeToString(imageData))

	req := openai.ChatCompletionRequest{
		Model:       s.model,
		Temperature: s.temperature,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: scannerSystemPrompt,
			},
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{
						Type: openai.ChatMessagePartTypeText,
						Text: "Extract the fields from this receipt.",
					},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL:    dataURL,
							Detail: openai.ImageURLDetailAuto,
						},
					},
				},
			},
		},
	}

	resp, err := s.client.CreateChatCompletion(ctx, req)
	if err != nil {
		s.logger.Error("OpenAI API call failed", zap.Error(err))
		return nil, fmt.Errorf("OpenAI API call failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no response from OpenAI")
	}

	content := resp.Choices[0].Message.Content

	var hints entity.ReceiptHints
	if err := json.Unmarshal([]byte(content), &hints); err != nil {
		// Models sometimes wrap the object in markdown code fences
		if jsonStr := extractJSON(content); jsonStr != "" {
			if err := json.Unmarshal([]byte(jsonStr), &hints); err == nil {
				return &hints, nil
			}
		}
		s.logger.Error("Failed to parse scan response",
			zap.Error(err),
			zap.String("content", content))
		return nil, fmt.Errorf("parse scan response: %w", err)
	}

	s.logger.Info("Receipt scanned",
		zap.String("file", filePath),
		zap.String("merchant", hints.Merchant),
		zap.String("amount", hints.Amount))
	return &hints, nil
}

// loadImage returns image bytes ready for the vision API. PDF receipts are
// rendered to a PNG of their first page.
func (s *ReceiptScanner) loadImage(filePath, mimeType string) ([]byte, string, error) {
	if mimeType == "application/pdf" {
		if s.renderer == nil {
			return nil, "", fmt.Errorf("pdf receipts require a page renderer")
		}
		data, err := s.renderer.RenderFirstPage(filePath)
		if err != nil {
			return nil, "", fmt.Errorf("render pdf page: %w", err)
		}
		return data, "image/png", nil
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, "", fmt.Errorf("read receipt file: %w", err)
	}
	return data, mimeType, nil
}

// extractJSON pulls a JSON object out of a markdown code fence
func extractJSON(content string) string {
	start := strings.Index(content, "```json")
	if start == -1 {
		start = strings.Index(content, "```")
		if start == -1 {
			return ""
		}
		start += 3
	} else {
		start += 7
	}
	end := strings.Index(content[start:], "```")
	if end == -1 {
		return ""
	}
	return strings.TrimSpace(content[start : start+end])
}

// Verify interface compliance
var _ port.ReceiptScanner = (*ReceiptScanner)(nil)
