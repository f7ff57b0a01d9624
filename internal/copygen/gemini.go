// Package copygen produces listing copy with Gemini: the curation verdict
// for new listings, bid announcements and live-show scripts.
package copygen

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/martelinho/martelinho/internal/domain"
)

// DefaultModel is used when Config.Model is empty.
const DefaultModel = "gemini-2.0-flash-001"

// Config configures the Gemini client.
type Config struct {
	APIKey string
	Model  string
}

// Gemini implements domain.CopyGenerator.
type Gemini struct {
	client  *genai.Client
	curator *genai.GenerativeModel
	writer  *genai.GenerativeModel
	logger  *slog.Logger
}

var _ domain.CopyGenerator = (*Gemini)(nil)

// New connects to Gemini with cfg.APIKey.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("copygen: api key is required")
	}
	name := cfg.Model
	if name == "" {
		name = DefaultModel
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("copygen: new client: %w", err)
	}

	curator := client.GenerativeModel(name)
	curator.ResponseMIMEType = "application/json"
	curator.ResponseSchema = suggestionSchema

	return &Gemini{
		client:  client,
		curator: curator,
		writer:  client.GenerativeModel(name),
		logger:  logger.With(slog.String("component", "copygen")),
	}, nil
}

// Close releases the underlying client.
func (g *Gemini) Close() error {
	return g.client.Close()
}

var suggestionSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"energyScore":        {Type: genai.TypeNumber},
		"energyMessage":      {Type: genai.TypeString},
		"isAllowed":          {Type: genai.TypeBoolean},
		"curatedDescription": {Type: genai.TypeString},
		"suggestedTitle":     {Type: genai.TypeString},
	},
	Required: []string{"energyScore", "energyMessage", "isAllowed", "curatedDescription", "suggestedTitle"},
}

const curatePrompt = `Você é o assistente do app "Martelinho", um app de intermediação de vendas diretas por lances.
NÃO use a palavra "Leilão" de forma oficial. Use termos como "Disputa de Lances", "Oportunidade de Desapego".
Analise este item:
Item: %s
Descrição: %s

1. Certifique-se que o item é de uso comum e não requer registro oficial (como veículos documentados).
2. Crie um "Score de Oportunidade" de 1 a 10.
3. Escreva um comentário empolgante chamando interessados para darem lances.
4. Melhore o título e a descrição para atrair mais interessados.

Retorne em JSON.`

// Suggest asks Gemini to curate a draft. image may be nil.
func (g *Gemini) Suggest(ctx context.Context, title, description string, image []byte) (domain.Suggestion, error) {
	parts := []genai.Part{genai.Text(fmt.Sprintf(curatePrompt, title, description))}
	if len(image) > 0 {
		parts = append(parts, genai.ImageData(imageFormat(image), image))
	}

	txt, err := generate(ctx, g.curator, parts...)
	if err != nil {
		return domain.Suggestion{}, err
	}
	s, err := parseSuggestion(txt)
	if err != nil {
		g.logger.Warn("unparseable curation response", slog.String("raw", truncate(txt, 200)))
		return domain.Suggestion{}, err
	}
	return s, nil
}

// AnnounceBid writes a short call to outbid the current offer.
func (g *Gemini) AnnounceBid(ctx context.Context, title string, currentBid domain.Money) (string, error) {
	prompt := fmt.Sprintf(`O item "%s" recebeu um lance de %s. Incentive outros interessados a cobrirem esse lance agora de forma empolgante, sem usar a palavra "Leiloeiro".`,
		title, currentBid)
	return generate(ctx, g.writer, genai.Text(prompt))
}

// LiveScript writes talking points for a live presentation of the item.
func (g *Gemini) LiveScript(ctx context.Context, title string, currentBid domain.Money, description string) (string, error) {
	prompt := fmt.Sprintf(`Apresentador de ofertas estilo TikTok. O produto é "%s" (Lance atual: %s). Descrição: "%s". Crie argumentos rápidos para eu falar na live incentivando o pessoal a entrar na disputa de lances.`,
		title, currentBid, description)
	return generate(ctx, g.writer, genai.Text(prompt))
}

func generate(ctx context.Context, model *genai.GenerativeModel, parts ...genai.Part) (string, error) {
	resp, err := model.GenerateContent(ctx, parts...)
	if err != nil {
		return "", fmt.Errorf("copygen: generate: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", errors.New("copygen: empty response")
	}
	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if t, ok := p.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	if b.Len() == 0 {
		return "", errors.New("copygen: response has no text")
	}
	return strings.TrimSpace(b.String()), nil
}

// parseSuggestion decodes a curation response, tolerating a fenced code
// block around the JSON. Scores are clamped to 1..10.
func parseSuggestion(txt string) (domain.Suggestion, error) {
	txt = strings.TrimSpace(txt)
	txt = strings.TrimPrefix(txt, "```json")
	txt = strings.TrimPrefix(txt, "```")
	txt = strings.TrimSuffix(txt, "```")

	var raw struct {
		SuggestedTitle     string  `json:"suggestedTitle"`
		CuratedDescription string  `json:"curatedDescription"`
		EnergyScore        float64 `json:"energyScore"`
		EnergyMessage      string  `json:"energyMessage"`
		IsAllowed          *bool   `json:"isAllowed"`
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(txt)), &raw); err != nil {
		return domain.Suggestion{}, fmt.Errorf("copygen: parse suggestion: %w", err)
	}
	if raw.IsAllowed == nil {
		return domain.Suggestion{}, errors.New("copygen: suggestion missing isAllowed")
	}
	score := int(raw.EnergyScore + 0.5)
	score = min(max(score, 1), 10)
	return domain.Suggestion{
		SuggestedTitle:     raw.SuggestedTitle,
		CuratedDescription: raw.CuratedDescription,
		EnergyScore:        score,
		EnergyMessage:      raw.EnergyMessage,
		IsAllowed:          *raw.IsAllowed,
	}, nil
}

// imageFormat returns the genai image format ("jpeg", "png", ...) sniffed
// from data.
func imageFormat(data []byte) string {
	ct := http.DetectContentType(data)
	if f, ok := strings.CutPrefix(ct, "image/"); ok {
		return f
	}
	return "jpeg"
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}
