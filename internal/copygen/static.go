package copygen

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/martelinho/martelinho/internal/domain"
)

// Static is the CopyGenerator used when no Gemini key is configured. It
// allows every item and returns canned copy.
type Static struct{}

var _ domain.CopyGenerator = Static{}

func (Static) Suggest(_ context.Context, title, description string, _ []byte) (domain.Suggestion, error) {
	return domain.Suggestion{
		SuggestedTitle:     title,
		CuratedDescription: description,
		EnergyScore:        7,
		EnergyMessage:      "Oportunidade de desapego! Dê seu lance.",
		IsAllowed:          true,
	}, nil
}

func (Static) AnnounceBid(_ context.Context, title string, currentBid domain.Money) (string, error) {
	return fmt.Sprintf("%s está em %s! Quem cobre esse lance?", title, currentBid), nil
}

func (Static) LiveScript(_ context.Context, title string, currentBid domain.Money, description string) (string, error) {
	return fmt.Sprintf("Olha só: %s, lance atual %s. %s Entra na disputa agora!", title, currentBid, description), nil
}

// DecodeDataURL extracts the payload of a base64 "data:" URL, the form the
// storefront uploads images in.
func DecodeDataURL(u string) ([]byte, error) {
	rest, ok := strings.CutPrefix(u, "data:")
	if !ok {
		return nil, errors.New("copygen: not a data URL")
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok || !strings.HasSuffix(meta, ";base64") {
		return nil, errors.New("copygen: data URL is not base64")
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("copygen: decode data URL: %w", err)
	}
	return data, nil
}
