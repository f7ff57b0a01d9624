package domain

import "context"

// Suggestion is the copy-generation verdict for a listing draft.
type Suggestion struct {
	SuggestedTitle     string `json:"suggestedTitle"`
	CuratedDescription string `json:"curatedDescription"`
	EnergyScore        int    `json:"energyScore"`
	EnergyMessage      string `json:"energyMessage"`
	IsAllowed          bool   `json:"isAllowed"`
}

// CopyGenerator produces advisory listing copy. Only Suggest's IsAllowed
// flag ever gates a transition.
type CopyGenerator interface {
	Suggest(ctx context.Context, title, description string, image []byte) (Suggestion, error)
	AnnounceBid(ctx context.Context, title string, currentBid Money) (string, error)
	LiveScript(ctx context.Context, title string, currentBid Money, description string) (string, error)
}
