package lifecycle

import (
	"fmt"
	"time"

	"github.com/martelinho/martelinho/internal/domain"
)

// Seed returns the storefront shown when no listings have been stored yet.
// Their bid history is synthetic: bidders have no account, so no funds are
// held for them.
func Seed(now time.Time) []domain.Listing {
	drill := domain.Listing{
		ID:          "1",
		Title:       "Furadeira Bosch Profissional",
		Description: "Pouco uso, potente e com maleta. Ideal para quem faz bicos.",
		Category:    "Ferramentas & Construção",
		StartingBid: domain.Reais(120),
		ImageURLs: []string{
			"https://images.unsplash.com/photo-1504148455328-497c596d229f?q=80&w=600&auto=format&fit=crop",
			"https://images.unsplash.com/photo-1581539250439-c96689b516dd?q=80&w=600&auto=format&fit=crop",
		},
		SellerID:         "seller_1",
		SellerName:       "Marcos_Bicos",
		SellerReputation: 92,
		EndTime:          now.Add(4 * time.Hour),
		Status:           domain.StatusActive,
		EnergyScore:      9,
		EnergyMessage:    "Oportunidade de ouro! Lance imbatível.",
		Location:         "São Paulo, SP",
		DeliveryInfo:     "Entrego em mãos na Linha Vermelha do Metrô.",
		AcceptsSwap:      true,
		SwapInterests:    "Aceito ferramentas manuais.",
		IsLiveFeatured:   true,
		CreatedAt:        now.Add(-20 * time.Hour),
	}
	guitar := domain.Listing{
		ID:          "2",
		Title:       "Guitarra Giannini Antiga",
		Description: "Som vintage, precisa de cordas novas. O captador da ponte está com mau contato intermitente. Um achado para colecionador que saiba mexer.",
		Category:    "Instrumentos Musicais",
		StartingBid: domain.Reais(250),
		ImageURLs: []string{
			"https://images.unsplash.com/photo-1550291652-6ea9114a47b1?q=80&w=600&auto=format&fit=crop",
			"https://images.unsplash.com/photo-1605020420620-20c943cc4669?q=80&w=600&auto=format&fit=crop",
		},
		SellerID:         "seller_2",
		SellerName:       "Rock_Store",
		SellerReputation: 88,
		EndTime:          now.Add(20 * time.Hour),
		Status:           domain.StatusActive,
		EnergyScore:      10,
		EnergyMessage:    "Relíquia pura! Vai sair rápido.",
		Location:         "Rio de Janeiro, RJ",
		DeliveryInfo:     "Combinar retirada.",
		HasDefects:       true,
		IsLiveFeatured:   true,
		CreatedAt:        now.Add(-28 * time.Hour),
	}
	seedBids(&drill, domain.Reais(185), 8, now)
	seedBids(&guitar, domain.Reais(310), 12, now)
	return []domain.Listing{drill, guitar}
}

// seedBids fills l with n evenly spaced anonymous bids climbing from the
// starting bid to top, most recent first.
func seedBids(l *domain.Listing, top domain.Money, n int, now time.Time) {
	step := (top - l.StartingBid) / domain.Money(n)
	l.Bids = make([]domain.Bid, 0, n)
	l.SwapOffers = []domain.SwapOffer{}
	l.ChatMessages = []domain.Message{}
	for i := range n {
		amount := top - step*domain.Money(i)
		l.Bids = append(l.Bids, domain.Bid{
			ID:         fmt.Sprintf("seed-%s-%02d", l.ID, n-i),
			BidderName: fmt.Sprintf("comprador_%d", (i%3)+1),
			Amount:     amount,
			Timestamp:  now.Add(-time.Duration(i+1) * 17 * time.Minute),
		})
	}
	l.CurrentBid = top
	l.BidCount = n
	l.Winner = &domain.Winner{Name: l.Bids[0].BidderName}
}
