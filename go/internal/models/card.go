package models

// Card is a single item on the table or in a hand.
type Card struct {
	ID       string `json:"id"`
	Suit     string `json:"suit"`
	Value    int    `json:"value"`
	ImageURL string `json:"image_url,omitempty"`
}

// FindCard returns the card with the given id, or false when absent.
func FindCard(cards []Card, id string) (Card, bool) {
	for _, c := range cards {
		if c.ID == id {
			return c, true
		}
	}
	return Card{}, false
}
