package catalog

// AstrologyKundali is the one offering that needs the customer's birth details.
const AstrologyKundali = "astrology-kundali"

// Entry is one bookable offering. Price is in whole rupees and is fixed at build time.
type Entry struct {
	ID                   string `json:"id"`
	Label                string `json:"label"`
	Price                int64  `json:"price"`
	Description          string `json:"description"`
	Suggestion           string `json:"suggestion"`
	RequiresBirthDetails bool   `json:"requiresBirthDetails"`
}

type Catalog struct {
	entries []Entry
	byID    map[string]Entry
}

func New(entries ...Entry) *Catalog {
	c := &Catalog{byID: make(map[string]Entry, len(entries))}
	for _, e := range entries {
		if _, dup := c.byID[e.ID]; dup {
			continue
		}
		c.entries = append(c.entries, e)
		c.byID[e.ID] = e
	}
	return c
}

// Default returns the offerings sold on the site.
func Default() *Catalog {
	return New(
		Entry{
			ID:          "ganesh-pooja",
			Label:       "Ganesh Pooja",
			Price:       1100,
			Description: "Invocation of Lord Ganesha to remove obstacles before a new beginning.",
			Suggestion:  "Ideal before starting a business, exam or journey.",
		},
		Entry{
			ID:          "satyanarayan-katha",
			Label:       "Satyanarayan Katha",
			Price:       2100,
			Description: "Recitation of the Satyanarayan Katha with family participation.",
			Suggestion:  "Performed on Purnima or after fulfilment of a wish.",
		},
		Entry{
			ID:          "rudrabhishek",
			Label:       "Rudrabhishek",
			Price:       3100,
			Description: "Abhishek of the Shivling with Rudri path.",
			Suggestion:  "Recommended on Mondays and during Shravan.",
		},
		Entry{
			ID:          "navgraha-shanti",
			Label:       "Navgraha Shanti",
			Price:       2500,
			Description: "Pacification of the nine planets through havan and mantra.",
			Suggestion:  "Suggested when a kundali shows malefic planetary periods.",
		},
		Entry{
			ID:          "griha-pravesh",
			Label:       "Griha Pravesh",
			Price:       5100,
			Description: "House warming ceremony with vastu pooja.",
			Suggestion:  "Book on an auspicious muhurat before moving in.",
		},
		Entry{
			ID:                   AstrologyKundali,
			Label:                "Astrology Kundali Analysis",
			Price:                251,
			Description:          "Detailed birth chart reading by an experienced astrologer.",
			Suggestion:           "Keep exact birth time and place ready.",
			RequiresBirthDetails: true,
		},
	)
}

func (c *Catalog) Lookup(id string) (Entry, bool) {
	e, ok := c.byID[id]
	return e, ok
}

// All returns the entries in declaration order.
func (c *Catalog) All() []Entry {
	out := make([]Entry, len(c.entries))
	copy(out, c.entries)
	return out
}

// Price returns the fixed price of id, or 0 when id is not in the catalog.
func (c *Catalog) Price(id string) int64 {
	return c.byID[id].Price
}
