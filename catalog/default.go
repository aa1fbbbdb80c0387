package catalog

// Default returns the built-in catalog used when no catalog file is configured.
func Default() *Catalog {
	c := &Catalog{Rounds: []Round{
		{
			Title:             "Fact or Fiction",
			Theme:             "Common myths, true or false",
			Emoji:             "🕹️",
			PointsPerQuestion: 10,
			Questions: []Question{
				{
					ID:           1,
					Text:         "Fact or Fiction: Goldfish have a memory span of only three seconds.",
					Options:      []string{"Fact", "Fiction"},
					CorrectIndex: 1,
					Explanation:  "Fiction: goldfish can remember things for months.",
				},
				{
					ID:           2,
					Text:         "Fact or Fiction: Honey found in ancient Egyptian tombs was still edible.",
					Options:      []string{"Fact", "Fiction"},
					CorrectIndex: 0,
					Explanation:  "Fact: honey's low moisture and acidity keep it from spoiling.",
				},
				{
					ID:           3,
					Text:         "Fact or Fiction: Lightning never strikes the same place twice.",
					Options:      []string{"Fact", "Fiction"},
					CorrectIndex: 1,
					Explanation:  "Fiction: tall buildings are struck many times a year.",
				},
			},
		},
		{
			Title:             "Around the World",
			Theme:             "Geography and places",
			Emoji:             "🌍",
			PointsPerQuestion: 10,
			Questions: []Question{
				{
					ID:           4,
					Text:         "Which country has the most time zones, counting overseas territories?",
					Options:      []string{"Russia", "United States", "France", "China"},
					CorrectIndex: 2,
					Explanation:  "France spans twelve time zones thanks to its overseas territories.",
				},
				{
					ID:           5,
					Text:         "What is the smallest country in the world by area?",
					Options:      []string{"Monaco", "Vatican City", "San Marino", "Liechtenstein"},
					CorrectIndex: 1,
				},
				{
					ID:           6,
					Text:         "Which river flows through the most countries?",
					Options:      []string{"Nile", "Amazon", "Danube", "Mekong"},
					CorrectIndex: 2,
					Explanation:  "The Danube passes through ten countries.",
				},
			},
		},
		{
			Title:             "By the Numbers",
			Theme:             "Facts that add up",
			Emoji:             "🔢",
			PointsPerQuestion: 10,
			Questions: []Question{
				{
					ID:           7,
					Text:         "How many bones are in the adult human body?",
					Options:      []string{"186", "206", "226", "256"},
					CorrectIndex: 1,
				},
				{
					ID:           8,
					Text:         "How many keys are on a standard piano?",
					Options:      []string{"76", "82", "88", "92"},
					CorrectIndex: 2,
				},
			},
		},
		{
			Title:             "Final Round: Price is Right!",
			Theme:             "Closest without going over wins",
			Emoji:             "⚡",
			PointsPerQuestion: 20,
			Questions: []Question{
				{
					ID:          9,
					Text:        "How many steps does it take to climb from the ground to the top of the Eiffel Tower? (Closest without going over wins!)",
					Type:        OpenEnded,
					Target:      1665,
					Explanation: "There are 1,665 steps from the ground to the top.",
				},
			},
		},
	}}
	c.applyDefaults()
	return c
}
