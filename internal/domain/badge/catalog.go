package badge

import "time"

// ══════════════════════════════════════════════════════════════════════════════
// BADGE CATALOG
// Неизменяемый каталог достижений. Строится один раз на старте и внедряется
// в движок; глобального изменяемого состояния нет.
// ══════════════════════════════════════════════════════════════════════════════

// Catalog - упорядоченный неизменяемый набор определений бейджей.
type Catalog struct {
	ordered []Badge
	byID    map[ID]Badge
}

// NewCatalog создаёт каталог из определений. Дубликаты ID перезаписываются
// последним определением.
func NewCatalog(badges ...Badge) Catalog {
	c := Catalog{
		ordered: make([]Badge, 0, len(badges)),
		byID:    make(map[ID]Badge, len(badges)),
	}
	for _, b := range badges {
		if _, dup := c.byID[b.ID]; !dup {
			c.ordered = append(c.ordered, b)
		}
		c.byID[b.ID] = b
	}
	return c
}

// Get возвращает определение бейджа по ID.
func (c Catalog) Get(id ID) (Badge, bool) {
	b, ok := c.byID[id]
	return b, ok
}

// All возвращает все определения в каталожном порядке.
func (c Catalog) All() []Badge {
	out := make([]Badge, len(c.ordered))
	copy(out, c.ordered)
	return out
}

// Len возвращает размер каталога.
func (c Catalog) Len() int {
	return len(c.ordered)
}

// DefaultCatalog возвращает штатный каталог Movie Night Hub.
func DefaultCatalog() Catalog {
	return NewCatalog(
		// Movie count
		Badge{ID: "first_blood", Name: "First Blood", Description: "Watch your first horror movie", Emoji: "🎭", Type: TypeMovieCount, Rarity: RarityCommon, Requirement: MovieCount{Count: 1}},
		Badge{ID: "rising_terror", Name: "Rising Terror", Description: "Watch 5 horror movies", Emoji: "🔥", Type: TypeMovieCount, Rarity: RarityCommon, Requirement: MovieCount{Count: 5}},
		Badge{ID: "ghost_hunter", Name: "Ghost Hunter", Description: "Watch 10 horror movies", Emoji: "👻", Type: TypeMovieCount, Rarity: RarityRare, Requirement: MovieCount{Count: 10}},
		Badge{ID: "vampire_lord", Name: "Vampire Lord", Description: "Watch 25 horror movies", Emoji: "🧛", Type: TypeMovieCount, Rarity: RarityRare, Requirement: MovieCount{Count: 25}},
		Badge{ID: "death_collector", Name: "Death Collector", Description: "Watch 50 horror movies", Emoji: "💀", Type: TypeMovieCount, Rarity: RarityEpic, Requirement: MovieCount{Count: 50}},
		Badge{ID: "horror_legend", Name: "Horror Legend", Description: "Watch 100 horror movies", Emoji: "🌟", Type: TypeMovieCount, Rarity: RarityLegendary, Requirement: MovieCount{Count: 100}},

		// Time based
		Badge{ID: "night_owl", Name: "Night Owl", Description: "Watch a movie past midnight", Emoji: "🌙", Type: TypeTimeBased, Rarity: RarityCommon, Requirement: LateNightFinish{}},
		Badge{ID: "endurance", Name: "Endurance Runner", Description: "Watch 6+ hours in one session", Emoji: "⏳", Type: TypeTimeBased, Rarity: RarityRare, Requirement: MarathonSession{Minutes: 360}},
		Badge{ID: "weekend_warrior", Name: "Weekend Warrior", Description: "Watch 3+ movies in one weekend", Emoji: "📅", Type: TypeTimeBased, Rarity: RarityCommon, Requirement: WeekendBinge{Count: 3}},

		// Genre specialists
		Badge{ID: "slasher_expert", Name: "Slasher Expert", Description: "Watch 10 slasher films", Emoji: "🔪", Type: TypeGenreSpecialist, Rarity: RarityRare, Requirement: GenreSpecialist{Genre: "slasher", Count: 10}},
		Badge{ID: "paranormal_investigator", Name: "Paranormal Investigator", Description: "Watch 10 supernatural films", Emoji: "👻", Type: TypeGenreSpecialist, Rarity: RarityRare, Requirement: GenreSpecialist{Genre: "supernatural", Count: 10}},
		Badge{ID: "mind_bender", Name: "Mind Bender", Description: "Watch 10 psychological thrillers", Emoji: "🧠", Type: TypeGenreSpecialist, Rarity: RarityRare, Requirement: GenreSpecialist{Genre: "psychological", Count: 10}},
		Badge{ID: "zombie_apocalypse", Name: "Zombie Apocalypse", Description: "Watch 10 zombie films", Emoji: "🧟", Type: TypeGenreSpecialist, Rarity: RarityRare, Requirement: GenreSpecialist{Genre: "zombie", Count: 10}},
		Badge{ID: "haunted_house", Name: "Haunted House", Description: "Watch 10 haunted house films", Emoji: "🏠", Type: TypeGenreSpecialist, Rarity: RarityRare, Requirement: GenreSpecialist{Genre: "haunted", Count: 10}},

		// Social
		Badge{ID: "democracy", Name: "Democracy", Description: "Vote in 10 next-up polls", Emoji: "🗳️", Type: TypeSocial, Rarity: RarityCommon, Requirement: SocialCounter{Metric: MetricVotesCast, Count: 10}},
		Badge{ID: "trendsetter", Name: "Trendsetter", Description: "Request 5 movies that get watched", Emoji: "🎯", Type: TypeSocial, Rarity: RarityRare, Requirement: SocialCounter{Metric: MetricMoviesRequested, Count: 5}},
		Badge{ID: "commentary_king", Name: "Commentary King", Description: "Trigger 50 AI responses", Emoji: "💬", Type: TypeSocial, Rarity: RarityRare, Requirement: SocialCounter{Metric: MetricAIInteractions, Count: 50}},

		// Special achievements
		Badge{ID: "halloween_legend", Name: "Halloween Legend", Description: "Watch on Halloween night", Emoji: "🎃", Type: TypeSpecialAchievement, Rarity: RarityEpic, Requirement: HolidayWatch{Month: time.October, Day: 31}},
		Badge{ID: "chosen_one", Name: "The Chosen One", Description: "Trigger AI responses 100 times", Emoji: "🕷️", Type: TypeSpecialAchievement, Rarity: RarityLegendary, Requirement: SocialCounter{Metric: MetricAIInteractions, Count: 100}},
		Badge{ID: "directors_cut", Name: "Director's Cut", Description: "Watch complete filmography of a director (5+ films)", Emoji: "🎬", Type: TypeSpecialAchievement, Rarity: RarityEpic, Requirement: DirectorFilmography{Count: 5}},
		Badge{ID: "bingo_master", Name: "Horror Bingo Master", Description: "Get your first bingo in Horror Bingo", Emoji: "🎰", Type: TypeSpecialAchievement, Rarity: RarityRare, Requirement: ManualGrant{}},

		// Streaks
		Badge{ID: "dedicated", Name: "Dedicated", Description: "Watch movies 3 days in a row", Emoji: "🔥", Type: TypeStreak, Rarity: RarityCommon, Requirement: StreakDays{Days: 3}},
		Badge{ID: "marathon_runner", Name: "Marathon Runner", Description: "Watch movies 7 days in a row", Emoji: "🏃", Type: TypeStreak, Rarity: RarityRare, Requirement: StreakDays{Days: 7}},
		Badge{ID: "unstoppable", Name: "Unstoppable", Description: "Watch movies 14 days in a row", Emoji: "⚡", Type: TypeStreak, Rarity: RarityEpic, Requirement: StreakDays{Days: 14}},
		Badge{ID: "living_legend", Name: "Living Legend", Description: "Watch movies 30 days in a row", Emoji: "👑", Type: TypeStreak, Rarity: RarityLegendary, Requirement: StreakDays{Days: 30}},
	)
}
