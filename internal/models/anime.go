package models

import "time"

// Anime represents one show from the remote catalog. Rows are written
// wholesale on first resolution and never partially mutated.
type Anime struct {
	AID uint32 `boltholdKey:"AID"`

	DateFlags int
	Year      string
	Type      string

	// Parallel lists: RelatedAIDs[i] relates with type RelatedAIDTypes[i].
	RelatedAIDs     []uint32
	RelatedAIDTypes []string

	RomajiName  string
	KanjiName   string
	EnglishName string
	ShortNames  []string

	Episodes       int
	SpecialEpCount int

	AirDate time.Time
	EndDate time.Time

	Picname      string
	NSFW         bool
	CharacterIDs []uint32

	SpecialsCount int
	CreditsCount  int
	OtherCount    int
	TrailerCount  int
	ParodyCount   int
}

// Episode represents one episode of a show. EpNo is alphanumeric
// ("1", "C1", "S2"), not a plain number.
type Episode struct {
	EID uint32 `boltholdKey:"EID"`
	AID uint32 `boltholdIndex:"AID"`

	Length int // minutes
	Rating int
	Votes  int

	EpNo   string
	Eng    string
	Romaji string
	Kanji  string

	Aired time.Time
	Type  EpisodeType
}
