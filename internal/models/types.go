package models

// EpisodeType is the remote catalog's episode-type code.
type EpisodeType int

const (
	EpisodeRegular EpisodeType = 1
	EpisodeSpecial EpisodeType = 2
	EpisodeCredit  EpisodeType = 3
	EpisodeTrailer EpisodeType = 4
	EpisodeParody  EpisodeType = 5
	EpisodeOther   EpisodeType = 6
)

// Settings is the small persisted settings record: credentials plus the
// session key carried across process restarts.
type Settings struct {
	Username   string
	Password   string
	SessionKey string
}
