package models

import "time"

// File represents one release file known to the remote catalog, keyed by its
// remote id and addressable by (size, ed2k) as well. The codec/bitrate lists
// are parallel: one audio codec per one audio bitrate.
type File struct {
	FID uint32 `boltholdKey:"FID"`
	AID uint32 `boltholdIndex:"AID"`
	EID uint32
	GID uint32

	State int
	Size  int64  `boltholdIndex:"Size"`
	Ed2k  string `boltholdIndex:"Ed2k"` // lower-case hex content fingerprint

	ColourDepth string
	Quality     string
	Source      string

	AudioCodecs      []string
	AudioBitrates    []int
	VideoCodecs      []string
	VideoBitrates    []string
	VideoResolutions []string

	DubLanguage string
	SubLanguage string

	LengthSeconds int
	Description   string
	AiredDate     time.Time
}

// Group represents a release group from the remote catalog.
type Group struct {
	GID uint32 `boltholdKey:"GID"`

	Rating     int
	Votes      int
	AnimeCount int
	FileCount  int

	Name      string
	ShortName string

	IRCChannel string
	IRCServer  string
	URL        string
	Picname    string

	FoundedDate      time.Time
	DisbandedDate    time.Time
	DateFlags        int
	LastReleaseDate  time.Time
	LastActivityDate time.Time

	Relations string
}

// IndexedFile maps a local path to a catalog file. FID is nil when the file
// was hashed but the remote catalog does not know it — the row still exists
// so the next scan does not re-hash it.
type IndexedFile struct {
	Path     string `boltholdKey:"Path"`
	Filename string `boltholdIndex:"Filename"`
	Size     int64

	FID  *uint32
	Ed2k string

	FirstSeen   time.Time
	LastUpdated time.Time
}
