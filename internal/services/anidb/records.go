package anidb

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/asakaze/anidex/internal/models"
)

// Epoch-second bounds accepted for wire timestamps, years 1 through 9999.
const (
	minTimestamp = -62135596800
	maxTimestamp = 253402300799
)

// recordScanner walks the |-delimited fields of one record line. The first
// failure sticks; callers read fields without per-field error checks and
// consult Err once at the end, like bufio.Scanner.
type recordScanner struct {
	fields []string
	pos    int
	err    error
}

func newRecordScanner(line string) *recordScanner {
	return &recordScanner{fields: strings.Split(line, "|")}
}

func (s *recordScanner) Err() error {
	return s.err
}

func (s *recordScanner) fail(err error) {
	if s.err == nil {
		s.err = err
	}
}

func (s *recordScanner) next() string {
	if s.err != nil {
		return ""
	}
	if s.pos >= len(s.fields) {
		s.fail(fmt.Errorf("record ended after %d fields", s.pos))
		return ""
	}
	field := s.fields[s.pos]
	s.pos++
	return field
}

// Str reads one field with the global unescape applied
func (s *recordScanner) Str() string {
	return unescapeField(s.next())
}

// Bool reads a strict 1/0 field
func (s *recordScanner) Bool() bool {
	field := s.next()
	switch field {
	case "1":
		return true
	case "0":
		return false
	default:
		s.fail(fmt.Errorf("field %d: %q is not a boolean", s.pos, field))
		return false
	}
}

// Int reads a decimal integer field
func (s *recordScanner) Int() int {
	field := s.next()
	n, err := strconv.Atoi(field)
	if err != nil {
		s.fail(fmt.Errorf("field %d: %w", s.pos, err))
		return 0
	}
	return n
}

// Int64 reads a decimal 64-bit integer field
func (s *recordScanner) Int64() int64 {
	field := s.next()
	n, err := strconv.ParseInt(field, 10, 64)
	if err != nil {
		s.fail(fmt.Errorf("field %d: %w", s.pos, err))
		return 0
	}
	return n
}

// Uint32 reads a decimal unsigned id field
func (s *recordScanner) Uint32() uint32 {
	field := s.next()
	n, err := strconv.ParseUint(field, 10, 32)
	if err != nil {
		s.fail(fmt.Errorf("field %d: %w", s.pos, err))
		return 0
	}
	return uint32(n)
}

// Timestamp reads an epoch-seconds field. Values outside years 1..9999 are
// a parse error rather than a wraparound.
func (s *recordScanner) Timestamp() time.Time {
	secs := s.Int64()
	if s.err != nil {
		return time.Time{}
	}
	if secs < minTimestamp || secs > maxTimestamp {
		s.fail(fmt.Errorf("field %d: timestamp %d out of range", s.pos, secs))
		return time.Time{}
	}
	return time.Unix(secs, 0).UTC()
}

// StrList reads a sub-list field split on sep, empty elements dropped
func (s *recordScanner) StrList(sep string) []string {
	var out []string
	for _, item := range strings.Split(s.next(), sep) {
		if item != "" {
			out = append(out, unescapeField(item))
		}
	}
	return out
}

// IntList reads a sub-list of decimal integers split on sep
func (s *recordScanner) IntList(sep string) []int {
	var out []int
	for _, item := range strings.Split(s.next(), sep) {
		if item == "" {
			continue
		}
		n, err := strconv.Atoi(item)
		if err != nil {
			s.fail(fmt.Errorf("field %d: %w", s.pos, err))
			return nil
		}
		out = append(out, n)
	}
	return out
}

// Uint32List reads a sub-list of decimal ids split on sep
func (s *recordScanner) Uint32List(sep string) []uint32 {
	var out []uint32
	for _, item := range strings.Split(s.next(), sep) {
		if item == "" {
			continue
		}
		n, err := strconv.ParseUint(item, 10, 32)
		if err != nil {
			s.fail(fmt.Errorf("field %d: %w", s.pos, err))
			return nil
		}
		out = append(out, uint32(n))
	}
	return out
}

func unescapeField(s string) string {
	s = strings.ReplaceAll(s, "`", "'")
	return strings.ReplaceAll(s, "<br />", "\n")
}

// ParseAnime decodes one ANIME record line. Field order is part of the wire
// contract and mirrors the amask the client requests.
func ParseAnime(line string) (*models.Anime, error) {
	s := newRecordScanner(line)

	anime := &models.Anime{
		AID:             s.Uint32(),
		DateFlags:       s.Int(),
		Year:            s.Str(),
		Type:            s.Str(),
		RelatedAIDs:     s.Uint32List("'"),
		RelatedAIDTypes: s.StrList("'"),
		RomajiName:      s.Str(),
		KanjiName:       s.Str(),
		EnglishName:     s.Str(),
		ShortNames:      s.StrList("'"),
		Episodes:        s.Int(),
		SpecialEpCount:  s.Int(),
		AirDate:         s.Timestamp(),
		EndDate:         s.Timestamp(),
		Picname:         s.Str(),
		NSFW:            s.Bool(),
		CharacterIDs:    s.Uint32List(","),
		SpecialsCount:   s.Int(),
		CreditsCount:    s.Int(),
		OtherCount:      s.Int(),
		TrailerCount:    s.Int(),
		ParodyCount:     s.Int(),
	}

	if err := s.Err(); err != nil {
		return nil, fmt.Errorf("anime record %q: %w", line, err)
	}
	return anime, nil
}

// ParseEpisode decodes one EPISODE record line
func ParseEpisode(line string) (*models.Episode, error) {
	s := newRecordScanner(line)

	episode := &models.Episode{
		EID:    s.Uint32(),
		AID:    s.Uint32(),
		Length: s.Int(),
		Rating: s.Int(),
		Votes:  s.Int(),
		EpNo:   s.Str(),
		Eng:    s.Str(),
		Romaji: s.Str(),
		Kanji:  s.Str(),
		Aired:  s.Timestamp(),
		Type:   models.EpisodeType(s.Int()),
	}

	if err := s.Err(); err != nil {
		return nil, fmt.Errorf("episode record %q: %w", line, err)
	}
	return episode, nil
}

// ParseFile decodes one FILE record line
func ParseFile(line string) (*models.File, error) {
	s := newRecordScanner(line)

	file := &models.File{
		FID:              s.Uint32(),
		AID:              s.Uint32(),
		EID:              s.Uint32(),
		GID:              s.Uint32(),
		State:            s.Int(),
		Size:             s.Int64(),
		Ed2k:             s.Str(),
		ColourDepth:      s.Str(),
		Quality:          s.Str(),
		Source:           s.Str(),
		AudioCodecs:      s.StrList("'"),
		AudioBitrates:    s.IntList("'"),
		VideoCodecs:      s.StrList("'"),
		VideoBitrates:    s.StrList("'"),
		VideoResolutions: s.StrList("'"),
		DubLanguage:      s.Str(),
		SubLanguage:      s.Str(),
		LengthSeconds:    s.Int(),
		Description:      s.Str(),
		AiredDate:        s.Timestamp(),
	}

	if err := s.Err(); err != nil {
		return nil, fmt.Errorf("file record %q: %w", line, err)
	}
	return file, nil
}

// ParseGroup decodes one GROUP record line
func ParseGroup(line string) (*models.Group, error) {
	s := newRecordScanner(line)

	group := &models.Group{
		GID:              s.Uint32(),
		Rating:           s.Int(),
		Votes:            s.Int(),
		AnimeCount:       s.Int(),
		FileCount:        s.Int(),
		Name:             s.Str(),
		ShortName:        s.Str(),
		IRCChannel:       s.Str(),
		IRCServer:        s.Str(),
		URL:              s.Str(),
		Picname:          s.Str(),
		FoundedDate:      s.Timestamp(),
		DisbandedDate:    s.Timestamp(),
		DateFlags:        s.Int(),
		LastReleaseDate:  s.Timestamp(),
		LastActivityDate: s.Timestamp(),
		Relations:        s.Str(),
	}

	if err := s.Err(); err != nil {
		return nil, fmt.Errorf("group record %q: %w", line, err)
	}
	return group, nil
}
