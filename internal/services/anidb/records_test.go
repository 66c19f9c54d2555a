package anidb

import (
	"strings"
	"testing"
	"time"
)

func TestUnescapeField(t *testing.T) {
	got := unescapeField("Don`t Toy<br />With Me")
	want := "Don't Toy\nWith Me"
	if got != want {
		t.Errorf("Unescape mismatch: got %q, want %q", got, want)
	}
}

func TestParseEpisode(t *testing.T) {
	line := "2|1|24|850|12|01|Invasion|Shinryaku|侵略|886777600|1"
	episode, err := ParseEpisode(line)
	if err != nil {
		t.Fatalf("Failed to parse episode record: %v", err)
	}
	if episode.EID != 2 || episode.AID != 1 {
		t.Errorf("Unexpected ids: EID=%d AID=%d", episode.EID, episode.AID)
	}
	if episode.EpNo != "01" {
		t.Errorf("Expected epno %q, got %q", "01", episode.EpNo)
	}
	if episode.Eng != "Invasion" {
		t.Errorf("Expected title %q, got %q", "Invasion", episode.Eng)
	}
	if episode.Type != 1 {
		t.Errorf("Expected regular episode, got type %d", episode.Type)
	}
	if !episode.Aired.Equal(time.Unix(886777600, 0)) {
		t.Errorf("Unexpected air date %v", episode.Aired)
	}
}

func TestParseEpisodeShortRecord(t *testing.T) {
	if _, err := ParseEpisode("2|1|24"); err == nil {
		t.Error("Expected error for truncated record")
	}
}

func TestParseAnimeSubLists(t *testing.T) {
	line := "1|0|1998|TV Series|4'5|sequel'prequel|Seikai no Monshou|星界の紋章|Crest of the Stars|CotS'SnM|13|0|884909400|892162800|1.jpg|0|10,20,30|2|1|0|0|0"
	anime, err := ParseAnime(line)
	if err != nil {
		t.Fatalf("Failed to parse anime record: %v", err)
	}
	if len(anime.RelatedAIDs) != 2 || anime.RelatedAIDs[0] != 4 || anime.RelatedAIDs[1] != 5 {
		t.Errorf("Unexpected related aids %v", anime.RelatedAIDs)
	}
	if len(anime.RelatedAIDTypes) != 2 || anime.RelatedAIDTypes[1] != "prequel" {
		t.Errorf("Unexpected related types %v", anime.RelatedAIDTypes)
	}
	if len(anime.CharacterIDs) != 3 || anime.CharacterIDs[2] != 30 {
		t.Errorf("Unexpected character ids %v", anime.CharacterIDs)
	}
	if anime.NSFW {
		t.Error("Expected NSFW to be false")
	}
}

func TestParseAnimeEmptySubList(t *testing.T) {
	line := "1|0|1998|TV Series|||Seikai no Monshou|||'|13|0|884909400|892162800|1.jpg|0||2|1|0|0|0"
	anime, err := ParseAnime(line)
	if err != nil {
		t.Fatalf("Failed to parse anime record: %v", err)
	}
	if len(anime.RelatedAIDs) != 0 {
		t.Errorf("Expected empty related aids, got %v", anime.RelatedAIDs)
	}
	if len(anime.ShortNames) != 0 {
		t.Errorf("Expected empty short names, got %v", anime.ShortNames)
	}
	if len(anime.CharacterIDs) != 0 {
		t.Errorf("Expected empty character ids, got %v", anime.CharacterIDs)
	}
}

func TestParseFile(t *testing.T) {
	line := "312498|1|2|1412|0|177747474|70cd93fd3981cc80a8ea6a646ff805c9|high|very high|DTV|Vorbis (Ogg Vorbis)|104|H264/AVC|800|704x400|japanese|english|1560|A sample description|1304899740"
	file, err := ParseFile(line)
	if err != nil {
		t.Fatalf("Failed to parse file record: %v", err)
	}
	if file.FID != 312498 || file.GID != 1412 {
		t.Errorf("Unexpected ids: FID=%d GID=%d", file.FID, file.GID)
	}
	if file.Size != 177747474 {
		t.Errorf("Unexpected size %d", file.Size)
	}
	if file.Ed2k != "70cd93fd3981cc80a8ea6a646ff805c9" {
		t.Errorf("Unexpected hash %q", file.Ed2k)
	}
	if len(file.AudioBitrates) != 1 || file.AudioBitrates[0] != 104 {
		t.Errorf("Unexpected audio bitrates %v", file.AudioBitrates)
	}
}

func TestScannerStrictBool(t *testing.T) {
	s := newRecordScanner("2")
	s.Bool()
	if s.Err() == nil {
		t.Error("Expected error for non-boolean field")
	}
}

func TestScannerTimestampRange(t *testing.T) {
	s := newRecordScanner("999999999999999")
	s.Timestamp()
	if s.Err() == nil {
		t.Error("Expected error for out of range timestamp")
	}
}

func TestScannerStickyError(t *testing.T) {
	s := newRecordScanner("abc|42")
	s.Int()
	n := s.Int()
	if n != 0 {
		t.Errorf("Expected zero value after error, got %d", n)
	}
	if err := s.Err(); err == nil || !strings.Contains(err.Error(), "field 1") {
		t.Errorf("Expected first failure to stick, got %v", err)
	}
}
