package anidb

import (
	"fmt"
	"strconv"
	"strings"
)

// Code is a protocol response code. The vocabulary is fixed: a code outside
// it fails response parsing outright.
type Code int

const (
	CodeLoginAccepted           Code = 200
	CodeLoginAcceptedNewVersion Code = 201
	CodeFile                    Code = 220
	CodeAnime                   Code = 230
	CodeEpisode                 Code = 240
	CodeGroup                   Code = 250
	CodePong                    Code = 300
	CodeNoSuchFile              Code = 320
	CodeNoSuchAnime             Code = 330
	CodeNoSuchEpisode           Code = 340
	CodeNoSuchGroup             Code = 350
	CodeLoginFailed             Code = 500
	CodeLoginFirst              Code = 501
	CodeAccessDenied            Code = 502
	CodeClientVersionOutdated   Code = 503
	CodeClientBanned            Code = 504
	CodeIllegalInput            Code = 505
	CodeInvalidSession          Code = 506
	CodeBanned                  Code = 555
	CodeUnknownCommand          Code = 598
	CodeInternalServerError     Code = 600
	CodeOutOfService            Code = 601
	CodeServerBusy              Code = 602
)

var codeNames = map[Code]string{
	CodeLoginAccepted:           "LOGIN_ACCEPTED",
	CodeLoginAcceptedNewVersion: "LOGIN_ACCEPTED_NEW_VERSION",
	CodeFile:                    "FILE",
	CodeAnime:                   "ANIME",
	CodeEpisode:                 "EPISODE",
	CodeGroup:                   "GROUP",
	CodePong:                    "PONG",
	CodeNoSuchFile:              "NO_SUCH_FILE",
	CodeNoSuchAnime:             "NO_SUCH_ANIME",
	CodeNoSuchEpisode:           "NO_SUCH_EPISODE",
	CodeNoSuchGroup:             "NO_SUCH_GROUP",
	CodeLoginFailed:             "LOGIN_FAILED",
	CodeLoginFirst:              "LOGIN_FIRST",
	CodeAccessDenied:            "ACCESS_DENIED",
	CodeClientVersionOutdated:   "CLIENT_VERSION_OUTDATED",
	CodeClientBanned:            "CLIENT_BANNED",
	CodeIllegalInput:            "ILLEGAL_INPUT_OR_ACCESS_DENIED",
	CodeInvalidSession:          "INVALID_SESSION",
	CodeBanned:                  "BANNED",
	CodeUnknownCommand:          "UNKNOWN_COMMAND",
	CodeInternalServerError:     "INTERNAL_SERVER_ERROR",
	CodeOutOfService:            "OUT_OF_SERVICE",
	CodeServerBusy:              "SERVER_BUSY",
}

// String returns the protocol name of the code
func (c Code) String() string {
	if name, ok := codeNames[c]; ok {
		return fmt.Sprintf("%d %s", int(c), name)
	}
	return strconv.Itoa(int(c))
}

// Response is a decoded protocol response: status line plus raw record lines.
type Response struct {
	Code    Code
	Message string
	Records []string
}

// ParseResponse decodes a response datagram. The first line is
// "<code> <message>", every following newline-terminated line is one record.
func ParseResponse(raw string) (*Response, error) {
	lines := strings.Split(strings.TrimRight(raw, "\n"), "\n")

	first := lines[0]
	codeStr, message, ok := strings.Cut(first, " ")
	if !ok {
		return nil, fmt.Errorf("malformed status line %q", first)
	}

	num, err := strconv.Atoi(codeStr)
	if err != nil {
		return nil, fmt.Errorf("malformed response code %q: %w", codeStr, err)
	}

	code := Code(num)
	if _, known := codeNames[code]; !known {
		return nil, fmt.Errorf("unknown response code %d in %q", num, first)
	}

	var records []string
	for _, line := range lines[1:] {
		if line != "" {
			records = append(records, line)
		}
	}

	return &Response{
		Code:    code,
		Message: strings.TrimSpace(message),
		Records: records,
	}, nil
}

// Data returns the first whitespace-delimited word of the message. Responses
// that carry a transient token, such as the session key in
// "200 xxxx LOGIN ACCEPTED", put it there.
func (r *Response) Data() string {
	word, _, _ := strings.Cut(r.Message, " ")
	return word
}
