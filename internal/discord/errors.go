package discord

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/aatumaykin/purgebot/internal/purge"
	"github.com/bwmarrin/discordgo"
)

// Discord JSON error codes.
const (
	codeUnknownChannel     = 10003
	codeUnknownMessage     = 10008
	codeMissingAccess      = 50001
	codeMissingPermissions = 50013
)

// classify maps a discordgo error onto the purge error taxonomy.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}

	var restErr *discordgo.RESTError
	if !errors.As(err, &restErr) {
		return &purge.PlatformError{Op: op, Err: err}
	}

	status := 0
	if restErr.Response != nil {
		status = restErr.Response.StatusCode
	}
	code := 0
	if restErr.Message != nil {
		code = restErr.Message.Code
	}

	switch {
	case code == codeUnknownChannel || (status == http.StatusNotFound && code != codeUnknownMessage):
		return fmt.Errorf("%s: %w", op, purge.ErrChannelNotFound)
	case status == http.StatusForbidden || code == codeMissingAccess || code == codeMissingPermissions:
		return fmt.Errorf("%s: %w", op, purge.ErrForbidden)
	default:
		return &purge.PlatformError{Op: op, StatusCode: status, Err: err}
	}
}

// isUnknownMessage reports a delete of a message that is already gone.
func isUnknownMessage(err error) bool {
	var restErr *discordgo.RESTError
	return errors.As(err, &restErr) && restErr.Message != nil && restErr.Message.Code == codeUnknownMessage
}
