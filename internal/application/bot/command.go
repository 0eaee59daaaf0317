// Package bot turns inbound chat messages into table replies.
package bot

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/dilly/tablebot/internal/domain/table"
)

// DefaultPrompt is sent to the analytics API for "get table"
const DefaultPrompt = "compare CA janvier 2024 et 2025"

// FailureText is replied when the table flow fails
const FailureText = "Failed to fetch or generate table"

// CommandKind classifies an inbound message
type CommandKind string

const (
	// CommandEcho replies "Echo: <text>"
	CommandEcho CommandKind = "echo"
	// CommandTable renders the default prompt for the default shop
	CommandTable CommandKind = "table"
	// CommandCompare renders a user prompt, optionally for a named shop
	CommandCompare CommandKind = "compare"
)

const (
	getTableCommand = "get table"
	comparePrefix   = "compare ca"
	shopSeparator   = "for"
	pdfPrefix       = "render pdf "
	pdfSuffix       = " as pdf"
)

// Command is a parsed inbound message
type Command struct {
	Kind CommandKind
	// Text is the trimmed, lower-cased message
	Text string
	// Prompt is the analytics prompt; for a compare with a shop candidate it is
	// the part before "for"
	Prompt string
	// ShopClause is set when a compare command names a shop with "for"
	ShopClause bool
	// ShopCandidate is the part after the first "for" of a compare command
	ShopCandidate string
	// Target is the artifact format to reply with
	Target table.RenderTarget
}

// IsTableRequest reports whether the command triggers the table flow
func (c Command) IsTableRequest() bool {
	return c.Kind == CommandTable || c.Kind == CommandCompare
}

// ParseCommand parses text with the built-in default prompt
func ParseCommand(text string) Command {
	return ParseCommandWithDefault(text, DefaultPrompt)
}

// ParseCommandWithDefault parses an inbound message. "get table" uses
// defaultPrompt; "compare ca ..." uses the message itself as the prompt.
// A "render pdf " prefix or " as pdf" suffix on a table command selects
// the document target.
func ParseCommandWithDefault(text, defaultPrompt string) Command {
	normalized := cases.Lower(language.Und).String(strings.TrimSpace(text))
	cmd := Command{
		Kind:   CommandEcho,
		Text:   normalized,
		Target: table.RenderTargetRaster,
	}

	body, target := stripTarget(normalized)

	switch {
	case body == getTableCommand:
		cmd.Kind = CommandTable
		cmd.Prompt = defaultPrompt
		cmd.Target = target
	case strings.HasPrefix(body, comparePrefix):
		cmd.Kind = CommandCompare
		cmd.Prompt = body
		cmd.Target = target
		if parts := strings.Split(body, shopSeparator); len(parts) > 1 {
			// the candidate is the segment between the first and second "for"
			cmd.ShopClause = true
			cmd.Prompt = strings.TrimSpace(parts[0])
			cmd.ShopCandidate = strings.TrimSpace(parts[1])
		}
	}
	return cmd
}

func stripTarget(text string) (string, table.RenderTarget) {
	if rest, ok := strings.CutPrefix(text, pdfPrefix); ok {
		return strings.TrimSpace(rest), table.RenderTargetDocument
	}
	if rest, ok := strings.CutSuffix(text, pdfSuffix); ok {
		return strings.TrimSpace(rest), table.RenderTargetDocument
	}
	return text, table.RenderTargetRaster
}
