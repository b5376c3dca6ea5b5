package prompt

import (
	"github.com/pkoukk/tiktoken-go"
)

// Per-message and per-request overhead of the chat format, in tokens.
const (
	tokensPerTurn  = 4
	tokensPerReply = 3
)

// TokenCounter estimates prompt sizes for logging.
type TokenCounter interface {
	CountTurns(system string, turns []Turn) int
}

// Tiktoken counts with the cl100k_base encoding.
type Tiktoken struct {
	encoding *tiktoken.Tiktoken
}

// NewTiktoken loads cl100k_base. The encoding is fetched and cached on first
// use, so this can fail without network access.
func NewTiktoken() (*Tiktoken, error) {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, err
	}
	return &Tiktoken{encoding: enc}, nil
}

func (t *Tiktoken) count(s string) int {
	return len(t.encoding.Encode(s, nil, nil))
}

// CountTurns counts the system prompt and turns including role overhead.
func (t *Tiktoken) CountTurns(system string, turns []Turn) int {
	n := tokensPerReply
	if system != "" {
		n += tokensPerTurn + t.count(system)
	}
	for _, turn := range turns {
		n += tokensPerTurn + t.count(turn.Role) + t.count(turn.Content)
	}
	return n
}

// Approx estimates four characters per token.
type Approx struct{}

// CountTurns implements TokenCounter.
func (Approx) CountTurns(system string, turns []Turn) int {
	n := tokensPerReply
	if system != "" {
		n += tokensPerTurn + len([]rune(system))/4
	}
	for _, turn := range turns {
		n += tokensPerTurn + len([]rune(turn.Content))/4
	}
	return n
}
