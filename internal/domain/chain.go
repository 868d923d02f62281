package domain

import "strings"

type Chain string

const (
	ChainBSC   Chain = "bsc"
	ChainOPBNB Chain = "opbnb"
)

func (c Chain) IsValid() bool {
	switch c {
	case ChainBSC, ChainOPBNB:
		return true
	default:
		return false
	}
}

// ParseChain accepts the canonical name as well as the display spellings
// used by the chat layer ("BSC", "opBNB").
func ParseChain(s string) (Chain, bool) {
	c := Chain(strings.ToLower(strings.TrimSpace(s)))
	return c, c.IsValid()
}

type Token string

const (
	TokenUSDT Token = "USDT"
	TokenUSDC Token = "USDC"
)

func (t Token) IsValid() bool {
	switch t {
	case TokenUSDT, TokenUSDC:
		return true
	default:
		return false
	}
}

func ParseToken(s string) (Token, bool) {
	t := Token(strings.ToUpper(strings.TrimSpace(s)))
	return t, t.IsValid()
}
