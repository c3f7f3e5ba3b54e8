package services

import (
	"github.com/ethereum/go-ethereum/common"
)

type Capability uint8

const (
	CapPlayer Capability = 1 << iota
	CapAttester
	CapCurator
)

// Caller is an authenticated wallet and what it may do.
type Caller struct {
	Address common.Address
	Caps    Capability
}

func (c Caller) Has(want Capability) bool {
	return c.Caps&want == want
}

func (c Caller) Roles() []string {
	var out []string
	if c.Has(CapPlayer) {
		out = append(out, "player")
	}
	if c.Has(CapAttester) {
		out = append(out, "attester")
	}
	if c.Has(CapCurator) {
		out = append(out, "curator")
	}
	return out
}

// Roles maps configured wallets to capabilities. Every wallet is a player.
type Roles struct {
	curators map[common.Address]bool
	attester common.Address
}

func NewRoles(curators []common.Address, attester common.Address) Roles {
	r := Roles{curators: make(map[common.Address]bool), attester: attester}
	for _, c := range curators {
		r.curators[c] = true
	}
	return r
}

func (r Roles) IsAttester(addr common.Address) bool {
	return r.attester != (common.Address{}) && addr == r.attester
}

func (r Roles) CallerFor(addr common.Address) Caller {
	c := Caller{Address: addr, Caps: CapPlayer}
	if r.IsAttester(addr) {
		c.Caps |= CapAttester
	}
	if r.curators[addr] {
		c.Caps |= CapCurator
	}
	return c
}

func requireCap(c Caller, want Capability) error {
	if !c.Has(want) {
		return ErrUnauthorized
	}
	return nil
}
