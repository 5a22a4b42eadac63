// Package nftjson models the public nftables JSON schema (spec.md §6): a
// top-level {"nftables": [...objects]} document where each object is a
// table, chain or rule wrapped in "add"/"delete", or a bare listed object
// when read back from `nft -j list ruleset`.
//
// This package intentionally does not wrap github.com/google/nftables —
// that library speaks the netlink binary protocol directly and has no
// notion of the JSON schema the external nft binary produces and
// consumes, which is the literal contract spec.md §6 fixes (see
// DESIGN.md). Everything here is plain structs plus encoding/json.
package nftjson

import "encoding/json"

// Family mirrors the nftables table family strings used in the JSON
// schema ("ip" / "ip6").
type Family string

const (
	FamilyIP  Family = "ip"
	FamilyIP6 Family = "ip6"
)

// ChainType is the nftables base-chain type.
type ChainType string

const (
	ChainTypeNAT    ChainType = "nat"
	ChainTypeFilter ChainType = "filter"
)

// Hook is the nftables base-chain hook.
type Hook string

const (
	HookPrerouting  Hook = "prerouting"
	HookPostrouting Hook = "postrouting"
	HookForward     Hook = "forward"
)

// ChainPolicy is the base-chain default verdict.
type ChainPolicy string

const ChainPolicyAccept ChainPolicy = "accept"

// Table is a named table within a family.
type Table struct {
	Family Family `json:"family"`
	Name   string `json:"name"`
	Handle *int   `json:"handle,omitempty"`
}

// Chain is either a regular chain or, when Type/Hook/Policy are set, a base
// chain attached to a netfilter hook.
type Chain struct {
	Family   Family       `json:"family"`
	Table    string       `json:"table"`
	Name     string       `json:"name"`
	Handle   *int         `json:"handle,omitempty"`
	Type     *ChainType   `json:"type,omitempty"`
	Hook     *Hook        `json:"hook,omitempty"`
	Priority *int         `json:"prio,omitempty"`
	Policy   *ChainPolicy `json:"policy,omitempty"`
}

// Rule is a single ordered statement list within a chain. Expr is compared
// by full structural equality when locating a rule's kernel handle (spec.md
// §3 invariant 5) — never by handle, which the caller never holds until
// after a lookup.
type Rule struct {
	Family Family       `json:"family"`
	Table  string       `json:"table"`
	Chain  string       `json:"chain"`
	Handle *int         `json:"handle,omitempty"`
	Expr   []Statement  `json:"expr"`
}

// Statement is one match or terminal-action expression. Only the handful
// of shapes spec.md §4.1 requires are modeled; each field set is mutually
// exclusive within one Statement, mirroring how `nft -j` actually emits
// these objects (each statement is a single-key object).
type Statement struct {
	Match      *MatchStatement `json:"match,omitempty"`
	Masquerade *struct{}       `json:"masquerade,omitempty"`
	Accept     *struct{}       `json:"accept,omitempty"`
	SNAT       *NATStatement   `json:"snat,omitempty"`
	DNAT       *NATStatement   `json:"dnat,omitempty"`
}

// statementWire mirrors Statement but captures masquerade/accept as raw
// JSON instead of *struct{}: `nft -j` emits these stateless statements as
// "masquerade": null, and encoding/json's default pointer handling would
// decode that null back into a nil *struct{} — indistinguishable from the
// key being absent. RawMessage is non-nil whenever the key is present,
// null value or not, so presence survives the round trip.
type statementWire struct {
	Match      *MatchStatement `json:"match,omitempty"`
	Masquerade json.RawMessage `json:"masquerade,omitempty"`
	Accept     json.RawMessage `json:"accept,omitempty"`
	SNAT       *NATStatement   `json:"snat,omitempty"`
	DNAT       *NATStatement   `json:"dnat,omitempty"`
}

// MarshalJSON emits masquerade/accept as "<key>": null, matching `nft -j`.
func (s Statement) MarshalJSON() ([]byte, error) {
	w := statementWire{Match: s.Match, SNAT: s.SNAT, DNAT: s.DNAT}
	if s.Masquerade != nil {
		w.Masquerade = json.RawMessage("null")
	}
	if s.Accept != nil {
		w.Accept = json.RawMessage("null")
	}
	return json.Marshal(w)
}

// UnmarshalJSON restores Masquerade/Accept from key presence, not from the
// (always null) value.
func (s *Statement) UnmarshalJSON(data []byte) error {
	var w statementWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	s.Match = w.Match
	s.SNAT = w.SNAT
	s.DNAT = w.DNAT
	if w.Masquerade != nil {
		s.Masquerade = &struct{}{}
	}
	if w.Accept != nil {
		s.Accept = &struct{}{}
	}
	return nil
}

// MatchStatement compares a left expression to a right literal.
type MatchStatement struct {
	Op    string     `json:"op"` // "=="
	Left  Expression `json:"left"`
	Right Expression `json:"right"`
}

// NATStatement carries the address a snat/dnat statement translates to.
type NATStatement struct {
	Addr Expression `json:"addr"`
}

// Expression is a tagged union over the small vocabulary this system
// needs: a meta key reference, a payload field reference, or a literal.
type Expression struct {
	Meta    *MetaExpr    `json:"meta,omitempty"`
	Payload *PayloadExpr `json:"payload,omitempty"`
	Literal string       `json:"-"`
}

// MetaExpr references a meta key such as iifname/oifname.
type MetaExpr struct {
	Key string `json:"key"`
}

// PayloadExpr references a field of a protocol header, e.g. ip saddr.
type PayloadExpr struct {
	Protocol string `json:"protocol"`
	Field    string `json:"field"`
}

// MarshalJSON renders a literal Expression as a bare JSON string, matching
// how `nft -j` encodes string/address literals.
func (e Expression) MarshalJSON() ([]byte, error) {
	if e.Meta != nil {
		return json.Marshal(struct {
			Meta *MetaExpr `json:"meta"`
		}{e.Meta})
	}
	if e.Payload != nil {
		return json.Marshal(struct {
			Payload *PayloadExpr `json:"payload"`
		}{e.Payload})
	}
	return json.Marshal(e.Literal)
}

// UnmarshalJSON accepts either a bare string literal or a {"meta":...}/
// {"payload":...} object, matching what `nft -j list ruleset` emits.
func (e *Expression) UnmarshalJSON(data []byte) error {
	var lit string
	if err := json.Unmarshal(data, &lit); err == nil {
		e.Literal = lit
		return nil
	}
	var obj struct {
		Meta    *MetaExpr    `json:"meta"`
		Payload *PayloadExpr `json:"payload"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	e.Meta = obj.Meta
	e.Payload = obj.Payload
	return nil
}

// Meta builds a meta-key match expression.
func Meta(key string) Expression { return Expression{Meta: &MetaExpr{Key: key}} }

// Payload builds a protocol-field match expression.
func Payload(protocol, field string) Expression {
	return Expression{Payload: &PayloadExpr{Protocol: protocol, Field: field}}
}

// Str builds a literal string expression (an address or interface name).
func Str(s string) Expression { return Expression{Literal: s} }

// Object is one element of a ruleset or batch: exactly one of Table/Chain/
// Rule is set, matching nft -j's {"table":...}/{"chain":...}/{"rule":...}.
type Object struct {
	Table *Table `json:"table,omitempty"`
	Chain *Chain `json:"chain,omitempty"`
	Rule  *Rule  `json:"rule,omitempty"`
}

// Ruleset is the result of `nft -j list ruleset`: a flat, ordered list of
// tables, chains and rules with kernel-assigned handles.
type Ruleset struct {
	Objects []Object
}

// wireDoc mirrors the {"nftables": [...]} envelope nft's JSON mode uses on
// both stdin (batch input) and stdout (list output).
type wireDoc struct {
	Nftables []wireEntry `json:"nftables"`
}

// wireEntry additionally carries the "add"/"delete" command wrapper used
// only for batch input, never for list output.
type wireEntry struct {
	Add    *Object `json:"add,omitempty"`
	Delete *Object `json:"delete,omitempty"`
	Table  *Table  `json:"table,omitempty"`
	Chain  *Chain  `json:"chain,omitempty"`
	Rule   *Rule   `json:"rule,omitempty"`
}

func (e wireEntry) asObject() (Object, bool) {
	switch {
	case e.Table != nil:
		return Object{Table: e.Table}, true
	case e.Chain != nil:
		return Object{Chain: e.Chain}, true
	case e.Rule != nil:
		return Object{Rule: e.Rule}, true
	default:
		return Object{}, false
	}
}

// ParseRuleset decodes the output of `nft -j list ruleset`.
func ParseRuleset(data []byte) (*Ruleset, error) {
	var doc wireDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	rs := &Ruleset{}
	for _, entry := range doc.Nftables {
		if obj, ok := entry.asObject(); ok {
			rs.Objects = append(rs.Objects, obj)
		}
	}
	return rs, nil
}
