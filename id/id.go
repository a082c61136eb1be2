// Package id defines the TypeID identifiers used by every Cadence entity.
//
// An ID renders as "prefix_suffix" where the prefix names the entity kind and
// the suffix is a base32 UUIDv7, so IDs of one kind sort by creation time.
package id

import (
	"fmt"

	"go.jetify.com/typeid/v2"
)

// Prefix names an entity kind.
type Prefix string

// Entity prefixes.
const (
	PrefixService      Prefix = "svc"
	PrefixPlan         Prefix = "plan"
	PrefixSubscription Prefix = "sub"
	PrefixCapability   Prefix = "cap"
	PrefixPayment      Prefix = "pay"
	PrefixLease        Prefix = "lease"
)

// New generates a fresh ID of kind p. It panics when p is not a valid TypeID
// prefix, which only a programming error can cause.
func (p Prefix) New() ID {
	tid, err := typeid.Generate(string(p))
	if err != nil {
		panic(fmt.Sprintf("id: generate %q: %v", p, err))
	}
	return ID{tid: tid, ok: true}
}

// Parse decodes s and requires its prefix to be p.
func (p Prefix) Parse(s string) (ID, error) {
	parsed, err := Parse(s)
	if err != nil {
		return Nil, err
	}
	if got := parsed.Prefix(); got != p {
		return Nil, fmt.Errorf("id: %q is a %s id, want %s", s, got, p)
	}
	return parsed, nil
}

// ID identifies one Cadence entity. The zero value is Nil.
//
//nolint:recvcheck // UnmarshalText needs a pointer receiver.
type ID struct {
	tid typeid.TypeID
	ok  bool
}

// Nil is the zero-value ID.
var Nil ID

// Kind-specific names document which entity a field refers to.
type (
	ServiceID      = ID
	PlanID         = ID
	SubscriptionID = ID
	CapabilityID   = ID
	PaymentID      = ID
)

// New generates an ID with the given prefix.
func New(p Prefix) ID { return p.New() }

func NewServiceID() ServiceID           { return PrefixService.New() }
func NewPlanID() PlanID                 { return PrefixPlan.New() }
func NewSubscriptionID() SubscriptionID { return PrefixSubscription.New() }
func NewCapabilityID() CapabilityID     { return PrefixCapability.New() }
func NewPaymentID() PaymentID           { return PrefixPayment.New() }

// Parse decodes any well-formed TypeID.
func Parse(s string) (ID, error) {
	if s == "" {
		return Nil, fmt.Errorf("id: empty string")
	}
	tid, err := typeid.Parse(s)
	if err != nil {
		return Nil, fmt.Errorf("id: parse %q: %w", s, err)
	}
	return ID{tid: tid, ok: true}, nil
}

func ParseServiceID(s string) (ServiceID, error)           { return PrefixService.Parse(s) }
func ParsePlanID(s string) (PlanID, error)                 { return PrefixPlan.Parse(s) }
func ParseSubscriptionID(s string) (SubscriptionID, error) { return PrefixSubscription.Parse(s) }
func ParseCapabilityID(s string) (CapabilityID, error)     { return PrefixCapability.Parse(s) }
func ParsePaymentID(s string) (PaymentID, error)           { return PrefixPayment.Parse(s) }

// String returns "prefix_suffix", or "" for Nil.
func (i ID) String() string {
	if !i.ok {
		return ""
	}
	return i.tid.String()
}

// Prefix returns the entity kind, or "" for Nil.
func (i ID) Prefix() Prefix {
	if !i.ok {
		return ""
	}
	return Prefix(i.tid.Prefix())
}

// IsNil reports whether i is the zero value.
func (i ID) IsNil() bool { return !i.ok }

// MarshalText implements encoding.TextMarshaler. Nil encodes as "".
func (i ID) MarshalText() ([]byte, error) {
	return []byte(i.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. "" decodes to Nil.
func (i *ID) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*i = Nil
		return nil
	}
	parsed, err := Parse(string(data))
	if err != nil {
		return err
	}
	*i = parsed
	return nil
}
