package operator

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/relaymetrics/relay-monitor/pkg/types"
	"go.uber.org/zap"
)

// Resolution is the result of grouping one cycle's relays by operator.
type Resolution struct {
	// Operators is ordered by ID.
	Operators []*Operator
	// NoContact holds relays without contact information. They never appear in
	// operator leaderboards but still count toward network-wide statistics.
	NoContact []*types.RelayRecord
}

// TotalRelays returns the number of relays seen by the resolver.
func (r *Resolution) TotalRelays() int {
	total := len(r.NoContact)
	for _, operator := range r.Operators {
		total += len(operator.Relays)
	}
	return total
}

// Lookup returns the operator with the given id.
func (r *Resolution) Lookup(id types.OperatorID) (*Operator, bool) {
	i := sort.Search(len(r.Operators), func(i int) bool {
		return r.Operators[i].ID >= id
	})
	if i < len(r.Operators) && r.Operators[i].ID == id {
		return r.Operators[i], true
	}
	return nil, false
}

type Resolver struct {
	logger *zap.Logger
}

func NewResolver(logger *zap.Logger) *Resolver {
	return &Resolver{
		logger: logger,
	}
}

// Resolve groups records into operators keyed by a hash of their normalized
// contact string.
func (r *Resolver) Resolve(records []*types.RelayRecord) (*Resolution, error) {
	logger := r.logger.Sugar()

	groups := make(map[types.OperatorID]*Operator)
	resolution := &Resolution{}
	for _, record := range records {
		contact := NormalizeContact(record.Contact)
		if contact == "" {
			resolution.NoContact = append(resolution.NoContact, record)
			continue
		}
		id := ContactHash(contact)
		operator, ok := groups[id]
		if !ok {
			operator = &Operator{
				ID:      id,
				Contact: contact,
				Domain:  types.None[string](),
			}
			if domain, ok := ExtractDomain(record.Contact); ok {
				operator.Domain = types.Some(domain)
			}
			groups[id] = operator
		}
		operator.Relays = append(operator.Relays, record)
	}

	resolution.Operators = make([]*Operator, 0, len(groups))
	for _, operator := range groups {
		totals, err := Aggregate(operator.Relays)
		if err != nil {
			return nil, fmt.Errorf("could not aggregate operator %s: %v", operator.ID, err)
		}
		operator.Totals = totals
		resolution.Operators = append(resolution.Operators, operator)
	}
	sort.Slice(resolution.Operators, func(i, j int) bool {
		return resolution.Operators[i].ID < resolution.Operators[j].ID
	})

	authenticated := 0
	for _, operator := range resolution.Operators {
		if operator.Authenticated() {
			authenticated++
		}
	}
	logger.Debugw("resolved operators", "operators", len(resolution.Operators), "authenticated", authenticated, "noContactRelays", len(resolution.NoContact))
	return resolution, nil
}

// NormalizeContact case-folds a contact string and collapses its whitespace.
func NormalizeContact(contact string) string {
	return strings.Join(strings.Fields(strings.ToLower(contact)), " ")
}

// ContactHash is the operator id for a normalized contact string.
func ContactHash(normalized string) types.OperatorID {
	sum := md5.Sum([]byte(normalized))
	return hex.EncodeToString(sum[:])
}
