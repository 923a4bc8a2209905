package model

import "sort"

// AddressSet is a membership set of ledger identities.
type AddressSet map[string]struct{}

// NewAddressSet builds a set from a list of addresses.
func NewAddressSet(addrs []string) AddressSet {
	s := make(AddressSet, len(addrs))
	for _, a := range addrs {
		s[a] = struct{}{}
	}
	return s
}

// Has reports whether addr is in the set.
func (s AddressSet) Has(addr string) bool {
	_, ok := s[addr]
	return ok
}

// EnsureTracked appends a new default pool for every address that is not
// tracked yet. Addresses are appended in the order given; duplicates are
// ignored. It returns the staking addresses of the newly tracked pools.
func EnsureTracked(c *GlobalContext, addrs []string) []string {
	known := make(AddressSet, len(c.Pools))
	for _, p := range c.Pools {
		known[p.StakingAddress] = struct{}{}
	}
	var added []string
	for _, a := range addrs {
		if known.Has(a) {
			continue
		}
		known[a] = struct{}{}
		c.Pools = append(c.Pools, NewPool(a))
		added = append(added, a)
	}
	return added
}

// SortPools orders pools ascending by staking address (byte-wise).
func SortPools(pools []*Pool) {
	sort.SliceStable(pools, func(i, j int) bool {
		return pools[i].StakingAddress < pools[j].StakingAddress
	})
}

// SortedCopy returns the addresses sorted ascending without touching the input.
func SortedCopy(addrs []string) []string {
	out := append([]string{}, addrs...)
	sort.Strings(out)
	return out
}

// ValidatorsWithoutPools returns the validators that are not the mining
// address of any tracked pool, keeping the validators' order.
func ValidatorsWithoutPools(validators []string, pools []*Pool) []string {
	mining := make(AddressSet, len(pools))
	for _, p := range pools {
		if p.MiningAddress != "" {
			mining[p.MiningAddress] = struct{}{}
		}
	}
	out := []string{}
	for _, v := range validators {
		if !mining.Has(v) {
			out = append(out, v)
		}
	}
	return out
}

// CountCurrentValidators returns the number of pools flagged as current validators.
func CountCurrentValidators(pools []*Pool) int {
	n := 0
	for _, p := range pools {
		if p.IsCurrentValidator {
			n++
		}
	}
	return n
}

// EqualAddresses reports whether two address lists are identical.
func EqualAddresses(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
