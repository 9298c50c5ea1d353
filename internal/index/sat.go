// Package index walks a Bitcoin-style chain from genesis and maintains the
// persistent sat-range and inscription index.
package index

// Issuance schedule constants.
const (
	// CoinValue is the number of sats in one coin.
	CoinValue uint64 = 100_000_000

	// HalvingInterval is the number of blocks between subsidy halvings.
	HalvingInterval uint64 = 210_000

	// FirstPostSubsidyEpoch is the first epoch with zero subsidy.
	FirstPostSubsidyEpoch uint64 = 33

	// DifficultyAdjustmentInterval is the number of blocks per difficulty
	// period.
	DifficultyAdjustmentInterval uint64 = 2016

	// CycleEpochs is the number of halving epochs per cycle.
	CycleEpochs uint64 = 6
)

// Height is a block height counted from genesis.
type Height uint64

// Epoch is a subsidy halving epoch.
type Epoch uint64

// Sat identifies a single satoshi by order of issuance.
type Sat uint64

// epochStartingSats[e] is the first sat issued in epoch e; the final entry
// is the total supply.
var epochStartingSats [FirstPostSubsidyEpoch + 1]Sat

func init() {
	var total Sat
	for e := Epoch(0); uint64(e) < FirstPostSubsidyEpoch; e++ {
		epochStartingSats[e] = total
		total += Sat(e.Subsidy() * HalvingInterval)
	}
	epochStartingSats[FirstPostSubsidyEpoch] = total
}

// Subsidy returns the block subsidy in sats for the epoch.
func (e Epoch) Subsidy() uint64 {
	if uint64(e) >= FirstPostSubsidyEpoch {
		return 0
	}
	return (50 * CoinValue) >> e
}

// StartingSat returns the first sat issued in the epoch.
func (e Epoch) StartingSat() Sat {
	if uint64(e) >= FirstPostSubsidyEpoch {
		return epochStartingSats[FirstPostSubsidyEpoch]
	}
	return epochStartingSats[e]
}

// Epoch returns the halving epoch containing the height.
func (h Height) Epoch() Epoch {
	return Epoch(uint64(h) / HalvingInterval)
}

// Subsidy returns the block subsidy in sats at the height.
func (h Height) Subsidy() uint64 {
	return h.Epoch().Subsidy()
}

// StartingSat returns the first sat issued at the height: the cumulative
// subsidy of all prior blocks.
func (h Height) StartingSat() Sat {
	e := h.Epoch()
	if uint64(e) >= FirstPostSubsidyEpoch {
		return epochStartingSats[FirstPostSubsidyEpoch]
	}
	return e.StartingSat() + Sat((uint64(h)-uint64(e)*HalvingInterval)*e.Subsidy())
}

// Supply returns the total number of sats that will ever exist.
func Supply() uint64 {
	return uint64(epochStartingSats[FirstPostSubsidyEpoch])
}

// Epoch returns the halving epoch in which the sat was issued.
func (s Sat) Epoch() Epoch {
	for e := Epoch(1); uint64(e) <= FirstPostSubsidyEpoch; e++ {
		if s < epochStartingSats[e] {
			return e - 1
		}
	}
	return Epoch(FirstPostSubsidyEpoch)
}

// heightAndOffset returns the block in which the sat was issued and the
// sat's offset within that block's subsidy.
func (s Sat) heightAndOffset() (Height, uint64) {
	e := s.Epoch()
	subsidy := e.Subsidy()
	if subsidy == 0 {
		return Height(uint64(e) * HalvingInterval), 0
	}
	sinceEpoch := uint64(s - e.StartingSat())
	return Height(uint64(e)*HalvingInterval + sinceEpoch/subsidy), sinceEpoch % subsidy
}

// Height returns the block in which the sat was issued.
func (s Sat) Height() Height {
	h, _ := s.heightAndOffset()
	return h
}

// IsCommon reports whether the sat is common. Only the first sat of each
// block is uncommon or better, so ranges need only check their start.
func (s Sat) IsCommon() bool {
	if uint64(s) >= Supply() {
		return true
	}
	_, offset := s.heightAndOffset()
	return offset != 0
}

// Rarity grades a sat by the issuance boundaries it falls on.
type Rarity int

// Rarity tiers, rarest last.
const (
	Common Rarity = iota
	Uncommon
	Rare
	Epic
	Legendary
	Mythic
)

// String returns the lowercase tier name.
func (r Rarity) String() string {
	switch r {
	case Uncommon:
		return "uncommon"
	case Rare:
		return "rare"
	case Epic:
		return "epic"
	case Legendary:
		return "legendary"
	case Mythic:
		return "mythic"
	default:
		return "common"
	}
}

// Rarity returns the sat's rarity tier: mythic for sat 0, legendary for the
// first sat of a cycle, epic for the first sat of an epoch, rare for the
// first sat of a difficulty period, uncommon for the first sat of a block.
func (s Sat) Rarity() Rarity {
	if s == 0 {
		return Mythic
	}
	if uint64(s) >= Supply() {
		return Common
	}
	h, offset := s.heightAndOffset()
	if offset != 0 {
		return Common
	}
	switch {
	case uint64(h)%(CycleEpochs*HalvingInterval) == 0:
		return Legendary
	case uint64(h)%HalvingInterval == 0:
		return Epic
	case uint64(h)%DifficultyAdjustmentInterval == 0:
		return Rare
	default:
		return Uncommon
	}
}
