package market

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"

	"everterm/internal/universe"
)

// RangeKind enumerates the scopes a market order can match at.
type RangeKind int

const (
	RangeStation RangeKind = iota
	RangeRegion
	RangeSystem
)

// OrderRange is the match scope of an order. For RangeSystem, Jumps carries
// the jump radius; the wire value "solarsystem" decodes as System(1).
type OrderRange struct {
	Kind  RangeKind
	Jumps uint32
}

func (r *OrderRange) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch s {
	case "station":
		*r = OrderRange{Kind: RangeStation}
	case "region":
		*r = OrderRange{Kind: RangeRegion}
	case "solarsystem":
		*r = OrderRange{Kind: RangeSystem, Jumps: 1}
	default:
		jumps, err := strconv.ParseUint(s, 10, 32)
		if err != nil {
			return fmt.Errorf("unexpected range value %q", s)
		}
		*r = OrderRange{Kind: RangeSystem, Jumps: uint32(jumps)}
	}
	return nil
}

func (r OrderRange) MarshalJSON() ([]byte, error) {
	switch r.Kind {
	case RangeStation:
		return json.Marshal("station")
	case RangeRegion:
		return json.Marshal("region")
	default:
		return json.Marshal(strconv.FormatUint(uint64(r.Jumps), 10))
	}
}

// Order is a single regional market order. Orders are identified by ID and
// compared structurally across every field.
type Order struct {
	ID           uint64              `json:"id"`
	IsBuyOrder   bool                `json:"is_buy_order"`
	Price        float64             `json:"price"`
	Issued       time.Time           `json:"issued"`
	Expiry       time.Time           `json:"expiry"`
	LocationID   universe.StationID  `json:"location_id"`
	SystemID     universe.SystemID   `json:"system_id"`
	TypeID       universe.TypeID     `json:"type_id"`
	MinVolume    uint32              `json:"min_volume"`
	Range        OrderRange          `json:"range"`
	VolumeRemain uint32              `json:"volume_remain"`
	VolumeTotal  uint32              `json:"volume_total"`
}

// Equal reports structural equality across all fields. Prices compare by
// bit pattern so NaN equals itself and ingest never chokes on non-finite
// upstream values.
func (o Order) Equal(other Order) bool {
	return o.ID == other.ID &&
		o.IsBuyOrder == other.IsBuyOrder &&
		priceEqual(o.Price, other.Price) &&
		o.Issued.Equal(other.Issued) &&
		o.Expiry.Equal(other.Expiry) &&
		o.LocationID == other.LocationID &&
		o.SystemID == other.SystemID &&
		o.TypeID == other.TypeID &&
		o.MinVolume == other.MinVolume &&
		o.Range == other.Range &&
		o.VolumeRemain == other.VolumeRemain &&
		o.VolumeTotal == other.VolumeTotal
}

func priceEqual(a, b float64) bool {
	return math.Float64bits(a) == math.Float64bits(b)
}

// ComparePrice orders prices descending under a total order: NaN sorts after
// every finite and infinite value, -0 below +0.
func ComparePrice(a, b float64) int {
	aNaN, bNaN := math.IsNaN(a), math.IsNaN(b)
	switch {
	case aNaN && bNaN:
		return 0
	case aNaN:
		return 1
	case bNaN:
		return -1
	}
	ka, kb := totalOrderKey(a), totalOrderKey(b)
	switch {
	case ka > kb:
		return -1
	case ka < kb:
		return 1
	default:
		return 0
	}
}

// totalOrderKey maps a float64 onto an integer whose natural ordering is the
// IEEE 754 totalOrder predicate.
func totalOrderKey(f float64) int64 {
	bits := int64(math.Float64bits(f))
	if bits < 0 {
		bits ^= math.MaxInt64
	}
	return bits
}

// OrderBook holds every live order for one item type, keyed by order ID.
type OrderBook struct {
	Type   universe.TypeID
	Orders map[uint64]Order
}

// NewOrderBook creates an empty book for the given type.
func NewOrderBook(t universe.TypeID) *OrderBook {
	return &OrderBook{Type: t, Orders: make(map[uint64]Order)}
}

// Market maps item types to their order books. LastModified and Expires are
// the maxima across every ingested snapshot.
type Market struct {
	Items        map[universe.TypeID]*OrderBook
	LastModified time.Time
	Expires      time.Time
}

// NewMarket creates an empty market.
func NewMarket() *Market {
	return &Market{Items: make(map[universe.TypeID]*OrderBook)}
}

// Insert places an order into its type's book, creating the book if needed.
func (m *Market) Insert(o Order) {
	book, ok := m.Items[o.TypeID]
	if !ok {
		book = NewOrderBook(o.TypeID)
		m.Items[o.TypeID] = book
	}
	book.Orders[o.ID] = o
}

// OrderCount returns the total number of orders across all types.
func (m *Market) OrderCount() int {
	n := 0
	for _, book := range m.Items {
		n += len(book.Orders)
	}
	return n
}

// RegionSnapshot is a complete, consistent Market for a single region at one
// point in time, stamped with the upstream response headers.
type RegionSnapshot struct {
	Region       universe.Region
	Market       *Market
	LastModified time.Time
	Expires      time.Time
}
