package simulator

import (
	"fmt"
	"math"
	"math/rand"
	"sync"

	"github.com/jonboulle/clockwork"

	"github.com/LeonardoBeccarini/firelinx/internal/coordinates"
	"github.com/LeonardoBeccarini/firelinx/internal/model"
	"github.com/LeonardoBeccarini/firelinx/internal/model/entities"
)

// StationID marks alerts produced by the simulator.
const StationID = "SIM"

// kmPerDegree is the length of one degree of latitude.
const kmPerDegree = 111.32

// Area is the region where simulated fires are placed.
type Area struct {
	Center   model.Coordinates
	RadiusKm float64
}

// Generator produces plausible fire reports scattered around an area.
type Generator struct {
	mu    sync.Mutex
	rng   *rand.Rand
	area  Area
	clock clockwork.Clock
	seq   int
}

// NewGenerator returns a generator seeded with seed, so drills can be replayed.
func NewGenerator(area Area, seed int64, clock clockwork.Clock) *Generator {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if area.RadiusKm < 0 {
		area.RadiusKm = 0
	}
	return &Generator{rng: rand.New(rand.NewSource(seed)), area: area, clock: clock}
}

// Next returns the next report, already carrying formatted coordinates.
func (g *Generator) Next() model.FireReport {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.seq++
	c := g.point()
	lat, lng := coordinates.FormatDDM(c)
	ts := coordinates.CurrentTimestamp(g.clock)

	r := entities.NewFireReport(ts.Date, ts.Time)
	r.FireType = fireTypes[g.rng.Intn(len(fireTypes))]
	r.FireIntensity = g.intensity()
	// le esercitazioni non sono mai verificate
	r.Verified = false
	r.User = "Simulator"
	r.UserID = shortSeq(g.seq)
	r.StnID = StationID
	return r.WithLocation(lat, lng)
}

var fireTypes = []model.FireType{entities.FireTypeA, entities.FireTypeB, entities.FireTypeC, entities.FireTypeD}

// intensity favours the lower tiers: 1 is four times as likely as 4.
func (g *Generator) intensity() model.FireIntensity {
	switch n := g.rng.Intn(10); {
	case n < 4:
		return entities.Intensity1
	case n < 7:
		return entities.Intensity2
	case n < 9:
		return entities.Intensity3
	default:
		return entities.Intensity4
	}
}

// point picks a uniform point in the disc around the centre.
func (g *Generator) point() model.Coordinates {
	dist := g.area.RadiusKm * math.Sqrt(g.rng.Float64())
	bearing := 2 * math.Pi * g.rng.Float64()

	dLat := dist * math.Cos(bearing) / kmPerDegree
	cosLat := math.Cos(g.area.Center.Lat * math.Pi / 180)
	dLng := 0.0
	if cosLat > 1e-9 {
		dLng = dist * math.Sin(bearing) / (kmPerDegree * cosLat)
	}

	return model.Coordinates{
		Lat: clamp(g.area.Center.Lat+dLat, -90, 90),
		Lng: wrapLng(g.area.Center.Lng + dLng),
	}
}

func clamp(x, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, x))
}

func wrapLng(x float64) float64 {
	for x > 180 {
		x -= 360
	}
	for x < -180 {
		x += 360
	}
	return x
}

func shortSeq(n int) string {
	return fmt.Sprintf("%05d", n%100000)
}
