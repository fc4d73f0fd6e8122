package tracker

import "github.com/dhmspector/ZeitSatTrack/internal/tle"

// catalog maps names to satellites. The first record seen for a name wins;
// iteration follows insertion order.
type catalog struct {
	byName map[string]tle.Satellite
	order  []string
}

func newCatalog() *catalog {
	return &catalog{byName: make(map[string]tle.Satellite)}
}

type addResult int

const (
	added addResult = iota
	duplicate
	unnamed
)

func (c *catalog) add(rec tle.Record) addResult {
	if rec.Name == "" {
		return unnamed
	}
	if _, ok := c.byName[rec.Name]; ok {
		return duplicate
	}
	c.byName[rec.Name] = tle.Satellite{Name: rec.Name, Elements: rec.Elements}
	c.order = append(c.order, rec.Name)
	return added
}

func (c *catalog) get(name string) (tle.Satellite, bool) {
	s, ok := c.byName[name]
	return s, ok
}

func (c *catalog) remove(name string) bool {
	if _, ok := c.byName[name]; !ok {
		return false
	}
	delete(c.byName, name)
	for i, n := range c.order {
		if n == name {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	return true
}

func (c *catalog) len() int { return len(c.order) }

func (c *catalog) names() []string {
	return append([]string(nil), c.order...)
}

func (c *catalog) satellites() []tle.Satellite {
	out := make([]tle.Satellite, len(c.order))
	for i, n := range c.order {
		out[i] = c.byName[n]
	}
	return out
}

func (c *catalog) reset() {
	c.byName = make(map[string]tle.Satellite)
	c.order = nil
}
