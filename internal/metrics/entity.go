package metrics

// EntityKey is the identity tuple all metrics are keyed by. City is optional:
// an absent city only matches another absent city, never a named one, so the
// key carries presence explicitly instead of collapsing nil into "".
type EntityKey struct {
	Query   string
	URL     string
	City    string
	HasCity bool
}

// KeyFor builds the comparable entity key for a daily metric row.
func KeyFor(m *DailyMetric) EntityKey {
	k := EntityKey{Query: m.Query, URL: m.URL}
	if m.City != nil {
		k.City = *m.City
		k.HasCity = true
	}
	return k
}

// WeeklyKeyFor builds the comparable entity key for a weekly rollup row.
func WeeklyKeyFor(m *WeeklyMetric) EntityKey {
	k := EntityKey{Query: m.Query, URL: m.URL}
	if m.City != nil {
		k.City = *m.City
		k.HasCity = true
	}
	return k
}

// CityPtr returns the key's city as the nullable representation used in
// store rows and report payloads.
func (k EntityKey) CityPtr() *string {
	if !k.HasCity {
		return nil
	}
	city := k.City
	return &city
}

// SameCity reports whether two keys refer to the same locale, with null-safe
// semantics: two absent cities match, an absent city never matches a named one.
func (k EntityKey) SameCity(other EntityKey) bool {
	if k.HasCity != other.HasCity {
		return false
	}
	return !k.HasCity || k.City == other.City
}
