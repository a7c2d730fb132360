package geodata

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/paulmach/orb/geojson"

	"github.com/gpmc-lab-ufrgs/atlas/pkg/errors"
	"github.com/gpmc-lab-ufrgs/atlas/pkg/feature"
)

// Keys names the GeoJSON properties read for one layer.
type Keys struct {
	ID         string `toml:"id"`
	Name       string `toml:"name"`
	Parent     string `toml:"parent"`
	Population string `toml:"population"`
}

// Default property keys of the IBGE meshes.
var (
	DefaultStateKeys    = Keys{ID: "SIGLA_UF", Name: "NM_UF", Population: "POPULATION"}
	DefaultDistrictKeys = Keys{ID: "CD_MUN", Name: "NM_MUN", Parent: "SIGLA_UF", Population: "POPULATION"}
)

// DefaultKeys returns the default keys for level.
func DefaultKeys(level feature.Level) Keys {
	if level == feature.LevelDistrict {
		return DefaultDistrictKeys
	}
	return DefaultStateKeys
}

// Decode parses a FeatureCollection into features of level.
// Features without an identifier are rejected; a malformed identifier is
// an error rather than a silently unselectable feature.
func Decode(data []byte, level feature.Level, keys Keys) ([]*feature.Feature, error) {
	if !level.Valid() {
		return nil, errors.New(errors.ErrCodeInvalidLevel, "unknown level %q", level)
	}
	if keys.ID == "" {
		return nil, errors.New(errors.ErrCodeInvalidConfig, "%s layer has no id property configured", level)
	}

	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "parse %s geojson", level)
	}

	out := make([]*feature.Feature, 0, len(fc.Features))
	for i, gf := range fc.Features {
		id := property(gf.Properties, keys.ID)
		if id == "" && gf.ID != nil {
			id = fmt.Sprint(gf.ID)
		}
		if err := errors.ValidateFeatureID(id); err != nil {
			return nil, fmt.Errorf("%s feature %d: %w", level, i, err)
		}

		f := &feature.Feature{
			ID:         id,
			Level:      level,
			Name:       property(gf.Properties, keys.Name),
			Properties: map[string]any(gf.Properties.Clone()),
			Geometry:   gf.Geometry,
		}
		if level == feature.LevelDistrict && keys.Parent != "" {
			f.ParentID = property(gf.Properties, keys.Parent)
		}
		if keys.Population != "" {
			f.Population = population(gf.Properties[keys.Population])
		}
		out = append(out, f)
	}
	return out, nil
}

// property reads key as a string. Numeric codes are common in census
// meshes and are rendered without a fractional part.
func property(props geojson.Properties, key string) string {
	if key == "" {
		return ""
	}
	switch v := props[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		if v == math.Trunc(v) {
			return strconv.FormatInt(int64(v), 10)
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

func population(v any) int64 {
	switch n := v.(type) {
	case float64:
		return int64(n)
	case string:
		p, err := strconv.ParseInt(strings.ReplaceAll(n, ".", ""), 10, 64)
		if err == nil {
			return p
		}
	}
	return 0
}
