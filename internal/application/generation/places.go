package generation

import (
	"strings"
	"unicode"

	"ort-ai-api/internal/domain/entity"
)

// PlacesFromItinerary 从行程过夜点派生去重后的地点列表。
// place_id 形如 CC::slug，slug 下划线展开并首字母大写作为名称。
func PlacesFromItinerary(itin *entity.ItineraryArtifact) []entity.Place {
	if itin == nil {
		return nil
	}

	places := make([]entity.Place, 0, len(itin.DaysPlan))
	seen := make(map[string]bool)

	for i := range itin.DaysPlan {
		day := &itin.DaysPlan[i]
		if day.Night == nil || day.Night.PlaceID == "" || seen[day.Night.PlaceID] {
			continue
		}
		seen[day.Night.PlaceID] = true

		parts := strings.SplitN(day.Night.PlaceID, "::", 3)
		cc := parts[0]
		if cc == "" {
			cc = "XX"
		}
		name := "Unknown"
		if len(parts) > 1 && parts[1] != "" {
			name = titleize(parts[1])
		}
		regionCode := day.RegionCode
		if regionCode == "" {
			regionCode = cc + "-00"
		}
		coords := day.Night.Coords
		if len(coords) == 0 {
			coords = []float64{0, 0}
		}

		places = append(places, entity.Place{
			PlaceID:    day.Night.PlaceID,
			Name:       name,
			Coords:     coords,
			Country:    cc,
			RegionCode: regionCode,
		})
	}
	return places
}

func titleize(slug string) string {
	r := []rune(strings.ReplaceAll(slug, "_", " "))
	prevLetter := false
	for i, c := range r {
		if unicode.IsLetter(c) || unicode.IsDigit(c) {
			if !prevLetter {
				r[i] = unicode.ToUpper(c)
			}
			prevLetter = true
		} else {
			prevLetter = false
		}
	}
	return string(r)
}
