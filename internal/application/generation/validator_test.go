package generation

import (
	"strings"
	"testing"

	"ort-ai-api/internal/domain/entity"
)

func TestExtractJSONObject(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", `{"a":1}`, `{"a":1}`},
		{"fenced", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"bare fence", "```\n[1,2]\n```", `[1,2]`},
		{"prose around", "Voici le résultat:\n{\"a\":1}\nBonne route!", `{"a":1}`},
		{"array first", `note [1,2] end`, `[1,2]`},
		{"empty", "   ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractJSONObject(tt.in); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestValidateSummary(t *testing.T) {
	v := NewValidator()
	raw := "```json\n" + `{
		"review": ["plus", "minus", "verdict"],
		"steps": [
			{"day": 9, "city": "Ajaccio", "highlights": "plage", "next": "2h vers Bonifacio"},
			{"day": 9, "city": "Bonifacio", "highlights": "falaises", "next": "retour ferry"}
		]
	}` + "\n```"

	artifact, err := v.Validate(entity.KindSummary, raw)
	if err != nil {
		t.Fatal(err)
	}
	if !artifact.Complete() {
		t.Fatal("expected complete artifact")
	}
	steps := artifact.Summary.Steps
	// 日序号按位置重排，模型给出的值不可信
	if steps[0].Day != 1 || steps[1].Day != 2 {
		t.Errorf("days not renumbered: %d, %d", steps[0].Day, steps[1].Day)
	}
	// 末日无后续段
	if steps[1].Next != "" {
		t.Errorf("last step next must be empty, got %q", steps[1].Next)
	}
	if steps[0].Next != "2h vers Bonifacio" {
		t.Errorf("intermediate next lost: %q", steps[0].Next)
	}
}

func TestValidateSummaryMalformed(t *testing.T) {
	v := NewValidator()
	for _, raw := range []string{
		"",
		"pas de json ici",
		`{"review": [], "steps": []}`,
		`{"review": ["ok"]}`,
	} {
		if _, err := v.Validate(entity.KindSummary, raw); err == nil {
			t.Errorf("expected error for %q", raw)
		}
	}
}

func TestValidateItineraryEnvelope(t *testing.T) {
	v := NewValidator()
	raw := `{"itins": [{
		"title": "Corse du Sud en 7 jours",
		"language": "fr",
		"days_plan": [
			{"day": 5, "suggested_days": 1.5, "night": {"place_id": "FR::ajaccio"},
			 "to_next_leg": {"distance_km": 120, "drive_min": 150}},
			{"day": 5, "night": {"place_id": "FR::bonifacio"},
			 "to_next_leg": {"distance_km": 50, "drive_min": 60}}
		]
	}]}`

	artifact, err := v.Validate(entity.KindItinerary, raw)
	if err != nil {
		t.Fatal(err)
	}
	itin := artifact.Itinerary

	d := itin.DaysPlan
	if d[0].Day != 1 || d[1].Day != 2 {
		t.Errorf("days not renumbered: %d, %d", d[0].Day, d[1].Day)
	}
	if d[0].Slice != 1 || d[1].Slice != 1 {
		t.Error("slice must be forced to 1")
	}
	if d[1].SuggestedDays != 1 {
		t.Errorf("missing suggested_days must default to 1, got %v", d[1].SuggestedDays)
	}
	if d[0].Visits == nil || d[0].Activities == nil {
		t.Error("visits/activities must be non-nil slices")
	}
	if d[1].ToNextLeg != nil {
		t.Error("last day must have no to_next_leg")
	}
	if d[0].ToNextLeg == nil {
		t.Error("intermediate to_next_leg lost")
	}
	// ceil(1.5 + 1) = 3
	if itin.EstimatedDaysBase != 3 {
		t.Errorf("estimated_days_base = %d, want 3", itin.EstimatedDaysBase)
	}
	if itin.PacingRules == nil || itin.PacingRules.Factors["standard"] != 1.0 {
		t.Errorf("default pacing rules missing: %+v", itin.PacingRules)
	}
	if itin.ItinID != "XX::imported::corse-du-sud-en-7-jours" {
		t.Errorf("itin_id = %q", itin.ItinID)
	}
	if itin.CreatedAt == "" {
		t.Error("created_at must be backfilled")
	}
}

func TestValidateItineraryKeepsProvidedEstimatedDaysBase(t *testing.T) {
	v := NewValidator()
	// 模型自带 estimated_days_base 时不得重算覆盖
	raw := `{"itins": [{"title": "Alpes", "estimated_days_base": 10,
		"days_plan": [{"night": {"place_id": "FR::annecy"}, "suggested_days": 1}]}]}`

	artifact, err := v.Validate(entity.KindItinerary, raw)
	if err != nil {
		t.Fatal(err)
	}
	if got := artifact.Itinerary.EstimatedDaysBase; got != 10 {
		t.Errorf("estimated_days_base = %d, want 10", got)
	}
}

func TestValidateItinerarySingleObjectFallback(t *testing.T) {
	v := NewValidator()
	raw := `{"title": "Alpes", "days_plan": [{"night": {"place_id": "FR::annecy"}}]}`

	artifact, err := v.Validate(entity.KindItinerary, raw)
	if err != nil {
		t.Fatal(err)
	}
	if len(artifact.Itinerary.DaysPlan) != 1 {
		t.Fatalf("days_plan = %d", len(artifact.Itinerary.DaysPlan))
	}
}

func TestValidateItineraryEmptyDaysPlan(t *testing.T) {
	v := NewValidator()
	if _, err := v.Validate(entity.KindItinerary, `{"itins": [{"title": "x", "days_plan": []}]}`); err == nil {
		t.Fatal("expected error for empty days_plan")
	}
	if _, err := v.Validate(entity.KindItinerary, `{"itins": []}`); err == nil {
		t.Fatal("expected error for empty itins")
	}
}

func TestSlugify(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Corse du Sud!", "corse-du-sud"},
		{"", "trip"},
		{"???", "trip"},
		{strings.Repeat("abc ", 20), "abc-abc-abc-abc-abc-abc-abc-ab"},
	}
	for _, tt := range tests {
		if got := slugify(tt.in); got != tt.want {
			t.Errorf("slugify(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
