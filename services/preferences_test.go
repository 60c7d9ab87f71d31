package services

import (
	"reflect"
	"testing"

	"realestate-leads/models"
)

func TestPreferencesFilter(t *testing.T) {
	no := false
	p := Preferences{
		Cities:                  []string{" תל אביב ", "רמת גן,חיפה", ""},
		PropertyTypes:           []string{models.PropertyTypePenthouse},
		PriceRange:              PriceRange{Min: 1000000, Max: 3000000},
		MinRooms:                3,
		MaxSize:                 120,
		IncludeEvictionBuilding: &no,
	}
	f := p.Filter()

	if want := []string{"תל אביב", "רמת גן", "חיפה"}; !reflect.DeepEqual(f.Cities, want) {
		t.Errorf("Cities: got %v, want %v", f.Cities, want)
	}
	if f.Neighborhoods != nil {
		t.Errorf("Neighborhoods: got %v, want nil", f.Neighborhoods)
	}
	if f.MinPrice != 1000000 || f.MaxPrice != 3000000 || f.MinRooms != 3 || f.MaxRooms != 0 || f.MaxSize != 120 {
		t.Errorf("ranges: %+v", f)
	}
	if !f.HotOnly || f.Status != models.StatusActive || !f.ExcludeEviction {
		t.Errorf("flags: hot=%v status=%q excludeEviction=%v", f.HotOnly, f.Status, f.ExcludeEviction)
	}
}

func TestPreferencesEvictionDefaultsToIncluded(t *testing.T) {
	if (Preferences{}).Filter().ExcludeEviction {
		t.Error("eviction buildings should be included by default")
	}
	yes := true
	if (Preferences{IncludeEvictionBuilding: &yes}).Filter().ExcludeEviction {
		t.Error("explicit include should not exclude")
	}
}

func TestPreferencesValidate(t *testing.T) {
	tests := []struct {
		name    string
		p       Preferences
		wantErr bool
	}{
		{"empty", Preferences{}, false},
		{"open max", Preferences{PriceRange: PriceRange{Min: 5}}, false},
		{"inverted price", Preferences{PriceRange: PriceRange{Min: 5, Max: 1}}, true},
		{"inverted rooms", Preferences{MinRooms: 5, MaxRooms: 2}, true},
		{"negative size", Preferences{MinSize: -1}, true},
	}
	for _, tt := range tests {
		if err := tt.p.Validate(); (err != nil) != tt.wantErr {
			t.Errorf("%s: Validate() error = %v, wantErr %v", tt.name, err, tt.wantErr)
		}
	}
}
