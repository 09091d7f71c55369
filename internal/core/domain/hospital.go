package domain

// Hospital is a nearby medical facility resolved from OpenStreetMap data.
type Hospital struct {
	Name       string  `json:"name"`
	Address    string  `json:"address,omitempty"`
	Lat        float64 `json:"lat"`
	Lon        float64 `json:"lon"`
	DistanceKM float64 `json:"distance_km"`
	Specialty  string  `json:"specialty,omitempty"`
	Phone      string  `json:"phone,omitempty"`
}

// HospitalQuery is a radius search around the caller's position.
type HospitalQuery struct {
	Lat       float64
	Lon       float64
	RadiusKM  float64
	Specialty string
	Limit     int
}
