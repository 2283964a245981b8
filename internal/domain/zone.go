package domain

// Zone — операционная зона, к которой приписаны работники.
type Zone struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Code string `json:"code,omitempty"`
}

// DefaultZones возвращает встроенный набор зон.
// Используется, когда ни один источник зон не ответил.
func DefaultZones() []Zone {
	return []Zone{
		{ID: "zone-north", Name: "North Zone", Code: "N"},
		{ID: "zone-south", Name: "South Zone", Code: "S"},
		{ID: "zone-east", Name: "East Zone", Code: "E"},
		{ID: "zone-west", Name: "West Zone", Code: "W"},
		{ID: "zone-central", Name: "Central Zone", Code: "C"},
	}
}
