package domain

// Breadcrumb is one labeled link of a navigation trail.
type Breadcrumb struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}
