package domain

// RestaurantRecord is a catalog row. The catalog is read-only to this service.
type RestaurantRecord struct {
	ID          string
	Name        string
	Address     string
	City        string
	ZipCode     string
	Rating      float64
	ReviewCount int
	Phone       string
	Price       string
	URL         string
	Cuisine     string
}
