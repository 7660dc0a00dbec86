package model

// Country is reference data naming a country served by the network.
type Country struct {
	ID   uint64 // countries.id
	Name string // countries.name
}

// Locality is a town or city inside a country.  The timezone is an IANA
// name such as "Europe/Kyiv"; display conversion is a client concern.
type Locality struct {
	ID       uint64  // localities.id
	Name     string  // localities.name
	Country  Country // joined from countries
	Timezone string  // localities.timezone
}

// Station is a railway station inside a locality.  Stations are read-only
// reference data for the booking core.
type Station struct {
	ID       uint64   // stations.id
	Name     string   // stations.name
	Locality Locality // joined from localities
}

// Company is the operator running a train.
type Company struct {
	ID      uint64 // companies.id
	Name    string // companies.name
	Phone   string // companies.phone
	Email   string // companies.email
	Address string // companies.address
}
