package gazetteer

// DefaultSuburbs is the compiled-in service area (south-west Sydney).
// Deployments with a different footprint supply their own list via
// GAZETTEER_FILE; the matcher itself is list-agnostic.
var DefaultSuburbs = []string{
	"Abbotsbury",
	"Bankstown",
	"Bonnyrigg",
	"Bonnyrigg Heights",
	"Bossley Park",
	"Cabramatta",
	"Cabramatta West",
	"Canley Heights",
	"Canley Vale",
	"Carramar",
	"Cecil Hills",
	"Chester Hill",
	"Chipping Norton",
	"Edensor Park",
	"Fairfield",
	"Fairfield East",
	"Fairfield Heights",
	"Fairfield West",
	"Greenfield Park",
	"Green Valley",
	"Guildford",
	"Horsley Park",
	"Lansvale",
	"Liverpool",
	"Mount Pritchard",
	"Prairiewood",
	"Smithfield",
	"St Johns Park",
	"Villawood",
	"Wakeley",
	"Warwick Farm",
	"Wetherill Park",
	"Yennora",
}
