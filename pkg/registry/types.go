// Package registry models the startup registry API: the listing search
// envelope, the nested startup profile, the registration lookup, and the
// flattened record the scraper persists.
//
// Upstream payloads are decoded into schema types whose fields are each
// independently nullable (NullString, NullBool, Nested, List). A missing or
// oddly-typed field degrades to an unset value instead of failing the decode.
package registry

import "encoding/json"

// DefaultRole is the role filter sent with every listing search.
const DefaultRole = "Startup"

// SearchFilter is the listing endpoint's POST payload.
type SearchFilter struct {
	Query               string     `json:"query"`
	FocusSector         bool       `json:"focusSector"`
	Industries          []string   `json:"industries"`
	Sectors             []string   `json:"sectors"`
	States              []string   `json:"states"`
	Cities              []string   `json:"cities"`
	Stages              []string   `json:"stages"`
	Badges              []string   `json:"badges"`
	Roles               []string   `json:"roles"`
	Page                int        `json:"page"`
	Sort                SearchSort `json:"sort"`
	DPIITRecognisedUser bool       `json:"dpiitRecogniseUser"`
	InternationalUser   bool       `json:"internationalUser"`
}

// SearchSort is the listing sort specification.
type SearchSort struct {
	Orders []SortOrder `json:"orders"`
}

// SortOrder is a single sort key.
type SortOrder struct {
	Field     string `json:"field"`
	Direction string `json:"direction"`
}

// NewSearchFilter builds the listing filter for the given region (state)
// identifiers. An empty regions list means no region restriction. Every list
// is non-nil so it encodes as [] rather than null.
func NewSearchFilter(regions []string) SearchFilter {
	states := make([]string, 0, len(regions))
	states = append(states, regions...)

	return SearchFilter{
		Query:      "",
		Industries: []string{},
		Sectors:    []string{},
		States:     states,
		Cities:     []string{},
		Stages:     []string{},
		Badges:     []string{},
		Roles:      []string{DefaultRole},
		Sort: SearchSort{Orders: []SortOrder{
			{Field: "registeredOn", Direction: "DESC"},
		}},
		DPIITRecognisedUser: true,
		InternationalUser:   false,
	}
}

// ListingPage is one page of the listing search response.
type ListingPage struct {
	Content       List[ListingItem] `json:"content"`
	TotalPages    int               `json:"totalPages"`
	TotalElements int               `json:"totalElements"`
}

// ListingItem is a summary entry in a listing page.
type ListingItem struct {
	ID   NullString `json:"id"`
	Name NullString `json:"name"`
}

// References converts the page content into references, dropping entries
// without an id.
func (p *ListingPage) References() []Reference {
	refs := make([]Reference, 0, len(p.Content))
	for _, item := range p.Content {
		if !item.ID.Present() {
			continue
		}
		refs = append(refs, Reference{ID: item.ID.String, Name: item.Name.String})
	}
	return refs
}

// Profile is the detail endpoint response.
type Profile struct {
	User Nested[ProfileUser] `json:"user"`
}

// ProfileUser is the user section of a profile.
type ProfileUser struct {
	UniqueID        NullString             `json:"uniqueId"`
	Name            NullString             `json:"name"`
	Role            NullString             `json:"role"`
	Badges          List[string]           `json:"badges"`
	CreatedOn       json.RawMessage        `json:"createdOn"`
	LastPublishedOn json.RawMessage        `json:"lastPublishedOn"`
	Startup         Nested[StartupProfile] `json:"startup"`
}

// StartupProfile is the startup section of a profile.
type StartupProfile struct {
	LegalName             NullString              `json:"legalName"`
	CIN                   NullString              `json:"cin"`
	PAN                   NullString              `json:"pan"`
	DIPPNumber            NullString              `json:"dippNumber"`
	DIPPRecognitionStatus NullString              `json:"dippRecognitionStatus"`
	DIPPCertified         NullBool                `json:"dippCertified"`
	Stage                 NullString              `json:"stage"`
	Funded                NullBool                `json:"funded"`
	IdeaBrief             NullString              `json:"ideaBrief"`
	Website               NullString              `json:"website"`
	LinkedInURL           NullString              `json:"linkedInUrl"`
	Location              Nested[ProfileLocation] `json:"location"`
	FocusArea             Nested[FocusArea]       `json:"focusArea"`
	LookingToConnectTo    List[string]            `json:"lookingToConnectTo"`
}

// ProfileLocation is the upstream location object.
type ProfileLocation struct {
	Country Nested[CountryRef] `json:"country"`
	State   Nested[StateRef]   `json:"state"`
	City    Nested[CityRef]    `json:"city"`
}

type CountryRef struct {
	CountryName NullString `json:"countryName"`
}

type StateRef struct {
	StateName NullString `json:"stateName"`
}

// CityRef names a city; upstream calls it a district.
type CityRef struct {
	DistrictName NullString `json:"districtName"`
}

// FocusArea is the upstream industry/sector classification.
type FocusArea struct {
	Industry Nested[IndustryRef] `json:"industry"`
	Sectors  List[SectorRef]     `json:"sectors"`
}

type IndustryRef struct {
	IndustryName NullString `json:"industryName"`
}

type SectorRef struct {
	SectionName NullString `json:"sectionName"`
}

// RegistrationResponse is the registration lookup envelope.
type RegistrationResponse struct {
	Status NullBool                 `json:"status"`
	Data   Nested[RegistrationData] `json:"data"`
}

// RegistrationData is the registration lookup payload.
type RegistrationData struct {
	Email               NullString `json:"email"`
	RegisteredContactNo NullString `json:"registeredContactNo"`
	RegisteredAddress   NullString `json:"registeredAddress"`
	CompanyStatus       NullString `json:"companyStatus"`
	IncorporationDate   NullString `json:"incorpdate"`
}

// Empty reports whether no field carries a value.
func (d RegistrationData) Empty() bool {
	return !d.Email.Present() &&
		!d.RegisteredContactNo.Present() &&
		!d.RegisteredAddress.Present() &&
		!d.CompanyStatus.Present() &&
		!d.IncorporationDate.Present()
}
