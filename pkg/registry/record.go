package registry

import (
	"encoding/json"
	"strings"
)

// DefaultPhoneRegion is the region used to parse registered phone numbers.
const DefaultPhoneRegion = "IN"

// Reference is a lightweight (id, name) pair produced by the listing harvest.
type Reference struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Record is the flattened startup entity persisted to the output collection.
type Record struct {
	ID                  NullString      `json:"id"`
	Name                NullString      `json:"name"`
	LegalName           NullString      `json:"legalName"`
	Role                NullString      `json:"role"`
	RegistrationID      NullString      `json:"registrationId"`
	TaxID               NullString      `json:"taxId"`
	CertificationNumber NullString      `json:"certificationNumber"`
	CertificationStatus NullString      `json:"certificationStatus"`
	IsCertified         NullBool        `json:"isCertified"`
	Stage               NullString      `json:"stage"`
	IsFunded            NullBool        `json:"isFunded"`
	Description         NullString      `json:"description"`
	Website             NullString      `json:"website"`
	LinkedInURL         NullString      `json:"linkedInUrl"`
	Location            Location        `json:"location"`
	Industry            NullString      `json:"industry"`
	Sectors             []string        `json:"sectors"`
	LookingToConnectTo  []string        `json:"lookingToConnectTo"`
	Badges              []string        `json:"badges"`
	CreatedOn           json.RawMessage `json:"createdOn"`
	PublishedOn         json.RawMessage `json:"publishedOn"`
	Contact             Contact         `json:"contact"`

	// Present only when registration data was retrieved.
	CompanyStatus     *NullString `json:"companyStatus,omitempty"`
	IncorporationDate *NullString `json:"incorporationDate,omitempty"`
}

// Location is the flattened location of a startup.
type Location struct {
	Country NullString `json:"country"`
	State   NullString `json:"state"`
	City    NullString `json:"city"`
}

// Contact holds contact details from the registration lookup.
type Contact struct {
	Email             NullString `json:"email"`
	Phone             NullString `json:"phone"`
	PhoneE164         string     `json:"phoneE164,omitempty"`
	RegisteredAddress NullString `json:"registeredAddress"`
}

// HasRegistrationID reports whether the record carries a registration id.
func (r Record) HasRegistrationID() bool {
	return r.RegistrationID.Present()
}

// HasEmail reports whether the record carries a contact email.
func (r Record) HasEmail() bool {
	return r.Contact.Email.Present()
}

// HasPhone reports whether the record carries a contact phone.
func (r Record) HasPhone() bool {
	return r.Contact.Phone.Present()
}

// RegistrationID extracts the registration identifier from a profile.
// Absent values, blank strings and the literal "null" report false.
func (p *Profile) RegistrationID() (string, bool) {
	if p == nil {
		return "", false
	}

	cin := p.User.Value().Startup.Value().CIN
	if !cin.Valid {
		return "", false
	}

	id := strings.TrimSpace(cin.String)
	if id == "" || strings.EqualFold(id, "null") {
		return "", false
	}

	return id, true
}

// Normalize merges a profile and its optional registration data into a Record.
func Normalize(p *Profile, reg *RegistrationData) Record {
	var user ProfileUser
	if p != nil {
		user = p.User.Value()
	}
	startup := user.Startup.Value()
	location := startup.Location.Value()
	focus := startup.FocusArea.Value()

	sectors := make([]string, 0, len(focus.Sectors))
	for _, s := range focus.Sectors {
		if s.SectionName.Present() {
			sectors = append(sectors, s.SectionName.String)
		}
	}

	record := Record{
		ID:                  user.UniqueID,
		Name:                user.Name,
		LegalName:           startup.LegalName,
		Role:                user.Role,
		RegistrationID:      startup.CIN,
		TaxID:               startup.PAN,
		CertificationNumber: startup.DIPPNumber,
		CertificationStatus: startup.DIPPRecognitionStatus,
		IsCertified:         startup.DIPPCertified,
		Stage:               startup.Stage,
		IsFunded:            startup.Funded,
		Description:         startup.IdeaBrief,
		Website:             NormalizeWebsite(startup.Website),
		LinkedInURL:         startup.LinkedInURL,
		Location: Location{
			Country: location.Country.Value().CountryName,
			State:   location.State.Value().StateName,
			City:    location.City.Value().DistrictName,
		},
		Industry:           focus.Industry.Value().IndustryName,
		Sectors:            sectors,
		LookingToConnectTo: nonNil(startup.LookingToConnectTo),
		Badges:             nonNil(user.Badges),
		CreatedOn:          user.CreatedOn,
		PublishedOn:        user.LastPublishedOn,
	}

	if reg != nil {
		record.Contact = Contact{
			Email:             NormalizeEmail(reg.Email),
			Phone:             reg.RegisteredContactNo,
			PhoneE164:         NormalizePhone(reg.RegisteredContactNo.String, DefaultPhoneRegion),
			RegisteredAddress: reg.RegisteredAddress,
		}
		companyStatus := reg.CompanyStatus
		incorporationDate := reg.IncorporationDate
		record.CompanyStatus = &companyStatus
		record.IncorporationDate = &incorporationDate
	}

	return record
}

func nonNil(list List[string]) []string {
	out := make([]string, 0, len(list))
	return append(out, list...)
}
