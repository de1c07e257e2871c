package models

import (
	"sort"
	"strconv"
	"strings"
)

// PersonalInfo holds the optional personal attributes of a profile.
type PersonalInfo struct {
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
	Address   string `json:"address,omitempty"`
	City      string `json:"city,omitempty"`
	State     string `json:"state,omitempty"`
	ZipCode   string `json:"zipCode,omitempty"`
	Country   string `json:"country,omitempty"`
	LinkedIn  string `json:"linkedIn,omitempty"`
	Github    string `json:"github,omitempty"`
	Portfolio string `json:"portfolio,omitempty"`
}

// PersonalKeys lists the personal attribute names in a fixed order.
var PersonalKeys = []string{
	"firstName", "lastName", "email", "phone", "address", "city",
	"state", "zipCode", "country", "linkedIn", "github", "portfolio",
}

// Get returns the personal attribute by its JSON name.
func (p PersonalInfo) Get(key string) (string, bool) {
	switch key {
	case "firstName":
		return p.FirstName, true
	case "lastName":
		return p.LastName, true
	case "email":
		return p.Email, true
	case "phone":
		return p.Phone, true
	case "address":
		return p.Address, true
	case "city":
		return p.City, true
	case "state":
		return p.State, true
	case "zipCode":
		return p.ZipCode, true
	case "country":
		return p.Country, true
	case "linkedIn":
		return p.LinkedIn, true
	case "github":
		return p.Github, true
	case "portfolio":
		return p.Portfolio, true
	}
	return "", false
}

type WorkExperience struct {
	Company     string `json:"company"`
	Position    string `json:"position"`
	StartDate   string `json:"startDate,omitempty"`
	EndDate     string `json:"endDate,omitempty"`
	Current     bool   `json:"current"`
	Description string `json:"description,omitempty"`
	Location    string `json:"location,omitempty"`
}

// Attributes returns the experience attributes in a fixed order.
func (w WorkExperience) Attributes() []Attribute {
	return []Attribute{
		{"company", StringValue(w.Company)},
		{"position", StringValue(w.Position)},
		{"startDate", StringValue(w.StartDate)},
		{"endDate", StringValue(w.EndDate)},
		{"current", BoolValue(w.Current)},
		{"description", StringValue(w.Description)},
		{"location", StringValue(w.Location)},
	}
}

type Project struct {
	Name         string   `json:"name"`
	Description  string   `json:"description,omitempty"`
	Role         string   `json:"role,omitempty"`
	Technologies []string `json:"technologies,omitempty"`
	URL          string   `json:"url,omitempty"`
	StartDate    string   `json:"startDate,omitempty"`
	EndDate      string   `json:"endDate,omitempty"`
}

func (p Project) Attributes() []Attribute {
	return []Attribute{
		{"name", StringValue(p.Name)},
		{"description", StringValue(p.Description)},
		{"role", StringValue(p.Role)},
		{"technologies", ListValue(p.Technologies)},
		{"url", StringValue(p.URL)},
		{"startDate", StringValue(p.StartDate)},
		{"endDate", StringValue(p.EndDate)},
	}
}

type Education struct {
	Degree         string `json:"degree"`
	School         string `json:"school"`
	GraduationYear string `json:"graduationYear,omitempty"`
	GPA            string `json:"gpa,omitempty"`
	Major          string `json:"major,omitempty"`
	Location       string `json:"location,omitempty"`
}

func (e Education) Attributes() []Attribute {
	return []Attribute{
		{"degree", StringValue(e.Degree)},
		{"school", StringValue(e.School)},
		{"graduationYear", StringValue(e.GraduationYear)},
		{"gpa", StringValue(e.GPA)},
		{"major", StringValue(e.Major)},
		{"location", StringValue(e.Location)},
	}
}

// Attribute is one named profile value.
type Attribute struct {
	Name  string
	Value Value
}

// Profile is a user-owned record of values used for filling.
type Profile struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Personal    PersonalInfo      `json:"personal"`
	Experiences []WorkExperience  `json:"experiences"`
	Projects    []Project         `json:"projects"`
	Education   []Education       `json:"education"`
	Skills      []string          `json:"skills"`
	Custom      map[string]string `json:"custom"`
	CreatedAt   int64             `json:"createdAt"`
	UpdatedAt   int64             `json:"updatedAt"`
}

// ProfilePath pairs an attribute path with its current value.
type ProfilePath struct {
	Path  string
	Value Value
}

// CandidatePaths lists every attribute path that carries a value, in a
// deterministic order: personal keys, first experience, first project,
// first education entry, skills, then custom keys sorted by name.
func (p *Profile) CandidatePaths() []ProfilePath {
	var out []ProfilePath
	for _, key := range PersonalKeys {
		if v, _ := p.Personal.Get(key); v != "" {
			out = append(out, ProfilePath{"personal." + key, StringValue(v)})
		}
	}
	if len(p.Experiences) > 0 {
		out = appendAttributes(out, "experiences.0.", p.Experiences[0].Attributes())
	}
	if len(p.Projects) > 0 {
		out = appendAttributes(out, "projects.0.", p.Projects[0].Attributes())
	}
	if len(p.Education) > 0 {
		out = appendAttributes(out, "education.0.", p.Education[0].Attributes())
	}
	if len(p.Skills) > 0 {
		out = append(out, ProfilePath{"skills", ListValue(p.Skills)})
	}
	keys := make([]string, 0, len(p.Custom))
	for k := range p.Custom {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		out = append(out, ProfilePath{"custom." + k, StringValue(p.Custom[k])})
	}
	return out
}

func appendAttributes(out []ProfilePath, prefix string, attrs []Attribute) []ProfilePath {
	for _, a := range attrs {
		if !hasContent(a.Value) {
			continue
		}
		out = append(out, ProfilePath{prefix + a.Name, a.Value})
	}
	return out
}

func hasContent(v Value) bool {
	switch v.Kind {
	case ValueString:
		return v.Str != ""
	case ValueList:
		return len(v.List) > 0
	case ValueBool:
		return true
	}
	return false
}

// Lookup resolves a dot path such as "personal.email" or "experiences.1.company".
func (p *Profile) Lookup(path string) (Value, bool) {
	parts := strings.Split(path, ".")
	switch parts[0] {
	case "id":
		return StringValue(p.ID), len(parts) == 1
	case "name":
		return StringValue(p.Name), len(parts) == 1
	case "skills":
		return ListValue(p.Skills), len(parts) == 1
	case "personal":
		if len(parts) != 2 {
			return Value{}, false
		}
		v, ok := p.Personal.Get(parts[1])
		return StringValue(v), ok
	case "custom":
		if len(parts) < 2 {
			return Value{}, false
		}
		v, ok := p.Custom[strings.Join(parts[1:], ".")]
		return StringValue(v), ok
	case "experiences", "projects", "education":
		if len(parts) != 3 {
			return Value{}, false
		}
		idx, err := strconv.Atoi(parts[1])
		if err != nil || idx < 0 {
			return Value{}, false
		}
		var attrs []Attribute
		switch parts[0] {
		case "experiences":
			if idx >= len(p.Experiences) {
				return Value{}, false
			}
			attrs = p.Experiences[idx].Attributes()
		case "projects":
			if idx >= len(p.Projects) {
				return Value{}, false
			}
			attrs = p.Projects[idx].Attributes()
		default:
			if idx >= len(p.Education) {
				return Value{}, false
			}
			attrs = p.Education[idx].Attributes()
		}
		for _, a := range attrs {
			if a.Name == parts[2] {
				return a.Value, true
			}
		}
	}
	return Value{}, false
}

// DomainMapping is a per-origin override from selector to profile path.
type DomainMapping struct {
	Domain        string            `json:"domain"`
	FieldMappings map[string]string `json:"fieldMappings"`
	LastUsed      int64             `json:"lastUsed"`
}
