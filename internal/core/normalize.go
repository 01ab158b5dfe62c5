package core

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Field is a canonical import attribute.
type Field string

const (
	FieldClientName      Field = "client_name"
	FieldEmail           Field = "email"
	FieldPhone           Field = "phone"
	FieldAddress         Field = "address"
	FieldPetName         Field = "pet_name"
	FieldPetBreed        Field = "pet_breed"
	FieldPetWeight       Field = "pet_weight"
	FieldPetAge          Field = "pet_age"
	FieldPetNotes        Field = "pet_notes"
	FieldPetSpecies      Field = "pet_species"
	FieldLastVisit       Field = "last_visit"
	FieldNextAppointment Field = "next_appointment"
)

// FieldSpec lists the input columns that feed one canonical field.
// Aliases are tried in order; the first non-empty value wins.
type FieldSpec struct {
	Field   Field
	Aliases []string
}

// FieldSpecs is the alias table. Adding a source column name is a one-line change here.
var FieldSpecs = []FieldSpec{
	{FieldClientName, []string{"name", "client_name"}},
	{FieldEmail, []string{"email"}},
	{FieldPhone, []string{"phone", "phone_number"}},
	{FieldAddress, []string{"address"}},
	{FieldPetName, []string{"pet_name"}},
	{FieldPetBreed, []string{"pet_breed", "breed"}},
	{FieldPetWeight, []string{"pet_weight", "weight"}},
	{FieldPetAge, []string{"pet_age", "age"}},
	{FieldPetNotes, []string{"pet_notes", "notes"}},
	{FieldPetSpecies, []string{"species", "pet_species"}},
	{FieldLastVisit, []string{"last_visit"}},
	{FieldNextAppointment, []string{"next_appointment"}},
}

// skipKeys are the primary column names checked for a blank row. Aliases do
// not count: a row carrying only client_name is still skipped.
var skipKeys = []string{"name", "email", "pet_name"}

const (
	UnknownClientName = "Unknown Client"
	DefaultSpecies    = "dog"
	placeholderDomain = "migrated.local"
)

var (
	leadingFloat = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?`)
	leadingInt   = regexp.MustCompile(`^[+-]?\d+`)
)

// Candidate is the normalized form of one row, before any datastore call.
type Candidate struct {
	Client ClientRecord
	Pet    *PetRecord // nil when the row names no pet

	// Skippable rows have no name, email, or pet_name and are counted, not written.
	Skippable bool

	LastVisit       string
	NextAppointment string
}

// NormalizeKey folds a column name for matching: lower case, with spaces and
// hyphens turned into underscores. "Pet Name" and "pet-name" both become "pet_name".
func NormalizeKey(key string) string {
	key = strings.ToLower(strings.TrimSpace(key))
	return strings.NewReplacer(" ", "_", "-", "_").Replace(key)
}

// rowView resolves values by folded column name.
type rowView map[string]string

func newRowView(row ImportRow) rowView {
	// Sorted so that when two raw keys fold to the same name the result does
	// not depend on map order: the first non-empty value in key order wins.
	keys := make([]string, 0, len(row))
	for k := range row {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	view := make(rowView, len(row))
	for _, k := range keys {
		folded := NormalizeKey(k)
		v := strings.TrimSpace(row[k])
		if existing, ok := view[folded]; ok && existing != "" {
			continue
		}
		view[folded] = v
	}
	return view
}

func (v rowView) get(key string) string {
	return v[key]
}

func (v rowView) field(f Field) string {
	for _, spec := range FieldSpecs {
		if spec.Field != f {
			continue
		}
		for _, alias := range spec.Aliases {
			if val := v[alias]; val != "" {
				return val
			}
		}
	}
	return ""
}

// LookupField returns the canonical field an input column feeds, if any.
func LookupField(column string) (Field, bool) {
	folded := NormalizeKey(column)
	for _, spec := range FieldSpecs {
		for _, alias := range spec.Aliases {
			if alias == folded {
				return spec.Field, true
			}
		}
	}
	return "", false
}

// IsSkippable reports whether a row has no name, email, or pet_name.
func IsSkippable(row ImportRow) bool {
	return newRowView(row).skippable()
}

func (v rowView) skippable() bool {
	for _, k := range skipKeys {
		if v.get(k) != "" {
			return false
		}
	}
	return true
}

// Normalize maps a raw row to canonical records. index is the 0-based row
// position, used to build a placeholder email when the row has none.
// Normalize never fails: malformed numbers are simply left unset.
func Normalize(row ImportRow, index int, organizationID string) Candidate {
	v := newRowView(row)

	c := Candidate{
		Skippable:       v.skippable(),
		LastVisit:       v.field(FieldLastVisit),
		NextAppointment: v.field(FieldNextAppointment),
	}

	c.Client = ClientRecord{
		Name:           orDefault(v.field(FieldClientName), UnknownClientName),
		Email:          normalizeEmail(v.field(FieldEmail), index),
		Phone:          optional(v.field(FieldPhone)),
		Address:        optional(v.field(FieldAddress)),
		OrganizationID: organizationID,
	}

	if petName := v.field(FieldPetName); petName != "" {
		c.Pet = &PetRecord{
			Name:           petName,
			Breed:          optional(v.field(FieldPetBreed)),
			WeightKg:       parseLeadingFloat(v.field(FieldPetWeight)),
			AgeYears:       parseLeadingInt(v.field(FieldPetAge)),
			Notes:          optional(v.field(FieldPetNotes)),
			OrganizationID: organizationID,
			Species:        orDefault(strings.ToLower(v.field(FieldPetSpecies)), DefaultSpecies),
		}
	}

	return c
}

// PlaceholderEmail is the synthetic address given to a row without an email.
// It is unique within one call but not across calls.
func PlaceholderEmail(index int) string {
	return fmt.Sprintf("client%d@%s", index, placeholderDomain)
}

func normalizeEmail(raw string, index int) string {
	if raw == "" {
		return PlaceholderEmail(index)
	}
	return strings.ToLower(raw)
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// parseLeadingFloat reads the numeric prefix of s ("12.5kg" -> 12.5).
func parseLeadingFloat(s string) *float64 {
	m := leadingFloat.FindString(s)
	if m == "" {
		return nil
	}
	f, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return nil
	}
	return &f
}

// parseLeadingInt reads the integer prefix of s ("5 years" -> 5).
func parseLeadingInt(s string) *int {
	m := leadingInt.FindString(s)
	if m == "" {
		return nil
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return nil
	}
	return &n
}
