package domain

import "fmt"

// RecordField enumerates the comparable identity fields of a person record.
// The set is fixed: comparison views operate over this schema instead of
// arbitrary string keys.
type RecordField string

// Comparable record fields in display order.
const (
	FieldFirstName            RecordField = "first_name"
	FieldLastName             RecordField = "last_name"
	FieldBirthDate            RecordField = "birth_date"
	FieldSocialSecurityNumber RecordField = "social_security_number"
	FieldSex                  RecordField = "sex"
	FieldRace                 RecordField = "race"
	FieldAddress              RecordField = "address"
	FieldCity                 RecordField = "city"
	FieldState                RecordField = "state"
	FieldDataSource           RecordField = "data_source"
	FieldSourcePersonID       RecordField = "source_person_id"
)

// RecordFields returns the full field schema in display order.
func RecordFields() []RecordField {
	return []RecordField{
		FieldFirstName,
		FieldLastName,
		FieldBirthDate,
		FieldSocialSecurityNumber,
		FieldSex,
		FieldRace,
		FieldAddress,
		FieldCity,
		FieldState,
		FieldDataSource,
		FieldSourcePersonID,
	}
}

// Value returns the record's value for the given field.
func (f RecordField) Value(r PersonRecord) string {
	switch f {
	case FieldFirstName:
		return r.FirstName
	case FieldLastName:
		return r.LastName
	case FieldBirthDate:
		return r.BirthDate
	case FieldSocialSecurityNumber:
		return r.SocialSecurityNumber
	case FieldSex:
		return r.Sex
	case FieldRace:
		return r.Race
	case FieldAddress:
		return r.Address
	case FieldCity:
		return r.City
	case FieldState:
		return r.State
	case FieldDataSource:
		return r.DataSource
	case FieldSourcePersonID:
		return r.SourcePersonID
	default:
		return ""
	}
}

// Set assigns the record's value for the given field.
func (f RecordField) Set(r *PersonRecord, value string) {
	switch f {
	case FieldFirstName:
		r.FirstName = value
	case FieldLastName:
		r.LastName = value
	case FieldBirthDate:
		r.BirthDate = value
	case FieldSocialSecurityNumber:
		r.SocialSecurityNumber = value
	case FieldSex:
		r.Sex = value
	case FieldRace:
		r.Race = value
	case FieldAddress:
		r.Address = value
	case FieldCity:
		r.City = value
	case FieldState:
		r.State = value
	case FieldDataSource:
		r.DataSource = value
	case FieldSourcePersonID:
		r.SourcePersonID = value
	}
}

// ParseRecordField validates a field name against the schema.
func ParseRecordField(name string) (RecordField, error) {
	for _, f := range RecordFields() {
		if string(f) == name {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown record field %q", name)
}

// CommonFieldValues returns, for every field on which all supplied records
// agree with a non-empty value, that shared value. With fewer than one record
// the result is empty.
func CommonFieldValues(records []PersonRecord) map[RecordField]string {
	out := make(map[RecordField]string)
	if len(records) == 0 {
		return out
	}
	for _, f := range RecordFields() {
		v := f.Value(records[0])
		if v == "" {
			continue
		}
		shared := true
		for _, rec := range records[1:] {
			if f.Value(rec) != v {
				shared = false
				break
			}
		}
		if shared {
			out[f] = v
		}
	}
	return out
}
