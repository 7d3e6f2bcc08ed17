package domain

import "testing"

func TestRecordFieldAccess(t *testing.T) {
	rec := PersonRecord{FirstName: "Grace", City: "Derry"}
	if FieldFirstName.Value(rec) != "Grace" {
		t.Fatal("first_name accessor")
	}
	if FieldCity.Value(rec) != "Derry" {
		t.Fatal("city accessor")
	}
	FieldState.Set(&rec, "NH")
	if rec.State != "NH" {
		t.Fatal("state setter")
	}
	if _, err := ParseRecordField("first_name"); err != nil {
		t.Fatalf("parse valid field: %v", err)
	}
	if _, err := ParseRecordField("shoe_size"); err == nil {
		t.Fatal("unknown field accepted")
	}
}

func TestCommonFieldValues(t *testing.T) {
	records := []PersonRecord{
		{FirstName: "Grace", LastName: "Hopper", City: "Arlington"},
		{FirstName: "Grace", LastName: "Murray", City: "Arlington"},
	}
	common := CommonFieldValues(records)
	if common[FieldFirstName] != "Grace" {
		t.Fatal("shared first name missing")
	}
	if _, ok := common[FieldLastName]; ok {
		t.Fatal("divergent last name reported common")
	}
	if common[FieldCity] != "Arlington" {
		t.Fatal("shared city missing")
	}
	if _, ok := common[FieldBirthDate]; ok {
		t.Fatal("empty field reported common")
	}
	if len(CommonFieldValues(nil)) != 0 {
		t.Fatal("nil records should share nothing")
	}
}
