package validation

import (
	"encoding/json"
	"testing"

	"github.com/gin-gonic/gin/binding"
)

type sampleRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=5"`
	Name     string `json:"name" binding:"required"`
}

func TestAddAndAny(t *testing.T) {
	errs := New()
	if errs.Any() {
		t.Error("Expected new error map to be empty")
	}

	errs.Add("name", "this field is required")
	errs.Add("name", "must be at least 2 characters")
	if !errs.Any() {
		t.Error("Expected error map to report errors after Add")
	}
	if len(errs["name"]) != 2 {
		t.Errorf("Expected 2 messages for name, got %d", len(errs["name"]))
	}
}

func TestMerge(t *testing.T) {
	errs := New()
	errs.Add("title", "this field is required")

	other := New()
	other.Add("title", "must be unique")
	other.Add("price", "must be 0 or more")

	errs.Merge(other)
	if len(errs["title"]) != 2 {
		t.Errorf("Expected 2 messages for title, got %d", len(errs["title"]))
	}
	if len(errs["price"]) != 1 {
		t.Errorf("Expected 1 message for price, got %d", len(errs["price"]))
	}
}

func TestFromBindingAccumulatesAllFields(t *testing.T) {
	// Invalid email, short password, missing name: all three must be reported
	err := binding.Validator.ValidateStruct(&sampleRequest{
		Email:    "not-an-email",
		Password: "pw",
	})
	if err == nil {
		t.Fatal("Expected validation to fail")
	}

	errs := FromBinding(err)
	if len(errs) != 3 {
		t.Errorf("Expected errors for 3 fields, got %d: %v", len(errs), errs)
	}
	if len(errs["email"]) == 0 {
		t.Error("Expected an error keyed by json name 'email'")
	}
	if len(errs["password"]) == 0 {
		t.Error("Expected an error for password")
	} else if errs["password"][0] != "must be at least 5 characters" {
		t.Errorf("Unexpected password message: %q", errs["password"][0])
	}
	if len(errs["name"]) == 0 {
		t.Error("Expected an error for name")
	} else if errs["name"][0] != "this field is required" {
		t.Errorf("Unexpected name message: %q", errs["name"][0])
	}
}

func TestFromBindingTypeError(t *testing.T) {
	var target struct {
		TimeMinutes int `json:"time_minutes"`
	}
	err := json.Unmarshal([]byte(`{"time_minutes": "sixty"}`), &target)
	if err == nil {
		t.Fatal("Expected unmarshal to fail")
	}

	errs := FromBinding(err)
	if len(errs["time_minutes"]) == 0 {
		t.Fatalf("Expected error keyed by time_minutes, got %v", errs)
	}
	if errs["time_minutes"][0] != "must be a valid integer" {
		t.Errorf("Unexpected message: %q", errs["time_minutes"][0])
	}
}

func TestFromBindingMalformedBody(t *testing.T) {
	var target struct{}
	err := json.Unmarshal([]byte(`{not json`), &target)
	if err == nil {
		t.Fatal("Expected unmarshal to fail")
	}

	errs := FromBinding(err)
	if len(errs["non_field_errors"]) == 0 {
		t.Errorf("Expected non_field_errors entry, got %v", errs)
	}
}
