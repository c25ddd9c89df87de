package db

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestExtractOrganisationID_FromHeader(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(OrganisationHeader, "leeds_sais")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	oid := extractOrganisationID(c, "default")
	if oid != "leeds_sais" {
		t.Errorf("expected leeds_sais, got %s", oid)
	}
}

func TestExtractOrganisationID_FromQuery(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/?organisation_id=york_sais", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	oid := extractOrganisationID(c, "default")
	if oid != "york_sais" {
		t.Errorf("expected york_sais, got %s", oid)
	}
}

func TestExtractOrganisationID_HeaderPriorityOverQuery(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/?organisation_id=query_org", nil)
	req.Header.Set(OrganisationHeader, "header_org")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	oid := extractOrganisationID(c, "default")
	if oid != "header_org" {
		t.Errorf("expected header_org (header has priority over query), got %s", oid)
	}
}

func TestExtractOrganisationID_Default(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	oid := extractOrganisationID(c, "default")
	if oid != "default" {
		t.Errorf("expected default, got %s", oid)
	}
}

func TestOrganisationMiddleware_RejectsInvalidID(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(OrganisationHeader, "'; DROP TABLE")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	called := false
	h := OrganisationMiddleware(nil, "default")(func(c echo.Context) error {
		called = true
		return nil
	})
	err := h(c)
	if err == nil {
		t.Fatal("expected error for invalid organisation")
	}
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Errorf("expected 400 HTTPError, got %v", err)
	}
	if called {
		t.Error("next handler should not run")
	}
}

func TestOrganisationIDPattern_Comprehensive(t *testing.T) {
	tests := []struct {
		input string
		valid bool
	}{
		{"abc", true},
		{"ABC", true},
		{"abc123", true},
		{"org_1", true},
		{"a", true},
		{"a-b", false},
		{"a.b", false},
		{"a b", false},
		{"a/b", false},
		{"", false},
		{"$pecial", false},
		{"org@1", false},
	}

	for _, tt := range tests {
		got := organisationIDPattern.MatchString(tt.input)
		if got != tt.valid {
			t.Errorf("organisationIDPattern.MatchString(%q) = %v, want %v", tt.input, got, tt.valid)
		}
	}
}

func TestSchemaName(t *testing.T) {
	if got := SchemaName("leeds"); got != "org_leeds" {
		t.Errorf("SchemaName(leeds) = %q, want org_leeds", got)
	}
}

func TestConnFromContext_Nil(t *testing.T) {
	if conn := ConnFromContext(context.Background()); conn != nil {
		t.Error("expected nil conn from empty context")
	}
}

func TestConnFromContext_WrongType(t *testing.T) {
	ctx := context.WithValue(context.Background(), DBConnKey, "not-a-conn")
	if conn := ConnFromContext(ctx); conn != nil {
		t.Error("expected nil when context value is wrong type")
	}
}

func TestTxFromContext_Nil(t *testing.T) {
	if tx := TxFromContext(context.Background()); tx != nil {
		t.Error("expected nil tx from empty context")
	}
}

func TestTxFromContext_WrongType(t *testing.T) {
	ctx := context.WithValue(context.Background(), DBTxKey, "not-a-tx")
	if tx := TxFromContext(ctx); tx != nil {
		t.Error("expected nil when context value is wrong type")
	}
}

func TestOrganisationFromContext(t *testing.T) {
	ctx := context.WithValue(context.Background(), OrganisationIDKey, "test_org")
	if oid := OrganisationFromContext(ctx); oid != "test_org" {
		t.Errorf("expected test_org, got %s", oid)
	}
	if empty := OrganisationFromContext(context.Background()); empty != "" {
		t.Errorf("expected empty string, got %s", empty)
	}
	wrong := context.WithValue(context.Background(), OrganisationIDKey, 12345)
	if oid := OrganisationFromContext(wrong); oid != "" {
		t.Errorf("expected empty string when context value is wrong type, got %q", oid)
	}
}

func TestWithTx_NoConnection(t *testing.T) {
	_, _, err := WithTx(context.Background())
	if err == nil {
		t.Fatal("expected error when no connection in context")
	}
	if err.Error() != "no database connection in context" {
		t.Errorf("unexpected error message: %s", err.Error())
	}
}

func TestTransactor_RunsDirectlyWithoutConnection(t *testing.T) {
	ran := false
	err := Transactor{}.InTx(context.Background(), func(ctx context.Context) error {
		ran = true
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ran {
		t.Error("expected fn to run")
	}
}

func TestCreateOrganisationSchema_InvalidIDs(t *testing.T) {
	for _, id := range []string{"org-with-dash", "org.with.dot", "or g", "drop;table", ""} {
		if err := CreateOrganisationSchema(context.Background(), nil, id, nil); err == nil {
			t.Errorf("expected error for invalid organisation ID %q", id)
		}
	}
}

func TestScopedConn_InvalidID(t *testing.T) {
	_, release, err := ScopedConn(context.Background(), nil, "bad-id")
	defer release()
	if err == nil {
		t.Error("expected error for invalid organisation ID")
	}
}
