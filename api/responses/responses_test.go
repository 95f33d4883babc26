package responses

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	pkgerrors "github.com/shopzone/shopzone-backend/pkg/errors"
	"github.com/shopzone/shopzone-backend/pkg/types"
)

func TestWriteMessage(t *testing.T) {
	w := httptest.NewRecorder()
	WriteMessage(w, http.StatusCreated, "Product added successfully", map[string]string{"name": "demo"})

	if got := w.Code; got != http.StatusCreated {
		t.Fatalf("expected status 201 but got %d", got)
	}

	var body types.MessageEnvelope
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode message envelope: %v", err)
	}
	if body.Message != "Product added successfully" {
		t.Fatalf("unexpected message %q", body.Message)
	}
	if body.Data.(map[string]any)["name"] != "demo" {
		t.Fatalf("unexpected payload %v", body.Data)
	}
}

func TestWriteEntitySkipsEnvelope(t *testing.T) {
	w := httptest.NewRecorder()
	WriteEntity(w, http.StatusOK, map[string]any{"id": "abc", "items": []string{}})

	var body map[string]any
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode entity: %v", err)
	}
	if _, wrapped := body["data"]; wrapped {
		t.Fatal("entity responses must not be wrapped in an envelope")
	}
	if body["id"] != "abc" {
		t.Fatalf("unexpected payload %v", body)
	}
}

func TestWriteErrorMapsTypedError(t *testing.T) {
	w := httptest.NewRecorder()
	err := pkgerrors.New(pkgerrors.CodeValidation, "bad input").
		WithDetails(map[string]string{"field": "demo"})
	WriteError(context.Background(), nil, w, err)

	if got := w.Code; got != http.StatusBadRequest {
		t.Fatalf("expected status 400 but got %d", got)
	}

	var body types.APIError
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error payload: %v", err)
	}
	if body.ErrorCode != string(pkgerrors.CodeValidation) {
		t.Fatalf("unexpected code %s", body.ErrorCode)
	}
	if body.Message != "bad input" {
		t.Fatalf("unexpected message %q", body.Message)
	}
	if body.Details == nil {
		t.Fatalf("expected details in public payload")
	}
}

func TestWriteErrorDefaultsToInternalForUntrustedErrors(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(context.Background(), nil, w, errors.New("boom"))

	if got := w.Code; got != http.StatusInternalServerError {
		t.Fatalf("expected status 500 but got %d", got)
	}

	var body types.APIError
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error payload: %v", err)
	}
	if body.ErrorCode != string(pkgerrors.CodeInternal) {
		t.Fatalf("unexpected code %s", body.ErrorCode)
	}
	if body.Details != nil {
		t.Fatalf("details should be omitted for internal errors")
	}
}

func TestWriteErrorNotFoundUsesTypedMessage(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(context.Background(), nil, w, pkgerrors.New(pkgerrors.CodeNotFound, "Cart not found"))

	if got := w.Code; got != http.StatusNotFound {
		t.Fatalf("expected status 404 but got %d", got)
	}

	var body types.APIError
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error payload: %v", err)
	}
	if body.Message != "Cart not found" {
		t.Fatalf("unexpected message %q", body.Message)
	}
}
