package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/orthocare/orthocare/internal/patients"
)

func TestSignInAndCreate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/auth/signin":
			var body map[string]string
			json.NewDecoder(r.Body).Decode(&body)
			if body["password"] != "pw" {
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"error":"Invalid email or password"}`))
				return
			}
			w.Write([]byte(`{"token":"tok-1"}`))
		case "/api/v1/patients":
			if r.Header.Get("Authorization") != "Bearer tok-1" {
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"error":"unauthorized"}`))
				return
			}
			var in patients.CreateInput
			json.NewDecoder(r.Body).Decode(&in)
			if in.PatientName == "" {
				w.WriteHeader(http.StatusBadRequest)
				w.Write([]byte(`{"error":"validation failed","fields":{"patientName":"Patient name is required"}}`))
				return
			}
			w.WriteHeader(http.StatusCreated)
			w.Write([]byte(`{"id":"p-1"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	ctx := context.Background()
	c := newAPIClient(srv.URL+"/", "")
	if err := c.signIn(ctx, "staff@clinic.test", "wrong"); err == nil || !strings.Contains(err.Error(), "Invalid email or password") {
		t.Errorf("bad sign-in err = %v", err)
	}
	if err := c.signIn(ctx, "staff@clinic.test", "pw"); err != nil {
		t.Fatalf("signIn: %v", err)
	}
	if c.token != "tok-1" {
		t.Errorf("token = %q", c.token)
	}

	id, err := c.createPatient(ctx, patients.CreateInput{PatientName: "John Carter"})
	if err != nil || id != "p-1" {
		t.Errorf("createPatient = %q, %v", id, err)
	}
	if _, err := c.createPatient(ctx, patients.CreateInput{}); err == nil || !strings.Contains(err.Error(), "patientName") {
		t.Errorf("invalid create err = %v", err)
	}
}

func TestGlobalFlagsSessionRequiresCredentials(t *testing.T) {
	g := &globalFlags{server: "http://127.0.0.1:0"}
	if _, err := g.session(context.Background()); err == nil {
		t.Error("session without token or email succeeded")
	}
	g.token = "given"
	c, err := g.session(context.Background())
	if err != nil || c.token != "given" {
		t.Errorf("session = %+v, %v", c, err)
	}
}
