package core

import (
	"context"
	"testing"
)

func noopMethod(context.Context, Caller, MethodInvocation) (any, error) {
	return nil, nil
}

func TestEntityRegistry_RegisterAndResolve(t *testing.T) {
	registry := NewEntityRegistry()
	if err := registry.Register("res.partner", "name_get", noopMethod); err != nil {
		t.Fatalf("register: %v", err)
	}

	if _, ok := registry.Resolve("res.partner", "name_get"); !ok {
		t.Fatalf("expected registered method to resolve")
	}
	if _, ok := registry.Resolve("res.partner", "unlink_everything"); ok {
		t.Fatalf("expected unregistered method to miss")
	}
	if _, ok := registry.Resolve("res.company", "name_get"); ok {
		t.Fatalf("expected method scoping per entity type")
	}
}

func TestEntityRegistry_RejectsDuplicatesAndBlankNames(t *testing.T) {
	registry := NewEntityRegistry()
	if err := registry.Register("res.partner", "name_get", noopMethod); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := registry.Register("res.partner", "name_get", noopMethod); err == nil {
		t.Fatalf("expected duplicate registration rejection")
	}
	if err := registry.Register("", "name_get", noopMethod); err == nil {
		t.Fatalf("expected entity type requirement")
	}
	if err := registry.Register("res.partner", " ", noopMethod); err == nil {
		t.Fatalf("expected method name requirement")
	}
	if err := registry.Register("res.partner", "other", nil); err == nil {
		t.Fatalf("expected handler requirement")
	}
}

func TestEntityRegistry_MethodsAreSorted(t *testing.T) {
	registry := NewEntityRegistry()
	for _, name := range []string{"write_batch", "name_get", "archive"} {
		if err := registry.Register("res.partner", name, noopMethod); err != nil {
			t.Fatalf("register %s: %v", name, err)
		}
	}
	names := registry.Methods("res.partner")
	if len(names) != 3 {
		t.Fatalf("expected 3 methods, got %v", names)
	}
	if names[0] != "archive" || names[1] != "name_get" || names[2] != "write_batch" {
		t.Fatalf("expected sorted method names, got %v", names)
	}
}
