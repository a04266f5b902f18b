package state

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestStore_SaveAndLoadRun_NullFinishWhileRunning(t *testing.T) {
	out := t.TempDir()
	store, err := NewStore(out)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	run := Run{RunID: NewRunID(), StartTime: time.Unix(1, 2).UTC(), Status: RunStatusRunning}
	if err := store.SaveRun(run); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(out, ".publishom", "last-run.json"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !strings.Contains(string(data), "\"finish_time\": null") {
		t.Fatalf("expected finish_time to be null; got: %s", string(data))
	}

	loaded, err := store.LoadRun()
	if err != nil {
		t.Fatalf("LoadRun: %v", err)
	}
	if loaded.RunID != run.RunID || loaded.Status != RunStatusRunning {
		t.Fatalf("loaded run mismatch: %+v", loaded)
	}
}

func TestStore_FailedRunRequiresFailure(t *testing.T) {
	store, _ := NewStore(t.TempDir())
	finish := time.Now().UTC()
	run := Run{RunID: "r", StartTime: finish, FinishTime: &finish, Status: RunStatusFailed}
	if err := store.SaveRun(run); err == nil {
		t.Fatal("expected validation error")
	}

	v := "15.4.31"
	run.Failure = &Failure{FailureClass: FailureClassArchive, Version: &v, ErrorMessage: "7z exited with code 2"}
	if err := store.SaveRun(run); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}
	loaded, err := store.LoadRun()
	if err != nil {
		t.Fatalf("LoadRun: %v", err)
	}
	if loaded.Failure == nil || *loaded.Failure.Version != v {
		t.Fatalf("failure not persisted: %+v", loaded)
	}
}

func TestStore_LoadRunMissing(t *testing.T) {
	store, _ := NewStore(t.TempDir())
	if _, err := store.LoadRun(); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected ErrNotExist, got %v", err)
	}
}

func TestStore_Alias(t *testing.T) {
	store, _ := NewStore(t.TempDir())
	if _, ok := store.LoadAlias(); ok {
		t.Fatal("expected no alias record")
	}
	if err := store.SaveAlias(Alias{Version: "15.4.31"}); err == nil {
		t.Fatal("expected validation error")
	}
	want := Alias{Version: "15.4.31", Fingerprint: "abc"}
	if err := store.SaveAlias(want); err != nil {
		t.Fatalf("SaveAlias: %v", err)
	}
	got, ok := store.LoadAlias()
	if !ok || got != want {
		t.Fatalf("expected %+v, got %+v (ok=%v)", want, got, ok)
	}

	if err := os.WriteFile(filepath.Join(store.Dir(), "alias.json"), []byte("{garbage"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, ok := store.LoadAlias(); ok {
		t.Fatal("corrupt alias record must be ignored")
	}
}

func TestNewStore_RequiresDir(t *testing.T) {
	if _, err := NewStore("  "); err == nil {
		t.Fatal("expected error")
	}
}
