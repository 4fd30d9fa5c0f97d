package storage

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"ammcore/internal/model"
)

func TestJsonlJournalAppendAndRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ops.jsonl")
	j := NewJsonlJournal(path)

	params, _ := json.Marshal(model.SwapOpParams{Amount: "1000", IsToken1: true})
	ops := []model.OpRecord{
		{Seq: 1, Kind: model.OpInitialize, Locker: "0x0000000000000000000000000000000000000a11"},
		{Seq: 2, Kind: model.OpSwap, Locker: "0x0000000000000000000000000000000000000a11", Params: params},
	}
	if err := j.Append(ops[:1]); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := j.Append(ops[1:]); err != nil {
		t.Fatalf("Append: %v", err)
	}

	got, err := j.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("read %d ops, want 2", len(got))
	}
	if got[0].Seq != 1 || got[1].Seq != 2 {
		t.Fatalf("order lost: %d, %d", got[0].Seq, got[1].Seq)
	}
	if got[1].Kind != model.OpSwap {
		t.Fatalf("kind = %s, want swap", got[1].Kind)
	}
	var decoded model.SwapOpParams
	if err := json.Unmarshal(got[1].Params, &decoded); err != nil {
		t.Fatalf("params: %v", err)
	}
	if decoded.Amount != "1000" || !decoded.IsToken1 {
		t.Fatalf("params mangled: %+v", decoded)
	}
}

func TestJsonlJournalMissingFile(t *testing.T) {
	j := NewJsonlJournal(filepath.Join(t.TempDir(), "absent.jsonl"))
	ops, err := j.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(ops) != 0 {
		t.Fatalf("got %d ops from a missing journal", len(ops))
	}
}
