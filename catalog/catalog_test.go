package catalog

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"teamtrivia/engine"
)

const sampleYAML = `
rounds:
  - title: Warmup
    theme: Easy ones
    points_per_question: 10
    questions:
      - id: 1
        text: Two plus two?
        options: ["3", "4"]
        correct_index: 1
      - id: 2
        text: Sky color?
        options: [Blue, Green, Red]
        correct_index: 0
  - title: Final
    theme: Closest wins
    points_per_question: 20
    questions:
      - id: 3
        text: How many applications?
        type: open-ended
        target: 26196
`

func TestParseAppliesDefaults(t *testing.T) {
	c, err := Parse([]byte(sampleYAML))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	if !reflect.DeepEqual(c.Shape(), engine.Shape{2, 1}) {
		t.Errorf("shape = %v", c.Shape())
	}
	if c.Rounds[0].TimerSeconds != DefaultTimerSeconds {
		t.Errorf("round 0 timer = %d", c.Rounds[0].TimerSeconds)
	}
	if c.Rounds[1].TimerSeconds != FinalTimerSeconds {
		t.Errorf("final round timer = %d", c.Rounds[1].TimerSeconds)
	}
	if c.Rounds[0].Questions[0].Type != MultipleChoice {
		t.Errorf("question type default = %q", c.Rounds[0].Questions[0].Type)
	}
	if c.TotalQuestions() != 3 {
		t.Errorf("total questions = %d", c.TotalQuestions())
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	if err := os.WriteFile(path, []byte(sampleYAML), 0o600); err != nil {
		t.Fatal(err)
	}
	c, err := LoadFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	_, q, err := c.Question(1, 0)
	if err != nil {
		t.Fatal(err)
	}
	if !q.IsOpenEnded() || q.Target != 26196 {
		t.Errorf("unexpected final question: %+v", q)
	}

	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestValidateRejectsBadCatalogs(t *testing.T) {
	tests := map[string]string{
		"no rounds":         `rounds: []`,
		"empty round":       "rounds:\n  - title: x\n    points_per_question: 1\n    questions: []",
		"no points":         "rounds:\n  - title: x\n    questions:\n      - text: q\n        options: [a, b]",
		"one option":        "rounds:\n  - title: x\n    points_per_question: 1\n    questions:\n      - text: q\n        options: [a]",
		"index range":       "rounds:\n  - title: x\n    points_per_question: 1\n    questions:\n      - text: q\n        options: [a, b]\n        correct_index: 2",
		"open with options": "rounds:\n  - title: x\n    points_per_question: 1\n    questions:\n      - text: q\n        type: open-ended\n        target: 5\n        options: [a, b]",
		"open no target":    "rounds:\n  - title: x\n    points_per_question: 1\n    questions:\n      - text: q\n        type: open-ended",
		"unknown type":      "rounds:\n  - title: x\n    points_per_question: 1\n    questions:\n      - text: q\n        type: essay",
	}

	for name, doc := range tests {
		if _, err := Parse([]byte(doc)); err == nil {
			t.Errorf("%s: expected validation error", name)
		}
	}
}

func TestQuestionLookup(t *testing.T) {
	c := Default()

	if _, _, err := c.Question(99, 0); !errors.Is(err, engine.ErrNotFound) {
		t.Errorf("unknown round: %v", err)
	}
	if _, _, err := c.Question(0, 99); !errors.Is(err, engine.ErrNotFound) {
		t.Errorf("unknown question: %v", err)
	}
	if _, _, err := c.Question(-1, 0); !errors.Is(err, engine.ErrNotFound) {
		t.Errorf("negative round: %v", err)
	}

	r, q, err := c.Question(0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if r.PointsPerQuestion != 10 || q.Text == "" {
		t.Errorf("unexpected lookup result %+v %+v", r, q)
	}
}

func TestDefaultCatalogIsValid(t *testing.T) {
	c := Default()
	if err := c.Validate(); err != nil {
		t.Fatalf("default catalog invalid: %v", err)
	}
	last := c.Rounds[len(c.Rounds)-1]
	if !last.Questions[0].IsOpenEnded() {
		t.Error("default catalog should end with an open-ended final")
	}
}

func TestPublicRoundsHideAnswers(t *testing.T) {
	c := Default()
	rounds := c.PublicRounds()
	if len(rounds) != len(c.Rounds) {
		t.Fatalf("got %d public rounds", len(rounds))
	}

	data, err := json.Marshal(rounds)
	if err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"correct_index", "target", "explanation"} {
		if strings.Contains(string(data), `"`+key+`"`) {
			t.Errorf("public rounds expose %q", key)
		}
	}

	// Mutating the public copy must not reach the catalog.
	rounds[0].Questions[0].Options[0] = "changed"
	if c.Rounds[0].Questions[0].Options[0] == "changed" {
		t.Error("public view shares option storage with the catalog")
	}
}
